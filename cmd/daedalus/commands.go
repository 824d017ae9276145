package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"text/tabwriter"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/wehubfusion/Daedalus/internal/config"
	daedalusnats "github.com/wehubfusion/Daedalus/internal/nats"
	"github.com/wehubfusion/Daedalus/internal/reporting"
	"github.com/wehubfusion/Daedalus/internal/tracing"
	"github.com/wehubfusion/Daedalus/pkg/concurrency"
	"github.com/wehubfusion/Daedalus/pkg/document"
	"github.com/wehubfusion/Daedalus/pkg/nodes/all"
	"github.com/wehubfusion/Daedalus/pkg/runner"
	"github.com/wehubfusion/Daedalus/pkg/storage"
	"go.uber.org/zap"
)

func runCommand(ctx context.Context, a *app, args []string) error {
	fs := flag.NewFlagSet("run", flag.ContinueOnError)
	target := fs.Int("target", 0, "execute only this node and its upstream")
	export := fs.Bool("export", false, "upload the execution record to Azure Blob storage")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if fs.NArg() != 1 {
		return errors.New("run expects exactly one document path (use - for stdin)")
	}

	doc, err := a.readDocument(fs.Arg(0))
	if err != nil {
		return err
	}

	cfg := runner.DefaultConfig(all.NewRegistry(a.logger)).
		WithRequestTimeout(a.cfg.RequestTimeout).
		WithLogger(a.logger)
	if *export {
		exporter, err := a.exporter()
		if err != nil {
			return err
		}
		cfg = cfg.WithExporter(exporter)
	}
	svc, err := runner.NewService(cfg)
	if err != nil {
		return err
	}

	resp := svc.Handle(ctx, &runner.Request{Document: *doc, TargetNodeID: targetFlag(fs, *target)})
	return a.printResponse(resp)
}

func serveCommand(ctx context.Context, a *app, args []string) error {
	fs := flag.NewFlagSet("serve", flag.ContinueOnError)
	if err := fs.Parse(args); err != nil {
		return err
	}

	defer concurrency.SetMaxProcs(a.logger)()
	workers := a.cfg.Workers
	if workers == 0 {
		workers = concurrency.DefaultWorkers()
	}

	tc := tracing.DefaultConfig("daedalus")
	tc.Enabled = a.cfg.TracingEnabled
	tc.ServiceVersion = version
	tc.Environment = a.cfg.Environment
	tc.OTLPEndpoint = a.cfg.OTLPEndpoint
	tc.SampleRatio = a.cfg.TraceSampleRatio
	shutdown, err := tracing.SetupTracing(ctx, tc, a.logger)
	if err != nil {
		return err
	}
	defer tracing.ShutdownTracing(shutdown, a.logger) //nolint:errcheck

	reporter, err := reporting.New(reporting.Config{
		DSN:         a.cfg.SentryDSN,
		Environment: a.cfg.Environment,
		Release:     "daedalus@" + version,
	}, a.logger)
	if err != nil {
		return err
	}
	defer reporter.Flush(2 * time.Second)

	cfg := runner.DefaultConfig(all.NewRegistry(a.logger)).
		WithSubject(a.cfg.Subject).
		WithQueue(a.cfg.Queue).
		WithWorkers(workers).
		WithRequestTimeout(a.cfg.RequestTimeout).
		WithLogger(a.logger).
		WithErrorHandler(reporter.Capture)
	if a.cfg.ExportEnabled() {
		exporter, err := a.exporter()
		if err != nil {
			return err
		}
		cfg = cfg.WithExporter(exporter)
	}
	svc, err := runner.NewService(cfg)
	if err != nil {
		return err
	}

	nc, err := a.connect(ctx)
	if err != nil {
		return err
	}
	defer daedalusnats.Close(nc) //nolint:errcheck

	if err := svc.Run(ctx, nc); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}

func submitCommand(ctx context.Context, a *app, args []string) error {
	fs := flag.NewFlagSet("submit", flag.ContinueOnError)
	target := fs.Int("target", 0, "execute only this node and its upstream")
	timeout := fs.Duration("timeout", a.cfg.RequestTimeout+5*time.Second, "how long to wait for the reply")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if fs.NArg() != 1 {
		return errors.New("submit expects exactly one document path (use - for stdin)")
	}

	doc, err := a.readDocument(fs.Arg(0))
	if err != nil {
		return err
	}

	nc, err := a.connect(ctx)
	if err != nil {
		return err
	}
	defer daedalusnats.Close(nc) //nolint:errcheck

	client, err := runner.NewClient(nc, a.cfg.Subject)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(ctx, *timeout)
	defer cancel()
	resp, err := client.Execute(ctx, &runner.Request{Document: *doc, TargetNodeID: targetFlag(fs, *target)})
	if err != nil {
		return err
	}
	return a.printResponse(resp)
}

func nodesCommand(_ context.Context, a *app, args []string) error {
	fs := flag.NewFlagSet("nodes", flag.ContinueOnError)
	asJSON := fs.Bool("json", false, "print the node templates as JSON")
	if err := fs.Parse(args); err != nil {
		return err
	}

	reg := all.NewRegistry(a.logger)
	if *asJSON {
		details := reg.ListNodeDetails()
		out := make([]any, 0, len(details))
		for _, t := range details {
			out = append(out, t.Node())
		}
		return writeJSON(a.stdout, out)
	}

	w := tabwriter.NewWriter(a.stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "CATEGORY\tTYPE\tTITLE")
	for _, category := range reg.ListCategories() {
		types := reg.ListNodeTypesByCategory(category)
		for _, t := range reg.ListNodeDetails() {
			if title, ok := types[t.NodeType()]; ok {
				fmt.Fprintf(w, "%s\t%s\t%s\n", category, t.NodeType(), title)
			}
		}
	}
	return w.Flush()
}

func (a *app) readDocument(path string) (*document.Document, error) {
	var r io.Reader = a.stdin
	if path != "-" {
		f, err := os.Open(path)
		if err != nil {
			return nil, fmt.Errorf("failed to open document: %w", err)
		}
		defer f.Close()
		r = f
	}
	return document.Decode(r)
}

func (a *app) exporter() (*storage.Exporter, error) {
	if !a.cfg.ExportEnabled() {
		return nil, fmt.Errorf("export requires %s", config.EnvAzureConnection)
	}
	store, err := storage.NewAzureBlobStore(a.cfg.AzureConnectionString, a.cfg.AzureContainer, a.logger)
	if err != nil {
		return nil, err
	}
	return storage.NewExporter(store, a.logger), nil
}

func (a *app) connect(ctx context.Context) (*nats.Conn, error) {
	cc := daedalusnats.DefaultConnectionConfig(a.cfg.NATSURL)
	cc.Token = a.cfg.NATSToken
	return daedalusnats.Connect(ctx, cc, a.logger)
}

func (a *app) printResponse(resp *runner.Response) error {
	if err := writeJSON(a.stdout, resp); err != nil {
		return err
	}
	if resp.Failed() {
		a.logger.Debug("Execution failed",
			zap.String("execution_id", resp.ExecutionID),
			zap.String("error_code", resp.ErrorCode))
		return errFailed
	}
	return nil
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// targetFlag returns the -target value, or nil when the flag was not given.
// Any integer, negative or zero included, is a valid node id.
func targetFlag(fs *flag.FlagSet, id int) *int {
	set := false
	fs.Visit(func(f *flag.Flag) {
		if f.Name == "target" {
			set = true
		}
	})
	if !set {
		return nil
	}
	return &id
}
