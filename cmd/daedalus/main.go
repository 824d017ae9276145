// Command daedalus executes node graph documents, either locally or as a
// NATS execution service.
//
//	daedalus run [-target ID] [-export] graph.json
//	daedalus serve
//	daedalus submit [-target ID] [-timeout D] graph.json
//	daedalus nodes
//
// Configuration is read from DAEDALUS_* environment variables, optionally
// seeded from a .env file (see -env).
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/wehubfusion/Daedalus/internal/config"
	"go.uber.org/zap"
)

var version = "dev"

// errFailed marks a command that ran but whose execution failed; the reply
// has already been printed.
var errFailed = errors.New("execution failed")

type app struct {
	cfg    config.Config
	logger *zap.Logger
	stdout io.Writer
	stdin  io.Reader
}

type command struct {
	name    string
	summary string
	run     func(ctx context.Context, a *app, args []string) error
}

var commands = []command{
	{"run", "execute a graph document locally and print the results", runCommand},
	{"serve", "serve execution requests over NATS", serveCommand},
	{"submit", "send a graph document to a running service", submitCommand},
	{"nodes", "list the built-in node types", nodesCommand},
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	code := realMain(ctx, os.Args[1:], os.Stdin, os.Stdout, os.Stderr)
	stop()
	os.Exit(code)
}

func realMain(ctx context.Context, args []string, stdin io.Reader, stdout, stderr io.Writer) int {
	global := flag.NewFlagSet("daedalus", flag.ContinueOnError)
	global.SetOutput(stderr)
	envFile := global.String("env", ".env", "optional dotenv file to load")
	global.Usage = func() {
		fmt.Fprintf(stderr, "usage: daedalus [-env file] <command> [flags] [args]\n\ncommands:\n")
		for _, c := range commands {
			fmt.Fprintf(stderr, "  %-8s %s\n", c.name, c.summary)
		}
	}
	if err := global.Parse(args); err != nil {
		return 2
	}
	if global.NArg() == 0 {
		global.Usage()
		return 2
	}

	var cmd *command
	for i := range commands {
		if commands[i].name == global.Arg(0) {
			cmd = &commands[i]
		}
	}
	if cmd == nil {
		fmt.Fprintf(stderr, "unknown command %q\n", global.Arg(0))
		global.Usage()
		return 2
	}

	cfg, err := config.Load(*envFile)
	if err != nil {
		fmt.Fprintf(stderr, "configuration error: %v\n", err)
		return 1
	}
	logger, err := newLogger(cfg.LogLevel)
	if err != nil {
		fmt.Fprintf(stderr, "configuration error: %v\n", err)
		return 1
	}
	defer logger.Sync() //nolint:errcheck

	a := &app{cfg: cfg, logger: logger, stdout: stdout, stdin: stdin}
	if err := cmd.run(ctx, a, global.Args()[1:]); err != nil {
		switch {
		case errors.Is(err, flag.ErrHelp):
			return 0
		case errors.Is(err, errFailed):
			return 1
		}
		logger.Error("Command failed", zap.String("command", cmd.name), zap.Error(err))
		return 1
	}
	return 0
}

// newLogger builds a production logger writing JSON to stderr at level.
func newLogger(level string) (*zap.Logger, error) {
	lvl, err := zap.ParseAtomicLevel(level)
	if err != nil {
		return nil, fmt.Errorf("invalid log level %q: %w", level, err)
	}
	zc := zap.NewProductionConfig()
	zc.Level = lvl
	return zc.Build(zap.Fields(zap.String("service", "daedalus")))
}
