// Package strings provides the string operations node.
package strings

import (
	"context"
	stdstrings "strings"
	"unicode"
	"unicode/utf8"

	"github.com/wehubfusion/Daedalus/pkg/graph"
	"github.com/wehubfusion/Daedalus/pkg/nodes"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"
	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// NodeType is the registry key of the strings node.
const NodeType = "strings"

// Template returns the strings node template.
func Template() *graph.Node {
	return &graph.Node{
		Category: nodes.CategoryText,
		Title:    "String Operation",
		NodeType: NodeType,
		Width:    280,
		Height:   200,
		Sockets: []graph.Socket{
			{ID: 1, Title: "A", Type: graph.SocketInput, DataType: "string"},
			{ID: 2, Title: "B", Type: graph.SocketInput, DataType: "string"},
			{ID: 3, Title: "Result", Type: graph.SocketOutput, DataType: "string"},
		},
		ConfigParameters: []graph.ConfigParameter{
			{
				ParameterName: "operation",
				ParameterType: graph.ParameterString,
				DefaultValue:  OpConcat,
				ValueSource:   graph.SourceDefault,
				Description:   "One of concat, upper, lower, title, trim, normalize, length",
			},
			{
				ParameterName: "separator",
				ParameterType: graph.ParameterString,
				DefaultValue:  "",
				ValueSource:   graph.SourceUserInput,
				Description:   "Separator placed between A and B by concat",
			},
			{
				ParameterName: "locale",
				ParameterType: graph.ParameterString,
				DefaultValue:  "",
				ValueSource:   graph.SourceUserInput,
				Description:   "BCP 47 tag used for case mapping",
			},
		},
		Process: graph.ProcessFunc(Process),
	}
}

// Process applies the configured operation to input A (and B for concat).
func Process(ctx context.Context, pc graph.ProcessContext) (any, error) {
	cfg, err := ConfigFromNode(pc.Node())
	if err != nil {
		return nil, err
	}

	a, _, err := nodes.InputString(ctx, pc, 0)
	if err != nil {
		return nil, err
	}

	switch cfg.Operation {
	case OpConcat:
		b, ok, err := nodes.InputString(ctx, pc, 1)
		if err != nil {
			return nil, err
		}
		if !ok {
			return a, nil
		}
		return a + cfg.Separator + b, nil
	case OpUpper:
		return cases.Upper(cfg.Locale).String(a), nil
	case OpLower:
		return cases.Lower(cfg.Locale).String(a), nil
	case OpTitle:
		return titleCase(a, cfg.Locale), nil
	case OpTrim:
		return stdstrings.TrimSpace(a), nil
	case OpNormalize:
		return normalize(a)
	case OpLength:
		return utf8.RuneCountInString(a), nil
	}
	return nil, NewConfigError(pc.Node().ID, "operation", "unsupported operation '"+cfg.Operation+"'", nil)
}

func titleCase(s string, tag language.Tag) string { return cases.Title(tag).String(s) }

// normalize strips diacritics and returns the NFC form.
func normalize(s string) (string, error) {
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	out, _, err := transform.String(t, s)
	if err != nil {
		return "", err
	}
	return out, nil
}
