package strings

import (
	"fmt"

	"github.com/wehubfusion/Daedalus/pkg/graph"
	"golang.org/x/text/language"
)

// Supported operations.
const (
	OpConcat    = "concat"
	OpUpper     = "upper"
	OpLower     = "lower"
	OpTitle     = "title"
	OpTrim      = "trim"
	OpNormalize = "normalize"
	OpLength    = "length"
)

var supportedOperations = map[string]struct{}{
	OpConcat:    {},
	OpUpper:     {},
	OpLower:     {},
	OpTitle:     {},
	OpTrim:      {},
	OpNormalize: {},
	OpLength:    {},
}

// Config is the strings node configuration read from its parameters.
type Config struct {
	Operation string
	Separator string
	Locale    language.Tag
}

// ConfigFromNode reads and validates the node's parameters.
func ConfigFromNode(n *graph.Node) (Config, error) {
	cfg := Config{
		Operation: graph.ParamString(n, "operation", OpConcat),
		Separator: graph.ParamString(n, "separator", ""),
		Locale:    language.Und,
	}
	if _, ok := supportedOperations[cfg.Operation]; !ok {
		return cfg, NewConfigError(n.ID, "operation", fmt.Sprintf("unsupported operation '%s'", cfg.Operation), nil)
	}
	if locale := graph.ParamString(n, "locale", ""); locale != "" {
		tag, err := language.Parse(locale)
		if err != nil {
			return cfg, NewConfigError(n.ID, "locale", fmt.Sprintf("invalid locale '%s'", locale), err)
		}
		cfg.Locale = tag
	}
	return cfg, nil
}

// ConfigError represents a configuration validation error.
type ConfigError struct {
	NodeID  int
	Field   string
	Message string
	Err     error
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("node %d: config error [%s]: %s", e.NodeID, e.Field, e.Message)
}

func (e *ConfigError) Unwrap() error { return e.Err }

func NewConfigError(nodeID int, field, message string, err error) *ConfigError {
	return &ConfigError{NodeID: nodeID, Field: field, Message: message, Err: err}
}
