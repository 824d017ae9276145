package javascript

import (
	"fmt"
	"time"

	"github.com/wehubfusion/Daedalus/pkg/graph"
)

// DefaultTimeout bounds a script run when the node sets no timeout.
const DefaultTimeout = 5 * time.Second

// Config is the javascript node configuration read from its parameters.
type Config struct {
	// Script is the JavaScript source to run. Its completion value is the
	// node result.
	Script string

	// Timeout is the maximum execution time for the script
	Timeout time.Duration
}

// ConfigFromNode reads the node's parameters and applies defaults.
// The "timeout" parameter is in milliseconds.
func ConfigFromNode(n *graph.Node) Config {
	cfg := Config{
		Script:  graph.ParamString(n, "script", ""),
		Timeout: time.Duration(graph.ParamFloat(n, "timeout", 0)) * time.Millisecond,
	}
	cfg.ApplyDefaults()
	return cfg
}

// ApplyDefaults sets default values for configuration fields
func (c *Config) ApplyDefaults() {
	if c.Timeout <= 0 {
		c.Timeout = DefaultTimeout
	}
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	if c.Script == "" {
		return fmt.Errorf("script is required")
	}
	if c.Timeout <= 0 {
		return fmt.Errorf("timeout must be positive")
	}
	return nil
}
