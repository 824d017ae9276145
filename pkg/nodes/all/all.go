// Package all registers every built-in node kind.
package all

import (
	"fmt"

	"github.com/wehubfusion/Daedalus/pkg/graph"
	"github.com/wehubfusion/Daedalus/pkg/nodes"
	"github.com/wehubfusion/Daedalus/pkg/nodes/javascript"
	"github.com/wehubfusion/Daedalus/pkg/nodes/jsonquery"
	"github.com/wehubfusion/Daedalus/pkg/nodes/merge"
	"github.com/wehubfusion/Daedalus/pkg/nodes/number"
	"github.com/wehubfusion/Daedalus/pkg/nodes/strings"
	"github.com/wehubfusion/Daedalus/pkg/nodes/text"
	"github.com/wehubfusion/Daedalus/pkg/registry"
	"go.uber.org/zap"
)

// Templates returns the built-in node templates.
func Templates(logger *zap.Logger) []*graph.Node {
	return []*graph.Node{
		text.Template(),
		number.Template(),
		strings.Template(),
		merge.Template(),
		javascript.Template(logger),
		jsonquery.Template(),
	}
}

// Register loads the built-in categories and templates into reg.
func Register(reg *registry.Registry, logger *zap.Logger) error {
	reg.RegisterCategories(nodes.Categories()...)
	for _, t := range Templates(logger) {
		if err := reg.RegisterNode(t); err != nil {
			return fmt.Errorf("failed to register %s: %w", t.NodeType, err)
		}
	}
	return nil
}

// NewRegistry creates a registry with every built-in node kind registered.
func NewRegistry(logger *zap.Logger) *registry.Registry {
	reg := registry.New(logger)
	if err := Register(reg, logger); err != nil {
		// built-in templates are static; failing here is a programming error
		panic(err)
	}
	return reg
}
