// Package registry holds the catalog of node templates, one per node type, and
// the ordered set of known categories. A Registry is constructed explicitly by
// the application and passed to whatever instantiates nodes.
package registry

import (
	"fmt"
	"sync"

	daedaluserrors "github.com/wehubfusion/Daedalus/pkg/errors"
	"github.com/wehubfusion/Daedalus/pkg/graph"
	"go.uber.org/zap"
)

// Registry is a thread-safe catalog of node templates.
type Registry struct {
	templates  map[string]*graph.Node
	order      []string
	categories []string
	seen       map[string]struct{}
	logger     *zap.Logger
	mu         sync.RWMutex
}

// New creates an empty registry. A nil logger disables logging.
func New(logger *zap.Logger) *Registry {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Registry{
		templates: make(map[string]*graph.Node),
		seen:      make(map[string]struct{}),
		logger:    logger,
	}
}

// RegisterNode stores a deep copy of node as the template for its node type.
// An existing template for the same type is overwritten.
func (r *Registry) RegisterNode(node *graph.Node) error {
	if node == nil || node.NodeType == "" {
		return daedaluserrors.NewError(daedaluserrors.CodeInvalidTemplate, "template must have a node type", nil)
	}
	if len(node.Sockets) > graph.MaxSocketsPerNode {
		return daedaluserrors.NewError(daedaluserrors.CodeInvalidTemplate,
			fmt.Sprintf("template %q has %d sockets, at most %d are supported",
				node.NodeType, len(node.Sockets), graph.MaxSocketsPerNode), nil)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.templates[node.NodeType]; exists {
		r.logger.Debug("Overwriting node template", zap.String("node_type", node.NodeType))
	} else {
		r.order = append(r.order, node.NodeType)
	}
	r.templates[node.NodeType] = node.Clone()
	return nil
}

// RegisterCategories adds category names, ignoring ones already known.
func (r *Registry) RegisterCategories(names ...string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, name := range names {
		if _, ok := r.seen[name]; ok {
			continue
		}
		r.seen[name] = struct{}{}
		r.categories = append(r.categories, name)
	}
}

// GetNode returns the template registered for a node type.
func (r *Registry) GetNode(nodeType string) (Template, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	node, ok := r.templates[nodeType]
	if !ok {
		return Template{}, false
	}
	return Template{node: node}, true
}

// MustGetNode is GetNode returning a NOT_FOUND error instead of a flag.
func (r *Registry) MustGetNode(nodeType string) (Template, error) {
	t, ok := r.GetNode(nodeType)
	if !ok {
		return Template{}, daedaluserrors.NotFound("node type", nodeType)
	}
	return t, nil
}

// ListNodeDetails returns every template in first-registration order.
func (r *Registry) ListNodeDetails() []Template {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]Template, 0, len(r.order))
	for _, nodeType := range r.order {
		out = append(out, Template{node: r.templates[nodeType]})
	}
	return out
}

// ListNodes returns every registered node type in first-registration order.
func (r *Registry) ListNodes() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return append([]string{}, r.order...)
}

// ListCategories returns categories in registration order.
func (r *Registry) ListCategories() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return append([]string{}, r.categories...)
}

// ListNodeTypesByCategory maps node type to title for every template in the
// given category. Unknown categories yield an empty map.
func (r *Registry) ListNodeTypesByCategory(category string) map[string]string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make(map[string]string)
	for nodeType, node := range r.templates {
		if node.Category == category {
			out[nodeType] = node.Title
		}
	}
	return out
}

// Count returns the number of registered templates.
func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.templates)
}
