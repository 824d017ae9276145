// Package document decodes serialized graphs and binds process capabilities
// to their nodes from a registry.
package document

import (
	"encoding/json"
	"fmt"
	"io"

	daedaluserrors "github.com/wehubfusion/Daedalus/pkg/errors"
	"github.com/wehubfusion/Daedalus/pkg/graph"
	"github.com/wehubfusion/Daedalus/pkg/registry"
)

// Document is a serialized graph.
type Document struct {
	Nodes       []*graph.Node      `json:"nodes"`
	Connections []graph.Connection `json:"connections"`
}

// Parse decodes and validates a document.
func Parse(data []byte) (*Document, error) {
	var doc Document
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, daedaluserrors.NewError(daedaluserrors.CodeInvalidDocument, "failed to decode document", err)
	}
	if err := doc.Validate(); err != nil {
		return nil, err
	}
	return &doc, nil
}

// Decode reads a document from r.
func Decode(r io.Reader) (*Document, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("failed to read document: %w", err)
	}
	return Parse(data)
}

// Validate checks that every node is present and node ids are unique.
// Socket ids are not checked; the engine resolves duplicates to their first owner.
func (d *Document) Validate() error {
	seen := make(map[int]struct{}, len(d.Nodes))
	for i, n := range d.Nodes {
		if n == nil {
			return daedaluserrors.NewError(daedaluserrors.CodeInvalidDocument,
				fmt.Sprintf("nodes[%d] is null", i), nil)
		}
		if _, dup := seen[n.ID]; dup {
			return daedaluserrors.NewError(daedaluserrors.CodeInvalidDocument,
				fmt.Sprintf("duplicate node id %d", n.ID), nil)
		}
		seen[n.ID] = struct{}{}
	}
	return nil
}

// Node returns the node with the given id.
func (d *Document) Node(id int) (*graph.Node, bool) {
	for _, n := range d.Nodes {
		if n.ID == id {
			return n, true
		}
	}
	return nil, false
}

// Bind attaches the registered process capability to every node whose type
// is known to reg and returns the node types that are not. Nodes of unknown
// types stay non-executable.
func (d *Document) Bind(reg *registry.Registry) []string {
	var unknown []string
	seen := make(map[string]struct{})
	for _, n := range d.Nodes {
		tmpl, ok := reg.GetNode(n.NodeType)
		if !ok {
			if _, dup := seen[n.NodeType]; !dup {
				seen[n.NodeType] = struct{}{}
				unknown = append(unknown, n.NodeType)
			}
			continue
		}
		n.Process = tmpl.Processor()
	}
	return unknown
}

// Marshal encodes the document. Process capabilities are not serialized.
func (d *Document) Marshal() ([]byte, error) {
	return json.Marshal(d)
}
