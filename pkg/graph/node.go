package graph

// CreateNode instantiates a new node with the given id and position from a
// template. Socket ids are derived as id*100 + k, where k is the 1-based index
// of the socket in the template. When duplicate is false every parameter value
// is reset to its default; when true the template's current values are kept.
// The template itself is never modified.
func CreateNode(id int, pos Position, template *Node, duplicate bool) *Node {
	node := &Node{
		ID:        id,
		Category:  template.Category,
		Title:     template.Title,
		NodeType:  template.NodeType,
		NodeValue: CopyValue(template.NodeValue),
		Position:  pos,
		Width:     template.Width,
		Height:    template.Height,
		Process:   template.Process,
	}

	if template.Sockets != nil {
		node.Sockets = make([]Socket, len(template.Sockets))
		for i, s := range template.Sockets {
			s.ID = id*100 + i + 1
			s.NodeID = id
			node.Sockets[i] = s
		}
	}

	if template.ConfigParameters != nil {
		node.ConfigParameters = copyParameters(template.ConfigParameters)
		if !duplicate {
			for i := range node.ConfigParameters {
				p := &node.ConfigParameters[i]
				p.ParamValue = CopyValue(p.DefaultValue)
			}
		}
	}

	return node
}

// Clone returns a deep copy of the node that keeps its id, socket ids and
// Process capability.
func (n *Node) Clone() *Node {
	if n == nil {
		return nil
	}
	c := *n
	c.NodeValue = CopyValue(n.NodeValue)
	if n.Sockets != nil {
		c.Sockets = append([]Socket(nil), n.Sockets...)
	}
	c.ConfigParameters = copyParameters(n.ConfigParameters)
	return &c
}

// Socket returns the socket with the given id.
func (n *Node) Socket(id int) (Socket, bool) {
	for _, s := range n.Sockets {
		if s.ID == id {
			return s, true
		}
	}
	return Socket{}, false
}

// InputSockets returns the node's input sockets in declaration order.
func (n *Node) InputSockets() []Socket {
	return n.socketsOfType(SocketInput)
}

// OutputSockets returns the node's output sockets in declaration order.
func (n *Node) OutputSockets() []Socket {
	return n.socketsOfType(SocketOutput)
}

func (n *Node) socketsOfType(t SocketType) []Socket {
	out := make([]Socket, 0, len(n.Sockets))
	for _, s := range n.Sockets {
		if s.Type == t {
			out = append(out, s)
		}
	}
	return out
}

// Executable reports whether the node carries a process capability.
func (n *Node) Executable() bool {
	return n != nil && n.Process != nil
}
