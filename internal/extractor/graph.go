package extractor

import "sort"

// Role values carried by message authors.
const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
	RoleTool      = "tool"
)

// Message is one chat message, read leniently from the conversation record.
type Message struct {
	Role        string
	AuthorName  string
	Recipient   string
	Metadata    map[string]any
	ContentType string
	Parts       []any
	Result      string
}

// Node is a vertex of the conversation tree. A node without a message is a
// structural placeholder.
type Node struct {
	ID      string
	Message *Message
	Parent  string
}

// Graph indexes conversation nodes by id and remembers their iteration order.
type Graph struct {
	order []string
	nodes map[string]*Node
}

// NewGraph builds a graph. Ids in order that have no node are ignored, and
// nodes missing from order are appended in sorted id order.
func NewGraph(order []string, nodes map[string]*Node) *Graph {
	g := &Graph{
		order: make([]string, 0, len(nodes)),
		nodes: make(map[string]*Node, len(nodes)),
	}
	for id, n := range nodes {
		if n == nil {
			continue
		}
		if n.ID == "" {
			n.ID = id
		}
		g.nodes[id] = n
	}

	seen := make(map[string]bool, len(g.nodes))
	for _, id := range order {
		if _, ok := g.nodes[id]; ok && !seen[id] {
			seen[id] = true
			g.order = append(g.order, id)
		}
	}
	if len(g.order) < len(g.nodes) {
		var rest []string
		for id := range g.nodes {
			if !seen[id] {
				rest = append(rest, id)
			}
		}
		sort.Strings(rest)
		g.order = append(g.order, rest...)
	}
	return g
}

// Get returns the node with the given id.
func (g *Graph) Get(id string) (*Node, bool) {
	if g == nil || id == "" {
		return nil, false
	}
	n, ok := g.nodes[id]
	return n, ok
}

// Each visits every node in iteration order.
func (g *Graph) Each(fn func(*Node)) {
	if g == nil {
		return
	}
	for _, id := range g.order {
		fn(g.nodes[id])
	}
}

// Len returns the number of nodes.
func (g *Graph) Len() int {
	if g == nil {
		return 0
	}
	return len(g.nodes)
}
