package pipeline

import (
	"fmt"

	"github.com/emicklei/dot"
)

// Doc is the pipeline document: a node-id-keyed graph plus the
// user-visible ordering of those ids (the "index"). Doc itself never
// enforces the acyclic/dangling-input invariants — pkg/command's
// transforms and pkg/docexec's repair pass do — it is just storage and
// graph queries.
type Doc struct {
	Nodes map[string]Node
	Index []string
}

func NewDoc() *Doc {
	return &Doc{Nodes: map[string]Node{}}
}

func (d *Doc) Node(id string) (Node, bool) {
	n, ok := d.Nodes[id]
	return n, ok
}

// Clone returns a deep copy of d: a fresh node map (with each Node
// cloned) and a fresh index slice. Per §5's rule that a snapshot
// handed to another goroutine must never be borrowed mutably, every
// caller that hands a *Doc across a goroutine boundary — a session
// boundary, not an in-process call — must hand out Clone()'s result,
// never d itself.
func (d *Doc) Clone() *Doc {
	nodes := make(map[string]Node, len(d.Nodes))
	for id, n := range d.Nodes {
		nodes[id] = n.Clone()
	}
	return &Doc{Nodes: nodes, Index: append([]string{}, d.Index...)}
}

func (d *Doc) IndexOf(id string) int {
	for i, v := range d.Index {
		if v == id {
			return i
		}
	}
	return -1
}

// IsCycle reports whether, with one of start's input slots set to
// target, a path would exist from target back to start through the
// current input relation (i.e. whether the edge would close a cycle).
func (d *Doc) IsCycle(start, target string) bool {
	visited := map[string]bool{}
	var walk func(id string) bool
	walk = func(id string) bool {
		if id == start {
			return true
		}
		if visited[id] {
			return false
		}
		visited[id] = true
		n, ok := d.Nodes[id]
		if !ok {
			return false
		}
		for _, in := range n.Inputs() {
			if in != nil && walk(*in) {
				return true
			}
		}
		return false
	}
	return walk(target)
}

// DOT renders the current graph as a Graphviz DOT document: one node
// box per pipeline node labeled with its kind and id, one edge per
// populated input slot labeled with the slot name.
func (d *Doc) DOT() string {
	g := dot.NewGraph(dot.Directed)
	g.Attr("rankdir", "LR")

	nodes := make(map[string]dot.Node, len(d.Nodes))
	for id, n := range d.Nodes {
		gn := g.Node(id).Label(fmt.Sprintf("%s\n%s", n.Kind, id)).Box()
		nodes[id] = gn
	}
	for id, n := range d.Nodes {
		names := n.InputNames()
		for i, in := range n.Inputs() {
			if in == nil {
				continue
			}
			src, ok := nodes[*in]
			if !ok {
				continue
			}
			g.Edge(src, nodes[id]).Label(names[i].String())
		}
	}
	return g.String()
}
