package pipeline

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDocNodeAndIndexOf(t *testing.T) {
	doc := NewDoc()
	doc.Nodes["a"] = NewLoadCsv("a", Position{}, "x.csv")
	doc.Index = []string{"a"}

	n, ok := doc.Node("a")
	assert.True(t, ok)
	assert.Equal(t, KindLoadCsv, n.Kind)
	assert.Equal(t, 0, doc.IndexOf("a"))
	assert.Equal(t, -1, doc.IndexOf("missing"))
}

func TestIsCycleDirectSelfLoop(t *testing.T) {
	doc := NewDoc()
	sel := NewSelect("sel", Position{})
	doc.Nodes["sel"] = sel

	assert.True(t, doc.IsCycle("sel", "sel"))
}

func TestIsCycleThroughChain(t *testing.T) {
	doc := NewDoc()
	doc.Nodes["a"] = NewLoadCsv("a", Position{}, "x.csv")
	doc.Nodes["c"] = NewSelect("c", Position{})

	aID := "a"
	b := NewSelect("b", Position{})
	b = b.WithInput(Primary, &aID)
	doc.Nodes["b"] = b

	// c has no input chain back to a: wiring a -> c would not cycle.
	assert.False(t, doc.IsCycle("a", "c"))

	// b's input chain reaches a, so wiring a -> b would cycle.
	assert.True(t, doc.IsCycle("a", "b"))
}

func TestDocCloneSharesNoMutableState(t *testing.T) {
	doc := NewDoc()
	sel := NewSelect("sel", Position{})
	sel.Outputs["other"] = struct{}{}
	sel.Columns = []SelectColumn{{Column: "a"}}
	doc.Nodes["sel"] = sel
	doc.Index = []string{"sel"}

	clone := doc.Clone()
	delete(clone.Nodes, "sel")
	assert.Contains(t, doc.Nodes, "sel", "deleting from the clone's map must not touch the original")

	clone2 := doc.Clone()
	n2 := clone2.Nodes["sel"]
	n2.InsertOutput("yet-another")
	n2.Columns[0].Column = "tampered"
	clone2.Nodes["sel"] = n2
	clone2.Index[0] = "tampered"

	orig := doc.Nodes["sel"]
	assert.NotContains(t, orig.Outputs, "yet-another")
	assert.Equal(t, "a", orig.Columns[0].Column)
	assert.Equal(t, "sel", doc.Index[0])
}

func TestDOTIncludesNodesAndEdges(t *testing.T) {
	doc := NewDoc()
	srcID := "src"
	doc.Nodes["src"] = NewLoadCsv("src", Position{}, "x.csv")
	sel := NewSelect("sel", Position{})
	sel = sel.WithInput(Primary, &srcID)
	doc.Nodes["sel"] = sel

	out := doc.DOT()
	assert.True(t, strings.Contains(out, "src"))
	assert.True(t, strings.Contains(out, "sel"))
}
