package command

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/polda-go/pipelinedoc/pkg/pipeline"
)

// Node axis: an op scoped to a node that a concurrent DeleteNode removed
// is annihilated.
func TestTransformForwardNodeAxisDeleteNode(t *testing.T) {
	pre := DeleteNode("n1")
	op := SetCsvPath("n1", "b.csv")

	_, ok := TransformForward(op, pre)
	assert.False(t, ok)
}

// An op scoped to a different node is untouched by a DeleteNode.
func TestTransformForwardNodeAxisUnrelated(t *testing.T) {
	pre := DeleteNode("n1")
	op := SetCsvPath("n2", "b.csv")

	out, ok := TransformForward(op, pre)
	assert.True(t, ok)
	assert.Equal(t, "b.csv", out.CsvPath)
}

// Index axis: InsertIndex before op's slot shifts op's index up.
func TestTransformForwardIndexAxisInsertShifts(t *testing.T) {
	pre := InsertIndex("new", 0)
	op := InsertIndex("target", 1)

	out, ok := TransformForward(op, pre)
	assert.True(t, ok)
	assert.Equal(t, 2, out.Index)
}

// Index axis: DeleteIndex at op's own slot annihilates a DeleteIndex at
// the same slot (both sides racing to remove the same entry).
func TestTransformForwardIndexAxisDeleteDeleteCollision(t *testing.T) {
	pre := DeleteIndex("n1", 2)
	op := DeleteIndex("n1", 2)

	_, ok := TransformForward(op, pre)
	assert.False(t, ok)
}

// List axis: inserting into a node's filter list shifts a later
// SetFilterField in the same list.
func TestTransformForwardListAxisInsertShiftsSetField(t *testing.T) {
	pre := InsertFilter("n1", 0, pipeline.Filter{Column: "x"})
	op := SetFilterField("n1", 1, "column", "y")

	out, ok := TransformForward(op, pre)
	assert.True(t, ok)
	assert.Equal(t, 2, out.Index)
}

// List ops against different nodes' lists never interact.
func TestTransformForwardListAxisDifferentNodeUnaffected(t *testing.T) {
	pre := InsertFilter("n1", 0, pipeline.Filter{Column: "x"})
	op := SetFilterField("n2", 1, "column", "y")

	out, ok := TransformForward(op, pre)
	assert.True(t, ok)
	assert.Equal(t, 1, out.Index)
}

// Map recovers an Insert annihilated by a same-slot concurrent Insert by
// following the rebased counterpart's new index.
func TestMapRecoversInsertAfterCollision(t *testing.T) {
	before := InsertFilter("n1", 0, pipeline.Filter{Column: "x"})
	after := InsertFilter("n1", 1, pipeline.Filter{Column: "x"})
	op := InsertFilter("n1", 0, pipeline.Filter{Column: "y"})

	out, ok := Map(op, before, after)
	assert.True(t, ok)
	assert.Equal(t, 1, out.Index)
}

func TestTransformBatchDropsOpsAgainstDeletedNode(t *testing.T) {
	batch := []Operation{SetCsvPath("n1", "x.csv")}
	precededBy := []Operation{DeleteNode("n1")}

	out := TransformBatch(batch, precededBy)
	assert.Empty(t, out)
}

func TestTransformBatchShiftsIndexAgainstPrecedingInsert(t *testing.T) {
	batch := []Operation{InsertIndex("target", 0)}
	precededBy := []Operation{InsertIndex("other", 0)}

	out := TransformBatch(batch, precededBy)
	if assert.Len(t, out, 1) {
		assert.Equal(t, 1, out[0].Index)
	}
}
