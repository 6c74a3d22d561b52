// Package command implements the domain command algebra that mutates a
// pkg/pipeline.Doc: the operation union itself, its transform_forward /
// transform_backward / map primitives, the transform_batch
// client-to-server reconciliation, and validate_sequence.
package command

import "github.com/polda-go/pipelinedoc/pkg/pipeline"

// Kind discriminates the variant carried by an Operation.
type Kind int

const (
	KindInsertNode Kind = iota
	KindDeleteNode
	KindInsertIndex
	KindDeleteIndex

	KindSetPosition
	KindSetInput
	KindSetCsvPath
	KindSetJoinType

	KindInsertAggregate
	KindDeleteAggregate
	KindSetAggregateField

	KindInsertFilter
	KindDeleteFilter
	KindSetFilterField

	KindInsertJoinColumn
	KindDeleteJoinColumn
	KindSetJoinColumnField

	KindInsertSelect
	KindDeleteSelect
	KindSetSelectField

	KindInsertSorter
	KindDeleteSorter
	KindSetSorterField
)

// ListKind names which of a node's list fields a list-axis operation
// addresses.
type ListKind int

const (
	ListAggregate ListKind = iota
	ListFilter
	ListJoinColumn
	ListSelect
	ListSorter
)

// Operation is the domain edit primitive: every variant the document
// session accepts from a client and feeds through transform_batch and
// the executor. Only the fields relevant to Kind are meaningful.
type Operation struct {
	Kind Kind

	// Whole-document axis.
	NodeID string       // InsertNode/DeleteNode/SetPosition/SetInput/SetCsvPath/SetJoinType target, and list ops' owning node
	Node   pipeline.Node // InsertNode payload / DeleteNode's removed node, for the inverse

	// Index-sequence axis (document index, or a node's internal list).
	Index int

	// SetPosition
	Position pipeline.Position

	// SetInput
	InputName pipeline.InputName
	Input     *string

	// SetCsvPath
	CsvPath string

	// SetJoinType
	JoinType pipeline.JoinType

	// List-inside-node axis.
	List ListKind
	Item interface{} // pipeline.Aggregate / Filter / JoinColumn / SelectColumn / Sorter, for Insert/Delete

	// SetXField
	Field      string
	FieldValue interface{}
}

func InsertNode(n pipeline.Node) Operation {
	return Operation{Kind: KindInsertNode, NodeID: n.ID, Node: n}
}

func DeleteNode(id string) Operation { return Operation{Kind: KindDeleteNode, NodeID: id} }

func InsertIndex(id string, at int) Operation {
	return Operation{Kind: KindInsertIndex, NodeID: id, Index: at}
}

func DeleteIndex(id string, at int) Operation {
	return Operation{Kind: KindDeleteIndex, NodeID: id, Index: at}
}

func SetPosition(id string, pos pipeline.Position) Operation {
	return Operation{Kind: KindSetPosition, NodeID: id, Position: pos}
}

func SetInput(id string, name pipeline.InputName, input *string) Operation {
	return Operation{Kind: KindSetInput, NodeID: id, InputName: name, Input: input}
}

func SetCsvPath(id string, path string) Operation {
	return Operation{Kind: KindSetCsvPath, NodeID: id, CsvPath: path}
}

func SetJoinType(id string, jt pipeline.JoinType) Operation {
	return Operation{Kind: KindSetJoinType, NodeID: id, JoinType: jt}
}

func insertList(kind Kind, list ListKind, id string, at int, item interface{}) Operation {
	return Operation{Kind: kind, NodeID: id, List: list, Index: at, Item: item}
}

func deleteList(kind Kind, list ListKind, id string, at int) Operation {
	return Operation{Kind: kind, NodeID: id, List: list, Index: at}
}

func setListField(kind Kind, list ListKind, id string, at int, field string, val interface{}) Operation {
	return Operation{Kind: kind, NodeID: id, List: list, Index: at, Field: field, FieldValue: val}
}

func InsertAggregate(id string, at int, a pipeline.Aggregate) Operation {
	return insertList(KindInsertAggregate, ListAggregate, id, at, a)
}
func DeleteAggregate(id string, at int) Operation {
	return deleteList(KindDeleteAggregate, ListAggregate, id, at)
}
func SetAggregateField(id string, at int, field string, val interface{}) Operation {
	return setListField(KindSetAggregateField, ListAggregate, id, at, field, val)
}

func InsertFilter(id string, at int, f pipeline.Filter) Operation {
	return insertList(KindInsertFilter, ListFilter, id, at, f)
}
func DeleteFilter(id string, at int) Operation {
	return deleteList(KindDeleteFilter, ListFilter, id, at)
}
func SetFilterField(id string, at int, field string, val interface{}) Operation {
	return setListField(KindSetFilterField, ListFilter, id, at, field, val)
}

func InsertJoinColumn(id string, at int, c pipeline.JoinColumn) Operation {
	return insertList(KindInsertJoinColumn, ListJoinColumn, id, at, c)
}
func DeleteJoinColumn(id string, at int) Operation {
	return deleteList(KindDeleteJoinColumn, ListJoinColumn, id, at)
}
func SetJoinColumnField(id string, at int, field string, val interface{}) Operation {
	return setListField(KindSetJoinColumnField, ListJoinColumn, id, at, field, val)
}

func InsertSelect(id string, at int, c pipeline.SelectColumn) Operation {
	return insertList(KindInsertSelect, ListSelect, id, at, c)
}
func DeleteSelect(id string, at int) Operation {
	return deleteList(KindDeleteSelect, ListSelect, id, at)
}
func SetSelectField(id string, at int, field string, val interface{}) Operation {
	return setListField(KindSetSelectField, ListSelect, id, at, field, val)
}

func InsertSorter(id string, at int, s pipeline.Sorter) Operation {
	return insertList(KindInsertSorter, ListSorter, id, at, s)
}
func DeleteSorter(id string, at int) Operation {
	return deleteList(KindDeleteSorter, ListSorter, id, at)
}
func SetSorterField(id string, at int, field string, val interface{}) Operation {
	return setListField(KindSetSorterField, ListSorter, id, at, field, val)
}

// isListInsert/isListDelete classify Kind for the shared list-axis
// transform code in transform.go.
func isListInsert(k Kind) bool {
	switch k {
	case KindInsertAggregate, KindInsertFilter, KindInsertJoinColumn, KindInsertSelect, KindInsertSorter:
		return true
	}
	return false
}

func isListDelete(k Kind) bool {
	switch k {
	case KindDeleteAggregate, KindDeleteFilter, KindDeleteJoinColumn, KindDeleteSelect, KindDeleteSorter:
		return true
	}
	return false
}

func isListOp(k Kind) bool {
	return isListInsert(k) || isListDelete(k) || k == KindSetAggregateField || k == KindSetFilterField ||
		k == KindSetJoinColumnField || k == KindSetSelectField || k == KindSetSorterField
}

// addressesSameList reports whether a and b are both list ops against
// the same node and the same list field.
func addressesSameList(a, b Operation) bool {
	return isListOp(a.Kind) && isListOp(b.Kind) && a.NodeID == b.NodeID && a.List == b.List
}

// targetsNode reports whether op is scoped to a single node (every
// kind except the document-index-axis InsertIndex/DeleteIndex, which
// are scoped to the document's index sequence instead).
func targetsNode(op Operation) bool {
	return op.Kind != KindInsertIndex && op.Kind != KindDeleteIndex
}
