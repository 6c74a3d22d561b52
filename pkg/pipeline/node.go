// Package pipeline implements the data-analysis pipeline document: the
// node graph that pkg/command's operations mutate, and the graph
// queries (inputs, outputs, DOT export) that the executor and the
// transport layer need.
package pipeline

// Kind discriminates the variant carried by a Node.
type Kind int

const (
	KindLoadCsv Kind = iota
	KindSelect
	KindFilter
	KindAggregate
	KindSort
	KindJoin
	KindUnion
)

func (k Kind) String() string {
	switch k {
	case KindLoadCsv:
		return "load_csv"
	case KindSelect:
		return "select"
	case KindFilter:
		return "filter"
	case KindAggregate:
		return "aggregate"
	case KindSort:
		return "sort"
	case KindJoin:
		return "join"
	case KindUnion:
		return "union"
	default:
		return "unknown"
	}
}

// Position is a node's 2D location on the editing canvas. Purely
// presentational; the engine never reasons about it.
type Position struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// InputName names one of a node's (at most two) input slots.
type InputName int

const (
	Primary InputName = iota
	Secondary
)

func (n InputName) String() string {
	if n == Secondary {
		return "secondary"
	}
	return "primary"
}

// InputPort addresses one input slot of one node; used by the executor
// to record candidate edges that may need repair after a batch.
type InputPort struct {
	ID   string
	Name InputName
}

// Node is one stage of a pipeline. Only the fields relevant to Kind are
// meaningful; use the constructors below rather than building a Node
// literal directly, since they establish the right zero values (empty
// outputs, no inputs) for the variant.
type Node struct {
	Kind     Kind
	ID       string
	Position Position
	Outputs  map[string]struct{}

	// LoadCsv
	Path string

	// Select
	Columns []SelectColumn

	// Filter
	Filters []Filter

	// Aggregate
	Aggregates []Aggregate

	// Sort
	Sorters []Sorter

	// Join
	JoinType JoinType
	JoinCols []JoinColumn

	// Select, Filter, Aggregate, Sort share a single input slot.
	Input *string

	// Join
	LeftInput  *string
	RightInput *string

	// Union
	PrimaryInput   *string
	SecondaryInput *string
}

func newNode(kind Kind, id string, pos Position) Node {
	return Node{Kind: kind, ID: id, Position: pos, Outputs: map[string]struct{}{}}
}

func NewLoadCsv(id string, pos Position, path string) Node {
	n := newNode(KindLoadCsv, id, pos)
	n.Path = path
	return n
}

func NewSelect(id string, pos Position) Node { return newNode(KindSelect, id, pos) }

func NewFilter(id string, pos Position) Node { return newNode(KindFilter, id, pos) }

func NewAggregate(id string, pos Position) Node { return newNode(KindAggregate, id, pos) }

func NewSort(id string, pos Position) Node { return newNode(KindSort, id, pos) }

func NewJoin(id string, pos Position) Node {
	n := newNode(KindJoin, id, pos)
	n.JoinType = JoinInner
	return n
}

func NewUnion(id string, pos Position) Node { return newNode(KindUnion, id, pos) }

// Inputs returns this node's input slots in fixed per-variant order,
// each possibly nil. LoadCsv has none; Select/Filter/Aggregate/Sort
// have one; Join and Union have two.
func (n Node) Inputs() []*string {
	switch n.Kind {
	case KindLoadCsv:
		return nil
	case KindJoin:
		return []*string{n.LeftInput, n.RightInput}
	case KindUnion:
		return []*string{n.PrimaryInput, n.SecondaryInput}
	default:
		return []*string{n.Input}
	}
}

// InputNames returns the InputName matching the slots Inputs returns,
// in the same order.
func (n Node) InputNames() []InputName {
	switch n.Kind {
	case KindLoadCsv:
		return nil
	case KindJoin, KindUnion:
		return []InputName{Primary, Secondary}
	default:
		return []InputName{Primary}
	}
}

// InputAt returns the current value of the named input slot.
func (n Node) InputAt(name InputName) *string {
	switch n.Kind {
	case KindJoin:
		if name == Secondary {
			return n.RightInput
		}
		return n.LeftInput
	case KindUnion:
		if name == Secondary {
			return n.SecondaryInput
		}
		return n.PrimaryInput
	default:
		return n.Input
	}
}

// WithInput returns a copy of n with the named input slot set to id
// (nil clears it).
func (n Node) WithInput(name InputName, id *string) Node {
	out := n
	switch n.Kind {
	case KindJoin:
		if name == Secondary {
			out.RightInput = id
		} else {
			out.LeftInput = id
		}
	case KindUnion:
		if name == Secondary {
			out.SecondaryInput = id
		} else {
			out.PrimaryInput = id
		}
	default:
		out.Input = id
	}
	return out
}

// InsertOutput records that id names this node as one of its inputs.
func (n Node) InsertOutput(id string) {
	n.Outputs[id] = struct{}{}
}

// RemoveOutput undoes InsertOutput.
func (n Node) RemoveOutput(id string) {
	delete(n.Outputs, id)
}

// Clone returns a copy of n that shares no mutable state with it: a
// fresh Outputs map (InsertOutput/RemoveOutput mutate the map in
// place, so sharing it would race with whatever node n still belongs
// to) and fresh backing arrays for its list fields. Used to hand out
// a node graph that the owning session goroutine can keep mutating
// without the recipient observing a half-applied state.
func (n Node) Clone() Node {
	out := n
	if n.Outputs != nil {
		out.Outputs = make(map[string]struct{}, len(n.Outputs))
		for id := range n.Outputs {
			out.Outputs[id] = struct{}{}
		}
	}
	if n.Columns != nil {
		out.Columns = append([]SelectColumn{}, n.Columns...)
	}
	if n.Filters != nil {
		out.Filters = append([]Filter{}, n.Filters...)
	}
	if n.Aggregates != nil {
		out.Aggregates = append([]Aggregate{}, n.Aggregates...)
	}
	if n.Sorters != nil {
		out.Sorters = append([]Sorter{}, n.Sorters...)
	}
	if n.JoinCols != nil {
		out.JoinCols = append([]JoinColumn{}, n.JoinCols...)
	}
	return out
}

// HasOutputs reports whether any node currently names n as an input.
func (n Node) HasOutputs() bool { return len(n.Outputs) > 0 }

// HasInputs reports whether any of n's input slots is set.
func (n Node) HasInputs() bool {
	for _, in := range n.Inputs() {
		if in != nil {
			return true
		}
	}
	return false
}

// Aggregate is one column aggregation inside an Aggregate node.
type Aggregate struct {
	Column      string               `json:"column"`
	Computation AggregateComputation `json:"computation"`
	Alias       string               `json:"alias,omitempty"`
}

type AggregateComputation int

const (
	AggCount AggregateComputation = iota
	AggGroup
	AggMax
	AggMean
	AggMedian
	AggMin
	AggSum
)

// SelectColumn renames (or passes through) one column inside a Select node.
type SelectColumn struct {
	Column string `json:"column"`
	Alias  string `json:"alias,omitempty"`
}

// Sorter is one sort key inside a Sort node.
type Sorter struct {
	Column    string        `json:"column"`
	Direction SortDirection `json:"direction"`
}

type SortDirection int

const (
	Asc SortDirection = iota
	Desc
)

// JoinType is the join semantics of a Join node.
type JoinType int

const (
	JoinInner JoinType = iota
	JoinLeft
	JoinRight
	JoinFull
	JoinCross
)

// JoinColumn pairs one left-side and one right-side join key.
type JoinColumn struct {
	Left  string `json:"left"`
	Right string `json:"right"`
}

// ColumnOrConstant is the operand of a FilterPredicate comparison: either
// the name of a column to read per-row, or a literal string constant.
type ColumnOrConstant struct {
	IsColumn bool
	Value    string
}

func Column(name string) ColumnOrConstant    { return ColumnOrConstant{IsColumn: true, Value: name} }
func Constant(value string) ColumnOrConstant { return ColumnOrConstant{Value: value} }

// FilterPredicate is one row-filtering condition inside a Filter node.
type FilterPredicate struct {
	Kind    FilterKind       `json:"kind"`
	Operand ColumnOrConstant `json:"operand"`
}

type FilterKind int

const (
	IsEqualTo FilterKind = iota
	IsNotEqualTo
	IsLessThan
	IsLessThanEqual
	IsGreaterThan
	IsGreaterThanEqual
	IsNull
	IsNotNull
)

// Filter is one predicate applied against one column inside a Filter node.
type Filter struct {
	Column    string          `json:"column"`
	Predicate FilterPredicate `json:"predicate"`
}
