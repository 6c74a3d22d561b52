package pipeline

import (
	"encoding/json"
	"fmt"
)

// Node's wire form is a JSON object tagged by a snake_case "kind",
// carrying only the fields meaningful for that variant, matching the
// tagged-union convention pkg/command uses for its own operations.
type wireNode struct {
	Kind     string         `json:"kind"`
	ID       string         `json:"id"`
	Position Position       `json:"position"`
	Outputs  []string       `json:"outputs,omitempty"`

	Path string `json:"path,omitempty"`

	Columns []SelectColumn `json:"columns,omitempty"`
	Filters []Filter       `json:"filters,omitempty"`

	Aggregates []Aggregate `json:"aggregates,omitempty"`
	Sorters    []Sorter    `json:"sorters,omitempty"`

	JoinType JoinType     `json:"join_type,omitempty"`
	JoinCols []JoinColumn `json:"join_columns,omitempty"`

	Input          *string `json:"input,omitempty"`
	LeftInput      *string `json:"left_input,omitempty"`
	RightInput     *string `json:"right_input,omitempty"`
	PrimaryInput   *string `json:"primary_input,omitempty"`
	SecondaryInput *string `json:"secondary_input,omitempty"`
}

func (k Kind) wireTag() (string, error) {
	switch k {
	case KindLoadCsv:
		return "load_csv", nil
	case KindSelect:
		return "select", nil
	case KindFilter:
		return "filter", nil
	case KindAggregate:
		return "aggregate", nil
	case KindSort:
		return "sort", nil
	case KindJoin:
		return "join", nil
	case KindUnion:
		return "union", nil
	}
	return "", fmt.Errorf("pipeline: unknown node kind %d", k)
}

func kindFromWireTag(tag string) (Kind, error) {
	switch tag {
	case "load_csv":
		return KindLoadCsv, nil
	case "select":
		return KindSelect, nil
	case "filter":
		return KindFilter, nil
	case "aggregate":
		return KindAggregate, nil
	case "sort":
		return KindSort, nil
	case "join":
		return KindJoin, nil
	case "union":
		return KindUnion, nil
	}
	return 0, fmt.Errorf("pipeline: unknown node kind %q", tag)
}

func (n Node) MarshalJSON() ([]byte, error) {
	tag, err := n.Kind.wireTag()
	if err != nil {
		return nil, err
	}
	w := wireNode{Kind: tag, ID: n.ID, Position: n.Position}
	for id := range n.Outputs {
		w.Outputs = append(w.Outputs, id)
	}

	switch n.Kind {
	case KindLoadCsv:
		w.Path = n.Path
	case KindSelect:
		w.Columns = n.Columns
		w.Input = n.Input
	case KindFilter:
		w.Filters = n.Filters
		w.Input = n.Input
	case KindAggregate:
		w.Aggregates = n.Aggregates
		w.Input = n.Input
	case KindSort:
		w.Sorters = n.Sorters
		w.Input = n.Input
	case KindJoin:
		w.JoinType = n.JoinType
		w.JoinCols = n.JoinCols
		w.LeftInput = n.LeftInput
		w.RightInput = n.RightInput
	case KindUnion:
		w.PrimaryInput = n.PrimaryInput
		w.SecondaryInput = n.SecondaryInput
	}
	return json.Marshal(w)
}

func (n *Node) UnmarshalJSON(data []byte) error {
	var w wireNode
	if err := json.Unmarshal(data, &w); err != nil {
		return err
	}
	kind, err := kindFromWireTag(w.Kind)
	if err != nil {
		return err
	}
	out := Node{Kind: kind, ID: w.ID, Position: w.Position, Outputs: map[string]struct{}{}}
	for _, id := range w.Outputs {
		out.Outputs[id] = struct{}{}
	}

	switch kind {
	case KindLoadCsv:
		out.Path = w.Path
	case KindSelect:
		out.Columns = w.Columns
		out.Input = w.Input
	case KindFilter:
		out.Filters = w.Filters
		out.Input = w.Input
	case KindAggregate:
		out.Aggregates = w.Aggregates
		out.Input = w.Input
	case KindSort:
		out.Sorters = w.Sorters
		out.Input = w.Input
	case KindJoin:
		out.JoinType = w.JoinType
		out.JoinCols = w.JoinCols
		out.LeftInput = w.LeftInput
		out.RightInput = w.RightInput
	case KindUnion:
		out.PrimaryInput = w.PrimaryInput
		out.SecondaryInput = w.SecondaryInput
	}
	*n = out
	return nil
}

var aggWire = map[AggregateComputation]string{
	AggCount:  "count",
	AggGroup:  "group",
	AggMax:    "max",
	AggMean:   "mean",
	AggMedian: "median",
	AggMin:    "min",
	AggSum:    "sum",
}

func (c AggregateComputation) MarshalJSON() ([]byte, error) {
	tag, ok := aggWire[c]
	if !ok {
		return nil, fmt.Errorf("pipeline: unknown aggregate computation %d", c)
	}
	return json.Marshal(tag)
}

func (c *AggregateComputation) UnmarshalJSON(data []byte) error {
	var tag string
	if err := json.Unmarshal(data, &tag); err != nil {
		return err
	}
	for k, v := range aggWire {
		if v == tag {
			*c = k
			return nil
		}
	}
	return fmt.Errorf("pipeline: unknown aggregate computation %q", tag)
}

func (d SortDirection) MarshalJSON() ([]byte, error) {
	if d == Desc {
		return json.Marshal("desc")
	}
	return json.Marshal("asc")
}

func (d *SortDirection) UnmarshalJSON(data []byte) error {
	var tag string
	if err := json.Unmarshal(data, &tag); err != nil {
		return err
	}
	if tag == "desc" {
		*d = Desc
	} else {
		*d = Asc
	}
	return nil
}

var joinTypeWireTag = map[JoinType]string{
	JoinInner: "inner",
	JoinLeft:  "left",
	JoinRight: "right",
	JoinFull:  "full",
	JoinCross: "cross",
}

func (jt JoinType) MarshalJSON() ([]byte, error) {
	tag, ok := joinTypeWireTag[jt]
	if !ok {
		tag = "inner"
	}
	return json.Marshal(tag)
}

func (jt *JoinType) UnmarshalJSON(data []byte) error {
	var tag string
	if err := json.Unmarshal(data, &tag); err != nil {
		return err
	}
	for k, v := range joinTypeWireTag {
		if v == tag {
			*jt = k
			return nil
		}
	}
	return fmt.Errorf("pipeline: unknown join type %q", tag)
}

var filterKindWire = map[FilterKind]string{
	IsEqualTo:          "eq",
	IsNotEqualTo:       "ne",
	IsLessThan:         "lt",
	IsLessThanEqual:    "lte",
	IsGreaterThan:      "gt",
	IsGreaterThanEqual: "gte",
	IsNull:             "is_null",
	IsNotNull:          "is_not_null",
}

func (k FilterKind) MarshalJSON() ([]byte, error) {
	tag, ok := filterKindWire[k]
	if !ok {
		return nil, fmt.Errorf("pipeline: unknown filter kind %d", k)
	}
	return json.Marshal(tag)
}

func (k *FilterKind) UnmarshalJSON(data []byte) error {
	var tag string
	if err := json.Unmarshal(data, &tag); err != nil {
		return err
	}
	for kk, v := range filterKindWire {
		if v == tag {
			*k = kk
			return nil
		}
	}
	return fmt.Errorf("pipeline: unknown filter kind %q", tag)
}

type wireColumnOrConstant struct {
	Column   string `json:"column,omitempty"`
	Constant string `json:"constant,omitempty"`
}

func (c ColumnOrConstant) MarshalJSON() ([]byte, error) {
	if c.IsColumn {
		return json.Marshal(wireColumnOrConstant{Column: c.Value})
	}
	return json.Marshal(wireColumnOrConstant{Constant: c.Value})
}

func (c *ColumnOrConstant) UnmarshalJSON(data []byte) error {
	var w wireColumnOrConstant
	if err := json.Unmarshal(data, &w); err != nil {
		return err
	}
	if w.Column != "" {
		*c = Column(w.Column)
	} else {
		*c = Constant(w.Constant)
	}
	return nil
}
