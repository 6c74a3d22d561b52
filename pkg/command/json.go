package command

import (
	"encoding/json"
	"fmt"

	"github.com/polda-go/pipelinedoc/pkg/pipeline"
)

// wireKind is the snake_case "type" tag used on the wire for each Kind,
// per the generic rule in the transport layer: a domain operation is a
// JSON object discriminated by "type", with the fields of its variant.
var wireKind = map[Kind]string{
	KindInsertNode:  "insert_node",
	KindDeleteNode:  "delete_node",
	KindInsertIndex: "insert_index",
	KindDeleteIndex: "delete_index",

	KindSetPosition: "set_position",
	KindSetInput:    "set_input",
	KindSetCsvPath:  "set_csv_path",
	KindSetJoinType: "set_join_type",

	KindInsertAggregate:   "insert_aggregate",
	KindDeleteAggregate:   "delete_aggregate",
	KindSetAggregateField: "set_aggregate_field",

	KindInsertFilter:   "insert_filter",
	KindDeleteFilter:   "delete_filter",
	KindSetFilterField: "set_filter_field",

	KindInsertJoinColumn:   "insert_join_column",
	KindDeleteJoinColumn:   "delete_join_column",
	KindSetJoinColumnField: "set_join_column_field",

	KindInsertSelect:   "insert_select",
	KindDeleteSelect:   "delete_select",
	KindSetSelectField: "set_select_field",

	KindInsertSorter:   "insert_sorter",
	KindDeleteSorter:   "delete_sorter",
	KindSetSorterField: "set_sorter_field",
}

var kindFromWire = func() map[string]Kind {
	out := make(map[string]Kind, len(wireKind))
	for k, v := range wireKind {
		out[v] = k
	}
	return out
}()

// wireOp mirrors Operation's fields with json tags; Item/FieldValue are
// passed through as raw JSON since their Go type depends on List.
type wireOp struct {
	Type string `json:"type"`

	NodeID string        `json:"node_id,omitempty"`
	Node   *pipeline.Node `json:"node,omitempty"`

	Index int `json:"index,omitempty"`

	Position *pipeline.Position `json:"position,omitempty"`

	InputName string  `json:"input_name,omitempty"`
	Input     *string `json:"input,omitempty"`

	CsvPath string `json:"csv_path,omitempty"`

	JoinType string `json:"join_type,omitempty"`

	Item json.RawMessage `json:"item,omitempty"`

	Field      string          `json:"field,omitempty"`
	FieldValue json.RawMessage `json:"field_value,omitempty"`
}

func (op Operation) MarshalJSON() ([]byte, error) {
	tag, ok := wireKind[op.Kind]
	if !ok {
		return nil, fmt.Errorf("command: unknown operation kind %d", op.Kind)
	}
	w := wireOp{Type: tag, NodeID: op.NodeID, Index: op.Index, Field: op.Field}

	if op.Kind == KindInsertNode {
		n := op.Node
		w.Node = &n
	}
	if op.Kind == KindSetPosition {
		p := op.Position
		w.Position = &p
	}
	if op.Kind == KindSetInput {
		w.InputName = op.InputName.String()
		w.Input = op.Input
	}
	if op.Kind == KindSetCsvPath {
		w.CsvPath = op.CsvPath
	}
	if op.Kind == KindSetJoinType {
		w.JoinType = joinTypeWire(op.JoinType)
	}
	if isListInsert(op.Kind) && op.Item != nil {
		raw, err := json.Marshal(op.Item)
		if err != nil {
			return nil, err
		}
		w.Item = raw
	}
	if op.FieldValue != nil {
		raw, err := json.Marshal(op.FieldValue)
		if err != nil {
			return nil, err
		}
		w.FieldValue = raw
	}
	return json.Marshal(w)
}

func (op *Operation) UnmarshalJSON(data []byte) error {
	var w wireOp
	if err := json.Unmarshal(data, &w); err != nil {
		return err
	}
	kind, ok := kindFromWire[w.Type]
	if !ok {
		return fmt.Errorf("command: unknown operation type %q", w.Type)
	}

	out := Operation{Kind: kind, NodeID: w.NodeID, Index: w.Index, Field: w.Field}

	switch kind {
	case KindInsertNode:
		if w.Node == nil {
			return fmt.Errorf("command: insert_node missing node")
		}
		out.Node = *w.Node
		out.NodeID = w.Node.ID
	case KindSetPosition:
		if w.Position == nil {
			return fmt.Errorf("command: set_position missing position")
		}
		out.Position = *w.Position
	case KindSetInput:
		out.InputName = inputNameFromWire(w.InputName)
		out.Input = w.Input
	case KindSetCsvPath:
		out.CsvPath = w.CsvPath
	case KindSetJoinType:
		jt, err := joinTypeFromWire(w.JoinType)
		if err != nil {
			return err
		}
		out.JoinType = jt
	}

	if isListInsert(kind) && len(w.Item) > 0 {
		item, err := decodeListItem(kind, w.Item)
		if err != nil {
			return err
		}
		out.Item = item
		out.List = listKindFor(kind)
	} else if isListOp(kind) {
		out.List = listKindFor(kind)
	}

	if len(w.FieldValue) > 0 {
		v, err := decodeFieldValue(kind, w.Field, w.FieldValue)
		if err != nil {
			return err
		}
		out.FieldValue = v
	}

	*op = out
	return nil
}

// decodeFieldValue decodes a SetXField's field_value into the concrete Go
// type the field holds, the same way decodeListItem does for list inserts.
// Decoding into interface{} here would hand the executor a float64/map for
// enum/struct fields (computation, predicate, direction) and its type
// assertion would panic on valid wire input; decode each field by name
// instead so a malformed value comes back as a JSON error, not a crash.
func decodeFieldValue(kind Kind, field string, raw json.RawMessage) (interface{}, error) {
	var err error
	switch kind {
	case KindSetAggregateField:
		switch field {
		case "computation":
			var v pipeline.AggregateComputation
			err = json.Unmarshal(raw, &v)
			return v, err
		case "column", "alias":
			var v string
			err = json.Unmarshal(raw, &v)
			return v, err
		}
	case KindSetFilterField:
		switch field {
		case "predicate":
			var v pipeline.FilterPredicate
			err = json.Unmarshal(raw, &v)
			return v, err
		case "column":
			var v string
			err = json.Unmarshal(raw, &v)
			return v, err
		}
	case KindSetJoinColumnField:
		switch field {
		case "left", "right":
			var v string
			err = json.Unmarshal(raw, &v)
			return v, err
		}
	case KindSetSelectField:
		switch field {
		case "column", "alias":
			var v string
			err = json.Unmarshal(raw, &v)
			return v, err
		}
	case KindSetSorterField:
		switch field {
		case "direction":
			var v pipeline.SortDirection
			err = json.Unmarshal(raw, &v)
			return v, err
		case "column":
			var v string
			err = json.Unmarshal(raw, &v)
			return v, err
		}
	}
	return nil, fmt.Errorf("command: %v has no field %q", wireKind[kind], field)
}

func listKindFor(k Kind) ListKind {
	switch k {
	case KindInsertAggregate, KindDeleteAggregate, KindSetAggregateField:
		return ListAggregate
	case KindInsertFilter, KindDeleteFilter, KindSetFilterField:
		return ListFilter
	case KindInsertJoinColumn, KindDeleteJoinColumn, KindSetJoinColumnField:
		return ListJoinColumn
	case KindInsertSelect, KindDeleteSelect, KindSetSelectField:
		return ListSelect
	case KindInsertSorter, KindDeleteSorter, KindSetSorterField:
		return ListSorter
	}
	return 0
}

func decodeListItem(k Kind, raw json.RawMessage) (interface{}, error) {
	switch k {
	case KindInsertAggregate:
		var v pipeline.Aggregate
		err := json.Unmarshal(raw, &v)
		return v, err
	case KindInsertFilter:
		var v pipeline.Filter
		err := json.Unmarshal(raw, &v)
		return v, err
	case KindInsertJoinColumn:
		var v pipeline.JoinColumn
		err := json.Unmarshal(raw, &v)
		return v, err
	case KindInsertSelect:
		var v pipeline.SelectColumn
		err := json.Unmarshal(raw, &v)
		return v, err
	case KindInsertSorter:
		var v pipeline.Sorter
		err := json.Unmarshal(raw, &v)
		return v, err
	}
	return nil, fmt.Errorf("command: %d is not a list insert", k)
}

func inputNameFromWire(s string) pipeline.InputName {
	if s == "secondary" {
		return pipeline.Secondary
	}
	return pipeline.Primary
}

func joinTypeWire(jt pipeline.JoinType) string {
	switch jt {
	case pipeline.JoinLeft:
		return "left"
	case pipeline.JoinRight:
		return "right"
	case pipeline.JoinFull:
		return "full"
	case pipeline.JoinCross:
		return "cross"
	default:
		return "inner"
	}
}

func joinTypeFromWire(s string) (pipeline.JoinType, error) {
	switch s {
	case "inner", "":
		return pipeline.JoinInner, nil
	case "left":
		return pipeline.JoinLeft, nil
	case "right":
		return pipeline.JoinRight, nil
	case "full":
		return pipeline.JoinFull, nil
	case "cross":
		return pipeline.JoinCross, nil
	}
	return 0, fmt.Errorf("command: unknown join type %q", s)
}
