package ot

import (
	"encoding/json"
	"fmt"

	"github.com/polda-go/pipelinedoc/pkg/otvalue"
)

// wireKind is the snake_case "type" tag for each generic Operation
// variant, per the §6 wire rule shared with pkg/command's domain
// operations.
var wireKind = map[Kind]string{
	KindInsert:      "insert",
	KindDelete:      "delete",
	KindInsertChars: "insert_chars",
	KindDeleteChars: "delete_chars",
	KindMove:        "move",
	KindSet:         "set",
	KindIncrement:   "increment",
	KindDecrement:   "decrement",
}

var kindFromWire = func() map[string]Kind {
	out := make(map[string]Kind, len(wireKind))
	for k, v := range wireKind {
		out[v] = k
	}
	return out
}()

type wireOp struct {
	Type string `json:"type"`

	Pos    *otvalue.Path   `json:"pos,omitempty"`
	Values []otvalue.Value `json:"values,omitempty"`
	Len    int             `json:"len,omitempty"`
	Chars  string          `json:"chars,omitempty"`
	From   *otvalue.Path   `json:"from,omitempty"`
	To     *otvalue.Path   `json:"to,omitempty"`
	Val    *otvalue.Value  `json:"val,omitempty"`
	By     float64         `json:"by,omitempty"`
}

func (op Operation) MarshalJSON() ([]byte, error) {
	tag, ok := wireKind[op.Kind]
	if !ok {
		return nil, fmt.Errorf("ot: unknown operation kind %d", op.Kind)
	}
	w := wireOp{Type: tag}
	switch op.Kind {
	case KindInsert:
		w.Pos, w.Values = &op.Pos, op.Values
	case KindDelete:
		w.Pos, w.Len = &op.Pos, op.Len
	case KindInsertChars:
		w.Pos, w.Chars = &op.Pos, op.Chars
	case KindDeleteChars:
		w.Pos, w.Len = &op.Pos, op.Len
	case KindMove:
		w.From, w.To = &op.From, &op.To
	case KindSet:
		w.Pos, w.Val = &op.Pos, &op.Val
	case KindIncrement, KindDecrement:
		w.Pos, w.By = &op.Pos, op.By
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
		return fmt.Errorf("ot: unknown operation type %q", w.Type)
	}
	out := Operation{Kind: kind, Len: w.Len, Chars: w.Chars, By: w.By}
	if w.Pos != nil {
		out.Pos = *w.Pos
	}
	if w.From != nil {
		out.From = *w.From
	}
	if w.To != nil {
		out.To = *w.To
	}
	if w.Val != nil {
		out.Val = *w.Val
	}
	out.Values = w.Values
	*op = out
	return nil
}
