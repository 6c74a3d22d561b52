// Package ot implements the generic, path-addressed operational
// transformation algebra: an Operation union over otvalue.Path targets,
// the transform_forward / transform_backward_or_map primitives that let
// a Position track its meaning across a concurrent edit, the Rebase
// engine that reconciles a batch of transactions against a base history,
// and a Session type that serializes concurrent transactions against a
// Transformable document.
package ot

import (
	"fmt"

	"github.com/polda-go/pipelinedoc/pkg/otvalue"
)

// Kind discriminates the variant carried by an Operation.
type Kind int

const (
	KindInsert Kind = iota
	KindDelete
	KindInsertChars
	KindDeleteChars
	KindMove
	KindSet
	KindIncrement
	KindDecrement
)

// Operation is the generic edit primitive the rebase engine and a
// Transformable document both operate on. Only the fields relevant to
// Kind are meaningful; see the constructors below.
type Operation struct {
	Kind   Kind
	Pos    otvalue.Path
	Values []otvalue.Value
	Len    int
	Chars  string
	From   otvalue.Path
	To     otvalue.Path
	Val    otvalue.Value
	By     float64
}

func Insert(pos otvalue.Path, values []otvalue.Value) Operation {
	return Operation{Kind: KindInsert, Pos: pos, Values: values}
}

func Delete(pos otvalue.Path, length int) Operation {
	return Operation{Kind: KindDelete, Pos: pos, Len: length}
}

func InsertChars(pos otvalue.Path, chars string) Operation {
	return Operation{Kind: KindInsertChars, Pos: pos, Chars: chars}
}

func DeleteChars(pos otvalue.Path, length int) Operation {
	return Operation{Kind: KindDeleteChars, Pos: pos, Len: length}
}

func Move(from, to otvalue.Path) Operation {
	return Operation{Kind: KindMove, From: from, To: to}
}

func Set(pos otvalue.Path, val otvalue.Value) Operation {
	return Operation{Kind: KindSet, Pos: pos, Val: val}
}

func Increment(pos otvalue.Path, by float64) Operation {
	return Operation{Kind: KindIncrement, Pos: pos, By: by}
}

func Decrement(pos otvalue.Path, by float64) Operation {
	return Operation{Kind: KindDecrement, Pos: pos, By: by}
}

func (op Operation) charsLen() int {
	return len([]rune(op.Chars))
}

func (op Operation) String() string {
	switch op.Kind {
	case KindInsert:
		return fmt.Sprintf("insert(%v, %d values)", op.Pos, len(op.Values))
	case KindDelete:
		return fmt.Sprintf("delete(%v, %d)", op.Pos, op.Len)
	case KindInsertChars:
		return fmt.Sprintf("insert_chars(%v, %q)", op.Pos, op.Chars)
	case KindDeleteChars:
		return fmt.Sprintf("delete_chars(%v, %d)", op.Pos, op.Len)
	case KindMove:
		return fmt.Sprintf("move(%v -> %v)", op.From, op.To)
	case KindSet:
		return fmt.Sprintf("set(%v)", op.Pos)
	case KindIncrement:
		return fmt.Sprintf("increment(%v, %g)", op.Pos, op.By)
	case KindDecrement:
		return fmt.Sprintf("decrement(%v, %g)", op.Pos, op.By)
	default:
		return "unknown op"
	}
}
