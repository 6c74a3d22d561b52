package ot

import (
	"fmt"

	"github.com/polda-go/pipelinedoc/pkg/otvalue"
)

// BackTransform reports how TransformBackwardOrMap resolved a position.
type BackTransform int

const (
	// Transformed means the position was rewritten to stay meaningful.
	Transformed BackTransform = iota
	// Mapped means the operation deleted the position's target, but a
	// map operation recreated an equivalent target elsewhere; the
	// position was redirected there.
	Mapped
	// None means the position's target no longer exists and there is
	// no map to redirect it to.
	None
)

// TransformForward advances pos across op, which is assumed to have
// already happened. extendRange controls whether an insert exactly at a
// RangeEnd position is absorbed into the range (used when rebasing a
// transaction's own later operations against its own earlier ones) or
// left outside it (used against operations from other transactions).
// The returned bool is false when op removes pos's target entirely
// (e.g. a Set strictly above the position or exactly at a Change
// position, or a Delete spanning an Exact position); a Set exactly at
// an Exact position leaves it in place.
func TransformForward(pos otvalue.Path, op Operation, pt otvalue.PathType, extendRange bool) (otvalue.Path, bool, error) {
	switch op.Kind {
	case KindInsert:
		if pos.IsRoot() {
			return pos, true, nil
		}
		if op.Pos.IsRoot() {
			return pos, false, &InvalidOperationError{Op: op}
		}
		if !op.Pos.IsParentAncestor(pos) {
			return pos, true, nil
		}
		at := op.Pos.Len() - 1
		opLeaf, selfLeaf := op.Pos.Leaf(), pos.Branch(at)
		if !opLeaf.IsIndex() || !selfLeaf.IsIndex() {
			return pos, false, &IncompatiblePositionsError{A: pos, B: op.Pos}
		}
		opI, i := opLeaf.Index, selfLeaf.Index
		if i > opI || (i == opI && (pos.Len() != op.Pos.Len() || pt != otvalue.RangeEnd || extendRange)) {
			pos = pos.WithBranch(at, otvalue.Index(i+len(op.Values)))
		}
		return pos, true, nil

	case KindDelete:
		if pos.IsRoot() {
			return pos, true, nil
		}
		if op.Pos.IsRoot() {
			return pos, false, &InvalidOperationError{Op: op}
		}
		if !op.Pos.IsParentAncestor(pos) {
			return pos, true, nil
		}
		at := op.Pos.Len() - 1
		opLeaf, selfLeaf := op.Pos.Leaf(), pos.Branch(at)
		if !opLeaf.IsIndex() || !selfLeaf.IsIndex() {
			return pos, false, &IncompatiblePositionsError{A: pos, B: op.Pos}
		}
		opI, i := opLeaf.Index, selfLeaf.Index
		if i < opI+op.Len {
			if pos.Len() == op.Pos.Len() {
				switch pt {
				case otvalue.RangeStart, otvalue.RangeEnd:
					if i > opI {
						pos = pos.WithBranch(at, otvalue.Index(opI))
					}
					return pos, true, nil
				case otvalue.Anchor:
					return pos, i <= opI, nil
				default: // Exact, Change
					return pos, i < opI, nil
				}
			}
			return pos, i < opI, nil
		}
		pos = pos.WithBranch(at, otvalue.Index(i-op.Len))
		return pos, true, nil

	case KindInsertChars:
		if pos.IsRoot() {
			return pos, true, nil
		}
		if op.Pos.IsRoot() {
			return pos, false, &InvalidOperationError{Op: op}
		}
		if !op.Pos.IsSibling(pos) {
			return pos, true, nil
		}
		at := op.Pos.Len() - 1
		opLeaf, selfLeaf := op.Pos.Leaf(), pos.Branch(at)
		if !opLeaf.IsIndex() || !selfLeaf.IsIndex() {
			return pos, false, &IncompatiblePositionsError{A: pos, B: op.Pos}
		}
		opI, i := opLeaf.Index, selfLeaf.Index
		if i > opI || (i == opI && (pt != otvalue.RangeEnd || extendRange)) {
			pos = pos.WithBranch(at, otvalue.Index(i+op.charsLen()))
		}
		return pos, true, nil

	case KindDeleteChars:
		if pos.IsRoot() {
			return pos, true, nil
		}
		if op.Pos.IsRoot() {
			return pos, false, &InvalidOperationError{Op: op}
		}
		if !op.Pos.IsSibling(pos) {
			return pos, true, nil
		}
		at := op.Pos.Len() - 1
		opLeaf, selfLeaf := op.Pos.Leaf(), pos.Branch(at)
		if !opLeaf.IsIndex() || !selfLeaf.IsIndex() {
			return pos, false, &IncompatiblePositionsError{A: pos, B: op.Pos}
		}
		opI, i := opLeaf.Index, selfLeaf.Index
		if i < opI+op.Len {
			switch pt {
			case otvalue.RangeStart, otvalue.RangeEnd:
				if i > opI {
					pos = pos.WithBranch(at, otvalue.Index(opI))
				}
				return pos, true, nil
			case otvalue.Anchor:
				return pos, i <= opI, nil
			default:
				return pos, i < opI, nil
			}
		}
		pos = pos.WithBranch(at, otvalue.Index(i-op.Len))
		return pos, true, nil

	case KindMove:
		return transformForwardMove(pos, op, pt, extendRange)

	case KindSet:
		if op.Pos.IsAncestorOrEqual(pos) && (pos.Len() != op.Pos.Len() || pt == otvalue.Change) {
			return pos, false, nil
		}
		return pos, true, nil

	default: // Increment, Decrement never relocate another position
		return pos, true, nil
	}
}

func transformForwardMove(pos otvalue.Path, op Operation, pt otvalue.PathType, extendRange bool) (otvalue.Path, bool, error) {
	from, to := op.From, op.To
	if from.Equal(to) {
		return pos, false, &InvalidOperationError{Op: op}
	}
	if from.IsAncestor(to) {
		return pos, false, &InvalidOperationError{Op: op}
	}
	if from.IsRoot() {
		return pos, false, &InvalidOperationError{Op: op}
	}

	if to.IsRoot() {
		if from.IsAncestorOrEqual(pos) && (pos.Len() != from.Len() || pt == otvalue.Exact || pt == otvalue.Change) {
			pos = pos.WithHeadReplaced(from.Len(), to)
			return pos, true, nil
		}
		return pos, false, nil
	}

	if from.IsParentAncestor(pos) {
		fromEnd := from.Len() - 1
		selfLeaf, fromLeaf := pos.Branch(fromEnd), from.Leaf()
		if selfLeaf.IsIndex() && fromLeaf.IsIndex() {
			i, fromI := selfLeaf.Index, fromLeaf.Index
			if to.IsSibling(from) {
				toLeaf := to.Leaf()
				if !toLeaf.IsIndex() {
					return pos, false, &IncompatiblePositionsError{A: pos, B: from}
				}
				toI := toLeaf.Index
				if i == fromI && (from.Len() != pos.Len() || pt == otvalue.Exact || pt == otvalue.Change) {
					newI := toI
					if fromI < toI {
						newI = toI - 1
					}
					pos = pos.WithBranch(from.Len()-1, otvalue.Index(newI))
					return pos, true, nil
				}
				newI := i
				if i > fromI {
					newI--
				}
				if i > toI || (i == toI && (pos.Len() != to.Len() || pt != otvalue.RangeEnd || extendRange)) {
					newI++
				}
				pos = pos.WithBranch(fromEnd, otvalue.Index(newI))
				return pos, true, nil
			}
			if i == fromI && (pt == otvalue.Exact || pt == otvalue.Change) {
				pos = pos.WithHeadReplaced(from.Len(), to)
				return pos, true, nil
			}
			if i > fromI {
				pos = pos.WithBranch(fromEnd, otvalue.Index(i-1))
				return pos, true, nil
			}
			return pos, true, nil
		}
		if selfLeaf.IsField() && fromLeaf.IsField() {
			if selfLeaf.Name == fromLeaf.Name {
				pos = pos.WithHeadReplaced(from.Len(), to)
				return pos, true, nil
			}
			if to.IsParentAncestor(pos) {
				return pos, false, nil
			}
			return pos, true, nil
		}
		return pos, false, &IncompatiblePositionsError{A: pos, B: from}
	}

	if to.IsParentAncestor(pos) {
		at := to.Len() - 1
		selfLeaf, toLeaf := pos.Branch(at), to.Leaf()
		if selfLeaf.IsIndex() && toLeaf.IsIndex() {
			i, toI := selfLeaf.Index, toLeaf.Index
			if i > toI || (i == toI && (pos.Len() != to.Len() || pt != otvalue.RangeEnd || extendRange)) {
				pos = pos.WithBranch(at, otvalue.Index(i+1))
			}
			return pos, true, nil
		}
		if selfLeaf.IsField() && toLeaf.IsField() {
			if pos.Len() == to.Len() && pt == otvalue.Exact {
				return pos, true, nil
			}
			return pos, selfLeaf.Name != toLeaf.Name, nil
		}
		return pos, false, &IncompatiblePositionsError{A: pos, B: to}
	}

	return pos, true, nil
}

// TransformBackwardOrMap rewinds pos across op, which is assumed to
// have already been applied ahead of pos's owning operation in history.
// mapOp, when non-nil, is the corresponding operation in the rebased
// timeline; it lets a position whose target op deleted be redirected
// to wherever that target was recreated (BackTransform == Mapped).
func TransformBackwardOrMap(pos otvalue.Path, op Operation, mapOp *Operation, pt otvalue.PathType) (otvalue.Path, BackTransform, error) {
	switch op.Kind {
	case KindInsert:
		if op.Pos.IsRoot() {
			return pos, None, &InvalidOperationError{Op: op}
		}
		if !op.Pos.IsParentAncestor(pos) {
			return pos, Transformed, nil
		}
		at := op.Pos.Len() - 1
		opLeaf, selfLeaf := op.Pos.Leaf(), pos.Branch(at)
		if !opLeaf.IsIndex() || !selfLeaf.IsIndex() {
			return pos, None, &IncompatiblePositionsError{A: op.Pos, B: pos}
		}
		opI, i := opLeaf.Index, selfLeaf.Index
		switch {
		case i >= opI+len(op.Values):
			pos = pos.WithBranch(at, otvalue.Index(i-len(op.Values)))
			return pos, Transformed, nil
		case i >= opI:
			if mapOp != nil && mapOp.Kind == KindInsert && mapOp.Pos.Leaf().IsIndex() {
				mapI := mapOp.Pos.Leaf().Index
				offset := i - opI
				newI := mapI + offset
				pos = pos.WithHeadReplaced(op.Pos.Len(), mapOp.Pos)
				pos = pos.WithBranch(mapOp.Pos.Len()-1, otvalue.Index(newI))
				return pos, Mapped, nil
			}
			if pos.Len() == op.Pos.Len() && (pt == otvalue.Anchor || pt == otvalue.RangeStart || pt == otvalue.RangeEnd) {
				return op.Pos, Transformed, nil
			}
			return pos, None, nil
		default:
			return pos, Transformed, nil
		}

	case KindDelete:
		if op.Pos.IsRoot() {
			return pos, None, &InvalidOperationError{Op: op}
		}
		if !op.Pos.IsParentAncestor(pos) {
			return pos, Transformed, nil
		}
		at := op.Pos.Len() - 1
		opLeaf, selfLeaf := op.Pos.Leaf(), pos.Branch(at)
		if !opLeaf.IsIndex() || !selfLeaf.IsIndex() {
			return pos, None, &IncompatiblePositionsError{A: op.Pos, B: pos}
		}
		opI, i := opLeaf.Index, selfLeaf.Index
		if i >= opI {
			pos = pos.WithBranch(at, otvalue.Index(i+op.Len))
		}
		return pos, Transformed, nil

	case KindInsertChars:
		if !op.Pos.IsSibling(pos) {
			return pos, Transformed, nil
		}
		opLeaf, selfLeaf := op.Pos.Leaf(), pos.Leaf()
		if !opLeaf.IsIndex() || !selfLeaf.IsIndex() {
			return pos, None, &IncompatiblePositionsError{A: pos, B: op.Pos}
		}
		opI, i := opLeaf.Index, selfLeaf.Index
		switch {
		case i >= opI+op.charsLen():
			pos = pos.WithBranch(pos.Len()-1, otvalue.Index(i-op.charsLen()))
			return pos, Transformed, nil
		case i >= opI:
			if mapOp != nil && mapOp.Kind == KindInsertChars && mapOp.Pos.Leaf().IsIndex() {
				mapI := mapOp.Pos.Leaf().Index
				offset := i - opI
				newI := mapI + offset
				pos = pos.WithHeadReplaced(op.Pos.Len(), mapOp.Pos)
				pos = pos.WithBranch(mapOp.Pos.Len()-1, otvalue.Index(newI))
				return pos, Mapped, nil
			}
			if pos.Len() == op.Pos.Len() && (pt == otvalue.Anchor || pt == otvalue.RangeStart || pt == otvalue.RangeEnd) {
				return op.Pos, Transformed, nil
			}
			return pos, None, nil
		default:
			return pos, Transformed, nil
		}

	case KindDeleteChars:
		if !op.Pos.IsSibling(pos) {
			return pos, Transformed, nil
		}
		at := op.Pos.Len() - 1
		opLeaf, selfLeaf := op.Pos.Leaf(), pos.Branch(at)
		if !opLeaf.IsIndex() || !selfLeaf.IsIndex() {
			return pos, None, &IncompatiblePositionsError{A: op.Pos, B: pos}
		}
		opI, i := opLeaf.Index, selfLeaf.Index
		if i >= opI {
			pos = pos.WithBranch(at, otvalue.Index(i+op.Len))
		}
		return pos, Transformed, nil

	case KindMove:
		return transformBackwardMove(pos, op, mapOp, pt)

	case KindSet:
		if pos.Len() >= op.Pos.Len() && pos.HasPrefix(op.Pos) {
			if mapOp != nil && mapOp.Kind == KindSet {
				pos = pos.WithHeadReplaced(op.Pos.Len(), mapOp.Pos)
				return pos, Mapped, nil
			}
			return pos, None, nil
		}
		return pos, Transformed, nil

	default:
		return pos, Transformed, nil
	}
}

func transformBackwardMove(pos otvalue.Path, op Operation, mapOp *Operation, pt otvalue.PathType) (otvalue.Path, BackTransform, error) {
	from, to := op.From, op.To
	if from.Equal(to) {
		return pos, Transformed, nil
	}
	if to.IsRoot() {
		pos = pos.WithHeadReplaced(0, from)
		return pos, Transformed, nil
	}
	if from.IsAncestor(to) {
		return pos, None, &InvalidOperationError{Op: op}
	}

	toParentIsAncestor := to.IsParentAncestor(pos)
	fromParentIsAncestor := from.IsParentAncestor(pos)
	moveUnderSameParent := toParentIsAncestor && from.IsSibling(to)

	if moveUnderSameParent {
		selfLeaf, fromLeaf, toLeaf := pos.Branch(to.Len()-1), from.Leaf(), to.Leaf()
		if selfLeaf.IsIndex() && fromLeaf.IsIndex() && toLeaf.IsIndex() {
			i, fi, ti := selfLeaf.Index, fromLeaf.Index, toLeaf.Index
			if fi < ti {
				ti--
			}
			if i == ti {
				if pos.Len() != to.Len() || pt == otvalue.Exact || pt == otvalue.Change {
					pos = pos.WithBranch(to.Len()-1, otvalue.Index(fi))
					return pos, Transformed, nil
				}
				if mapOp != nil && mapOp.Kind == KindMove {
					return mapOp.To, Mapped, nil
				}
				return pos, Transformed, nil
			}
			newI := i
			if i >= fi {
				newI++
			}
			if i > ti {
				newI--
			}
			pos = pos.WithBranch(to.Len()-1, otvalue.Index(newI))
			return pos, Transformed, nil
		}
		if selfLeaf.IsField() && fromLeaf.IsField() && toLeaf.IsField() {
			if selfLeaf.Name == toLeaf.Name {
				pos = pos.WithBranch(from.Len()-1, fromLeaf)
				return pos, Transformed, nil
			}
			if selfLeaf.Name == fromLeaf.Name {
				if mapOp != nil && mapOp.Kind == KindMove {
					pos = pos.WithHeadReplaced(to.Len(), mapOp.From)
					return pos, Mapped, nil
				}
				return pos, None, nil
			}
			return pos, Transformed, nil
		}
		return pos, None, &InvalidOperationError{Op: op}
	}

	if toParentIsAncestor {
		selfLeaf, toLeaf := pos.Branch(to.Len()-1), to.Leaf()
		if selfLeaf.IsIndex() && toLeaf.IsIndex() {
			i, ti := selfLeaf.Index, toLeaf.Index
			if i == ti {
				if pt == otvalue.Exact || pt == otvalue.Change {
					pos = pos.WithHeadReplaced(to.Len()-1, from)
					return pos, Transformed, nil
				}
				if mapOp != nil && mapOp.Kind == KindMove {
					return mapOp.To, Mapped, nil
				}
				return pos, Transformed, nil
			}
			if i > ti {
				pos = pos.WithBranch(to.Len()-1, otvalue.Index(i-1))
			}
			return pos, Transformed, nil
		}
		if selfLeaf.IsField() && toLeaf.IsField() {
			if selfLeaf.Name == toLeaf.Name {
				pos = pos.WithHeadReplaced(to.Len(), from)
			}
			return pos, Transformed, nil
		}
		return pos, None, &InvalidOperationError{Op: op}
	}

	if fromParentIsAncestor {
		selfLeaf, fromLeaf := pos.Branch(to.Len()-1), from.Leaf()
		if selfLeaf.IsIndex() && fromLeaf.IsIndex() {
			i, fi := selfLeaf.Index, fromLeaf.Index
			if i >= fi {
				pos = pos.WithBranch(from.Len()-1, otvalue.Index(i+1))
			}
			return pos, Transformed, nil
		}
		if selfLeaf.IsField() && fromLeaf.IsField() {
			if selfLeaf.Name == fromLeaf.Name {
				if mapOp != nil && mapOp.Kind == KindMove {
					pos = pos.WithHeadReplaced(to.Len(), mapOp.From)
					return pos, Mapped, nil
				}
				return pos, None, nil
			}
			return pos, Transformed, nil
		}
		return pos, None, &InvalidOperationError{Op: op}
	}

	return pos, Transformed, nil
}

// Map redirects pos, whose owning operation targeted the same location
// as before, to wherever after relocated that location. Rebase does not
// call it: TransformBackwardOrMap performs its own Mapped redirection.
// Map returns an error (it does not panic) on operation pairs that
// aren't a valid mapper for pos.
func Map(pos otvalue.Path, before, after Operation) (otvalue.Path, error) {
	switch {
	case before.Kind == KindInsert && after.Kind == KindInsert:
		if !before.Pos.IsParentAncestor(pos) || len(before.Values) != len(after.Values) {
			return pos, fmt.Errorf("ot: invalid mapper")
		}
		leaf := pos.Branch(before.Pos.Len() - 1)
		if !leaf.IsIndex() {
			return pos, fmt.Errorf("ot: invalid mapper")
		}
		beforeLeaf, afterLeaf := before.Pos.Leaf(), after.Pos.Leaf()
		if !beforeLeaf.IsIndex() || !afterLeaf.IsIndex() {
			return pos, fmt.Errorf("ot: invalid operation")
		}
		i, ib, ia := leaf.Index, beforeLeaf.Index, afterLeaf.Index
		pos = pos.WithHeadReplaced(before.Pos.Len(), after.Pos)
		if ib == ia {
			return pos, nil
		}
		if i < ib {
			return pos, fmt.Errorf("ot: invalid mapper")
		}
		pos = pos.WithBranch(after.Pos.Len()-1, otvalue.Index(ia+(i-ib)))
		return pos, nil

	case before.Kind == KindInsertChars && after.Kind == KindInsertChars:
		if !before.Pos.IsSibling(pos) || before.charsLen() != after.charsLen() {
			return pos, fmt.Errorf("ot: invalid mapper")
		}
		leaf := pos.Leaf()
		if !leaf.IsIndex() {
			return pos, fmt.Errorf("ot: invalid mapper")
		}
		beforeLeaf, afterLeaf := before.Pos.Leaf(), after.Pos.Leaf()
		if !beforeLeaf.IsIndex() || !afterLeaf.IsIndex() {
			return pos, fmt.Errorf("ot: invalid operation")
		}
		i, ib, ia := leaf.Index, beforeLeaf.Index, afterLeaf.Index
		if ib == ia {
			return pos, nil
		}
		if i < ib {
			return pos, fmt.Errorf("ot: invalid mapper")
		}
		pos = pos.WithBranch(after.Pos.Len()-1, otvalue.Index(ia+(i-ib)))
		return pos, nil

	case before.Kind == KindSet && after.Kind == KindSet:
		if pos.Len() < before.Pos.Len() || !pos.HasPrefix(before.Pos) {
			return pos, fmt.Errorf("ot: invalid mapper")
		}
		pos = pos.WithHeadReplaced(before.Pos.Len(), after.Pos)
		return pos, nil

	default:
		return pos, fmt.Errorf("ot: invalid mapper")
	}
}
