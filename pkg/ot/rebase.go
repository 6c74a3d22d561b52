package ot

import "github.com/polda-go/pipelinedoc/pkg/otvalue"

// Rebase reconciles a batch of independently-authored transactions
// against base, a sequence of operations already committed ahead of
// them. Each transaction is rebased against base, then against every
// earlier transaction in the batch (already rebased), then against its
// own earlier operations — so operation j of transaction i sees
// exactly the history it would have seen had it been applied after
// everything that now precedes it. A transaction that loses every
// operation to a conflict (e.g. its target was deleted) is dropped
// from the result entirely; a transaction that loses only its tail
// operations is dropped too, since a partial transaction is not a
// valid atomic edit.
func Rebase(transactions [][]Operation, base []Operation) ([][]Operation, error) {
	rebased := make([][]Operation, 0, len(transactions))
	kept := make([]bool, len(transactions))

	for i, transaction := range transactions {
		rebasedTransaction := make([]Operation, 0, len(transaction))

		for j, operation := range transaction {
			ok, op, err := rebaseOperation(operation, base, transaction[:j], rebasedTransaction, transactions[:i], rebased)
			if err != nil {
				return nil, err
			}
			if !ok {
				break
			}
			rebasedTransaction = append(rebasedTransaction, op)
		}

		if len(rebasedTransaction) == len(transaction) {
			kept[i] = true
		}
		rebased = append(rebased, rebasedTransaction)
	}

	out := make([][]Operation, 0, len(transactions))
	for i, tr := range rebased {
		if kept[i] {
			out = append(out, tr)
		}
	}
	return out, nil
}

func rebaseOperation(
	op Operation,
	base []Operation,
	prevOps []Operation,
	rebasedPrevOps []Operation,
	prevTransactions [][]Operation,
	rebasedPrevTransactions [][]Operation,
) (bool, Operation, error) {
	switch op.Kind {
	case KindInsert:
		pos, ok, err := rebasePosition(op.Pos, otvalue.Anchor, base, prevOps, rebasedPrevOps, prevTransactions, rebasedPrevTransactions)
		if err != nil || !ok {
			return false, Operation{}, err
		}
		return true, Insert(pos, op.Values), nil

	case KindDelete, KindDeleteChars:
		start := op.Pos
		end := start
		if !end.IsRoot() && end.IsLeafIndex() {
			end = end.WithBranch(end.Len()-1, otvalue.Index(end.Leaf().Index+op.Len))
		}

		start, ok, err := rebasePosition(start, otvalue.RangeStart, base, prevOps, rebasedPrevOps, prevTransactions, rebasedPrevTransactions)
		if err != nil || !ok {
			return false, Operation{}, err
		}
		end, ok, err = rebasePosition(end, otvalue.RangeEnd, base, prevOps, rebasedPrevOps, prevTransactions, rebasedPrevTransactions)
		if err != nil || !ok {
			return false, Operation{}, err
		}

		length := 0
		if start.IsLeafIndex() && end.IsLeafIndex() {
			s, e := start.Leaf().Index, end.Leaf().Index
			if e > s {
				length = e - s
			}
		}
		if length == 0 {
			return false, Operation{}, nil
		}
		if op.Kind == KindDelete {
			return true, Delete(start, length), nil
		}
		return true, DeleteChars(start, length), nil

	case KindInsertChars:
		pos, ok, err := rebasePosition(op.Pos, otvalue.Anchor, base, prevOps, rebasedPrevOps, prevTransactions, rebasedPrevTransactions)
		if err != nil || !ok {
			return false, Operation{}, err
		}
		return true, InsertChars(pos, op.Chars), nil

	case KindMove:
		from, ok, err := rebasePosition(op.From, otvalue.Exact, base, prevOps, rebasedPrevOps, prevTransactions, rebasedPrevTransactions)
		if err != nil || !ok {
			return false, Operation{}, err
		}
		to, ok, err := rebasePosition(op.To, otvalue.Anchor, base, prevOps, rebasedPrevOps, prevTransactions, rebasedPrevTransactions)
		if err != nil || !ok {
			return false, Operation{}, err
		}
		return true, Move(from, to), nil

	case KindSet:
		pos, ok, err := rebasePosition(op.Pos, otvalue.Exact, base, prevOps, rebasedPrevOps, prevTransactions, rebasedPrevTransactions)
		if err != nil || !ok {
			return false, Operation{}, err
		}
		return true, Set(pos, op.Val), nil

	case KindIncrement:
		pos, ok, err := rebasePosition(op.Pos, otvalue.Change, base, prevOps, rebasedPrevOps, prevTransactions, rebasedPrevTransactions)
		if err != nil || !ok {
			return false, Operation{}, err
		}
		return true, Increment(pos, op.By), nil

	case KindDecrement:
		pos, ok, err := rebasePosition(op.Pos, otvalue.Change, base, prevOps, rebasedPrevOps, prevTransactions, rebasedPrevTransactions)
		if err != nil || !ok {
			return false, Operation{}, err
		}
		return true, Decrement(pos, op.By), nil
	}
	return false, Operation{}, &InvalidOperationError{Op: op}
}

// rebasePosition walks pos backward across prevOps (this transaction's
// own earlier operations, as originally submitted), then backward across
// every preceding transaction in the batch, then forward across base and
// every already-rebased preceding transaction and rebasedPrevOps — landing
// pos exactly where it belongs in the post-rebase timeline. The second
// bool is false when pos's target was consumed with no map to recover
// through, meaning the whole operation must be dropped.
func rebasePosition(
	pos otvalue.Path,
	pt otvalue.PathType,
	base []Operation,
	prevOps []Operation,
	rebasedPrevOps []Operation,
	prevTransactions [][]Operation,
	rebasedPrevTransactions [][]Operation,
) (otvalue.Path, bool, error) {
	for i := len(prevOps) - 1; i >= 0; i-- {
		mapOp := rebasedPrevOps[i]
		newPos, bt, err := TransformBackwardOrMap(pos, prevOps[i], &mapOp, pt)
		if err != nil {
			return pos, false, err
		}
		pos = newPos
		switch bt {
		case Transformed:
		case Mapped:
			ok, p, err := transformForwardMany(pos, pt, rebasedPrevOps[i+1:], true)
			return p, ok, err
		case None:
			return pos, false, nil
		}
	}

	for i := len(prevTransactions) - 1; i >= 0; i-- {
		tr := prevTransactions[i]
		rebasedTr := rebasedPrevTransactions[i]
		if len(rebasedTr) != len(tr) {
			continue
		}
		for j := len(tr) - 1; j >= 0; j-- {
			mapOp := rebasedTr[j]
			newPos, bt, err := TransformBackwardOrMap(pos, tr[j], &mapOp, pt)
			if err != nil {
				return pos, false, err
			}
			pos = newPos
			switch bt {
			case Transformed:
			case Mapped:
				ok, p, err := transformForwardMany(pos, pt, rebasedTr[j+1:], true)
				if err != nil || !ok {
					return p, ok, err
				}
				pos = p
				for k := i + 1; k < len(prevTransactions); k++ {
					if len(rebasedPrevTransactions[k]) != len(prevTransactions[k]) {
						continue
					}
					ok, p, err = transformForwardMany(pos, pt, rebasedPrevTransactions[k], true)
					if err != nil || !ok {
						return p, ok, err
					}
					pos = p
				}
				ok, p, err = transformForwardMany(pos, pt, rebasedPrevOps, true)
				return p, ok, err
			case None:
				return pos, false, nil
			}
		}
	}

	ok, pos, err := transformForwardMany(pos, pt, base, false)
	if err != nil || !ok {
		return pos, ok, err
	}
	for k, tr := range rebasedPrevTransactions {
		if len(tr) != len(prevTransactions[k]) {
			continue
		}
		ok, pos, err = transformForwardMany(pos, pt, tr, true)
		if err != nil || !ok {
			return pos, ok, err
		}
	}
	return transformForwardMany(pos, pt, rebasedPrevOps, true)
}

func transformForwardMany(pos otvalue.Path, pt otvalue.PathType, ops []Operation, extendRange bool) (bool, otvalue.Path, error) {
	for _, op := range ops {
		newPos, ok, err := TransformForward(pos, op, pt, extendRange)
		if err != nil {
			return false, pos, err
		}
		pos = newPos
		if !ok {
			return false, pos, nil
		}
	}
	return true, pos, nil
}
