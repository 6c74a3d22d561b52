package command

// TransformForward re-expresses op so that it has the same effect when
// applied after pre as it originally had when applied before pre. It
// is the domain-algebra analogue of pkg/ot's TransformForward, and is
// used to walk an operation across history that is now known to have
// happened first.
//
// The algebra factors into two independent axes that never interact:
// the node-id axis (does pre delete or create the node op addresses?)
// and the index-sequence axis (does pre insert or delete a slot in the
// same ordered sequence — the document index, or one node's list field
// — that op also addresses?). Each (op, pre) pair is resolved by at
// most one axis: the node axis is tried first, and the index axis only
// when the node axis does not handle the pair.
func TransformForward(op, pre Operation) (Operation, bool) {
	if out, handled, ok := nodeAxisForward(op, pre); handled {
		return out, ok
	}
	if out, handled, ok := indexAxisForward(op, pre); handled {
		return out, ok
	}
	return op, true
}

// TransformBackward is the inverse walk: re-express op so it has the
// same effect when applied before pre as it did when applied after it.
// Used when rebasing a client's batch against operations it raced with.
func TransformBackward(op, pre Operation) (Operation, bool) {
	if out, handled, ok := nodeAxisBackward(op, pre); handled {
		return out, ok
	}
	if out, handled, ok := indexAxisBackward(op, pre); handled {
		return out, ok
	}
	return op, true
}

// Map redirects op, which transform_backward annihilated against
// before, onto the target that after (the rebased counterpart of
// before) produced instead. Only meaningful for the same pairs
// transform_batch actually constructs: an index/list Insert annihilated
// by another Insert at the same slot remaps its index to follow the
// rebased insert; any other pairing is not a valid mapper.
func Map(op, before, after Operation) (Operation, bool) {
	if isListInsert(before.Kind) && addressesSameList(before, op) && before.Kind == after.Kind {
		if op.Index == before.Index {
			out := op
			out.Index = after.Index
			return out, true
		}
	}
	if before.Kind == KindInsertIndex && op.Kind == KindInsertIndex && before.NodeID != op.NodeID && after.Kind == KindInsertIndex {
		if op.Index == before.Index {
			out := op
			out.Index = after.Index
			return out, true
		}
	}
	return op, false
}

// nodeAxisForward handles the DeleteNode/InsertNode interactions common
// to every node-scoped operation kind. handled is false when op and pre
// don't share this axis (pre isn't itself a node-lifecycle op, or op
// is an index-sequence op that has no NodeID to collide on).
func nodeAxisForward(op, pre Operation) (Operation, bool, bool) {
	if !targetsNode(op) {
		return op, false, false
	}
	switch pre.Kind {
	case KindDeleteNode:
		if op.NodeID == pre.NodeID {
			return op, true, false
		}
	case KindInsertNode:
		if op.NodeID == pre.NodeID && op.Kind != KindInsertNode {
			return op, true, true
		}
	}
	return op, false, false
}

func nodeAxisBackward(op, pre Operation) (Operation, bool, bool) {
	if !targetsNode(op) {
		return op, false, false
	}
	switch pre.Kind {
	case KindDeleteNode:
		if op.NodeID == pre.NodeID {
			return op, true, false
		}
	case KindInsertNode:
		if op.NodeID == pre.NodeID && op.Kind != KindInsertNode {
			// op's target didn't exist before pre created it.
			return op, true, false
		}
	}
	return op, false, false
}

// sameSequence reports whether op and pre address the same ordered
// sequence: both the document index (NodeID is incidental, not a scope
// key, for InsertIndex/DeleteIndex), or the same list field of the
// same node.
func sameSequence(op, pre Operation) bool {
	opIsIndex := op.Kind == KindInsertIndex || op.Kind == KindDeleteIndex
	preIsIndex := pre.Kind == KindInsertIndex || pre.Kind == KindDeleteIndex
	if opIsIndex && preIsIndex {
		return true
	}
	if isListOp(op.Kind) && isListOp(pre.Kind) {
		return addressesSameList(op, pre)
	}
	return false
}

func indexAxisForward(op, pre Operation) (Operation, bool, bool) {
	if !sameSequence(op, pre) {
		return op, false, false
	}
	switch {
	case isInsertKind(pre.Kind):
		out := op
		if isDeleteKind(op.Kind) && op.Index == pre.Index && sameTarget(op, pre) {
			// A Delete of the same target at the slot pre just
			// inserted keeps its index; it is left untouched.
			return op, true, true
		}
		if op.Index >= pre.Index {
			out.Index++
		}
		return out, true, true

	case isDeleteKind(pre.Kind):
		if isDeleteKind(op.Kind) && op.Index == pre.Index {
			return op, true, false
		}
		out := op
		if op.Index > pre.Index {
			out.Index--
		}
		return out, true, true
	}
	return op, false, false
}

func indexAxisBackward(op, pre Operation) (Operation, bool, bool) {
	if !sameSequence(op, pre) {
		return op, false, false
	}
	switch {
	case isInsertKind(pre.Kind):
		out := op
		if op.Index > pre.Index {
			out.Index--
		} else if op.Index == pre.Index && isInsertKind(op.Kind) {
			return op, true, false
		}
		return out, true, true

	case isDeleteKind(pre.Kind):
		out := op
		if op.Index >= pre.Index {
			out.Index++
		}
		return out, true, true
	}
	return op, false, false
}

func isInsertKind(k Kind) bool {
	return k == KindInsertIndex || isListInsert(k)
}

func isDeleteKind(k Kind) bool {
	return k == KindDeleteIndex || isListDelete(k)
}

// sameTarget reports whether op and pre, both index-sequence ops,
// address the same id (document index) or are otherwise the same
// logical slot; used only to detect the validate_sequence adjacency
// pair so it is left untouched here.
func sameTarget(op, pre Operation) bool {
	if op.Kind == KindDeleteIndex && pre.Kind == KindInsertIndex {
		return op.NodeID == pre.NodeID
	}
	return addressesSameList(op, pre)
}
