package command

import "fmt"

// ValidateSequence enforces the adjacency constraints that keep a
// batch from ever producing a Doc with a node outside the index, or an
// index entry naming a node that was never inserted:
//
//   - DeleteIndex(id, i) must be immediately followed by DeleteNode(id)
//     or InsertIndex(id, _) — removing a node from the visible order
//     is only valid as half of "move it" or "delete it entirely".
//   - InsertNode(node) must be immediately followed by
//     InsertIndex(node.id, _) — a node can't exist without appearing
//     in the index.
func ValidateSequence(ops []Operation) error {
	for i, op := range ops {
		switch op.Kind {
		case KindDeleteIndex:
			if i+1 >= len(ops) {
				return fmt.Errorf("command: delete_index for %q must be followed by delete_node or insert_index", op.NodeID)
			}
			next := ops[i+1]
			okNext := (next.Kind == KindDeleteNode && next.NodeID == op.NodeID) ||
				(next.Kind == KindInsertIndex && next.NodeID == op.NodeID)
			if !okNext {
				return fmt.Errorf("command: delete_index for %q must be followed by delete_node or insert_index of the same id", op.NodeID)
			}

		case KindInsertNode:
			if i+1 >= len(ops) || ops[i+1].Kind != KindInsertIndex || ops[i+1].NodeID != op.NodeID {
				return fmt.Errorf("command: insert_node %q must be followed by insert_index of the same id", op.NodeID)
			}
		}
	}
	return nil
}
