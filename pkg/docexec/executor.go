// Package docexec implements the atomic executor that applies a batch
// of already-transformed pkg/command operations to a pkg/pipeline.Doc,
// rolling back on the first failure, and repairs the dangling-input and
// cycle violations a batch can transiently introduce.
package docexec

import (
	"fmt"

	"github.com/polda-go/pipelinedoc/pkg/command"
	"github.com/polda-go/pipelinedoc/pkg/pipeline"
)

// Executor applies operations to a single Doc. It holds no state of
// its own beyond the Doc pointer; the document session in pkg/session
// is what serializes calls to it.
type Executor struct {
	doc *pipeline.Doc
}

func New(doc *pipeline.Doc) *Executor {
	return &Executor{doc: doc}
}

// ExecuteOperations applies ops in order and returns the corrective
// operations synthesized by the dangling-input/cycle repair pass (empty
// if none were needed). If any op fails, every op applied so far is
// undone in reverse via its recorded inverse, the Doc is left exactly
// as it was before the call, and the error is returned.
func (e *Executor) ExecuteOperations(ops []command.Operation) ([]command.Operation, error) {
	candidates := make([]pipeline.InputPort, 0)
	for _, op := range ops {
		if op.Kind == command.KindSetInput && op.Input != nil {
			candidates = append(candidates, pipeline.InputPort{ID: op.NodeID, Name: op.InputName})
		}
	}

	inverses := make([]command.Operation, 0, len(ops))
	for _, op := range ops {
		inverse, err := e.executeOperation(op)
		if err != nil {
			e.rollback(inverses)
			return nil, err
		}
		inverses = append(inverses, inverse)
	}

	corrective := e.repairDanglingAndCyclicInputs(candidates)
	return corrective, nil
}

func (e *Executor) rollback(inverses []command.Operation) {
	for i := len(inverses) - 1; i >= 0; i-- {
		if _, err := e.executeOperation(inverses[i]); err != nil {
			panic("docexec: rollback failed, document is corrupt: " + err.Error())
		}
	}
}

// repairDanglingAndCyclicInputs re-checks every candidate input slot
// touched by the batch: if the slot's current target no longer exists,
// or now closes a cycle back to the owning node, it is forcibly
// cleared. Errors from the corrective SetInput are impossible (clearing
// an input is always legal) so they are not surfaced.
func (e *Executor) repairDanglingAndCyclicInputs(candidates []pipeline.InputPort) []command.Operation {
	var corrective []command.Operation
	seen := map[pipeline.InputPort]bool{}
	for _, port := range candidates {
		if seen[port] {
			continue
		}
		seen[port] = true

		node, ok := e.doc.Nodes[port.ID]
		if !ok {
			continue
		}
		target := node.InputAt(port.Name)
		if target == nil {
			continue
		}
		_, targetExists := e.doc.Nodes[*target]
		cyclic := targetExists && e.doc.IsCycle(port.ID, *target)
		if targetExists && !cyclic {
			continue
		}

		op := command.SetInput(port.ID, port.Name, nil)
		if _, err := e.executeOperation(op); err != nil {
			continue
		}
		corrective = append(corrective, op)
	}
	return corrective
}

// executeOperation applies a single operation and returns its inverse.
func (e *Executor) executeOperation(op command.Operation) (command.Operation, error) {
	switch op.Kind {
	case command.KindInsertNode:
		return e.insertNode(op)
	case command.KindDeleteNode:
		return e.deleteNode(op)
	case command.KindInsertIndex:
		return e.insertIndex(op)
	case command.KindDeleteIndex:
		return e.deleteIndex(op)
	case command.KindSetPosition:
		return e.setPosition(op)
	case command.KindSetInput:
		return e.setInput(op)
	case command.KindSetCsvPath:
		return e.setCsvPath(op)
	case command.KindSetJoinType:
		return e.setJoinType(op)
	default:
		if isListKind(op.Kind) {
			return e.executeListOperation(op)
		}
	}
	return command.Operation{}, fmt.Errorf("docexec: unhandled operation kind %d", op.Kind)
}

func (e *Executor) insertNode(op command.Operation) (command.Operation, error) {
	n := op.Node
	if _, exists := e.doc.Nodes[n.ID]; exists {
		return command.Operation{}, fmt.Errorf("docexec: node %q already exists", n.ID)
	}
	for _, in := range n.Inputs() {
		if in != nil {
			return command.Operation{}, fmt.Errorf("docexec: insert_node %q must have all inputs null", n.ID)
		}
	}
	if n.HasOutputs() {
		return command.Operation{}, fmt.Errorf("docexec: insert_node %q must have no outputs", n.ID)
	}
	if n.Outputs == nil {
		n.Outputs = map[string]struct{}{}
	}
	e.doc.Nodes[n.ID] = n
	return command.DeleteNode(n.ID), nil
}

func (e *Executor) deleteNode(op command.Operation) (command.Operation, error) {
	n, ok := e.doc.Nodes[op.NodeID]
	if !ok {
		return command.Operation{}, fmt.Errorf("docexec: node %q does not exist", op.NodeID)
	}
	if n.HasInputs() {
		return command.Operation{}, fmt.Errorf("docexec: node %q still has inputs", op.NodeID)
	}
	if n.HasOutputs() {
		return command.Operation{}, fmt.Errorf("docexec: node %q still has outputs", op.NodeID)
	}
	delete(e.doc.Nodes, op.NodeID)
	return command.InsertNode(n), nil
}

func (e *Executor) insertIndex(op command.Operation) (command.Operation, error) {
	if op.Index < 0 || op.Index > len(e.doc.Index) {
		return command.Operation{}, fmt.Errorf("docexec: insert_index %d out of range", op.Index)
	}
	idx := append([]string{}, e.doc.Index[:op.Index]...)
	idx = append(idx, op.NodeID)
	idx = append(idx, e.doc.Index[op.Index:]...)
	e.doc.Index = idx
	return command.DeleteIndex(op.NodeID, op.Index), nil
}

func (e *Executor) deleteIndex(op command.Operation) (command.Operation, error) {
	if op.Index < 0 || op.Index >= len(e.doc.Index) || e.doc.Index[op.Index] != op.NodeID {
		return command.Operation{}, fmt.Errorf("docexec: delete_index %d does not name %q", op.Index, op.NodeID)
	}
	idx := append([]string{}, e.doc.Index[:op.Index]...)
	idx = append(idx, e.doc.Index[op.Index+1:]...)
	e.doc.Index = idx
	return command.InsertIndex(op.NodeID, op.Index), nil
}

func (e *Executor) setPosition(op command.Operation) (command.Operation, error) {
	n, ok := e.doc.Nodes[op.NodeID]
	if !ok {
		return command.Operation{}, fmt.Errorf("docexec: node %q does not exist", op.NodeID)
	}
	prev := n.Position
	n.Position = op.Position
	e.doc.Nodes[op.NodeID] = n
	return command.SetPosition(op.NodeID, prev), nil
}

func (e *Executor) setInput(op command.Operation) (command.Operation, error) {
	n, ok := e.doc.Nodes[op.NodeID]
	if !ok {
		return command.Operation{}, fmt.Errorf("docexec: node %q does not exist", op.NodeID)
	}
	prev := n.InputAt(op.InputName)
	if prev != nil {
		if old, ok := e.doc.Nodes[*prev]; ok {
			old.RemoveOutput(op.NodeID)
			e.doc.Nodes[*prev] = old
		}
	}
	if op.Input != nil {
		if target, ok := e.doc.Nodes[*op.Input]; ok {
			target.InsertOutput(op.NodeID)
			e.doc.Nodes[*op.Input] = target
		}
	}
	n = n.WithInput(op.InputName, op.Input)
	e.doc.Nodes[op.NodeID] = n
	return command.SetInput(op.NodeID, op.InputName, prev), nil
}

func (e *Executor) setCsvPath(op command.Operation) (command.Operation, error) {
	n, ok := e.doc.Nodes[op.NodeID]
	if !ok || n.Kind != pipeline.KindLoadCsv {
		return command.Operation{}, fmt.Errorf("docexec: node %q is not a load_csv node", op.NodeID)
	}
	prev := n.Path
	n.Path = op.CsvPath
	e.doc.Nodes[op.NodeID] = n
	return command.SetCsvPath(op.NodeID, prev), nil
}

func (e *Executor) setJoinType(op command.Operation) (command.Operation, error) {
	n, ok := e.doc.Nodes[op.NodeID]
	if !ok || n.Kind != pipeline.KindJoin {
		return command.Operation{}, fmt.Errorf("docexec: node %q is not a join node", op.NodeID)
	}
	prev := n.JoinType
	n.JoinType = op.JoinType
	e.doc.Nodes[op.NodeID] = n
	return command.SetJoinType(op.NodeID, prev), nil
}
