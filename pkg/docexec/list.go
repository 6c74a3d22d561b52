package docexec

import (
	"fmt"

	"github.com/polda-go/pipelinedoc/pkg/command"
	"github.com/polda-go/pipelinedoc/pkg/pipeline"
)

func isListKind(k command.Kind) bool {
	switch k {
	case command.KindInsertAggregate, command.KindDeleteAggregate, command.KindSetAggregateField,
		command.KindInsertFilter, command.KindDeleteFilter, command.KindSetFilterField,
		command.KindInsertJoinColumn, command.KindDeleteJoinColumn, command.KindSetJoinColumnField,
		command.KindInsertSelect, command.KindDeleteSelect, command.KindSetSelectField,
		command.KindInsertSorter, command.KindDeleteSorter, command.KindSetSorterField:
		return true
	}
	return false
}

// executeListOperation applies an insert/delete/set-field operation
// against one of a node's list fields (aggregates, filters, join
// columns, select columns, sorters), returning its inverse.
func (e *Executor) executeListOperation(op command.Operation) (command.Operation, error) {
	n, ok := e.doc.Nodes[op.NodeID]
	if !ok {
		return command.Operation{}, fmt.Errorf("docexec: node %q does not exist", op.NodeID)
	}

	switch op.List {
	case command.ListAggregate:
		return executeTypedList(&e.doc.Nodes, n, op, listOps[pipeline.Aggregate]{
			get: func(n pipeline.Node) []pipeline.Aggregate { return n.Aggregates },
			set: func(n pipeline.Node, v []pipeline.Aggregate) pipeline.Node { n.Aggregates = v; return n },
			setField: setAggregateField,
			insert:   command.InsertAggregate,
			del:      command.DeleteAggregate,
			setOp:    command.SetAggregateField,
		})
	case command.ListFilter:
		return executeTypedList(&e.doc.Nodes, n, op, listOps[pipeline.Filter]{
			get:      func(n pipeline.Node) []pipeline.Filter { return n.Filters },
			set:      func(n pipeline.Node, v []pipeline.Filter) pipeline.Node { n.Filters = v; return n },
			setField: setFilterField,
			insert:   command.InsertFilter,
			del:      command.DeleteFilter,
			setOp:    command.SetFilterField,
		})
	case command.ListJoinColumn:
		return executeTypedList(&e.doc.Nodes, n, op, listOps[pipeline.JoinColumn]{
			get:      func(n pipeline.Node) []pipeline.JoinColumn { return n.JoinCols },
			set:      func(n pipeline.Node, v []pipeline.JoinColumn) pipeline.Node { n.JoinCols = v; return n },
			setField: setJoinColumnField,
			insert:   command.InsertJoinColumn,
			del:      command.DeleteJoinColumn,
			setOp:    command.SetJoinColumnField,
		})
	case command.ListSelect:
		return executeTypedList(&e.doc.Nodes, n, op, listOps[pipeline.SelectColumn]{
			get:      func(n pipeline.Node) []pipeline.SelectColumn { return n.Columns },
			set:      func(n pipeline.Node, v []pipeline.SelectColumn) pipeline.Node { n.Columns = v; return n },
			setField: setSelectField,
			insert:   command.InsertSelect,
			del:      command.DeleteSelect,
			setOp:    command.SetSelectField,
		})
	case command.ListSorter:
		return executeTypedList(&e.doc.Nodes, n, op, listOps[pipeline.Sorter]{
			get:      func(n pipeline.Node) []pipeline.Sorter { return n.Sorters },
			set:      func(n pipeline.Node, v []pipeline.Sorter) pipeline.Node { n.Sorters = v; return n },
			setField: setSorterField,
			insert:   command.InsertSorter,
			del:      command.DeleteSorter,
			setOp:    command.SetSorterField,
		})
	}
	return command.Operation{}, fmt.Errorf("docexec: unknown list kind %d", op.List)
}

// listOps bundles the per-list-type accessors executeTypedList needs:
// how to read/write the list field on a Node, how to apply a field
// mutation to one element, and how to reconstruct operations of this
// list's Insert/Delete/SetField kinds for inverses.
type listOps[T any] struct {
	get      func(pipeline.Node) []T
	set      func(pipeline.Node, []T) pipeline.Node
	setField func(item T, field string, val interface{}) (T, interface{}, error)
	insert   func(id string, at int, item T) command.Operation
	del      func(id string, at int) command.Operation
	setOp    func(id string, at int, field string, val interface{}) command.Operation
}

func executeTypedList[T any](nodes *map[string]pipeline.Node, n pipeline.Node, op command.Operation, ops listOps[T]) (command.Operation, error) {
	list := ops.get(n)

	switch {
	case op.Kind == command.KindInsertAggregate || op.Kind == command.KindInsertFilter ||
		op.Kind == command.KindInsertJoinColumn || op.Kind == command.KindInsertSelect ||
		op.Kind == command.KindInsertSorter:
		if op.Index < 0 || op.Index > len(list) {
			return command.Operation{}, fmt.Errorf("docexec: list insert index %d out of range", op.Index)
		}
		item, ok := op.Item.(T)
		if !ok {
			return command.Operation{}, fmt.Errorf("docexec: list insert item has wrong type")
		}
		out := append([]T{}, list[:op.Index]...)
		out = append(out, item)
		out = append(out, list[op.Index:]...)
		(*nodes)[op.NodeID] = ops.set(n, out)
		return ops.del(op.NodeID, op.Index), nil

	case op.Kind == command.KindDeleteAggregate || op.Kind == command.KindDeleteFilter ||
		op.Kind == command.KindDeleteJoinColumn || op.Kind == command.KindDeleteSelect ||
		op.Kind == command.KindDeleteSorter:
		if op.Index < 0 || op.Index >= len(list) {
			return command.Operation{}, fmt.Errorf("docexec: list delete index %d out of range", op.Index)
		}
		removed := list[op.Index]
		out := append([]T{}, list[:op.Index]...)
		out = append(out, list[op.Index+1:]...)
		(*nodes)[op.NodeID] = ops.set(n, out)
		return ops.insert(op.NodeID, op.Index, removed), nil

	default: // SetXField
		if op.Index < 0 || op.Index >= len(list) {
			return command.Operation{}, fmt.Errorf("docexec: list set-field index %d out of range", op.Index)
		}
		updated, prevVal, err := ops.setField(list[op.Index], op.Field, op.FieldValue)
		if err != nil {
			return command.Operation{}, err
		}
		out := append([]T{}, list...)
		out[op.Index] = updated
		(*nodes)[op.NodeID] = ops.set(n, out)
		return ops.setOp(op.NodeID, op.Index, op.Field, prevVal), nil
	}
}

func setAggregateField(item pipeline.Aggregate, field string, val interface{}) (pipeline.Aggregate, interface{}, error) {
	switch field {
	case "column":
		s, ok := val.(string)
		if !ok {
			return item, nil, fmt.Errorf("docexec: aggregate field %q wants a string", field)
		}
		prev := item.Column
		item.Column = s
		return item, prev, nil
	case "computation":
		c, ok := val.(pipeline.AggregateComputation)
		if !ok {
			return item, nil, fmt.Errorf("docexec: aggregate field %q wants an AggregateComputation", field)
		}
		prev := item.Computation
		item.Computation = c
		return item, prev, nil
	case "alias":
		s, ok := val.(string)
		if !ok {
			return item, nil, fmt.Errorf("docexec: aggregate field %q wants a string", field)
		}
		prev := item.Alias
		item.Alias = s
		return item, prev, nil
	}
	return item, nil, fmt.Errorf("docexec: aggregate has no field %q", field)
}

func setFilterField(item pipeline.Filter, field string, val interface{}) (pipeline.Filter, interface{}, error) {
	switch field {
	case "column":
		s, ok := val.(string)
		if !ok {
			return item, nil, fmt.Errorf("docexec: filter field %q wants a string", field)
		}
		prev := item.Column
		item.Column = s
		return item, prev, nil
	case "predicate":
		p, ok := val.(pipeline.FilterPredicate)
		if !ok {
			return item, nil, fmt.Errorf("docexec: filter field %q wants a FilterPredicate", field)
		}
		prev := item.Predicate
		item.Predicate = p
		return item, prev, nil
	}
	return item, nil, fmt.Errorf("docexec: filter has no field %q", field)
}

func setJoinColumnField(item pipeline.JoinColumn, field string, val interface{}) (pipeline.JoinColumn, interface{}, error) {
	switch field {
	case "left":
		s, ok := val.(string)
		if !ok {
			return item, nil, fmt.Errorf("docexec: join column field %q wants a string", field)
		}
		prev := item.Left
		item.Left = s
		return item, prev, nil
	case "right":
		s, ok := val.(string)
		if !ok {
			return item, nil, fmt.Errorf("docexec: join column field %q wants a string", field)
		}
		prev := item.Right
		item.Right = s
		return item, prev, nil
	}
	return item, nil, fmt.Errorf("docexec: join column has no field %q", field)
}

func setSelectField(item pipeline.SelectColumn, field string, val interface{}) (pipeline.SelectColumn, interface{}, error) {
	switch field {
	case "column":
		s, ok := val.(string)
		if !ok {
			return item, nil, fmt.Errorf("docexec: select column field %q wants a string", field)
		}
		prev := item.Column
		item.Column = s
		return item, prev, nil
	case "alias":
		s, ok := val.(string)
		if !ok {
			return item, nil, fmt.Errorf("docexec: select column field %q wants a string", field)
		}
		prev := item.Alias
		item.Alias = s
		return item, prev, nil
	}
	return item, nil, fmt.Errorf("docexec: select column has no field %q", field)
}

func setSorterField(item pipeline.Sorter, field string, val interface{}) (pipeline.Sorter, interface{}, error) {
	switch field {
	case "column":
		s, ok := val.(string)
		if !ok {
			return item, nil, fmt.Errorf("docexec: sorter field %q wants a string", field)
		}
		prev := item.Column
		item.Column = s
		return item, prev, nil
	case "direction":
		d, ok := val.(pipeline.SortDirection)
		if !ok {
			return item, nil, fmt.Errorf("docexec: sorter field %q wants a SortDirection", field)
		}
		prev := item.Direction
		item.Direction = d
		return item, prev, nil
	}
	return item, nil, fmt.Errorf("docexec: sorter has no field %q", field)
}
