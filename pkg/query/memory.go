package query

import (
	"context"
	"encoding/csv"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"sort"
	"strconv"

	"github.com/polda-go/pipelinedoc/pkg/pipeline"
)

// MemoryEngine is a reference Engine that evaluates the seven node
// kinds directly over in-memory rows read from CSV files under Root.
// It exists for tests and local development; it is not a substitute
// for a real analytics backend (no query planning, no spilling to
// disk, nested-loop joins).
type MemoryEngine struct {
	Root string
}

func NewMemoryEngine(root string) *MemoryEngine {
	return &MemoryEngine{Root: root}
}

func (m *MemoryEngine) Query(ctx context.Context, snapshot Snapshot) (Table, error) {
	root, ok := snapshot.Nodes[snapshot.Root]
	if !ok {
		return Table{}, errUnreachableRoot
	}
	memo := map[string]Table{}
	return m.eval(ctx, snapshot, root.ID, memo)
}

func (m *MemoryEngine) eval(ctx context.Context, snapshot Snapshot, id string, memo map[string]Table) (Table, error) {
	if t, ok := memo[id]; ok {
		return t, nil
	}
	if err := ctx.Err(); err != nil {
		return Table{}, err
	}
	n, ok := snapshot.Nodes[id]
	if !ok {
		return Table{}, fmt.Errorf("query: node %q not in snapshot", id)
	}

	var (
		t   Table
		err error
	)
	switch n.Kind {
	case pipeline.KindLoadCsv:
		t, err = m.loadCsv(n.Path)
	case pipeline.KindSelect:
		t, err = m.evalInput(ctx, snapshot, n.Input, memo)
		if err == nil {
			t = applySelect(t, n.Columns)
		}
	case pipeline.KindFilter:
		t, err = m.evalInput(ctx, snapshot, n.Input, memo)
		if err == nil {
			t = applyFilter(t, n.Filters)
		}
	case pipeline.KindAggregate:
		t, err = m.evalInput(ctx, snapshot, n.Input, memo)
		if err == nil {
			t = applyAggregate(t, n.Aggregates)
		}
	case pipeline.KindSort:
		t, err = m.evalInput(ctx, snapshot, n.Input, memo)
		if err == nil {
			t = applySort(t, n.Sorters)
		}
	case pipeline.KindJoin:
		var left, right Table
		left, err = m.evalInput(ctx, snapshot, n.LeftInput, memo)
		if err == nil {
			right, err = m.evalInput(ctx, snapshot, n.RightInput, memo)
		}
		if err == nil {
			t = applyJoin(left, right, n.JoinType, n.JoinCols)
		}
	case pipeline.KindUnion:
		var primary, secondary Table
		primary, err = m.evalInput(ctx, snapshot, n.PrimaryInput, memo)
		if err == nil {
			secondary, err = m.evalInput(ctx, snapshot, n.SecondaryInput, memo)
		}
		if err == nil {
			t = applyUnion(primary, secondary)
		}
	default:
		err = fmt.Errorf("query: unsupported node kind %v", n.Kind)
	}
	if err != nil {
		return Table{}, err
	}
	memo[id] = t
	return t, nil
}

func (m *MemoryEngine) evalInput(ctx context.Context, snapshot Snapshot, input *string, memo map[string]Table) (Table, error) {
	if input == nil {
		return Table{}, nil
	}
	return m.eval(ctx, snapshot, *input, memo)
}

func (m *MemoryEngine) loadCsv(relPath string) (Table, error) {
	f, err := os.Open(filepath.Join(m.Root, relPath))
	if err != nil {
		return Table{}, err
	}
	defer f.Close()

	r := csv.NewReader(f)
	records, err := r.ReadAll()
	if err != nil {
		return Table{}, err
	}
	if len(records) == 0 {
		return Table{}, nil
	}
	header := records[0]
	rows := make([]Row, 0, len(records)-1)
	for _, rec := range records[1:] {
		row := make(Row, len(header))
		for i, col := range header {
			if i < len(rec) {
				row[col] = rec[i]
			}
		}
		rows = append(rows, row)
	}
	return Table{Columns: header, Rows: rows}, nil
}

func applySelect(t Table, cols []pipeline.SelectColumn) Table {
	if len(cols) == 0 {
		return t
	}
	outCols := make([]string, len(cols))
	for i, c := range cols {
		outCols[i] = c.Alias
		if outCols[i] == "" {
			outCols[i] = c.Column
		}
	}
	rows := make([]Row, len(t.Rows))
	for i, row := range t.Rows {
		out := make(Row, len(cols))
		for j, c := range cols {
			out[outCols[j]] = row[c.Column]
		}
		rows[i] = out
	}
	return Table{Columns: outCols, Rows: rows}
}

func applyFilter(t Table, filters []pipeline.Filter) Table {
	if len(filters) == 0 {
		return t
	}
	rows := make([]Row, 0, len(t.Rows))
	for _, row := range t.Rows {
		keep := true
		for _, f := range filters {
			if !matchFilter(row, f) {
				keep = false
				break
			}
		}
		if keep {
			rows = append(rows, row)
		}
	}
	return Table{Columns: t.Columns, Rows: rows}
}

func matchFilter(row Row, f pipeline.Filter) bool {
	val, present := row[f.Column]
	switch f.Predicate.Kind {
	case pipeline.IsNull:
		return !present || val == nil || val == ""
	case pipeline.IsNotNull:
		return present && val != nil && val != ""
	}
	operand := operandValue(row, f.Predicate.Operand)
	cmp := compareValues(val, operand)
	switch f.Predicate.Kind {
	case pipeline.IsEqualTo:
		return cmp == 0
	case pipeline.IsNotEqualTo:
		return cmp != 0
	case pipeline.IsLessThan:
		return cmp < 0
	case pipeline.IsLessThanEqual:
		return cmp <= 0
	case pipeline.IsGreaterThan:
		return cmp > 0
	case pipeline.IsGreaterThanEqual:
		return cmp >= 0
	}
	return false
}

func operandValue(row Row, c pipeline.ColumnOrConstant) interface{} {
	if c.IsColumn {
		return row[c.Value]
	}
	return c.Value
}

func compareValues(a, b interface{}) int {
	as, aok := a.(string)
	bs, bok := b.(string)
	if aok && bok {
		af, aerr := strconv.ParseFloat(as, 64)
		bf, berr := strconv.ParseFloat(bs, 64)
		if aerr == nil && berr == nil {
			return compareFloat(af, bf)
		}
		if as < bs {
			return -1
		}
		if as > bs {
			return 1
		}
		return 0
	}
	return 0
}

func compareFloat(a, b float64) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	default:
		return 0
	}
}

func applyAggregate(t Table, aggs []pipeline.Aggregate) Table {
	if len(aggs) == 0 {
		return t
	}
	var groupCols []pipeline.Aggregate
	var computeCols []pipeline.Aggregate
	for _, a := range aggs {
		if a.Computation == pipeline.AggGroup {
			groupCols = append(groupCols, a)
		} else {
			computeCols = append(computeCols, a)
		}
	}

	type bucket struct {
		key  string
		rows []Row
	}
	buckets := map[string]*bucket{}
	order := []string{}
	for _, row := range t.Rows {
		key := ""
		for _, g := range groupCols {
			key += fmt.Sprintf("%v\x1f", row[g.Column])
		}
		b, ok := buckets[key]
		if !ok {
			b = &bucket{key: key}
			buckets[key] = b
			order = append(order, key)
		}
		b.rows = append(b.rows, row)
	}

	outCols := make([]string, 0, len(aggs))
	for _, a := range aggs {
		outCols = append(outCols, a.Alias)
	}
	rows := make([]Row, 0, len(order))
	for _, key := range order {
		b := buckets[key]
		out := make(Row, len(aggs))
		for _, g := range groupCols {
			out[g.Alias] = b.rows[0][g.Column]
		}
		for _, c := range computeCols {
			out[c.Alias] = computeAggregate(b.rows, c)
		}
		rows = append(rows, out)
	}
	return Table{Columns: outCols, Rows: rows}
}

func computeAggregate(rows []Row, a pipeline.Aggregate) interface{} {
	switch a.Computation {
	case pipeline.AggCount:
		return float64(len(rows))
	case pipeline.AggSum, pipeline.AggMean, pipeline.AggMax, pipeline.AggMin, pipeline.AggMedian:
		vals := make([]float64, 0, len(rows))
		for _, row := range rows {
			if s, ok := row[a.Column].(string); ok {
				if f, err := strconv.ParseFloat(s, 64); err == nil {
					vals = append(vals, f)
				}
			}
		}
		if len(vals) == 0 {
			return nil
		}
		switch a.Computation {
		case pipeline.AggSum:
			sum := 0.0
			for _, v := range vals {
				sum += v
			}
			return sum
		case pipeline.AggMean:
			sum := 0.0
			for _, v := range vals {
				sum += v
			}
			return sum / float64(len(vals))
		case pipeline.AggMax:
			max := vals[0]
			for _, v := range vals[1:] {
				max = math.Max(max, v)
			}
			return max
		case pipeline.AggMin:
			min := vals[0]
			for _, v := range vals[1:] {
				min = math.Min(min, v)
			}
			return min
		case pipeline.AggMedian:
			sorted := append([]float64{}, vals...)
			sort.Float64s(sorted)
			mid := len(sorted) / 2
			if len(sorted)%2 == 0 {
				return (sorted[mid-1] + sorted[mid]) / 2
			}
			return sorted[mid]
		}
	}
	return nil
}

func applySort(t Table, sorters []pipeline.Sorter) Table {
	if len(sorters) == 0 {
		return t
	}
	rows := append([]Row{}, t.Rows...)
	sort.SliceStable(rows, func(i, j int) bool {
		for _, s := range sorters {
			cmp := compareValues(rows[i][s.Column], rows[j][s.Column])
			if cmp == 0 {
				continue
			}
			if s.Direction == pipeline.Desc {
				return cmp > 0
			}
			return cmp < 0
		}
		return false
	})
	return Table{Columns: t.Columns, Rows: rows}
}

func applyJoin(left, right Table, jt pipeline.JoinType, cols []pipeline.JoinColumn) Table {
	outCols := append([]string{}, left.Columns...)
	for _, c := range right.Columns {
		outCols = append(outCols, "right."+c)
	}

	matchRow := func(l, r Row) bool {
		for _, c := range cols {
			if compareValues(l[c.Left], r[c.Right]) != 0 {
				return false
			}
		}
		return true
	}
	merge := func(l, r Row) Row {
		out := make(Row, len(outCols))
		for k, v := range l {
			out[k] = v
		}
		for k, v := range r {
			out["right."+k] = v
		}
		return out
	}

	var rows []Row
	rightMatched := make([]bool, len(right.Rows))
	for _, l := range left.Rows {
		matched := false
		for ri, r := range right.Rows {
			if jt == pipeline.JoinCross || matchRow(l, r) {
				rows = append(rows, merge(l, r))
				matched = true
				rightMatched[ri] = true
			}
		}
		if !matched && (jt == pipeline.JoinLeft || jt == pipeline.JoinFull) {
			rows = append(rows, merge(l, Row{}))
		}
	}
	if jt == pipeline.JoinRight || jt == pipeline.JoinFull {
		for ri, r := range right.Rows {
			if !rightMatched[ri] {
				rows = append(rows, merge(Row{}, r))
			}
		}
	}
	return Table{Columns: outCols, Rows: rows}
}

func applyUnion(primary, secondary Table) Table {
	cols := primary.Columns
	if len(cols) == 0 {
		cols = secondary.Columns
	}
	rows := append([]Row{}, primary.Rows...)
	rows = append(rows, secondary.Rows...)
	return Table{Columns: cols, Rows: rows}
}
