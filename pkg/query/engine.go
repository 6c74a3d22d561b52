// Package query implements the boundary between a document session and
// the external query collaborator: a bounded worker pool so a
// long-running materialization never blocks a session's goroutine, an
// Engine interface a real analytics backend would implement, and a
// small in-memory reference Engine for tests and local development.
package query

import (
	"context"
	"fmt"

	"github.com/alitto/pond"
	"github.com/polda-go/pipelinedoc/pkg/pipeline"
)

// Row is one record of a materialized table: column name to scalar
// value (string, float64, bool, or nil).
type Row map[string]interface{}

// Table is the result of materializing a pipeline subgraph.
type Table struct {
	Columns []string
	Rows    []Row
}

// Snapshot is an immutable view of the subgraph rooted at Root: every
// node reachable by walking Inputs backward from Root, deep-copied so
// the query engine never shares mutable state with the session's Doc.
type Snapshot struct {
	Root  string
	Nodes map[string]pipeline.Node
}

// Engine materializes a pipeline subgraph. A real implementation might
// delegate to an embedded dataframe library or an external analytics
// service; the reference implementation in memory.go evaluates the
// seven node kinds directly over in-memory rows.
type Engine interface {
	Query(ctx context.Context, snapshot Snapshot) (Table, error)
}

// Job is one query request dispatched to the worker pool. ClientID and ReqID let a session match a result (or a
// cancellation) back to the request that produced it.
type Job struct {
	ClientID string
	ReqID    int
	Snapshot Snapshot
}

// Dispatcher runs Engine queries on a bounded pond worker pool so a
// slow materialization can never starve a document session's
// goroutine. Grounded on the teacher's use of pond.WorkerPool to keep
// blob compression off the main GitParse loop.
type Dispatcher struct {
	engine Engine
	pool   *pond.WorkerPool
}

// NewDispatcher builds a Dispatcher backed by a pool of workers
// capped at maxWorkers concurrent queries.
func NewDispatcher(engine Engine, maxWorkers int) *Dispatcher {
	if maxWorkers <= 0 {
		maxWorkers = 4
	}
	return &Dispatcher{
		engine: engine,
		pool:   pond.New(maxWorkers, maxWorkers*4, pond.MinWorkers(1)),
	}
}

// Result is delivered once to Done after Submit's job completes, is
// canceled, or the dispatcher is stopped.
type Result struct {
	Job       Job
	Table     Table
	Err       error
	Cancelled bool
}

// Submit schedules job and returns a channel that receives exactly one
// Result, and a cancel function. Calling cancel before the job starts
// prevents it from ever running (Cancelled is reported); calling it
// after the job has started lets the job finish but discards the
// result — Done still receives a Cancelled Result so the caller can
// stop waiting.
func (d *Dispatcher) Submit(ctx context.Context, job Job) (done <-chan Result, cancel func()) {
	ch := make(chan Result, 1)
	ctx, cancelCtx := context.WithCancel(ctx)

	d.pool.Submit(func() {
		select {
		case <-ctx.Done():
			ch <- Result{Job: job, Cancelled: true}
			return
		default:
		}
		table, err := d.engine.Query(ctx, job.Snapshot)
		select {
		case <-ctx.Done():
			ch <- Result{Job: job, Cancelled: true}
		default:
			ch <- Result{Job: job, Table: table, Err: err}
		}
	})

	return ch, cancelCtx
}

// Stop waits for in-flight jobs to finish and releases pool workers.
func (d *Dispatcher) Stop() {
	d.pool.StopAndWait()
}

var errUnreachableRoot = fmt.Errorf("query: root node not present in snapshot")
