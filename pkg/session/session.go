// Package session implements the document session: one goroutine per
// open document that owns every mutation to its pkg/pipeline.Doc, so
// concurrent client edits and queries never race. A Broker opens and
// closes sessions as clients subscribe and unsubscribe.
package session

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/polda-go/pipelinedoc/pkg/command"
	"github.com/polda-go/pipelinedoc/pkg/docexec"
	"github.com/polda-go/pipelinedoc/pkg/pipeline"
	"github.com/polda-go/pipelinedoc/pkg/query"
)

// Update is broadcast to every subscriber after a Submit commits, or
// returned by Snapshot with a full copy of the doc; Subscribe itself
// sends nothing on the channel. ReqID is non-zero
// only in the copy delivered to the originating client, echoing the
// request it acknowledges; every other subscriber sees ReqID == 0.
type Update struct {
	Version int
	Ops     []command.Operation // nil for the initial snapshot
	Doc     *pipeline.Doc
	ReqID   int
}

// SubmitResult is returned to the caller of Submit once the mutation
// (or its rejection) has been applied.
type SubmitResult struct {
	Version int
	Applied []command.Operation
	Err     error
}

// QueryResult is returned to the caller of Query.
type QueryResult struct {
	Table query.Table
	Err   error
}

type subscriber struct {
	id string
	ch chan Update
}

// request variants the session goroutine's loop selects over. Each
// carries its own reply channel; the loop never blocks waiting on a
// caller to receive, since every reply channel is buffered.
type subscribeReq struct {
	reply chan subscriber
}
type unsubscribeReq struct {
	id string
}
type submitReq struct {
	clientID    string
	reqID       int
	baseVersion int
	ops         []command.Operation
	reply       chan SubmitResult
}
type queryReq struct {
	ctx      context.Context
	rootID   string
	clientID string
	reqID    int
	reply    chan QueryResult
}
type snapshotReq struct {
	reply chan Update
}

// DocSession serializes every read and mutation of one document behind
// a single goroutine, grounded on the teacher's pattern of handing work
// to a dedicated pool rather than sharing mutable state across
// goroutines directly.
type DocSession struct {
	path       string
	log        *logrus.Entry
	dispatcher *query.Dispatcher

	requests chan interface{}
	done     chan struct{}

	onIdle func(path string)
}

// New starts a session's goroutine and returns the handle. doc is
// owned by the session from this point forward; callers must not touch
// it directly again.
func New(path string, doc *pipeline.Doc, dispatcher *query.Dispatcher, onIdle func(path string), log *logrus.Logger) *DocSession {
	s := &DocSession{
		path:       path,
		log:        log.WithField("doc", path),
		dispatcher: dispatcher,
		requests:   make(chan interface{}, 32),
		done:       make(chan struct{}),
		onIdle:     onIdle,
	}
	go s.run(doc)
	return s
}

func (s *DocSession) run(doc *pipeline.Doc) {
	defer close(s.done)

	ops := make([]command.Operation, 0)
	subs := make(map[string]subscriber)

	for req := range s.requests {
		switch r := req.(type) {

		case subscribeReq:
			id := uuid.NewString()
			ch := make(chan Update, 16)
			subs[id] = subscriber{id: id, ch: ch}
			r.reply <- subscriber{id: id, ch: ch}

		case unsubscribeReq:
			if sub, ok := subs[r.id]; ok {
				close(sub.ch)
				delete(subs, r.id)
			}
			if len(subs) == 0 && s.onIdle != nil {
				s.onIdle(s.path)
			}

		case snapshotReq:
			// doc is owned by this goroutine; hand the caller a deep
			// copy so encoding it on another goroutine can never race
			// with a later submitReq mutating doc in place (§5).
			r.reply <- Update{Version: len(ops), Doc: doc.Clone(), Ops: nil}

		case submitReq:
			if r.baseVersion < 0 || r.baseVersion > len(ops) {
				r.reply <- SubmitResult{Err: fmt.Errorf("session: base_version %d out of range", r.baseVersion)}
				continue
			}
			precededBy := ops[r.baseVersion:]
			if err := command.ValidateSequence(r.ops); err != nil {
				r.reply <- SubmitResult{Err: err}
				continue
			}
			transformed := command.TransformBatch(r.ops, precededBy)

			exec := docexec.New(doc)
			applied, err := exec.ExecuteOperations(transformed)
			if err != nil {
				r.reply <- SubmitResult{Err: err}
				continue
			}
			committed := append(append([]command.Operation{}, transformed...), applied...)
			ops = append(ops, committed...)

			r.reply <- SubmitResult{Version: len(ops), Applied: committed}
			for id, sub := range subs {
				// The broadcast carries only version + operations per
				// §6; doc itself stays owned by this goroutine.
				u := Update{Version: len(ops), Ops: committed}
				if id == r.clientID {
					u.ReqID = r.reqID
				}
				select {
				case sub.ch <- u:
				default:
					s.log.WithField("subscriber", id).Warn("subscriber channel full, dropping update")
				}
			}

		case queryReq:
			snapshot := snapshotOf(doc, r.rootID)
			job := query.Job{ClientID: r.clientID, ReqID: r.reqID, Snapshot: snapshot}
			resultCh, cancel := s.dispatcher.Submit(r.ctx, job)
			go func(reply chan QueryResult) {
				res := <-resultCh
				if res.Cancelled {
					reply <- QueryResult{Err: context.Canceled}
					return
				}
				reply <- QueryResult{Table: res.Table, Err: res.Err}
			}(r.reply)
			_ = cancel // caller cancels via r.ctx; kept for future cancel-by-job-id wiring
		}
	}
}

func snapshotOf(doc *pipeline.Doc, rootID string) query.Snapshot {
	nodes := make(map[string]pipeline.Node, len(doc.Nodes))
	visited := map[string]bool{}
	var walk func(id string)
	walk = func(id string) {
		if visited[id] {
			return
		}
		visited[id] = true
		n, ok := doc.Node(id)
		if !ok {
			return
		}
		nodes[id] = n.Clone()
		for _, in := range n.Inputs() {
			if in != nil {
				walk(*in)
			}
		}
	}
	walk(rootID)
	return query.Snapshot{Root: rootID, Nodes: nodes}
}

// Subscribe registers a new listener and returns its id and update
// channel. The channel is closed on Unsubscribe; callers must not send
// on it.
func (s *DocSession) Subscribe() (string, <-chan Update) {
	reply := make(chan subscriber, 1)
	s.requests <- subscribeReq{reply: reply}
	sub := <-reply
	return sub.id, sub.ch
}

func (s *DocSession) Unsubscribe(id string) {
	s.requests <- unsubscribeReq{id: id}
}

// Snapshot returns the current document and version without
// registering a subscription.
func (s *DocSession) Snapshot() Update {
	reply := make(chan Update, 1)
	s.requests <- snapshotReq{reply: reply}
	return <-reply
}

// Submit applies ops, reconciled against whatever was committed since
// baseVersion, and returns once the result (success or rejection) is
// known. clientID must be the id returned by Subscribe: it identifies
// which subscriber's broadcast copy carries reqID as an acknowledgement.
func (s *DocSession) Submit(clientID string, reqID int, baseVersion int, ops []command.Operation) SubmitResult {
	reply := make(chan SubmitResult, 1)
	s.requests <- submitReq{clientID: clientID, reqID: reqID, baseVersion: baseVersion, ops: ops, reply: reply}
	return <-reply
}

// Query materializes the subgraph rooted at rootID on the session's
// query dispatcher and returns once the result (or cancellation) is
// known. Cancel ctx to cancel the query.
func (s *DocSession) Query(ctx context.Context, clientID string, reqID int, rootID string) QueryResult {
	reply := make(chan QueryResult, 1)
	s.requests <- queryReq{ctx: ctx, rootID: rootID, clientID: clientID, reqID: reqID, reply: reply}
	return <-reply
}

// Close stops the session's goroutine. Pending requests already queued
// are still processed; no new ones should be sent afterward.
func (s *DocSession) Close() {
	close(s.requests)
	<-s.done
}
