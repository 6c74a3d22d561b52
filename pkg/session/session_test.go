package session

import (
	"context"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/polda-go/pipelinedoc/pkg/command"
	"github.com/polda-go/pipelinedoc/pkg/pipeline"
	"github.com/polda-go/pipelinedoc/pkg/query"
)

func testDispatcher(t *testing.T) *query.Dispatcher {
	t.Helper()
	d := query.NewDispatcher(query.NewMemoryEngine(t.TempDir()), 2)
	t.Cleanup(d.Stop)
	return d
}

func silentLogger() *logrus.Logger {
	l := logrus.New()
	l.SetLevel(logrus.PanicLevel)
	return l
}

func TestSnapshotAfterSubscribeReportsVersionZero(t *testing.T) {
	s := New("doc1", pipeline.NewDoc(), testDispatcher(t), nil, silentLogger())
	defer s.Close()

	id, ch := s.Subscribe()
	require.NotEmpty(t, id)

	snap := s.Snapshot()
	assert.Equal(t, 0, snap.Version)
	_ = ch
}

func TestSubmitCommitsAndBroadcasts(t *testing.T) {
	s := New("doc1", pipeline.NewDoc(), testDispatcher(t), nil, silentLogger())
	defer s.Close()

	id, ch := s.Subscribe()

	n := pipeline.NewSelect("sel", pipeline.Position{})
	res := s.Submit(id, 1, 0, []command.Operation{command.InsertNode(n), command.InsertIndex("sel", 0)})
	require.NoError(t, res.Err)
	assert.Equal(t, 2, res.Version)

	select {
	case u := <-ch:
		assert.Equal(t, 2, u.Version)
		assert.Equal(t, 1, u.ReqID)
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for broadcast")
	}
}

func TestSubmitRejectsOutOfRangeBaseVersion(t *testing.T) {
	s := New("doc1", pipeline.NewDoc(), testDispatcher(t), nil, silentLogger())
	defer s.Close()

	id, _ := s.Subscribe()
	res := s.Submit(id, 1, 5, nil)
	assert.Error(t, res.Err)
}

func TestUnsubscribeClosesChannel(t *testing.T) {
	s := New("doc1", pipeline.NewDoc(), testDispatcher(t), nil, silentLogger())
	defer s.Close()

	id, ch := s.Subscribe()
	s.Unsubscribe(id)

	_, ok := <-ch
	assert.False(t, ok)
}

func TestUnsubscribeLastSubscriberTriggersOnIdle(t *testing.T) {
	idled := make(chan string, 1)
	s := New("doc1", pipeline.NewDoc(), testDispatcher(t), func(path string) { idled <- path }, silentLogger())
	defer s.Close()

	id, _ := s.Subscribe()
	s.Unsubscribe(id)

	select {
	case path := <-idled:
		assert.Equal(t, "doc1", path)
	case <-time.After(time.Second):
		t.Fatal("onIdle never fired")
	}
}

func TestSnapshotDoesNotAliasLiveDoc(t *testing.T) {
	s := New("doc1", pipeline.NewDoc(), testDispatcher(t), nil, silentLogger())
	defer s.Close()

	id, _ := s.Subscribe()

	n := pipeline.NewSelect("sel", pipeline.Position{})
	res := s.Submit(id, 1, 0, []command.Operation{command.InsertNode(n), command.InsertIndex("sel", 0)})
	require.NoError(t, res.Err)

	snap := s.Snapshot()
	require.Contains(t, snap.Doc.Nodes, "sel")

	// Mutating the node map a caller was handed must never reach the
	// session's own doc: Snapshot() must have deep-copied it.
	delete(snap.Doc.Nodes, "sel")
	snap.Doc.Index[0] = "tampered"

	again := s.Snapshot()
	assert.Contains(t, again.Doc.Nodes, "sel")
	assert.Equal(t, "sel", again.Doc.Index[0])
}

func TestQueryOnEmptyDocReturnsError(t *testing.T) {
	s := New("doc1", pipeline.NewDoc(), testDispatcher(t), nil, silentLogger())
	defer s.Close()

	id, _ := s.Subscribe()
	res := s.Query(context.Background(), id, 1, "missing")
	assert.Error(t, res.Err)
}
