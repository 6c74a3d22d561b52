package session

import (
	"fmt"
	"os"
	"sync"

	"github.com/sirupsen/logrus"

	"github.com/polda-go/pipelinedoc/pkg/pipeline"
	"github.com/polda-go/pipelinedoc/pkg/query"
)

// DocLoader reads a document's persisted state from path and builds the
// in-memory Doc a session starts from. A fresh, empty Doc is a valid
// loader result for a path that doesn't exist yet.
type DocLoader func(path string) (*pipeline.Doc, error)

// Broker owns the set of currently open sessions, one per document
// path, and opens/closes them on demand. Grounded on the teacher's
// single long-lived process holding a pool of workers: here the "pool"
// is a map of goroutines instead, one per open document rather than
// one per unit of work, since a document's state must be serialized
// across every client touching it.
type Broker struct {
	mu       sync.Mutex
	sessions map[string]*DocSession

	load       DocLoader
	dispatcher *query.Dispatcher
	log        *logrus.Logger
}

func NewBroker(load DocLoader, dispatcher *query.Dispatcher, log *logrus.Logger) *Broker {
	return &Broker{
		sessions:   make(map[string]*DocSession),
		load:       load,
		dispatcher: dispatcher,
		log:        log,
	}
}

// Open returns the running session for path, starting one if none is
// open yet.
func (b *Broker) Open(path string) (*DocSession, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if s, ok := b.sessions[path]; ok {
		return s, nil
	}
	doc, err := b.load(path)
	if err != nil {
		return nil, fmt.Errorf("broker: failed to open %q: %w", path, err)
	}
	s := New(path, doc, b.dispatcher, b.onSessionIdle, b.log)
	b.sessions[path] = s
	b.log.WithField("doc", path).Info("opened document session")
	return s, nil
}

// onSessionIdle is called from a session's own goroutine once its last
// subscriber leaves; it tears the session down. Close must not run on
// the calling goroutine: it is the session's own run loop, and Close
// blocks until that loop returns, so closing synchronously here would
// deadlock the session against itself.
func (b *Broker) onSessionIdle(path string) {
	b.mu.Lock()
	s, ok := b.sessions[path]
	if ok {
		delete(b.sessions, path)
	}
	b.mu.Unlock()
	if ok {
		b.log.WithField("doc", path).Info("closing idle document session")
		go s.Close()
	}
}

// Close tears every open session down; used at shutdown.
func (b *Broker) Close() {
	b.mu.Lock()
	sessions := make([]*DocSession, 0, len(b.sessions))
	for _, s := range b.sessions {
		sessions = append(sessions, s)
	}
	b.sessions = make(map[string]*DocSession)
	b.mu.Unlock()
	for _, s := range sessions {
		s.Close()
	}
}

// LoadOrCreate is the default DocLoader: it reads path from disk if it
// exists, and otherwise hands back a fresh empty Doc.
func LoadOrCreate(decode func([]byte) (*pipeline.Doc, error)) DocLoader {
	return func(path string) (*pipeline.Doc, error) {
		data, err := os.ReadFile(path)
		if os.IsNotExist(err) {
			return pipeline.NewDoc(), nil
		}
		if err != nil {
			return nil, err
		}
		return decode(data)
	}
}
