package transport

import (
	"context"
	"errors"
	"net/http"
	"sync"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"

	"github.com/polda-go/pipelinedoc/pkg/query"
	"github.com/polda-go/pipelinedoc/pkg/session"
)

// Server is a gorilla/websocket adapter over a pkg/session.Broker: one
// connection goroutine per client translates §6 JSON requests into
// Broker/DocSession calls and forwards DocSession broadcasts back out.
// It holds no document state of its own.
type Server struct {
	broker  *session.Broker
	sources string // directory listed for the sources{} message
	log     *logrus.Logger

	upgrader websocket.Upgrader
}

func NewServer(broker *session.Broker, sourcesDir string, log *logrus.Logger) *Server {
	return &Server{
		broker:  broker,
		sources: sourcesDir,
		log:     log,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  4096,
			WriteBufferSize: 4096,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
	}
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.log.WithError(err).Warn("websocket upgrade failed")
		return
	}
	c := newConn(s, conn)
	c.run()
}

// jobHandle lets cancel_job stop an in-flight query or read_file by
// request id.
type jobHandle struct {
	cancel context.CancelFunc
}

// conn is the per-client state: its websocket, its current document
// subscription (if any), and the outstanding jobs it can still cancel.
type conn struct {
	s        *Server
	ws       *websocket.Conn
	clientID string
	log      *logrus.Entry

	writeMu sync.Mutex

	docMu   sync.Mutex
	doc     *session.DocSession
	docPath string
	subID   string
	cancel  context.CancelFunc // stops the current subscription forwarder

	jobsMu sync.Mutex
	jobs   map[int]jobHandle
}

func newConn(s *Server, ws *websocket.Conn) *conn {
	return &conn{
		s:        s,
		ws:       ws,
		clientID: uuid.NewString(),
		jobs:     map[int]jobHandle{},
	}
}

func (c *conn) run() {
	c.log = c.s.log.WithField("client", c.clientID)
	defer c.ws.Close()
	defer c.closeDoc()

	c.send(msgClientID(c.clientID))
	if c.s.sources != "" {
		if sources, err := query.ListSources(c.s.sources); err == nil {
			c.send(msgSources(sources))
		}
	}

	for {
		_, data, err := c.ws.ReadMessage()
		if err != nil {
			if !websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				c.log.WithError(err).Debug("websocket read ended")
			}
			return
		}
		req, err := DecodeRequest(data)
		if err != nil {
			c.send(msgError(nil, ErrParseError, err))
			continue
		}
		c.handle(req)
	}
}

func (c *conn) send(msg ServerMessage) {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	if err := c.ws.WriteJSON(msg); err != nil {
		c.log.WithError(err).Debug("websocket write failed")
	}
}

func (c *conn) handle(req ClientRequest) {
	switch req.Type {
	case "open_doc":
		c.openDoc(req)
	case "get_doc":
		c.getDoc(req)
	case "update_doc":
		c.updateDoc(req)
	case "query":
		c.query(req)
	case "read_file":
		c.readFile(req)
	case "cancel_job":
		c.cancelJob(req)
	case "close_doc":
		c.closeDocRequest(req)
	default:
		c.send(msgError(withID(req.ID), ErrMethodNotFound, errors.New("transport: unknown request type "+req.Type)))
	}
}

// openDoc subscribes the client to path, tearing down any previous
// subscription first (§6: "unsubscribe from any previous one").
func (c *conn) openDoc(req ClientRequest) {
	if req.Path == "" {
		c.send(msgError(withID(req.ID), ErrInvalidParams, errors.New("transport: open_doc requires path")))
		return
	}
	c.closeDoc()

	doc, err := c.s.broker.Open(req.Path)
	if err != nil {
		c.send(msgError(withID(req.ID), ErrInternalError, err))
		return
	}
	subID, updates := doc.Subscribe()

	ctx, cancel := context.WithCancel(context.Background())
	c.docMu.Lock()
	c.doc, c.docPath, c.subID, c.cancel = doc, req.Path, subID, cancel
	c.docMu.Unlock()

	go c.forward(ctx, updates)

	snap := doc.Snapshot()
	c.send(msgDoc(req.ID, snap.Version, snap.Doc))
}

// forward relays every broadcast a subscription receives to the
// websocket until ctx is cancelled (by closeDoc) or the channel closes
// (the session tore itself down).
func (c *conn) forward(ctx context.Context, updates <-chan session.Update) {
	for {
		select {
		case <-ctx.Done():
			return
		case u, ok := <-updates:
			if !ok {
				return
			}
			var reqID *int
			if u.ReqID != 0 {
				reqID = withID(u.ReqID)
			}
			c.send(msgUpdateDoc(reqID, u.Version, u.Ops))
		}
	}
}

func (c *conn) getDoc(req ClientRequest) {
	doc := c.currentDoc()
	if doc == nil {
		c.send(msgError(withID(req.ID), ErrInvalidRequest, errors.New("transport: get_doc before open_doc")))
		return
	}
	snap := doc.Snapshot()
	c.send(msgDoc(req.ID, snap.Version, snap.Doc))
}

func (c *conn) updateDoc(req ClientRequest) {
	doc := c.currentDoc()
	if doc == nil {
		c.send(msgError(withID(req.ID), ErrInvalidRequest, errors.New("transport: update_doc before open_doc")))
		return
	}
	c.docMu.Lock()
	subID := c.subID
	c.docMu.Unlock()

	result := doc.Submit(subID, req.ID, req.Version, req.Operations)
	if result.Err != nil {
		// §7: Unsyncable and validation/transform failures both surface
		// to the submitting client as InvalidRequest; an Unsyncable
		// client must refetch via get_doc and retry.
		c.send(msgError(withID(req.ID), ErrInvalidRequest, result.Err))
		return
	}
	// The success acknowledgement is delivered through the same
	// broadcast fan-out every subscriber receives (forward), carrying
	// req.ID as ReqID for this client only — nothing further to send here.
}

func (c *conn) query(req ClientRequest) {
	doc := c.currentDoc()
	if doc == nil {
		c.send(msgError(withID(req.ID), ErrInvalidRequest, errors.New("transport: query before open_doc")))
		return
	}
	ctx, cancel := context.WithCancel(context.Background())
	c.trackJob(req.ID, cancel)
	go func() {
		defer c.untrackJob(req.ID)
		res := doc.Query(ctx, c.clientIDFor(), req.ID, req.NodeID)
		if errors.Is(res.Err, context.Canceled) {
			c.send(msgJobCanceled(req.ID))
			return
		}
		if res.Err != nil {
			c.send(msgError(withID(req.ID), ErrInternalError, res.Err))
			return
		}
		c.send(msgQueryResult(req.ID, res.Table))
	}()
}

func (c *conn) readFile(req ClientRequest) {
	if req.Filename == "" {
		c.send(msgError(withID(req.ID), ErrInvalidParams, errors.New("transport: read_file requires filename")))
		return
	}
	ctx, cancel := context.WithCancel(context.Background())
	c.trackJob(req.ID, cancel)
	go func() {
		defer c.untrackJob(req.ID)
		preview, err := query.PreviewFile(c.s.sources, req.Filename)
		if ctx.Err() != nil {
			c.send(msgJobCanceled(req.ID))
			return
		}
		if err != nil {
			c.send(msgError(withID(req.ID), ErrInternalError, err))
			return
		}
		c.send(msgFileData(req.ID, preview))
	}()
}

func (c *conn) cancelJob(req ClientRequest) {
	c.jobsMu.Lock()
	job, ok := c.jobs[req.ID]
	c.jobsMu.Unlock()
	if !ok {
		return
	}
	job.cancel()
}

func (c *conn) closeDocRequest(req ClientRequest) {
	c.closeDoc()
	c.send(msgDocClosed(req.ID))
}

func (c *conn) closeDoc() {
	c.docMu.Lock()
	doc, subID, cancel := c.doc, c.subID, c.cancel
	c.doc, c.docPath, c.subID, c.cancel = nil, "", "", nil
	c.docMu.Unlock()

	if cancel != nil {
		cancel()
	}
	if doc != nil && subID != "" {
		doc.Unsubscribe(subID)
	}
}

func (c *conn) currentDoc() *session.DocSession {
	c.docMu.Lock()
	defer c.docMu.Unlock()
	return c.doc
}

func (c *conn) clientIDFor() string {
	c.docMu.Lock()
	defer c.docMu.Unlock()
	return c.subID
}

func (c *conn) trackJob(reqID int, cancel context.CancelFunc) {
	c.jobsMu.Lock()
	c.jobs[reqID] = jobHandle{cancel: cancel}
	c.jobsMu.Unlock()
}

func (c *conn) untrackJob(reqID int) {
	c.jobsMu.Lock()
	delete(c.jobs, reqID)
	c.jobsMu.Unlock()
}
