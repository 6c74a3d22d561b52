package transport

import (
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/polda-go/pipelinedoc/pkg/pipeline"
	"github.com/polda-go/pipelinedoc/pkg/query"
	"github.com/polda-go/pipelinedoc/pkg/session"
)

func testServer(t *testing.T, sourcesDir string) (*httptest.Server, *session.Broker) {
	t.Helper()
	log := logrus.New()
	log.SetLevel(logrus.PanicLevel)

	loader := session.LoadOrCreate(func([]byte) (*pipeline.Doc, error) { return pipeline.NewDoc(), nil })
	dispatcher := query.NewDispatcher(query.NewMemoryEngine(sourcesDir), 2)
	broker := session.NewBroker(loader, dispatcher, log)
	t.Cleanup(func() { broker.Close(); dispatcher.Stop() })

	srv := NewServer(broker, sourcesDir, log)
	hs := httptest.NewServer(srv)
	t.Cleanup(hs.Close)
	return hs, broker
}

func dial(t *testing.T, hs *httptest.Server) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(hs.URL, "http") + "/"
	ws, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { ws.Close() })
	ws.SetReadDeadline(time.Now().Add(5 * time.Second))
	return ws
}

func TestServerSendsClientIDOnConnect(t *testing.T) {
	hs, _ := testServer(t, t.TempDir())
	ws := dial(t, hs)

	var msg ServerMessage
	require.NoError(t, ws.ReadJSON(&msg))
	assert.Equal(t, "client_id", msg.Type)
	assert.NotEmpty(t, msg.ClientID)
}

func TestServerOpenDocReturnsSnapshot(t *testing.T) {
	hs, _ := testServer(t, t.TempDir())
	ws := dial(t, hs)

	var hello ServerMessage
	require.NoError(t, ws.ReadJSON(&hello))

	require.NoError(t, ws.WriteJSON(map[string]interface{}{"type": "open_doc", "id": 1, "path": "a.doc"}))

	var msg ServerMessage
	require.NoError(t, ws.ReadJSON(&msg))
	assert.Equal(t, "doc", msg.Type)
	require.NotNil(t, msg.ID)
	assert.Equal(t, 1, *msg.ID)
	assert.Equal(t, 0, msg.Version)
}

func TestServerUpdateDocBroadcastsAcknowledgement(t *testing.T) {
	hs, _ := testServer(t, t.TempDir())
	ws := dial(t, hs)

	var hello ServerMessage
	require.NoError(t, ws.ReadJSON(&hello))
	require.NoError(t, ws.WriteJSON(map[string]interface{}{"type": "open_doc", "id": 1, "path": "a.doc"}))
	var snap ServerMessage
	require.NoError(t, ws.ReadJSON(&snap))

	update := map[string]interface{}{
		"type":    "update_doc",
		"id":      2,
		"version": 0,
		"operations": []map[string]interface{}{
			{"type": "insert_node", "node": map[string]interface{}{
				"id": "sel", "kind": "select", "position": map[string]interface{}{"x": 0, "y": 0},
			}},
			{"type": "insert_index", "node_id": "sel", "index": 0},
		},
	}
	require.NoError(t, ws.WriteJSON(update))

	var ack ServerMessage
	require.NoError(t, ws.ReadJSON(&ack))
	assert.Equal(t, "update_doc", ack.Type)
	require.NotNil(t, ack.ID)
	assert.Equal(t, 2, *ack.ID)
	assert.Equal(t, 2, ack.Version)
}

func TestServerGetDocBeforeOpenDocErrors(t *testing.T) {
	hs, _ := testServer(t, t.TempDir())
	ws := dial(t, hs)

	var hello ServerMessage
	require.NoError(t, ws.ReadJSON(&hello))
	require.NoError(t, ws.WriteJSON(map[string]interface{}{"type": "get_doc", "id": 1}))

	var msg ServerMessage
	require.NoError(t, ws.ReadJSON(&msg))
	assert.Equal(t, "error", msg.Type)
	assert.Equal(t, ErrInvalidRequest, msg.Code)
}

func TestServerUnknownRequestTypeIsMethodNotFound(t *testing.T) {
	hs, _ := testServer(t, t.TempDir())
	ws := dial(t, hs)

	var hello ServerMessage
	require.NoError(t, ws.ReadJSON(&hello))
	require.NoError(t, ws.WriteJSON(map[string]interface{}{"type": "bogus", "id": 9}))

	var msg ServerMessage
	require.NoError(t, ws.ReadJSON(&msg))
	assert.Equal(t, "error", msg.Type)
	assert.Equal(t, ErrMethodNotFound, msg.Code)
}

func TestServerReadFileReturnsPreview(t *testing.T) {
	dir := t.TempDir()
	writeCSVFile(t, dir, "a.csv", "id,name\n1,alice\n")

	hs, _ := testServer(t, dir)
	ws := dial(t, hs)

	var hello ServerMessage
	require.NoError(t, ws.ReadJSON(&hello))
	var sources ServerMessage
	require.NoError(t, ws.ReadJSON(&sources))
	assert.Equal(t, "sources", sources.Type)

	require.NoError(t, ws.WriteJSON(map[string]interface{}{"type": "read_file", "id": 3, "filename": "a.csv"}))

	var msg ServerMessage
	require.NoError(t, ws.ReadJSON(&msg))
	assert.Equal(t, "file_data", msg.Type)
	require.NotNil(t, msg.FileData)
	assert.Equal(t, "a.csv", msg.FileData.Filename)
}

func TestServerCloseDocAcknowledges(t *testing.T) {
	hs, _ := testServer(t, t.TempDir())
	ws := dial(t, hs)

	var hello ServerMessage
	require.NoError(t, ws.ReadJSON(&hello))
	require.NoError(t, ws.WriteJSON(map[string]interface{}{"type": "open_doc", "id": 1, "path": "a.doc"}))
	var snap ServerMessage
	require.NoError(t, ws.ReadJSON(&snap))

	require.NoError(t, ws.WriteJSON(map[string]interface{}{"type": "close_doc", "id": 4}))
	var msg ServerMessage
	require.NoError(t, ws.ReadJSON(&msg))
	assert.Equal(t, "doc_closed", msg.Type)
	require.NotNil(t, msg.ID)
	assert.Equal(t, 4, *msg.ID)
}

func TestNewServerUsesHTTP(t *testing.T) {
	// Sanity check that Server is a plain http.Handler before it ever
	// touches a websocket, since ServeHTTP is the only contract
	// httptest.NewServer relies on.
	var _ http.Handler = &Server{}
}

func writeCSVFile(t *testing.T, dir, name, body string) {
	t.Helper()
	require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(body), 0o644))
}
