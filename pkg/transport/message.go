// Package transport implements the §6 wire protocol: the JSON request/
// response envelopes a client exchanges with a document session, and a
// gorilla/websocket server that is a thin adapter over pkg/session.
package transport

import (
	"encoding/json"
	"fmt"

	"github.com/polda-go/pipelinedoc/pkg/command"
	"github.com/polda-go/pipelinedoc/pkg/pipeline"
	"github.com/polda-go/pipelinedoc/pkg/query"
)

// ErrorCode is one of the §7 error kinds surfaced to a client.
type ErrorCode string

const (
	ErrParseError      ErrorCode = "PARSE_ERROR"
	ErrInvalidRequest  ErrorCode = "INVALID_REQUEST"
	ErrMethodNotFound  ErrorCode = "METHOD_NOT_FOUND"
	ErrInvalidParams   ErrorCode = "INVALID_PARAMS"
	ErrInternalError   ErrorCode = "INTERNAL_ERROR"
)

// ClientRequest is the envelope for every client->server message: the
// "type" discriminator plus the union of fields any request type uses.
// Unused fields are simply absent on the wire.
type ClientRequest struct {
	Type string `json:"type"`
	ID   int    `json:"id"`

	Path string `json:"path,omitempty"` // open_doc

	Version    int                  `json:"version,omitempty"`    // update_doc
	Operations []command.Operation  `json:"operations,omitempty"` // update_doc

	NodeID string `json:"node_id,omitempty"` // query

	Filename string `json:"filename,omitempty"` // read_file
}

// ServerMessage is the envelope for every server->client message. Only
// the fields relevant to Type are populated; others are omitted.
type ServerMessage struct {
	Type string `json:"type"`

	ID *int `json:"id,omitempty"`

	ClientID string `json:"client_id,omitempty"` // client_id

	Sources []string `json:"sources,omitempty"` // sources

	Version    int                 `json:"version,omitempty"`    // doc, update_doc
	Doc        *pipeline.Doc       `json:"doc,omitempty"`        // doc
	Operations []command.Operation `json:"operations,omitempty"` // update_doc

	Data *query.Table `json:"data,omitempty"` // query_result

	FileData *query.FilePreview `json:"file_data,omitempty"` // file_data

	Code ErrorCode `json:"code,omitempty"` // error
	Msg  string    `json:"msg,omitempty"`  // error
}

func withID(id int) *int { return &id }

func msgClientID(clientID string) ServerMessage {
	return ServerMessage{Type: "client_id", ClientID: clientID}
}

func msgSources(sources []string) ServerMessage {
	return ServerMessage{Type: "sources", Sources: sources}
}

func msgDoc(reqID, version int, doc *pipeline.Doc) ServerMessage {
	return ServerMessage{Type: "doc", ID: withID(reqID), Version: version, Doc: doc}
}

// msgUpdateDoc builds an update_doc broadcast. reqID is nil for every
// subscriber except the client whose submission produced the update,
// which receives its own request id as an acknowledgement.
func msgUpdateDoc(reqID *int, version int, ops []command.Operation) ServerMessage {
	return ServerMessage{Type: "update_doc", ID: reqID, Version: version, Operations: ops}
}

func msgQueryResult(reqID int, data query.Table) ServerMessage {
	return ServerMessage{Type: "query_result", ID: withID(reqID), Data: &data}
}

func msgFileData(reqID int, data query.FilePreview) ServerMessage {
	return ServerMessage{Type: "file_data", ID: withID(reqID), FileData: &data}
}

func msgJobCanceled(reqID int) ServerMessage {
	return ServerMessage{Type: "job_canceled", ID: withID(reqID)}
}

func msgDocClosed(reqID int) ServerMessage {
	return ServerMessage{Type: "doc_closed", ID: withID(reqID)}
}

func msgError(reqID *int, code ErrorCode, err error) ServerMessage {
	return ServerMessage{Type: "error", ID: reqID, Code: code, Msg: err.Error()}
}

// DecodeRequest parses one client message. A JSON syntax error is
// reported as ErrParseError by the caller; DecodeRequest itself only
// returns the raw unmarshal error.
func DecodeRequest(data []byte) (ClientRequest, error) {
	var req ClientRequest
	if err := json.Unmarshal(data, &req); err != nil {
		return ClientRequest{}, err
	}
	if req.Type == "" {
		return ClientRequest{}, fmt.Errorf("transport: request missing \"type\"")
	}
	return req, nil
}
