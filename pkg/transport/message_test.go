package transport

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/polda-go/pipelinedoc/pkg/command"
)

func TestDecodeRequestOpenDoc(t *testing.T) {
	req, err := DecodeRequest([]byte(`{"type":"open_doc","id":1,"path":"a.doc"}`))
	require.NoError(t, err)
	assert.Equal(t, "open_doc", req.Type)
	assert.Equal(t, 1, req.ID)
	assert.Equal(t, "a.doc", req.Path)
}

func TestDecodeRequestUpdateDocWithOperations(t *testing.T) {
	raw := `{"type":"update_doc","id":2,"version":3,"operations":[{"type":"set_csv_path","node_id":"n1","csv_path":"b.csv"}]}`
	req, err := DecodeRequest([]byte(raw))
	require.NoError(t, err)
	require.Len(t, req.Operations, 1)
	assert.Equal(t, command.KindSetCsvPath, req.Operations[0].Kind)
	assert.Equal(t, 3, req.Version)
}

func TestDecodeRequestMissingTypeErrors(t *testing.T) {
	_, err := DecodeRequest([]byte(`{"id":1}`))
	assert.Error(t, err)
}

func TestDecodeRequestMalformedJSONErrors(t *testing.T) {
	_, err := DecodeRequest([]byte(`{not json`))
	assert.Error(t, err)
}

func TestServerMessageErrorShape(t *testing.T) {
	id := 5
	msg := msgError(&id, ErrInvalidRequest, assert.AnError)
	data, err := json.Marshal(msg)
	require.NoError(t, err)

	var out map[string]interface{}
	require.NoError(t, json.Unmarshal(data, &out))
	assert.Equal(t, "error", out["type"])
	assert.Equal(t, string(ErrInvalidRequest), out["code"])
	assert.Equal(t, float64(5), out["id"])
}

func TestServerMessageClientIDShape(t *testing.T) {
	msg := msgClientID("abc123")
	data, err := json.Marshal(msg)
	require.NoError(t, err)
	assert.JSONEq(t, `{"type":"client_id","client_id":"abc123"}`, string(data))
}

func TestServerMessageSourcesShape(t *testing.T) {
	msg := msgSources([]string{"a.csv", "b.csv"})
	data, err := json.Marshal(msg)
	require.NoError(t, err)
	assert.JSONEq(t, `{"type":"sources","sources":["a.csv","b.csv"]}`, string(data))
}
