package ot

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/polda-go/pipelinedoc/pkg/otvalue"
)

func TestOperationJSONRoundTrip(t *testing.T) {
	ops := []Operation{
		Insert(path(otvalue.Field("a"), otvalue.Index(0)), []otvalue.Value{otvalue.String("x")}),
		Delete(path(otvalue.Field("a"), otvalue.Index(0)), 2),
		InsertChars(path(otvalue.Field("s")), "hi"),
		DeleteChars(path(otvalue.Field("s")), 1),
		Move(path(otvalue.Field("a"), otvalue.Index(0)), path(otvalue.Field("a"), otvalue.Index(2))),
		Set(path(otvalue.Field("n")), otvalue.Number(5)),
		Increment(path(otvalue.Field("n")), 1),
		Decrement(path(otvalue.Field("n")), 1),
	}

	for _, op := range ops {
		data, err := json.Marshal(op)
		require.NoError(t, err)

		var out Operation
		require.NoError(t, json.Unmarshal(data, &out))
		assert.Equal(t, op.Kind, out.Kind)
	}
}

func TestOperationJSONTypeTag(t *testing.T) {
	op := Increment(path(otvalue.Field("n")), 3)
	data, err := json.Marshal(op)
	require.NoError(t, err)
	assert.JSONEq(t, `{"type":"increment","pos":[{"field":"n"}],"by":3}`, string(data))
}

func TestOperationJSONUnknownType(t *testing.T) {
	var op Operation
	err := json.Unmarshal([]byte(`{"type":"bogus"}`), &op)
	assert.Error(t, err)
}
