package command

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/polda-go/pipelinedoc/pkg/pipeline"
)

func TestOperationJSONRoundTripAllKinds(t *testing.T) {
	n := pipeline.NewLoadCsv("n1", pipeline.Position{X: 1, Y: 2}, "a.csv")
	in := "n0"

	ops := []Operation{
		InsertNode(n),
		DeleteNode("n1"),
		InsertIndex("n1", 0),
		DeleteIndex("n1", 0),
		SetPosition("n1", pipeline.Position{X: 3, Y: 4}),
		SetInput("n1", pipeline.Secondary, &in),
		SetCsvPath("n1", "b.csv"),
		SetJoinType("n1", pipeline.JoinLeft),
		InsertAggregate("n1", 0, pipeline.Aggregate{Column: "c", Computation: pipeline.AggSum}),
		DeleteAggregate("n1", 0),
		SetAggregateField("n1", 0, "alias", "total"),
		InsertFilter("n1", 0, pipeline.Filter{Column: "c", Predicate: pipeline.FilterPredicate{Kind: pipeline.IsEqualTo, Operand: pipeline.Constant("x")}}),
		InsertJoinColumn("n1", 0, pipeline.JoinColumn{Left: "a", Right: "b"}),
		InsertSelect("n1", 0, pipeline.SelectColumn{Column: "c"}),
		InsertSorter("n1", 0, pipeline.Sorter{Column: "c", Direction: pipeline.Desc}),
	}

	for _, op := range ops {
		data, err := json.Marshal(op)
		require.NoError(t, err)

		var out Operation
		require.NoError(t, json.Unmarshal(data, &out))
		assert.Equal(t, op.Kind, out.Kind)
		assert.Equal(t, op.NodeID, out.NodeID)
	}
}

func TestOperationJSONSetXFieldEnumAndStructValues(t *testing.T) {
	ops := []Operation{
		SetAggregateField("n1", 0, "computation", pipeline.AggMax),
		SetFilterField("n1", 0, "predicate", pipeline.FilterPredicate{Kind: pipeline.IsGreaterThan, Operand: pipeline.Constant("3")}),
		SetSorterField("n1", 0, "direction", pipeline.Desc),
	}

	for _, op := range ops {
		data, err := json.Marshal(op)
		require.NoError(t, err)

		var out Operation
		require.NoError(t, json.Unmarshal(data, &out))
		assert.Equal(t, op.FieldValue, out.FieldValue)
	}
}

func TestOperationJSONSetAggregateFieldRejectsMistypedFieldValue(t *testing.T) {
	// A wire-format numeric field_value for an enum field no longer
	// decodes into an interface{} that would panic a bare type
	// assertion downstream; it is decoded straight into the concrete
	// AggregateComputation, whose own UnmarshalJSON rejects a raw
	// number and returns a clean error instead.
	var op Operation
	err := json.Unmarshal([]byte(`{"type":"set_aggregate_field","node_id":"n1","index":0,"field":"computation","field_value":6}`), &op)
	assert.Error(t, err)

	err = json.Unmarshal([]byte(`{"type":"set_aggregate_field","node_id":"n1","index":0,"field":"computation","field_value":"sum"}`), &op)
	require.NoError(t, err)
	assert.Equal(t, pipeline.AggSum, op.FieldValue)
}

func TestOperationJSONSetInputWireTag(t *testing.T) {
	in := "n0"
	op := SetInput("n1", pipeline.Secondary, &in)
	data, err := json.Marshal(op)
	require.NoError(t, err)
	assert.JSONEq(t, `{"type":"set_input","node_id":"n1","input_name":"secondary","input":"n0"}`, string(data))
}

func TestOperationJSONUnknownType(t *testing.T) {
	var op Operation
	err := json.Unmarshal([]byte(`{"type":"bogus"}`), &op)
	assert.Error(t, err)
}
