package ot

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/polda-go/pipelinedoc/pkg/otvalue"
)

func newCounterDoc() *valueDoc {
	return &valueDoc{root: otvalue.Object([]string{"count"}, map[string]otvalue.Value{
		"count": otvalue.Number(0),
	})}
}

func TestSessionApplyCommitsAndReturnsUndo(t *testing.T) {
	s := NewSession[*valueDoc](newCounterDoc())

	undos, err := s.Apply([][]Operation{{Increment(path(otvalue.Field("count")), 5)}}, 0)
	require.NoError(t, err)
	require.Len(t, undos, 1)
	assert.Equal(t, KindDecrement, undos[0].Kind)
	assert.Equal(t, 1, s.Version())

	v, err := s.Doc().at(path(otvalue.Field("count")))
	require.NoError(t, err)
	assert.Equal(t, 5.0, v.Num())
}

func TestSessionApplyRebasesAgainstConcurrentCommit(t *testing.T) {
	s := NewSession[*valueDoc](newCounterDoc())

	_, err := s.Apply([][]Operation{{Increment(path(otvalue.Field("count")), 1)}}, 0)
	require.NoError(t, err)

	// Client submits against version 0 even though version 1 has since
	// committed; Apply must rebase before applying.
	_, err = s.Apply([][]Operation{{Increment(path(otvalue.Field("count")), 10)}}, 0)
	require.NoError(t, err)

	v, err := s.Doc().at(path(otvalue.Field("count")))
	require.NoError(t, err)
	assert.Equal(t, 11.0, v.Num())
	assert.Equal(t, 2, s.Version())
}

func TestSessionApplyUnsyncableAfterCompact(t *testing.T) {
	s := NewSession[*valueDoc](newCounterDoc())
	_, err := s.Apply([][]Operation{{Increment(path(otvalue.Field("count")), 1)}}, 0)
	require.NoError(t, err)

	s.Compact(1)
	assert.False(t, s.Syncable(0))

	_, err = s.Apply([][]Operation{{Increment(path(otvalue.Field("count")), 1)}}, 0)
	assert.ErrorIs(t, err, ErrUnsyncable)
}

func TestSessionOperationsSince(t *testing.T) {
	s := NewSession[*valueDoc](newCounterDoc())
	_, err := s.Apply([][]Operation{{Increment(path(otvalue.Field("count")), 1)}}, 0)
	require.NoError(t, err)
	_, err = s.Apply([][]Operation{{Increment(path(otvalue.Field("count")), 2)}}, 1)
	require.NoError(t, err)

	ops, ok := s.OperationsSince(1)
	require.True(t, ok)
	require.Len(t, ops, 1)
	assert.Equal(t, 2.0, ops[0].By)

	_, ok = s.OperationsSince(100)
	assert.False(t, ok)
}

func TestSessionApplyRollsBackFailedTransaction(t *testing.T) {
	s := NewSession[*valueDoc](newCounterDoc())

	_, err := s.Apply([][]Operation{{
		Increment(path(otvalue.Field("count")), 5),
		Increment(path(otvalue.Field("missing"), otvalue.Field("deep")), 1),
	}}, 0)
	require.Error(t, err)

	// The whole transaction rolled back: count is untouched and nothing
	// committed.
	v, err := s.Doc().at(path(otvalue.Field("count")))
	require.NoError(t, err)
	assert.Equal(t, 0.0, v.Num())
	assert.Equal(t, 0, s.Version())
}
