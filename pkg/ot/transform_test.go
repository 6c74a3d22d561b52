package ot

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/polda-go/pipelinedoc/pkg/otvalue"
)

// Property 3: forward then backward through the same op is identity.
func TestForwardBackwardInverse(t *testing.T) {
	cases := []struct {
		name string
		pos  otvalue.Path
		op   Operation
		pt   otvalue.PathType
	}{
		{
			name: "insert shifts then restores",
			pos:  path(otvalue.Field("a"), otvalue.Index(5)),
			op:   Insert(path(otvalue.Field("a"), otvalue.Index(2)), []otvalue.Value{otvalue.Number(1), otvalue.Number(2)}),
			pt:   otvalue.Exact,
		},
		{
			name: "delete before position shifts it down",
			pos:  path(otvalue.Field("a"), otvalue.Index(5)),
			op:   Delete(path(otvalue.Field("a"), otvalue.Index(1)), 2),
			pt:   otvalue.Exact,
		},
		{
			name: "increment never moves a position",
			pos:  path(otvalue.Field("n")),
			op:   Increment(path(otvalue.Field("n")), 3),
			pt:   otvalue.Change,
		},
	}

	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			forwarded, ok, err := TransformForward(c.pos, c.op, c.pt, false)
			require.NoError(t, err)
			require.True(t, ok)

			back, bt, err := TransformBackwardOrMap(forwarded, c.op, nil, c.pt)
			require.NoError(t, err)
			require.Equal(t, Transformed, bt)
			assert.True(t, c.pos.Equal(back))
		})
	}
}

// A Set destroys any position at or below it for the Change path type.
func TestSetDestroysPositionsBelow(t *testing.T) {
	op := Set(path(otvalue.Field("a")), otvalue.Null())
	_, ok, err := TransformForward(path(otvalue.Field("a"), otvalue.Field("b")), op, otvalue.Change, false)
	require.NoError(t, err)
	assert.False(t, ok)
}

// A Set leaves sibling positions untouched.
func TestSetLeavesSiblingsAlone(t *testing.T) {
	op := Set(path(otvalue.Field("a")), otvalue.Null())
	pos, ok, err := TransformForward(path(otvalue.Field("c")), op, otvalue.Exact, false)
	require.NoError(t, err)
	require.True(t, ok)
	assert.True(t, pos.Equal(path(otvalue.Field("c"))))
}

func TestMoveInvalidWhenFromIsAncestorOfTo(t *testing.T) {
	op := Move(path(otvalue.Field("a")), path(otvalue.Field("a"), otvalue.Field("b")))
	_, _, err := TransformForward(path(otvalue.Field("x")), op, otvalue.Exact, false)
	require.Error(t, err)
	var invalid *InvalidOperationError
	assert.ErrorAs(t, err, &invalid)
}
