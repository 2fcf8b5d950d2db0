package mldata_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tsi-mlops/mldata/pkg/mldata"
)

func TestNormalizePolygonBothEncodings(t *testing.T) {
	fromXY, err := mldata.NormalizePolygon(`[{"x":3,"y":4}]`)
	require.NoError(t, err)

	fromLeftTop, err := mldata.NormalizePolygon(`[{"left":3,"top":4}]`)
	require.NoError(t, err)

	assert.Equal(t, fromXY, fromLeftTop)
	assert.Equal(t, []mldata.Point{{X: 3, Y: 4}}, fromXY)
}

func TestNormalizePolygonPreservesOrder(t *testing.T) {
	points, err := mldata.NormalizePolygon(`[{"x":0.9,"y":0.1},{"left":0.1,"top":0.1},{"x":0.5,"y":0.8}]`)
	require.NoError(t, err)

	assert.Equal(t, []mldata.Point{
		{X: 0.9, Y: 0.1},
		{X: 0.1, Y: 0.1},
		{X: 0.5, Y: 0.8},
	}, points)
}

func TestNormalizePolygonEmptyListIsValid(t *testing.T) {
	points, err := mldata.NormalizePolygon(`[]`)
	require.NoError(t, err)
	assert.Empty(t, points)
}

func TestNormalizePolygonFrameBounds(t *testing.T) {
	points, err := mldata.NormalizePolygon(`[{"x":1,"y":2,"begin_frame":10,"end_frame":20}]`)
	require.NoError(t, err)
	require.Len(t, points, 1)
	require.NotNil(t, points[0].BeginFrame)
	require.NotNil(t, points[0].EndFrame)
	assert.Equal(t, 10, *points[0].BeginFrame)
	assert.Equal(t, 20, *points[0].EndFrame)

	_, err = mldata.NormalizePolygon(`[{"x":1,"y":2,"begin_frame":10}]`)
	assert.ErrorIs(t, err, mldata.ErrInvalidPolygon)
}

func TestNormalizePolygonRejectsBadInput(t *testing.T) {
	tests := []struct {
		name  string
		input string
	}{
		{"malformed JSON", "invalid"},
		{"empty string", ""},
		{"null", "null"},
		{"object instead of list", `{"x":1,"y":2}`},
		{"missing y", `[{"x":1}]`},
		{"missing x", `[{"top":2}]`},
		{"mixed valid and invalid points", `[{"x":1,"y":2},{"left":3}]`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := mldata.NormalizePolygon(tt.input)
			assert.ErrorIs(t, err, mldata.ErrInvalidPolygon)
		})
	}
}

func TestEncodePolygonCanonicalizesEncodings(t *testing.T) {
	a, err := mldata.NormalizePolygon(`[{"left":0.25,"top":0.75}]`)
	require.NoError(t, err)
	b, err := mldata.NormalizePolygon(`[{"x":0.25,"y":0.75}]`)
	require.NoError(t, err)

	assert.Equal(t, mldata.EncodePolygon(a), mldata.EncodePolygon(b))
}

func TestPolygonForDisplayDegradesToEmpty(t *testing.T) {
	assert.Empty(t, mldata.PolygonForDisplay("not json"))
	assert.Empty(t, mldata.PolygonForDisplay("null"))
	assert.Empty(t, mldata.PolygonForDisplay(""))

	points := mldata.PolygonForDisplay(`[{"x":1,"y":2}]`)
	assert.Equal(t, []mldata.Point{{X: 1, Y: 2}}, points)
}
