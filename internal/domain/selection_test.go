package domain

import (
	"encoding/json"
	"testing"

	"github.com/paulmach/orb"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSelection(t *testing.T) {
	var empty Selection
	assert.False(t, empty.HasSelection())
	assert.False(t, empty.HasExactlyOne())

	sel := SelectIDs(3, 1, 3)
	assert.Equal(t, []int64{3, 1}, sel.IDs())
	assert.True(t, sel.HasSelection())
	assert.False(t, sel.HasExactlyOne())

	one := SelectIDs(7)
	assert.True(t, one.HasExactlyOne())

	drawing := SelectNewDrawing()
	assert.True(t, drawing.HasSelection())
	assert.True(t, drawing.IsNew())
	assert.False(t, drawing.HasExactlyOne())
	assert.Empty(t, drawing.IDs())
}

func TestSelection_IDsIsCopy(t *testing.T) {
	sel := SelectIDs(1, 2)
	ids := sel.IDs()
	ids[0] = 99
	assert.Equal(t, []int64{1, 2}, sel.IDs())
}

func TestSelection_JSON(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		want    Selection
		wantErr bool
	}{
		{name: "sentinel", input: `"new"`, want: SelectNewDrawing()},
		{name: "ids", input: `[4, 2, 4]`, want: SelectIDs(4, 2)},
		{name: "null", input: `null`, want: Selection{}},
		{name: "unknown sentinel", input: `"all"`, wantErr: true},
		{name: "object", input: `{"ids":[1]}`, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var sel Selection
			err := json.Unmarshal([]byte(tt.input), &sel)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want.IsNew(), sel.IsNew())
			assert.Equal(t, tt.want.IDs(), sel.IDs())
		})
	}

	data, err := json.Marshal(SelectNewDrawing())
	require.NoError(t, err)
	assert.Equal(t, `"new"`, string(data))

	data, err = json.Marshal(SelectIDs(5, 6))
	require.NoError(t, err)
	assert.Equal(t, `[5,6]`, string(data))
}

func TestDrawingBuffer(t *testing.T) {
	var buf DrawingBuffer
	assert.Nil(t, buf.Geometry())

	first := orb.Polygon{orb.Ring{{0, 0}, {1, 0}, {1, 1}, {0, 0}}}
	second := orb.Polygon{orb.Ring{{5, 5}, {6, 5}, {6, 6}, {5, 5}}}

	buf.Add(first)
	_, isPolygon := buf.Geometry().(orb.Polygon)
	assert.True(t, isPolygon)

	buf.Add(second)
	assert.Equal(t, 2, buf.Len())
	mp, ok := buf.Geometry().(orb.MultiPolygon)
	require.True(t, ok)
	assert.Equal(t, orb.MultiPolygon{first, second}, mp)

	// Geometry не очищает буфер, Flush очищает
	assert.Equal(t, 2, buf.Len())
	assert.NotNil(t, buf.Flush())
	assert.Zero(t, buf.Len())
}

func TestParseDrawingMode(t *testing.T) {
	mode, err := ParseDrawingMode("edit")
	require.NoError(t, err)
	assert.Equal(t, DrawingModeEdit, mode)

	_, err = ParseDrawingMode("circle")
	assert.Error(t, err)
}
