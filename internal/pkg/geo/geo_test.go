package geo

import (
	"testing"

	"github.com/paulmach/orb"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func square(minX, minY, maxX, maxY float64) orb.Polygon {
	return orb.Polygon{orb.Ring{
		{minX, minY}, {maxX, minY}, {maxX, maxY}, {minX, maxY}, {minX, minY},
	}}
}

const packageJSON = `{
  "type": "FeatureCollection",
  "features": [
    {
      "type": "Feature",
      "properties": {"geography_id": "a1", "name": "Stationsplein"},
      "geometry": {"type": "Polygon", "coordinates": [[[5.0,52.0],[5.1,52.0],[5.1,52.1],[5.0,52.1],[5.0,52.0]]]}
    },
    {
      "type": "Feature",
      "properties": {"geography_id": 42, "name": "Markt"},
      "geometry": {"type": "MultiPolygon", "coordinates": [[[[5.2,52.2],[5.3,52.2],[5.3,52.3],[5.2,52.2]]]]}
    },
    {
      "type": "Feature",
      "properties": {},
      "geometry": {"type": "Polygon", "coordinates": [[[5.0,52.0],[5.1,52.0],[5.1,52.1]]]}
    }
  ]
}`

func TestParsePackage(t *testing.T) {
	t.Run("parses polygons and multipolygons", func(t *testing.T) {
		features, err := ParsePackage([]byte(packageJSON))
		require.NoError(t, err)
		require.Len(t, features, 3)

		assert.Equal(t, "a1", features[0].GeographyID)
		assert.Equal(t, "Stationsplein", features[0].Name)
		assert.IsType(t, orb.Polygon{}, features[0].Geometry)

		assert.Equal(t, "42", features[1].GeographyID)
		assert.IsType(t, orb.MultiPolygon{}, features[1].Geometry)
	})

	t.Run("assigns identifiers and names when missing", func(t *testing.T) {
		features, err := ParsePackage([]byte(packageJSON))
		require.NoError(t, err)

		assert.NotEmpty(t, features[2].GeographyID)
		assert.Equal(t, "Zone 3", features[2].Name)

		// незамкнутое кольцо замыкается
		ring := features[2].Geometry.(orb.Polygon)[0]
		assert.True(t, ring.Closed())
	})

	t.Run("rejects invalid json", func(t *testing.T) {
		_, err := ParsePackage([]byte(`{"type": "FeatureCollection", "features": [`))
		assert.ErrorIs(t, err, ErrMalformedPackage)
	})

	t.Run("rejects empty collection", func(t *testing.T) {
		_, err := ParsePackage([]byte(`{"type": "FeatureCollection", "features": []}`))
		assert.ErrorIs(t, err, ErrMalformedPackage)
	})

	t.Run("one point feature aborts the whole package", func(t *testing.T) {
		data := `{"type": "FeatureCollection", "features": [
		  {"type": "Feature", "properties": {"name": "ok"},
		   "geometry": {"type": "Polygon", "coordinates": [[[0,0],[1,0],[1,1],[0,0]]]}},
		  {"type": "Feature", "properties": {"name": "point"},
		   "geometry": {"type": "Point", "coordinates": [0.5,0.5]}}
		]}`
		features, err := ParsePackage([]byte(data))
		assert.ErrorIs(t, err, ErrMalformedPackage)
		assert.Nil(t, features)
	})

	t.Run("rejects duplicate geography_id", func(t *testing.T) {
		data := `{"type": "FeatureCollection", "features": [
		  {"type": "Feature", "properties": {"geography_id": "g", "name": "A"},
		   "geometry": {"type": "Polygon", "coordinates": [[[0,0],[1,0],[1,1],[0,0]]]}},
		  {"type": "Feature", "properties": {"geography_id": "g", "name": "B"},
		   "geometry": {"type": "Polygon", "coordinates": [[[2,2],[3,2],[3,3],[2,2]]]}}
		]}`
		features, err := ParsePackage([]byte(data))
		assert.ErrorIs(t, err, ErrMalformedPackage)
		assert.Contains(t, err.Error(), `"g"`)
		assert.Nil(t, features)
	})

	t.Run("features without geography_id never collide", func(t *testing.T) {
		data := `{"type": "FeatureCollection", "features": [
		  {"type": "Feature", "properties": {},
		   "geometry": {"type": "Polygon", "coordinates": [[[0,0],[1,0],[1,1],[0,0]]]}},
		  {"type": "Feature", "properties": {},
		   "geometry": {"type": "Polygon", "coordinates": [[[2,2],[3,2],[3,3],[2,2]]]}}
		]}`
		features, err := ParsePackage([]byte(data))
		require.NoError(t, err)
		require.Len(t, features, 2)
		assert.NotEqual(t, features[0].GeographyID, features[1].GeographyID)
	})
}

func TestNormalizeArea(t *testing.T) {
	_, err := NormalizeArea(orb.Point{1, 2})
	assert.ErrorIs(t, err, ErrUnsupportedGeometry)

	_, err = NormalizeArea(nil)
	assert.ErrorIs(t, err, ErrUnsupportedGeometry)

	_, err = NormalizeArea(orb.Polygon{orb.Ring{{0, 0}, {1, 1}}})
	assert.ErrorIs(t, err, ErrUnsupportedGeometry)

	g, err := NormalizeArea(square(0, 0, 1, 1))
	require.NoError(t, err)
	assert.Equal(t, square(0, 0, 1, 1), g)
}

func TestWithinBorders(t *testing.T) {
	border := orb.MultiPolygon{square(0, 0, 10, 10)}

	tests := []struct {
		name     string
		zone     orb.Geometry
		expected bool
	}{
		{"fully inside", square(1, 1, 2, 2), true},
		{"touching the border", square(0, 0, 2, 2), true},
		{"partially outside", square(9, 9, 11, 11), false},
		{"fully outside", square(20, 20, 21, 21), false},
		{"multipolygon with one piece outside", orb.MultiPolygon{square(1, 1, 2, 2), square(12, 12, 13, 13)}, false},
		{"multipolygon inside", orb.MultiPolygon{square(1, 1, 2, 2), square(5, 5, 6, 6)}, true},
		{"not an area", orb.Point{1, 1}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, WithinBorders(tt.zone, border))
		})
	}

	t.Run("concave border", func(t *testing.T) {
		// U-образная граница: выемка 3..7 по x сверху до y=3
		u := orb.MultiPolygon{{orb.Ring{
			{0, 0}, {10, 0}, {10, 10}, {7, 10}, {7, 3}, {3, 3}, {3, 10}, {0, 10}, {0, 0},
		}}}

		assert.False(t, WithinBorders(square(1, 5, 9, 8), u), "zone bridging the notch")
		assert.True(t, WithinBorders(square(1, 1, 9, 2), u), "zone in the base")
		assert.True(t, WithinBorders(square(1, 4, 2, 9), u), "zone in the left arm")
		assert.True(t, WithinBorders(square(1, 1, 9, 3), u), "zone touching the notch floor")
	})

	t.Run("border with a hole", func(t *testing.T) {
		holed := orb.MultiPolygon{{
			orb.Ring{{0, 0}, {10, 0}, {10, 10}, {0, 10}, {0, 0}},
			orb.Ring{{4, 4}, {6, 4}, {6, 6}, {4, 6}, {4, 4}},
		}}

		assert.False(t, WithinBorders(square(1, 1, 9, 9), holed), "zone covering the hole")
		assert.True(t, WithinBorders(square(1, 1, 3, 3), holed), "zone beside the hole")
	})

	t.Run("empty border rejects everything", func(t *testing.T) {
		assert.False(t, WithinBorders(square(1, 1, 2, 2), nil))
	})
}
