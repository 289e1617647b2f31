package geo

import (
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/google/uuid"
	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"
	"github.com/paulmach/orb/planar"
)

var (
	// ErrUnsupportedGeometry - геометрия не Polygon/MultiPolygon
	ErrUnsupportedGeometry = errors.New("geometry must be a Polygon or MultiPolygon")

	// ErrMalformedPackage - пакет не удалось разобрать целиком
	ErrMalformedPackage = errors.New("malformed geometry package")
)

// Feature - одна зона из геометрического пакета
type Feature struct {
	GeographyID   string
	Name          string
	GeographyType string
	Geometry      orb.Geometry
}

// ParsePackage разбирает GeoJSON FeatureCollection в список зон.
// Любая ошибка делает пакет невалидным целиком.
func ParsePackage(data []byte) ([]Feature, error) {
	fc, err := geojson.UnmarshalFeatureCollection(data)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedPackage, err)
	}
	if len(fc.Features) == 0 {
		return nil, fmt.Errorf("%w: package contains no features", ErrMalformedPackage)
	}

	features := make([]Feature, 0, len(fc.Features))
	seen := make(map[string]int, len(fc.Features))
	for i, f := range fc.Features {
		g, err := NormalizeArea(f.Geometry)
		if err != nil {
			return nil, fmt.Errorf("%w: feature %d: %v", ErrMalformedPackage, i, err)
		}

		geographyID := stringProperty(f.Properties, "geography_id")
		if geographyID == "" {
			geographyID = uuid.NewString()
		} else if first, dup := seen[geographyID]; dup {
			return nil, fmt.Errorf("%w: features %d and %d share geography_id %q", ErrMalformedPackage, first, i, geographyID)
		}
		seen[geographyID] = i

		name := stringProperty(f.Properties, "name")
		if name == "" {
			name = fmt.Sprintf("Zone %d", i+1)
		}

		features = append(features, Feature{
			GeographyID:   geographyID,
			Name:          name,
			GeographyType: stringProperty(f.Properties, "geography_type"),
			Geometry:      g,
		})
	}

	return features, nil
}

// stringProperty читает свойство как строку; числовые идентификаторы
// из GIS-экспорта приводятся к строке
func stringProperty(props geojson.Properties, key string) string {
	switch v := props[key].(type) {
	case string:
		return strings.TrimSpace(v)
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64)
	case nil:
		return ""
	default:
		return strings.TrimSpace(fmt.Sprint(v))
	}
}

// NormalizeArea проверяет, что геометрия - непустой Polygon/MultiPolygon
// с замкнутыми кольцами. Незамкнутые кольца замыкаются.
func NormalizeArea(g orb.Geometry) (orb.Geometry, error) {
	switch v := g.(type) {
	case orb.Polygon:
		p, err := normalizePolygon(v)
		if err != nil {
			return nil, err
		}
		return p, nil
	case orb.MultiPolygon:
		if len(v) == 0 {
			return nil, fmt.Errorf("%w: empty multipolygon", ErrUnsupportedGeometry)
		}
		mp := make(orb.MultiPolygon, 0, len(v))
		for _, poly := range v {
			p, err := normalizePolygon(poly)
			if err != nil {
				return nil, err
			}
			mp = append(mp, p)
		}
		return mp, nil
	case nil:
		return nil, fmt.Errorf("%w: missing geometry", ErrUnsupportedGeometry)
	}
	return nil, fmt.Errorf("%w: got %s", ErrUnsupportedGeometry, g.GeoJSONType())
}

func normalizePolygon(p orb.Polygon) (orb.Polygon, error) {
	if len(p) == 0 {
		return nil, fmt.Errorf("%w: empty polygon", ErrUnsupportedGeometry)
	}
	out := make(orb.Polygon, 0, len(p))
	for _, ring := range p {
		if len(ring) < 3 {
			return nil, fmt.Errorf("%w: ring has %d points", ErrUnsupportedGeometry, len(ring))
		}
		r := append(orb.Ring(nil), ring...)
		if !r.Closed() {
			r = append(r, r[0])
		}
		if len(r) < 4 {
			return nil, fmt.Errorf("%w: degenerate ring", ErrUnsupportedGeometry)
		}
		out = append(out, r)
	}
	return out, nil
}

// AsMultiPolygon приводит площадную геометрию к MultiPolygon
func AsMultiPolygon(g orb.Geometry) (orb.MultiPolygon, error) {
	switch v := g.(type) {
	case orb.Polygon:
		return orb.MultiPolygon{v}, nil
	case orb.MultiPolygon:
		return v, nil
	case nil:
		return nil, fmt.Errorf("%w: missing geometry", ErrUnsupportedGeometry)
	}
	return nil, fmt.Errorf("%w: got %s", ErrUnsupportedGeometry, g.GeoJSONType())
}

// WithinBorders проверяет, что зона целиком лежит внутри границы
// муниципалитета (касание границы допускается). Вершин недостаточно для
// невыпуклой границы: рёбра зоны не должны пересекать рёбра границы, а
// вершины границы (включая дыры) не должны оказаться внутри зоны.
func WithinBorders(zone orb.Geometry, border orb.MultiPolygon) bool {
	mp, err := AsMultiPolygon(zone)
	if err != nil || len(border) == 0 {
		return false
	}

	bound := border.Bound()
	for _, poly := range mp {
		for _, ring := range poly {
			for i, pt := range ring {
				if !bound.Contains(pt) || !planar.MultiPolygonContains(border, pt) {
					return false
				}
				if i == 0 {
					continue
				}
				a, b := ring[i-1], pt
				if !planar.MultiPolygonContains(border, midpoint(a, b)) {
					return false
				}
				if crossesAny(a, b, border) {
					return false
				}
			}
		}
	}

	for _, poly := range border {
		for _, ring := range poly {
			for _, pt := range ring {
				if planar.MultiPolygonContains(mp, pt) && !onBoundary(mp, pt) {
					return false
				}
			}
		}
	}
	return true
}

func midpoint(a, b orb.Point) orb.Point {
	return orb.Point{(a[0] + b[0]) / 2, (a[1] + b[1]) / 2}
}

// crossesAny - отрезок ab собственно пересекает какое-либо ребро границы.
// Касание и коллинеарное наложение пересечением не считаются.
func crossesAny(a, b orb.Point, border orb.MultiPolygon) bool {
	for _, poly := range border {
		for _, ring := range poly {
			for i := 1; i < len(ring); i++ {
				if properCrossing(a, b, ring[i-1], ring[i]) {
					return true
				}
			}
		}
	}
	return false
}

func properCrossing(a, b, c, d orb.Point) bool {
	d1 := orientation(c, d, a)
	d2 := orientation(c, d, b)
	d3 := orientation(a, b, c)
	d4 := orientation(a, b, d)
	return d1*d2 < 0 && d3*d4 < 0
}

// orientation: >0 - c слева от ab, <0 - справа, 0 - на прямой
func orientation(a, b, c orb.Point) float64 {
	return (b[0]-a[0])*(c[1]-a[1]) - (b[1]-a[1])*(c[0]-a[0])
}

func onBoundary(mp orb.MultiPolygon, pt orb.Point) bool {
	for _, poly := range mp {
		for _, ring := range poly {
			for i := 1; i < len(ring); i++ {
				if onSegment(ring[i-1], ring[i], pt) {
					return true
				}
			}
		}
	}
	return false
}

func onSegment(a, b, pt orb.Point) bool {
	if orientation(a, b, pt) != 0 {
		return false
	}
	return pt[0] >= math.Min(a[0], b[0]) && pt[0] <= math.Max(a[0], b[0]) &&
		pt[1] >= math.Min(a[1], b[1]) && pt[1] <= math.Max(a[1], b[1])
}
