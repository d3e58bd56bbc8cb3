package boundary

import (
	"encoding/json"
	"errors"
	"fmt"
)

// ErrUnsupportedGeometry is returned for GeoJSON geometries that are not
// areas (points, lines).
var ErrUnsupportedGeometry = errors.New("unsupported geometry type")

type geoJSON struct {
	Type        string          `json:"type"`
	Coordinates json.RawMessage `json:"coordinates"`
}

// position is a GeoJSON [lon, lat] pair.
type position []float64

// ParseGeoJSON decodes a GeoJSON Polygon or MultiPolygon geometry object.
func ParseGeoJSON(data []byte) (Geometry, error) {
	var raw geoJSON
	if err := json.Unmarshal(data, &raw); err != nil {
		return Geometry{}, fmt.Errorf("decode geojson: %w", err)
	}

	switch raw.Type {
	case "Polygon":
		var coords [][]position
		if err := json.Unmarshal(raw.Coordinates, &coords); err != nil {
			return Geometry{}, fmt.Errorf("decode polygon: %w", err)
		}
		return Geometry{Polygons: []Polygon{toPolygon(coords)}}, nil
	case "MultiPolygon":
		var coords [][][]position
		if err := json.Unmarshal(raw.Coordinates, &coords); err != nil {
			return Geometry{}, fmt.Errorf("decode multipolygon: %w", err)
		}
		g := Geometry{Polygons: make([]Polygon, 0, len(coords))}
		for _, c := range coords {
			g.Polygons = append(g.Polygons, toPolygon(c))
		}
		return g, nil
	default:
		return Geometry{}, fmt.Errorf("%w: %q", ErrUnsupportedGeometry, raw.Type)
	}
}

func toPolygon(rings [][]position) Polygon {
	poly := make(Polygon, 0, len(rings))
	for _, r := range rings {
		ring := make(Ring, 0, len(r))
		for _, pos := range r {
			if len(pos) < 2 {
				continue
			}
			ring = append(ring, Point{Lon: pos[0], Lat: pos[1]})
		}
		poly = append(poly, ring)
	}
	return poly
}

// MarshalJSON encodes g as a GeoJSON MultiPolygon with closed rings.
func (g Geometry) MarshalJSON() ([]byte, error) {
	coords := make([][][]position, 0, len(g.Polygons))
	for _, poly := range g.Polygons {
		rings := make([][]position, 0, len(poly))
		for _, r := range poly {
			ring := make([]position, 0, len(r)+1)
			for _, p := range r.Close() {
				ring = append(ring, position{p.Lon, p.Lat})
			}
			rings = append(rings, ring)
		}
		coords = append(coords, rings)
	}
	return json.Marshal(struct {
		Type        string         `json:"type"`
		Coordinates [][][]position `json:"coordinates"`
	}{"MultiPolygon", coords})
}

// UnmarshalJSON accepts a GeoJSON Polygon or MultiPolygon.
func (g *Geometry) UnmarshalJSON(data []byte) error {
	parsed, err := ParseGeoJSON(data)
	if err != nil {
		return err
	}
	*g = parsed
	return nil
}
