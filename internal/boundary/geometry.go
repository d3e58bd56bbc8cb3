// Package boundary resolves locality names to polygon geometries, caches them
// for the life of the process, and renders them as styled map layers.
package boundary

import (
	"errors"
	"math"
)

// ErrNotFound is returned when a source has no polygon for a locality.
var ErrNotFound = errors.New("boundary not found")

// Point is a WGS84 coordinate.
type Point struct {
	Lat float64
	Lon float64
}

// Ring is a closed sequence of points. The closing point may be omitted.
type Ring []Point

// Polygon is an outer ring followed by zero or more holes.
type Polygon []Ring

// Geometry is the boundary of one locality, possibly made of several
// disjoint polygons (islands, exclaves).
type Geometry struct {
	Polygons []Polygon
}

// Bounds is an axis-aligned bounding box.
type Bounds struct {
	MinLat float64 `json:"min_lat"`
	MinLon float64 `json:"min_lon"`
	MaxLat float64 `json:"max_lat"`
	MaxLon float64 `json:"max_lon"`
}

// Empty reports whether g has no outer ring with at least three points.
func (g Geometry) Empty() bool {
	for _, p := range g.Polygons {
		if len(p) > 0 && len(p[0]) >= 3 {
			return false
		}
	}
	return true
}

// Bounds returns the bounding box of all outer rings. ok is false for an empty
// geometry.
func (g Geometry) Bounds() (b Bounds, ok bool) {
	b = Bounds{MinLat: math.Inf(1), MinLon: math.Inf(1), MaxLat: math.Inf(-1), MaxLon: math.Inf(-1)}
	for _, poly := range g.Polygons {
		if len(poly) == 0 {
			continue
		}
		for _, pt := range poly[0] {
			b.MinLat = math.Min(b.MinLat, pt.Lat)
			b.MinLon = math.Min(b.MinLon, pt.Lon)
			b.MaxLat = math.Max(b.MaxLat, pt.Lat)
			b.MaxLon = math.Max(b.MaxLon, pt.Lon)
			ok = true
		}
	}
	if !ok {
		return Bounds{}, false
	}
	return b, true
}

// Center is the midpoint of b.
func (b Bounds) Center() Point {
	return Point{Lat: (b.MinLat + b.MaxLat) / 2, Lon: (b.MinLon + b.MaxLon) / 2}
}

// Union returns the smallest box containing b and o.
func (b Bounds) Union(o Bounds) Bounds {
	return Bounds{
		MinLat: math.Min(b.MinLat, o.MinLat),
		MinLon: math.Min(b.MinLon, o.MinLon),
		MaxLat: math.Max(b.MaxLat, o.MaxLat),
		MaxLon: math.Max(b.MaxLon, o.MaxLon),
	}
}

// Closed reports whether the ring's first and last points coincide.
func (r Ring) Closed() bool {
	return len(r) > 1 && r[0] == r[len(r)-1]
}

// Close returns r with its first point appended when it is not already closed.
func (r Ring) Close() Ring {
	if len(r) == 0 || r.Closed() {
		return r
	}
	return append(r[:len(r):len(r)], r[0])
}

// Contains reports whether p lies inside r (even-odd rule).
func (r Ring) Contains(p Point) bool {
	inside := false
	for i, j := 0, len(r)-1; i < len(r); j, i = i, i+1 {
		a, b := r[i], r[j]
		if (a.Lat > p.Lat) != (b.Lat > p.Lat) &&
			p.Lon < (b.Lon-a.Lon)*(p.Lat-a.Lat)/(b.Lat-a.Lat)+a.Lon {
			inside = !inside
		}
	}
	return inside
}
