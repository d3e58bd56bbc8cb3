package overpass

import (
	"slices"

	"github.com/couchcryptid/heat-insight-engine/internal/boundary"
)

// stitch joins way segments that share endpoints into closed rings. OSM
// boundaries are split across many ways, in arbitrary order and direction.
// Segments that never close are discarded.
func stitch(segments [][]boundary.Point) []boundary.Ring {
	remaining := make([][]boundary.Point, 0, len(segments))
	for _, s := range segments {
		if len(s) >= 2 {
			remaining = append(remaining, s)
		}
	}

	var rings []boundary.Ring
	for len(remaining) > 0 {
		ring := boundary.Ring(slices.Clone(remaining[0]))
		remaining = remaining[1:]

		for !ring.Closed() {
			last := ring[len(ring)-1]
			idx := -1
			for i, s := range remaining {
				switch last {
				case s[0]:
					ring = append(ring, s[1:]...)
				case s[len(s)-1]:
					rev := slices.Clone(s)
					slices.Reverse(rev)
					ring = append(ring, rev[1:]...)
				default:
					continue
				}
				idx = i
				break
			}
			if idx < 0 {
				break
			}
			remaining = slices.Delete(remaining, idx, idx+1)
		}

		if ring.Closed() && len(ring) >= 4 {
			rings = append(rings, ring)
		}
	}
	return rings
}

// assemble makes one polygon per outer ring and attaches each inner ring to
// the first outer ring containing it. Inner rings outside every outer ring
// are dropped.
func assemble(outer, inner []boundary.Ring) boundary.Geometry {
	g := boundary.Geometry{Polygons: make([]boundary.Polygon, 0, len(outer))}
	for _, o := range outer {
		g.Polygons = append(g.Polygons, boundary.Polygon{o})
	}
	for _, in := range inner {
		for i := range g.Polygons {
			if g.Polygons[i][0].Contains(in[0]) {
				g.Polygons[i] = append(g.Polygons[i], in)
				break
			}
		}
	}
	return g
}
