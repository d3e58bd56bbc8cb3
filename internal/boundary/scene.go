package boundary

import (
	"encoding/json"
	"sort"
	"sync"
)

// Scene is an in-memory LayerSink. It is what a session's map endpoint serves.
type Scene struct {
	mu     sync.RWMutex
	layers map[string]Layer
	view   *Bounds
}

// NewScene returns an empty scene.
func NewScene() *Scene {
	return &Scene{layers: make(map[string]Layer)}
}

func (s *Scene) Put(l Layer) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.layers[l.Locality] = l
}

func (s *Scene) Remove(locality string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.layers, locality)
}

func (s *Scene) FitBounds(b Bounds) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.view = &b
}

// View returns the last fitted bounds.
func (s *Scene) View() (Bounds, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.view == nil {
		return Bounds{}, false
	}
	return *s.view, true
}

// Layers returns the current layers in draw order: context layers by name,
// then the focused layer on top.
func (s *Scene) Layers() []Layer {
	s.mu.RLock()
	out := make([]Layer, 0, len(s.layers))
	for _, l := range s.layers {
		out = append(out, l)
	}
	s.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool {
		if out[i].Focused != out[j].Focused {
			return !out[i].Focused
		}
		return out[i].Locality < out[j].Locality
	})
	return out
}

type featureCollection struct {
	Type     string    `json:"type"`
	BBox     []float64 `json:"bbox,omitempty"`
	Features []feature `json:"features"`
}

type feature struct {
	Type       string            `json:"type"`
	Geometry   Geometry          `json:"geometry"`
	Properties featureProperties `json:"properties"`
}

type featureProperties struct {
	Locality string   `json:"locality"`
	Focused  bool     `json:"focused"`
	Value    *float64 `json:"value"`
	Style
}

// GeoJSON renders the scene as a FeatureCollection. The bbox member carries the
// fitted view as [min_lon, min_lat, max_lon, max_lat].
func (s *Scene) GeoJSON() ([]byte, error) {
	fc := featureCollection{Type: "FeatureCollection", Features: []feature{}}
	if b, ok := s.View(); ok {
		fc.BBox = []float64{b.MinLon, b.MinLat, b.MaxLon, b.MaxLat}
	}
	for _, l := range s.Layers() {
		fc.Features = append(fc.Features, feature{
			Type:     "Feature",
			Geometry: l.Geometry,
			Properties: featureProperties{
				Locality: l.Locality,
				Focused:  l.Focused,
				Value:    l.Value,
				Style:    l.Style,
			},
		})
	}
	return json.Marshal(fc)
}
