package boundary

import (
	"context"
	"errors"
	"log/slog"
	"sort"
	"sync"

	"github.com/couchcryptid/heat-insight-engine/internal/colorscale"
	"github.com/couchcryptid/heat-insight-engine/internal/observability"
	"github.com/couchcryptid/heat-insight-engine/internal/supersede"
)

// UnknownFill colors localities without a known heat value.
const UnknownFill = "#9ca3af"

// Layer styles.
var (
	FocusedStyle = Style{FillOpacity: 0.6, Weight: 3}
	ContextStyle = Style{FillOpacity: 0.3, Weight: 1}
)

// Style is how a layer is drawn.
type Style struct {
	Fill        string  `json:"fill"`
	Stroke      string  `json:"stroke"`
	FillOpacity float64 `json:"fill_opacity"`
	Weight      float64 `json:"weight"`
}

// Layer is one rendered locality.
type Layer struct {
	Locality string
	Geometry Geometry
	Style    Style
	Focused  bool
	Value    *float64
}

// LayerSink is the drawing surface a Renderer maintains.
type LayerSink interface {
	// Put adds l, replacing any existing layer for the same locality.
	Put(l Layer)
	// Remove tears down the layer for locality, if any.
	Remove(locality string)
	// FitBounds moves the view to b.
	FitBounds(b Bounds)
}

// Target is one locality to draw, with the heat value that picks its fill.
type Target struct {
	Locality string
	Value    *float64
}

// Frame summarizes one completed redraw.
type Frame struct {
	Focus    string
	Rendered []string
	// Missing lists localities whose geometry could not be resolved. They are
	// left undrawn.
	Missing []string
}

// Renderer keeps a LayerSink in sync with the active set of localities.
type Renderer struct {
	cache   *Cache
	sink    LayerSink
	scale   *colorscale.Scale
	logger  *slog.Logger
	metrics *observability.Metrics

	redraws supersede.Group

	mu       sync.Mutex
	rendered map[string]bool
}

// NewRenderer draws geometries from cache onto sink.
func NewRenderer(cache *Cache, sink LayerSink, scale *colorscale.Scale, logger *slog.Logger, metrics *observability.Metrics) *Renderer {
	return &Renderer{
		cache:    cache,
		sink:     sink,
		scale:    scale,
		logger:   logger,
		metrics:  metrics,
		rendered: make(map[string]bool),
	}
}

// Redraw makes targets the active set with focus emphasized. Layers for
// localities no longer active are removed, each target's layer is replaced,
// and the view is fitted to the focused locality. focus is added to targets
// when absent.
//
// A Redraw started later supersedes this one: its context is cancelled and
// nothing further is applied to the sink. The superseded call returns an error
// matching supersede.ErrSuperseded.
func (r *Renderer) Redraw(ctx context.Context, focus string, targets []Target) (Frame, error) {
	ctx, ticket := r.redraws.Begin(ctx, "redraw")
	defer ticket.Done()

	targets = withFocus(focus, targets)
	active := make(map[string]bool, len(targets))
	for _, t := range targets {
		active[t.Locality] = true
	}

	if err := r.prune(ticket, active); err != nil {
		return Frame{}, err
	}

	geoms, missing := r.resolve(ctx, targets)
	if supersede.IsSuperseded(ctx, nil) || !ticket.Current() {
		r.metrics.RedrawsSuperseded.Inc()
		return Frame{}, supersede.ErrSuperseded
	}
	if err := ctx.Err(); err != nil {
		return Frame{}, err
	}

	frame := Frame{Focus: focus, Missing: missing}

	r.mu.Lock()
	defer r.mu.Unlock()
	for _, t := range targets {
		g, ok := geoms[t.Locality]
		if !ok {
			continue
		}
		if !ticket.Current() {
			r.metrics.RedrawsSuperseded.Inc()
			return Frame{}, supersede.ErrSuperseded
		}
		r.sink.Put(r.layer(t, g, t.Locality == focus))
		r.rendered[t.Locality] = true
		frame.Rendered = append(frame.Rendered, t.Locality)
	}
	if g, ok := geoms[focus]; ok && ticket.Current() {
		if b, ok := g.Bounds(); ok {
			r.sink.FitBounds(b)
		}
	}
	return frame, nil
}

// prune removes layers outside the active set.
func (r *Renderer) prune(ticket *supersede.Ticket, active map[string]bool) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if !ticket.Current() {
		r.metrics.RedrawsSuperseded.Inc()
		return supersede.ErrSuperseded
	}
	stale := make([]string, 0)
	for name := range r.rendered {
		if !active[name] {
			stale = append(stale, name)
		}
	}
	sort.Strings(stale)
	for _, name := range stale {
		r.sink.Remove(name)
		delete(r.rendered, name)
	}
	return nil
}

// resolve fetches or reuses the geometry of every target concurrently.
// Failures are logged and reported as missing, never fatal.
func (r *Renderer) resolve(ctx context.Context, targets []Target) (map[string]Geometry, []string) {
	type result struct {
		name string
		g    Geometry
		err  error
	}
	results := make([]result, len(targets))

	var wg sync.WaitGroup
	for i, t := range targets {
		wg.Add(1)
		go func() {
			defer wg.Done()
			g, err := r.cache.Get(ctx, t.Locality)
			results[i] = result{name: t.Locality, g: g, err: err}
		}()
	}
	wg.Wait()

	geoms := make(map[string]Geometry, len(targets))
	var missing []string
	for _, res := range results {
		switch {
		case res.err == nil:
			geoms[res.name] = res.g
		case ctx.Err() != nil:
			// Superseded or cancelled; the caller decides.
		default:
			if !errors.Is(res.err, ErrNotFound) {
				r.logger.Warn("boundary unavailable, skipping layer", "locality", res.name, "error", res.err)
			}
			missing = append(missing, res.name)
		}
	}
	return geoms, missing
}

func (r *Renderer) layer(t Target, g Geometry, focused bool) Layer {
	style := ContextStyle
	if focused {
		style = FocusedStyle
	}
	style.Fill = UnknownFill
	style.Stroke = UnknownFill
	if t.Value != nil {
		c := r.scale.ColorFor(*t.Value)
		style.Fill = colorscale.Hex(c)
		style.Stroke = colorscale.Hex(colorscale.Darken(c))
	}
	return Layer{
		Locality: t.Locality,
		Geometry: g,
		Style:    style,
		Focused:  focused,
		Value:    t.Value,
	}
}

func withFocus(focus string, targets []Target) []Target {
	seen := make(map[string]bool, len(targets)+1)
	out := make([]Target, 0, len(targets)+1)
	for _, t := range targets {
		if t.Locality == "" || seen[t.Locality] {
			continue
		}
		seen[t.Locality] = true
		out = append(out, t)
	}
	if focus != "" && !seen[focus] {
		out = append(out, Target{Locality: focus})
	}
	return out
}
