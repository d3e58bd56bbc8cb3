// Package overpass resolves locality boundaries from OpenStreetMap
// administrative relations through the Overpass API.
package overpass

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"sort"
	"strings"
	"time"

	"github.com/serjvanilla/go-overpass"

	"github.com/couchcryptid/heat-insight-engine/internal/boundary"
)

// DefaultEndpoint is the public Overpass interpreter.
const DefaultEndpoint = "https://overpass-api.de/api/interpreter"

// Client implements boundary.Source.
type Client struct {
	client     overpass.Client
	region     string
	adminLevel string
	logger     *slog.Logger
}

// Option configures a Client.
type Option func(*Client)

// WithAdminLevel restricts matches to one OSM admin_level (cities and
// municipalities in the Philippines are level 6).
func WithAdminLevel(level string) Option {
	return func(c *Client) { c.adminLevel = level }
}

// NewClient creates an Overpass boundary source. region, when set, limits the
// search to administrative areas inside the named region.
func NewClient(endpoint, region string, timeout time.Duration, logger *slog.Logger, opts ...Option) *Client {
	if endpoint == "" {
		endpoint = DefaultEndpoint
	}
	c := &Client{
		client: overpass.NewWithSettings(endpoint, 2, &http.Client{Timeout: timeout}),
		region: region,
		logger: logger,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Fetch returns the boundary polygon of the named administrative area.
func (c *Client) Fetch(ctx context.Context, name string) (boundary.Geometry, error) {
	result, err := c.query(ctx, buildQuery(name, c.region, c.adminLevel))
	if err != nil {
		return boundary.Geometry{}, err
	}

	rel := pickRelation(result, name)
	if rel == nil {
		return boundary.Geometry{}, boundary.ErrNotFound
	}
	outer, inner := memberRings(rel)
	g := assemble(stitch(outer), stitch(inner))
	if g.Empty() {
		c.logger.Debug("overpass relation has no closed outer ring", "locality", name, "relation", rel.ID)
		return boundary.Geometry{}, boundary.ErrNotFound
	}
	return g, nil
}

// query runs q, giving up when ctx is done. The underlying client has no
// context support; an abandoned query finishes in the background and is
// bounded by the HTTP client timeout.
func (c *Client) query(ctx context.Context, q string) (overpass.Result, error) {
	type outcome struct {
		result overpass.Result
		err    error
	}
	ch := make(chan outcome, 1)
	go func() {
		r, err := c.client.Query(q)
		ch <- outcome{r, err}
	}()

	select {
	case <-ctx.Done():
		return overpass.Result{}, ctx.Err()
	case o := <-ch:
		if o.err != nil {
			return overpass.Result{}, fmt.Errorf("overpass query: %w", o.err)
		}
		return o.result, nil
	}
}

func buildQuery(name, region, adminLevel string) string {
	var b strings.Builder
	b.WriteString("[out:json][timeout:25];\n")

	filter := fmt.Sprintf(`relation["boundary"="administrative"]["name"="%s"]`, escape(name))
	if adminLevel != "" {
		filter += fmt.Sprintf(`["admin_level"="%s"]`, escape(adminLevel))
	}
	if region != "" {
		fmt.Fprintf(&b, "area[\"boundary\"=\"administrative\"][\"name\"=\"%s\"]->.region;\n", escape(regionName(region)))
		filter += "(area.region)"
	}
	b.WriteString(filter + ";\n")
	b.WriteString("out body;\n>;\nout skel qt;\n")
	return b.String()
}

// regionName keeps the most specific part of a qualifier such as
// "Cavite, Philippines".
func regionName(region string) string {
	first, _, _ := strings.Cut(region, ",")
	return strings.TrimSpace(first)
}

func escape(s string) string {
	return strings.NewReplacer(`\`, `\\`, `"`, `\"`).Replace(s)
}

// pickRelation chooses the relation whose name matches exactly, lowest ID
// first for determinism.
func pickRelation(result overpass.Result, name string) *overpass.Relation {
	var candidates []*overpass.Relation
	for _, rel := range result.Relations {
		if rel == nil {
			continue
		}
		if strings.EqualFold(strings.TrimSpace(rel.Tags["name"]), strings.TrimSpace(name)) {
			candidates = append(candidates, rel)
		}
	}
	if len(candidates) == 0 {
		return nil
	}
	sort.Slice(candidates, func(i, j int) bool { return candidates[i].ID < candidates[j].ID })
	return candidates[0]
}

// memberRings splits a relation's way members into outer and inner node
// sequences. Members with an empty role count as outer.
func memberRings(rel *overpass.Relation) (outer, inner [][]boundary.Point) {
	for _, m := range rel.Members {
		if m.Type != overpass.ElementTypeWay || m.Way == nil {
			continue
		}
		pts := make([]boundary.Point, 0, len(m.Way.Nodes))
		for _, n := range m.Way.Nodes {
			if n == nil {
				continue
			}
			pts = append(pts, boundary.Point{Lat: n.Lat, Lon: n.Lon})
		}
		if len(pts) < 2 {
			continue
		}
		switch m.Role {
		case "inner":
			inner = append(inner, pts)
		case "outer", "":
			outer = append(outer, pts)
		}
	}
	return outer, inner
}
