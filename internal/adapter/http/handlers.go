package http

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"math"
	"net/http"
	"strconv"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/couchcryptid/heat-insight-engine/internal/boundary"
	"github.com/couchcryptid/heat-insight-engine/internal/colorscale"
	"github.com/couchcryptid/heat-insight-engine/internal/domain"
	"github.com/couchcryptid/heat-insight-engine/internal/export"
	"github.com/couchcryptid/heat-insight-engine/internal/locality"
	"github.com/couchcryptid/heat-insight-engine/internal/snapshot"
	"github.com/couchcryptid/heat-insight-engine/internal/supersede"
)

// MissingHeader lists, comma-separated, the localities a map response could
// not draw.
const MissingHeader = "X-Missing-Localities"

// mapConcurrency bounds the snapshot assemblies behind one map request.
const mapConcurrency = 4

// errMapDisabled is returned by the map route when no boundary provider is
// configured.
var errMapDisabled = errors.New("boundary resolution is disabled")

type sessionHandler func(w http.ResponseWriter, r *http.Request, sid string)

// withSession resolves the request's session and echoes it in the response.
func (s *Server) withSession(h sessionHandler) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		sid := sessionID(r.Header.Get(SessionHeader))
		w.Header().Set(SessionHeader, sid)
		h(w, r, sid)
	}
}

// begin claims the (session, route) slot. Any request still in flight for the
// same slot is cancelled.
func (s *Server) begin(r *http.Request, sid, route string) (context.Context, *supersede.Ticket) {
	return s.slots.Begin(r.Context(), sid+"|"+route)
}

// settle turns a successful result into ErrSuperseded when a newer request
// claimed the slot meanwhile.
func settle(ticket *supersede.Ticket, err error) error {
	if err == nil && !ticket.Current() {
		return supersede.ErrSuperseded
	}
	return err
}

type localitiesResponse struct {
	Region     string           `json:"region"`
	Localities []locality.Entry `json:"localities"`
}

func (s *Server) handleLocalities(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, localitiesResponse{
		Region:     s.svc.Localities.Region(),
		Localities: s.svc.Localities.Entries(),
	})
}

func parseQuery(r *http.Request) (snapshot.Query, error) {
	q := snapshot.Query{Locality: strings.TrimSpace(r.URL.Query().Get("locality"))}
	if q.Locality == "" {
		return q, badRequest{"locality is required"}
	}
	if raw := r.URL.Query().Get("days"); raw != "" {
		days, err := strconv.Atoi(raw)
		if err != nil || days < 0 {
			return q, badRequest{fmt.Sprintf("days must be a non-negative integer, got %q", raw)}
		}
		q.Days = days
	}
	return q, nil
}

func (s *Server) handleInsights(w http.ResponseWriter, r *http.Request, sid string) {
	q, err := parseQuery(r)
	if err != nil {
		s.writeError(r.Context(), w, r, err)
		return
	}

	ctx, ticket := s.begin(r, sid, "insights")
	defer ticket.Done()

	snap, err := s.svc.Insights.Assemble(ctx, q)
	if err := settle(ticket, err); err != nil {
		s.writeError(ctx, w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, snap)
}

func (s *Server) handleExport(w http.ResponseWriter, r *http.Request, sid string) {
	q, err := parseQuery(r)
	if err != nil {
		s.writeError(r.Context(), w, r, err)
		return
	}
	format := strings.ToLower(r.URL.Query().Get("format"))
	if format == "" {
		format = export.FormatCSV
	}
	if format != export.FormatCSV && format != export.FormatXLSX {
		s.writeError(r.Context(), w, r, badRequest{fmt.Sprintf("format must be csv or xlsx, got %q", format)})
		return
	}

	ctx, ticket := s.begin(r, sid, "export")
	defer ticket.Done()

	snap, err := s.svc.Insights.Assemble(ctx, q)
	if err := settle(ticket, err); err != nil {
		s.writeError(ctx, w, r, err)
		return
	}

	var buf bytes.Buffer
	if err := export.Write(&buf, format, snap); err != nil {
		s.writeError(ctx, w, r, err)
		return
	}
	w.Header().Set("Content-Type", export.ContentType(format))
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", exportFilename(snap, format)))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(buf.Bytes())
}

func exportFilename(snap domain.InsightSnapshot, format string) string {
	slug := strings.ToLower(strings.Join(strings.Fields(snap.Locality), "-"))
	return fmt.Sprintf("heat-insight-%s-%s.%s", slug, snap.GeneratedAt.Format(time.DateOnly), format)
}

func (s *Server) handleAdvisories(w http.ResponseWriter, r *http.Request, sid string) {
	name := strings.TrimSpace(r.URL.Query().Get("locality"))
	if name == "" {
		s.writeError(r.Context(), w, r, badRequest{"locality is required"})
		return
	}
	entry, ok := s.svc.Localities.Lookup(name)
	if !ok {
		s.writeError(r.Context(), w, r, fmt.Errorf("%w: %q", snapshot.ErrUnknownLocality, name))
		return
	}

	ctx, ticket := s.begin(r, sid, "advisories")
	defer ticket.Done()

	rec, err := s.svc.Advisories.Recommend(ctx, entry.Name)
	if err := settle(ticket, err); err != nil {
		s.writeError(ctx, w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, rec)
}

type legendStop struct {
	Value float64 `json:"value"`
	Color string  `json:"color"`
}

type legendResponse struct {
	Stops   []legendStop `json:"stops"`
	Unknown string       `json:"unknown"`
}

type colorResponse struct {
	Value     float64          `json:"value"`
	RiskLevel domain.RiskLevel `json:"risk_level"`
	RiskLabel string           `json:"risk_label"`
	colorscale.Palette
}

// handleColors returns the palette for ?value=, or the scale's legend when no
// value is given.
func (s *Server) handleColors(w http.ResponseWriter, r *http.Request) {
	raw := r.URL.Query().Get("value")
	if raw == "" {
		stops := s.svc.Scale.Stops()
		legend := legendResponse{Stops: make([]legendStop, 0, len(stops)), Unknown: boundary.UnknownFill}
		for _, st := range stops {
			legend.Stops = append(legend.Stops, legendStop{Value: st.Value, Color: colorscale.Hex(st.Color)})
		}
		writeJSON(w, http.StatusOK, legend)
		return
	}

	v, err := strconv.ParseFloat(raw, 64)
	if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
		s.writeError(r.Context(), w, r, badRequest{fmt.Sprintf("value must be a number, got %q", raw)})
		return
	}
	level, label := domain.Classify(&v)
	writeJSON(w, http.StatusOK, colorResponse{
		Value:     v,
		RiskLevel: level,
		RiskLabel: label,
		Palette:   s.svc.Scale.PaletteFor(v),
	})
}

// handleMap redraws the session's map with focus emphasized and answers with
// the resulting layers as GeoJSON.
func (s *Server) handleMap(w http.ResponseWriter, r *http.Request, sid string) {
	if s.svc.Boundaries == nil {
		writeJSON(w, http.StatusServiceUnavailable, errorBody{Error: errMapDisabled.Error()})
		return
	}
	focus, names, err := s.mapTargets(r)
	if err != nil {
		s.writeError(r.Context(), w, r, err)
		return
	}

	ctx, ticket := s.begin(r, sid, "map")
	defer ticket.Done()

	targets, err := s.riskValues(ctx, names)
	if err != nil {
		s.writeError(ctx, w, r, err)
		return
	}
	sess := s.sessions.get(sid)
	frame, err := sess.renderer.Redraw(ctx, focus, targets)
	if err := settle(ticket, err); err != nil {
		s.writeError(ctx, w, r, err)
		return
	}
	body, err := sess.scene.GeoJSON()
	if err != nil {
		s.writeError(ctx, w, r, err)
		return
	}

	if len(frame.Missing) > 0 {
		w.Header().Set(MissingHeader, strings.Join(frame.Missing, ","))
	}
	w.Header().Set("Content-Type", "application/geo+json")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(body)
}

// mapTargets resolves ?focus= and ?localities= to canonical names. The focus
// is always part of the returned set.
func (s *Server) mapTargets(r *http.Request) (string, []string, error) {
	rawFocus := strings.TrimSpace(r.URL.Query().Get("focus"))
	if rawFocus == "" {
		return "", nil, badRequest{"focus is required"}
	}
	resolve := func(name string) (string, error) {
		e, ok := s.svc.Localities.Lookup(name)
		if !ok {
			return "", fmt.Errorf("%w: %q", snapshot.ErrUnknownLocality, name)
		}
		return e.Name, nil
	}

	focus, err := resolve(rawFocus)
	if err != nil {
		return "", nil, err
	}
	names := []string{focus}
	seen := map[string]bool{focus: true}
	for _, raw := range strings.Split(r.URL.Query().Get("localities"), ",") {
		raw = strings.TrimSpace(raw)
		if raw == "" {
			continue
		}
		name, err := resolve(raw)
		if err != nil {
			return "", nil, err
		}
		if !seen[name] {
			seen[name] = true
			names = append(names, name)
		}
	}
	return focus, names, nil
}

// riskValues assembles a snapshot per locality and keys each on its latest
// heat index. A locality whose snapshot fails is drawn as unknown.
func (s *Server) riskValues(ctx context.Context, names []string) ([]boundary.Target, error) {
	targets := make([]boundary.Target, len(names))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(mapConcurrency)
	for i, name := range names {
		targets[i].Locality = name
		g.Go(func() error {
			snap, err := s.svc.Insights.Assemble(gctx, snapshot.Query{Locality: name})
			if err != nil {
				if gctx.Err() != nil {
					return err
				}
				s.logger.Warn("map value unavailable", "locality", name, "error", err)
				return nil
			}
			if snap.Latest != nil {
				targets[i].Value = domain.Float(snap.Latest.HeatIndexC)
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return targets, nil
}
