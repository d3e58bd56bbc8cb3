// Package http serves the insight API together with the health, readiness and
// metrics endpoints.
package http

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	sharedobs "github.com/couchcryptid/storm-data-shared/observability"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/couchcryptid/heat-insight-engine/internal/advisory"
	"github.com/couchcryptid/heat-insight-engine/internal/boundary"
	"github.com/couchcryptid/heat-insight-engine/internal/colorscale"
	"github.com/couchcryptid/heat-insight-engine/internal/domain"
	"github.com/couchcryptid/heat-insight-engine/internal/locality"
	"github.com/couchcryptid/heat-insight-engine/internal/observability"
	"github.com/couchcryptid/heat-insight-engine/internal/snapshot"
	"github.com/couchcryptid/heat-insight-engine/internal/supersede"
)

// DefaultSessionLimit bounds the number of sessions whose map state is kept.
const DefaultSessionLimit = 256

// Insights assembles snapshots.
type Insights interface {
	Assemble(ctx context.Context, q snapshot.Query) (domain.InsightSnapshot, error)
}

// Advisories serves recommendations for a locality.
type Advisories interface {
	Recommend(ctx context.Context, locality string) (advisory.Recommendation, error)
}

// Localities lists and resolves the served localities.
type Localities interface {
	Lookup(name string) (locality.Entry, bool)
	Entries() []locality.Entry
	Region() string
}

// Services are the collaborators behind the API routes.
type Services struct {
	Insights   Insights
	Advisories Advisories
	Localities Localities
	// Boundaries is nil when no boundary provider is configured; the map
	// route then answers 503.
	Boundaries *boundary.Cache
	Scale      *colorscale.Scale
	Ready      sharedobs.ReadinessChecker
	Metrics    *observability.Metrics

	SessionLimit int
}

// Server exposes the API plus health, readiness, and metrics HTTP endpoints.
type Server struct {
	httpServer *http.Server
	logger     *slog.Logger

	svc      Services
	sessions *sessionStore
	slots    supersede.Group
}

// NewServer creates an HTTP server with /healthz, /readyz, /metrics and the
// /api/v1 routes.
func NewServer(addr string, svc Services, logger *slog.Logger) *Server {
	mux := http.NewServeMux()

	if svc.Scale == nil {
		svc.Scale = colorscale.Heat()
	}
	if svc.SessionLimit <= 0 {
		svc.SessionLimit = DefaultSessionLimit
	}

	s := &Server{
		httpServer: &http.Server{
			Addr:              addr,
			Handler:           mux,
			ReadHeaderTimeout: 5 * time.Second,
			ReadTimeout:       10 * time.Second,
			// Map requests may wait on a boundary provider.
			WriteTimeout: 60 * time.Second,
			IdleTimeout:  60 * time.Second,
		},
		logger:   logger,
		svc:      svc,
		sessions: newSessionStore(svc.SessionLimit, svc.Boundaries, svc.Scale, logger, svc.Metrics),
	}

	mux.HandleFunc("GET /healthz", sharedobs.LivenessHandler())
	mux.HandleFunc("GET /readyz", sharedobs.ReadinessHandler(svc.Ready))
	mux.Handle("GET /metrics", promhttp.Handler())

	mux.HandleFunc("GET /api/v1/localities", s.handleLocalities)
	mux.HandleFunc("GET /api/v1/insights", s.withSession(s.handleInsights))
	mux.HandleFunc("GET /api/v1/insights/export", s.withSession(s.handleExport))
	mux.HandleFunc("GET /api/v1/advisories", s.withSession(s.handleAdvisories))
	mux.HandleFunc("GET /api/v1/colors", s.handleColors)
	mux.HandleFunc("GET /api/v1/map", s.withSession(s.handleMap))

	return s
}

// Start begins listening. Returns http.ErrServerClosed on graceful shutdown.
func (s *Server) Start() error {
	s.logger.Info("http server starting", "addr", s.httpServer.Addr)
	return s.httpServer.ListenAndServe()
}

// Shutdown gracefully drains connections within the given context deadline.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}

// ServeHTTP delegates to the underlying handler, useful for testing.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.httpServer.Handler.ServeHTTP(w, r)
}
