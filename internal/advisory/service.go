// Package advisory produces the short recommendations shown next to a
// locality snapshot. Generated text is validated strictly; anything that fails
// validation is replaced with a static fallback list.
package advisory

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"unicode/utf8"

	"golang.org/x/sync/singleflight"

	"github.com/couchcryptid/heat-insight-engine/internal/domain"
	"github.com/couchcryptid/heat-insight-engine/internal/observability"
)

// ErrParseFailed is returned when generated advisories do not match the
// expected schema.
var ErrParseFailed = errors.New("advisory response failed validation")

// Limits on a generated response.
const (
	MaxItems    = 5
	MaxTitleLen = 80
	MaxBodyLen  = 400
	maxFocusLen = 32
)

// Generator produces advisories for a locality.
type Generator interface {
	Generate(ctx context.Context, locality string) ([]domain.Advisory, error)
}

// Recommendation is the list served for a locality.
type Recommendation struct {
	Locality string            `json:"locality"`
	Items    []domain.Advisory `json:"items"`
	Fallback bool              `json:"fallback"`
}

// Service serves advisories with a per-locality memo of valid results.
type Service struct {
	gen     Generator
	logger  *slog.Logger
	metrics *observability.Metrics

	group singleflight.Group
	mu    sync.RWMutex
	memo  map[string][]domain.Advisory
}

// NewService creates a Service. A nil generator disables generation and every
// request is served the fallback list.
func NewService(gen Generator, logger *slog.Logger, metrics *observability.Metrics) *Service {
	return &Service{
		gen:     gen,
		logger:  logger,
		metrics: metrics,
		memo:    make(map[string][]domain.Advisory),
	}
}

// Enabled reports whether a generator is configured.
func (s *Service) Enabled() bool { return s.gen != nil }

// Recommend returns the advisories for locality. The list is never empty. The
// only error returned is the context's, when ctx ends before a result is ready.
func (s *Service) Recommend(ctx context.Context, locality string) (Recommendation, error) {
	if items, ok := s.cached(locality); ok {
		s.metrics.Advisories.WithLabelValues("cached").Inc()
		return Recommendation{Locality: locality, Items: items}, nil
	}
	if s.gen == nil {
		s.metrics.Advisories.WithLabelValues("fallback").Inc()
		return fallback(locality), nil
	}

	ch := s.group.DoChan(locality, func() (any, error) {
		items, err := s.gen.Generate(context.WithoutCancel(ctx), locality)
		if err != nil {
			return nil, err
		}
		s.mu.Lock()
		s.memo[locality] = items
		s.mu.Unlock()
		return items, nil
	})

	select {
	case <-ctx.Done():
		return Recommendation{}, context.Cause(ctx)
	case res := <-ch:
		if res.Err != nil {
			s.logger.Warn("advisory generation failed, serving fallback",
				"locality", locality,
				"error", res.Err,
			)
			s.metrics.Advisories.WithLabelValues("fallback").Inc()
			return fallback(locality), nil
		}
		s.metrics.Advisories.WithLabelValues("generated").Inc()
		return Recommendation{Locality: locality, Items: clone(res.Val.([]domain.Advisory))}, nil
	}
}

func (s *Service) cached(locality string) ([]domain.Advisory, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	items, ok := s.memo[locality]
	if !ok {
		return nil, false
	}
	return clone(items), true
}

func fallback(locality string) Recommendation {
	return Recommendation{Locality: locality, Items: domain.FallbackAdvisories(), Fallback: true}
}

func clone(items []domain.Advisory) []domain.Advisory {
	return append([]domain.Advisory(nil), items...)
}

type envelope struct {
	Recommendations []domain.Advisory `json:"recommendations"`
}

// Decode validates a generated response body. The body is either an object
// with a "recommendations" array or the bare array, optionally wrapped in a
// fenced code block. Urgency and focus are normalized to lower case.
func Decode(data []byte) ([]domain.Advisory, error) {
	data = stripFence(bytes.TrimSpace(data))

	var items []domain.Advisory
	switch {
	case len(data) > 0 && data[0] == '[':
		if err := json.Unmarshal(data, &items); err != nil {
			return nil, fmt.Errorf("%w: %w", ErrParseFailed, err)
		}
	case len(data) > 0 && data[0] == '{':
		var env envelope
		if err := json.Unmarshal(data, &env); err != nil {
			return nil, fmt.Errorf("%w: %w", ErrParseFailed, err)
		}
		items = env.Recommendations
	default:
		return nil, fmt.Errorf("%w: not a JSON document", ErrParseFailed)
	}

	if len(items) == 0 || len(items) > MaxItems {
		return nil, fmt.Errorf("%w: want 1 to %d items, got %d", ErrParseFailed, MaxItems, len(items))
	}
	out := make([]domain.Advisory, 0, len(items))
	for i, it := range items {
		a, err := normalize(it)
		if err != nil {
			return nil, fmt.Errorf("%w: item %d: %w", ErrParseFailed, i, err)
		}
		out = append(out, a)
	}
	return out, nil
}

func normalize(a domain.Advisory) (domain.Advisory, error) {
	a.Title = strings.TrimSpace(a.Title)
	a.Body = strings.TrimSpace(a.Body)
	a.Urgency = strings.ToLower(strings.TrimSpace(a.Urgency))
	a.Focus = strings.ToLower(strings.TrimSpace(a.Focus))

	switch {
	case a.Title == "":
		return a, errors.New("empty title")
	case utf8.RuneCountInString(a.Title) > MaxTitleLen:
		return a, fmt.Errorf("title longer than %d characters", MaxTitleLen)
	case a.Body == "":
		return a, errors.New("empty body")
	case utf8.RuneCountInString(a.Body) > MaxBodyLen:
		return a, fmt.Errorf("body longer than %d characters", MaxBodyLen)
	case !domain.ValidUrgency(a.Urgency):
		return a, fmt.Errorf("unknown urgency %q", a.Urgency)
	case a.Focus == "":
		return a, errors.New("empty focus")
	case utf8.RuneCountInString(a.Focus) > maxFocusLen:
		return a, fmt.Errorf("focus longer than %d characters", maxFocusLen)
	}
	return a, nil
}

func stripFence(data []byte) []byte {
	if !bytes.HasPrefix(data, []byte("```")) {
		return data
	}
	data = data[3:]
	if nl := bytes.IndexByte(data, '\n'); nl >= 0 {
		data = data[nl+1:]
	}
	data = bytes.TrimSpace(data)
	data = bytes.TrimSuffix(data, []byte("```"))
	return bytes.TrimSpace(data)
}
