package http

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/couchcryptid/heat-insight-engine/internal/dataset"
	"github.com/couchcryptid/heat-insight-engine/internal/snapshot"
	"github.com/couchcryptid/heat-insight-engine/internal/supersede"
)

type errorBody struct {
	Error string `json:"error"`
}

// badRequest marks a malformed query.
type badRequest struct{ msg string }

func (e badRequest) Error() string { return e.msg }

// statusFor maps a request failure to its HTTP status. ctx is the request's
// superseding context.
func statusFor(ctx context.Context, err error) int {
	var bad badRequest
	switch {
	case supersede.IsSuperseded(ctx, err):
		return http.StatusConflict
	case errors.As(err, &bad):
		return http.StatusBadRequest
	case errors.Is(err, snapshot.ErrUnknownLocality):
		return http.StatusNotFound
	case errors.Is(err, dataset.ErrDataUnavailable):
		return http.StatusServiceUnavailable
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

func (s *Server) writeError(ctx context.Context, w http.ResponseWriter, r *http.Request, err error) {
	status := statusFor(ctx, err)
	msg := err.Error()
	switch {
	case status == http.StatusConflict:
		msg = supersede.ErrSuperseded.Error()
		s.logger.Debug("request superseded", "path", r.URL.Path)
	case r.Context().Err() != nil:
		s.logger.Debug("client went away", "path", r.URL.Path, "error", err)
	case status >= http.StatusInternalServerError:
		s.logger.Error("request failed", "path", r.URL.Path, "status", status, "error", err)
	}
	writeJSON(w, status, errorBody{Error: msg})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v) //nolint:errcheck // client may have gone away
}
