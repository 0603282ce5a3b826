package server

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/cbegin/tabplay-go/internal/schedule"
	"github.com/cbegin/tabplay-go/internal/tab"
	"github.com/cbegin/tabplay-go/internal/tabimage"
	"github.com/cbegin/tabplay-go/internal/theory"
	"github.com/cbegin/tabplay-go/internal/tuning"
)

// requestError is a body that could not be decoded.
type requestError struct{ err error }

func (e *requestError) Error() string { return "bad request: " + e.err.Error() }
func (e *requestError) Unwrap() error { return e.err }

type errorResponse struct {
	Error string `json:"error"`
	Kind  string `json:"kind"`
}

// classify maps an error to its HTTP status and kind.
func classify(err error) (int, string) {
	var fmtErr *tab.FormatError
	var idxErr *tuning.IndexError
	var cfgErr *tuning.ConfigError
	var reqErr *requestError
	switch {
	case errors.As(err, &fmtErr):
		return http.StatusBadRequest, "format"
	case errors.As(err, &idxErr):
		return http.StatusBadRequest, "index"
	case errors.As(err, &cfgErr), errors.Is(err, schedule.ErrTempo):
		return http.StatusBadRequest, "config"
	case errors.Is(err, tab.ErrUnknownExercise):
		return http.StatusNotFound, "not_found"
	case errors.As(err, &reqErr), errors.Is(err, tabimage.ErrTooWide), errors.Is(err, theory.ErrInvalid):
		return http.StatusBadRequest, "request"
	default:
		return http.StatusInternalServerError, "internal"
	}
}

func (s *Server) writeError(w http.ResponseWriter, err error) {
	status, kind := classify(err)
	if status >= http.StatusInternalServerError {
		s.log.Error("request failed", zap.Error(err))
	} else {
		s.log.Debug("request rejected", zap.String("kind", kind), zap.Error(err))
	}
	writeJSON(w, status, errorResponse{Error: err.Error(), Kind: kind})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func msOf(d time.Duration) float64 {
	return float64(d) / float64(time.Millisecond)
}
