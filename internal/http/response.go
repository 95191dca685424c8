package http

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"eventfees/internal/core"
	"eventfees/internal/log"
)

type errorBody struct {
	Error string `json:"error"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// writeError maps an engine error onto a status code. A failed computation
// never carries a partial body.
func (s *Server) writeError(w http.ResponseWriter, r *http.Request, op string, err error) {
	var br *badRequest
	switch {
	case errors.As(err, &br):
		writeJSON(w, http.StatusBadRequest, errorBody{Error: br.msg})
	case errors.Is(err, errMissingIdentity):
		writeJSON(w, http.StatusUnauthorized, errorBody{Error: err.Error()})
	case core.IsScopeError(err):
		s.access.LogError(r.Context(), "Caller identity incomplete", err, log.ErrorTypeScope, op, nil)
		writeJSON(w, http.StatusForbidden, errorBody{Error: "caller identity incomplete"})
	case core.IsNotFound(err):
		writeJSON(w, http.StatusNotFound, errorBody{Error: "not found"})
	case core.IsDataAccess(err), errors.Is(err, context.DeadlineExceeded):
		s.access.LogError(r.Context(), "Computation failed", err, log.ErrorTypeDataAccess, op, nil)
		writeJSON(w, http.StatusServiceUnavailable, errorBody{Error: "unable to compute"})
	default:
		s.access.LogError(r.Context(), "Unexpected error", err, log.ErrorTypeInternal, op, nil)
		writeJSON(w, http.StatusInternalServerError, errorBody{Error: "internal error"})
	}
}
