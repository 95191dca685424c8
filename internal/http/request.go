package http

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"eventfees/internal/core"
	"eventfees/internal/scope"
)

// Identity headers set by the upstream session layer
const (
	HeaderCallerRole          = "X-Caller-Role"
	HeaderCallerEventID       = "X-Caller-Event-ID"
	HeaderCallerInstitutionID = "X-Caller-Institution-ID"
)

const maxBodyBytes = 4 << 10

var errMissingIdentity = errors.New("missing caller identity")

// badRequest marks a malformed request; it renders as 400.
type badRequest struct {
	msg string
}

func (e *badRequest) Error() string { return e.msg }

func badRequestf(format string, args ...any) error {
	return &badRequest{msg: fmt.Sprintf(format, args...)}
}

// parseIdentity reads the caller identity headers. Role names are matched
// case-insensitively; an unknown role is passed through and fails closed.
func parseIdentity(r *http.Request) (scope.Identity, error) {
	role := strings.TrimSpace(r.Header.Get(HeaderCallerRole))
	if role == "" {
		return scope.Identity{}, errMissingIdentity
	}
	id := scope.Identity{Role: scope.ParseRole(role)}

	if v := strings.TrimSpace(r.Header.Get(HeaderCallerEventID)); v != "" {
		eventID, err := core.ParseEventID(v)
		if err != nil {
			return scope.Identity{}, badRequestf("invalid %s header", HeaderCallerEventID)
		}
		id.EventID = &eventID
	}
	if v := strings.TrimSpace(r.Header.Get(HeaderCallerInstitutionID)); v != "" {
		institutionID, err := core.ParseInstitutionID(v)
		if err != nil {
			return scope.Identity{}, badRequestf("invalid %s header", HeaderCallerInstitutionID)
		}
		id.InstitutionID = &institutionID
	}
	return id, nil
}

func eventParam(r *http.Request) (core.EventID, error) {
	id, err := core.ParseEventID(chi.URLParam(r, "eventID"))
	if err != nil {
		return 0, badRequestf("invalid event id")
	}
	return id, nil
}

func pairParams(r *http.Request) (core.EventID, core.InstitutionID, error) {
	eventID, err := eventParam(r)
	if err != nil {
		return 0, 0, err
	}
	institutionID, err := core.ParseInstitutionID(chi.URLParam(r, "institutionID"))
	if err != nil {
		return 0, 0, badRequestf("invalid institution id")
	}
	return eventID, institutionID, nil
}

func transferParam(r *http.Request) (core.TransferID, error) {
	id, err := core.ParseTransferID(chi.URLParam(r, "transferID"))
	if err != nil {
		return 0, badRequestf("invalid transfer id")
	}
	return id, nil
}

type recomputeRequest struct {
	Reason string `json:"reason"`
}

// parseRecomputeRequest reads the optional JSON body of a recompute request.
func parseRecomputeRequest(r *http.Request) (recomputeRequest, error) {
	var req recomputeRequest
	body, err := io.ReadAll(io.LimitReader(r.Body, maxBodyBytes+1))
	if err != nil {
		return req, badRequestf("unreadable body")
	}
	if len(body) > maxBodyBytes {
		return req, badRequestf("body too large")
	}
	if len(strings.TrimSpace(string(body))) == 0 {
		req.Reason = "manual"
		return req, nil
	}
	if err := json.Unmarshal(body, &req); err != nil {
		return req, badRequestf("invalid JSON body")
	}
	req.Reason = strings.TrimSpace(req.Reason)
	if req.Reason == "" {
		req.Reason = "manual"
	}
	if len(req.Reason) > 100 {
		return req, badRequestf("reason too long")
	}
	return req, nil
}
