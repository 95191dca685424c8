package http

import (
	"net/http"

	"eventfees/internal/amqp"
	"eventfees/internal/core"
	"eventfees/internal/log"
)

type transfersResponse struct {
	EventID       core.EventID        `json:"event_id"`
	InstitutionID core.InstitutionID  `json:"institution_id"`
	Transfers     []core.FundTransfer `json:"transfers"`
}

type labelsResponse struct {
	EventID core.EventID      `json:"event_id"`
	Labels  core.ResultLabels `json:"labels"`
}

type recomputeResponse struct {
	EventID       core.EventID       `json:"event_id"`
	InstitutionID core.InstitutionID `json:"institution_id"`
	Status        string             `json:"status"`
}

func (s *Server) handleSnapshot(w http.ResponseWriter, r *http.Request) {
	id, err := parseIdentity(r)
	if err != nil {
		s.writeError(w, r, log.OpSnapshot, err)
		return
	}
	eventID, institutionID, err := pairParams(r)
	if err != nil {
		s.writeError(w, r, log.OpSnapshot, err)
		return
	}

	snap, err := s.reconciler.Snapshot(r.Context(), id, eventID, institutionID)
	if err != nil {
		s.writeError(w, r, log.OpSnapshot, err)
		return
	}
	writeJSON(w, http.StatusOK, snap)
}

func (s *Server) handleEventReport(w http.ResponseWriter, r *http.Request) {
	id, err := parseIdentity(r)
	if err != nil {
		s.writeError(w, r, log.OpReport, err)
		return
	}
	eventID, err := eventParam(r)
	if err != nil {
		s.writeError(w, r, log.OpReport, err)
		return
	}

	report, err := s.reconciler.EventReport(r.Context(), id, eventID)
	if err != nil {
		s.writeError(w, r, log.OpReport, err)
		return
	}
	writeJSON(w, http.StatusOK, report)
}

func (s *Server) handleListFundTransfers(w http.ResponseWriter, r *http.Request) {
	id, err := parseIdentity(r)
	if err != nil {
		s.writeError(w, r, log.OpListTransfers, err)
		return
	}
	eventID, institutionID, err := pairParams(r)
	if err != nil {
		s.writeError(w, r, log.OpListTransfers, err)
		return
	}

	transfers, err := s.reconciler.ListFundTransfers(r.Context(), id, eventID, institutionID)
	if err != nil {
		s.writeError(w, r, log.OpListTransfers, err)
		return
	}
	if transfers == nil {
		transfers = []core.FundTransfer{}
	}
	writeJSON(w, http.StatusOK, transfersResponse{
		EventID:       eventID,
		InstitutionID: institutionID,
		Transfers:     transfers,
	})
}

func (s *Server) handleGetFundTransfer(w http.ResponseWriter, r *http.Request) {
	id, err := parseIdentity(r)
	if err != nil {
		s.writeError(w, r, log.OpGetTransfer, err)
		return
	}
	eventID, institutionID, err := pairParams(r)
	if err != nil {
		s.writeError(w, r, log.OpGetTransfer, err)
		return
	}
	transferID, err := transferParam(r)
	if err != nil {
		s.writeError(w, r, log.OpGetTransfer, err)
		return
	}

	transfer, err := s.reconciler.GetFundTransfer(r.Context(), id, eventID, institutionID, transferID)
	if err != nil {
		s.writeError(w, r, log.OpGetTransfer, err)
		return
	}
	writeJSON(w, http.StatusOK, transfer)
}

func (s *Server) handleResultLabels(w http.ResponseWriter, r *http.Request) {
	id, err := parseIdentity(r)
	if err != nil {
		s.writeError(w, r, log.OpResolveLabels, err)
		return
	}
	eventID, err := eventParam(r)
	if err != nil {
		s.writeError(w, r, log.OpResolveLabels, err)
		return
	}

	labels, err := s.reconciler.ResultLabels(r.Context(), id, eventID)
	if err != nil {
		s.writeError(w, r, log.OpResolveLabels, err)
		return
	}
	writeJSON(w, http.StatusOK, labelsResponse{EventID: eventID, Labels: labels})
}

// handleRecompute enqueues a recompute of a pair the caller can reach.
func (s *Server) handleRecompute(w http.ResponseWriter, r *http.Request) {
	if s.publisher == nil {
		writeJSON(w, http.StatusServiceUnavailable, errorBody{Error: "recompute queue unavailable"})
		return
	}

	id, err := parseIdentity(r)
	if err != nil {
		s.writeError(w, r, log.OpRecompute, err)
		return
	}
	eventID, institutionID, err := pairParams(r)
	if err != nil {
		s.writeError(w, r, log.OpRecompute, err)
		return
	}
	req, err := parseRecomputeRequest(r)
	if err != nil {
		s.writeError(w, r, log.OpRecompute, err)
		return
	}

	key, err := s.reconciler.Authorize(r.Context(), id, eventID, institutionID)
	if err != nil {
		s.writeError(w, r, log.OpRecompute, err)
		return
	}

	if err := s.publisher.PublishRecompute(r.Context(), amqp.NewRecomputeMessage(key, req.Reason)); err != nil {
		s.access.LogError(r.Context(), "Failed to enqueue recompute", err, log.ErrorTypeInternal, log.OpRecompute,
			log.NewFields().WithScope(int64(key.EventID), int64(key.InstitutionID)))
		writeJSON(w, http.StatusServiceUnavailable, errorBody{Error: "recompute queue unavailable"})
		return
	}

	writeJSON(w, http.StatusAccepted, recomputeResponse{
		EventID:       key.EventID,
		InstitutionID: key.InstitutionID,
		Status:        "queued",
	})
}
