package core

import (
	"fmt"
	"strconv"
	"strings"
)

type (
	EventID       int64
	InstitutionID int64
	ParticipantID int64
	TransferID    int64

	// Status is a lifecycle status as stored by the registration CRUD layer.
	Status string

	// EventKind classifies an EventMaster entry.
	EventKind string

	// ScopeKey identifies the single (event, institution) pair a snapshot is computed for.
	ScopeKey struct {
		EventID       EventID
		InstitutionID InstitutionID
	}

	Institution struct {
		ID   InstitutionID `json:"id"`
		Name string        `json:"name"`
	}

	FundTransfer struct {
		ID            TransferID    `json:"id"`
		EventID       EventID       `json:"event_id"`
		InstitutionID InstitutionID `json:"institution_id"`
		Amount        Money         `json:"amount"`
		Reference     string        `json:"reference"`
		Status        Status        `json:"status"`
	}

	// LabelOverride is an event-specific relabelling of a result category.
	LabelOverride struct {
		EventID   EventID `json:"event_id"`
		Key       string  `json:"key"`
		Label     string  `json:"label"`
		SortOrder int     `json:"sort_order"`
	}
)

const (
	StatusDraft     Status = "draft"
	StatusSubmitted Status = "submitted"
	StatusPending   Status = "pending"
	StatusApproved  Status = "approved"
	StatusRejected  Status = "rejected"
)

const (
	KindIndividual  EventKind = "Individual"
	KindTeam        EventKind = "Team"
	KindInstitution EventKind = "Institution"
)

func (k ScopeKey) String() string {
	return fmt.Sprintf("event=%d institution=%d", k.EventID, k.InstitutionID)
}

// Validate rejects non-positive identifiers.
func (k ScopeKey) Validate() error {
	if k.EventID <= 0 {
		return fmt.Errorf("invalid event id %d", k.EventID)
	}
	if k.InstitutionID <= 0 {
		return fmt.Errorf("invalid institution id %d", k.InstitutionID)
	}
	return nil
}

// ParseEventID parses a positive event id.
func ParseEventID(s string) (EventID, error) {
	v, err := parsePositiveID(s)
	return EventID(v), err
}

// ParseInstitutionID parses a positive institution id.
func ParseInstitutionID(s string) (InstitutionID, error) {
	v, err := parsePositiveID(s)
	return InstitutionID(v), err
}

// ParseTransferID parses a positive fund transfer id.
func ParseTransferID(s string) (TransferID, error) {
	v, err := parsePositiveID(s)
	return TransferID(v), err
}

func parsePositiveID(s string) (int64, error) {
	v, err := strconv.ParseInt(strings.TrimSpace(s), 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid id %q: %w", s, err)
	}
	if v <= 0 {
		return 0, fmt.Errorf("invalid id %q: must be positive", s)
	}
	return v, nil
}
