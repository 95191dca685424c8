package amqp

import (
	"encoding/json"
	"fmt"
	"time"

	"eventfees/internal/core"
)

// RecomputeMessage asks the worker to recompute one institution's snapshot.
// It carries only the pair; the worker reads current data itself.
type RecomputeMessage struct {
	EventID       int64     `json:"event_id"`
	InstitutionID int64     `json:"institution_id"`
	Reason        string    `json:"reason,omitempty"`
	Timestamp     time.Time `json:"timestamp"`
}

// NewRecomputeMessage creates a recompute request for key
func NewRecomputeMessage(key core.ScopeKey, reason string) *RecomputeMessage {
	return &RecomputeMessage{
		EventID:       int64(key.EventID),
		InstitutionID: int64(key.InstitutionID),
		Reason:        reason,
		Timestamp:     time.Now(),
	}
}

func (m *RecomputeMessage) Key() core.ScopeKey {
	return core.ScopeKey{EventID: core.EventID(m.EventID), InstitutionID: core.InstitutionID(m.InstitutionID)}
}

// ToJSON converts the message to JSON bytes
func (m *RecomputeMessage) ToJSON() ([]byte, error) {
	return json.Marshal(m)
}

// RecomputeMessageFromJSON decodes and validates a recompute request
func RecomputeMessageFromJSON(data []byte) (*RecomputeMessage, error) {
	var msg RecomputeMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, err
	}
	if err := msg.Key().Validate(); err != nil {
		return nil, fmt.Errorf("recompute message: %w", err)
	}
	return &msg, nil
}

// SettlementStatusMessage broadcasts the settlement state of one institution
// after a recompute.
type SettlementStatusMessage struct {
	EventID       int64      `json:"event_id"`
	InstitutionID int64      `json:"institution_id"`
	TotalFeeDue   core.Money `json:"total_fee_due"`
	FundApproved  core.Money `json:"fund_approved"`
	Balance       core.Money `json:"balance"`
	DuesCleared   bool       `json:"dues_cleared"`
	PolicyVersion string     `json:"policy_version"`
	ComputedAt    time.Time  `json:"computed_at"`
}

func NewSettlementStatusMessage(snap core.FinancialSnapshot) *SettlementStatusMessage {
	return &SettlementStatusMessage{
		EventID:       int64(snap.EventID),
		InstitutionID: int64(snap.InstitutionID),
		TotalFeeDue:   snap.TotalFeeDue,
		FundApproved:  snap.FundApproved,
		Balance:       snap.Balance,
		DuesCleared:   snap.DuesCleared,
		PolicyVersion: snap.PolicyVersion,
		ComputedAt:    time.Now(),
	}
}

// ToJSON converts the message to JSON bytes
func (m *SettlementStatusMessage) ToJSON() ([]byte, error) {
	return json.Marshal(m)
}

func SettlementStatusMessageFromJSON(data []byte) (*SettlementStatusMessage, error) {
	var msg SettlementStatusMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, err
	}
	return &msg, nil
}
