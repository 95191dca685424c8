package core

// Raw per-category aggregation results as returned by the data-access layer.
type (
	ParticipantAggregate struct {
		ParticipantCount     int64
		IndividualEventCount int64
		Fees                 Money
	}

	TeamEntryAggregate struct {
		Count int64
		Fees  Money
	}

	InstitutionEventAggregate struct {
		Count int64
		Fees  Money
	}

	FundTransferAggregate struct {
		Pending  Money
		Approved Money
	}

	// RawAggregates is the joined output of the four aggregations.
	RawAggregates struct {
		Key               ScopeKey
		PolicyVersion     string
		Participants      ParticipantAggregate
		TeamEntries       TeamEntryAggregate
		InstitutionEvents InstitutionEventAggregate
		FundTransfers     FundTransferAggregate
	}
)

// FeeCategory identifies a line of the fee breakdown.
type FeeCategory string

const (
	CategoryParticipantFees      FeeCategory = "participant_fees"
	CategoryTeamEntryFees        FeeCategory = "team_entry_fees"
	CategoryInstitutionEventFees FeeCategory = "institution_event_fees"
)

// FeeLine is one row of the fee breakdown. EventCount is only meaningful for
// participant fees (distinct participant/individual-event pairs).
type FeeLine struct {
	Category   FeeCategory `json:"category"`
	Label      string      `json:"label"`
	Count      int64       `json:"count"`
	EventCount int64       `json:"event_count,omitempty"`
	Amount     Money       `json:"amount"`
}

// FinancialSnapshot is the derived, non-persisted financial summary of one
// institution within one event.
type FinancialSnapshot struct {
	EventID       EventID       `json:"event_id"`
	InstitutionID InstitutionID `json:"institution_id"`
	PolicyVersion string        `json:"policy_version"`

	ParticipantCount      int64 `json:"participant_count"`
	ParticipantEventCount int64 `json:"participant_event_count"`
	ParticipantFees       Money `json:"participant_fees"`

	TeamEntryCount int64 `json:"team_entry_count"`
	TeamEntryFees  Money `json:"team_entry_fees"`

	InstitutionEventCount int64 `json:"institution_event_count"`
	InstitutionEventFees  Money `json:"institution_event_fees"`

	FundPending  Money `json:"fund_pending"`
	FundApproved Money `json:"fund_approved"`
	FundTotal    Money `json:"fund_total"`

	TotalFeeDue Money `json:"total_fee_due"`
	Balance     Money `json:"balance"`
	DuesCleared bool  `json:"dues_cleared"`

	FeeBreakdown []FeeLine `json:"fee_breakdown"`
}

// Present derives totals, balance, settlement and the ordered fee breakdown
// from raw aggregates. It performs no I/O.
//
//	total_fee_due = participant + team entry + institution event fees
//	balance       = max(total_fee_due - fund_approved, 0)
//	dues_cleared  = total_fee_due <= fund_approved
//
// Pending transfers only feed fund_total.
func Present(raw RawAggregates) FinancialSnapshot {
	p, t, i, f := raw.Participants, raw.TeamEntries, raw.InstitutionEvents, raw.FundTransfers

	due := p.Fees.Add(t.Fees).Add(i.Fees)

	return FinancialSnapshot{
		EventID:       raw.Key.EventID,
		InstitutionID: raw.Key.InstitutionID,
		PolicyVersion: raw.PolicyVersion,

		ParticipantCount:      p.ParticipantCount,
		ParticipantEventCount: p.IndividualEventCount,
		ParticipantFees:       p.Fees,

		TeamEntryCount: t.Count,
		TeamEntryFees:  t.Fees,

		InstitutionEventCount: i.Count,
		InstitutionEventFees:  i.Fees,

		FundPending:  f.Pending,
		FundApproved: f.Approved,
		FundTotal:    f.Pending.Add(f.Approved),

		TotalFeeDue: due,
		Balance:     due.SubFloor(f.Approved),
		DuesCleared: due.LessOrEqual(f.Approved),

		FeeBreakdown: []FeeLine{
			{
				Category:   CategoryParticipantFees,
				Label:      "Participant Fees",
				Count:      p.ParticipantCount,
				EventCount: p.IndividualEventCount,
				Amount:     p.Fees,
			},
			{
				Category: CategoryTeamEntryFees,
				Label:    "Team Entry Fees",
				Count:    t.Count,
				Amount:   t.Fees,
			},
			{
				Category: CategoryInstitutionEventFees,
				Label:    "Institution Event Fees",
				Count:    i.Count,
				Amount:   i.Fees,
			},
		},
	}
}
