package core

import "slices"

// RecordKind names a record set whose rows are filtered by the status policy.
type RecordKind string

const (
	KindParticipant             RecordKind = "participant"
	KindTeamEntry               RecordKind = "team_entry"
	KindInstitutionRegistration RecordKind = "institution_event_registration"
	KindFundPending             RecordKind = "fund_transfer_pending"
	KindFundApproved            RecordKind = "fund_transfer_approved"
)

// StatusPolicyVersion identifies the default policy below. Bump it whenever the
// counted statuses change so that snapshots record which rules produced them.
const StatusPolicyVersion = "2024-01"

// StatusPolicy maps each record kind to the statuses that count toward
// amounts due (or, for fund transfers, toward each bucket). It is the only
// place status strings are chosen for aggregation.
type StatusPolicy struct {
	version string
	counted map[RecordKind][]Status
}

// FundBuckets are the fund transfer statuses summed into the pending and
// approved buckets. The two buckets are never netted.
type FundBuckets struct {
	Pending  []Status
	Approved []Status
}

// DefaultStatusPolicy returns the current status policy.
func DefaultStatusPolicy() StatusPolicy {
	return NewStatusPolicy(StatusPolicyVersion, map[RecordKind][]Status{
		KindParticipant:             {StatusSubmitted, StatusApproved},
		KindTeamEntry:               {StatusPending, StatusApproved},
		KindInstitutionRegistration: {StatusPending, StatusApproved},
		KindFundPending:             {StatusPending},
		KindFundApproved:            {StatusApproved},
	})
}

// NewStatusPolicy builds a policy from an explicit table. The table is copied.
func NewStatusPolicy(version string, counted map[RecordKind][]Status) StatusPolicy {
	c := make(map[RecordKind][]Status, len(counted))
	for k, v := range counted {
		c[k] = slices.Clone(v)
	}
	return StatusPolicy{version: version, counted: c}
}

func (p StatusPolicy) Version() string {
	return p.version
}

// Counted returns the counted statuses for kind. Unknown kinds count nothing.
func (p StatusPolicy) Counted(kind RecordKind) []Status {
	return slices.Clone(p.counted[kind])
}

// Counts reports whether a record of kind with status s is included.
func (p StatusPolicy) Counts(kind RecordKind, s Status) bool {
	return slices.Contains(p.counted[kind], s)
}

func (p StatusPolicy) FundBuckets() FundBuckets {
	return FundBuckets{
		Pending:  p.Counted(KindFundPending),
		Approved: p.Counted(KindFundApproved),
	}
}
