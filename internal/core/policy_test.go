package core

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDefaultStatusPolicy(t *testing.T) {
	p := DefaultStatusPolicy()

	tests := []struct {
		kind   RecordKind
		status Status
		want   bool
	}{
		{KindParticipant, StatusSubmitted, true},
		{KindParticipant, StatusApproved, true},
		{KindParticipant, StatusDraft, false},
		{KindParticipant, StatusRejected, false},
		{KindParticipant, StatusPending, false},
		{KindTeamEntry, StatusPending, true},
		{KindTeamEntry, StatusApproved, true},
		{KindTeamEntry, StatusRejected, false},
		{KindInstitutionRegistration, StatusPending, true},
		{KindInstitutionRegistration, StatusApproved, true},
		{KindInstitutionRegistration, StatusDraft, false},
		{KindFundPending, StatusPending, true},
		{KindFundPending, StatusApproved, false},
		{KindFundApproved, StatusApproved, true},
		{KindFundApproved, StatusRejected, false},
		{RecordKind("unknown"), StatusApproved, false},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, p.Counts(tt.kind, tt.status), "%s/%s", tt.kind, tt.status)
	}
	assert.Equal(t, StatusPolicyVersion, p.Version())
}

func TestStatusPolicy_CountedIsACopy(t *testing.T) {
	p := DefaultStatusPolicy()

	got := p.Counted(KindParticipant)
	got[0] = StatusRejected

	assert.True(t, p.Counts(KindParticipant, StatusSubmitted))
	assert.False(t, p.Counts(KindParticipant, StatusRejected))
}

func TestStatusPolicy_FundBuckets(t *testing.T) {
	b := DefaultStatusPolicy().FundBuckets()
	assert.Equal(t, []Status{StatusPending}, b.Pending)
	assert.Equal(t, []Status{StatusApproved}, b.Approved)
}
