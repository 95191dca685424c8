package services

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/suite"

	"eventfees/internal/core"
	"eventfees/internal/fixtures"
	"eventfees/internal/log"
	"eventfees/internal/memory"
	"eventfees/internal/metrics"
)

type FeeAggregatorSuite struct {
	suite.Suite
	store      *memory.Store
	metrics    *metrics.Metrics
	aggregator *FeeAggregator
}

func TestFeeAggregatorSuite(t *testing.T) {
	suite.Run(t, new(FeeAggregatorSuite))
}

func (s *FeeAggregatorSuite) SetupTest() {
	s.store = memory.New()
	s.Require().NoError(s.store.Load(fixtures.Reconciliation()))
	s.metrics = metrics.New(prometheus.NewRegistry())
	s.aggregator = NewFeeAggregator(s.store, core.DefaultStatusPolicy(), s.metrics, log.Discard())
}

func (s *FeeAggregatorSuite) compute(eventID core.EventID, institutionID core.InstitutionID) core.FinancialSnapshot {
	snap, err := s.aggregator.ComputeSnapshot(context.Background(), core.ScopeKey{EventID: eventID, InstitutionID: institutionID})
	s.Require().NoError(err)
	return snap
}

func (s *FeeAggregatorSuite) TestWorkedExample() {
	snap := s.compute(fixtures.Event, fixtures.North)

	s.Equal(int64(10), snap.ParticipantCount)
	s.Equal(int64(4), snap.ParticipantEventCount)
	s.Equal(core.Cents(40000), snap.ParticipantFees)
	s.Equal(int64(2), snap.TeamEntryCount)
	s.Equal(core.Cents(30000), snap.TeamEntryFees)
	s.Equal(int64(1), snap.InstitutionEventCount)
	s.Equal(core.Cents(30000), snap.InstitutionEventFees)
	s.Equal(core.Cents(fixtures.NorthDue), snap.TotalFeeDue)
	s.Equal(core.Cents(30000), snap.FundTotal)
	s.Equal(core.Cents(fixtures.NorthBalance), snap.Balance)
	s.False(snap.DuesCleared)
	s.Equal(core.StatusPolicyVersion, snap.PolicyVersion)

	s.Require().Len(snap.FeeBreakdown, 3)
	s.Equal(core.CategoryParticipantFees, snap.FeeBreakdown[0].Category)
	s.Equal(core.CategoryTeamEntryFees, snap.FeeBreakdown[1].Category)
	s.Equal(core.CategoryInstitutionEventFees, snap.FeeBreakdown[2].Category)
}

func (s *FeeAggregatorSuite) TestScopesDoNotLeak() {
	river := s.compute(fixtures.Event, fixtures.River)
	s.Equal(core.Cents(fixtures.RiverDue), river.TotalFeeDue)
	s.Equal(core.Cents(fixtures.RiverApprovedFunds), river.FundApproved)
	s.Equal(core.Cents(fixtures.RiverBalance), river.Balance)

	other := s.compute(fixtures.OtherEvent, fixtures.North)
	s.Equal(core.Cents(fixtures.NorthOtherDue), other.TotalFeeDue)
	s.Equal(core.Cents(5000), other.FundPending)
	s.True(other.FundApproved.IsZero())
}

func (s *FeeAggregatorSuite) TestEmptyPairIsZeroAndCleared() {
	snap := s.compute(404, fixtures.Lake)

	s.True(snap.TotalFeeDue.IsZero())
	s.True(snap.FundTotal.IsZero())
	s.True(snap.Balance.IsZero())
	s.True(snap.DuesCleared)
	s.Zero(snap.ParticipantCount)
	s.Zero(snap.TeamEntryCount)
	s.Zero(snap.InstitutionEventCount)
}

func (s *FeeAggregatorSuite) TestIdempotent() {
	first, err := json.Marshal(s.compute(fixtures.Event, fixtures.North))
	s.Require().NoError(err)
	second, err := json.Marshal(s.compute(fixtures.Event, fixtures.North))
	s.Require().NoError(err)
	s.Equal(string(first), string(second))
}

func (s *FeeAggregatorSuite) TestPendingTransfersNeverSettle() {
	before := s.compute(fixtures.Event, fixtures.North)

	s.Require().NoError(s.store.Load(core.Dataset{FundTransfers: []core.FundTransfer{{
		ID: 99, EventID: fixtures.Event, InstitutionID: fixtures.North,
		Amount: core.Cents(500000), Status: core.StatusPending,
	}}}))
	after := s.compute(fixtures.Event, fixtures.North)

	s.Equal(before.Balance, after.Balance)
	s.Equal(before.DuesCleared, after.DuesCleared)
	s.Equal(core.Cents(510000), after.FundPending)
}

func (s *FeeAggregatorSuite) TestExcludedStatusesNeverCount() {
	for _, status := range []core.Status{core.StatusDraft, core.StatusRejected, "withdrawn"} {
		s.Run(string(status), func() {
			s.SetupTest()
			before := s.compute(fixtures.Event, fixtures.North)

			s.Require().True(s.store.SetParticipantStatus(1, status))
			s.Require().True(s.store.SetTransferStatus(fixtures.NorthApproved, status))
			after := s.compute(fixtures.Event, fixtures.North)

			s.Equal(before.ParticipantCount-1, after.ParticipantCount)
			s.Equal(core.Cents(30000), after.ParticipantFees)
			s.True(after.FundApproved.IsZero())
			s.Equal(before.FundPending, after.FundPending)
		})
	}
}

func (s *FeeAggregatorSuite) TestApprovingSettles() {
	s.Require().NoError(s.store.Load(core.Dataset{FundTransfers: []core.FundTransfer{{
		ID: 99, EventID: fixtures.Event, InstitutionID: fixtures.North,
		Amount: core.Cents(80000), Status: core.StatusApproved,
	}}}))
	snap := s.compute(fixtures.Event, fixtures.North)

	s.True(snap.Balance.IsZero())
	s.True(snap.DuesCleared)
}

func (s *FeeAggregatorSuite) TestDataAccessFailure() {
	src := &failingSource{Store: s.store, fail: map[string]bool{SourceFundTransfers: true}}
	agg := NewFeeAggregator(src, core.DefaultStatusPolicy(), nil, log.Discard())

	snap, err := agg.ComputeSnapshot(context.Background(), core.ScopeKey{EventID: fixtures.Event, InstitutionID: fixtures.North})
	s.Require().Error(err)
	s.True(core.IsDataAccess(err))
	s.ErrorIs(err, errUnavailable)

	var dae *core.DataAccessError
	s.Require().True(errors.As(err, &dae))
	s.Equal(SourceFundTransfers, dae.Source)
	s.Empty(snap.FeeBreakdown)
}

func (s *FeeAggregatorSuite) TestFailureCancelsSiblings() {
	src := &blockingSource{failFast: true}
	agg := NewFeeAggregator(src, core.DefaultStatusPolicy(), nil, log.Discard())

	_, err := agg.ComputeSnapshot(context.Background(), core.ScopeKey{EventID: 1, InstitutionID: 1})
	s.Require().Error(err)
	s.ErrorIs(err, errUnavailable)
	s.Equal(int32(3), src.cancelled.Load())
}

func (s *FeeAggregatorSuite) TestParentDeadlineCancelsAll() {
	src := &blockingSource{}
	agg := NewFeeAggregator(src, core.DefaultStatusPolicy(), nil, log.Discard())

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	_, err := agg.ComputeSnapshot(ctx, core.ScopeKey{EventID: 1, InstitutionID: 1})
	s.Require().Error(err)
	s.True(core.IsDataAccess(err))
	s.ErrorIs(err, context.DeadlineExceeded)
	s.Equal(int32(4), src.cancelled.Load())
}

func (s *FeeAggregatorSuite) TestInvalidKey() {
	_, err := s.aggregator.ComputeSnapshot(context.Background(), core.ScopeKey{EventID: 0, InstitutionID: 1})
	s.ErrorIs(err, core.ErrOutOfScope)
}

func (s *FeeAggregatorSuite) TestMetricsObserved() {
	s.compute(fixtures.Event, fixtures.North)

	s.Equal(4, testutil.CollectAndCount(s.metrics.AggregationLatency))
	s.Equal(1, testutil.CollectAndCount(s.metrics.SnapshotLatency))
}

func (s *FeeAggregatorSuite) TestCustomPolicy() {
	policy := core.NewStatusPolicy("strict", map[core.RecordKind][]core.Status{
		core.KindParticipant:             {core.StatusApproved},
		core.KindTeamEntry:               {core.StatusApproved},
		core.KindInstitutionRegistration: {core.StatusApproved},
		core.KindFundPending:             {core.StatusPending},
		core.KindFundApproved:            {core.StatusApproved},
	})
	agg := NewFeeAggregator(s.store, policy, nil, log.Discard())

	snap, err := agg.ComputeSnapshot(context.Background(), core.ScopeKey{EventID: fixtures.Event, InstitutionID: fixtures.River})
	s.Require().NoError(err)
	s.Equal("strict", snap.PolicyVersion)
	s.Equal(int64(1), snap.ParticipantCount)
	s.Zero(snap.TeamEntryCount)
	s.Zero(snap.InstitutionEventCount)
	s.Equal(core.Cents(10000), snap.TotalFeeDue)
	s.True(snap.DuesCleared)
}
