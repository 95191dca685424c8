package services

import (
	"context"
	"fmt"
	"time"

	"golang.org/x/sync/errgroup"

	"eventfees/internal/core"
	"eventfees/internal/log"
	"eventfees/internal/metrics"
	"eventfees/internal/ports"
)

// Aggregation sources, used in errors, logs and metric labels.
const (
	SourceParticipants      = "participants"
	SourceTeamEntries       = "team_entries"
	SourceInstitutionEvents = "institution_events"
	SourceFundTransfers     = "fund_transfers"
)

// FeeAggregator runs the four snapshot aggregations for one (event,
// institution) pair and hands the results to the presenter.
type FeeAggregator struct {
	source  ports.FeeAggregates
	policy  core.StatusPolicy
	metrics *metrics.Metrics
	logger  *log.Logger
}

func NewFeeAggregator(source ports.FeeAggregates, policy core.StatusPolicy, m *metrics.Metrics, logger *log.Logger) *FeeAggregator {
	return &FeeAggregator{
		source:  source,
		policy:  policy,
		metrics: m,
		logger:  logger.WithComponent(log.ComponentAggregator),
	}
}

// Policy returns the status policy applied to every aggregation.
func (a *FeeAggregator) Policy() core.StatusPolicy {
	return a.policy
}

// ComputeSnapshot runs the aggregations concurrently and waits for all of
// them. The first failure cancels the others and is returned as a
// *core.DataAccessError; no partial snapshot is ever produced.
func (a *FeeAggregator) ComputeSnapshot(ctx context.Context, key core.ScopeKey) (core.FinancialSnapshot, error) {
	if err := key.Validate(); err != nil {
		return core.FinancialSnapshot{}, fmt.Errorf("%w: %v", core.ErrOutOfScope, err)
	}

	start := time.Now()
	participantStatuses := a.policy.Counted(core.KindParticipant)
	teamStatuses := a.policy.Counted(core.KindTeamEntry)
	registrationStatuses := a.policy.Counted(core.KindInstitutionRegistration)
	buckets := a.policy.FundBuckets()

	raw := core.RawAggregates{Key: key, PolicyVersion: a.policy.Version()}
	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		return a.timed(gctx, key, SourceParticipants, func(ctx context.Context) (err error) {
			raw.Participants, err = a.source.AggregateParticipantFees(ctx, key, participantStatuses)
			return err
		})
	})
	g.Go(func() error {
		return a.timed(gctx, key, SourceTeamEntries, func(ctx context.Context) (err error) {
			raw.TeamEntries, err = a.source.AggregateTeamEntryFees(ctx, key, teamStatuses)
			return err
		})
	})
	g.Go(func() error {
		return a.timed(gctx, key, SourceInstitutionEvents, func(ctx context.Context) (err error) {
			raw.InstitutionEvents, err = a.source.AggregateInstitutionEventFees(ctx, key, registrationStatuses)
			return err
		})
	})
	g.Go(func() error {
		return a.timed(gctx, key, SourceFundTransfers, func(ctx context.Context) (err error) {
			raw.FundTransfers, err = a.source.AggregateFundTransfers(ctx, key, buckets)
			return err
		})
	})

	if err := g.Wait(); err != nil {
		a.logger.ErrorContext(ctx, "Snapshot aggregation failed", log.NewFields().
			WithScope(int64(key.EventID), int64(key.InstitutionID)).
			WithErrorType(log.ErrorTypeDataAccess).
			WithError(err).
			ToSlice()...)
		return core.FinancialSnapshot{}, err
	}

	snap := core.Present(raw)
	a.metrics.ObserveSnapshot(time.Since(start))
	return snap, nil
}

func (a *FeeAggregator) timed(ctx context.Context, key core.ScopeKey, source string, fn func(context.Context) error) error {
	start := time.Now()
	err := fn(ctx)
	elapsed := time.Since(start)
	a.metrics.ObserveAggregation(source, elapsed)
	if err != nil {
		return core.NewDataAccessError(source, err)
	}
	a.logger.DebugContext(ctx, "Aggregation finished",
		log.FieldSource, source,
		log.FieldEventID, int64(key.EventID),
		log.FieldInstitutionID, int64(key.InstitutionID),
		log.FieldDuration, elapsed.Milliseconds())
	return nil
}
