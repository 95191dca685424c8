package services

import (
	"context"
	"errors"
	"sync/atomic"

	"eventfees/internal/core"
	"eventfees/internal/memory"
	"eventfees/internal/scope"
)

var errUnavailable = errors.New("connection refused")

// failingSource delegates to a memory store except for the sources listed in
// fail, which return errUnavailable.
type failingSource struct {
	*memory.Store
	fail map[string]bool
}

func (f *failingSource) AggregateParticipantFees(ctx context.Context, key core.ScopeKey, counted []core.Status) (core.ParticipantAggregate, error) {
	if f.fail[SourceParticipants] {
		return core.ParticipantAggregate{}, errUnavailable
	}
	return f.Store.AggregateParticipantFees(ctx, key, counted)
}

func (f *failingSource) AggregateFundTransfers(ctx context.Context, key core.ScopeKey, buckets core.FundBuckets) (core.FundTransferAggregate, error) {
	if f.fail[SourceFundTransfers] {
		return core.FundTransferAggregate{}, errUnavailable
	}
	return f.Store.AggregateFundTransfers(ctx, key, buckets)
}

func (f *failingSource) FetchResultLabelOverrides(ctx context.Context, eventID core.EventID) ([]core.LabelOverride, error) {
	if f.fail["labels"] {
		return nil, errUnavailable
	}
	return f.Store.FetchResultLabelOverrides(ctx, eventID)
}

func (f *failingSource) ListInstitutions(ctx context.Context, p scope.Predicate) ([]core.Institution, error) {
	if f.fail["institutions"] {
		return nil, errUnavailable
	}
	return f.Store.ListInstitutions(ctx, p)
}

// blockingSource blocks every aggregation until its context ends, except
// fund transfers when failFast is set.
type blockingSource struct {
	failFast  bool
	cancelled atomic.Int32
}

func (b *blockingSource) wait(ctx context.Context) error {
	<-ctx.Done()
	b.cancelled.Add(1)
	return ctx.Err()
}

func (b *blockingSource) AggregateParticipantFees(ctx context.Context, _ core.ScopeKey, _ []core.Status) (core.ParticipantAggregate, error) {
	return core.ParticipantAggregate{}, b.wait(ctx)
}

func (b *blockingSource) AggregateTeamEntryFees(ctx context.Context, _ core.ScopeKey, _ []core.Status) (core.TeamEntryAggregate, error) {
	return core.TeamEntryAggregate{}, b.wait(ctx)
}

func (b *blockingSource) AggregateInstitutionEventFees(ctx context.Context, _ core.ScopeKey, _ []core.Status) (core.InstitutionEventAggregate, error) {
	return core.InstitutionEventAggregate{}, b.wait(ctx)
}

func (b *blockingSource) AggregateFundTransfers(ctx context.Context, _ core.ScopeKey, _ core.FundBuckets) (core.FundTransferAggregate, error) {
	if b.failFast {
		return core.FundTransferAggregate{}, errUnavailable
	}
	return core.FundTransferAggregate{}, b.wait(ctx)
}
