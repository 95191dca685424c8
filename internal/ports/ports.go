package ports

import (
	"context"

	"eventfees/internal/core"
	"eventfees/internal/scope"
)

// Ports for the data-access collaborator.
type (
	// FeeAggregates runs the four independent aggregations behind a snapshot.
	// Empty results are zero values, never errors.
	FeeAggregates interface {
		AggregateParticipantFees(ctx context.Context, key core.ScopeKey, counted []core.Status) (core.ParticipantAggregate, error)
		AggregateTeamEntryFees(ctx context.Context, key core.ScopeKey, counted []core.Status) (core.TeamEntryAggregate, error)
		AggregateInstitutionEventFees(ctx context.Context, key core.ScopeKey, counted []core.Status) (core.InstitutionEventAggregate, error)
		// AggregateFundTransfers computes both buckets in a single pass.
		AggregateFundTransfers(ctx context.Context, key core.ScopeKey, buckets core.FundBuckets) (core.FundTransferAggregate, error)
	}

	// LabelOverrideReader returns event-specific result label overrides.
	LabelOverrideReader interface {
		FetchResultLabelOverrides(ctx context.Context, eventID core.EventID) ([]core.LabelOverride, error)
	}

	// InstitutionDirectory lists institutions registered in events, filtered by
	// a scope predicate. Implementations reject predicate fields they cannot
	// express with core.ErrUnsupportedPredicate.
	InstitutionDirectory interface {
		ListInstitutions(ctx context.Context, p scope.Predicate) ([]core.Institution, error)
	}

	// TransferLedger gives scoped read access to fund transfer records.
	TransferLedger interface {
		ListFundTransfers(ctx context.Context, p scope.Predicate) ([]core.FundTransfer, error)
		// GetFundTransfer returns core.ErrNotFound when no record matches p.
		GetFundTransfer(ctx context.Context, p scope.Predicate) (core.FundTransfer, error)
	}
)
