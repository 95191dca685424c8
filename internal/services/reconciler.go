package services

import (
	"cmp"
	"context"
	"errors"
	"slices"
	"time"

	"golang.org/x/sync/errgroup"

	"eventfees/internal/core"
	"eventfees/internal/log"
	"eventfees/internal/metrics"
	"eventfees/internal/ports"
	"eventfees/internal/scope"
)

const defaultReportConcurrency = 4

// ReconcilerConfig bounds the work a single request may start.
type ReconcilerConfig struct {
	// QueryTimeout bounds one snapshot computation. Zero means no bound
	// beyond the caller's context.
	QueryTimeout time.Duration
	// ReportConcurrency caps parallel snapshots in an event report.
	ReportConcurrency int
}

// ReportRow is one institution's line in an event report.
type ReportRow struct {
	Institution core.Institution       `json:"institution"`
	Snapshot    core.FinancialSnapshot `json:"snapshot"`
}

// ReportTotals sums the rows of an event report.
type ReportTotals struct {
	Institutions int        `json:"institutions"`
	Cleared      int        `json:"cleared"`
	TotalFeeDue  core.Money `json:"total_fee_due"`
	FundApproved core.Money `json:"fund_approved"`
	FundPending  core.Money `json:"fund_pending"`
	Balance      core.Money `json:"balance"`
}

type EventReport struct {
	EventID       core.EventID `json:"event_id"`
	PolicyVersion string       `json:"policy_version"`
	Rows          []ReportRow  `json:"rows"`
	Totals        ReportTotals `json:"totals"`
}

// Reconciler is the scoped entry point to the engine: it resolves the caller's
// scope, derives what the scope can reach and delegates the arithmetic to the
// aggregator.
type Reconciler struct {
	aggregator *FeeAggregator
	labels     *LabelResolver
	directory  ports.InstitutionDirectory
	ledger     ports.TransferLedger
	cfg        ReconcilerConfig
	metrics    *metrics.Metrics
	logger     *log.Logger
}

func NewReconciler(
	aggregator *FeeAggregator,
	labels *LabelResolver,
	directory ports.InstitutionDirectory,
	ledger ports.TransferLedger,
	cfg ReconcilerConfig,
	m *metrics.Metrics,
	logger *log.Logger,
) *Reconciler {
	if cfg.ReportConcurrency <= 0 {
		cfg.ReportConcurrency = defaultReportConcurrency
	}
	return &Reconciler{
		aggregator: aggregator,
		labels:     labels,
		directory:  directory,
		ledger:     ledger,
		cfg:        cfg,
		metrics:    m,
		logger:     logger.WithComponent(log.ComponentReconciler),
	}
}

// Authorize resolves the single (event, institution) pair id may reach for
// the requested pair. Institution admins always get their own institution
// and only for events they take part in.
func (r *Reconciler) Authorize(ctx context.Context, id scope.Identity, eventID core.EventID, institutionID core.InstitutionID) (core.ScopeKey, error) {
	key, _, err := r.authorize(ctx, id, eventID, institutionID)
	return key, err
}

func (r *Reconciler) authorize(ctx context.Context, id scope.Identity, eventID core.EventID, institutionID core.InstitutionID) (core.ScopeKey, scope.Scope, error) {
	s, err := scope.For(id)
	if err != nil {
		return core.ScopeKey{}, nil, err
	}

	pred := scope.Translate(s, scope.Filters{EventID: &eventID, InstitutionID: &institutionID})
	key, ok := pred.Key()
	if !ok {
		r.logger.DebugContext(ctx, "Pair outside caller scope",
			log.FieldRole, string(s.Role()),
			log.FieldPredicate, pred.String())
		return core.ScopeKey{}, nil, core.ErrOutOfScope
	}

	if _, institutional := s.(scope.InstitutionAdmin); institutional {
		if err := r.requireParticipation(ctx, pred, key.InstitutionID); err != nil {
			return core.ScopeKey{}, nil, err
		}
	}
	return key, s, nil
}

// Snapshot computes the financial snapshot of one institution in one event as
// seen by id.
func (r *Reconciler) Snapshot(ctx context.Context, id scope.Identity, eventID core.EventID, institutionID core.InstitutionID) (core.FinancialSnapshot, error) {
	key, s, err := r.authorize(ctx, id, eventID, institutionID)
	if err != nil {
		r.metrics.IncrementOutcome(outcomeOf(err))
		return core.FinancialSnapshot{}, err
	}

	snap, err := r.compute(ctx, key)
	if err != nil {
		r.metrics.IncrementOutcome(metrics.OutcomeDataAccess)
		return core.FinancialSnapshot{}, err
	}
	r.metrics.IncrementOutcome(metrics.OutcomeComputed)

	fields := log.NewFields().
		WithOperation(log.OpSnapshot).
		WithScope(int64(key.EventID), int64(key.InstitutionID)).
		WithRole(string(s.Role()))
	fields[log.FieldBalance] = snap.Balance.String()
	fields[log.FieldDuesCleared] = snap.DuesCleared
	r.logger.InfoContext(ctx, "Snapshot computed", fields.ToSlice()...)
	return snap, nil
}

func (r *Reconciler) requireParticipation(ctx context.Context, pred scope.Predicate, institutionID core.InstitutionID) error {
	found, err := r.directory.ListInstitutions(ctx, pred)
	if err != nil {
		return core.NewDataAccessError("institutions", err)
	}
	if !slices.ContainsFunc(found, func(i core.Institution) bool { return i.ID == institutionID }) {
		return core.ErrOutOfScope
	}
	return nil
}

func outcomeOf(err error) string {
	switch {
	case core.IsScopeError(err):
		return metrics.OutcomeScopeError
	case core.IsDataAccess(err):
		return metrics.OutcomeDataAccess
	default:
		return metrics.OutcomeOutOfScope
	}
}

func (r *Reconciler) compute(ctx context.Context, key core.ScopeKey) (core.FinancialSnapshot, error) {
	if r.cfg.QueryTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.cfg.QueryTimeout)
		defer cancel()
	}
	return r.aggregator.ComputeSnapshot(ctx, key)
}

// EventReport computes one snapshot per institution visible to id in the
// event. Any failed snapshot fails the whole report.
func (r *Reconciler) EventReport(ctx context.Context, id scope.Identity, eventID core.EventID) (EventReport, error) {
	s, err := scope.For(id)
	if err != nil {
		return EventReport{}, err
	}
	pred := scope.Translate(s, scope.Filters{EventID: &eventID})
	if !pred.Satisfiable() {
		return EventReport{}, core.ErrOutOfScope
	}

	institutions, err := r.directory.ListInstitutions(ctx, pred)
	if err != nil {
		return EventReport{}, core.NewDataAccessError("institutions", err)
	}

	rows := make([]ReportRow, len(institutions))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(r.cfg.ReportConcurrency)
	for i, inst := range institutions {
		g.Go(func() error {
			snap, err := r.compute(gctx, core.ScopeKey{EventID: eventID, InstitutionID: inst.ID})
			if err != nil {
				return err
			}
			rows[i] = ReportRow{Institution: inst, Snapshot: snap}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		r.logger.ErrorContext(ctx, "Event report failed", log.NewFields().
			WithOperation(log.OpReport).
			WithError(err).
			ToSlice()...)
		return EventReport{}, err
	}

	slices.SortFunc(rows, func(a, b ReportRow) int {
		return cmp.Compare(a.Institution.ID, b.Institution.ID)
	})

	report := EventReport{
		EventID:       eventID,
		PolicyVersion: r.aggregator.Policy().Version(),
		Rows:          rows,
		Totals:        summarize(rows),
	}
	r.logger.InfoContext(ctx, "Event report computed",
		log.FieldEventID, int64(eventID),
		log.FieldRole, string(s.Role()),
		log.FieldCount, len(rows))
	return report, nil
}

func summarize(rows []ReportRow) ReportTotals {
	t := ReportTotals{Institutions: len(rows)}
	for _, row := range rows {
		snap := row.Snapshot
		t.TotalFeeDue = t.TotalFeeDue.Add(snap.TotalFeeDue)
		t.FundApproved = t.FundApproved.Add(snap.FundApproved)
		t.FundPending = t.FundPending.Add(snap.FundPending)
		t.Balance = t.Balance.Add(snap.Balance)
		if snap.DuesCleared {
			t.Cleared++
		}
	}
	return t
}

// ListFundTransfers returns the transfers of one institution in one event
// visible to id.
func (r *Reconciler) ListFundTransfers(ctx context.Context, id scope.Identity, eventID core.EventID, institutionID core.InstitutionID) ([]core.FundTransfer, error) {
	pred, err := scope.Resolve(id, scope.Filters{EventID: &eventID, InstitutionID: &institutionID})
	if err != nil {
		return nil, err
	}
	if !pred.Satisfiable() {
		return nil, core.ErrOutOfScope
	}
	transfers, err := r.ledger.ListFundTransfers(ctx, pred)
	if err != nil {
		return nil, core.NewDataAccessError("fund_transfer_ledger", err)
	}
	return transfers, nil
}

// GetFundTransfer returns a single transfer. A record outside the caller's
// scope is reported as core.ErrNotFound.
func (r *Reconciler) GetFundTransfer(ctx context.Context, id scope.Identity, eventID core.EventID, institutionID core.InstitutionID, transferID core.TransferID) (core.FundTransfer, error) {
	recordID := int64(transferID)
	pred, err := scope.Resolve(id, scope.Filters{EventID: &eventID, InstitutionID: &institutionID, RecordID: &recordID})
	if err != nil {
		return core.FundTransfer{}, err
	}
	if !pred.Satisfiable() {
		return core.FundTransfer{}, core.ErrNotFound
	}
	transfer, err := r.ledger.GetFundTransfer(ctx, pred)
	if errors.Is(err, core.ErrNotFound) {
		return core.FundTransfer{}, core.ErrNotFound
	}
	if err != nil {
		return core.FundTransfer{}, core.NewDataAccessError("fund_transfer_ledger", err)
	}
	return transfer, nil
}

// ResultLabels returns the merged result label vocabulary for an event the
// caller can reach.
func (r *Reconciler) ResultLabels(ctx context.Context, id scope.Identity, eventID core.EventID) (core.ResultLabels, error) {
	pred, err := scope.Resolve(id, scope.Filters{EventID: &eventID})
	if err != nil {
		return core.ResultLabels{}, err
	}
	if !pred.Satisfiable() {
		return core.ResultLabels{}, core.ErrOutOfScope
	}
	return r.labels.Resolve(ctx, eventID), nil
}
