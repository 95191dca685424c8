// Package worker turns recompute requests into settlement status broadcasts.
package worker

import (
	"context"
	"errors"
	"fmt"

	"eventfees/internal/amqp"
	"eventfees/internal/core"
	"eventfees/internal/log"
	"eventfees/internal/scope"
	"eventfees/internal/services"
)

// Reconciliation is the part of services.Reconciler the worker drives.
type Reconciliation interface {
	Snapshot(ctx context.Context, id scope.Identity, eventID core.EventID, institutionID core.InstitutionID) (core.FinancialSnapshot, error)
	EventReport(ctx context.Context, id scope.Identity, eventID core.EventID) (services.EventReport, error)
}

// SettlementPublisher broadcasts settlement status
type SettlementPublisher interface {
	PublishSettlement(ctx context.Context, msg *amqp.SettlementStatusMessage) error
}

// RecomputeWorker computes snapshots on behalf of the platform and publishes
// the resulting settlement status.
type RecomputeWorker struct {
	reconciler Reconciliation
	publisher  SettlementPublisher
	logger     *log.Logger
}

func NewRecomputeWorker(reconciler Reconciliation, publisher SettlementPublisher, logger *log.Logger) *RecomputeWorker {
	return &RecomputeWorker{
		reconciler: reconciler,
		publisher:  publisher,
		logger:     logger.WithComponent(log.ComponentWorker),
	}
}

// systemIdentity is the caller internal jobs act as.
func systemIdentity() scope.Identity {
	return scope.Identity{Role: scope.System().Role()}
}

// HandleRecompute processes a single recompute request from AMQP. Failures
// that a retry cannot fix are marked permanent so the message is dropped.
func (w *RecomputeWorker) HandleRecompute(ctx context.Context, msg *amqp.RecomputeMessage) error {
	w.logger.InfoContext(ctx, "Processing recompute request",
		log.FieldEventID, msg.EventID,
		log.FieldInstitutionID, msg.InstitutionID,
		log.FieldReason, msg.Reason)

	key := msg.Key()
	snap, err := w.reconciler.Snapshot(ctx, systemIdentity(), key.EventID, key.InstitutionID)
	if err != nil {
		if core.IsDataAccess(err) || errors.Is(err, context.DeadlineExceeded) {
			return fmt.Errorf("compute snapshot: %w", err)
		}
		return amqp.Permanent(fmt.Errorf("compute snapshot: %w", err))
	}

	if err := w.publisher.PublishSettlement(ctx, amqp.NewSettlementStatusMessage(snap)); err != nil {
		return fmt.Errorf("publish settlement: %w", err)
	}
	return nil
}

// SweepEvent rebroadcasts the settlement status of every institution taking
// part in the event. It recovers consumers from missed messages.
func (w *RecomputeWorker) SweepEvent(ctx context.Context, eventID core.EventID) (int, error) {
	report, err := w.reconciler.EventReport(ctx, systemIdentity(), eventID)
	if err != nil {
		return 0, fmt.Errorf("event report: %w", err)
	}

	published := 0
	for _, row := range report.Rows {
		if err := w.publisher.PublishSettlement(ctx, amqp.NewSettlementStatusMessage(row.Snapshot)); err != nil {
			return published, fmt.Errorf("publish settlement for institution %d: %w", row.Institution.ID, err)
		}
		published++
	}

	w.logger.InfoContext(ctx, "Settlement sweep complete",
		log.FieldEventID, int64(eventID),
		log.FieldCount, published)
	return published, nil
}

// Sweep runs SweepEvent for each event, logging failures and continuing.
func (w *RecomputeWorker) Sweep(ctx context.Context, eventIDs []core.EventID) {
	for _, eventID := range eventIDs {
		if ctx.Err() != nil {
			return
		}
		if _, err := w.SweepEvent(ctx, eventID); err != nil {
			w.logger.ErrorContext(ctx, "Settlement sweep failed",
				log.FieldEventID, int64(eventID),
				log.FieldError, err.Error())
		}
	}
}
