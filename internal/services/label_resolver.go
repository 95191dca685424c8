package services

import (
	"context"

	"eventfees/internal/core"
	"eventfees/internal/log"
	"eventfees/internal/metrics"
	"eventfees/internal/ports"
)

// LabelResolver merges event-specific result label overrides into the
// default vocabulary.
type LabelResolver struct {
	source   ports.LabelOverrideReader
	defaults core.ResultLabels
	metrics  *metrics.Metrics
	logger   *log.Logger
}

func NewLabelResolver(source ports.LabelOverrideReader, m *metrics.Metrics, logger *log.Logger) *LabelResolver {
	return &LabelResolver{
		source:   source,
		defaults: core.DefaultResultLabels(),
		metrics:  m,
		logger:   logger.WithComponent(log.ComponentLabels),
	}
}

// Resolve never fails. A failed override fetch is logged and counted, and
// the defaults are returned unchanged.
func (r *LabelResolver) Resolve(ctx context.Context, eventID core.EventID) core.ResultLabels {
	overrides, err := r.source.FetchResultLabelOverrides(ctx, eventID)
	if err != nil {
		r.metrics.IncrementLabelFallback()
		r.logger.WarnContext(ctx, "Label override fetch failed, using defaults",
			log.FieldEventID, int64(eventID),
			log.FieldError, err.Error())
		return r.defaults
	}
	return core.MergeLabelOverrides(r.defaults, overrides)
}
