// Package worker generates reports requested over the message queue.
package worker

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/faraway-yachting/Faraway-Yachting.app-sub011/internal/amqp"
	"github.com/faraway-yachting/Faraway-Yachting.app-sub011/internal/core"
	"github.com/faraway-yachting/Faraway-Yachting.app-sub011/internal/fiscal"
	"github.com/faraway-yachting/Faraway-Yachting.app-sub011/internal/log"
	"github.com/faraway-yachting/Faraway-Yachting.app-sub011/internal/report"
)

// Generator builds reports. *report.Engine satisfies it.
type Generator interface {
	GenerateReportAsOf(ctx context.Context, projectID string, fy fiscal.Year, asOf time.Time) (*report.Report, error)
	BaseCurrency() string
	Now() time.Time
}

// Publisher announces results. *amqp.Client satisfies it.
type Publisher interface {
	PublishReportGenerated(ctx context.Context, msg *amqp.ReportGeneratedMessage) error
}

// ReportWorker handles report requests. Requests that can never succeed
// (unknown project, malformed fields) get a result message and are dropped;
// upstream failures are returned so the broker redelivers the request.
type ReportWorker struct {
	engine    Generator
	publisher Publisher
	logger    *log.Logger
}

func NewReportWorker(engine Generator, publisher Publisher, logger *log.Logger) *ReportWorker {
	if logger == nil {
		logger = log.Default(log.ComponentWorker)
	}
	return &ReportWorker{
		engine:    engine,
		publisher: publisher,
		logger:    logger,
	}
}

// HandleReportRequest processes a single report request from AMQP.
func (w *ReportWorker) HandleReportRequest(ctx context.Context, msg *amqp.ReportRequestMessage) error {
	result := &amqp.ReportGeneratedMessage{
		RequestID:    msg.RequestID,
		ProjectID:    msg.ProjectID,
		FiscalYear:   msg.FiscalYear,
		BaseCurrency: w.engine.BaseCurrency(),
	}

	fy, asOf, err := msg.Parse()
	if err != nil {
		result.Status = amqp.StatusInvalid
		result.Error = err.Error()
		return w.finish(ctx, result, err)
	}
	if asOf.IsZero() {
		asOf = w.engine.Now()
	}
	result.AsOf = asOf.Format(time.DateOnly)

	warnings := &report.Collector{}
	r, err := w.engine.GenerateReportAsOf(report.WithSink(ctx, warnings), msg.ProjectID, fy, asOf)
	switch {
	case errors.Is(err, core.ErrProjectNotFound):
		result.Status = amqp.StatusNotFound
		result.Error = err.Error()
		return w.finish(ctx, result, fmt.Errorf("%w: %v", amqp.ErrPermanent, err))
	case err != nil:
		// Redelivery retries the upstream read; no result until it settles.
		w.logger.ErrorContext(ctx, "Report generation failed, requeueing",
			log.FieldRequestID, msg.RequestID,
			log.FieldProjectID, msg.ProjectID,
			log.FieldError, err)
		return err
	}

	totals := r.Totals
	result.Status = amqp.StatusOK
	result.Totals = &totals
	result.Warnings = len(warnings.Diagnostics())
	return w.finish(ctx, result, nil)
}

// finish publishes result and returns cause. A failed publish is returned
// instead so the request is retried.
func (w *ReportWorker) finish(ctx context.Context, result *amqp.ReportGeneratedMessage, cause error) error {
	result.GeneratedAt = time.Now()
	if err := w.publisher.PublishReportGenerated(ctx, result); err != nil {
		return fmt.Errorf("publish report result: %w", err)
	}

	w.logger.InfoContext(ctx, "Report request handled",
		log.FieldRequestID, result.RequestID,
		log.FieldProjectID, result.ProjectID,
		log.FieldFiscalYear, result.FiscalYear,
		"status", result.Status,
		"warnings", result.Warnings)
	return cause
}
