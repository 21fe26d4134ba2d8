package worker

import (
	"context"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/drblury/paperflow/internal/errs"
	"github.com/drblury/paperflow/internal/logging"
	"github.com/drblury/paperflow/internal/messages"
	"github.com/drblury/paperflow/internal/schema"
	"github.com/drblury/paperflow/internal/summarize"
)

// SummaryWorker consumes GenAI commands, summarizes the document text, and
// publishes a result event per command.
//
// Disposition policy per command:
//   - blank text: ack, no downstream work
//   - usable summary: publish success event, ack
//   - empty summary with nil error (soft failure): publish failure event, ack
//   - transient error: nack with requeue, no event
//   - cancellation: propagate with no disposition
//   - anything else: publish failure event best-effort, nack without requeue
type SummaryWorker struct {
	consumer   Consumer[messages.GenAICommand]
	publisher  Publisher
	summarizer summarize.Summarizer
	log        logging.ServiceLogger
	tracer     trace.Tracer
	metrics    *Metrics
}

// SummaryWorkerOption customises a SummaryWorker.
type SummaryWorkerOption func(*SummaryWorker)

// WithLogger sets the worker logger.
func WithLogger(log logging.ServiceLogger) SummaryWorkerOption {
	return func(w *SummaryWorker) { w.log = log }
}

// WithMetrics replaces the default unregistered outcome counters.
func WithMetrics(m *Metrics) SummaryWorkerOption {
	return func(w *SummaryWorker) { w.metrics = m }
}

// NewSummaryWorker wires a summary worker from its collaborators.
func NewSummaryWorker(consumer Consumer[messages.GenAICommand], publisher Publisher, summarizer summarize.Summarizer, opts ...SummaryWorkerOption) *SummaryWorker {
	w := &SummaryWorker{
		consumer:   consumer,
		publisher:  publisher,
		summarizer: summarizer,
		log:        logging.NopLogger(),
		tracer:     otel.Tracer("paperflow/worker"),
		metrics:    NewMetrics(nil),
	}
	for _, opt := range opts {
		opt(w)
	}
	w.log = w.log.With(logging.LogFields{"worker": "summary"})
	return w
}

// Run processes commands until ctx is cancelled or the consume stream ends.
// A clean stream end returns nil; cancellation surfaces as ctx.Err().
func (w *SummaryWorker) Run(ctx context.Context) error {
	w.log.Info("summary worker started", nil)
	defer w.log.Info("summary worker stopped", nil)

	commands, err := w.consumer.Consume(ctx)
	if err != nil {
		return err
	}

	for cmd := range commands {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := w.handle(ctx, cmd); err != nil {
			// Only cancellation escapes handle; the in-flight message stays
			// undisposed so the broker redelivers it.
			return err
		}
	}
	return ctx.Err()
}

func (w *SummaryWorker) handle(ctx context.Context, cmd messages.GenAICommand) error {
	ctx, span := w.tracer.Start(ctx, "HandleGenAICommand")
	defer span.End()
	span.SetAttributes(attribute.String("document.id", cmd.DocumentID))

	log := w.log.With(logging.LogFields{"document_id": cmd.DocumentID})

	if !cmd.HasText() {
		log.Warn("received command with empty text", nil)
		w.ack(log)
		w.metrics.outcomes.WithLabelValues(outcomeSkipped).Inc()
		return nil
	}

	log.Info("generating summary", nil)

	summary, err := w.summarizer.Summarize(ctx, cmd.Text)
	switch {
	case isCancellation(ctx, err):
		return err

	case errs.IsTransient(err):
		log.Warn("transient failure, requeueing", logging.LogFields{"error": err.Error()})
		if nackErr := w.consumer.Nack(true); nackErr != nil {
			log.Error("requeue failed", nackErr, nil)
		}
		w.metrics.outcomes.WithLabelValues(outcomeRequeued).Inc()
		return nil

	case err != nil:
		log.Error("fatal failure, discarding", err, nil)
		w.discard(ctx, cmd, err.Error(), log)
		return nil
	}

	event := messages.NewGenAISuccess(cmd.DocumentID, summary, time.Now().UTC())
	outcome := outcomeProcessed
	if summary == "" {
		event = messages.NewGenAIFailure(cmd.DocumentID, "failed to generate summary", time.Now().UTC())
		outcome = outcomeSoftFailure
	}

	if pubErr := w.publisher.Publish(ctx, schema.GenAIEventRouting, event); pubErr != nil {
		log.Error("failed to publish result event, discarding", pubErr, nil)
		w.discard(ctx, cmd, pubErr.Error(), log)
		return nil
	}

	w.ack(log)
	log.Info("processed document", logging.LogFields{"has_summary": summary != ""})
	w.metrics.outcomes.WithLabelValues(outcome).Inc()
	return nil
}

// discard publishes a best-effort failure event and rejects the message
// without requeue. Failures of the secondary publish are logged and never
// prevent the disposition.
func (w *SummaryWorker) discard(ctx context.Context, cmd messages.GenAICommand, reason string, log logging.ServiceLogger) {
	failure := messages.NewGenAIFailure(cmd.DocumentID, reason, time.Now().UTC())
	if pubErr := w.publisher.Publish(ctx, schema.GenAIEventRouting, failure); pubErr != nil {
		log.Error("failed to publish failure event", pubErr, nil)
	}
	if nackErr := w.consumer.Nack(false); nackErr != nil {
		log.Error("discard failed", nackErr, nil)
	}
	w.metrics.outcomes.WithLabelValues(outcomeDiscarded).Inc()
}

func (w *SummaryWorker) ack(log logging.ServiceLogger) {
	if err := w.consumer.Ack(); err != nil {
		log.Error("ack failed", err, nil)
	}
}
