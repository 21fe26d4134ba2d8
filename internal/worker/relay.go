package worker

import (
	"context"

	"github.com/drblury/paperflow/internal/hub"
	"github.com/drblury/paperflow/internal/logging"
)

// Relay bridges broker-originated events into a broadcast hub so streaming
// HTTP clients receive a live, best-effort copy. Events are acknowledged
// after hand-off; a disposed hub swallows the publish and the event is still
// consumed.
type Relay[T any] struct {
	consumer Consumer[T]
	hub      *hub.Hub[T]
	log      logging.ServiceLogger
}

// NewRelay wires a relay from an event consumer to its hub. logger may be
// nil.
func NewRelay[T any](consumer Consumer[T], h *hub.Hub[T], logger logging.ServiceLogger) *Relay[T] {
	if logger == nil {
		logger = logging.NopLogger()
	}
	return &Relay[T]{
		consumer: consumer,
		hub:      h,
		log:      logger.With(logging.LogFields{"worker": "relay"}),
	}
}

// Run forwards events until ctx is cancelled or the consume stream ends.
func (r *Relay[T]) Run(ctx context.Context) error {
	r.log.Info("relay started", nil)
	defer r.log.Info("relay stopped", nil)

	events, err := r.consumer.Consume(ctx)
	if err != nil {
		return err
	}

	for event := range events {
		r.hub.Publish(event)
		if ackErr := r.consumer.Ack(); ackErr != nil {
			r.log.Error("ack failed", ackErr, nil)
		}
	}
	return ctx.Err()
}
