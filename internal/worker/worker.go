// Package worker contains the processing loops that sit on top of the
// consumption engine: the summary worker that turns GenAI commands into
// result events, and the relay that bridges broker events into a broadcast
// hub.
package worker

import (
	"context"
	"errors"
)

// Consumer is the view of the consumption engine the workers drive: a typed
// message stream plus disposition of the one message currently in flight.
type Consumer[T any] interface {
	Consume(ctx context.Context) (<-chan T, error)
	Ack() error
	Nack(requeue bool) error
	Close() error
}

// Publisher emits result events back onto the broker.
type Publisher interface {
	Publish(ctx context.Context, routingKey string, msg any) error
}

// isCancellation reports whether err is the caller's cancellation surfacing
// through the transform. Cancellation is never classified as transient or
// fatal; it unwinds the loop with the in-flight message left undisposed so
// the broker redelivers it.
func isCancellation(ctx context.Context, err error) bool {
	if err == nil || ctx.Err() == nil {
		return false
	}
	return errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)
}
