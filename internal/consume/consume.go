// Package consume implements the reliable consumption engine: a per-consumer
// pipeline that pulls envelopes off one queue, decodes them into typed
// messages, and tracks exactly one outstanding delivery handle so the caller
// can acknowledge or reject the message it is currently processing.
//
// The broker is configured with prefetch = 1 at construction, so it never
// delivers message k+1 before message k has been acked or nacked. That is
// what makes a single tracked handle sufficient: there is no handle-to-message
// lookup, only the one delivery currently awaiting disposition.
package consume

import (
	"context"
	"fmt"
	"sync"

	amqp "github.com/rabbitmq/amqp091-go"

	"github.com/drblury/paperflow/internal/errs"
	"github.com/drblury/paperflow/internal/ids"
	"github.com/drblury/paperflow/internal/jsoncodec"
	"github.com/drblury/paperflow/internal/logging"
)

// Channel is the subset of amqp.Channel the consumer drives.
type Channel interface {
	Qos(prefetchCount, prefetchSize int, global bool) error
	ConsumeWithContext(ctx context.Context, queue, consumer string, autoAck, exclusive, noLocal, noWait bool, args amqp.Table) (<-chan amqp.Delivery, error)
	NotifyClose(receiver chan *amqp.Error) chan *amqp.Error
	Close() error
}

// ChannelOpener opens a dedicated channel for a consumer. *amqp.Connection
// satisfies it.
type ChannelOpener interface {
	Channel() (*amqp.Channel, error)
}

// Option customises a Consumer.
type Option func(*options)

type options struct {
	logger logging.ServiceLogger
}

// WithLogger sets the logger used for decode failures and pump diagnostics.
func WithLogger(log logging.ServiceLogger) Option {
	return func(o *options) { o.logger = log }
}

// pendingDelivery is the tracker state: either no delivery awaits disposition
// (valid false) or exactly one does. It is transitioned only by the engine.
type pendingDelivery struct {
	acker amqp.Acknowledger
	tag   uint64
	valid bool
}

// Consumer pulls typed messages of one kind from a single bound queue.
//
// Usage contract: acknowledge or reject the current message before reading
// the next one from the stream. The engine exposes the delivery handle before
// it yields the message, but it does not enforce the disposition ordering at
// runtime.
type Consumer[T any] struct {
	ch    Channel
	queue string
	log   logging.ServiceLogger

	mu      sync.Mutex
	pending pendingDelivery

	closeOnce sync.Once
	closeErr  error
}

// New opens a dedicated channel on conn, applies prefetch = 1, and returns a
// consumer bound to queue.
func New[T any](conn ChannelOpener, queue string, opts ...Option) (*Consumer[T], error) {
	ch, err := conn.Channel()
	if err != nil {
		return nil, fmt.Errorf("open channel for %s: %w", queue, err)
	}
	return newFromChannel[T](ch, queue, opts...)
}

func newFromChannel[T any](ch Channel, queue string, opts ...Option) (*Consumer[T], error) {
	o := options{logger: logging.NopLogger()}
	for _, opt := range opts {
		opt(&o)
	}

	// Prefetch = 1 must be in place before the first delivery arrives; it is
	// the mechanism behind the single outstanding handle.
	if err := ch.Qos(1, 0, false); err != nil {
		_ = ch.Close()
		return nil, fmt.Errorf("set prefetch on %s: %w", queue, err)
	}

	return &Consumer[T]{
		ch:    ch,
		queue: queue,
		log:   o.logger.With(logging.LogFields{"queue": queue}),
	}, nil
}

// Consume starts a manual-ack subscription and returns a stream of decoded
// messages. The stream closes, without error, when ctx is cancelled or the
// underlying channel shuts down; transport closure outranks the caller's
// cancellation when both fire. Each call starts a fresh subscription.
func (c *Consumer[T]) Consume(ctx context.Context) (<-chan T, error) {
	deliveries, err := c.ch.ConsumeWithContext(ctx, c.queue, ids.CreateULID(), false, false, false, false, nil)
	if err != nil {
		return nil, fmt.Errorf("consume %s: %w", c.queue, err)
	}

	done := effectiveDone(ctx, c.ch.NotifyClose(make(chan *amqp.Error, 1)))

	out := make(chan T)
	go c.pump(deliveries, done, out)
	return out, nil
}

// pump decodes deliveries and forwards them one at a time. The delivery
// handle is tracked before the message is handed over, so by the time the
// caller holds message k its handle is already available for Ack/Nack.
func (c *Consumer[T]) pump(deliveries <-chan amqp.Delivery, done <-chan struct{}, out chan<- T) {
	defer close(out)

	for {
		select {
		case <-done:
			return
		case d, ok := <-deliveries:
			if !ok {
				return
			}
			msg, ok := c.decode(d)
			if !ok {
				continue
			}
			c.track(d)
			select {
			case out <- msg:
			case <-done:
				return
			}
		}
	}
}

// decode turns a raw envelope into a typed message. Empty and null payloads
// are a well-formed "no message" signal and are dropped without touching the
// delivery handle. Malformed payloads are rejected back onto the queue.
func (c *Consumer[T]) decode(d amqp.Delivery) (T, bool) {
	var msg T

	if jsoncodec.IsEmpty(d.Body) {
		c.log.Debug("dropping empty payload", nil)
		return msg, false
	}

	if err := jsoncodec.Unmarshal(d.Body, &msg); err != nil {
		decodeErr := &errs.DecodeError{Queue: c.queue, Err: err}
		c.log.Warn("rejecting undecodable payload", logging.LogFields{"error": decodeErr.Error()})
		if nackErr := d.Nack(false, true); nackErr != nil {
			c.log.Error("requeue of undecodable payload failed", nackErr, nil)
		}
		return msg, false
	}

	return msg, true
}

func (c *Consumer[T]) track(d amqp.Delivery) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.pending = pendingDelivery{acker: d.Acknowledger, tag: d.DeliveryTag, valid: true}
}

// Ack acknowledges the currently tracked delivery. A no-op when nothing is
// pending, so double-acking is harmless. The tracker is cleared only after
// the broker accepted the ack.
func (c *Consumer[T]) Ack() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.pending.valid {
		return nil
	}
	if err := c.pending.acker.Ack(c.pending.tag, false); err != nil {
		return fmt.Errorf("ack delivery %d: %w", c.pending.tag, err)
	}
	c.pending = pendingDelivery{}
	return nil
}

// Nack rejects the currently tracked delivery, optionally requeueing it.
// Same idempotence and clearing behaviour as Ack.
func (c *Consumer[T]) Nack(requeue bool) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.pending.valid {
		return nil
	}
	if err := c.pending.acker.Nack(c.pending.tag, false, requeue); err != nil {
		return fmt.Errorf("nack delivery %d: %w", c.pending.tag, err)
	}
	c.pending = pendingDelivery{}
	return nil
}

// Close releases the underlying channel. Safe to call multiple times.
func (c *Consumer[T]) Close() error {
	c.closeOnce.Do(func() {
		c.closeErr = c.ch.Close()
	})
	return c.closeErr
}

// effectiveDone merges the caller's cancellation and the transport's close
// notification into a single signal, computed once per Consume call instead
// of coalescing the two sources at every suspension point.
func effectiveDone(ctx context.Context, closed <-chan *amqp.Error) <-chan struct{} {
	done := make(chan struct{})
	go func() {
		defer close(done)
		select {
		case <-ctx.Done():
		case <-closed:
		}
	}()
	return done
}
