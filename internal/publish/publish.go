// Package publish sends typed messages to the pipeline's topic exchange.
package publish

import (
	"context"
	"fmt"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/drblury/paperflow/internal/ids"
	"github.com/drblury/paperflow/internal/jsoncodec"
	"github.com/drblury/paperflow/internal/schema"
)

// Channel is the subset of amqp.Channel used per publish.
type Channel interface {
	PublishWithContext(ctx context.Context, exchange, key string, mandatory, immediate bool, msg amqp.Publishing) error
	Close() error
}

// ChannelOpener opens a short-lived channel for one publish. *amqp.Connection
// satisfies it.
type ChannelOpener interface {
	Channel() (*amqp.Channel, error)
}

// Publisher serializes messages to JSON and hands them to the broker with a
// routing key. It is stateless across calls: every publish acquires a fresh
// channel and releases it whether or not the send succeeded.
type Publisher struct {
	open   func() (Channel, error)
	tracer trace.Tracer
}

// New returns a Publisher that opens channels from conn.
func New(conn ChannelOpener) *Publisher {
	return newWithOpener(func() (Channel, error) { return conn.Channel() })
}

func newWithOpener(open func() (Channel, error)) *Publisher {
	return &Publisher{
		open:   open,
		tracer: otel.Tracer("paperflow/publish"),
	}
}

// Publish marshals msg and sends it to the topic exchange under routingKey.
// Broker failures propagate to the caller unchanged; retry policy, if any,
// belongs to the caller.
func (p *Publisher) Publish(ctx context.Context, routingKey string, msg any) error {
	ctx, span := p.tracer.Start(ctx, "PublishMessage")
	defer span.End()
	span.SetAttributes(
		attribute.String("messaging.destination", schema.Exchange),
		attribute.String("messaging.routing_key", routingKey),
	)

	body, err := jsoncodec.Marshal(msg)
	if err != nil {
		return fmt.Errorf("marshal message for %s: %w", routingKey, err)
	}

	ch, err := p.open()
	if err != nil {
		return fmt.Errorf("open publish channel: %w", err)
	}
	defer ch.Close()

	return ch.PublishWithContext(ctx, schema.Exchange, routingKey, false, false, amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		MessageId:    ids.CreateULID(),
		Timestamp:    time.Now().UTC(),
		Body:         body,
	})
}
