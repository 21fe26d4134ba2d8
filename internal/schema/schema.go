// Package schema defines the broker topology shared by every producer and
// consumer in the document pipeline: one topic exchange, four durable queues,
// and their routing keys. Declare provisions the topology idempotently; the
// rest of the library assumes it exists.
package schema

import (
	"context"
	"fmt"

	amqp "github.com/rabbitmq/amqp091-go"
)

// Exchange is the topic exchange all pipeline messages flow through.
const Exchange = "paperless.exchange"

// Queue names.
const (
	OcrCommandQueue   = "OcrCommandQueue"
	OcrEventQueue     = "OcrEventQueue"
	GenAICommandQueue = "GenAICommandQueue"
	GenAIEventQueue   = "GenAIEventQueue"
)

// Routing keys, one per queue, following the "<domain>.<kind>" convention.
const (
	OcrCommandRouting   = "ocr.command"
	OcrEventRouting     = "ocr.event"
	GenAICommandRouting = "genai.command"
	GenAIEventRouting   = "genai.event"
)

// bindings pairs each queue with its routing key.
var bindings = []struct {
	queue      string
	routingKey string
}{
	{OcrCommandQueue, OcrCommandRouting},
	{OcrEventQueue, OcrEventRouting},
	{GenAICommandQueue, GenAICommandRouting},
	{GenAIEventQueue, GenAIEventRouting},
}

// Topology is the subset of amqp.Channel used to declare the schema.
type Topology interface {
	ExchangeDeclare(name, kind string, durable, autoDelete, internal, noWait bool, args amqp.Table) error
	QueueDeclare(name string, durable, autoDelete, exclusive, noWait bool, args amqp.Table) (amqp.Queue, error)
	QueueBind(name, key, exchange string, noWait bool, args amqp.Table) error
}

// Declare provisions the exchange, queues, and bindings. All declarations are
// durable and idempotent, so calling this on every startup is safe.
func Declare(ctx context.Context, ch Topology) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	if err := ch.ExchangeDeclare(Exchange, "topic", true, false, false, false, nil); err != nil {
		return fmt.Errorf("declare exchange %s: %w", Exchange, err)
	}

	for _, b := range bindings {
		if err := ctx.Err(); err != nil {
			return err
		}
		if _, err := ch.QueueDeclare(b.queue, true, false, false, false, nil); err != nil {
			return fmt.Errorf("declare queue %s: %w", b.queue, err)
		}
		if err := ch.QueueBind(b.queue, b.routingKey, Exchange, false, nil); err != nil {
			return fmt.Errorf("bind queue %s to %s: %w", b.queue, b.routingKey, err)
		}
	}

	return nil
}
