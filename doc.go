// Package paperflow is a reliability and fan-out layer between RabbitMQ and
// the consumers of a document pipeline. It pairs a per-queue consumption
// engine (prefetch = 1, one tracked delivery handle, explicit Ack/Nack) with
// an in-process broadcast hub that fans broker events out to streaming HTTP
// clients with bounded, drop-oldest buffering per subscriber.
//
// The consumption engine (Consumer) pulls envelopes off a queue, decodes
// them with sonic, and yields typed messages one at a time; the caller
// acknowledges or rejects the current message before reading the next.
// Malformed payloads are rejected back onto the queue inside the engine;
// empty or null payloads are dropped. Cancellation and transport closure
// both end the stream cleanly.
//
// The broadcast hub (Hub) registers any number of subscribers, each with its
// own capacity-100 buffer. Publishing never blocks: a full subscriber loses
// its oldest buffered event to admit the newest, and a slow subscriber never
// slows another. The SSE handlers turn a hub into a Server-Sent Events
// endpoint.
//
// On top of both sit the workers. SummaryWorker consumes GenAI commands,
// summarizes document text through the Gemini API, and publishes result
// events with the full disposition policy: ack on success and soft failure,
// requeue on transient trouble, discard with a failure event otherwise.
// Relay bridges result-event queues into hubs. Service wires everything
// together, from broker connection and topology to hubs and workers, from a
// single Config.
//
// A minimal setup fills Config, calls NewService, mounts the stream handlers
// on an HTTP mux, and calls Run; see the examples directory.
package paperflow
