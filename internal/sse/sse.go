// Package sse turns a broadcast hub into a Server-Sent Events endpoint. Each
// connection gets its own hub subscription; hub shutdown or client disconnect
// end the stream cleanly, never as an HTTP error.
package sse

import (
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/drblury/paperflow/internal/hub"
	"github.com/drblury/paperflow/internal/ids"
	"github.com/drblury/paperflow/internal/jsoncodec"
	"github.com/drblury/paperflow/internal/logging"
)

// Default endpoint patterns for the pipeline's event streams.
const (
	OcrEventStreamPath   = "/api/v1/ocr-results"
	GenAIEventStreamPath = "/api/v1/events/genai"
)

// Option customises a stream handler.
type Option func(*options)

type options struct {
	logger    logging.ServiceLogger
	heartbeat time.Duration
}

// WithLogger sets the handler logger.
func WithLogger(log logging.ServiceLogger) Option {
	return func(o *options) { o.logger = log }
}

// WithHeartbeat emits an SSE comment every interval so proxies do not drop
// idle connections. Zero disables the heartbeat.
func WithHeartbeat(interval time.Duration) Option {
	return func(o *options) { o.heartbeat = interval }
}

// Handler streams every hub item as one SSE frame, with the event type
// derived per item by eventType. The item itself is the data payload.
func Handler[T any](stream *hub.Hub[T], eventType func(T) string, opts ...Option) http.Handler {
	return HandlerWithPayload(stream, func(item T) any { return item }, eventType, opts...)
}

// HandlerWithPayload is Handler with an explicit projection of the hub item
// into the JSON payload sent to the client.
func HandlerWithPayload[T any](stream *hub.Hub[T], payload func(T) any, eventType func(T) string, opts ...Option) http.Handler {
	o := options{logger: logging.NopLogger()}
	for _, opt := range opts {
		opt(&o)
	}

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		flusher, ok := w.(http.Flusher)
		if !ok {
			http.Error(w, "streaming unsupported", http.StatusInternalServerError)
			return
		}

		id := ids.CreateSubscriberID("sse")
		reader, err := stream.Subscribe(id)

		w.Header().Set("Content-Type", "text/event-stream")
		w.Header().Set("Cache-Control", "no-cache")
		w.Header().Set("Connection", "keep-alive")
		w.Header().Set("X-Accel-Buffering", "no")
		w.WriteHeader(http.StatusOK)
		flusher.Flush()

		if err != nil {
			// Hub already shut down: the client sees an immediate, clean
			// end-of-stream.
			return
		}
		defer stream.Unsubscribe(id)

		log := o.logger.With(logging.LogFields{"subscriber_id": id})
		log.Debug("stream subscriber connected", nil)
		defer log.Debug("stream subscriber disconnected", nil)

		var heartbeat <-chan time.Time
		if o.heartbeat > 0 {
			ticker := time.NewTicker(o.heartbeat)
			defer ticker.Stop()
			heartbeat = ticker.C
		}

		ctx := r.Context()
		for {
			select {
			case <-ctx.Done():
				return

			case <-heartbeat:
				if _, err := io.WriteString(w, ": ping\n\n"); err != nil {
					return
				}
				flusher.Flush()

			case item, ok := <-reader:
				if !ok {
					return
				}
				if err := WriteEvent(w, eventType(item), payload(item)); err != nil {
					log.Error("failed to write event frame", err, nil)
					return
				}
				flusher.Flush()
			}
		}
	})
}

// WriteEvent writes one SSE frame: an "event:" line with the type, a "data:"
// line with the JSON payload, then a blank line.
func WriteEvent(w io.Writer, eventType string, payload any) error {
	data, err := jsoncodec.Marshal(payload)
	if err != nil {
		return err
	}
	_, err = fmt.Fprintf(w, "event: %s\ndata: %s\n\n", eventType, data)
	return err
}
