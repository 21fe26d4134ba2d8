// Package service wires the pipeline end to end: broker connection, topology,
// publisher, optional event hubs with their relays, and the summary worker.
package service

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	amqp "github.com/rabbitmq/amqp091-go"

	"github.com/drblury/paperflow/internal/config"
	"github.com/drblury/paperflow/internal/consume"
	"github.com/drblury/paperflow/internal/hub"
	"github.com/drblury/paperflow/internal/logging"
	"github.com/drblury/paperflow/internal/messages"
	"github.com/drblury/paperflow/internal/publish"
	"github.com/drblury/paperflow/internal/schema"
	"github.com/drblury/paperflow/internal/sse"
	"github.com/drblury/paperflow/internal/summarize"
	"github.com/drblury/paperflow/internal/worker"
)

// Dependencies holds optional collaborators. Leave fields nil to use the
// defaults derived from Config.
type Dependencies struct {
	// Summarizer replaces the Gemini client built from Config.
	Summarizer summarize.Summarizer
	// Registerer receives metric collectors when Config.MetricsEnabled is
	// set. Defaults to prometheus.DefaultRegisterer.
	Registerer prometheus.Registerer
	// Dial replaces broker dialing, mainly for tests.
	Dial func(url string) (*amqp.Connection, error)
}

// Service owns the shared broker connection and the pipeline components
// hanging off it.
type Service struct {
	conf *config.Config
	log  logging.ServiceLogger

	conn      *amqp.Connection
	publisher *publish.Publisher

	ocrEvents   *hub.Hub[messages.OcrEvent]
	genaiEvents *hub.Hub[messages.GenAIEvent]

	summarizer summarize.Summarizer
	metrics    *worker.Metrics

	closeOnce sync.Once
	closeErr  error
}

// New validates conf, connects to the broker, declares the topology, and
// builds the configured components. The returned Service is ready for Run.
func New(ctx context.Context, conf *config.Config, log logging.ServiceLogger, deps Dependencies) (*Service, error) {
	if log == nil {
		log = logging.NopLogger()
	}
	if err := conf.Validate(); err != nil {
		return nil, err
	}

	log.Info("starting paperflow service", logging.LogFields{"config": conf.String()})

	dial := deps.Dial
	if dial == nil {
		dial = amqp.Dial
	}
	conn, err := dial(conf.RabbitMQURL)
	if err != nil {
		return nil, fmt.Errorf("dial broker: %w", err)
	}

	ch, err := conn.Channel()
	if err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("open topology channel: %w", err)
	}
	if err := schema.Declare(ctx, ch); err != nil {
		_ = ch.Close()
		_ = conn.Close()
		return nil, err
	}
	_ = ch.Close()

	var registerer prometheus.Registerer
	if conf.MetricsEnabled {
		registerer = deps.Registerer
		if registerer == nil {
			registerer = prometheus.DefaultRegisterer
		}
	}

	s := &Service{
		conf:      conf,
		log:       log,
		conn:      conn,
		publisher: publish.New(conn),
		metrics:   worker.NewMetrics(registerer),
	}

	hubOpts := func(name string) []hub.Option {
		opts := []hub.Option{hub.WithName(name), hub.WithRegisterer(registerer)}
		if conf.StreamCapacity > 0 {
			opts = append(opts, hub.WithCapacity(conf.StreamCapacity))
		}
		return opts
	}
	if conf.IncludeOcrStream {
		s.ocrEvents = hub.New[messages.OcrEvent](hubOpts("ocr_events")...)
	}
	if conf.IncludeGenAIStream {
		s.genaiEvents = hub.New[messages.GenAIEvent](hubOpts("genai_events")...)
	}

	s.summarizer = deps.Summarizer
	if s.summarizer == nil && conf.GeminiAPIKey != "" {
		gemini, err := summarize.NewGemini(summarize.GeminiOptions{
			APIKey:     conf.GeminiAPIKey,
			Model:      conf.GeminiModel,
			Timeout:    conf.GeminiTimeout,
			MaxRetries: conf.GeminiMaxRetries,
		}, log)
		if err != nil {
			_ = conn.Close()
			return nil, err
		}
		s.summarizer = gemini
	}

	return s, nil
}

// Publisher exposes the shared publisher.
func (s *Service) Publisher() *publish.Publisher { return s.publisher }

// OcrEvents returns the OCR event hub, or nil when the stream is disabled.
func (s *Service) OcrEvents() *hub.Hub[messages.OcrEvent] { return s.ocrEvents }

// GenAIEvents returns the GenAI event hub, or nil when the stream is
// disabled.
func (s *Service) GenAIEvents() *hub.Hub[messages.GenAIEvent] { return s.genaiEvents }

// OcrStreamHandler returns the SSE endpoint for OCR events. Panics when the
// OCR stream is disabled.
func (s *Service) OcrStreamHandler(opts ...sse.Option) http.Handler {
	if s.ocrEvents == nil {
		panic("paperflow: OCR stream is not enabled")
	}
	return sse.OcrStreamHandler(s.ocrEvents, opts...)
}

// GenAIStreamHandler returns the SSE endpoint for GenAI events. Panics when
// the GenAI stream is disabled.
func (s *Service) GenAIStreamHandler(opts ...sse.Option) http.Handler {
	if s.genaiEvents == nil {
		panic("paperflow: GenAI stream is not enabled")
	}
	return sse.GenAIStreamHandler(s.genaiEvents, opts...)
}

// PublishOcrCommand publishes an OCR command under its routing key.
func (s *Service) PublishOcrCommand(ctx context.Context, cmd messages.OcrCommand) error {
	return s.publisher.Publish(ctx, schema.OcrCommandRouting, cmd)
}

// PublishOcrEvent publishes an OCR result event under its routing key.
func (s *Service) PublishOcrEvent(ctx context.Context, event messages.OcrEvent) error {
	return s.publisher.Publish(ctx, schema.OcrEventRouting, event)
}

// PublishGenAICommand publishes a summarization command under its routing
// key.
func (s *Service) PublishGenAICommand(ctx context.Context, cmd messages.GenAICommand) error {
	return s.publisher.Publish(ctx, schema.GenAICommandRouting, cmd)
}

// PublishGenAIEvent publishes a summarization result event under its routing
// key.
func (s *Service) PublishGenAIEvent(ctx context.Context, event messages.GenAIEvent) error {
	return s.publisher.Publish(ctx, schema.GenAIEventRouting, event)
}

type runner struct {
	name  string
	run   func(context.Context) error
	close func() error
}

// Run starts the configured workers and relays and blocks until ctx is
// cancelled or a worker fails. On return the hubs are shut down so streaming
// clients observe a clean end-of-stream; the broker connection stays open
// until Close.
func (s *Service) Run(ctx context.Context) error {
	runners, err := s.buildRunners()
	if err != nil {
		return err
	}
	if len(runners) == 0 {
		<-ctx.Done()
		s.shutdownStreams()
		return nil
	}

	errc := make(chan error, len(runners))
	var wg sync.WaitGroup
	for _, r := range runners {
		wg.Add(1)
		go func(r runner) {
			defer wg.Done()
			if err := r.run(ctx); err != nil && !errors.Is(err, context.Canceled) {
				s.log.Error("runner failed", err, logging.LogFields{"runner": r.name})
				errc <- fmt.Errorf("%s: %w", r.name, err)
			}
		}(r)
	}

	wg.Wait()
	s.shutdownStreams()
	for _, r := range runners {
		if closeErr := r.close(); closeErr != nil {
			s.log.Error("closing consumer failed", closeErr, logging.LogFields{"runner": r.name})
		}
	}

	close(errc)
	var failures []error
	for err := range errc {
		failures = append(failures, err)
	}
	return errors.Join(failures...)
}

func (s *Service) buildRunners() ([]runner, error) {
	var runners []runner

	if s.summarizer != nil {
		consumer, err := consume.New[messages.GenAICommand](s.conn, schema.GenAICommandQueue, consume.WithLogger(s.log))
		if err != nil {
			return nil, err
		}
		w := worker.NewSummaryWorker(consumer, s.publisher, s.summarizer,
			worker.WithLogger(s.log), worker.WithMetrics(s.metrics))
		runners = append(runners, runner{name: "summary-worker", run: w.Run, close: consumer.Close})
	}

	if s.ocrEvents != nil {
		consumer, err := consume.New[messages.OcrEvent](s.conn, schema.OcrEventQueue, consume.WithLogger(s.log))
		if err != nil {
			return nil, err
		}
		relay := worker.NewRelay(consumer, s.ocrEvents, s.log)
		runners = append(runners, runner{name: "ocr-event-relay", run: relay.Run, close: consumer.Close})
	}

	if s.genaiEvents != nil {
		consumer, err := consume.New[messages.GenAIEvent](s.conn, schema.GenAIEventQueue, consume.WithLogger(s.log))
		if err != nil {
			return nil, err
		}
		relay := worker.NewRelay(consumer, s.genaiEvents, s.log)
		runners = append(runners, runner{name: "genai-event-relay", run: relay.Run, close: consumer.Close})
	}

	return runners, nil
}

func (s *Service) shutdownStreams() {
	if s.ocrEvents != nil {
		s.ocrEvents.Shutdown()
	}
	if s.genaiEvents != nil {
		s.genaiEvents.Shutdown()
	}
}

// Close shuts the hubs down and closes the broker connection. Safe to call
// multiple times.
func (s *Service) Close() error {
	s.closeOnce.Do(func() {
		s.shutdownStreams()
		s.closeErr = s.conn.Close()
	})
	return s.closeErr
}
