package paperflow

import (
	"net/http"

	configpkg "github.com/drblury/paperflow/internal/config"
	consumepkg "github.com/drblury/paperflow/internal/consume"
	errspkg "github.com/drblury/paperflow/internal/errs"
	hubpkg "github.com/drblury/paperflow/internal/hub"
	idspkg "github.com/drblury/paperflow/internal/ids"
	jsoncodec "github.com/drblury/paperflow/internal/jsoncodec"
	loggingpkg "github.com/drblury/paperflow/internal/logging"
	messagespkg "github.com/drblury/paperflow/internal/messages"
	publishpkg "github.com/drblury/paperflow/internal/publish"
	schemapkg "github.com/drblury/paperflow/internal/schema"
	servicepkg "github.com/drblury/paperflow/internal/service"
	ssepkg "github.com/drblury/paperflow/internal/sse"
	summarizepkg "github.com/drblury/paperflow/internal/summarize"
	workerpkg "github.com/drblury/paperflow/internal/worker"
)

type (
	Config              = configpkg.Config
	Service             = servicepkg.Service
	ServiceDependencies = servicepkg.Dependencies

	Consumer[T any] = consumepkg.Consumer[T]
	ConsumerOption  = consumepkg.Option
	Publisher       = publishpkg.Publisher

	Hub[T any] = hubpkg.Hub[T]
	HubOption  = hubpkg.Option

	SummaryWorker       = workerpkg.SummaryWorker
	SummaryWorkerOption = workerpkg.SummaryWorkerOption
	WorkerMetrics       = workerpkg.Metrics
	Relay[T any]        = workerpkg.Relay[T]

	Summarizer     = summarizepkg.Summarizer
	SummarizerFunc = summarizepkg.Func
	Gemini         = summarizepkg.Gemini
	GeminiOptions  = summarizepkg.GeminiOptions

	StreamOption = ssepkg.Option

	LogFields     = loggingpkg.LogFields
	ServiceLogger = loggingpkg.ServiceLogger

	TransientError        = errspkg.TransientError
	DecodeError           = errspkg.DecodeError
	ConfigValidationError = errspkg.ConfigValidationError

	// Pipeline message contracts
	OcrCommand   = messagespkg.OcrCommand
	OcrEvent     = messagespkg.OcrEvent
	GenAICommand = messagespkg.GenAICommand
	GenAIEvent   = messagespkg.GenAIEvent
)

var (
	NewService       = servicepkg.New
	NewPublisher     = publishpkg.New
	NewSummaryWorker = workerpkg.NewSummaryWorker
	NewWorkerMetrics = workerpkg.NewMetrics
	NewGemini        = summarizepkg.NewGemini

	DeclareTopology = schemapkg.Declare

	NewOcrStreamHandler   = ssepkg.OcrStreamHandler
	NewGenAIStreamHandler = ssepkg.GenAIStreamHandler
	WriteEvent            = ssepkg.WriteEvent
	WithStreamLogger      = ssepkg.WithLogger
	WithStreamHeartbeat   = ssepkg.WithHeartbeat

	WithConsumerLogger = consumepkg.WithLogger

	WithHubName       = hubpkg.WithName
	WithHubCapacity   = hubpkg.WithCapacity
	WithHubRegisterer = hubpkg.WithRegisterer

	WithWorkerLogger  = workerpkg.WithLogger
	WithWorkerMetrics = workerpkg.WithMetrics

	NewGenAISuccess = messagespkg.NewGenAISuccess
	NewGenAIFailure = messagespkg.NewGenAIFailure

	Transient   = errspkg.Transient
	IsTransient = errspkg.IsTransient

	ErrHubClosed      = errspkg.ErrHubClosed
	ErrConsumerClosed = errspkg.ErrConsumerClosed

	Marshal   = jsoncodec.Marshal
	Unmarshal = jsoncodec.Unmarshal
	Encode    = jsoncodec.Encode
	Decode    = jsoncodec.Decode

	NewSlogServiceLogger = loggingpkg.NewSlogServiceLogger
	NopLogger            = loggingpkg.NopLogger

	CreateULID         = idspkg.CreateULID
	CreateSubscriberID = idspkg.CreateSubscriberID
)

// Topology names for the document pipeline.
const (
	Exchange = schemapkg.Exchange

	OcrCommandQueue   = schemapkg.OcrCommandQueue
	OcrEventQueue     = schemapkg.OcrEventQueue
	GenAICommandQueue = schemapkg.GenAICommandQueue
	GenAIEventQueue   = schemapkg.GenAIEventQueue

	OcrCommandRouting   = schemapkg.OcrCommandRouting
	OcrEventRouting     = schemapkg.OcrEventRouting
	GenAICommandRouting = schemapkg.GenAICommandRouting
	GenAIEventRouting   = schemapkg.GenAIEventRouting
)

// Event status values carried by OcrEvent.
const (
	StatusCompleted = messagespkg.StatusCompleted
	StatusFailed    = messagespkg.StatusFailed
)

// Default paths for the SSE endpoints and the default per-subscriber buffer.
const (
	OcrEventStreamPath   = ssepkg.OcrEventStreamPath
	GenAIEventStreamPath = ssepkg.GenAIEventStreamPath

	DefaultHubCapacity = hubpkg.DefaultCapacity
)

func NewConsumer[T any](conn consumepkg.ChannelOpener, queue string, opts ...ConsumerOption) (*Consumer[T], error) {
	return consumepkg.New[T](conn, queue, opts...)
}

func NewHub[T any](opts ...HubOption) *Hub[T] {
	return hubpkg.New[T](opts...)
}

func NewRelay[T any](consumer workerpkg.Consumer[T], h *Hub[T], logger ServiceLogger) *Relay[T] {
	return workerpkg.NewRelay(consumer, h, logger)
}

// StreamHandler exposes a hub over Server-Sent Events; eventType names each
// item's SSE event. See OcrEventType and GenAIEventType for the built-in
// classifiers.
func StreamHandler[T any](stream *Hub[T], eventType func(T) string, opts ...StreamOption) http.Handler {
	return ssepkg.Handler(stream, eventType, opts...)
}

func OcrEventType(e OcrEvent) string { return ssepkg.OcrEventType(e) }

func GenAIEventType(e GenAIEvent) string { return ssepkg.GenAIEventType(e) }
