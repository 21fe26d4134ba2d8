package sse

import (
	"net/http"

	"github.com/drblury/paperflow/internal/hub"
	"github.com/drblury/paperflow/internal/messages"
)

// OcrEventType classifies an OCR event for SSE clients.
func OcrEventType(e messages.OcrEvent) string {
	if e.Completed() {
		return "ocr-completed"
	}
	return "ocr-failed"
}

// GenAIEventType classifies a GenAI event for SSE clients.
func GenAIEventType(e messages.GenAIEvent) string {
	if e.Succeeded() {
		return "genai-completed"
	}
	return "genai-failed"
}

// OcrStreamHandler streams OCR result events, typed ocr-completed or
// ocr-failed. Conventionally mounted at OcrEventStreamPath.
func OcrStreamHandler(stream *hub.Hub[messages.OcrEvent], opts ...Option) http.Handler {
	return Handler(stream, OcrEventType, opts...)
}

// GenAIStreamHandler streams summarization result events, typed
// genai-completed or genai-failed. Conventionally mounted at
// GenAIEventStreamPath.
func GenAIStreamHandler(stream *hub.Hub[messages.GenAIEvent], opts ...Option) http.Handler {
	return Handler(stream, GenAIEventType, opts...)
}
