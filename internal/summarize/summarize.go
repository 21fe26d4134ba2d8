// Package summarize provides the downstream text-summarization service used
// by the processing worker, backed by the Google Gemini API.
package summarize

import (
	"context"
)

// Summarizer generates a summary for OCR-extracted text.
//
// Contract with the worker's error policy: a non-nil error tagged transient
// (errs.IsTransient) means the call should be retried via broker redelivery;
// any other non-nil error is fatal; an empty summary with a nil error is a
// soft failure that is reported downstream but never retried.
type Summarizer interface {
	Summarize(ctx context.Context, text string) (string, error)
}

// Func adapts a plain function to the Summarizer interface.
type Func func(ctx context.Context, text string) (string, error)

func (f Func) Summarize(ctx context.Context, text string) (string, error) {
	return f(ctx, text)
}
