// Package messages defines the typed wire payloads exchanged through the
// broker. Every message is a closed, versioned record: fields added after
// initial release are pointers so payloads from older producers decode to nil
// instead of failing.
package messages

import (
	"strings"
	"time"
)

// OCR status values carried by OcrEvent.
const (
	StatusCompleted = "Completed"
	StatusFailed    = "Failed"
)

// OcrCommand asks the OCR worker to extract text from a stored file.
type OcrCommand struct {
	JobID    string `json:"jobId"`
	FileName string `json:"fileName"`
	FilePath string `json:"filePath"`
	// CreatedAt records when the document was uploaded. Absent in payloads
	// from producers released before the field existed; consumers fall back
	// to time.Now.
	CreatedAt *time.Time `json:"createdAt,omitempty"`
}

// OcrEvent reports the outcome of an OCR command.
type OcrEvent struct {
	JobID       string    `json:"jobId"`
	Status      string    `json:"status"`
	Text        string    `json:"text"`
	ProcessedAt time.Time `json:"processedAt"`
}

// Completed reports whether OCR extraction succeeded.
func (e OcrEvent) Completed() bool {
	return e.Status == StatusCompleted
}

// GenAICommand asks the summarization worker to summarize OCR-extracted text.
type GenAICommand struct {
	DocumentID string `json:"documentId"`
	Text       string `json:"text"`
}

// HasText reports whether the command carries anything worth summarizing.
func (c GenAICommand) HasText() bool {
	return strings.TrimSpace(c.Text) != ""
}

// GenAIEvent reports the outcome of a summarization command. Summary is set
// on success; ErrorMessage is set when summarization failed or produced no
// usable result.
type GenAIEvent struct {
	DocumentID   string    `json:"documentId"`
	Summary      *string   `json:"summary"`
	GeneratedAt  time.Time `json:"generatedAt"`
	ErrorMessage *string   `json:"errorMessage,omitempty"`
}

// Succeeded reports whether the event carries a usable summary.
func (e GenAIEvent) Succeeded() bool {
	return e.Summary != nil && *e.Summary != ""
}

// NewGenAISuccess builds the event published after a successful
// summarization.
func NewGenAISuccess(documentID, summary string, generatedAt time.Time) GenAIEvent {
	return GenAIEvent{
		DocumentID:  documentID,
		Summary:     &summary,
		GeneratedAt: generatedAt,
	}
}

// NewGenAIFailure builds the event published when summarization produced no
// usable result or failed outright.
func NewGenAIFailure(documentID, errorMessage string, generatedAt time.Time) GenAIEvent {
	return GenAIEvent{
		DocumentID:   documentID,
		GeneratedAt:  generatedAt,
		ErrorMessage: &errorMessage,
	}
}
