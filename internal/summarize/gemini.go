package summarize

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/sethvargo/go-retry"

	"github.com/drblury/paperflow/internal/errs"
	"github.com/drblury/paperflow/internal/jsoncodec"
	"github.com/drblury/paperflow/internal/logging"
)

// GeminiOptions configures the Gemini client.
type GeminiOptions struct {
	// APIKey authenticates against the generativelanguage API. Required.
	APIKey string
	// Model selects the Gemini model. Defaults to "gemini-1.5-flash".
	Model string
	// BaseURL overrides the API endpoint, mainly for tests.
	BaseURL string
	// Timeout bounds a single HTTP attempt. Defaults to 30s.
	Timeout time.Duration
	// MaxRetries bounds in-process retries of retryable HTTP failures before
	// the error is surfaced as transient. Defaults to 3.
	MaxRetries uint64
	// InitialBackoff is the first retry delay. Defaults to 500ms.
	InitialBackoff time.Duration
}

func (o GeminiOptions) withDefaults() GeminiOptions {
	if o.Model == "" {
		o.Model = "gemini-1.5-flash"
	}
	if o.BaseURL == "" {
		o.BaseURL = "https://generativelanguage.googleapis.com"
	}
	if o.Timeout <= 0 {
		o.Timeout = 30 * time.Second
	}
	if o.MaxRetries == 0 {
		o.MaxRetries = 3
	}
	if o.InitialBackoff <= 0 {
		o.InitialBackoff = 500 * time.Millisecond
	}
	return o
}

// Gemini summarizes documents through the Google Gemini API.
//
// Failure classification: network errors and retryable HTTP statuses that
// survive the in-process retry budget come back tagged transient, so the
// worker requeues the command. Client-side rejections (4xx) and unusable
// response bodies are soft failures: empty summary, nil error.
type Gemini struct {
	opts   GeminiOptions
	client *http.Client
	log    logging.ServiceLogger
}

// NewGemini constructs a Gemini summarizer. logger may be nil.
func NewGemini(opts GeminiOptions, logger logging.ServiceLogger) (*Gemini, error) {
	if opts.APIKey == "" {
		return nil, &errs.ConfigValidationError{Field: "GeminiAPIKey", Reason: "is required"}
	}
	if logger == nil {
		logger = logging.NopLogger()
	}
	opts = opts.withDefaults()
	return &Gemini{
		opts:   opts,
		client: &http.Client{Timeout: opts.Timeout},
		log:    logger.With(logging.LogFields{"component": "gemini", "model": opts.Model}),
	}, nil
}

type geminiRequest struct {
	Contents         []geminiTurn     `json:"contents"`
	GenerationConfig generationConfig `json:"generationConfig"`
}

type geminiTurn struct {
	Parts []geminiPart `json:"parts"`
}

type geminiPart struct {
	Text string `json:"text"`
}

type generationConfig struct {
	Temperature     float64 `json:"temperature"`
	TopK            int     `json:"topK"`
	TopP            float64 `json:"topP"`
	MaxOutputTokens int     `json:"maxOutputTokens"`
}

type geminiResponse struct {
	Candidates []struct {
		Content struct {
			Parts []geminiPart `json:"parts"`
		} `json:"content"`
	} `json:"candidates"`
}

// Summarize generates a structured summary for text. Empty input is a soft
// failure.
func (g *Gemini) Summarize(ctx context.Context, text string) (string, error) {
	if strings.TrimSpace(text) == "" {
		g.log.Warn("empty text supplied to summarizer", nil)
		return "", nil
	}

	body, err := jsoncodec.Marshal(geminiRequest{
		Contents: []geminiTurn{{Parts: []geminiPart{{Text: buildPrompt(text)}}}},
		GenerationConfig: generationConfig{
			Temperature:     0.3,
			TopK:            40,
			TopP:            0.95,
			MaxOutputTokens: 1024,
		},
	})
	if err != nil {
		return "", fmt.Errorf("marshal gemini request: %w", err)
	}

	url := fmt.Sprintf("%s/v1beta/models/%s:generateContent?key=%s", g.opts.BaseURL, g.opts.Model, g.opts.APIKey)

	var responseBody []byte
	var soft bool

	backoff := retry.WithMaxRetries(g.opts.MaxRetries, retry.NewExponential(g.opts.InitialBackoff))
	err = retry.Do(ctx, backoff, func(ctx context.Context) error {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
		if err != nil {
			return err
		}
		req.Header.Set("Content-Type", "application/json")

		resp, err := g.client.Do(req)
		if err != nil {
			return retry.RetryableError(err)
		}
		defer resp.Body.Close()

		if retryableStatus(resp.StatusCode) {
			return retry.RetryableError(fmt.Errorf("gemini responded %s", resp.Status))
		}
		if resp.StatusCode != http.StatusOK {
			g.log.Error("gemini rejected the request", nil, logging.LogFields{"status": resp.Status})
			soft = true
			return nil
		}

		responseBody, err = io.ReadAll(resp.Body)
		if err != nil {
			return retry.RetryableError(err)
		}
		return nil
	})
	if err != nil {
		if ctx.Err() != nil {
			return "", ctx.Err()
		}
		return "", errs.Transient(fmt.Errorf("gemini call failed: %w", err))
	}
	if soft {
		return "", nil
	}

	return g.extractSummary(responseBody), nil
}

// retryableStatus reports statuses worth another in-process attempt; they
// become transient once the budget runs out.
func retryableStatus(code int) bool {
	return code == http.StatusTooManyRequests || code >= http.StatusInternalServerError
}

// extractSummary pulls candidates[0].content.parts[0].text out of the
// response. Any missing piece is a soft failure.
func (g *Gemini) extractSummary(body []byte) string {
	var parsed geminiResponse
	if err := jsoncodec.Unmarshal(body, &parsed); err != nil {
		g.log.Error("failed to parse gemini response", err, nil)
		return ""
	}

	if len(parsed.Candidates) == 0 {
		g.log.Warn("no candidates in gemini response", nil)
		return ""
	}
	parts := parsed.Candidates[0].Content.Parts
	if len(parts) == 0 {
		g.log.Warn("no parts in first gemini candidate", nil)
		return ""
	}
	return strings.TrimSpace(parts[0].Text)
}

func buildPrompt(text string) string {
	return `You are a document summarization assistant for a Document Management System (DMS).
Your task is to analyse the following OCR-extracted text and provide a structured summary.

Instructions:
1. Create a concise executive summary (2-3 sentences)
2. List 3-5 key points from the document
3. Identify the document type if possible
4. Extract any important dates, numbers or entities mentioned
5. Keep the summary factual and objective - do not add interpretations

Document text:
---
` + text + `
---

Provide the summary now.`
}
