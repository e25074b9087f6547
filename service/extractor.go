package service

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/rrealai/invoice/config"
	"github.com/rrealai/invoice/pkg/logger"
	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/llms/openai"
)

const (
	extractionMaxTokens   = 1000
	extractionTemperature = 0.1
	extractionImageDetail = "high"
)

const extractionPrompt = `
Extract the following fields from the invoice:
- Vendor/Supplier name
- Invoice date (the date printed on the document)
- Invoice number (usually at the top of the document)
- Originally ordered items (with quantities)
- Missing items (e.g., if it says "One Missing Item", "Missing" or similar)
- Were missing items detected? → Yes or No
- Total invoice value in USD (number only, no $ symbol)
- Value of missing items in USD (number only, no $ symbol)

Respond as structured JSON. If any data is not available, return null for numbers or "Not specified" for text.

Expected format:
{
  "vendor": "Vendor name",
  "invoice_date": "2024-01-15",
  "invoice_number": "INV-12345",
  "requested_items": ["Item 1 - Qty: X", "Item 2 - Qty: Y"],
  "missing_items": ["Item 1 - Qty: X"],
  "missing_detected": "Yes or No",
  "missing_value_usd": 123.45,
  "invoice_total_usd": 456.78,
  "num_requested_items": 5,
  "num_delivered_items": 3,
  "num_missing_items": 2
}

IMPORTANT:
- requested_items and missing_items must be arrays
- missing_value_usd and invoice_total_usd must be numbers (not strings)
- If there are no missing items, missing_items should be an empty array []
- num_requested_items is the total number of different items ordered
- num_delivered_items = num_requested_items - num_missing_items
- Date must be in YYYY-MM-DD format
`

// ExtractorService reads invoice images with an OpenAI vision model.
type ExtractorService struct {
	model llms.Model
}

// NewExtractorService builds the OpenAI client. A missing API key is not an
// error here; every Extract call then fails with ExtractionNotConfigured.
func NewExtractorService(cfg *config.OpenAIConfig) (*ExtractorService, error) {
	if cfg.APIKey == "" {
		return &ExtractorService{}, nil
	}

	opts := []openai.Option{
		openai.WithModel(cfg.Model),
		openai.WithToken(cfg.APIKey),
		openai.WithHTTPClient(&http.Client{Timeout: cfg.Timeout}),
	}
	if cfg.BaseURL != "" {
		opts = append(opts, openai.WithBaseURL(cfg.BaseURL))
	}
	llm, err := openai.New(opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create openai client: %w", err)
	}
	return &ExtractorService{model: llm}, nil
}

// NewExtractorServiceWithModel wraps an existing model, e.g. a test double.
func NewExtractorServiceWithModel(model llms.Model) *ExtractorService {
	return &ExtractorService{model: model}
}

// Extract sends the image to the model and normalizes its answer. An
// unparseable answer is not an error: the returned Extraction is Degraded.
func (s *ExtractorService) Extract(ctx context.Context, image []byte) (*Extraction, error) {
	if s.model == nil {
		return nil, &ExtractionError{Kind: ExtractionNotConfigured}
	}

	messages := []llms.MessageContent{
		{
			Role: llms.ChatMessageTypeHuman,
			Parts: []llms.ContentPart{
				llms.TextContent{Text: extractionPrompt},
				llms.ImageURLContent{
					URL:    "data:image/jpeg;base64," + base64.StdEncoding.EncodeToString(image),
					Detail: extractionImageDetail,
				},
			},
		},
	}

	resp, err := s.model.GenerateContent(ctx, messages,
		llms.WithMaxTokens(extractionMaxTokens),
		llms.WithTemperature(extractionTemperature),
	)
	if err != nil {
		return nil, ClassifyExtractionError(err)
	}
	if len(resp.Choices) == 0 {
		return nil, &ExtractionError{Kind: ExtractionFailed, Err: errors.New("model returned no choices")}
	}

	ext := NormalizeResponse(resp.Choices[0].Content)
	if ext.Degraded {
		logger.Warn(ctx, "model response was not JSON, using defaults", "response", resp.Choices[0].Content)
	} else {
		logger.Info(ctx, "invoice extracted",
			"vendor", ext.Record.Vendor,
			"items_ordered", ext.Record.CountOrdered,
			"items_missing", ext.Record.CountMissing,
		)
	}
	return &ext, nil
}

// ClassifyExtractionError maps a provider error to an ExtractionError by
// inspecting status codes and messages.
func ClassifyExtractionError(err error) *ExtractionError {
	var ee *ExtractionError
	if errors.As(err, &ee) {
		return ee
	}

	msg := strings.ToLower(err.Error())
	kind := ExtractionFailed
	switch {
	case errors.Is(err, context.DeadlineExceeded) || containsAny(msg, "timeout", "timed out", "deadline exceeded"):
		kind = ExtractionTimeout
	case containsAny(msg, "insufficient_quota", "exceeded your current quota", "quota exceeded"):
		kind = ExtractionQuotaExceeded
	case containsAny(msg, "status code: 429", "rate_limit_exceeded", "rate limit"):
		kind = ExtractionRateLimited
	case containsAny(msg, "status code: 401", "invalid_api_key", "incorrect api key", "invalid api key"):
		kind = ExtractionInvalidCredentials
	case containsAny(msg, "model_not_found", "does not exist", "model not found"):
		kind = ExtractionModelUnavailable
	}
	return &ExtractionError{Kind: kind, Err: err}
}

func containsAny(s string, patterns ...string) bool {
	for _, p := range patterns {
		if strings.Contains(s, p) {
			return true
		}
	}
	return false
}
