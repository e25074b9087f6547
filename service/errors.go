package service

import (
	"errors"
	"fmt"
)

// ExtractionErrorKind classifies failures of the vision extraction call.
type ExtractionErrorKind string

const (
	ExtractionNotConfigured      ExtractionErrorKind = "not_configured"
	ExtractionInvalidCredentials ExtractionErrorKind = "invalid_credentials"
	ExtractionRateLimited        ExtractionErrorKind = "rate_limited"
	ExtractionQuotaExceeded      ExtractionErrorKind = "quota_exceeded"
	ExtractionModelUnavailable   ExtractionErrorKind = "model_unavailable"
	ExtractionTimeout            ExtractionErrorKind = "timeout"
	ExtractionFailed             ExtractionErrorKind = "failed"
)

var extractionMessages = map[ExtractionErrorKind]string{
	ExtractionNotConfigured:      "OpenAI API key not configured. Please add OPENAI_API_KEY to your environment.",
	ExtractionInvalidCredentials: "OpenAI API key is invalid. Please check your configuration.",
	ExtractionRateLimited:        "OpenAI rate limit exceeded. Please wait a moment and try again.",
	ExtractionQuotaExceeded:      "OpenAI quota exceeded. Please check your OpenAI account.",
	ExtractionModelUnavailable:   "OpenAI model not available. Please contact support.",
	ExtractionTimeout:            "OpenAI request timed out. Please try again.",
}

// ExtractionError is returned when the invoice image could not be read by the model.
type ExtractionError struct {
	Kind ExtractionErrorKind
	Err  error
}

func (e *ExtractionError) Error() string {
	if msg, ok := extractionMessages[e.Kind]; ok {
		return msg
	}
	if e.Err != nil {
		return "OpenAI processing failed: " + e.Err.Error()
	}
	return "OpenAI processing failed"
}

func (e *ExtractionError) Unwrap() error {
	return e.Err
}

// TrackerErrorKind classifies fatal failures of the task submission call.
type TrackerErrorKind string

const (
	TrackerListNotFound TrackerErrorKind = "list_not_found"
	TrackerAPIError     TrackerErrorKind = "api_error"
	TrackerUnreachable  TrackerErrorKind = "unreachable"
)

// TrackerError is returned when ClickUp refused or never received the task.
// An authentication failure is not a TrackerError; it yields a mock outcome.
type TrackerError struct {
	Kind       TrackerErrorKind
	StatusCode int
	Body       string
	Err        error
}

func (e *TrackerError) Error() string {
	switch e.Kind {
	case TrackerListNotFound:
		return "ClickUp list not found. Please check the list ID."
	case TrackerAPIError:
		return fmt.Sprintf("ClickUp API error: %s", e.Body)
	default:
		if e.Err != nil {
			return "Failed to create ClickUp task: " + e.Err.Error()
		}
		return "Failed to create ClickUp task"
	}
}

func (e *TrackerError) Unwrap() error {
	return e.Err
}

// IsTrackerKind reports whether err carries a TrackerError of the given kind.
func IsTrackerKind(err error, kind TrackerErrorKind) bool {
	var te *TrackerError
	return errors.As(err, &te) && te.Kind == kind
}
