package analysis

import (
	"errors"
	"fmt"
)

// ErrUnsupportedProvider indicates the configured model matched no known provider family.
var ErrUnsupportedProvider = errors.New("unsupported provider")

// ErrTimeout indicates a submission received no completion within the configured window.
var ErrTimeout = errors.New("analysis timed out")

// ErrCancelled indicates the request was cancelled before it completed.
var ErrCancelled = errors.New("analysis cancelled")

// ErrQuotaExceeded indicates the AI provider returned a quota/limit error (HTTP 429 or similar).
var ErrQuotaExceeded = errors.New("ai quota exceeded")

// HTTPError carries a non-2xx provider transport status plus the response body.
type HTTPError struct {
	Status int
	Body   string
}

func (e *HTTPError) Error() string {
	return fmt.Sprintf("provider returned status %d: %s", e.Status, e.Body)
}

// UserMessage maps a failure to a short message suitable for the overlay UI.
func UserMessage(err error) string {
	var he *HTTPError
	switch {
	case errors.Is(err, ErrUnsupportedProvider):
		return "Unsupported model configured. Check the llm.model setting."
	case errors.Is(err, ErrTimeout):
		return "Analysis timed out. Try again."
	case errors.Is(err, ErrCancelled):
		return "Analysis cancelled."
	case errors.Is(err, ErrQuotaExceeded):
		return "API quota exceeded. Check your plan and billing."
	case errors.As(err, &he):
		switch he.Status {
		case 401, 403:
			return "Invalid API key. Check your configuration."
		case 429:
			return "API quota exceeded. Check your plan and billing."
		default:
			return fmt.Sprintf("Provider error (HTTP %d).", he.Status)
		}
	default:
		return "Analysis failed. Check your connection."
	}
}
