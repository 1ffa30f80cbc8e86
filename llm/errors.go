package llm

import (
	"errors"
	"fmt"
)

// ErrProviderUnavailable is surfaced when the retry policy exhausts its
// attempt ceiling against a transiently failing provider.
var ErrProviderUnavailable = errors.New("provider unavailable")

// ProviderError is a structured failure from a provider boundary.
type ProviderError struct {
	Provider   string
	Message    string
	StatusCode int
	Retryable  bool
	Cause      error
}

func (e *ProviderError) Error() string {
	if e.StatusCode > 0 {
		return fmt.Sprintf("[%s] %s (status=%d, retryable=%v)", e.Provider, e.Message, e.StatusCode, e.Retryable)
	}
	return fmt.Sprintf("[%s] %s (retryable=%v)", e.Provider, e.Message, e.Retryable)
}

func (e *ProviderError) Unwrap() error { return e.Cause }

// Transient feeds the retry policy's classification.
func (e *ProviderError) Transient() bool { return e.Retryable }

// ErrorFromStatusCode maps an HTTP status to a ProviderError with the right
// retryability: overload and server-side failures retry, client-side
// failures do not. Unknown statuses default to retryable.
func ErrorFromStatusCode(provider string, statusCode int, message string, cause error) *ProviderError {
	retryable := true
	switch statusCode {
	case 400, 401, 403, 404, 413, 422:
		retryable = false
	case 408, 429, 500, 502, 503, 529:
		retryable = true
	}
	return &ProviderError{
		Provider:   provider,
		Message:    message,
		StatusCode: statusCode,
		Retryable:  retryable,
		Cause:      cause,
	}
}
