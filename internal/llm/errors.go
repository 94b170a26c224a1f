package llm

import (
	"errors"
	"fmt"
	"net/http"
)

// UpstreamError is a non-2xx answer from a completion endpoint.
type UpstreamError struct {
	Provider string
	Status   int
	Message  string
	Err      error
}

func (e *UpstreamError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("%s completion failed (%d)", e.Provider, e.Status)
	}
	return fmt.Sprintf("%s completion failed (%d): %s", e.Provider, e.Status, e.Message)
}

func (e *UpstreamError) Unwrap() error { return e.Err }

// Transient reports whether the status is a server error or rate limit.
func (e *UpstreamError) Transient() bool {
	return e.Status == http.StatusTooManyRequests || e.Status >= 500
}

// IsTransient reports whether err is an upstream 5xx or 429.
// Everything else, including transport failures, is permanent.
func IsTransient(err error) bool {
	var ue *UpstreamError
	if errors.As(err, &ue) {
		return ue.Transient()
	}
	return false
}

// StatusOf returns the upstream HTTP status carried by err, or 0.
func StatusOf(err error) int {
	var ue *UpstreamError
	if errors.As(err, &ue) {
		return ue.Status
	}
	return 0
}

// ErrEmptyCompletion means the model answered with no text.
var ErrEmptyCompletion = errors.New("completion returned no text")
