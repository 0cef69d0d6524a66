package completion

import (
	"errors"
	"fmt"
)

// ErrEmptyCompletion is returned when the provider answers without text.
var ErrEmptyCompletion = errors.New("empty completion")

// Error is the single failure kind surfaced to callers: transport, auth,
// quota and decoding problems all arrive wrapped in it.
type Error struct {
	Err error
}

func (e *Error) Error() string {
	if e == nil || e.Err == nil {
		return "completion service failure"
	}
	return "completion service failure: " + e.Err.Error()
}

func (e *Error) Unwrap() error { return e.Err }

// HTTPError carries a non-2xx provider response.
type HTTPError struct {
	StatusCode int
	Body       string
}

func (e *HTTPError) Error() string {
	if e == nil {
		return "upstream http error"
	}
	if e.Body == "" {
		return fmt.Sprintf("upstream http error: status=%d", e.StatusCode)
	}
	return fmt.Sprintf("upstream http error: status=%d body=%s", e.StatusCode, e.Body)
}
