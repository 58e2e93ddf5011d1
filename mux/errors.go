package mux

import "fmt"

// UnavailableError indicates the provider could not be reached, or answered
// with a transient failure. A later processing pass may succeed; callers
// should treat it as retryable.
type UnavailableError struct {
	Op  string
	Err error
}

func (e *UnavailableError) Error() string {
	return fmt.Sprintf("mux: %s: provider unavailable: %s", e.Op, e.Err)
}

// RejectedError indicates the provider returned a well-formed error for the
// request - bad input, unknown asset, exhausted quota. Retrying the same
// request will not help.
type RejectedError struct {
	Op         string
	StatusCode int
	Messages   []string
}

func (e *RejectedError) Error() string {
	if len(e.Messages) > 0 {
		return fmt.Sprintf("mux: %s: provider rejected request (%d): %s", e.Op, e.StatusCode, e.Messages[0])
	}
	return fmt.Sprintf("mux: %s: provider rejected request (%d)", e.Op, e.StatusCode)
}
