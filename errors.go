package pocketrag

import (
	"errors"
	"fmt"
	"strconv"
	"time"
)

// ErrNotFound reports that a requested project, document, or text unit does
// not exist. Callers test for it with errors.Is.
var ErrNotFound = errors.New("not found")

// ErrLLM reports a failure from an LLM collaborator.
type ErrLLM struct {
	Provider string
	Message  string
}

func (e *ErrLLM) Error() string {
	return fmt.Sprintf("%s: %s", e.Provider, e.Message)
}

// ErrHTTP reports a non-2xx response from an HTTP collaborator.
// RetryAfter carries the parsed Retry-After header, when present.
type ErrHTTP struct {
	Status     int
	Body       string
	RetryAfter time.Duration
}

func (e *ErrHTTP) Error() string {
	return fmt.Sprintf("http %d: %s", e.Status, e.Body)
}

// ParseRetryAfter parses a Retry-After header value given in seconds.
// Returns 0 for empty or unparsable values (HTTP-date form is ignored).
func ParseRetryAfter(v string) time.Duration {
	if v == "" {
		return 0
	}
	secs, err := strconv.Atoi(v)
	if err != nil || secs < 0 {
		return 0
	}
	return time.Duration(secs) * time.Second
}
