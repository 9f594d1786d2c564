package analyzer

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrInvalidRequest reports missing or empty caller input. No provider call is made.
	ErrInvalidRequest = errors.New("invalid request")
	// ErrTimeout reports a provider call that did not settle within the timeout.
	ErrTimeout = errors.New("completion timed out")
	// ErrUpstream reports a provider call that failed.
	ErrUpstream = errors.New("upstream error")
	// ErrMalformedResponse reports provider text that could not be coerced into a Result.
	ErrMalformedResponse = errors.New("malformed response")
)

const malformedSnippetLimit = 2000

// MalformedResponseError carries the parse failure and a bounded excerpt of
// the normalized text for diagnostics.
type MalformedResponseError struct {
	Err     error
	Snippet string
}

func newMalformedResponseError(err error, text string) *MalformedResponseError {
	runes := []rune(text)
	if len(runes) > malformedSnippetLimit {
		runes = runes[:malformedSnippetLimit]
	}
	return &MalformedResponseError{Err: err, Snippet: string(runes)}
}

func (e *MalformedResponseError) Error() string {
	if e.Err == nil {
		return ErrMalformedResponse.Error()
	}
	return fmt.Sprintf("%s: %v", ErrMalformedResponse, e.Err)
}

func (e *MalformedResponseError) Unwrap() error {
	return e.Err
}

func (e *MalformedResponseError) Is(target error) bool {
	return target == ErrMalformedResponse
}

func invalidRequest(field string) error {
	return fmt.Errorf("%w: %s is required", ErrInvalidRequest, strings.TrimSpace(field))
}
