package llm

import (
	"errors"
	"fmt"
)

var (
	ErrMissingCredential   = errors.New("missing credential")
	ErrProviderUnsupported = errors.New("provider unsupported")
	ErrSafetyBlocked       = errors.New("content blocked by safety filters")
	ErrNoImageReturned     = errors.New("no image returned")
	ErrNoTextReturned      = errors.New("no text returned")
	ErrMalformedOutput     = errors.New("malformed structured output")
)

// UpstreamError is a non-success response from a provider.
type UpstreamError struct {
	Provider   string
	StatusCode int
	Message    string
	Err        error
}

func (e *UpstreamError) Error() string {
	msg := e.Message
	if msg == "" && e.Err != nil {
		msg = e.Err.Error()
	}
	if e.StatusCode == 0 {
		return fmt.Sprintf("%s: %s", e.Provider, msg)
	}
	return fmt.Sprintf("%s: status %d: %s", e.Provider, e.StatusCode, msg)
}

func (e *UpstreamError) Unwrap() error {
	return e.Err
}
