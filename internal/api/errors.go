package api

import (
	"context"
	"errors"
	"net/http"

	"roteiro/internal/app"
	"roteiro/internal/llm"
	"roteiro/internal/pipeline"
)

// statusFor maps the error taxonomy to an HTTP status and a stable code.
func statusFor(err error) (int, string) {
	var upstream *llm.UpstreamError
	var maxBytes *http.MaxBytesError

	switch {
	case errors.As(err, &maxBytes):
		return http.StatusRequestEntityTooLarge, "BODY_TOO_LARGE"
	case errors.Is(err, app.ErrSessionNotFound):
		return http.StatusNotFound, "NOT_FOUND"
	case errors.Is(err, pipeline.ErrEmptyInput),
		errors.Is(err, pipeline.ErrUnknownStrategy),
		errors.Is(err, app.ErrInvalidSettings):
		return http.StatusBadRequest, "BAD_REQUEST"
	case errors.Is(err, pipeline.ErrRunInProgress),
		errors.Is(err, pipeline.ErrNotComplete),
		errors.Is(err, pipeline.ErrAlreadyApplied),
		errors.Is(err, pipeline.ErrNotAwaitingDecision):
		return http.StatusConflict, "CONFLICT"
	case errors.Is(err, llm.ErrMissingCredential):
		return http.StatusPreconditionFailed, "MISSING_CREDENTIAL"
	case errors.Is(err, llm.ErrProviderUnsupported):
		return http.StatusUnprocessableEntity, "UNSUPPORTED_PROVIDER"
	case errors.Is(err, llm.ErrSafetyBlocked):
		return http.StatusUnprocessableEntity, "SAFETY_BLOCKED"
	case errors.Is(err, app.ErrNoStore), errors.Is(err, app.ErrNoSpeech):
		return http.StatusServiceUnavailable, "NOT_CONFIGURED"
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout, "TIMEOUT"
	case errors.As(err, &upstream) && upstream.StatusCode == http.StatusTooManyRequests:
		return http.StatusTooManyRequests, "RATE_LIMITED"
	case upstream != nil,
		errors.Is(err, llm.ErrMalformedOutput),
		errors.Is(err, llm.ErrNoTextReturned),
		errors.Is(err, llm.ErrNoImageReturned):
		return http.StatusBadGateway, "UPSTREAM_ERROR"
	default:
		return http.StatusInternalServerError, "INTERNAL_ERROR"
	}
}

func writeErr(w http.ResponseWriter, err error) {
	writeRunErr(w, err, "")
}

func writeRunErr(w http.ResponseWriter, err error, id string) {
	status, code := statusFor(err)
	WriteJSON(w, status, ErrorResponse{Error: err.Error(), Code: code, ID: id})
}
