package chi

import (
	"context"
	"errors"
	"net/http"

	"github.com/kailas-cloud/voicegate/internal/domain"
)

// retryAfterSec is advertised on 503 responses.
const retryAfterSec = "5"

type errorMapping struct {
	sentinel error
	status   int
	code     ErrorCode
}

// errorMappings is ordered most specific first: the wrapped sentinels
// (ErrInvalidEmbedding, ErrEmptyCohort, ...) also match their parents.
var errorMappings = []errorMapping{
	{domain.ErrInvalidEmbedding, http.StatusUnprocessableEntity, ErrorCodeInvalidEmbedding},
	{domain.ErrInvalidEnrollment, http.StatusUnprocessableEntity, ErrorCodeInvalidEnrollment},
	{domain.ErrInvalidAudio, http.StatusUnprocessableEntity, ErrorCodeInvalidAudio},
	{domain.ErrInvalidInput, http.StatusBadRequest, ErrorCodeValidationFailed},
	{domain.ErrUserNotEnrolled, http.StatusNotFound, ErrorCodeUserNotEnrolled},
	{domain.ErrVoiceprintNotFound, http.StatusNotFound, ErrorCodeVoiceprintNotFound},
	{domain.ErrDisabled, http.StatusServiceUnavailable, ErrorCodeVerificationDisabled},
	{domain.ErrEmptyCohort, http.StatusServiceUnavailable, ErrorCodeEmptyCohort},
	{domain.ErrModelNotLoaded, http.StatusServiceUnavailable, ErrorCodeModelNotLoaded},
	{domain.ErrServiceUnavailable, http.StatusServiceUnavailable, ErrorCodeServiceUnavailable},
	{context.DeadlineExceeded, http.StatusGatewayTimeout, ErrorCodeTimeout},
}

// classify returns the code and status a single error maps to.
func classify(err error) (ErrorCode, int) {
	for _, m := range errorMappings {
		if errors.Is(err, m.sentinel) {
			return m.code, m.status
		}
	}
	return ErrorCodeInternalError, http.StatusInternalServerError
}

// sentinelHandler returns an errorHandler that matches a single sentinel error.
func sentinelHandler(sentinel error, status int, code ErrorCode) errorHandler {
	return func(w http.ResponseWriter, err error) bool {
		if !errors.Is(err, sentinel) {
			return false
		}
		if status == http.StatusServiceUnavailable {
			w.Header().Set("Retry-After", retryAfterSec)
		}
		writeError(w, status, code, safeDomainMessage(err))
		return true
	}
}

// safeDomainMessage returns a client-facing message without exposing internals.
// Input errors carry the caller's own mistake and are returned verbatim;
// everything else is reduced to its sentinel text.
func safeDomainMessage(err error) string {
	if errors.Is(err, domain.ErrInvalidInput) || errors.Is(err, domain.ErrInvalidAudio) {
		return err.Error()
	}
	sentinels := []error{
		domain.ErrUserNotEnrolled,
		domain.ErrVoiceprintNotFound,
		domain.ErrDisabled,
		domain.ErrEmptyCohort,
		domain.ErrModelNotLoaded,
		domain.ErrServiceUnavailable,
		context.DeadlineExceeded,
	}
	for _, s := range sentinels {
		if errors.Is(err, s) {
			return s.Error()
		}
	}
	return "internal error"
}
