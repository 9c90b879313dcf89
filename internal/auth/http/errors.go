package http

import (
	"errors"
	"math"
	"net/http"
	"strconv"

	"github.com/aussiebroadwan/budg/internal/auth/domain"
	"github.com/aussiebroadwan/budg/internal/auth/service"
	"github.com/aussiebroadwan/budg/pkg/authsdk"
	"github.com/aussiebroadwan/budg/pkg/httpx"
	"github.com/aussiebroadwan/budg/pkg/slogx"
)

// statusFor maps an error kind to its HTTP status.
func statusFor(kind domain.Kind) int {
	switch kind {
	case domain.KindInvalidCredentials, domain.KindUnauthenticated, domain.KindMFARequired:
		return http.StatusUnauthorized
	case domain.KindUnsupportedProvider:
		return http.StatusNotFound
	case domain.KindRateLimited:
		return http.StatusTooManyRequests
	case domain.KindDuplicateEmail,
		domain.KindInactiveAccount,
		domain.KindTokenMalformed,
		domain.KindTokenExpired,
		domain.KindTokenPurposeMismatch,
		domain.KindAlreadyEnrolled,
		domain.KindMFANotEnabled,
		domain.KindInvalidCode,
		domain.KindAccountConflict,
		domain.KindProviderError,
		domain.KindInvalidRequest:
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

// writeError renders err as an error body. Unclassified errors are logged
// and reported as server_error without detail.
func writeError(w http.ResponseWriter, r *http.Request, err error) {
	var de *domain.Error
	if !errors.As(err, &de) || statusFor(de.Kind) == http.StatusInternalServerError {
		slogx.FromContext(r.Context()).Error("request failed", "err", err)
		httpx.WriteError(w, http.StatusInternalServerError, authsdk.ErrorCodeServerError, "internal server error")
		return
	}

	status := statusFor(de.Kind)
	switch status {
	case http.StatusUnauthorized:
		w.Header().Set("WWW-Authenticate", "Bearer")
	case http.StatusTooManyRequests:
		var rl *service.RateLimitedError
		if errors.As(err, &rl) {
			secs := max(int(math.Ceil(rl.RetryAfter.Seconds())), 1)
			w.Header().Set("Retry-After", strconv.Itoa(secs))
		}
	}

	httpx.WriteError(w, status, string(de.Kind), de.Message)
}
