package authsdk

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"
)

// Error kinds reported in the "error" field of a response body.
const (
	ErrorCodeDuplicateEmail       = "duplicate_email"
	ErrorCodeInvalidCredentials   = "invalid_credentials"
	ErrorCodeInactiveAccount      = "inactive_account"
	ErrorCodeTokenMalformed       = "token_malformed"
	ErrorCodeTokenExpired         = "token_expired"
	ErrorCodeTokenPurposeMismatch = "token_purpose_mismatch"
	ErrorCodeAlreadyEnrolled      = "already_enrolled"
	ErrorCodeMFANotEnabled        = "mfa_not_enabled"
	ErrorCodeInvalidCode          = "invalid_code"
	ErrorCodeAccountConflict      = "account_conflict"
	ErrorCodeUnsupportedProvider  = "unsupported_provider"
	ErrorCodeRateLimited          = "rate_limited"
	ErrorCodeUnauthenticated      = "unauthenticated"
	ErrorCodeMFARequired          = "mfa_required"
	ErrorCodeProviderError        = "provider_error"
	ErrorCodeInvalidRequest       = "invalid_request"
	ErrorCodeServerError          = "server_error"
)

// APIError is a non-2xx response from the service.
type APIError struct {
	StatusCode  int    `json:"-"`
	Code        string `json:"error"`
	Description string `json:"error_description"`

	// RetryAfter is parsed from the Retry-After header on 429 responses.
	RetryAfter time.Duration `json:"-"`
}

func (e *APIError) Error() string {
	if e.Description == "" {
		return fmt.Sprintf("%s (HTTP %d)", e.Code, e.StatusCode)
	}
	return fmt.Sprintf("%s: %s (HTTP %d)", e.Code, e.Description, e.StatusCode)
}

// ErrorCode returns the service error kind behind err, or "" when err did
// not come from a service response.
func ErrorCode(err error) string {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.Code
	}
	return ""
}

// parseErrorResponse turns an error body into an *APIError. Bodies that are
// not JSON still yield an error carrying the status.
func parseErrorResponse(resp *http.Response, body []byte) error {
	apiErr := &APIError{StatusCode: resp.StatusCode}
	if err := json.Unmarshal(body, apiErr); err != nil || apiErr.Code == "" {
		apiErr.Code = ErrorCodeServerError
		apiErr.Description = fmt.Sprintf("HTTP %d: %s", resp.StatusCode, http.StatusText(resp.StatusCode))
	}

	if v := resp.Header.Get("Retry-After"); v != "" {
		if secs, err := strconv.Atoi(v); err == nil && secs > 0 {
			apiErr.RetryAfter = time.Duration(secs) * time.Second
		}
	}
	return apiErr
}
