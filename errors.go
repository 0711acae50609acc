package cpsms

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
)

// Sentinel errors for the failure categories surfaced by the client.
// Use errors.Is() for matching - never compare error strings.
var (
	// Account errors
	ErrAuthentication     = errors.New("invalid credentials")
	ErrInsufficientCredit = errors.New("not enough credit")

	// Request errors
	ErrValidation = errors.New("invalid request")
	ErrNotFound   = errors.New("resource not found")

	// Operational errors
	ErrRateLimited = errors.New("rate limit exceeded")
	ErrTransport   = errors.New("transport failure")

	// Fallback for statuses and bodies the client cannot map
	ErrUnknown = errors.New("unknown gateway error")

	// Configuration errors
	ErrConfig = errors.New("required configuration missing")
)

// IsRetryable returns true if the failure is transient and the same
// request may succeed on a later attempt. The client itself never
// retries; the decision belongs to the caller.
func IsRetryable(err error) bool {
	return errors.Is(err, ErrTransport) ||
		errors.Is(err, ErrRateLimited)
}

// IsAccountIssue returns true if the failure requires account attention
// (wrong credentials or an exhausted prepaid balance) rather than a
// change to the request.
func IsAccountIssue(err error) bool {
	return errors.Is(err, ErrAuthentication) ||
		errors.Is(err, ErrInsufficientCredit)
}

// IsInvalidInput returns true if the failure was caused by the request
// content, whether rejected locally or refused by the gateway.
func IsInvalidInput(err error) bool {
	return errors.Is(err, ErrValidation)
}

// IsNotFound returns true if the operation targeted an id the gateway
// does not know.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}

// statusMapping ties a gateway HTTP status to a failure category.
type statusMapping struct {
	statusCode int
	category   error
}

// statusMappings maps gateway response statuses to sentinels.
// First match wins; unlisted statuses fall through to ErrUnknown.
var statusMappings = []statusMapping{
	{http.StatusBadRequest, ErrValidation},
	{http.StatusUnauthorized, ErrAuthentication},
	{http.StatusPaymentRequired, ErrInsufficientCredit},
	{http.StatusForbidden, ErrAuthentication},
	{http.StatusNotFound, ErrNotFound},
	{http.StatusUnprocessableEntity, ErrValidation},
	{http.StatusTooManyRequests, ErrRateLimited},
}

func categoryForStatus(statusCode int) error {
	for _, m := range statusMappings {
		if m.statusCode == statusCode {
			return m.category
		}
	}
	return ErrUnknown
}

// maxErrorBodyBytes caps how much of a failed response body is retained
// on an APIError for diagnosis.
const maxErrorBodyBytes = 2048

// APIError describes a non-success response from the gateway. Every
// APIError wraps the sentinel matching its status, so
// errors.Is(err, cpsms.ErrNotFound) and friends keep working however
// deeply the error is wrapped.
type APIError struct {
	// StatusCode is the HTTP status the gateway answered with.
	StatusCode int
	// Code is the provider's own error code, when the body carried one.
	Code int
	// Message is the provider's error message, when present.
	Message string
	// Body holds the response body, truncated, for unmapped failures.
	Body string

	category error
}

func (e *APIError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("gateway responded %d: %s", e.StatusCode, e.Message)
	}
	return fmt.Sprintf("gateway responded %d", e.StatusCode)
}

// Unwrap exposes the failure category for errors.Is matching.
func (e *APIError) Unwrap() error {
	return e.category
}

// errorEnvelope is the gateway's error body. The error key holds either
// a single object or a list of per-recipient entries.
type errorEnvelope struct {
	Error json.RawMessage `json:"error"`
}

// newAPIError maps a non-2xx gateway response onto the taxonomy,
// pulling the provider code and message out of the body when it parses.
func newAPIError(statusCode int, body []byte) *APIError {
	apiErr := &APIError{
		StatusCode: statusCode,
		Body:       truncate(string(body), maxErrorBodyBytes),
		category:   categoryForStatus(statusCode),
	}

	var env errorEnvelope
	if err := json.Unmarshal(body, &env); err != nil || len(env.Error) == 0 {
		return apiErr
	}
	if first, ok := firstWireError(env.Error); ok {
		apiErr.Code = first.Code
		apiErr.Message = first.Message
	}
	return apiErr
}

// transportError wraps a failure that happened before any HTTP status
// existed (dial, TLS, timeout, cancellation). The result matches both
// ErrTransport and the underlying cause.
func transportError(op string, err error) error {
	return fmt.Errorf("%s: %w: %w", op, ErrTransport, err)
}

func truncate(s string, limit int) string {
	if len(s) <= limit {
		return s
	}
	return s[:limit]
}
