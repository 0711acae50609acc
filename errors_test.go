package cpsms

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCategoryForStatus(t *testing.T) {
	tests := []struct {
		name       string
		statusCode int
		want       error
	}{
		{"bad request maps to validation", http.StatusBadRequest, ErrValidation},
		{"unauthorized maps to authentication", http.StatusUnauthorized, ErrAuthentication},
		{"payment required maps to credit", http.StatusPaymentRequired, ErrInsufficientCredit},
		{"forbidden maps to authentication", http.StatusForbidden, ErrAuthentication},
		{"not found maps to not found", http.StatusNotFound, ErrNotFound},
		{"unprocessable maps to validation", http.StatusUnprocessableEntity, ErrValidation},
		{"too many requests maps to rate limited", http.StatusTooManyRequests, ErrRateLimited},
		{"server error falls through to unknown", http.StatusInternalServerError, ErrUnknown},
		{"bad gateway falls through to unknown", http.StatusBadGateway, ErrUnknown},
		{"teapot falls through to unknown", http.StatusTeapot, ErrUnknown},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.ErrorIs(t, categoryForStatus(tt.statusCode), tt.want)
		})
	}
}

func TestNewAPIError(t *testing.T) {
	t.Run("credentials envelope", func(t *testing.T) {
		body := []byte(`{"error":{"message":"Invalid credentials"}}`)

		err := newAPIError(http.StatusUnauthorized, body)

		assert.ErrorIs(t, err, ErrAuthentication)
		assert.Equal(t, http.StatusUnauthorized, err.StatusCode)
		assert.Equal(t, "Invalid credentials", err.Message)
		assert.Equal(t, "gateway responded 401: Invalid credentials", err.Error())
	})

	t.Run("credit envelope", func(t *testing.T) {
		body := []byte(`{"error":{"message":"Not enough credit"}}`)

		err := newAPIError(http.StatusPaymentRequired, body)

		assert.ErrorIs(t, err, ErrInsufficientCredit)
		assert.Equal(t, "Not enough credit", err.Message)
	})

	t.Run("list form envelope keeps the first entry", func(t *testing.T) {
		body := []byte(`{"error":[{"code":409,"message":"Phone number length invalid","to":"123"}]}`)

		err := newAPIError(http.StatusBadRequest, body)

		assert.ErrorIs(t, err, ErrValidation)
		assert.Equal(t, 409, err.Code)
		assert.Equal(t, "Phone number length invalid", err.Message)
	})

	t.Run("unparseable body still maps the status", func(t *testing.T) {
		err := newAPIError(http.StatusNotFound, []byte("<html>not found</html>"))

		assert.ErrorIs(t, err, ErrNotFound)
		assert.Empty(t, err.Message)
		assert.Equal(t, "<html>not found</html>", err.Body)
		assert.Equal(t, "gateway responded 404", err.Error())
	})

	t.Run("body is capped", func(t *testing.T) {
		huge := make([]byte, maxErrorBodyBytes*2)
		for i := range huge {
			huge[i] = 'x'
		}

		err := newAPIError(http.StatusInternalServerError, huge)

		assert.Len(t, err.Body, maxErrorBodyBytes)
	})

	t.Run("category survives wrapping", func(t *testing.T) {
		wrapped := fmt.Errorf("send_sms: %w", newAPIError(http.StatusPaymentRequired, nil))

		assert.ErrorIs(t, wrapped, ErrInsufficientCredit)

		var apiErr *APIError
		require.ErrorAs(t, wrapped, &apiErr)
		assert.Equal(t, http.StatusPaymentRequired, apiErr.StatusCode)
	})
}

func TestTransportError(t *testing.T) {
	cause := context.DeadlineExceeded

	err := transportError("get_credit", cause)

	assert.ErrorIs(t, err, ErrTransport)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Contains(t, err.Error(), "get_credit")
}

func TestPredicates(t *testing.T) {
	tests := []struct {
		name         string
		err          error
		retryable    bool
		accountIssue bool
		invalidInput bool
		notFound     bool
	}{
		{
			name:      "transport failure is retryable",
			err:       transportError("send_sms", errors.New("connection refused")),
			retryable: true,
		},
		{
			name:      "rate limit is retryable",
			err:       newAPIError(http.StatusTooManyRequests, nil),
			retryable: true,
		},
		{
			name:         "authentication needs account attention",
			err:          newAPIError(http.StatusUnauthorized, nil),
			accountIssue: true,
		},
		{
			name:         "exhausted credit needs account attention",
			err:          fmt.Errorf("send_sms: %w", newAPIError(http.StatusPaymentRequired, nil)),
			accountIssue: true,
		},
		{
			name:         "local validation is invalid input",
			err:          fmt.Errorf("recipient list empty: %w", ErrValidation),
			invalidInput: true,
		},
		{
			name:         "gateway rejection is invalid input",
			err:          newAPIError(http.StatusBadRequest, nil),
			invalidInput: true,
		},
		{
			name:     "missing resource",
			err:      newAPIError(http.StatusNotFound, nil),
			notFound: true,
		},
		{
			name: "unknown gateway failure matches nothing",
			err:  newAPIError(http.StatusInternalServerError, nil),
		},
		{
			name: "plain error matches nothing",
			err:  errors.New("boom"),
		},
		{
			name: "nil error matches nothing",
			err:  nil,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.retryable, IsRetryable(tt.err), "IsRetryable")
			assert.Equal(t, tt.accountIssue, IsAccountIssue(tt.err), "IsAccountIssue")
			assert.Equal(t, tt.invalidInput, IsInvalidInput(tt.err), "IsInvalidInput")
			assert.Equal(t, tt.notFound, IsNotFound(tt.err), "IsNotFound")
		})
	}
}

func TestSentinelsAreDistinct(t *testing.T) {
	sentinels := []error{
		ErrAuthentication,
		ErrInsufficientCredit,
		ErrValidation,
		ErrNotFound,
		ErrRateLimited,
		ErrTransport,
		ErrUnknown,
		ErrConfig,
	}

	for i, a := range sentinels {
		for j, b := range sentinels {
			if i == j {
				continue
			}
			assert.NotErrorIs(t, a, b)
		}
	}
}
