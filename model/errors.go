package model

import (
	"fmt"
	"net/http"

	"github.com/pkg/errors"
)

// ConfigurationError reports a provider that cannot be used as configured
// (no model selected, missing API key). It is never retried.
type ConfigurationError struct {
	Provider string
	Reason   string
}

func (e *ConfigurationError) Error() string {
	return fmt.Sprintf("%s: configuration error: %s", e.Provider, e.Reason)
}

// RequestError reports a failed HTTP exchange. StatusCode is zero when the
// request never produced a response (connection refused, timeout, broken
// stream). Attempts is set by the retry policy once it gives up.
type RequestError struct {
	Provider   string
	StatusCode int
	Body       string
	Attempts   int
	Err        error
}

func (e *RequestError) Error() string {
	msg := e.Provider + ": request failed"
	if e.StatusCode != 0 {
		msg += fmt.Sprintf(" with status %d", e.StatusCode)
	}
	if e.Attempts > 1 {
		msg += fmt.Sprintf(" after %d attempts", e.Attempts)
	}
	if e.Body != "" {
		msg += ": " + truncate(e.Body, 200)
	} else if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *RequestError) Unwrap() error {
	return e.Err
}

// Retryable reports whether repeating the request could succeed: transport
// failures and 5xx responses are transient, 4xx responses are not.
func (e *RequestError) Retryable() bool {
	return e.StatusCode == 0 || e.StatusCode >= http.StatusInternalServerError
}

// ResponseFormatError reports a 2xx response whose body lacks the expected
// fields. Retrying cannot fix a schema mismatch.
type ResponseFormatError struct {
	Provider string
	Reason   string
	Err      error
}

func (e *ResponseFormatError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: unexpected response: %s: %v", e.Provider, e.Reason, e.Err)
	}
	return fmt.Sprintf("%s: unexpected response: %s", e.Provider, e.Reason)
}

func (e *ResponseFormatError) Unwrap() error {
	return e.Err
}

// IsConfigurationError reports whether err is (or wraps) a ConfigurationError.
func IsConfigurationError(err error) bool {
	var cfgErr *ConfigurationError
	return errors.As(err, &cfgErr)
}

// IsRecoverable reports whether a turn that failed with err can be retried on
// a fallback provider or skipped: request and response-format failures.
func IsRecoverable(err error) bool {
	var reqErr *RequestError
	if errors.As(err, &reqErr) {
		return true
	}
	var fmtErr *ResponseFormatError
	return errors.As(err, &fmtErr)
}

// IsRetryable reports whether err is a transient RequestError.
func IsRetryable(err error) bool {
	var reqErr *RequestError
	if errors.As(err, &reqErr) {
		return reqErr.Retryable()
	}
	return false
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
