package errors

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
)

// ErrorType represents different types of errors that can occur
type ErrorType string

const (
	ErrorTypeNetwork     ErrorType = "network"
	ErrorTypeRateLimit   ErrorType = "rate_limit"
	ErrorTypeAuth        ErrorType = "auth"
	ErrorTypeParsing     ErrorType = "parsing"
	ErrorTypeNotFound    ErrorType = "not_found"
	ErrorTypeServerError ErrorType = "server_error"
	ErrorTypeUnknown     ErrorType = "unknown"
)

// Error represents a request error with type information
type Error struct {
	Type    ErrorType
	Message string
	Code    int
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s error (code %d): %s", e.Type, e.Code, e.Message)
}

// FromStatus classifies a non-2xx HTTP response.
func FromStatus(code int, url string) *Error {
	var t ErrorType
	switch {
	case code == http.StatusTooManyRequests:
		t = ErrorTypeRateLimit
	case code == http.StatusUnauthorized || code == http.StatusForbidden:
		t = ErrorTypeAuth
	case code == http.StatusNotFound || code == http.StatusGone:
		t = ErrorTypeNotFound
	case code >= 500:
		t = ErrorTypeServerError
	default:
		t = ErrorTypeUnknown
	}
	return &Error{
		Type:    t,
		Message: fmt.Sprintf("unexpected status %d for %s", code, url),
		Code:    code,
	}
}

// IsRetryable checks if an error type should be retried
func IsRetryable(errorType ErrorType) bool {
	switch errorType {
	case ErrorTypeNetwork, ErrorTypeRateLimit, ErrorTypeServerError:
		return true
	case ErrorTypeAuth, ErrorTypeNotFound, ErrorTypeParsing:
		return false
	default:
		return false
	}
}

// IsTransient reports whether a failed request is worth repeating: network
// failures, 429 and 5xx are; other statuses are not. Errors that carry no
// request classification count as transient.
func IsTransient(err error) bool {
	var e *Error
	if !errors.As(err, &e) {
		return err != nil
	}
	if e.Type == ErrorTypeNetwork {
		return true
	}
	return IsRetryableStatusCode(e.Code)
}

// IsRetryableStatusCode checks if an HTTP status code indicates a retryable error
func IsRetryableStatusCode(statusCode int) bool {
	switch statusCode {
	case 0: // Network error
		return true
	case 429:
		return true
	case 500, 502, 503, 504:
		return true
	case 401, 403, 404:
		return false
	default:
		return statusCode >= 500
	}
}

// FetchFailure is returned once every attempt for a URL has failed.
type FetchFailure struct {
	URL      string
	Attempts int
	Err      error
}

func (e *FetchFailure) Error() string {
	return fmt.Sprintf("fetch %s failed after %d attempts: %v", e.URL, e.Attempts, e.Err)
}

func (e *FetchFailure) Unwrap() error { return e.Err }

// CategoryNotFoundError lists every requested category that could not be bound.
type CategoryNotFoundError struct {
	Missing []string
}

func (e *CategoryNotFoundError) Error() string {
	return fmt.Sprintf("categories not found: %s", strings.Join(e.Missing, ", "))
}

// NoProductsFoundError means a category page had no product-detail links.
type NoProductsFoundError struct {
	URL string
}

func (e *NoProductsFoundError) Error() string {
	return fmt.Sprintf("no products found at %s", e.URL)
}
