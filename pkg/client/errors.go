package client

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"github.com/cockroachdb/errors"
)

// ErrMissingToken is returned by New when no API token is configured.
var ErrMissingToken = errors.New("crm api token is required")

// ErrorClass represents a classification of upstream failures.
type ErrorClass string

const (
	// ErrorClassClient represents 4xx client errors other than 429.
	ErrorClassClient ErrorClass = "client"

	// ErrorClassServer represents 5xx server errors.
	ErrorClassServer ErrorClass = "server"

	// ErrorClassRateLimit represents 429 Too Many Requests.
	ErrorClassRateLimit ErrorClass = "rate_limit"

	// ErrorClassNetwork represents transport failures.
	ErrorClassNetwork ErrorClass = "network"
)

// ClassifyStatus maps an HTTP status to an ErrorClass. Non-error statuses
// map to "".
func ClassifyStatus(code int) ErrorClass {
	switch {
	case code == http.StatusTooManyRequests:
		return ErrorClassRateLimit
	case code >= 400 && code < 500:
		return ErrorClassClient
	case code >= 500:
		return ErrorClassServer
	default:
		return ""
	}
}

// UpstreamError is a non-2xx response from the CRM API.
type UpstreamError struct {
	StatusCode int
	Class      ErrorClass
	Message    string
	Body       []byte
}

// Error implements the error interface.
func (e *UpstreamError) Error() string {
	return fmt.Sprintf("CRM %s error (status %d): %s", e.Class, e.StatusCode, e.Message)
}

// newUpstreamError builds an UpstreamError, taking the message from the
// JSON error body when the API sent one.
func newUpstreamError(status int, body []byte) *UpstreamError {
	msg := http.StatusText(status)

	var payload struct {
		Message string `json:"message"`
	}
	if err := json.Unmarshal(body, &payload); err == nil && strings.TrimSpace(payload.Message) != "" {
		msg = payload.Message
	}

	return &UpstreamError{
		StatusCode: status,
		Class:      ClassifyStatus(status),
		Message:    msg,
		Body:       body,
	}
}

// TransportError is a failure to reach the CRM API or read its response.
type TransportError struct {
	Op  string
	Err error
}

// Error implements the error interface.
func (e *TransportError) Error() string {
	return fmt.Sprintf("CRM %s error during %s: %v", ErrorClassNetwork, e.Op, e.Err)
}

// Unwrap implements error unwrapping for errors.Is/As.
func (e *TransportError) Unwrap() error {
	return e.Err
}

// AsUpstreamError returns the UpstreamError in err's chain, if any.
func AsUpstreamError(err error) (*UpstreamError, bool) {
	var upstream *UpstreamError
	if errors.As(err, &upstream) {
		return upstream, true
	}
	return nil, false
}

// IsTransportError reports whether err's chain holds a TransportError.
func IsTransportError(err error) bool {
	var transport *TransportError
	return errors.As(err, &transport)
}
