package osapi

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
)

// Common static errors that can be wrapped with context.
var (
	ErrEndpointNotFound   = errors.New("endpoint not found")
	ErrRequestConsumed    = errors.New("request has already been fetched")
	ErrNoCredentials      = errors.New("no valid credentials available")
	ErrInvalidEndpoint    = errors.New("endpoint must be an absolute URL")
	ErrAuthURLRequired    = errors.New("auth URL is required")
	ErrConfigRequired     = errors.New("config is required")
	ErrNoTokenInResponse  = errors.New("identity response carries no token")
	ErrMissingField       = errors.New("required field missing")
	ErrNoCurrentVersion   = errors.New("no current version advertised")
	ErrUnsupportedVersion = errors.New("requested API version is not supported")
	ErrCacheKeyNotFound   = errors.New("key not found")
	ErrCacheEntryExpired  = errors.New("entry expired")
)

// ConfigurationError reports invalid construction-time input. It is never retried.
type ConfigurationError struct {
	Field string
	Value string
	Err   error
}

// Error implements the error interface.
func (e *ConfigurationError) Error() string {
	if e.Value != "" {
		return fmt.Sprintf("invalid configuration for %s (%q): %v", e.Field, e.Value, e.Err)
	}

	return fmt.Sprintf("invalid configuration for %s: %v", e.Field, e.Err)
}

// Unwrap returns the underlying cause.
func (e *ConfigurationError) Unwrap() error {
	return e.Err
}

// AuthenticationError reports that a token or an endpoint could not be obtained.
type AuthenticationError struct {
	ServiceType string
	Err         error
}

// Error implements the error interface.
func (e *AuthenticationError) Error() string {
	if e.ServiceType != "" {
		return fmt.Sprintf("authentication failed for service %q: %v", e.ServiceType, e.Err)
	}

	return fmt.Sprintf("authentication failed: %v", e.Err)
}

// Unwrap returns the underlying cause.
func (e *AuthenticationError) Unwrap() error {
	return e.Err
}

// TransportError reports a network or connection failure.
type TransportError struct {
	Method string
	URL    string
	Err    error
}

// Error implements the error interface.
func (e *TransportError) Error() string {
	return fmt.Sprintf("%s %s: transport failure: %v", e.Method, e.URL, e.Err)
}

// Unwrap returns the underlying cause.
func (e *TransportError) Unwrap() error {
	return e.Err
}

// Fault is the error document returned by OpenStack APIs, e.g.
// {"itemNotFound": {"message": "...", "code": 404}}.
type Fault struct {
	Name    string `json:"-"`
	Message string `json:"message"`
	Code    int    `json:"code"`
	Details string `json:"details,omitempty"`
}

// ProtocolError reports a non-success status or an undecodable body.
//
// StatusCode is set for HTTP failures; Err is set for decode failures.
type ProtocolError struct {
	Method     string
	URL        string
	StatusCode int
	Fault      *Fault
	Body       []byte
	Err        error
}

// Error implements the error interface.
func (e *ProtocolError) Error() string {
	if e.IsDecode() {
		return fmt.Sprintf("%s %s: decoding response: %v", e.Method, e.URL, e.Err)
	}

	if e.Fault != nil && e.Fault.Message != "" {
		return fmt.Sprintf("%s %s: %s (HTTP %d): %s", e.Method, e.URL, e.Fault.Name, e.StatusCode, e.Fault.Message)
	}

	return fmt.Sprintf("%s %s: unexpected HTTP status %d %s", e.Method, e.URL, e.StatusCode, http.StatusText(e.StatusCode))
}

// Unwrap returns the decode cause, if any.
func (e *ProtocolError) Unwrap() error {
	return e.Err
}

// IsDecode reports whether the error is a decode failure rather than an HTTP status failure.
func (e *ProtocolError) IsDecode() bool {
	return e.Err != nil
}

// NewStatusError builds a ProtocolError for a non-success response, parsing
// the fault document when the body carries one.
func NewStatusError(method, rawURL string, statusCode int, body []byte) *ProtocolError {
	return &ProtocolError{
		Method:     method,
		URL:        rawURL,
		StatusCode: statusCode,
		Fault:      ParseFault(body),
		Body:       body,
	}
}

// NewDecodeError builds a ProtocolError for a body that could not be decoded.
func NewDecodeError(method, rawURL string, statusCode int, err error) *ProtocolError {
	return &ProtocolError{
		Method:     method,
		URL:        rawURL,
		StatusCode: statusCode,
		Err:        err,
	}
}

// ParseFault extracts the first fault object from an error body.
// It returns nil when the body is not a fault document.
func ParseFault(body []byte) *Fault {
	var document map[string]json.RawMessage

	err := json.Unmarshal(body, &document)
	if err != nil || len(document) != 1 {
		return nil
	}

	for name, raw := range document {
		var fault Fault

		err := json.Unmarshal(raw, &fault)
		if err != nil || fault.Message == "" {
			return nil
		}

		fault.Name = name

		return &fault
	}

	return nil
}

// IsNotFound checks if the error is a 404 response.
func IsNotFound(err error) bool {
	return hasStatus(err, http.StatusNotFound)
}

// IsUnauthorized checks if the error is a 401 response.
func IsUnauthorized(err error) bool {
	return hasStatus(err, http.StatusUnauthorized)
}

// IsForbidden checks if the error is a 403 response.
func IsForbidden(err error) bool {
	return hasStatus(err, http.StatusForbidden)
}

// IsConfigurationError checks if the error is a ConfigurationError.
func IsConfigurationError(err error) bool {
	var target *ConfigurationError

	return errors.As(err, &target)
}

// IsAuthenticationError checks if the error is an AuthenticationError.
func IsAuthenticationError(err error) bool {
	var target *AuthenticationError

	return errors.As(err, &target)
}

// IsTransportError checks if the error is a TransportError.
func IsTransportError(err error) bool {
	var target *TransportError

	return errors.As(err, &target)
}

// IsProtocolError checks if the error is a ProtocolError.
func IsProtocolError(err error) bool {
	var target *ProtocolError

	return errors.As(err, &target)
}

func hasStatus(err error, status int) bool {
	var protoErr *ProtocolError
	if errors.As(err, &protoErr) {
		return !protoErr.IsDecode() && protoErr.StatusCode == status
	}

	return false
}
