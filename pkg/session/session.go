// Package session binds an authentication method to a transport and provides
// typed access to service endpoints.
package session

import (
	"context"
	"net/http"
	"net/url"
	"strings"

	"github.com/fivetwenty-io/osapi/internal/constants"
	osapihttp "github.com/fivetwenty-io/osapi/internal/http"
	"github.com/fivetwenty-io/osapi/pkg/osapi"
	"github.com/google/uuid"
)

// Session owns an authentication method and borrows a transport. It is safe
// for concurrent use when its method is.
type Session struct {
	method    osapi.AuthMethod
	transport osapi.Transport
	logger    osapi.Logger
	requestID func() string
}

// Option configures a Session.
type Option func(*Session)

// WithTransport sets the transport. The session never closes it.
func WithTransport(transport osapi.Transport) Option {
	return func(s *Session) {
		s.transport = transport
	}
}

// WithLogger sets the logger.
func WithLogger(logger osapi.Logger) Option {
	return func(s *Session) {
		s.logger = logger
	}
}

// WithRequestIDGenerator overrides how X-OpenStack-Request-ID values are built.
func WithRequestIDGenerator(generate func() string) Option {
	return func(s *Session) {
		s.requestID = generate
	}
}

// New creates a session. No request is sent.
func New(method osapi.AuthMethod, opts ...Option) *Session {
	session := &Session{
		method:    method,
		requestID: newRequestID,
	}

	for _, opt := range opts {
		opt(session)
	}

	session.logger = osapi.LoggerOrNoop(session.logger)

	if session.transport == nil {
		session.transport = osapihttp.NewClient(osapihttp.WithLogger(session.logger))
	}

	return session
}

// AuthMethod returns the authentication method.
func (s *Session) AuthMethod() osapi.AuthMethod {
	return s.method
}

// Transport returns the transport.
func (s *Session) Transport() osapi.Transport {
	return s.transport
}

// Logger returns the session logger.
func (s *Session) Logger() osapi.Logger {
	return s.logger
}

// Token returns a valid token from the authentication method.
func (s *Session) Token(ctx context.Context) (*osapi.Token, error) {
	token, err := s.method.Token(ctx, s.transport)
	if err != nil {
		return nil, asAuthenticationError("", err)
	}

	return token, nil
}

// Endpoint resolves the base URL of serviceType.
func (s *Session) Endpoint(ctx context.Context, serviceType string) (*url.URL, error) {
	endpoint, err := s.method.Endpoint(ctx, serviceType, s.transport)
	if err != nil {
		return nil, asAuthenticationError(serviceType, err)
	}

	return endpoint, nil
}

// Request sends req to serviceType. req.URL is a relative, already escaped
// path joined onto the service endpoint; an empty path targets the endpoint
// itself. The token and the endpoint are both obtained before anything is
// sent, and req is not modified.
//
// A 401 response invalidates the cached token of methods implementing
// osapi.Invalidator. The request is not retried.
func (s *Session) Request(ctx context.Context, serviceType string, req *osapi.Request) (*osapi.Response, error) {
	token, err := s.Token(ctx)
	if err != nil {
		return nil, err
	}

	endpoint, err := s.Endpoint(ctx, serviceType)
	if err != nil {
		return nil, err
	}

	headers := req.Headers.Clone()
	if headers == nil {
		headers = make(http.Header)
	}

	headers.Set(constants.HeaderAuthToken, token.Value)

	if headers.Get(constants.HeaderRequestID) == "" {
		headers.Set(constants.HeaderRequestID, s.requestID())
	}

	outbound := &osapi.Request{
		Method:   req.Method,
		URL:      JoinURL(endpoint, req.URL).String(),
		Query:    req.Query,
		Headers:  headers,
		Body:     req.Body,
		Metadata: req.Metadata,
	}

	resp, err := s.transport.Do(ctx, outbound)
	if err != nil && osapi.IsUnauthorized(err) {
		if invalidator, ok := s.method.(osapi.Invalidator); ok {
			s.logger.Debug("Token rejected, invalidating", map[string]interface{}{
				"service_type": serviceType,
				"url":          outbound.URL,
			})
			invalidator.Invalidate()
		}
	}

	return resp, err
}

// JoinURL appends an escaped relative path to base, keeping base intact.
func JoinURL(base *url.URL, escapedPath string) *url.URL {
	joined := *base
	if escapedPath == "" {
		return &joined
	}

	rawPath := strings.TrimRight(base.EscapedPath(), "/") + "/" + strings.TrimLeft(escapedPath, "/")

	path, err := url.PathUnescape(rawPath)
	if err != nil {
		path = rawPath
	}

	joined.Path = path
	joined.RawPath = rawPath

	return &joined
}

// EscapePath escapes every segment and joins them with "/".
func EscapePath(segments ...string) string {
	escaped := make([]string, len(segments))
	for i, segment := range segments {
		escaped[i] = url.PathEscape(segment)
	}

	return strings.Join(escaped, "/")
}

func newRequestID() string {
	return constants.RequestIDPrefix + uuid.NewString()
}

func asAuthenticationError(serviceType string, err error) error {
	if osapi.IsAuthenticationError(err) || osapi.IsConfigurationError(err) {
		return err
	}

	return &osapi.AuthenticationError{ServiceType: serviceType, Err: err}
}
