package auth

import (
	"context"
	"net/url"

	"github.com/fivetwenty-io/osapi/internal/constants"
	"github.com/fivetwenty-io/osapi/pkg/osapi"
)

// NoAuth sends a fixed "no-auth" token and resolves every service type to
// one fixed endpoint.
type NoAuth struct {
	endpoint *url.URL
}

var _ osapi.AuthMethod = (*NoAuth)(nil)

// NewNoAuth validates endpoint as an absolute URL.
func NewNoAuth(endpoint string) (*NoAuth, error) {
	parsed, err := ParseEndpoint(endpoint)
	if err != nil {
		return nil, &osapi.ConfigurationError{Field: "endpoint", Value: endpoint, Err: err}
	}

	return &NoAuth{endpoint: parsed}, nil
}

// Token returns the no-auth sentinel, which never expires.
func (a *NoAuth) Token(ctx context.Context, transport osapi.Transport) (*osapi.Token, error) {
	return &osapi.Token{Value: constants.NoAuthToken}, nil
}

// Endpoint returns a copy of the fixed endpoint for any service type.
func (a *NoAuth) Endpoint(ctx context.Context, serviceType string, transport osapi.Transport) (*url.URL, error) {
	endpoint := *a.endpoint

	return &endpoint, nil
}

// ParseEndpoint parses raw and requires an absolute URL with a host.
func ParseEndpoint(raw string) (*url.URL, error) {
	parsed, err := url.Parse(raw)
	if err != nil {
		return nil, osapi.ErrInvalidEndpoint
	}

	if !parsed.IsAbs() || parsed.Host == "" {
		return nil, osapi.ErrInvalidEndpoint
	}

	return parsed, nil
}
