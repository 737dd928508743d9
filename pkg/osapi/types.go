package osapi

import (
	"context"
	"net/http"
	"net/url"
	"time"
)

// Token is an authentication token issued by an AuthMethod.
//
// A zero ExpiresAt means the token never expires. Tokens are replaced
// wholesale on refresh and never modified in place.
type Token struct {
	Value     string    `json:"token"                yaml:"token"`
	ExpiresAt time.Time `json:"expires_at,omitempty" yaml:"expires_at,omitempty"`
}

// Expires reports whether the token carries an expiration instant.
func (t *Token) Expires() bool {
	return t != nil && !t.ExpiresAt.IsZero()
}

// ValidAt reports whether the token is usable at now, keeping buffer of
// headroom before the expiration instant.
func (t *Token) ValidAt(now time.Time, buffer time.Duration) bool {
	if t == nil || t.Value == "" {
		return false
	}

	if t.ExpiresAt.IsZero() {
		return true
	}

	return now.Add(buffer).Before(t.ExpiresAt)
}

// AuthMethod issues tokens and resolves service endpoints.
//
// Implementations may cache internally, so two calls may return different
// results once a cached token has expired.
type AuthMethod interface {
	// Token returns a currently valid token.
	Token(ctx context.Context, transport Transport) (*Token, error)
	// Endpoint returns the base URL of the given service type.
	Endpoint(ctx context.Context, serviceType string, transport Transport) (*url.URL, error)
}

// Invalidator is implemented by auth methods that can drop a cached token,
// for example after the API rejected it with 401.
type Invalidator interface {
	Invalidate()
}

// Transport sends a fully built request and returns the raw response.
//
// A non-nil error with a non-nil response means the server answered with a
// non-success status.
type Transport interface {
	Do(ctx context.Context, req *Request) (*Response, error)
}

// Request is an outbound HTTP request with an absolute URL.
type Request struct {
	Method   string
	URL      string
	Query    *Query
	Headers  http.Header
	Body     []byte
	Metadata map[string]interface{}
}

// Response is the raw result of a request.
type Response struct {
	URL        string
	StatusCode int
	Headers    http.Header
	Body       []byte
	Error      error
}

// Link represents a resource link.
type Link struct {
	Href string `json:"href"           yaml:"href"`
	Rel  string `json:"rel,omitempty"  yaml:"rel,omitempty"`
	Type string `json:"type,omitempty" yaml:"type,omitempty"`
}

// Links is the list of links attached to resources.
type Links []Link

// Self returns the href of the "self" link, or an empty string.
func (l Links) Self() string {
	for _, link := range l {
		if link.Rel == "self" {
			return link.Href
		}
	}

	return ""
}
