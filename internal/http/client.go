// Package http provides the retrying transport used by sessions.
package http

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/fivetwenty-io/osapi/internal/constants"
	"github.com/fivetwenty-io/osapi/pkg/osapi"
	"github.com/hashicorp/go-retryablehttp"
)

// DefaultUserAgent is sent when no other User-Agent is configured.
const DefaultUserAgent = "osapi-go/1.0"

// Client is an osapi.Transport backed by go-retryablehttp.
type Client struct {
	httpClient   *retryablehttp.Client
	logger       osapi.Logger
	userAgent    string
	debug        bool
	interceptors *osapi.InterceptorChain
}

var _ osapi.Transport = (*Client)(nil)

// Option configures the client.
type Option func(*Client)

// WithLogger sets the logger.
func WithLogger(logger osapi.Logger) Option {
	return func(c *Client) {
		c.logger = logger
	}
}

// WithDebug enables request/response logging.
func WithDebug(debug bool) Option {
	return func(c *Client) {
		c.debug = debug
	}
}

// WithUserAgent sets the User-Agent header.
func WithUserAgent(userAgent string) Option {
	return func(c *Client) {
		c.userAgent = userAgent
	}
}

// WithRetryConfig enables retries of connection errors, 429 and 5xx responses.
func WithRetryConfig(retryMax int, waitMin, waitMax time.Duration) Option {
	return func(c *Client) {
		c.httpClient.RetryMax = retryMax

		if waitMin > 0 {
			c.httpClient.RetryWaitMin = waitMin
		}

		if waitMax > 0 {
			c.httpClient.RetryWaitMax = waitMax
		}
	}
}

// WithTimeout sets the overall timeout of a single exchange.
func WithTimeout(timeout time.Duration) Option {
	return func(c *Client) {
		c.httpClient.HTTPClient.Timeout = timeout
	}
}

// WithHTTPClient replaces the underlying *http.Client.
func WithHTTPClient(httpClient *http.Client) Option {
	return func(c *Client) {
		c.httpClient.HTTPClient = httpClient
	}
}

// WithInterceptors runs chain around every request.
func WithInterceptors(chain *osapi.InterceptorChain) Option {
	return func(c *Client) {
		c.interceptors = chain
	}
}

// NewClient creates a transport. Retries are disabled unless WithRetryConfig
// is given.
func NewClient(opts ...Option) *Client {
	retryClient := retryablehttp.NewClient()
	retryClient.Logger = nil
	retryClient.RetryMax = 0
	retryClient.RetryWaitMin = constants.DefaultRetryWaitMin
	retryClient.RetryWaitMax = constants.DefaultRetryWaitMax
	retryClient.HTTPClient.Timeout = constants.DefaultHTTPTimeout
	retryClient.ErrorHandler = retryablehttp.PassthroughErrorHandler

	client := &Client{
		httpClient: retryClient,
		userAgent:  DefaultUserAgent,
	}

	for _, opt := range opts {
		opt(client)
	}

	client.logger = osapi.LoggerOrNoop(client.logger)
	retryClient.RequestLogHook = client.logRetry

	return client
}

// Do sends req. Non-2xx responses are returned together with a
// *osapi.ProtocolError; network failures yield a *osapi.TransportError.
func (c *Client) Do(ctx context.Context, req *osapi.Request) (*osapi.Response, error) {
	err := c.interceptors.ExecuteRequestInterceptors(ctx, req)
	if err != nil {
		return nil, err
	}

	fullURL := buildURL(req.URL, req.Query)

	var body interface{}
	if len(req.Body) > 0 {
		body = req.Body
	}

	httpReq, err := retryablehttp.NewRequestWithContext(ctx, req.Method, fullURL, body)
	if err != nil {
		return nil, &osapi.TransportError{Method: req.Method, URL: fullURL, Err: err}
	}

	httpReq.Header.Set("Accept", "application/json")
	httpReq.Header.Set("User-Agent", c.userAgent)

	if len(req.Body) > 0 {
		httpReq.Header.Set("Content-Type", "application/json")
	}

	for key, values := range req.Headers {
		httpReq.Header.Del(key)

		for _, value := range values {
			httpReq.Header.Add(key, value)
		}
	}

	if c.debug {
		c.logger.Debug("HTTP Request", map[string]interface{}{
			"method": req.Method,
			"url":    fullURL,
		})
	}

	start := time.Now()

	httpResp, err := c.httpClient.Do(httpReq)
	if err != nil {
		transportErr := &osapi.TransportError{Method: req.Method, URL: fullURL, Err: err}
		_ = c.interceptors.ExecuteResponseInterceptors(ctx, req, &osapi.Response{Error: transportErr})

		return nil, transportErr
	}

	defer func() { _ = httpResp.Body.Close() }()

	respBody, err := io.ReadAll(httpResp.Body)
	if err != nil {
		return nil, &osapi.TransportError{Method: req.Method, URL: fullURL, Err: fmt.Errorf("reading response body: %w", err)}
	}

	resp := &osapi.Response{
		URL:        fullURL,
		StatusCode: httpResp.StatusCode,
		Headers:    httpResp.Header,
		Body:       respBody,
	}

	if c.debug {
		c.logger.Debug("HTTP Response", map[string]interface{}{
			"method":   req.Method,
			"url":      fullURL,
			"status":   httpResp.StatusCode,
			"duration": time.Since(start).String(),
		})
	}

	if httpResp.StatusCode < http.StatusOK || httpResp.StatusCode >= http.StatusMultipleChoices {
		resp.Error = osapi.NewStatusError(req.Method, fullURL, httpResp.StatusCode, respBody)
	}

	err = c.interceptors.ExecuteResponseInterceptors(ctx, req, resp)
	if err != nil {
		return resp, err
	}

	if resp.Error != nil {
		return resp, resp.Error
	}

	return resp, nil
}

// Get performs a GET request.
func (c *Client) Get(ctx context.Context, rawURL string, query *osapi.Query) (*osapi.Response, error) {
	return c.Do(ctx, &osapi.Request{Method: http.MethodGet, URL: rawURL, Query: query})
}

// Post performs a POST request with a JSON body.
func (c *Client) Post(ctx context.Context, rawURL string, body interface{}) (*osapi.Response, error) {
	return c.doJSON(ctx, http.MethodPost, rawURL, body)
}

// Put performs a PUT request with a JSON body.
func (c *Client) Put(ctx context.Context, rawURL string, body interface{}) (*osapi.Response, error) {
	return c.doJSON(ctx, http.MethodPut, rawURL, body)
}

// Patch performs a PATCH request with a JSON body.
func (c *Client) Patch(ctx context.Context, rawURL string, body interface{}) (*osapi.Response, error) {
	return c.doJSON(ctx, http.MethodPatch, rawURL, body)
}

// Delete performs a DELETE request.
func (c *Client) Delete(ctx context.Context, rawURL string) (*osapi.Response, error) {
	return c.Do(ctx, &osapi.Request{Method: http.MethodDelete, URL: rawURL})
}

func (c *Client) doJSON(ctx context.Context, method, rawURL string, body interface{}) (*osapi.Response, error) {
	req := &osapi.Request{Method: method, URL: rawURL}

	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("marshaling request body: %w", err)
		}

		req.Body = data
	}

	return c.Do(ctx, req)
}

func (c *Client) logRetry(_ retryablehttp.Logger, req *http.Request, attempt int) {
	if attempt == 0 {
		return
	}

	c.logger.Warn("HTTP Retry", map[string]interface{}{
		"method":  req.Method,
		"url":     req.URL.String(),
		"attempt": attempt,
	})
}

func buildURL(rawURL string, query *osapi.Query) string {
	encoded := query.Encode()
	if encoded == "" {
		return rawURL
	}

	var buf bytes.Buffer

	buf.WriteString(rawURL)

	if strings.Contains(rawURL, "?") {
		buf.WriteByte('&')
	} else {
		buf.WriteByte('?')
	}

	buf.WriteString(encoded)

	return buf.String()
}
