package osapi

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"slices"
	"sync"
	"time"
)

// ErrRateLimitInvalid is returned by rate limiters built with a non-positive rate.
var ErrRateLimitInvalid = errors.New("requests per second must be positive")

// RequestInterceptor runs before a request leaves the transport. Returning an
// error aborts the request.
type RequestInterceptor func(ctx context.Context, req *Request) error

// ResponseInterceptor observes the outcome of a request. resp.Error is set
// when the transport failed.
type ResponseInterceptor func(ctx context.Context, req *Request, resp *Response) error

// InterceptorChain holds the hooks a transport runs around each request.
// The zero value is empty and a nil chain runs nothing.
type InterceptorChain struct {
	before []RequestInterceptor
	after  []ResponseInterceptor
}

// NewInterceptorChain creates an empty chain.
func NewInterceptorChain() *InterceptorChain {
	return &InterceptorChain{}
}

// AddRequestInterceptor appends a hook run before each request.
func (c *InterceptorChain) AddRequestInterceptor(interceptor RequestInterceptor) {
	c.before = append(c.before, interceptor)
}

// AddResponseInterceptor appends a hook run after each response.
func (c *InterceptorChain) AddResponseInterceptor(interceptor ResponseInterceptor) {
	c.after = append(c.after, interceptor)
}

// ExecuteRequestInterceptors stops at the first hook that fails.
func (c *InterceptorChain) ExecuteRequestInterceptors(ctx context.Context, req *Request) error {
	if c == nil {
		return nil
	}

	for i, hook := range c.before {
		if err := hook(ctx, req); err != nil {
			return fmt.Errorf("request interceptor %d: %w", i, err)
		}
	}

	return nil
}

// ExecuteResponseInterceptors stops at the first hook that fails.
func (c *InterceptorChain) ExecuteResponseInterceptors(ctx context.Context, req *Request, resp *Response) error {
	if c == nil {
		return nil
	}

	for i, hook := range c.after {
		if err := hook(ctx, req, resp); err != nil {
			return fmt.Errorf("response interceptor %d: %w", i, err)
		}
	}

	return nil
}

func requestFields(req *Request) map[string]interface{} {
	fields := map[string]interface{}{
		"method": req.Method,
		"url":    req.URL,
	}

	if req.Query.Len() > 0 {
		fields["query"] = req.Query.Encode()
	}

	return fields
}

// LoggingInterceptor logs each outgoing request at debug level.
func LoggingInterceptor(logger Logger) RequestInterceptor {
	return func(_ context.Context, req *Request) error {
		logger.Debug("sending request", requestFields(req))

		return nil
	}
}

// LoggingResponseInterceptor logs the status of each response, and transport
// failures at error level.
func LoggingResponseInterceptor(logger Logger) ResponseInterceptor {
	return func(_ context.Context, req *Request, resp *Response) error {
		fields := requestFields(req)

		if resp.Error != nil {
			fields["error"] = resp.Error.Error()
			logger.Error("request failed", fields)

			return nil
		}

		fields["status"] = resp.StatusCode
		logger.Debug("received response", fields)

		return nil
	}
}

// HeaderInterceptor sets fixed headers, replacing any earlier value.
func HeaderInterceptor(headers map[string]string) RequestInterceptor {
	return func(_ context.Context, req *Request) error {
		if req.Headers == nil {
			req.Headers = http.Header{}
		}

		for name, value := range headers {
			req.Headers.Set(name, value)
		}

		return nil
	}
}

// RateLimitInterceptor spaces requests so that at most requestsPerSecond
// are started per second. Waiting honours ctx cancellation; a cancelled
// caller gives its slot back unless a later caller already queued behind it.
func RateLimitInterceptor(requestsPerSecond int) (RequestInterceptor, error) {
	if requestsPerSecond <= 0 {
		return nil, fmt.Errorf("%w: %d", ErrRateLimitInvalid, requestsPerSecond)
	}

	interval := time.Second / time.Duration(requestsPerSecond)

	var (
		mutex sync.Mutex
		next  time.Time
	)

	return func(ctx context.Context, _ *Request) error {
		mutex.Lock()

		now := time.Now()
		if next.Before(now) {
			next = now
		}

		slot := next
		wait := slot.Sub(now)
		next = slot.Add(interval)
		mutex.Unlock()

		if wait <= 0 {
			return nil
		}

		timer := time.NewTimer(wait)
		defer timer.Stop()

		select {
		case <-timer.C:
			return nil
		case <-ctx.Done():
			mutex.Lock()
			if next.Equal(slot.Add(interval)) {
				next = slot
			}
			mutex.Unlock()

			return ctx.Err()
		}
	}, nil
}

// Metrics are the call statistics of one "METHOD URL" pair. Failures counts
// transport errors and 4xx/5xx statuses.
type Metrics struct {
	Calls       int64
	Failures    int64
	Latency     time.Duration
	MeanLatency time.Duration
	LastCall    time.Time
}

// MetricsCollector aggregates Metrics per "METHOD URL". The URL excludes the
// query string, so every page of a listing lands in the same bucket.
type MetricsCollector struct {
	mutex sync.Mutex
	byKey map[string]*Metrics
}

// NewMetricsCollector creates an empty collector.
func NewMetricsCollector() *MetricsCollector {
	return &MetricsCollector{byKey: make(map[string]*Metrics)}
}

// GetMetrics returns a copy of the metrics for key, or nil if no call to it
// was recorded.
func (m *MetricsCollector) GetMetrics(key string) *Metrics {
	m.mutex.Lock()
	defer m.mutex.Unlock()

	found, ok := m.byKey[key]
	if !ok {
		return nil
	}

	snapshot := *found

	return &snapshot
}

// Endpoints lists the recorded keys in sorted order.
func (m *MetricsCollector) Endpoints() []string {
	m.mutex.Lock()
	defer m.mutex.Unlock()

	keys := make([]string, 0, len(m.byKey))
	for key := range m.byKey {
		keys = append(keys, key)
	}

	slices.Sort(keys)

	return keys
}

func (m *MetricsCollector) record(key string, started time.Time, failed bool) {
	m.mutex.Lock()
	defer m.mutex.Unlock()

	entry := m.byKey[key]
	if entry == nil {
		entry = &Metrics{}
		m.byKey[key] = entry
	}

	now := time.Now()

	entry.Calls++
	entry.LastCall = now

	if !started.IsZero() {
		entry.Latency += now.Sub(started)
		entry.MeanLatency = entry.Latency / time.Duration(entry.Calls)
	}

	if failed {
		entry.Failures++
	}
}

const metricsStartKey = "osapi.metrics.start"

// MetricsRequestInterceptor stamps the request with its start time.
func MetricsRequestInterceptor(_ *MetricsCollector) RequestInterceptor {
	return func(_ context.Context, req *Request) error {
		if req.Metadata == nil {
			req.Metadata = map[string]interface{}{}
		}

		req.Metadata[metricsStartKey] = time.Now()

		return nil
	}
}

// MetricsResponseInterceptor records the call in collector.
func MetricsResponseInterceptor(collector *MetricsCollector) ResponseInterceptor {
	return func(_ context.Context, req *Request, resp *Response) error {
		started, _ := req.Metadata[metricsStartKey].(time.Time)
		failed := resp.Error != nil || resp.StatusCode >= http.StatusBadRequest

		collector.record(req.Method+" "+req.URL, started, failed)

		return nil
	}
}
