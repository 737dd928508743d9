package osapi_test

import (
	"context"
	"errors"
	"net/http"
	"testing"
	"time"

	"github.com/fivetwenty-io/osapi/pkg/osapi"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingLogger struct {
	messages []string
}

func (l *recordingLogger) Debug(msg string, _ map[string]interface{}) { l.messages = append(l.messages, "debug:"+msg) }
func (l *recordingLogger) Info(msg string, _ map[string]interface{})  { l.messages = append(l.messages, "info:"+msg) }
func (l *recordingLogger) Warn(msg string, _ map[string]interface{})  { l.messages = append(l.messages, "warn:"+msg) }
func (l *recordingLogger) Error(msg string, _ map[string]interface{}) { l.messages = append(l.messages, "error:"+msg) }

func TestInterceptorChain_Order(t *testing.T) {
	t.Parallel()

	var calls []string

	chain := osapi.NewInterceptorChain()
	chain.AddRequestInterceptor(func(ctx context.Context, req *osapi.Request) error {
		calls = append(calls, "first")

		return nil
	})
	chain.AddRequestInterceptor(func(ctx context.Context, req *osapi.Request) error {
		calls = append(calls, "second")

		return nil
	})
	chain.AddResponseInterceptor(func(ctx context.Context, req *osapi.Request, resp *osapi.Response) error {
		calls = append(calls, "response")

		return nil
	})

	req := &osapi.Request{Method: http.MethodGet, URL: "http://x/servers"}

	require.NoError(t, chain.ExecuteRequestInterceptors(context.Background(), req))
	require.NoError(t, chain.ExecuteResponseInterceptors(context.Background(), req, &osapi.Response{StatusCode: 200}))
	assert.Equal(t, []string{"first", "second", "response"}, calls)
}

func TestInterceptorChain_StopsOnError(t *testing.T) {
	t.Parallel()

	errBoom := errors.New("boom")
	called := false

	chain := osapi.NewInterceptorChain()
	chain.AddRequestInterceptor(func(ctx context.Context, req *osapi.Request) error { return errBoom })
	chain.AddRequestInterceptor(func(ctx context.Context, req *osapi.Request) error {
		called = true

		return nil
	})

	err := chain.ExecuteRequestInterceptors(context.Background(), &osapi.Request{})
	require.ErrorIs(t, err, errBoom)
	assert.False(t, called)
}

func TestInterceptorChain_Nil(t *testing.T) {
	t.Parallel()

	var chain *osapi.InterceptorChain

	require.NoError(t, chain.ExecuteRequestInterceptors(context.Background(), &osapi.Request{}))
	require.NoError(t, chain.ExecuteResponseInterceptors(context.Background(), &osapi.Request{}, &osapi.Response{}))
}

func TestHeaderInterceptor(t *testing.T) {
	t.Parallel()

	req := &osapi.Request{}

	err := osapi.HeaderInterceptor(map[string]string{"X-Custom": "value"})(context.Background(), req)
	require.NoError(t, err)
	assert.Equal(t, "value", req.Headers.Get("X-Custom"))
}

func TestLoggingInterceptors(t *testing.T) {
	t.Parallel()

	logger := &recordingLogger{}
	req := &osapi.Request{Method: http.MethodGet, URL: "http://x"}

	require.NoError(t, osapi.LoggingInterceptor(logger)(context.Background(), req))
	require.NoError(t, osapi.LoggingResponseInterceptor(logger)(context.Background(), req, &osapi.Response{StatusCode: 200}))
	require.NoError(t, osapi.LoggingResponseInterceptor(logger)(context.Background(), req,
		&osapi.Response{StatusCode: 500, Error: errors.New("failed")}))

	assert.Equal(t, []string{"debug:sending request", "debug:received response", "error:request failed"}, logger.messages)
}

func TestRateLimitInterceptor(t *testing.T) {
	t.Parallel()

	_, err := osapi.RateLimitInterceptor(0)
	require.ErrorIs(t, err, osapi.ErrRateLimitInvalid)

	limiter, err := osapi.RateLimitInterceptor(20)
	require.NoError(t, err)

	start := time.Now()

	for range 3 {
		require.NoError(t, limiter(context.Background(), &osapi.Request{}))
	}

	assert.GreaterOrEqual(t, time.Since(start), 90*time.Millisecond)
}

func TestRateLimitInterceptor_Cancelled(t *testing.T) {
	t.Parallel()

	limiter, err := osapi.RateLimitInterceptor(1)
	require.NoError(t, err)

	require.NoError(t, limiter(context.Background(), &osapi.Request{}))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err = limiter(ctx, &osapi.Request{})
	require.ErrorIs(t, err, context.Canceled)
}

func TestRateLimitInterceptor_CancelledWaitFreesSlot(t *testing.T) {
	t.Parallel()

	limiter, err := osapi.RateLimitInterceptor(4)
	require.NoError(t, err)

	start := time.Now()

	require.NoError(t, limiter(context.Background(), &osapi.Request{}))

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	err = limiter(ctx, &osapi.Request{})
	require.ErrorIs(t, err, context.DeadlineExceeded)

	require.NoError(t, limiter(context.Background(), &osapi.Request{}))

	elapsed := time.Since(start)
	assert.GreaterOrEqual(t, elapsed, 200*time.Millisecond)
	assert.Less(t, elapsed, 450*time.Millisecond)
}

func TestMetricsInterceptors(t *testing.T) {
	t.Parallel()

	collector := osapi.NewMetricsCollector()
	before := osapi.MetricsRequestInterceptor(collector)
	after := osapi.MetricsResponseInterceptor(collector)

	for _, status := range []int{200, 404} {
		req := &osapi.Request{Method: http.MethodGet, URL: "http://x/servers"}
		require.NoError(t, before(context.Background(), req))
		require.NoError(t, after(context.Background(), req, &osapi.Response{StatusCode: status}))
	}

	metrics := collector.GetMetrics("GET http://x/servers")
	require.NotNil(t, metrics)
	assert.Equal(t, int64(2), metrics.Calls)
	assert.Equal(t, int64(1), metrics.Failures)
	assert.False(t, metrics.LastCall.IsZero())
	assert.Nil(t, collector.GetMetrics("POST http://x/servers"))
	assert.Equal(t, []string{"GET http://x/servers"}, collector.Endpoints())
}
