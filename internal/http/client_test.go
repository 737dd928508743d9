package http_test

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	osapihttp "github.com/fivetwenty-io/osapi/internal/http"
	"github.com/fivetwenty-io/osapi/pkg/osapi"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// MockLogger for testing.
type MockLogger struct {
	mutex sync.Mutex
	logs  []map[string]interface{}
}

func (l *MockLogger) record(level, msg string, fields map[string]interface{}) {
	l.mutex.Lock()
	defer l.mutex.Unlock()

	l.logs = append(l.logs, map[string]interface{}{"level": level, "msg": msg, "fields": fields})
}

func (l *MockLogger) Debug(msg string, fields map[string]interface{}) { l.record("debug", msg, fields) }
func (l *MockLogger) Info(msg string, fields map[string]interface{})  { l.record("info", msg, fields) }
func (l *MockLogger) Warn(msg string, fields map[string]interface{})  { l.record("warn", msg, fields) }
func (l *MockLogger) Error(msg string, fields map[string]interface{}) { l.record("error", msg, fields) }

//nolint:funlen // Test functions can be longer for comprehensive testing
func TestClient_Do(t *testing.T) {
	t.Parallel()
	t.Run("successful request", func(t *testing.T) {
		t.Parallel()

		server := httptest.NewServer(http.HandlerFunc(func(writer http.ResponseWriter, request *http.Request) {
			assert.Equal(t, "/v2.1/servers", request.URL.Path)
			assert.Equal(t, "GET", request.Method)
			assert.Equal(t, "application/json", request.Header.Get("Accept"))
			assert.Equal(t, osapihttp.DefaultUserAgent, request.Header.Get("User-Agent"))

			response := map[string]string{"id": "server-id", "name": "test-server"}
			_ = json.NewEncoder(writer).Encode(response)
		}))
		defer server.Close()

		client := osapihttp.NewClient()

		req := &osapi.Request{
			Method: "GET",
			URL:    server.URL + "/v2.1/servers",
		}

		resp, err := client.Do(context.Background(), req)
		require.NoError(t, err)
		assert.Equal(t, 200, resp.StatusCode)

		var result map[string]string

		err = json.Unmarshal(resp.Body, &result)
		require.NoError(t, err)
		assert.Equal(t, "server-id", result["id"])
		assert.Equal(t, "test-server", result["name"])
	})

	t.Run("ordered query parameters", func(t *testing.T) {
		t.Parallel()

		server := httptest.NewServer(http.HandlerFunc(func(writer http.ResponseWriter, request *http.Request) {
			assert.Equal(t, "marker=abc&limit=2&sort_key=name&sort_dir=asc&sort_key=created&sort_dir=desc", request.URL.RawQuery)
			writer.WriteHeader(http.StatusOK)
		}))
		defer server.Close()

		client := osapihttp.NewClient()
		query := osapi.NewQuery().
			Push("marker", "abc").
			Push("limit", 2).
			Push("sort_key", "name").
			Push("sort_dir", "asc").
			Push("sort_key", "created").
			Push("sort_dir", "desc")

		resp, err := client.Get(context.Background(), server.URL+"/servers", query)
		require.NoError(t, err)
		assert.Equal(t, 200, resp.StatusCode)
	})

	t.Run("query appended to existing query string", func(t *testing.T) {
		t.Parallel()

		server := httptest.NewServer(http.HandlerFunc(func(writer http.ResponseWriter, request *http.Request) {
			assert.Equal(t, "all_tenants=1&limit=5", request.URL.RawQuery)
			writer.WriteHeader(http.StatusOK)
		}))
		defer server.Close()

		client := osapihttp.NewClient()

		_, err := client.Get(context.Background(), server.URL+"/servers?all_tenants=1", osapi.NewQuery().Push("limit", 5))
		require.NoError(t, err)
	})

	t.Run("request with body", func(t *testing.T) {
		t.Parallel()

		server := httptest.NewServer(http.HandlerFunc(func(writer http.ResponseWriter, request *http.Request) {
			assert.Equal(t, "POST", request.Method)
			assert.Equal(t, "application/json", request.Header.Get("Content-Type"))

			var body map[string]string

			_ = json.NewDecoder(request.Body).Decode(&body)
			assert.Equal(t, "test-server", body["name"])

			writer.WriteHeader(http.StatusCreated)
		}))
		defer server.Close()

		client := osapihttp.NewClient()

		resp, err := client.Post(context.Background(), server.URL+"/servers", map[string]string{"name": "test-server"})
		require.NoError(t, err)
		assert.Equal(t, 201, resp.StatusCode)
	})

	t.Run("error response", func(t *testing.T) {
		t.Parallel()

		server := httptest.NewServer(http.HandlerFunc(func(writer http.ResponseWriter, request *http.Request) {
			writer.Header().Set("Content-Type", "application/json")
			writer.WriteHeader(http.StatusNotFound)
			_, _ = writer.Write([]byte(`{"itemNotFound": {"message": "Instance invalid could not be found.", "code": 404}}`))
		}))
		defer server.Close()

		client := osapihttp.NewClient()

		resp, err := client.Get(context.Background(), server.URL+"/servers/invalid", nil)
		require.Error(t, err)
		require.NotNil(t, resp)
		assert.Equal(t, 404, resp.StatusCode)

		protoErr := &osapi.ProtocolError{}
		ok := errors.As(err, &protoErr)
		require.True(t, ok)
		assert.Equal(t, 404, protoErr.StatusCode)
		require.NotNil(t, protoErr.Fault)
		assert.Equal(t, "itemNotFound", protoErr.Fault.Name)
		assert.True(t, osapi.IsNotFound(err))
	})

	t.Run("transport error", func(t *testing.T) {
		t.Parallel()

		server := httptest.NewServer(http.HandlerFunc(func(writer http.ResponseWriter, request *http.Request) {}))
		serverURL := server.URL
		server.Close()

		client := osapihttp.NewClient()

		resp, err := client.Get(context.Background(), serverURL+"/servers", nil)
		require.Error(t, err)
		assert.Nil(t, resp)
		assert.True(t, osapi.IsTransportError(err))
	})

	t.Run("cancelled context", func(t *testing.T) {
		t.Parallel()

		server := httptest.NewServer(http.HandlerFunc(func(writer http.ResponseWriter, request *http.Request) {
			writer.WriteHeader(http.StatusOK)
		}))
		defer server.Close()

		ctx, cancel := context.WithCancel(context.Background())
		cancel()

		_, err := osapihttp.NewClient().Get(ctx, server.URL, nil)
		require.ErrorIs(t, err, context.Canceled)
		assert.True(t, osapi.IsTransportError(err))
	})

	t.Run("custom headers", func(t *testing.T) {
		t.Parallel()

		server := httptest.NewServer(http.HandlerFunc(func(writer http.ResponseWriter, request *http.Request) {
			assert.Equal(t, "custom-value", request.Header.Get("X-Custom-Header"))
			assert.Equal(t, "token-value", request.Header.Get("X-Auth-Token"))
			assert.Equal(t, "osapi-test", request.Header.Get("User-Agent"))
			writer.WriteHeader(http.StatusOK)
		}))
		defer server.Close()

		client := osapihttp.NewClient(osapihttp.WithUserAgent("osapi-test"))

		req := &osapi.Request{
			Method: "GET",
			URL:    server.URL,
			Headers: http.Header{
				"X-Custom-Header": []string{"custom-value"},
				"X-Auth-Token":    []string{"token-value"},
			},
		}

		resp, err := client.Do(context.Background(), req)
		require.NoError(t, err)
		assert.Equal(t, 200, resp.StatusCode)
	})

	t.Run("with debug logging", func(t *testing.T) {
		t.Parallel()

		server := httptest.NewServer(http.HandlerFunc(func(writer http.ResponseWriter, request *http.Request) {
			writer.WriteHeader(http.StatusOK)
			_ = json.NewEncoder(writer).Encode(map[string]string{"result": "ok"})
		}))
		defer server.Close()

		logger := &MockLogger{}
		client := osapihttp.NewClient(osapihttp.WithLogger(logger), osapihttp.WithDebug(true))

		_, err := client.Get(context.Background(), server.URL, nil)
		require.NoError(t, err)

		// Should have logged request and response
		assert.Len(t, logger.logs, 2)
		assert.Equal(t, "HTTP Request", logger.logs[0]["msg"])
		assert.Equal(t, "HTTP Response", logger.logs[1]["msg"])
	})

	t.Run("interceptors", func(t *testing.T) {
		t.Parallel()

		server := httptest.NewServer(http.HandlerFunc(func(writer http.ResponseWriter, request *http.Request) {
			assert.Equal(t, "added", request.Header.Get("X-Intercepted"))
			writer.WriteHeader(http.StatusAccepted)
		}))
		defer server.Close()

		collector := osapi.NewMetricsCollector()
		chain := osapi.NewInterceptorChain()
		chain.AddRequestInterceptor(osapi.HeaderInterceptor(map[string]string{"X-Intercepted": "added"}))
		chain.AddRequestInterceptor(osapi.MetricsRequestInterceptor(collector))
		chain.AddResponseInterceptor(osapi.MetricsResponseInterceptor(collector))

		client := osapihttp.NewClient(osapihttp.WithInterceptors(chain))

		_, err := client.Get(context.Background(), server.URL+"/servers", nil)
		require.NoError(t, err)

		metrics := collector.GetMetrics("GET " + server.URL + "/servers")
		require.NotNil(t, metrics)
		assert.Equal(t, int64(1), metrics.Calls)
	})
}

//nolint:funlen // Test functions can be longer for comprehensive testing
func TestClient_Methods(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		method string
		fn     func(*osapihttp.Client, context.Context, string) (*osapi.Response, error)
	}{
		{
			name:   "GET",
			method: "GET",
			fn: func(c *osapihttp.Client, ctx context.Context, base string) (*osapi.Response, error) {
				return c.Get(ctx, base+"/test", nil)
			},
		},
		{
			name:   "POST",
			method: "POST",
			fn: func(c *osapihttp.Client, ctx context.Context, base string) (*osapi.Response, error) {
				return c.Post(ctx, base+"/test", map[string]string{"key": "value"})
			},
		},
		{
			name:   "PUT",
			method: "PUT",
			fn: func(c *osapihttp.Client, ctx context.Context, base string) (*osapi.Response, error) {
				return c.Put(ctx, base+"/test", map[string]string{"key": "value"})
			},
		},
		{
			name:   "PATCH",
			method: "PATCH",
			fn: func(c *osapihttp.Client, ctx context.Context, base string) (*osapi.Response, error) {
				return c.Patch(ctx, base+"/test", map[string]string{"key": "value"})
			},
		},
		{
			name:   "DELETE",
			method: "DELETE",
			fn: func(c *osapihttp.Client, ctx context.Context, base string) (*osapi.Response, error) {
				return c.Delete(ctx, base+"/test")
			},
		},
	}

	for _, testCase := range tests {
		t.Run(testCase.name, func(t *testing.T) {
			t.Parallel()

			server := httptest.NewServer(http.HandlerFunc(func(writer http.ResponseWriter, request *http.Request) {
				assert.Equal(t, testCase.method, request.Method)
				assert.Equal(t, "/test", request.URL.Path)
				writer.WriteHeader(http.StatusOK)
			}))
			defer server.Close()

			client := osapihttp.NewClient()
			resp, err := testCase.fn(client, context.Background(), server.URL)
			require.NoError(t, err)
			assert.Equal(t, 200, resp.StatusCode)
		})
	}
}

//nolint:funlen // Test functions can be longer for comprehensive testing
func TestClient_RetryLogic(t *testing.T) {
	t.Parallel()
	t.Run("retries on 5xx errors", func(t *testing.T) {
		t.Parallel()

		var attempts atomic.Int32

		server := httptest.NewServer(http.HandlerFunc(func(writer http.ResponseWriter, request *http.Request) {
			if attempts.Add(1) < 3 {
				writer.WriteHeader(http.StatusInternalServerError)
			} else {
				writer.WriteHeader(http.StatusOK)
			}
		}))
		defer server.Close()

		logger := &MockLogger{}
		client := osapihttp.NewClient(
			osapihttp.WithLogger(logger),
			osapihttp.WithRetryConfig(3, 10*time.Millisecond, 100*time.Millisecond),
		)

		resp, err := client.Get(context.Background(), server.URL+"/test", nil)
		require.NoError(t, err)
		assert.Equal(t, 200, resp.StatusCode)
		assert.Equal(t, int32(3), attempts.Load())
		assert.Len(t, logger.logs, 2)
		assert.Equal(t, "HTTP Retry", logger.logs[0]["msg"])
	})

	t.Run("retries on rate limiting", func(t *testing.T) {
		t.Parallel()

		var attempts atomic.Int32

		server := httptest.NewServer(http.HandlerFunc(func(writer http.ResponseWriter, request *http.Request) {
			if attempts.Add(1) < 2 {
				writer.WriteHeader(http.StatusTooManyRequests)
			} else {
				writer.WriteHeader(http.StatusOK)
			}
		}))
		defer server.Close()

		client := osapihttp.NewClient(osapihttp.WithRetryConfig(3, 10*time.Millisecond, 100*time.Millisecond))

		resp, err := client.Get(context.Background(), server.URL+"/test", nil)
		require.NoError(t, err)
		assert.Equal(t, 200, resp.StatusCode)
		assert.Equal(t, int32(2), attempts.Load())
	})

	t.Run("does not retry on client errors", func(t *testing.T) {
		t.Parallel()

		var attempts atomic.Int32

		server := httptest.NewServer(http.HandlerFunc(func(writer http.ResponseWriter, request *http.Request) {
			attempts.Add(1)
			writer.WriteHeader(http.StatusBadRequest)
		}))
		defer server.Close()

		client := osapihttp.NewClient(osapihttp.WithRetryConfig(3, 10*time.Millisecond, 100*time.Millisecond))

		resp, err := client.Get(context.Background(), server.URL+"/test", nil)
		require.Error(t, err)
		assert.Equal(t, 400, resp.StatusCode)
		assert.Equal(t, int32(1), attempts.Load()) // Should not retry
	})

	t.Run("no retries by default", func(t *testing.T) {
		t.Parallel()

		var attempts atomic.Int32

		server := httptest.NewServer(http.HandlerFunc(func(writer http.ResponseWriter, request *http.Request) {
			attempts.Add(1)
			writer.WriteHeader(http.StatusServiceUnavailable)
		}))
		defer server.Close()

		resp, err := osapihttp.NewClient().Get(context.Background(), server.URL+"/test", nil)
		require.Error(t, err)
		assert.Equal(t, 503, resp.StatusCode)
		assert.Equal(t, int32(1), attempts.Load())
	})
}
