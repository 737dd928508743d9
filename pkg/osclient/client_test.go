package osclient_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/fivetwenty-io/osapi/internal/testserver"
	"github.com/fivetwenty-io/osapi/pkg/osapi"
	"github.com/fivetwenty-io/osapi/pkg/osclient"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew(t *testing.T) {
	t.Parallel()

	t.Run("rejects invalid config", func(t *testing.T) {
		t.Parallel()

		tests := []struct {
			name   string
			config *osapi.Config
			field  string
		}{
			{name: "nil", config: nil, field: "Config"},
			{name: "empty", config: &osapi.Config{}, field: "Endpoint"},
			{name: "malformed endpoint", config: &osapi.Config{Endpoint: "foo bar"}, field: "Endpoint"},
			{name: "bad interface", config: &osapi.Config{AuthURL: "http://keystone.local/v3", Interface: "private"}, field: "Interface"},
			{name: "identity without user", config: &osapi.Config{AuthURL: "http://keystone.local/v3"}, field: "username"},
			{name: "bad version", config: &osapi.Config{Endpoint: "http://127.0.0.1:8774/v2.1", ComputeAPIVersion: "two"}, field: "ComputeAPIVersion"},
			{name: "tls skip outside dev mode", config: &osapi.Config{Endpoint: "https://127.0.0.1/v2.1", SkipTLSVerify: true}, field: "SkipTLSVerify"},
		}

		for _, tt := range tests {
			t.Run(tt.name, func(t *testing.T) {
				t.Parallel()

				client, err := osclient.New(context.Background(), tt.config)
				require.Error(t, err)
				assert.Nil(t, client)

				var configErr *osapi.ConfigurationError
				require.ErrorAs(t, err, &configErr)
				assert.Equal(t, tt.field, configErr.Field)
			})
		}
	})

	t.Run("no-auth endpoint", func(t *testing.T) {
		t.Parallel()

		server := testserver.New(t)

		client, err := osclient.NewWithEndpoint(context.Background(), server.ComputeURL())
		require.NoError(t, err)

		token, err := client.Token(context.Background())
		require.NoError(t, err)
		assert.Equal(t, "no-auth", token.Value)

		items, err := client.Servers().List().Fetch(context.Background())
		require.NoError(t, err)
		assert.Len(t, items, 3)
		assert.Equal(t, "no-auth", server.LastRequest().Token)
	})

	t.Run("password", func(t *testing.T) {
		t.Parallel()

		server := testserver.New(t, testserver.WithoutNoAuth())

		client, err := osclient.NewWithPassword(context.Background(), server.IdentityURL(),
			testserver.DefaultUsername, testserver.DefaultPassword, "demo")
		require.NoError(t, err)
		assert.Equal(t, 0, server.TokenRequests())

		endpoint, err := client.Endpoint(context.Background(), "compute")
		require.NoError(t, err)
		assert.Equal(t, server.ComputeURL(), endpoint.String())

		flavor, err := client.Flavors().Get(context.Background(), "1")
		require.NoError(t, err)
		assert.Equal(t, "m1.tiny", flavor.Name())
		assert.Equal(t, 1, server.TokenRequests())

		client.Invalidate()

		_, err = client.Token(context.Background())
		require.NoError(t, err)
		assert.Equal(t, 2, server.TokenRequests())
	})

	t.Run("application credential", func(t *testing.T) {
		t.Parallel()

		server := testserver.New(t, testserver.WithoutNoAuth())

		client, err := osclient.NewWithApplicationCredential(context.Background(), server.IdentityURL(),
			testserver.DefaultAppCredID, testserver.DefaultAppSecret)
		require.NoError(t, err)

		_, err = client.Servers().Get(context.Background(), "22c91117-08de-4894-9aa9-6ef382400985")
		require.NoError(t, err)
	})

	t.Run("shared token cache", func(t *testing.T) {
		t.Parallel()

		server := testserver.New(t)
		cache := osapi.NewMemoryCache(10)

		config := func() *osapi.Config {
			return &osapi.Config{
				AuthURL:     server.IdentityURL(),
				Username:    testserver.DefaultUsername,
				Password:    testserver.DefaultPassword,
				ProjectName: "demo",
				TokenCache:  cache,
			}
		}

		first, err := osclient.New(context.Background(), config())
		require.NoError(t, err)

		second, err := osclient.New(context.Background(), config())
		require.NoError(t, err)

		_, err = first.Token(context.Background())
		require.NoError(t, err)

		_, err = second.Token(context.Background())
		require.NoError(t, err)

		assert.Equal(t, 1, server.TokenRequests())
	})
}

func TestNew_ComputeAPIVersion(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		version  string
		expected string
		wantErr  error
	}{
		{name: "explicit", version: "2.60", expected: "compute 2.60"},
		{name: "latest", version: "latest", expected: "compute " + testserver.MaxMicroversion},
		{name: "unsupported", version: "2.99", wantErr: osapi.ErrUnsupportedVersion},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			server := testserver.New(t)

			client, err := osclient.New(context.Background(), &osapi.Config{
				Endpoint:          server.ComputeURL(),
				ComputeAPIVersion: tt.version,
			})
			if tt.wantErr != nil {
				require.ErrorIs(t, err, tt.wantErr)

				return
			}

			require.NoError(t, err)

			_, err = client.Servers().List().Fetch(context.Background())
			require.NoError(t, err)
			assert.Equal(t, tt.expected, server.LastRequest().APIVersion)
		})
	}
}

func TestNew_Metrics(t *testing.T) {
	t.Parallel()

	server := testserver.New(t)
	metrics := osapi.NewMetricsCollector()

	client, err := osclient.New(context.Background(), &osapi.Config{
		Endpoint:  server.ComputeURL(),
		Metrics:   metrics,
		RateLimit: 100,
	})
	require.NoError(t, err)

	_, err = client.Flavors().List().Fetch(context.Background())
	require.NoError(t, err)

	snapshot := metrics.GetMetrics("GET " + server.ComputeURL() + "/flavors")
	require.NotNil(t, snapshot)
	assert.Equal(t, int64(1), snapshot.Calls)
}

func TestNew_Headers(t *testing.T) {
	t.Parallel()

	var seen http.Header

	server := httptest.NewServer(http.HandlerFunc(func(writer http.ResponseWriter, request *http.Request) {
		seen = request.Header.Clone()

		writer.Header().Set("Content-Type", "application/json")
		_, _ = writer.Write([]byte(`{"flavors": []}`))
	}))
	defer server.Close()

	client, err := osclient.New(context.Background(), &osapi.Config{
		Endpoint: server.URL,
		Headers:  map[string]string{"X-Proxy-Token": "secret"},
	})
	require.NoError(t, err)

	flavors, err := client.Flavors().List().Fetch(context.Background())
	require.NoError(t, err)
	assert.Empty(t, flavors)

	require.NotNil(t, seen)
	assert.Equal(t, "secret", seen.Get("X-Proxy-Token"))
	assert.Equal(t, "no-auth", seen.Get("X-Auth-Token"))
}

func TestConfigFromLookup(t *testing.T) {
	t.Parallel()

	env := map[string]string{
		"OS_AUTH_URL":            "https://keystone.example.com/v3",
		"OS_USERNAME":            "demo",
		"OS_PASSWORD":            "secret",
		"OS_PROJECT_NAME":        "demo",
		"OS_REGION_NAME":         "RegionOne",
		"OS_COMPUTE_API_VERSION": "2.79",
		"OS_USER_DOMAIN_NAME":    "Users",
		"OS_PROJECT_DOMAIN_NAME": "Projects",
	}

	config, err := osclient.ConfigFromLookup(func(key string) string { return env[key] })
	require.NoError(t, err)
	assert.Equal(t, "https://keystone.example.com/v3", config.AuthURL)
	assert.Equal(t, "demo", config.Username)
	assert.Equal(t, "RegionOne", config.Region)
	assert.Equal(t, "2.79", config.ComputeAPIVersion)
	assert.Equal(t, "Users", config.UserDomainName)
	assert.Equal(t, "Projects", config.ProjectDomainName)
	assert.True(t, config.UsesIdentity())

	_, err = osclient.ConfigFromLookup(func(string) string { return "" })
	require.ErrorIs(t, err, osapi.ErrAuthURLRequired)
}
