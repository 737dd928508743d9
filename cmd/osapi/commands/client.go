package commands

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/fivetwenty-io/osapi/internal/constants"
	"github.com/fivetwenty-io/osapi/internal/logging"
	"github.com/fivetwenty-io/osapi/pkg/osapi"
	"github.com/fivetwenty-io/osapi/pkg/osclient"
	"github.com/spf13/viper"
)

// passwordKey is read from OSAPI_PASSWORD; it is never written to the config file.
const passwordKey = "password"

// newLogger writes warnings to stderr, or debug output with --verbose.
func newLogger() osapi.Logger {
	level := "warn"
	if viper.GetBool("verbose") {
		level = "debug"
	}

	return logging.New(level, logging.FormatConsole, os.Stderr)
}

// clientConfig maps the CLI configuration onto an osapi.Config.
func clientConfig(config *Config, password string) *osapi.Config {
	return &osapi.Config{
		Endpoint:          config.Endpoint,
		AuthURL:           config.AuthURL,
		Username:          config.Username,
		Password:          password,
		UserDomainName:    config.UserDomainName,
		ProjectID:         config.ProjectID,
		ProjectName:       config.ProjectName,
		ProjectDomainName: config.ProjectDomainName,
		Region:            config.Region,
		Interface:         config.Interface,
		ComputeAPIVersion: config.ComputeAPIVersion,
		RetryMax:          constants.DefaultRetryMax,
		RetryWaitMin:      constants.DefaultRetryWaitMin,
		RetryWaitMax:      constants.DefaultRetryWaitMax,
		Debug:             viper.GetBool("verbose"),
		Logger:            newLogger(),
	}
}

// newTokenCache builds the token cache selected by token_cache. The nats
// backend is layered behind the local token file. The returned close
// function releases NATS connections.
func newTokenCache(ctx context.Context, config *Config) (osapi.Cache, func(), error) {
	cacheType := osapi.CacheType(config.TokenCache)
	if cacheType == "" {
		cacheType = osapi.CacheTypeFile
	}

	builder := osapi.NewCacheBuilder().WithType(cacheType)

	var path string

	if cacheType == osapi.CacheTypeFile || cacheType == osapi.CacheTypeNATS {
		var err error

		path, err = tokenCachePath(config)
		if err != nil {
			return nil, nil, err
		}

		builder = builder.WithFilePath(path).WithNATSConfig(&osapi.NATSKVConfig{URL: config.NATSURL})
	}

	cache, err := builder.Build(ctx)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create token cache: %w", err)
	}

	natsCache, ok := cache.(*osapi.NATSKVCache)
	if !ok {
		return cache, func() {}, nil
	}

	return osapi.NewCacheChain(osapi.NewFileCache(path), natsCache), natsCache.Close, nil
}

func tokenCachePath(config *Config) (string, error) {
	if config.TokenCachePath != "" {
		return config.TokenCachePath, nil
	}

	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to get user home directory: %w", err)
	}

	return filepath.Join(home, configDirName, "tokens.yml"), nil
}

// createClient builds a client from the effective configuration. Callers
// must invoke the returned close function.
func createClient(ctx context.Context) (*osclient.Client, func(), error) {
	config := loadConfig()
	if config.Endpoint == "" && config.AuthURL == "" {
		return nil, nil, constants.ErrNoEndpointConfigured
	}

	return createClientFromConfig(ctx, config, viper.GetString(passwordKey))
}

func createClientFromConfig(ctx context.Context, config *Config, password string) (*osclient.Client, func(), error) {
	clientCfg := clientConfig(config, password)

	closer := func() {}

	if clientCfg.UsesIdentity() {
		cache, closeCache, err := newTokenCache(ctx, config)
		if err != nil {
			return nil, nil, err
		}

		clientCfg.TokenCache = cache
		closer = closeCache
	}

	client, err := osclient.New(ctx, clientCfg)
	if err != nil {
		closer()

		return nil, nil, fmt.Errorf("failed to create client: %w", err)
	}

	return client, closer, nil
}
