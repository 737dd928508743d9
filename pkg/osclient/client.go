package osclient

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"os"
	"strings"

	"github.com/fivetwenty-io/osapi/internal/auth"
	"github.com/fivetwenty-io/osapi/internal/constants"
	osapihttp "github.com/fivetwenty-io/osapi/internal/http"
	"github.com/fivetwenty-io/osapi/pkg/compute"
	"github.com/fivetwenty-io/osapi/pkg/osapi"
	"github.com/fivetwenty-io/osapi/pkg/session"
)

// LatestVersion asks New to pin the newest advertised compute microversion.
const LatestVersion = "latest"

// Static errors for err113 compliance.
var (
	ErrSkipTLSOnlyInDev = errors.New("skipping TLS verification is only allowed in development mode")
)

// Client bundles a session with the service wrappers built on it.
type Client struct {
	config    *osapi.Config
	method    osapi.AuthMethod
	transport *osapihttp.Client
	session   *session.Session
	compute   session.ServiceWrapper
	logger    osapi.Logger
}

// New creates a client from config. The method is chosen from the config:
// Endpoint selects the no-auth method, AuthURL the identity method.
//
// No request is sent unless ComputeAPIVersion is set, in which case the
// compute version document is read to validate it.
func New(ctx context.Context, config *osapi.Config, opts ...session.Option) (*Client, error) {
	err := config.Validate()
	if err != nil {
		return nil, err
	}

	logger := osapi.LoggerOrNoop(config.Logger)

	transport, err := newTransport(config, logger)
	if err != nil {
		return nil, err
	}

	method, err := newMethod(config, logger)
	if err != nil {
		return nil, err
	}

	sessionOpts := append([]session.Option{
		session.WithTransport(transport),
		session.WithLogger(logger),
	}, opts...)

	sess := session.New(method, sessionOpts...)

	client := &Client{
		config:    config,
		method:    method,
		transport: transport,
		session:   sess,
		compute:   compute.NewService(sess),
		logger:    logger,
	}

	if config.ComputeAPIVersion != "" {
		err = client.pinComputeVersion(ctx, config.ComputeAPIVersion)
		if err != nil {
			return nil, fmt.Errorf("selecting compute API version: %w", err)
		}
	}

	return client, nil
}

// NewWithEndpoint creates a client that sends every request to endpoint
// with the "no-auth" token.
func NewWithEndpoint(ctx context.Context, endpoint string) (*Client, error) {
	return New(ctx, &osapi.Config{Endpoint: endpoint})
}

// NewWithPassword creates a client authenticating with a username and
// password scoped to projectName.
func NewWithPassword(ctx context.Context, authURL, username, password, projectName string) (*Client, error) {
	return New(ctx, &osapi.Config{
		AuthURL:     authURL,
		Username:    username,
		Password:    password,
		ProjectName: projectName,
	})
}

// NewWithApplicationCredential creates a client authenticating with an
// application credential.
func NewWithApplicationCredential(ctx context.Context, authURL, id, secret string) (*Client, error) {
	return New(ctx, &osapi.Config{
		AuthURL:                     authURL,
		ApplicationCredentialID:     id,
		ApplicationCredentialSecret: secret,
	})
}

// ConfigFromEnv builds a config from the OS_* environment variables used by
// the OpenStack command line tools.
func ConfigFromEnv() (*osapi.Config, error) {
	return ConfigFromLookup(os.Getenv)
}

// ConfigFromLookup builds a config from OS_* variables read through lookup.
func ConfigFromLookup(lookup func(string) string) (*osapi.Config, error) {
	identity, err := auth.IdentityConfigFromLookup(lookup)
	if err != nil {
		return nil, err
	}

	return &osapi.Config{
		AuthURL:                     identity.AuthURL,
		Username:                    identity.Username,
		Password:                    identity.Password,
		UserDomainName:              identity.UserDomainName,
		ProjectID:                   identity.ProjectID,
		ProjectName:                 identity.ProjectName,
		ProjectDomainName:           identity.ProjectDomainName,
		ApplicationCredentialID:     identity.ApplicationCredentialID,
		ApplicationCredentialSecret: identity.ApplicationCredentialSecret,
		Region:                      identity.Region,
		Interface:                   identity.Interface,
		ComputeAPIVersion:           lookup("OS_COMPUTE_API_VERSION"),
	}, nil
}

// FromEnv creates a client from the OS_* environment variables.
func FromEnv(ctx context.Context) (*Client, error) {
	config, err := ConfigFromEnv()
	if err != nil {
		return nil, err
	}

	return New(ctx, config)
}

// Config returns the configuration the client was built from.
func (c *Client) Config() *osapi.Config {
	return c.config
}

// Session returns the underlying session.
func (c *Client) Session() *session.Session {
	return c.session
}

// AuthMethod returns the authentication method.
func (c *Client) AuthMethod() osapi.AuthMethod {
	return c.method
}

// Token returns a valid token.
func (c *Client) Token(ctx context.Context) (*osapi.Token, error) {
	return c.session.Token(ctx)
}

// Endpoint resolves the base URL of serviceType.
func (c *Client) Endpoint(ctx context.Context, serviceType string) (*url.URL, error) {
	return c.session.Endpoint(ctx, serviceType)
}

// Service returns a wrapper for an arbitrary service type.
func (c *Client) Service(serviceType string) session.ServiceWrapper {
	if serviceType == constants.ServiceTypeCompute {
		return c.compute
	}

	return session.NewServiceWrapper(c.session, serviceType)
}

// Compute returns the compute service wrapper, pinned to the negotiated
// microversion when one was requested.
func (c *Client) Compute() session.ServiceWrapper {
	return c.compute
}

// Servers returns the server manager.
func (c *Client) Servers() *compute.ServerManager {
	return compute.NewServerManager(c.compute)
}

// Flavors returns the flavor manager.
func (c *Client) Flavors() *compute.FlavorManager {
	return compute.NewFlavorManager(c.compute)
}

// Invalidate drops the cached token, if the method caches one.
func (c *Client) Invalidate() {
	if invalidator, ok := c.method.(osapi.Invalidator); ok {
		invalidator.Invalidate()
	}
}

func (c *Client) pinComputeVersion(ctx context.Context, raw string) error {
	if !strings.EqualFold(raw, LatestVersion) {
		version, err := session.ParseAPIVersion(raw)
		if err != nil {
			return &osapi.ConfigurationError{Field: "ComputeAPIVersion", Value: raw, Err: err}
		}

		pinned, err := c.compute.NegotiateVersion(ctx, version)
		if err != nil {
			return err
		}

		c.compute = pinned

		return nil
	}

	supported, err := c.compute.DiscoverVersion(ctx)
	if err != nil {
		return err
	}

	c.compute = c.compute.WithAPIVersion(supported.Max)

	c.logger.Debug("Selected compute API version", map[string]interface{}{
		"version": supported.Max.String(),
	})

	return nil
}

func newMethod(config *osapi.Config, logger osapi.Logger) (osapi.AuthMethod, error) {
	if !config.UsesIdentity() {
		return auth.NewNoAuth(config.Endpoint)
	}

	return auth.NewIdentity(auth.IdentityConfig{
		AuthURL:                     config.AuthURL,
		Username:                    config.Username,
		Password:                    config.Password,
		UserDomainName:              config.UserDomainName,
		ProjectID:                   config.ProjectID,
		ProjectName:                 config.ProjectName,
		ProjectDomainName:           config.ProjectDomainName,
		ApplicationCredentialID:     config.ApplicationCredentialID,
		ApplicationCredentialSecret: config.ApplicationCredentialSecret,
		Region:                      config.Region,
		Interface:                   config.Interface,
		Cache:                       config.TokenCache,
		Logger:                      logger,
	})
}

func newTransport(config *osapi.Config, logger osapi.Logger) (*osapihttp.Client, error) {
	opts := []osapihttp.Option{
		osapihttp.WithLogger(logger),
		osapihttp.WithDebug(config.Debug),
	}

	if config.UserAgent != "" {
		opts = append(opts, osapihttp.WithUserAgent(config.UserAgent))
	}

	if config.SkipTLSVerify {
		if !isDevelopmentEnvironment() {
			return nil, &osapi.ConfigurationError{
				Field: "SkipTLSVerify",
				Err:   fmt.Errorf("%w (set OSAPI_DEV_MODE=true)", ErrSkipTLSOnlyInDev),
			}
		}

		opts = append(opts, osapihttp.WithHTTPClient(&http.Client{
			Timeout: constants.DefaultHTTPTimeout,
			Transport: &http.Transport{
				TLSClientConfig: &tls.Config{InsecureSkipVerify: true}, // #nosec G402 -- Protected by development environment check above
			},
		}))
	}

	if config.HTTPTimeout > 0 {
		opts = append(opts, osapihttp.WithTimeout(config.HTTPTimeout))
	}

	if config.RetryMax > 0 {
		waitMin := config.RetryWaitMin
		if waitMin == 0 {
			waitMin = constants.DefaultRetryWaitMin
		}

		waitMax := config.RetryWaitMax
		if waitMax == 0 {
			waitMax = constants.DefaultRetryWaitMax
		}

		opts = append(opts, osapihttp.WithRetryConfig(config.RetryMax, waitMin, waitMax))
	}

	chain, err := newInterceptors(config)
	if err != nil {
		return nil, err
	}

	if chain != nil {
		opts = append(opts, osapihttp.WithInterceptors(chain))
	}

	return osapihttp.NewClient(opts...), nil
}

func newInterceptors(config *osapi.Config) (*osapi.InterceptorChain, error) {
	if config.RateLimit == 0 && config.Metrics == nil && len(config.Headers) == 0 {
		return nil, nil //nolint:nilnil // no chain configured
	}

	chain := osapi.NewInterceptorChain()

	if len(config.Headers) > 0 {
		chain.AddRequestInterceptor(osapi.HeaderInterceptor(config.Headers))
	}

	if config.RateLimit > 0 {
		limiter, err := osapi.RateLimitInterceptor(config.RateLimit)
		if err != nil {
			return nil, &osapi.ConfigurationError{Field: "RateLimit", Value: fmt.Sprint(config.RateLimit), Err: err}
		}

		chain.AddRequestInterceptor(limiter)
	}

	if config.Metrics != nil {
		chain.AddRequestInterceptor(osapi.MetricsRequestInterceptor(config.Metrics))
		chain.AddResponseInterceptor(osapi.MetricsResponseInterceptor(config.Metrics))
	}

	return chain, nil
}

// isDevelopmentEnvironment checks if we're in a development environment.
func isDevelopmentEnvironment() bool {
	devMode := os.Getenv("OSAPI_DEV_MODE")

	return devMode == "true" || devMode == "1"
}
