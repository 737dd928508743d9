package osapi

import (
	"errors"
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
)

// ErrNoAuthConfigured is returned when neither Endpoint nor AuthURL is set.
var ErrNoAuthConfigured = errors.New("either an endpoint or an auth URL is required")

// Config represents client configuration for building an osclient.Client.
//
// # Authentication precedence
//
//  1. Endpoint: requests go to this fixed URL for every service type and
//     carry the "no-auth" token. Used for standalone services and tests.
//  2. AuthURL: an identity (Keystone v3) method is used. It authenticates with
//     ApplicationCredentialID/Secret when set, otherwise with
//     Username/Password scoped to ProjectID or ProjectName.
//
// # Token cache
//
// When TokenCache is set, identity tokens together with their service
// catalog are stored there and reused by other clients configured for the
// same user and project, until the token expires.
//
// # Timeouts and retries
//
// Per-request timeouts should be controlled via the context passed to client
// methods. Retries are disabled unless RetryMax > 0.
type Config struct {
	// Endpoint: fixed base URL for the no-auth method.
	Endpoint string `validate:"omitempty,url"`

	// AuthURL: identity service URL, with or without the "/v3" suffix.
	AuthURL string `validate:"omitempty,url"`
	// Username and Password for the password method.
	Username string
	Password string
	// UserDomainName defaults to "Default".
	UserDomainName string
	// ProjectID takes precedence over ProjectName.
	ProjectID   string
	ProjectName string
	// ProjectDomainName defaults to "Default".
	ProjectDomainName string
	// ApplicationCredentialID and ApplicationCredentialSecret select the
	// application credential method.
	ApplicationCredentialID     string
	ApplicationCredentialSecret string
	// Region restricts catalog lookups to one region when set.
	Region string
	// Interface selects the endpoint interface; defaults to "public".
	Interface string `validate:"omitempty,oneof=public internal admin"`

	// TokenCache optionally shares identity tokens between clients.
	TokenCache Cache

	// ComputeAPIVersion pins the compute microversion, e.g. "2.79". "latest"
	// selects the newest version the service advertises.
	ComputeAPIVersion string
	// SkipTLSVerify disables certificate checks. Only honoured when
	// OSAPI_DEV_MODE is set.
	SkipTLSVerify bool

	// HTTPTimeout: overall timeout of a single HTTP exchange.
	HTTPTimeout time.Duration `validate:"gte=0"`
	// RetryMax: maximum number of retries for transient failures (>=500, 429,
	// and connection errors). 0 disables retries.
	RetryMax int `validate:"gte=0"`
	// RetryWaitMin: minimum backoff between retries.
	RetryWaitMin time.Duration `validate:"gte=0"`
	// RetryWaitMax: maximum backoff between retries.
	RetryWaitMax time.Duration `validate:"gte=0"`
	// RateLimit: maximum requests per second sent by one client. 0 disables
	// the limit.
	RateLimit int `validate:"gte=0"`
	// Metrics: optional collector of per-endpoint request metrics.
	Metrics *MetricsCollector
	// Debug: enables HTTP request/response logging when a Logger is provided.
	Debug bool
	// Logger: optional structured logger.
	Logger Logger
	// UserAgent: overrides the default User-Agent header.
	UserAgent string
	// Headers: extra headers set on every request, e.g. a proxy token.
	Headers map[string]string
}

var configValidator = validator.New(validator.WithRequiredStructEnabled())

// Validate checks the configuration and returns a ConfigurationError
// describing the first problem found.
func (c *Config) Validate() error {
	if c == nil {
		return &ConfigurationError{Field: "Config", Err: ErrConfigRequired}
	}

	err := configValidator.Struct(c)
	if err != nil {
		var validationErrs validator.ValidationErrors
		if errors.As(err, &validationErrs) && len(validationErrs) > 0 {
			fieldErr := validationErrs[0]

			return &ConfigurationError{
				Field: fieldErr.Field(),
				Value: fmt.Sprint(fieldErr.Value()),
				Err:   fmt.Errorf("failed %q validation", fieldErr.Tag()),
			}
		}

		return &ConfigurationError{Field: "Config", Err: err}
	}

	if c.Endpoint == "" && c.AuthURL == "" {
		return &ConfigurationError{Field: "Endpoint", Err: ErrNoAuthConfigured}
	}

	return nil
}

// UsesIdentity reports whether the configuration selects the identity method.
func (c *Config) UsesIdentity() bool {
	return c.Endpoint == "" && c.AuthURL != ""
}
