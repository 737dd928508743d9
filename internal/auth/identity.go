package auth

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/fivetwenty-io/osapi/internal/constants"
	"github.com/fivetwenty-io/osapi/pkg/osapi"
)

// IdentityConfig configures the Identity (Keystone v3) method.
type IdentityConfig struct {
	AuthURL                     string
	Username                    string
	Password                    string
	UserDomainName              string
	ProjectID                   string
	ProjectName                 string
	ProjectDomainName           string
	ApplicationCredentialID     string
	ApplicationCredentialSecret string
	Region                      string
	Interface                   string

	// Cache optionally shares issued tokens with other clients.
	Cache osapi.Cache
	// Logger receives debug messages about token handling.
	Logger osapi.Logger
}

// Identity authenticates against Keystone v3 and resolves endpoints from
// the service catalog returned with the token.
type Identity struct {
	config    IdentityConfig
	tokensURL string
	logger    osapi.Logger
	now       func() time.Time

	store   *TokenStore
	mutex   sync.Mutex
	catalog Catalog
}

var (
	_ osapi.AuthMethod  = (*Identity)(nil)
	_ osapi.Invalidator = (*Identity)(nil)
)

// IdentityOption configures an Identity.
type IdentityOption func(*Identity)

// WithClock overrides the time source used for expiry checks.
func WithClock(now func() time.Time) IdentityOption {
	return func(i *Identity) {
		i.now = now
	}
}

// NewIdentity validates config and creates the method. No request is sent.
func NewIdentity(config IdentityConfig, opts ...IdentityOption) (*Identity, error) {
	if config.AuthURL == "" {
		return nil, &osapi.ConfigurationError{Field: "auth_url", Err: osapi.ErrAuthURLRequired}
	}

	authURL, err := ParseEndpoint(config.AuthURL)
	if err != nil {
		return nil, &osapi.ConfigurationError{Field: "auth_url", Value: config.AuthURL, Err: err}
	}

	if config.Username == "" && config.ApplicationCredentialID == "" {
		return nil, &osapi.ConfigurationError{Field: "username", Err: osapi.ErrMissingField}
	}

	if config.UserDomainName == "" {
		config.UserDomainName = constants.DefaultDomainName
	}

	if config.ProjectDomainName == "" {
		config.ProjectDomainName = constants.DefaultDomainName
	}

	if config.Interface == "" {
		config.Interface = constants.InterfacePublic
	}

	identity := &Identity{
		config:    config,
		tokensURL: tokensURL(authURL),
		logger:    osapi.LoggerOrNoop(config.Logger),
		now:       time.Now,
		store:     NewTokenStore(),
	}

	for _, opt := range opts {
		opt(identity)
	}

	return identity, nil
}

// TokensURL returns the URL tokens are requested from.
func (i *Identity) TokensURL() string {
	return i.tokensURL
}

// Token returns a valid token, authenticating when the cached one needs a refresh.
func (i *Identity) Token(ctx context.Context, transport osapi.Transport) (*osapi.Token, error) {
	i.mutex.Lock()
	defer i.mutex.Unlock()

	return i.tokenLocked(ctx, transport)
}

// Endpoint resolves serviceType from the catalog of the current token.
func (i *Identity) Endpoint(ctx context.Context, serviceType string, transport osapi.Transport) (*url.URL, error) {
	i.mutex.Lock()
	defer i.mutex.Unlock()

	_, err := i.tokenLocked(ctx, transport)
	if err != nil {
		return nil, err
	}

	endpoint, err := i.catalog.Find(serviceType, i.config.Interface, i.config.Region)
	if err != nil {
		return nil, &osapi.AuthenticationError{ServiceType: serviceType, Err: err}
	}

	return endpoint, nil
}

// Catalog returns the catalog of the current token, if any.
func (i *Identity) Catalog() Catalog {
	i.mutex.Lock()
	defer i.mutex.Unlock()

	return i.catalog
}

// Invalidate drops the current token locally and from the shared cache.
func (i *Identity) Invalidate() {
	i.mutex.Lock()
	defer i.mutex.Unlock()

	i.store.Clear()
	i.catalog = nil

	if i.config.Cache != nil {
		ctx, cancel := context.WithTimeout(context.Background(), constants.ShortHTTPTimeout)
		defer cancel()

		_ = i.config.Cache.Delete(ctx, i.cacheKey())
	}
}

func (i *Identity) tokenLocked(ctx context.Context, transport osapi.Transport) (*osapi.Token, error) {
	cached := i.store.Get()
	if !NeedsRefresh(cached, i.now()) {
		return cached, nil
	}

	issued, err := i.fromCache(ctx)
	if err != nil {
		issued, err = i.authenticate(ctx, transport)
		if err != nil {
			return nil, err
		}

		i.toCache(ctx, issued)
	}

	i.store.Set(issued.Token)
	i.catalog = issued.Catalog

	return issued.Token, nil
}

type issuedToken struct {
	Token   *osapi.Token `json:"token"`
	Catalog Catalog      `json:"catalog"`
}

func (i *Identity) fromCache(ctx context.Context) (*issuedToken, error) {
	if i.config.Cache == nil {
		return nil, osapi.ErrCacheDisabled
	}

	entry, err := i.config.Cache.Get(ctx, i.cacheKey())
	if err != nil {
		return nil, err
	}

	var issued issuedToken

	err = json.Unmarshal(entry.Data, &issued)
	if err != nil {
		return nil, fmt.Errorf("decoding cached token: %w", err)
	}

	if NeedsRefresh(issued.Token, i.now()) {
		return nil, osapi.ErrCacheEntryExpired
	}

	i.logger.Debug("Token cache hit", map[string]interface{}{
		"auth_url":   i.tokensURL,
		"expires_at": issued.Token.ExpiresAt,
	})

	return &issued, nil
}

func (i *Identity) toCache(ctx context.Context, issued *issuedToken) {
	if i.config.Cache == nil {
		return
	}

	data, err := json.Marshal(issued)
	if err != nil {
		return
	}

	err = i.config.Cache.Set(ctx, i.cacheKey(), &osapi.CacheEntry{
		Data:      data,
		ExpiresAt: issued.Token.ExpiresAt,
	})
	if err != nil {
		i.logger.Warn("Failed to cache token", map[string]interface{}{"error": err.Error()})
	}
}

func (i *Identity) authenticate(ctx context.Context, transport osapi.Transport) (*issuedToken, error) {
	if i.config.Password == "" && i.config.ApplicationCredentialSecret == "" {
		return nil, &osapi.AuthenticationError{Err: osapi.ErrNoCredentials}
	}

	body, err := json.Marshal(i.authRequest())
	if err != nil {
		return nil, fmt.Errorf("encoding auth request: %w", err)
	}

	resp, err := transport.Do(ctx, &osapi.Request{
		Method:  http.MethodPost,
		URL:     i.tokensURL,
		Headers: http.Header{"Content-Type": []string{"application/json"}},
		Body:    body,
	})
	if err != nil {
		return nil, &osapi.AuthenticationError{Err: err}
	}

	value := resp.Headers.Get(constants.HeaderSubjectToken)
	if value == "" {
		return nil, &osapi.AuthenticationError{Err: osapi.ErrNoTokenInResponse}
	}

	var root tokenRoot

	err = json.Unmarshal(resp.Body, &root)
	if err != nil {
		return nil, &osapi.AuthenticationError{
			Err: osapi.NewDecodeError(http.MethodPost, i.tokensURL, resp.StatusCode, err),
		}
	}

	token := &osapi.Token{Value: value, ExpiresAt: root.Token.ExpiresAt}

	i.logger.Debug("Token issued", map[string]interface{}{
		"auth_url":   i.tokensURL,
		"expires_at": token.ExpiresAt,
		"services":   len(root.Token.Catalog),
	})

	return &issuedToken{Token: token, Catalog: root.Token.Catalog}, nil
}

func (i *Identity) authRequest() authRequest {
	var request authRequest

	if i.config.ApplicationCredentialID != "" {
		request.Auth.Identity = identityBlock{
			Methods: []string{"application_credential"},
			ApplicationCredential: &applicationCredential{
				ID:     i.config.ApplicationCredentialID,
				Secret: i.config.ApplicationCredentialSecret,
			},
		}

		return request
	}

	request.Auth.Identity = identityBlock{
		Methods: []string{"password"},
		Password: &passwordBlock{
			User: userBlock{
				Name:     i.config.Username,
				Domain:   &domainBlock{Name: i.config.UserDomainName},
				Password: i.config.Password,
			},
		},
	}

	switch {
	case i.config.ProjectID != "":
		request.Auth.Scope = &scopeBlock{Project: &projectBlock{ID: i.config.ProjectID}}
	case i.config.ProjectName != "":
		request.Auth.Scope = &scopeBlock{Project: &projectBlock{
			Name:   i.config.ProjectName,
			Domain: &domainBlock{Name: i.config.ProjectDomainName},
		}}
	}

	return request
}

func (i *Identity) cacheKey() string {
	hash := sha256.Sum256([]byte(strings.Join([]string{
		i.tokensURL,
		i.config.Username,
		i.config.UserDomainName,
		i.config.ProjectID,
		i.config.ProjectName,
		i.config.ProjectDomainName,
		i.config.ApplicationCredentialID,
	}, "\x00")))

	return constants.TokenCacheKeyPrefix + hex.EncodeToString(hash[:])
}

func tokensURL(authURL *url.URL) string {
	base := strings.TrimRight(authURL.String(), "/")
	if !strings.HasSuffix(base, "/"+constants.IdentityVersionSuffix) {
		base += "/" + constants.IdentityVersionSuffix
	}

	return base + "/" + constants.IdentityTokensPath
}

func errEndpointNotFound(serviceType, iface, region string) error {
	if region == "" {
		return fmt.Errorf("%w: type %q, interface %q", osapi.ErrEndpointNotFound, serviceType, iface)
	}

	return fmt.Errorf("%w: type %q, interface %q, region %q", osapi.ErrEndpointNotFound, serviceType, iface, region)
}

var errEmptyEnv = errors.New("environment variable not set")

// IdentityConfigFromLookup builds an IdentityConfig from OS_* variables read
// through lookup.
func IdentityConfigFromLookup(lookup func(string) string) (IdentityConfig, error) {
	config := IdentityConfig{
		AuthURL:                     lookup("OS_AUTH_URL"),
		Username:                    lookup("OS_USERNAME"),
		Password:                    lookup("OS_PASSWORD"),
		UserDomainName:              lookup("OS_USER_DOMAIN_NAME"),
		ProjectID:                   lookup("OS_PROJECT_ID"),
		ProjectName:                 lookup("OS_PROJECT_NAME"),
		ProjectDomainName:           lookup("OS_PROJECT_DOMAIN_NAME"),
		ApplicationCredentialID:     lookup("OS_APPLICATION_CREDENTIAL_ID"),
		ApplicationCredentialSecret: lookup("OS_APPLICATION_CREDENTIAL_SECRET"),
		Region:                      lookup("OS_REGION_NAME"),
		Interface:                   lookup("OS_INTERFACE"),
	}

	if config.AuthURL == "" {
		return config, &osapi.ConfigurationError{
			Field: "OS_AUTH_URL",
			Err:   fmt.Errorf("%w: %w", osapi.ErrAuthURLRequired, errEmptyEnv),
		}
	}

	return config, nil
}

// IdentityFromEnv builds an Identity from the OS_* environment variables.
func IdentityFromEnv(opts ...IdentityOption) (*Identity, error) {
	config, err := IdentityConfigFromLookup(os.Getenv)
	if err != nil {
		return nil, err
	}

	return NewIdentity(config, opts...)
}
