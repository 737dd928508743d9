package constants

import "time"

// File and directory permissions.
const (
	// ConfigDirPerm is the permission for configuration directories.
	ConfigDirPerm = 0750

	// ConfigFilePerm is the permission for configuration and token cache files.
	ConfigFilePerm = 0600
)

// HTTP and network timeouts.
const (
	// DefaultHTTPTimeout is the default timeout for HTTP requests.
	DefaultHTTPTimeout = 30 * time.Second

	// ShortHTTPTimeout is used for quick operations.
	ShortHTTPTimeout = 10 * time.Second
)

// Retry limits.
const (
	// DefaultRetryMax is the default maximum number of retries.
	DefaultRetryMax = 5

	// DefaultRetryWaitMin is the minimum wait time between retries.
	DefaultRetryWaitMin = 1 * time.Second

	// DefaultRetryWaitMax is the maximum wait time between retries.
	DefaultRetryWaitMax = 10 * time.Second

	// ExtendedRetryWaitMax is used for operations that need longer waits.
	ExtendedRetryWaitMax = 30 * time.Second
)

// Token handling.
const (
	// NoAuthToken is the sentinel token sent when no authentication is configured.
	NoAuthToken = "no-auth"

	// TokenExpirationBuffer is the buffer time before token expiration.
	TokenExpirationBuffer = 30 * time.Second
)

// HTTP header names.
const (
	// HeaderAuthToken carries the token on every API request.
	HeaderAuthToken = "X-Auth-Token"

	// HeaderSubjectToken carries the issued token in identity responses.
	HeaderSubjectToken = "X-Subject-Token"

	// HeaderRequestID carries the client-generated global request id.
	HeaderRequestID = "X-OpenStack-Request-ID"

	// HeaderAPIVersion carries the requested microversion.
	HeaderAPIVersion = "OpenStack-API-Version"

	// RequestIDPrefix prefixes generated request ids.
	RequestIDPrefix = "req-"
)

// Service types and endpoint interfaces.
const (
	// ServiceTypeCompute is the catalog type of the compute service.
	ServiceTypeCompute = "compute"

	// ServiceTypeIdentity is the catalog type of the identity service.
	ServiceTypeIdentity = "identity"

	// InterfacePublic is the default endpoint interface.
	InterfacePublic = "public"

	// InterfaceInternal selects internal endpoints.
	InterfaceInternal = "internal"

	// InterfaceAdmin selects admin endpoints.
	InterfaceAdmin = "admin"

	// DefaultDomainName is used when no user or project domain is given.
	DefaultDomainName = "Default"

	// IdentityTokensPath is appended to the identity v3 URL to issue tokens.
	IdentityTokensPath = "auth/tokens"

	// IdentityVersionSuffix is the identity API version path segment.
	IdentityVersionSuffix = "v3"
)

// Query parameter names used by list requests.
const (
	// QueryMarker is the pagination cursor parameter.
	QueryMarker = "marker"

	// QueryLimit is the page size parameter.
	QueryLimit = "limit"

	// QuerySortKey is the sort field parameter.
	QuerySortKey = "sort_key"

	// QuerySortDir is the sort direction parameter.
	QuerySortDir = "sort_dir"
)

// Pagination and display limits.
const (
	// DefaultPageSize is the page size used when walking all pages.
	DefaultPageSize = 100

	// MaxPages bounds how many pages a paginator walks before giving up.
	MaxPages = 1000
)

// Cache sizes and TTLs.
const (
	// DefaultCacheSize is the default cache size limit.
	DefaultCacheSize = 1000

	// DefaultCacheTTL caps how long a shared bucket keeps a token. Keystone
	// issues tokens for 24h by default.
	DefaultCacheTTL = 24 * time.Hour

	// DefaultNATSBucket is the default JetStream key-value bucket for tokens.
	DefaultNATSBucket = "osapi-tokens"

	// TokenCacheKeyPrefix prefixes token cache keys.
	TokenCacheKeyPrefix = "token."
)

// Format constants.
const (
	// FormatJSON for JSON output format.
	FormatJSON = "json"

	// FormatYAML for YAML output format.
	FormatYAML = "yaml"

	// FormatTable for table output format.
	FormatTable = "table"

	// JSONIndentSize is the number of spaces for JSON indentation.
	JSONIndentSize = 2
)

// UI and display constants.
const (
	// NotAvailable is used when information is not available.
	NotAvailable = "N/A"

	// Never is shown for tokens without expiration.
	Never = "never"

	// MaskedSecret is used to hide sensitive information.
	MaskedSecret = "***"
)
