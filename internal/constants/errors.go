package constants

import "errors"

// Configuration errors.
var (
	ErrNoEndpointConfigured = errors.New("no endpoint or auth URL configured, use 'osapi login' or --endpoint")
	ErrUnknownConfigKey     = errors.New("unknown configuration key")
	ErrConfigNotFound       = errors.New("configuration file not found")
)

// Validation errors.
var (
	ErrInvalidSortSpec    = errors.New("invalid sort specification, expected key[:asc|desc]")
	ErrInvalidOutput      = errors.New("invalid output format")
	ErrServiceTypeMissing = errors.New("service type is required")
)
