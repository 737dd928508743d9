package osapi

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/fivetwenty-io/osapi/internal/constants"
)

// CacheType names a token cache backend.
type CacheType string

// Token cache backends.
const (
	CacheTypeMemory CacheType = "memory"
	CacheTypeFile   CacheType = "file"
	CacheTypeNATS   CacheType = "nats"
	CacheTypeNone   CacheType = "none"
)

// Static errors for err113 compliance.
var (
	ErrNATSConfigRequired    = errors.New("NATS configuration required for NATS cache")
	ErrFileConfigRequired    = errors.New("file path required for file cache")
	ErrUnsupportedCacheType  = errors.New("unsupported cache type")
	ErrCacheDisabled         = errors.New("cache disabled")
	ErrKeyNotFoundInAnyCache = errors.New("key not found in any cache")
)

// CacheConfig selects a token cache backend. Fields that do not apply to
// Type are ignored.
type CacheConfig struct {
	Type CacheType

	// MaxEntries bounds the memory backend.
	MaxEntries int
	// Sweep is how often the memory backend drops expired tokens on write.
	// Zero disables sweeping.
	Sweep time.Duration

	// Path is the YAML file of the file backend.
	Path string

	// NATS configures the nats backend.
	NATS *NATSKVConfig

	// TTL is the bucket TTL of the nats backend when NATS.TTL is unset.
	TTL time.Duration
}

// DefaultCacheConfig is an in-process cache sized for a handful of tokens.
func DefaultCacheConfig() *CacheConfig {
	return &CacheConfig{
		Type:       CacheTypeMemory,
		MaxEntries: constants.DefaultCacheSize,
		Sweep:      time.Minute,
		TTL:        constants.DefaultCacheTTL,
	}
}

type cacheConstructor func(ctx context.Context, config *CacheConfig) (Cache, error)

var cacheConstructors = map[CacheType]cacheConstructor{
	CacheTypeMemory: newMemoryBackend,
	CacheTypeFile:   newFileBackend,
	CacheTypeNATS:   newNATSBackend,
	CacheTypeNone: func(context.Context, *CacheConfig) (Cache, error) {
		return NewNoOpCache(), nil
	},
}

// NewCacheFromConfig builds the backend named by config.Type. A nil config
// yields DefaultCacheConfig.
func NewCacheFromConfig(ctx context.Context, config *CacheConfig) (Cache, error) {
	if config == nil {
		config = DefaultCacheConfig()
	}

	construct, ok := cacheConstructors[config.Type]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedCacheType, config.Type)
	}

	return construct(ctx, config)
}

func newMemoryBackend(_ context.Context, config *CacheConfig) (Cache, error) {
	cache := NewMemoryCache(config.MaxEntries)
	cache.cleanupInterval = config.Sweep

	return cache, nil
}

func newFileBackend(_ context.Context, config *CacheConfig) (Cache, error) {
	if config.Path == "" {
		return nil, ErrFileConfigRequired
	}

	return NewFileCache(config.Path), nil
}

func newNATSBackend(ctx context.Context, config *CacheConfig) (Cache, error) {
	if config.NATS == nil {
		return nil, ErrNATSConfigRequired
	}

	natsConfig := *config.NATS
	if natsConfig.TTL == 0 {
		natsConfig.TTL = config.TTL
	}

	cache, err := NewNATSKVCache(ctx, &natsConfig)
	if err != nil {
		return nil, err
	}

	return cache, nil
}

// NoOpCache never stores anything; every lookup misses.
type NoOpCache struct{}

// NewNoOpCache returns a cache that disables token caching.
func NewNoOpCache() *NoOpCache {
	return &NoOpCache{}
}

func (c *NoOpCache) Get(context.Context, string) (*CacheEntry, error) { return nil, ErrCacheDisabled }

func (c *NoOpCache) Set(context.Context, string, *CacheEntry) error { return nil }

func (c *NoOpCache) Delete(context.Context, string) error { return nil }

func (c *NoOpCache) Clear(context.Context) error { return nil }

func (c *NoOpCache) Has(context.Context, string) bool { return false }

// CacheBuilder assembles a CacheConfig fluently, starting from
// DefaultCacheConfig.
type CacheBuilder struct {
	config CacheConfig
}

// NewCacheBuilder starts a builder for the default memory backend.
func NewCacheBuilder() *CacheBuilder {
	return &CacheBuilder{config: *DefaultCacheConfig()}
}

func (b *CacheBuilder) WithType(cacheType CacheType) *CacheBuilder {
	b.config.Type = cacheType

	return b
}

// WithMemoryLimits bounds the memory backend.
func (b *CacheBuilder) WithMemoryLimits(maxEntries int, sweep time.Duration) *CacheBuilder {
	b.config.MaxEntries = maxEntries
	b.config.Sweep = sweep

	return b
}

func (b *CacheBuilder) WithFilePath(path string) *CacheBuilder {
	b.config.Path = path

	return b
}

func (b *CacheBuilder) WithNATSConfig(config *NATSKVConfig) *CacheBuilder {
	b.config.NATS = config

	return b
}

// WithTTL sets the fallback nats bucket TTL.
func (b *CacheBuilder) WithTTL(ttl time.Duration) *CacheBuilder {
	b.config.TTL = ttl

	return b
}

// Build constructs the configured backend.
func (b *CacheBuilder) Build(ctx context.Context) (Cache, error) {
	config := b.config

	return NewCacheFromConfig(ctx, &config)
}

// CacheChain layers caches, fastest first. A hit in a later layer is copied
// into the earlier ones; writes and deletes go to every layer.
type CacheChain struct {
	caches []Cache
}

// NewCacheChain creates a chain over caches.
func NewCacheChain(caches ...Cache) *CacheChain {
	return &CacheChain{caches: caches}
}

// Get returns the entry from the first layer holding it.
func (c *CacheChain) Get(ctx context.Context, key string) (*CacheEntry, error) {
	for i, cache := range c.caches {
		entry, err := cache.Get(ctx, key)
		if err != nil {
			continue
		}

		for _, earlier := range c.caches[:i] {
			_ = earlier.Set(ctx, key, entry)
		}

		return entry, nil
	}

	return nil, fmt.Errorf("%w: %s", ErrKeyNotFoundInAnyCache, key)
}

// Set stores entry in every layer.
func (c *CacheChain) Set(ctx context.Context, key string, entry *CacheEntry) error {
	return c.each(func(cache Cache) error { return cache.Set(ctx, key, entry) })
}

// Delete removes key from every layer.
func (c *CacheChain) Delete(ctx context.Context, key string) error {
	return c.each(func(cache Cache) error { return cache.Delete(ctx, key) })
}

// Clear empties every layer.
func (c *CacheChain) Clear(ctx context.Context) error {
	return c.each(func(cache Cache) error { return cache.Clear(ctx) })
}

// Has reports whether any layer holds key.
func (c *CacheChain) Has(ctx context.Context, key string) bool {
	for _, cache := range c.caches {
		if cache.Has(ctx, key) {
			return true
		}
	}

	return false
}

// Layers returns the chained caches, fastest first.
func (c *CacheChain) Layers() []Cache {
	return append([]Cache(nil), c.caches...)
}

func (c *CacheChain) each(fn func(Cache) error) error {
	errs := make([]error, 0, len(c.caches))
	for _, cache := range c.caches {
		errs = append(errs, fn(cache))
	}

	return errors.Join(errs...)
}
