package osapi

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/fivetwenty-io/osapi/internal/constants"
	"gopkg.in/yaml.v3"
)

// Cache stores opaque entries shared between clients, such as issued tokens.
type Cache interface {
	Get(ctx context.Context, key string) (*CacheEntry, error)
	Set(ctx context.Context, key string, entry *CacheEntry) error
	Delete(ctx context.Context, key string) error
	Clear(ctx context.Context) error
	Has(ctx context.Context, key string) bool
}

// CacheEntry is a cached value. A zero ExpiresAt never expires.
type CacheEntry struct {
	Data      []byte
	ExpiresAt time.Time
	CreatedAt time.Time
}

// Expired reports whether the entry is expired at now.
func (e *CacheEntry) Expired(now time.Time) bool {
	return !e.ExpiresAt.IsZero() && !now.Before(e.ExpiresAt)
}

// MemoryCache is an in-process Cache bounded by entry count.
type MemoryCache struct {
	mutex           sync.RWMutex
	entries         map[string]*CacheEntry
	maxSize         int
	cleanupInterval time.Duration
	lastCleanup     time.Time
}

// NewMemoryCache creates a memory cache holding at most maxSize entries.
func NewMemoryCache(maxSize int) *MemoryCache {
	if maxSize <= 0 {
		maxSize = constants.DefaultCacheSize
	}

	return &MemoryCache{
		entries:     make(map[string]*CacheEntry),
		maxSize:     maxSize,
		lastCleanup: time.Now(),
	}
}

// Get returns the entry stored under key.
func (c *MemoryCache) Get(ctx context.Context, key string) (*CacheEntry, error) {
	c.mutex.RLock()
	entry, ok := c.entries[key]
	c.mutex.RUnlock()

	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrCacheKeyNotFound, key)
	}

	if entry.Expired(time.Now()) {
		_ = c.Delete(ctx, key)

		return nil, fmt.Errorf("%w: %s", ErrCacheEntryExpired, key)
	}

	return entry, nil
}

// Set stores entry under key, evicting the entry closest to expiry when full.
func (c *MemoryCache) Set(ctx context.Context, key string, entry *CacheEntry) error {
	c.mutex.Lock()
	defer c.mutex.Unlock()

	now := time.Now()

	if c.cleanupInterval > 0 && now.Sub(c.lastCleanup) >= c.cleanupInterval {
		c.cleanupLocked(now)
	}

	if _, exists := c.entries[key]; !exists && len(c.entries) >= c.maxSize {
		c.evictLocked()
	}

	stored := *entry
	if stored.CreatedAt.IsZero() {
		stored.CreatedAt = now
	}

	c.entries[key] = &stored

	return nil
}

// Delete removes key.
func (c *MemoryCache) Delete(ctx context.Context, key string) error {
	c.mutex.Lock()
	defer c.mutex.Unlock()

	delete(c.entries, key)

	return nil
}

// Clear removes all entries.
func (c *MemoryCache) Clear(ctx context.Context) error {
	c.mutex.Lock()
	defer c.mutex.Unlock()

	c.entries = make(map[string]*CacheEntry)

	return nil
}

// Has reports whether a non-expired entry exists for key.
func (c *MemoryCache) Has(ctx context.Context, key string) bool {
	c.mutex.RLock()
	defer c.mutex.RUnlock()

	entry, ok := c.entries[key]

	return ok && !entry.Expired(time.Now())
}

// Len returns the number of stored entries, expired ones included.
func (c *MemoryCache) Len() int {
	c.mutex.RLock()
	defer c.mutex.RUnlock()

	return len(c.entries)
}

// Cleanup removes expired entries.
func (c *MemoryCache) Cleanup() {
	c.mutex.Lock()
	defer c.mutex.Unlock()

	c.cleanupLocked(time.Now())
}

func (c *MemoryCache) cleanupLocked(now time.Time) {
	for key, entry := range c.entries {
		if entry.Expired(now) {
			delete(c.entries, key)
		}
	}

	c.lastCleanup = now
}

func (c *MemoryCache) evictLocked() {
	var (
		victim string
		oldest time.Time
		found  bool
	)

	for key, entry := range c.entries {
		deadline := entry.ExpiresAt
		if deadline.IsZero() {
			continue
		}

		if !found || deadline.Before(oldest) {
			victim, oldest, found = key, deadline, true
		}
	}

	if !found {
		for key, entry := range c.entries {
			if !found || entry.CreatedAt.Before(oldest) {
				victim, oldest, found = key, entry.CreatedAt, true
			}
		}
	}

	if found {
		delete(c.entries, victim)
	}
}

// FileCache persists entries to a YAML file so tokens survive between
// processes. Every operation re-reads the file.
type FileCache struct {
	mutex sync.Mutex
	path  string
}

type fileCacheEntry struct {
	Data      string    `yaml:"data"`
	ExpiresAt time.Time `yaml:"expires_at,omitempty"`
	CreatedAt time.Time `yaml:"created_at"`
}

// NewFileCache creates a cache stored at path. The file is created on first write.
func NewFileCache(path string) *FileCache {
	return &FileCache{path: path}
}

// Path returns the backing file path.
func (c *FileCache) Path() string {
	return c.path
}

// Get returns the entry stored under key.
func (c *FileCache) Get(ctx context.Context, key string) (*CacheEntry, error) {
	c.mutex.Lock()
	defer c.mutex.Unlock()

	entries, err := c.load()
	if err != nil {
		return nil, err
	}

	stored, ok := entries[key]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrCacheKeyNotFound, key)
	}

	data, err := base64.StdEncoding.DecodeString(stored.Data)
	if err != nil {
		return nil, fmt.Errorf("decoding cache entry %s: %w", key, err)
	}

	entry := &CacheEntry{Data: data, ExpiresAt: stored.ExpiresAt, CreatedAt: stored.CreatedAt}
	if entry.Expired(time.Now()) {
		delete(entries, key)
		_ = c.save(entries)

		return nil, fmt.Errorf("%w: %s", ErrCacheEntryExpired, key)
	}

	return entry, nil
}

// Set stores entry under key.
func (c *FileCache) Set(ctx context.Context, key string, entry *CacheEntry) error {
	c.mutex.Lock()
	defer c.mutex.Unlock()

	entries, err := c.load()
	if err != nil {
		return err
	}

	createdAt := entry.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now()
	}

	entries[key] = fileCacheEntry{
		Data:      base64.StdEncoding.EncodeToString(entry.Data),
		ExpiresAt: entry.ExpiresAt,
		CreatedAt: createdAt,
	}

	return c.save(entries)
}

// Delete removes key.
func (c *FileCache) Delete(ctx context.Context, key string) error {
	c.mutex.Lock()
	defer c.mutex.Unlock()

	entries, err := c.load()
	if err != nil {
		return err
	}

	if _, ok := entries[key]; !ok {
		return nil
	}

	delete(entries, key)

	return c.save(entries)
}

// Clear removes the backing file.
func (c *FileCache) Clear(ctx context.Context) error {
	c.mutex.Lock()
	defer c.mutex.Unlock()

	err := os.Remove(c.path)
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("removing cache file: %w", err)
	}

	return nil
}

// Has reports whether a non-expired entry exists for key.
func (c *FileCache) Has(ctx context.Context, key string) bool {
	_, err := c.Get(ctx, key)

	return err == nil
}

func (c *FileCache) load() (map[string]fileCacheEntry, error) {
	entries := make(map[string]fileCacheEntry)

	data, err := os.ReadFile(c.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return entries, nil
		}

		return nil, fmt.Errorf("reading cache file: %w", err)
	}

	err = yaml.Unmarshal(data, &entries)
	if err != nil {
		return nil, fmt.Errorf("parsing cache file: %w", err)
	}

	if entries == nil {
		entries = make(map[string]fileCacheEntry)
	}

	return entries, nil
}

func (c *FileCache) save(entries map[string]fileCacheEntry) error {
	err := os.MkdirAll(filepath.Dir(c.path), constants.ConfigDirPerm)
	if err != nil {
		return fmt.Errorf("creating cache directory: %w", err)
	}

	data, err := yaml.Marshal(entries)
	if err != nil {
		return fmt.Errorf("encoding cache file: %w", err)
	}

	tmp := c.path + ".tmp"

	err = os.WriteFile(tmp, data, constants.ConfigFilePerm)
	if err != nil {
		return fmt.Errorf("writing cache file: %w", err)
	}

	err = os.Rename(tmp, c.path)
	if err != nil {
		return fmt.Errorf("replacing cache file: %w", err)
	}

	return nil
}
