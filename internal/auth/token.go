// Package auth implements the authentication methods used by sessions.
package auth

import (
	"sync"
	"time"

	"github.com/fivetwenty-io/osapi/internal/constants"
	"github.com/fivetwenty-io/osapi/pkg/osapi"
)

// NeedsRefresh reports whether cached must be replaced before it is used at
// now: it is missing, empty, expired, or expires within the refresh buffer.
func NeedsRefresh(cached *osapi.Token, now time.Time) bool {
	return !cached.ValidAt(now, constants.TokenExpirationBuffer)
}

// TokenStore provides thread-safe token storage.
type TokenStore struct {
	mutex sync.RWMutex
	token *osapi.Token
}

// NewTokenStore creates a new token store.
func NewTokenStore() *TokenStore {
	return &TokenStore{}
}

// Get returns the stored token.
func (s *TokenStore) Get() *osapi.Token {
	s.mutex.RLock()
	defer s.mutex.RUnlock()

	return s.token
}

// Set replaces the stored token.
func (s *TokenStore) Set(token *osapi.Token) {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	s.token = token
}

// Clear removes the stored token.
func (s *TokenStore) Clear() {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	s.token = nil
}
