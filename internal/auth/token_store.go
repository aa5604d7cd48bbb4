// Package auth persists the token pair and coordinates refreshing it.
package auth

import (
	"fmt"
	"log/slog"
	"strconv"
	"sync"
	"time"

	"github.com/netplus/netprep/internal/storage"
)

// TokenStore keeps the token pair in one of two scopes. The durable scope is authoritative
// when the remember-me flag is set, otherwise the session scope is.
type TokenStore struct {
	mu      sync.Mutex
	durable storage.Storage
	session storage.Storage
	now     func() time.Time
}

func NewTokenStore(durable, session storage.Storage) *TokenStore {
	return &TokenStore{
		durable: durable,
		session: session,
		now:     time.Now,
	}
}

// RememberMe reports whether the durable scope is authoritative.
func (s *TokenStore) RememberMe() bool {
	return storage.Lookup(s.durable, KeyRememberMe) != ""
}

// Authoritative returns the scope rotated tokens must be written to.
func (s *TokenStore) Authoritative() storage.Storage {
	if s.RememberMe() {
		return s.durable
	}
	return s.session
}

// AccessToken reads the durable scope first, then the session scope.
func (s *TokenStore) AccessToken() string {
	return s.lookup(KeyToken)
}

// RefreshToken reads the durable scope first, then the session scope.
func (s *TokenStore) RefreshToken() string {
	return s.lookup(KeyRefreshToken)
}

// User returns the serialized user object saved at login.
func (s *TokenStore) User() string {
	return s.lookup(KeyUser)
}

func (s *TokenStore) lookup(key string) string {
	if v := storage.Lookup(s.durable, key); v != "" {
		return v
	}
	return storage.Lookup(s.session, key)
}

// StoreAuth saves a login result into the scope chosen by rememberMe.
func (s *TokenStore) StoreAuth(tokens Tokens, user string, rememberMe bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	// only one scope may hold a session
	s.clear()

	scope := s.session
	if rememberMe {
		scope = s.durable
		if err := s.durable.Set(KeyRememberMe, "true"); err != nil {
			return fmt.Errorf("auth: store remember-me: %w", err)
		}
	}

	if err := scope.Set(KeyToken, tokens.AccessToken); err != nil {
		return fmt.Errorf("auth: store token: %w", err)
	}
	if user != "" {
		if err := scope.Set(KeyUser, user); err != nil {
			return fmt.Errorf("auth: store user: %w", err)
		}
	}
	if tokens.RefreshToken != "" {
		if err := scope.Set(KeyRefreshToken, tokens.RefreshToken); err != nil {
			return fmt.Errorf("auth: store refresh token: %w", err)
		}
	}

	s.TouchActivity()
	return nil
}

// Rotate writes refreshed tokens into the authoritative scope. An empty refresh token
// leaves the stored one in place.
func (s *TokenStore) Rotate(tokens Tokens) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.rotate(tokens)
}

// RotateFrom rotates only while refreshToken is still the stored refresh token.
// It reports false when a logout or a new login replaced the session in the meantime.
func (s *TokenStore) RotateFrom(refreshToken string, tokens Tokens) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.lookup(KeyRefreshToken) != refreshToken {
		return false, nil
	}
	return true, s.rotate(tokens)
}

// ClearFrom clears auth state only while refreshToken is still the stored refresh token.
func (s *TokenStore) ClearFrom(refreshToken string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.lookup(KeyRefreshToken) != refreshToken {
		return false
	}
	s.clear()
	return true
}

func (s *TokenStore) rotate(tokens Tokens) error {
	scope := s.Authoritative()
	if err := scope.Set(KeyToken, tokens.AccessToken); err != nil {
		return fmt.Errorf("auth: rotate token: %w", err)
	}
	if tokens.RefreshToken != "" {
		if err := scope.Set(KeyRefreshToken, tokens.RefreshToken); err != nil {
			return fmt.Errorf("auth: rotate refresh token: %w", err)
		}
	}
	return nil
}

// Clear removes every auth key from both scopes.
func (s *TokenStore) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.clear()
}

func (s *TokenStore) clear() {
	for _, scope := range []storage.Storage{s.durable, s.session} {
		for _, key := range allKeys {
			if err := scope.Remove(key); err != nil {
				slog.Warn("auth clear", "key", key, "error", err)
			}
		}
	}
}

// TouchActivity records now as the last user activity.
func (s *TokenStore) TouchActivity() {
	ts := strconv.FormatInt(s.now().UnixMilli(), 10)
	if err := s.durable.Set(KeyLastActivity, ts); err != nil {
		slog.Warn("auth touch activity", "error", err)
	}
}

// IsInactive reports whether more than timeout has passed since the last activity.
// Without a recorded activity the session is considered active.
func (s *TokenStore) IsInactive(timeout time.Duration) bool {
	raw := storage.Lookup(s.durable, KeyLastActivity)
	if raw == "" {
		return false
	}
	ms, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return false
	}
	return s.now().Sub(time.UnixMilli(ms)) > timeout
}
