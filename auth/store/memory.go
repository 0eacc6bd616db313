package store

import (
	"context"
	"sync"

	"github.com/socialfeed/feedclient/auth"
)

// InMemoryTokenStore keeps tokens in process memory.
//
// The zero value is ready to use.
type InMemoryTokenStore struct {
	entries map[string]string

	initOnce sync.Once
	mu       sync.RWMutex
}

func (s *InMemoryTokenStore) init() {
	s.initOnce.Do(func() {
		if s.entries == nil {
			s.entries = make(map[string]string)
		}
	})
}

func (s *InMemoryTokenStore) get(key string) string {
	s.init()
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.entries[key]
}

func (s *InMemoryTokenStore) set(key string, value string) {
	s.init()
	s.mu.Lock()
	defer s.mu.Unlock()

	s.entries[key] = value
}

func (s *InMemoryTokenStore) delete(key string) {
	s.init()
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.entries, key)
}

// AccessToken implements auth.TokenStore.
func (s *InMemoryTokenStore) AccessToken(_ context.Context) (string, error) {
	return s.get(auth.AccessTokenKey), nil
}

// RefreshToken implements auth.TokenStore.
func (s *InMemoryTokenStore) RefreshToken(_ context.Context) (string, error) {
	return s.get(auth.RefreshTokenKey), nil
}

// SetAccessToken implements auth.TokenStore.
func (s *InMemoryTokenStore) SetAccessToken(_ context.Context, token string) error {
	s.set(auth.AccessTokenKey, token)

	return nil
}

// SetRefreshToken implements auth.TokenStore.
func (s *InMemoryTokenStore) SetRefreshToken(_ context.Context, token string) error {
	s.set(auth.RefreshTokenKey, token)

	return nil
}

// DeleteAccessToken implements auth.TokenStore.
func (s *InMemoryTokenStore) DeleteAccessToken(_ context.Context) error {
	s.delete(auth.AccessTokenKey)

	return nil
}

// DeleteRefreshToken implements auth.TokenStore.
func (s *InMemoryTokenStore) DeleteRefreshToken(_ context.Context) error {
	s.delete(auth.RefreshTokenKey)

	return nil
}
