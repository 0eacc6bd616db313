package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync"

	"github.com/socialfeed/feedclient/auth"
)

// FileTokenStore persists tokens as a JSON document on disk.
//
// Every operation reads the file again, so several processes may share it
// (without coordination, same as browser local storage).
type FileTokenStore struct {
	path string

	mu sync.Mutex
}

// NewFileTokenStore returns a new FileTokenStore writing to path.
func NewFileTokenStore(path string) *FileTokenStore {
	return &FileTokenStore{
		path: path,
	}
}

// Path returns the location of the token file.
func (s *FileTokenStore) Path() string {
	return s.path
}

func (s *FileTokenStore) load() (map[string]string, error) {
	entries := make(map[string]string)

	data, err := os.ReadFile(s.path)
	if errors.Is(err, fs.ErrNotExist) {
		return entries, nil
	}
	if err != nil {
		return nil, fmt.Errorf("reading token file: %w", err)
	}

	if len(data) == 0 {
		return entries, nil
	}

	if err := json.Unmarshal(data, &entries); err != nil {
		return nil, fmt.Errorf("decoding token file %s: %w", s.path, err)
	}

	return entries, nil
}

func (s *FileTokenStore) save(entries map[string]string) error {
	data, err := json.MarshalIndent(entries, "", "  ")
	if err != nil {
		return err
	}

	if err := os.MkdirAll(filepath.Dir(s.path), 0o700); err != nil {
		return fmt.Errorf("creating token directory: %w", err)
	}

	return os.WriteFile(s.path, data, 0o600)
}

func (s *FileTokenStore) get(key string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	entries, err := s.load()
	if err != nil {
		return "", err
	}

	return entries[key], nil
}

func (s *FileTokenStore) update(fn func(entries map[string]string)) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	entries, err := s.load()
	if err != nil {
		return err
	}

	fn(entries)

	return s.save(entries)
}

// AccessToken implements auth.TokenStore.
func (s *FileTokenStore) AccessToken(_ context.Context) (string, error) {
	return s.get(auth.AccessTokenKey)
}

// RefreshToken implements auth.TokenStore.
func (s *FileTokenStore) RefreshToken(_ context.Context) (string, error) {
	return s.get(auth.RefreshTokenKey)
}

// SetAccessToken implements auth.TokenStore.
func (s *FileTokenStore) SetAccessToken(_ context.Context, token string) error {
	return s.update(func(entries map[string]string) {
		entries[auth.AccessTokenKey] = token
	})
}

// SetRefreshToken implements auth.TokenStore.
func (s *FileTokenStore) SetRefreshToken(_ context.Context, token string) error {
	return s.update(func(entries map[string]string) {
		entries[auth.RefreshTokenKey] = token
	})
}

// DeleteAccessToken implements auth.TokenStore.
func (s *FileTokenStore) DeleteAccessToken(_ context.Context) error {
	return s.update(func(entries map[string]string) {
		delete(entries, auth.AccessTokenKey)
	})
}

// DeleteRefreshToken implements auth.TokenStore.
func (s *FileTokenStore) DeleteRefreshToken(_ context.Context) error {
	return s.update(func(entries map[string]string) {
		delete(entries, auth.RefreshTokenKey)
	})
}
