package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"

	"github.com/socialfeed/feedclient/auth"
)

// DefaultRedisPrefix is the key prefix used when none is configured.
const DefaultRedisPrefix = "feedclient"

// RedisTokenStore keeps tokens in Redis so that several processes can share a session.
type RedisTokenStore struct {
	client redis.UniversalClient
	prefix string
}

// NewRedisTokenStore returns a new RedisTokenStore.
func NewRedisTokenStore(client redis.UniversalClient, prefix string) RedisTokenStore {
	if prefix == "" {
		prefix = DefaultRedisPrefix
	}

	return RedisTokenStore{
		client: client,
		prefix: prefix,
	}
}

func (s RedisTokenStore) key(name string) string {
	return s.prefix + ":" + name
}

func (s RedisTokenStore) get(ctx context.Context, name string) (string, error) {
	value, err := s.client.Get(ctx, s.key(name)).Result()
	if errors.Is(err, redis.Nil) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("reading %s from redis: %w", name, err)
	}

	return value, nil
}

func (s RedisTokenStore) set(ctx context.Context, name string, value string) error {
	if err := s.client.Set(ctx, s.key(name), value, 0).Err(); err != nil {
		return fmt.Errorf("writing %s to redis: %w", name, err)
	}

	return nil
}

func (s RedisTokenStore) delete(ctx context.Context, name string) error {
	if err := s.client.Del(ctx, s.key(name)).Err(); err != nil {
		return fmt.Errorf("deleting %s from redis: %w", name, err)
	}

	return nil
}

// AccessToken implements auth.TokenStore.
func (s RedisTokenStore) AccessToken(ctx context.Context) (string, error) {
	return s.get(ctx, auth.AccessTokenKey)
}

// RefreshToken implements auth.TokenStore.
func (s RedisTokenStore) RefreshToken(ctx context.Context) (string, error) {
	return s.get(ctx, auth.RefreshTokenKey)
}

// SetAccessToken implements auth.TokenStore.
func (s RedisTokenStore) SetAccessToken(ctx context.Context, token string) error {
	return s.set(ctx, auth.AccessTokenKey, token)
}

// SetRefreshToken implements auth.TokenStore.
func (s RedisTokenStore) SetRefreshToken(ctx context.Context, token string) error {
	return s.set(ctx, auth.RefreshTokenKey, token)
}

// DeleteAccessToken implements auth.TokenStore.
func (s RedisTokenStore) DeleteAccessToken(ctx context.Context) error {
	return s.delete(ctx, auth.AccessTokenKey)
}

// DeleteRefreshToken implements auth.TokenStore.
func (s RedisTokenStore) DeleteRefreshToken(ctx context.Context) error {
	return s.delete(ctx, auth.RefreshTokenKey)
}
