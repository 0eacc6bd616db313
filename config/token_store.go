package config

import (
	"fmt"
	"sync"

	"github.com/redis/go-redis/v9"
	"gopkg.in/yaml.v3"

	"github.com/socialfeed/feedclient/auth"
	"github.com/socialfeed/feedclient/auth/store"
)

var (
	tokenStoreFactoriesMu sync.RWMutex
	tokenStoreFactories   = make(map[string]TokenStoreFactory)
)

// RegisterTokenStoreFactory makes a TokenStoreFactory available by the provided name in configuration.
//
// If RegisterTokenStoreFactory is called twice with the same name or if factory is nil,
// it panics.
func RegisterTokenStoreFactory(name string, factory TokenStoreFactory) {
	tokenStoreFactoriesMu.Lock()
	defer tokenStoreFactoriesMu.Unlock()

	if factory == nil {
		panic("registering token store factory: factory is nil")
	}

	if _, dup := tokenStoreFactories[name]; dup {
		panic("registering token store factory: registration called twice for factory " + name)
	}

	tokenStoreFactories[name] = factory
}

func init() {
	RegisterTokenStoreFactory("memory", &memoryTokenStore{})
	RegisterTokenStoreFactory("file", &fileTokenStore{})
	RegisterTokenStoreFactory("redis", &redisTokenStore{})
}

// TokenStore is the configuration for an auth.TokenStore.
type TokenStore struct {
	Type   string
	Config TokenStoreFactory
}

func (c *TokenStore) UnmarshalYAML(value *yaml.Node) error {
	var rawConfig rawConfig

	err := value.Decode(&rawConfig)
	if err != nil {
		return err
	}

	tokenStoreFactoriesMu.RLock()
	factory, ok := tokenStoreFactories[rawConfig.Type]
	tokenStoreFactoriesMu.RUnlock()

	if !ok {
		return fmt.Errorf("unknown token store type: %s", rawConfig.Type)
	}

	factory = factory.New()

	err = decode(rawConfig.Config, factory)
	if err != nil {
		return fmt.Errorf("token store: %s: %w", rawConfig.Type, err)
	}

	c.Type = rawConfig.Type
	c.Config = factory

	return nil
}

// TokenStoreFactory creates a new auth.TokenStore.
type TokenStoreFactory interface {
	// New returns an empty factory to decode configuration into.
	New() TokenStoreFactory
	CreateTokenStore() (auth.TokenStore, error)
	Validate() error
}

type memoryTokenStore struct{}

func (c *memoryTokenStore) New() TokenStoreFactory {
	return &memoryTokenStore{}
}

func (c *memoryTokenStore) CreateTokenStore() (auth.TokenStore, error) {
	return &store.InMemoryTokenStore{}, nil
}

func (c *memoryTokenStore) Validate() error {
	return nil
}

type fileTokenStore struct {
	Path string `mapstructure:"path"`
}

func (c *fileTokenStore) New() TokenStoreFactory {
	return &fileTokenStore{}
}

func (c *fileTokenStore) CreateTokenStore() (auth.TokenStore, error) {
	return store.NewFileTokenStore(c.Path), nil
}

func (c *fileTokenStore) Validate() error {
	if c.Path == "" {
		return fmt.Errorf("token store: file: path is required")
	}

	return nil
}

type redisTokenStore struct {
	Addr     string `mapstructure:"addr"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
	Prefix   string `mapstructure:"prefix"`
}

func (c *redisTokenStore) New() TokenStoreFactory {
	return &redisTokenStore{}
}

func (c *redisTokenStore) CreateTokenStore() (auth.TokenStore, error) {
	client := redis.NewUniversalClient(&redis.UniversalOptions{
		Addrs:    []string{c.Addr},
		Password: c.Password,
		DB:       c.DB,
	})

	return redisStore{
		RedisTokenStore: store.NewRedisTokenStore(client, c.Prefix),
		client:          client,
	}, nil
}

// redisStore owns the client it was created with.
type redisStore struct {
	store.RedisTokenStore

	client redis.UniversalClient
}

// Close closes the Redis client.
func (s redisStore) Close() error {
	return s.client.Close()
}

func (c *redisTokenStore) Validate() error {
	if c.Addr == "" {
		return fmt.Errorf("token store: redis: addr is required")
	}

	if c.DB < 0 {
		return fmt.Errorf("token store: redis: db must not be negative")
	}

	return nil
}
