package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"time"

	"github.com/mitchellh/mapstructure"
	"gopkg.in/yaml.v3"

	"github.com/socialfeed/feedclient/client"
)

// Config collects all configuration options.
type Config struct {
	BaseURL             string        `yaml:"baseURL"`
	Timeout             time.Duration `yaml:"timeout"`
	SingleFlightRefresh bool          `yaml:"singleFlightRefresh"`
	Log                 Log           `yaml:"log"`
	TokenStore          TokenStore    `yaml:"tokenStore"`
}

// Default returns the configuration used without a config file.
// Tokens are kept in a file under the user's config directory.
func Default() (Config, error) {
	dir, err := os.UserConfigDir()
	if err != nil {
		return Config{}, fmt.Errorf("locating config directory: %w", err)
	}

	return Config{
		BaseURL:             client.DefaultBaseURL,
		Timeout:             30 * time.Second,
		SingleFlightRefresh: true,
		Log: Log{
			Level: "info",
		},
		TokenStore: TokenStore{
			Type: "file",
			Config: &fileTokenStore{
				Path: filepath.Join(dir, "feedctl", "tokens.json"),
			},
		},
	}, nil
}

// Load reads the configuration file at path on top of the defaults.
func Load(path string) (Config, error) {
	config, err := Default()
	if err != nil {
		return Config{}, err
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, err
	}

	if err := yaml.Unmarshal(data, &config); err != nil {
		return Config{}, fmt.Errorf("parsing %s: %w", path, err)
	}

	return config, nil
}

// Validate validates the configuration.
func (c Config) Validate() error {
	if c.BaseURL == "" {
		return errors.New("base URL is required")
	}

	u, err := url.Parse(c.BaseURL)
	if err != nil {
		return fmt.Errorf("invalid base URL: %w", err)
	}

	if u.Scheme == "" || u.Host == "" {
		return fmt.Errorf("base URL must be absolute: %s", c.BaseURL)
	}

	if c.Timeout < 0 {
		return errors.New("timeout must not be negative")
	}

	if err := c.Log.Validate(); err != nil {
		return err
	}

	if c.TokenStore.Type == "" || c.TokenStore.Config == nil {
		return errors.New("token store type is required")
	}

	if err := c.TokenStore.Config.Validate(); err != nil {
		return err
	}

	return nil
}

// rawConfig is a general struct to be used by other config structs to unmarshal yaml config first.
type rawConfig struct {
	Type   string                 `yaml:"type"`
	Config map[string]interface{} `yaml:"config"`
}

func decode(input map[string]interface{}, output interface{}) error {
	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		DecodeHook:       mapstructure.StringToTimeDurationHookFunc(),
		ErrorUnused:      true,
		WeaklyTypedInput: true,
		Result:           output,
	})
	if err != nil {
		return err
	}

	return decoder.Decode(input)
}
