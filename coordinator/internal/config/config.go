package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Default values for the coordinator configuration.
const (
	DefaultHTTPPort = 8080
	DefaultHeader   = "X-API-Key"
)

// Config is the coordinator configuration.
type Config struct {
	// HTTPPort is the port the REST API and the update stream listen on.
	HTTPPort int `yaml:"http_port"`

	// Auth configures how exporters authenticate.
	Auth AuthConfig `yaml:"auth"`
}

// AuthConfig controls client authentication.
type AuthConfig struct {
	// Mode is one of: apikey | none.
	Mode string `yaml:"mode"`

	// KeyEnv is the name of the environment variable that holds the expected API key.
	KeyEnv string `yaml:"key_env"`

	// Header is the HTTP header to read the key from. Defaults to X-API-Key.
	Header string `yaml:"header"`
}

// Key returns the expected API key resolved from the environment.
func (a AuthConfig) Key() string {
	if a.KeyEnv == "" {
		return ""
	}
	return os.Getenv(a.KeyEnv)
}

// EffectiveHeader returns the configured header name, or DefaultHeader.
func (a AuthConfig) EffectiveHeader() string {
	if a.Header != "" {
		return a.Header
	}
	return DefaultHeader
}

// Load reads and parses the config file at path. A missing path yields the
// defaults.
func Load(path string) (*Config, error) {
	cfg := defaults()
	if path == "" {
		return cfg, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("coordinator config: read %q: %w", path, err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("coordinator config: parse yaml: %w", err)
	}
	if err := validate(cfg); err != nil {
		return nil, fmt.Errorf("coordinator config: %w", err)
	}
	return cfg, nil
}

func defaults() *Config {
	return &Config{HTTPPort: DefaultHTTPPort}
}

func validate(cfg *Config) error {
	if cfg.HTTPPort <= 0 || cfg.HTTPPort > 65535 {
		return fmt.Errorf("http_port %d is out of range [1, 65535]", cfg.HTTPPort)
	}
	switch cfg.Auth.Mode {
	case "apikey", "none", "":
	default:
		return fmt.Errorf("auth.mode %q unknown: want apikey|none", cfg.Auth.Mode)
	}
	if cfg.Auth.Mode == "apikey" && cfg.Auth.KeyEnv == "" {
		return fmt.Errorf("auth.key_env is required when auth.mode is apikey")
	}
	return nil
}
