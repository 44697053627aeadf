// Package config loads and validates the gate's YAML configuration.
package config

import (
	"fmt"
	"os"
	"time"

	"github.com/goccy/go-yaml"

	"github.com/quernstone/portcullis/internal/core"
)

// EnvAuthSecret overrides auth.secret from the environment so the shared
// signing secret can stay out of config files. The root command loads
// .env files before any config is read.
const EnvAuthSecret = "PORTCULLIS_AUTH_SECRET"

// DefaultListen is the listen address used when the file leaves it empty.
const DefaultListen = ":8475"

// Directory backends.
const (
	BackendMemory = "memory"
	BackendRedis  = "redis"
)

type Config struct {
	Listen    string          `yaml:"listen"`
	Auth      AuthConfig      `yaml:"auth"`
	Limits    LimitsConfig    `yaml:"limits"`
	Directory DirectoryConfig `yaml:"directory"`
}

// AuthConfig configures credential resolution and token verification.
type AuthConfig struct {
	// Secret is the shared HMAC secret tokens are verified against.
	Secret string `yaml:"secret"`

	// Cookie, Header, and QueryParam name the credential carriers.
	// Empty values fall back to the resolver defaults.
	Cookie     string `yaml:"cookie"`
	Header     string `yaml:"header"`
	QueryParam string `yaml:"query_param"`

	// Leeway tolerates issuer/verifier clock skew on expiry checks.
	Leeway time.Duration `yaml:"leeway"`
}

// LimitsConfig configures the per-principal request quota.
type LimitsConfig struct {
	MaxRequests int           `yaml:"max_requests"`
	Window      time.Duration `yaml:"window"`
}

// DirectoryConfig selects and configures the principal directory backend.
type DirectoryConfig struct {
	Backend string `yaml:"backend"` // memory | redis

	// Principals seed the memory backend.
	Principals []core.Principal `yaml:"principals"`

	// Options carries backend-specific settings (redis: addr, password,
	// db), decoded by the backend itself.
	Options map[string]any `yaml:"options"`
}

// Load reads, defaults, and validates the configuration file at path.
// A PORTCULLIS_AUTH_SECRET environment value replaces the file's secret.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}

	cfg.applyDefaults()
	if secret := os.Getenv(EnvAuthSecret); secret != "" {
		cfg.Auth.Secret = secret
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config file: %w", err)
	}
	return &cfg, nil
}

func (c *Config) applyDefaults() {
	if c.Listen == "" {
		c.Listen = DefaultListen
	}
	if c.Directory.Backend == "" {
		c.Directory.Backend = BackendMemory
	}
}

func (c *Config) Validate() error {
	if c.Listen == "" {
		return fmt.Errorf("listen address is required")
	}
	if c.Auth.Secret == "" {
		return fmt.Errorf("auth secret is required (set auth.secret or %s)", EnvAuthSecret)
	}
	if c.Auth.Leeway < 0 {
		return fmt.Errorf("auth leeway must not be negative")
	}
	if c.Limits.MaxRequests <= 0 {
		return fmt.Errorf("limits max_requests must be positive")
	}
	if c.Limits.Window <= 0 {
		return fmt.Errorf("limits window must be positive")
	}

	switch c.Directory.Backend {
	case BackendMemory, BackendRedis:
	default:
		return fmt.Errorf("unknown directory backend %q", c.Directory.Backend)
	}

	seen := make(map[string]struct{}, len(c.Directory.Principals))
	for idx, p := range c.Directory.Principals {
		if p.ID == "" {
			return fmt.Errorf("directory principal at index %d has empty id", idx)
		}
		if _, dup := seen[p.ID]; dup {
			return fmt.Errorf("directory principal %q seeded twice", p.ID)
		}
		seen[p.ID] = struct{}{}
	}

	return nil
}
