package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Defaults applied when the config file leaves fields empty.
const (
	// DefaultListenAddr is the default HTTP listen address.
	DefaultListenAddr = ":8317"
	// DefaultJWTExpiry is the default user token lifetime.
	DefaultJWTExpiry = 24 * time.Hour
	// DefaultRateLimitWindow is the generation rate-limit window in seconds.
	DefaultRateLimitWindow = 60
	// DefaultRateLimitMax is the generation request cap per window.
	DefaultRateLimitMax = 10
	// DefaultGeminiModel is the image generation model.
	DefaultGeminiModel = "gemini-2.0-flash-exp-image-generation"
)

// Config is the full server configuration loaded from YAML.
type Config struct {
	ListenAddr  string `yaml:"listen-addr"`
	DatabaseDSN string `yaml:"database-dsn"`
	RedisAddr   string `yaml:"redis-addr"`

	JWT       JWTConfig       `yaml:"jwt"`
	Gemini    GeminiConfig    `yaml:"gemini"`
	Stripe    StripeConfig    `yaml:"stripe"`
	RateLimit RateLimitConfig `yaml:"rate-limit"`
	Logging   LoggingConfig   `yaml:"logging"`

	SiteName string `yaml:"site-name"`
	BaseURL  string `yaml:"base-url"`
}

// Duration decodes YAML duration strings such as "24h" or "90s".
type Duration time.Duration

// UnmarshalYAML implements yaml.Unmarshaler.
func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	parsed, err := time.ParseDuration(strings.TrimSpace(value.Value))
	if err != nil {
		return fmt.Errorf("config: invalid duration %q: %w", value.Value, err)
	}
	*d = Duration(parsed)
	return nil
}

// Std returns the wrapped time.Duration.
func (d Duration) Std() time.Duration { return time.Duration(d) }

// JWTConfig holds token signing settings.
type JWTConfig struct {
	Secret string   `yaml:"secret"`
	Expiry Duration `yaml:"expiry"`
}

// GeminiConfig holds generation API settings.
type GeminiConfig struct {
	APIKey  string `yaml:"api-key"`
	Model   string `yaml:"model"`
	BaseURL string `yaml:"base-url"`
}

// StripeConfig holds payment provider settings.
type StripeConfig struct {
	SecretKey     string   `yaml:"secret-key"`
	WebhookSecret string   `yaml:"webhook-secret"`
	PriceIDs      []string `yaml:"price-ids"`
}

// RateLimitConfig holds generation throttling settings.
type RateLimitConfig struct {
	WindowSeconds int `yaml:"window-seconds"`
	MaxRequests   int `yaml:"max-requests"`
}

// LoggingConfig holds log output settings.
type LoggingConfig struct {
	Level      string `yaml:"level"`
	File       string `yaml:"file"`
	MaxSizeMB  int    `yaml:"max-size-mb"`
	MaxBackups int    `yaml:"max-backups"`
	MaxAgeDays int    `yaml:"max-age-days"`
}

// Load reads a YAML config file, applies environment overrides and defaults,
// and validates required fields.
func Load(path string) (*Config, error) {
	cfg := &Config{}
	if strings.TrimSpace(path) != "" {
		data, errRead := os.ReadFile(path)
		if errRead != nil {
			return nil, fmt.Errorf("config: read %s: %w", path, errRead)
		}
		if errUnmarshal := yaml.Unmarshal(data, cfg); errUnmarshal != nil {
			return nil, fmt.Errorf("config: parse %s: %w", path, errUnmarshal)
		}
	}

	applyEnvOverrides(cfg)
	applyDefaults(cfg)

	if strings.TrimSpace(cfg.DatabaseDSN) == "" {
		return nil, fmt.Errorf("config: database-dsn is required")
	}
	if strings.TrimSpace(cfg.JWT.Secret) == "" {
		return nil, fmt.Errorf("config: jwt secret is required")
	}
	return cfg, nil
}

// applyEnvOverrides lets environment variables win over file values so that
// secrets stay out of checked-in config.
func applyEnvOverrides(cfg *Config) {
	overrides := []struct {
		env    string
		target *string
	}{
		{"BLENDLAB_LISTEN_ADDR", &cfg.ListenAddr},
		{"BLENDLAB_DATABASE_DSN", &cfg.DatabaseDSN},
		{"BLENDLAB_REDIS_ADDR", &cfg.RedisAddr},
		{"BLENDLAB_JWT_SECRET", &cfg.JWT.Secret},
		{"GEMINI_API_KEY", &cfg.Gemini.APIKey},
		{"STRIPE_SECRET_KEY", &cfg.Stripe.SecretKey},
		{"STRIPE_WEBHOOK_SECRET", &cfg.Stripe.WebhookSecret},
		{"BLENDLAB_BASE_URL", &cfg.BaseURL},
	}
	for _, o := range overrides {
		if value, ok := os.LookupEnv(o.env); ok {
			trimmed := strings.TrimSpace(value)
			if trimmed != "" {
				*o.target = trimmed
			}
		}
	}
}

// applyDefaults fills unset fields with defaults.
func applyDefaults(cfg *Config) {
	if strings.TrimSpace(cfg.ListenAddr) == "" {
		cfg.ListenAddr = DefaultListenAddr
	}
	if cfg.JWT.Expiry <= 0 {
		cfg.JWT.Expiry = Duration(DefaultJWTExpiry)
	}
	if strings.TrimSpace(cfg.Gemini.Model) == "" {
		cfg.Gemini.Model = DefaultGeminiModel
	}
	if cfg.RateLimit.WindowSeconds <= 0 {
		cfg.RateLimit.WindowSeconds = DefaultRateLimitWindow
	}
	if cfg.RateLimit.MaxRequests <= 0 {
		cfg.RateLimit.MaxRequests = DefaultRateLimitMax
	}
	if strings.TrimSpace(cfg.SiteName) == "" {
		cfg.SiteName = "Blendlab"
	}
	if strings.TrimSpace(cfg.Logging.Level) == "" {
		cfg.Logging.Level = "info"
	}
}
