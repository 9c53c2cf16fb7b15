package config

import "time"

// Config holds all application configuration, grouped by concern.
type Config struct {
	Server    ServerConfig    `mapstructure:"server" validate:"required"`
	Database  DatabaseConfig  `mapstructure:"database" validate:"required"`
	Auth      AuthConfig      `mapstructure:"auth" validate:"required"`
	Providers ProvidersConfig `mapstructure:"providers" validate:"required"`
	Batch     BatchConfig     `mapstructure:"batch"`
	Storage   StorageConfig   `mapstructure:"storage" validate:"required"`
}

// ServerConfig contains the HTTP server settings.
type ServerConfig struct {
	Port     int    `mapstructure:"port" validate:"required,gt=0,lt=65536"`
	LogLevel string `mapstructure:"log_level" validate:"required,oneof=debug info warn error"`
}

// DatabaseConfig contains the database connection settings.
type DatabaseConfig struct {
	URL string `mapstructure:"url" validate:"required,url"`
}

// AuthConfig contains authentication settings. APIKeyHash is a bcrypt
// hash of the API key clients exchange for a token; the plaintext key
// is never configured server-side.
type AuthConfig struct {
	JWTSecret        string `mapstructure:"jwt_secret" validate:"required,min=32"`
	APIKeyHash       string `mapstructure:"api_key_hash" validate:"required"`
	TokenLifetimeMin int    `mapstructure:"token_lifetime_minutes" validate:"gte=0"`
}

// TokenLifetime returns the configured token lifetime, defaulting to
// one hour when unset.
func (c AuthConfig) TokenLifetime() time.Duration {
	if c.TokenLifetimeMin <= 0 {
		return time.Hour
	}
	return time.Duration(c.TokenLifetimeMin) * time.Minute
}

// ProvidersConfig groups the image generation provider settings. At
// least one provider must be configured; routing picks a provider by
// model name prefix.
type ProvidersConfig struct {
	Gemini GeminiConfig `mapstructure:"gemini"`
	KIE    KIEConfig    `mapstructure:"kie"`
}

// GeminiConfig contains the Gemini provider settings. An empty APIKey
// disables the provider.
type GeminiConfig struct {
	APIKey         string `mapstructure:"api_key"`
	OptimizerModel string `mapstructure:"optimizer_model"`
}

// KIEConfig contains the settings for the asynchronous job provider.
// An empty APIKey disables the provider.
type KIEConfig struct {
	APIKey          string `mapstructure:"api_key"`
	BaseURL         string `mapstructure:"base_url"`
	PollIntervalSec int    `mapstructure:"poll_interval_seconds" validate:"gte=0"`
}

// BatchConfig contains the default batch execution settings; per-request
// values override them and both are clamped to the domain ceilings.
type BatchConfig struct {
	DefaultConcurrency    int `mapstructure:"default_concurrency" validate:"gte=0"`
	DefaultCountPerPrompt int `mapstructure:"default_count_per_prompt" validate:"gte=0"`
}

// StorageConfig contains the image output settings.
type StorageConfig struct {
	OutputDir string `mapstructure:"output_dir" validate:"required"`
}
