package config

import (
	"errors"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/spf13/viper"
)

// envPrefix namespaces the application's environment variables, e.g.
// ATELIER_SERVER_PORT or ATELIER_DATABASE_URL.
const envPrefix = "ATELIER"

// Load reads configuration from an optional config file and from
// environment variables, with the environment taking precedence.
// Returns a validated Config or an error describing what is invalid.
func Load() (*Config, error) {
	v := viper.New()

	setDefaults(v)

	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AddConfigPath("./config")

	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		// A missing config file is fine; the environment can carry
		// everything. Any other read error is fatal.
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := validate(&cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.log_level", "info")
	v.SetDefault("storage.output_dir", "output")
	v.SetDefault("providers.kie.base_url", "https://api.kie.ai")
	v.SetDefault("batch.default_concurrency", 2)
	v.SetDefault("batch.default_count_per_prompt", 1)

	// Keys without a meaningful default still need to be registered so
	// AutomaticEnv picks them up during Unmarshal.
	v.SetDefault("database.url", "")
	v.SetDefault("auth.jwt_secret", "")
	v.SetDefault("auth.api_key_hash", "")
	v.SetDefault("auth.token_lifetime_minutes", 0)
	v.SetDefault("providers.gemini.api_key", "")
	v.SetDefault("providers.gemini.optimizer_model", "")
	v.SetDefault("providers.kie.api_key", "")
	v.SetDefault("providers.kie.poll_interval_seconds", 0)
}

// validate runs struct validation plus the cross-field rule that at
// least one provider carries credentials.
func validate(cfg *Config) error {
	if err := validator.New().Struct(cfg); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) {
			fields := make([]string, 0, len(verrs))
			for _, fe := range verrs {
				fields = append(fields, fmt.Sprintf("%s (%s)", fe.Namespace(), fe.Tag()))
			}
			return fmt.Errorf("invalid configuration: %s", strings.Join(fields, ", "))
		}
		return fmt.Errorf("config validation failed: %w", err)
	}

	if cfg.Providers.Gemini.APIKey == "" && cfg.Providers.KIE.APIKey == "" {
		return errors.New("invalid configuration: no image provider configured")
	}
	return nil
}
