package config

import (
	"fmt"
	"strings"

	"github.com/spf13/viper"
)

// LoadConfig loads configuration from file using viper.
// CLI flags > environment > config file > defaults precedence; flags are
// applied by the caller on top of the returned config.
func LoadConfig(configPath string) (*ServiceConfig, error) {
	v := viper.New()

	def := DefaultServiceConfig()
	v.SetDefault("server.host", def.Host)
	v.SetDefault("server.port", def.Port)
	v.SetDefault("server.http_port", def.HTTPPort)
	v.SetDefault("server.request_timeout", def.RequestTimeout.String())
	v.SetDefault("server.max_rules_per_survey", def.MaxRulesPerSurvey)
	v.SetDefault("cache.url", def.CacheURL)
	v.SetDefault("cache.ttl", def.CacheTTL.String())

	// SL_SERVER_PORT, SL_CACHE_URL, ...
	v.SetEnvPrefix("SL")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if configPath != "" {
		v.SetConfigFile(configPath)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	// Secrets are environment-only
	if err := validateNoSecretsInConfig(v); err != nil {
		return nil, err
	}

	cfg := &ServiceConfig{
		Host:              v.GetString("server.host"),
		Port:              v.GetInt("server.port"),
		HTTPPort:          v.GetInt("server.http_port"),
		RequestTimeout:    v.GetDuration("server.request_timeout"),
		MaxRulesPerSurvey: v.GetInt("server.max_rules_per_survey"),
		CacheURL:          v.GetString("cache.url"),
		CacheTTL:          v.GetDuration("cache.ttl"),
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Validate checks port ranges and positive limits.
func (cfg *ServiceConfig) Validate() error {
	if cfg.Port <= 0 || cfg.Port > 65535 {
		return fmt.Errorf("port must be between 1 and 65535, got %d", cfg.Port)
	}
	if cfg.HTTPPort < 0 || cfg.HTTPPort > 65535 {
		return fmt.Errorf("http_port must be between 0 and 65535, got %d", cfg.HTTPPort)
	}
	if cfg.HTTPPort != 0 && cfg.HTTPPort == cfg.Port {
		return fmt.Errorf("http_port and port must differ, both %d", cfg.Port)
	}
	if cfg.RequestTimeout <= 0 {
		return fmt.Errorf("request_timeout must be positive, got %v", cfg.RequestTimeout)
	}
	if cfg.MaxRulesPerSurvey <= 0 {
		return fmt.Errorf("max_rules_per_survey must be positive, got %d", cfg.MaxRulesPerSurvey)
	}
	if cfg.CacheURL != "" && cfg.CacheTTL <= 0 {
		return fmt.Errorf("cache.ttl must be positive when cache.url is set, got %v", cfg.CacheTTL)
	}
	return nil
}

// validateNoSecretsInConfig enforces environment-only secrets.
func validateNoSecretsInConfig(v *viper.Viper) error {
	if v.InConfig("hmac_secret") || v.InConfig("server.hmac_secret") {
		return fmt.Errorf("HMAC secrets not allowed in config files (use SL_HMAC_SECRET environment variable)")
	}
	return nil
}
