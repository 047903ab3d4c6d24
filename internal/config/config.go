// Package config handles configuration for the mining commands.
package config

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/hashicorp/go-multierror"
	"github.com/naka-gawa/github-mining/internal/gateway"
	"github.com/naka-gawa/github-mining/internal/retry"
	"github.com/rs/zerolog"
	"github.com/spf13/viper"
)

// EnvPrefix prefixes every environment override except the GitHub ones.
const EnvPrefix = "GITHUB_MINING"

// Config represents the complete configuration.
type Config struct {
	GitHub    GitHubConfig    `mapstructure:"github"`
	HTTP      HTTPConfig      `mapstructure:"http"`
	Retry     RetryConfig     `mapstructure:"retry"`
	Throttle  ThrottleConfig  `mapstructure:"throttle"`
	RateLimit RateLimitConfig `mapstructure:"ratelimit"`
	Metrics   MetricsConfig   `mapstructure:"metrics"`
	Log       LogConfig       `mapstructure:"log"`
}

// GitHubConfig contains the API endpoints and credential.
type GitHubConfig struct {
	Token      string `mapstructure:"token"`
	APIURL     string `mapstructure:"api_url"`
	GraphQLURL string `mapstructure:"graphql_url"`
}

// HTTPConfig contains HTTP client settings.
type HTTPConfig struct {
	Timeout time.Duration `mapstructure:"timeout"`
}

// RetryConfig contains the retry policy of every API call.
type RetryConfig struct {
	MaxAttempts int           `mapstructure:"max_attempts"`
	BaseDelay   time.Duration `mapstructure:"base_delay"`
	MaxDelay    time.Duration `mapstructure:"max_delay"`
	ResetMargin time.Duration `mapstructure:"reset_margin"`
}

// ThrottleConfig contains the delay between consecutive page requests.
type ThrottleConfig struct {
	Delay time.Duration `mapstructure:"delay"`
}

// RateLimitConfig contains secondary rate limit settings.
type RateLimitConfig struct {
	SecondarySleepLimit time.Duration `mapstructure:"secondary_sleep_limit"`
}

// MetricsConfig contains metrics export settings.
type MetricsConfig struct {
	// File receives the counters in the Prometheus text format. Empty
	// disables the export.
	File string `mapstructure:"file"`
}

// LogConfig contains logger settings.
type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// SetDefaults sets default values for configuration.
func SetDefaults(v *viper.Viper) {
	policy := retry.DefaultPolicy()

	v.SetDefault("github.token", "")
	v.SetDefault("github.api_url", gateway.DefaultAPIURL)
	v.SetDefault("github.graphql_url", gateway.DefaultGraphQLURL)

	v.SetDefault("http.timeout", "60s")

	v.SetDefault("retry.max_attempts", policy.MaxAttempts)
	v.SetDefault("retry.base_delay", policy.BaseDelay.String())
	v.SetDefault("retry.max_delay", policy.MaxDelay.String())
	v.SetDefault("retry.reset_margin", policy.ResetMargin.String())

	v.SetDefault("throttle.delay", "600ms")
	v.SetDefault("ratelimit.secondary_sleep_limit", "1h")
	v.SetDefault("metrics.file", "")

	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "console")
}

// bindEnvVars binds environment variables to configuration keys.
func bindEnvVars(v *viper.Viper) {
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	_ = v.BindEnv("github.token", "GITHUB_TOKEN")
	_ = v.BindEnv("github.api_url", "GITHUB_API_URL")
	_ = v.BindEnv("github.graphql_url", "GITHUB_GRAPHQL_URL")
}

// Load reads configuration from defaults, the optional config file, the
// environment and any flags already bound to v, in increasing precedence.
// An empty configFile looks for github-mining.yaml in the working
// directory and tolerates its absence.
func Load(v *viper.Viper, configFile string) (*Config, error) {
	SetDefaults(v)
	bindEnvVars(v)

	if configFile != "" {
		v.SetConfigFile(configFile)
	} else {
		v.SetConfigName("github-mining")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
	}
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if configFile != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return &cfg, nil
}

// Validate reports every invalid setting at once. The token is checked
// by the gateway, since only fetching commands need it.
func (c *Config) Validate() error {
	var result *multierror.Error

	for key, raw := range map[string]string{
		"github.api_url":     c.GitHub.APIURL,
		"github.graphql_url": c.GitHub.GraphQLURL,
	} {
		u, err := url.Parse(raw)
		if err != nil || u.Scheme == "" || u.Host == "" {
			result = multierror.Append(result, fmt.Errorf("%s must be an absolute URL, got %q", key, raw))
		}
	}
	if c.HTTP.Timeout <= 0 {
		result = multierror.Append(result, fmt.Errorf("http.timeout must be positive, got %s", c.HTTP.Timeout))
	}
	if c.Retry.MaxAttempts < 1 {
		result = multierror.Append(result, fmt.Errorf("retry.max_attempts must be at least 1, got %d", c.Retry.MaxAttempts))
	}
	if c.Retry.BaseDelay <= 0 {
		result = multierror.Append(result, fmt.Errorf("retry.base_delay must be positive, got %s", c.Retry.BaseDelay))
	}
	if c.Retry.MaxDelay < c.Retry.BaseDelay {
		result = multierror.Append(result, fmt.Errorf("retry.max_delay %s is below retry.base_delay %s", c.Retry.MaxDelay, c.Retry.BaseDelay))
	}
	if c.Retry.ResetMargin < 0 {
		result = multierror.Append(result, fmt.Errorf("retry.reset_margin must not be negative, got %s", c.Retry.ResetMargin))
	}
	if c.Throttle.Delay < 0 {
		result = multierror.Append(result, fmt.Errorf("throttle.delay must not be negative, got %s", c.Throttle.Delay))
	}
	if _, err := zerolog.ParseLevel(strings.ToLower(c.Log.Level)); err != nil {
		result = multierror.Append(result, fmt.Errorf("log.level %q is not a level", c.Log.Level))
	}
	switch c.Log.Format {
	case "json", "console":
	default:
		result = multierror.Append(result, fmt.Errorf("log.format must be json or console, got %q", c.Log.Format))
	}
	return result.ErrorOrNil()
}

// Gateway returns the GitHub gateway settings.
func (c *Config) Gateway() gateway.Config {
	return gateway.Config{
		Token:               c.GitHub.Token,
		APIURL:              c.GitHub.APIURL,
		GraphQLURL:          c.GitHub.GraphQLURL,
		Timeout:             c.HTTP.Timeout,
		SecondarySleepLimit: c.RateLimit.SecondarySleepLimit,
	}
}

// RetryPolicy returns the retry policy, logging through logger.
func (c *Config) RetryPolicy(logger zerolog.Logger) retry.Policy {
	return retry.Policy{
		MaxAttempts: c.Retry.MaxAttempts,
		BaseDelay:   c.Retry.BaseDelay,
		MaxDelay:    c.Retry.MaxDelay,
		ResetMargin: c.Retry.ResetMargin,
		Logger:      logger,
	}
}
