package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/hashicorp/go-multierror"
	"github.com/rs/zerolog"
	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	t.Setenv("GITHUB_TOKEN", "")
	t.Chdir(t.TempDir())

	cfg, err := Load(viper.New(), "")

	require.NoError(t, err)
	assert.Equal(t, "https://api.github.com/", cfg.GitHub.APIURL)
	assert.Equal(t, "https://api.github.com/graphql", cfg.GitHub.GraphQLURL)
	assert.Equal(t, 60*time.Second, cfg.HTTP.Timeout)
	assert.Equal(t, 5, cfg.Retry.MaxAttempts)
	assert.Equal(t, 2*time.Second, cfg.Retry.BaseDelay)
	assert.Equal(t, 30*time.Second, cfg.Retry.MaxDelay)
	assert.Equal(t, 600*time.Millisecond, cfg.Throttle.Delay)
	assert.Equal(t, time.Hour, cfg.RateLimit.SecondarySleepLimit)
	assert.Equal(t, "console", cfg.Log.Format)
}

func TestLoad_EnvAndFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "mining.yaml")
	require.NoError(t, os.WriteFile(path, []byte("retry:\n  max_attempts: 3\nthrottle:\n  delay: 1s\n"), 0o644))
	t.Setenv("GITHUB_TOKEN", "secret")
	t.Setenv("GITHUB_MINING_HTTP_TIMEOUT", "10s")

	cfg, err := Load(viper.New(), path)

	require.NoError(t, err)
	assert.Equal(t, "secret", cfg.GitHub.Token)
	assert.Equal(t, 3, cfg.Retry.MaxAttempts)
	assert.Equal(t, time.Second, cfg.Throttle.Delay)
	assert.Equal(t, 10*time.Second, cfg.HTTP.Timeout)

	gw := cfg.Gateway()
	assert.Equal(t, "secret", gw.Token)
	assert.Equal(t, 10*time.Second, gw.Timeout)
	assert.Equal(t, 3, cfg.RetryPolicy(zerolog.Nop()).MaxAttempts)
}

func TestLoad_MissingExplicitFile(t *testing.T) {
	_, err := Load(viper.New(), filepath.Join(t.TempDir(), "missing.yaml"))

	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to read config file")
}

func TestConfig_Validate(t *testing.T) {
	cfg := &Config{
		GitHub: GitHubConfig{APIURL: "not a url", GraphQLURL: "https://api.github.com/graphql"},
		HTTP:   HTTPConfig{Timeout: 0},
		Retry:  RetryConfig{MaxAttempts: 0, BaseDelay: time.Second, MaxDelay: time.Millisecond},
		Log:    LogConfig{Level: "loud", Format: "xml"},
	}

	err := cfg.Validate()

	require.Error(t, err)
	var merr *multierror.Error
	require.ErrorAs(t, err, &merr)
	assert.Len(t, merr.Errors, 6)
	assert.Contains(t, err.Error(), "github.api_url")
	assert.Contains(t, err.Error(), "log.format")
}
