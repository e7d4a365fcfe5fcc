package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaults(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, "0.0.0.0", cfg.Host)
	assert.Equal(t, 4566, cfg.Port)
	assert.Equal(t, "info", cfg.LogLevel)
	assert.True(t, cfg.S3)
	assert.True(t, cfg.DynamoDB)
	assert.True(t, cfg.Lambda)
	assert.False(t, cfg.StrictQueryLimit)
	assert.Equal(t, "0.0.0.0:4566", cfg.Addr())
	require.NoError(t, cfg.Validate())
}

func TestYAMLFileOverridesDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "ruststack.yaml")
	require.NoError(t, os.WriteFile(path, []byte(
		"port: 9999\nlog_level: debug\nlambda: false\n"), 0o600))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 9999, cfg.Port)
	assert.Equal(t, "debug", cfg.LogLevel)
	assert.False(t, cfg.Lambda)
	assert.True(t, cfg.S3)
	assert.Equal(t, path, cfg.ConfigFile)
}

func TestEnvironmentOverridesFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "ruststack.yaml")
	require.NoError(t, os.WriteFile(path, []byte("port: 9999\n"), 0o600))

	t.Setenv(EnvPrefix+"PORT", "4567")
	t.Setenv(EnvPrefix+"LOG_LEVEL", "warn")
	t.Setenv(EnvPrefix+"DYNAMODB", "false")
	t.Setenv(EnvPrefix+"STRICT_QUERY_LIMIT", "true")

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 4567, cfg.Port)
	assert.Equal(t, "warn", cfg.LogLevel)
	assert.False(t, cfg.DynamoDB)
	assert.True(t, cfg.StrictQueryLimit)
}

func TestEnvironmentParseErrors(t *testing.T) {
	t.Setenv(EnvPrefix+"PORT", "not-a-number")
	_, err := Load("")
	assert.Error(t, err)
}

func TestValidateRejectsBadValues(t *testing.T) {
	cfg := Default()
	cfg.Port = 0
	assert.Error(t, cfg.Validate())

	cfg = Default()
	cfg.LogLevel = "verbose"
	assert.Error(t, cfg.Validate())

	cfg = Default()
	cfg.Host = ""
	assert.Error(t, cfg.Validate())
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	assert.Error(t, err)
}
