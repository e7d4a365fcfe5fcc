// Package config loads the emulator configuration from layered sources:
// compiled defaults, an optional YAML file, RUSTSTACK_* environment
// variables and finally command-line flags, each layer overriding the one
// below it.
package config

import (
	"fmt"
	"os"
	"strconv"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"
)

// EnvPrefix prefixes every environment variable the loader reads.
const EnvPrefix = "RUSTSTACK_"

// Config is the full emulator configuration.
type Config struct {
	Host     string `yaml:"host" validate:"required"`
	Port     int    `yaml:"port" validate:"min=1,max=65535"`
	LogLevel string `yaml:"log_level" validate:"oneof=trace debug info warn error"`

	S3       bool `yaml:"s3"`
	DynamoDB bool `yaml:"dynamodb"`
	Lambda   bool `yaml:"lambda"`

	// DataDir is accepted for compatibility; the ephemeral backend keeps
	// everything in memory and only warns when it is set.
	DataDir string `yaml:"data_dir"`

	// StrictQueryLimit makes Query and Scan apply Limit before filter
	// expressions, matching the provider's pagination order.
	StrictQueryLimit bool `yaml:"strict_query_limit"`

	// ConfigFile records where the YAML layer was read from, for the
	// watcher. Not itself settable from the file.
	ConfigFile string `yaml:"-"`
}

// Default returns the compiled-in defaults: every service enabled on the
// conventional local endpoint port.
func Default() *Config {
	return &Config{
		Host:     "0.0.0.0",
		Port:     4566,
		LogLevel: "info",
		S3:       true,
		DynamoDB: true,
		Lambda:   true,
	}
}

// Load builds the configuration from defaults, the optional YAML file at
// path, and the environment. Flag overrides are applied by the caller on
// the returned value before Validate.
func Load(path string) (*Config, error) {
	cfg := Default()
	if path != "" {
		if err := cfg.loadFile(path); err != nil {
			return nil, err
		}
		cfg.ConfigFile = path
	}
	if err := cfg.loadEnv(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) loadFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config file: %w", err)
	}
	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("parse config file %s: %w", path, err)
	}
	return nil
}

func (c *Config) loadEnv() error {
	var err error
	c.Host = getEnvString("HOST", c.Host)
	c.Port, err = getEnvInt("PORT", c.Port)
	if err != nil {
		return err
	}
	c.LogLevel = getEnvString("LOG_LEVEL", c.LogLevel)
	c.DataDir = getEnvString("DATA_DIR", c.DataDir)
	if c.S3, err = getEnvBool("S3", c.S3); err != nil {
		return err
	}
	if c.DynamoDB, err = getEnvBool("DYNAMODB", c.DynamoDB); err != nil {
		return err
	}
	if c.Lambda, err = getEnvBool("LAMBDA", c.Lambda); err != nil {
		return err
	}
	if c.StrictQueryLimit, err = getEnvBool("STRICT_QUERY_LIMIT", c.StrictQueryLimit); err != nil {
		return err
	}
	return nil
}

// Validate checks the assembled configuration.
func (c *Config) Validate() error {
	if err := validator.New().Struct(c); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}
	return nil
}

// Addr renders the listen address.
func (c *Config) Addr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

func getEnvString(key, fallback string) string {
	if v, ok := os.LookupEnv(EnvPrefix + key); ok {
		return v
	}
	return fallback
}

func getEnvInt(key string, fallback int) (int, error) {
	v, ok := os.LookupEnv(EnvPrefix + key)
	if !ok {
		return fallback, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("%s%s must be an integer: %w", EnvPrefix, key, err)
	}
	return n, nil
}

func getEnvBool(key string, fallback bool) (bool, error) {
	v, ok := os.LookupEnv(EnvPrefix + key)
	if !ok {
		return fallback, nil
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return false, fmt.Errorf("%s%s must be a boolean: %w", EnvPrefix, key, err)
	}
	return b, nil
}
