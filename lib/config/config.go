// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"regexp"
	"time"

	"gopkg.in/yaml.v3"
)

// EnvironmentVariable names the variable [Load] reads the config path
// from.
const EnvironmentVariable = "DISPATCH_CONFIG"

// Environment represents the deployment environment.
type Environment string

const (
	// Development is for local development machines.
	Development Environment = "development"
	// Staging is for pre-production testing.
	Staging Environment = "staging"
	// Production is for production deployments.
	Production Environment = "production"
)

// Config is the master configuration for dispatch.
type Config struct {
	// Environment identifies the deployment type.
	Environment Environment `yaml:"environment"`

	// Paths configures filesystem locations.
	Paths PathsConfig `yaml:"paths"`

	// Transport configures command forwarding.
	Transport TransportConfig `yaml:"transport"`

	// Logging configures the structured logger.
	Logging LoggingConfig `yaml:"logging"`

	// Per-environment overrides, applied after the base config is
	// loaded.
	Development *ConfigOverrides `yaml:"development,omitempty"`
	Staging     *ConfigOverrides `yaml:"staging,omitempty"`
	Production  *ConfigOverrides `yaml:"production,omitempty"`
}

// ConfigOverrides contains fields that can be overridden per environment.
type ConfigOverrides struct {
	Paths     *PathsConfig       `yaml:"paths,omitempty"`
	Transport *TransportOverride `yaml:"transport,omitempty"`
	Logging   *LoggingConfig     `yaml:"logging,omitempty"`
}

// PathsConfig configures filesystem locations.
type PathsConfig struct {
	// SocketDir is where frame actor sockets are created. Unix socket
	// paths are limited to 108 bytes, so keep this short.
	// Default: ${XDG_RUNTIME_DIR:-/tmp}/dispatch
	SocketDir string `yaml:"socket_dir"`
}

// TransportConfig configures command forwarding.
type TransportConfig struct {
	// RetryOnAbort makes every command retry when its frame actor is
	// torn down mid-call, unless the command says otherwise.
	// Default: false
	RetryOnAbort bool `yaml:"retry_on_abort"`

	// RetryDelay is a Go duration waited between attempts.
	// Default: 0s (yield and retry immediately)
	RetryDelay string `yaml:"retry_delay"`

	// BroadcastConcurrency caps in-flight sends per broadcast. Zero
	// means unlimited.
	// Default: 0
	BroadcastConcurrency int `yaml:"broadcast_concurrency"`
}

// TransportOverride is TransportConfig with every field optional.
type TransportOverride struct {
	RetryOnAbort         *bool   `yaml:"retry_on_abort,omitempty"`
	RetryDelay           *string `yaml:"retry_delay,omitempty"`
	BroadcastConcurrency *int    `yaml:"broadcast_concurrency,omitempty"`
}

// LoggingConfig configures the structured logger.
type LoggingConfig struct {
	// Level is one of debug, info, warn, error.
	// Default: info
	Level string `yaml:"level"`

	// Format is text or json.
	// Default: text (development), json (production)
	Format string `yaml:"format"`
}

// Default returns the configuration used when no file is given, and
// the base every loaded file is merged into.
func Default() *Config {
	cfg := &Config{
		Environment: Development,
		Paths: PathsConfig{
			SocketDir: "${XDG_RUNTIME_DIR:-/tmp}/dispatch",
		},
		Transport: TransportConfig{
			RetryDelay: "0s",
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "text",
		},
	}
	cfg.expandVariables()
	return cfg
}

// Load loads configuration from the file named by DISPATCH_CONFIG.
// It fails if the variable is not set.
func Load() (*Config, error) {
	configPath := os.Getenv(EnvironmentVariable)
	if configPath == "" {
		return nil, fmt.Errorf("%s environment variable not set; "+
			"set it to the path of your dispatch.yaml config file, or use --config flag", EnvironmentVariable)
	}

	return LoadFile(configPath)
}

// LoadFile loads configuration from a specific file path.
func LoadFile(path string) (*Config, error) {
	cfg := Default()

	if err := cfg.loadFile(path); err != nil {
		return nil, err
	}

	cfg.applyEnvironmentOverrides()
	cfg.expandVariables()

	return cfg, nil
}

func (c *Config) loadFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}

	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("parsing %s: %w", path, err)
	}
	return nil
}

// applyEnvironmentOverrides applies the section matching Environment.
func (c *Config) applyEnvironmentOverrides() {
	var overrides *ConfigOverrides

	switch c.Environment {
	case Development:
		overrides = c.Development
	case Staging:
		overrides = c.Staging
	case Production:
		overrides = c.Production
		if overrides == nil {
			retryOnAbort := false
			overrides = &ConfigOverrides{
				Transport: &TransportOverride{RetryOnAbort: &retryOnAbort},
				Logging:   &LoggingConfig{Format: "json"},
			}
		}
	}

	if overrides == nil {
		return
	}

	if overrides.Paths != nil && overrides.Paths.SocketDir != "" {
		c.Paths.SocketDir = overrides.Paths.SocketDir
	}

	if overrides.Transport != nil {
		if overrides.Transport.RetryOnAbort != nil {
			c.Transport.RetryOnAbort = *overrides.Transport.RetryOnAbort
		}
		if overrides.Transport.RetryDelay != nil {
			c.Transport.RetryDelay = *overrides.Transport.RetryDelay
		}
		if overrides.Transport.BroadcastConcurrency != nil {
			c.Transport.BroadcastConcurrency = *overrides.Transport.BroadcastConcurrency
		}
	}

	if overrides.Logging != nil {
		if overrides.Logging.Level != "" {
			c.Logging.Level = overrides.Logging.Level
		}
		if overrides.Logging.Format != "" {
			c.Logging.Format = overrides.Logging.Format
		}
	}
}

// expandVariables expands ${VAR} and ${VAR:-default} patterns in paths.
func (c *Config) expandVariables() {
	vars := map[string]string{
		"HOME": os.Getenv("HOME"),
	}
	c.Paths.SocketDir = expandVars(c.Paths.SocketDir, vars)
}

var varPattern = regexp.MustCompile(`\$\{([^}:]+)(?::-([^}]*))?\}`)

// expandVars expands ${VAR} and ${VAR:-default} patterns, consulting
// vars before the process environment.
func expandVars(s string, vars map[string]string) string {
	return varPattern.ReplaceAllStringFunc(s, func(match string) string {
		parts := varPattern.FindStringSubmatch(match)
		if len(parts) < 2 {
			return match
		}

		name := parts[1]
		defaultValue := ""
		if len(parts) >= 3 {
			defaultValue = parts[2]
		}

		if value, ok := vars[name]; ok && value != "" {
			return value
		}
		if value := os.Getenv(name); value != "" {
			return value
		}
		return defaultValue
	})
}

// RetryDelayDuration parses Transport.RetryDelay. An empty string is
// zero.
func (c *Config) RetryDelayDuration() (time.Duration, error) {
	if c.Transport.RetryDelay == "" {
		return 0, nil
	}
	delay, err := time.ParseDuration(c.Transport.RetryDelay)
	if err != nil {
		return 0, fmt.Errorf("transport.retry_delay: %w", err)
	}
	return delay, nil
}

// LogLevel parses Logging.Level.
func (c *Config) LogLevel() (slog.Level, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(c.Logging.Level)); err != nil {
		return 0, fmt.Errorf("logging.level: %w", err)
	}
	return level, nil
}

// Validate checks the configuration for errors.
func (c *Config) Validate() error {
	var errs []error

	if c.Environment != Development && c.Environment != Staging && c.Environment != Production {
		errs = append(errs, fmt.Errorf("invalid environment: %s", c.Environment))
	}

	if c.Paths.SocketDir == "" {
		errs = append(errs, fmt.Errorf("paths.socket_dir is required"))
	}

	if delay, err := c.RetryDelayDuration(); err != nil {
		errs = append(errs, err)
	} else if delay < 0 {
		errs = append(errs, fmt.Errorf("transport.retry_delay must not be negative"))
	}

	if c.Transport.BroadcastConcurrency < 0 {
		errs = append(errs, fmt.Errorf("transport.broadcast_concurrency must not be negative"))
	}

	if _, err := c.LogLevel(); err != nil {
		errs = append(errs, err)
	}

	formats := []string{"text", "json"}
	if !contains(formats, c.Logging.Format) {
		errs = append(errs, fmt.Errorf("logging.format must be one of: %v", formats))
	}

	if len(errs) > 0 {
		return errors.Join(errs...)
	}
	return nil
}

// EnsurePaths creates the socket directory if it does not exist.
func (c *Config) EnsurePaths() error {
	if err := os.MkdirAll(c.Paths.SocketDir, 0700); err != nil {
		return fmt.Errorf("creating %s: %w", c.Paths.SocketDir, err)
	}
	return nil
}

func contains(slice []string, s string) bool {
	for _, v := range slice {
		if v == s {
			return true
		}
	}
	return false
}
