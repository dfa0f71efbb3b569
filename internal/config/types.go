// SPDX-License-Identifier: MPL-2.0

package config

import (
	"errors"
	"fmt"
	"time"

	"github.com/rtpx/rtpx/internal/rtsched"
)

const (
	// LogLevelDebug logs worker lifecycle events.
	LogLevelDebug LogLevel = "debug"
	// LogLevelInfo is the default level.
	LogLevelInfo LogLevel = "info"
	// LogLevelWarn logs non-zero script exits and above.
	LogLevelWarn LogLevel = "warn"
	// LogLevelError logs only failures.
	LogLevelError LogLevel = "error"
)

var (
	// ErrInvalidLogLevel is returned when a LogLevel value is not recognized.
	ErrInvalidLogLevel = errors.New("invalid log level")
	// ErrInvalidConfig is the sentinel error wrapped by InvalidConfigError.
	ErrInvalidConfig = errors.New("invalid config")
)

type (
	// LogLevel is the minimum level of the diagnostic logger.
	LogLevel string

	// InvalidLogLevelError is returned when a LogLevel value is not recognized.
	// It wraps ErrInvalidLogLevel for errors.Is() compatibility.
	InvalidLogLevelError struct {
		Value LogLevel
	}

	// InvalidConfigError is returned when a Config has invalid fields.
	// It wraps ErrInvalidConfig for errors.Is() compatibility and collects
	// field-level validation errors from all sub-components.
	InvalidConfigError struct {
		FieldErrors []error
	}

	// Config holds the application configuration.
	Config struct {
		Registry RegistryConfig `json:"registry" yaml:"registry" mapstructure:"registry"`
		Worker   WorkerConfig   `json:"worker" yaml:"worker" mapstructure:"worker"`
		Log      LogConfig      `json:"log" yaml:"log" mapstructure:"log"`
		Serve    ServeConfig    `json:"serve" yaml:"serve" mapstructure:"serve"`
	}

	// RegistryConfig sizes the worker registry.
	RegistryConfig struct {
		// Capacity is the number of slots (default 100000).
		Capacity int `json:"capacity" yaml:"capacity" mapstructure:"capacity"`
	}

	// WorkerConfig controls how worker threads are set up.
	WorkerConfig struct {
		// Policy is applied to every worker thread at spawn; empty means none.
		Policy string `json:"policy" yaml:"policy" mapstructure:"policy"`
		// Priority goes with Policy; ignored for SCHED_OTHER.
		Priority int `json:"priority" yaml:"priority" mapstructure:"priority"`
		// PauseGCDuringBootstrap pauses the Go GC while interpreters are built.
		PauseGCDuringBootstrap bool `json:"pause_gc_during_bootstrap" yaml:"pause_gc_during_bootstrap" mapstructure:"pause_gc_during_bootstrap"`
		// InheritEnv starts workers from the process environment.
		InheritEnv bool `json:"inherit_env" yaml:"inherit_env" mapstructure:"inherit_env"`
		// AllowExternalCommands lets scripts run binaries from PATH.
		AllowExternalCommands bool `json:"allow_external_commands" yaml:"allow_external_commands" mapstructure:"allow_external_commands"`
	}

	// LogConfig configures the diagnostic logger.
	LogConfig struct {
		Level LogLevel `json:"level" yaml:"level" mapstructure:"level"`
	}

	// ServeConfig configures the SSH spawn endpoint.
	ServeConfig struct {
		Host string `json:"host" yaml:"host" mapstructure:"host"`
		// Port 0 picks a free port.
		Port int `json:"port" yaml:"port" mapstructure:"port"`
		// TokenTTL bounds how long a session token stays valid.
		TokenTTL time.Duration `json:"token_ttl" yaml:"token_ttl" mapstructure:"token_ttl"`
		// HostKeyPath is the server's host key; empty generates one in the config dir.
		HostKeyPath string `json:"host_key_path" yaml:"host_key_path" mapstructure:"host_key_path"`
	}
)

// DefaultConfig returns the configuration used when no file is present.
func DefaultConfig() *Config {
	return &Config{
		Registry: RegistryConfig{Capacity: 100000},
		Worker: WorkerConfig{
			PauseGCDuringBootstrap: true,
			InheritEnv:             true,
		},
		Log: LogConfig{Level: LogLevelInfo},
		Serve: ServeConfig{
			Host:     "127.0.0.1",
			Port:     2222,
			TokenTTL: time.Hour,
		},
	}
}

// Validate returns nil if the LogLevel is known, or an InvalidLogLevelError.
func (l LogLevel) Validate() error {
	switch l {
	case LogLevelDebug, LogLevelInfo, LogLevelWarn, LogLevelError:
		return nil
	default:
		return &InvalidLogLevelError{Value: l}
	}
}

// String returns the level name.
func (l LogLevel) String() string { return string(l) }

// Error implements the error interface for InvalidLogLevelError.
func (e *InvalidLogLevelError) Error() string {
	return fmt.Sprintf("invalid log level %q (valid: debug, info, warn, error)", e.Value)
}

// Unwrap returns ErrInvalidLogLevel for errors.Is() compatibility.
func (e *InvalidLogLevelError) Unwrap() error { return ErrInvalidLogLevel }

// SchedulePolicy parses Worker.Policy. The zero Policy means no default schedule.
func (c WorkerConfig) SchedulePolicy() (rtsched.Policy, error) {
	if c.Policy == "" {
		return "", nil
	}
	return rtsched.ParsePolicy(c.Policy)
}

// Validate checks the values CUE cannot see once environment overrides are applied.
func (c Config) Validate() error {
	var errs []error
	if c.Registry.Capacity <= 0 {
		errs = append(errs, fmt.Errorf("registry.capacity: must be positive, got %d", c.Registry.Capacity))
	}
	if _, err := c.Worker.SchedulePolicy(); err != nil {
		errs = append(errs, fmt.Errorf("worker.policy: %w", err))
	}
	if c.Worker.Priority < 0 {
		errs = append(errs, fmt.Errorf("worker.priority: must not be negative, got %d", c.Worker.Priority))
	}
	if err := c.Log.Level.Validate(); err != nil {
		errs = append(errs, fmt.Errorf("log.level: %w", err))
	}
	if c.Serve.Port < 0 || c.Serve.Port > 65535 {
		errs = append(errs, fmt.Errorf("serve.port: out of range: %d", c.Serve.Port))
	}
	if c.Serve.TokenTTL <= 0 {
		errs = append(errs, fmt.Errorf("serve.token_ttl: must be positive, got %s", c.Serve.TokenTTL))
	}
	if len(errs) > 0 {
		return &InvalidConfigError{FieldErrors: errs}
	}
	return nil
}

// Error implements the error interface for InvalidConfigError.
func (e *InvalidConfigError) Error() string {
	return fmt.Sprintf("invalid config: %v", errors.Join(e.FieldErrors...))
}

// Unwrap returns ErrInvalidConfig and the field errors for errors.Is() compatibility.
func (e *InvalidConfigError) Unwrap() []error {
	return append([]error{ErrInvalidConfig}, e.FieldErrors...)
}
