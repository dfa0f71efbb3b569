// SPDX-License-Identifier: MPL-2.0

package sshserver

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

const (
	// StateCreated indicates the server was created but Start has not been called.
	StateCreated State = iota
	// StateStarting indicates Start is binding the listener.
	StateStarting
	// StateRunning indicates the server accepts sessions.
	StateRunning
	// StateStopping indicates Stop is draining sessions.
	StateStopping
	// StateStopped is terminal.
	StateStopped
	// StateFailed is terminal: the server failed to start or to serve.
	StateFailed
)

// ErrInvalidServerConfig is the sentinel error wrapped by InvalidServerConfigError.
var ErrInvalidServerConfig = errors.New("invalid SSH server config")

type (
	// State is the lifecycle state of a Server.
	State int32

	// TokenValue is the secret a client presents as its SSH password.
	TokenValue string

	// Token is an issued credential. Label names what the token was issued for
	// and is logged on every session authenticated with it.
	Token struct {
		Value     TokenValue
		Label     string
		CreatedAt time.Time
		ExpiresAt time.Time
	}

	// Config holds the server settings. Zero durations select the defaults.
	Config struct {
		Host string
		// Port 0 selects a free port.
		Port            int
		TokenTTL        time.Duration
		StartupTimeout  time.Duration
		ShutdownTimeout time.Duration
		// HostKeyPath is an ed25519 host key, created on first use. Empty keeps an
		// ephemeral in-memory key.
		HostKeyPath string
	}

	// ConnectionInfo is everything a client needs to open a session.
	ConnectionInfo struct {
		Host      string     `json:"host" yaml:"host"`
		Port      int        `json:"port" yaml:"port"`
		User      string     `json:"user" yaml:"user"`
		Token     TokenValue `json:"token" yaml:"token"`
		ExpiresAt time.Time  `json:"expires_at" yaml:"expires_at"`
	}

	// InvalidServerConfigError collects the field errors of a Config.
	InvalidServerConfigError struct {
		FieldErrors []error
	}
)

func (s State) String() string {
	switch s {
	case StateCreated:
		return "created"
	case StateStarting:
		return "starting"
	case StateRunning:
		return "running"
	case StateStopping:
		return "stopping"
	case StateStopped:
		return "stopped"
	case StateFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// IsTerminal reports whether s is StateStopped or StateFailed.
func (s State) IsTerminal() bool { return s == StateStopped || s == StateFailed }

func (t TokenValue) String() string { return string(t) }

// Expired reports whether the token is no longer valid at now.
func (t *Token) Expired(now time.Time) bool { return now.After(t.ExpiresAt) }

// DefaultConfig returns the loopback configuration with a one hour token TTL.
func DefaultConfig() Config {
	return Config{
		Host:            "127.0.0.1",
		TokenTTL:        time.Hour,
		StartupTimeout:  5 * time.Second,
		ShutdownTimeout: 10 * time.Second,
	}
}

// Validate reports every invalid field at once.
func (c Config) Validate() error {
	var errs []error
	if strings.TrimSpace(c.Host) == "" {
		errs = append(errs, fmt.Errorf("host: must be non-empty"))
	}
	if c.Port < 0 || c.Port > 65535 {
		errs = append(errs, fmt.Errorf("port %d: must be between 0 and 65535", c.Port))
	}
	if c.TokenTTL < 0 {
		errs = append(errs, fmt.Errorf("token TTL %s: must not be negative", c.TokenTTL))
	}
	if len(errs) > 0 {
		return &InvalidServerConfigError{FieldErrors: errs}
	}
	return nil
}

func (c Config) withDefaults() Config {
	def := DefaultConfig()
	if c.Host == "" {
		c.Host = def.Host
	}
	if c.TokenTTL == 0 {
		c.TokenTTL = def.TokenTTL
	}
	if c.StartupTimeout == 0 {
		c.StartupTimeout = def.StartupTimeout
	}
	if c.ShutdownTimeout == 0 {
		c.ShutdownTimeout = def.ShutdownTimeout
	}
	return c
}

func (e *InvalidServerConfigError) Error() string {
	return fmt.Sprintf("invalid SSH server config: %v", errors.Join(e.FieldErrors...))
}

// Unwrap returns ErrInvalidServerConfig for errors.Is() compatibility.
func (e *InvalidServerConfigError) Unwrap() error { return ErrInvalidServerConfig }
