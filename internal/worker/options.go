// SPDX-License-Identifier: MPL-2.0

package worker

import (
	"context"
	"io"

	"github.com/rtpx/rtpx/internal/builtin"
	"github.com/rtpx/rtpx/internal/rtsched"

	"github.com/charmbracelet/log"
)

// DefaultCapacity is the number of slots of a registry created without WithCapacity.
const DefaultCapacity = 100000

type (
	// Option configures a Registry.
	Option func(*Registry)

	// SpawnOption configures a single Spawn.
	SpawnOption func(*spawnConfig)

	spawnConfig struct {
		ctx    context.Context
		stdin  io.Reader
		stdout io.Writer
		stderr io.Writer
		dir    string
		env    []string
	}
)

// WithCapacity sets the number of slots. Must be positive.
func WithCapacity(n int) Option {
	return func(r *Registry) { r.capacity = n }
}

// WithLogger sets the diagnostic logger that receives script failures.
func WithLogger(l *log.Logger) Option {
	return func(r *Registry) { r.logger = l }
}

// WithThreadLocker replaces the runtime thread pinning, mainly for tests.
func WithThreadLocker(tl ThreadLocker) Option {
	return func(r *Registry) { r.locker = tl }
}

// WithDefaultSchedule applies policy and priority to every worker thread before
// Spawn returns. A failure to apply it fails the spawn.
func WithDefaultSchedule(policy rtsched.Policy, priority int) Option {
	return func(r *Registry) {
		r.policy = policy
		r.priority = priority
	}
}

// WithPauseGC controls whether the collector is paused while instances are built.
func WithPauseGC(enabled bool) Option {
	return func(r *Registry) { r.pauseGC = enabled }
}

// WithInheritEnv controls whether workers start from the process environment.
func WithInheritEnv(enabled bool) Option {
	return func(r *Registry) { r.inheritEnv = enabled }
}

// WithAllowExternal lets worker scripts run binaries from PATH.
func WithAllowExternal(enabled bool) Option {
	return func(r *Registry) { r.allowExternal = enabled }
}

// WithBuiltins replaces the builtin registry scripts resolve commands against.
func WithBuiltins(b *builtin.Registry) Option {
	return func(r *Registry) { r.builtins = b }
}

// WithContext sets the context the script runs under. Cancelling it stops the
// script; it does not affect Spawn itself.
func WithContext(ctx context.Context) SpawnOption {
	return func(c *spawnConfig) { c.ctx = ctx }
}

// WithStdio sets the worker's standard streams. A nil writer discards output.
func WithStdio(stdin io.Reader, stdout, stderr io.Writer) SpawnOption {
	return func(c *spawnConfig) {
		c.stdin = stdin
		c.stdout = stdout
		c.stderr = stderr
	}
}

// WithDir sets the worker's working directory.
func WithDir(dir string) SpawnOption {
	return func(c *spawnConfig) { c.dir = dir }
}

// WithEnv appends KEY=VALUE pairs to the worker's environment.
func WithEnv(kv ...string) SpawnOption {
	return func(c *spawnConfig) { c.env = append(c.env, kv...) }
}
