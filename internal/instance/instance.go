// SPDX-License-Identifier: MPL-2.0

package instance

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/rtpx/rtpx/internal/builtin"
	"github.com/rtpx/rtpx/internal/rterr"

	"mvdan.cc/sh/v3/expand"
	"mvdan.cc/sh/v3/interp"
	"mvdan.cc/sh/v3/syntax"
)

// Environment variables bound before the script runs.
const (
	// SelfVar holds the worker's own handle.
	SelfVar = "self"
	// ThreadIDVar holds the worker's kernel thread id.
	ThreadIDVar = "RTPX_THREAD_ID"
	// ExecutionIDVar holds the worker's execution id.
	ExecutionIDVar = "RTPX_EXECUTION_ID"
)

// Exit codes for failures that happen outside the script's own commands.
const (
	ExitFailure       = 1
	ExitUsage         = 2
	ExitNotFound      = 127
	scriptName        = "init"
	notFoundMessage   = "command not found"
	externalsDisabled = "external commands are disabled"
)

type (
	// Config describes one instance.
	Config struct {
		// Script is the initialization script source.
		Script string
		// Self is the handle text bound to $self.
		Self string
		// ThreadID is the kernel thread id of the owning worker.
		ThreadID int
		// ExecutionID identifies this run in logs.
		ExecutionID string
		// Env is the base environment as KEY=VALUE pairs.
		Env []string
		// Dir is the working directory; empty means the process's.
		Dir    string
		Stdin  io.Reader
		Stdout io.Writer
		Stderr io.Writer
		// Builtins resolves script commands before any external binary.
		// Defaults to builtin.DefaultRegistry.
		Builtins *builtin.Registry
		// Host backs the spawn and join builtins. May be nil.
		Host builtin.Host
		// AllowExternal lets scripts run binaries from PATH.
		AllowExternal bool
	}

	// Instance is a parsed script plus the interpreter that will run it.
	Instance struct {
		cfg    Config
		prog   *syntax.File
		runner *interp.Runner
	}

	// Result is the outcome of running an instance's script.
	Result struct {
		// ExitCode is the script's exit status.
		ExitCode int
		// Error is set when the script could not run to completion.
		Error error
	}
)

// New parses cfg.Script and prepares an interpreter for it.
func New(cfg Config) (*Instance, error) {
	if cfg.Builtins == nil {
		cfg.Builtins = builtin.DefaultRegistry
	}

	prog, err := syntax.NewParser().Parse(strings.NewReader(cfg.Script), scriptName)
	if err != nil {
		return nil, fmt.Errorf("failed to parse script: %w", err)
	}

	inst := &Instance{cfg: cfg, prog: prog}

	opts := []interp.RunnerOption{
		interp.Env(expand.ListEnviron(inst.environ()...)),
		interp.StdIO(cfg.Stdin, cfg.Stdout, cfg.Stderr),
		interp.ExecHandlers(inst.execHandler),
	}
	if cfg.Dir != "" {
		opts = append(opts, interp.Dir(cfg.Dir))
	}

	inst.runner, err = interp.New(opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create interpreter: %w", err)
	}
	return inst, nil
}

// Run executes the script to completion. It must be called at most once.
func (i *Instance) Run(ctx context.Context) Result {
	if i.cfg.Host != nil {
		ctx = builtin.WithHost(ctx, i.cfg.Host)
	}
	err := i.runner.Run(ctx, i.prog)
	if err == nil {
		return Result{}
	}
	var status interp.ExitStatus
	if errors.As(err, &status) {
		return Result{ExitCode: int(status)}
	}
	return Result{ExitCode: ExitFailure, Error: fmt.Errorf("script execution failed: %w", err)}
}

// Failed reports whether the script exited non-zero or could not run.
func (r Result) Failed() bool { return r.ExitCode != 0 || r.Error != nil }

// environ returns the base environment with the worker identity appended last,
// so it overrides inherited values of the same name.
func (i *Instance) environ() []string {
	env := make([]string, 0, len(i.cfg.Env)+3)
	env = append(env, i.cfg.Env...)
	env = append(env,
		SelfVar+"="+i.cfg.Self,
		fmt.Sprintf("%s=%d", ThreadIDVar, i.cfg.ThreadID),
		ExecutionIDVar+"="+i.cfg.ExecutionID,
	)
	return env
}

// execHandler resolves builtins first, then external binaries when allowed.
// A failing builtin prints its error and sets a non-zero status without
// aborting the script, so scripts can test for it.
func (i *Instance) execHandler(next interp.ExecHandlerFunc) interp.ExecHandlerFunc {
	return func(ctx context.Context, args []string) error {
		if len(args) == 0 {
			return next(ctx, args)
		}

		if cmd, ok := i.cfg.Builtins.Lookup(args[0]); ok {
			err := cmd.Run(ctx, args)
			if err == nil {
				return nil
			}
			if ctx.Err() != nil {
				return err
			}
			hc := interp.HandlerCtx(ctx)
			fmt.Fprintln(hc.Stderr, err)
			return interp.NewExitStatus(uint8(exitCodeFor(err)))
		}

		if !i.cfg.AllowExternal {
			hc := interp.HandlerCtx(ctx)
			fmt.Fprintf(hc.Stderr, "%s: %s (%s)\n", args[0], notFoundMessage, externalsDisabled)
			return interp.NewExitStatus(ExitNotFound)
		}
		return next(ctx, args)
	}
}

func exitCodeFor(err error) int {
	if errors.Is(err, rterr.ErrInvalidArgument) {
		return ExitUsage
	}
	return ExitFailure
}
