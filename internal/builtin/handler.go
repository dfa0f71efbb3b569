// SPDX-License-Identifier: MPL-2.0

package builtin

import (
	"context"
	"io"

	"mvdan.cc/sh/v3/interp"
)

type (
	// HandlerContext is the slice of interpreter state a builtin may use.
	HandlerContext struct {
		Stdin  io.Reader
		Stdout io.Writer
		Stderr io.Writer
		// Dir is the current working directory.
		Dir string
		// LookupEnv retrieves variables from the script's environment.
		LookupEnv func(string) (string, bool)
	}

	// Host is the worker registry as seen from a script: spawn and join by
	// handle text. Spawned workers inherit the stdio of the worker that spawned
	// them, not of the command substitution the spawn ran in.
	Host interface {
		Spawn(ctx context.Context, script string) (string, error)
		Join(ctx context.Context, handle string) error
	}

	handlerContextKey struct{}
	hostKey           struct{}
)

// ExtractHandlerContext reads the interpreter's handler context.
func ExtractHandlerContext(ctx context.Context) *HandlerContext {
	hc := interp.HandlerCtx(ctx)
	return &HandlerContext{
		Stdin:  hc.Stdin,
		Stdout: hc.Stdout,
		Stderr: hc.Stderr,
		Dir:    hc.Dir,
		LookupEnv: func(name string) (string, bool) {
			v := hc.Env.Get(name)
			return v.Str, v.Set
		},
	}
}

// WithHandlerContext stores hc in ctx. Used by tests to run builtins outside an
// interpreter.
func WithHandlerContext(ctx context.Context, hc *HandlerContext) context.Context {
	return context.WithValue(ctx, handlerContextKey{}, hc)
}

// GetHandlerContext returns the HandlerContext injected with WithHandlerContext,
// falling back to the interpreter's handler context.
func GetHandlerContext(ctx context.Context) *HandlerContext {
	if hc, ok := ctx.Value(handlerContextKey{}).(*HandlerContext); ok {
		return hc
	}
	return ExtractHandlerContext(ctx)
}

// WithHost attaches the registry a script may spawn into.
func WithHost(ctx context.Context, h Host) context.Context {
	return context.WithValue(ctx, hostKey{}, h)
}

// HostFrom returns the Host attached to ctx, if any.
func HostFrom(ctx context.Context) (Host, bool) {
	h, ok := ctx.Value(hostKey{}).(Host)
	return h, ok && h != nil
}
