// SPDX-License-Identifier: MPL-2.0

package builtin

import (
	"context"
	"errors"
	"fmt"
)

// ErrNoHost is returned by spawn and join when the script runs without a registry.
var ErrNoHost = errors.New("no worker registry attached")

type (
	// spawnCommand starts a new worker running SCRIPT and prints its handle.
	spawnCommand struct{ baseCommand }

	// joinCommand waits for each HANDLE in order.
	joinCommand struct{ baseCommand }
)

func init() {
	RegisterDefault(&spawnCommand{baseCommand{name: "spawn", synopsis: "spawn SCRIPT"}})
	RegisterDefault(&joinCommand{baseCommand{name: "join", synopsis: "join HANDLE..."}})
}

// Run spawns the worker and prints its handle, so scripts can capture it with
// h=$(spawn '...').
func (c *spawnCommand) Run(ctx context.Context, args []string) error {
	if len(args) != 2 {
		return wrapError(c.name, usageError(c.synopsis))
	}
	host, ok := HostFrom(ctx)
	if !ok {
		return wrapError(c.name, ErrNoHost)
	}
	h, err := host.Spawn(ctx, args[1])
	if err != nil {
		return wrapError(c.name, err)
	}
	_, err = fmt.Fprintln(GetHandlerContext(ctx).Stdout, h)
	return wrapError(c.name, err)
}

// Run joins every handle, stopping at the first failure.
func (c *joinCommand) Run(ctx context.Context, args []string) error {
	if len(args) < 2 {
		return wrapError(c.name, usageError(c.synopsis))
	}
	host, ok := HostFrom(ctx)
	if !ok {
		return wrapError(c.name, ErrNoHost)
	}
	for _, h := range args[1:] {
		if err := host.Join(ctx, h); err != nil {
			return wrapError(c.name, err)
		}
	}
	return nil
}
