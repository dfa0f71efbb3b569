// SPDX-License-Identifier: MPL-2.0

package builtin

import (
	"context"
	"fmt"
	"maps"
	"slices"
	"sync"
)

// DefaultRegistry is the command set every worker gets unless its registry was
// built WithBuiltins. The builtins in this package add themselves from init.
var DefaultRegistry = NewRegistry()

// Registry resolves script command names to builtins. Safe for concurrent use.
type Registry struct {
	mu       sync.RWMutex
	commands map[string]Command
}

func NewRegistry() *Registry {
	return &Registry{commands: make(map[string]Command)}
}

// Register adds cmd. Registering an empty or duplicate name is a programming
// error and panics.
func (r *Registry) Register(cmd Command) {
	name := cmd.Name()
	if name == "" {
		panic("builtin: empty command name")
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if _, dup := r.commands[name]; dup {
		panic(fmt.Sprintf("builtin: %q registered twice", name))
	}
	r.commands[name] = cmd
}

func (r *Registry) Lookup(name string) (Command, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	cmd, ok := r.commands[name]
	return cmd, ok
}

// Names lists the registered commands alphabetically.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return slices.Sorted(maps.Keys(r.commands))
}

// Run dispatches args to the command called name. args[0] is the name itself.
func (r *Registry) Run(ctx context.Context, name string, args []string) error {
	cmd, ok := r.Lookup(name)
	if !ok {
		return fmt.Errorf("[rtpx] %s: command not found", name)
	}
	return cmd.Run(ctx, args)
}

// RegisterDefault adds cmd to DefaultRegistry.
func RegisterDefault(cmd Command) {
	DefaultRegistry.Register(cmd)
}

// wrapError tags err with the failing builtin's name.
func wrapError(cmdName string, err error) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("[rtpx] %s: %w", cmdName, err)
}
