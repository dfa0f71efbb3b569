// SPDX-License-Identifier: MPL-2.0

package builtin

import "context"

type (
	// Command is a builtin callable from worker scripts.
	Command interface {
		// Name returns the command name as typed in a script.
		Name() string

		// Synopsis returns a one-line usage string for help output.
		Synopsis() string

		// Run executes the command. args[0] is the command name.
		// Returns nil on success, or an error prefixed with "[rtpx] <cmd>:".
		Run(ctx context.Context, args []string) error
	}

	// baseCommand carries the static parts shared by every builtin.
	baseCommand struct {
		name     string
		synopsis string
	}
)

// Name returns the command name.
func (c *baseCommand) Name() string { return c.name }

// Synopsis returns the usage line.
func (c *baseCommand) Synopsis() string { return c.synopsis }
