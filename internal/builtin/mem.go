// SPDX-License-Identifier: MPL-2.0

package builtin

import (
	"context"
	"fmt"

	"github.com/rtpx/rtpx/internal/memlock"
)

type (
	mlockallCommand   struct{ baseCommand }
	munlockallCommand struct{ baseCommand }
	flavorCommand     struct{ baseCommand }
)

func init() {
	RegisterDefault(&mlockallCommand{baseCommand{name: "mlockall", synopsis: "mlockall MCL_CURRENT|MCL_FUTURE|MCL_BOTH"}})
	RegisterDefault(&munlockallCommand{baseCommand{name: "munlockall", synopsis: "munlockall"}})
	RegisterDefault(&flavorCommand{baseCommand{name: "rt_flavor", synopsis: "rt_flavor"}})
}

// Run locks process memory with the given scope.
func (c *mlockallCommand) Run(_ context.Context, args []string) error {
	if len(args) != 2 {
		return wrapError(c.name, usageError(c.synopsis))
	}
	scope, err := memlock.ParseScope(args[1])
	if err != nil {
		return wrapError(c.name, err)
	}
	return wrapError(c.name, memlock.Lock(scope))
}

// Run releases every memory lock of the process.
func (c *munlockallCommand) Run(context.Context, []string) error {
	return wrapError(c.name, memlock.Unlock())
}

// Run prints the kernel flavor.
func (c *flavorCommand) Run(ctx context.Context, _ []string) error {
	_, err := fmt.Fprintln(GetHandlerContext(ctx).Stdout, memlock.RuntimeFlavor())
	return wrapError(c.name, err)
}
