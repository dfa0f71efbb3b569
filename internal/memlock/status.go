// SPDX-License-Identifier: MPL-2.0

package memlock

import (
	"context"
	"fmt"
	"math"
	"os"

	"github.com/shirou/gopsutil/v4/mem"
	"github.com/shirou/gopsutil/v4/process"
)

type (
	// Limit is a soft/hard resource limit pair.
	Limit struct {
		Soft uint64 `json:"soft" yaml:"soft"`
		Hard uint64 `json:"hard" yaml:"hard"`
	}

	// Status summarizes how much memory the process has pinned and what it may pin.
	Status struct {
		Flavor Flavor `json:"flavor" yaml:"flavor"`
		// LockedBytes is the process's VmLck.
		LockedBytes uint64 `json:"locked_bytes" yaml:"locked_bytes"`
		// MemlockLimit is RLIMIT_MEMLOCK in bytes.
		MemlockLimit Limit `json:"memlock_limit" yaml:"memlock_limit"`
		// RtprioLimit is RLIMIT_RTPRIO, the highest real-time priority an
		// unprivileged thread may request.
		RtprioLimit Limit `json:"rtprio_limit" yaml:"rtprio_limit"`
		// SystemTotal is the physical memory of the machine in bytes, the upper
		// bound of what any process can pin.
		SystemTotal uint64 `json:"system_total" yaml:"system_total"`
	}
)

// Unlimited reports whether the soft limit is RLIM_INFINITY.
func (l Limit) Unlimited() bool { return l.Soft == math.MaxUint64 }

// String formats the limit as soft/hard with "unlimited" for infinity.
func (l Limit) String() string {
	return fmt.Sprintf("%s/%s", limitValue(l.Soft), limitValue(l.Hard))
}

func limitValue(v uint64) string {
	if v == math.MaxUint64 {
		return "unlimited"
	}
	return fmt.Sprint(v)
}

// ReadStatus gathers the memory-lock status of the current process.
func ReadStatus(ctx context.Context) (Status, error) {
	st := Status{Flavor: RuntimeFlavor()}

	p, err := process.NewProcessWithContext(ctx, int32(os.Getpid()))
	if err != nil {
		return st, fmt.Errorf("inspect process: %w", err)
	}

	mi, err := p.MemoryInfoWithContext(ctx)
	if err != nil {
		return st, fmt.Errorf("read process memory: %w", err)
	}
	st.LockedBytes = mi.Locked

	limits, err := p.RlimitWithContext(ctx)
	if err != nil {
		return st, fmt.Errorf("read resource limits: %w", err)
	}
	for _, l := range limits {
		switch l.Resource {
		case process.RLIMIT_MEMLOCK:
			st.MemlockLimit = Limit{Soft: l.Soft, Hard: l.Hard}
		case process.RLIMIT_RTPRIO:
			st.RtprioLimit = Limit{Soft: l.Soft, Hard: l.Hard}
		}
	}

	vm, err := mem.VirtualMemoryWithContext(ctx)
	if err != nil {
		return st, fmt.Errorf("read system memory: %w", err)
	}
	st.SystemTotal = vm.Total

	return st, nil
}
