// SPDX-License-Identifier: MPL-2.0

package rtsched

import (
	"fmt"
	"strings"

	"github.com/rtpx/rtpx/internal/rterr"
)

const (
	// Other is the default time-sharing policy. Its priority is always 0.
	Other Policy = "SCHED_OTHER"
	// FIFO is first-in first-out real-time scheduling.
	FIFO Policy = "SCHED_FIFO"
	// RR is round-robin real-time scheduling.
	RR Policy = "SCHED_RR"
)

type (
	// Policy is one of the scheduling classes this package can assign.
	Policy string

	// Params is the scheduling state of a thread. Policy may hold a kernel class
	// outside Other/FIFO/RR (e.g. SCHED_BATCH) when reading a thread configured by
	// someone else; such values are rejected by SetSchedule.
	Params struct {
		Policy   Policy `json:"policy" yaml:"policy"`
		Priority int    `json:"priority" yaml:"priority"`
	}

	// Range is the inclusive priority range of a policy.
	Range struct {
		Min int `json:"min" yaml:"min"`
		Max int `json:"max" yaml:"max"`
	}
)

// Policies returns the assignable policies in a stable order.
func Policies() []Policy { return []Policy{Other, FIFO, RR} }

// ParsePolicy accepts SCHED_OTHER, SCHED_FIFO and SCHED_RR, with or without the
// SCHED_ prefix and in any case. NORMAL is accepted as the Linux name of OTHER.
func ParsePolicy(s string) (Policy, error) {
	n := strings.ToUpper(strings.TrimSpace(s))
	n = strings.TrimPrefix(n, "SCHED_")
	switch n {
	case "OTHER", "NORMAL":
		return Other, nil
	case "FIFO":
		return FIFO, nil
	case "RR":
		return RR, nil
	default:
		return "", rterr.InvalidArgument("policy", s, "expected SCHED_OTHER, SCHED_FIFO or SCHED_RR")
	}
}

// Validate returns an InvalidArgumentError when p is not assignable.
func (p Policy) Validate() error {
	switch p {
	case Other, FIFO, RR:
		return nil
	default:
		return rterr.InvalidArgument("policy", string(p), "")
	}
}

// String returns the policy name.
func (p Policy) String() string { return string(p) }

// IsRealtime reports whether p is one of the real-time classes.
func (p Policy) IsRealtime() bool { return p == FIFO || p == RR }

// String formats the params as "POLICY PRIORITY".
func (p Params) String() string { return fmt.Sprintf("%s %d", p.Policy, p.Priority) }

// normalize validates the request and applies the OTHER-means-priority-0 rule.
func normalize(policy Policy, priority int) (int, error) {
	if err := policy.Validate(); err != nil {
		return 0, err
	}
	if priority < 0 {
		return 0, rterr.InvalidArgument("priority", fmt.Sprint(priority), "must not be negative")
	}
	if policy == Other {
		return 0, nil
	}
	if priority > maxKernelPriority {
		return 0, rterr.InvalidArgument("priority", fmt.Sprint(priority), "out of range")
	}
	return priority, nil
}

// maxKernelPriority bounds the value before it is narrowed to the kernel's uint32.
const maxKernelPriority = 1<<31 - 1
