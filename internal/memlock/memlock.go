// SPDX-License-Identifier: MPL-2.0

package memlock

import (
	"strings"

	"github.com/rtpx/rtpx/internal/rterr"
)

const (
	// Current locks every page mapped now.
	Current Scope = "MCL_CURRENT"
	// Future locks every page mapped from now on.
	Future Scope = "MCL_FUTURE"
	// Both is Current and Future together.
	Both Scope = "MCL_BOTH"

	// Standard is a mainline kernel.
	Standard Flavor = "standard"
	// RealtimePatched is a kernel built with PREEMPT_RT.
	RealtimePatched Flavor = "realtime-patched"
)

type (
	// Scope selects which mappings mlockall pins.
	Scope string

	// Flavor identifies the kernel's real-time capability.
	Flavor string
)

// Scopes returns the supported scopes in a stable order.
func Scopes() []Scope { return []Scope{Current, Future, Both} }

// ParseScope accepts MCL_CURRENT, MCL_FUTURE, MCL_BOTH, with or without the
// MCL_ prefix and in any case.
func ParseScope(s string) (Scope, error) {
	n := strings.ToUpper(strings.TrimSpace(s))
	n = strings.TrimPrefix(n, "MCL_")
	switch n {
	case "CURRENT":
		return Current, nil
	case "FUTURE":
		return Future, nil
	case "BOTH":
		return Both, nil
	default:
		return "", rterr.InvalidArgument("lock scope", s, "expected MCL_CURRENT, MCL_FUTURE or MCL_BOTH")
	}
}

// Validate returns an InvalidArgumentError when s is not a known scope.
func (s Scope) Validate() error {
	switch s {
	case Current, Future, Both:
		return nil
	default:
		return rterr.InvalidArgument("lock scope", string(s), "")
	}
}

// String returns the scope name.
func (s Scope) String() string { return string(s) }

// String returns the flavor name.
func (f Flavor) String() string { return string(f) }

// flavorFrom classifies the kernel from the contents of /sys/kernel/realtime
// (empty when absent) and the kernel version string.
func flavorFrom(realtimeFlag []byte, version string) Flavor {
	if strings.TrimSpace(string(realtimeFlag)) == "1" {
		return RealtimePatched
	}
	if strings.Contains(version, "PREEMPT_RT") || strings.Contains(version, "PREEMPT RT") {
		return RealtimePatched
	}
	return Standard
}
