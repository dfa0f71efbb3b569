// SPDX-License-Identifier: MPL-2.0

package worker

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/rtpx/rtpx/internal/rterr"
)

const handlePrefix = "rt"

// Handle identifies one spawned worker. The zero Handle is never issued.
type Handle struct {
	registry uint32
	slot     uint32
}

// ParseHandle parses the text form produced by Handle.String.
func ParseHandle(s string) (Handle, error) {
	rest, ok := strings.CutPrefix(strings.TrimSpace(s), handlePrefix)
	if !ok {
		return Handle{}, rterr.InvalidArgument("handle", s, "expected rt<registry>.<slot>")
	}
	regText, slotText, ok := strings.Cut(rest, ".")
	if !ok {
		return Handle{}, rterr.InvalidArgument("handle", s, "expected rt<registry>.<slot>")
	}
	reg, err := strconv.ParseUint(regText, 16, 32)
	if err != nil || reg == 0 {
		return Handle{}, rterr.InvalidArgument("handle", s, "bad registry id")
	}
	slot, err := strconv.ParseUint(slotText, 10, 32)
	if err != nil {
		return Handle{}, rterr.InvalidArgument("handle", s, "bad slot")
	}
	return Handle{registry: uint32(reg), slot: uint32(slot)}, nil
}

// String returns "rt<registry-hex>.<slot>".
func (h Handle) String() string {
	if h.IsZero() {
		return "rt0.0"
	}
	return fmt.Sprintf("%s%x.%d", handlePrefix, h.registry, h.slot)
}

// IsZero reports whether h is the zero Handle.
func (h Handle) IsZero() bool { return h.registry == 0 }

// Slot returns the registry slot h refers to.
func (h Handle) Slot() int { return int(h.slot) }

// MarshalText implements encoding.TextMarshaler.
func (h Handle) MarshalText() ([]byte, error) { return []byte(h.String()), nil }
