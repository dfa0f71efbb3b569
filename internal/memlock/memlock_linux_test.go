// SPDX-License-Identifier: MPL-2.0

//go:build linux

package memlock

import (
	"context"
	"errors"
	"os"
	"testing"

	"github.com/rtpx/rtpx/internal/rterr"
)

func TestLock_BothWithoutPrivilege(t *testing.T) {
	if os.Geteuid() == 0 {
		t.Skip("running as root; mlockall would succeed")
	}
	st, err := ReadStatus(context.Background())
	if err != nil {
		t.Skipf("cannot read limits: %v", err)
	}
	if st.MemlockLimit.Unlimited() {
		t.Skip("RLIMIT_MEMLOCK is unlimited")
	}

	err = Lock(Both)
	if err == nil {
		_ = Unlock()
		t.Skip("mlockall fit inside RLIMIT_MEMLOCK")
	}
	if !errors.Is(err, rterr.ErrPermissionDenied) {
		t.Errorf("Lock(MCL_BOTH) error = %v, want ErrPermissionDenied", err)
	}
}

func TestUnlock_WithoutLocks(t *testing.T) {
	t.Parallel()

	if err := Unlock(); err != nil {
		t.Errorf("Unlock() error: %v", err)
	}
}

func TestReadStatus(t *testing.T) {
	t.Parallel()

	st, err := ReadStatus(context.Background())
	if err != nil {
		t.Fatalf("ReadStatus() error: %v", err)
	}
	if st.Flavor != Standard && st.Flavor != RealtimePatched {
		t.Errorf("Flavor = %q", st.Flavor)
	}
	if st.SystemTotal == 0 {
		t.Error("SystemTotal = 0")
	}
	if st.MemlockLimit.Hard < st.MemlockLimit.Soft {
		t.Errorf("MemlockLimit = %s, hard below soft", st.MemlockLimit)
	}
}
