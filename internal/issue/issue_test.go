// SPDX-License-Identifier: MPL-2.0

package issue

import (
	"errors"
	"fmt"
	"strings"
	"syscall"
	"testing"

	"github.com/rtpx/rtpx/internal/rterr"
)

func TestValuesOrderedAndComplete(t *testing.T) {
	t.Parallel()

	all := Values()
	if len(all) != len(issues) {
		t.Fatalf("Values() returned %d issues, want %d", len(all), len(issues))
	}
	for i, is := range all {
		if want := Id(i + 1); is.Id() != want {
			t.Errorf("Values()[%d].Id() = %d, want %d", i, is.Id(), want)
		}
		if strings.TrimSpace(string(is.MarkdownMsg())) == "" {
			t.Errorf("issue %d has an empty message", is.Id())
		}
	}
}

func TestGet(t *testing.T) {
	t.Parallel()

	for _, id := range []Id{PermissionDeniedId, RegistryFullId, InvalidArgumentId, UnsupportedPlatformId, ConfigLoadFailedId, ScriptFailedId, ServeFailedId} {
		if got := Get(id); got == nil || got.Id() != id {
			t.Errorf("Get(%d) = %v", id, got)
		}
	}
	if Get(Id(0)) != nil || Get(Id(9999)) != nil {
		t.Error("Get() of an unknown id should be nil")
	}
}

func TestLinksAreCopies(t *testing.T) {
	t.Parallel()

	is := Get(PermissionDeniedId)
	links := is.ExtLinks()
	if len(links) == 0 {
		t.Fatal("expected external links")
	}
	links[0] = "mutated"
	if is.ExtLinks()[0] == "mutated" {
		t.Error("ExtLinks() exposed the internal slice")
	}
}

func TestRenderAppendsLinks(t *testing.T) {
	var got string
	saved := render
	render = func(in, _ string) (string, error) {
		got = in
		return in, nil
	}
	t.Cleanup(func() { render = saved })

	if _, err := Get(PermissionDeniedId).Render(""); err != nil {
		t.Fatalf("Render() error = %v", err)
	}
	if !strings.Contains(got, "# Permission denied!") || !strings.Contains(got, "sched.7.html") {
		t.Errorf("rendered markdown missing content:\n%s", got)
	}

	if _, err := Get(RegistryFullId).Render(""); err != nil {
		t.Fatalf("Render() error = %v", err)
	}
	if strings.Contains(got, "See also") {
		t.Error("issue without links should not get a See also section")
	}
}

func TestForError(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		err  error
		want Id
		ok   bool
	}{
		{"nil", nil, 0, false},
		{"plain", errors.New("boom"), 0, false},
		{"denied", rterr.Denied("sched_setattr", syscall.EPERM), PermissionDeniedId, true},
		{"exhausted", &rterr.ResourceExhaustedError{Resource: "runtime registry", Capacity: 1}, RegistryFullId, true},
		{"invalid", rterr.InvalidArgument("clock", "BOGUS", "unknown clock"), InvalidArgumentId, true},
		{"enosys", rterr.FromErrno("clock_gettime", syscall.ENOSYS), UnsupportedPlatformId, true},
		{"wrapped", fmt.Errorf("run: %w", rterr.Denied("mlockall", syscall.ENOMEM)), PermissionDeniedId, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			got, ok := ForError(tt.err)
			if ok != tt.ok {
				t.Fatalf("ForError() ok = %v, want %v", ok, tt.ok)
			}
			if ok && got.Id() != tt.want {
				t.Errorf("ForError() = %d, want %d", got.Id(), tt.want)
			}
		})
	}
}
