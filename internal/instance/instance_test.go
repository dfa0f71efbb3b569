// SPDX-License-Identifier: MPL-2.0

package instance

import (
	"bytes"
	"context"
	"os/exec"
	"strings"
	"testing"
	"time"

	"github.com/rtpx/rtpx/internal/builtin"
)

func newTestInstance(t *testing.T, cfg Config) (*Instance, *bytes.Buffer, *bytes.Buffer) {
	t.Helper()

	var stdout, stderr bytes.Buffer
	cfg.Stdout = &stdout
	cfg.Stderr = &stderr
	if cfg.Dir == "" {
		cfg.Dir = t.TempDir()
	}
	inst, err := New(cfg)
	if err != nil {
		t.Fatalf("New() error: %v", err)
	}
	return inst, &stdout, &stderr
}

func TestInstance_BindsIdentity(t *testing.T) {
	t.Parallel()

	inst, stdout, _ := newTestInstance(t, Config{
		Script:      `echo "$self $RTPX_THREAD_ID $RTPX_EXECUTION_ID"`,
		Self:        "rt1.0",
		ThreadID:    4242,
		ExecutionID: "exec-1",
		Env:         []string{"self=inherited"},
	})

	res := inst.Run(context.Background())
	if res.Failed() {
		t.Fatalf("Run() = %+v", res)
	}
	if got := strings.TrimSpace(stdout.String()); got != "rt1.0 4242 exec-1" {
		t.Errorf("stdout = %q", got)
	}
}

func TestInstance_ExitStatus(t *testing.T) {
	t.Parallel()

	inst, _, _ := newTestInstance(t, Config{Script: "exit 3"})
	res := inst.Run(context.Background())
	if res.ExitCode != 3 || res.Error != nil {
		t.Errorf("Run() = %+v, want exit 3 without error", res)
	}
	if !res.Failed() {
		t.Error("Failed() = false for exit 3")
	}
}

func TestNew_ParseError(t *testing.T) {
	t.Parallel()

	if _, err := New(Config{Script: "if then fi ((("}); err == nil {
		t.Fatal("New() accepted a malformed script")
	}
}

func TestInstance_BuiltinFailureSetsStatus(t *testing.T) {
	t.Parallel()

	inst, stdout, stderr := newTestInstance(t, Config{
		Script: `sleep bogus; echo "status=$?"; clock_gettime NOPE || echo failed`,
	})
	res := inst.Run(context.Background())
	if res.Failed() {
		t.Fatalf("Run() = %+v", res)
	}
	out := stdout.String()
	if !strings.Contains(out, "status=2") || !strings.Contains(out, "failed") {
		t.Errorf("stdout = %q", out)
	}
	if !strings.Contains(stderr.String(), "[rtpx] sleep:") {
		t.Errorf("stderr = %q, want the builtin error", stderr.String())
	}
}

func TestInstance_ExternalCommandsDisabled(t *testing.T) {
	t.Parallel()

	inst, _, stderr := newTestInstance(t, Config{Script: "definitely-not-a-command-rtpx"})
	res := inst.Run(context.Background())
	if res.ExitCode != ExitNotFound {
		t.Errorf("ExitCode = %d, want %d", res.ExitCode, ExitNotFound)
	}
	if !strings.Contains(stderr.String(), "command not found") {
		t.Errorf("stderr = %q", stderr.String())
	}
}

func TestInstance_ExternalCommandsAllowed(t *testing.T) {
	t.Parallel()

	if _, err := exec.LookPath("env"); err != nil {
		t.Skip("env binary not available")
	}
	inst, stdout, _ := newTestInstance(t, Config{
		Script:        "env",
		Self:          "rt7.1",
		Env:           []string{"PATH=/usr/bin:/bin"},
		AllowExternal: true,
	})
	if res := inst.Run(context.Background()); res.Failed() {
		t.Fatalf("Run() = %+v", res)
	}
	if !strings.Contains(stdout.String(), "self=rt7.1") {
		t.Errorf("env output does not contain self: %q", stdout.String())
	}
}

func TestInstance_CustomRegistry(t *testing.T) {
	t.Parallel()

	reg := builtin.NewRegistry()
	inst, _, stderr := newTestInstance(t, Config{Script: "sleep 0", Builtins: reg})
	res := inst.Run(context.Background())
	if res.ExitCode != ExitNotFound {
		t.Errorf("ExitCode = %d, want %d with an empty registry", res.ExitCode, ExitNotFound)
	}
	if !strings.Contains(stderr.String(), "sleep") {
		t.Errorf("stderr = %q", stderr.String())
	}
}

func TestInstance_Cancelled(t *testing.T) {
	t.Parallel()

	inst, _, _ := newTestInstance(t, Config{Script: "sleep 30"})
	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	start := time.Now()
	res := inst.Run(ctx)
	if !res.Failed() {
		t.Error("cancelled script reported success")
	}
	if time.Since(start) > 10*time.Second {
		t.Error("Run() ignored cancellation")
	}
}

type recordingHost struct{ spawned []string }

func (h *recordingHost) Spawn(_ context.Context, script string) (string, error) {
	h.spawned = append(h.spawned, script)
	return "rt2.5", nil
}

func (h *recordingHost) Join(context.Context, string) error { return nil }

func TestInstance_SpawnThroughHost(t *testing.T) {
	t.Parallel()

	host := &recordingHost{}
	inst, stdout, _ := newTestInstance(t, Config{
		Script: `h=$(spawn 'echo child'); join "$h"; echo "got $h"`,
		Host:   host,
	})
	if res := inst.Run(context.Background()); res.Failed() {
		t.Fatalf("Run() = %+v", res)
	}
	if len(host.spawned) != 1 || host.spawned[0] != "echo child" {
		t.Errorf("spawned = %v", host.spawned)
	}
	if got := strings.TrimSpace(stdout.String()); got != "got rt2.5" {
		t.Errorf("stdout = %q", got)
	}
}
