// SPDX-License-Identifier: MPL-2.0

package worker

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rtpx/rtpx/internal/rterr"

	"github.com/charmbracelet/log"
)

type (
	// syncBuffer is a bytes.Buffer safe for concurrent writers.
	syncBuffer struct {
		mu  sync.Mutex
		buf bytes.Buffer
	}

	// fakeLocker hands out increasing thread ids without pinning threads.
	fakeLocker struct {
		locks atomic.Int32
		next  atomic.Int32
	}
)

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *syncBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

func (f *fakeLocker) LockOSThread() { f.locks.Add(1) }

func (f *fakeLocker) ThreadID() int { return 1000 + int(f.next.Add(1)) }

func newTestRegistry(t *testing.T, opts ...Option) (*Registry, *syncBuffer) {
	t.Helper()

	logs := &syncBuffer{}
	opts = append([]Option{
		WithLogger(log.New(logs)),
		WithThreadLocker(&fakeLocker{}),
		WithInheritEnv(false),
	}, opts...)
	r, err := New(opts...)
	if err != nil {
		t.Fatalf("New() error: %v", err)
	}
	return r, logs
}

func TestNew_InvalidCapacity(t *testing.T) {
	t.Parallel()

	for _, n := range []int{0, -1} {
		if _, err := New(WithCapacity(n)); !errors.Is(err, rterr.ErrInvalidArgument) {
			t.Errorf("New(WithCapacity(%d)) error = %v, want ErrInvalidArgument", n, err)
		}
	}
}

func TestNew_InvalidDefaultSchedule(t *testing.T) {
	t.Parallel()

	if _, err := New(WithDefaultSchedule("SCHED_BATCH", 0)); !errors.Is(err, rterr.ErrInvalidArgument) {
		t.Errorf("New() error = %v, want ErrInvalidArgument", err)
	}
}

func TestNew_DefaultCapacity(t *testing.T) {
	t.Parallel()

	r, _ := newTestRegistry(t)
	if r.Capacity() != DefaultCapacity {
		t.Errorf("Capacity() = %d, want %d", r.Capacity(), DefaultCapacity)
	}
	if r.Len() != 0 {
		t.Errorf("Len() = %d, want 0", r.Len())
	}
}

func TestSpawn_SequentialUntilExhausted(t *testing.T) {
	t.Parallel()

	const capacity = 3
	r, _ := newTestRegistry(t, WithCapacity(capacity))

	var handles []Handle
	for range capacity {
		h, err := r.Spawn("true", WithStdio(nil, nil, nil))
		if err != nil {
			t.Fatalf("Spawn() error: %v", err)
		}
		handles = append(handles, h)
	}

	for i, h := range handles {
		if h.Slot() != i {
			t.Errorf("handle %d has slot %d", i, h.Slot())
		}
		if h.IsZero() {
			t.Errorf("handle %d is zero", i)
		}
	}

	_, err := r.Spawn("true")
	var exhausted *rterr.ResourceExhaustedError
	if !errors.As(err, &exhausted) || exhausted.Capacity != capacity {
		t.Fatalf("Spawn() past capacity error = %v, want ResourceExhaustedError{Capacity: %d}", err, capacity)
	}
	if r.Len() != capacity {
		t.Errorf("Len() = %d after exhaustion, want %d", r.Len(), capacity)
	}

	if err := r.JoinAll(context.Background(), handles...); err != nil {
		t.Fatalf("JoinAll() error: %v", err)
	}
}

func TestSpawn_ConcurrentNeverShareSlots(t *testing.T) {
	t.Parallel()

	const capacity = 64
	r, _ := newTestRegistry(t, WithCapacity(capacity))

	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		handles   []Handle
		exhausted atomic.Int32
	)
	for range capacity + 8 {
		wg.Go(func() {
			h, err := r.Spawn("true", WithStdio(nil, nil, nil))
			if errors.Is(err, rterr.ErrResourceExhausted) {
				exhausted.Add(1)
				return
			}
			if err != nil {
				t.Errorf("Spawn() error: %v", err)
				return
			}
			mu.Lock()
			handles = append(handles, h)
			mu.Unlock()
		})
	}
	wg.Wait()

	if len(handles) != capacity || exhausted.Load() != 8 {
		t.Fatalf("got %d handles and %d exhaustions, want %d and 8", len(handles), exhausted.Load(), capacity)
	}
	seen := make(map[int]bool, capacity)
	for _, h := range handles {
		if seen[h.Slot()] {
			t.Fatalf("slot %d issued twice", h.Slot())
		}
		seen[h.Slot()] = true
	}
	if err := r.JoinAll(context.Background(), handles...); err != nil {
		t.Fatal(err)
	}
}

func TestJoin_AfterExitAndTwice(t *testing.T) {
	t.Parallel()

	r, _ := newTestRegistry(t)
	out := &syncBuffer{}
	h, err := r.Spawn("sleep 0.02; echo done", WithStdio(nil, out, out))
	if err != nil {
		t.Fatal(err)
	}

	if err := r.Join(h); err != nil {
		t.Fatalf("Join() error: %v", err)
	}
	if strings.TrimSpace(out.String()) != "done" {
		t.Errorf("Join() returned before the script finished: output %q", out.String())
	}
	rec, err := r.Lookup(h)
	if err != nil {
		t.Fatal(err)
	}
	if rec.State != StateExited {
		t.Errorf("State = %s after Join, want exited", rec.State)
	}

	if err := r.Join(h); err != nil {
		t.Errorf("second Join() error: %v", err)
	}
}

func TestJoin_ForeignHandle(t *testing.T) {
	t.Parallel()

	a, _ := newTestRegistry(t)
	b, _ := newTestRegistry(t)

	h, err := a.Spawn("true", WithStdio(nil, nil, nil))
	if err != nil {
		t.Fatal(err)
	}
	if err := b.Join(h); !errors.Is(err, rterr.ErrInvalidArgument) {
		t.Errorf("Join(foreign handle) error = %v, want ErrInvalidArgument", err)
	}
	if err := a.Join(Handle{}); !errors.Is(err, rterr.ErrInvalidArgument) {
		t.Errorf("Join(zero handle) error = %v, want ErrInvalidArgument", err)
	}
	if err := a.Join(Handle{registry: h.registry, slot: 99}); !errors.Is(err, rterr.ErrInvalidArgument) {
		t.Errorf("Join(unissued slot) error = %v, want ErrInvalidArgument", err)
	}
	if err := a.Join(h); err != nil {
		t.Fatal(err)
	}
}

func TestJoinContext_Cancelled(t *testing.T) {
	t.Parallel()

	r, _ := newTestRegistry(t)
	runCtx, stop := context.WithCancel(context.Background())
	defer stop()

	h, err := r.Spawn("sleep 30", WithContext(runCtx), WithStdio(nil, nil, nil))
	if err != nil {
		t.Fatal(err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	if err := r.JoinContext(ctx, h); !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("JoinContext() error = %v, want DeadlineExceeded", err)
	}

	stop()
	if err := r.Join(h); err != nil {
		t.Errorf("Join() after cancelling the script: %v", err)
	}
}

func TestSpawn_SelfIdentifier(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		script   string
		wantLogs string
		wantCode int
	}{
		{name: "success", script: `echo "$self"`},
		{name: "script failure is only logged", script: `echo "$self"; exit 4`, wantLogs: "non-zero status", wantCode: 4},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			r, logs := newTestRegistry(t)
			out := &syncBuffer{}
			h, err := r.Spawn(tt.script, WithStdio(nil, out, out))
			if err != nil {
				t.Fatalf("Spawn() error: %v", err)
			}
			if err := r.Join(h); err != nil {
				t.Fatalf("Join() error: %v", err)
			}
			if got := strings.TrimSpace(out.String()); got != h.String() {
				t.Errorf("script printed %q, want its handle %q", got, h.String())
			}
			if tt.wantLogs != "" && !strings.Contains(logs.String(), tt.wantLogs) {
				t.Errorf("logs = %q, want %q", logs.String(), tt.wantLogs)
			}
			if rec, _ := r.Lookup(h); rec.ExitCode != tt.wantCode {
				t.Errorf("ExitCode = %d, want %d", rec.ExitCode, tt.wantCode)
			}
		})
	}
}

func TestSpawn_ParseErrorIsLogged(t *testing.T) {
	t.Parallel()

	r, logs := newTestRegistry(t)
	h, err := r.Spawn("if then (((", WithStdio(nil, nil, nil))
	if err != nil {
		t.Fatalf("Spawn() error = %v, want nil for a script failure", err)
	}
	if err := r.Join(h); err != nil {
		t.Fatal(err)
	}
	rec, _ := r.Lookup(h)
	if rec.State != StateFailed || rec.ExitCode != 2 {
		t.Errorf("State = %s exit %d, want failed exit 2", rec.State, rec.ExitCode)
	}
	if !strings.Contains(logs.String(), "bootstrap failed") {
		t.Errorf("logs = %q", logs.String())
	}
}

func TestSpawn_RecordsAndThreadLock(t *testing.T) {
	t.Parallel()

	locker := &fakeLocker{}
	r, _ := newTestRegistry(t, WithThreadLocker(locker))

	h1, _ := r.Spawn("true", WithStdio(nil, nil, nil))
	h2, _ := r.Spawn("true", WithStdio(nil, nil, nil))
	if err := r.JoinAll(context.Background(), h1, h2); err != nil {
		t.Fatal(err)
	}

	if locker.locks.Load() != 2 {
		t.Errorf("LockOSThread called %d times, want 2", locker.locks.Load())
	}
	recs := r.Records()
	if len(recs) != 2 || recs[0].Handle != h1 || recs[1].Handle != h2 {
		t.Fatalf("Records() = %+v", recs)
	}
	if recs[0].ThreadID == recs[1].ThreadID || recs[0].ThreadID == 0 {
		t.Errorf("thread ids %d and %d", recs[0].ThreadID, recs[1].ThreadID)
	}
	if recs[0].ExecutionID == "" || recs[0].ExecutionID == recs[1].ExecutionID {
		t.Errorf("execution ids %q and %q", recs[0].ExecutionID, recs[1].ExecutionID)
	}
	if recs[0].Script != "true" {
		t.Errorf("Script = %q", recs[0].Script)
	}
}

func TestSpawn_Environment(t *testing.T) {
	t.Parallel()

	r, _ := newTestRegistry(t)
	out := &syncBuffer{}
	h, err := r.Spawn(`echo "$GREETING $RTPX_EXECUTION_ID"`, WithStdio(nil, out, out), WithEnv("GREETING=hello"))
	if err != nil {
		t.Fatal(err)
	}
	if err := r.Join(h); err != nil {
		t.Fatal(err)
	}
	rec, _ := r.Lookup(h)
	if got := strings.TrimSpace(out.String()); got != "hello "+rec.ExecutionID {
		t.Errorf("output = %q", got)
	}
}

func TestScript_SpawnsAndJoinsSibling(t *testing.T) {
	t.Parallel()

	r, _ := newTestRegistry(t)
	out := &syncBuffer{}
	h, err := r.Spawn(`c=$(spawn 'echo child'); join "$c"; echo parent; join "$self" || echo rejected`, WithStdio(nil, out, out))
	if err != nil {
		t.Fatal(err)
	}
	if err := r.Join(h); err != nil {
		t.Fatal(err)
	}

	got := out.String()
	for _, want := range []string{"child", "parent", "rejected", "cannot join itself"} {
		if !strings.Contains(got, want) {
			t.Errorf("output %q does not contain %q", got, want)
		}
	}
	if r.Len() != 2 {
		t.Errorf("Len() = %d, want 2", r.Len())
	}
}

func TestState_String(t *testing.T) {
	t.Parallel()

	for s, want := range map[State]string{
		StateCreated: "created", StateBootstrapping: "bootstrapping", StateRunning: "running",
		StateExited: "exited", StateFailed: "failed", State(42): "unknown",
	} {
		if s.String() != want {
			t.Errorf("State(%d).String() = %q, want %q", s, s.String(), want)
		}
	}
	if !StateExited.IsTerminal() || !StateFailed.IsTerminal() || StateRunning.IsTerminal() {
		t.Error("IsTerminal() classification is wrong")
	}
}
