// SPDX-License-Identifier: MPL-2.0

package worker

import (
	"context"
	"fmt"
	"io"
	"math"
	"os"
	"strconv"
	"sync/atomic"
	"time"

	"github.com/rtpx/rtpx/internal/builtin"
	"github.com/rtpx/rtpx/internal/instance"
	"github.com/rtpx/rtpx/internal/rterr"
	"github.com/rtpx/rtpx/internal/rtsched"

	"github.com/charmbracelet/log"
	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"
)

// nextRegistryID numbers registries so handles from one are rejected by another.
var nextRegistryID atomic.Uint32

type (
	// Registry is a fixed-capacity, append-only table of workers.
	// It is safe for concurrent use.
	Registry struct {
		id     uint32
		slots  []atomic.Pointer[record]
		cursor atomic.Uint32

		capacity      int
		logger        *log.Logger
		locker        ThreadLocker
		policy        rtsched.Policy
		priority      int
		pauseGC       bool
		inheritEnv    bool
		allowExternal bool
		builtins      *builtin.Registry
		gc            *gcGuard
	}

	// Record is a snapshot of one registry slot.
	Record struct {
		Handle      Handle    `json:"handle" yaml:"handle"`
		Script      string    `json:"script" yaml:"script"`
		ThreadID    int       `json:"thread_id" yaml:"thread_id"`
		ExecutionID string    `json:"execution_id" yaml:"execution_id"`
		SpawnedAt   time.Time `json:"spawned_at" yaml:"spawned_at"`
		State       State     `json:"state" yaml:"state"`
		// ExitCode is meaningful once State is terminal.
		ExitCode int `json:"exit_code" yaml:"exit_code"`
	}

	// record is the slot content. Every field except state and done is written
	// before the record is published and never changes afterwards.
	record struct {
		handle      Handle
		script      string
		threadID    int
		executionID string
		spawnedAt   time.Time

		state    atomic.Int32
		exitCode atomic.Int32
		done     chan struct{}
	}
)

// New creates a Registry. The default capacity is DefaultCapacity.
func New(opts ...Option) (*Registry, error) {
	r := &Registry{
		capacity:   DefaultCapacity,
		locker:     osThread{},
		pauseGC:    true,
		inheritEnv: true,
		builtins:   builtin.DefaultRegistry,
		gc:         &bootstrapGC,
	}
	for _, opt := range opts {
		opt(r)
	}

	if r.capacity <= 0 || int64(r.capacity) > math.MaxUint32 {
		return nil, rterr.InvalidArgument("capacity", strconv.Itoa(r.capacity), "must be between 1 and 2^32-1")
	}
	if r.policy != "" {
		if err := r.policy.Validate(); err != nil {
			return nil, err
		}
		if r.priority < 0 {
			return nil, rterr.InvalidArgument("priority", strconv.Itoa(r.priority), "must not be negative")
		}
	}
	if r.logger == nil {
		r.logger = log.NewWithOptions(os.Stderr, log.Options{Prefix: "worker"})
	}

	r.id = nextRegistryID.Add(1)
	r.slots = make([]atomic.Pointer[record], r.capacity)
	return r, nil
}

// Capacity returns the number of slots.
func (r *Registry) Capacity() int { return len(r.slots) }

// Len returns the number of slots reserved so far.
func (r *Registry) Len() int { return int(r.cursor.Load()) }

// Spawn reserves the next slot and starts a worker thread running script.
//
// Spawn returns once the worker's thread exists and its setup (the default
// schedule, if configured) succeeded; the script itself runs asynchronously and
// its outcome is only logged. A reserved slot is never released: when thread
// setup fails the record stays in the table in StateFailed.
func (r *Registry) Spawn(script string, opts ...SpawnOption) (Handle, error) {
	sc := spawnConfig{ctx: context.Background(), stdout: os.Stdout, stderr: os.Stderr}
	for _, opt := range opts {
		opt(&sc)
	}

	slot, err := r.reserve()
	if err != nil {
		return Handle{}, err
	}

	rec := &record{
		handle:      Handle{registry: r.id, slot: slot},
		script:      script,
		executionID: uuid.NewString(),
		spawnedAt:   time.Now(),
		done:        make(chan struct{}),
	}

	ready := make(chan error, 1)
	go r.run(rec, sc, ready)
	setupErr := <-ready
	r.slots[slot].Store(rec)

	if setupErr != nil {
		r.logger.Error("worker thread setup failed", "handle", rec.handle, "tid", rec.threadID, "err", setupErr)
		return Handle{}, setupErr
	}
	return rec.handle, nil
}

// reserve advances the cursor by one without ever moving it past capacity.
func (r *Registry) reserve() (uint32, error) {
	for {
		cur := r.cursor.Load()
		if int(cur) >= len(r.slots) {
			return 0, &rterr.ResourceExhaustedError{Resource: "runtime registry", Capacity: len(r.slots)}
		}
		if r.cursor.CompareAndSwap(cur, cur+1) {
			return cur, nil
		}
	}
}

// run is the worker entry point. It owns its OS thread until it returns.
func (r *Registry) run(rec *record, sc spawnConfig, ready chan<- error) {
	defer close(rec.done)

	r.locker.LockOSThread()
	rec.threadID = r.locker.ThreadID()

	if r.policy != "" {
		if err := rtsched.SetSchedule(0, r.policy, r.priority); err != nil {
			rec.exitCode.Store(instance.ExitFailure)
			rec.state.Store(int32(StateFailed))
			ready <- fmt.Errorf("worker %s thread setup: %w", rec.handle, err)
			return
		}
	}
	ready <- nil

	logger := r.logger.With("handle", rec.handle, "tid", rec.threadID, "execution_id", rec.executionID)

	rec.state.Store(int32(StateBootstrapping))
	inst, err := r.bootstrap(rec, sc)
	if err != nil {
		rec.exitCode.Store(instance.ExitUsage)
		rec.state.Store(int32(StateFailed))
		logger.Error("worker bootstrap failed", "err", err)
		return
	}

	rec.state.Store(int32(StateRunning))
	res := inst.Run(sc.ctx)

	switch {
	case res.Error != nil:
		logger.Error("script failed", "exit_code", res.ExitCode, "err", res.Error)
	case res.ExitCode != 0:
		logger.Warn("script exited with non-zero status", "exit_code", res.ExitCode)
	default:
		logger.Debug("script finished", "exit_code", res.ExitCode)
	}
	rec.exitCode.Store(int32(res.ExitCode))
	rec.state.Store(int32(StateExited))
}

// bootstrap builds the worker's interpreter instance with the GC paused.
func (r *Registry) bootstrap(rec *record, sc spawnConfig) (*instance.Instance, error) {
	if r.pauseGC {
		r.gc.pause()
		defer r.gc.resume()
	}

	var env []string
	if r.inheritEnv {
		env = append(env, os.Environ()...)
	}
	env = append(env, sc.env...)

	stdout, stderr := sc.stdout, sc.stderr
	if stdout == nil {
		stdout = io.Discard
	}
	if stderr == nil {
		stderr = io.Discard
	}

	return instance.New(instance.Config{
		Script:        rec.script,
		Self:          rec.handle.String(),
		ThreadID:      rec.threadID,
		ExecutionID:   rec.executionID,
		Env:           env,
		Dir:           sc.dir,
		Stdin:         sc.stdin,
		Stdout:        stdout,
		Stderr:        stderr,
		Builtins:      r.builtins,
		Host:          &scriptHost{registry: r, self: rec.handle, spawn: sc},
		AllowExternal: r.allowExternal,
	})
}

// Join blocks until the worker behind h has finished and torn down its instance.
// The runtime destroys the worker's OS thread shortly after. Joining the same
// handle again returns immediately.
func (r *Registry) Join(h Handle) error {
	return r.JoinContext(context.Background(), h)
}

// JoinContext is Join with cancellation. Cancelling ctx abandons the wait; the
// worker keeps running.
func (r *Registry) JoinContext(ctx context.Context, h Handle) error {
	rec, err := r.lookup(h)
	if err != nil {
		return err
	}
	select {
	case <-rec.done:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("join %s: %w", h, ctx.Err())
	}
}

// JoinAll joins every handle concurrently and returns the first error.
func (r *Registry) JoinAll(ctx context.Context, handles ...Handle) error {
	g, gctx := errgroup.WithContext(ctx)
	for _, h := range handles {
		g.Go(func() error { return r.JoinContext(gctx, h) })
	}
	return g.Wait()
}

// Lookup returns a snapshot of the record behind h.
func (r *Registry) Lookup(h Handle) (Record, error) {
	rec, err := r.lookup(h)
	if err != nil {
		return Record{}, err
	}
	return rec.snapshot(), nil
}

// Records returns snapshots of every published record in slot order.
// Slots reserved by a Spawn that has not yet returned are skipped.
func (r *Registry) Records() []Record {
	n := r.Len()
	out := make([]Record, 0, n)
	for i := range n {
		if rec := r.slots[i].Load(); rec != nil {
			out = append(out, rec.snapshot())
		}
	}
	return out
}

func (r *Registry) lookup(h Handle) (*record, error) {
	if h.registry != r.id || int(h.slot) >= r.Len() {
		return nil, rterr.InvalidArgument("handle", h.String(), "not issued by this registry")
	}
	rec := r.slots[h.slot].Load()
	if rec == nil {
		return nil, rterr.InvalidArgument("handle", h.String(), "not issued by this registry")
	}
	return rec, nil
}

func (rec *record) snapshot() Record {
	return Record{
		Handle:      rec.handle,
		Script:      rec.script,
		ThreadID:    rec.threadID,
		ExecutionID: rec.executionID,
		SpawnedAt:   rec.spawnedAt,
		State:       State(rec.state.Load()),
		ExitCode:    int(rec.exitCode.Load()),
	}
}
