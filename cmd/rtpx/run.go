// SPDX-License-Identifier: MPL-2.0

package cmd

import (
	"fmt"
	"os"
	"runtime"

	"github.com/rtpx/rtpx/internal/issue"
	"github.com/rtpx/rtpx/internal/memlock"
	"github.com/rtpx/rtpx/internal/rtsched"
	"github.com/rtpx/rtpx/internal/worker"

	"github.com/spf13/cobra"
)

type runOptions struct {
	scripts       []string
	mlock         string
	policy        string
	priority      int
	allowExternal bool
	stdin         bool
}

func newRunCommand(app *App) *cobra.Command {
	var opts runOptions

	cmd := &cobra.Command{
		Use:   "run [flags] [FILE...]",
		Short: "Run scripts as workers",
		Long: `Run every script as its own worker thread, then wait for all of them.

Scripts come from files and from -c; each one gets a fresh interpreter with
$self set to its handle. Caller setup (--mlock, --policy) is applied to the
calling thread before any worker is spawned. The exit status is the first
non-zero worker status in spawn order.`,
		Example: `  rtpx run -c 'clock_gettime MONOTONIC'
  rtpx run -c 'h=$(spawn "echo child from \$self"); join "$h"'
  rtpx run --mlock MCL_BOTH --policy SCHED_RR --priority 10 a.sh b.sh`,
		RunE: func(cmd *cobra.Command, args []string) error {
			code, err := app.run(cmd, opts, args)
			if err != nil {
				return app.fail(cmd, err)
			}
			return exitWith(cmd, code)
		},
	}

	f := cmd.Flags()
	f.StringArrayVarP(&opts.scripts, "command", "c", nil, "script text to run (repeatable)")
	f.StringVar(&opts.mlock, "mlock", "", "lock process memory before spawning: MCL_CURRENT, MCL_FUTURE or MCL_BOTH")
	f.StringVar(&opts.policy, "policy", "", "scheduling policy of the calling thread: SCHED_OTHER, SCHED_FIFO or SCHED_RR")
	f.IntVar(&opts.priority, "priority", 0, "priority that goes with --policy")
	f.BoolVar(&opts.allowExternal, "allow-external", false, "let scripts run binaries from PATH")
	f.BoolVar(&opts.stdin, "stdin", false, "give the first worker the process stdin")
	return cmd
}

// run spawns and joins every script and returns the first non-zero exit status.
func (a *App) run(cmd *cobra.Command, opts runOptions, files []string) (int, error) {
	scripts := append([]string(nil), opts.scripts...)
	for _, file := range files {
		b, err := os.ReadFile(file)
		if err != nil {
			return 0, issue.WrapWithContext(err, "read script", file)
		}
		scripts = append(scripts, string(b))
	}
	if len(scripts) == 0 {
		return 0, fmt.Errorf("nothing to run: pass a FILE or -c SCRIPT")
	}

	cfg, _, err := a.loadConfig(cmd.Context())
	if err != nil {
		return 0, err
	}
	logger := a.newLogger(cfg)

	// Caller setup pins this goroutine so the schedule sticks to the thread
	// that keeps running it. A rescheduled thread is never handed back to the
	// runtime.
	runtime.LockOSThread()
	if opts.policy == "" {
		defer runtime.UnlockOSThread()
	}

	if opts.mlock != "" {
		scope, err := memlock.ParseScope(opts.mlock)
		if err != nil {
			return 0, err
		}
		if err := memlock.Lock(scope); err != nil {
			return 0, issue.NewErrorContext().
				WithOperation("lock process memory").
				WithResource(string(scope)).
				Wrap(err).
				BuildError()
		}
		logger.Debug("process memory locked", "scope", scope)
	}
	if opts.policy != "" {
		policy, err := rtsched.ParsePolicy(opts.policy)
		if err != nil {
			return 0, err
		}
		if err := rtsched.SetSchedule(0, policy, opts.priority); err != nil {
			return 0, issue.NewErrorContext().
				WithOperation("set schedule").
				WithResource(fmt.Sprintf("%s %d", policy, opts.priority)).
				Wrap(err).
				BuildError()
		}
		logger.Debug("calling thread scheduled", "policy", policy, "priority", opts.priority)
	}

	var ov registryOverrides
	if cmd.Flags().Changed("allow-external") {
		ov.allowExternal = &opts.allowExternal
	}
	reg, err := a.newRegistry(cfg, logger, ov)
	if err != nil {
		return 0, err
	}

	handles := make([]worker.Handle, 0, len(scripts))
	for i, script := range scripts {
		stdin := a.stdin
		if !opts.stdin || i > 0 {
			stdin = nil
		}
		h, err := reg.Spawn(script,
			worker.WithContext(cmd.Context()),
			worker.WithStdio(stdin, a.stdout, a.stderr),
		)
		if err != nil {
			return 0, issue.NewErrorContext().
				WithOperation("spawn worker").
				WithResource(fmt.Sprintf("script %d", i+1)).
				Wrap(err).
				BuildError()
		}
		logger.Debug("worker spawned", "handle", h)
		handles = append(handles, h)
	}

	if err := reg.JoinAll(cmd.Context(), handles...); err != nil {
		return 0, err
	}
	code, failed := 0, false
	for _, h := range handles {
		rec, err := reg.Lookup(h)
		if err != nil {
			return 0, err
		}
		if code == 0 {
			code = rec.ExitCode
		}
		failed = failed || rec.State == worker.StateFailed
	}
	if failed {
		a.explainIssue(issue.Get(issue.ScriptFailedId))
	}
	return code, nil
}
