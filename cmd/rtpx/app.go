// SPDX-License-Identifier: MPL-2.0

package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/rtpx/rtpx/internal/config"
	"github.com/rtpx/rtpx/internal/issue"
	"github.com/rtpx/rtpx/internal/worker"

	"github.com/charmbracelet/log"
	"github.com/spf13/cobra"
)

type (
	// App wires CLI services and shared dependencies. Every command handler
	// receives it instead of reaching for package-level state.
	App struct {
		Config config.Provider
		stdin  io.Reader
		stdout io.Writer
		stderr io.Writer
		// explain renders a catalog entry; replaced in tests.
		explain func(*issue.Issue) (string, error)

		configFile string
		verbose    bool
	}

	// Dependencies are the injection points of NewApp. Nil fields get
	// production defaults.
	Dependencies struct {
		Config  config.Provider
		Stdin   io.Reader
		Stdout  io.Writer
		Stderr  io.Writer
		Explain func(*issue.Issue) (string, error)
	}

	// configLoadError marks failures to load the configuration.
	configLoadError struct{ err error }

	// registryOverrides are command-line settings that win over the config file.
	registryOverrides struct {
		allowExternal *bool
	}
)

// NewApp creates an App from deps.
func NewApp(deps Dependencies) *App {
	app := &App{
		Config:  deps.Config,
		stdin:   deps.Stdin,
		stdout:  deps.Stdout,
		stderr:  deps.Stderr,
		explain: deps.Explain,
	}
	if app.Config == nil {
		app.Config = config.NewProvider()
	}
	if app.stdin == nil {
		app.stdin = os.Stdin
	}
	if app.stdout == nil {
		app.stdout = os.Stdout
	}
	if app.stderr == nil {
		app.stderr = os.Stderr
	}
	if app.explain == nil {
		app.explain = func(i *issue.Issue) (string, error) { return i.Render("dark") }
	}
	return app
}

// loadConfig loads the configuration honoring --config.
func (a *App) loadConfig(ctx context.Context) (*config.Config, string, error) {
	cfg, path, err := a.Config.Load(ctx, config.LoadOptions{ConfigFilePath: a.configFile})
	if err != nil {
		return nil, "", &configLoadError{err: err}
	}
	return cfg, path, nil
}

func (e *configLoadError) Error() string { return e.err.Error() }

func (e *configLoadError) Unwrap() error { return e.err }

// newLogger returns the diagnostic logger for cfg. --verbose forces debug.
func (a *App) newLogger(cfg *config.Config) *log.Logger {
	logger := log.NewWithOptions(a.stderr, log.Options{Prefix: "rtpx"})
	level, err := log.ParseLevel(cfg.Log.Level.String())
	if err != nil {
		level = log.InfoLevel
	}
	if a.verbose {
		level = log.DebugLevel
	}
	logger.SetLevel(level)
	return logger
}

// newRegistry builds a worker registry from cfg.
func (a *App) newRegistry(cfg *config.Config, logger *log.Logger, ov registryOverrides) (*worker.Registry, error) {
	allowExternal := cfg.Worker.AllowExternalCommands
	if ov.allowExternal != nil {
		allowExternal = *ov.allowExternal
	}
	opts := []worker.Option{
		worker.WithCapacity(cfg.Registry.Capacity),
		worker.WithLogger(logger),
		worker.WithPauseGC(cfg.Worker.PauseGCDuringBootstrap),
		worker.WithInheritEnv(cfg.Worker.InheritEnv),
		worker.WithAllowExternal(allowExternal),
	}
	policy, err := cfg.Worker.SchedulePolicy()
	if err != nil {
		return nil, err
	}
	if policy != "" {
		opts = append(opts, worker.WithDefaultSchedule(policy, cfg.Worker.Priority))
	}
	return worker.New(opts...)
}

// fail prints the catalog entry explaining err, if there is one, and returns
// err marked with its exit code. The error message itself is printed by fang.
func (a *App) fail(cmd *cobra.Command, err error) error {
	if err == nil {
		return nil
	}
	cmd.SilenceUsage = true

	var ae *issue.ActionableError
	if errors.As(err, &ae) && a.verbose {
		fmt.Fprintln(a.stderr, ae.Format(true))
	}
	if is, ok := explainError(err); ok {
		a.explainIssue(is)
	}

	var exitErr *ExitError
	if errors.As(err, &exitErr) {
		return err
	}
	return &ExitError{Code: exitCodeOf(err), Err: err}
}

func (a *App) explainIssue(is *issue.Issue) {
	if rendered, err := a.explain(is); err == nil {
		fmt.Fprint(a.stderr, rendered)
	}
}

// explainError picks the catalog entry for err. Configuration failures take
// precedence over the kind of their cause.
func explainError(err error) (*issue.Issue, bool) {
	var cfgErr *configLoadError
	if errors.As(err, &cfgErr) {
		return issue.Get(issue.ConfigLoadFailedId), true
	}
	if errors.Is(err, errServeStart) {
		return issue.Get(issue.ServeFailedId), true
	}
	return issue.ForError(err)
}

// exitWith ends a command with a script's status without printing an error.
func exitWith(cmd *cobra.Command, code int) error {
	if code == 0 {
		return nil
	}
	cmd.SilenceErrors = true
	cmd.SilenceUsage = true
	return &ExitError{Code: code}
}
