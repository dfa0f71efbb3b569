// SPDX-License-Identifier: MPL-2.0

package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/charmbracelet/fang"
	"github.com/spf13/cobra"
)

var (
	// Version is the semantic version (set via -ldflags).
	Version = "dev"
	// Commit is the git commit hash (set via -ldflags).
	Commit = "unknown"
	// BuildDate is the build timestamp (set via -ldflags).
	BuildDate = "unknown"
)

// NewRootCommand builds the rtpx command tree around app.
func NewRootCommand(app *App) *cobra.Command {
	root := &cobra.Command{
		Use:   "rtpx",
		Short: "Real-time primitives for scripted workers",
		Long: TitleStyle.Render("rtpx") + SubtitleStyle.Render(" - real-time primitives for scripted workers") + `

rtpx runs shell scripts on dedicated OS threads and gives them access to
POSIX clocks, real-time scheduling classes and process memory locking.
Scripts are interpreted in-process; each worker knows its own handle
through the variable $self and can spawn and join siblings.

` + SubtitleStyle.Render("Examples:") + `
  rtpx run -c 'echo "hello from $self"'
  rtpx run --mlock MCL_BOTH --policy SCHED_FIFO --priority 50 loop.sh
  rtpx clock gettime MONOTONIC
  rtpx sched get
  rtpx info -o yaml`,
		SilenceUsage: true,
	}
	root.SetIn(app.stdin)
	root.SetOut(app.stdout)
	root.SetErr(app.stderr)

	root.PersistentFlags().BoolVarP(&app.verbose, "verbose", "v", false, "enable debug logging and full error chains")
	root.PersistentFlags().StringVar(&app.configFile, "config", "", "config file (default is $XDG_CONFIG_HOME/rtpx/config.cue)")

	root.AddCommand(
		newRunCommand(app),
		newClockCommand(app),
		newSchedCommand(app),
		newMemCommand(app),
		newFlavorCommand(app),
		newInfoCommand(app),
		newConfigCommand(app),
		newServeCommand(app),
	)
	return root
}

func getVersionString() string {
	if Version == "dev" {
		return "dev (built from source)"
	}
	return fmt.Sprintf("%s (commit: %s, built: %s)", Version, Commit, BuildDate)
}

// Execute runs the CLI and exits the process with the command's status.
func Execute() {
	root := NewRootCommand(NewApp(Dependencies{}))
	if err := fang.Execute(
		context.Background(),
		root,
		fang.WithVersion(getVersionString()),
		fang.WithNotifySignal(os.Interrupt),
		fang.WithErrorHandler(errorHandler),
	); err != nil {
		os.Exit(exitCodeOf(err))
	}
}

// errorHandler prints err through fang unless it only carries a script's exit status.
func errorHandler(w io.Writer, styles fang.Styles, err error) {
	var exitErr *ExitError
	if errors.As(err, &exitErr) && exitErr.Err == nil {
		return
	}
	fang.DefaultErrorHandler(w, styles, err)
}
