// SPDX-License-Identifier: MPL-2.0

package cmd

import (
	"context"
	"fmt"
	"runtime"
	"strings"

	"github.com/rtpx/rtpx/internal/builtin"
	"github.com/rtpx/rtpx/internal/memlock"
	"github.com/rtpx/rtpx/internal/rtclock"
	"github.com/rtpx/rtpx/internal/rtsched"

	"github.com/spf13/cobra"
)

type (
	// systemInfo is everything 'rtpx info' reports. Sections that could not
	// be read carry their error text instead.
	systemInfo struct {
		Version  string            `json:"version" yaml:"version"`
		Platform string            `json:"platform" yaml:"platform"`
		Flavor   memlock.Flavor    `json:"flavor" yaml:"flavor"`
		Clocks   []clockInfo       `json:"clocks" yaml:"clocks"`
		Policies []policyRange     `json:"policies,omitempty" yaml:"policies,omitempty"`
		Thread   *rtsched.Params   `json:"thread,omitempty" yaml:"thread,omitempty"`
		Memory   *memlock.Status   `json:"memory,omitempty" yaml:"memory,omitempty"`
		Builtins []string          `json:"builtins" yaml:"builtins"`
		Errors   map[string]string `json:"errors,omitempty" yaml:"errors,omitempty"`
	}

	clockInfo struct {
		Clock      rtclock.Clock    `json:"clock" yaml:"clock"`
		Resolution *rtclock.Reading `json:"resolution,omitempty" yaml:"resolution,omitempty"`
	}
)

func newInfoCommand(app *App) *cobra.Command {
	var format string
	cmd := &cobra.Command{
		Use:   "info",
		Short: "Report the real-time capabilities of this host",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			f, err := parseFormat(format)
			if err != nil {
				return app.fail(cmd, err)
			}
			info := gatherInfo(cmd.Context())
			if f != formatText {
				return app.fail(cmd, writeStructured(app.stdout, f, info))
			}
			app.printInfo(info)
			return nil
		},
	}
	addFormatFlag(cmd, &format)
	return cmd
}

func gatherInfo(ctx context.Context) systemInfo {
	info := systemInfo{
		Version:  getVersionString(),
		Platform: runtime.GOOS + "/" + runtime.GOARCH,
		Flavor:   memlock.RuntimeFlavor(),
		Builtins: builtin.DefaultRegistry.Names(),
		Errors:   map[string]string{},
	}

	for _, c := range rtclock.Clocks() {
		ci := clockInfo{Clock: c}
		if r, err := rtclock.GetResolution(c); err == nil {
			ci.Resolution = &r
		} else {
			info.Errors["clock "+string(c)] = err.Error()
		}
		info.Clocks = append(info.Clocks, ci)
	}

	for _, p := range rtsched.Policies() {
		r, err := rtsched.PriorityRange(p)
		if err != nil {
			info.Errors["policy "+string(p)] = err.Error()
			continue
		}
		info.Policies = append(info.Policies, policyRange{Policy: p, Range: r})
	}

	if p, err := rtsched.GetSchedule(0); err == nil {
		info.Thread = &p
	} else {
		info.Errors["thread"] = err.Error()
	}

	if st, err := memlock.ReadStatus(ctx); err == nil {
		info.Memory = &st
	} else {
		info.Errors["memory"] = err.Error()
	}

	if len(info.Errors) == 0 {
		info.Errors = nil
	}
	return info
}

func (a *App) printInfo(info systemInfo) {
	w := a.stdout
	fmt.Fprintln(w, TitleStyle.Render("rtpx "+info.Version))
	printField(w, "platform", info.Platform)
	printField(w, "flavor", info.Flavor)

	fmt.Fprintln(w, "\n"+SubtitleStyle.Render("clocks"))
	for _, c := range info.Clocks {
		res := "unavailable"
		if c.Resolution != nil {
			res = c.Resolution.Duration().String()
		}
		printField(w, "  "+string(c.Clock), res)
	}

	fmt.Fprintln(w, "\n"+SubtitleStyle.Render("scheduling"))
	for _, p := range info.Policies {
		printField(w, "  "+string(p.Policy), fmt.Sprintf("%d..%d", p.Min, p.Max))
	}
	if info.Thread != nil {
		printField(w, "  current thread", info.Thread)
	}

	if m := info.Memory; m != nil {
		fmt.Fprintln(w, "\n"+SubtitleStyle.Render("memory"))
		printField(w, "  locked", fmt.Sprintf("%d bytes", m.LockedBytes))
		printField(w, "  memlock limit", m.MemlockLimit)
		printField(w, "  rtprio limit", m.RtprioLimit)
	}

	fmt.Fprintln(w, "\n"+SubtitleStyle.Render("builtins"))
	fmt.Fprintln(w, "  "+strings.Join(info.Builtins, " "))

	for k, v := range info.Errors {
		fmt.Fprintln(w, WarningStyle.Render("unavailable: ")+k+": "+v)
	}
}
