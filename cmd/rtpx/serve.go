// SPDX-License-Identifier: MPL-2.0

package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/rtpx/rtpx/internal/config"
	"github.com/rtpx/rtpx/internal/issue"
	"github.com/rtpx/rtpx/internal/sshserver"

	"github.com/spf13/cobra"
)

const hostKeyFile = "ssh_host_ed25519"

var errServeStart = errors.New("SSH endpoint did not start")

type serveOptions struct {
	host          string
	port          int
	allowExternal bool
}

func newServeCommand(app *App) *cobra.Command {
	var opts serveOptions

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Accept scripts over SSH and run each session as a worker",
		Long: `Start an SSH endpoint backed by a worker registry.

A session token is printed on start; use it as the SSH password. The session
command is the script (or, without a command, the script is read from stdin)
and the session ends with the script's exit status.

  ssh -p 2222 rtpx@127.0.0.1 'clock_gettime MONOTONIC'`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return app.fail(cmd, app.serve(cmd, opts))
		},
	}
	cmd.Flags().StringVar(&opts.host, "host", "", "address to bind (default from config)")
	cmd.Flags().IntVar(&opts.port, "port", 0, "port to bind, 0 for a free port (default from config)")
	cmd.Flags().BoolVar(&opts.allowExternal, "allow-external", false, "let scripts run binaries from PATH")
	return cmd
}

func (a *App) serve(cmd *cobra.Command, opts serveOptions) error {
	ctx := cmd.Context()
	cfg, _, err := a.loadConfig(ctx)
	if err != nil {
		return err
	}
	logger := a.newLogger(cfg)

	var ov registryOverrides
	if cmd.Flags().Changed("allow-external") {
		ov.allowExternal = &opts.allowExternal
	}
	reg, err := a.newRegistry(cfg, logger, ov)
	if err != nil {
		return err
	}

	srvCfg, err := serverConfig(cfg, opts, cmd.Flags().Changed("port"))
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(srvCfg.HostKeyPath), 0o700); err != nil {
		return serveError(err, srvCfg)
	}
	srv, err := sshserver.New(srvCfg, reg, sshserver.WithLogger(logger.WithPrefix("ssh")))
	if err != nil {
		return err
	}
	if err := srv.Start(ctx); err != nil {
		return serveError(err, srvCfg)
	}
	defer func() { _ = srv.Stop() }()

	info, err := srv.ConnectionInfo("cli")
	if err != nil {
		return err
	}
	w := a.stdout
	fmt.Fprintln(w, TitleStyle.Render("rtpx serve"))
	printField(w, "address", srv.Address())
	printField(w, "user", info.User)
	printField(w, "token", info.Token)
	printField(w, "expires", info.ExpiresAt.Format("2006-01-02 15:04:05 MST"))
	fmt.Fprintln(w, SubtitleStyle.Render(fmt.Sprintf("ssh -p %d %s@%s '<script>'", info.Port, info.User, info.Host)))

	return waitServer(ctx, srv)
}

func waitServer(ctx context.Context, srv *sshserver.Server) error {
	select {
	case <-ctx.Done():
		return nil
	case err, ok := <-srv.Err():
		if !ok {
			return nil
		}
		return err
	}
}

// serverConfig merges the serve section of cfg with command-line overrides.
func serverConfig(cfg *config.Config, opts serveOptions, portSet bool) (sshserver.Config, error) {
	out := sshserver.Config{
		Host:        cfg.Serve.Host,
		Port:        cfg.Serve.Port,
		TokenTTL:    cfg.Serve.TokenTTL,
		HostKeyPath: cfg.Serve.HostKeyPath,
	}
	if opts.host != "" {
		out.Host = opts.host
	}
	if portSet {
		out.Port = opts.port
	}
	if out.HostKeyPath == "" {
		dir, err := config.ConfigDir()
		if err != nil {
			return out, err
		}
		out.HostKeyPath = filepath.Join(dir, hostKeyFile)
	}
	return out, out.Validate()
}

func serveError(err error, cfg sshserver.Config) error {
	return issue.NewErrorContext().
		WithOperation("start SSH endpoint").
		WithResource(fmt.Sprintf("%s:%d", cfg.Host, cfg.Port)).
		WithSuggestion("Pick another port with --port, or --port 0 for a free one").
		WithSuggestion("Check that " + cfg.HostKeyPath + " is writable").
		Wrap(fmt.Errorf("%w: %w", errServeStart, err)).
		BuildError()
}
