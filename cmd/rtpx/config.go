// SPDX-License-Identifier: MPL-2.0

package cmd

import (
	"context"
	"fmt"

	"github.com/rtpx/rtpx/internal/config"

	"github.com/spf13/cobra"
)

func newConfigCommand(app *App) *cobra.Command {
	cfgCmd := &cobra.Command{
		Use:   "config",
		Short: "Manage rtpx configuration",
		Long: `Manage rtpx configuration.

Configuration is read from config.cue in:
  - Linux: $XDG_CONFIG_HOME/rtpx (default ~/.config/rtpx)
  - macOS: ~/Library/Application Support/rtpx
  - Windows: %APPDATA%\rtpx

Every key can be overridden with an RTPX_ environment variable, for example
RTPX_REGISTRY_CAPACITY or RTPX_LOG_LEVEL.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return cmd.Help()
		},
	}

	var format string
	showCmd := &cobra.Command{
		Use:   "show",
		Short: "Show the effective configuration",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return app.fail(cmd, app.showConfig(cmd.Context(), format))
		},
	}
	addFormatFlag(showCmd, &format)

	cfgCmd.AddCommand(
		showCmd,
		&cobra.Command{
			Use:   "path",
			Short: "Show the configuration file path",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, _ []string) error {
				return app.fail(cmd, app.showConfigPath())
			},
		},
		&cobra.Command{
			Use:   "init",
			Short: "Create the default configuration file",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, _ []string) error {
				return app.fail(cmd, app.initConfig())
			},
		},
		&cobra.Command{
			Use:   "dump",
			Short: "Output the effective configuration as CUE",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, _ []string) error {
				cfg, _, err := app.loadConfig(cmd.Context())
				if err != nil {
					return app.fail(cmd, err)
				}
				fmt.Fprint(app.stdout, config.GenerateCUE(cfg))
				return nil
			},
		},
	)
	return cfgCmd
}

func (a *App) showConfig(ctx context.Context, format string) error {
	f, err := parseFormat(format)
	if err != nil {
		return err
	}
	cfg, path, err := a.loadConfig(ctx)
	if err != nil {
		return err
	}
	if f != formatText {
		return writeStructured(a.stdout, f, cfg)
	}

	w := a.stdout
	fmt.Fprintln(w, TitleStyle.Render("Current Configuration"))
	if path == "" {
		path = SubtitleStyle.Render("(using defaults)")
	}
	printField(w, "config file", path)
	fmt.Fprintln(w)

	policy := cfg.Worker.Policy
	if policy == "" {
		policy = SubtitleStyle.Render("(none)")
	}
	printField(w, "registry.capacity", cfg.Registry.Capacity)
	printField(w, "worker.policy", policy)
	printField(w, "worker.priority", cfg.Worker.Priority)
	printField(w, "worker.pause_gc_during_bootstrap", cfg.Worker.PauseGCDuringBootstrap)
	printField(w, "worker.inherit_env", cfg.Worker.InheritEnv)
	printField(w, "worker.allow_external_commands", cfg.Worker.AllowExternalCommands)
	printField(w, "log.level", cfg.Log.Level)
	printField(w, "serve.host", cfg.Serve.Host)
	printField(w, "serve.port", cfg.Serve.Port)
	printField(w, "serve.token_ttl", cfg.Serve.TokenTTL)
	if cfg.Serve.HostKeyPath != "" {
		printField(w, "serve.host_key_path", cfg.Serve.HostKeyPath)
	}
	return nil
}

func (a *App) showConfigPath() error {
	if a.configFile != "" {
		fmt.Fprintln(a.stdout, a.configFile)
		return nil
	}
	path, err := config.FilePath("")
	if err != nil {
		return err
	}
	fmt.Fprintln(a.stdout, path)
	return nil
}

func (a *App) initConfig() error {
	path, created, err := config.CreateDefaultConfig("")
	if err != nil {
		return fmt.Errorf("failed to create config: %w", err)
	}
	if !created {
		fmt.Fprintf(a.stdout, "%s configuration already exists at %s\n", WarningStyle.Render("!"), path)
		return nil
	}
	fmt.Fprintf(a.stdout, "%s created default configuration at %s\n", SuccessStyle.Render("✓"), path)
	return nil
}
