// SPDX-License-Identifier: MPL-2.0

package config

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/rtpx/rtpx/internal/issue"
)

func writeConfig(t *testing.T, dir, content string) string {
	t.Helper()

	path := filepath.Join(dir, ConfigFileName+"."+ConfigFileExt)
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestLoad_DefaultsWhenNoFile(t *testing.T) {
	t.Parallel()

	cfg, path, err := NewProvider().Load(context.Background(), LoadOptions{ConfigDirPath: t.TempDir()})
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}
	if path != "" && filepath.Base(path) != "config.cue" {
		t.Errorf("resolved path = %q", path)
	}
	if path == "" && *cfg != *DefaultConfig() {
		t.Errorf("Load() = %+v, want defaults %+v", cfg, DefaultConfig())
	}
}

func TestLoad_FromConfigDir(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	want := writeConfig(t, dir, `
registry: capacity: 16
worker: {
	policy: "SCHED_RR"
	priority: 10
	allow_external_commands: true
}
log: level: "debug"
serve: token_ttl: "90s"
`)

	cfg, path, err := NewProvider().Load(context.Background(), LoadOptions{ConfigDirPath: dir})
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}
	if path != want {
		t.Errorf("resolved path = %q, want %q", path, want)
	}
	if cfg.Registry.Capacity != 16 {
		t.Errorf("Registry.Capacity = %d, want 16", cfg.Registry.Capacity)
	}
	if cfg.Worker.Policy != "SCHED_RR" || cfg.Worker.Priority != 10 || !cfg.Worker.AllowExternalCommands {
		t.Errorf("Worker = %+v", cfg.Worker)
	}
	if !cfg.Worker.InheritEnv || !cfg.Worker.PauseGCDuringBootstrap {
		t.Errorf("Worker defaults lost: %+v", cfg.Worker)
	}
	if cfg.Log.Level != LogLevelDebug {
		t.Errorf("Log.Level = %q, want debug", cfg.Log.Level)
	}
	if cfg.Serve.TokenTTL != 90*time.Second {
		t.Errorf("Serve.TokenTTL = %v, want 90s", cfg.Serve.TokenTTL)
	}
	if cfg.Serve.Port != 2222 {
		t.Errorf("Serve.Port = %d, want default 2222", cfg.Serve.Port)
	}
}

func TestLoad_SchemaViolations(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		content string
		wantSub string
	}{
		{name: "zero capacity", content: `registry: capacity: 0`, wantSub: "registry"},
		{name: "unknown policy", content: `worker: policy: "SCHED_DEADLINE"`, wantSub: "worker.policy"},
		{name: "priority too high", content: `worker: priority: 200`, wantSub: "worker.priority"},
		{name: "unknown key", content: `workers: {}`, wantSub: "workers"},
		{name: "bad level", content: `log: level: "loud"`, wantSub: "log.level"},
		{name: "syntax error", content: `registry: {`, wantSub: "config.cue"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			dir := t.TempDir()
			writeConfig(t, dir, tt.content)

			_, _, err := NewProvider().Load(context.Background(), LoadOptions{ConfigDirPath: dir})
			if err == nil {
				t.Fatal("Load() accepted an invalid config")
			}
			var ae *issue.ActionableError
			if !errors.As(err, &ae) {
				t.Fatalf("Load() error %T is not an ActionableError", err)
			}
			if !ae.HasSuggestions() {
				t.Error("ActionableError has no suggestions")
			}
			if !strings.Contains(err.Error(), tt.wantSub) {
				t.Errorf("error %q does not mention %q", err.Error(), tt.wantSub)
			}
		})
	}
}

func TestLoad_ExplicitFileMissing(t *testing.T) {
	t.Parallel()

	_, _, err := NewProvider().Load(context.Background(), LoadOptions{
		ConfigFilePath: filepath.Join(t.TempDir(), "nope.cue"),
	})
	if err == nil || !strings.Contains(err.Error(), "config file not found") {
		t.Errorf("Load() error = %v, want config file not found", err)
	}
}

func TestLoad_Cancelled(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, _, err := NewProvider().Load(ctx, LoadOptions{ConfigDirPath: t.TempDir()}); !errors.Is(err, context.Canceled) {
		t.Errorf("Load() error = %v, want context.Canceled", err)
	}
}

func TestLoad_EnvOverride(t *testing.T) {
	t.Setenv("RTPX_REGISTRY_CAPACITY", "7")
	t.Setenv("RTPX_LOG_LEVEL", "warn")

	dir := t.TempDir()
	writeConfig(t, dir, `registry: capacity: 16`)

	cfg, _, err := NewProvider().Load(context.Background(), LoadOptions{ConfigDirPath: dir})
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Registry.Capacity != 7 {
		t.Errorf("Registry.Capacity = %d, want 7 from the environment", cfg.Registry.Capacity)
	}
	if cfg.Log.Level != LogLevelWarn {
		t.Errorf("Log.Level = %q, want warn", cfg.Log.Level)
	}
}

func TestLoad_EnvOverrideInvalid(t *testing.T) {
	t.Setenv("RTPX_WORKER_POLICY", "SCHED_FAST")

	_, _, err := NewProvider().Load(context.Background(), LoadOptions{ConfigDirPath: t.TempDir()})
	if !errors.Is(err, ErrInvalidConfig) {
		t.Errorf("Load() error = %v, want ErrInvalidConfig", err)
	}
}

func TestGenerateCUE_RoundTrip(t *testing.T) {
	t.Parallel()

	want := DefaultConfig()
	want.Registry.Capacity = 32
	want.Worker.Policy = "SCHED_FIFO"
	want.Worker.Priority = 5
	want.Serve.HostKeyPath = "/tmp/key"

	dir := t.TempDir()
	writeConfig(t, dir, GenerateCUE(want))

	got, _, err := NewProvider().Load(context.Background(), LoadOptions{ConfigDirPath: dir})
	if err != nil {
		t.Fatalf("Load() of generated config error: %v", err)
	}
	if *got != *want {
		t.Errorf("round trip = %+v, want %+v", got, want)
	}
}

func TestCreateDefaultConfig(t *testing.T) {
	t.Parallel()

	dir := filepath.Join(t.TempDir(), "nested")
	path, created, err := CreateDefaultConfig(dir)
	if err != nil {
		t.Fatal(err)
	}
	if !created || !fileExists(path) {
		t.Fatalf("CreateDefaultConfig() = (%q, %v), want a new file", path, created)
	}

	_, created, err = CreateDefaultConfig(dir)
	if err != nil || created {
		t.Errorf("second CreateDefaultConfig() = (created %v, %v), want existing file kept", created, err)
	}
}
