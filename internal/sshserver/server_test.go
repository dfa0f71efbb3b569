// SPDX-License-Identifier: MPL-2.0

package sshserver

import (
	"bytes"
	"context"
	"errors"
	"io"
	"net"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/rtpx/rtpx/internal/worker"

	"github.com/charmbracelet/log"
	gossh "golang.org/x/crypto/ssh"
)

// fakeClock is a settable time source.
type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

func newTestServer(t *testing.T, cfg Config, opts ...Option) *Server {
	t.Helper()

	reg, err := worker.New(
		worker.WithLogger(log.New(io.Discard)),
		worker.WithInheritEnv(false),
		worker.WithCapacity(64),
	)
	if err != nil {
		t.Fatalf("worker.New() error: %v", err)
	}
	opts = append([]Option{WithLogger(log.New(io.Discard))}, opts...)
	srv, err := New(cfg, reg, opts...)
	if err != nil {
		t.Fatalf("New() error: %v", err)
	}
	return srv
}

func startTestServer(t *testing.T) *Server {
	t.Helper()

	srv := newTestServer(t, DefaultConfig())
	if err := srv.Start(t.Context()); err != nil {
		t.Fatalf("Start() error: %v", err)
	}
	t.Cleanup(func() { _ = srv.Stop() })
	return srv
}

func dial(t *testing.T, srv *Server, token TokenValue) (*gossh.Client, error) {
	t.Helper()

	return gossh.Dial("tcp", srv.Address(), &gossh.ClientConfig{
		User:            User,
		Auth:            []gossh.AuthMethod{gossh.Password(token.String())},
		HostKeyCallback: gossh.InsecureIgnoreHostKey(),
		Timeout:         5 * time.Second,
	})
}

func TestNew_Rejects(t *testing.T) {
	t.Parallel()

	if _, err := New(Config{Port: 99999}, nil); !errors.Is(err, ErrInvalidServerConfig) {
		t.Errorf("New(bad port) error = %v", err)
	}
	if _, err := New(DefaultConfig(), nil); err == nil {
		t.Error("New(nil spawner) should fail")
	}
}

func TestTokens(t *testing.T) {
	t.Parallel()

	clock := &fakeClock{now: time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)}
	srv := newTestServer(t, Config{TokenTTL: time.Minute}, WithClock(clock.Now))

	tok, err := srv.GenerateToken("ci")
	if err != nil {
		t.Fatalf("GenerateToken() error: %v", err)
	}
	if len(tok.Value) != 2*tokenBytes || tok.Label != "ci" || !tok.ExpiresAt.Equal(clock.Now().Add(time.Minute)) {
		t.Errorf("unexpected token %+v", tok)
	}

	other, _ := srv.GenerateToken("ci")
	if other.Value == tok.Value {
		t.Error("tokens should be unique")
	}

	if got, ok := srv.ValidateToken(tok.Value); !ok || got != tok {
		t.Error("fresh token should validate")
	}
	if _, ok := srv.ValidateToken("nope"); ok {
		t.Error("unknown token should not validate")
	}

	srv.RevokeToken(other.Value)
	if _, ok := srv.ValidateToken(other.Value); ok {
		t.Error("revoked token should not validate")
	}

	clock.Advance(2 * time.Minute)
	if _, ok := srv.ValidateToken(tok.Value); ok {
		t.Error("expired token should not validate")
	}
}

func TestPruneTokens(t *testing.T) {
	t.Parallel()

	clock := &fakeClock{now: time.Unix(1_700_000_000, 0)}
	srv := newTestServer(t, Config{TokenTTL: time.Minute}, WithClock(clock.Now))

	for range 3 {
		if _, err := srv.GenerateToken("old"); err != nil {
			t.Fatal(err)
		}
	}
	clock.Advance(time.Hour)
	fresh, _ := srv.GenerateToken("new")

	if n := srv.pruneTokens(); n != 3 {
		t.Errorf("pruneTokens() = %d, want 3", n)
	}
	if _, ok := srv.ValidateToken(fresh.Value); !ok {
		t.Error("unexpired token was pruned")
	}
}

func TestServer_Lifecycle(t *testing.T) {
	t.Parallel()

	srv := newTestServer(t, DefaultConfig())
	if srv.State() != StateCreated || srv.Address() != "" || srv.Port() != 0 {
		t.Fatalf("fresh server: state %s addr %q", srv.State(), srv.Address())
	}
	if _, err := srv.ConnectionInfo("x"); err == nil {
		t.Error("ConnectionInfo() before Start should fail")
	}

	if err := srv.Start(t.Context()); err != nil {
		t.Fatalf("Start() error: %v", err)
	}
	if !srv.IsRunning() || srv.Port() == 0 {
		t.Fatalf("after Start: state %s port %d", srv.State(), srv.Port())
	}
	if err := srv.Start(t.Context()); err == nil {
		t.Error("second Start() should fail")
	}

	info, err := srv.ConnectionInfo("lifecycle")
	if err != nil {
		t.Fatalf("ConnectionInfo() error: %v", err)
	}
	if info.User != User || info.Port != srv.Port() || info.Token == "" {
		t.Errorf("ConnectionInfo() = %+v", info)
	}

	if err := srv.Stop(); err != nil {
		t.Fatalf("Stop() error: %v", err)
	}
	if err := srv.Stop(); err != nil {
		t.Errorf("second Stop() error: %v", err)
	}
	if srv.State() != StateStopped {
		t.Errorf("State() = %s, want stopped", srv.State())
	}
	if err := srv.Wait(); err != nil {
		t.Errorf("Wait() error: %v", err)
	}
	if _, open := <-srv.Err(); open {
		t.Error("Err() should be closed after Stop")
	}
}

func TestServer_StopWithoutStart(t *testing.T) {
	t.Parallel()

	srv := newTestServer(t, DefaultConfig())
	if err := srv.Stop(); err != nil {
		t.Fatal(err)
	}
	if srv.State() != StateStopped {
		t.Errorf("State() = %s", srv.State())
	}
}

func TestServer_StartCancelled(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(t.Context())
	cancel()

	srv := newTestServer(t, DefaultConfig())
	if err := srv.Start(ctx); !errors.Is(err, context.Canceled) {
		t.Fatalf("Start() error = %v, want context.Canceled", err)
	}
	if srv.State() != StateFailed {
		t.Errorf("State() = %s, want failed", srv.State())
	}
	if err := srv.Wait(); !errors.Is(err, context.Canceled) {
		t.Errorf("Wait() = %v", err)
	}
}

func TestServer_StartPortInUse(t *testing.T) {
	t.Parallel()

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatal(err)
	}
	defer ln.Close()

	cfg := DefaultConfig()
	cfg.Port = ln.Addr().(*net.TCPAddr).Port
	srv := newTestServer(t, cfg)
	if err := srv.Start(t.Context()); err == nil {
		_ = srv.Stop()
		t.Fatal("Start() on a used port should fail")
	}
	if srv.State() != StateFailed || srv.LastError() == nil {
		t.Errorf("State() = %s, LastError() = %v", srv.State(), srv.LastError())
	}
}

func TestSession_RunsCommandAsWorker(t *testing.T) {
	t.Parallel()

	srv := startTestServer(t)
	tok, err := srv.GenerateToken("test")
	if err != nil {
		t.Fatal(err)
	}
	client, err := dial(t, srv, tok.Value)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer client.Close()

	sess, err := client.NewSession()
	if err != nil {
		t.Fatal(err)
	}
	defer sess.Close()

	out, err := sess.Output(`echo "worker $self"`)
	if err != nil {
		t.Fatalf("Output() error: %v", err)
	}
	if got := strings.TrimSpace(string(out)); !strings.HasPrefix(got, "worker rt") {
		t.Errorf("output = %q, want the worker handle", got)
	}
}

func TestSession_ExitStatus(t *testing.T) {
	t.Parallel()

	srv := startTestServer(t)
	tok, _ := srv.GenerateToken("test")
	client, err := dial(t, srv, tok.Value)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer client.Close()

	sess, err := client.NewSession()
	if err != nil {
		t.Fatal(err)
	}
	defer sess.Close()

	err = sess.Run("exit 3")
	var exitErr *gossh.ExitError
	if !errors.As(err, &exitErr) || exitErr.ExitStatus() != 3 {
		t.Errorf("Run() error = %v, want exit status 3", err)
	}
}

func TestSession_ScriptFromStdin(t *testing.T) {
	t.Parallel()

	srv := startTestServer(t)
	tok, _ := srv.GenerateToken("test")
	client, err := dial(t, srv, tok.Value)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer client.Close()

	sess, err := client.NewSession()
	if err != nil {
		t.Fatal(err)
	}
	defer sess.Close()

	var out bytes.Buffer
	sess.Stdin = strings.NewReader("echo from-stdin\n")
	sess.Stdout = &out
	if err := sess.Shell(); err != nil {
		t.Fatal(err)
	}
	if err := sess.Wait(); err != nil {
		t.Fatalf("Wait() error: %v", err)
	}
	if got := strings.TrimSpace(out.String()); got != "from-stdin" {
		t.Errorf("output = %q", got)
	}
}

func TestSession_RejectsBadCredentials(t *testing.T) {
	t.Parallel()

	srv := startTestServer(t)
	if _, err := dial(t, srv, "not-a-token"); err == nil {
		t.Fatal("dial with an unknown token should fail")
	}

	tok, _ := srv.GenerateToken("revoked")
	srv.RevokeToken(tok.Value)
	if _, err := dial(t, srv, tok.Value); err == nil {
		t.Fatal("dial with a revoked token should fail")
	}
}
