// SPDX-License-Identifier: MPL-2.0

package sshserver

import (
	"context"
	"errors"
	"fmt"
	"net"
	"os"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rtpx/rtpx/internal/worker"

	"github.com/charmbracelet/log"
	"github.com/charmbracelet/ssh"
	"github.com/charmbracelet/wish"
	"github.com/charmbracelet/wish/logging"
)

// User is the login name reported in ConnectionInfo. Any user name is accepted.
const User = "rtpx"

type (
	// Spawner is the part of a worker registry the server drives.
	Spawner interface {
		Spawn(script string, opts ...worker.SpawnOption) (worker.Handle, error)
		JoinContext(ctx context.Context, h worker.Handle) error
		Lookup(h worker.Handle) (worker.Record, error)
	}

	// Server is a single-use SSH endpoint: once stopped or failed, create a new one.
	Server struct {
		cfg     Config
		spawner Spawner
		logger  *log.Logger
		now     func() time.Time

		state   atomic.Int32
		mu      sync.Mutex
		srv     *ssh.Server
		ln      net.Listener
		addr    string
		lastErr error

		ctx     context.Context
		cancel  context.CancelFunc
		wg      sync.WaitGroup
		started chan struct{}
		errCh   chan error

		tokenMu sync.RWMutex
		tokens  map[TokenValue]*Token
	}

	// Option configures a Server.
	Option func(*Server)
)

// WithLogger replaces the default "ssh" prefixed stderr logger.
func WithLogger(l *log.Logger) Option {
	return func(s *Server) { s.logger = l }
}

// WithClock replaces time.Now for token expiry.
func WithClock(now func() time.Time) Option {
	return func(s *Server) { s.now = now }
}

// New creates a server that runs sessions on spawner. It does not listen until Start.
func New(cfg Config, spawner Spawner, opts ...Option) (*Server, error) {
	cfg = cfg.withDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if spawner == nil {
		return nil, errors.New("sshserver: nil spawner")
	}
	s := &Server{
		cfg:     cfg,
		spawner: spawner,
		logger:  log.NewWithOptions(os.Stderr, log.Options{Prefix: "ssh"}),
		now:     time.Now,
		started: make(chan struct{}),
		errCh:   make(chan error, 1),
		tokens:  make(map[TokenValue]*Token),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.state.Store(int32(StateCreated))
	return s, nil
}

// Start binds the listener and returns once the server accepts sessions, or
// with the error that prevented it. Use Err to observe later serve failures.
func (s *Server) Start(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		s.fail(fmt.Errorf("context cancelled before start: %w", err))
		return s.LastError()
	}
	if !s.state.CompareAndSwap(int32(StateCreated), int32(StateStarting)) {
		return fmt.Errorf("cannot start server in state %s", s.State())
	}
	s.ctx, s.cancel = context.WithCancel(context.Background())

	startCtx, cancel := context.WithTimeout(ctx, s.cfg.StartupTimeout)
	defer cancel()

	addr := net.JoinHostPort(s.cfg.Host, strconv.Itoa(s.cfg.Port))
	var lc net.ListenConfig
	ln, err := lc.Listen(startCtx, "tcp", addr)
	if err != nil {
		s.fail(fmt.Errorf("failed to listen on %s: %w", addr, err))
		return s.LastError()
	}

	opts := []ssh.Option{
		wish.WithAddress(addr),
		wish.WithPasswordAuth(s.passwordHandler),
		wish.WithPublicKeyAuth(s.publicKeyHandler),
		wish.WithMiddleware(
			s.sessionMiddleware(),
			logging.MiddlewareWithLogger(s.logger),
		),
	}
	if s.cfg.HostKeyPath != "" {
		opts = append(opts, wish.WithHostKeyPath(s.cfg.HostKeyPath))
	}
	srv, err := wish.NewServer(opts...)
	if err != nil {
		_ = ln.Close()
		s.fail(fmt.Errorf("failed to create SSH server: %w", err))
		return s.LastError()
	}

	s.mu.Lock()
	s.srv, s.ln, s.addr = srv, ln, ln.Addr().String()
	s.mu.Unlock()

	s.wg.Add(2)
	go s.serve()
	go s.cleanupExpiredTokens()

	select {
	case <-s.started:
		s.logger.Info("listening", "address", s.Address())
		return nil
	case err := <-s.errCh:
		s.fail(err)
		return err
	case <-startCtx.Done():
		s.fail(fmt.Errorf("startup timeout: %w", startCtx.Err()))
		return s.LastError()
	}
}

func (s *Server) serve() {
	defer s.wg.Done()

	if s.state.CompareAndSwap(int32(StateStarting), int32(StateRunning)) {
		close(s.started)
	}

	s.mu.Lock()
	srv, ln := s.srv, s.ln
	s.mu.Unlock()

	err := srv.Serve(ln)
	if err == nil || errors.Is(err, ssh.ErrServerClosed) || errors.Is(err, net.ErrClosed) {
		return
	}
	select {
	case s.errCh <- fmt.Errorf("serve: %w", err):
	default:
		s.logger.Error("serve failed", "err", err)
	}
}

// Stop shuts the server down, waiting up to the shutdown timeout for open
// sessions. Calling it again, or on a server that never started, is a no-op.
func (s *Server) Stop() error {
	for {
		cur := s.State()
		switch cur {
		case StateCreated:
			if s.state.CompareAndSwap(int32(cur), int32(StateStopped)) {
				return nil
			}
		case StateStarting, StateRunning:
			if s.state.CompareAndSwap(int32(cur), int32(StateStopping)) {
				return s.shutdown()
			}
		default:
			s.wg.Wait()
			return nil
		}
	}
}

func (s *Server) shutdown() error {
	s.cancel()

	ctx, cancel := context.WithTimeout(context.Background(), s.cfg.ShutdownTimeout)
	defer cancel()

	s.mu.Lock()
	var err error
	if s.srv != nil {
		if err = s.srv.Shutdown(ctx); isClosedConnError(err) {
			err = nil
		}
	}
	if s.ln != nil {
		_ = s.ln.Close()
	}
	s.mu.Unlock()

	s.wg.Wait()
	s.state.Store(int32(StateStopped))
	close(s.errCh)
	s.logger.Info("stopped")
	return err
}

func (s *Server) fail(err error) {
	s.mu.Lock()
	s.lastErr = err
	s.mu.Unlock()
	s.state.Store(int32(StateFailed))
	if s.cancel != nil {
		s.cancel()
	}
}

// Err receives serve failures that happen after Start returned. It is closed by Stop.
func (s *Server) Err() <-chan error { return s.errCh }

func (s *Server) State() State { return State(s.state.Load()) }

func (s *Server) IsRunning() bool { return s.State() == StateRunning }

// LastError is the error that moved the server to StateFailed.
func (s *Server) LastError() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastErr
}

// Address is the bound host:port, or "" before the server started.
func (s *Server) Address() string {
	select {
	case <-s.started:
	default:
		return ""
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.addr
}

// Port is the bound port, or 0 before the server started.
func (s *Server) Port() int {
	_, p, err := net.SplitHostPort(s.Address())
	if err != nil {
		return 0
	}
	port, err := strconv.Atoi(p)
	if err != nil {
		return 0
	}
	return port
}

// Wait blocks until the server goroutines exit and returns the failure, if any.
func (s *Server) Wait() error {
	s.wg.Wait()
	if s.State() == StateFailed {
		return s.LastError()
	}
	return nil
}

// ConnectionInfo issues a fresh token labelled label and returns how to use it.
func (s *Server) ConnectionInfo(label string) (*ConnectionInfo, error) {
	if !s.IsRunning() {
		return nil, fmt.Errorf("SSH server is not running (state: %s)", s.State())
	}
	tok, err := s.GenerateToken(label)
	if err != nil {
		return nil, err
	}
	return &ConnectionInfo{
		Host:      s.cfg.Host,
		Port:      s.Port(),
		User:      User,
		Token:     tok.Value,
		ExpiresAt: tok.ExpiresAt,
	}, nil
}

func isClosedConnError(err error) bool {
	var opErr *net.OpError
	return errors.As(err, &opErr) && errors.Is(opErr.Err, net.ErrClosed)
}
