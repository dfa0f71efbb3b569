// SPDX-License-Identifier: MPL-2.0

package sshserver

import (
	"errors"
	"fmt"
	"io"

	"github.com/rtpx/rtpx/internal/instance"
	"github.com/rtpx/rtpx/internal/worker"

	"github.com/charmbracelet/ssh"
	"github.com/charmbracelet/wish"
)

// maxStdinScript bounds a script read from a session without a command.
const maxStdinScript = 1 << 20

var errScriptTooLarge = errors.New("script read from stdin exceeds 1 MiB")

func (s *Server) sessionMiddleware() wish.Middleware {
	return func(ssh.Handler) ssh.Handler {
		return func(sess ssh.Session) {
			_ = sess.Exit(s.runSession(sess))
		}
	}
}

// runSession spawns the session script as a worker and returns its exit status.
func (s *Server) runSession(sess ssh.Session) int {
	logger := s.logger.With("user", sess.User(), "remote", sess.RemoteAddr())
	if tok, ok := sess.Context().Value(tokenCtxKey).(*Token); ok {
		logger = logger.With("token", tok.Label)
	}

	script, stdin, err := sessionScript(sess)
	if err != nil {
		_, _ = fmt.Fprintf(sess.Stderr(), "rtpx: %v\n", err)
		return instance.ExitUsage
	}

	h, err := s.spawner.Spawn(script,
		worker.WithContext(sess.Context()),
		worker.WithStdio(stdin, sess, sess.Stderr()),
		worker.WithEnv(sess.Environ()...),
	)
	if err != nil {
		logger.Error("spawn failed", "err", err)
		_, _ = fmt.Fprintf(sess.Stderr(), "rtpx: %v\n", err)
		return instance.ExitFailure
	}
	logger = logger.With("handle", h)

	if err := s.spawner.JoinContext(sess.Context(), h); err != nil {
		logger.Warn("session closed before the worker finished", "err", err)
		return instance.ExitFailure
	}
	rec, err := s.spawner.Lookup(h)
	if err != nil {
		return instance.ExitFailure
	}
	logger.Debug("session finished", "exit_code", rec.ExitCode)
	return rec.ExitCode
}

// sessionScript returns the script for sess and the stdin the worker gets.
// A session without a command supplies its script on stdin.
func sessionScript(sess ssh.Session) (string, io.Reader, error) {
	if cmd := sess.RawCommand(); cmd != "" {
		return cmd, sess, nil
	}
	b, err := io.ReadAll(io.LimitReader(sess, maxStdinScript+1))
	if err != nil {
		return "", nil, fmt.Errorf("read script: %w", err)
	}
	if len(b) > maxStdinScript {
		return "", nil, errScriptTooLarge
	}
	return string(b), nil, nil
}
