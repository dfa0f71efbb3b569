// SPDX-License-Identifier: MPL-2.0

package sshserver

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"time"

	"github.com/charmbracelet/ssh"
)

const (
	tokenBytes      = 32
	cleanupInterval = 5 * time.Minute
	tokenCtxKey     = "rtpx.token"
)

// GenerateToken issues a token valid for the configured TTL.
func (s *Server) GenerateToken(label string) (*Token, error) {
	buf := make([]byte, tokenBytes)
	if _, err := rand.Read(buf); err != nil {
		return nil, fmt.Errorf("failed to generate token: %w", err)
	}
	now := s.now()
	tok := &Token{
		Value:     TokenValue(hex.EncodeToString(buf)),
		Label:     label,
		CreatedAt: now,
		ExpiresAt: now.Add(s.cfg.TokenTTL),
	}

	s.tokenMu.Lock()
	s.tokens[tok.Value] = tok
	s.tokenMu.Unlock()

	s.logger.Debug("token issued", "label", label, "expires_at", tok.ExpiresAt)
	return tok, nil
}

// ValidateToken returns the token behind v if it exists and has not expired.
// An expired token is revoked on the way.
func (s *Server) ValidateToken(v TokenValue) (*Token, bool) {
	s.tokenMu.RLock()
	tok, ok := s.tokens[v]
	s.tokenMu.RUnlock()
	if !ok {
		return nil, false
	}
	if tok.Expired(s.now()) {
		s.RevokeToken(v)
		return nil, false
	}
	return tok, true
}

func (s *Server) RevokeToken(v TokenValue) {
	s.tokenMu.Lock()
	delete(s.tokens, v)
	s.tokenMu.Unlock()
}

// pruneTokens drops every expired token and returns how many were dropped.
func (s *Server) pruneTokens() int {
	now := s.now()
	s.tokenMu.Lock()
	defer s.tokenMu.Unlock()
	n := 0
	for v, tok := range s.tokens {
		if tok.Expired(now) {
			delete(s.tokens, v)
			n++
		}
	}
	return n
}

func (s *Server) cleanupExpiredTokens() {
	defer s.wg.Done()

	ticker := time.NewTicker(cleanupInterval)
	defer ticker.Stop()

	for {
		select {
		case <-s.ctx.Done():
			return
		case <-ticker.C:
			if n := s.pruneTokens(); n > 0 {
				s.logger.Debug("expired tokens pruned", "count", n)
			}
		}
	}
}

func (s *Server) passwordHandler(ctx ssh.Context, password string) bool {
	tok, ok := s.ValidateToken(TokenValue(password))
	if !ok {
		s.logger.Warn("rejected token", "user", ctx.User(), "remote", ctx.RemoteAddr())
		return false
	}
	ctx.SetValue(tokenCtxKey, tok)
	return true
}

// publicKeyHandler rejects every key; tokens are the only credential.
func (s *Server) publicKeyHandler(ssh.Context, ssh.PublicKey) bool {
	return false
}
