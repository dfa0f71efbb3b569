// SPDX-License-Identifier: MPL-2.0

package worker

import (
	"context"

	"github.com/rtpx/rtpx/internal/rterr"
)

// scriptHost exposes a registry to the spawn and join builtins of one worker.
type scriptHost struct {
	registry *Registry
	self     Handle
	spawn    spawnConfig
}

// Spawn starts a sibling worker that writes to the spawning worker's output and
// runs under the same context. The child gets no stdin.
func (s *scriptHost) Spawn(_ context.Context, script string) (string, error) {
	h, err := s.registry.Spawn(script,
		WithContext(s.spawn.ctx),
		WithStdio(nil, s.spawn.stdout, s.spawn.stderr),
		WithDir(s.spawn.dir),
		WithEnv(s.spawn.env...),
	)
	if err != nil {
		return "", err
	}
	return h.String(), nil
}

// Join waits for the worker named by handle. A worker joining itself would
// never return, so that is rejected.
func (s *scriptHost) Join(ctx context.Context, handle string) error {
	h, err := ParseHandle(handle)
	if err != nil {
		return err
	}
	if h == s.self {
		return rterr.InvalidArgument("handle", handle, "a worker cannot join itself")
	}
	return s.registry.JoinContext(ctx, h)
}
