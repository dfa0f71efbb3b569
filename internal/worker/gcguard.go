// SPDX-License-Identifier: MPL-2.0

package worker

import (
	"runtime/debug"
	"sync"
)

// bootstrapGC pauses the collector while any worker is building its instance.
// The GC percent is process-wide, so the guard is shared by every registry.
var bootstrapGC gcGuard

// gcGuard is a reference-counted pause of the garbage collector.
type gcGuard struct {
	mu     sync.Mutex
	depth  int
	saved  int
	setter func(int) int
}

func (g *gcGuard) set(percent int) int {
	if g.setter != nil {
		return g.setter(percent)
	}
	return debug.SetGCPercent(percent)
}

// pause disables the GC; the first caller records the previous setting.
func (g *gcGuard) pause() {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.depth == 0 {
		g.saved = g.set(-1)
	}
	g.depth++
}

// resume restores the saved setting when the last pauser leaves.
func (g *gcGuard) resume() {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.depth == 0 {
		return
	}
	g.depth--
	if g.depth == 0 {
		g.set(g.saved)
	}
}
