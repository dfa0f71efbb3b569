// SPDX-License-Identifier: MPL-2.0

package worker

import (
	"runtime"

	"github.com/rtpx/rtpx/internal/rtsched"
)

type (
	// ThreadLocker pins the calling goroutine to its OS thread and reports the
	// thread's kernel id. There is no unlock: a worker's thread dies with it.
	ThreadLocker interface {
		LockOSThread()
		ThreadID() int
	}

	osThread struct{}
)

// LockOSThread wires the calling goroutine to its current OS thread.
func (osThread) LockOSThread() { runtime.LockOSThread() }

// ThreadID returns the kernel id of the calling thread.
func (osThread) ThreadID() int { return rtsched.CurrentThreadID() }
