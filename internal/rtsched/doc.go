// SPDX-License-Identifier: MPL-2.0

// Package rtsched sets and reads the scheduling class of individual OS threads.
//
// Thread ids are kernel thread ids (TIDs); 0 addresses the calling thread. Callers
// running on a goroutine must hold runtime.LockOSThread for "the calling thread" to
// keep meaning the same thread between calls.
package rtsched
