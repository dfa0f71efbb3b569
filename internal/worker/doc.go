// SPDX-License-Identifier: MPL-2.0

// Package worker runs scripts on dedicated OS threads and tracks them in a
// fixed-capacity registry.
//
// Each Spawn reserves the next slot of the registry, starts a goroutine that locks
// itself to an OS thread for its whole life, builds a fresh interpreter instance on
// that thread and runs the script. The goroutine never unlocks its thread, so the
// Go runtime destroys the thread when the worker returns; nothing a script did to
// its thread (scheduling class, priority) leaks into other goroutines.
//
// Slots are never reused or removed. A Handle names a slot of one registry and is
// rejected by every other registry.
package worker
