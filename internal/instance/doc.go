// SPDX-License-Identifier: MPL-2.0

// Package instance wraps one embedded shell interpreter bound to one worker thread.
//
// An Instance is created, run once and discarded by the goroutine that owns it.
// It is never shared between workers; the only state a script sees from outside
// is its environment (including self, its own handle) and the builtins.
package instance
