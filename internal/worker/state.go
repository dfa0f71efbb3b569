// SPDX-License-Identifier: MPL-2.0

package worker

const (
	// StateCreated indicates the slot is reserved and the thread is starting.
	StateCreated State = iota
	// StateBootstrapping indicates the interpreter instance is being built.
	StateBootstrapping
	// StateRunning indicates the script is executing.
	StateRunning
	// StateExited is terminal: the script finished (successfully or not).
	StateExited
	// StateFailed is terminal: thread setup or instance construction failed.
	StateFailed
)

// State is the lifecycle state of a worker.
type State int32

// String returns a human-readable representation of the worker state.
func (s State) String() string {
	switch s {
	case StateCreated:
		return "created"
	case StateBootstrapping:
		return "bootstrapping"
	case StateRunning:
		return "running"
	case StateExited:
		return "exited"
	case StateFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// IsTerminal returns true if the worker's thread has finished.
func (s State) IsTerminal() bool {
	return s == StateExited || s == StateFailed
}

// MarshalText implements encoding.TextMarshaler.
func (s State) MarshalText() ([]byte, error) { return []byte(s.String()), nil }
