// SPDX-License-Identifier: MPL-2.0

// Package builtin provides the shell commands through which a worker script calls
// back into the real-time services.
//
// Commands are looked up by the instance exec handler before any external binary.
// Each command receives the full argument vector (args[0] is the command name),
// reads its stdio from the interpreter's handler context, and reports failure with
// an error prefixed by "[rtpx] <name>:".
//
// # Commands
//
//   - clock_gettime CLOCK: print "SEC NSEC"
//   - clock_getres CLOCK: print "SEC NSEC"
//   - clock_nanosleep CLOCK rel|abs SEC NSEC
//   - sleep DURATION
//   - setschedparam TID POLICY [PRIO]
//   - getschedparam [TID]: print "POLICY PRIO"
//   - mlockall SCOPE
//   - munlockall
//   - rt_flavor: print "standard" or "realtime-patched"
//   - spawn SCRIPT: print the new worker's handle
//   - join HANDLE...
package builtin
