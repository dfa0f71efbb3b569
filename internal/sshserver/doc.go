// SPDX-License-Identifier: MPL-2.0

// Package sshserver exposes a worker registry over SSH.
//
// Clients authenticate with a one-time-issued, time-limited token as the
// password; public keys are rejected. Every session becomes one worker: the
// session command (or, when none is given, the session's stdin) is the script,
// the session streams are its stdio, and the session exits with the script's
// exit status once the worker has been joined.
package sshserver
