// SPDX-License-Identifier: MPL-2.0

// Package cmd contains the rtpx command line.
//
// Every subcommand is built from an App, which carries the configuration
// provider and the process streams so tests can drive commands in memory.
package cmd
