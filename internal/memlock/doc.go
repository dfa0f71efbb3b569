// SPDX-License-Identifier: MPL-2.0

// Package memlock pins the process address space in RAM and reports which
// kernel flavor the process runs on.
package memlock
