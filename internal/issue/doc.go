// SPDX-License-Identifier: MPL-2.0

// Package issue holds the catalog of user-facing failure explanations and the
// ActionableError type the CLI prints.
//
// Catalog entries are Markdown rendered through glamour. ForError maps the
// error kinds of the real-time packages (permission denied, registry full,
// invalid argument, unsupported platform) to the matching entry.
package issue
