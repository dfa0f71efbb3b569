// SPDX-License-Identifier: MPL-2.0

// Package config handles application configuration using Viper with CUE as the file format.
//
// Configuration is loaded from ~/.config/rtpx/config.cue (or the XDG equivalent), then
// from ./config.cue when no user file exists. Every key can be overridden from the
// environment with the RTPX_ prefix (RTPX_REGISTRY_CAPACITY, RTPX_LOG_LEVEL, ...).
//
// Files are validated against an embedded CUE schema (config_schema.cue) before they
// are merged, so unknown keys and out-of-range values are reported with their path.
package config
