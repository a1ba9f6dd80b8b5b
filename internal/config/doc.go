// SPDX-License-Identifier: MPL-2.0

// Package config handles runnerd configuration using Viper with CUE as the file format.
//
// Configuration is loaded from $XDG_CONFIG_HOME/runnerd/config.cue on Linux
// (~/Library/Application Support/runnerd/config.cue on macOS,
// %APPDATA%\runnerd\config.cue on Windows), from ./config.cue, or from an
// explicit --config path. Files are validated against the embedded CUE schema
// (config_schema.cue) before being merged over the defaults, and RUNNERD_*
// environment variables override both (RUNNERD_SERVER_ADDRESS for
// server.address).
package config
