// SPDX-License-Identifier: MPL-2.0

// Package envfile parses dotenv files and loads a project's env files in
// their configured order. Every entry remembers where it came from
// (file:line) and the spec annotation trailing its value, if any.
package envfile
