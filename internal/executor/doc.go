// SPDX-License-Identifier: MPL-2.0

// Package executor runs programs as child processes on behalf of a
// session. An Execution moves through Pending, Running and one terminal
// state (Exited, Killed, Interrupted or Failed), streams its output as
// frames, accepts input, resize and stop events while running, and writes
// the environment changes of shell programs back into the session.
package executor
