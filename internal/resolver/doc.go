// SPDX-License-Identifier: MPL-2.0

// Package resolver finds the environment variables a shell program
// declares or requires, classifies each one as resolved or needing input,
// and rewrites the program so that values bound in the session win at
// execution time.
//
// Candidates are export/declare -x/bare assignments plus ${NAME:-default}
// and ${NAME:?message} references. Comments directly above or trailing a
// declaration annotate it:
//
//	# message: Your GitHub username
//	export GH_USER=
//	export GH_TOKEN= # secret
package resolver
