// SPDX-License-Identifier: MPL-2.0

package issue

import (
	"strings"

	"github.com/charmbracelet/glamour"
	"golang.org/x/exp/maps"
	"golang.org/x/exp/slices"
)

const (
	ServerUnreachableId Id = iota + 1
	SessionNotFoundId
	InvalidProgramId
	ProjectEnvFailedId
	ConfigLoadFailedId
	ShellNotFoundId
	ExecutionFailedId
	PermissionDeniedId
)

type (
	// Id identifies a catalog entry.
	Id int

	MarkdownMsg string

	HttpLink string

	// Issue is a catalog entry: Markdown guidance for a class of failure.
	Issue struct {
		id       Id
		mdMsg    MarkdownMsg
		docLinks []HttpLink
		extLinks []HttpLink
	}
)

func (i *Issue) Id() Id {
	return i.id
}

func (i *Issue) MarkdownMsg() MarkdownMsg {
	return i.mdMsg
}

func (i *Issue) DocLinks() []HttpLink {
	return slices.Clone(i.docLinks)
}

func (i *Issue) ExtLinks() []HttpLink {
	return slices.Clone(i.extLinks)
}

// Render renders the guidance for a terminal. stylePath is a glamour style
// name ("dark", "light", "notty") or a path to a style file.
func (i *Issue) Render(stylePath string) (string, error) {
	var md strings.Builder
	md.WriteString(string(i.mdMsg))
	if len(i.docLinks) > 0 || len(i.extLinks) > 0 {
		md.WriteString("\n\n## See also\n")
		for _, link := range append(i.DocLinks(), i.extLinks...) {
			md.WriteString("- <" + string(link) + ">\n")
		}
	}
	return render(md.String(), stylePath)
}

var (
	render = glamour.Render

	serverUnreachableIssue = &Issue{
		id: ServerUnreachableId,
		mdMsg: `
# Cannot reach the runner server

The client could not connect to a running runnerd server.

## Things you can try
- Start a server in another terminal:
~~~
$ runnerd server
~~~
- Point the client at the right address with ` + "`--address`" + ` or the
  ` + "`server.address`" + ` setting in your config file.`,
	}

	sessionNotFoundIssue = &Issue{
		id: SessionNotFoundId,
		mdMsg: `
# Session not found

Sessions live in the memory of the server process; they are gone after a
restart or a ` + "`runnerd session delete`" + `.

## Things you can try
- List the sessions the server knows about:
~~~
$ runnerd session list
~~~
- Omit ` + "`--session`" + ` to start a new session, or pass
  ` + "`--most-recent`" + ` to reuse the last one.`,
	}

	invalidProgramIssue = &Issue{
		id: InvalidProgramId,
		mdMsg: `
# The program was rejected

The server could not accept the program, its source or its environment.

## Things you can try
- Pass either commands or a script, never both.
- Check the script for shell syntax errors:
~~~
$ bash -n script.sh
~~~
- Environment entries must look like ` + "`NAME=value`" + ` with a valid shell name.
- Known names use upper-case letters, digits and underscores, at least 3 characters.`,
	}

	projectEnvFailedIssue = &Issue{
		id: ProjectEnvFailedId,
		mdMsg: `
# Project env files could not be loaded

A file listed in the project's env load order exists but could not be read
or parsed.

## Things you can try
- Every non-comment line must be ` + "`NAME=value`" + `, optionally prefixed by ` + "`export`" + `.
- Check the file permissions of the project root.`,
	}

	configLoadFailedIssue = &Issue{
		id: ConfigLoadFailedId,
		mdMsg: `
# Failed to load configuration

The configuration file is missing, is not valid CUE, or does not match the
expected schema.

## Things you can try
- Print the effective configuration:
~~~
$ runnerd config show
~~~
- Check durations such as ` + "`executor.grace_period`" + ` (for example ` + "`\"5s\"`" + `).`,
	}

	shellNotFoundIssue = &Issue{
		id: ShellNotFoundId,
		mdMsg: `
# Shell or interpreter not found

The program named by the request, its language or the default shell is not
installed on the server host.

## Things you can try
- Install the interpreter on the server host, or
- set ` + "`executor.default_shell`" + ` in the server configuration.`,
	}

	executionFailedIssue = &Issue{
		id: ExecutionFailedId,
		mdMsg: `
# The program could not be started

The server accepted the request but failed to spawn or supervise the process.

## Things you can try
- Run the server with ` + "`--verbose`" + ` and retry to see the full error.
- Check the working directory of the program exists on the server host.`,
	}

	permissionDeniedIssue = &Issue{
		id: PermissionDeniedId,
		mdMsg: `
# Permission denied

The server process is not allowed to read a file or run a program it needs.

## Things you can try
- Check the file permissions of scripts and project env files.
- Run the server as a user that owns the project directory.`,
	}

	issues = map[Id]*Issue{
		serverUnreachableIssue.Id(): serverUnreachableIssue,
		sessionNotFoundIssue.Id():   sessionNotFoundIssue,
		invalidProgramIssue.Id():    invalidProgramIssue,
		projectEnvFailedIssue.Id():  projectEnvFailedIssue,
		configLoadFailedIssue.Id():  configLoadFailedIssue,
		shellNotFoundIssue.Id():     shellNotFoundIssue,
		executionFailedIssue.Id():   executionFailedIssue,
		permissionDeniedIssue.Id():  permissionDeniedIssue,
	}
)

// Values returns every catalog entry ordered by id.
func Values() []*Issue {
	values := maps.Values(issues)
	slices.SortFunc(values, func(a, b *Issue) int { return int(a.id - b.id) })
	return values
}

// Get returns the catalog entry for id, or nil.
func Get(id Id) *Issue {
	return issues[id]
}
