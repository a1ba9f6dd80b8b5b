// SPDX-License-Identifier: MPL-2.0

package executor

import (
	"bytes"
	"fmt"
	"maps"
	"slices"
	"strings"

	"mvdan.cc/sh/v3/expand"
	"mvdan.cc/sh/v3/syntax"

	"github.com/runnerd/runnerd/internal/session"
)

// shellManagedVars are maintained by the shell itself and never copied
// back into a session.
var shellManagedVars = map[string]bool{
	"_":      true,
	"PWD":    true,
	"OLDPWD": true,
	"SHLVL":  true,
}

// dumpPrelude makes a shell write its exported variables to path when it
// exits, keeping the exit status of the program.
func dumpPrelude(path string) (string, error) {
	quoted, err := syntax.Quote(path, syntax.LangPOSIX)
	if err != nil {
		return "", fmt.Errorf("failed to quote env dump path: %w", err)
	}
	return "__runnerd_dump() { __runnerd_rc=$?; export -p > " + quoted + "; exit $__runnerd_rc; }\n" +
		"trap __runnerd_dump EXIT\n", nil
}

// parseDump reads the output of "export -p" as printed by bash, dash or zsh.
func parseDump(data []byte) (map[string]string, error) {
	file, err := syntax.NewParser(syntax.Variant(syntax.LangBash)).Parse(bytes.NewReader(data), "")
	if err != nil {
		return nil, fmt.Errorf("failed to parse env dump: %w", err)
	}

	env := make(map[string]string)
	for _, stmt := range file.Stmts {
		decl, ok := stmt.Cmd.(*syntax.DeclClause)
		if !ok {
			continue
		}
		for _, a := range decl.Args {
			if a.Name == nil || a.Naked {
				continue
			}
			value, err := expand.Literal(&expand.Config{}, a.Value)
			if err != nil {
				return nil, fmt.Errorf("failed to expand %s: %w", a.Name.Value, err)
			}
			env[a.Name.Value] = value
		}
	}
	return env, nil
}

// diffEnv compares the environment a program started with against the one
// it exited with.
func diffEnv(before []string, after map[string]string) (set []session.Assignment, unset []string) {
	start := make(map[string]string, len(before))
	for _, entry := range before {
		if name, value, ok := strings.Cut(entry, "="); ok {
			start[name] = value
		}
	}

	for _, name := range slices.Sorted(maps.Keys(after)) {
		if shellManagedVars[name] || !syntax.ValidName(name) {
			continue
		}
		value := after[name]
		if old, ok := start[name]; !ok || old != value {
			set = append(set, session.Assignment{Name: name, Value: value})
		}
	}

	for _, name := range slices.Sorted(maps.Keys(start)) {
		if shellManagedVars[name] {
			continue
		}
		if _, ok := after[name]; !ok {
			unset = append(unset, name)
		}
	}
	return set, unset
}
