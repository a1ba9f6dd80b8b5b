// SPDX-License-Identifier: MPL-2.0

package resolver

import (
	"strings"

	"mvdan.cc/sh/v3/syntax"
)

// commentOut turns the given statements into comments. A statement is
// only rewritten when it owns its lines: nothing but whitespace before it
// and nothing but whitespace or a comment after it.
func commentOut(text string, stmts []*syntax.Stmt) string {
	if len(stmts) == 0 {
		return text
	}

	lines := strings.Split(text, "\n")
	done := make(map[uint]bool)
	for _, stmt := range stmts {
		if !ownsLines(lines, stmt) {
			continue
		}
		for line := stmt.Pos().Line(); line <= stmt.End().Line(); line++ {
			if done[line] {
				continue
			}
			done[line] = true
			original := lines[line-1]
			rest := strings.TrimLeft(original, " \t")
			indent := original[:len(original)-len(rest)]
			lines[line-1] = indent + "# " + rest
		}
	}
	return strings.Join(lines, "\n")
}

func ownsLines(lines []string, stmt *syntax.Stmt) bool {
	start, end := stmt.Pos(), stmt.End()
	if int(end.Line()) > len(lines) {
		return false
	}

	first := lines[start.Line()-1]
	if strings.TrimSpace(first[:min(int(start.Col())-1, len(first))]) != "" {
		return false
	}

	last := lines[end.Line()-1]
	after := ""
	if col := int(end.Col()) - 1; col < len(last) {
		after = strings.TrimSpace(last[col:])
	}
	return after == "" || strings.HasPrefix(after, "#")
}
