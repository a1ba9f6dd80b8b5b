// SPDX-License-Identifier: MPL-2.0

package resolver

import (
	"strings"

	"mvdan.cc/sh/v3/syntax"
)

type (
	// unit is one independently parsed piece of a program: the whole
	// script, or a single command of a command list.
	unit struct {
		text     string
		lines    []string
		file     *syntax.File
		comments map[uint]*syntax.Comment
		// trailing maps a line to the declaration its trailing comment
		// annotates: the last one ending on that line before the comment.
		trailing map[uint]*syntax.Stmt
		found    []found
	}

	// found is a candidate plus the statement declaring it, if any.
	found struct {
		cand Candidate
		stmt *syntax.Stmt
	}

	annotations struct {
		message string
		secret  bool
	}
)

func parseUnit(text string, item int) (*unit, error) {
	parser := syntax.NewParser(syntax.KeepComments(true), syntax.Variant(syntax.LangBash))
	file, err := parser.Parse(strings.NewReader(text), "")
	if err != nil {
		return nil, &MalformedScriptError{Item: item, Err: err}
	}

	u := &unit{
		text:     text,
		lines:    strings.Split(text, "\n"),
		file:     file,
		comments: make(map[uint]*syntax.Comment),
		trailing: make(map[uint]*syntax.Stmt),
	}
	u.collect()
	return u, nil
}

func (u *unit) collect() {
	syntax.Walk(u.file, func(node syntax.Node) bool {
		if c, ok := node.(*syntax.Comment); ok {
			u.comments[c.Hash.Line()] = c
		}
		return true
	})
	syntax.Walk(u.file, func(node syntax.Node) bool {
		stmt, ok := node.(*syntax.Stmt)
		if !ok || declaredAssigns(stmt) == nil {
			return true
		}
		line := stmt.End().Line()
		c, ok := u.comments[line]
		if !ok || stmt.End().Offset() > c.Hash.Offset() {
			return true
		}
		if prev, ok := u.trailing[line]; !ok || prev.End().Offset() < stmt.End().Offset() {
			u.trailing[line] = stmt
		}
		return true
	})

	syntax.Walk(u.file, func(node syntax.Node) bool {
		switch n := node.(type) {
		case *syntax.Stmt:
			u.collectDeclarations(n)
		case *syntax.ParamExp:
			u.collectReference(n)
		}
		return true
	})
}

func (u *unit) collectDeclarations(stmt *syntax.Stmt) {
	assigns := declaredAssigns(stmt)
	if assigns == nil {
		return
	}

	ann := u.annotationsFor(stmt)
	for _, a := range assigns {
		if a.Name == nil || a.Naked || a.Append || a.Index != nil || a.Array != nil {
			continue
		}
		value, quoted, literal := wordLiteral(a.Value)
		if !literal {
			value = printWord(a.Value)
		}
		u.found = append(u.found, found{
			cand: Candidate{
				Name:    a.Name.Value,
				Kind:    KindDeclaration,
				Value:   value,
				Literal: literal,
				Quoted:  quoted,
				Message: ann.message,
				Secret:  ann.secret,
			},
			stmt: stmt,
		})
	}
}

// declaredAssigns returns the assignments a statement exports into the
// environment, or nil when it declares nothing.
func declaredAssigns(stmt *syntax.Stmt) []*syntax.Assign {
	switch cmd := stmt.Cmd.(type) {
	case *syntax.DeclClause:
		if exports(cmd) {
			return cmd.Args
		}
	case *syntax.CallExpr:
		// NAME=VALUE cmd only scopes the value to cmd.
		if len(cmd.Args) == 0 {
			return cmd.Assigns
		}
	}
	return nil
}

func (u *unit) collectReference(pe *syntax.ParamExp) {
	if pe.Param == nil || pe.Exp == nil || pe.Excl || pe.Length || pe.Index != nil {
		return
	}

	value, quoted, literal := wordLiteral(pe.Exp.Word)
	if !literal {
		value = printWord(pe.Exp.Word)
	}

	cand := Candidate{Name: pe.Param.Value, Literal: literal, Quoted: quoted}
	switch pe.Exp.Op {
	case syntax.DefaultUnset, syntax.DefaultUnsetOrNull:
		cand.Kind = KindDefault
		cand.Value = value
	case syntax.ErrorUnset, syntax.ErrorUnsetOrNull:
		cand.Kind = KindRequired
		cand.Message = value
		cand.Literal = false
	default:
		return
	}
	u.found = append(u.found, found{cand: cand})
}

// annotationsFor reads the comment trailing a statement, when it is the
// last declaration on its line, and the block of comment lines directly
// above it.
func (u *unit) annotationsFor(stmt *syntax.Stmt) annotations {
	var ann annotations

	line := stmt.End().Line()
	if u.trailing[line] == stmt {
		ann.parse(u.comments[line].Text)
	}
	for line := int(stmt.Pos().Line()) - 1; line >= 1; line-- {
		text := strings.TrimSpace(u.lines[line-1])
		if !strings.HasPrefix(text, "#") {
			break
		}
		ann.parse(text[1:])
	}
	return ann
}

// parse reads "message: <text>" and "secret" annotations; several may
// share a comment separated by ";".
func (a *annotations) parse(text string) {
	for part := range strings.SplitSeq(text, ";") {
		part = strings.TrimSpace(part)
		lower := strings.ToLower(part)
		switch {
		case strings.HasPrefix(lower, "message:"):
			if a.message == "" {
				a.message = strings.TrimSpace(part[len("message:"):])
			}
		case lower == "secret":
			a.secret = true
		}
	}
}

// exports reports whether a declaration exports its variables.
func exports(decl *syntax.DeclClause) bool {
	switch decl.Variant.Value {
	case "export":
		return true
	case "declare", "typeset":
		for _, a := range decl.Args {
			if a.Naked && a.Name == nil && a.Value != nil {
				if flag, _, ok := wordLiteral(a.Value); ok && strings.HasPrefix(flag, "-") && strings.Contains(flag, "x") {
					return true
				}
			}
		}
	}
	return false
}

// wordLiteral returns the value of a word made only of literal parts.
func wordLiteral(w *syntax.Word) (value string, quoted, ok bool) {
	if w == nil {
		return "", false, true
	}

	var sb strings.Builder
	for _, part := range w.Parts {
		switch p := part.(type) {
		case *syntax.Lit:
			sb.WriteString(p.Value)
		case *syntax.SglQuoted:
			quoted = true
			sb.WriteString(p.Value)
		case *syntax.DblQuoted:
			quoted = true
			for _, inner := range p.Parts {
				lit, isLit := inner.(*syntax.Lit)
				if !isLit {
					return "", false, false
				}
				sb.WriteString(lit.Value)
			}
		default:
			return "", false, false
		}
	}
	return sb.String(), quoted, true
}

func printWord(w *syntax.Word) string {
	var sb strings.Builder
	if err := syntax.NewPrinter().Print(&sb, w); err != nil {
		return ""
	}
	return sb.String()
}
