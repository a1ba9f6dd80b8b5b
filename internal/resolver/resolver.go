// SPDX-License-Identifier: MPL-2.0

package resolver

import (
	"context"
	"io"
	"strings"

	"github.com/charmbracelet/log"
	"mvdan.cc/sh/v3/syntax"
)

type (
	// Resolver classifies the variables of shell programs.
	Resolver struct {
		policy Policy
		logger *log.Logger
	}

	// Option configures a Resolver.
	Option func(*Resolver)
)

// WithPolicy replaces the default classification policy.
func WithPolicy(p Policy) Option {
	return func(r *Resolver) { r.policy = p }
}

// WithLogger sets the resolver logger.
func WithLogger(l *log.Logger) Option {
	return func(r *Resolver) { r.logger = l }
}

// New creates a Resolver using DefaultPolicy unless overridden.
func New(opts ...Option) *Resolver {
	r := &Resolver{
		policy: DefaultPolicy{},
		logger: log.New(io.Discard),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Resolve parses the request source and classifies every variable it
// declares or requires. A program that does not parse yields no results
// and a *MalformedScriptError.
func (r *Resolver) Resolve(ctx context.Context, req Request) (*Result, error) {
	var (
		texts      []string
		isCommands bool
	)
	switch src := req.Source.(type) {
	case Script:
		texts = []string{string(src)}
	case Commands:
		texts = src
		isCommands = true
	default:
		return nil, ErrInvalidSource
	}

	units := make([]*unit, len(texts))
	for i, text := range texts {
		item := -1
		if isCommands {
			item = i
		}
		u, err := parseUnit(text, item)
		if err != nil {
			return nil, err
		}
		units[i] = u
	}

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	bound := boundEnv(req.Env)
	index := make(map[string]int)
	var vars []VarResult
	rewritten := make([]string, len(units))

	for i, u := range units {
		// A statement is commented out only if all of its declarations are
		// bound or unresolved.
		eligible := make(map[*syntax.Stmt]bool)
		var order []*syntax.Stmt

		for _, f := range u.found {
			idx, seen := index[f.cand.Name]
			if !seen {
				vars = append(vars, r.classify(f.cand, bound, req.Mode))
				idx = len(vars) - 1
				index[f.cand.Name] = idx
			}
			if f.stmt == nil {
				continue
			}
			_, isBound := bound[f.cand.Name]
			ok := isBound || !vars[idx].Status.IsResolved()
			prev, known := eligible[f.stmt]
			if !known {
				order = append(order, f.stmt)
				prev = true
			}
			eligible[f.stmt] = prev && ok
		}

		var stmts []*syntax.Stmt
		for _, stmt := range order {
			if eligible[stmt] {
				stmts = append(stmts, stmt)
			}
		}
		rewritten[i] = commentOut(u.text, stmts)
	}

	result := &Result{Vars: vars}
	if isCommands {
		result.Source = Commands(rewritten)
	} else {
		result.Source = Script(rewritten[0])
	}

	r.logger.Debug("resolved program", "mode", req.Mode, "vars", len(vars))
	return result, nil
}

func (r *Resolver) classify(c Candidate, bound map[string]string, mode Mode) VarResult {
	res := VarResult{Name: c.Name, OriginalValue: c.Value}
	boundValue, isBound := bound[c.Name]

	switch mode {
	case ModeSkipAll:
		res.Status = StatusResolved
		res.ResolvedValue = literalValue(c)
		if isBound {
			res.ResolvedValue = boundValue
		}
	case ModePromptAll:
		res.Status = r.policy.Classify(c)
		if res.Status.IsResolved() {
			res.Status = StatusUnresolvedWithPlaceholder
		}
		if isBound {
			res.ResolvedValue = boundValue
		}
	default:
		if isBound {
			res.Status = StatusResolved
			res.ResolvedValue = boundValue
			break
		}
		res.Status = r.policy.Classify(c)
		if res.Status.IsResolved() {
			res.ResolvedValue = literalValue(c)
		}
	}

	if res.Status == StatusUnresolvedWithMessage && c.Message != "" {
		res.OriginalValue = c.Message
	}
	return res
}

func literalValue(c Candidate) string {
	if !c.Literal {
		return ""
	}
	return c.Value
}

// boundEnv indexes NAME=VALUE entries; the first entry for a name wins.
func boundEnv(env []string) map[string]string {
	bound := make(map[string]string, len(env))
	for _, entry := range env {
		name, value, ok := strings.Cut(entry, "=")
		if !ok || name == "" {
			continue
		}
		if _, dup := bound[name]; !dup {
			bound[name] = value
		}
	}
	return bound
}
