// SPDX-License-Identifier: MPL-2.0

package session

import (
	"fmt"
	"slices"
	"strings"
	"time"

	"mvdan.cc/sh/v3/syntax"
)

type (
	// Assignment is a single NAME=VALUE pair headed for a variable store.
	Assignment struct {
		Name   string
		Value  string
		Spec   Spec
		Origin string
	}

	// varStore holds the variables of one session in first-set order.
	// It is guarded by the owning entry's mutex.
	varStore struct {
		specAware bool
		vars      map[string]*Var
		order     []string
	}
)

// ParseEnv splits NAME=VALUE entries into assignments. Every name must be a
// valid shell identifier.
func ParseEnv(entries []string, origin string) ([]Assignment, error) {
	out := make([]Assignment, 0, len(entries))
	for _, entry := range entries {
		name, value, ok := strings.Cut(entry, "=")
		if !ok || !syntax.ValidName(name) {
			return nil, &InvalidEnvError{Entry: entry}
		}
		out = append(out, Assignment{Name: name, Value: value, Origin: origin})
	}
	return out, nil
}

func newVarStore(specAware bool) *varStore {
	return &varStore{specAware: specAware, vars: make(map[string]*Var)}
}

// set stores a value and reports whether anything observable changed.
func (s *varStore) set(a Assignment, now time.Time) bool {
	v, ok := s.vars[a.Name]
	if !ok {
		v = &Var{
			Name:          a.Name,
			OriginalValue: a.Value,
			Value:         a.Value,
			Spec:          a.Spec,
			Origin:        a.Origin,
			CreateTime:    now,
			UpdateTime:    now,
		}
		s.vars[a.Name] = v
		s.order = append(s.order, a.Name)
		s.validate(v)
		return true
	}

	if v.Value == a.Value && (a.Spec == "" || a.Spec == v.Spec) {
		return false
	}
	v.Value = a.Value
	if a.Spec != "" {
		v.Spec = a.Spec
	}
	if a.Origin != "" {
		v.Origin = a.Origin
	}
	v.UpdateTime = now
	s.validate(v)
	return true
}

func (s *varStore) unset(name string) bool {
	if _, ok := s.vars[name]; !ok {
		return false
	}
	delete(s.vars, name)
	s.order = slices.DeleteFunc(s.order, func(n string) bool { return n == name })
	return true
}

// reset replaces the whole store with the given assignments.
func (s *varStore) reset(assignments []Assignment, now time.Time) {
	s.vars = make(map[string]*Var, len(assignments))
	s.order = s.order[:0]
	for _, a := range assignments {
		s.set(a, now)
	}
}

func (s *varStore) get(name string) (string, bool) {
	v, ok := s.vars[name]
	if !ok {
		return "", false
	}
	return v.Value, true
}

// environ returns NAME=VALUE entries in first-set order.
func (s *varStore) environ() []string {
	env := make([]string, 0, len(s.order))
	for _, name := range s.order {
		env = append(env, name+"="+s.vars[name].Value)
	}
	return env
}

// snapshot returns copies of all variables sorted by name.
func (s *varStore) snapshot() []Var {
	out := make([]Var, 0, len(s.vars))
	for _, v := range s.vars {
		c := *v
		c.Errors = slices.Clone(v.Errors)
		out = append(out, c)
	}
	slices.SortFunc(out, func(a, b Var) int { return strings.Compare(a.Name, b.Name) })
	return out
}

func (s *varStore) validate(v *Var) {
	v.Errors = nil
	if !s.specAware {
		return
	}
	if (v.Spec == SpecSecret || v.Spec == SpecPassword) && v.Value == "" {
		v.Errors = append(v.Errors, VarError{
			Code:    ErrCodeValueMissing,
			Message: fmt.Sprintf("%s requires a value for spec %s", v.Name, v.Spec),
		})
	}
}
