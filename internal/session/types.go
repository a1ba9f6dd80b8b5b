// SPDX-License-Identifier: MPL-2.0

package session

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

const (
	// StoreTypeDefault is a plain variable store.
	StoreTypeDefault StoreType = iota
	// StoreTypeOwl is a spec-aware store that validates variables
	// against the specs declared by project env files.
	StoreTypeOwl
)

const (
	SpecPlain    Spec = "Plain"
	SpecSecret   Spec = "Secret"
	SpecPassword Spec = "Password"
	SpecOpaque   Spec = "Opaque"
)

const (
	// ErrCodeValueMissing marks a variable whose spec requires a value.
	ErrCodeValueMissing uint32 = 1
)

const (
	OriginSession = "session"
	OriginStdout  = "stdout"
)

var (
	// ErrSessionNotFound is returned for unknown session ids.
	ErrSessionNotFound = errors.New("session not found")

	// ErrInvalidEnv is the sentinel error wrapped by InvalidEnvError.
	ErrInvalidEnv = errors.New("invalid environment entry")
)

type (
	// StoreType selects the variable store behavior of a session.
	StoreType int

	// Spec is the declared type of a variable. It drives snapshot redaction.
	Spec string

	// Project points at a directory whose env files are loaded in order.
	Project struct {
		Root         string
		EnvLoadOrder []string
	}

	// Session is a point-in-time copy of a stored session.
	Session struct {
		ID         string
		Env        []string
		Metadata   map[string]string
		Project    *Project
		StoreType  StoreType
		CreateTime time.Time
	}

	// CreateOptions are the fields a new session starts with.
	CreateOptions struct {
		Metadata  map[string]string
		Env       []string
		Project   *Project
		StoreType StoreType
	}

	// UpdateFields holds the optional fields of an update. A nil field is
	// left unchanged; an empty non-nil field clears the value.
	UpdateFields struct {
		Metadata map[string]string
		Env      []string
		Project  *Project
	}

	// Var is a copy of one entry of a session's variable store.
	Var struct {
		Name          string
		OriginalValue string
		Value         string
		Spec          Spec
		Origin        string
		CreateTime    time.Time
		UpdateTime    time.Time
		Errors        []VarError
	}

	// VarError is a validation problem attached to a variable.
	VarError struct {
		Code    uint32
		Message string
	}

	// InvalidEnvError is returned when an env entry is not NAME=VALUE with
	// a valid shell identifier as NAME.
	InvalidEnvError struct {
		Entry string
	}
)

// Error implements the error interface.
func (e *InvalidEnvError) Error() string {
	return fmt.Sprintf("invalid environment entry %q (expected NAME=VALUE with a shell identifier)", e.Entry)
}

// Unwrap returns ErrInvalidEnv so callers can use errors.Is for programmatic detection.
func (e *InvalidEnvError) Unwrap() error { return ErrInvalidEnv }

// ParseSpec maps an annotation word to a Spec, case-insensitively.
// Unknown words yield SpecPlain and false.
func ParseSpec(word string) (Spec, bool) {
	for _, s := range []Spec{SpecPlain, SpecSecret, SpecPassword, SpecOpaque} {
		if strings.EqualFold(word, string(s)) {
			return s, true
		}
	}
	return SpecPlain, false
}

// IsSensitive reports whether values of this spec must not be shown.
func (s Spec) IsSensitive() bool {
	return s == SpecSecret || s == SpecPassword || s == SpecOpaque
}

// String returns the spec name, "Plain" for the zero value.
func (s Spec) String() string {
	if s == "" {
		return string(SpecPlain)
	}
	return string(s)
}

func (t StoreType) String() string {
	switch t {
	case StoreTypeOwl:
		return "owl"
	default:
		return "default"
	}
}

// clone returns a deep copy of p.
func (p *Project) clone() *Project {
	if p == nil {
		return nil
	}
	return &Project{Root: p.Root, EnvLoadOrder: append([]string(nil), p.EnvLoadOrder...)}
}
