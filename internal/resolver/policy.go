// SPDX-License-Identifier: MPL-2.0

package resolver

import (
	"path"
	"strings"
	"unicode"
)

type (
	// Policy classifies a candidate that has no bound value.
	Policy interface {
		Classify(c Candidate) Status
	}

	// DefaultPolicy applies, in order: a message annotation or required
	// reference, a quoted value containing whitespace (descriptive
	// placeholder text), a secret annotation or secret name pattern, and
	// otherwise treats the value as resolved.
	DefaultPolicy struct {
		// SecretPatterns are path.Match globs matched against variable names.
		SecretPatterns []string
	}
)

// Classify implements Policy.
func (p DefaultPolicy) Classify(c Candidate) Status {
	switch {
	case c.Message != "" || c.Kind == KindRequired:
		return StatusUnresolvedWithMessage
	case c.Literal && c.Quoted && strings.ContainsFunc(c.Value, unicode.IsSpace):
		return StatusUnresolvedWithPlaceholder
	case c.Secret || p.isSecretName(c.Name):
		return StatusUnresolvedWithSecret
	default:
		return StatusResolved
	}
}

func (p DefaultPolicy) isSecretName(name string) bool {
	for _, pattern := range p.SecretPatterns {
		if ok, err := path.Match(pattern, name); err == nil && ok {
			return true
		}
	}
	return false
}
