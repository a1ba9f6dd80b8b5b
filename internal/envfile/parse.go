// SPDX-License-Identifier: MPL-2.0

package envfile

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrInvalidLine is the sentinel error wrapped by ParseError.
	ErrInvalidLine = errors.New("invalid env file line")

	errUnterminatedDouble = errors.New("unterminated double quote")
	errUnterminatedSingle = errors.New("unterminated single quote")
)

type (
	// Entry is one NAME=VALUE assignment read from an env file.
	Entry struct {
		Name  string
		Value string
		// Spec is the first word of a comment trailing the value
		// ("FOO=bar # Secret" yields "Secret").
		Spec string
		// Origin is "file:line".
		Origin string
	}

	// ParseError reports the file and line of a malformed assignment.
	ParseError struct {
		File string
		Line int
		Err  error
	}
)

// Error implements the error interface.
func (e *ParseError) Error() string {
	return fmt.Sprintf("%s:%d: %v", e.File, e.Line, e.Err)
}

// Unwrap returns ErrInvalidLine so callers can use errors.Is for programmatic detection.
func (e *ParseError) Unwrap() error { return ErrInvalidLine }

// Parse reads dotenv content and returns its entries in file order.
// Supported format:
//   - Lines starting with # are comments
//   - KEY=value, KEY="value" (escapes: \n, \r, \t, \\, \", \$), KEY='value'
//   - an optional "export " prefix
//   - a trailing "# Spec" comment after the value
//
// Duplicate names are kept; consumers apply them in order so the last wins.
func Parse(content []byte, filename string) ([]Entry, error) {
	var entries []Entry

	for i, line := range strings.Split(string(content), "\n") {
		lineNum := i + 1

		line = strings.TrimSpace(strings.TrimSuffix(line, "\r"))
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		line = strings.TrimSpace(strings.TrimPrefix(line, "export "))

		key, raw, found := strings.Cut(line, "=")
		if !found {
			return nil, &ParseError{File: filename, Line: lineNum, Err: errors.New("missing '='")}
		}
		key = strings.TrimSpace(key)
		if key == "" {
			return nil, &ParseError{File: filename, Line: lineNum, Err: errors.New("empty variable name")}
		}

		value, comment, err := splitValue(raw)
		if err != nil {
			return nil, &ParseError{File: filename, Line: lineNum, Err: err}
		}

		entries = append(entries, Entry{
			Name:   key,
			Value:  value,
			Spec:   specFromComment(comment),
			Origin: fmt.Sprintf("%s:%d", filename, lineNum),
		})
	}

	return entries, nil
}

// splitValue separates a raw value from its trailing comment and decodes
// any quoting.
func splitValue(raw string) (value, comment string, err error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return "", "", nil
	}

	switch raw[0] {
	case '"':
		end := closingDoubleQuote(raw)
		if end < 0 {
			return "", "", errUnterminatedDouble
		}
		return unescapeDouble(raw[1:end]), trailingComment(raw[end+1:]), nil
	case '\'':
		end := strings.IndexByte(raw[1:], '\'')
		if end < 0 {
			return "", "", errUnterminatedSingle
		}
		end++
		return raw[1:end], trailingComment(raw[end+1:]), nil
	}

	if idx := strings.Index(raw, " #"); idx != -1 {
		return strings.TrimSpace(raw[:idx]), trailingComment(raw[idx:]), nil
	}
	return raw, "", nil
}

// closingDoubleQuote returns the index of the unescaped quote closing a
// double-quoted value that starts at index 0, or -1.
func closingDoubleQuote(raw string) int {
	for i := 1; i < len(raw); i++ {
		switch raw[i] {
		case '\\':
			i++
		case '"':
			return i
		}
	}
	return -1
}

func trailingComment(rest string) string {
	rest = strings.TrimSpace(rest)
	if !strings.HasPrefix(rest, "#") {
		return ""
	}
	return strings.TrimSpace(rest[1:])
}

func specFromComment(comment string) string {
	fields := strings.Fields(comment)
	if len(fields) == 0 {
		return ""
	}
	return fields[0]
}

// unescapeDouble processes escape sequences in a double-quoted value.
func unescapeDouble(value string) string {
	var result strings.Builder
	result.Grow(len(value))

	for i := 0; i < len(value); i++ {
		if value[i] != '\\' || i+1 >= len(value) {
			result.WriteByte(value[i])
			continue
		}
		i++
		switch next := value[i]; next {
		case 'n':
			result.WriteByte('\n')
		case 'r':
			result.WriteByte('\r')
		case 't':
			result.WriteByte('\t')
		case '\\', '"', '$':
			result.WriteByte(next)
		default:
			result.WriteByte('\\')
			result.WriteByte(next)
		}
	}

	return result.String()
}
