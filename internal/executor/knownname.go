// SPDX-License-Identifier: MPL-2.0

package executor

// ValidateKnownName checks the naming rule for variables that receive a
// program's stdout: upper-case letters, digits and underscores, at least
// three characters, and not digits only.
func ValidateKnownName(name string) error {
	if len(name) < 3 {
		return &InvalidKnownNameError{Value: name}
	}
	digitsOnly := true
	for _, r := range name {
		switch {
		case r >= 'A' && r <= 'Z', r == '_':
			digitsOnly = false
		case r >= '0' && r <= '9':
		default:
			return &InvalidKnownNameError{Value: name}
		}
	}
	if digitsOnly || (name[0] >= '0' && name[0] <= '9') {
		return &InvalidKnownNameError{Value: name}
	}
	return nil
}

// tailBuffer keeps the last max bytes written to it.
type tailBuffer struct {
	max int
	buf []byte
}

func (t *tailBuffer) Write(p []byte) {
	if t.max <= 0 {
		return
	}
	t.buf = append(t.buf, p...)
	if over := len(t.buf) - t.max; over > 0 {
		t.buf = append(t.buf[:0:0], t.buf[over:]...)
	}
}

func (t *tailBuffer) String() string {
	return string(t.buf)
}
