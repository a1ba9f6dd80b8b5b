// SPDX-License-Identifier: MPL-2.0

package types

import (
	"errors"
	"testing"
)

func TestExitCodeValidate(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name      string
		value     ExitCode
		wantValid bool
	}{
		{name: "zero is valid", value: 0, wantValid: true},
		{name: "sigint is valid", value: 130, wantValid: true},
		{name: "255 is valid", value: 255, wantValid: true},
		{name: "negative is invalid", value: -1, wantValid: false},
		{name: "256 is invalid", value: 256, wantValid: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			err := tt.value.Validate()
			if (err == nil) != tt.wantValid {
				t.Fatalf("ExitCode(%d).Validate() error = %v, wantValid %v", tt.value, err, tt.wantValid)
			}
			if !tt.wantValid && !errors.Is(err, ErrInvalidExitCode) {
				t.Errorf("error does not wrap ErrInvalidExitCode: %v", err)
			}
		})
	}
}

func TestExitCodeSignal(t *testing.T) {
	t.Parallel()

	tests := []struct {
		code    ExitCode
		wantSig int
		wantOK  bool
	}{
		{FromSignal(2), 2, true},
		{FromSignal(9), 9, true},
		{0, 0, false},
		{1, 0, false},
		{128, 0, false},
	}

	for _, tt := range tests {
		t.Run(tt.code.String(), func(t *testing.T) {
			t.Parallel()

			sig, ok := tt.code.Signal()
			if sig != tt.wantSig || ok != tt.wantOK {
				t.Errorf("ExitCode(%d).Signal() = (%d, %v), want (%d, %v)", tt.code, sig, ok, tt.wantSig, tt.wantOK)
			}
		})
	}
}

func TestFromSignal(t *testing.T) {
	t.Parallel()

	if got := FromSignal(2); got != 130 {
		t.Errorf("FromSignal(2) = %d, want 130", got)
	}
	if got := FromSignal(9); got != 137 {
		t.Errorf("FromSignal(9) = %d, want 137", got)
	}
}

func TestExitCodeUint32(t *testing.T) {
	t.Parallel()

	if got := ExitCode(42).Uint32(); got != 42 {
		t.Errorf("Uint32() = %d, want 42", got)
	}
	if got := ExitCode(-3).Uint32(); got != 0 {
		t.Errorf("Uint32() of negative = %d, want 0", got)
	}
}
