// SPDX-License-Identifier: MPL-2.0

package tui

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/charmbracelet/huh"
)

// ErrCancelled is returned when the user aborts a prompt.
var ErrCancelled = errors.New("prompt cancelled")

type (
	// VarPrompt asks for the value of one variable.
	VarPrompt struct {
		Name string
		// Description is shown under the name, e.g. the message a script
		// attached to the variable.
		Description string
		// Placeholder is shown in an empty input.
		Placeholder string
		// Secret masks the typed value.
		Secret bool
	}

	// byteReader returns at most one byte per Read.
	byteReader struct {
		r io.Reader
	}
)

// PromptVars asks for every variable in one form and returns the answers
// keyed by name. Answers left empty are omitted.
func PromptVars(ctx context.Context, cfg Config, prompts []VarPrompt) (map[string]string, error) {
	if len(prompts) == 0 {
		return map[string]string{}, nil
	}

	values := make([]string, len(prompts))
	fields := make([]huh.Field, 0, len(prompts))
	for i, p := range prompts {
		input := huh.NewInput().
			Title(p.Name).
			Description(p.Description).
			Placeholder(p.Placeholder).
			Value(&values[i])
		if p.Secret {
			input = input.EchoMode(huh.EchoModePassword)
		}
		fields = append(fields, input)
	}

	in := cfg.Input
	if in == nil {
		in = os.Stdin
	}
	if cfg.Accessible {
		// Accessible prompts each scan their own line; the wrapper keeps one
		// prompt from buffering the answers of the next.
		if _, isFile := in.(*os.File); !isFile {
			in = &byteReader{r: in}
		}
	}

	form := huh.NewForm(huh.NewGroup(fields...)).
		WithTheme(getHuhTheme(cfg.Theme)).
		WithAccessible(cfg.Accessible).
		WithInput(in).
		WithOutput(getOutputWriter(cfg))

	if err := form.RunWithContext(ctx); err != nil {
		if errors.Is(err, huh.ErrUserAborted) {
			return nil, ErrCancelled
		}
		return nil, fmt.Errorf("prompt failed: %w", err)
	}

	answers := make(map[string]string, len(prompts))
	for i, p := range prompts {
		if values[i] != "" {
			answers[p.Name] = values[i]
		}
	}
	return answers, nil
}

func (b *byteReader) Read(p []byte) (int, error) {
	if len(p) == 0 {
		return 0, nil
	}
	return b.r.Read(p[:1])
}
