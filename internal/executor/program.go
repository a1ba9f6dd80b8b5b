// SPDX-License-Identifier: MPL-2.0

package executor

import (
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
)

// interpreters maps language ids to the program that runs them. An empty
// value means the default shell.
var interpreters = map[string]string{
	"sh":          "sh",
	"bash":        "bash",
	"zsh":         "zsh",
	"ksh":         "ksh",
	"shell":       "",
	"shellscript": "",
	"py":          "python3",
	"python":      "python3",
	"js":          "node",
	"javascript":  "node",
	"ts":          "ts-node",
	"typescript":  "ts-node",
	"rb":          "ruby",
	"ruby":        "ruby",
}

var scriptExtensions = map[string]string{
	"python3": ".py",
	"python":  ".py",
	"node":    ".js",
	"ts-node": ".ts",
	"ruby":    ".rb",
}

// program is a fully built command line plus the files it owns.
type program struct {
	name  string
	args  []string
	dir   string
	env   []string
	shell bool
	// dumpPath receives the final environment of shell programs.
	dumpPath string
	// tempFiles are removed once the execution ends.
	tempFiles []string
}

func (p *program) cleanup() {
	for _, f := range p.tempFiles {
		_ = os.Remove(f) // Best-effort cleanup of files under TempDir
	}
}

// buildProgram resolves the interpreter for cfg and prepares its argv.
func (e *Executor) buildProgram(cfg ProgramConfig, env []string) (*program, error) {
	name, err := e.programName(cfg)
	if err != nil {
		return nil, err
	}

	p := &program{
		name:  name,
		dir:   cfg.Directory,
		env:   env,
		shell: isShell(name),
	}

	var body string
	switch src := cfg.Source.(type) {
	case nil:
		p.args = append([]string(nil), cfg.Arguments...)
		return p, nil
	case Commands:
		if p.shell {
			body = joinCommands(name, src)
		} else {
			body = strings.Join(src, "\n")
		}
	case Script:
		body = string(src)
	default:
		return nil, fmt.Errorf("unsupported program source %T", src)
	}

	if !p.shell {
		path, err := e.writeTemp("runnerd-script-*"+scriptExtensions[filepath.Base(name)], body)
		if err != nil {
			p.cleanup()
			return nil, err
		}
		p.tempFiles = append(p.tempFiles, path)
		p.args = append(append([]string(nil), cfg.Arguments...), path)
		return p, nil
	}

	dumpPath, err := e.writeTemp("runnerd-env-*", "")
	if err != nil {
		return nil, err
	}
	p.dumpPath = dumpPath
	p.tempFiles = append(p.tempFiles, dumpPath)

	prelude, err := dumpPrelude(dumpPath)
	if err != nil {
		p.cleanup()
		return nil, err
	}

	// $0 is the shell name; arguments become $1...
	p.args = append([]string{"-c", prelude + body, name}, cfg.Arguments...)
	return p, nil
}

func (e *Executor) programName(cfg ProgramConfig) (string, error) {
	if cfg.ProgramName != "" {
		return cfg.ProgramName, nil
	}
	if cfg.LanguageID != "" {
		name, ok := interpreters[strings.ToLower(cfg.LanguageID)]
		if !ok {
			return "", fmt.Errorf("%w: unknown language %q", ErrInvalidProgram, cfg.LanguageID)
		}
		if name != "" {
			return name, nil
		}
	}
	if e.cfg.DefaultShell != "" {
		return e.cfg.DefaultShell, nil
	}
	if bash, err := exec.LookPath("bash"); err == nil {
		return bash, nil
	}
	if sh, err := exec.LookPath("sh"); err == nil {
		return sh, nil
	}
	return "", errors.New("no shell found")
}

func (e *Executor) writeTemp(pattern, content string) (string, error) {
	f, err := os.CreateTemp(e.cfg.TempDir, pattern)
	if err != nil {
		return "", fmt.Errorf("failed to create temp file: %w", err)
	}
	if _, err := f.WriteString(content); err != nil {
		_ = f.Close()
		_ = os.Remove(f.Name())
		return "", fmt.Errorf("failed to write temp file: %w", err)
	}
	if err := f.Close(); err != nil {
		return "", fmt.Errorf("failed to close temp file: %w", err)
	}
	return f.Name(), nil
}

func isShell(name string) bool {
	switch strings.TrimSuffix(filepath.Base(name), ".exe") {
	case "sh", "bash", "zsh", "ksh", "mksh", "dash":
		return true
	default:
		return false
	}
}

// joinCommands runs commands one per line, stopping at the first failure.
func joinCommands(shell string, commands []string) string {
	header := "set -e -o pipefail"
	switch filepath.Base(shell) {
	case "sh", "dash":
		header = "set -e"
	}
	return header + "\n" + strings.Join(commands, "\n") + "\n"
}

// mergeEnv flattens NAME=VALUE layers; later layers win and first-seen
// order is kept.
func mergeEnv(layers ...[]string) []string {
	index := make(map[string]int)
	var out []string
	for _, layer := range layers {
		for _, entry := range layer {
			name, _, ok := strings.Cut(entry, "=")
			if !ok {
				continue
			}
			if i, seen := index[name]; seen {
				out[i] = entry
				continue
			}
			index[name] = len(out)
			out = append(out, entry)
		}
	}
	return out
}
