// Package command builds the shell text sent to the render node over SSM Run
// Command. Scripts are assembled from structured steps (working directory,
// executable, arguments, environment payloads) and every value is quoted for
// the target shell when rendered, so no caller ever concatenates command
// text by hand.
package command

import (
	"errors"
	"fmt"
	"regexp"
	"strings"
)

// ErrPlaceholderNotFound is returned by Bind when the token occurs in no
// argument or environment value.
var ErrPlaceholderNotFound = errors.New("placeholder not found in command template")

// ErrInvalid is wrapped by Validate failures.
var ErrInvalid = errors.New("invalid command script")

const mask = "<redacted>"

var envName = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

// Shell selects the quoting rules and the SSM document.
type Shell int

const (
	PowerShell Shell = iota
	POSIX
)

// Document returns the SSM document that runs commands in this shell.
func (s Shell) Document() string {
	if s == POSIX {
		return "AWS-RunShellScript"
	}
	return "AWS-RunPowerShellScript"
}

func (s Shell) String() string {
	if s == POSIX {
		return "posix"
	}
	return "powershell"
}

// Quote renders v as a single literal word for the shell.
func (s Shell) Quote(v string) string {
	if s == POSIX {
		return "'" + strings.ReplaceAll(v, "'", `'\''`) + "'"
	}
	return "'" + strings.ReplaceAll(v, "'", "''") + "'"
}

// Payload is an environment variable set before a step runs. Sensitive
// values (presigned URLs, tokens) are masked by Redacted.
type Payload struct {
	Name      string
	Value     string
	Sensitive bool
}

// Step runs one executable.
type Step struct {
	Dir        string
	Executable string
	Args       []string
	Env        []Payload
}

// Script is an ordered list of steps for one shell.
type Script struct {
	Shell Shell
	Steps []Step
}

// Validate checks that the script can be rendered.
func (s Script) Validate() error {
	if len(s.Steps) == 0 {
		return fmt.Errorf("%w: no steps", ErrInvalid)
	}
	for i, st := range s.Steps {
		if strings.TrimSpace(st.Executable) == "" {
			return fmt.Errorf("%w: step %d has no executable", ErrInvalid, i+1)
		}
		for _, p := range st.Env {
			if !envName.MatchString(p.Name) {
				return fmt.Errorf("%w: step %d env name %q", ErrInvalid, i+1, p.Name)
			}
		}
	}
	return nil
}

// Contains reports whether placeholder occurs in any argument or
// environment value.
func (s Script) Contains(placeholder string) bool {
	if placeholder == "" {
		return false
	}
	for _, st := range s.Steps {
		for _, a := range st.Args {
			if strings.Contains(a, placeholder) {
				return true
			}
		}
		for _, p := range st.Env {
			if strings.Contains(p.Value, placeholder) {
				return true
			}
		}
	}
	return false
}

// Bind returns a copy of s with every occurrence of placeholder in arguments
// and environment values replaced by value. The receiver is not modified.
func (s Script) Bind(placeholder, value string) (Script, error) {
	if !s.Contains(placeholder) {
		return Script{}, fmt.Errorf("%w: %q", ErrPlaceholderNotFound, placeholder)
	}
	out := Script{Shell: s.Shell, Steps: make([]Step, len(s.Steps))}
	for i, st := range s.Steps {
		ns := Step{Dir: st.Dir, Executable: st.Executable}
		ns.Args = make([]string, len(st.Args))
		for j, a := range st.Args {
			ns.Args[j] = strings.ReplaceAll(a, placeholder, value)
		}
		ns.Env = make([]Payload, len(st.Env))
		for j, p := range st.Env {
			p.Value = strings.ReplaceAll(p.Value, placeholder, value)
			ns.Env[j] = p
		}
		out.Steps[i] = ns
	}
	return out, nil
}

// Commands renders the script as the lines of the SSM "commands" parameter.
func (s Script) Commands() []string {
	return s.render(false)
}

// Redacted renders the script with sensitive payloads masked.
func (s Script) Redacted() []string {
	return s.render(true)
}

func (s Script) render(redact bool) []string {
	var lines []string
	if s.Shell == POSIX {
		lines = append(lines, "set -e")
	} else {
		lines = append(lines, "$ErrorActionPreference = 'Stop'")
	}

	for _, st := range s.Steps {
		if st.Dir != "" {
			if s.Shell == POSIX {
				lines = append(lines, "cd "+s.Shell.Quote(st.Dir))
			} else {
				lines = append(lines, "Set-Location -LiteralPath "+s.Shell.Quote(st.Dir))
			}
		}
		for _, p := range st.Env {
			v := p.Value
			if redact && p.Sensitive {
				v = mask
			}
			if s.Shell == POSIX {
				lines = append(lines, "export "+p.Name+"="+s.Shell.Quote(v))
			} else {
				lines = append(lines, "$env:"+p.Name+" = "+s.Shell.Quote(v))
			}
		}

		words := make([]string, 0, len(st.Args)+1)
		words = append(words, s.Shell.Quote(st.Executable))
		for _, a := range st.Args {
			words = append(words, s.Shell.Quote(a))
		}
		if s.Shell == POSIX {
			lines = append(lines, strings.Join(words, " "))
		} else {
			lines = append(lines, "& "+strings.Join(words, " "))
			lines = append(lines, "if ($LASTEXITCODE -ne 0) { exit $LASTEXITCODE }")
		}
	}
	return lines
}
