// Package command builds the analyzer invocation for a document.
package command

import (
	"errors"
	"strings"

	"github.com/kballard/go-shellquote"

	"glitchls/internal/config"
	"glitchls/internal/dialect"
)

var (
	// ErrSkipDisabled signals that analysis is turned off by configuration.
	ErrSkipDisabled = errors.New("analysis disabled")
	// ErrSkipNoDialect signals that no dialect could be resolved for the document.
	ErrSkipNoDialect = errors.New("no dialect for document")
)

// IsSkip reports whether err is one of the skip outcomes rather than a failure.
func IsSkip(err error) bool {
	return errors.Is(err, ErrSkipDisabled) || errors.Is(err, ErrSkipNoDialect)
}

// Options are the process-wide parts of the invocation.
type Options struct {
	// Analyzer is the analyzer executable. Defaults to "glitch".
	Analyzer string
	// Shell runs the invocation through "sh -c" using the quoted rendering.
	Shell bool
}

// Line is an analyzer invocation as an argument vector. Every element of Args
// reaches the analyzer as exactly one argument.
type Line struct {
	Name    string
	Args    []string
	Dialect dialect.Kind
	Shell   bool
}

// Argv returns the full argument vector including the executable.
func (l Line) Argv() []string {
	out := make([]string, 0, len(l.Args)+1)
	out = append(out, l.Name)
	return append(out, l.Args...)
}

// String renders the line quoted for a POSIX shell.
func (l Line) String() string {
	return shellquote.Join(l.Argv()...)
}

// Exec returns the executable and arguments to spawn. In shell mode the
// quoted rendering is handed to sh as a single script argument.
func (l Line) Exec() (string, []string) {
	if l.Shell {
		return "sh", []string{"-c", l.String()}
	}
	args := make([]string, len(l.Args))
	copy(args, l.Args)
	return l.Name, args
}

// Build produces the analyzer invocation for documentPath under snap.
//
// The argument order is fixed: analysis mode, optional --config, --tech (plus
// --autodetect for ansible), one --smells per configured smell in order, and
// the document path last. It returns ErrSkipDisabled or ErrSkipNoDialect when
// the analyzer must not run.
func Build(documentPath string, snap config.Snapshot, opts Options) (Line, error) {
	if !snap.Enabled {
		return Line{}, ErrSkipDisabled
	}
	kind := dialect.Resolve(snap.DialectOverride, documentPath)
	if !kind.Valid() {
		return Line{}, ErrSkipNoDialect
	}

	name := strings.TrimSpace(opts.Analyzer)
	if name == "" {
		name = "glitch"
	}

	args := make([]string, 0, 6+2*len(snap.Smells))
	args = append(args, "--linter")
	// Blankness is judged on the trimmed value; the path itself is passed as given.
	if strings.TrimSpace(snap.ConfigPath) != "" {
		args = append(args, "--config", snap.ConfigPath)
	}
	args = append(args, "--tech", kind.String())
	if kind == dialect.Ansible {
		args = append(args, "--autodetect")
	}
	for _, smell := range snap.Smells {
		args = append(args, "--smells", smell)
	}
	args = append(args, documentPath)

	return Line{
		Name:    name,
		Args:    args,
		Dialect: kind,
		Shell:   opts.Shell,
	}, nil
}
