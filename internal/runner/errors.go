package runner

import (
	"fmt"
	"regexp"
	"strings"
)

// ExecutionError reports an analyzer invocation that failed to spawn, exited
// non-zero or timed out.
type ExecutionError struct {
	// Command is the shell-quoted invocation.
	Command string
	// ExitStatus is the process exit code, or -1 when none was produced.
	ExitStatus int
	// Stderr is the captured standard error text.
	Stderr string
	// TimedOut is set when the invocation exceeded its timeout.
	TimedOut bool
	// Signal describes the signal that ended the process, e.g. "signal: killed".
	// Empty when the process exited on its own or never started.
	Signal string
	// Err is the underlying error from the process package.
	Err error
}

func (e *ExecutionError) Error() string {
	switch {
	case e.TimedOut:
		return fmt.Sprintf("analyzer timed out: %s", e.Command)
	case e.Signal != "":
		return fmt.Sprintf("analyzer terminated (%s): %s", e.Signal, firstLine(e.fallback()))
	case e.ExitStatus < 0:
		return fmt.Sprintf("analyzer failed to start: %v", e.Err)
	default:
		return fmt.Sprintf("analyzer exited with status %d: %s", e.ExitStatus, firstLine(e.fallback()))
	}
}

func (e *ExecutionError) Unwrap() error {
	return e.Err
}

var errorMarker = regexp.MustCompile(`(?i)\berror:\s*`)

// UserMessage extracts the most relevant fragment for a user notification:
// the text after the last "Error:" marker in stderr, else the trimmed stderr,
// else the error message.
func (e *ExecutionError) UserMessage() string {
	text := strings.TrimSpace(e.Stderr)
	if text != "" {
		if locs := errorMarker.FindAllStringIndex(text, -1); len(locs) > 0 {
			if msg := firstLine(text[locs[len(locs)-1][1]:]); msg != "" {
				return msg
			}
		}
		return text
	}
	return e.Error()
}

func (e *ExecutionError) fallback() string {
	if s := strings.TrimSpace(e.Stderr); s != "" {
		return s
	}
	if e.Err != nil {
		return e.Err.Error()
	}
	return "no error output"
}

func firstLine(s string) string {
	s = strings.TrimSpace(s)
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		s = s[:i]
	}
	return strings.TrimSpace(s)
}
