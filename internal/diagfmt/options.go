// Package diagfmt renders analyzer results for terminals and tools.
package diagfmt

import (
	"path/filepath"
	"strings"

	"glitchls/internal/publish"
)

// PathMode specifies how file paths are displayed.
type PathMode uint8

const (
	// PathModeAuto uses a relative path when the file is under BaseDir.
	PathModeAuto PathMode = iota
	// PathModeAbsolute always uses absolute paths.
	PathModeAbsolute
	PathModeRelative
	PathModeBasename
)

// PrettyOpts configures pretty-printing of diagnostics.
type PrettyOpts struct {
	Color    bool
	PathMode PathMode
	BaseDir  string
	// Context prints the offending source line under each diagnostic.
	Context bool
	Width   int // maximum width of a context line, 0 - unlimited
}

// JSONOpts configures JSON output of diagnostics.
type JSONOpts struct {
	PathMode PathMode
	BaseDir  string
	Indent   bool
}

// FileReport is the outcome of analyzing one file.
type FileReport struct {
	Path        string
	Dialect     string
	Diagnostics []publish.Diagnostic
	// Skipped is set when the analyzer was not run for the file.
	Skipped string
	Err     error
}

// Count returns the number of diagnostics across reports.
func Count(reports []FileReport) int {
	n := 0
	for _, r := range reports {
		n += len(r.Diagnostics)
	}
	return n
}

func formatPath(path string, mode PathMode, base string) string {
	switch mode {
	case PathModeAbsolute:
		if abs, err := filepath.Abs(path); err == nil {
			return abs
		}
		return path
	case PathModeBasename:
		return filepath.Base(path)
	case PathModeRelative, PathModeAuto:
		if base == "" {
			return path
		}
		rel, err := filepath.Rel(base, path)
		if err != nil {
			return path
		}
		if mode == PathModeAuto && strings.HasPrefix(rel, "..") {
			return path
		}
		return rel
	default:
		return path
	}
}

// ParsePathMode maps a flag value to a PathMode.
func ParsePathMode(s string) (PathMode, bool) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "auto":
		return PathModeAuto, true
	case "absolute", "abs":
		return PathModeAbsolute, true
	case "relative", "rel":
		return PathModeRelative, true
	case "basename", "base":
		return PathModeBasename, true
	default:
		return PathModeAuto, false
	}
}
