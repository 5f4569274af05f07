package config

import (
	"fmt"
	"strings"
)

// Output formats understood by the result parser.
const (
	FormatLinter = "linter"
	FormatCSV    = "csv"
)

// Snapshot is the read-only configuration used by a single refresh. It is
// rebuilt for every refresh and never cached between them.
type Snapshot struct {
	Enabled         bool
	ConfigPath      string
	DialectOverride string
	Smells          []string
	OutputFormat    string
}

// Default returns the configuration used when nothing is set.
func Default() Snapshot {
	return Snapshot{
		Enabled:      true,
		OutputFormat: FormatLinter,
	}
}

// Overrides holds optionally-set configuration fields. Nil pointers (and a nil
// Smells slice) leave the underlying value untouched; an empty non-nil Smells
// slice clears it.
type Overrides struct {
	Enable            *bool
	ConfigurationPath *string
	Tech              *string
	Smells            []string
	OutputFormat      *string
}

// Apply layers o over s and returns the result. s is not modified.
func (s Snapshot) Apply(o Overrides) Snapshot {
	out := s
	out.Smells = cloneStrings(s.Smells)
	if o.Enable != nil {
		out.Enabled = *o.Enable
	}
	if o.ConfigurationPath != nil {
		out.ConfigPath = *o.ConfigurationPath
	}
	if o.Tech != nil {
		out.DialectOverride = *o.Tech
	}
	if o.Smells != nil {
		out.Smells = cloneStrings(o.Smells)
	}
	if o.OutputFormat != nil {
		out.OutputFormat = *o.OutputFormat
	}
	return out
}

// Validate reports configuration values that cannot be honored.
func (s Snapshot) Validate() error {
	switch strings.ToLower(strings.TrimSpace(s.OutputFormat)) {
	case "", FormatLinter, FormatCSV:
		return nil
	default:
		return fmt.Errorf("unknown output format %q (expected: %s|%s)", s.OutputFormat, FormatLinter, FormatCSV)
	}
}

func cloneStrings(in []string) []string {
	if in == nil {
		return nil
	}
	out := make([]string, len(in))
	copy(out, in)
	return out
}
