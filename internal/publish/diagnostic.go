package publish

import "glitchls/internal/findings"

// Severity mirrors the LSP DiagnosticSeverity values.
type Severity uint8

const (
	SevError       Severity = 1
	SevWarning     Severity = 2
	SevInformation Severity = 3
	SevHint        Severity = 4
)

func (s Severity) String() string {
	switch s {
	case SevError:
		return "error"
	case SevWarning:
		return "warning"
	case SevInformation:
		return "info"
	case SevHint:
		return "hint"
	}
	return "unknown"
}

// Source names the producer of every diagnostic.
const Source = "glitch"

// Position is a 0-based line/column pair.
type Position struct {
	Line   int
	Column int
}

// Range spans Start inclusive to End exclusive.
type Range struct {
	Start Position
	End   Position
}

// Diagnostic is a finding projected onto an editor range.
type Diagnostic struct {
	Range    Range
	Message  string
	Severity Severity
	Code     string
	Source   string
}

// ToDiagnostic maps a finding onto the whole reported line: from
// (Line-1, 0) to (Line, 0). Lines below 1 are treated as line 1.
func ToDiagnostic(f findings.Finding) Diagnostic {
	line := f.Line
	if line < 1 {
		line = 1
	}
	return Diagnostic{
		Range: Range{
			Start: Position{Line: line - 1},
			End:   Position{Line: line},
		},
		Message:  f.Message,
		Severity: SevWarning,
		Code:     f.SmellID,
		Source:   Source,
	}
}

// ToDiagnostics maps every finding; the result is never nil.
func ToDiagnostics(list []findings.Finding) []Diagnostic {
	out := make([]Diagnostic, 0, len(list))
	for _, f := range list {
		out = append(out, ToDiagnostic(f))
	}
	return out
}
