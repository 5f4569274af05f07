package diagfmt

import (
	"encoding/json"
	"io"

	"glitchls/internal/observ"
)

// DiagnosticJSON is one diagnostic in JSON output. Line is 1-based.
type DiagnosticJSON struct {
	Line     int    `json:"line"`
	Smell    string `json:"smell"`
	Message  string `json:"message"`
	Severity string `json:"severity"`
}

// FileJSON is the JSON form of a FileReport.
type FileJSON struct {
	Path        string           `json:"path"`
	Dialect     string           `json:"dialect,omitempty"`
	Skipped     string           `json:"skipped,omitempty"`
	Error       string           `json:"error,omitempty"`
	Diagnostics []DiagnosticJSON `json:"diagnostics"`
}

// Output is the root of JSON output.
type Output struct {
	Files   []FileJSON     `json:"files"`
	Count   int            `json:"count"`
	Timings *observ.Report `json:"timings,omitempty"`
}

// BuildOutput converts reports into their JSON form.
func BuildOutput(reports []FileReport, opts JSONOpts) Output {
	out := Output{Files: make([]FileJSON, 0, len(reports))}
	for _, r := range reports {
		f := FileJSON{
			Path:        formatPath(r.Path, opts.PathMode, opts.BaseDir),
			Dialect:     r.Dialect,
			Skipped:     r.Skipped,
			Diagnostics: make([]DiagnosticJSON, 0, len(r.Diagnostics)),
		}
		if r.Err != nil {
			f.Error = r.Err.Error()
		}
		for _, d := range r.Diagnostics {
			f.Diagnostics = append(f.Diagnostics, DiagnosticJSON{
				Line:     d.Range.Start.Line + 1,
				Smell:    d.Code,
				Message:  d.Message,
				Severity: d.Severity.String(),
			})
		}
		out.Count += len(f.Diagnostics)
		out.Files = append(out.Files, f)
	}
	return out
}

// JSON writes reports as a single JSON document. timings may be nil.
func JSON(w io.Writer, reports []FileReport, timings *observ.Report, opts JSONOpts) error {
	out := BuildOutput(reports, opts)
	out.Timings = timings
	enc := json.NewEncoder(w)
	if opts.Indent {
		enc.SetIndent("", "  ")
	}
	return enc.Encode(out)
}
