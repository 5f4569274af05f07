// Package findings parses the analyzer's comma-delimited output into
// structured findings.
//
// Only lines containing a comma are records; everything else is banner or log
// noise. A record splits into at most the format's field count and the last
// field keeps any further commas. Malformed records are dropped without failing the batch.
package findings

import (
	"fmt"
	"strconv"
	"strings"

	"golang.org/x/text/encoding/unicode"
	"golang.org/x/text/transform"

	"glitchls/internal/config"
)

// MaxFields is the number of fields a Linter record is split into, and the
// fallback for formats that leave Fields unset.
const MaxFields = 5

// Finding is one analyzer-reported issue. Line uses the analyzer's 1-based
// numbering.
type Finding struct {
	SmellID string `json:"smell"`
	Line    int    `json:"line"`
	Message string `json:"message"`
}

// Format selects which record fields carry the smell id, line and message.
type Format struct {
	Name string
	// Fields caps the split so the last field keeps embedded commas.
	Fields       int
	SmellField   int
	LineField    int
	MessageField int
}

var (
	// Linter is the canonical output of "glitch --linter":
	// smell,<context>,line,<context>,message.
	Linter = Format{Name: config.FormatLinter, Fields: MaxFields, SmellField: 0, LineField: 2, MessageField: 4}
	// CSV is the older "--csv" output: path,line,smell,message.
	CSV = Format{Name: config.FormatCSV, Fields: 4, SmellField: 2, LineField: 1, MessageField: 3}
)

// FormatByName returns the format for a configured name. The empty name is
// the canonical Linter format.
func FormatByName(name string) (Format, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "", config.FormatLinter:
		return Linter, nil
	case config.FormatCSV:
		return CSV, nil
	default:
		return Format{}, fmt.Errorf("unknown output format %q", name)
	}
}

func (f Format) fields() int {
	if f.Fields > 0 {
		return f.Fields
	}
	return MaxFields
}

func (f Format) minFields() int {
	return max(f.SmellField, f.LineField, f.MessageField) + 1
}

// Parse converts raw analyzer output into findings in output order. It keeps
// no state between calls.
func Parse(raw []byte, f Format) []Finding {
	findings, _ := ParseWithStats(raw, f)
	return findings
}

// ParseWithStats is Parse that also reports how many records were dropped as
// malformed.
func ParseWithStats(raw []byte, f Format) (findings []Finding, skipped int) {
	text := decode(raw)
	for _, line := range strings.Split(text, "\n") {
		line = strings.TrimSuffix(line, "\r")
		if !strings.Contains(line, ",") {
			continue
		}
		finding, ok := parseRecord(line, f)
		if !ok {
			skipped++
			continue
		}
		findings = append(findings, finding)
	}
	return findings, skipped
}

func parseRecord(line string, f Format) (Finding, bool) {
	fields := strings.SplitN(line, ",", f.fields())
	if len(fields) < f.minFields() {
		return Finding{}, false
	}
	n, err := strconv.Atoi(strings.TrimSpace(fields[f.LineField]))
	if err != nil {
		return Finding{}, false
	}
	if n < 1 {
		n = 1
	}
	return Finding{
		SmellID: strings.TrimSpace(fields[f.SmellField]),
		Line:    n,
		Message: strings.TrimSpace(fields[f.MessageField]),
	}, true
}

// decode strips a leading byte order mark and replaces invalid UTF-8.
func decode(raw []byte) string {
	out, _, err := transform.Bytes(unicode.BOMOverride(unicode.UTF8.NewDecoder()), raw)
	if err != nil {
		return strings.ToValidUTF8(string(raw), "�")
	}
	return string(out)
}
