package diagfmt

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/fatih/color"
	"github.com/mattn/go-runewidth"

	"glitchls/internal/publish"
)

type palette struct {
	path     *color.Color
	severity map[publish.Severity]*color.Color
	code     *color.Color
	gutter   *color.Color
}

func newPalette(enabled bool) palette {
	p := palette{
		path: color.New(color.Bold),
		severity: map[publish.Severity]*color.Color{
			publish.SevError:       color.New(color.FgRed, color.Bold),
			publish.SevWarning:     color.New(color.FgYellow, color.Bold),
			publish.SevInformation: color.New(color.FgBlue, color.Bold),
			publish.SevHint:        color.New(color.FgCyan),
		},
		code:   color.New(color.FgMagenta),
		gutter: color.New(color.FgHiBlack),
	}
	all := []*color.Color{p.path, p.code, p.gutter}
	for _, c := range p.severity {
		all = append(all, c)
	}
	for _, c := range all {
		if enabled {
			c.EnableColor()
		} else {
			c.DisableColor()
		}
	}
	return p
}

func (p palette) sev(s publish.Severity) *color.Color {
	if c, ok := p.severity[s]; ok {
		return c
	}
	return p.code
}

// Pretty writes each diagnostic as
//
//	<path>:<line>: <severity> <code>: <message>
//
// optionally followed by the source line it refers to. Reports carrying an
// error are printed as a single error line.
func Pretty(w io.Writer, reports []FileReport, opts PrettyOpts) error {
	p := newPalette(opts.Color)
	for _, r := range reports {
		path := formatPath(r.Path, opts.PathMode, opts.BaseDir)
		if r.Err != nil {
			if _, err := fmt.Fprintf(w, "%s: %s %v\n", p.path.Sprint(path), p.sev(publish.SevError).Sprint("error:"), r.Err); err != nil {
				return err
			}
			continue
		}
		var lines []string
		if opts.Context && len(r.Diagnostics) > 0 {
			lines = readLines(r.Path)
		}
		for _, d := range r.Diagnostics {
			line := d.Range.Start.Line + 1
			if _, err := fmt.Fprintf(w, "%s:%d: %s %s: %s\n",
				p.path.Sprint(path), line,
				p.sev(d.Severity).Sprint(d.Severity.String()),
				p.code.Sprint(d.Code),
				d.Message,
			); err != nil {
				return err
			}
			if line-1 < len(lines) {
				gutter := fmt.Sprintf("%5d | ", line)
				text := truncate(strings.TrimRight(lines[line-1], "\r"), opts.Width-runewidth.StringWidth(gutter))
				if _, err := fmt.Fprintf(w, "%s%s\n", p.gutter.Sprint(gutter), text); err != nil {
					return err
				}
			}
		}
	}
	return nil
}

func readLines(path string) []string {
	f, err := os.Open(path)
	if err != nil {
		return nil
	}
	defer f.Close()
	var lines []string
	sc := bufio.NewScanner(f)
	sc.Buffer(make([]byte, 0, 64*1024), 1<<20)
	for sc.Scan() {
		lines = append(lines, sc.Text())
	}
	return lines
}

// truncate shortens value to width terminal cells. A non-positive width
// disables truncation.
func truncate(value string, width int) string {
	value = strings.ReplaceAll(value, "\t", "    ")
	if width <= 0 || runewidth.StringWidth(value) <= width {
		return value
	}
	if width <= 3 {
		return runewidth.Truncate(value, width, "")
	}
	return runewidth.Truncate(value, width, "...")
}
