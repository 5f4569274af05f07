package diagfmt

import (
	"fmt"
	"io"
)

// Short writes one line per diagnostic in the grep-friendly form
// path:line:smell:message, which most editors can jump to.
func Short(w io.Writer, reports []FileReport, mode PathMode, base string) error {
	for _, r := range reports {
		path := formatPath(r.Path, mode, base)
		if r.Err != nil {
			if _, err := fmt.Fprintf(w, "%s:0:error:%v\n", path, r.Err); err != nil {
				return err
			}
			continue
		}
		for _, d := range r.Diagnostics {
			if _, err := fmt.Fprintf(w, "%s:%d:%s:%s\n", path, d.Range.Start.Line+1, d.Code, d.Message); err != nil {
				return err
			}
		}
	}
	return nil
}
