package diagnostics

import (
	"fmt"
	"io"
)

const (
	ansiRed   = "\x1b[31m"
	ansiBold  = "\x1b[1m"
	ansiDim   = "\x1b[2m"
	ansiReset = "\x1b[0m"
)

// Render writes one diagnostic in the compiler's standard single-line
// format, optionally with ANSI color. The caller decides color from the
// output terminal (see cmd/lumec).
func Render(w io.Writer, d *Diagnostic, color bool) {
	if color {
		fmt.Fprintf(w, "%s%s:%s %serror[%s]%s: %s\n",
			ansiBold, d.Span.String(), ansiReset, ansiRed, d.Code, ansiReset, d.Msg)
	} else {
		fmt.Fprintf(w, "%s: error[%s]: %s\n", d.Span.String(), d.Code, d.Msg)
	}
	if d.Origin != nil {
		if color {
			fmt.Fprintf(w, "  %snote:%s generated code, expanded from %s\n", ansiDim, ansiReset, d.Origin.String())
		} else {
			fmt.Fprintf(w, "  note: generated code, expanded from %s\n", d.Origin.String())
		}
	}
	for _, n := range d.Notes {
		if color {
			fmt.Fprintf(w, "  %snote:%s %s\n", ansiDim, ansiReset, n)
		} else {
			fmt.Fprintf(w, "  note: %s\n", n)
		}
	}
}

// RenderAll renders a sorted diagnostic list.
func RenderAll(w io.Writer, ds []*Diagnostic, color bool) {
	for _, d := range ds {
		Render(w, d, color)
	}
}
