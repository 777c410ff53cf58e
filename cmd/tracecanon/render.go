package main

import (
	"fmt"
	"io"
	"strconv"

	"github.com/fatih/color"

	"github.com/yousuf/tracecanon/internal/tracekit"
)

var (
	headerColor   = color.New(color.FgRed, color.Bold)
	functionColor = color.New(color.FgCyan)
	locationColor = color.New(color.FgWhite, color.Faint)
	dialectColor  = color.New(color.FgYellow)
)

// renderTrace prints st the way engines print stacks, innermost frame first.
// Colors follow color.NoColor.
func renderTrace(w io.Writer, st tracekit.StackTrace, dialect tracekit.Dialect) {
	paint := func(c *color.Color, s string) string {
		return c.Sprint(s)
	}

	header := st.Name
	if st.Message != "" {
		header += ": " + st.Message
	}
	fmt.Fprintf(w, "%s %s\n", paint(headerColor, header), paint(dialectColor, "["+dialect.String()+"]"))

	if len(st.Stack) == 0 {
		fmt.Fprintln(w, "    (no frames)")
		return
	}
	for _, f := range st.Stack {
		fmt.Fprintf(w, "    at %s (%s)\n", paint(functionColor, f.Function), paint(locationColor, location(f)))
	}
}

func location(f tracekit.Frame) string {
	loc := f.Filename
	if f.Lineno > 0 {
		loc += ":" + strconv.Itoa(f.Lineno)
		if f.Colno > 0 {
			loc += ":" + strconv.Itoa(f.Colno)
		}
	}
	return loc
}
