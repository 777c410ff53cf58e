// Package tracekit turns the stack text of Chrome/V8, Firefox/SpiderMonkey and
// IE/Edge Chakra errors into one engine-independent stack trace.
//
// ComputeStackTrace is pure: it keeps no state between calls and may be called
// from any number of goroutines.
package tracekit

// ComputeStackTrace normalizes an engine error record. It never fails: text
// that no engine family recognizes yields an empty stack with the name and
// message passed through.
func ComputeStackTrace(ex ErrorLike) StackTrace {
	res, ok := selectDialect(splitLines(ex.Stack))
	if !ok {
		return assemble(ex, nil)
	}

	frames := append([]Frame(nil), res.frames...)
	if res.dialect == DialectSpiderMonkey && res.topFromFirstLine {
		applyTopFrameColumn(&frames[0], ex.ColumnNumber)
	}
	return assemble(ex, FlattenEval(frames))
}

// applyTopFrameColumn fills the missing column of SpiderMonkey's top frame
// from the error's columnNumber, which the engine reports 0-based.
func applyTopFrameColumn(top *Frame, columnNumber *int) {
	if columnNumber == nil || *columnNumber < 0 {
		return
	}
	if top.Lineno == 0 || top.Colno != 0 || isEvalLocation(top.Filename) {
		return
	}
	top.Colno = *columnNumber + 1
}
