package tracekit

import (
	"regexp"
	"strings"
)

// MaxEvalDepth bounds how many nested eval levels are unwound for one frame.
const MaxEvalDepth = 16

const (
	v8EvalPrefix      = "eval at "
	geckoEvalSep      = " > "
	geckoEvalMarker   = " > eval"
	geckoEvalSegment  = "eval"
	geckoEvalLinePart = "eval line "
)

var (
	// file:line[:col] at the end of an unwound V8 location
	trailingLocationRe = regexp.MustCompile(`^(.*?):(\d+)(?::(\d+))?$`)
	// first concrete "(file:line:col)" clause, used when unwinding gives up
	concreteLocationRe = regexp.MustCompile(`\((\S*):(\d+):(\d+)\)`)
	// "<file> line N", the outermost segment of a SpiderMonkey eval chain
	geckoOuterRe = regexp.MustCompile(`^(\S.*?) line (\d+)$`)
)

// FlattenEval replaces every evaluated-code location with the concrete
// location of the code that called eval. Frames without eval chains are
// returned unchanged, so applying it twice gives the same result as once.
func FlattenEval(frames []Frame) []Frame {
	out := make([]Frame, len(frames))
	for i, f := range frames {
		out[i] = flattenFrame(f)
	}
	return out
}

func isEvalLocation(filename string) bool {
	return strings.HasPrefix(filename, v8EvalPrefix) || strings.Contains(filename, geckoEvalMarker)
}

func flattenFrame(f Frame) Frame {
	var (
		resolved Frame
		ok       bool
	)
	switch {
	case strings.HasPrefix(f.Filename, v8EvalPrefix):
		resolved, ok = unwindV8(f.Filename)
	case strings.Contains(f.Filename, geckoEvalMarker):
		resolved, ok = unwindGecko(f.Filename)
	default:
		return f
	}
	if !ok {
		return f
	}
	resolved.Function = f.Function
	if resolved.Function == "" || resolved.Function == UnknownFunction {
		resolved.Function = EvalFunction
	}
	return resolved
}

// unwindV8 peels "eval at fn (inner), <anonymous>" one level at a time until
// the location is no longer an eval clause.
func unwindV8(loc string) (Frame, bool) {
	remainder := loc
	for depth := 0; strings.HasPrefix(remainder, v8EvalPrefix); depth++ {
		if depth == MaxEvalDepth {
			return firstConcreteLocation(remainder)
		}
		inner, ok := enclosedLocation(remainder)
		if !ok {
			return firstConcreteLocation(remainder)
		}
		remainder = inner
	}
	m := trailingLocationRe.FindStringSubmatch(remainder)
	if m == nil {
		return firstConcreteLocation(loc)
	}
	return newFrame("", m[1], m[2], m[3]), true
}

// enclosedLocation returns the text inside the parentheses that follow the
// function name of an "eval at <fn> (...)" clause.
func enclosedLocation(clause string) (string, bool) {
	rest := clause[len(v8EvalPrefix):]
	open := strings.Index(rest, " (")
	if open < 0 {
		return "", false
	}
	start := open + 2
	depth := 1
	for i := start; i < len(rest); i++ {
		switch rest[i] {
		case '(':
			depth++
		case ')':
			depth--
			if depth == 0 {
				return rest[start:i], true
			}
		}
	}
	return "", false
}

func firstConcreteLocation(s string) (Frame, bool) {
	m := concreteLocationRe.FindStringSubmatch(s)
	if m == nil {
		return Frame{}, false
	}
	return newFrame("", m[1], m[2], m[3]), true
}

// unwindGecko resolves "<file> line N > eval line M > eval" to file and line N.
// SpiderMonkey does not report the column of the eval call.
func unwindGecko(loc string) (Frame, bool) {
	segments := strings.SplitN(loc, geckoEvalSep, MaxEvalDepth+2)
	if len(segments) < 2 {
		return Frame{}, false
	}
	for depth, seg := range segments[1:] {
		if depth == MaxEvalDepth {
			break
		}
		if seg != geckoEvalSegment && !strings.HasPrefix(seg, geckoEvalLinePart) {
			return Frame{}, false
		}
	}
	m := geckoOuterRe.FindStringSubmatch(segments[0])
	if m == nil {
		return Frame{}, false
	}
	return newFrame("", m[1], m[2], ""), true
}
