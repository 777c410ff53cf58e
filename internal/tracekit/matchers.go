package tracekit

import (
	"regexp"
	"strconv"
	"strings"

	"fortio.org/safecast"
)

// locationPrefix is what a real source location starts with: a URL scheme
// (also catches Windows drive letters), an absolute or relative path, a UNC
// share, or the <anonymous> script of console and new Function code.
const locationPrefix = `(?:[a-zA-Z][-a-zA-Z0-9+.]*:|/|\\\\|\.{1,2}/|<anonymous>)`

// noLocationMarkers are the location clauses engines print for code without a source file.
const noLocationMarkers = `(native code|native|<anonymous>|eval code)`

var (
	locationPrefixRe = regexp.MustCompile(`^` + locationPrefix)
	// "file:line[:col]" split from the right, so a file without a slash keeps its own name
	sourcePositionRe = regexp.MustCompile(`^(.+?):(\d+)(?::(\d+))?$`)
	plainFileRe      = regexp.MustCompile(`^[^\s()]+$`)
)

// splitLocation separates the trailing line and column from a location.
// Both are empty when the location carries no position.
func splitLocation(loc string) (file, line, column string) {
	if m := sourcePositionRe.FindStringSubmatch(loc); m != nil {
		return m[1], m[2], m[3]
	}
	return loc, "", ""
}

// urlFrame accepts loc when it names a source: anything with a location
// prefix, or a bare file name followed by a line number.
func urlFrame(function, loc string) (Frame, bool) {
	file, line, column := splitLocation(loc)
	if !locationPrefixRe.MatchString(file) && (line == "" || !plainFileRe.MatchString(file)) {
		return Frame{}, false
	}
	return newFrame(function, file, line, column), true
}

// positionedFrame accepts any loc that ends in a line number.
func positionedFrame(function, loc string) (Frame, bool) {
	file, line, column := splitLocation(loc)
	if line == "" {
		return Frame{}, false
	}
	return newFrame(function, file, line, column), true
}

// lineMatcher recognizes a single textual shape of one stack line.
type lineMatcher struct {
	name  string
	re    *regexp.Regexp
	build func(m []string) (Frame, bool)
}

func (lm lineMatcher) match(line string) (Frame, bool) {
	m := lm.re.FindStringSubmatch(line)
	if m == nil {
		return Frame{}, false
	}
	return lm.build(m)
}

func unlocated(m []string) (Frame, bool) {
	return Frame{Function: m[1], Filename: m[2]}, true
}

// The tables below are read-only after package initialization.
var (
	v8Matchers = []lineMatcher{
		{
			// at Array.forEach (native)
			name:  "v8-no-location",
			re:    regexp.MustCompile(`^\s*at (.+?) ?\(` + noLocationMarkers + `\)\s*$`),
			build: unlocated,
		},
		{
			// at baz (eval at foo (http://host/file.js:21:17), <anonymous>:1:30)
			name:  "v8-eval",
			re:    regexp.MustCompile(`^\s*at (?:(.*?) ?\()?(eval at .*?)(?::(\d+))?(?::(\d+))?\)?\s*$`),
			build: func(m []string) (Frame, bool) { return newFrame(m[1], m[2], m[3], m[4]), true },
		},
		{
			// at bar (http://path/to/file.js:13:17)
			name:  "v8-named",
			re:    regexp.MustCompile(`^\s*at (.+?) ?\(([^()]+)\)\s*$`),
			build: func(m []string) (Frame, bool) { return urlFrame(m[1], m[2]) },
		},
		{
			// at http://path/to/file.js:24:4
			name:  "v8-bare",
			re:    regexp.MustCompile(`^\s*at ([^()]+?)\s*$`),
			build: func(m []string) (Frame, bool) { return urlFrame("", m[1]) },
		},
	}

	chakraMatchers = []lineMatcher{
		{
			// at Array.prototype.map (native code)
			name:  "chakra-no-location",
			re:    regexp.MustCompile(`^\s*at (.+?) \(` + noLocationMarkers + `\)\s*$`),
			build: unlocated,
		},
		{
			// at eval code (eval code:1:1)
			name:  "chakra-eval-code",
			re:    regexp.MustCompile(`^\s*at (eval code) \((eval code):(\d+)(?::(\d+))?\)\s*$`),
			build: func(m []string) (Frame, bool) { return newFrame(m[1], m[2], m[3], m[4]), true },
		},
		{
			// at Anonymous function (http://path/to/file.js:48:13)
			name:  "chakra-named",
			re:    regexp.MustCompile(`^\s*at (.+?) \(([^()]+)\)\s*$`),
			build: func(m []string) (Frame, bool) { return chakraFrame(m[1], m[2]) },
		},
		{
			name:  "chakra-bare",
			re:    regexp.MustCompile(`^\s*at ([^()]+?)\s*$`),
			build: func(m []string) (Frame, bool) { return chakraFrame("", m[1]) },
		},
	}

	spiderMonkeyMatchers = []lineMatcher{
		{
			// baz@http://host/file.js line 26 > eval line 2 > eval:1:30
			name:  "spidermonkey-eval",
			re:    regexp.MustCompile(`^\s*(.*?)(?:\((.*?)\))?@(\S.*? line \d+(?: > eval line \d+)* > eval)(?::(\d+))?(?::(\d+))?\s*$`),
			build: func(m []string) (Frame, bool) { return newFrame(m[1], m[3], m[4], m[5]), true },
		},
		{
			// bar(1)@http://127.0.0.1:8000/js/file.js:13
			// @debugger eval code:1:1
			name: "spidermonkey-located",
			re:   regexp.MustCompile(`^\s*(.*?)(?:\((.*?)\))?@(.+?)\s*$`),
			build: func(m []string) (Frame, bool) {
				if f, ok := positionedFrame(m[1], m[3]); ok {
					return f, true
				}
				return urlFrame(m[1], m[3])
			},
		},
	}
)

// chakraFrame requires a line number: Chakra always prints one.
func chakraFrame(function, loc string) (Frame, bool) {
	if _, line, _ := splitLocation(loc); line == "" {
		return Frame{}, false
	}
	return urlFrame(function, loc)
}

func newFrame(function, filename, line, column string) Frame {
	f := Frame{
		Function: strings.TrimSpace(function),
		Filename: filename,
		Lineno:   parsePosition(line),
	}
	if f.Lineno > 0 {
		f.Colno = parsePosition(column)
	}
	return f
}

// parsePosition returns 0 for anything that is not a positive int32.
func parsePosition(s string) int {
	if s == "" {
		return 0
	}
	v, err := strconv.ParseUint(s, 10, 64)
	if err != nil {
		return 0
	}
	n, err := safecast.Conv[int32](v)
	if err != nil {
		return 0
	}
	return int(n)
}

func matchersFor(d Dialect) []lineMatcher {
	switch d {
	case DialectV8:
		return v8Matchers
	case DialectChakra:
		return chakraMatchers
	case DialectSpiderMonkey:
		return spiderMonkeyMatchers
	default:
		return nil
	}
}

// ParseLine applies the ordered pattern table of one dialect to a single stack
// line. The returned frame is raw: eval chains are not yet flattened and an
// unnamed function is left empty.
func ParseLine(d Dialect, line string) (Frame, bool) {
	for _, lm := range matchersFor(d) {
		if f, ok := lm.match(line); ok {
			return f, true
		}
	}
	return Frame{}, false
}
