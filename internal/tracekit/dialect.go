package tracekit

import "strings"

// Dialect is an engine family's convention for rendering a stack trace.
type Dialect int

const (
	DialectUnknown Dialect = iota
	DialectV8
	DialectChakra
	DialectSpiderMonkey
)

func (d Dialect) String() string {
	switch d {
	case DialectV8:
		return "v8"
	case DialectChakra:
		return "chakra"
	case DialectSpiderMonkey:
		return "spidermonkey"
	default:
		return "unknown"
	}
}

// defaultProbeOrder is the tie-break order between families that parse the same number of lines.
var defaultProbeOrder = [...]Dialect{DialectV8, DialectChakra, DialectSpiderMonkey}

// parseResult is one family's reading of the whole stack text.
type parseResult struct {
	dialect Dialect
	frames  []Frame
	// lines the family recognized / lines after the header
	matched    int
	candidates int
	// the first frame came from the first non-blank line
	topFromFirstLine bool
}

// accepted reports whether the family recognized at least half of the candidate lines.
func (r parseResult) accepted() bool {
	return r.matched > 0 && 2*r.matched >= r.candidates
}

func splitLines(stack string) []string {
	raw := strings.Split(stack, "\n")
	lines := make([]string, 0, len(raw))
	for _, l := range raw {
		l = strings.TrimRight(l, "\r")
		if strings.TrimSpace(l) == "" {
			continue
		}
		lines = append(lines, l)
	}
	return lines
}

// probeOrder decides which family is preferred when scores tie, based on the
// shape of the first line: SpiderMonkey prints no header and uses "fn@location".
func probeOrder(lines []string) []Dialect {
	order := defaultProbeOrder
	if len(lines) > 0 {
		first := strings.TrimSpace(lines[0])
		if !strings.HasPrefix(first, "at ") && strings.Contains(first, "@") {
			order = [...]Dialect{DialectSpiderMonkey, DialectV8, DialectChakra}
		}
	}
	return order[:]
}

func parseAs(d Dialect, lines []string) parseResult {
	res := parseResult{dialect: d, candidates: len(lines)}
	for i, line := range lines {
		f, ok := ParseLine(d, line)
		if !ok {
			// unparsed lines ahead of the first frame are the "<name>: <message>" header
			if res.matched == 0 {
				res.candidates--
			}
			continue
		}
		if i == 0 {
			res.topFromFirstLine = true
		}
		res.frames = append(res.frames, f)
		res.matched++
	}
	return res
}

// selectDialect runs every family over the lines and keeps the best reading.
func selectDialect(lines []string) (parseResult, bool) {
	var best parseResult
	for _, d := range probeOrder(lines) {
		res := parseAs(d, lines)
		if res.matched > best.matched {
			best = res
		}
	}
	if !best.accepted() {
		return parseResult{}, false
	}
	return best, true
}

// DetectDialect reports which engine family rendered the stack text.
// It returns DialectUnknown and false when no family recognizes enough of it.
func DetectDialect(stack string) (Dialect, bool) {
	res, ok := selectDialect(splitLines(stack))
	if !ok {
		return DialectUnknown, false
	}
	return res.dialect, true
}
