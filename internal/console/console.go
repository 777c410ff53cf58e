// Package console turns console API calls made by scripts into events.
package console

import (
	"encoding/json"
	"fmt"
	"slices"
	"strings"

	"github.com/yousuf/tracecanon/internal/event"
	"github.com/yousuf/tracecanon/internal/tracekit"
)

// Logger is the logger name stamped on every console event.
const Logger = "console"

// DefaultLevels are the console methods captured when none are configured.
var DefaultLevels = []string{"log", "info", "warn", "error", "debug", "assert"}

const unserializable = "[value cannot be serialized]"

// Capturer converts console calls at the enabled levels into events.
type Capturer struct {
	Levels []string
}

// NewCapturer creates a capturer for levels, or DefaultLevels when levels is nil.
// A non-nil empty list captures nothing.
func NewCapturer(levels []string) *Capturer {
	if levels == nil {
		levels = DefaultLevels
	}
	return &Capturer{Levels: append([]string{}, levels...)}
}

// Enabled reports whether calls at level are captured.
func (c *Capturer) Enabled(level string) bool {
	return slices.Contains(c.Levels, level)
}

// Capture builds the event for one console call. The second result is false
// when the call produces no event: the level is disabled, or an assertion held.
func (c *Capturer) Capture(level string, args []any) (*event.Event, bool) {
	if !c.Enabled(level) {
		return nil, false
	}

	var ev *event.Event
	switch {
	case level == "assert":
		if len(args) == 0 {
			return nil, false
		}
		if ok, isBool := args[0].(bool); !isBool || ok {
			return nil, false
		}
		rest := args[1:]
		msg := SafeJoin(rest, " ")
		if msg == "" {
			msg = "console.assert"
		}
		ev = event.New(event.Severity(level))
		ev.Message = "Assertion failed: " + msg
		ev.SetExtra("arguments", rest)
	case level == "error" && len(args) > 0:
		if el, ok := asErrorLike(args[0]); ok {
			ev = event.NewException(tracekit.ComputeStackTrace(el))
			ev.Level = event.Severity(level)
			ev.SetExtra("arguments", args)
			break
		}
		fallthrough
	default:
		ev = event.New(event.Severity(level))
		ev.Message = SafeJoin(args, " ")
		ev.SetExtra("arguments", args)
	}

	ev.Logger = Logger
	return ev, true
}

// asErrorLike recognizes error records passed as the first argument of console.error.
// Decoded JSON objects qualify when they carry a string stack.
func asErrorLike(v any) (tracekit.ErrorLike, bool) {
	switch e := v.(type) {
	case tracekit.ErrorLike:
		return e, true
	case *tracekit.ErrorLike:
		if e == nil {
			return tracekit.ErrorLike{}, false
		}
		return *e, true
	case map[string]any:
		if _, ok := e["stack"].(string); !ok {
			return tracekit.ErrorLike{}, false
		}
		raw, err := json.Marshal(e)
		if err != nil {
			return tracekit.ErrorLike{}, false
		}
		var el tracekit.ErrorLike
		if err := json.Unmarshal(raw, &el); err != nil {
			return tracekit.ErrorLike{}, false
		}
		return el, true
	}
	return tracekit.ErrorLike{}, false
}

// SafeJoin renders each value and joins them with sep. Values that cannot be
// rendered are replaced by a placeholder instead of failing the whole call.
func SafeJoin(values []any, sep string) string {
	parts := make([]string, 0, len(values))
	for _, v := range values {
		parts = append(parts, render(v))
	}
	return strings.Join(parts, sep)
}

func render(v any) string {
	switch x := v.(type) {
	case nil:
		return "null"
	case string:
		return x
	case bool, int, int32, int64, uint, uint32, uint64, float32, float64:
		return fmt.Sprint(x)
	case fmt.Stringer:
		return x.String()
	case error:
		return x.Error()
	}
	raw, err := json.Marshal(v)
	if err != nil {
		return unserializable
	}
	return string(raw)
}
