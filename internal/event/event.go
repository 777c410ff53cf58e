// Package event wraps canonical stack traces into the outbound event payload
// handed to the delivery transport.
package event

import (
	"crypto/rand"
	"encoding/hex"
	"time"

	"github.com/yousuf/tracecanon/internal/tracekit"
)

// Level is an event severity.
type Level string

const (
	LevelDebug    Level = "debug"
	LevelInfo     Level = "info"
	LevelWarning  Level = "warning"
	LevelError    Level = "error"
	LevelFatal    Level = "fatal"
	LevelCritical Level = "critical"
	LevelLog      Level = "log"
)

// Event is the outbound payload.
type Event struct {
	EventID   string         `json:"event_id" msgpack:"event_id"`
	Timestamp time.Time      `json:"timestamp" msgpack:"timestamp"`
	Level     Level          `json:"level,omitempty" msgpack:"level,omitempty"`
	Logger    string         `json:"logger,omitempty" msgpack:"logger,omitempty"`
	Message   string         `json:"message,omitempty" msgpack:"message,omitempty"`
	Exception *ExceptionList `json:"exception,omitempty" msgpack:"exception,omitempty"`
	DebugMeta *DebugMeta     `json:"debug_meta,omitempty" msgpack:"debug_meta,omitempty"`
	Extra     map[string]any `json:"extra,omitempty" msgpack:"extra,omitempty"`
}

// ExceptionList holds the exceptions of one event, innermost cause last.
type ExceptionList struct {
	Values []Exception `json:"values" msgpack:"values"`
}

// Exception is one captured error with its stack.
type Exception struct {
	Type       string      `json:"type" msgpack:"type"`
	Value      string      `json:"value" msgpack:"value"`
	Stacktrace *Stacktrace `json:"stacktrace,omitempty" msgpack:"stacktrace,omitempty"`
}

// Stacktrace lists frames oldest call first, the order the transport expects.
type Stacktrace struct {
	Frames []Frame `json:"frames" msgpack:"frames"`
}

// Frame is a transport frame. The address fields are filled in by debug-image
// augmentation for wasm frames.
type Frame struct {
	Filename        string `json:"filename" msgpack:"filename"`
	Function        string `json:"function" msgpack:"function"`
	Lineno          int    `json:"lineno,omitempty" msgpack:"lineno,omitempty"`
	Colno           int    `json:"colno,omitempty" msgpack:"colno,omitempty"`
	InApp           bool   `json:"in_app" msgpack:"in_app"`
	InstructionAddr string `json:"instruction_addr,omitempty" msgpack:"instruction_addr,omitempty"`
	AddrMode        string `json:"addr_mode,omitempty" msgpack:"addr_mode,omitempty"`
	Platform        string `json:"platform,omitempty" msgpack:"platform,omitempty"`
}

// DebugMeta carries the debug images referenced by patched frames.
type DebugMeta struct {
	Images []Image `json:"images" msgpack:"images"`
}

// Image describes a loaded bytecode module.
type Image struct {
	Type      string `json:"type" msgpack:"type"`
	CodeID    string `json:"code_id" msgpack:"code_id"`
	CodeFile  string `json:"code_file" msgpack:"code_file"`
	DebugFile string `json:"debug_file,omitempty" msgpack:"debug_file,omitempty"`
	DebugID   string `json:"debug_id" msgpack:"debug_id"`
}

// New creates an event with a fresh id and the current time.
func New(level Level) *Event {
	return &Event{
		EventID:   newID(),
		Timestamp: time.Now().UTC(),
		Level:     level,
	}
}

// FromStackTrace converts a canonical trace into a transport exception.
// Frames are reversed so that the oldest call comes first.
func FromStackTrace(st tracekit.StackTrace) Exception {
	frames := make([]Frame, len(st.Stack))
	for i, f := range st.Stack {
		frames[len(st.Stack)-1-i] = Frame{
			Filename: f.Filename,
			Function: f.Function,
			Lineno:   f.Lineno,
			Colno:    f.Colno,
			InApp:    f.Lineno > 0,
		}
	}
	ex := Exception{Type: st.Name, Value: st.Message}
	if len(frames) > 0 {
		ex.Stacktrace = &Stacktrace{Frames: frames}
	}
	return ex
}

// NewException builds an error-level event around a canonical trace.
func NewException(st tracekit.StackTrace) *Event {
	ev := New(LevelError)
	ev.Exception = &ExceptionList{Values: []Exception{FromStackTrace(st)}}
	return ev
}

// SetExtra stores a key in the event's extra data.
func (e *Event) SetExtra(key string, value any) {
	if e.Extra == nil {
		e.Extra = make(map[string]any)
	}
	e.Extra[key] = value
}

// Frames returns pointers to every exception frame so processors can patch them in place.
func (e *Event) Frames() []*Frame {
	if e.Exception == nil {
		return nil
	}
	var out []*Frame
	for i := range e.Exception.Values {
		st := e.Exception.Values[i].Stacktrace
		if st == nil {
			continue
		}
		for j := range st.Frames {
			out = append(out, &st.Frames[j])
		}
	}
	return out
}

// Severity maps a console method name to an event level. log, assert and
// anything unrecognized map to LevelLog.
func Severity(level string) Level {
	switch level {
	case "debug":
		return LevelDebug
	case "info":
		return LevelInfo
	case "warn", "warning":
		return LevelWarning
	case "error":
		return LevelError
	case "fatal":
		return LevelFatal
	case "critical":
		return LevelCritical
	default:
		return LevelLog
	}
}

func newID() string {
	var b [16]byte
	_, _ = rand.Read(b[:])
	return hex.EncodeToString(b[:])
}
