package sandbox

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/yousuf/tracecanon/internal/event"
	"github.com/yousuf/tracecanon/internal/tracekit"
	"github.com/yousuf/tracecanon/internal/wasmimages"
)

// ErrScriptFailed matches every *ScriptError.
var ErrScriptFailed = errors.New("script failed")

// ScriptOutput is what the plugin entrypoint writes back.
type ScriptOutput struct {
	Result json.RawMessage     `json:"result,omitempty"`
	Error  *tracekit.ErrorLike `json:"error,omitempty"`
}

// ScriptError is returned when the script threw.
type ScriptError struct {
	Trace tracekit.StackTrace
	// Event is the exception event with wasm frames pointed at their debug images.
	Event *event.Event
}

func (e *ScriptError) Error() string {
	if e.Trace.Message == "" {
		return fmt.Sprintf("%s: %s", ErrScriptFailed, e.Trace.Name)
	}
	return fmt.Sprintf("%s: %s: %s", ErrScriptFailed, e.Trace.Name, e.Trace.Message)
}

func (e *ScriptError) Is(target error) bool {
	return target == ErrScriptFailed
}

func decodeOutput(output []byte, reg *wasmimages.Registry) (string, error) {
	var out ScriptOutput
	if err := json.Unmarshal(output, &out); err != nil {
		return "", fmt.Errorf("failed to unmarshal output: %w", err)
	}

	if out.Error != nil {
		st := tracekit.ComputeStackTrace(*out.Error)
		ev := wasmimages.Process(event.NewException(st), reg)
		return "", &ScriptError{Trace: st, Event: ev}
	}

	if len(out.Result) == 0 {
		return "", nil
	}
	var s string
	if err := json.Unmarshal(out.Result, &s); err == nil {
		return s, nil
	}
	return string(out.Result), nil
}
