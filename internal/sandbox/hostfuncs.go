package sandbox

import (
	"context"
	"encoding/json"
	"fmt"

	extism "github.com/extism/go-sdk"

	"github.com/yousuf/tracecanon/internal/wasmimages"
)

// ConsoleCall is one console API call forwarded by the plugin
type ConsoleCall struct {
	Level string `json:"level"`
	Args  []any  `json:"args"`
}

// createConsoleCaptureHostFunc creates the host function the runtime calls for every console method
func createConsoleCaptureHostFunc(sb *Sandbox) extism.HostFunction {
	return extism.NewHostFunctionWithStack(
		"console_capture",
		func(ctx context.Context, plugin *extism.CurrentPlugin, stack []uint64) {
			inputData, err := plugin.ReadBytes(stack[0])
			if err != nil {
				plugin.Logf(extism.LogLevelError, "Failed to read input: %v", err)
				return
			}

			if err := sb.captureConsole(inputData); err != nil {
				plugin.Logf(extism.LogLevelError, "Failed to capture console call: %v", err)
			}
		},
		[]extism.ValueType{extism.ValueTypeI64}, // input: offset to console call JSON
		[]extism.ValueType{},
	)
}

// captureConsole turns a console call payload into an event and hands it to the sink.
func (s *Sandbox) captureConsole(data []byte) error {
	var call ConsoleCall
	if err := json.Unmarshal(data, &call); err != nil {
		return fmt.Errorf("invalid console call: %w", err)
	}

	ev, ok := s.console.Capture(call.Level, call.Args)
	if !ok {
		return nil
	}
	wasmimages.Process(ev, s.registry)

	s.logger.Debug("captured console call", "level", call.Level, "event_id", ev.EventID)
	if s.sink != nil {
		s.sink(ev)
	}
	return nil
}
