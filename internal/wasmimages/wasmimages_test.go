package wasmimages

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yousuf/tracecanon/internal/event"
	"github.com/yousuf/tracecanon/internal/tracekit"
)

// moduleWithSections builds an otherwise empty wasm module carrying the given
// custom sections. Names and payloads must stay under 128 bytes.
func moduleWithSections(sections ...[2]string) []byte {
	out := []byte{0x00, 0x61, 0x73, 0x6d, 0x01, 0x00, 0x00, 0x00}
	for _, s := range sections {
		name, data := s[0], s[1]
		body := append([]byte{byte(len(name))}, name...)
		body = append(body, data...)
		out = append(out, 0x00, byte(len(body)))
		out = append(out, body...)
	}
	return out
}

func TestReadModuleInfo(t *testing.T) {
	ctx := context.Background()
	wasm := moduleWithSections(
		[2]string{"build_id", "\xde\xad\xbe\xef"},
		[2]string{"external_debug_info", "main.debug.wasm"},
		[2]string{"build_id", "\x01\x02"},
	)

	info, err := ReadModuleInfo(ctx, wasm)
	require.NoError(t, err)
	assert.Equal(t, ModuleInfo{BuildID: "deadbeef", DebugFile: "main.debug.wasm"}, info)
}

func TestReadModuleInfoRejectsGarbage(t *testing.T) {
	_, err := ReadModuleInfo(context.Background(), []byte("not wasm"))
	assert.Error(t, err)
}

func TestRegistryRegister(t *testing.T) {
	reg := NewRegistry()

	_, err := reg.Register("http://localhost:8001/nobuild.wasm", ModuleInfo{})
	assert.ErrorIs(t, err, ErrNoBuildID)

	img, err := reg.Register("http://localhost:8001/app/main.wasm", ModuleInfo{BuildID: "deadbeef", DebugFile: "main.debug.wasm"})
	require.NoError(t, err)
	assert.Equal(t, event.Image{
		Type:      "wasm",
		CodeID:    "deadbeef",
		CodeFile:  "http://localhost:8001/app/main.wasm",
		DebugFile: "http://localhost:8001/app/main.debug.wasm",
		DebugID:   "deadbeef0000000000000000000000000",
	}, img)

	_, err = reg.Register("http://localhost:8001/other.wasm", ModuleInfo{BuildID: "0123456789abcdef0123456789abcdef0123"})
	require.NoError(t, err)
	assert.Equal(t, 1, reg.Index("http://localhost:8001/other.wasm"))
	assert.Equal(t, "0123456789abcdef0123456789abcdef0", reg.Images()[1].DebugID)

	// re-registering replaces the old image and moves it to the end
	_, err = reg.Register("http://localhost:8001/app/main.wasm", ModuleInfo{BuildID: "cafe"})
	require.NoError(t, err)
	assert.Equal(t, 2, reg.Len())
	assert.Equal(t, 1, reg.Index("http://localhost:8001/app/main.wasm"))
	assert.Equal(t, "cafe", reg.Images()[1].CodeID)
	assert.Equal(t, -1, reg.Index("http://localhost:8001/unknown.wasm"))
}

func TestProcessPatchesWasmFrames(t *testing.T) {
	reg := NewRegistry()
	_, err := reg.Register("http://localhost:8001/main.wasm", ModuleInfo{BuildID: "deadbeef"})
	require.NoError(t, err)

	st := tracekit.ComputeStackTrace(tracekit.ErrorLike{
		Name:    "RuntimeError",
		Message: "unreachable",
		Stack: "RuntimeError: unreachable\n" +
			"    at crash (http://localhost:8001/main.wasm:wasm-function[48]:0x3f1a)\n" +
			"    at other (http://localhost:8001/unknown.wasm:wasm-function[2]:0x10)\n" +
			"    at run (http://localhost:8001/main.js:12:9)",
	})
	ev := Process(event.NewException(st), reg)

	frames := ev.Exception.Values[0].Stacktrace.Frames
	require.Len(t, frames, 3)
	// oldest first: run, other, crash
	assert.Equal(t, "http://localhost:8001/main.js", frames[0].Filename)
	assert.Equal(t, "http://localhost:8001/unknown.wasm:wasm-function[2]:0x10", frames[1].Filename)
	assert.Empty(t, frames[1].AddrMode)
	assert.Equal(t, event.Frame{
		Filename:        "http://localhost:8001/main.wasm",
		Function:        "crash",
		InstructionAddr: "0x3f1a",
		AddrMode:        "rel:0",
		Platform:        "native",
	}, frames[2])
	require.NotNil(t, ev.DebugMeta)
	assert.Equal(t, reg.Images(), ev.DebugMeta.Images)
}

func TestProcessWithoutWasmFramesLeavesDebugMetaEmpty(t *testing.T) {
	reg := NewRegistry()
	_, err := reg.Register("http://localhost:8001/main.wasm", ModuleInfo{BuildID: "deadbeef"})
	require.NoError(t, err)

	ev := Process(event.NewException(tracekit.StackTrace{
		Name:  "Error",
		Stack: []tracekit.Frame{{Filename: "http://a/b.js", Function: "f", Lineno: 1}},
	}), reg)

	assert.Nil(t, ev.DebugMeta)
}
