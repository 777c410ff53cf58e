package wasmimages

import (
	"regexp"
	"strconv"

	"github.com/yousuf/tracecanon/internal/event"
)

// <module-url>:wasm-function[<index>]:<hex-address>
var wasmFrameRe = regexp.MustCompile(`^(.*?):wasm-function\[\d+\]:(0x[a-fA-F0-9]+)$`)

// PatchFrames rewrites frames that point into a registered wasm module so they
// reference the module's debug image. It reports whether any frame changed.
func PatchFrames(frames []*event.Frame, reg *Registry) bool {
	patched := false
	for _, f := range frames {
		if f.Filename == "" {
			continue
		}
		m := wasmFrameRe.FindStringSubmatch(f.Filename)
		if m == nil {
			continue
		}
		idx := reg.Index(m[1])
		if idx < 0 {
			continue
		}
		f.InstructionAddr = m[2]
		f.AddrMode = "rel:" + strconv.Itoa(idx)
		f.Filename = m[1]
		f.Platform = "native"
		patched = true
	}
	return patched
}

// Process patches the exception frames of ev and, when any wasm frame was
// patched, attaches the registry's images as debug metadata.
func Process(ev *event.Event, reg *Registry) *event.Event {
	if ev == nil || reg == nil {
		return ev
	}
	if PatchFrames(ev.Frames(), reg) {
		if ev.DebugMeta == nil {
			ev.DebugMeta = &event.DebugMeta{}
		}
		ev.DebugMeta.Images = reg.Images()
	}
	return ev
}
