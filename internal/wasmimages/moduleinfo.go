// Package wasmimages records the debug images of loaded WebAssembly modules
// and points wasm stack frames at them so they can be symbolicated later.
package wasmimages

import (
	"context"
	"encoding/hex"
	"fmt"

	"github.com/tetratelabs/wazero"
)

const (
	sectionBuildID           = "build_id"
	sectionExternalDebugInfo = "external_debug_info"
)

// ModuleInfo is the identifying metadata embedded in a wasm module.
type ModuleInfo struct {
	// lowercase hex of the first build_id section, empty when absent
	BuildID string
	// first external_debug_info section, possibly relative to the module URL
	DebugFile string
}

// ReadModuleInfo decodes the module's custom sections without instantiating it.
func ReadModuleInfo(ctx context.Context, wasm []byte) (ModuleInfo, error) {
	rt := wazero.NewRuntimeWithConfig(ctx, wazero.NewRuntimeConfigInterpreter().WithCustomSections(true))
	defer rt.Close(ctx)

	compiled, err := rt.CompileModule(ctx, wasm)
	if err != nil {
		return ModuleInfo{}, fmt.Errorf("failed to compile wasm module: %w", err)
	}
	defer compiled.Close(ctx)

	var info ModuleInfo
	var haveBuildID, haveDebugFile bool
	for _, cs := range compiled.CustomSections() {
		switch cs.Name() {
		case sectionBuildID:
			if !haveBuildID {
				info.BuildID = hex.EncodeToString(cs.Data())
				haveBuildID = true
			}
		case sectionExternalDebugInfo:
			if !haveDebugFile {
				info.DebugFile = string(cs.Data())
				haveDebugFile = true
			}
		}
	}
	return info, nil
}
