package sandbox

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	extism "github.com/extism/go-sdk"

	"github.com/yousuf/tracecanon/internal/console"
	"github.com/yousuf/tracecanon/internal/event"
	"github.com/yousuf/tracecanon/internal/logging"
	"github.com/yousuf/tracecanon/internal/wasmimages"
)

// Options configures a sandbox.
type Options struct {
	// Exported plugin function receiving the script source. Defaults to "run".
	Entrypoint string
	Timeout    time.Duration
	// Registry receives the plugin's debug image. A private registry is used when nil.
	Registry *wasmimages.Registry
	Console  *console.Capturer
	// Sink receives console events. Events are dropped when nil.
	Sink   func(*event.Event)
	Logger *slog.Logger
}

// Sandbox runs scripts inside a wasm JS runtime plugin
type Sandbox struct {
	plugin     *extism.Plugin
	ctx        context.Context
	entrypoint string
	registry   *wasmimages.Registry
	console    *console.Capturer
	sink       func(*event.Event)
	logger     *slog.Logger
	mu         sync.Mutex
}

// New creates a sandbox from the plugin's wasm bytes. moduleURL is the
// location the runtime reports in wasm frames.
func New(ctx context.Context, wasm []byte, moduleURL string, opts Options) (*Sandbox, error) {
	sb := &Sandbox{
		ctx:        ctx,
		entrypoint: opts.Entrypoint,
		registry:   opts.Registry,
		console:    opts.Console,
		sink:       opts.Sink,
		logger:     opts.Logger,
	}
	if sb.entrypoint == "" {
		sb.entrypoint = "run"
	}
	if sb.registry == nil {
		sb.registry = wasmimages.NewRegistry()
	}
	if sb.console == nil {
		sb.console = console.NewCapturer(nil)
	}
	if sb.logger == nil {
		sb.logger = logging.Discard()
	}

	if err := sb.registerImage(ctx, wasm, moduleURL); err != nil {
		return nil, err
	}

	manifest := extism.Manifest{
		Wasm: []extism.Wasm{
			extism.WasmData{
				Data: wasm,
				Name: moduleURL,
			},
		},
	}
	if opts.Timeout > 0 {
		manifest.Timeout = uint64(opts.Timeout.Milliseconds())
	}

	config := extism.PluginConfig{
		EnableWasi: true,
	}

	hostFunctions := []extism.HostFunction{
		createConsoleCaptureHostFunc(sb),
	}

	plugin, err := extism.NewPlugin(ctx, manifest, config, hostFunctions)
	if err != nil {
		return nil, fmt.Errorf("failed to create plugin: %w", err)
	}

	sb.plugin = plugin
	return sb, nil
}

func (s *Sandbox) registerImage(ctx context.Context, wasm []byte, moduleURL string) error {
	info, err := wasmimages.ReadModuleInfo(ctx, wasm)
	if err != nil {
		return fmt.Errorf("failed to inspect plugin: %w", err)
	}
	img, err := s.registry.Register(moduleURL, info)
	if err != nil {
		// plugins without a build id still run, their frames just stay unpatched
		s.logger.Warn("plugin is not symbolicatable", "url", moduleURL, "error", err)
		return nil
	}
	s.logger.Debug("registered plugin image", "url", moduleURL, "debug_id", img.DebugID)
	return nil
}

// Run executes script and returns its result. A script that throws yields a
// *ScriptError carrying the normalized exception event.
func (s *Sandbox) Run(script string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	exit, output, err := s.plugin.CallWithContext(s.ctx, s.entrypoint, []byte(script))
	if err != nil {
		return "", fmt.Errorf("plugin execution failed: %w", err)
	}
	if exit != 0 {
		return "", fmt.Errorf("plugin exited with code %d", exit)
	}

	return decodeOutput(output, s.registry)
}

// Registry returns the image registry the sandbox patches frames against.
func (s *Sandbox) Registry() *wasmimages.Registry {
	return s.registry
}

// Close closes the sandbox and frees resources
func (s *Sandbox) Close() error {
	if s.plugin == nil {
		return nil
	}
	return s.plugin.Close(s.ctx)
}
