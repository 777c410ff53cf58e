package server

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/yousuf/tracecanon/internal/event"
	"github.com/yousuf/tracecanon/internal/sandbox"
	"github.com/yousuf/tracecanon/internal/session"
	"github.com/yousuf/tracecanon/internal/tracekit"
	"github.com/yousuf/tracecanon/internal/wasmimages"
)

// Version is reported to MCP clients.
var Version = "0.1.0"

// NormalizeStackArgs represents the arguments for the normalize_stack tool
type NormalizeStackArgs struct {
	Error tracekit.ErrorLike `json:"error" jsonschema:"Error record as thrown by the engine: name, message and the raw stack text"`
	Event bool               `json:"event,omitempty" jsonschema:"Return a transport event with wasm frames patched instead of the bare stack trace"`
}

// CaptureConsoleArgs represents the arguments for the capture_console tool
type CaptureConsoleArgs struct {
	Level string `json:"level" jsonschema:"Console method name: log, info, warn, error, debug or assert"`
	Args  []any  `json:"args,omitempty" jsonschema:"Arguments the console method was called with"`
}

// RegisterWasmModuleArgs represents the arguments for the register_wasm_module tool
type RegisterWasmModuleArgs struct {
	URL    string `json:"url" jsonschema:"URL the module was loaded from, as it appears in stack frames"`
	Module string `json:"module" jsonschema:"Base64 encoded wasm module bytes"`
}

// RunScriptArgs represents the arguments for the run_script tool
type RunScriptArgs struct {
	Script string `json:"script" jsonschema:"JavaScript source to run in the sandbox"`
}

type noArgs struct{}

// NewMcpServer creates and configures the MCP server
func NewMcpServer(sessionMgr *session.Manager, logger *slog.Logger) *mcp.Server {
	server := mcp.NewServer(&mcp.Implementation{
		Name:    "tracecanon",
		Version: Version,
	}, &mcp.ServerOptions{
		Instructions: `
Stack trace normalization for JavaScript engines

Raw error stacks from V8 (Chrome, Node), SpiderMonkey (Firefox) and Chakra (IE, Edge)
are turned into one canonical shape: an ordered list of frames with filename,
function, line and column, innermost call first.

Available Tools:
1. "normalize_stack" - Normalize one error record ({name, message, stack, ...})
2. "capture_console" - Turn a console call into an event, as the console integration would
3. "register_wasm_module" - Record a wasm module's debug image for this session
4. "list_debug_images" - List the debug images registered in this session
5. "list_console_events" - List the console events captured in this session
6. "run_script" - Run JavaScript in the sandbox; thrown errors come back normalized

Wasm frames of registered modules are rewritten to reference their debug image.
`,
		InitializedHandler: func(ctx context.Context, req *mcp.InitializedRequest) {
			go releaseOnClose(req.Session, sessionMgr, logger)
		},
	})

	server.AddReceivingMiddleware(createSessionInjectionMiddleware(sessionMgr))
	server.AddReceivingMiddleware(createLoggingMiddleware(logger))

	mcp.AddTool(server, &mcp.Tool{
		Name:        "normalize_stack",
		Description: "Normalize a JavaScript error record into the canonical stack trace. Unrecognized stacks yield an empty frame list.",
	}, func(ctx context.Context, req *mcp.CallToolRequest, args NormalizeStackArgs) (*mcp.CallToolResult, any, error) {
		sessionCtx, err := getSessionFromContext(ctx)
		if err != nil {
			return nil, nil, err
		}

		st := tracekit.ComputeStackTrace(args.Error)
		if !args.Event {
			return jsonResult(st)
		}
		return jsonResult(wasmimages.Process(event.NewException(st), sessionCtx.Images))
	})

	mcp.AddTool(server, &mcp.Tool{
		Name:        "capture_console",
		Description: "Convert a console API call into an event and record it in the session. Returns \"ignored\" when the call produces no event.",
	}, func(ctx context.Context, req *mcp.CallToolRequest, args CaptureConsoleArgs) (*mcp.CallToolResult, any, error) {
		sessionCtx, err := getSessionFromContext(ctx)
		if err != nil {
			return nil, nil, err
		}

		ev, ok := sessionCtx.Console.Capture(args.Level, args.Args)
		if !ok {
			return textResult("ignored"), nil, nil
		}
		wasmimages.Process(ev, sessionCtx.Images)
		sessionCtx.Record(ev)
		return jsonResult(ev)
	})

	mcp.AddTool(server, &mcp.Tool{
		Name:        "register_wasm_module",
		Description: "Read the build_id and external_debug_info sections of a wasm module and register its debug image for this session.",
	}, func(ctx context.Context, req *mcp.CallToolRequest, args RegisterWasmModuleArgs) (*mcp.CallToolResult, any, error) {
		sessionCtx, err := getSessionFromContext(ctx)
		if err != nil {
			return nil, nil, err
		}
		if args.URL == "" {
			return nil, nil, fmt.Errorf("url is required")
		}

		wasm, err := base64.StdEncoding.DecodeString(args.Module)
		if err != nil {
			return nil, nil, fmt.Errorf("module is not valid base64: %w", err)
		}
		info, err := wasmimages.ReadModuleInfo(ctx, wasm)
		if err != nil {
			return nil, nil, err
		}
		img, err := sessionCtx.Images.Register(args.URL, info)
		if err != nil {
			return nil, nil, err
		}

		logger.Info("registered wasm module", "session", sessionCtx.SessionID, "url", args.URL, "debug_id", img.DebugID)
		return jsonResult(img)
	})

	mcp.AddTool(server, &mcp.Tool{
		Name:        "list_debug_images",
		Description: "List the wasm debug images registered in this session, in the order frames refer to them.",
	}, func(ctx context.Context, req *mcp.CallToolRequest, _ noArgs) (*mcp.CallToolResult, any, error) {
		sessionCtx, err := getSessionFromContext(ctx)
		if err != nil {
			return nil, nil, err
		}
		images := sessionCtx.Images.Images()
		if images == nil {
			images = []event.Image{}
		}
		return jsonResult(images)
	})

	mcp.AddTool(server, &mcp.Tool{
		Name:        "list_console_events",
		Description: "List the console events captured in this session, oldest first.",
	}, func(ctx context.Context, req *mcp.CallToolRequest, _ noArgs) (*mcp.CallToolResult, any, error) {
		sessionCtx, err := getSessionFromContext(ctx)
		if err != nil {
			return nil, nil, err
		}
		events := sessionCtx.Events()
		if events == nil {
			events = []*event.Event{}
		}
		return jsonResult(events)
	})

	mcp.AddTool(server, &mcp.Tool{
		Name: "run_script",
		Description: `Run JavaScript in the sandboxed runtime.

Console calls made by the script are recorded in the session (see list_console_events).
If the script throws, the result is an error containing the normalized exception event.`,
	}, func(ctx context.Context, req *mcp.CallToolRequest, args RunScriptArgs) (*mcp.CallToolResult, any, error) {
		sessionCtx, err := getSessionFromContext(ctx)
		if err != nil {
			return nil, nil, err
		}

		sb, err := sessionCtx.Sandbox(ctx)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to create sandbox: %w", err)
		}

		result, err := sb.Run(args.Script)
		var scriptErr *sandbox.ScriptError
		if errors.As(err, &scriptErr) {
			res, _, err := jsonResult(scriptErr.Event)
			if err != nil {
				return nil, nil, err
			}
			res.IsError = true
			return res, nil, nil
		}
		if err != nil {
			return nil, nil, fmt.Errorf("execution failed: %w", err)
		}

		return textResult(result), nil, nil
	})

	return server
}

// releaseOnClose waits for the client to disconnect and then closes its
// session context, releasing the sandbox, image registry and event buffer.
func releaseOnClose(ss *mcp.ServerSession, sessionMgr *session.Manager, logger *slog.Logger) {
	_ = ss.Wait()

	id := ss.ID()
	if sessionMgr.GetSession(id) == nil {
		return
	}
	if err := sessionMgr.DeleteSession(id); err != nil {
		logger.Warn("failed to release session", "session", id, "error", err)
		return
	}
	logger.Debug("session released", "session", id)
}

// SandboxFactory returns a session.SandboxFactory running the given JS runtime plugin.
func SandboxFactory(wasm []byte, moduleURL string, opts sandbox.Options) session.SandboxFactory {
	return func(ctx context.Context, sc *session.Context) (*sandbox.Sandbox, error) {
		o := opts
		o.Registry = sc.Images
		o.Console = sc.Console
		o.Sink = sc.Record
		// the sandbox outlives the request that created it
		return sandbox.New(context.WithoutCancel(ctx), wasm, moduleURL, o)
	}
}

func textResult(text string) *mcp.CallToolResult {
	return &mcp.CallToolResult{
		Content: []mcp.Content{
			&mcp.TextContent{Text: text},
		},
	}
}

func jsonResult(v any) (*mcp.CallToolResult, any, error) {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return nil, nil, fmt.Errorf("failed to marshal result: %w", err)
	}
	return textResult(string(data)), nil, nil
}
