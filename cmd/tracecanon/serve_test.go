package main

import (
	"context"
	"encoding/json"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yousuf/tracecanon/internal/config"
	"github.com/yousuf/tracecanon/internal/logging"
	"github.com/yousuf/tracecanon/internal/server"
	"github.com/yousuf/tracecanon/internal/session"
	"github.com/yousuf/tracecanon/internal/tracekit"
)

func TestServeOverHTTP(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	sessionMgr := session.NewManager(nil, nil)
	defer sessionMgr.CloseAll()

	ts := httptest.NewServer(newHTTPHandler(server.NewMcpServer(sessionMgr, logging.Discard())))
	defer ts.Close()

	client := mcp.NewClient(&mcp.Implementation{
		Name:    "tracecanon-test-client",
		Version: "1.0.0",
	}, &mcp.ClientOptions{})

	transport := &mcp.StreamableClientTransport{Endpoint: ts.URL}
	cs, err := client.Connect(ctx, transport, &mcp.ClientSessionOptions{})
	require.NoError(t, err)
	defer cs.Close()
	assert.NotEmpty(t, cs.ID())

	tools, err := cs.ListTools(ctx, &mcp.ListToolsParams{})
	require.NoError(t, err)
	assert.Len(t, tools.Tools, 6)

	res, err := cs.CallTool(ctx, &mcp.CallToolParams{
		Name: "normalize_stack",
		Arguments: map[string]any{
			"error": map[string]any{
				"name":    "ReferenceError",
				"message": "x is not defined",
				"stack":   "foo@http://a/b.js:3:7\n@http://a/b.js:9:1",
			},
		},
	})
	require.NoError(t, err)
	require.False(t, res.IsError)

	var st tracekit.StackTrace
	require.NoError(t, json.Unmarshal([]byte(res.Content[0].(*mcp.TextContent).Text), &st))
	assert.Equal(t, []tracekit.Frame{
		{Filename: "http://a/b.js", Function: "foo", Lineno: 3, Colno: 7},
		{Filename: "http://a/b.js", Function: "?", Lineno: 9, Colno: 1},
	}, st.Stack)

	// the HTTP session maps onto one tracecanon session
	assert.NotNil(t, sessionMgr.GetSession(cs.ID()))
}

func TestSandboxFactoryWithoutPlugin(t *testing.T) {
	factory, err := sandboxFactory(config.Default(), logging.Discard())
	require.NoError(t, err)
	assert.Nil(t, factory)

	cfg := config.Default()
	cfg.Sandbox.PluginPath = "does-not-exist.wasm"
	_, err = sandboxFactory(cfg, logging.Discard())
	assert.ErrorContains(t, err, "failed to read sandbox plugin")
}
