package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/spf13/cobra"

	"github.com/yousuf/tracecanon/internal/config"
	"github.com/yousuf/tracecanon/internal/sandbox"
	"github.com/yousuf/tracecanon/internal/server"
	"github.com/yousuf/tracecanon/internal/session"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the normalization tools over streamable HTTP MCP",
	Args:  cobra.NoArgs,
	RunE:  runServe,
}

func init() {
	serveCmd.Flags().String("listen", "", "override the configured listen address")
}

func runServe(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	if listen, _ := cmd.Flags().GetString("listen"); listen != "" {
		cfg.Listen = listen
	}

	logger, closer, err := newLogger(cfg)
	if err != nil {
		return err
	}
	defer closer.Close()

	factory, err := sandboxFactory(cfg, logger)
	if err != nil {
		return err
	}
	if factory == nil {
		logger.Warn("no sandbox plugin configured, run_script is disabled")
	}

	sessionMgr := session.NewManager(cfg.Console.Levels, factory)
	mcpServer := server.NewMcpServer(sessionMgr, logger)

	httpServer := &http.Server{
		Addr:         cfg.Listen,
		Handler:      newHTTPHandler(mcpServer),
		ReadTimeout:  30 * time.Second,
		WriteTimeout: cfg.Sandbox.TimeoutDuration() + 30*time.Second,
		IdleTimeout:  120 * time.Second,
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 1)
	go func() {
		logger.Info("tracecanon MCP server listening", "addr", cfg.Listen)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("server failed: %w", err)
		}
	case <-ctx.Done():
	}

	logger.Info("shutting down server")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logger.Error("server shutdown failed", "error", err)
	}
	if err := sessionMgr.CloseAll(); err != nil {
		logger.Error("failed to close sessions", "error", err)
	}

	logger.Info("server stopped")
	return nil
}

// newHTTPHandler serves mcpServer over streamable HTTP. Sessions are tracked by the SDK.
func newHTTPHandler(mcpServer *mcp.Server) http.Handler {
	return mcp.NewStreamableHTTPHandler(func(req *http.Request) *mcp.Server {
		return mcpServer
	}, nil)
}

// sandboxFactory loads the configured JS runtime plugin. It returns nil when none is configured.
func sandboxFactory(cfg *config.Config, logger *slog.Logger) (session.SandboxFactory, error) {
	if cfg.Sandbox.PluginPath == "" {
		return nil, nil
	}
	wasm, err := os.ReadFile(cfg.Sandbox.PluginPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read sandbox plugin: %w", err)
	}

	moduleURL := cfg.Sandbox.PluginURL
	if moduleURL == "" {
		abs, err := filepath.Abs(cfg.Sandbox.PluginPath)
		if err != nil {
			return nil, fmt.Errorf("failed to resolve sandbox plugin path: %w", err)
		}
		moduleURL = (&url.URL{Scheme: "file", Path: filepath.ToSlash(abs)}).String()
	}

	return server.SandboxFactory(wasm, moduleURL, sandbox.Options{
		Entrypoint: cfg.Sandbox.Entrypoint,
		Timeout:    cfg.Sandbox.TimeoutDuration(),
		Logger:     logger.With("component", "sandbox"),
	}), nil
}
