package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/standardbeagle/seqmap/internal/debug"
	"github.com/standardbeagle/seqmap/internal/mcp"

	"github.com/urfave/cli/v2"
)

func serveCommand(c *cli.Context) error {
	// Enable MCP mode to suppress all debug output; stdout belongs to
	// the JSON-RPC transport from here on
	debug.SetMCPMode(true)

	cfg, err := loadConfigWithOverrides(c)
	if err != nil {
		return debug.Fatal("failed to load config: %v\n", err)
	}

	// The server owns its own text store; tools load and apply on demand
	mcpServer, err := mcp.NewServer(nil, cfg)
	if err != nil {
		return debug.Fatal("failed to create MCP server: %v\n", err)
	}
	defer mcpServer.Close()

	// Create context with cancellation for graceful shutdown
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Set up signal handling for graceful shutdown
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigChan)

	// Start MCP server in a goroutine
	errChan := make(chan error, 1)
	go func() {
		debug.LogMCP("Starting MCP server with stdio transport...\n")
		errChan <- mcpServer.Start(ctx)
	}()

	// Wait for either server error or shutdown signal
	select {
	case err := <-errChan:
		if err != nil {
			return debug.Fatal("MCP server error: %v\n", err)
		}
		return nil
	case sig := <-sigChan:
		debug.LogMCP("Received signal %v, shutting down gracefully...\n", sig)
		cancel()

		// Give the server a moment to shutdown gracefully
		shutdownTimer := time.NewTimer(2 * time.Second)
		defer shutdownTimer.Stop()

		select {
		case err := <-errChan:
			debug.LogMCP("Server shutdown completed\n")
			return err
		case <-shutdownTimer.C:
			debug.LogMCP("Graceful shutdown timeout, forcing exit\n")
			// Force close stdin to break the stdio transport loop
			os.Stdin.Close()

			// Give it one more brief moment after closing stdin
			forceTimer := time.NewTimer(500 * time.Millisecond)
			defer forceTimer.Stop()

			select {
			case err := <-errChan:
				debug.LogMCP("Server shutdown completed after stdin close\n")
				return err
			case <-forceTimer.C:
				debug.LogMCP("Force shutdown timeout exceeded\n")
				shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
				defer shutdownCancel()
				_ = mcpServer.Shutdown(shutdownCtx)
				return nil // Exit cleanly rather than error
			}
		}
	}
}
