package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	mcpadapter "github.com/corpusqa/corpusqa/internal/adapters/mcp"
	"github.com/corpusqa/corpusqa/internal/bootstrap"
	"github.com/corpusqa/corpusqa/internal/config"
	"github.com/corpusqa/corpusqa/internal/observability/logging"
)

func main() {
	cfg := config.Load()
	// Stdout carries the MCP protocol stream; logs must stay off it.
	logger := logging.NewJSONLoggerTo(os.Stderr, "mcp", cfg.LogLevel)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	app, err := bootstrap.New(ctx, cfg, "mcp", logger)
	if err != nil {
		log.Fatalf("bootstrap error: %v", err)
	}
	defer app.Close()

	logger.Info("mcp server on stdio", "tools", "ask, search")
	srv := mcpadapter.NewServer(app.AskService, app.Searcher, logger)
	if err := srv.Serve(); err != nil {
		log.Fatalf("mcp serve error: %v", err)
	}
}
