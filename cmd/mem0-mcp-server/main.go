package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/rs/zerolog/log"

	"github.com/51302890/mcp-mem0/mcp"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := mcp.RunMCPServer(ctx); err != nil {
		log.Error().Err(err).Msg("MCP server exited with error")
		stop()
		os.Exit(1)
	}
}
