package main

import (
	"log"

	"maildns/internal/bootstrap"
	"maildns/pkg/config"

	"github.com/mark3labs/mcp-go/server"
)

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	app, err := bootstrap.New(cfg)
	if err != nil {
		log.Fatalf("Failed to initialize: %v", err)
	}

	// Create MCP server with tool capabilities enabled
	s := server.NewMCPServer(
		"maildns",
		"1.0.0",
		server.WithLogging(),
		server.WithToolCapabilities(true),
	)
	registerTools(s, app.Usecase)

	// Start server (stdio only)
	log.Println("Starting MCP stdio server...")
	if err := server.ServeStdio(s); err != nil {
		log.Fatalf("Server error: %v", err)
	}
}
