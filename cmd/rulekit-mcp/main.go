// Package main provides the rulekit-mcp binary: an MCP server for AI agents.
package main

import (
	"fmt"
	"os"

	"github.com/mark3labs/mcp-go/server"

	"github.com/ormasoftchile/rulekit/pkg/config"
	rmcp "github.com/ormasoftchile/rulekit/pkg/ecosystem/mcp"
	"github.com/ormasoftchile/rulekit/pkg/logging"
	"github.com/ormasoftchile/rulekit/pkg/session"
)

var version = "dev"

func main() {
	s, err := config.Load(os.Getenv("RULEKIT_CONFIG"))
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	// stdout carries the protocol; logs go to stderr or the configured file.
	log, err := logging.New(s.Logging())
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	defer log.Sync()

	srv := rmcp.NewServer(version, session.Options{Settings: s, Log: log})
	log.Infow("serving MCP over stdio", "version", version)
	if err := server.ServeStdio(srv); err != nil {
		log.Errorw("server stopped", "error", err)
		os.Exit(1)
	}
}
