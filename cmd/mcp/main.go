// Package main starts the MCP server on stdio or HTTP.
package main

import (
	"context"
	"flag"
	"log"
	"os"
	"os/signal"
	"syscall"

	mcpcmd "github.com/louisbranch/oilandrope/internal/cmd/mcp"
	"github.com/louisbranch/oilandrope/internal/platform/config"
)

func main() {
	cfg, err := mcpcmd.ParseConfig(flag.CommandLine, os.Args[1:])
	if err != nil {
		config.Exitf("parse flags: %v", err)
	}
	log.SetPrefix("[MCP] ")

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := mcpcmd.Run(ctx, cfg); err != nil {
		log.Fatalf("failed to serve MCP: %v", err)
	}
}
