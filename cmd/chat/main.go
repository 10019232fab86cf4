// Package main starts the chat WebSocket relay and handles termination.
package main

import (
	"context"
	"flag"
	"log"
	"os"
	"os/signal"
	"syscall"

	chatcmd "github.com/louisbranch/oilandrope/internal/cmd/chat"
	"github.com/louisbranch/oilandrope/internal/platform/config"
)

func main() {
	cfg, err := chatcmd.ParseConfig(flag.CommandLine, os.Args[1:])
	if err != nil {
		config.Exitf("parse flags: %v", err)
	}
	log.SetPrefix("[CHAT] ")

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := chatcmd.Run(ctx, cfg); err != nil {
		log.Fatalf("failed to serve: %v", err)
	}
}
