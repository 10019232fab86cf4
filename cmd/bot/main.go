// Package main connects the Discord bot and runs until interrupted or shut
// down by an owner.
package main

import (
	"context"
	"flag"
	"log"
	"os"
	"os/signal"
	"syscall"

	botcmd "github.com/louisbranch/oilandrope/internal/cmd/bot"
	"github.com/louisbranch/oilandrope/internal/platform/config"
)

func main() {
	cfg, err := botcmd.ParseConfig(flag.CommandLine, os.Args[1:])
	if err != nil {
		config.Exitf("parse flags: %v", err)
	}
	log.SetPrefix("[BOT] ")

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := botcmd.Run(ctx, cfg); err != nil {
		log.Fatalf("failed to run bot: %v", err)
	}
}
