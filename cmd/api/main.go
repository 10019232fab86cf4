// Package main starts the REST API with the bot-check socket and metrics.
package main

import (
	"context"
	"flag"
	"log"
	"os"
	"os/signal"
	"syscall"

	apicmd "github.com/louisbranch/oilandrope/internal/cmd/api"
	"github.com/louisbranch/oilandrope/internal/platform/config"
)

func main() {
	cfg, err := apicmd.ParseConfig(flag.CommandLine, os.Args[1:])
	if err != nil {
		config.Exitf("parse flags: %v", err)
	}
	log.SetPrefix("[API] ")

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := apicmd.Run(ctx, cfg); err != nil {
		log.Fatalf("failed to serve: %v", err)
	}
}
