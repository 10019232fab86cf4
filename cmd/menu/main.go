// Package main imports a YAML menu tree into the database.
package main

import (
	"context"
	"flag"
	"log"
	"os"
	"os/signal"
	"syscall"

	menucmd "github.com/louisbranch/oilandrope/internal/cmd/menu"
	"github.com/louisbranch/oilandrope/internal/platform/config"
)

func main() {
	cfg, err := menucmd.ParseConfig(flag.CommandLine, os.Args[1:])
	if err != nil {
		config.Exitf("parse flags: %v", err)
	}
	log.SetPrefix("[MENU] ")

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := menucmd.Run(ctx, cfg); err != nil {
		log.Fatalf("failed to import menus: %v", err)
	}
}
