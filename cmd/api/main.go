package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"pollcast/internal/app/bootstrap"
)

// API process entrypoint.
// Data flow:
// 1) Load config.
// 2) Build app wiring (store backend + tally engine + HTTP surface).
// 3) Serve until SIGINT/SIGTERM, then drain sessions.
func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	app, err := bootstrap.BuildAPI(ctx)
	if err != nil {
		log.Fatalf("bootstrap api failed: %v", err)
	}
	defer func() {
		if err := app.Close(); err != nil {
			log.Printf("api shutdown close failed: %v", err)
		}
	}()

	if err := app.Run(ctx); err != nil {
		log.Printf("pollcast api stopped with error: %v", err)
		os.Exit(1)
	}
}
