package main

import (
	"context"
	"flag"
	"log"
	"os/signal"
	"syscall"

	"snakearena/internal/app"
)

func main() {
	configPath := flag.String("config", "", "path to a JSON config file (optional)")
	flag.Parse()

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if err := app.Run(ctx, app.Options{ConfigPath: *configPath}); err != nil {
		log.Fatalf("%v", err)
	}
}
