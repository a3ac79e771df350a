package main

import (
	"context"
	"flag"
	"log"
	"os"
	"os/signal"
	"syscall"

	"ubipos/internal/config"
)

func main() {
	var configPath string
	var summaryPath string
	flag.StringVar(&configPath, "config", "./pdr.yaml", "Path to YAML config")
	flag.StringVar(&summaryPath, "summary", "", "Print a summary of a sensor log and exit")
	flag.Parse()

	if summaryPath != "" {
		if err := printLogSummary(summaryPath); err != nil {
			log.Fatalf("log summary failed: %v", err)
		}
		return
	}

	cfg, err := config.Load(configPath)
	if err != nil {
		log.Fatalf("config load failed: %v", err)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	rt, err := newRuntime(cfg)
	if err != nil {
		log.Fatalf("runtime init failed: %v", err)
	}
	defer rt.Close()

	log.Printf("pdr-replay starting session=%s input=%s", rt.session, cfg.Input.Mode)

	if err := rt.Run(ctx); err != nil && ctx.Err() == nil {
		log.Fatalf("run failed: %v", err)
	}

	rt.logStats()
	if err := rt.Finish(); err != nil {
		log.Printf("finish failed: %v", err)
	}
	log.Printf("pdr-replay stopping")
}
