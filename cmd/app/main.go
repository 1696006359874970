package main

import (
	"flag"
	"log"
	"os"
	"strings"

	"Screener/internal/di"
	"Screener/pkg/config"
)

func main() {
	configPath := flag.String("config", "config/config.yaml", "config file path")
	checkOnly := flag.Bool("check-config", false, "load and validate the config, then exit")
	flag.Parse()

	cfg, err := config.LoadWithEnv(*configPath)
	if err != nil {
		log.Fatalf("config load failed: %v", err)
	}

	names := make([]string, 0, len(cfg.Universes))
	for _, u := range cfg.Universes {
		names = append(names, u.Name)
	}
	log.Printf("env=%s store=%s universes=[%s] redis=%t kafka=%t",
		cfg.Environment, cfg.Store.Type, strings.Join(names, ","), cfg.Redis.Enabled, cfg.Kafka.Enabled)
	if *checkOnly {
		return
	}

	app, err := di.InitializeApp(cfg)
	if err != nil {
		log.Fatalf("app initialization failed: %v", err)
	}

	// blocks until SIGINT/SIGTERM
	if err := app.Run(); err != nil {
		log.Printf("app error: %v", err)
		os.Exit(1)
	}
}
