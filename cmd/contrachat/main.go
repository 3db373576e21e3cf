package main

import (
	"flag"
	"fmt"
	"os"

	"ContraChat/internal/app"
	"ContraChat/internal/config"
)

func main() {
	cfg := config.Default()
	var configFile string

	flag.StringVar(&configFile, "config", "", "Path to TOML config file")
	flag.StringVar(&cfg.Endpoint, "endpoint", cfg.Endpoint, "Agent endpoint URL")
	flag.StringVar(&cfg.DBPath, "db", cfg.DBPath, "Path to the SQLite database")
	flag.StringVar(&cfg.LogDir, "log-dir", cfg.LogDir, "Directory for log files")
	flag.StringVar(&cfg.CacheDir, "cache-dir", cfg.CacheDir, "Directory for the active-conversation cache")
	flag.StringVar(&cfg.ConversationID, "conversation-id", "", "Continue an existing conversation by ID")
	flag.StringVar(&cfg.InitialMessage, "message", "", "Send this message on startup")
	flag.BoolVar(&cfg.Resume, "resume", false, "Restore the cached active conversation")
	flag.BoolVar(&cfg.Debug, "debug", false, "Enable debug logging")

	flag.Parse()

	if configFile != "" {
		if err := config.LoadFile(configFile, &cfg); err != nil {
			fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
			os.Exit(1)
		}
		// Flags win over file values.
		flag.Parse()
	}

	a, err := app.New(cfg)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize: %v\n", err)
		os.Exit(1)
	}

	if err := a.Run(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
