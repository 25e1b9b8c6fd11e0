package main

import (
	"log"

	"github.com/joho/godotenv"
	"pharmabot/cmd"
	"pharmabot/internal/config"
	"pharmabot/internal/logger"
)

func main() {
	// Load environment variables
	if err := godotenv.Load(); err != nil {
		log.Printf("Warning: Could not load .env file: %v", err)
	}

	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Invalid configuration: %v", err)
	}

	// Initialize logger with configuration
	if err := logger.Setup(cfg.GetLoggerConfig()); err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}

	log := logger.WithComponent("main")
	log.Debug().Msg("Starting Pharmabot")

	// Execute CLI commands
	cmd.Execute(cfg)

	log.Debug().Msg("Pharmabot shutdown")
}
