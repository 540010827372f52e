package main

import (
	"context"
	"os"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog/log"

	"github.com/elys-network/crabfarm/internal/config"
	"github.com/elys-network/crabfarm/internal/logger"
	"github.com/elys-network/crabfarm/internal/state"
)

func main() {
	// Initialize logger
	logLevel := os.Getenv("LOG_LEVEL")
	if logLevel == "" {
		logLevel = "info"
	}
	logger.Initialize(logLevel, os.Getenv("LOG_FORMAT"))
	log.Info().Msg("Starting store reset script...")

	// Load environment variables from .env file
	if err := godotenv.Load(); err != nil {
		log.Warn().Msg("Warning: .env file not found or error loading .env file. Relying on OS environment variables.")
	}

	if err := config.LoadEndpointConfig(); err != nil {
		log.Fatal().Err(err).Msg("Failed to load store configuration")
	}

	switch config.StoreBackend {
	case config.BackendPostgres:
		log.Info().
			Str("host", config.DB.Host).
			Int("port", config.DB.Port).
			Str("user", config.DB.User).
			Str("dbname", config.DB.DBName).
			Msg("Connecting to database")

		store, err := state.OpenPostgres(config.DB)
		if err != nil {
			log.Fatal().Err(err).Msg("Failed to initialize database connection")
		}
		defer store.Close()

		log.Info().Msg("Connected to database. Attempting to drop all tables...")
		if err := store.Reset(context.Background()); err != nil {
			log.Fatal().Err(err).Msg("Failed to reset database")
		}
		log.Info().Msg("Database schema successfully recreated")

	default:
		log.Info().Str("path", config.LevelDBPath).Msg("Removing LevelDB store...")
		if err := os.RemoveAll(config.LevelDBPath); err != nil {
			log.Fatal().Err(err).Msg("Failed to remove LevelDB store")
		}
	}

	log.Info().Msg("Store reset complete!")
}
