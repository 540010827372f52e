package config

import (
	"errors"
	"strconv"

	"github.com/rs/zerolog/log"

	"github.com/elys-network/crabfarm/internal/state"
)

// Storage and listener configuration loaded from environment variables.
// These are populated at startup by the LoadConfig function.
var (
	// StoreBackend selects the persistence layer: "leveldb" or "postgres".
	StoreBackend string
	// LevelDBPath is the directory of the embedded store.
	LevelDBPath string
	// DB holds the PostgreSQL connection parameters.
	DB state.DBConfig

	// WebPort is the HTTP listen port.
	WebPort int
	// SnapshotSchedule is the cron spec of the pool snapshot job.
	SnapshotSchedule string
)

// LoadEndpointConfig loads storage and listener configuration from environment variables.
// It is called by LoadConfig() in General.go and on its own by tools that only touch the store.
func LoadEndpointConfig() error {
	log.Info().Msg("Loading endpoint configuration from environment variables...")

	var err error

	StoreBackend = getEnvOrDefault("STORE_BACKEND", BackendLevelDB)
	switch StoreBackend {
	case BackendLevelDB:
		LevelDBPath = expandHome(getEnvOrDefault("LEVELDB_PATH", "~/.crabfarm/data"))
	case BackendPostgres:
		DB = state.DBConfig{
			Host:     getEnvOrDefault("DB_HOST", "localhost"),
			User:     getEnvOrDefault("DB_USER", "postgres"),
			Password: getEnvOrDefault("DB_PASSWORD", ""),
			DBName:   getEnvOrDefault("DB_NAME", "crabfarm"),
			SSLMode:  getEnvOrDefault("DB_SSLMODE", "disable"),
		}
		DB.Port, err = getEnvAsPort("DB_PORT", 5432)
		if err != nil {
			return err
		}
	default:
		return errors.New("environment variable STORE_BACKEND must be leveldb or postgres, got: " + StoreBackend)
	}

	WebPort, err = getEnvAsPort("WEB_PORT", 8080)
	if err != nil {
		return err
	}

	SnapshotSchedule = getEnvOrDefault("SNAPSHOT_SCHEDULE", DefaultSnapshotSchedule)

	log.Debug().
		Str("StoreBackend", StoreBackend).
		Str("LevelDBPath", LevelDBPath).
		Str("DBHost", DB.Host).
		Int("WebPort", WebPort).
		Str("SnapshotSchedule", SnapshotSchedule).
		Msg("Endpoint configuration loaded successfully.")

	return nil
}

func getEnvAsPort(key string, fallback int) (int, error) {
	valueStr := getEnvOrDefault(key, "")
	if valueStr == "" {
		return fallback, nil
	}
	value, err := strconv.Atoi(valueStr)
	if err != nil || value <= 0 || value > 65535 {
		return 0, errors.New("environment variable " + key + " must be a valid port, got: " + valueStr)
	}
	return value, nil
}
