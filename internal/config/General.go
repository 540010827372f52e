package config

import (
	"errors"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	sdkmath "cosmossdk.io/math"
	"github.com/rs/zerolog/log"

	"github.com/elys-network/crabfarm/internal/utils"
)

// AppConfig holds all application configuration loaded from environment variables.
// These are populated at startup by the LoadConfig function.
var (
	// Owner is the identity allowed to call admin operations.
	Owner string
	// DevAddress receives the protocol share of every emission.
	DevAddress string
	// FeeAddress receives deposit fees.
	FeeAddress string
	// VaultAddress is the engine's own custody account.
	VaultAddress string

	// RewardDenom is the denom the farm mints as reward.
	RewardDenom string
	// RewardPerBlock is the emission rate in reward base units per block.
	RewardPerBlock sdkmath.Int
	// StartBlock is the first block that earns rewards.
	StartBlock uint64
	// BlockTime is the wall-clock length of one block.
	BlockTime time.Duration

	// PoolsFile is an optional YAML bootstrap of pools and strategies.
	PoolsFile string

	// LogLevel and LogFormat configure the global logger.
	LogLevel  string
	LogFormat string
)

// LoadConfig loads configuration from environment variables and sets the global config vars.
// FARM_OWNER, FARM_DEV_ADDRESS and FARM_FEE_ADDRESS are required; everything else has a default.
func LoadConfig() error {
	log.Info().Msg("Loading application configuration from environment variables...")

	var err error

	Owner, err = getEnv("FARM_OWNER")
	if err != nil {
		return err
	}

	DevAddress, err = getEnv("FARM_DEV_ADDRESS")
	if err != nil {
		return err
	}

	FeeAddress, err = getEnv("FARM_FEE_ADDRESS")
	if err != nil {
		return err
	}

	VaultAddress = getEnvOrDefault("FARM_VAULT_ADDRESS", DefaultVaultAddress)
	RewardDenom = getEnvOrDefault("FARM_REWARD_DENOM", DefaultRewardDenom)

	RewardPerBlock, err = getEnvAsInt("FARM_REWARD_PER_BLOCK", DefaultRewardPerBlock)
	if err != nil {
		return err
	}

	StartBlock, err = getEnvAsUint64OrDefault("FARM_START_BLOCK", 0)
	if err != nil {
		return err
	}

	BlockTime, err = getEnvAsDuration("FARM_BLOCK_TIME", DefaultBlockTime)
	if err != nil {
		return err
	}
	if BlockTime <= 0 {
		return errors.New("environment variable FARM_BLOCK_TIME must be positive")
	}

	PoolsFile = expandHome(getEnvOrDefault("FARM_POOLS_FILE", ""))
	LogLevel = getEnvOrDefault("LOG_LEVEL", "info")
	LogFormat = getEnvOrDefault("LOG_FORMAT", "console")

	// Load storage and endpoint configuration
	if err := LoadEndpointConfig(); err != nil {
		return err
	}

	log.Debug().
		Str("Owner", Owner).
		Str("RewardDenom", RewardDenom).
		Str("RewardPerBlock", RewardPerBlock.String()).
		Uint64("StartBlock", StartBlock).
		Dur("BlockTime", BlockTime).
		Msg("Configuration loaded successfully.")

	return nil
}

// getEnv retrieves a string environment variable. Returns error if not set.
func getEnv(key string) (string, error) {
	if value, exists := os.LookupEnv(key); exists && value != "" {
		return value, nil
	}
	return "", errors.New("environment variable " + key + " is required but not set")
}

// getEnvOrDefault retrieves a string environment variable, falling back when unset or empty.
func getEnvOrDefault(key, fallback string) string {
	if value, exists := os.LookupEnv(key); exists && value != "" {
		return value
	}
	return fallback
}

// getEnvAsUint64OrDefault retrieves an environment variable as a uint64. Returns error if set but invalid.
func getEnvAsUint64OrDefault(key string, fallback uint64) (uint64, error) {
	valueStr := getEnvOrDefault(key, "")
	if valueStr == "" {
		return fallback, nil
	}
	value, err := strconv.ParseUint(valueStr, 10, 64)
	if err != nil {
		return 0, errors.New("environment variable " + key + " must be a valid uint64, got: " + valueStr)
	}
	return value, nil
}

// getEnvAsInt retrieves a non-negative base-unit amount.
func getEnvAsInt(key string, fallback sdkmath.Int) (sdkmath.Int, error) {
	valueStr := getEnvOrDefault(key, "")
	if valueStr == "" {
		return fallback, nil
	}
	value, err := utils.ParseAmount(valueStr)
	if err != nil {
		return sdkmath.Int{}, errors.New("environment variable " + key + " must be a non-negative integer, got: " + valueStr)
	}
	return value, nil
}

// getEnvAsDuration retrieves a Go duration such as "3s" or "10m".
func getEnvAsDuration(key string, fallback time.Duration) (time.Duration, error) {
	valueStr := getEnvOrDefault(key, "")
	if valueStr == "" {
		return fallback, nil
	}
	value, err := time.ParseDuration(valueStr)
	if err != nil {
		return 0, errors.New("environment variable " + key + " must be a valid duration, got: " + valueStr)
	}
	return value, nil
}

// expandHome expands a leading tilde to the user's home directory.
func expandHome(path string) string {
	if !strings.HasPrefix(path, "~/") {
		return path
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return path
	}
	return filepath.Join(home, path[2:])
}
