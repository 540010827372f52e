package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog/log"

	"github.com/elys-network/crabfarm/internal/chain"
	"github.com/elys-network/crabfarm/internal/config"
	"github.com/elys-network/crabfarm/internal/farm"
	"github.com/elys-network/crabfarm/internal/feedist"
	"github.com/elys-network/crabfarm/internal/logger"
	"github.com/elys-network/crabfarm/internal/scheduler"
	"github.com/elys-network/crabfarm/internal/state"
	"github.com/elys-network/crabfarm/internal/strategy"
	"github.com/elys-network/crabfarm/internal/token"
	"github.com/elys-network/crabfarm/internal/web"
)

const shutdownTimeout = 10 * time.Second

// main is the entry point for the farm service.
func main() {
	// --- 1. Initialization Phase ---
	if err := godotenv.Load(); err != nil {
		log.Warn().Msg("Warning: .env file not found. Relying on OS environment variables.")
	}

	// Load configuration from environment variables
	if err := config.LoadConfig(); err != nil {
		log.Fatal().Err(err).Msg("Failed to load configuration")
	}

	logger.Initialize(config.LogLevel, config.LogFormat)
	log.Info().Msg("Crabfarm starting...")

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	store, err := openStore()
	if err != nil {
		log.Fatal().Err(err).Str("backend", config.StoreBackend).Msg("Failed to open store")
	}
	defer store.Close()

	var boot *config.Bootstrap
	if config.PoolsFile != "" {
		if boot, err = config.LoadBootstrap(config.PoolsFile); err != nil {
			log.Fatal().Err(err).Msg("Failed to load pool bootstrap file")
		}
	}

	// --- 2. Collaborators ---
	genesis, err := resumeHeight(ctx, store)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to read persisted pools")
	}
	clock := chain.NewBlockClock(clockwork.NewRealClock(), config.BlockTime, genesis)
	bank := token.NewMemBank()

	strategies := strategy.NewDirectory()
	exchange := feedist.NewRateExchange(bank)
	if boot != nil {
		if err := registerStrategies(boot, strategies, bank); err != nil {
			log.Fatal().Err(err).Msg("Failed to register strategies")
		}
		if err := setRates(boot, exchange); err != nil {
			log.Fatal().Err(err).Msg("Failed to configure exchange rates")
		}
	}

	// --- 3. Engine ---
	engine, err := farm.NewEngine(farm.Config{
		Bank:           bank,
		Clock:          clock,
		Store:          store,
		Strategies:     strategies,
		VaultAddress:   config.VaultAddress,
		Owner:          config.Owner,
		DevAddress:     config.DevAddress,
		FeeAddress:     config.FeeAddress,
		RewardDenom:    config.RewardDenom,
		RewardPerBlock: config.RewardPerBlock,
		StartBlock:     config.StartBlock,
	})
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to create farm engine")
	}
	if err := engine.Restore(ctx); err != nil {
		log.Fatal().Err(err).Msg("Failed to restore farm state")
	}
	if boot != nil {
		if err := bootstrapPools(ctx, engine, bank, boot); err != nil {
			log.Fatal().Err(err).Msg("Failed to bootstrap pools")
		}
	}

	distributor, err := feedist.NewDistributor(feedist.Config{
		Bank:        bank,
		Exchange:    exchange,
		Ledger:      engine,
		Notifier:    feedist.LogNotifier{},
		Account:     config.FeeAddress,
		Recipient:   config.VaultAddress,
		RewardDenom: config.RewardDenom,
	})
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to create fee distributor")
	}

	// --- 4. Background jobs and web server ---
	sched := scheduler.NewScheduler(ctx, engine, store)
	if err := sched.RegisterSnapshots(config.SnapshotSchedule); err != nil {
		log.Fatal().Err(err).Msg("Failed to schedule snapshots")
	}
	sched.Start()

	webPort := strconv.Itoa(config.WebPort)
	webServer := web.NewWebServer(webPort, engine, store, distributor)
	go func() {
		log.Info().Str("port", webPort).Str("url", "http://localhost:"+webPort).Msg("Starting farm web server")
		if err := webServer.Start(); err != nil {
			log.Error().Err(err).Msg("Web server failed")
			stop()
		}
	}()

	<-ctx.Done()
	log.Info().Msg("Shutting down...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := webServer.Shutdown(shutdownCtx); err != nil && !errors.Is(err, context.DeadlineExceeded) {
		log.Error().Err(err).Msg("Web server shutdown failed")
	}
	sched.Stop()
	log.Info().Msg("Crabfarm stopped")
}

func openStore() (state.Store, error) {
	switch config.StoreBackend {
	case config.BackendPostgres:
		return state.OpenPostgres(config.DB)
	default:
		return state.OpenLevelStore(config.LevelDBPath)
	}
}
