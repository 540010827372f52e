package main

import (
	"context"
	"fmt"

	"github.com/rs/zerolog/log"

	"github.com/elys-network/crabfarm/internal/config"
	"github.com/elys-network/crabfarm/internal/farm"
	"github.com/elys-network/crabfarm/internal/feedist"
	"github.com/elys-network/crabfarm/internal/state"
	"github.com/elys-network/crabfarm/internal/strategy"
	"github.com/elys-network/crabfarm/internal/token"
)

// resumeHeight is the block the clock restarts from so heights never go backwards across restarts.
// A lastRewardBlock parked at the start block is a future height and does not count.
func resumeHeight(ctx context.Context, store state.Store) (uint64, error) {
	var height uint64
	events, err := store.RecentEvents(ctx, 1)
	if err != nil {
		return 0, err
	}
	if len(events) > 0 {
		height = events[0].Block
	}
	params, err := store.LoadParams(ctx)
	if err != nil {
		return 0, err
	}
	pools, err := store.LoadPools(ctx)
	if err != nil {
		return 0, err
	}
	for _, p := range pools {
		if params != nil && p.LastRewardBlock == params.StartBlock {
			continue
		}
		if p.LastRewardBlock > height {
			height = p.LastRewardBlock
		}
	}
	log.Info().Uint64("height", height).Msg("Block clock resumes")
	return height, nil
}

func registerStrategies(boot *config.Bootstrap, dir *strategy.Directory, bank strategy.LendingBank) error {
	for _, s := range boot.Strategies {
		l, err := strategy.NewLending(strategy.LendingConfig{
			Name:       s.Name,
			Underlying: s.Underlying,
			Account:    orDefault(s.Account, s.Name+"-account"),
			Market:     orDefault(s.Market, s.Name+"-market"),
			Vault:      config.VaultAddress,
			SlippageBP: s.SlippageBP,
		}, bank)
		if err != nil {
			return fmt.Errorf("strategy %s: %w", s.Name, err)
		}
		if err := dir.Register(l); err != nil {
			return err
		}
	}
	return nil
}

func setRates(boot *config.Bootstrap, x *feedist.RateExchange) error {
	for _, r := range boot.ExchangeRates {
		rate, err := r.Dec()
		if err != nil {
			return err
		}
		if err := x.SetRate(r.In, r.Out, rate); err != nil {
			return err
		}
	}
	return nil
}

// bootstrapPools seeds balances and pools on a fresh registry and queues their strategies.
func bootstrapPools(ctx context.Context, engine *farm.Engine, bank *token.MemBank, boot *config.Bootstrap) error {
	n, err := engine.PoolLength(ctx)
	if err != nil {
		return err
	}
	if n > 0 {
		log.Info().Int("pools", n).Msg("Registry already populated, skipping pool bootstrap")
		return nil
	}

	err = engine.Atomic(ctx, "seed_balances", func(ctx context.Context) error {
		for _, b := range boot.Balances {
			coin, err := b.Coin()
			if err != nil {
				return err
			}
			if err := token.SafeMint(ctx, bank, b.Owner, coin); err != nil {
				return fmt.Errorf("seed balance of %s: %w", b.Owner, err)
			}
		}
		return nil
	})
	if err != nil {
		return err
	}

	for _, ps := range boot.Pools {
		unit, err := ps.Unit()
		if err != nil {
			return err
		}
		pid, err := engine.AddPool(ctx, config.Owner, farm.PoolConfig{
			LPToken:        ps.LPToken,
			AllocPoint:     ps.AllocPoint,
			DepositFeeBP:   ps.DepositFeeBP,
			UnderlyingUnit: unit,
		}, false)
		if err != nil {
			return fmt.Errorf("add pool %s: %w", ps.LPToken, err)
		}
		if ps.Strategy == "" {
			continue
		}
		if err := engine.QueueStrategy(ctx, config.Owner, pid, ps.Strategy); err != nil {
			return fmt.Errorf("queue strategy %s for pool %d: %w", ps.Strategy, pid, err)
		}
		log.Info().
			Uint64("pool_id", uint64(pid)).
			Str("strategy", ps.Strategy).
			Dur("timelock", config.StrategySwitchDelay).
			Msg("Strategy queued; finalize it through the admin API once the timelock elapses")
	}
	return nil
}

func orDefault(v, fallback string) string {
	if v == "" {
		return fallback
	}
	return v
}
