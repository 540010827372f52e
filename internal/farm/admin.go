package farm

import (
	"context"
	"fmt"
	"math"
	"time"

	sdkmath "cosmossdk.io/math"
	sdk "github.com/cosmos/cosmos-sdk/types"

	"github.com/elys-network/crabfarm/internal/ledger"
	"github.com/elys-network/crabfarm/internal/strategy"
	"github.com/elys-network/crabfarm/internal/token"
	"github.com/elys-network/crabfarm/internal/types"
)

const maxBasisPoints = 10000

// PoolConfig describes a pool to register.
type PoolConfig struct {
	LPToken        string
	AllocPoint     uint64
	DepositFeeBP   uint32
	UnderlyingUnit sdkmath.Int // defaults to 1
}

// AddPool registers a pool for an asset not yet in the registry.
func (e *Engine) AddPool(ctx context.Context, caller string, cfg PoolConfig, withUpdate bool) (types.PoolID, error) {
	var pid types.PoolID
	err := e.exec(ctx, "add_pool", func(tx *txn) error {
		if err := e.requireOwner(caller); err != nil {
			return err
		}
		if err := sdk.ValidateDenom(cfg.LPToken); err != nil {
			return fmt.Errorf("%w: %w", types.ErrInvalidDenom, err)
		}
		if cfg.LPToken == e.reg.params.RewardDenom {
			return fmt.Errorf("%w: the reward denom cannot be staked", types.ErrProtectedAsset)
		}
		if _, dup := e.reg.byAsset[cfg.LPToken]; dup {
			return fmt.Errorf("%w: %s", types.ErrDuplicatePool, cfg.LPToken)
		}
		if cfg.DepositFeeBP > maxBasisPoints {
			return fmt.Errorf("%w: %d", types.ErrInvalidFeeBasisPoints, cfg.DepositFeeBP)
		}
		if err := checkAllocTotal(e.reg.params.TotalAllocPoint, cfg.AllocPoint); err != nil {
			return err
		}
		unit := cfg.UnderlyingUnit
		if unit.IsNil() {
			unit = sdkmath.OneInt()
		}
		if !unit.IsPositive() {
			return fmt.Errorf("%w: underlying unit must be positive", types.ErrInvalidAmount)
		}
		if withUpdate {
			if err := e.massUpdate(tx); err != nil {
				return err
			}
		}

		lastRewardBlock := tx.block
		if e.reg.params.StartBlock > lastRewardBlock {
			lastRewardBlock = e.reg.params.StartBlock
		}
		p := e.reg.addPool(types.Pool{
			LPToken:           cfg.LPToken,
			AllocPoint:        cfg.AllocPoint,
			LastRewardBlock:   lastRewardBlock,
			AccCrabPerShare:   sdkmath.ZeroInt(),
			DepositFeeBP:      cfg.DepositFeeBP,
			TotalSharesSupply: sdkmath.ZeroInt(),
			UnderlyingUnit:    unit,
		})
		e.reg.params.TotalAllocPoint += cfg.AllocPoint
		pid = p.ID

		tx.emit(types.Event{
			Kind:   types.EventPoolAdded,
			PoolID: pid,
			User:   caller,
			Detail: fmt.Sprintf("lp_token=%s alloc_point=%d deposit_fee_bp=%d", cfg.LPToken, cfg.AllocPoint, cfg.DepositFeeBP),
		})
		e.logger.Info().
			Uint64("pool_id", uint64(pid)).
			Str("lp_token", cfg.LPToken).
			Uint64("alloc_point", cfg.AllocPoint).
			Uint32("deposit_fee_bp", cfg.DepositFeeBP).
			Uint64("last_reward_block", lastRewardBlock).
			Msg("Pool added")
		return nil
	})
	return pid, err
}

// checkAllocTotal rejects an allocation that would overflow the registry total.
func checkAllocTotal(others, allocPoint uint64) error {
	if allocPoint > math.MaxUint64-others {
		return fmt.Errorf("%w: alloc point %d overflows total %d", types.ErrInvalidAmount, allocPoint, others)
	}
	return nil
}

// SetPool changes a pool's allocation weight and deposit fee.
func (e *Engine) SetPool(ctx context.Context, caller string, pid types.PoolID, allocPoint uint64, depositFeeBP uint32, withUpdate bool) error {
	return e.exec(ctx, "set_pool", func(tx *txn) error {
		if err := e.requireOwner(caller); err != nil {
			return err
		}
		p, err := e.reg.pool(pid)
		if err != nil {
			return err
		}
		if depositFeeBP > maxBasisPoints {
			return fmt.Errorf("%w: %d", types.ErrInvalidFeeBasisPoints, depositFeeBP)
		}
		if err := checkAllocTotal(e.reg.params.TotalAllocPoint-p.AllocPoint, allocPoint); err != nil {
			return err
		}
		if withUpdate {
			if err := e.massUpdate(tx); err != nil {
				return err
			}
		}

		tx.touchPool(p)
		e.reg.params.TotalAllocPoint = e.reg.params.TotalAllocPoint - p.AllocPoint + allocPoint
		p.AllocPoint = allocPoint
		p.DepositFeeBP = depositFeeBP

		tx.emit(types.Event{
			Kind:   types.EventPoolUpdated,
			PoolID: pid,
			User:   caller,
			Detail: fmt.Sprintf("alloc_point=%d deposit_fee_bp=%d", allocPoint, depositFeeBP),
		})
		e.logger.Info().
			Uint64("pool_id", uint64(pid)).
			Uint64("alloc_point", allocPoint).
			Uint32("deposit_fee_bp", depositFeeBP).
			Uint64("total_alloc_point", e.reg.params.TotalAllocPoint).
			Msg("Pool updated")
		return nil
	})
}

// QueueStrategy schedules name to replace the pool's strategy once the timelock elapses.
// An empty name queues a switch back to no strategy. No funds move.
func (e *Engine) QueueStrategy(ctx context.Context, caller string, pid types.PoolID, name string) error {
	return e.exec(ctx, "queue_strategy", func(tx *txn) error {
		if err := e.requireOwner(caller); err != nil {
			return err
		}
		p, err := e.reg.pool(pid)
		if err != nil {
			return err
		}
		if err := e.checkStrategy(p, name); err != nil {
			return err
		}

		tx.touchPool(p)
		p.Strategy = strategy.Queue(p.Strategy, name, tx.now, e.switchDelay)

		tx.emit(types.Event{
			Kind:   types.EventStrategyQueued,
			PoolID: pid,
			User:   caller,
			Detail: fmt.Sprintf("next=%q ready_at=%s", name, p.Strategy.ReadyAt.Format(time.RFC3339)),
		})
		e.logger.Info().
			Uint64("pool_id", uint64(pid)).
			Str("active", p.Strategy.Active).
			Str("next", name).
			Time("ready_at", p.Strategy.ReadyAt).
			Msg("Strategy switch queued")
		return nil
	})
}

// FinalizeStrategy performs the queued switch: the old strategy returns everything to the vault and the
// new one receives the whole direct balance.
func (e *Engine) FinalizeStrategy(ctx context.Context, caller string, pid types.PoolID, expected string) error {
	return e.exec(ctx, "finalize_strategy", func(tx *txn) error {
		if err := e.requireOwner(caller); err != nil {
			return err
		}
		p, err := e.reg.pool(pid)
		if err != nil {
			return err
		}
		if err := strategy.CheckFinalize(p.Strategy, expected, tx.now); err != nil {
			return err
		}
		if err := e.checkStrategy(p, p.Strategy.Next); err != nil {
			return err
		}
		old, err := e.strategies.Resolve(p.Strategy.Active)
		if err != nil {
			return err
		}
		next, err := e.strategies.Resolve(p.Strategy.Next)
		if err != nil {
			return err
		}
		if err := e.updatePool(tx, p); err != nil {
			return err
		}

		before, err := ledger.Measure(tx.ctx, e.bank, e.vault, p.LPToken, old, p.TotalSharesSupply)
		if err != nil {
			return err
		}
		if err := strategy.Switch(tx.ctx, e.bank, e.vault, old, next); err != nil {
			return err
		}
		after, err := ledger.Measure(tx.ctx, e.bank, e.vault, p.LPToken, next, p.TotalSharesSupply)
		if err != nil {
			return err
		}

		tx.touchPool(p)
		previous := p.Strategy.Active
		p.Strategy = strategy.Finalized(p.Strategy)

		tx.emit(types.Event{
			Kind:   types.EventStrategyFinalized,
			PoolID: pid,
			User:   caller,
			Amount: after.UnderlyingBalanceWithInvestment(),
			Detail: fmt.Sprintf("from=%q to=%q", previous, p.Strategy.Active),
		})
		e.logger.Info().
			Uint64("pool_id", uint64(pid)).
			Str("from", previous).
			Str("to", p.Strategy.Active).
			Str("underlying_before", before.UnderlyingBalanceWithInvestment().String()).
			Str("underlying_after", after.UnderlyingBalanceWithInvestment().String()).
			Msg("Strategy switch finalized")
		return nil
	})
}

func (e *Engine) checkStrategy(p *types.Pool, name string) error {
	s, err := e.strategies.Resolve(name)
	if err != nil || s == nil {
		return err
	}
	if s.Underlying() != p.LPToken {
		return fmt.Errorf("%w: %s takes %s, pool %d holds %s", types.ErrStrategyAsset, s.Name(), s.Underlying(), p.ID, p.LPToken)
	}
	if s.Account() == e.vault || s.Account() == "" {
		return fmt.Errorf("%w: strategy %s account", types.ErrInvalidAddress, s.Name())
	}
	return nil
}

// UpdateEmissionRate brings every pool up to date at the old rate, then sets the new one.
func (e *Engine) UpdateEmissionRate(ctx context.Context, caller string, rate sdkmath.Int) error {
	return e.exec(ctx, "update_emission_rate", func(tx *txn) error {
		if err := e.requireOwner(caller); err != nil {
			return err
		}
		if rate.IsNil() || rate.IsNegative() {
			return types.ErrInvalidAmount
		}
		if err := e.massUpdate(tx); err != nil {
			return err
		}
		previous := e.reg.params.RewardPerBlock
		e.reg.params.RewardPerBlock = rate

		tx.emit(types.Event{
			Kind:   types.EventEmissionRateUpdated,
			User:   caller,
			Amount: rate,
			Detail: "previous=" + previous.String(),
		})
		e.logger.Info().
			Str("previous", previous.String()).
			Str("rate", rate.String()).
			Msg("Emission rate updated")
		return nil
	})
}

// SetFeeAddress changes the deposit-fee recipient. Callable by the owner or the current recipient.
func (e *Engine) SetFeeAddress(ctx context.Context, caller, addr string) error {
	return e.exec(ctx, "set_fee_address", func(tx *txn) error {
		if caller == "" || (caller != e.reg.params.FeeAddress && caller != e.reg.params.Owner) {
			return fmt.Errorf("%w: %q cannot set the fee address", types.ErrUnauthorized, caller)
		}
		if err := e.checkRecipient(addr); err != nil {
			return err
		}
		previous := e.reg.params.FeeAddress
		e.reg.params.FeeAddress = addr
		tx.emit(types.Event{Kind: types.EventFeeAddressUpdated, User: caller, Detail: previous + " -> " + addr})
		e.logger.Info().Str("previous", previous).Str("fee_address", addr).Msg("Fee address updated")
		return nil
	})
}

// SetDevAddress changes the protocol-fee recipient. Callable by the owner or the current recipient.
func (e *Engine) SetDevAddress(ctx context.Context, caller, addr string) error {
	return e.exec(ctx, "set_dev_address", func(tx *txn) error {
		if caller == "" || (caller != e.reg.params.DevAddress && caller != e.reg.params.Owner) {
			return fmt.Errorf("%w: %q cannot set the dev address", types.ErrUnauthorized, caller)
		}
		if err := e.checkRecipient(addr); err != nil {
			return err
		}
		previous := e.reg.params.DevAddress
		e.reg.params.DevAddress = addr
		tx.emit(types.Event{Kind: types.EventDevAddressUpdated, User: caller, Detail: previous + " -> " + addr})
		e.logger.Info().Str("previous", previous).Str("dev_address", addr).Msg("Dev address updated")
		return nil
	})
}

func (e *Engine) TransferOwnership(ctx context.Context, caller, newOwner string) error {
	return e.exec(ctx, "transfer_ownership", func(tx *txn) error {
		if err := e.requireOwner(caller); err != nil {
			return err
		}
		if newOwner == "" {
			return types.ErrInvalidAddress
		}
		e.reg.params.Owner = newOwner
		tx.emit(types.Event{Kind: types.EventOwnershipChanged, User: caller, Detail: caller + " -> " + newOwner})
		e.logger.Warn().Str("previous", caller).Str("owner", newOwner).Msg("Ownership transferred")
		return nil
	})
}

// RecoverAsset sends a stray asset held by the vault to to. Pool assets and the reward denom are refused.
func (e *Engine) RecoverAsset(ctx context.Context, caller string, coin sdk.Coin, to string) error {
	return e.exec(ctx, "recover_asset", func(tx *txn) error {
		if err := e.requireOwner(caller); err != nil {
			return err
		}
		if coin.Amount.IsNil() || !coin.Amount.IsPositive() {
			return types.ErrInvalidAmount
		}
		if err := e.checkRecipient(to); err != nil {
			return err
		}
		if _, isPool := e.reg.byAsset[coin.Denom]; isPool || coin.Denom == e.reg.params.RewardDenom {
			return fmt.Errorf("%w: %s", types.ErrProtectedAsset, coin.Denom)
		}
		if err := token.SafeSend(tx.ctx, e.bank, e.vault, to, coin); err != nil {
			return err
		}
		tx.emit(types.Event{Kind: types.EventAssetRecovered, User: to, Amount: coin.Amount, Detail: "denom=" + coin.Denom})
		e.logger.Info().Str("denom", coin.Denom).Str("amount", coin.Amount.String()).Str("to", to).Msg("Stray asset recovered")
		return nil
	})
}

// MassUpdatePools refreshes every pool. Anyone may call it.
func (e *Engine) MassUpdatePools(ctx context.Context) error {
	return e.exec(ctx, "mass_update_pools", func(tx *txn) error {
		return e.massUpdate(tx)
	})
}

// UpdatePool refreshes one pool. Anyone may call it.
func (e *Engine) UpdatePool(ctx context.Context, pid types.PoolID) error {
	return e.exec(ctx, "update_pool", func(tx *txn) error {
		p, err := e.reg.pool(pid)
		if err != nil {
			return err
		}
		return e.updatePool(tx, p)
	})
}

func (e *Engine) checkRecipient(addr string) error {
	if addr == "" {
		return types.ErrInvalidAddress
	}
	if addr == e.vault {
		return fmt.Errorf("%w: recipient cannot be the vault", types.ErrInvalidAddress)
	}
	return nil
}
