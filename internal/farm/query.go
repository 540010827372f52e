package farm

import (
	"context"

	sdkmath "cosmossdk.io/math"

	"github.com/elys-network/crabfarm/internal/accumulator"
	"github.com/elys-network/crabfarm/internal/ledger"
	"github.com/elys-network/crabfarm/internal/types"
)

func (e *Engine) PoolLength(ctx context.Context) (int, error) {
	var n int
	err := e.read(ctx, func(context.Context) error {
		n = len(e.reg.pools)
		return nil
	})
	return n, err
}

func (e *Engine) Pool(ctx context.Context, pid types.PoolID) (types.Pool, error) {
	var out types.Pool
	err := e.read(ctx, func(context.Context) error {
		p, err := e.reg.pool(pid)
		if err != nil {
			return err
		}
		out = *p
		return nil
	})
	return out, err
}

func (e *Engine) Pools(ctx context.Context) ([]types.Pool, error) {
	var out []types.Pool
	err := e.read(ctx, func(context.Context) error {
		out = make([]types.Pool, 0, len(e.reg.pools))
		for _, p := range e.reg.pools {
			out = append(out, *p)
		}
		return nil
	})
	return out, err
}

// UserInfo returns the raw position; a user who never staked has a zero position.
func (e *Engine) UserInfo(ctx context.Context, pid types.PoolID, user string) (types.UserPosition, error) {
	out := zeroPosition()
	err := e.read(ctx, func(context.Context) error {
		if _, err := e.reg.pool(pid); err != nil {
			return err
		}
		if pos := e.reg.position(types.PositionKey{PoolID: pid, User: user}); pos != nil {
			out = *pos
		}
		return nil
	})
	return out, err
}

func (e *Engine) Params(ctx context.Context) (types.FarmParams, error) {
	var out types.FarmParams
	err := e.read(ctx, func(context.Context) error {
		out = e.reg.params
		return nil
	})
	return out, err
}

// PendingReward is what a deposit or withdraw at the current block would pay the user, before the
// reward-balance cap.
func (e *Engine) PendingReward(ctx context.Context, pid types.PoolID, user string) (sdkmath.Int, error) {
	out := sdkmath.ZeroInt()
	err := e.read(ctx, func(context.Context) error {
		p, err := e.reg.pool(pid)
		if err != nil {
			return err
		}
		pos := e.reg.position(types.PositionKey{PoolID: pid, User: user})
		if pos == nil {
			return nil
		}
		r := e.refresh(p, e.clock.BlockHeight())
		out = accumulator.Pending(pos.Amount, r.AccPerShare, pos.RewardDebt)
		return nil
	})
	return out, err
}

// StakeValue is the underlying the user's shares claim at the live exchange rate.
func (e *Engine) StakeValue(ctx context.Context, pid types.PoolID, user string) (sdkmath.Int, error) {
	out := sdkmath.ZeroInt()
	err := e.read(ctx, func(ctx context.Context) error {
		p, err := e.reg.pool(pid)
		if err != nil {
			return err
		}
		pos := e.reg.position(types.PositionKey{PoolID: pid, User: user})
		if pos == nil || !pos.Amount.IsPositive() {
			return nil
		}
		l, err := e.measure(ctx, p)
		if err != nil {
			return err
		}
		out, err = l.SharesToUnderlying(pos.Amount)
		return err
	})
	return out, err
}

// PricePerFullShare is the underlying claimed by 1e12 shares.
func (e *Engine) PricePerFullShare(ctx context.Context, pid types.PoolID) (sdkmath.Int, error) {
	var out sdkmath.Int
	err := e.read(ctx, func(ctx context.Context) error {
		p, err := e.reg.pool(pid)
		if err != nil {
			return err
		}
		l, err := e.measure(ctx, p)
		if err != nil {
			return err
		}
		out = l.PricePerFullShare()
		return nil
	})
	return out, err
}

// UnderlyingBalanceWithInvestment is the pool's direct balance plus what its strategy reports.
func (e *Engine) UnderlyingBalanceWithInvestment(ctx context.Context, pid types.PoolID) (sdkmath.Int, error) {
	var out sdkmath.Int
	err := e.read(ctx, func(ctx context.Context) error {
		p, err := e.reg.pool(pid)
		if err != nil {
			return err
		}
		l, err := e.measure(ctx, p)
		if err != nil {
			return err
		}
		out = l.UnderlyingBalanceWithInvestment()
		return nil
	})
	return out, err
}

// Snapshots measures every pool at the current block.
func (e *Engine) Snapshots(ctx context.Context) ([]types.PoolSnapshot, error) {
	var out []types.PoolSnapshot
	err := e.read(ctx, func(ctx context.Context) error {
		block, now := e.clock.BlockHeight(), e.clock.Now().UTC()
		for _, p := range e.reg.pools {
			l, err := e.measure(ctx, p)
			if err != nil {
				return err
			}
			out = append(out, types.PoolSnapshot{
				PoolID:            p.ID,
				Block:             block,
				Timestamp:         now,
				AccCrabPerShare:   p.AccCrabPerShare,
				TotalSharesSupply: p.TotalSharesSupply,
				DirectBalance:     l.Direct,
				InvestedBalance:   l.Invested,
				PricePerFullShare: l.PricePerFullShare(),
				Strategy:          p.Strategy.Active,
			})
		}
		return nil
	})
	return out, err
}

func (e *Engine) RecentEvents(ctx context.Context, limit int) ([]types.Event, error) {
	return e.store.RecentEvents(ctx, limit)
}

func (e *Engine) measure(ctx context.Context, p *types.Pool) (ledger.Ledger, error) {
	s, err := e.strategies.Resolve(p.Strategy.Active)
	if err != nil {
		return ledger.Ledger{}, err
	}
	return ledger.Measure(ctx, e.bank, e.vault, p.LPToken, s, p.TotalSharesSupply)
}
