package farm

import (
	sdkmath "cosmossdk.io/math"

	"github.com/elys-network/crabfarm/internal/accumulator"
	"github.com/elys-network/crabfarm/internal/metrics"
	"github.com/elys-network/crabfarm/internal/token"
	"github.com/elys-network/crabfarm/internal/types"
	"github.com/elys-network/crabfarm/internal/utils"
)

func poolState(p *types.Pool) accumulator.PoolState {
	return accumulator.PoolState{
		LastRewardBlock: p.LastRewardBlock,
		AccPerShare:     p.AccCrabPerShare,
		AllocPoint:      p.AllocPoint,
	}
}

// lpSupply is the pool asset held directly by the vault. Funds with the strategy are not counted.
func (e *Engine) lpSupply(p *types.Pool) sdkmath.Int {
	return e.bank.Balance(e.vault, p.LPToken)
}

// refresh is the accumulator a pool would have at the current block, without applying it.
func (e *Engine) refresh(p *types.Pool, now uint64) accumulator.Refresh {
	return accumulator.Advance(poolState(p), now, e.lpSupply(p), e.reg.emission())
}

// updatePool brings one pool's accumulator up to the call's block and mints the reward.
func (e *Engine) updatePool(tx *txn, p *types.Pool) error {
	r := e.refresh(p, tx.block)
	if r.LastRewardBlock == p.LastRewardBlock {
		return nil
	}
	tx.touchPool(p)

	if r.Minted() {
		denom := e.reg.params.RewardDenom
		if err := token.SafeMint(tx.ctx, e.bank, e.reg.params.DevAddress, token.Coin(denom, r.ProtocolFee)); err != nil {
			return err
		}
		if err := token.SafeMint(tx.ctx, e.bank, e.vault, token.Coin(denom, r.Reward)); err != nil {
			return err
		}
		metrics.RewardMintedTotal.WithLabelValues(poolLabel(p.ID)).Add(utils.MetricValue(r.Reward))
	}

	p.LastRewardBlock = r.LastRewardBlock
	p.AccCrabPerShare = r.AccPerShare
	return nil
}

func (e *Engine) massUpdate(tx *txn) error {
	for _, p := range e.reg.pools {
		if err := e.updatePool(tx, p); err != nil {
			return err
		}
	}
	return nil
}

// payPending sends the position's pending reward, capped at the vault's reward balance.
// An underfunded payout is not an error: the lesser amount is paid and the rest is forfeited.
func (e *Engine) payPending(tx *txn, p *types.Pool, user string, pos *types.UserPosition) (sdkmath.Int, error) {
	pending := accumulator.Pending(pos.Amount, p.AccCrabPerShare, pos.RewardDebt)
	if !pending.IsPositive() {
		return sdkmath.ZeroInt(), nil
	}
	denom := e.reg.params.RewardDenom
	available := e.bank.Balance(e.vault, denom)
	paid := sdkmath.MinInt(pending, available)
	if paid.LT(pending) {
		e.logger.Warn().
			Uint64("pool_id", uint64(p.ID)).
			Str("user", user).
			Str("pending", pending.String()).
			Str("available", available.String()).
			Msg("Reward balance short, paying what is available")
		metrics.UnderfundedPayoutsTotal.WithLabelValues(poolLabel(p.ID)).Inc()
	}
	if err := token.SafeSend(tx.ctx, e.bank, e.vault, user, token.Coin(denom, paid)); err != nil {
		return sdkmath.ZeroInt(), err
	}
	metrics.RewardPaidTotal.WithLabelValues(poolLabel(p.ID)).Add(utils.MetricValue(paid))
	return paid, nil
}

// resetDebt sets rewardDebt = amount * acc / 1e12.
func resetDebt(p *types.Pool, pos *types.UserPosition) {
	pos.RewardDebt = accumulator.Accrued(pos.Amount, p.AccCrabPerShare)
}
