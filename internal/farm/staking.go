package farm

import (
	"context"
	"fmt"

	sdkmath "cosmossdk.io/math"

	"github.com/elys-network/crabfarm/internal/ledger"
	"github.com/elys-network/crabfarm/internal/metrics"
	"github.com/elys-network/crabfarm/internal/strategy"
	"github.com/elys-network/crabfarm/internal/token"
	"github.com/elys-network/crabfarm/internal/types"
)

// DepositResult reports what a deposit did.
type DepositResult struct {
	Shares sdkmath.Int `json:"shares"` // minted to the beneficiary
	Fee    sdkmath.Int `json:"fee"`    // sent to the fee recipient
	Reward sdkmath.Int `json:"reward"` // pending reward paid to the beneficiary
}

// WithdrawResult reports what a withdrawal did.
type WithdrawResult struct {
	Shares      sdkmath.Int `json:"shares"`      // burned
	Entitlement sdkmath.Int `json:"entitlement"` // underlying the shares claimed before any strategy pull
	Payout      sdkmath.Int `json:"payout"`      // underlying actually sent
	Reward      sdkmath.Int `json:"reward"`      // pending reward paid
}

// Deposit pulls amount of the pool asset from payer and credits shares to beneficiary.
// A zero amount only harvests the beneficiary's pending reward.
func (e *Engine) Deposit(ctx context.Context, pid types.PoolID, payer, beneficiary string, amount sdkmath.Int) (DepositResult, error) {
	res := DepositResult{Shares: sdkmath.ZeroInt(), Fee: sdkmath.ZeroInt(), Reward: sdkmath.ZeroInt()}
	if amount.IsNil() || amount.IsNegative() {
		return res, types.ErrInvalidAmount
	}
	if err := e.checkAccount(payer, beneficiary); err != nil {
		return res, err
	}

	err := e.exec(ctx, "deposit", func(tx *txn) error {
		p, err := e.reg.pool(pid)
		if err != nil {
			return err
		}
		if err := e.updatePool(tx, p); err != nil {
			return err
		}
		pos := e.position(tx, types.PositionKey{PoolID: pid, User: beneficiary})
		if res.Reward, err = e.payPending(tx, p, beneficiary, pos); err != nil {
			return err
		}

		if amount.IsPositive() {
			s, err := e.strategies.Resolve(p.Strategy.Active)
			if err != nil {
				return err
			}
			// Exchange rate is measured before the deposit lands.
			before, err := ledger.Measure(tx.ctx, e.bank, e.vault, p.LPToken, s, p.TotalSharesSupply)
			if err != nil {
				return err
			}
			if err := token.SafeSend(tx.ctx, e.bank, payer, e.vault, token.Coin(p.LPToken, amount)); err != nil {
				return err
			}
			res.Fee = amount.MulRaw(int64(p.DepositFeeBP)).QuoRaw(maxBasisPoints)
			if err := token.SafeSend(tx.ctx, e.bank, e.vault, e.reg.params.FeeAddress, token.Coin(p.LPToken, res.Fee)); err != nil {
				return err
			}
			if res.Shares, err = before.DepositToShares(amount.Sub(res.Fee)); err != nil {
				return err
			}

			tx.touchPool(p)
			p.TotalSharesSupply = p.TotalSharesSupply.Add(res.Shares)
			pos.Amount = pos.Amount.Add(res.Shares)

			if s != nil {
				if err := strategy.Forward(tx.ctx, e.bank, e.vault, s); err != nil {
					return err
				}
			}
		}
		resetDebt(p, pos)

		tx.emit(types.Event{
			Kind:   types.EventDeposit,
			PoolID: pid,
			User:   beneficiary,
			Amount: amount,
			Shares: res.Shares,
			Reward: res.Reward,
			Fee:    res.Fee,
			Detail: "payer=" + payer,
		})
		e.logger.Info().
			Uint64("pool_id", uint64(pid)).
			Str("payer", payer).
			Str("beneficiary", beneficiary).
			Str("amount", amount.String()).
			Str("fee", res.Fee.String()).
			Str("shares", res.Shares.String()).
			Str("reward", res.Reward.String()).
			Msg("Deposit")
		return nil
	})
	return res, err
}

// Withdraw redeems shares for the pool asset and pays the caller's pending reward.
// A caller that never deposited only refreshes the pool; no position is created.
func (e *Engine) Withdraw(ctx context.Context, pid types.PoolID, caller string, shares sdkmath.Int) (WithdrawResult, error) {
	res := WithdrawResult{Shares: sdkmath.ZeroInt(), Entitlement: sdkmath.ZeroInt(), Payout: sdkmath.ZeroInt(), Reward: sdkmath.ZeroInt()}
	if shares.IsNil() || shares.IsNegative() {
		return res, types.ErrInvalidAmount
	}
	if err := e.checkAccount(caller); err != nil {
		return res, err
	}

	err := e.exec(ctx, "withdraw", func(tx *txn) error {
		p, err := e.reg.pool(pid)
		if err != nil {
			return err
		}
		pos := e.existingPosition(tx, types.PositionKey{PoolID: pid, User: caller})
		if pos == nil {
			if shares.IsPositive() {
				return fmt.Errorf("%w: has 0, requested %s", types.ErrInsufficientShares, shares)
			}
			return e.updatePool(tx, p)
		}
		if pos.Amount.LT(shares) {
			return fmt.Errorf("%w: has %s, requested %s", types.ErrInsufficientShares, pos.Amount, shares)
		}
		if err := e.updatePool(tx, p); err != nil {
			return err
		}
		if res.Reward, err = e.payPending(tx, p, caller, pos); err != nil {
			return err
		}

		if shares.IsPositive() {
			res.Shares = shares
			if res.Entitlement, res.Payout, err = e.redeem(tx, p, caller, pos, shares); err != nil {
				return err
			}
		}
		resetDebt(p, pos)

		tx.emit(types.Event{
			Kind:   types.EventWithdraw,
			PoolID: pid,
			User:   caller,
			Amount: res.Payout,
			Shares: res.Shares,
			Reward: res.Reward,
		})
		e.logger.Info().
			Uint64("pool_id", uint64(pid)).
			Str("user", caller).
			Str("shares", res.Shares.String()).
			Str("entitlement", res.Entitlement.String()).
			Str("payout", res.Payout.String()).
			Str("reward", res.Reward.String()).
			Msg("Withdraw")
		return nil
	})
	return res, err
}

// EmergencyWithdraw redeems every share the caller holds without touching the accumulator.
// Pending reward is forfeited and the position is zeroed whatever the payout.
func (e *Engine) EmergencyWithdraw(ctx context.Context, pid types.PoolID, caller string) (WithdrawResult, error) {
	res := WithdrawResult{Shares: sdkmath.ZeroInt(), Entitlement: sdkmath.ZeroInt(), Payout: sdkmath.ZeroInt(), Reward: sdkmath.ZeroInt()}
	if err := e.checkAccount(caller); err != nil {
		return res, err
	}

	err := e.exec(ctx, "emergency_withdraw", func(tx *txn) error {
		p, err := e.reg.pool(pid)
		if err != nil {
			return err
		}
		pos := e.existingPosition(tx, types.PositionKey{PoolID: pid, User: caller})
		if pos == nil {
			return nil
		}
		res.Shares = pos.Amount
		if res.Shares.IsPositive() {
			if res.Entitlement, res.Payout, err = e.redeem(tx, p, caller, pos, res.Shares); err != nil {
				return err
			}
		}
		pos.Amount = sdkmath.ZeroInt()
		pos.RewardDebt = sdkmath.ZeroInt()

		tx.emit(types.Event{
			Kind:   types.EventEmergencyWithdraw,
			PoolID: pid,
			User:   caller,
			Amount: res.Payout,
			Shares: res.Shares,
		})
		e.logger.Warn().
			Uint64("pool_id", uint64(pid)).
			Str("user", caller).
			Str("shares", res.Shares.String()).
			Str("payout", res.Payout.String()).
			Msg("Emergency withdraw, pending reward forfeited")
		return nil
	})
	return res, err
}

// redeem burns shares from pos and sends the caller the underlying they claim, pulling from the
// strategy when the vault's direct balance is short. The payout is clamped to what the vault
// actually holds afterwards; a strategy shortfall is the withdrawing user's loss.
func (e *Engine) redeem(tx *txn, p *types.Pool, caller string, pos *types.UserPosition, shares sdkmath.Int) (entitlement, payout sdkmath.Int, err error) {
	s, err := e.strategies.Resolve(p.Strategy.Active)
	if err != nil {
		return sdkmath.ZeroInt(), sdkmath.ZeroInt(), err
	}
	before, err := ledger.Measure(tx.ctx, e.bank, e.vault, p.LPToken, s, p.TotalSharesSupply)
	if err != nil {
		return sdkmath.ZeroInt(), sdkmath.ZeroInt(), err
	}
	if entitlement, err = before.SharesToUnderlying(shares); err != nil {
		return sdkmath.ZeroInt(), sdkmath.ZeroInt(), err
	}
	pos.Amount = pos.Amount.Sub(shares)

	payout = sdkmath.MinInt(entitlement, before.Direct)
	if entitlement.GT(before.Direct) && s != nil {
		if shares.Equal(p.TotalSharesSupply) {
			err = s.WithdrawAll(tx.ctx)
		} else {
			err = s.Withdraw(tx.ctx, entitlement.Sub(before.Direct))
		}
		if err != nil {
			return sdkmath.ZeroInt(), sdkmath.ZeroInt(), fmt.Errorf("%w: %s: %w", types.ErrStrategyCall, s.Name(), err)
		}

		after, err := ledger.Measure(tx.ctx, e.bank, e.vault, p.LPToken, s, p.TotalSharesSupply)
		if err != nil {
			return sdkmath.ZeroInt(), sdkmath.ZeroInt(), err
		}
		recomputed, err := after.SharesToUnderlying(shares)
		if err != nil {
			return sdkmath.ZeroInt(), sdkmath.ZeroInt(), err
		}
		payout = sdkmath.MinInt(recomputed, after.Direct)
		if payout.LT(entitlement) {
			e.logger.Warn().
				Uint64("pool_id", uint64(p.ID)).
				Str("strategy", s.Name()).
				Str("user", caller).
				Str("entitlement", entitlement.String()).
				Str("payout", payout.String()).
				Msg("Strategy returned less than entitled, payout clamped")
			metrics.StrategyShortfallsTotal.WithLabelValues(poolLabel(p.ID), s.Name()).Inc()
		}
	}

	tx.touchPool(p)
	p.TotalSharesSupply = p.TotalSharesSupply.Sub(shares)
	if err := token.SafeSend(tx.ctx, e.bank, e.vault, caller, token.Coin(p.LPToken, payout)); err != nil {
		return sdkmath.ZeroInt(), sdkmath.ZeroInt(), err
	}
	if s != nil {
		if err := strategy.Forward(tx.ctx, e.bank, e.vault, s); err != nil {
			return sdkmath.ZeroInt(), sdkmath.ZeroInt(), err
		}
	}
	return entitlement, payout, nil
}

func (e *Engine) checkAccount(accounts ...string) error {
	for _, a := range accounts {
		if a == "" {
			return types.ErrInvalidAddress
		}
		if a == e.vault {
			return fmt.Errorf("%w: the vault cannot stake", types.ErrInvalidAddress)
		}
	}
	return nil
}
