// Package ledger converts between underlying-asset amounts and pool shares.
package ledger

import (
	"context"
	"fmt"

	sdkmath "cosmossdk.io/math"

	"github.com/elys-network/crabfarm/internal/accumulator"
	"github.com/elys-network/crabfarm/internal/types"
)

// BalanceReader reads a direct balance of an account.
type BalanceReader interface {
	Balance(owner, denom string) sdkmath.Int
}

// Investment reports what an external strategy currently holds for a pool.
type Investment interface {
	InvestedUnderlyingBalance(ctx context.Context) (sdkmath.Int, error)
}

// Ledger is a live measurement of one pool: where its underlying sits and how many shares claim it.
// It is never cached across calls; take a new one with Measure whenever balances may have moved.
type Ledger struct {
	Direct      sdkmath.Int
	Invested    sdkmath.Int
	TotalShares sdkmath.Int
}

// Measure reads the pool's direct balance held by custodian and, when inv is non-nil, the strategy balance.
func Measure(ctx context.Context, bank BalanceReader, custodian, denom string, inv Investment, totalShares sdkmath.Int) (Ledger, error) {
	l := Ledger{
		Direct:      bank.Balance(custodian, denom),
		Invested:    sdkmath.ZeroInt(),
		TotalShares: orZero(totalShares),
	}
	if inv != nil {
		invested, err := inv.InvestedUnderlyingBalance(ctx)
		if err != nil {
			return Ledger{}, fmt.Errorf("%w: investedUnderlyingBalance: %w", types.ErrStrategyCall, err)
		}
		if invested.IsNil() || invested.IsNegative() {
			return Ledger{}, fmt.Errorf("%w: strategy reported invalid balance %v", types.ErrStrategyCall, invested)
		}
		l.Invested = invested
	}
	return l, nil
}

// UnderlyingBalanceWithInvestment is the direct balance plus what the strategy reports.
func (l Ledger) UnderlyingBalanceWithInvestment() sdkmath.Int {
	return orZero(l.Direct).Add(orZero(l.Invested))
}

// DepositToShares returns the shares minted for amountAfterFee at the current exchange rate.
// The measurement must be taken before the deposit lands. The result is floored; the dust stays with
// existing holders.
func (l Ledger) DepositToShares(amountAfterFee sdkmath.Int) (sdkmath.Int, error) {
	if amountAfterFee.IsNil() || amountAfterFee.IsNegative() {
		return sdkmath.ZeroInt(), types.ErrInvalidAmount
	}
	if l.TotalShares.IsZero() {
		return amountAfterFee, nil
	}
	underlying := l.UnderlyingBalanceWithInvestment()
	if underlying.IsZero() {
		return sdkmath.ZeroInt(), types.ErrZeroUnderlying
	}
	return amountAfterFee.Mul(l.TotalShares).Quo(underlying), nil
}

// SharesToUnderlying returns the underlying claimed by shares, floored.
func (l Ledger) SharesToUnderlying(shares sdkmath.Int) (sdkmath.Int, error) {
	if shares.IsNil() || shares.IsNegative() {
		return sdkmath.ZeroInt(), types.ErrInvalidAmount
	}
	if !l.TotalShares.IsPositive() {
		return sdkmath.ZeroInt(), types.ErrNoShares
	}
	return l.UnderlyingBalanceWithInvestment().Mul(shares).Quo(l.TotalShares), nil
}

// PricePerFullShare is the underlying claimed by 1e12 shares. 1e12 at genesis.
func (l Ledger) PricePerFullShare() sdkmath.Int {
	if !l.TotalShares.IsPositive() {
		return accumulator.AccPrecision
	}
	return l.UnderlyingBalanceWithInvestment().Mul(accumulator.AccPrecision).Quo(l.TotalShares)
}

func orZero(v sdkmath.Int) sdkmath.Int {
	if v.IsNil() {
		return sdkmath.ZeroInt()
	}
	return v
}
