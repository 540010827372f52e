package strategy

import (
	"context"
	"fmt"

	sdkmath "cosmossdk.io/math"
	sdk "github.com/cosmos/cosmos-sdk/types"

	"github.com/elys-network/crabfarm/internal/logger"
	"github.com/elys-network/crabfarm/internal/token"
	"github.com/elys-network/crabfarm/internal/types"
)

var strategyLogger = logger.GetForComponent("strategy")

// LendingBank is the bank surface the lending strategy needs; Burn models withdrawal slippage.
type LendingBank interface {
	token.Bank
	Burn(ctx context.Context, from string, coin sdk.Coin) error
}

type LendingConfig struct {
	Name       string
	Underlying string
	Account    string // where the vault forwards funds
	Market     string // where invested funds sit
	Vault      string // where withdrawals are returned
	SlippageBP uint32 // lost on every withdrawal, 0-10000
}

// Lending keeps idle funds in its account and lends them out to a market account.
// It holds no state of its own beyond the bank balances, so a bank revert also reverts the strategy.
type Lending struct {
	cfg  LendingConfig
	bank LendingBank
}

var _ Strategy = (*Lending)(nil)

func NewLending(cfg LendingConfig, bank LendingBank) (*Lending, error) {
	if cfg.Name == "" || cfg.Account == "" || cfg.Market == "" || cfg.Vault == "" {
		return nil, fmt.Errorf("%w: lending strategy needs name, account, market and vault", types.ErrInvalidAddress)
	}
	if err := sdk.ValidateDenom(cfg.Underlying); err != nil {
		return nil, fmt.Errorf("%w: %w", types.ErrInvalidDenom, err)
	}
	if cfg.SlippageBP > 10000 {
		return nil, types.ErrInvalidFeeBasisPoints
	}
	if bank == nil {
		return nil, fmt.Errorf("%w: lending strategy needs a bank", types.ErrPreconditionViolation)
	}
	return &Lending{cfg: cfg, bank: bank}, nil
}

func (l *Lending) Name() string       { return l.cfg.Name }
func (l *Lending) Underlying() string { return l.cfg.Underlying }
func (l *Lending) Account() string    { return l.cfg.Account }

func (l *Lending) Invest(ctx context.Context) error {
	idle := l.bank.Balance(l.cfg.Account, l.cfg.Underlying)
	return token.SafeSend(ctx, l.bank, l.cfg.Account, l.cfg.Market, token.Coin(l.cfg.Underlying, idle))
}

func (l *Lending) InvestedUnderlyingBalance(context.Context) (sdkmath.Int, error) {
	return l.bank.Balance(l.cfg.Account, l.cfg.Underlying).Add(l.bank.Balance(l.cfg.Market, l.cfg.Underlying)), nil
}

func (l *Lending) Withdraw(ctx context.Context, amount sdkmath.Int) error {
	if amount.IsNil() || amount.IsNegative() {
		return types.ErrInvalidAmount
	}
	idle := l.bank.Balance(l.cfg.Account, l.cfg.Underlying)
	if idle.LT(amount) {
		recall := sdkmath.MinInt(amount.Sub(idle), l.bank.Balance(l.cfg.Market, l.cfg.Underlying))
		if err := token.SafeSend(ctx, l.bank, l.cfg.Market, l.cfg.Account, token.Coin(l.cfg.Underlying, recall)); err != nil {
			return err
		}
	}
	return l.release(ctx, sdkmath.MinInt(amount, l.bank.Balance(l.cfg.Account, l.cfg.Underlying)))
}

func (l *Lending) WithdrawAll(ctx context.Context) error {
	market := l.bank.Balance(l.cfg.Market, l.cfg.Underlying)
	if err := token.SafeSend(ctx, l.bank, l.cfg.Market, l.cfg.Account, token.Coin(l.cfg.Underlying, market)); err != nil {
		return err
	}
	return l.release(ctx, l.bank.Balance(l.cfg.Account, l.cfg.Underlying))
}

// Accrue credits yield to the market, e.g. interest paid by borrowers. When the bank belongs to a farm
// engine, run it through Engine.Atomic.
func (l *Lending) Accrue(ctx context.Context, amount sdkmath.Int) error {
	return l.bank.Mint(ctx, l.cfg.Market, token.Coin(l.cfg.Underlying, amount))
}

// release sends amount minus slippage from the strategy account to the vault.
func (l *Lending) release(ctx context.Context, amount sdkmath.Int) error {
	if !amount.IsPositive() {
		return nil
	}
	loss := amount.MulRaw(int64(l.cfg.SlippageBP)).QuoRaw(10000)
	if loss.IsPositive() {
		if err := l.bank.Burn(ctx, l.cfg.Account, token.Coin(l.cfg.Underlying, loss)); err != nil {
			return err
		}
		strategyLogger.Debug().
			Str("strategy", l.cfg.Name).
			Str("requested", amount.String()).
			Str("slippage", loss.String()).
			Msg("Withdrawal slippage applied")
	}
	return token.SafeSend(ctx, l.bank, l.cfg.Account, l.cfg.Vault, token.Coin(l.cfg.Underlying, amount.Sub(loss)))
}
