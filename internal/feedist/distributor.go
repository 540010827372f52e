// Package feedist converts collected deposit fees into the reward token.
package feedist

import (
	"context"
	"fmt"

	sdkmath "cosmossdk.io/math"
	sdk "github.com/cosmos/cosmos-sdk/types"
	"github.com/rs/zerolog"

	"github.com/elys-network/crabfarm/internal/logger"
	"github.com/elys-network/crabfarm/internal/metrics"
	"github.com/elys-network/crabfarm/internal/token"
	"github.com/elys-network/crabfarm/internal/types"
	"github.com/elys-network/crabfarm/internal/utils"
)

// Exchange swaps an exact input for at least minOut of outDenom, moving funds of trader.
// Its return value is informational; the distributor re-reads balances.
type Exchange interface {
	SwapExactIn(ctx context.Context, trader string, in sdk.Coin, outDenom string, minOut sdkmath.Int) (sdkmath.Int, error)
}

// RewardNotifier is told how much reward a distribution produced.
type RewardNotifier interface {
	NotifyRewardAmount(ctx context.Context, reward sdk.Coin) error
}

// Ledger runs fn as one atomic call against the bank's owner, so that a failed call elsewhere can never
// revert a distribution and a failed distribution leaves no partial swap behind.
type Ledger interface {
	Atomic(ctx context.Context, op string, fn func(ctx context.Context) error) error
}

type Config struct {
	Bank        token.Bank
	Exchange    Exchange
	Ledger      Ledger
	Notifier    RewardNotifier // optional
	Account     string         // where deposit fees are collected
	Recipient   string         // receives the reward token
	RewardDenom string
}

// Distributor is triggered explicitly; nothing in the accrual path calls it.
type Distributor struct {
	cfg    Config
	logger zerolog.Logger
}

// Result of one distribution.
type Result struct {
	Asset  string      `json:"asset"`
	In     sdkmath.Int `json:"in"`
	Reward sdkmath.Int `json:"reward"`
}

func NewDistributor(cfg Config) (*Distributor, error) {
	if cfg.Bank == nil || cfg.Exchange == nil || cfg.Ledger == nil {
		return nil, fmt.Errorf("%w: distributor needs a bank, an exchange and a ledger", types.ErrPreconditionViolation)
	}
	if cfg.Account == "" || cfg.Recipient == "" || cfg.Account == cfg.Recipient {
		return nil, fmt.Errorf("%w: distributor needs distinct account and recipient", types.ErrInvalidAddress)
	}
	if err := sdk.ValidateDenom(cfg.RewardDenom); err != nil {
		return nil, fmt.Errorf("%w: %w", types.ErrInvalidDenom, err)
	}
	return &Distributor{cfg: cfg, logger: logger.GetForComponent("fee_distributor")}, nil
}

// Distribute swaps the account's whole balance of asset into the reward token and sends the proceeds to
// the recipient. The reward denom itself is forwarded without a swap.
func (d *Distributor) Distribute(ctx context.Context, asset string, minOut sdkmath.Int) (Result, error) {
	res := Result{Asset: asset, In: sdkmath.ZeroInt(), Reward: sdkmath.ZeroInt()}
	if err := sdk.ValidateDenom(asset); err != nil {
		return res, fmt.Errorf("%w: %w", types.ErrInvalidDenom, err)
	}
	if minOut.IsNil() {
		minOut = sdkmath.ZeroInt()
	}
	if minOut.IsNegative() {
		return res, types.ErrInvalidAmount
	}

	err := d.cfg.Ledger.Atomic(ctx, "distribute_fees", func(ctx context.Context) error {
		var err error
		res, err = d.distribute(ctx, asset, minOut)
		return err
	})
	if err != nil || !res.Reward.IsPositive() {
		return res, err
	}

	metrics.FeesDistributedTotal.WithLabelValues(asset).Add(utils.MetricValue(res.Reward))
	d.logger.Info().
		Str("asset", asset).
		Str("in", res.In.String()).
		Str("reward", res.Reward.String()).
		Str("recipient", d.cfg.Recipient).
		Msg("Fees distributed")
	return res, nil
}

// distribute moves the funds; it runs inside the ledger call.
func (d *Distributor) distribute(ctx context.Context, asset string, minOut sdkmath.Int) (Result, error) {
	res := Result{Asset: asset, In: sdkmath.ZeroInt(), Reward: sdkmath.ZeroInt()}
	bank, reward := d.cfg.Bank, d.cfg.RewardDenom
	res.In = bank.Balance(d.cfg.Account, asset)
	if !res.In.IsPositive() {
		return res, nil
	}

	if asset == reward {
		res.Reward = res.In
	} else {
		before := bank.Balance(d.cfg.Account, reward)
		if _, err := d.cfg.Exchange.SwapExactIn(ctx, d.cfg.Account, token.Coin(asset, res.In), reward, minOut); err != nil {
			return res, fmt.Errorf("%w: swap %s: %w", types.ErrExternalCallFailure, asset, err)
		}
		res.Reward = bank.Balance(d.cfg.Account, reward).Sub(before)
		if res.Reward.LT(minOut) {
			return res, fmt.Errorf("%w: swap of %s returned %s, below minimum %s", types.ErrTransferShortfall, asset, res.Reward, minOut)
		}
	}

	out := token.Coin(reward, res.Reward)
	if err := token.SafeSend(ctx, bank, d.cfg.Account, d.cfg.Recipient, out); err != nil {
		return res, err
	}
	if d.cfg.Notifier != nil && res.Reward.IsPositive() {
		if err := d.cfg.Notifier.NotifyRewardAmount(ctx, out); err != nil {
			return res, fmt.Errorf("%w: notify reward: %w", types.ErrExternalCallFailure, err)
		}
	}
	return res, nil
}
