package feedist

import (
	"context"
	"fmt"
	"sync"

	sdkmath "cosmossdk.io/math"
	sdk "github.com/cosmos/cosmos-sdk/types"

	"github.com/elys-network/crabfarm/internal/logger"
	"github.com/elys-network/crabfarm/internal/token"
	"github.com/elys-network/crabfarm/internal/types"
)

// MintBurnBank is what RateExchange settles against.
type MintBurnBank interface {
	token.Bank
	Burn(ctx context.Context, from string, coin sdk.Coin) error
}

// RateExchange settles swaps at fixed rates by burning the input and minting the output.
// Rates are quoted as output units per input unit.
type RateExchange struct {
	mu    sync.RWMutex
	bank  MintBurnBank
	rates map[string]sdkmath.LegacyDec
}

var _ Exchange = (*RateExchange)(nil)

func NewRateExchange(bank MintBurnBank) *RateExchange {
	return &RateExchange{bank: bank, rates: make(map[string]sdkmath.LegacyDec)}
}

func pair(in, out string) string { return in + "/" + out }

// SetRate sets how many outDenom units one inDenom unit buys.
func (x *RateExchange) SetRate(inDenom, outDenom string, rate sdkmath.LegacyDec) error {
	if rate.IsNil() || !rate.IsPositive() {
		return fmt.Errorf("%w: rate for %s", types.ErrInvalidAmount, pair(inDenom, outDenom))
	}
	x.mu.Lock()
	defer x.mu.Unlock()
	x.rates[pair(inDenom, outDenom)] = rate
	return nil
}

// Quote returns the output for in at the configured rate, truncated.
func (x *RateExchange) Quote(in sdk.Coin, outDenom string) (sdkmath.Int, error) {
	x.mu.RLock()
	rate, ok := x.rates[pair(in.Denom, outDenom)]
	x.mu.RUnlock()
	if !ok {
		return sdkmath.ZeroInt(), fmt.Errorf("%w: no rate for %s", types.ErrPreconditionViolation, pair(in.Denom, outDenom))
	}
	return rate.MulInt(in.Amount).TruncateInt(), nil
}

func (x *RateExchange) SwapExactIn(ctx context.Context, trader string, in sdk.Coin, outDenom string, minOut sdkmath.Int) (sdkmath.Int, error) {
	out, err := x.Quote(in, outDenom)
	if err != nil {
		return sdkmath.ZeroInt(), err
	}
	if out.LT(minOut) {
		return sdkmath.ZeroInt(), fmt.Errorf("slippage: quote %s%s below minimum %s", out, outDenom, minOut)
	}
	if err := x.bank.Burn(ctx, trader, in); err != nil {
		return sdkmath.ZeroInt(), err
	}
	if err := x.bank.Mint(ctx, trader, token.Coin(outDenom, out)); err != nil {
		return sdkmath.ZeroInt(), err
	}
	return out, nil
}

var feedistLogger = logger.GetForComponent("fee_distributor")

// LogNotifier reports distributions through the component logger.
type LogNotifier struct{}

func (LogNotifier) NotifyRewardAmount(_ context.Context, reward sdk.Coin) error {
	feedistLogger.Info().Str("reward", reward.String()).Msg("Reward amount notified")
	return nil
}
