package token

import (
	"context"
	"fmt"

	sdkmath "cosmossdk.io/math"
	sdk "github.com/cosmos/cosmos-sdk/types"

	"github.com/elys-network/crabfarm/internal/types"
)

// SafeSend moves coin and checks that the recipient balance grew by exactly coin.Amount.
// Zero-amount sends are skipped.
func SafeSend(ctx context.Context, bank Bank, from, to string, coin sdk.Coin) error {
	if coin.Amount.IsNil() || coin.Amount.IsZero() {
		return nil
	}
	if from == to {
		return fmt.Errorf("%w: self transfer from %s", types.ErrTransferFailed, from)
	}
	before := bank.Balance(to, coin.Denom)
	if err := bank.Send(ctx, from, to, coin); err != nil {
		return err
	}
	if received := bank.Balance(to, coin.Denom).Sub(before); !received.Equal(coin.Amount) {
		return fmt.Errorf("%w: sent %s%s to %s, received %s", types.ErrTransferShortfall, coin.Amount, coin.Denom, to, received)
	}
	return nil
}

// SafeMint mints coin to the recipient and verifies the balance change.
func SafeMint(ctx context.Context, bank Bank, to string, coin sdk.Coin) error {
	if coin.Amount.IsNil() || coin.Amount.IsZero() {
		return nil
	}
	before := bank.Balance(to, coin.Denom)
	if err := bank.Mint(ctx, to, coin); err != nil {
		return fmt.Errorf("%w: mint: %w", types.ErrExternalCallFailure, err)
	}
	if received := bank.Balance(to, coin.Denom).Sub(before); !received.Equal(coin.Amount) {
		return fmt.Errorf("%w: minted %s%s to %s, received %s", types.ErrTransferShortfall, coin.Amount, coin.Denom, to, received)
	}
	return nil
}

// Coin builds a coin without the panics of sdk.NewCoin on bad input; validation is left to the bank.
func Coin(denom string, amount sdkmath.Int) sdk.Coin {
	return sdk.Coin{Denom: denom, Amount: amount}
}
