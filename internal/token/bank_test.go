package token

import (
	"context"
	"errors"
	"testing"

	sdkmath "cosmossdk.io/math"
	sdk "github.com/cosmos/cosmos-sdk/types"
	"github.com/stretchr/testify/require"

	"github.com/elys-network/crabfarm/internal/types"
)

func TestMemBank_SendAndRevert(t *testing.T) {
	ctx := context.Background()
	bank := NewMemBank()
	require.NoError(t, bank.Mint(ctx, "alice", sdk.NewInt64Coin("ulp", 100)))
	bank.Commit()

	snap := bank.Snapshot()
	require.NoError(t, SafeSend(ctx, bank, "alice", "bob", sdk.NewInt64Coin("ulp", 40)))
	require.Equal(t, sdkmath.NewInt(60), bank.Balance("alice", "ulp"))
	require.Equal(t, sdkmath.NewInt(40), bank.Balance("bob", "ulp"))
	require.Len(t, bank.Dirty(), 2)

	bank.RevertToSnapshot(snap)
	require.Equal(t, sdkmath.NewInt(100), bank.Balance("alice", "ulp"))
	require.True(t, bank.Balance("bob", "ulp").IsZero())
}

func TestMemBank_InsufficientBalance(t *testing.T) {
	bank := NewMemBank()
	err := bank.Send(context.Background(), "alice", "bob", sdk.NewInt64Coin("ulp", 1))
	require.ErrorIs(t, err, types.ErrTransferFailed)
	require.ErrorIs(t, err, types.ErrExternalCallFailure)
}

func TestMemBank_HookFailureSurfaces(t *testing.T) {
	ctx := context.Background()
	bank := NewMemBank()
	require.NoError(t, bank.Mint(ctx, "alice", sdk.NewInt64Coin("ulp", 10)))
	bank.OnTransfer(func(context.Context, string, string, sdk.Coin) error {
		return errors.New("rejected by receiver")
	})
	err := bank.Send(ctx, "alice", "bob", sdk.NewInt64Coin("ulp", 5))
	require.ErrorIs(t, err, types.ErrTransferFailed)
}

// skimBank delivers one unit less than requested, like a fee-on-transfer token.
type skimBank struct{ *MemBank }

func (s skimBank) Send(ctx context.Context, from, to string, coin sdk.Coin) error {
	if err := s.MemBank.Send(ctx, from, to, coin); err != nil {
		return err
	}
	return s.MemBank.Burn(ctx, to, sdk.NewInt64Coin(coin.Denom, 1))
}

func TestSafeSend_DetectsShortfall(t *testing.T) {
	ctx := context.Background()
	bank := skimBank{NewMemBank()}
	require.NoError(t, bank.Mint(ctx, "alice", sdk.NewInt64Coin("ulp", 10)))
	err := SafeSend(ctx, bank, "alice", "bob", sdk.NewInt64Coin("ulp", 5))
	require.ErrorIs(t, err, types.ErrTransferShortfall)
}

func TestSafeSend_RejectsBadInput(t *testing.T) {
	ctx := context.Background()
	bank := NewMemBank()
	require.NoError(t, SafeSend(ctx, bank, "alice", "bob", sdk.NewInt64Coin("ulp", 0)), "zero sends are skipped")
	require.ErrorIs(t, SafeSend(ctx, bank, "alice", "alice", sdk.NewInt64Coin("ulp", 1)), types.ErrTransferFailed)
	require.ErrorIs(t, bank.Send(ctx, "alice", "bob", Coin("x", sdkmath.NewInt(1))), types.ErrInvalidDenom)
}
