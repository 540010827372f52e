package strategy

import (
	"context"
	"testing"
	"time"

	sdkmath "cosmossdk.io/math"
	sdk "github.com/cosmos/cosmos-sdk/types"
	"github.com/stretchr/testify/require"

	"github.com/elys-network/crabfarm/internal/token"
	"github.com/elys-network/crabfarm/internal/types"
)

func newLending(t *testing.T, bank *token.MemBank, name string, slippageBP uint32) *Lending {
	t.Helper()
	l, err := NewLending(LendingConfig{
		Name:       name,
		Underlying: "ulp",
		Account:    name + "-account",
		Market:     name + "-market",
		Vault:      "vault",
		SlippageBP: slippageBP,
	}, bank)
	require.NoError(t, err)
	return l
}

func TestBindingStateMachine(t *testing.T) {
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	b := types.StrategyBinding{}
	require.Equal(t, NoStrategy, StateOf(b))

	require.ErrorIs(t, CheckFinalize(b, "", now), types.ErrNoPendingStrategy)

	b = Queue(b, "lend", now, SwitchDelay)
	require.Equal(t, PendingSwitch, StateOf(b))

	err := CheckFinalize(b, "lend", now.Add(SwitchDelay-time.Second))
	require.ErrorIs(t, err, types.ErrTimelockNotElapsed)
	require.ErrorIs(t, err, types.ErrTimelockViolation)

	require.ErrorIs(t, CheckFinalize(b, "other", now.Add(SwitchDelay)), types.ErrStrategyMismatch)
	require.NoError(t, CheckFinalize(b, "lend", now.Add(SwitchDelay)))

	b = Finalized(b)
	require.Equal(t, Active, StateOf(b))
	require.Equal(t, "lend", b.Active)

	// Queueing removal of the strategy goes through the same timelock.
	b = Queue(b, "", now, SwitchDelay)
	require.Equal(t, PendingSwitch, StateOf(b))
	require.Equal(t, "lend", b.Active)
	require.NoError(t, CheckFinalize(b, "", now.Add(SwitchDelay)))
	require.Equal(t, NoStrategy, StateOf(Finalized(b)))
}

func TestDirectory(t *testing.T) {
	bank := token.NewMemBank()
	d := NewDirectory()
	lend := newLending(t, bank, "lend", 0)
	require.NoError(t, d.Register(lend))
	require.Error(t, d.Register(lend))

	got, err := d.Resolve("lend")
	require.NoError(t, err)
	require.Equal(t, lend, got)

	none, err := d.Resolve("")
	require.NoError(t, err)
	require.Nil(t, none)

	_, err = d.Resolve("missing")
	require.ErrorIs(t, err, types.ErrUnknownStrategy)
	require.Equal(t, []string{"lend"}, d.Names())
}

func TestLending_ForwardWithdrawAndSlippage(t *testing.T) {
	ctx := context.Background()
	bank := token.NewMemBank()
	lend := newLending(t, bank, "lend", 100) // 1%
	require.NoError(t, bank.Mint(ctx, "vault", sdk.NewInt64Coin("ulp", 1_000)))

	require.NoError(t, Forward(ctx, bank, "vault", lend))
	require.True(t, bank.Balance("vault", "ulp").IsZero())
	invested, err := lend.InvestedUnderlyingBalance(ctx)
	require.NoError(t, err)
	require.Equal(t, sdkmath.NewInt(1_000), invested)
	require.Equal(t, sdkmath.NewInt(1_000), bank.Balance("lend-market", "ulp"))

	require.NoError(t, lend.Withdraw(ctx, sdkmath.NewInt(500)))
	require.Equal(t, sdkmath.NewInt(495), bank.Balance("vault", "ulp"))

	require.NoError(t, lend.Accrue(ctx, sdkmath.NewInt(100)))
	invested, err = lend.InvestedUnderlyingBalance(ctx)
	require.NoError(t, err)
	require.Equal(t, sdkmath.NewInt(600), invested)

	require.NoError(t, lend.WithdrawAll(ctx))
	require.Equal(t, sdkmath.NewInt(495+594), bank.Balance("vault", "ulp"))
	invested, err = lend.InvestedUnderlyingBalance(ctx)
	require.NoError(t, err)
	require.True(t, invested.IsZero())
}

func TestSwitch_MovesCustody(t *testing.T) {
	ctx := context.Background()
	bank := token.NewMemBank()
	oldStrategy := newLending(t, bank, "old", 0)
	nextStrategy := newLending(t, bank, "next", 0)
	require.NoError(t, bank.Mint(ctx, "vault", sdk.NewInt64Coin("ulp", 300)))
	require.NoError(t, Forward(ctx, bank, "vault", oldStrategy))

	require.NoError(t, Switch(ctx, bank, "vault", oldStrategy, nextStrategy))
	oldBalance, _ := oldStrategy.InvestedUnderlyingBalance(ctx)
	nextBalance, _ := nextStrategy.InvestedUnderlyingBalance(ctx)
	require.True(t, oldBalance.IsZero())
	require.Equal(t, sdkmath.NewInt(300), nextBalance)

	require.NoError(t, Switch(ctx, bank, "vault", nextStrategy, nil))
	require.Equal(t, sdkmath.NewInt(300), bank.Balance("vault", "ulp"))
}

func TestNewLending_Validation(t *testing.T) {
	bank := token.NewMemBank()
	_, err := NewLending(LendingConfig{Name: "x", Underlying: "ulp", Account: "a", Market: "m", Vault: "v", SlippageBP: 10001}, bank)
	require.ErrorIs(t, err, types.ErrInvalidFeeBasisPoints)
	_, err = NewLending(LendingConfig{Name: "x", Underlying: "u", Account: "a", Market: "m", Vault: "v"}, bank)
	require.ErrorIs(t, err, types.ErrInvalidDenom)
	_, err = NewLending(LendingConfig{Underlying: "ulp"}, bank)
	require.ErrorIs(t, err, types.ErrInvalidAddress)
}
