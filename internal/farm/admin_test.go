package farm

import (
	"math"
	"testing"

	sdkmath "cosmossdk.io/math"
	"github.com/stretchr/testify/require"

	"github.com/elys-network/crabfarm/internal/token"
	"github.com/elys-network/crabfarm/internal/types"
)

func TestAddPool_Validation(t *testing.T) {
	h := newHarness(t, 10)
	h.addPool(lp, 100, 0)

	cases := []struct {
		name   string
		caller string
		cfg    PoolConfig
		err    error
	}{
		{name: "not owner", caller: alice, cfg: PoolConfig{LPToken: "uatom"}, err: types.ErrUnauthorized},
		{name: "duplicate asset", caller: owner, cfg: PoolConfig{LPToken: lp}, err: types.ErrDuplicatePool},
		{name: "fee above 100%", caller: owner, cfg: PoolConfig{LPToken: "uatom", DepositFeeBP: 10001}, err: types.ErrInvalidFeeBasisPoints},
		{name: "reward denom", caller: owner, cfg: PoolConfig{LPToken: reward}, err: types.ErrProtectedAsset},
		{name: "bad denom", caller: owner, cfg: PoolConfig{LPToken: "x"}, err: types.ErrInvalidDenom},
		{name: "alloc point overflows total", caller: owner, cfg: PoolConfig{LPToken: "uatom", AllocPoint: math.MaxUint64}, err: types.ErrInvalidAmount},
		{name: "negative unit", caller: owner, cfg: PoolConfig{LPToken: "uatom", UnderlyingUnit: sdkmath.NewInt(-1)}, err: types.ErrInvalidAmount},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := h.engine.AddPool(h.ctx, tc.caller, tc.cfg, false)
			require.ErrorIs(t, err, tc.err)
		})
	}

	n, err := h.engine.PoolLength(h.ctx)
	require.NoError(t, err)
	require.Equal(t, 1, n)

	pid, err := h.engine.AddPool(h.ctx, owner, PoolConfig{LPToken: "uatom", AllocPoint: 50, DepositFeeBP: 10000}, false)
	require.NoError(t, err)
	require.Equal(t, types.PoolID(1), pid)
	require.True(t, h.pool(pid).UnderlyingUnit.Equal(sdkmath.OneInt()))

	params, err := h.engine.Params(h.ctx)
	require.NoError(t, err)
	require.Equal(t, uint64(150), params.TotalAllocPoint)
}

func TestSetPool(t *testing.T) {
	h := newHarness(t, 10)
	pid := h.addPool(lp, 100, 0)
	h.addPool("uatom", 100, 0)

	require.ErrorIs(t, h.engine.SetPool(h.ctx, alice, pid, 1, 0, false), types.ErrUnauthorized)
	require.ErrorIs(t, h.engine.SetPool(h.ctx, owner, 7, 1, 0, false), types.ErrInvalidPool)
	require.ErrorIs(t, h.engine.SetPool(h.ctx, owner, pid, 1, 10001, false), types.ErrInvalidFeeBasisPoints)
	require.ErrorIs(t, h.engine.SetPool(h.ctx, owner, pid, math.MaxUint64-99, 0, false), types.ErrInvalidAmount)
	params, err := h.engine.Params(h.ctx)
	require.NoError(t, err)
	require.Equal(t, uint64(200), params.TotalAllocPoint, "a rejected update leaves the total alone")

	require.NoError(t, h.engine.SetPool(h.ctx, owner, pid, 300, 50, true))
	p := h.pool(pid)
	require.Equal(t, uint64(300), p.AllocPoint)
	require.Equal(t, uint32(50), p.DepositFeeBP)

	params, err = h.engine.Params(h.ctx)
	require.NoError(t, err)
	require.Equal(t, uint64(400), params.TotalAllocPoint)
}

func TestRecipientsAndOwnership(t *testing.T) {
	h := newHarness(t, 10)

	require.ErrorIs(t, h.engine.SetFeeAddress(h.ctx, alice, alice), types.ErrUnauthorized)
	require.NoError(t, h.engine.SetFeeAddress(h.ctx, feeAddr, "newfee"), "the current recipient may hand over")
	require.ErrorIs(t, h.engine.SetFeeAddress(h.ctx, feeAddr, feeAddr), types.ErrUnauthorized)
	require.NoError(t, h.engine.SetFeeAddress(h.ctx, owner, feeAddr))
	require.ErrorIs(t, h.engine.SetFeeAddress(h.ctx, owner, vault), types.ErrInvalidAddress)
	require.ErrorIs(t, h.engine.SetFeeAddress(h.ctx, owner, ""), types.ErrInvalidAddress)

	require.ErrorIs(t, h.engine.SetDevAddress(h.ctx, bob, bob), types.ErrUnauthorized)
	require.NoError(t, h.engine.SetDevAddress(h.ctx, dev, "newdev"))

	require.ErrorIs(t, h.engine.TransferOwnership(h.ctx, alice, alice), types.ErrUnauthorized)
	require.ErrorIs(t, h.engine.TransferOwnership(h.ctx, owner, ""), types.ErrInvalidAddress)
	require.NoError(t, h.engine.TransferOwnership(h.ctx, owner, alice))
	_, err := h.engine.AddPool(h.ctx, owner, PoolConfig{LPToken: lp}, false)
	require.ErrorIs(t, err, types.ErrUnauthorized, "the previous owner lost its rights")
	_, err = h.engine.AddPool(h.ctx, alice, PoolConfig{LPToken: lp}, false)
	require.NoError(t, err)

	params, err := h.engine.Params(h.ctx)
	require.NoError(t, err)
	require.Equal(t, alice, params.Owner)
	require.Equal(t, feeAddr, params.FeeAddress)
	require.Equal(t, "newdev", params.DevAddress)
}

func TestFeesFollowUpdatedRecipients(t *testing.T) {
	h := newHarness(t, 10)
	pid := h.addPool(lp, 100, 1000)
	h.fund(alice, lp, 100)
	h.deposit(pid, alice, 100)

	require.NoError(t, h.engine.SetFeeAddress(h.ctx, owner, "newfee"))
	require.NoError(t, h.engine.SetDevAddress(h.ctx, owner, "newdev"))
	h.fund(bob, lp, 100)
	h.advance(10)
	h.deposit(pid, bob, 100)

	require.True(t, h.balance(feeAddr, lp).Equal(sdkmath.NewInt(10)))
	require.True(t, h.balance("newfee", lp).Equal(sdkmath.NewInt(10)))
	require.True(t, h.balance("newdev", reward).Equal(sdkmath.NewInt(10)))
}

func TestRecoverAsset(t *testing.T) {
	h := newHarness(t, 10)
	pid := h.addPool(lp, 100, 0)
	h.fund(vault, "ustray", 77)
	h.fund(alice, lp, 10)
	h.deposit(pid, alice, 10)

	require.ErrorIs(t, h.engine.RecoverAsset(h.ctx, alice, token.Coin("ustray", sdkmath.NewInt(77)), alice), types.ErrUnauthorized)
	require.ErrorIs(t, h.engine.RecoverAsset(h.ctx, owner, token.Coin(lp, sdkmath.NewInt(10)), owner), types.ErrProtectedAsset)
	require.ErrorIs(t, h.engine.RecoverAsset(h.ctx, owner, token.Coin(reward, sdkmath.NewInt(1)), owner), types.ErrProtectedAsset)
	require.ErrorIs(t, h.engine.RecoverAsset(h.ctx, owner, token.Coin("ustray", sdkmath.ZeroInt()), owner), types.ErrInvalidAmount)
	require.ErrorIs(t, h.engine.RecoverAsset(h.ctx, owner, token.Coin("ustray", sdkmath.NewInt(78)), owner), types.ErrTransferFailed)

	require.NoError(t, h.engine.RecoverAsset(h.ctx, owner, token.Coin("ustray", sdkmath.NewInt(77)), owner))
	require.True(t, h.balance(owner, "ustray").Equal(sdkmath.NewInt(77)))
	require.True(t, h.balance(vault, lp).Equal(sdkmath.NewInt(10)), "pool assets untouched")
}

func TestSnapshots(t *testing.T) {
	h := newHarness(t, 10)
	pid := h.addPool(lp, 100, 0)
	h.addPool("uatom", 100, 0)
	h.fund(alice, lp, 100)
	h.deposit(pid, alice, 100)
	h.advance(4)

	snaps, err := h.engine.Snapshots(h.ctx)
	require.NoError(t, err)
	require.Len(t, snaps, 2)
	require.Equal(t, uint64(104), snaps[0].Block)
	require.True(t, snaps[0].DirectBalance.Equal(sdkmath.NewInt(100)))
	require.True(t, snaps[0].PricePerFullShare.Equal(sdkmath.NewInt(1_000_000_000_000)))
	require.True(t, snaps[1].TotalSharesSupply.IsZero())
}
