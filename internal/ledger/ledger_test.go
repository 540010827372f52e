package ledger

import (
	"context"
	"errors"
	"testing"

	sdkmath "cosmossdk.io/math"
	"github.com/stretchr/testify/require"

	"github.com/elys-network/crabfarm/internal/types"
)

type fixedBank map[string]sdkmath.Int

func (b fixedBank) Balance(owner, denom string) sdkmath.Int {
	if v, ok := b[owner+"/"+denom]; ok {
		return v
	}
	return sdkmath.ZeroInt()
}

type fixedInvestment struct {
	amount sdkmath.Int
	err    error
}

func (f fixedInvestment) InvestedUnderlyingBalance(context.Context) (sdkmath.Int, error) {
	return f.amount, f.err
}

func TestMeasure_IncludesStrategy(t *testing.T) {
	bank := fixedBank{"vault/ulp": sdkmath.NewInt(20)}
	l, err := Measure(context.Background(), bank, "vault", "ulp", fixedInvestment{amount: sdkmath.NewInt(80)}, sdkmath.NewInt(100))
	require.NoError(t, err)
	require.Equal(t, sdkmath.NewInt(100), l.UnderlyingBalanceWithInvestment())

	noStrategy, err := Measure(context.Background(), bank, "vault", "ulp", nil, sdkmath.NewInt(100))
	require.NoError(t, err)
	require.Equal(t, sdkmath.NewInt(20), noStrategy.UnderlyingBalanceWithInvestment())
}

func TestMeasure_StrategyFailure(t *testing.T) {
	_, err := Measure(context.Background(), fixedBank{}, "vault", "ulp", fixedInvestment{err: errors.New("boom")}, sdkmath.ZeroInt())
	require.ErrorIs(t, err, types.ErrExternalCallFailure)
}

func TestDepositToShares(t *testing.T) {
	cases := []struct {
		name     string
		ledger   Ledger
		amount   int64
		expected int64
		err      error
	}{
		{name: "genesis is 1:1", ledger: Ledger{Direct: sdkmath.ZeroInt(), Invested: sdkmath.ZeroInt(), TotalShares: sdkmath.ZeroInt()}, amount: 100, expected: 100},
		{name: "rate after yield", ledger: Ledger{Direct: sdkmath.NewInt(50), Invested: sdkmath.NewInt(150), TotalShares: sdkmath.NewInt(100)}, amount: 100, expected: 50},
		{name: "floors", ledger: Ledger{Direct: sdkmath.NewInt(3), Invested: sdkmath.ZeroInt(), TotalShares: sdkmath.NewInt(2)}, amount: 2, expected: 1},
		{name: "shares without underlying", ledger: Ledger{Direct: sdkmath.ZeroInt(), Invested: sdkmath.ZeroInt(), TotalShares: sdkmath.NewInt(2)}, amount: 2, err: types.ErrZeroUnderlying},
		{name: "negative", ledger: Ledger{TotalShares: sdkmath.ZeroInt()}, amount: -1, err: types.ErrInvalidAmount},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got, err := tc.ledger.DepositToShares(sdkmath.NewInt(tc.amount))
			if tc.err != nil {
				require.ErrorIs(t, err, tc.err)
				return
			}
			require.NoError(t, err)
			require.Equal(t, sdkmath.NewInt(tc.expected), got)
		})
	}
}

func TestSharesToUnderlying(t *testing.T) {
	l := Ledger{Direct: sdkmath.NewInt(20), Invested: sdkmath.NewInt(80), TotalShares: sdkmath.NewInt(100)}
	got, err := l.SharesToUnderlying(sdkmath.NewInt(50))
	require.NoError(t, err)
	require.Equal(t, sdkmath.NewInt(50), got)

	_, err = Ledger{Direct: sdkmath.NewInt(1), Invested: sdkmath.ZeroInt(), TotalShares: sdkmath.ZeroInt()}.SharesToUnderlying(sdkmath.NewInt(1))
	require.ErrorIs(t, err, types.ErrNoShares)
	require.ErrorIs(t, err, types.ErrPreconditionViolation)
}

func TestRoundTripNeverProfits(t *testing.T) {
	l := Ledger{Direct: sdkmath.NewInt(1_003), Invested: sdkmath.NewInt(7), TotalShares: sdkmath.NewInt(997)}
	for _, amount := range []int64{1, 2, 3, 17, 999, 12_345} {
		in := sdkmath.NewInt(amount)
		shares, err := l.DepositToShares(in)
		require.NoError(t, err)

		after := Ledger{Direct: l.Direct.Add(in), Invested: l.Invested, TotalShares: l.TotalShares.Add(shares)}
		out, err := after.SharesToUnderlying(shares)
		require.NoError(t, err)
		require.True(t, out.LTE(in), "round trip of %d returned %s", amount, out)
	}
}

func TestPricePerFullShare(t *testing.T) {
	require.Equal(t, sdkmath.NewInt(1_000_000_000_000), Ledger{TotalShares: sdkmath.ZeroInt()}.PricePerFullShare())
	l := Ledger{Direct: sdkmath.NewInt(150), Invested: sdkmath.NewInt(50), TotalShares: sdkmath.NewInt(100)}
	require.Equal(t, sdkmath.NewInt(2_000_000_000_000), l.PricePerFullShare())
}
