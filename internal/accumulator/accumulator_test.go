package accumulator

import (
	"testing"

	sdkmath "cosmossdk.io/math"
	"github.com/stretchr/testify/require"
)

func TestMultiplier(t *testing.T) {
	require.Equal(t, sdkmath.NewInt(5), Multiplier(10, 15))
	require.True(t, Multiplier(15, 15).IsZero())
	require.True(t, Multiplier(20, 15).IsZero(), "going backwards must not produce a negative multiplier")
}

func TestPoolReward_Truncates(t *testing.T) {
	cases := []struct {
		name       string
		multiplier int64
		rate       int64
		alloc      uint64
		total      uint64
		expected   int64
	}{
		{name: "full allocation", multiplier: 5, rate: 10, alloc: 100, total: 100, expected: 50},
		{name: "one third floors", multiplier: 1, rate: 10, alloc: 1, total: 3, expected: 3},
		{name: "zero alloc", multiplier: 5, rate: 10, alloc: 0, total: 100, expected: 0},
		{name: "zero total", multiplier: 5, rate: 10, alloc: 10, total: 0, expected: 0},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := PoolReward(sdkmath.NewInt(tc.multiplier), sdkmath.NewInt(tc.rate), tc.alloc, tc.total)
			require.Equal(t, sdkmath.NewInt(tc.expected), got)
		})
	}
}

func TestAdvance_SinglePoolScenario(t *testing.T) {
	state := PoolState{LastRewardBlock: 100, AccPerShare: sdkmath.ZeroInt(), AllocPoint: 1000}
	emission := Emission{RatePerBlock: sdkmath.NewInt(10), TotalAllocPoint: 1000}

	r := Advance(state, 105, sdkmath.NewInt(100), emission)

	expectedAcc := sdkmath.NewInt(5 * 10).Mul(AccPrecision).QuoRaw(100)
	require.Equal(t, expectedAcc, r.AccPerShare)
	require.Equal(t, uint64(105), r.LastRewardBlock)
	require.Equal(t, sdkmath.NewInt(50), r.Reward)
	require.Equal(t, sdkmath.NewInt(5), r.ProtocolFee)
	require.Equal(t, sdkmath.NewInt(50), Pending(sdkmath.NewInt(100), r.AccPerShare, sdkmath.ZeroInt()))
}

func TestAdvance_NoElapsedTimeIsNoop(t *testing.T) {
	state := PoolState{LastRewardBlock: 100, AccPerShare: sdkmath.NewInt(7), AllocPoint: 1}
	emission := Emission{RatePerBlock: sdkmath.NewInt(10), TotalAllocPoint: 1}

	for _, now := range []uint64{100, 99, 0} {
		r := Advance(state, now, sdkmath.NewInt(100), emission)
		require.Equal(t, uint64(100), r.LastRewardBlock)
		require.Equal(t, sdkmath.NewInt(7), r.AccPerShare)
		require.False(t, r.Minted())
	}
}

func TestAdvance_EmptyOrUnweightedPoolLosesReward(t *testing.T) {
	emission := Emission{RatePerBlock: sdkmath.NewInt(10), TotalAllocPoint: 100}

	empty := Advance(PoolState{LastRewardBlock: 1, AccPerShare: sdkmath.ZeroInt(), AllocPoint: 100}, 50, sdkmath.ZeroInt(), emission)
	require.Equal(t, uint64(50), empty.LastRewardBlock)
	require.True(t, empty.AccPerShare.IsZero())
	require.False(t, empty.Minted())

	unweighted := Advance(PoolState{LastRewardBlock: 1, AccPerShare: sdkmath.ZeroInt(), AllocPoint: 0}, 50, sdkmath.NewInt(100), emission)
	require.Equal(t, uint64(50), unweighted.LastRewardBlock)
	require.True(t, unweighted.AccPerShare.IsZero())
	require.False(t, unweighted.Minted())
}

func TestAdvance_RefreshCountDoesNotChangeResult(t *testing.T) {
	emission := Emission{RatePerBlock: sdkmath.NewInt(7), TotalAllocPoint: 3}
	supply := sdkmath.NewInt(1_000)
	start := PoolState{LastRewardBlock: 0, AccPerShare: sdkmath.ZeroInt(), AllocPoint: 3}

	once := Advance(start, 12, supply, emission)

	stepped := start
	for _, now := range []uint64{3, 3, 7, 12} {
		r := Advance(stepped, now, supply, emission)
		require.True(t, r.AccPerShare.GTE(stepped.AccPerShare), "accumulator must be monotonic")
		stepped.LastRewardBlock = r.LastRewardBlock
		stepped.AccPerShare = r.AccPerShare
	}
	require.Equal(t, once.AccPerShare, stepped.AccPerShare)
}

func TestPending_NeverNegative(t *testing.T) {
	require.True(t, Pending(sdkmath.NewInt(1), sdkmath.ZeroInt(), sdkmath.NewInt(5)).IsZero())
	require.True(t, Pending(sdkmath.Int{}, sdkmath.Int{}, sdkmath.Int{}).IsZero())
}
