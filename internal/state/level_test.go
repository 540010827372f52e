package state

import (
	"context"
	"testing"
	"time"

	sdkmath "cosmossdk.io/math"
	"github.com/stretchr/testify/require"

	"github.com/elys-network/crabfarm/internal/types"
)

func openTestStore(t *testing.T) *LevelStore {
	t.Helper()
	s, err := OpenMemLevelStore()
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func testPool(id types.PoolID, denom string) types.Pool {
	return types.Pool{
		ID:                id,
		LPToken:           denom,
		AllocPoint:        100,
		LastRewardBlock:   42,
		AccCrabPerShare:   sdkmath.NewInt(123456789),
		DepositFeeBP:      250,
		TotalSharesSupply: sdkmath.NewInt(1000),
		UnderlyingUnit:    sdkmath.NewInt(1_000_000),
		Strategy: types.StrategyBinding{
			Active:  "lending-a",
			Next:    "lending-b",
			ReadyAt: time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC),
			Pending: true,
		},
	}
}

func TestLevelStore_ApplyAndLoad(t *testing.T) {
	ctx := context.Background()
	s := openTestStore(t)

	params, err := s.LoadParams(ctx)
	require.NoError(t, err)
	require.Nil(t, params, "fresh store has no params")

	batch := Batch{
		Params: &types.FarmParams{
			Owner: "owner", DevAddress: "dev", FeeAddress: "fee", RewardDenom: "ucrab",
			RewardPerBlock: sdkmath.NewInt(10), StartBlock: 5, TotalAllocPoint: 200,
		},
		Pools: []types.Pool{testPool(1, "uatom"), testPool(0, "uosmo")},
		Positions: []types.PositionRecord{
			{PositionKey: types.PositionKey{PoolID: 0, User: "alice"}, UserPosition: types.UserPosition{Amount: sdkmath.NewInt(7), RewardDebt: sdkmath.NewInt(3)}},
			{PositionKey: types.PositionKey{PoolID: 1, User: "bob"}, UserPosition: types.UserPosition{Amount: sdkmath.NewInt(9), RewardDebt: sdkmath.ZeroInt()}},
		},
		Balances: []types.Balance{
			{Owner: "vault", Denom: "uatom", Amount: sdkmath.NewInt(500)},
			{Owner: "alice", Denom: "ucrab", Amount: sdkmath.NewInt(12)},
		},
	}
	require.NoError(t, s.Apply(ctx, batch))

	params, err = s.LoadParams(ctx)
	require.NoError(t, err)
	require.Equal(t, "owner", params.Owner)
	require.Equal(t, sdkmath.NewInt(10), params.RewardPerBlock)
	require.Equal(t, uint64(200), params.TotalAllocPoint)

	pools, err := s.LoadPools(ctx)
	require.NoError(t, err)
	require.Len(t, pools, 2)
	require.Equal(t, types.PoolID(0), pools[0].ID, "pools load in id order")
	require.Equal(t, "uatom", pools[1].LPToken)
	require.True(t, pools[1].AccCrabPerShare.Equal(sdkmath.NewInt(123456789)))
	require.True(t, pools[1].Strategy.Pending)
	require.Equal(t, "lending-b", pools[1].Strategy.Next)

	positions, err := s.LoadPositions(ctx)
	require.NoError(t, err)
	require.Len(t, positions, 2)
	require.Equal(t, "alice", positions[0].User)
	require.True(t, positions[0].Amount.Equal(sdkmath.NewInt(7)))
	require.Equal(t, types.PoolID(1), positions[1].PoolID)

	balances, err := s.LoadBalances(ctx)
	require.NoError(t, err)
	require.Len(t, balances, 2)
	byOwner := map[string]types.Balance{}
	for _, b := range balances {
		byOwner[b.Owner] = b
	}
	require.Equal(t, "uatom", byOwner["vault"].Denom)
	require.True(t, byOwner["vault"].Amount.Equal(sdkmath.NewInt(500)))
}

func TestLevelStore_ApplyOverwrites(t *testing.T) {
	ctx := context.Background()
	s := openTestStore(t)

	p := testPool(0, "uatom")
	require.NoError(t, s.Apply(ctx, Batch{Pools: []types.Pool{p}}))
	p.TotalSharesSupply = sdkmath.NewInt(1)
	p.Strategy = types.StrategyBinding{Active: "lending-b"}
	require.NoError(t, s.Apply(ctx, Batch{Pools: []types.Pool{p}}))

	pools, err := s.LoadPools(ctx)
	require.NoError(t, err)
	require.Len(t, pools, 1)
	require.True(t, pools[0].TotalSharesSupply.Equal(sdkmath.OneInt()))
	require.False(t, pools[0].Strategy.Pending)
}

func TestLevelStore_RecentEvents(t *testing.T) {
	ctx := context.Background()
	s := openTestStore(t)

	for i := 1; i <= 5; i++ {
		ev := types.Event{
			ID:     "ev-" + string(rune('0'+i)),
			Kind:   types.EventDeposit,
			Amount: sdkmath.NewInt(int64(i)),
			Block:  uint64(i),
			Tags:   []string{"test"},
		}
		require.NoError(t, s.Apply(ctx, Batch{Events: []types.Event{ev}}))
	}

	events, err := s.RecentEvents(ctx, 3)
	require.NoError(t, err)
	require.Len(t, events, 3)
	require.Equal(t, "ev-5", events[0].ID, "newest first")
	require.Equal(t, "ev-3", events[2].ID)
	require.Equal(t, []string{"test"}, events[0].Tags)
}

func TestLevelStore_EventSequenceRestored(t *testing.T) {
	ctx := context.Background()
	s := openTestStore(t)

	require.NoError(t, s.Apply(ctx, Batch{Events: []types.Event{{ID: "a"}, {ID: "b"}}}))
	require.Equal(t, uint64(2), s.eventSeq)

	reopened, err := newLevelStore(s.db)
	require.NoError(t, err)
	require.Equal(t, uint64(2), reopened.eventSeq)
}

func TestLevelStore_EmptyBatchIsNoop(t *testing.T) {
	s := openTestStore(t)
	require.True(t, Batch{}.Empty())
	require.NoError(t, s.Apply(context.Background(), Batch{}))
	events, err := s.RecentEvents(context.Background(), 0)
	require.NoError(t, err)
	require.Empty(t, events)
}

func TestLevelStore_Snapshots(t *testing.T) {
	ctx := context.Background()
	s := openTestStore(t)
	base := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)

	var snaps []types.PoolSnapshot
	for i := 0; i < 3; i++ {
		for _, pid := range []types.PoolID{0, 1} {
			snaps = append(snaps, types.PoolSnapshot{
				PoolID:            pid,
				Block:             uint64(i),
				Timestamp:         base.Add(time.Duration(i) * time.Minute),
				AccCrabPerShare:   sdkmath.NewInt(int64(i)),
				TotalSharesSupply: sdkmath.NewInt(100),
				DirectBalance:     sdkmath.NewInt(20),
				InvestedBalance:   sdkmath.NewInt(80),
				PricePerFullShare: sdkmath.NewInt(1_000_000_000_000),
			})
		}
	}
	require.NoError(t, s.SaveSnapshots(ctx, snaps))

	got, err := s.RecentSnapshots(ctx, 1, 2)
	require.NoError(t, err)
	require.Len(t, got, 2)
	for _, snap := range got {
		require.Equal(t, types.PoolID(1), snap.PoolID)
	}
	require.Equal(t, uint64(2), got[0].Block, "newest first")
	require.Equal(t, uint64(1), got[1].Block)
	require.NotZero(t, got[0].SnapshotID)
}

func TestSummarizeEvents(t *testing.T) {
	pid := types.PoolID(0)
	events := []types.Event{
		{Kind: types.EventDeposit, PoolID: 0, User: "alice", Amount: sdkmath.NewInt(100), Fee: sdkmath.NewInt(2), Block: 10},
		{Kind: types.EventWithdraw, PoolID: 0, User: "alice", Amount: sdkmath.NewInt(50), Reward: sdkmath.NewInt(7), Block: 12},
		{Kind: types.EventEmergencyWithdraw, PoolID: 0, User: "bob", Amount: sdkmath.NewInt(5), Block: 11},
		{Kind: types.EventDeposit, PoolID: 1, User: "carol", Amount: sdkmath.NewInt(1000), Block: 13},
	}

	sum := SummarizeEvents(events, &pid)
	require.Equal(t, 3, sum.Events)
	require.Equal(t, 2, sum.UniqueUsers)
	require.True(t, sum.Deposited.Equal(sdkmath.NewInt(100)))
	require.True(t, sum.Withdrawn.Equal(sdkmath.NewInt(55)))
	require.True(t, sum.RewardsPaid.Equal(sdkmath.NewInt(7)))
	require.True(t, sum.FeesCollected.Equal(sdkmath.NewInt(2)))
	require.Equal(t, uint64(10), sum.FirstBlock)
	require.Equal(t, uint64(12), sum.LastBlock)

	all := SummarizeEvents(events, nil)
	require.Equal(t, 4, all.Events)
	require.Equal(t, 2, all.ByKind[types.EventDeposit])
}

func TestClampLimit(t *testing.T) {
	require.Equal(t, defaultListLimit, clampLimit(0))
	require.Equal(t, 7, clampLimit(7))
	require.Equal(t, maxListLimit, clampLimit(maxListLimit+1))
}
