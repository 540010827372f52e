package scheduler

import (
	"context"
	"errors"
	"testing"

	sdkmath "cosmossdk.io/math"
	"github.com/stretchr/testify/require"

	"github.com/elys-network/crabfarm/internal/state"
	"github.com/elys-network/crabfarm/internal/types"
)

type fixedSource struct {
	snaps []types.PoolSnapshot
	err   error
}

func (f fixedSource) Snapshots(context.Context) ([]types.PoolSnapshot, error) {
	return f.snaps, f.err
}

func snapshot(pid types.PoolID, block uint64) types.PoolSnapshot {
	return types.PoolSnapshot{
		PoolID:            pid,
		Block:             block,
		AccCrabPerShare:   sdkmath.ZeroInt(),
		TotalSharesSupply: sdkmath.NewInt(100),
		DirectBalance:     sdkmath.NewInt(100),
		InvestedBalance:   sdkmath.ZeroInt(),
		PricePerFullShare: sdkmath.NewInt(1_000_000_000_000),
	}
}

func TestRecordSnapshots(t *testing.T) {
	ctx := context.Background()
	store, err := state.OpenMemLevelStore()
	require.NoError(t, err)
	defer store.Close()

	s := NewScheduler(ctx, fixedSource{snaps: []types.PoolSnapshot{snapshot(0, 10), snapshot(1, 10)}}, store)
	n, err := s.RecordSnapshots(ctx)
	require.NoError(t, err)
	require.Equal(t, 2, n)

	got, err := store.RecentSnapshots(ctx, 1, 5)
	require.NoError(t, err)
	require.Len(t, got, 1)
	require.Equal(t, uint64(10), got[0].Block)
}

func TestRecordSnapshots_Errors(t *testing.T) {
	ctx := context.Background()
	store, err := state.OpenMemLevelStore()
	require.NoError(t, err)
	defer store.Close()

	s := NewScheduler(ctx, fixedSource{err: errors.New("engine busy")}, store)
	_, err = s.RecordSnapshots(ctx)
	require.ErrorContains(t, err, "measure pools")

	s = NewScheduler(ctx, fixedSource{}, store)
	n, err := s.RecordSnapshots(ctx)
	require.NoError(t, err)
	require.Zero(t, n)
}

func TestRegisterSnapshots(t *testing.T) {
	s := NewScheduler(context.Background(), fixedSource{}, nil)
	require.NoError(t, s.RegisterSnapshots("@every 10m"))
	require.NoError(t, s.RegisterSnapshots("*/5 * * * *"))
	require.Error(t, s.RegisterSnapshots("every ten minutes"))
	require.Len(t, s.Cron.Entries(), 2)

	s.Start()
	s.Stop()
}
