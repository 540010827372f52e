// ./internal/state/store.go
package state

import (
	"context"
	"fmt"

	sdkmath "cosmossdk.io/math"

	"github.com/elys-network/crabfarm/internal/types"
)

// Batch is everything one committed engine call changed. Stores apply it atomically.
type Batch struct {
	Params    *types.FarmParams
	Pools     []types.Pool
	Positions []types.PositionRecord
	Balances  []types.Balance
	Events    []types.Event
}

// Empty reports whether the batch carries nothing to write.
func (b Batch) Empty() bool {
	return b.Params == nil && len(b.Pools) == 0 && len(b.Positions) == 0 && len(b.Balances) == 0 && len(b.Events) == 0
}

// Store persists the ledger: pool list, user positions keyed by (poolId, userId), custody balances,
// the event log and periodic pool snapshots.
type Store interface {
	Apply(ctx context.Context, batch Batch) error

	LoadParams(ctx context.Context) (*types.FarmParams, error)
	LoadPools(ctx context.Context) ([]types.Pool, error)
	LoadPositions(ctx context.Context) ([]types.PositionRecord, error)
	LoadBalances(ctx context.Context) ([]types.Balance, error)

	RecentEvents(ctx context.Context, limit int) ([]types.Event, error)

	SaveSnapshots(ctx context.Context, snapshots []types.PoolSnapshot) error
	RecentSnapshots(ctx context.Context, poolID types.PoolID, limit int) ([]types.PoolSnapshot, error)

	Ping(ctx context.Context) error
	Close() error
}

const (
	defaultListLimit = 20
	maxListLimit     = 500
)

func clampLimit(limit int) int {
	if limit <= 0 {
		return defaultListLimit
	}
	if limit > maxListLimit {
		return maxListLimit
	}
	return limit
}

func parseInt(column, raw string) (sdkmath.Int, error) {
	v, ok := sdkmath.NewIntFromString(raw)
	if !ok {
		return sdkmath.Int{}, fmt.Errorf("column %s: invalid integer %q", column, raw)
	}
	return v, nil
}

func intString(v sdkmath.Int) string {
	if v.IsNil() {
		return "0"
	}
	return v.String()
}
