package farm

import (
	"fmt"

	sdkmath "cosmossdk.io/math"

	"github.com/elys-network/crabfarm/internal/accumulator"
	"github.com/elys-network/crabfarm/internal/types"
)

// Registry owns the pool list, the per-user positions and the registry-wide parameters.
// It is only touched while the engine lock is held.
type Registry struct {
	params  types.FarmParams
	pools   []*types.Pool
	byAsset map[string]types.PoolID
	users   map[types.PositionKey]*types.UserPosition
}

func newRegistry(params types.FarmParams) *Registry {
	return &Registry{
		params:  params,
		byAsset: make(map[string]types.PoolID),
		users:   make(map[types.PositionKey]*types.UserPosition),
	}
}

func (r *Registry) pool(pid types.PoolID) (*types.Pool, error) {
	if uint64(pid) >= uint64(len(r.pools)) {
		return nil, fmt.Errorf("%w: %d (pool count %d)", types.ErrInvalidPool, pid, len(r.pools))
	}
	return r.pools[pid], nil
}

// position returns the stored position or nil.
func (r *Registry) position(key types.PositionKey) *types.UserPosition {
	return r.users[key]
}

func (r *Registry) addPool(p types.Pool) *types.Pool {
	p.ID = types.PoolID(len(r.pools))
	stored := &p
	r.pools = append(r.pools, stored)
	r.byAsset[p.LPToken] = p.ID
	return stored
}

// truncate drops pools added after the first n.
func (r *Registry) truncate(n int) {
	for _, p := range r.pools[n:] {
		delete(r.byAsset, p.LPToken)
	}
	r.pools = r.pools[:n]
}

func (r *Registry) emission() accumulator.Emission {
	return accumulator.Emission{
		RatePerBlock:    r.params.RewardPerBlock,
		TotalAllocPoint: r.params.TotalAllocPoint,
	}
}

// load replaces the registry contents with persisted records.
func (r *Registry) load(pools []types.Pool, positions []types.PositionRecord) error {
	r.pools = r.pools[:0]
	r.byAsset = make(map[string]types.PoolID, len(pools))
	r.users = make(map[types.PositionKey]*types.UserPosition, len(positions))

	var total uint64
	for i, p := range pools {
		if p.ID != types.PoolID(i) {
			return fmt.Errorf("persisted pools are not contiguous: position %d holds pool %d", i, p.ID)
		}
		if _, dup := r.byAsset[p.LPToken]; dup {
			return fmt.Errorf("%w: %s appears twice in persisted pools", types.ErrDuplicatePool, p.LPToken)
		}
		p := normalizePool(p)
		r.pools = append(r.pools, &p)
		r.byAsset[p.LPToken] = p.ID
		total += p.AllocPoint
	}
	for _, rec := range positions {
		if uint64(rec.PoolID) >= uint64(len(r.pools)) {
			return fmt.Errorf("%w: position for %s references pool %d", types.ErrInvalidPool, rec.User, rec.PoolID)
		}
		pos := normalizePosition(rec.UserPosition)
		r.users[rec.PositionKey] = &pos
	}
	r.params.TotalAllocPoint = total
	return nil
}

func normalizePool(p types.Pool) types.Pool {
	p.AccCrabPerShare = orZero(p.AccCrabPerShare)
	p.TotalSharesSupply = orZero(p.TotalSharesSupply)
	if p.UnderlyingUnit.IsNil() || !p.UnderlyingUnit.IsPositive() {
		p.UnderlyingUnit = sdkmath.OneInt()
	}
	return p
}

func normalizePosition(pos types.UserPosition) types.UserPosition {
	return types.UserPosition{Amount: orZero(pos.Amount), RewardDebt: orZero(pos.RewardDebt)}
}

func zeroPosition() types.UserPosition {
	return types.UserPosition{Amount: sdkmath.ZeroInt(), RewardDebt: sdkmath.ZeroInt()}
}

func orZero(v sdkmath.Int) sdkmath.Int {
	if v.IsNil() {
		return sdkmath.ZeroInt()
	}
	return v
}
