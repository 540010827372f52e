/*

This is the pool record kept by the registry. One pool exists per supported underlying asset.

*/

package types

import (
	"time"

	"cosmossdk.io/math"
)

type PoolID uint64

type Pool struct {
	ID                PoolID   `json:"id"`
	LPToken           string   `json:"lp_token"`            // Denom of the underlying asset, immutable
	AllocPoint        uint64   `json:"alloc_point"`         // Weight of this pool in the global emission rate
	LastRewardBlock   uint64   `json:"last_reward_block"`   // Last time-unit the accumulator was refreshed at
	AccCrabPerShare   math.Int `json:"acc_crab_per_share"`  // Cumulative reward per share, scaled by 1e12
	DepositFeeBP      uint32   `json:"deposit_fee_bp"`      // Basis points taken on deposit (0-10000)
	TotalSharesSupply math.Int `json:"total_shares_supply"` // Sum of all users' shares
	UnderlyingUnit    math.Int `json:"underlying_unit"`     // Scale of the underlying asset (informational)

	Strategy StrategyBinding `json:"strategy"`
}

// StrategyBinding is the persisted part of the strategy state machine.
// Active and Next are strategy names; an empty name means no strategy.
type StrategyBinding struct {
	Active  string    `json:"active,omitempty"`
	Next    string    `json:"next,omitempty"`
	ReadyAt time.Time `json:"ready_at,omitempty"`
	Pending bool      `json:"pending"`
}

// FarmParams holds the registry-wide parameters that are mutable by the owner.
type FarmParams struct {
	Owner           string   `json:"owner"`
	DevAddress      string   `json:"dev_address"`
	FeeAddress      string   `json:"fee_address"`
	RewardDenom     string   `json:"reward_denom"`
	RewardPerBlock  math.Int `json:"reward_per_block"`
	StartBlock      uint64   `json:"start_block"`
	TotalAllocPoint uint64   `json:"total_alloc_point"`
}

// PoolSnapshot is a point-in-time view of a pool's accounting, recorded periodically.
type PoolSnapshot struct {
	SnapshotID        int64     `json:"snapshot_id,omitempty"`
	PoolID            PoolID    `json:"pool_id"`
	Block             uint64    `json:"block"`
	Timestamp         time.Time `json:"timestamp"`
	AccCrabPerShare   math.Int  `json:"acc_crab_per_share"`
	TotalSharesSupply math.Int  `json:"total_shares_supply"`
	DirectBalance     math.Int  `json:"direct_balance"`
	InvestedBalance   math.Int  `json:"invested_balance"`
	PricePerFullShare math.Int  `json:"price_per_full_share"`
	Strategy          string    `json:"strategy,omitempty"`
}
