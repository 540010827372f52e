/*

This file contains the per-user position types and the event log records.

*/

package types

import (
	"time"

	"cosmossdk.io/math"
)

// UserPosition is keyed by pool x user. Amount is denominated in pool shares, not raw deposited tokens.
type UserPosition struct {
	Amount     math.Int `json:"amount"`
	RewardDebt math.Int `json:"reward_debt"` // amount * accCrabPerShare / 1e12 at the last interaction
}

type PositionKey struct {
	PoolID PoolID `json:"pool_id"`
	User   string `json:"user"`
}

// PositionRecord is a UserPosition together with its key, as persisted.
type PositionRecord struct {
	PositionKey
	UserPosition
}

// Balance is a single owner/denom balance of the custody bank.
type Balance struct {
	Owner  string   `json:"owner"`
	Denom  string   `json:"denom"`
	Amount math.Int `json:"amount"`
}

// EventKind identifies what a recorded event describes.
type EventKind string

const (
	EventDeposit             EventKind = "DEPOSIT"
	EventWithdraw            EventKind = "WITHDRAW"
	EventEmergencyWithdraw   EventKind = "EMERGENCY_WITHDRAW"
	EventPoolAdded           EventKind = "POOL_ADDED"
	EventPoolUpdated         EventKind = "POOL_UPDATED"
	EventStrategyQueued      EventKind = "STRATEGY_QUEUED"
	EventStrategyFinalized   EventKind = "STRATEGY_FINALIZED"
	EventEmissionRateUpdated EventKind = "EMISSION_RATE_UPDATED"
	EventFeeAddressUpdated   EventKind = "FEE_ADDRESS_UPDATED"
	EventDevAddressUpdated   EventKind = "DEV_ADDRESS_UPDATED"
	EventOwnershipChanged    EventKind = "OWNERSHIP_CHANGED"
	EventAssetRecovered      EventKind = "ASSET_RECOVERED"
)

// Event is an append-only record of a state-mutating operation.
type Event struct {
	ID        string    `json:"id"`
	Kind      EventKind `json:"kind"`
	PoolID    PoolID    `json:"pool_id"`
	User      string    `json:"user,omitempty"`
	Amount    math.Int  `json:"amount"`           // Underlying moved (deposit gross / withdraw payout)
	Shares    math.Int  `json:"shares"`           // Shares minted or burned
	Reward    math.Int  `json:"reward"`           // Reward token paid out
	Fee       math.Int  `json:"fee"`              // Deposit fee taken
	Detail    string    `json:"detail,omitempty"` // Free-form, e.g. strategy names
	Tags      []string  `json:"tags,omitempty"`
	Block     uint64    `json:"block"`
	Timestamp time.Time `json:"timestamp"`
}
