package state

import (
	"context"
	"fmt"

	sdkmath "cosmossdk.io/math"
	"github.com/lib/pq"
	"github.com/rs/zerolog/log"

	"github.com/elys-network/crabfarm/internal/types"
)

// EventSummary represents aggregated activity over a window of events
type EventSummary struct {
	Events        int                     `json:"events"`
	ByKind        map[types.EventKind]int `json:"by_kind"`
	Deposited     sdkmath.Int             `json:"deposited"`
	Withdrawn     sdkmath.Int             `json:"withdrawn"`
	RewardsPaid   sdkmath.Int             `json:"rewards_paid"`
	FeesCollected sdkmath.Int             `json:"fees_collected"`
	UniqueUsers   int                     `json:"unique_users"`
	FirstBlock    uint64                  `json:"first_block"`
	LastBlock     uint64                  `json:"last_block"`
}

// SummarizeEvents aggregates events, optionally restricted to one pool.
func SummarizeEvents(events []types.Event, poolID *types.PoolID) EventSummary {
	sum := EventSummary{
		ByKind:        make(map[types.EventKind]int),
		Deposited:     sdkmath.ZeroInt(),
		Withdrawn:     sdkmath.ZeroInt(),
		RewardsPaid:   sdkmath.ZeroInt(),
		FeesCollected: sdkmath.ZeroInt(),
	}
	users := make(map[string]struct{})
	for _, ev := range events {
		if poolID != nil && ev.PoolID != *poolID {
			continue
		}
		sum.Events++
		sum.ByKind[ev.Kind]++
		if ev.User != "" {
			users[ev.User] = struct{}{}
		}
		switch ev.Kind {
		case types.EventDeposit:
			sum.Deposited = sum.Deposited.Add(orZero(ev.Amount))
			sum.FeesCollected = sum.FeesCollected.Add(orZero(ev.Fee))
			sum.RewardsPaid = sum.RewardsPaid.Add(orZero(ev.Reward))
		case types.EventWithdraw:
			sum.Withdrawn = sum.Withdrawn.Add(orZero(ev.Amount))
			sum.RewardsPaid = sum.RewardsPaid.Add(orZero(ev.Reward))
		case types.EventEmergencyWithdraw:
			sum.Withdrawn = sum.Withdrawn.Add(orZero(ev.Amount))
		}
		if sum.FirstBlock == 0 || ev.Block < sum.FirstBlock {
			sum.FirstBlock = ev.Block
		}
		if ev.Block > sum.LastBlock {
			sum.LastBlock = ev.Block
		}
	}
	sum.UniqueUsers = len(users)
	return sum
}

func orZero(v sdkmath.Int) sdkmath.Int {
	if v.IsNil() {
		return sdkmath.ZeroInt()
	}
	return v
}

// RecentEvents retrieves the newest events first.
func (s *PostgresStore) RecentEvents(ctx context.Context, limit int) ([]types.Event, error) {
	query := `
		SELECT
			event_id, kind, pool_id, user_id, amount::TEXT, shares::TEXT, reward::TEXT, fee::TEXT,
			detail, tags, block, event_timestamp
		FROM events
		ORDER BY seq DESC
		LIMIT $1
	`

	rows, err := s.db.QueryContext(ctx, query, clampLimit(limit))
	if err != nil {
		log.Error().Err(err).Msg("Failed to query recent events")
		return nil, fmt.Errorf("failed to query recent events: %w", err)
	}
	defer rows.Close()

	var events []types.Event
	for rows.Next() {
		var (
			ev                          types.Event
			kind                        string
			poolID, block               int64
			amount, shares, reward, fee string
			tags                        pq.StringArray
		)
		if err := rows.Scan(&ev.ID, &kind, &poolID, &ev.User, &amount, &shares, &reward, &fee,
			&ev.Detail, &tags, &block, &ev.Timestamp); err != nil {
			log.Error().Err(err).Msg("Failed to scan event row")
			return nil, fmt.Errorf("failed to scan event row: %w", err)
		}
		ev.Kind = types.EventKind(kind)
		ev.PoolID = types.PoolID(poolID)
		ev.Block = uint64(block)
		ev.Timestamp = toUTC(ev.Timestamp)
		if len(tags) > 0 {
			ev.Tags = []string(tags)
		}
		if ev.Amount, err = parseInt("amount", amount); err != nil {
			return nil, err
		}
		if ev.Shares, err = parseInt("shares", shares); err != nil {
			return nil, err
		}
		if ev.Reward, err = parseInt("reward", reward); err != nil {
			return nil, err
		}
		if ev.Fee, err = parseInt("fee", fee); err != nil {
			return nil, err
		}
		events = append(events, ev)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating event rows: %w", err)
	}
	return events, nil
}
