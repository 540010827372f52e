// ./internal/state/snapshot_store.go
package state

import (
	"context"
	"fmt"

	"github.com/rs/zerolog/log"

	"github.com/elys-network/crabfarm/internal/types"
)

// SaveSnapshots records one row per pool in a single transaction.
func (s *PostgresStore) SaveSnapshots(ctx context.Context, snapshots []types.PoolSnapshot) (err error) {
	if len(snapshots) == 0 {
		return nil
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("%w: failed to begin transaction: %w", types.ErrStoreWrite, err)
	}
	defer func() {
		if err != nil {
			tx.Rollback()
		}
	}()

	query := `
		INSERT INTO pool_snapshots (
			pool_id, block, snapshot_timestamp, acc_crab_per_share, total_shares_supply,
			direct_balance, invested_balance, price_per_full_share, strategy
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		RETURNING snapshot_id;
	`
	for _, snap := range snapshots {
		var snapshotID int64
		err = tx.QueryRowContext(ctx, query,
			int64(snap.PoolID), int64(snap.Block), snap.Timestamp,
			intString(snap.AccCrabPerShare), intString(snap.TotalSharesSupply),
			intString(snap.DirectBalance), intString(snap.InvestedBalance),
			intString(snap.PricePerFullShare), snap.Strategy,
		).Scan(&snapshotID)
		if err != nil {
			return fmt.Errorf("%w: failed to save snapshot for pool %d: %w", types.ErrStoreWrite, snap.PoolID, err)
		}
		log.Debug().
			Int64("snapshot_id", snapshotID).
			Uint64("pool_id", uint64(snap.PoolID)).
			Msg("Pool snapshot saved to database")
	}
	if err = tx.Commit(); err != nil {
		return fmt.Errorf("%w: failed to commit snapshots: %w", types.ErrStoreWrite, err)
	}
	return nil
}

// RecentSnapshots returns the newest snapshots of one pool first.
func (s *PostgresStore) RecentSnapshots(ctx context.Context, poolID types.PoolID, limit int) ([]types.PoolSnapshot, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT snapshot_id, pool_id, block, snapshot_timestamp, acc_crab_per_share::TEXT, total_shares_supply::TEXT,
			direct_balance::TEXT, invested_balance::TEXT, price_per_full_share::TEXT, strategy
		FROM pool_snapshots
		WHERE pool_id = $1
		ORDER BY snapshot_timestamp DESC
		LIMIT $2;`, int64(poolID), clampLimit(limit))
	if err != nil {
		log.Error().Err(err).Msg("Failed to query pool snapshots")
		return nil, fmt.Errorf("failed to query pool snapshots: %w", err)
	}
	defer rows.Close()

	var out []types.PoolSnapshot
	for rows.Next() {
		var (
			snap                                types.PoolSnapshot
			id, block                           int64
			acc, shares, direct, invested, ppfs string
		)
		if err := rows.Scan(&snap.SnapshotID, &id, &block, &snap.Timestamp, &acc, &shares,
			&direct, &invested, &ppfs, &snap.Strategy); err != nil {
			return nil, fmt.Errorf("failed to scan snapshot row: %w", err)
		}
		snap.PoolID = types.PoolID(id)
		snap.Block = uint64(block)
		snap.Timestamp = toUTC(snap.Timestamp)
		if snap.AccCrabPerShare, err = parseInt("acc_crab_per_share", acc); err != nil {
			return nil, err
		}
		if snap.TotalSharesSupply, err = parseInt("total_shares_supply", shares); err != nil {
			return nil, err
		}
		if snap.DirectBalance, err = parseInt("direct_balance", direct); err != nil {
			return nil, err
		}
		if snap.InvestedBalance, err = parseInt("invested_balance", invested); err != nil {
			return nil, err
		}
		if snap.PricePerFullShare, err = parseInt("price_per_full_share", ppfs); err != nil {
			return nil, err
		}
		out = append(out, snap)
	}
	return out, rows.Err()
}
