// ./internal/state/parameters_store.go
package state

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/lib/pq"
	"github.com/rs/zerolog/log"

	"github.com/elys-network/crabfarm/internal/types"
)

// Apply writes a committed engine call in one transaction.
func (s *PostgresStore) Apply(ctx context.Context, batch Batch) (err error) {
	if batch.Empty() {
		return nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("%w: failed to begin transaction: %w", types.ErrStoreWrite, err)
	}
	defer func() {
		if p := recover(); p != nil {
			tx.Rollback()
			panic(p) // Re-panic after rollback
		} else if err != nil {
			tx.Rollback()
		}
	}()

	if batch.Params != nil {
		if err = upsertParams(ctx, tx, *batch.Params); err != nil {
			return err
		}
	}
	for _, p := range batch.Pools {
		if err = upsertPool(ctx, tx, p); err != nil {
			return err
		}
	}
	for _, rec := range batch.Positions {
		_, err = tx.ExecContext(ctx, `
			INSERT INTO user_positions (pool_id, user_id, amount, reward_debt, updated_at)
			VALUES ($1, $2, $3, $4, CURRENT_TIMESTAMP)
			ON CONFLICT (pool_id, user_id) DO UPDATE SET
				amount = EXCLUDED.amount,
				reward_debt = EXCLUDED.reward_debt,
				updated_at = CURRENT_TIMESTAMP;`,
			int64(rec.PoolID), rec.User, intString(rec.Amount), intString(rec.RewardDebt))
		if err != nil {
			return fmt.Errorf("%w: failed to upsert position %d/%s: %w", types.ErrStoreWrite, rec.PoolID, rec.User, err)
		}
	}
	for _, bal := range batch.Balances {
		_, err = tx.ExecContext(ctx, `
			INSERT INTO balances (owner, denom, amount) VALUES ($1, $2, $3)
			ON CONFLICT (owner, denom) DO UPDATE SET amount = EXCLUDED.amount;`,
			bal.Owner, bal.Denom, intString(bal.Amount))
		if err != nil {
			return fmt.Errorf("%w: failed to upsert balance %s/%s: %w", types.ErrStoreWrite, bal.Owner, bal.Denom, err)
		}
	}
	for _, ev := range batch.Events {
		_, err = tx.ExecContext(ctx, `
			INSERT INTO events (event_id, kind, pool_id, user_id, amount, shares, reward, fee, detail, tags, block, event_timestamp)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12);`,
			ev.ID, string(ev.Kind), int64(ev.PoolID), ev.User,
			intString(ev.Amount), intString(ev.Shares), intString(ev.Reward), intString(ev.Fee),
			ev.Detail, pq.Array(ev.Tags), int64(ev.Block), ev.Timestamp)
		if err != nil {
			return fmt.Errorf("%w: failed to insert event %s: %w", types.ErrStoreWrite, ev.ID, err)
		}
	}

	if err = tx.Commit(); err != nil {
		return fmt.Errorf("%w: failed to commit transaction: %w", types.ErrStoreWrite, err)
	}
	log.Debug().
		Int("pools", len(batch.Pools)).
		Int("positions", len(batch.Positions)).
		Int("events", len(batch.Events)).
		Msg("Batch applied to database")
	return nil
}

func upsertParams(ctx context.Context, tx *sql.Tx, p types.FarmParams) error {
	_, err := tx.ExecContext(ctx, `
		INSERT INTO farm_params (id, owner, dev_address, fee_address, reward_denom, reward_per_block, start_block, total_alloc_point, updated_at)
		VALUES (1, $1, $2, $3, $4, $5, $6, $7, CURRENT_TIMESTAMP)
		ON CONFLICT (id) DO UPDATE SET
			owner = EXCLUDED.owner,
			dev_address = EXCLUDED.dev_address,
			fee_address = EXCLUDED.fee_address,
			reward_denom = EXCLUDED.reward_denom,
			reward_per_block = EXCLUDED.reward_per_block,
			start_block = EXCLUDED.start_block,
			total_alloc_point = EXCLUDED.total_alloc_point,
			updated_at = CURRENT_TIMESTAMP;`,
		p.Owner, p.DevAddress, p.FeeAddress, p.RewardDenom, intString(p.RewardPerBlock),
		int64(p.StartBlock), int64(p.TotalAllocPoint))
	if err != nil {
		return fmt.Errorf("%w: failed to upsert farm params: %w", types.ErrStoreWrite, err)
	}
	return nil
}

func upsertPool(ctx context.Context, tx *sql.Tx, p types.Pool) error {
	var readyAt sql.NullTime
	if !p.Strategy.ReadyAt.IsZero() {
		readyAt = sql.NullTime{Time: p.Strategy.ReadyAt, Valid: true}
	}
	_, err := tx.ExecContext(ctx, `
		INSERT INTO pools (
			pool_id, lp_token, alloc_point, last_reward_block, acc_crab_per_share, deposit_fee_bp,
			total_shares_supply, underlying_unit, strategy_active, strategy_next, strategy_ready_at, strategy_pending, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, CURRENT_TIMESTAMP)
		ON CONFLICT (pool_id) DO UPDATE SET
			alloc_point = EXCLUDED.alloc_point,
			last_reward_block = EXCLUDED.last_reward_block,
			acc_crab_per_share = EXCLUDED.acc_crab_per_share,
			deposit_fee_bp = EXCLUDED.deposit_fee_bp,
			total_shares_supply = EXCLUDED.total_shares_supply,
			underlying_unit = EXCLUDED.underlying_unit,
			strategy_active = EXCLUDED.strategy_active,
			strategy_next = EXCLUDED.strategy_next,
			strategy_ready_at = EXCLUDED.strategy_ready_at,
			strategy_pending = EXCLUDED.strategy_pending,
			updated_at = CURRENT_TIMESTAMP;`,
		int64(p.ID), p.LPToken, int64(p.AllocPoint), int64(p.LastRewardBlock), intString(p.AccCrabPerShare),
		int(p.DepositFeeBP), intString(p.TotalSharesSupply), intString(p.UnderlyingUnit),
		p.Strategy.Active, p.Strategy.Next, readyAt, p.Strategy.Pending)
	if err != nil {
		return fmt.Errorf("%w: failed to upsert pool %d: %w", types.ErrStoreWrite, p.ID, err)
	}
	return nil
}

// LoadParams returns nil when the registry has never been persisted.
func (s *PostgresStore) LoadParams(ctx context.Context) (*types.FarmParams, error) {
	var (
		p                      types.FarmParams
		rewardPerBlock         string
		startBlock, totalAlloc int64
	)
	err := s.db.QueryRowContext(ctx, `
		SELECT owner, dev_address, fee_address, reward_denom, reward_per_block::TEXT, start_block, total_alloc_point
		FROM farm_params WHERE id = 1;`,
	).Scan(&p.Owner, &p.DevAddress, &p.FeeAddress, &p.RewardDenom, &rewardPerBlock, &startBlock, &totalAlloc)
	if errors.Is(err, sql.ErrNoRows) {
		log.Warn().Msg("No farm parameters found in database")
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query farm params: %w", err)
	}
	if p.RewardPerBlock, err = parseInt("reward_per_block", rewardPerBlock); err != nil {
		return nil, err
	}
	p.StartBlock = uint64(startBlock)
	p.TotalAllocPoint = uint64(totalAlloc)
	return &p, nil
}

func (s *PostgresStore) LoadPools(ctx context.Context) ([]types.Pool, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT pool_id, lp_token, alloc_point, last_reward_block, acc_crab_per_share::TEXT, deposit_fee_bp,
			total_shares_supply::TEXT, underlying_unit::TEXT, strategy_active, strategy_next, strategy_ready_at, strategy_pending
		FROM pools ORDER BY pool_id ASC;`)
	if err != nil {
		return nil, fmt.Errorf("failed to query pools: %w", err)
	}
	defer rows.Close()

	var pools []types.Pool
	for rows.Next() {
		var (
			p                          types.Pool
			id, alloc, lastReward      int64
			feeBP                      int
			acc, totalShares, unitText string
			readyAt                    sql.NullTime
		)
		if err := rows.Scan(&id, &p.LPToken, &alloc, &lastReward, &acc, &feeBP,
			&totalShares, &unitText, &p.Strategy.Active, &p.Strategy.Next, &readyAt, &p.Strategy.Pending); err != nil {
			return nil, fmt.Errorf("failed to scan pool row: %w", err)
		}
		p.ID = types.PoolID(id)
		p.AllocPoint = uint64(alloc)
		p.LastRewardBlock = uint64(lastReward)
		p.DepositFeeBP = uint32(feeBP)
		if readyAt.Valid {
			p.Strategy.ReadyAt = readyAt.Time.UTC()
		}
		if p.AccCrabPerShare, err = parseInt("acc_crab_per_share", acc); err != nil {
			return nil, err
		}
		if p.TotalSharesSupply, err = parseInt("total_shares_supply", totalShares); err != nil {
			return nil, err
		}
		if p.UnderlyingUnit, err = parseInt("underlying_unit", unitText); err != nil {
			return nil, err
		}
		pools = append(pools, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating pool rows: %w", err)
	}
	return pools, nil
}

func (s *PostgresStore) LoadPositions(ctx context.Context) ([]types.PositionRecord, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT pool_id, user_id, amount::TEXT, reward_debt::TEXT
		FROM user_positions ORDER BY pool_id ASC, user_id ASC;`)
	if err != nil {
		return nil, fmt.Errorf("failed to query positions: %w", err)
	}
	defer rows.Close()

	var out []types.PositionRecord
	for rows.Next() {
		var (
			rec          types.PositionRecord
			id           int64
			amount, debt string
		)
		if err := rows.Scan(&id, &rec.User, &amount, &debt); err != nil {
			return nil, fmt.Errorf("failed to scan position row: %w", err)
		}
		rec.PoolID = types.PoolID(id)
		if rec.Amount, err = parseInt("amount", amount); err != nil {
			return nil, err
		}
		if rec.RewardDebt, err = parseInt("reward_debt", debt); err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

func (s *PostgresStore) LoadBalances(ctx context.Context) ([]types.Balance, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT owner, denom, amount::TEXT FROM balances ORDER BY owner, denom;`)
	if err != nil {
		return nil, fmt.Errorf("failed to query balances: %w", err)
	}
	defer rows.Close()

	var out []types.Balance
	for rows.Next() {
		var (
			bal    types.Balance
			amount string
		)
		if err := rows.Scan(&bal.Owner, &bal.Denom, &amount); err != nil {
			return nil, fmt.Errorf("failed to scan balance row: %w", err)
		}
		if bal.Amount, err = parseInt("amount", amount); err != nil {
			return nil, err
		}
		out = append(out, bal)
	}
	return out, rows.Err()
}

func toUTC(t time.Time) time.Time { return t.UTC() }
