// Package farm is the reward distribution engine: a registry of staking pools, per-user share positions,
// reward accrual and the owner-gated administrative surface.
package farm

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"sync"
	"time"

	sdkmath "cosmossdk.io/math"
	sdk "github.com/cosmos/cosmos-sdk/types"
	"github.com/google/uuid"
	"github.com/petermattis/goid"
	"github.com/rs/zerolog"

	"github.com/elys-network/crabfarm/internal/chain"
	"github.com/elys-network/crabfarm/internal/logger"
	"github.com/elys-network/crabfarm/internal/metrics"
	"github.com/elys-network/crabfarm/internal/state"
	"github.com/elys-network/crabfarm/internal/strategy"
	"github.com/elys-network/crabfarm/internal/token"
	"github.com/elys-network/crabfarm/internal/types"
	"github.com/elys-network/crabfarm/internal/utils"
)

// Config holds the collaborators and initial parameters of an Engine.
type Config struct {
	Bank       token.JournaledBank
	Clock      chain.Clock
	Store      state.Store
	Strategies *strategy.Directory

	// VaultAddress is the bank account holding every pool's direct balance and the reward balance.
	VaultAddress string

	// Initial parameters; ignored when the store already holds parameters.
	Owner          string
	DevAddress     string
	FeeAddress     string
	RewardDenom    string
	RewardPerBlock sdkmath.Int
	StartBlock     uint64

	// SwitchDelay overrides strategy.SwitchDelay when positive.
	SwitchDelay time.Duration
}

// Engine serializes every call on one lock. A call made from inside an engine call (bank hooks, strategies)
// is rejected with ErrReentrantCall, whether it arrives on the goroutine holding the lock or carries the
// tagged context the engine hands its collaborators.
type Engine struct {
	mu sync.RWMutex
	// inside holds the ids of goroutines currently holding mu.
	inside sync.Map

	bank        token.JournaledBank
	clock       chain.Clock
	store       state.Store
	strategies  *strategy.Directory
	vault       string
	switchDelay time.Duration

	reg    *Registry
	logger zerolog.Logger
}

type engineKey struct{}

// NewEngine validates cfg and builds an engine with an empty registry.
func NewEngine(cfg Config) (*Engine, error) {
	if err := validateEngineConfig(cfg); err != nil {
		return nil, fmt.Errorf("engine configuration validation failed: %w", err)
	}
	delay := cfg.SwitchDelay
	if delay <= 0 {
		delay = strategy.SwitchDelay
	}
	e := &Engine{
		bank:        cfg.Bank,
		clock:       cfg.Clock,
		store:       cfg.Store,
		strategies:  cfg.Strategies,
		vault:       cfg.VaultAddress,
		switchDelay: delay,
		reg: newRegistry(types.FarmParams{
			Owner:          cfg.Owner,
			DevAddress:     cfg.DevAddress,
			FeeAddress:     cfg.FeeAddress,
			RewardDenom:    cfg.RewardDenom,
			RewardPerBlock: cfg.RewardPerBlock,
			StartBlock:     cfg.StartBlock,
		}),
		logger: logger.GetForComponent("farm_engine"),
	}
	e.logger.Info().
		Str("owner", cfg.Owner).
		Str("reward_denom", cfg.RewardDenom).
		Str("reward_per_block", cfg.RewardPerBlock.String()).
		Uint64("start_block", cfg.StartBlock).
		Msg("Farm engine created")
	return e, nil
}

func validateEngineConfig(cfg Config) error {
	if cfg.Bank == nil {
		return fmt.Errorf("bank cannot be nil")
	}
	if cfg.Clock == nil {
		return fmt.Errorf("clock cannot be nil")
	}
	if cfg.Store == nil {
		return fmt.Errorf("store cannot be nil")
	}
	if cfg.Strategies == nil {
		return fmt.Errorf("strategy directory cannot be nil")
	}
	if cfg.VaultAddress == "" || cfg.Owner == "" || cfg.DevAddress == "" || cfg.FeeAddress == "" {
		return fmt.Errorf("%w: vault, owner, dev and fee addresses are required", types.ErrInvalidAddress)
	}
	if cfg.FeeAddress == cfg.VaultAddress || cfg.DevAddress == cfg.VaultAddress {
		return fmt.Errorf("%w: fee and dev recipients must differ from the vault", types.ErrInvalidAddress)
	}
	if err := sdk.ValidateDenom(cfg.RewardDenom); err != nil {
		return fmt.Errorf("%w: reward denom: %w", types.ErrInvalidDenom, err)
	}
	if cfg.RewardPerBlock.IsNil() || cfg.RewardPerBlock.IsNegative() {
		return fmt.Errorf("%w: reward per block", types.ErrInvalidAmount)
	}
	return nil
}

// balanceLoader is implemented by banks that can be seeded from persisted balances.
type balanceLoader interface {
	Load(balances []types.Balance)
}

// Restore loads the registry and custody balances from the store. On a fresh store it persists the
// configured parameters instead.
func (e *Engine) Restore(ctx context.Context) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	params, err := e.store.LoadParams(ctx)
	if err != nil {
		return fmt.Errorf("failed to load farm params: %w", err)
	}
	if params == nil {
		if err := e.store.Apply(ctx, state.Batch{Params: &e.reg.params}); err != nil {
			return fmt.Errorf("failed to persist initial farm params: %w", err)
		}
		e.logger.Info().Msg("Fresh store, initial farm parameters persisted")
		return nil
	}

	pools, err := e.store.LoadPools(ctx)
	if err != nil {
		return fmt.Errorf("failed to load pools: %w", err)
	}
	positions, err := e.store.LoadPositions(ctx)
	if err != nil {
		return fmt.Errorf("failed to load positions: %w", err)
	}
	balances, err := e.store.LoadBalances(ctx)
	if err != nil {
		return fmt.Errorf("failed to load balances: %w", err)
	}

	e.reg.params = *params
	e.reg.params.RewardPerBlock = orZero(params.RewardPerBlock)
	if err := e.reg.load(pools, positions); err != nil {
		return err
	}
	if params.TotalAllocPoint != e.reg.params.TotalAllocPoint {
		e.logger.Warn().
			Uint64("persisted", params.TotalAllocPoint).
			Uint64("recomputed", e.reg.params.TotalAllocPoint).
			Msg("Total alloc point recomputed from pools")
	}
	if loader, ok := e.bank.(balanceLoader); ok {
		loader.Load(balances)
	}
	metrics.PoolsRegistered.Set(float64(len(e.reg.pools)))
	for _, p := range e.reg.pools {
		metrics.TotalSharesSupply.WithLabelValues(poolLabel(p.ID)).Set(utils.MetricValue(p.TotalSharesSupply))
	}

	e.logger.Info().
		Int("pools", len(pools)).
		Int("positions", len(positions)).
		Int("balances", len(balances)).
		Str("owner", e.reg.params.Owner).
		Msg("Farm state restored from store")
	return nil
}

// txn records what one call touched so that it can be rolled back or persisted.
type txn struct {
	ctx       context.Context
	op        string
	bankSnap  int
	poolCount int
	params    types.FarmParams
	pools     map[types.PoolID]types.Pool
	poolOrder []types.PoolID
	positions map[types.PositionKey]*types.UserPosition
	posOrder  []types.PositionKey
	events    []types.Event
	block     uint64
	now       time.Time
}

// touchPool saves the pool's pre-call value the first time it is mutated.
func (tx *txn) touchPool(p *types.Pool) {
	if _, seen := tx.pools[p.ID]; seen {
		return
	}
	tx.pools[p.ID] = *p
	tx.poolOrder = append(tx.poolOrder, p.ID)
}

// position returns the user's live position, creating and recording it for rollback.
func (e *Engine) position(tx *txn, key types.PositionKey) *types.UserPosition {
	pos := e.reg.position(key)
	if _, seen := tx.positions[key]; !seen {
		if pos == nil {
			tx.positions[key] = nil
		} else {
			saved := *pos
			tx.positions[key] = &saved
		}
		tx.posOrder = append(tx.posOrder, key)
	}
	if pos == nil {
		fresh := zeroPosition()
		pos = &fresh
		e.reg.users[key] = pos
	}
	return pos
}

// existingPosition is position for users that already hold a record; it returns nil otherwise.
func (e *Engine) existingPosition(tx *txn, key types.PositionKey) *types.UserPosition {
	if e.reg.position(key) == nil {
		return nil
	}
	return e.position(tx, key)
}

func (tx *txn) emit(ev types.Event) {
	ev.ID = uuid.NewString()
	ev.Block = tx.block
	ev.Timestamp = tx.now
	ev.Amount = orZero(ev.Amount)
	ev.Shares = orZero(ev.Shares)
	ev.Reward = orZero(ev.Reward)
	ev.Fee = orZero(ev.Fee)
	tx.events = append(tx.events, ev)
}

// reentrant reports whether ctx or the calling goroutine already belongs to an engine call.
func (e *Engine) reentrant(ctx context.Context) bool {
	if ctx.Value(engineKey{}) == e {
		return true
	}
	_, held := e.inside.Load(goid.Get())
	return held
}

// exec runs fn as one all-or-nothing call.
func (e *Engine) exec(ctx context.Context, op string, fn func(tx *txn) error) (err error) {
	if e.reentrant(ctx) {
		metrics.OperationsTotal.WithLabelValues(op, "reentrant").Inc()
		return fmt.Errorf("%w: %s", types.ErrReentrantCall, op)
	}
	start := time.Now()
	e.mu.Lock()
	defer e.mu.Unlock()
	gid := goid.Get()
	e.inside.Store(gid, struct{}{})
	defer e.inside.Delete(gid)

	tx := &txn{
		ctx:       context.WithValue(ctx, engineKey{}, e),
		op:        op,
		bankSnap:  e.bank.Snapshot(),
		poolCount: len(e.reg.pools),
		params:    e.reg.params,
		pools:     make(map[types.PoolID]types.Pool),
		positions: make(map[types.PositionKey]*types.UserPosition),
		block:     e.clock.BlockHeight(),
		now:       e.clock.Now().UTC(),
	}
	defer func() {
		if p := recover(); p != nil {
			e.rollback(tx)
			panic(p)
		}
		status := "success"
		if err != nil {
			status = "error"
		}
		metrics.OperationsTotal.WithLabelValues(op, status).Inc()
		metrics.OperationDuration.WithLabelValues(op).Observe(time.Since(start).Seconds())
	}()

	if err = fn(tx); err != nil {
		e.rollback(tx)
		e.logger.Debug().Err(err).Str("operation", op).Msg("Call rolled back")
		return err
	}
	if err = e.commit(tx); err != nil {
		e.rollback(tx)
		e.logger.Error().Err(err).Str("operation", op).Msg("Failed to persist call, rolled back")
		return err
	}
	return nil
}

func (e *Engine) rollback(tx *txn) {
	e.bank.RevertToSnapshot(tx.bankSnap)
	for pid, saved := range tx.pools {
		if int(pid) < tx.poolCount {
			restored := saved
			*e.reg.pools[pid] = restored
		}
	}
	e.reg.truncate(tx.poolCount)
	for key, saved := range tx.positions {
		if saved == nil {
			delete(e.reg.users, key)
			continue
		}
		*e.reg.users[key] = *saved
	}
	e.reg.params = tx.params
}

func (e *Engine) commit(tx *txn) error {
	batch := state.Batch{
		Balances: e.bank.Dirty(),
		Events:   tx.events,
	}
	if e.reg.params != tx.params {
		params := e.reg.params
		batch.Params = &params
	}
	for _, pid := range tx.poolOrder {
		batch.Pools = append(batch.Pools, *e.reg.pools[pid])
	}
	for i := tx.poolCount; i < len(e.reg.pools); i++ {
		if _, seen := tx.pools[types.PoolID(i)]; !seen {
			batch.Pools = append(batch.Pools, *e.reg.pools[i])
		}
	}
	for _, key := range tx.posOrder {
		if pos := e.reg.position(key); pos != nil {
			batch.Positions = append(batch.Positions, types.PositionRecord{PositionKey: key, UserPosition: *pos})
		}
	}

	if err := e.store.Apply(tx.ctx, batch); err != nil {
		if !errors.Is(err, types.ErrStoreWrite) {
			err = fmt.Errorf("%w: %w", types.ErrStoreWrite, err)
		}
		return err
	}
	e.bank.Commit()

	for _, p := range batch.Pools {
		metrics.TotalSharesSupply.WithLabelValues(poolLabel(p.ID)).Set(utils.MetricValue(p.TotalSharesSupply))
	}
	metrics.PoolsRegistered.Set(float64(len(e.reg.pools)))
	return nil
}

// read runs fn under the shared lock with a tagged context.
func (e *Engine) read(ctx context.Context, fn func(ctx context.Context) error) error {
	if e.reentrant(ctx) {
		return fmt.Errorf("%w: read during engine call", types.ErrReentrantCall)
	}
	e.mu.RLock()
	defer e.mu.RUnlock()
	gid := goid.Get()
	e.inside.Store(gid, struct{}{})
	defer e.inside.Delete(gid)
	return fn(context.WithValue(ctx, engineKey{}, e))
}

// Atomic runs fn as one engine call. The bank writes fn makes are rolled back when it fails and persisted
// with the call otherwise. fn must use the context it is given for every bank or engine call.
func (e *Engine) Atomic(ctx context.Context, op string, fn func(ctx context.Context) error) error {
	return e.exec(ctx, op, func(tx *txn) error {
		return fn(tx.ctx)
	})
}

func (e *Engine) requireOwner(caller string) error {
	if caller == "" || caller != e.reg.params.Owner {
		return fmt.Errorf("%w: %q is not the owner", types.ErrUnauthorized, caller)
	}
	return nil
}

func poolLabel(pid types.PoolID) string {
	return strconv.FormatUint(uint64(pid), 10)
}
