// Package token models the fungible-asset and reward-token collaborators as a journaled multi-denom bank.
package token

import (
	"context"
	"fmt"
	"sort"
	"sync"

	sdkmath "cosmossdk.io/math"
	sdk "github.com/cosmos/cosmos-sdk/types"

	"github.com/elys-network/crabfarm/internal/types"
)

// Bank is the fungible asset interface the engine consumes.
type Bank interface {
	Balance(owner, denom string) sdkmath.Int
	Send(ctx context.Context, from, to string, coin sdk.Coin) error
	Mint(ctx context.Context, to string, coin sdk.Coin) error
}

// Journal lets a caller roll back every balance change made since a snapshot.
// It has a single owner: a revert also undoes writes made by anyone else after the snapshot.
type Journal interface {
	Snapshot() int
	RevertToSnapshot(id int)
	// Dirty returns balances changed since the last Commit.
	Dirty() []types.Balance
	// Commit forgets the journal and the dirty set.
	Commit()
}

// JournaledBank is what the engine needs from its custody collaborator.
type JournaledBank interface {
	Bank
	Journal
}

// TransferHook is invoked after every successful Send, outside the bank lock.
// Returning an error fails the Send; the caller is expected to revert.
type TransferHook func(ctx context.Context, from, to string, coin sdk.Coin) error

type balanceKey struct {
	owner string
	denom string
}

type journalEntry struct {
	key  balanceKey
	prev sdkmath.Int
}

// MemBank is an in-memory Bank with a revertible journal.
type MemBank struct {
	mu       sync.RWMutex
	balances map[balanceKey]sdkmath.Int
	journal  []journalEntry
	dirty    map[balanceKey]struct{}
	hooks    []TransferHook
}

var _ JournaledBank = (*MemBank)(nil)

func NewMemBank() *MemBank {
	return &MemBank{
		balances: make(map[balanceKey]sdkmath.Int),
		dirty:    make(map[balanceKey]struct{}),
	}
}

// Load seeds balances without journaling them, e.g. when restoring from a store.
func (b *MemBank) Load(balances []types.Balance) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for _, bal := range balances {
		if bal.Amount.IsNil() {
			continue
		}
		b.balances[balanceKey{owner: bal.Owner, denom: bal.Denom}] = bal.Amount
	}
}

// OnTransfer registers a hook run after each Send.
func (b *MemBank) OnTransfer(h TransferHook) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.hooks = append(b.hooks, h)
}

func (b *MemBank) Balance(owner, denom string) sdkmath.Int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if v, ok := b.balances[balanceKey{owner: owner, denom: denom}]; ok {
		return v
	}
	return sdkmath.ZeroInt()
}

func (b *MemBank) Send(ctx context.Context, from, to string, coin sdk.Coin) error {
	if err := validateCoin(coin); err != nil {
		return err
	}
	if from == "" || to == "" {
		return types.ErrInvalidAddress
	}

	b.mu.Lock()
	fromKey := balanceKey{owner: from, denom: coin.Denom}
	toKey := balanceKey{owner: to, denom: coin.Denom}
	have := b.get(fromKey)
	if have.LT(coin.Amount) {
		b.mu.Unlock()
		return fmt.Errorf("%w: %s has %s%s, needs %s", types.ErrTransferFailed, from, have, coin.Denom, coin.Amount)
	}
	b.set(fromKey, have.Sub(coin.Amount))
	b.set(toKey, b.get(toKey).Add(coin.Amount))
	hooks := append([]TransferHook(nil), b.hooks...)
	b.mu.Unlock()

	for _, h := range hooks {
		if err := h(ctx, from, to, coin); err != nil {
			return fmt.Errorf("%w: transfer hook: %w", types.ErrTransferFailed, err)
		}
	}
	return nil
}

func (b *MemBank) Mint(_ context.Context, to string, coin sdk.Coin) error {
	if err := validateCoin(coin); err != nil {
		return err
	}
	if to == "" {
		return types.ErrInvalidAddress
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	key := balanceKey{owner: to, denom: coin.Denom}
	b.set(key, b.get(key).Add(coin.Amount))
	return nil
}

// Burn removes coins from an account. Used by strategies to model slippage.
func (b *MemBank) Burn(_ context.Context, from string, coin sdk.Coin) error {
	if err := validateCoin(coin); err != nil {
		return err
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	key := balanceKey{owner: from, denom: coin.Denom}
	have := b.get(key)
	if have.LT(coin.Amount) {
		return fmt.Errorf("%w: burn exceeds balance of %s", types.ErrTransferFailed, from)
	}
	b.set(key, have.Sub(coin.Amount))
	return nil
}

func (b *MemBank) Snapshot() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.journal)
}

func (b *MemBank) RevertToSnapshot(id int) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if id < 0 || id > len(b.journal) {
		return
	}
	for i := len(b.journal) - 1; i >= id; i-- {
		entry := b.journal[i]
		if entry.prev.IsNil() {
			delete(b.balances, entry.key)
		} else {
			b.balances[entry.key] = entry.prev
		}
	}
	b.journal = b.journal[:id]
}

func (b *MemBank) Dirty() []types.Balance {
	b.mu.RLock()
	defer b.mu.RUnlock()
	out := make([]types.Balance, 0, len(b.dirty))
	for key := range b.dirty {
		out = append(out, types.Balance{Owner: key.owner, Denom: key.denom, Amount: b.get(key)})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Owner != out[j].Owner {
			return out[i].Owner < out[j].Owner
		}
		return out[i].Denom < out[j].Denom
	})
	return out
}

func (b *MemBank) Commit() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.journal = b.journal[:0]
	b.dirty = make(map[balanceKey]struct{})
}

// Balances returns every non-zero balance, sorted by owner then denom.
func (b *MemBank) Balances() []types.Balance {
	b.mu.RLock()
	defer b.mu.RUnlock()
	out := make([]types.Balance, 0, len(b.balances))
	for key, amount := range b.balances {
		if amount.IsZero() {
			continue
		}
		out = append(out, types.Balance{Owner: key.owner, Denom: key.denom, Amount: amount})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Owner != out[j].Owner {
			return out[i].Owner < out[j].Owner
		}
		return out[i].Denom < out[j].Denom
	})
	return out
}

// get and set must be called with the lock held.
func (b *MemBank) get(key balanceKey) sdkmath.Int {
	if v, ok := b.balances[key]; ok {
		return v
	}
	return sdkmath.ZeroInt()
}

func (b *MemBank) set(key balanceKey, amount sdkmath.Int) {
	prev, ok := b.balances[key]
	if !ok {
		prev = sdkmath.Int{}
	}
	b.journal = append(b.journal, journalEntry{key: key, prev: prev})
	b.dirty[key] = struct{}{}
	b.balances[key] = amount
}

func validateCoin(coin sdk.Coin) error {
	if err := sdk.ValidateDenom(coin.Denom); err != nil {
		return fmt.Errorf("%w: %w", types.ErrInvalidDenom, err)
	}
	if coin.Amount.IsNil() || coin.Amount.IsNegative() {
		return types.ErrInvalidAmount
	}
	return nil
}
