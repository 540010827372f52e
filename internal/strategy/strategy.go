// Package strategy defines the external yield-strategy contract, the per-pool binding state machine,
// and the fund movements that go with binding changes.
package strategy

import (
	"context"
	"fmt"
	"sort"
	"sync"

	sdkmath "cosmossdk.io/math"

	"github.com/elys-network/crabfarm/internal/token"
	"github.com/elys-network/crabfarm/internal/types"
)

// Strategy is an external, untrusted yield source holding a pool's underlying.
// The engine never trusts return values for balance changes; it re-reads balances after each call.
type Strategy interface {
	// Name identifies the strategy in pool bindings.
	Name() string
	// Underlying is the denom the strategy accepts.
	Underlying() string
	// Account is where the engine forwards funds before calling Invest.
	Account() string
	Invest(ctx context.Context) error
	// Withdraw returns amount of underlying to the vault.
	Withdraw(ctx context.Context, amount sdkmath.Int) error
	// WithdrawAll returns everything to the vault.
	WithdrawAll(ctx context.Context) error
	InvestedUnderlyingBalance(ctx context.Context) (sdkmath.Int, error)
}

// Directory maps strategy names to implementations.
type Directory struct {
	mu     sync.RWMutex
	byName map[string]Strategy
}

func NewDirectory() *Directory {
	return &Directory{byName: make(map[string]Strategy)}
}

func (d *Directory) Register(s Strategy) error {
	if s == nil || s.Name() == "" {
		return fmt.Errorf("%w: strategy must have a name", types.ErrPreconditionViolation)
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	if _, exists := d.byName[s.Name()]; exists {
		return fmt.Errorf("%w: strategy %q already registered", types.ErrPreconditionViolation, s.Name())
	}
	d.byName[s.Name()] = s
	return nil
}

// Resolve returns nil for the empty name.
func (d *Directory) Resolve(name string) (Strategy, error) {
	if name == "" {
		return nil, nil
	}
	d.mu.RLock()
	defer d.mu.RUnlock()
	s, ok := d.byName[name]
	if !ok {
		return nil, fmt.Errorf("%w: %q", types.ErrUnknownStrategy, name)
	}
	return s, nil
}

func (d *Directory) Names() []string {
	d.mu.RLock()
	defer d.mu.RUnlock()
	names := make([]string, 0, len(d.byName))
	for name := range d.byName {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Forward sends the vault's whole direct balance of the strategy's underlying to it and invests.
func Forward(ctx context.Context, bank token.Bank, vault string, s Strategy) error {
	idle := bank.Balance(vault, s.Underlying())
	if idle.IsPositive() {
		if err := token.SafeSend(ctx, bank, vault, s.Account(), token.Coin(s.Underlying(), idle)); err != nil {
			return fmt.Errorf("forward to strategy %s: %w", s.Name(), err)
		}
	}
	if err := s.Invest(ctx); err != nil {
		return fmt.Errorf("%w: %s invest: %w", types.ErrStrategyCall, s.Name(), err)
	}
	return nil
}

// Switch moves custody from old to next: old returns everything to the vault, then next receives it.
// Either side may be nil.
func Switch(ctx context.Context, bank token.Bank, vault string, old, next Strategy) error {
	if old != nil {
		if err := old.WithdrawAll(ctx); err != nil {
			return fmt.Errorf("%w: %s withdrawAll: %w", types.ErrStrategyCall, old.Name(), err)
		}
	}
	if next != nil {
		return Forward(ctx, bank, vault, next)
	}
	return nil
}
