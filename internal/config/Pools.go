package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"

	sdkmath "cosmossdk.io/math"
	sdk "github.com/cosmos/cosmos-sdk/types"
	"github.com/rs/zerolog/log"
	"gopkg.in/yaml.v3"

	"github.com/elys-network/crabfarm/internal/utils"
)

// Bootstrap is the optional YAML file that seeds pools, lending strategies and exchange rates. Pools and
// balances are only applied to a fresh store; strategies and rates are registered on every start.
type Bootstrap struct {
	Pools         []PoolSpec     `yaml:"pools"`
	Strategies    []StrategySpec `yaml:"strategies"`
	ExchangeRates []RateSpec     `yaml:"exchange_rates"`
	Balances      []BalanceSpec  `yaml:"balances"`
}

type PoolSpec struct {
	LPToken        string `yaml:"lp_token"`
	AllocPoint     uint64 `yaml:"alloc_point"`
	DepositFeeBP   uint32 `yaml:"deposit_fee_bp"`
	UnderlyingUnit string `yaml:"underlying_unit"`
	// Strategy is queued right after the pool is added; it still has to be finalized after the timelock.
	Strategy string `yaml:"strategy"`
}

type StrategySpec struct {
	Name       string `yaml:"name"`
	Underlying string `yaml:"underlying"`
	Account    string `yaml:"account"`
	Market     string `yaml:"market"`
	SlippageBP uint32 `yaml:"slippage_bp"`
}

// BalanceSpec mints an initial balance, for development networks.
type BalanceSpec struct {
	Owner  string `yaml:"owner"`
	Denom  string `yaml:"denom"`
	Amount string `yaml:"amount"`
}

type RateSpec struct {
	In   string `yaml:"in"`
	Out  string `yaml:"out"`
	Rate string `yaml:"rate"`
}

// LoadBootstrap reads and validates a bootstrap file. Unknown keys are rejected.
func LoadBootstrap(path string) (*Bootstrap, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read pools file %s: %w", path, err)
	}
	b, err := ParseBootstrap(raw)
	if err != nil {
		return nil, fmt.Errorf("pools file %s: %w", path, err)
	}
	log.Info().
		Str("path", path).
		Int("pools", len(b.Pools)).
		Int("strategies", len(b.Strategies)).
		Int("rates", len(b.ExchangeRates)).
		Msg("Loaded pool bootstrap file")
	return b, nil
}

func ParseBootstrap(raw []byte) (*Bootstrap, error) {
	var b Bootstrap
	dec := yaml.NewDecoder(bytes.NewReader(raw))
	dec.KnownFields(true)
	if err := dec.Decode(&b); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("failed to parse yaml: %w", err)
	}
	if err := b.Validate(); err != nil {
		return nil, err
	}
	return &b, nil
}

// Validate checks what can be checked without an engine: denoms, fee ranges, references and duplicates.
func (b *Bootstrap) Validate() error {
	strategies := make(map[string]StrategySpec, len(b.Strategies))
	for i, s := range b.Strategies {
		if s.Name == "" {
			return fmt.Errorf("strategies[%d]: name is required", i)
		}
		if _, dup := strategies[s.Name]; dup {
			return fmt.Errorf("strategies[%d]: duplicate name %q", i, s.Name)
		}
		if err := sdk.ValidateDenom(s.Underlying); err != nil {
			return fmt.Errorf("strategies[%d]: %w", i, err)
		}
		if s.SlippageBP > MaxDepositFeeBP {
			return fmt.Errorf("strategies[%d]: slippage_bp %d above %d", i, s.SlippageBP, MaxDepositFeeBP)
		}
		strategies[s.Name] = s
	}

	seen := make(map[string]bool, len(b.Pools))
	for i, p := range b.Pools {
		if err := sdk.ValidateDenom(p.LPToken); err != nil {
			return fmt.Errorf("pools[%d]: %w", i, err)
		}
		if seen[p.LPToken] {
			return fmt.Errorf("pools[%d]: duplicate lp_token %q", i, p.LPToken)
		}
		seen[p.LPToken] = true
		if p.DepositFeeBP > MaxDepositFeeBP {
			return fmt.Errorf("pools[%d]: deposit_fee_bp %d above %d", i, p.DepositFeeBP, MaxDepositFeeBP)
		}
		if _, err := p.Unit(); err != nil {
			return fmt.Errorf("pools[%d]: %w", i, err)
		}
		if p.Strategy != "" {
			s, ok := strategies[p.Strategy]
			if !ok {
				return fmt.Errorf("pools[%d]: unknown strategy %q", i, p.Strategy)
			}
			if s.Underlying != p.LPToken {
				return fmt.Errorf("pools[%d]: strategy %q manages %s, not %s", i, s.Name, s.Underlying, p.LPToken)
			}
		}
	}

	for i, r := range b.ExchangeRates {
		if _, err := r.Dec(); err != nil {
			return fmt.Errorf("exchange_rates[%d]: %w", i, err)
		}
	}

	for i, bal := range b.Balances {
		if _, err := bal.Coin(); err != nil {
			return fmt.Errorf("balances[%d]: %w", i, err)
		}
	}
	return nil
}

// Unit parses underlying_unit; empty means the engine default.
func (p PoolSpec) Unit() (sdkmath.Int, error) {
	if p.UnderlyingUnit == "" {
		return sdkmath.Int{}, nil
	}
	unit, ok := sdkmath.NewIntFromString(p.UnderlyingUnit)
	if !ok || !unit.IsPositive() {
		return sdkmath.Int{}, fmt.Errorf("underlying_unit must be a positive integer, got %q", p.UnderlyingUnit)
	}
	return unit, nil
}

func (r RateSpec) Dec() (sdkmath.LegacyDec, error) {
	if err := sdk.ValidateDenom(r.In); err != nil {
		return sdkmath.LegacyDec{}, err
	}
	if err := sdk.ValidateDenom(r.Out); err != nil {
		return sdkmath.LegacyDec{}, err
	}
	rate, err := sdkmath.LegacyNewDecFromStr(r.Rate)
	if err != nil {
		return sdkmath.LegacyDec{}, fmt.Errorf("rate %q: %w", r.Rate, err)
	}
	if !rate.IsPositive() {
		return sdkmath.LegacyDec{}, fmt.Errorf("rate %q must be positive", r.Rate)
	}
	return rate, nil
}

func (b BalanceSpec) Coin() (sdk.Coin, error) {
	if b.Owner == "" {
		return sdk.Coin{}, errors.New("owner is required")
	}
	if err := sdk.ValidateDenom(b.Denom); err != nil {
		return sdk.Coin{}, err
	}
	amount, err := utils.ParseAmount(b.Amount)
	if err != nil {
		return sdk.Coin{}, err
	}
	if amount.IsZero() {
		return sdk.Coin{}, fmt.Errorf("amount must be positive, got %q", b.Amount)
	}
	return sdk.Coin{Denom: b.Denom, Amount: amount}, nil
}
