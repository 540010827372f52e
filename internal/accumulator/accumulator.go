// Package accumulator holds the fixed-point reward-per-share arithmetic.
// Every function here is pure: callers pass the pool state in and apply the result themselves,
// so a read-only pending query and a real refresh go through exactly the same code.
package accumulator

import (
	sdkmath "cosmossdk.io/math"
)

const (
	// BonusMultiplier scales elapsed time-units. Kept at 1.
	BonusMultiplier = 1
	// ProtocolFeeDivisor: the protocol-fee recipient is minted reward / ProtocolFeeDivisor on top of the pool reward.
	ProtocolFeeDivisor = 10
)

// AccPrecision is the fixed-point scale of accCrabPerShare.
var AccPrecision = sdkmath.NewInt(1_000_000_000_000)

// PoolState is the accumulator part of a pool.
type PoolState struct {
	LastRewardBlock uint64
	AccPerShare     sdkmath.Int
	AllocPoint      uint64
}

// Emission describes the global emission the pool draws from.
type Emission struct {
	RatePerBlock    sdkmath.Int
	TotalAllocPoint uint64
}

// Refresh is the outcome of bringing a pool's accumulator up to a given time-unit.
type Refresh struct {
	LastRewardBlock uint64
	AccPerShare     sdkmath.Int
	Reward          sdkmath.Int // credited to the pool's reward balance
	ProtocolFee     sdkmath.Int // minted to the protocol-fee recipient
}

// Minted reports whether the refresh mints anything.
func (r Refresh) Minted() bool {
	return r.Reward.IsPositive()
}

// Multiplier returns the elapsed time-units between from and to, scaled by BonusMultiplier.
func Multiplier(from, to uint64) sdkmath.Int {
	if to <= from {
		return sdkmath.ZeroInt()
	}
	return sdkmath.NewIntFromUint64(to - from).MulRaw(BonusMultiplier)
}

// PoolReward is multiplier * rate * poolAlloc / totalAlloc, truncated.
func PoolReward(multiplier, ratePerBlock sdkmath.Int, poolAlloc, totalAlloc uint64) sdkmath.Int {
	if totalAlloc == 0 || poolAlloc == 0 {
		return sdkmath.ZeroInt()
	}
	return multiplier.
		Mul(ratePerBlock).
		Mul(sdkmath.NewIntFromUint64(poolAlloc)).
		Quo(sdkmath.NewIntFromUint64(totalAlloc))
}

// Advance computes the refresh of state up to now.
//
// lpSupply is the underlying balance held directly by the engine for the pool. When it is zero, or the
// pool carries no allocation, the accumulator only moves lastRewardBlock forward and nothing is minted.
func Advance(state PoolState, now uint64, lpSupply sdkmath.Int, emission Emission) Refresh {
	acc := orZero(state.AccPerShare)
	out := Refresh{
		LastRewardBlock: state.LastRewardBlock,
		AccPerShare:     acc,
		Reward:          sdkmath.ZeroInt(),
		ProtocolFee:     sdkmath.ZeroInt(),
	}
	if now <= state.LastRewardBlock {
		return out
	}
	out.LastRewardBlock = now

	supply := orZero(lpSupply)
	if !supply.IsPositive() || state.AllocPoint == 0 || emission.TotalAllocPoint == 0 {
		return out
	}

	reward := PoolReward(Multiplier(state.LastRewardBlock, now), orZero(emission.RatePerBlock), state.AllocPoint, emission.TotalAllocPoint)
	if !reward.IsPositive() {
		return out
	}
	out.Reward = reward
	out.ProtocolFee = reward.QuoRaw(ProtocolFeeDivisor)
	out.AccPerShare = acc.Add(reward.Mul(AccPrecision).Quo(supply))
	return out
}

// Accrued is amount * acc / 1e12.
func Accrued(amount, accPerShare sdkmath.Int) sdkmath.Int {
	return orZero(amount).Mul(orZero(accPerShare)).Quo(AccPrecision)
}

// Pending is the reward owed to a position: amount * acc / 1e12 - rewardDebt.
// Never negative: acc only grows, so a negative value can only come from a corrupted record.
func Pending(amount, accPerShare, rewardDebt sdkmath.Int) sdkmath.Int {
	p := Accrued(amount, accPerShare).Sub(orZero(rewardDebt))
	if p.IsNegative() {
		return sdkmath.ZeroInt()
	}
	return p
}

func orZero(v sdkmath.Int) sdkmath.Int {
	if v.IsNil() {
		return sdkmath.ZeroInt()
	}
	return v
}
