/*

This file contains the default parameters for the farm.

Emission constants live with the code that applies them (accumulator, strategy); they are re-exported here so
operators find every tunable in one place.

*/

package config

import (
	"time"

	sdkmath "cosmossdk.io/math"

	"github.com/elys-network/crabfarm/internal/accumulator"
	"github.com/elys-network/crabfarm/internal/strategy"
)

const (
	BackendLevelDB  = "leveldb"
	BackendPostgres = "postgres"

	DefaultRewardDenom      = "ucrab"
	DefaultVaultAddress     = "crabfarm-vault"
	DefaultBlockTime        = 3 * time.Second
	DefaultSnapshotSchedule = "@every 10m"

	// MaxDepositFeeBP is 100%.
	MaxDepositFeeBP = 10000

	BonusMultiplier    = accumulator.BonusMultiplier
	ProtocolFeeDivisor = accumulator.ProtocolFeeDivisor

	// StrategySwitchDelay between QueueStrategy and FinalizeStrategy.
	StrategySwitchDelay = strategy.SwitchDelay
)

var (
	// DefaultRewardPerBlock is 10 reward base units per block.
	DefaultRewardPerBlock = sdkmath.NewInt(10)

	// AccPrecision is the fixed-point scale of the per-share accumulator.
	AccPrecision = accumulator.AccPrecision
)
