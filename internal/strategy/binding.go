package strategy

import (
	"fmt"
	"time"

	"github.com/elys-network/crabfarm/internal/types"
)

// SwitchDelay is the timelock between queueing and finalizing a strategy switch.
const SwitchDelay = 12 * time.Hour

type State int

const (
	NoStrategy State = iota
	Active
	PendingSwitch
)

func (s State) String() string {
	switch s {
	case NoStrategy:
		return "NoStrategy"
	case Active:
		return "Active"
	case PendingSwitch:
		return "PendingSwitch"
	default:
		return fmt.Sprintf("State(%d)", int(s))
	}
}

func StateOf(b types.StrategyBinding) State {
	switch {
	case b.Pending:
		return PendingSwitch
	case b.Active != "":
		return Active
	default:
		return NoStrategy
	}
}

// Queue records next as the pending candidate, ready after delay. Valid from any state;
// a later Queue replaces an earlier candidate and restarts the timelock.
func Queue(b types.StrategyBinding, next string, now time.Time, delay time.Duration) types.StrategyBinding {
	b.Next = next
	b.ReadyAt = now.Add(delay)
	b.Pending = true
	return b
}

// CheckFinalize reports whether expected may replace the active strategy at now.
func CheckFinalize(b types.StrategyBinding, expected string, now time.Time) error {
	if !b.Pending {
		return types.ErrNoPendingStrategy
	}
	if now.Before(b.ReadyAt) {
		return fmt.Errorf("%w: ready at %s", types.ErrTimelockNotElapsed, b.ReadyAt.UTC().Format(time.RFC3339))
	}
	if expected != b.Next {
		return fmt.Errorf("%w: queued %q, got %q", types.ErrStrategyMismatch, b.Next, expected)
	}
	return nil
}

// Finalized is the binding after a successful switch.
func Finalized(b types.StrategyBinding) types.StrategyBinding {
	return types.StrategyBinding{Active: b.Next}
}
