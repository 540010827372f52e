// Package chain provides the monotonic time-unit counter and wall clock the engine gates on.
package chain

import (
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
)

// Clock is queried at call time; nothing in the engine is scheduled on it.
type Clock interface {
	// BlockHeight is the current time-unit. Never decreases.
	BlockHeight() uint64
	Now() time.Time
}

// BlockClock derives a block height from elapsed wall time: one block per blockTime since genesis.
type BlockClock struct {
	mu            sync.Mutex
	clock         clockwork.Clock
	genesis       time.Time
	genesisHeight uint64
	blockTime     time.Duration
	last          uint64
}

// NewBlockClock starts counting at genesisHeight from the clock's current time.
func NewBlockClock(clock clockwork.Clock, blockTime time.Duration, genesisHeight uint64) *BlockClock {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	if blockTime <= 0 {
		blockTime = time.Second
	}
	return &BlockClock{
		clock:         clock,
		genesis:       clock.Now(),
		genesisHeight: genesisHeight,
		blockTime:     blockTime,
		last:          genesisHeight,
	}
}

func (c *BlockClock) BlockHeight() uint64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	elapsed := c.clock.Since(c.genesis)
	if elapsed < 0 {
		return c.last
	}
	h := c.genesisHeight + uint64(elapsed/c.blockTime)
	if h > c.last {
		c.last = h
	}
	return c.last
}

func (c *BlockClock) Now() time.Time {
	return c.clock.Now()
}
