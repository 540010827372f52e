package chain

import (
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/require"
)

func TestBlockClock_AdvancesWithTime(t *testing.T) {
	fake := clockwork.NewFakeClock()
	c := NewBlockClock(fake, 3*time.Second, 100)
	require.Equal(t, uint64(100), c.BlockHeight())

	fake.Advance(2 * time.Second)
	require.Equal(t, uint64(100), c.BlockHeight())

	fake.Advance(time.Second)
	require.Equal(t, uint64(101), c.BlockHeight())

	fake.Advance(30 * time.Second)
	require.Equal(t, uint64(111), c.BlockHeight())
	require.Equal(t, fake.Now(), c.Now())
}
