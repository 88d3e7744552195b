package admission

import (
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/memohai/stowbot/internal/transfer"
)

func TestTryReserveBusyAtCapacity(t *testing.T) {
	t.Parallel()

	c := NewController(3, time.Minute)
	var tokens []*Token
	for i := 0; i < 3; i++ {
		tok, err := c.TryReserve()
		require.NoError(t, err)
		tokens = append(tokens, tok)
	}

	_, err := c.TryReserve()
	require.Error(t, err)
	assert.Equal(t, transfer.KindBusy, transfer.KindOf(err))
	assert.Equal(t, 3, c.InFlight())

	c.Release(tokens[0])
	_, err = c.TryReserve()
	assert.NoError(t, err)
}

func TestReleaseIsIdempotent(t *testing.T) {
	t.Parallel()

	c := NewController(2, time.Minute)
	a, _ := c.TryReserve()
	_, _ = c.TryReserve()

	c.Release(a)
	c.Release(a)
	c.Release(nil)
	assert.Equal(t, 1, c.InFlight())
}

func TestSessionLifecycle(t *testing.T) {
	t.Parallel()

	c := NewController(1, time.Minute)
	tok, err := c.TryReserve()
	require.NoError(t, err)
	c.Register("s1", tok, "payload")
	assert.Equal(t, 1, c.Pending())

	s, ok := c.Consume("s1")
	require.True(t, ok)
	assert.Equal(t, "payload", s.Payload)
	assert.Equal(t, 1, c.InFlight(), "consume keeps the slot")

	_, ok = c.Consume("s1")
	assert.False(t, ok)
	c.Release(s.Token)
	assert.Equal(t, 0, c.InFlight())
}

func TestCancelReleases(t *testing.T) {
	t.Parallel()

	c := NewController(1, time.Minute)
	tok, _ := c.TryReserve()
	c.Register("s1", tok, nil)

	assert.True(t, c.Cancel("s1"))
	assert.False(t, c.Cancel("s1"))
	assert.Equal(t, 0, c.InFlight())
}

func TestSweepExpires(t *testing.T) {
	t.Parallel()

	c := NewController(2, 10*time.Minute)
	base := time.Unix(1_700_000_000, 0)
	c.now = func() time.Time { return base }

	old, _ := c.TryReserve()
	c.Register("old", old, nil)
	c.now = func() time.Time { return base.Add(5 * time.Minute) }
	fresh, _ := c.TryReserve()
	c.Register("fresh", fresh, nil)

	assert.Equal(t, 0, c.Sweep(base.Add(9*time.Minute)))
	assert.Equal(t, 1, c.Sweep(base.Add(10*time.Minute)))
	assert.Equal(t, 1, c.InFlight())
	_, ok := c.Peek("fresh")
	assert.True(t, ok)

	// consumed after expiry race: the token was already released once
	c.Release(old)
	assert.Equal(t, 1, c.InFlight())
}

func TestExpiredSessionIsNotConsumable(t *testing.T) {
	t.Parallel()

	c := NewController(2, time.Minute)
	base := time.Unix(1_700_000_000, 0)
	c.now = func() time.Time { return base }

	a, _ := c.TryReserve()
	c.Register("a", a, nil)
	b, _ := c.TryReserve()
	c.Register("b", b, nil)
	require.Equal(t, 2, c.InFlight())

	c.now = func() time.Time { return base.Add(2 * time.Minute) }

	_, ok := c.Consume("a")
	assert.False(t, ok)
	assert.Equal(t, 1, c.InFlight())

	_, ok = c.Peek("b")
	assert.False(t, ok)
	assert.Equal(t, 0, c.InFlight())
	assert.Equal(t, 0, c.Pending())
	assert.Equal(t, 0, c.Sweep(base.Add(2*time.Minute)))
}

func TestRegisterReplacesAndReleasesPrevious(t *testing.T) {
	t.Parallel()

	c := NewController(2, time.Minute)
	a, _ := c.TryReserve()
	b, _ := c.TryReserve()
	c.Register("s", a, nil)
	c.Register("s", b, nil)
	assert.Equal(t, 1, c.InFlight())
	assert.Equal(t, 1, c.Pending())
}

func TestInFlightNeverExceedsCapacity(t *testing.T) {
	t.Parallel()

	c := NewController(3, time.Minute)
	var peak, current int64
	var wg sync.WaitGroup
	for i := 0; i < 64; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			tok, err := c.TryReserve()
			if err != nil {
				return
			}
			n := atomic.AddInt64(&current, 1)
			for {
				p := atomic.LoadInt64(&peak)
				if n <= p || atomic.CompareAndSwapInt64(&peak, p, n) {
					break
				}
			}
			time.Sleep(time.Millisecond)
			atomic.AddInt64(&current, -1)
			c.Release(tok)
		}()
	}
	wg.Wait()
	assert.LessOrEqual(t, peak, int64(3))
	assert.Equal(t, 0, c.InFlight())
	assert.Equal(t, 3, c.Capacity())
}
