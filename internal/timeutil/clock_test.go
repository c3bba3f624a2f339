package timeutil

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

var epoch = time.Date(2024, 3, 1, 6, 0, 0, 0, time.UTC)

func TestRealClock(t *testing.T) {
	var c Clock = RealClock{}
	before := time.Now()
	now := c.Now()
	assert.False(t, now.Before(before))
	assert.GreaterOrEqual(t, c.Since(before), time.Duration(0))
}

func TestMockClock_SetAdvance(t *testing.T) {
	c := NewMockClock(epoch)
	assert.Equal(t, epoch, c.Now())
	assert.Equal(t, epoch, c.Now(), "a plain mock clock does not move by itself")

	c.Advance(90 * time.Second)
	assert.Equal(t, epoch.Add(90*time.Second), c.Now())
	assert.Equal(t, 90*time.Second, c.Since(epoch))

	later := epoch.Add(24 * time.Hour)
	c.Set(later)
	assert.Equal(t, later, c.Now())
}

func TestMockClock_Stepping(t *testing.T) {
	c := NewSteppingClock(epoch, time.Second)
	assert.Equal(t, epoch, c.Now())
	assert.Equal(t, epoch.Add(time.Second), c.Now())
	assert.Equal(t, 2*time.Second, c.Since(epoch))
	assert.Equal(t, 2*time.Second, c.Since(epoch), "Since does not step")
}

func TestMockClock_ConcurrentReadsAreDistinct(t *testing.T) {
	c := NewSteppingClock(epoch, time.Millisecond)

	const n = 50
	seen := make(chan time.Time, n)
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			seen <- c.Now()
		}()
	}
	wg.Wait()
	close(seen)

	uniq := map[time.Time]bool{}
	for ts := range seen {
		uniq[ts] = true
	}
	assert.Len(t, uniq, n)
}
