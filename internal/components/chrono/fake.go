package chrono

import (
	"context"
	"sync"
	"time"
)

// FakeClock is an API that never actually blocks, it advances its own time
// by the amount slept and remembers every sleep.
type FakeClock struct {
	mutex  sync.Mutex
	now    time.Time
	Sleeps []time.Duration
}

func NewFakeClock(now time.Time) *FakeClock {
	return &FakeClock{now: now}
}

func (c *FakeClock) Now() time.Time {
	c.mutex.Lock()
	defer c.mutex.Unlock()
	return c.now
}

func (c *FakeClock) Sleep(ctx context.Context, d time.Duration) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	c.mutex.Lock()
	defer c.mutex.Unlock()
	c.now = c.now.Add(d)
	c.Sleeps = append(c.Sleeps, d)
	return nil
}
