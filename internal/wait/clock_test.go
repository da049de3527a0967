package wait

import (
	"sync"
	"time"

	"github.com/juju/clock"
)

// steppingClock advances instantly whenever someone sleeps on it
type steppingClock struct {
	clock.Clock

	mu     sync.Mutex
	now    time.Time
	sleeps []time.Duration
}

func newSteppingClock() *steppingClock {
	return &steppingClock{now: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)}
}

func (c *steppingClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *steppingClock) After(d time.Duration) <-chan time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
	c.sleeps = append(c.sleeps, d)
	ch := make(chan time.Time, 1)
	ch <- c.now
	return ch
}

// advance moves time forward without counting a sleep, as a slow probe would
func (c *steppingClock) advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

func (c *steppingClock) Sleeps() []time.Duration {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]time.Duration(nil), c.sleeps...)
}

// stuckClock never wakes a sleeper
type stuckClock struct {
	*steppingClock
}

func (c *stuckClock) After(time.Duration) <-chan time.Time {
	return make(chan time.Time)
}
