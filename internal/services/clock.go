package services

import (
	"sync"
	"time"
)

// MonotonicClock never returns a time earlier than one it already returned, even if the
// wall clock is stepped backwards.
type MonotonicClock struct {
	mu   sync.Mutex
	last time.Time
	now  func() time.Time
}

func NewMonotonicClock() *MonotonicClock {
	return &MonotonicClock{now: time.Now}
}

func (c *MonotonicClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()

	t := c.now()
	if t.Before(c.last) {
		return c.last
	}
	c.last = t
	return t
}
