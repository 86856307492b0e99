package testutil

import (
	"sync"
	"time"
)

// Epoch is the first instant a FixedClock reports.
var Epoch = time.Date(2024, time.January, 1, 0, 0, 0, 0, time.UTC)

// FixedClock is a deterministic wall clock for tests.
//
// Every call to Now advances the clock by Step, starting at Epoch, so
// timestamps written to the journal are reproducible.
//
// Thread-safety: All methods are safe for concurrent use via internal mutex.
type FixedClock struct {
	mu   sync.Mutex
	next time.Time
	Step time.Duration
}

// NewFixedClock creates a clock starting at Epoch that advances one second per call.
func NewFixedClock() *FixedClock {
	return &FixedClock{next: Epoch, Step: time.Second}
}

// Now returns the current instant and advances the clock.
func (c *FixedClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	now := c.next
	c.next = c.next.Add(c.Step)
	return now
}

// Reset rewinds the clock to Epoch.
func (c *FixedClock) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.next = Epoch
}
