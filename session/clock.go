package session

import "time"

// Clock abstracts time for the engine so the timeout policy is testable
// with a fake clock instead of real sleeps.
type Clock interface {
	// Now returns the current time.
	Now() time.Time

	// Tick returns a channel delivering ticks at the given interval and a
	// stop function releasing it.
	Tick(interval time.Duration) (<-chan time.Time, func())

	// After returns a channel delivering one tick after d.
	After(d time.Duration) <-chan time.Time
}

// realClock is the wall-clock implementation.
type realClock struct{}

// NewClock returns the wall-clock Clock.
func NewClock() Clock { return realClock{} }

func (realClock) Now() time.Time { return time.Now() }

func (realClock) Tick(interval time.Duration) (<-chan time.Time, func()) {
	t := time.NewTicker(interval)
	return t.C, t.Stop
}

func (realClock) After(d time.Duration) <-chan time.Time {
	return time.After(d)
}
