package core

import (
	"sync"
	"time"
)

// Clock is the app's time source. It is injected everywhere a timestamp or a
// calendar day is needed so tests can pin time.
type Clock interface {
	// Now returns the current UTC instant. Within a single process run it never
	// returns an instant earlier than a previously returned one, even if the
	// wall clock is stepped backwards.
	Now() time.Time
	// Today returns the current UTC calendar day (midnight UTC).
	Today() time.Time
}

type realClock struct {
	mu   sync.Mutex
	last time.Time
}

var _ Clock = (*realClock)(nil)

func NewClock() Clock {
	return &realClock{}
}

func (c *realClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := time.Now().UTC()
	if now.Before(c.last) {
		return c.last
	}
	c.last = now
	return now
}

func (c *realClock) Today() time.Time {
	return DateOf(c.Now())
}

// DateOf truncates an instant to its UTC calendar day.
func DateOf(t time.Time) time.Time {
	u := t.UTC()
	return time.Date(u.Year(), u.Month(), u.Day(), 0, 0, 0, 0, time.UTC)
}
