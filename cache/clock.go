package cache

import "time"

// clock yields timestamps carrying a monotonic reading, so ageLimit
// comparisons (via time.Time.Sub) are immune to wall-clock adjustments.
// Swappable in tests.
type clock struct {
	now func() time.Time
}

func newClock() clock {
	return clock{now: time.Now}
}

func (c clock) instant() time.Time {
	return c.now()
}
