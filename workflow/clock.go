package workflow

import "time"

// Clock is the single seam for "today". Every classification, sweep, and
// projection samples it exactly once per pass; nothing in this package reads
// time.Now directly. All times are normalized to UTC.
type Clock interface {
	Now() time.Time
}

type SystemClock struct{}

func (SystemClock) Now() time.Time { return time.Now().UTC() }

// FixedClock always reports the same instant. Test seam.
type FixedClock struct {
	T time.Time
}

func (c FixedClock) Now() time.Time { return c.T }
