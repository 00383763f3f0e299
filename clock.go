package harberger

import "time"

// Clock supplies the current time to the engine. The host clock must be
// monotonically non-decreasing; a regressing clock makes settlement
// operations fail rather than accrue negative tax.
type Clock interface {
	Now() time.Time
}

// ClockFunc adapts a plain function to a Clock. Tests use it to drive the
// settlement timeline deterministically.
type ClockFunc func() time.Time

// Now implements Clock.
func (f ClockFunc) Now() time.Time { return f() }

type systemClock struct{}

func (systemClock) Now() time.Time { return time.Now().UTC() }
