package backtest

import "fmt"

// Clock is the simulated session clock. It holds a single 17-digit wire
// stamp and only ever moves forward; the engine treats the value as an
// opaque ordered integer.
type Clock struct {
	now int64
}

func NewClock(start int64) *Clock {
	return &Clock{now: start}
}

func (c *Clock) Now() int64 {
	return c.now
}

// AdvanceTo moves the clock to ts. Backward targets are rejected and
// leave the clock unchanged.
func (c *Clock) AdvanceTo(ts int64) error {
	if ts < c.now {
		return fmt.Errorf("%w: %d is before current time %d", ErrClockRegression, ts, c.now)
	}
	c.now = ts
	return nil
}
