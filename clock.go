package bindpose

import (
	"time"
)

// FrameClock turns wall-clock time into the per-frame dt seconds a
// controller's Update/GetOutputPose consumes.
type FrameClock struct {
	last time.Time
}

func NewFrameClock() *FrameClock {
	return &FrameClock{last: time.Now()}
}

// Tick returns the seconds elapsed since the previous Tick (or since
// construction for the first call).
func (c *FrameClock) Tick() float32 {
	now := time.Now()
	dt := now.Sub(c.last)
	c.last = now
	return float32(dt.Seconds())
}
