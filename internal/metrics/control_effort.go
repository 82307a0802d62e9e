package metrics

import (
	"math"

	"github.com/san-kum/hoversim/internal/dynamo"
)

// ControlEffort is the time-weighted mean of |thrust| after clamping, i.e.
// the actuator impulse per second. Samples without a time step count once
// each.
type ControlEffort struct {
	impulse  float64
	duration float64
	sum      float64
	count    int
}

func NewControlEffort() *ControlEffort { return &ControlEffort{} }

func (c *ControlEffort) Name() string { return "control_effort" }

func (c *ControlEffort) Observe(s dynamo.Sample) {
	u := math.Abs(s.Action.Y())
	c.sum += u
	c.count++
	if s.Dt > 0 {
		c.impulse += u * s.Dt
		c.duration += s.Dt
	}
}

func (c *ControlEffort) Value() float64 {
	switch {
	case c.duration > 0:
		return c.impulse / c.duration
	case c.count > 0:
		return c.sum / float64(c.count)
	}
	return 0
}

func (c *ControlEffort) Reset() { *c = ControlEffort{} }
