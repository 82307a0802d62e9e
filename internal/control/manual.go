package control

import (
	"math"
	"sync/atomic"
)

// ManualController returns whatever output was last set, ignoring the
// measurement. The live view uses it for hand-flown thrust.
type ManualController struct {
	bits atomic.Uint64
}

func NewManual(initial float64) *ManualController {
	m := &ManualController{}
	m.Set(initial)
	return m
}

func (m *ManualController) Set(output float64) {
	m.bits.Store(math.Float64bits(output))
}

func (m *ManualController) Nudge(delta float64) {
	m.Set(m.Output() + delta)
}

func (m *ManualController) Output() float64 {
	return math.Float64frombits(m.bits.Load())
}

func (m *ManualController) Reset(measurement, setpoint float64) {}

func (m *ManualController) Update(measured, setpoint float64) float64 {
	return m.Output()
}
