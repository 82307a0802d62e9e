package metrics

import (
	"math"

	"github.com/san-kum/hoversim/internal/dynamo"
)

// TrackingError is the integral of absolute error between setpoint and true
// height over the run.
type TrackingError struct {
	name string
	iae  float64
}

func NewTrackingError() *TrackingError {
	return &TrackingError{name: "tracking_error"}
}

func (m *TrackingError) Name() string { return m.name }

func (m *TrackingError) Observe(s dynamo.Sample) {
	m.iae += math.Abs(s.Setpoint-s.Position.Y()) * s.Dt
}

func (m *TrackingError) Value() float64 { return m.iae }
func (m *TrackingError) Reset()         { m.iae = 0 }

// RMSError is the root mean square of the height error per tick.
type RMSError struct {
	name    string
	sumSq   float64
	samples int
}

func NewRMSError() *RMSError {
	return &RMSError{name: "rms_error"}
}

func (m *RMSError) Name() string { return m.name }

func (m *RMSError) Observe(s dynamo.Sample) {
	e := s.Setpoint - s.Position.Y()
	m.sumSq += e * e
	m.samples++
}

func (m *RMSError) Value() float64 {
	if m.samples == 0 {
		return 0
	}
	return math.Sqrt(m.sumSq / float64(m.samples))
}

func (m *RMSError) Reset() {
	m.sumSq = 0
	m.samples = 0
}

// Overshoot is the largest excursion past the setpoint as a fraction of the
// step that led to it. Each setpoint change starts a new step from the
// height at that tick; the worst step is reported.
type Overshoot struct {
	name     string
	started  bool
	start    float64
	setpoint float64
	peak     float64
	worst    float64
}

func NewOvershoot() *Overshoot {
	return &Overshoot{name: "overshoot"}
}

func (o *Overshoot) Name() string { return o.name }

func (o *Overshoot) Observe(s dynamo.Sample) {
	y := s.Position.Y()
	if !o.started || s.Setpoint != o.setpoint {
		o.worst = math.Max(o.worst, o.peak)
		o.start = y
		o.setpoint = s.Setpoint
		o.peak = 0
		o.started = true
		return
	}
	step := o.setpoint - o.start
	if step == 0 {
		return
	}
	o.peak = math.Max(o.peak, (y-o.setpoint)/step)
}

func (o *Overshoot) Value() float64 { return math.Max(o.worst, o.peak) }

func (o *Overshoot) Reset() {
	o.started = false
	o.start, o.setpoint, o.peak, o.worst = 0, 0, 0, 0
}

// Standard is the metric set recorded for every run.
func Standard() []dynamo.Metric {
	return []dynamo.Metric{
		NewTrackingError(),
		NewRMSError(),
		NewOvershoot(),
		NewControlEffort(),
		NewInBounds(),
		NewEnergy(),
	}
}
