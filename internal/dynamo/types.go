package dynamo

import (
	"math"

	"github.com/go-gl/mathgl/mgl64"
)

// Kinematics is a read-only snapshot of the true particle state.
type Kinematics struct {
	Position   mgl64.Vec2
	Velocity   mgl64.Vec2
	LastAction mgl64.Vec2
	LastForce  mgl64.Vec2
	// Energy is the plant's mechanical energy, zero if it does not track one.
	Energy float64
}

func (k Kinematics) IsValid() bool {
	for _, v := range [...]float64{k.Position[0], k.Position[1], k.Velocity[0], k.Velocity[1]} {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return false
		}
	}
	return true
}

// Environment is a plant advanced by one real-time step per call.
type Environment interface {
	Reset(initial *mgl64.Vec2) mgl64.Vec2
	Step(action mgl64.Vec2) (mgl64.Vec2, bool)
	SetSetpoint(value float64)
	Kinematics() Kinematics
}

// CheckedEnvironment reports degenerate steps instead of integrating them.
type CheckedEnvironment interface {
	Environment
	StepChecked(action mgl64.Vec2) (mgl64.Vec2, bool, error)
}

type Controller interface {
	Reset(measurement, setpoint float64)
	Update(measured, setpoint float64) float64
}

// CheckedController reports updates before reset and non-positive time steps.
type CheckedController interface {
	Controller
	UpdateChecked(measured, setpoint float64) (float64, error)
}

type Metric interface {
	Name() string
	Observe(s Sample)
	Value() float64
	Reset()
}

type Observer interface {
	OnStep(s Sample)
}

type Configurable interface {
	GetParams() map[string]float64
	SetParam(name string, value float64) error
}

// Sample is everything a driver tick produced.
type Sample struct {
	Step        int
	Time        float64
	Dt          float64
	Position    mgl64.Vec2
	Velocity    mgl64.Vec2
	Observation mgl64.Vec2
	Action      mgl64.Vec2
	Force       mgl64.Vec2
	Setpoint    float64
	Output      float64
	Energy      float64
	Done        bool
}

type Result struct {
	Samples    []Sample
	Metrics    map[string]float64
	StepsTaken int
	Terminated bool
	Errors     []error
}

// Series extracts one scalar per sample.
func (r *Result) Series(f func(Sample) float64) []float64 {
	out := make([]float64, len(r.Samples))
	for i, s := range r.Samples {
		out[i] = f(s)
	}
	return out
}

func (r *Result) Times() []float64 {
	return r.Series(func(s Sample) float64 { return s.Time })
}
