package physics

import (
	"fmt"
	"math"
	"time"

	"github.com/go-gl/mathgl/mgl64"
	"github.com/san-kum/hoversim/internal/dynamo"
)

const (
	DefaultGravity   = 9.8
	DefaultMass      = 0.6
	DefaultRadius    = 1.0
	DefaultSpringK   = 100.0
	DefaultFriction  = 0.0
	DefaultEdge      = 10.0
	DefaultMinThrust = 0.1 * DefaultGravity
	DefaultMaxThrust = 1.5 * DefaultGravity

	// sensor readings per meter
	sensorScale = 10.0
)

// ParticleEnv is a point particle above a springy floor, pushed by an
// actuator force and observed through a noisy, coarse position sensor.
//
// The exported constants may be rewritten between steps; no validation is
// applied and out-of-range values propagate into the next step.
type ParticleEnv struct {
	Gravity   float64
	Mass      float64
	Radius    float64
	K         float64
	Mu        float64
	Edge      float64
	SensorStd float64

	// ClampThrust limits the vertical actuator force to [MinThrust, MaxThrust]
	// and records each clamped value in History.
	ClampThrust bool
	MinThrust   float64
	MaxThrust   float64
	History     *History

	position   mgl64.Vec2
	velocity   mgl64.Vec2
	lastAction mgl64.Vec2
	lastForce  mgl64.Vec2
	setpoint   float64
	dt         float64

	t0    time.Time
	ready bool

	clock dynamo.Clock
	noise NormalSource
}

// NewParticleEnv builds an environment with the reference constants and
// thrust clamping enabled. A nil clock reads wall time; a nil noise source
// uses Box-Muller over a time-seeded generator.
func NewParticleEnv(sensorStd float64, clock dynamo.Clock, noise NormalSource) *ParticleEnv {
	if clock == nil {
		clock = dynamo.WallClock{}
	}
	if noise == nil {
		noise = NewBoxMullerSeeded(time.Now().UnixNano())
	}
	return &ParticleEnv{
		Gravity:     DefaultGravity,
		Mass:        DefaultMass,
		Radius:      DefaultRadius,
		K:           DefaultSpringK,
		Mu:          DefaultFriction,
		Edge:        DefaultEdge,
		SensorStd:   sensorStd,
		ClampThrust: true,
		MinThrust:   DefaultMinThrust,
		MaxThrust:   DefaultMaxThrust,
		History:     NewHistory(DefaultHistorySize),
		clock:       clock,
		noise:       noise,
	}
}

// Reset places the particle at initial, or resting on the floor at twice its
// radius when initial is nil, and returns the first observation.
func (e *ParticleEnv) Reset(initial *mgl64.Vec2) mgl64.Vec2 {
	e.position = mgl64.Vec2{0, 2 * e.Radius}
	if initial != nil {
		e.position = *initial
	}
	e.velocity = mgl64.Vec2{}
	e.t0 = e.clock.Now()
	e.ready = true
	return e.Observe()
}

// SetSetpoint records the controller target for renderers. It has no
// physical effect.
func (e *ParticleEnv) SetSetpoint(value float64) { e.setpoint = value }

func (e *ParticleEnv) Setpoint() float64 { return e.setpoint }

// Step advances the particle by the wall time elapsed since the previous
// Step or Reset. A zero or negative elapsed time is integrated as is.
func (e *ParticleEnv) Step(action mgl64.Vec2) (mgl64.Vec2, bool) {
	t1 := e.clock.Now()
	dt := dynamo.Elapsed(e.t0, t1)
	e.t0 = t1
	return e.advance(action, dt)
}

// StepChecked is Step with the degenerate cases surfaced. On error the
// state and time reference are left untouched.
func (e *ParticleEnv) StepChecked(action mgl64.Vec2) (mgl64.Vec2, bool, error) {
	if !e.ready {
		return mgl64.Vec2{}, true, dynamo.ErrInvalidState
	}
	t1 := e.clock.Now()
	dt := dynamo.Elapsed(e.t0, t1)
	if dt <= 0 {
		return mgl64.Vec2{}, false, fmt.Errorf("%w: dt=%g", dynamo.ErrNonPositiveTimeStep, dt)
	}
	e.t0 = t1
	obs, done := e.advance(action, dt)
	return obs, done, nil
}

func (e *ParticleEnv) advance(action mgl64.Vec2, dt float64) (mgl64.Vec2, bool) {
	e.dt = dt

	if e.ClampThrust {
		action[1] = dynamo.Clamp(action[1], e.MinThrust, e.MaxThrust)
		if e.History != nil {
			e.History.Push(action[1])
		}
	}
	e.lastAction = action

	e.lastForce = e.netForce(action)

	acc := mgl64.Vec2{e.lastForce[0] / e.Mass, e.lastForce[1] / e.Mass}
	// velocity first, then position with the updated velocity
	e.velocity = e.velocity.Add(acc.Mul(dt))
	e.position = e.position.Add(e.velocity.Mul(dt))

	obs := e.Observe()
	return obs, !e.InBounds()
}

func (e *ParticleEnv) netForce(action mgl64.Vec2) mgl64.Vec2 {
	force := mgl64.Vec2{0, -e.Gravity * e.Mass}

	// the floor only pushes up
	if e.position[1] < e.Radius {
		force[1] -= e.K * (e.position[1] - e.Radius)
	}

	force[0] -= e.Mu * e.velocity[0]
	force[1] -= e.Mu * e.velocity[1]

	return force.Add(action)
}

// InBounds reports whether the true position lies strictly inside the box.
func (e *ParticleEnv) InBounds() bool {
	x, y := e.position[0], e.position[1]
	return x > -e.Edge && x < e.Edge && y > 0 && y < 2*e.Edge
}

// Observe returns the position as seen by the sensor: gaussian noise on each
// axis, then rounded to the sensor resolution.
func (e *ParticleEnv) Observe() mgl64.Vec2 {
	noisy := mgl64.Vec2{
		e.position[0] + e.SensorStd*e.noise.NormFloat64(),
		e.position[1] + e.SensorStd*e.noise.NormFloat64(),
	}
	return mgl64.Vec2{quantize(noisy[0]), quantize(noisy[1])}
}

// quantize rounds to 0.1 m, half up, so -0.05 becomes 0 rather than -0.1.
func quantize(v float64) float64 {
	return math.Floor(v*sensorScale+0.5) / sensorScale
}

func (e *ParticleEnv) Kinematics() dynamo.Kinematics {
	return dynamo.Kinematics{
		Position:   e.position,
		Velocity:   e.velocity,
		LastAction: e.lastAction,
		LastForce:  e.lastForce,
		Energy:     e.Energy(),
	}
}

func (e *ParticleEnv) Position() mgl64.Vec2 { return e.position }
func (e *ParticleEnv) Velocity() mgl64.Vec2 { return e.velocity }

// LastDt is the time step used by the most recent Step.
func (e *ParticleEnv) LastDt() float64 { return e.dt }

// Energy is kinetic plus gravitational energy above y=0, plus the floor
// spring's stored energy while it is compressed.
func (e *ParticleEnv) Energy() float64 {
	v2 := e.velocity.Dot(e.velocity)
	ke := 0.5 * e.Mass * v2
	pe := e.Mass * e.Gravity * e.position[1]
	if pen := e.Radius - e.position[1]; pen > 0 {
		pe += 0.5 * e.K * pen * pen
	}
	return ke + pe
}

func (e *ParticleEnv) GetParams() map[string]float64 {
	return map[string]float64{
		"gravity":    e.Gravity,
		"mass":       e.Mass,
		"radius":     e.Radius,
		"k":          e.K,
		"mu":         e.Mu,
		"edge":       e.Edge,
		"sensor_std": e.SensorStd,
		"min_thrust": e.MinThrust,
		"max_thrust": e.MaxThrust,
	}
}

func (e *ParticleEnv) SetParam(name string, value float64) error {
	switch name {
	case "gravity":
		e.Gravity = value
	case "mass":
		e.Mass = value
	case "radius":
		e.Radius = value
	case "k":
		e.K = value
	case "mu":
		e.Mu = value
	case "edge":
		e.Edge = value
	case "sensor_std":
		e.SensorStd = value
	case "min_thrust":
		e.MinThrust = value
	case "max_thrust":
		e.MaxThrust = value
	default:
		return fmt.Errorf("%w: %s", dynamo.ErrUnknownParam, name)
	}
	return nil
}
