package config

import (
	"fmt"
	"time"

	"github.com/san-kum/hoversim/internal/control"
	"github.com/san-kum/hoversim/internal/dynamo"
	"github.com/san-kum/hoversim/internal/metrics"
	"github.com/san-kum/hoversim/internal/physics"
	"github.com/san-kum/hoversim/internal/sim"
)

// NewEnv builds the particle environment. A zero seed draws the sensor noise
// from a time-seeded generator.
func (c *Config) NewEnv(clock dynamo.Clock, seed int64) *physics.ParticleEnv {
	var noise physics.NormalSource
	if seed != 0 {
		noise = physics.NewBoxMullerSeeded(seed)
	}

	env := physics.NewParticleEnv(c.Env.SensorStd, clock, noise)
	env.Gravity = c.Env.Gravity
	env.Mass = c.Env.Mass
	env.Radius = c.Env.Radius
	env.K = c.Env.K
	env.Mu = c.Env.Mu
	env.Edge = c.Env.Edge
	env.ClampThrust = c.Env.ClampThrust
	env.MinThrust = c.Env.MinThrust
	env.MaxThrust = c.Env.MaxThrust
	return env
}

func (c *Config) newPID(clock dynamo.Clock) *control.PID {
	p := control.NewPID(
		c.PID.Kp, c.PID.Ki, c.PID.Kd, c.PID.KFF,
		c.PID.IntegralLimit, c.PID.DerivativeEMA, c.PID.MeasurementEMA,
	)
	if clock != nil {
		p.WithClock(clock)
	}
	if c.PID.SmoothOutput {
		p.WithOutputSmoothing(c.PID.OutputEMA)
	}
	return p
}

func (c *Config) NewController(clock dynamo.Clock) (dynamo.Controller, error) {
	switch c.Run.Controller {
	case "pid", "":
		return c.newPID(clock), nil
	case "none":
		return control.NewNone(), nil
	case "manual":
		// start at hover thrust
		return control.NewManual(c.Env.Mass * c.Env.Gravity / c.controlScale()), nil
	default:
		return nil, fmt.Errorf("unknown controller %q", c.Run.Controller)
	}
}

func (c *Config) controlScale() float64 {
	if c.Run.ControlScale == 0 {
		return sim.DefaultControlScale
	}
	return c.Run.ControlScale
}

func (c *Config) SimConfig() sim.Config {
	cfg := sim.Config{
		Dt:           c.Run.Dt,
		Duration:     c.Run.Duration,
		Setpoint:     c.Run.Setpoint,
		ControlScale: c.controlScale(),
		Strict:       c.Run.Strict,
	}
	for _, s := range c.Run.Schedule {
		cfg.Schedule = append(cfg.Schedule, sim.SetpointChange{At: s.At, Value: s.Setpoint})
	}
	return cfg
}

// NewRunner wires environment, controller and the standard metrics to one
// clock. Batch runs pass a manual clock, the live view a wall clock.
func (c *Config) NewRunner(clock dynamo.Clock, seed int64) (*sim.Runner, error) {
	if err := c.Validate(); err != nil {
		return nil, err
	}
	ctrl, err := c.NewController(clock)
	if err != nil {
		return nil, err
	}
	env := c.NewEnv(clock, seed)
	r := sim.New(env, ctrl, clock, c.SimConfig())
	for _, m := range metrics.Standard() {
		r.AddMetric(m)
	}
	return r, nil
}

// NewBatchRunner is NewRunner on a fresh manual clock, seeded from the
// config unless seed is non-zero.
func (c *Config) NewBatchRunner(seed int64) (*sim.Runner, error) {
	if seed == 0 {
		seed = c.Run.Seed
	}
	return c.NewRunner(dynamo.NewManualClock(time.Unix(0, 0)), seed)
}
