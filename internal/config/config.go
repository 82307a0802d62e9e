package config

import (
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/san-kum/hoversim/internal/physics"
	"github.com/san-kum/hoversim/internal/sim"
	"gopkg.in/yaml.v3"
)

const (
	DefaultDt       = 1.0 / 60
	DefaultDuration = 30.0
	DefaultSetpoint = 10.0
	DefaultSensor   = 0.1

	DefaultKp             = 5.0
	DefaultKi             = 1.0
	DefaultKd             = 20.0
	DefaultKFF            = 0.0
	DefaultIntegralLimit  = 10.0
	DefaultDerivativeEMA  = 0.9
	DefaultMeasurementEMA = 0.5
	DefaultOutputEMA      = 0.5
)

var ErrUnknownPreset = errors.New("config: unknown preset")

type Config struct {
	Env EnvConfig `yaml:"env"`
	PID PIDConfig `yaml:"pid"`
	Run RunConfig `yaml:"run"`
}

type EnvConfig struct {
	Gravity     float64 `yaml:"gravity"`
	Mass        float64 `yaml:"mass"`
	Radius      float64 `yaml:"radius"`
	K           float64 `yaml:"k"`
	Mu          float64 `yaml:"mu"`
	Edge        float64 `yaml:"edge"`
	SensorStd   float64 `yaml:"sensor_std"`
	ClampThrust bool    `yaml:"clamp_thrust"`
	MinThrust   float64 `yaml:"min_thrust"`
	MaxThrust   float64 `yaml:"max_thrust"`
}

type PIDConfig struct {
	Kp             float64 `yaml:"kp"`
	Ki             float64 `yaml:"ki"`
	Kd             float64 `yaml:"kd"`
	KFF            float64 `yaml:"kff"`
	IntegralLimit  float64 `yaml:"integral_limit"`
	DerivativeEMA  float64 `yaml:"derivative_ema"`
	MeasurementEMA float64 `yaml:"measurement_ema"`
	SmoothOutput   bool    `yaml:"smooth_output"`
	OutputEMA      float64 `yaml:"output_ema"`
}

type ScheduleStep struct {
	At       float64 `yaml:"at"`
	Setpoint float64 `yaml:"setpoint"`
}

type RunConfig struct {
	// Controller is one of pid, none or manual.
	Controller   string         `yaml:"controller"`
	Dt           float64        `yaml:"dt"`
	Duration     float64        `yaml:"duration"`
	Setpoint     float64        `yaml:"setpoint"`
	ControlScale float64        `yaml:"control_scale"`
	Seed         int64          `yaml:"seed"`
	Strict       bool           `yaml:"strict"`
	Schedule     []ScheduleStep `yaml:"schedule,omitempty"`
}

// DefaultConfig is the reference hover setup: the browser demo's constants
// and gains with thrust clamping on and no output smoothing.
func DefaultConfig() *Config {
	return &Config{
		Env: EnvConfig{
			Gravity:     physics.DefaultGravity,
			Mass:        physics.DefaultMass,
			Radius:      physics.DefaultRadius,
			K:           physics.DefaultSpringK,
			Mu:          physics.DefaultFriction,
			Edge:        physics.DefaultEdge,
			SensorStd:   DefaultSensor,
			ClampThrust: true,
			MinThrust:   physics.DefaultMinThrust,
			MaxThrust:   physics.DefaultMaxThrust,
		},
		PID: PIDConfig{
			Kp:             DefaultKp,
			Ki:             DefaultKi,
			Kd:             DefaultKd,
			KFF:            DefaultKFF,
			IntegralLimit:  DefaultIntegralLimit,
			DerivativeEMA:  DefaultDerivativeEMA,
			MeasurementEMA: DefaultMeasurementEMA,
			OutputEMA:      DefaultOutputEMA,
		},
		Run: RunConfig{
			Controller:   "pid",
			Dt:           DefaultDt,
			Duration:     DefaultDuration,
			Setpoint:     DefaultSetpoint,
			ControlScale: sim.DefaultControlScale,
		},
	}
}

func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	cfg := DefaultConfig()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	return cfg, nil
}

func Save(path string, cfg *Config) error {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0644)
}

// Encode writes cfg as YAML.
func Encode(w io.Writer, cfg *Config) error {
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(cfg); err != nil {
		return err
	}
	return enc.Close()
}

// Clone returns a deep copy.
func (c *Config) Clone() *Config {
	out := *c
	out.Run.Schedule = append([]ScheduleStep(nil), c.Run.Schedule...)
	return &out
}

func (c *Config) Validate() error {
	if c.Run.Dt <= 0 {
		return fmt.Errorf("dt must be positive, got %f", c.Run.Dt)
	}
	if c.Run.Duration <= 0 {
		return fmt.Errorf("duration must be positive, got %f", c.Run.Duration)
	}
	if c.Env.Mass <= 0 {
		return fmt.Errorf("mass must be positive, got %f", c.Env.Mass)
	}
	if c.Env.ClampThrust && c.Env.MinThrust > c.Env.MaxThrust {
		return fmt.Errorf("min_thrust %f above max_thrust %f", c.Env.MinThrust, c.Env.MaxThrust)
	}
	switch c.Run.Controller {
	case "pid", "none", "manual":
	default:
		return fmt.Errorf("unknown controller %q", c.Run.Controller)
	}
	return nil
}

// Set changes one named parameter. PID gains use the controller's parameter
// names, environment constants the environment's.
func (c *Config) Set(name string, value float64) error {
	switch name {
	case "kp":
		c.PID.Kp = value
	case "ki":
		c.PID.Ki = value
	case "kd":
		c.PID.Kd = value
	case "kff":
		c.PID.KFF = value
	case "integral_limit":
		c.PID.IntegralLimit = value
	case "derivative_ema":
		c.PID.DerivativeEMA = value
	case "measurement_ema":
		c.PID.MeasurementEMA = value
	case "output_ema":
		c.PID.SmoothOutput = true
		c.PID.OutputEMA = value
	case "gravity":
		c.Env.Gravity = value
	case "mass":
		c.Env.Mass = value
	case "radius":
		c.Env.Radius = value
	case "k":
		c.Env.K = value
	case "mu":
		c.Env.Mu = value
	case "edge":
		c.Env.Edge = value
	case "sensor_std":
		c.Env.SensorStd = value
	case "min_thrust":
		c.Env.MinThrust = value
	case "max_thrust":
		c.Env.MaxThrust = value
	case "setpoint":
		c.Run.Setpoint = value
	default:
		return fmt.Errorf("unknown parameter %q", name)
	}
	return nil
}

// PIDParams lists the gains as the controller reports them.
func (c *Config) PIDParams() map[string]float64 {
	return c.newPID(nil).GetParams()
}
