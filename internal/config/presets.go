package config

import (
	"fmt"
	"sort"
)

// tuned gains settle within a few centimetres of the setpoint in about ten
// seconds; the reference gains leave the particle on the floor because the
// scaled integral never builds enough thrust.
func tuned(c *Config) {
	c.PID = PIDConfig{
		Kp:             60,
		Ki:             100,
		Kd:             35,
		IntegralLimit:  20,
		DerivativeEMA:  0.8,
		MeasurementEMA: 0.3,
		OutputEMA:      DefaultOutputEMA,
	}
}

var Presets = map[string]func() *Config{
	"reference": DefaultConfig,
	"tuned": func() *Config {
		c := DefaultConfig()
		tuned(c)
		return c
	},
	"smoothed": func() *Config {
		c := DefaultConfig()
		tuned(c)
		c.PID.SmoothOutput = true
		return c
	},
	"noisy": func() *Config {
		c := DefaultConfig()
		tuned(c)
		c.Env.SensorStd = 0.5
		return c
	},
	"staircase": func() *Config {
		c := DefaultConfig()
		tuned(c)
		c.Run.Duration = 45
		c.Run.Schedule = []ScheduleStep{{At: 15, Setpoint: 5}, {At: 30, Setpoint: 15}}
		return c
	},
	"unclamped": func() *Config {
		c := DefaultConfig()
		tuned(c)
		c.Env.ClampThrust = false
		return c
	},
	"freefall": func() *Config {
		c := DefaultConfig()
		c.Run.Controller = "none"
		c.Run.Duration = 10
		return c
	},
	"ceiling": func() *Config {
		c := DefaultConfig()
		tuned(c)
		c.Run.Setpoint = 25
		return c
	},
}

// PresetInfo is a one-line description per preset.
var PresetInfo = map[string]string{
	"reference": "browser demo gains, rests on the floor",
	"tuned":     "stiff gains that hold the setpoint",
	"smoothed":  "tuned with output smoothing",
	"noisy":     "tuned against a 0.5 m sensor",
	"staircase": "setpoint steps 10, 5, 15",
	"unclamped": "tuned without thrust limits",
	"freefall":  "no controller",
	"ceiling":   "setpoint above the box",
}

// GetPreset returns a fresh copy of the named preset.
func GetPreset(name string) (*Config, error) {
	build, ok := Presets[name]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownPreset, name)
	}
	return build(), nil
}

func ListPresets() []string {
	names := make([]string, 0, len(Presets))
	for name := range Presets {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
