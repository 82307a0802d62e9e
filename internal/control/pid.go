package control

import (
	"fmt"
	"time"

	"github.com/san-kum/hoversim/internal/dynamo"
)

// integralScale is folded into the Ki gain: the integral term contributes
// Ki*integral*0.1.
const integralScale = 0.1

// PID is a PID controller with setpoint feed-forward and cascaded
// exponential smoothing of the measurement, the derivative and, optionally,
// the output.
//
// Each smoothing stage mixes the new value against the previous smoothed
// value, with the smoothing factor weighting the previous one. Gains and
// smoothing factors are plain fields and may be changed between updates;
// they are not validated. Only the integral is clamped, never the output.
type PID struct {
	Kp  float64
	Ki  float64
	Kd  float64
	KFF float64

	IntegralLimit        float64
	DerivativeEMASmooth  float64
	MeasurementEMASmooth float64

	// SmoothOutput enables output smoothing. Unlike the other stages,
	// OutputEMASmooth weights the new output.
	SmoothOutput    bool
	OutputEMASmooth float64

	integral            float64
	previousMeasurement float64
	previousDerivative  float64
	previousSetpoint    float64
	previousOutput      float64
	dt                  float64

	t0    time.Time
	ready bool
	clock dynamo.Clock
}

func NewPID(kp, ki, kd, kff, integralLimit, derivativeEMASmooth, measurementEMASmooth float64) *PID {
	return &PID{
		Kp:                   kp,
		Ki:                   ki,
		Kd:                   kd,
		KFF:                  kff,
		IntegralLimit:        integralLimit,
		DerivativeEMASmooth:  derivativeEMASmooth,
		MeasurementEMASmooth: measurementEMASmooth,
		clock:                dynamo.WallClock{},
	}
}

// WithClock replaces the time source. It returns p for chaining.
func (p *PID) WithClock(c dynamo.Clock) *PID {
	p.clock = c
	return p
}

// WithOutputSmoothing enables the output smoothing stage.
func (p *PID) WithOutputSmoothing(alpha float64) *PID {
	p.SmoothOutput = true
	p.OutputEMASmooth = alpha
	return p
}

// Reset clears the integral and the smoothed output and seeds the history
// with the given measurement and setpoint. The smoothed derivative is kept.
func (p *PID) Reset(previousMeasurement, previousSetpoint float64) {
	p.integral = 0
	p.previousOutput = 0
	p.previousMeasurement = previousMeasurement
	p.previousSetpoint = previousSetpoint
	p.t0 = p.now()
	p.ready = true
}

func (p *PID) now() time.Time {
	if p.clock == nil {
		return time.Now()
	}
	return p.clock.Now()
}

// Update computes the control output for one measurement. dt is the wall
// time since the previous Update or Reset; with dt = 0 the derivative and
// feed-forward terms become NaN or Inf and propagate.
func (p *PID) Update(measuredValue, setpoint float64) float64 {
	t1 := p.now()
	dt := dynamo.Elapsed(p.t0, t1)
	p.t0 = t1
	return p.compute(measuredValue, setpoint, dt)
}

// UpdateChecked is Update with the degenerate cases surfaced. On error the
// controller state is left untouched.
func (p *PID) UpdateChecked(measuredValue, setpoint float64) (float64, error) {
	if !p.ready {
		return 0, dynamo.ErrInvalidState
	}
	t1 := p.now()
	dt := dynamo.Elapsed(p.t0, t1)
	if dt <= 0 {
		return 0, fmt.Errorf("%w: dt=%g", dynamo.ErrNonPositiveTimeStep, dt)
	}
	p.t0 = t1
	return p.compute(measuredValue, setpoint, dt), nil
}

func (p *PID) compute(measuredValue, setpoint, dt float64) float64 {
	p.dt = dt

	measured := measuredValue*(1-p.MeasurementEMASmooth) + p.previousMeasurement*p.MeasurementEMASmooth
	err := setpoint - measured

	p.integral += err * dt
	p.integral = dynamo.Clamp(p.integral, -p.IntegralLimit, p.IntegralLimit)

	derivative := (measured - p.previousMeasurement) / dt
	smoothedDerivative := derivative*(1-p.DerivativeEMASmooth) + p.previousDerivative*p.DerivativeEMASmooth
	p.previousDerivative = smoothedDerivative

	ff := (setpoint - p.previousSetpoint) / dt

	output := p.Kp*err + p.Ki*p.integral*integralScale - p.Kd*smoothedDerivative + p.KFF*ff

	if p.SmoothOutput {
		output = p.OutputEMASmooth*output + (1-p.OutputEMASmooth)*p.previousOutput
		p.previousOutput = output
	}

	p.previousMeasurement = measured
	p.previousSetpoint = setpoint

	return output
}

// Integral returns the clamped integral accumulator.
func (p *PID) Integral() float64 { return p.integral }

// SmoothedMeasurement returns the measurement after smoothing in the last
// Update, or the seeded value right after Reset.
func (p *PID) SmoothedMeasurement() float64 { return p.previousMeasurement }

func (p *PID) SmoothedDerivative() float64 { return p.previousDerivative }

// LastDt is the time step used by the most recent Update.
func (p *PID) LastDt() float64 { return p.dt }

// GetParams returns tunable parameters for live adjustment
func (p *PID) GetParams() map[string]float64 {
	params := map[string]float64{
		"kp":              p.Kp,
		"ki":              p.Ki,
		"kd":              p.Kd,
		"kff":             p.KFF,
		"integral_limit":  p.IntegralLimit,
		"derivative_ema":  p.DerivativeEMASmooth,
		"measurement_ema": p.MeasurementEMASmooth,
	}
	if p.SmoothOutput {
		params["output_ema"] = p.OutputEMASmooth
	}
	return params
}

// SetParam adjusts a PID parameter. Setting output_ema also enables output
// smoothing.
func (p *PID) SetParam(name string, value float64) error {
	switch name {
	case "kp":
		p.Kp = value
	case "ki":
		p.Ki = value
	case "kd":
		p.Kd = value
	case "kff":
		p.KFF = value
	case "integral_limit":
		p.IntegralLimit = value
	case "derivative_ema":
		p.DerivativeEMASmooth = value
	case "measurement_ema":
		p.MeasurementEMASmooth = value
	case "output_ema":
		p.SmoothOutput = true
		p.OutputEMASmooth = value
	default:
		return fmt.Errorf("%w: %s", dynamo.ErrUnknownParam, name)
	}
	return nil
}
