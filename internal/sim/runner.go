package sim

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/go-gl/mathgl/mgl64"
	"github.com/san-kum/hoversim/internal/dynamo"
	"go.uber.org/zap"
)

// DefaultControlScale converts controller output to actuator force.
const DefaultControlScale = 0.1

// SetpointChange switches the setpoint once simulated time reaches At.
type SetpointChange struct {
	At    float64
	Value float64
}

type Config struct {
	Dt           float64
	Duration     float64
	Setpoint     float64
	ControlScale float64
	Schedule     []SetpointChange
	// Initial overrides the resting start position.
	Initial *mgl64.Vec2
	// Strict uses the checked step and update paths and stops on the first
	// degenerate tick or diverged state.
	Strict bool
}

func DefaultConfig() Config {
	return Config{
		Dt:           1.0 / 60,
		Duration:     30,
		Setpoint:     10,
		ControlScale: DefaultControlScale,
	}
}

// Advancer is a clock the batch loop can move forward.
type Advancer interface {
	dynamo.Clock
	Advance(d time.Duration)
}

// Runner is the driver loop: each tick it feeds the last observation to the
// controller, turns the output into a vertical force and steps the
// environment with it.
type Runner struct {
	env       dynamo.Environment
	ctrl      dynamo.Controller
	clock     dynamo.Clock
	cfg       Config
	metrics   []dynamo.Metric
	observers []dynamo.Observer
	log       *zap.Logger

	obs      mgl64.Vec2
	setpoint float64
	next     int
	step     int
	start    time.Time
	last     time.Time
}

func New(env dynamo.Environment, ctrl dynamo.Controller, clock dynamo.Clock, cfg Config) *Runner {
	if cfg.ControlScale == 0 {
		cfg.ControlScale = DefaultControlScale
	}
	schedule := append([]SetpointChange(nil), cfg.Schedule...)
	sort.SliceStable(schedule, func(i, j int) bool { return schedule[i].At < schedule[j].At })
	cfg.Schedule = schedule

	return &Runner{
		env:      env,
		ctrl:     ctrl,
		clock:    clock,
		cfg:      cfg,
		log:      zap.NewNop(),
		setpoint: cfg.Setpoint,
	}
}

func (r *Runner) AddMetric(m dynamo.Metric)     { r.metrics = append(r.metrics, m) }
func (r *Runner) AddObserver(o dynamo.Observer) { r.observers = append(r.observers, o) }

func (r *Runner) SetLogger(l *zap.Logger) {
	if l == nil {
		l = zap.NewNop()
	}
	r.log = l
}

func (r *Runner) Config() Config { return r.cfg }

func (r *Runner) Setpoint() float64 { return r.setpoint }

// SetSetpoint changes the target from the next tick on.
func (r *Runner) SetSetpoint(v float64) {
	r.setpoint = v
	r.env.SetSetpoint(v)
}

// Observation is the last sensor reading handed to the controller.
func (r *Runner) Observation() mgl64.Vec2 { return r.obs }

func (r *Runner) Env() dynamo.Environment       { return r.env }
func (r *Runner) Controller() dynamo.Controller { return r.ctrl }

// Elapsed is the time since the last Reset as read from the clock.
func (r *Runner) Elapsed() float64 { return dynamo.Elapsed(r.start, r.clock.Now()) }

// Reset restarts the episode, re-seeding the controller with the fresh
// observation and the current setpoint.
func (r *Runner) Reset() mgl64.Vec2 {
	r.obs = r.env.Reset(r.cfg.Initial)
	r.env.SetSetpoint(r.setpoint)
	r.ctrl.Reset(r.obs.Y(), r.setpoint)
	r.start = r.clock.Now()
	r.last = r.start
	r.step = 0
	r.next = 0
	return r.obs
}

// Tick runs one controller update and one environment step. Errors are only
// returned in strict mode.
func (r *Runner) Tick() (dynamo.Sample, error) {
	now := r.clock.Now()
	t := dynamo.Elapsed(r.start, now)
	dt := dynamo.Elapsed(r.last, now)
	r.last = now
	r.applySchedule(t)

	output, err := r.update()
	if err != nil {
		return dynamo.Sample{}, &dynamo.SimulationError{Step: r.step, Time: t, Wrapped: err}
	}

	action := mgl64.Vec2{0, r.cfg.ControlScale * output}
	obs, done, err := r.stepEnv(action)
	if err != nil {
		return dynamo.Sample{}, &dynamo.SimulationError{Step: r.step, Time: t, Wrapped: err}
	}

	k := r.env.Kinematics()
	s := dynamo.Sample{
		Step:        r.step,
		Time:        t,
		Dt:          dt,
		Position:    k.Position,
		Velocity:    k.Velocity,
		Observation: obs,
		Action:      k.LastAction,
		Force:       k.LastForce,
		Setpoint:    r.setpoint,
		Output:      output,
		Energy:      k.Energy,
		Done:        done,
	}

	for _, m := range r.metrics {
		m.Observe(s)
	}
	for _, o := range r.observers {
		o.OnStep(s)
	}

	r.obs = obs
	r.step++

	if r.cfg.Strict && !k.IsValid() {
		s.Done = true
		return s, &dynamo.SimulationError{Step: s.Step, Time: t, Wrapped: dynamo.ErrUnstable}
	}
	return s, nil
}

func (r *Runner) update() (float64, error) {
	if r.cfg.Strict {
		if cc, ok := r.ctrl.(dynamo.CheckedController); ok {
			return cc.UpdateChecked(r.obs.Y(), r.setpoint)
		}
	}
	return r.ctrl.Update(r.obs.Y(), r.setpoint), nil
}

func (r *Runner) stepEnv(action mgl64.Vec2) (mgl64.Vec2, bool, error) {
	if r.cfg.Strict {
		if ce, ok := r.env.(dynamo.CheckedEnvironment); ok {
			return ce.StepChecked(action)
		}
	}
	obs, done := r.env.Step(action)
	return obs, done, nil
}

func (r *Runner) applySchedule(t float64) {
	for r.next < len(r.cfg.Schedule) && r.cfg.Schedule[r.next].At <= t {
		v := r.cfg.Schedule[r.next].Value
		r.log.Debug("setpoint change", zap.Float64("t", t), zap.Float64("from", r.setpoint), zap.Float64("to", v))
		r.SetSetpoint(v)
		r.next++
	}
}

// Run executes one episode on a clock it advances by Dt before every tick.
// It stops when the particle leaves the box, the duration is used up, or ctx
// is canceled.
func (r *Runner) Run(ctx context.Context) (*dynamo.Result, error) {
	if err := r.validateConfig(); err != nil {
		return nil, err
	}
	adv, ok := r.clock.(Advancer)
	if !ok {
		return nil, fmt.Errorf("batch run needs an advancing clock, got %T", r.clock)
	}

	steps := int(r.cfg.Duration/r.cfg.Dt + 1e-9)
	step := dynamo.Seconds(r.cfg.Dt)

	result := &dynamo.Result{
		Samples: make([]dynamo.Sample, 0, steps),
		Metrics: make(map[string]float64),
	}
	for _, m := range r.metrics {
		m.Reset()
	}

	r.setpoint = r.cfg.Setpoint
	r.Reset()

	for i := 0; i < steps; i++ {
		select {
		case <-ctx.Done():
			r.collect(result)
			return result, fmt.Errorf("%w: %v", dynamo.ErrContextCanceled, ctx.Err())
		default:
		}

		adv.Advance(step)
		s, err := r.Tick()
		if err != nil {
			result.Errors = append(result.Errors, err)
			r.collect(result)
			return result, err
		}
		result.Samples = append(result.Samples, s)
		result.StepsTaken++

		if s.Done {
			result.Terminated = true
			r.log.Info("particle left the box",
				zap.Int("step", s.Step),
				zap.Float64("t", s.Time),
				zap.Float64("x", s.Position.X()),
				zap.Float64("y", s.Position.Y()))
			break
		}
	}

	r.collect(result)
	r.log.Debug("episode finished", zap.Int("steps", result.StepsTaken), zap.Bool("terminated", result.Terminated))
	return result, nil
}

func (r *Runner) collect(result *dynamo.Result) {
	for _, m := range r.metrics {
		result.Metrics[m.Name()] = m.Value()
	}
}

// RunRealtime ticks on a wall-clock ticker every Dt until the particle
// leaves the box, the duration (if positive) elapses, callback returns false,
// or ctx is canceled.
func (r *Runner) RunRealtime(ctx context.Context, callback func(dynamo.Sample) bool) error {
	if r.cfg.Dt <= 0 {
		return fmt.Errorf("dt must be positive, got %f", r.cfg.Dt)
	}

	r.Reset()
	ticker := time.NewTicker(dynamo.Seconds(r.cfg.Dt))
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			if errors.Is(ctx.Err(), context.Canceled) {
				return nil
			}
			return ctx.Err()
		case <-ticker.C:
			s, err := r.Tick()
			if err != nil {
				return err
			}
			if callback != nil && !callback(s) {
				return nil
			}
			if s.Done {
				r.log.Info("particle left the box", zap.Int("step", s.Step), zap.Float64("t", s.Time))
				return nil
			}
			if r.cfg.Duration > 0 && s.Time >= r.cfg.Duration {
				return nil
			}
		}
	}
}

func (r *Runner) validateConfig() error {
	if r.cfg.Dt <= 0 {
		return fmt.Errorf("dt must be positive, got %f", r.cfg.Dt)
	}
	if r.cfg.Duration <= 0 {
		return fmt.Errorf("duration must be positive, got %f", r.cfg.Duration)
	}
	return nil
}
