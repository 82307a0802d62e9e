package physics

import (
	"errors"
	"math"
	"testing"
	"time"

	"github.com/go-gl/mathgl/mgl64"
	"github.com/san-kum/hoversim/internal/dynamo"
)

const tol = 1e-9

func newTestEnv() (*ParticleEnv, *dynamo.ManualClock) {
	clock := dynamo.NewManualClock(time.Unix(0, 0))
	env := NewParticleEnv(0, clock, ZeroNoise{})
	env.Mass = 1.0
	env.Gravity = 9.8
	env.K = 100
	env.Mu = 0
	env.Radius = 1
	env.ClampThrust = false
	return env, clock
}

func TestParticleEnv_Reset(t *testing.T) {
	env, _ := newTestEnv()

	obs := env.Reset(nil)
	if obs != (mgl64.Vec2{0, 2}) {
		t.Errorf("default observation = %v, want (0, 2)", obs)
	}
	if env.Velocity() != (mgl64.Vec2{}) {
		t.Errorf("velocity after reset = %v", env.Velocity())
	}

	start := mgl64.Vec2{3, 4}
	obs = env.Reset(&start)
	if obs != start || env.Position() != start {
		t.Errorf("reset to %v gave obs %v, position %v", start, obs, env.Position())
	}
}

func TestParticleEnv_FreeFallStep(t *testing.T) {
	env, clock := newTestEnv()
	env.Reset(nil)

	clock.Advance(100 * time.Millisecond)
	obs, done := env.Step(mgl64.Vec2{0, 0})

	if done {
		t.Error("particle should still be in bounds")
	}
	if v := env.Velocity().Y(); math.Abs(v-(-0.98)) > tol {
		t.Errorf("velocity.y = %v, want -0.98", v)
	}
	if y := env.Position().Y(); math.Abs(y-1.902) > tol {
		t.Errorf("position.y = %v, want 1.902", y)
	}
	if math.Abs(obs.Y()-1.9) > tol {
		t.Errorf("observation.y = %v, want 1.9", obs.Y())
	}
	if math.Abs(env.LastDt()-0.1) > tol {
		t.Errorf("dt = %v, want 0.1", env.LastDt())
	}
}

func TestParticleEnv_BalancedForceHolds(t *testing.T) {
	env, clock := newTestEnv()
	env.Reset(nil)

	for i := 0; i < 20; i++ {
		clock.Advance(100 * time.Millisecond)
		_, done := env.Step(mgl64.Vec2{0, 9.8})
		if done {
			t.Fatalf("step %d: unexpected termination", i)
		}
	}

	if env.Velocity() != (mgl64.Vec2{}) {
		t.Errorf("velocity drifted to %v", env.Velocity())
	}
	if env.Position() != (mgl64.Vec2{0, 2}) {
		t.Errorf("position drifted to %v", env.Position())
	}
}

func TestParticleEnv_SpringIsLinearInPenetration(t *testing.T) {
	env, _ := newTestEnv()

	springForce := func(y float64) float64 {
		p := mgl64.Vec2{0, y}
		env.Reset(&p)
		// clock not advanced: dt = 0, only the force is evaluated
		env.Step(mgl64.Vec2{})
		return env.Kinematics().LastForce.Y() + env.Gravity*env.Mass
	}

	tests := []struct {
		y    float64
		want float64
	}{
		{1.5, 0},
		{1.0, 0},
		{0.9, 10},
		{0.75, 25},
		{0.5, 50},
	}
	for _, tt := range tests {
		if got := springForce(tt.y); math.Abs(got-tt.want) > 1e-9 {
			t.Errorf("spring force at y=%v: got %v, want %v", tt.y, got, tt.want)
		}
	}
}

func TestParticleEnv_FrictionOpposesVelocity(t *testing.T) {
	env, clock := newTestEnv()
	env.Gravity = 0
	env.Mu = 0.5
	env.Reset(nil)

	clock.Advance(time.Second)
	env.Step(mgl64.Vec2{2, 0})
	clock.Advance(100 * time.Millisecond)
	env.Step(mgl64.Vec2{})

	f := env.Kinematics().LastForce
	if f.X() >= 0 {
		t.Errorf("friction force %v should oppose positive velocity", f)
	}
	if want := -0.5 * 2.0; math.Abs(f.X()-want) > tol {
		t.Errorf("friction force = %v, want %v", f.X(), want)
	}
}

func TestParticleEnv_Bounds(t *testing.T) {
	env, _ := newTestEnv()
	env.Gravity = 0

	tests := []struct {
		name string
		pos  mgl64.Vec2
		done bool
	}{
		{"center", mgl64.Vec2{0, 10}, false},
		{"near right wall", mgl64.Vec2{9.99, 5}, false},
		{"on right wall", mgl64.Vec2{10, 5}, true},
		{"on left wall", mgl64.Vec2{-10, 5}, true},
		{"on floor line", mgl64.Vec2{0, 0}, true},
		{"below floor", mgl64.Vec2{0, -1}, true},
		{"on ceiling", mgl64.Vec2{0, 20}, true},
		{"just under ceiling", mgl64.Vec2{0, 19.999}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := tt.pos
			env.Reset(&p)
			_, done := env.Step(mgl64.Vec2{})
			if done != tt.done {
				t.Errorf("done = %v, want %v at %v", done, tt.done, tt.pos)
			}
		})
	}
}

func TestParticleEnv_ThrustClampAndHistory(t *testing.T) {
	env, clock := newTestEnv()
	env.ClampThrust = true
	env.MinThrust = 1
	env.MaxThrust = 5
	env.Reset(nil)

	for _, a := range []float64{-3, 3, 40} {
		clock.Advance(10 * time.Millisecond)
		env.Step(mgl64.Vec2{0, a})
	}

	got := env.History.Values()
	want := []float64{1, 3, 5}
	if len(got) != len(want) {
		t.Fatalf("history = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("history[%d] = %v, want %v", i, got[i], want[i])
		}
	}
	if a := env.Kinematics().LastAction.Y(); a != 5 {
		t.Errorf("last action = %v, want clamped 5", a)
	}
}

func TestParticleEnv_NoClampLeavesHistoryEmpty(t *testing.T) {
	env, clock := newTestEnv()
	env.Reset(nil)
	clock.Advance(10 * time.Millisecond)
	env.Step(mgl64.Vec2{0, 100})

	if env.History.Len() != 0 {
		t.Errorf("history should stay empty without clamping, got %v", env.History.Values())
	}
	if a := env.Kinematics().LastAction.Y(); a != 100 {
		t.Errorf("last action = %v, want 100", a)
	}
}

func TestParticleEnv_ObservationQuantized(t *testing.T) {
	clock := dynamo.NewManualClock(time.Unix(0, 0))
	env := NewParticleEnv(0.37, clock, NewBoxMullerSeeded(7))
	start := mgl64.Vec2{0.123456, 5.987654}
	env.Reset(&start)

	for i := 0; i < 1000; i++ {
		obs := env.Observe()
		for axis := 0; axis < 2; axis++ {
			scaled := obs[axis] * 10
			if math.Abs(scaled-math.Round(scaled)) > 1e-6 {
				t.Fatalf("observation %v is not a multiple of 0.1", obs)
			}
		}
	}
}

func TestQuantize(t *testing.T) {
	tests := []struct {
		in, want float64
	}{
		{1.902, 1.9},
		{1.95, 2.0},
		{-0.05, 0},
		{-0.06, -0.1},
		{0.04, 0},
		{12.345, 12.3},
	}
	for _, tt := range tests {
		if got := quantize(tt.in); math.Abs(got-tt.want) > 1e-12 {
			t.Errorf("quantize(%v) = %v, want %v", tt.in, got, tt.want)
		}
	}
}

func TestParticleEnv_ResetIsIdempotent(t *testing.T) {
	run := func(resets int) []dynamo.Kinematics {
		env, clock := newTestEnv()
		for i := 0; i < resets; i++ {
			env.Reset(nil)
		}
		var out []dynamo.Kinematics
		for i := 0; i < 30; i++ {
			clock.Advance(20 * time.Millisecond)
			env.Step(mgl64.Vec2{0, float64(i % 7)})
			out = append(out, env.Kinematics())
		}
		return out
	}

	once, twice := run(1), run(2)
	for i := range once {
		if once[i] != twice[i] {
			t.Fatalf("step %d diverged: %+v vs %+v", i, once[i], twice[i])
		}
	}
}

func TestParticleEnv_StepChecked(t *testing.T) {
	env, clock := newTestEnv()

	if _, _, err := env.StepChecked(mgl64.Vec2{}); !errors.Is(err, dynamo.ErrInvalidState) {
		t.Errorf("before reset: err = %v, want ErrInvalidState", err)
	}

	env.Reset(nil)
	before := env.Kinematics()
	if _, _, err := env.StepChecked(mgl64.Vec2{}); !errors.Is(err, dynamo.ErrNonPositiveTimeStep) {
		t.Errorf("zero dt: err = %v, want ErrNonPositiveTimeStep", err)
	}
	if env.Kinematics() != before {
		t.Error("state changed on a rejected step")
	}

	clock.Advance(100 * time.Millisecond)
	_, done, err := env.StepChecked(mgl64.Vec2{})
	if err != nil || done {
		t.Fatalf("valid step: done=%v err=%v", done, err)
	}
	if v := env.Velocity().Y(); math.Abs(v-(-0.98)) > tol {
		t.Errorf("velocity.y = %v, want -0.98", v)
	}
}

func TestParticleEnv_ZeroDtIsNoOp(t *testing.T) {
	env, _ := newTestEnv()
	env.Reset(nil)
	env.Step(mgl64.Vec2{0, 50})
	if env.Position() != (mgl64.Vec2{0, 2}) || env.Velocity() != (mgl64.Vec2{}) {
		t.Errorf("zero dt moved the particle: pos %v vel %v", env.Position(), env.Velocity())
	}
}

func TestParticleEnv_SetSetpointHasNoEffect(t *testing.T) {
	env, clock := newTestEnv()
	env.Reset(nil)
	env.SetSetpoint(15)
	clock.Advance(100 * time.Millisecond)
	env.Step(mgl64.Vec2{})

	if env.Setpoint() != 15 {
		t.Errorf("setpoint = %v, want 15", env.Setpoint())
	}
	if y := env.Position().Y(); math.Abs(y-1.902) > tol {
		t.Errorf("setpoint changed dynamics: y = %v", y)
	}
}

func TestParticleEnv_Energy(t *testing.T) {
	env, _ := newTestEnv()
	env.Reset(nil)
	if e := env.Energy(); math.Abs(e-2*9.8) > tol {
		t.Errorf("energy at rest = %v, want %v", e, 2*9.8)
	}

	p := mgl64.Vec2{0, 0.5}
	env.Reset(&p)
	want := 9.8*0.5 + 0.5*100*0.25
	if e := env.Energy(); math.Abs(e-want) > tol {
		t.Errorf("compressed energy = %v, want %v", e, want)
	}
	if k := env.Kinematics(); k.Energy != env.Energy() {
		t.Errorf("kinematics energy = %v, want %v", k.Energy, env.Energy())
	}
}

func TestParticleEnv_Params(t *testing.T) {
	env := NewParticleEnv(0.1, nil, nil)
	params := env.GetParams()
	if params["mass"] != DefaultMass || params["max_thrust"] != DefaultMaxThrust {
		t.Errorf("unexpected defaults: %v", params)
	}

	if err := env.SetParam("k", 250); err != nil {
		t.Fatalf("SetParam: %v", err)
	}
	if env.K != 250 {
		t.Errorf("K = %v, want 250", env.K)
	}

	if err := env.SetParam("warp", 1); !errors.Is(err, dynamo.ErrUnknownParam) {
		t.Errorf("unknown param err = %v", err)
	}
}
