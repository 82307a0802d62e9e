package control

import (
	"errors"
	"math"
	"math/rand"
	"testing"
	"time"

	"github.com/san-kum/hoversim/internal/dynamo"
)

const tol = 1e-9

func newTestPID(kp, ki, kd, kff, limit, dEMA, mEMA float64) (*PID, *dynamo.ManualClock) {
	clock := dynamo.NewManualClock(time.Unix(0, 0))
	return NewPID(kp, ki, kd, kff, limit, dEMA, mEMA).WithClock(clock), clock
}

func TestPID_Proportional(t *testing.T) {
	pid, clock := newTestPID(1, 0, 0, 0, 10, 0, 0)
	pid.Reset(0, 0)

	clock.Advance(time.Second)
	u := pid.Update(5, 10)

	if math.Abs(u-5) > tol {
		t.Errorf("output = %v, want 5", u)
	}
}

func TestPID_CascadedSmoothing(t *testing.T) {
	pid, clock := newTestPID(2, 3, 0.5, 0.01, 10, 0.9, 0.5)
	pid.Reset(0, 0)

	clock.Advance(100 * time.Millisecond)
	u1 := pid.Update(10, 10)
	if math.Abs(u1-8.65) > tol {
		t.Errorf("first output = %v, want 8.65", u1)
	}
	if math.Abs(pid.SmoothedMeasurement()-5) > tol {
		t.Errorf("smoothed measurement = %v, want 5", pid.SmoothedMeasurement())
	}
	if math.Abs(pid.SmoothedDerivative()-5) > tol {
		t.Errorf("smoothed derivative = %v, want 5", pid.SmoothedDerivative())
	}

	clock.Advance(100 * time.Millisecond)
	u2 := pid.Update(10, 10)
	if math.Abs(u2-1.725) > tol {
		t.Errorf("second output = %v, want 1.725", u2)
	}
	if math.Abs(pid.Integral()-0.75) > tol {
		t.Errorf("integral = %v, want 0.75", pid.Integral())
	}
	if math.Abs(pid.SmoothedDerivative()-7) > tol {
		t.Errorf("smoothed derivative = %v, want 7", pid.SmoothedDerivative())
	}
}

func TestPID_DerivativeUsesMeasuredDt(t *testing.T) {
	run := func(step time.Duration) float64 {
		pid, clock := newTestPID(0, 0, 1, 0, 10, 0, 0)
		pid.Reset(0, 0)
		clock.Advance(step)
		return pid.Update(1, 0)
	}

	fast, slow := run(10*time.Millisecond), run(100*time.Millisecond)
	if math.Abs(fast-(-100)) > 1e-6 || math.Abs(slow-(-10)) > 1e-6 {
		t.Errorf("derivative outputs = %v, %v; want -100, -10", fast, slow)
	}
}

func TestPID_FeedForward(t *testing.T) {
	pid, clock := newTestPID(0, 0, 0, 2, 10, 0, 0)
	pid.Reset(3, 4)

	clock.Advance(500 * time.Millisecond)
	if u := pid.Update(3, 5); math.Abs(u-4) > tol {
		t.Errorf("feed-forward output = %v, want 2*(5-4)/0.5 = 4", u)
	}

	clock.Advance(500 * time.Millisecond)
	if u := pid.Update(3, 5); math.Abs(u) > tol {
		t.Errorf("constant setpoint should give no feed-forward, got %v", u)
	}
}

func TestPID_IntegralStaysClamped(t *testing.T) {
	rng := rand.New(rand.NewSource(3))
	pid, clock := newTestPID(0.5, 4, 0.1, 0, 2, 0.5, 0.3)
	pid.Reset(0, 0)

	for i := 0; i < 2000; i++ {
		clock.Advance(time.Duration(1+rng.Intn(200)) * time.Millisecond)
		pid.Update(rng.Float64()*40-20, rng.Float64()*40-20)
		if got := pid.Integral(); got > 2 || got < -2 {
			t.Fatalf("update %d: integral %v escaped [-2, 2]", i, got)
		}
	}
}

func TestPID_IntegralSaturates(t *testing.T) {
	pid, clock := newTestPID(0, 1, 0, 0, 2, 0, 0)
	pid.Reset(0, 0)

	var u float64
	for i := 0; i < 5; i++ {
		clock.Advance(time.Second)
		u = pid.Update(0, 10)
	}
	if pid.Integral() != 2 {
		t.Errorf("integral = %v, want clamped 2", pid.Integral())
	}
	if math.Abs(u-0.2) > tol {
		t.Errorf("output = %v, want Ki*limit*0.1 = 0.2", u)
	}
}

func TestPID_DerivativeDecays(t *testing.T) {
	pid, clock := newTestPID(1, 0.5, 5, 0, 10, 0.8, 0.5)
	pid.Reset(0, 3)

	prev := math.Inf(1)
	for i := 0; i < 300; i++ {
		clock.Advance(20 * time.Millisecond)
		pid.Update(2, 3)
		d := math.Abs(pid.SmoothedDerivative())
		if i > 5 && d > prev+tol {
			t.Fatalf("update %d: |derivative| grew from %v to %v", i, prev, d)
		}
		prev = d
	}
	if prev > 1e-6 {
		t.Errorf("derivative did not decay: %v", prev)
	}
}

func TestPID_OutputSmoothing(t *testing.T) {
	pid, clock := newTestPID(1, 0, 0, 0, 10, 0, 0)
	pid.WithOutputSmoothing(0.3)
	pid.Reset(0, 10)

	clock.Advance(100 * time.Millisecond)
	if u := pid.Update(0, 10); math.Abs(u-3) > tol {
		t.Errorf("first smoothed output = %v, want 3", u)
	}
	clock.Advance(100 * time.Millisecond)
	if u := pid.Update(0, 10); math.Abs(u-5.1) > tol {
		t.Errorf("second smoothed output = %v, want 5.1", u)
	}

	pid.Reset(0, 10)
	clock.Advance(100 * time.Millisecond)
	if u := pid.Update(0, 10); math.Abs(u-3) > tol {
		t.Errorf("reset should clear the smoothed output, got %v", u)
	}
}

func TestPID_ResetKeepsSmoothedDerivative(t *testing.T) {
	pid, clock := newTestPID(0, 0, 1, 0, 10, 0.5, 0)
	pid.Reset(0, 0)
	clock.Advance(time.Second)
	pid.Update(4, 0)

	pid.Reset(4, 0)
	if pid.Integral() != 0 {
		t.Errorf("integral after reset = %v", pid.Integral())
	}
	if math.Abs(pid.SmoothedDerivative()-2) > tol {
		t.Errorf("smoothed derivative after reset = %v, want 2", pid.SmoothedDerivative())
	}
}

func TestPID_ResetIsIdempotent(t *testing.T) {
	run := func(resets int) []float64 {
		pid, clock := newTestPID(5, 1, 20, 0.5, 10, 0.9, 0.5)
		for i := 0; i < resets; i++ {
			pid.Reset(2, 10)
		}
		out := make([]float64, 0, 50)
		for i := 0; i < 50; i++ {
			clock.Advance(16 * time.Millisecond)
			out = append(out, pid.Update(2+0.1*float64(i), 10))
		}
		return out
	}

	once, twice := run(1), run(2)
	for i := range once {
		if once[i] != twice[i] {
			t.Fatalf("update %d diverged: %v vs %v", i, once[i], twice[i])
		}
	}
}

func TestPID_ZeroDtPropagates(t *testing.T) {
	pid, _ := newTestPID(1, 1, 1, 1, 10, 0, 0)
	pid.Reset(0, 0)

	u := pid.Update(1, 2)
	if !math.IsNaN(u) && !math.IsInf(u, 0) {
		t.Errorf("zero dt should produce a non-finite output, got %v", u)
	}
}

func TestPID_UpdateChecked(t *testing.T) {
	pid, clock := newTestPID(1, 0, 0, 0, 10, 0, 0)

	if _, err := pid.UpdateChecked(1, 2); !errors.Is(err, dynamo.ErrInvalidState) {
		t.Errorf("before reset: err = %v, want ErrInvalidState", err)
	}

	pid.Reset(0, 0)
	if _, err := pid.UpdateChecked(1, 2); !errors.Is(err, dynamo.ErrNonPositiveTimeStep) {
		t.Errorf("zero dt: err = %v, want ErrNonPositiveTimeStep", err)
	}
	if pid.SmoothedMeasurement() != 0 {
		t.Error("rejected update changed state")
	}

	clock.Advance(time.Second)
	u, err := pid.UpdateChecked(5, 10)
	if err != nil {
		t.Fatalf("valid update: %v", err)
	}
	if math.Abs(u-5) > tol {
		t.Errorf("output = %v, want 5", u)
	}
}

func TestPID_Params(t *testing.T) {
	pid := NewPID(5, 1, 20, 0, 10, 0.9, 0.5)

	params := pid.GetParams()
	if params["kd"] != 20 || params["measurement_ema"] != 0.5 {
		t.Errorf("unexpected params: %v", params)
	}
	if _, ok := params["output_ema"]; ok {
		t.Error("output_ema should be absent while output smoothing is off")
	}

	if err := pid.SetParam("output_ema", 0.4); err != nil {
		t.Fatal(err)
	}
	if !pid.SmoothOutput || pid.OutputEMASmooth != 0.4 {
		t.Error("output_ema should enable output smoothing")
	}
	if err := pid.SetParam("gain", 1); !errors.Is(err, dynamo.ErrUnknownParam) {
		t.Errorf("unknown param err = %v", err)
	}
}
