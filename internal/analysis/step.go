package analysis

import (
	"math"

	"github.com/san-kum/hoversim/internal/dynamo"
)

const (
	riseLow      = 0.1
	riseHigh     = 0.9
	settleBand   = 0.02
	steadyWindow = 0.1
)

// StepStats describes how the height answered the first setpoint step of a
// run. Times are seconds from the first sample; a negative time means the
// event never happened.
type StepStats struct {
	Start    float64
	Setpoint float64

	RiseTime     float64
	SettlingTime float64
	Settled      bool
	// Overshoot is the peak excursion past the setpoint relative to the
	// step size.
	Overshoot        float64
	SteadyStateError float64
}

// StepResponse evaluates the samples up to the first setpoint change.
func StepResponse(samples []dynamo.Sample) StepStats {
	stats := StepStats{RiseTime: -1, SettlingTime: -1}
	if len(samples) == 0 {
		return stats
	}

	sp := samples[0].Setpoint
	end := len(samples)
	for i, s := range samples {
		if s.Setpoint != sp {
			end = i
			break
		}
	}
	seg := samples[:end]
	t0 := seg[0].Time
	start := seg[0].Position.Y()
	step := sp - start

	stats.Start = start
	stats.Setpoint = sp
	if step == 0 {
		stats.RiseTime = 0
		stats.SettlingTime = 0
		stats.Settled = true
		return stats
	}

	// progress is 0 at the start height and 1 at the setpoint
	progress := func(s dynamo.Sample) float64 { return (s.Position.Y() - start) / step }

	lowAt := -1.0
	for _, s := range seg {
		p := progress(s)
		if lowAt < 0 && p >= riseLow {
			lowAt = s.Time
		}
		if p >= riseHigh {
			if lowAt >= 0 {
				stats.RiseTime = s.Time - lowAt
			}
			break
		}
	}

	band := settleBand * math.Abs(step)
	lastOut := -1
	for i, s := range seg {
		if math.Abs(sp-s.Position.Y()) > band {
			lastOut = i
		}
		stats.Overshoot = math.Max(stats.Overshoot, progress(s)-1)
	}
	if lastOut < len(seg)-1 {
		stats.Settled = true
		stats.SettlingTime = seg[lastOut+1].Time - t0
	}

	n := int(math.Ceil(float64(len(seg)) * steadyWindow))
	sum := 0.0
	for _, s := range seg[len(seg)-n:] {
		sum += sp - s.Position.Y()
	}
	stats.SteadyStateError = sum / float64(n)

	return stats
}
