package analysis

import (
	"math/cmplx"

	"github.com/mjibson/go-dsp/fft"
	"github.com/san-kum/hoversim/internal/dynamo"
)

// PowerSpectrum returns the magnitude of the first half of the discrete
// Fourier transform. Any length is accepted.
func PowerSpectrum(data []float64) []float64 {
	if len(data) == 0 {
		return nil
	}
	spec := fft.FFTReal(data)
	ps := make([]float64, len(spec)/2)

	for i := range ps {
		ps[i] = cmplx.Abs(spec[i])
	}

	return ps
}

// DominantFrequency returns the frequency in Hz of the strongest non-DC bin
// of data sampled every dt seconds, and that bin's magnitude.
func DominantFrequency(data []float64, dt float64) (float64, float64) {
	ps := PowerSpectrum(data)
	if len(ps) < 2 || dt <= 0 {
		return 0, 0
	}

	best := 1
	for i := 2; i < len(ps); i++ {
		if ps[i] > ps[best] {
			best = i
		}
	}
	return float64(best) / (float64(len(data)) * dt), ps[best]
}

// ErrorSeries is setpoint minus true height per tick.
func ErrorSeries(r *dynamo.Result) []float64 {
	return r.Series(func(s dynamo.Sample) float64 { return s.Setpoint - s.Position.Y() })
}

// MeanDt is the average tick length of a run.
func MeanDt(r *dynamo.Result) float64 {
	if len(r.Samples) == 0 {
		return 0
	}
	sum := 0.0
	for _, s := range r.Samples {
		sum += s.Dt
	}
	return sum / float64(len(r.Samples))
}
