// Package analysis characterizes recorded hover runs.
//
//   - [StepResponse]: rise time, settling time, overshoot and steady-state
//     error of the first setpoint step
//   - [PowerSpectrum] and [DominantFrequency]: spectrum of a series, used on
//     the tracking error to spot controller oscillation
//   - [PhasePortrait]: height against vertical velocity
//
// A run that oscillates around the setpoint shows up as a peak away from
// zero frequency:
//
//	f, _ := analysis.DominantFrequency(analysis.ErrorSeries(result), dt)
package analysis
