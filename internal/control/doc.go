// Package control provides feedback controllers for the hover simulation.
//
// Controllers implement the [dynamo.Controller] interface and turn a scalar
// measurement and setpoint into a scalar output:
//
//   - [PID]: PID with feed-forward and cascaded exponential smoothing
//   - [None]: always zero (free fall reference)
//   - [ManualController]: returns a value set from the outside
//
// # Usage
//
//	pid := control.NewPID(5, 1, 20, 0, 10, 0.9, 0.5) // Kp, Ki, Kd, kFF, limit, derivative EMA, measurement EMA
//	pid.Reset(obs.Y(), setpoint)
//	u := pid.Update(obs.Y(), setpoint) // dt is read from the clock
//
// [PID] implements [dynamo.Configurable] for live tuning.
package control
