// Package physics provides the plant of the hover simulation.
//
// [ParticleEnv] is a point mass in a square box, pulled down by gravity,
// held up by a one-sided floor spring and pushed by an actuator force. It
// integrates with semi-implicit Euler over the real time elapsed between
// calls, and exposes its position only through a noisy sensor quantized to
// 10 cm:
//
//	env := physics.NewParticleEnv(0.1, nil, nil)
//	obs := env.Reset(nil)
//	obs, done := env.Step(mgl64.Vec2{0, 6})
//
// ParticleEnv implements [dynamo.Configurable] for runtime parameter
// adjustment. Sensor noise comes from a [NormalSource]; [BoxMuller]
// reproduces the reference generator draw for draw.
package physics
