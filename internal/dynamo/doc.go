// Package dynamo provides the primitives shared by the hover simulation.
//
// The physics engine and the controller never share state; they are coupled
// only through the values defined here:
//
//   - [Clock]: injectable time source, one reading per step or update
//   - [Controller]: feedback controller driven by a scalar measurement
//   - [Environment]: the plant advanced by an external force vector
//   - [Sample]: one driver tick, as consumed by metrics and renderers
//
// # Time
//
// Both components compute dt as the wall-clock delta since their own last
// call. Use [ManualClock] to make that delta deterministic:
//
//	clock := dynamo.NewManualClock(time.Unix(0, 0))
//	env := physics.NewParticleEnv(0.1, clock, nil)
//	env.Reset(nil)
//	clock.Advance(100 * time.Millisecond)
//	obs, done := env.Step(mgl64.Vec2{0, 0})
//
// # Thread Safety
//
// Environments and controllers are NOT thread-safe. Each instance must be
// driven by exactly one caller at a time.
package dynamo
