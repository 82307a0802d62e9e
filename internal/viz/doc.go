// Package viz renders a hover run live in the terminal with Bubble Tea.
//
//   - [Model]: the live view, ticking a [sim.Runner] on real frame time
//   - [Picker]: preset menu that hands over to the live view
//   - [Canvas]: braille dot canvas the particle is drawn on
//
// # Key Bindings
//
//	Space - Pause/Resume
//	R     - Reset particle and controller
//	Tab   - Select next gain
//	Up/K  - Raise selected gain (manual controller: more thrust)
//	Down/J- Lower selected gain (manual controller: less thrust)
//	+/-   - Move the setpoint
//	Q     - Quit
//
// The view only reads the environment; all changes go through the runner
// and the controller's parameters.
package viz
