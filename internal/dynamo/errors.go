package dynamo

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalidState indicates an update or step before the first reset.
	ErrInvalidState = errors.New("dynamo: invalid state (used before reset)")

	// ErrNonPositiveTimeStep indicates the clock did not advance between calls.
	ErrNonPositiveTimeStep = errors.New("dynamo: non-positive time step")

	// ErrUnstable indicates the true state diverged to NaN or Inf.
	ErrUnstable = errors.New("dynamo: simulation unstable (state diverged)")

	// ErrUnknownParam indicates a Configurable does not expose the name.
	ErrUnknownParam = errors.New("dynamo: unknown parameter")

	// ErrContextCanceled indicates the run was interrupted.
	ErrContextCanceled = errors.New("dynamo: simulation canceled by context")
)

// SimulationError wraps an error with driver-loop context.
type SimulationError struct {
	Step    int
	Time    float64
	Wrapped error
}

func (e *SimulationError) Error() string {
	return fmt.Sprintf("step %d (t=%.4f): %v", e.Step, e.Time, e.Wrapped)
}

func (e *SimulationError) Unwrap() error {
	return e.Wrapped
}
