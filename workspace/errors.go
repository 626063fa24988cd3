package workspace

import (
	"errors"
	"fmt"
)

var (
	// ErrRunning is returned by operations that need the updater to be idle.
	ErrRunning = errors.New("workspace is running")

	// ErrDuplicateName is returned when a component's name is taken.
	ErrDuplicateName = errors.New("component name already used")
)

// ComponentError reports a component update that failed during a tick.
type ComponentError struct {
	Component Component
	Iteration uint64
	Err       error
}

func (e *ComponentError) Error() string {
	return fmt.Sprintf("component %s at iteration %d: %v",
		e.Component.Name(), e.Iteration, e.Err)
}

func (e *ComponentError) Unwrap() error {
	return e.Err
}
