package coupling

import (
	"errors"
	"fmt"
)

var (
	// ErrMissingEndpoint is returned when a coupling lacks a producer, a
	// consumer, or an owning component for either of them.
	ErrMissingEndpoint = errors.New("coupling endpoint missing")

	// ErrTypeMismatch is returned when a producer's value type differs from
	// the consumer's.
	ErrTypeMismatch = errors.New("producer and consumer types do not match")

	// ErrDuplicateCoupling is returned when an equal coupling is already
	// registered.
	ErrDuplicateCoupling = errors.New("coupling already exists")

	// ErrPanic wraps a panic recovered from a producer or a consumer.
	ErrPanic = errors.New("recovered panic")
)

func mismatch(producer, consumer Attribute) error {
	return fmt.Errorf("%w: %s produces %v, %s consumes %v",
		ErrTypeMismatch,
		producer.ID(), producer.ValueType(),
		consumer.ID(), consumer.ValueType())
}

// Phase names the half of a tick in which a coupling ran.
type Phase int

const (
	// PhaseCapture is the phase that copies producer values into buffers.
	PhaseCapture Phase = iota

	// PhaseApply is the phase that writes buffers into consumers.
	PhaseApply
)

func (p Phase) String() string {
	switch p {
	case PhaseCapture:
		return "capture"
	case PhaseApply:
		return "apply"
	default:
		return fmt.Sprintf("Phase(%d)", int(p))
	}
}

// UpdateError reports a producer read or consumer write that failed during a
// tick.
type UpdateError struct {
	Coupling Coupling
	Phase    Phase
	Err      error
}

func (e *UpdateError) Error() string {
	return fmt.Sprintf("coupling %s: %s failed: %v", e.Coupling, e.Phase, e.Err)
}

func (e *UpdateError) Unwrap() error {
	return e.Err
}
