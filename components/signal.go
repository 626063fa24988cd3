// Package components provides ready-made workspace components: signal
// sources, relays that transform values, scopes that record them, and data
// tables that replay recorded rows.
package components

import (
	"fmt"
	"math"

	"github.com/sarchlab/cosim/coupling"
	"github.com/sarchlab/cosim/workspace"
)

// A Waveform is the shape of a Signal.
type Waveform string

// Waveforms supported by Signal.
const (
	Constant Waveform = "constant"
	Ramp     Waveform = "ramp"
	Sine     Waveform = "sine"
	Square   Waveform = "square"
)

// A Signal produces a waveform sampled once per tick.
type Signal struct {
	*workspace.ComponentBase

	waveform  Waveform
	amplitude float64
	frequency float64
	offset    float64

	step  uint64
	value float64

	output      *coupling.FuncProducer[float64]
	amplitudeIn *coupling.FuncConsumer[float64]
}

// SignalBuilder can build signals.
type SignalBuilder struct {
	waveform  Waveform
	amplitude float64
	frequency float64
	offset    float64
}

// MakeSignalBuilder returns a builder for a unit sine with a period of 100
// ticks.
func MakeSignalBuilder() SignalBuilder {
	return SignalBuilder{
		waveform:  Sine,
		amplitude: 1,
		frequency: 0.01,
	}
}

// WithWaveform sets the shape of the signal.
func (b SignalBuilder) WithWaveform(w Waveform) SignalBuilder {
	b.waveform = w
	return b
}

// WithAmplitude sets the peak value.
func (b SignalBuilder) WithAmplitude(a float64) SignalBuilder {
	b.amplitude = a
	return b
}

// WithFrequency sets the number of cycles per tick.
func (b SignalBuilder) WithFrequency(f float64) SignalBuilder {
	b.frequency = f
	return b
}

// WithOffset sets the value added to every sample.
func (b SignalBuilder) WithOffset(o float64) SignalBuilder {
	b.offset = o
	return b
}

// Build creates a Signal. The name may be empty to let the workspace pick
// one.
func (b SignalBuilder) Build(name string) (*Signal, error) {
	switch b.waveform {
	case Constant, Ramp, Sine, Square:
	default:
		return nil, fmt.Errorf("unknown waveform %q", b.waveform)
	}

	s := &Signal{
		ComponentBase: workspace.NewComponentBase(name),
		waveform:      b.waveform,
		amplitude:     b.amplitude,
		frequency:     b.frequency,
		offset:        b.offset,
	}
	s.value = s.sample(0)

	s.output = coupling.NewProducer(s, "signal", "value",
		func() float64 { return s.value },
		coupling.WithDescription("current sample"))
	s.amplitudeIn = coupling.NewConsumer(s, "signal", "amplitude",
		func(v float64) { s.amplitude = v },
		coupling.WithDescription("peak value"))

	s.AddProducer(s.output)
	s.AddConsumer(s.amplitudeIn)

	return s, nil
}

// Output returns the producer of the current sample.
func (s *Signal) Output() *coupling.FuncProducer[float64] {
	return s.output
}

// AmplitudeInput returns the consumer that changes the amplitude.
func (s *Signal) AmplitudeInput() *coupling.FuncConsumer[float64] {
	return s.amplitudeIn
}

// Update advances the signal by one sample.
func (s *Signal) Update() error {
	s.step++
	s.value = s.sample(s.step)

	return nil
}

func (s *Signal) sample(step uint64) float64 {
	phase := s.frequency * float64(step)

	var v float64
	switch s.waveform {
	case Constant:
		v = 1
	case Ramp:
		v = phase - math.Floor(phase)
	case Sine:
		v = math.Sin(2 * math.Pi * phase)
	case Square:
		if phase-math.Floor(phase) < 0.5 {
			v = 1
		} else {
			v = -1
		}
	}

	return s.offset + s.amplitude*v
}

// Value returns the current sample.
func (s *Signal) Value() float64 {
	s.Lock()
	defer s.Unlock()

	return s.value
}

// Reset restarts the waveform.
func (s *Signal) Reset() {
	s.Lock()
	defer s.Unlock()

	s.step = 0
	s.value = s.sample(0)
}
