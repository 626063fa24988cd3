package components

import (
	"fmt"
	"math"

	"github.com/sarchlab/cosim/coupling"
	"github.com/sarchlab/cosim/workspace"
)

// A Squashing function bounds the output of a Relay.
type Squashing string

// Squashing functions supported by Relay.
const (
	Linear  Squashing = "linear"
	Clip    Squashing = "clip"
	Sigmoid Squashing = "sigmoid"
	Tanh    Squashing = "tanh"
)

// A Relay applies gain, bias, and a squashing function to its input. The
// output reflects the input of the previous tick.
type Relay struct {
	*workspace.ComponentBase

	gain      float64
	bias      float64
	squashing Squashing
	lower     float64
	upper     float64

	input  float64
	output float64

	in  *coupling.FuncConsumer[float64]
	out *coupling.FuncProducer[float64]
}

// NewRelay creates a linear relay with unit gain.
func NewRelay(name string) *Relay {
	r := &Relay{
		ComponentBase: workspace.NewComponentBase(name),
		gain:          1,
		squashing:     Linear,
		lower:         -1,
		upper:         1,
	}

	r.in = coupling.NewConsumer(r, "relay", "in",
		func(v float64) { r.input = v })
	r.out = coupling.NewProducer(r, "relay", "out",
		func() float64 { return r.output })

	r.AddConsumer(r.in)
	r.AddProducer(r.out)

	return r
}

// SetGain sets the factor applied to the input.
func (r *Relay) SetGain(gain float64) {
	r.Lock()
	defer r.Unlock()

	r.gain = gain
}

// SetBias sets the value added after the gain.
func (r *Relay) SetBias(bias float64) {
	r.Lock()
	defer r.Unlock()

	r.bias = bias
}

// SetSquashing sets the squashing function and the bounds it squashes into.
func (r *Relay) SetSquashing(s Squashing, lower, upper float64) error {
	switch s {
	case Linear, Clip, Sigmoid, Tanh:
	default:
		return fmt.Errorf("unknown squashing function %q", s)
	}

	if lower > upper {
		return fmt.Errorf("lower bound %g above upper bound %g", lower, upper)
	}

	r.Lock()
	defer r.Unlock()

	r.squashing = s
	r.lower = lower
	r.upper = upper

	return nil
}

// Input returns the consumer of the relay.
func (r *Relay) Input() *coupling.FuncConsumer[float64] {
	return r.in
}

// Output returns the producer of the relay.
func (r *Relay) Output() *coupling.FuncProducer[float64] {
	return r.out
}

// Update computes the output from the last input received.
func (r *Relay) Update() error {
	r.output = r.squash(r.gain*r.input + r.bias)

	return nil
}

func (r *Relay) squash(x float64) float64 {
	span := r.upper - r.lower

	switch r.squashing {
	case Clip:
		return math.Max(r.lower, math.Min(r.upper, x))
	case Sigmoid:
		return r.lower + span/(1+math.Exp(-x))
	case Tanh:
		return r.lower + span*(math.Tanh(x)+1)/2
	default:
		return x
	}
}

// Value returns the current output.
func (r *Relay) Value() float64 {
	r.Lock()
	defer r.Unlock()

	return r.output
}
