package workspace

import (
	"sync"
	"sync/atomic"

	"github.com/sarchlab/cosim/coupling"
	"github.com/sarchlab/cosim/sim/hooking"
	"github.com/sarchlab/cosim/sim/naming"
)

// A Component is a unit of simulation that the workspace advances once per
// tick.
type Component interface {
	coupling.Component

	SetName(name string)

	// Update runs the component's own computation for one tick. It is called
	// with the component's locks held, after all couplings have settled.
	Update() error

	// TickCompleted is called on every component once a tick has finished.
	TickCompleted()

	// Priority orders components under the priority controller. Lower
	// values update first.
	Priority() int

	// IsUpdateOn reports whether Update should be called.
	IsUpdateOn() bool
}

// A Stopper is notified when a run or a batch of iterations ends.
type Stopper interface {
	Stopped()
}

// A Formatter names the file format its archive entry uses.
type Formatter interface {
	DefaultFormat() string
}

// WorkspaceAware components are told which workspace they were added to.
type WorkspaceAware interface {
	SetWorkspace(w *Workspace)
}

// ComponentBase provides the bookkeeping that most components need. It
// guards the component's state with its own mutex.
type ComponentBase struct {
	sync.Mutex
	hooking.HookableBase
	coupling.AttributeSet
	naming.NamedBase

	priority  atomic.Int64
	updateOff atomic.Bool
}

// NewComponentBase creates a ComponentBase.
func NewComponentBase(name string) *ComponentBase {
	c := new(ComponentBase)
	c.SetName(name)

	return c
}

// Locks returns the component's mutex.
func (c *ComponentBase) Locks() []sync.Locker {
	return []sync.Locker{&c.Mutex}
}

// CouplingRemoved does nothing by default.
func (c *ComponentBase) CouplingRemoved(coupling.Coupling) {}

// Update does nothing by default.
func (c *ComponentBase) Update() error {
	return nil
}

// TickCompleted does nothing by default.
func (c *ComponentBase) TickCompleted() {}

// Priority returns the update priority.
func (c *ComponentBase) Priority() int {
	return int(c.priority.Load())
}

// SetPriority changes the update priority.
func (c *ComponentBase) SetPriority(p int) {
	c.priority.Store(int64(p))
}

// IsUpdateOn reports whether the component takes part in ticks.
func (c *ComponentBase) IsUpdateOn() bool {
	return !c.updateOff.Load()
}

// SetUpdateOn turns the component's per-tick update on or off.
func (c *ComponentBase) SetUpdateOn(on bool) {
	c.updateOff.Store(!on)
}
