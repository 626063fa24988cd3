package workspace

import (
	"sort"
	"sync"

	"github.com/sarchlab/cosim/coupling"
)

// UpdateControls is what an UpdateController may do during one tick.
type UpdateControls interface {
	// Components returns the components of the current tick in workspace
	// order.
	Components() []Component

	// CouplingManager returns the workspace's couplings.
	CouplingManager() *coupling.Manager

	// UpdateCouplings runs both coupling phases.
	UpdateCouplings()

	// UpdateComponent updates one component on the calling goroutine.
	UpdateComponent(c Component)

	// SubmitComponentUpdate updates one component on the worker pool and
	// marks wg done when it finishes. wg.Add is done by the call.
	SubmitComponentUpdate(c Component, wg *sync.WaitGroup)

	// NumThreads returns the size of the worker pool.
	NumThreads() int
}

// An UpdateController decides what happens in one tick, and in what order.
// Every controller must finish UpdateCouplings before it updates a component
// that is coupled.
type UpdateController interface {
	Name() string
	Update(ctrl UpdateControls)
}

// SerialController updates the couplings and then every component, one after
// another, in workspace order.
type SerialController struct{}

// Name returns "serial".
func (SerialController) Name() string {
	return "serial"
}

// Update runs one tick.
func (SerialController) Update(ctrl UpdateControls) {
	ctrl.UpdateCouplings()

	for _, c := range ctrl.Components() {
		ctrl.UpdateComponent(c)
	}
}

// PriorityController updates components by ascending priority. The couplings
// update as if they were a component of priority CouplingPriority, ahead of
// components with the same priority.
type PriorityController struct {
	CouplingPriority int
}

// Name returns "priority".
func (PriorityController) Name() string {
	return "priority"
}

// Update runs one tick.
func (p PriorityController) Update(ctrl UpdateControls) {
	comps := ctrl.Components()
	sort.SliceStable(comps, func(i, j int) bool {
		return comps[i].Priority() < comps[j].Priority()
	})

	couplingsDone := false
	for _, c := range comps {
		if !couplingsDone && c.Priority() >= p.CouplingPriority {
			ctrl.UpdateCouplings()
			couplingsDone = true
		}

		ctrl.UpdateComponent(c)
	}

	if !couplingsDone {
		ctrl.UpdateCouplings()
	}
}

// ParallelController updates the couplings, then updates all components
// concurrently on the worker pool and waits for all of them.
type ParallelController struct{}

// Name returns "parallel".
func (ParallelController) Name() string {
	return "parallel"
}

// Update runs one tick.
func (ParallelController) Update(ctrl UpdateControls) {
	ctrl.UpdateCouplings()

	var wg sync.WaitGroup
	for _, c := range ctrl.Components() {
		ctrl.SubmitComponentUpdate(c, &wg)
	}
	wg.Wait()
}
