// Package workspace owns the components of a co-simulation and advances them
// tick by tick.
package workspace

import (
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/sarchlab/cosim/coupling"
	"github.com/sarchlab/cosim/locking"
	"github.com/sarchlab/cosim/sim/hooking"
	"github.com/sarchlab/cosim/sim/naming"
)

// A Workspace holds components, the couplings between them, and the updater
// that ticks them.
type Workspace struct {
	hooking.HookableBase

	lock        sync.RWMutex
	components  []Component
	lockOrder   *locking.Order
	dirty       bool
	archivePath string

	namer   *naming.DefaultNamer
	manager *coupling.Manager
	logger  *slog.Logger
	updater *Updater
}

// Components returns the components in the order they were added.
func (w *Workspace) Components() []Component {
	w.lock.RLock()
	defer w.lock.RUnlock()

	comps := make([]Component, len(w.components))
	copy(comps, w.components)

	return comps
}

// ComponentByName finds a component by name, ignoring case.
func (w *Workspace) ComponentByName(name string) (Component, bool) {
	w.lock.RLock()
	defer w.lock.RUnlock()

	return w.findByNameLocked(name)
}

func (w *Workspace) findByNameLocked(name string) (Component, bool) {
	for _, c := range w.components {
		if strings.EqualFold(c.Name(), name) {
			return c, true
		}
	}

	return nil, false
}

// AddComponent registers c. An unnamed component gets a default name of the
// form <TypeName><index>.
func (w *Workspace) AddComponent(c Component) error {
	w.lock.Lock()

	if c.Name() == "" {
		w.assignDefaultNameLocked(c)
	}

	if _, found := w.findByNameLocked(c.Name()); found {
		w.lock.Unlock()
		return fmt.Errorf("%w: %s", ErrDuplicateName, c.Name())
	}

	w.components = append(w.components, c)
	w.rebuildLockOrderLocked()
	w.dirty = true
	w.lock.Unlock()

	if aware, ok := c.(WorkspaceAware); ok {
		aware.SetWorkspace(w)
	}

	w.logger.Debug("component added", "component", c.Name())
	w.InvokeHook(hooking.HookCtx{
		Domain: w,
		Pos:    HookPosComponentAdded,
		Item:   c,
	})

	return nil
}

func (w *Workspace) assignDefaultNameLocked(c Component) {
	for {
		name := w.namer.Next(c)
		if _, taken := w.findByNameLocked(name); !taken {
			c.SetName(name)
			return
		}
	}
}

func (w *Workspace) rebuildLockOrderLocked() {
	groups := make([][]sync.Locker, 0, len(w.components))
	for _, c := range w.components {
		groups = append(groups, c.Locks())
	}

	w.lockOrder = locking.NewOrder(groups...)
}

// RemoveComponent removes c and every coupling touching it. Listeners are
// notified before the couplings go. Removing an unknown component does
// nothing and returns false.
func (w *Workspace) RemoveComponent(c Component) bool {
	if !w.hasComponent(c) {
		return false
	}

	w.InvokeHook(hooking.HookCtx{
		Domain: w,
		Pos:    HookPosComponentRemoved,
		Item:   c,
	})

	w.manager.RemoveCouplings(c)

	w.lock.Lock()
	defer w.lock.Unlock()

	for i, existing := range w.components {
		if existing == c {
			w.components = append(w.components[:i:i], w.components[i+1:]...)
			w.rebuildLockOrderLocked()
			w.dirty = true

			return true
		}
	}

	return false
}

func (w *Workspace) hasComponent(c Component) bool {
	w.lock.RLock()
	defer w.lock.RUnlock()

	for _, existing := range w.components {
		if existing == c {
			return true
		}
	}

	return false
}

// Clear stops any run, removes every component and coupling, and resets the
// clock.
func (w *Workspace) Clear() {
	w.Updater().Stop()

	for _, c := range w.Components() {
		w.RemoveComponent(c)
	}

	w.manager.Clear()
	w.ResetTime()

	w.lock.Lock()
	w.dirty = false
	w.archivePath = ""
	w.lock.Unlock()

	w.logger.Info("workspace cleared")
	w.InvokeHook(hooking.HookCtx{Domain: w, Pos: HookPosWorkspaceCleared})
}

// ChangesExist reports whether the workspace changed since it was last
// saved or cleared.
func (w *Workspace) ChangesExist() bool {
	w.lock.RLock()
	defer w.lock.RUnlock()

	return w.dirty
}

// SetDirty marks whether the workspace has unsaved changes.
func (w *Workspace) SetDirty(dirty bool) {
	w.lock.Lock()
	defer w.lock.Unlock()

	w.dirty = dirty
}

// ArchivePath returns the file the workspace was last saved to or loaded
// from.
func (w *Workspace) ArchivePath() string {
	w.lock.RLock()
	defer w.lock.RUnlock()

	return w.archivePath
}

// SetArchivePath records the file the workspace was saved to or loaded from.
func (w *Workspace) SetArchivePath(path string) {
	w.lock.Lock()
	defer w.lock.Unlock()

	w.archivePath = path
}

// CouplingManager returns the registry of couplings.
func (w *Workspace) CouplingManager() *coupling.Manager {
	return w.manager
}

// Logger returns the workspace's logger.
func (w *Workspace) Logger() *slog.Logger {
	return w.logger
}

// AddCoupling registers a coupling and marks the workspace dirty.
func (w *Workspace) AddCoupling(c coupling.Coupling) error {
	if err := w.manager.AddCoupling(c); err != nil {
		return err
	}

	w.SetDirty(true)

	return nil
}

// Couple connects a producer to a consumer and registers the coupling.
func (w *Workspace) Couple(
	producer, consumer coupling.Attribute,
) (coupling.Coupling, error) {
	c, err := coupling.Connect(producer, consumer)
	if err != nil {
		return nil, err
	}

	if err := w.AddCoupling(c); err != nil {
		return nil, err
	}

	return c, nil
}

// RemoveCoupling unregisters a coupling.
func (w *Workspace) RemoveCoupling(c coupling.Coupling) bool {
	removed := w.manager.RemoveCoupling(c)
	if removed {
		w.SetDirty(true)
	}

	return removed
}

// CoupleOneToOne couples the i-th producer to the i-th consumer, stopping at
// the shorter list. If any pair cannot be coupled, nothing is registered.
func (w *Workspace) CoupleOneToOne(
	producers, consumers []coupling.Attribute,
) ([]coupling.Coupling, error) {
	n := min(len(producers), len(consumers))

	couplings := make([]coupling.Coupling, 0, n)
	for i := 0; i < n; i++ {
		c, err := coupling.Connect(producers[i], consumers[i])
		if err != nil {
			return nil, err
		}

		couplings = append(couplings, c)
	}

	return w.addAll(couplings)
}

// CoupleOneToMany couples every producer to every consumer. Since a consumer
// keeps only its latest source, each consumer ends up fed by the last
// producer. If any pair cannot be coupled, nothing is registered.
func (w *Workspace) CoupleOneToMany(
	producers, consumers []coupling.Attribute,
) ([]coupling.Coupling, error) {
	couplings := make([]coupling.Coupling, 0, len(producers)*len(consumers))
	for _, p := range producers {
		for _, c := range consumers {
			l, err := coupling.Connect(p, c)
			if err != nil {
				return nil, err
			}

			couplings = append(couplings, l)
		}
	}

	return w.addAll(couplings)
}

func (w *Workspace) addAll(
	couplings []coupling.Coupling,
) ([]coupling.Coupling, error) {
	if err := w.manager.AddCouplings(couplings); err != nil {
		return nil, err
	}

	w.SetDirty(true)

	return couplings, nil
}

// SyncOnAllComponents runs task while holding the locks of every component,
// acquired in workspace order.
func (w *Workspace) SyncOnAllComponents(task func() error) error {
	w.lock.RLock()
	locks := w.lockOrder.Locks()
	w.lock.RUnlock()

	return locking.Sync(locks, task)
}

// SyncOnComponents runs task while holding the locks of the given
// components, acquired in workspace order whatever the order of comps.
func (w *Workspace) SyncOnComponents(
	comps []Component,
	task func() error,
) error {
	groups := make([][]sync.Locker, 0, len(comps))
	for _, c := range comps {
		groups = append(groups, c.Locks())
	}

	w.lock.RLock()
	locks := w.lockOrder.Sort(locking.Collect(groups...))
	w.lock.RUnlock()

	return locking.Sync(locks, task)
}

// LockOrder returns the canonical order of component locks.
func (w *Workspace) LockOrder() *locking.Order {
	w.lock.RLock()
	defer w.lock.RUnlock()

	return w.lockOrder
}

// Updater returns the updater that ticks the workspace. The same updater
// lives as long as the workspace.
func (w *Workspace) Updater() *Updater {
	return w.updater
}

// SetUpdateController replaces the update controller and the worker pool
// size. It fails with ErrRunning while a run is in progress. Hooks on the
// updater are told about the change.
func (w *Workspace) SetUpdateController(
	ctrl UpdateController,
	numThreads int,
) error {
	if ctrl == nil {
		ctrl = SerialController{}
	}

	u := w.updater
	if err := u.reconfigure(ctrl, numThreads); err != nil {
		return err
	}

	w.logger.Info("update controller changed",
		"controller", ctrl.Name(),
		"threads", u.NumThreads())
	u.InvokeHook(hooking.HookCtx{
		Domain: u,
		Pos:    HookPosControllerChanged,
		Item:   ctrl,
	})

	return nil
}

// ResetUpdateController goes back to the serial controller.
func (w *Workspace) ResetUpdateController() error {
	return w.SetUpdateController(SerialController{}, w.updater.NumThreads())
}

// SetNumThreads resizes the worker pool. It fails with ErrRunning while a
// run is in progress.
func (w *Workspace) SetNumThreads(n int) error {
	u := w.updater
	if err := u.reconfigure(nil, n); err != nil {
		return err
	}

	u.InvokeHook(hooking.HookCtx{
		Domain: u,
		Pos:    HookPosThreadsChanged,
		Item:   u.NumThreads(),
	})

	return nil
}

// Iterate runs n ticks and returns when they are done.
func (w *Workspace) Iterate(n int) error {
	return w.Updater().Iterate(n)
}

// SingleUpdate runs one tick.
func (w *Workspace) SingleUpdate() error {
	return w.Updater().SingleUpdate()
}

// Run starts ticking in the background.
func (w *Workspace) Run() error {
	return w.Updater().Run()
}

// Stop ends a run after the tick in flight.
func (w *Workspace) Stop() {
	w.Updater().Stop()
}

// RequestStop asks a run to end without waiting.
func (w *Workspace) RequestStop() {
	w.Updater().RequestStop()
}

// Iteration returns the number of completed ticks.
func (w *Workspace) Iteration() uint64 {
	return w.Updater().Iteration()
}

// Time returns the simulated time.
func (w *Workspace) Time() float64 {
	return w.Updater().Time()
}

// ResetTime sets the iteration count and time back to zero.
func (w *Workspace) ResetTime() {
	w.Updater().ResetTime()
}

// UpdateDelay returns the pause between ticks while running.
func (w *Workspace) UpdateDelay() time.Duration {
	return w.Updater().UpdateDelay()
}

// SetUpdateDelay changes the pause between ticks while running.
func (w *Workspace) SetUpdateDelay(d time.Duration) {
	w.Updater().SetUpdateDelay(d)
}

func (w *Workspace) String() string {
	var b strings.Builder

	fmt.Fprintf(&b, "Workspace at iteration %d\n", w.Iteration())
	for _, c := range w.Components() {
		fmt.Fprintf(&b, "  component %s\n", c.Name())
	}

	for _, c := range w.manager.Couplings() {
		fmt.Fprintf(&b, "  coupling %s\n", c)
	}

	return b.String()
}
