package workspace

import (
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/sarchlab/cosim/coupling"
	"github.com/sarchlab/cosim/locking"
	"github.com/sarchlab/cosim/sim/hooking"
)

// State is the state of an Updater.
type State int

// The states of an Updater.
const (
	StateIdle State = iota
	StateRunning
	StateStepping
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateRunning:
		return "running"
	case StateStepping:
		return "stepping"
	default:
		return fmt.Sprintf("State(%d)", int(s))
	}
}

// An Updater drives the ticks of a workspace. At most one tick is in flight
// at any time.
type Updater struct {
	hooking.HookableBase

	ws         *Workspace
	controller UpdateController
	pool       *workerPool
	logger     *slog.Logger

	tickLock sync.Mutex
	current  []Component

	stateLock   sync.Mutex
	state       State
	stopChan    chan struct{}
	doneChan    chan struct{}
	stopping    bool
	iteration   uint64
	now         float64
	timeStep    float64
	updateDelay time.Duration
}

func newUpdater(
	ws *Workspace,
	controller UpdateController,
	numThreads int,
	logger *slog.Logger,
) *Updater {
	if controller == nil {
		controller = SerialController{}
	}

	return &Updater{
		ws:         ws,
		controller: controller,
		pool:       newWorkerPool(numThreads),
		logger:     logger,
		timeStep:   1,
	}
}

// Controller returns the controller in use.
func (u *Updater) Controller() UpdateController {
	u.stateLock.Lock()
	defer u.stateLock.Unlock()

	return u.controller
}

// NumThreads returns the size of the worker pool.
func (u *Updater) NumThreads() int {
	u.stateLock.Lock()
	defer u.stateLock.Unlock()

	return u.pool.size()
}

// reconfigure swaps the controller and the worker pool between ticks. A nil
// controller keeps the current one. It fails with ErrRunning while a run is
// in progress.
func (u *Updater) reconfigure(ctrl UpdateController, numThreads int) error {
	u.tickLock.Lock()
	defer u.tickLock.Unlock()

	u.stateLock.Lock()
	defer u.stateLock.Unlock()

	if u.state != StateIdle {
		return ErrRunning
	}

	if ctrl != nil {
		u.controller = ctrl
	}
	u.pool = newWorkerPool(numThreads)

	return nil
}

// State returns the current state.
func (u *Updater) State() State {
	u.stateLock.Lock()
	defer u.stateLock.Unlock()

	return u.state
}

// IsRunning reports whether Run is ticking.
func (u *Updater) IsRunning() bool {
	return u.State() == StateRunning
}

// Iteration returns the number of completed ticks.
func (u *Updater) Iteration() uint64 {
	u.stateLock.Lock()
	defer u.stateLock.Unlock()

	return u.iteration
}

// Time returns the simulated time.
func (u *Updater) Time() float64 {
	u.stateLock.Lock()
	defer u.stateLock.Unlock()

	return u.now
}

// TimeStep returns how much simulated time a tick covers.
func (u *Updater) TimeStep() float64 {
	u.stateLock.Lock()
	defer u.stateLock.Unlock()

	return u.timeStep
}

// SetTimeStep changes how much simulated time a tick covers.
func (u *Updater) SetTimeStep(step float64) {
	u.stateLock.Lock()
	defer u.stateLock.Unlock()

	u.timeStep = step
}

// ResetTime sets the iteration count and the time back to zero.
func (u *Updater) ResetTime() {
	u.stateLock.Lock()
	defer u.stateLock.Unlock()

	u.iteration = 0
	u.now = 0
}

// UpdateDelay returns the pause between ticks while running.
func (u *Updater) UpdateDelay() time.Duration {
	u.stateLock.Lock()
	defer u.stateLock.Unlock()

	return u.updateDelay
}

// SetUpdateDelay changes the pause between ticks. It only throttles the run.
func (u *Updater) SetUpdateDelay(d time.Duration) {
	u.stateLock.Lock()
	defer u.stateLock.Unlock()

	u.updateDelay = d
}

// SingleUpdate runs exactly one tick.
func (u *Updater) SingleUpdate() error {
	return u.Iterate(1)
}

// Iterate runs n ticks on the calling goroutine. It fails with ErrRunning
// while Run is ticking and waits for any other Iterate to finish first.
func (u *Updater) Iterate(n int) error {
	if u.IsRunning() {
		return ErrRunning
	}

	u.tickLock.Lock()

	u.stateLock.Lock()
	if u.state == StateRunning {
		u.stateLock.Unlock()
		u.tickLock.Unlock()

		return ErrRunning
	}
	u.state = StateStepping
	u.stateLock.Unlock()

	u.InvokeHook(hooking.HookCtx{Domain: u, Pos: HookPosUpdatingStarted})

	for i := 0; i < n; i++ {
		u.tick()
	}

	u.stateLock.Lock()
	u.state = StateIdle
	u.stateLock.Unlock()
	u.tickLock.Unlock()

	u.finish()

	return nil
}

// Run starts ticking on a background goroutine until Stop is called.
func (u *Updater) Run() error {
	u.stateLock.Lock()
	if u.state != StateIdle {
		u.stateLock.Unlock()
		return ErrRunning
	}

	u.state = StateRunning
	u.stopping = false
	u.stopChan = make(chan struct{})
	u.doneChan = make(chan struct{})
	stop, done := u.stopChan, u.doneChan
	u.stateLock.Unlock()

	u.logger.Info("updater started", "controller", u.Controller().Name())
	u.InvokeHook(hooking.HookCtx{Domain: u, Pos: HookPosUpdatingStarted})

	go u.runLoop(stop, done)

	return nil
}

func (u *Updater) runLoop(stop, done chan struct{}) {
	defer close(done)

	for !isClosed(stop) {
		u.tickLock.Lock()
		u.tick()
		u.tickLock.Unlock()

		delay := u.UpdateDelay()
		if delay <= 0 {
			continue
		}

		select {
		case <-stop:
		case <-time.After(delay):
		}
	}

	u.stateLock.Lock()
	u.state = StateIdle
	u.stateLock.Unlock()

	u.logger.Info("updater stopped", "iteration", u.Iteration())
	u.finish()
}

func isClosed(c chan struct{}) bool {
	select {
	case <-c:
		return true
	default:
		return false
	}
}

// RequestStop asks a run to end after the tick in flight and returns at
// once. It is safe to call from hooks.
func (u *Updater) RequestStop() {
	u.stateLock.Lock()
	defer u.stateLock.Unlock()

	u.requestStopLocked()
}

func (u *Updater) requestStopLocked() {
	if u.state != StateRunning || u.stopping {
		return
	}

	u.stopping = true
	close(u.stopChan)
}

// Stop ends a run and returns once the tick in flight has completed and the
// run has wound down. Calling Stop from a hook invoked by the run deadlocks;
// use RequestStop there. Stop does nothing when not running.
func (u *Updater) Stop() {
	u.stateLock.Lock()
	if u.state != StateRunning {
		u.stateLock.Unlock()
		return
	}

	u.requestStopLocked()
	done := u.doneChan
	u.stateLock.Unlock()

	<-done
}

func (u *Updater) finish() {
	for _, c := range u.ws.Components() {
		if s, ok := c.(Stopper); ok {
			s.Stopped()
		}
	}

	u.InvokeHook(hooking.HookCtx{Domain: u, Pos: HookPosUpdatingFinished})
}

// tick must be called with tickLock held.
func (u *Updater) tick() {
	u.current = u.ws.Components()
	iteration := u.Iteration()

	u.logger.Debug("tick started", "iteration", iteration)
	u.InvokeHook(hooking.HookCtx{
		Domain: u,
		Pos:    HookPosTickStarted,
		Item:   iteration,
	})

	// Swaps need tickLock, so the controller is stable here.
	u.controller.Update(u)

	for _, c := range u.current {
		c.TickCompleted()
	}

	u.stateLock.Lock()
	u.iteration++
	u.now += u.timeStep
	iteration = u.iteration
	u.stateLock.Unlock()

	u.InvokeHook(hooking.HookCtx{
		Domain: u,
		Pos:    HookPosTickCompleted,
		Item:   iteration,
	})
}

// Components returns the components of the tick in flight.
func (u *Updater) Components() []Component {
	comps := make([]Component, len(u.current))
	copy(comps, u.current)

	return comps
}

// CouplingManager returns the workspace's couplings.
func (u *Updater) CouplingManager() *coupling.Manager {
	return u.ws.CouplingManager()
}

// UpdateCouplings runs both coupling phases.
func (u *Updater) UpdateCouplings() {
	u.ws.CouplingManager().UpdateAll()

	u.InvokeHook(hooking.HookCtx{
		Domain: u,
		Pos:    HookPosCouplingsUpdated,
		Item:   u.Iteration(),
	})
}

// UpdateComponent updates c under its locks. Failures are reported through
// hooks and do not stop the tick.
func (u *Updater) UpdateComponent(c Component) {
	if !c.IsUpdateOn() {
		return
	}

	ctx := hooking.HookCtx{
		Domain: u,
		Pos:    HookPosBeforeComponentUpdate,
		Item:   c,
	}
	u.InvokeHook(ctx)

	err := locking.Sync(c.Locks(), func() error {
		return safeUpdate(c)
	})
	if err != nil {
		u.reportComponentError(c, err)
	}

	ctx.Pos = HookPosAfterComponentUpdate
	u.InvokeHook(ctx)
}

func safeUpdate(c Component) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("%w: %v", coupling.ErrPanic, r)
		}
	}()

	return c.Update()
}

func (u *Updater) reportComponentError(c Component, err error) {
	compErr := &ComponentError{
		Component: c,
		Iteration: u.Iteration(),
		Err:       err,
	}

	u.logger.Warn("component update failed",
		"component", c.Name(),
		"iteration", compErr.Iteration,
		"err", err)

	u.InvokeHook(hooking.HookCtx{
		Domain: u,
		Pos:    HookPosComponentError,
		Item:   c,
		Detail: compErr,
	})
}

// SubmitComponentUpdate updates c on the worker pool.
func (u *Updater) SubmitComponentUpdate(c Component, wg *sync.WaitGroup) {
	u.pool.submit(func(int) { u.UpdateComponent(c) }, wg)
}

var _ UpdateControls = (*Updater)(nil)
