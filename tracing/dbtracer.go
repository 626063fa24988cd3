package tracing

import (
	"errors"
	"sync"
	"time"

	"github.com/sarchlab/cosim/coupling"
	"github.com/sarchlab/cosim/datarecording"
	"github.com/sarchlab/cosim/sim/hooking"
	"github.com/sarchlab/cosim/workspace"
)

// Table names used by DBTracer.
const (
	TickTable            = "cosim_ticks"
	ComponentUpdateTable = "cosim_component_updates"
	ErrorTable           = "cosim_errors"
)

// TickEntry is one row of the tick table.
type TickEntry struct {
	Iteration  uint64
	SimTime    float64
	WallStart  int64
	DurationNs int64
}

// ComponentUpdateEntry is one row of the component update table.
type ComponentUpdateEntry struct {
	Iteration  uint64
	Component  string
	DurationNs int64
}

// ErrorEntry is one row of the error table. Kind is "coupling" or
// "component".
type ErrorEntry struct {
	Iteration uint64
	Kind      string
	Location  string
	Phase     string
	Message   string
}

// DBTracer is a hook that stores ticks, component updates, and update errors
// into a DataRecorder. Attach it to an updater for ticks and component
// updates, and to a coupling manager for coupling errors.
type DBTracer struct {
	mu      sync.Mutex
	backend datarecording.DataRecorder

	iteration     uint64
	tickStart     time.Time
	inflight      map[workspace.Component]time.Time
	tickCount     int
	updateCount   int
	errorCount    int
	isTracingFlag bool
}

// NewDBTracer creates a DBTracer and its tables.
func NewDBTracer(backend datarecording.DataRecorder) *DBTracer {
	t := &DBTracer{
		backend:       backend,
		inflight:      make(map[workspace.Component]time.Time),
		isTracingFlag: true,
	}

	backend.CreateTable(TickTable, TickEntry{})
	backend.CreateTable(ComponentUpdateTable, ComponentUpdateEntry{})
	backend.CreateTable(ErrorTable, ErrorEntry{})

	return t
}

// IsTracing reports whether records are being written.
func (t *DBTracer) IsTracing() bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	return t.isTracingFlag
}

// StartTracing resumes writing records.
func (t *DBTracer) StartTracing() {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.isTracingFlag = true
}

// StopTracing pauses writing records.
func (t *DBTracer) StopTracing() {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.isTracingFlag = false
}

// Func records the hook.
func (t *DBTracer) Func(ctx hooking.HookCtx) {
	t.mu.Lock()
	defer t.mu.Unlock()

	switch ctx.Pos {
	case workspace.HookPosTickStarted:
		t.iteration = ctx.Item.(uint64)
		t.tickStart = time.Now()
	case workspace.HookPosTickCompleted:
		t.tickCompleted(ctx)
	case workspace.HookPosBeforeComponentUpdate:
		t.inflight[ctx.Item.(workspace.Component)] = time.Now()
	case workspace.HookPosAfterComponentUpdate:
		t.componentUpdated(ctx.Item.(workspace.Component))
	case workspace.HookPosComponentError:
		t.componentFailed(ctx.Detail.(*workspace.ComponentError))
	case coupling.HookPosCouplingError:
		t.couplingFailed(ctx.Detail.(*coupling.UpdateError))
	}
}

func (t *DBTracer) tickCompleted(ctx hooking.HookCtx) {
	if !t.isTracingFlag {
		return
	}

	var simTime float64
	if u, ok := ctx.Domain.(*workspace.Updater); ok {
		simTime = u.Time()
	}

	t.backend.InsertData(TickTable, TickEntry{
		Iteration:  t.iteration,
		SimTime:    simTime,
		WallStart:  t.tickStart.UnixNano(),
		DurationNs: time.Since(t.tickStart).Nanoseconds(),
	})
	t.tickCount++
}

func (t *DBTracer) componentUpdated(c workspace.Component) {
	start, ok := t.inflight[c]
	if !ok {
		return
	}

	delete(t.inflight, c)

	if !t.isTracingFlag {
		return
	}

	t.backend.InsertData(ComponentUpdateTable, ComponentUpdateEntry{
		Iteration:  t.iteration,
		Component:  c.Name(),
		DurationNs: time.Since(start).Nanoseconds(),
	})
	t.updateCount++
}

func (t *DBTracer) componentFailed(err *workspace.ComponentError) {
	if !t.isTracingFlag {
		return
	}

	t.backend.InsertData(ErrorTable, ErrorEntry{
		Iteration: err.Iteration,
		Kind:      "component",
		Location:  err.Component.Name(),
		Message:   errorMessage(err.Err),
	})
	t.errorCount++
}

func (t *DBTracer) couplingFailed(err *coupling.UpdateError) {
	if !t.isTracingFlag {
		return
	}

	t.backend.InsertData(ErrorTable, ErrorEntry{
		Iteration: t.iteration,
		Kind:      "coupling",
		Location:  err.Coupling.String(),
		Phase:     err.Phase.String(),
		Message:   errorMessage(err.Err),
	})
	t.errorCount++
}

func errorMessage(err error) string {
	if errors.Is(err, coupling.ErrPanic) {
		return "panic: " + err.Error()
	}

	return err.Error()
}

// Counts returns how many ticks, component updates, and errors have been
// recorded.
func (t *DBTracer) Counts() (ticks, updates, errs int) {
	t.mu.Lock()
	defer t.mu.Unlock()

	return t.tickCount, t.updateCount, t.errorCount
}

// Terminate flushes the backend.
func (t *DBTracer) Terminate() {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.inflight = make(map[workspace.Component]time.Time)
	t.backend.Flush()
}
