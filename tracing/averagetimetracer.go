package tracing

import (
	"sync"
	"time"

	"github.com/sarchlab/cosim/sim/hooking"
	"github.com/sarchlab/cosim/workspace"
)

// ComponentFilter selects the components a tracer looks at.
type ComponentFilter func(c workspace.Component) bool

// AverageTimeTracer collects the average wall time that the selected
// components spend in Update.
type AverageTimeTracer struct {
	filter      ComponentFilter
	lock        sync.Mutex
	averageTime time.Duration
	inflight    map[workspace.Component]time.Time
	updateCount uint64
}

// NewAverageTimeTracer creates a new AverageTimeTracer. A nil filter selects
// every component.
func NewAverageTimeTracer(filter ComponentFilter) *AverageTimeTracer {
	if filter == nil {
		filter = func(workspace.Component) bool { return true }
	}

	return &AverageTimeTracer{
		filter:   filter,
		inflight: make(map[workspace.Component]time.Time),
	}
}

// AverageTime returns the average duration of the selected updates.
func (t *AverageTimeTracer) AverageTime() time.Duration {
	t.lock.Lock()
	defer t.lock.Unlock()

	return t.averageTime
}

// TotalCount returns the number of updates measured.
func (t *AverageTimeTracer) TotalCount() uint64 {
	t.lock.Lock()
	defer t.lock.Unlock()

	return t.updateCount
}

// Func measures component updates.
func (t *AverageTimeTracer) Func(ctx hooking.HookCtx) {
	switch ctx.Pos {
	case workspace.HookPosBeforeComponentUpdate:
		t.start(ctx.Item.(workspace.Component))
	case workspace.HookPosAfterComponentUpdate:
		t.end(ctx.Item.(workspace.Component))
	}
}

func (t *AverageTimeTracer) start(c workspace.Component) {
	if !t.filter(c) {
		return
	}

	t.lock.Lock()
	t.inflight[c] = time.Now()
	t.lock.Unlock()
}

func (t *AverageTimeTracer) end(c workspace.Component) {
	t.lock.Lock()
	defer t.lock.Unlock()

	start, ok := t.inflight[c]
	if !ok {
		return
	}

	elapsed := time.Since(start)
	t.averageTime = time.Duration(
		(float64(t.averageTime)*float64(t.updateCount) + float64(elapsed)) /
			float64(t.updateCount+1))
	delete(t.inflight, c)
	t.updateCount++
}
