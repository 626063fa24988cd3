package workspace

import (
	"log/slog"
	"time"

	"github.com/sarchlab/cosim/coupling"
	"github.com/sarchlab/cosim/locking"
	"github.com/sarchlab/cosim/sim/naming"
)

// Builder can be used to build workspaces.
type Builder struct {
	logger      *slog.Logger
	controller  UpdateController
	numThreads  int
	updateDelay time.Duration
	timeStep    float64
}

// MakeBuilder creates a new Builder with default parameters.
func MakeBuilder() Builder {
	return Builder{
		controller: SerialController{},
		timeStep:   1,
	}
}

// WithLogger sets the logger used by the workspace, its coupling manager,
// and its updater.
func (b Builder) WithLogger(logger *slog.Logger) Builder {
	b.logger = logger
	return b
}

// WithController sets the update controller.
func (b Builder) WithController(ctrl UpdateController) Builder {
	b.controller = ctrl
	return b
}

// WithNumThreads sets the size of the worker pool. Zero means one worker per
// CPU.
func (b Builder) WithNumThreads(n int) Builder {
	b.numThreads = n
	return b
}

// WithUpdateDelay sets the pause between ticks while running.
func (b Builder) WithUpdateDelay(d time.Duration) Builder {
	b.updateDelay = d
	return b
}

// WithTimeStep sets how much simulated time a tick covers.
func (b Builder) WithTimeStep(step float64) Builder {
	b.timeStep = step
	return b
}

// Build creates an empty workspace.
func (b Builder) Build() *Workspace {
	logger := b.logger
	if logger == nil {
		logger = slog.Default()
	}

	w := &Workspace{
		namer:     naming.NewDefaultNamer(),
		manager:   coupling.NewManager(logger),
		lockOrder: locking.NewOrder(),
		logger:    logger,
	}

	w.updater = newUpdater(w, b.controller, b.numThreads, logger)
	w.updater.timeStep = b.timeStep
	w.updater.updateDelay = b.updateDelay

	return w
}
