package simulation

import (
	"log/slog"
	"time"

	"github.com/sarchlab/cosim/datarecording"
	"github.com/sarchlab/cosim/monitoring"
	"github.com/sarchlab/cosim/sim/id"
	"github.com/sarchlab/cosim/tracing"
	"github.com/sarchlab/cosim/workspace"
)

// Builder can be used to build a simulation.
type Builder struct {
	logger         *slog.Logger
	controller     workspace.UpdateController
	numThreads     int
	updateDelay    time.Duration
	monitorOn      bool
	monitorPort    int
	outputFileName string
}

// MakeBuilder creates a new builder.
func MakeBuilder() Builder {
	return Builder{
		controller: workspace.SerialController{},
		monitorOn:  true,
	}
}

// WithLogger sets the logger shared by every part of the simulation.
func (b Builder) WithLogger(logger *slog.Logger) Builder {
	b.logger = logger
	return b
}

// WithParallelUpdates sets the simulation to update components on a worker
// pool of the given size. Zero means one worker per CPU.
func (b Builder) WithParallelUpdates(numThreads int) Builder {
	b.controller = workspace.ParallelController{}
	b.numThreads = numThreads

	return b
}

// WithController sets the update controller.
func (b Builder) WithController(ctrl workspace.UpdateController) Builder {
	b.controller = ctrl
	return b
}

// WithUpdateDelay sets the pause between ticks while running.
func (b Builder) WithUpdateDelay(d time.Duration) Builder {
	b.updateDelay = d
	return b
}

// WithoutMonitoring sets the simulation to not use monitoring.
func (b Builder) WithoutMonitoring() Builder {
	b.monitorOn = false
	return b
}

// WithOutputFileName sets the custom output file name for the data recorder.
func (b Builder) WithOutputFileName(filename string) Builder {
	b.outputFileName = filename
	return b
}

// WithMonitorPort sets the port number for the monitoring server.
func (b Builder) WithMonitorPort(port int) Builder {
	b.monitorPort = port
	return b
}

func (b Builder) parametersMustBeValid() {
	if !b.monitorOn && b.monitorPort != 0 {
		panic("monitor port cannot be set when monitoring is disabled")
	}
}

// Build builds the simulation. The monitoring server, if enabled, is started
// right away.
func (b Builder) Build() (*Simulation, error) {
	b.parametersMustBeValid()

	logger := b.logger
	if logger == nil {
		logger = slog.Default()
	}

	s := &Simulation{
		id:     id.NewGlobalIDGenerator().Generate(),
		logger: logger,
	}

	s.ws = workspace.MakeBuilder().
		WithLogger(logger).
		WithController(b.controller).
		WithNumThreads(b.numThreads).
		WithUpdateDelay(b.updateDelay).
		Build()

	outputPath := b.outputFileName
	if outputPath == "" {
		outputPath = "cosim_sim_" + s.id
	}
	s.dataRecorder = datarecording.New(outputPath)

	s.tracer = tracing.NewDBTracer(s.dataRecorder)
	tracing.CollectTrace(s.ws.Updater(), s.tracer)
	tracing.CollectTrace(s.ws.CouplingManager(), s.tracer)

	if b.monitorOn {
		s.monitor = monitoring.NewMonitor().WithLogger(logger)
		if b.monitorPort > 0 {
			s.monitor.WithPortNumber(b.monitorPort)
		}

		s.monitor.RegisterWorkspace(s.ws)

		if _, err := s.monitor.StartServer(); err != nil {
			s.dataRecorder.Close()
			return nil, err
		}
	}

	return s, nil
}
