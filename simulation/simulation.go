// Package simulation puts together a workspace with the services a run
// needs: a data recorder, a tracer, and an optional monitoring server.
package simulation

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/sarchlab/cosim/config"
	"github.com/sarchlab/cosim/datarecording"
	"github.com/sarchlab/cosim/monitoring"
	"github.com/sarchlab/cosim/sim/hooking"
	"github.com/sarchlab/cosim/tracing"
	"github.com/sarchlab/cosim/workspace"
)

// A Simulation provides the services required to drive a workspace.
type Simulation struct {
	id     string
	logger *slog.Logger

	ws           *workspace.Workspace
	dataRecorder datarecording.DataRecorder
	monitor      *monitoring.Monitor
	tracer       *tracing.DBTracer
}

// ID returns the unique id of the simulation.
func (s *Simulation) ID() string {
	return s.id
}

// Workspace returns the workspace driven by the simulation.
func (s *Simulation) Workspace() *workspace.Workspace {
	return s.ws
}

// GetDataRecorder returns the data recorder used in the simulation.
func (s *Simulation) GetDataRecorder() datarecording.DataRecorder {
	return s.dataRecorder
}

// GetMonitor returns the monitor used in the simulation. It is nil when
// monitoring is disabled.
func (s *Simulation) GetMonitor() *monitoring.Monitor {
	return s.monitor
}

// GetTracer returns the tracer used in the simulation.
func (s *Simulation) GetTracer() *tracing.DBTracer {
	return s.tracer
}

// RegisterComponent adds a component to the workspace.
func (s *Simulation) RegisterComponent(c workspace.Component) error {
	return s.ws.AddComponent(c)
}

// GetComponentByName returns the component with the given name, or nil.
func (s *Simulation) GetComponentByName(name string) workspace.Component {
	c, _ := s.ws.ComponentByName(name)
	return c
}

// Components returns all registered components.
func (s *Simulation) Components() []workspace.Component {
	return s.ws.Components()
}

// LoadScenario builds a scenario into the workspace. Scopes that ask to
// record write into the simulation's data recorder.
func (s *Simulation) LoadScenario(
	scenario *config.Scenario,
) ([]workspace.Component, error) {
	return config.Build(scenario, s.ws, s.dataRecorder)
}

// Iterate runs n ticks. Progress is shown on the monitor if there is one.
func (s *Simulation) Iterate(n int) error {
	if s.monitor == nil || n == 0 {
		return s.ws.Iterate(n)
	}

	bar := s.monitor.CreateProgressBar(
		fmt.Sprintf("Iterate %d", n), uint64(n))
	defer s.monitor.CompleteProgressBar(bar)

	progress := hooking.NewFuncHook(func(ctx hooking.HookCtx) {
		if ctx.Pos == workspace.HookPosTickCompleted {
			bar.IncrementFinished(1)
		}
	})

	u := s.ws.Updater()
	u.AcceptHook(progress)
	defer u.RemoveHook(progress)

	return s.ws.Iterate(n)
}

// Run keeps ticking until Stop is called.
func (s *Simulation) Run() error {
	return s.ws.Run()
}

// RunUntil runs and blocks until ctx is done or the run ends by itself, for
// example through a hook or the monitor. A canceled ctx stops the run.
func (s *Simulation) RunUntil(ctx context.Context) error {
	finished := make(chan struct{})
	var once sync.Once
	watch := hooking.NewFuncHook(func(hc hooking.HookCtx) {
		if hc.Pos == workspace.HookPosUpdatingFinished {
			once.Do(func() { close(finished) })
		}
	})

	u := s.ws.Updater()
	u.AcceptHook(watch)
	defer u.RemoveHook(watch)

	if err := s.ws.Run(); err != nil {
		return err
	}

	select {
	case <-ctx.Done():
		s.ws.Stop()
	case <-finished:
	}

	return nil
}

// Stop ends a run.
func (s *Simulation) Stop() {
	s.ws.Stop()
}

// Terminate stops the workspace, flushes the trace, shuts the monitor
// down, and closes the data recorder.
func (s *Simulation) Terminate() {
	s.ws.Stop()
	s.tracer.Terminate()

	if s.monitor != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		if err := s.monitor.StopServer(ctx); err != nil {
			s.logger.Warn("stopping monitor", "err", err)
		}
	}

	if err := s.dataRecorder.Close(); err != nil {
		s.logger.Warn("closing data recorder", "err", err)
	}
}
