package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/sarchlab/cosim/components"
	"github.com/sarchlab/cosim/coupling"
	"github.com/sarchlab/cosim/datarecording"
	"github.com/sarchlab/cosim/workspace"
)

var (
	// ErrUnknownClass is returned for a component class Build cannot create.
	ErrUnknownClass = errors.New("unknown component class")

	// ErrUnknownComponent is returned when a coupling names a component the
	// scenario does not define.
	ErrUnknownComponent = errors.New("unknown component")

	// ErrUnknownAttribute is returned when a component has no attribute
	// matching a coupling reference.
	ErrUnknownAttribute = errors.New("unknown attribute")
)

type signalParams struct {
	Waveform  string   `yaml:"waveform"`
	Amplitude *float64 `yaml:"amplitude"`
	Frequency *float64 `yaml:"frequency"`
	Offset    float64  `yaml:"offset"`
}

type relayParams struct {
	Gain      *float64 `yaml:"gain"`
	Bias      float64  `yaml:"bias"`
	Squashing string   `yaml:"squashing"`
	Lower     *float64 `yaml:"lower"`
	Upper     *float64 `yaml:"upper"`
}

type scopeParams struct {
	Capacity int  `yaml:"capacity"`
	Record   bool `yaml:"record"`
}

type tableParams struct {
	File    string      `yaml:"file"`
	Columns []string    `yaml:"columns"`
	Rows    [][]float64 `yaml:"rows"`
	Loop    *bool       `yaml:"loop"`
}

// decodeParams converts the loose params map into a typed struct, rejecting
// unknown keys.
func decodeParams(params map[string]any, out any) error {
	if len(params) == 0 {
		return nil
	}

	data, err := yaml.Marshal(params)
	if err != nil {
		return err
	}

	dec := yaml.NewDecoder(strings.NewReader(string(data)))
	dec.KnownFields(true)

	return dec.Decode(out)
}

// Build adds the scenario's components and couplings to the workspace and
// configures its update controller. Scopes with record set write to
// recorder, which may be nil. Couplings are resolved before anything is
// added, so a bad reference leaves the workspace untouched.
func Build(
	s *Scenario,
	ws *workspace.Workspace,
	recorder datarecording.DataRecorder,
) ([]workspace.Component, error) {
	comps := make([]workspace.Component, 0, len(s.Components))
	byName := make(map[string]workspace.Component)

	for _, spec := range s.Components {
		c, err := newComponent(spec, s.Dir, recorder)
		if err != nil {
			return nil, fmt.Errorf("component %q: %w", spec.Name, err)
		}

		comps = append(comps, c)
		if spec.Name != "" {
			byName[strings.ToLower(spec.Name)] = c
		}
	}

	couplings := make([]coupling.Coupling, 0, len(s.Couplings))
	for _, spec := range s.Couplings {
		c, err := resolveCoupling(spec, byName)
		if err != nil {
			return nil, err
		}

		couplings = append(couplings, c)
	}

	if err := configureUpdater(s, ws); err != nil {
		return nil, err
	}

	for _, c := range comps {
		if err := ws.AddComponent(c); err != nil {
			return nil, err
		}
	}

	for _, c := range couplings {
		if err := ws.AddCoupling(c); err != nil {
			return nil, err
		}
	}

	return comps, nil
}

func configureUpdater(s *Scenario, ws *workspace.Workspace) error {
	var ctrl workspace.UpdateController

	switch s.Controller {
	case ControllerPriority:
		ctrl = workspace.PriorityController{CouplingPriority: s.CouplingPriority}
	case ControllerParallel:
		ctrl = workspace.ParallelController{}
	default:
		ctrl = workspace.SerialController{}
	}

	if err := ws.SetUpdateController(ctrl, s.Threads); err != nil {
		return err
	}

	ws.SetUpdateDelay(s.Delay)
	ws.Updater().SetTimeStep(s.TimeStep)

	return nil
}

type attributeFinder interface {
	FindProducer(holder, name string) (coupling.Attribute, bool)
	FindConsumer(holder, name string) (coupling.Attribute, bool)
}

func resolveCoupling(
	spec CouplingSpec,
	byName map[string]workspace.Component,
) (coupling.Coupling, error) {
	producer, err := findAttribute(spec.From, byName, true)
	if err != nil {
		return nil, err
	}

	consumer, err := findAttribute(spec.To, byName, false)
	if err != nil {
		return nil, err
	}

	c, err := coupling.Connect(producer, consumer)
	if err != nil {
		return nil, fmt.Errorf("coupling %s to %s: %w", spec.From, spec.To, err)
	}

	return c, nil
}

func findAttribute(
	refString string,
	byName map[string]workspace.Component,
	producer bool,
) (coupling.Attribute, error) {
	ref, err := ParseAttributeRef(refString)
	if err != nil {
		return nil, err
	}

	c, found := byName[strings.ToLower(ref.Component)]
	if !found {
		return nil, fmt.Errorf("%w: %s", ErrUnknownComponent, ref.Component)
	}

	finder, ok := c.(attributeFinder)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownAttribute, refString)
	}

	var attr coupling.Attribute
	if producer {
		attr, found = finder.FindProducer(ref.Holder, ref.Attribute)
	} else {
		attr, found = finder.FindConsumer(ref.Holder, ref.Attribute)
	}

	if !found {
		return nil, fmt.Errorf("%w: %s", ErrUnknownAttribute, refString)
	}

	return attr, nil
}

type configurable interface {
	workspace.Component
	SetPriority(p int)
	SetUpdateOn(on bool)
}

func newComponent(
	spec ComponentSpec,
	dir string,
	recorder datarecording.DataRecorder,
) (workspace.Component, error) {
	var (
		c   configurable
		err error
	)

	switch strings.ToLower(spec.Class) {
	case "signal":
		c, err = newSignal(spec)
	case "relay":
		c, err = newRelay(spec)
	case "scope":
		c, err = newScope(spec, recorder)
	case "table":
		c, err = newTable(spec, dir)
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnknownClass, spec.Class)
	}

	if err != nil {
		return nil, err
	}

	c.SetPriority(spec.Priority)
	c.SetUpdateOn(!spec.Disabled)

	return c, nil
}

func newSignal(spec ComponentSpec) (*components.Signal, error) {
	p := signalParams{}
	if err := decodeParams(spec.Params, &p); err != nil {
		return nil, err
	}

	b := components.MakeSignalBuilder().WithOffset(p.Offset)
	if p.Waveform != "" {
		b = b.WithWaveform(components.Waveform(p.Waveform))
	}

	if p.Amplitude != nil {
		b = b.WithAmplitude(*p.Amplitude)
	}

	if p.Frequency != nil {
		b = b.WithFrequency(*p.Frequency)
	}

	return b.Build(spec.Name)
}

func newRelay(spec ComponentSpec) (*components.Relay, error) {
	p := relayParams{}
	if err := decodeParams(spec.Params, &p); err != nil {
		return nil, err
	}

	r := components.NewRelay(spec.Name)
	if p.Gain != nil {
		r.SetGain(*p.Gain)
	}

	r.SetBias(p.Bias)

	if p.Squashing != "" {
		lower, upper := -1.0, 1.0
		if p.Lower != nil {
			lower = *p.Lower
		}

		if p.Upper != nil {
			upper = *p.Upper
		}

		err := r.SetSquashing(components.Squashing(p.Squashing), lower, upper)
		if err != nil {
			return nil, err
		}
	}

	return r, nil
}

func newScope(
	spec ComponentSpec,
	recorder datarecording.DataRecorder,
) (*components.Scope, error) {
	p := scopeParams{}
	if err := decodeParams(spec.Params, &p); err != nil {
		return nil, err
	}

	s := components.NewScope(spec.Name, p.Capacity)
	if p.Record && recorder != nil {
		s.RecordTo(recorder)
	}

	return s, nil
}

func newTable(spec ComponentSpec, dir string) (*components.Table, error) {
	p := tableParams{}
	if err := decodeParams(spec.Params, &p); err != nil {
		return nil, err
	}

	var (
		t   *components.Table
		err error
	)

	if p.File != "" {
		path := p.File
		if !filepath.IsAbs(path) && dir != "" {
			path = filepath.Join(dir, path)
		}

		f, openErr := os.Open(path)
		if openErr != nil {
			return nil, openErr
		}
		defer f.Close()

		t, err = components.ReadTableCSV(spec.Name, f)
	} else {
		t, err = components.NewTable(spec.Name, p.Columns, p.Rows)
	}

	if err != nil {
		return nil, err
	}

	if p.Loop != nil {
		t.SetLoop(*p.Loop)
	}

	return t, nil
}
