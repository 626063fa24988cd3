// Package config reads scenario files that describe a workspace, and the
// environment overrides that go with them.
package config

import (
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Controller names accepted in scenarios.
const (
	ControllerSerial   = "serial"
	ControllerPriority = "priority"
	ControllerParallel = "parallel"
)

// A Scenario describes the components of a workspace, how they are coupled,
// and how the workspace should be driven.
type Scenario struct {
	Name             string          `yaml:"name"`
	Controller       string          `yaml:"controller"`
	CouplingPriority int             `yaml:"coupling_priority"`
	Threads          int             `yaml:"threads"`
	Delay            time.Duration   `yaml:"delay"`
	TimeStep         float64         `yaml:"time_step"`
	Iterations       int             `yaml:"iterations"`
	Output           string          `yaml:"output"`
	Components       []ComponentSpec `yaml:"components"`
	Couplings        []CouplingSpec  `yaml:"couplings"`

	// Dir is the directory relative paths in the scenario are resolved
	// against.
	Dir string `yaml:"-"`
}

// A ComponentSpec describes one component. Params depend on the class.
type ComponentSpec struct {
	Name     string         `yaml:"name"`
	Class    string         `yaml:"class"`
	Priority int            `yaml:"priority"`
	Disabled bool           `yaml:"disabled"`
	Params   map[string]any `yaml:"params"`
}

// A CouplingSpec couples two attributes, each written as
// "component/holder/attribute".
type CouplingSpec struct {
	From string `yaml:"from"`
	To   string `yaml:"to"`
}

// An AttributeRef points at an attribute of a named component.
type AttributeRef struct {
	Component string
	Holder    string
	Attribute string
}

// ErrInvalidScenario is wrapped by every validation error.
var ErrInvalidScenario = errors.New("invalid scenario")

// ParseAttributeRef splits "component/holder/attribute". The component name
// may itself contain slashes.
func ParseAttributeRef(s string) (AttributeRef, error) {
	parts := strings.Split(s, "/")
	if len(parts) < 3 {
		return AttributeRef{}, fmt.Errorf(
			"%w: attribute %q is not component/holder/attribute",
			ErrInvalidScenario, s)
	}

	n := len(parts)
	ref := AttributeRef{
		Component: strings.Join(parts[:n-2], "/"),
		Holder:    parts[n-2],
		Attribute: parts[n-1],
	}

	if ref.Component == "" || ref.Attribute == "" {
		return AttributeRef{}, fmt.Errorf(
			"%w: attribute %q has empty parts", ErrInvalidScenario, s)
	}

	return ref, nil
}

// Parse reads a scenario and fills in defaults.
func Parse(in io.Reader) (*Scenario, error) {
	s := &Scenario{}

	dec := yaml.NewDecoder(in)
	dec.KnownFields(true)

	if err := dec.Decode(s); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("%w: %v", ErrInvalidScenario, err)
	}

	s.setDefaults()

	if err := s.Validate(); err != nil {
		return nil, err
	}

	return s, nil
}

// Load reads a scenario file. Relative paths inside it are resolved against
// the file's directory.
func Load(path string) (*Scenario, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	s, err := Parse(f)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}

	s.Dir = dirOf(path)

	return s, nil
}

func (s *Scenario) setDefaults() {
	if s.Controller == "" {
		s.Controller = ControllerSerial
	}

	if s.TimeStep == 0 {
		s.TimeStep = 1
	}
}

// Validate checks names, classes, controllers, and coupling references.
func (s *Scenario) Validate() error {
	switch s.Controller {
	case ControllerSerial, ControllerPriority, ControllerParallel:
	default:
		return fmt.Errorf("%w: unknown controller %q",
			ErrInvalidScenario, s.Controller)
	}

	if s.Threads < 0 || s.Iterations < 0 || s.Delay < 0 {
		return fmt.Errorf("%w: threads, iterations, and delay must not be "+
			"negative", ErrInvalidScenario)
	}

	names := make(map[string]bool)
	for i, c := range s.Components {
		if c.Class == "" {
			return fmt.Errorf("%w: component %d has no class",
				ErrInvalidScenario, i)
		}

		if c.Name == "" {
			continue
		}

		key := strings.ToLower(c.Name)
		if names[key] {
			return fmt.Errorf("%w: duplicated component name %q",
				ErrInvalidScenario, c.Name)
		}

		names[key] = true
	}

	for _, c := range s.Couplings {
		if _, err := ParseAttributeRef(c.From); err != nil {
			return err
		}

		if _, err := ParseAttributeRef(c.To); err != nil {
			return err
		}
	}

	return nil
}
