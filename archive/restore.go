package archive

import (
	"fmt"
	"sync"

	"github.com/sarchlab/cosim/coupling"
	"github.com/sarchlab/cosim/workspace"
)

// A Constructor creates an empty component of one class.
type Constructor func(entry ComponentEntry) (workspace.Component, error)

// A Registry maps component classes to constructors.
type Registry struct {
	lock         sync.RWMutex
	constructors map[string]Constructor
}

// NewRegistry creates an empty Registry.
func NewRegistry() *Registry {
	return &Registry{constructors: make(map[string]Constructor)}
}

// Register adds the constructor of a class, replacing any previous one.
func (r *Registry) Register(class string, ctor Constructor) {
	r.lock.Lock()
	defer r.lock.Unlock()

	r.constructors[class] = ctor
}

// Build creates the component an entry describes and names it.
func (r *Registry) Build(entry ComponentEntry) (workspace.Component, error) {
	r.lock.RLock()
	ctor, found := r.constructors[entry.Class]
	r.lock.RUnlock()

	if !found {
		return nil, fmt.Errorf("%w: %s", ErrUnknownClass, entry.Class)
	}

	c, err := ctor(entry)
	if err != nil {
		return nil, err
	}

	c.SetName(entry.Name)

	return c, nil
}

type attributeFinder interface {
	FindProducer(holder, name string) (coupling.Attribute, bool)
	FindConsumer(holder, name string) (coupling.Attribute, bool)
}

// Restore adds the archived components to the workspace, then recouples
// them. Couplings the workspace already has are left alone. It returns the
// number of couplings created.
func Restore(
	w *workspace.Workspace,
	contents *Contents,
	registry *Registry,
) (int, error) {
	byURI := make(map[string]workspace.Component)

	for _, entry := range contents.Components {
		c, err := registry.Build(entry)
		if err != nil {
			return 0, err
		}

		if err := w.AddComponent(c); err != nil {
			return 0, err
		}

		byURI[entry.URI] = c
	}

	created := 0
	for _, entry := range contents.Couplings {
		producer, err := findAttribute(byURI, entry.Source, true)
		if err != nil {
			return created, err
		}

		consumer, err := findAttribute(byURI, entry.Target, false)
		if err != nil {
			return created, err
		}

		_, exists := w.CouplingManager().FindCoupling(
			producer.ID(), consumer.ID())
		if exists {
			continue
		}

		if _, err := w.Couple(producer, consumer); err != nil {
			return created, err
		}

		created++
	}

	return created, nil
}

func findAttribute(
	byURI map[string]workspace.Component,
	ep Endpoint,
	producer bool,
) (coupling.Attribute, error) {
	c, found := byURI[ep.URI]
	if !found {
		return nil, fmt.Errorf("%w: %s", ErrUnknownComponent, ep.URI)
	}

	finder, ok := c.(attributeFinder)
	if !ok {
		return nil, fmt.Errorf("%w: %s exposes no attributes",
			ErrUnknownAttribute, c.Name())
	}

	var attr coupling.Attribute
	if producer {
		attr, found = finder.FindProducer(ep.Holder, ep.Attribute)
	} else {
		attr, found = finder.FindConsumer(ep.Holder, ep.Attribute)
	}

	if !found {
		return nil, fmt.Errorf("%w: %s/%s on %s",
			ErrUnknownAttribute, ep.Holder, ep.Attribute, c.Name())
	}

	return attr, nil
}
