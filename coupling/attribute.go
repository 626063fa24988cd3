package coupling

import (
	"fmt"
	"reflect"
	"sync"
)

// Component is the part of a workspace component that couplings depend on.
type Component interface {
	// Name returns the component's current name.
	Name() string

	// Locks returns the handles that must be held while the component's state
	// is read or written.
	Locks() []sync.Locker

	// CouplingRemoved is called after a coupling that involves the component
	// has been removed from the manager.
	CouplingRemoved(c Coupling)
}

// AttributeID identifies an attribute by strings that stay stable across an
// archive save and load.
type AttributeID struct {
	Component string `yaml:"component"`
	Holder    string `yaml:"holder"`
	Attribute string `yaml:"attribute"`
}

func (id AttributeID) String() string {
	return fmt.Sprintf("%s/%s/%s", id.Component, id.Holder, id.Attribute)
}

// Attribute is a value a component exposes or accepts. Attributes are
// compared by identity, so implementations must be pointer types.
type Attribute interface {
	ID() AttributeID
	Description() string
	Owner() Component
	ValueType() reflect.Type
}

// A Producer exposes a value of type T.
type Producer[T any] interface {
	Attribute
	Read() (T, error)
}

// A Consumer accepts a value of type T.
type Consumer[T any] interface {
	Attribute
	Write(v T) error
}

// AttributeOption customizes an attribute at construction.
type AttributeOption func(a *attribute)

// WithDescription replaces the default holder/attribute description.
func WithDescription(desc string) AttributeOption {
	return func(a *attribute) {
		a.desc = desc
	}
}

type attribute struct {
	owner  Component
	holder string
	name   string
	desc   string
	vtype  reflect.Type
}

func newAttribute[T any](
	owner Component,
	holder, name string,
	opts []AttributeOption,
) attribute {
	a := attribute{
		owner:  owner,
		holder: holder,
		name:   name,
		vtype:  reflect.TypeOf((*T)(nil)).Elem(),
	}

	a.desc = name
	if holder != "" {
		a.desc = holder + "/" + name
	}

	for _, opt := range opts {
		opt(&a)
	}

	return a
}

func (a *attribute) ID() AttributeID {
	id := AttributeID{Holder: a.holder, Attribute: a.name}
	if a.owner != nil {
		id.Component = a.owner.Name()
	}

	return id
}

func (a *attribute) Description() string {
	return a.desc
}

func (a *attribute) Owner() Component {
	return a.owner
}

func (a *attribute) ValueType() reflect.Type {
	return a.vtype
}

// FuncProducer is a Producer backed by an accessor function.
type FuncProducer[T any] struct {
	attribute
	read func() (T, error)
}

// NewProducer registers an infallible accessor as a producer.
func NewProducer[T any](
	owner Component,
	holder, name string,
	read func() T,
	opts ...AttributeOption,
) *FuncProducer[T] {
	return NewFallibleProducer(owner, holder, name,
		func() (T, error) { return read(), nil }, opts...)
}

// NewFallibleProducer registers an accessor that may fail as a producer.
func NewFallibleProducer[T any](
	owner Component,
	holder, name string,
	read func() (T, error),
	opts ...AttributeOption,
) *FuncProducer[T] {
	return &FuncProducer[T]{
		attribute: newAttribute[T](owner, holder, name, opts),
		read:      read,
	}
}

// Read calls the accessor.
func (p *FuncProducer[T]) Read() (T, error) {
	return p.read()
}

func (p *FuncProducer[T]) String() string {
	return p.ID().String()
}

func (p *FuncProducer[T]) couple(consumer Attribute) (Coupling, error) {
	typed, ok := consumer.(Consumer[T])
	if !ok {
		return nil, mismatch(p, consumer)
	}

	l, err := New[T](p, typed)
	if err != nil {
		return nil, err
	}

	return l, nil
}

// FuncConsumer is a Consumer backed by a mutator function.
type FuncConsumer[T any] struct {
	attribute
	write func(T) error
}

// NewConsumer registers an infallible mutator as a consumer.
func NewConsumer[T any](
	owner Component,
	holder, name string,
	write func(T),
	opts ...AttributeOption,
) *FuncConsumer[T] {
	return NewFallibleConsumer(owner, holder, name,
		func(v T) error {
			write(v)
			return nil
		}, opts...)
}

// NewFallibleConsumer registers a mutator that may fail as a consumer.
func NewFallibleConsumer[T any](
	owner Component,
	holder, name string,
	write func(T) error,
	opts ...AttributeOption,
) *FuncConsumer[T] {
	return &FuncConsumer[T]{
		attribute: newAttribute[T](owner, holder, name, opts),
		write:     write,
	}
}

// Write calls the mutator.
func (c *FuncConsumer[T]) Write(v T) error {
	return c.write(v)
}

func (c *FuncConsumer[T]) String() string {
	return c.ID().String()
}

// AttributeProvider is implemented by components that expose attributes.
type AttributeProvider interface {
	Producers() []Attribute
	Consumers() []Attribute
}

// AttributeSet keeps a component's registered producers and consumers in
// registration order.
type AttributeSet struct {
	lock      sync.RWMutex
	producers []Attribute
	consumers []Attribute
}

// AddProducer registers a producer.
func (s *AttributeSet) AddProducer(p Attribute) {
	s.lock.Lock()
	defer s.lock.Unlock()

	s.producers = append(s.producers, p)
}

// AddConsumer registers a consumer.
func (s *AttributeSet) AddConsumer(c Attribute) {
	s.lock.Lock()
	defer s.lock.Unlock()

	s.consumers = append(s.consumers, c)
}

// Producers returns the registered producers.
func (s *AttributeSet) Producers() []Attribute {
	s.lock.RLock()
	defer s.lock.RUnlock()

	return append([]Attribute(nil), s.producers...)
}

// Consumers returns the registered consumers.
func (s *AttributeSet) Consumers() []Attribute {
	s.lock.RLock()
	defer s.lock.RUnlock()

	return append([]Attribute(nil), s.consumers...)
}

// FindProducer looks a producer up by holder and attribute name.
func (s *AttributeSet) FindProducer(holder, name string) (Attribute, bool) {
	return find(s.Producers(), holder, name)
}

// FindConsumer looks a consumer up by holder and attribute name.
func (s *AttributeSet) FindConsumer(holder, name string) (Attribute, bool) {
	return find(s.Consumers(), holder, name)
}

func find(attrs []Attribute, holder, name string) (Attribute, bool) {
	for _, a := range attrs {
		id := a.ID()
		if id.Holder == holder && id.Attribute == name {
			return a, true
		}
	}

	return nil, false
}

var _ AttributeProvider = (*AttributeSet)(nil)
