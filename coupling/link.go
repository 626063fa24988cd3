// Package coupling links component attributes together and moves values
// along those links in two phases.
package coupling

import (
	"fmt"
	"hash/fnv"
	"reflect"
	"sync"

	"github.com/sarchlab/cosim/locking"
)

// A Coupling transfers one value per tick from a producer to a consumer.
type Coupling interface {
	Producer() Attribute
	Consumer() Attribute

	// Source and Target are the owners of the producer and the consumer,
	// recorded when the coupling is built.
	Source() Component
	Target() Component

	// SetBuffer captures the producer's current value.
	SetBuffer() error

	// Update writes the captured value into the consumer.
	Update() error

	// Buffer returns the captured value and whether one has been captured.
	Buffer() (any, bool)

	Hash() uint64
	String() string
}

// Link is the Coupling between a Producer[T] and a Consumer[T].
type Link[T any] struct {
	producer Producer[T]
	consumer Consumer[T]
	source   Component
	target   Component

	lock      sync.Mutex
	buffer    T
	hasBuffer bool
}

// New builds a coupling. Both attributes and their owners must be present.
// Typed nil attributes count as missing.
func New[T any](p Producer[T], c Consumer[T]) (*Link[T], error) {
	if isNil(p) || isNil(c) {
		return nil, ErrMissingEndpoint
	}

	if p.Owner() == nil || c.Owner() == nil {
		return nil, fmt.Errorf("%w: attribute without owner", ErrMissingEndpoint)
	}

	if p.ValueType() != c.ValueType() {
		return nil, mismatch(p, c)
	}

	l := &Link[T]{
		producer: p,
		consumer: c,
		source:   p.Owner(),
		target:   c.Owner(),
	}

	return l, nil
}

type coupler interface {
	couple(consumer Attribute) (Coupling, error)
}

// Connect builds a coupling from attributes whose value types are only known
// at run time, such as those found by name in an AttributeSet.
func Connect(producer, consumer Attribute) (Coupling, error) {
	if isNil(producer) || isNil(consumer) {
		return nil, ErrMissingEndpoint
	}

	p, ok := producer.(coupler)
	if !ok {
		return nil, fmt.Errorf("%w: %s is not a producer",
			ErrTypeMismatch, producer.ID())
	}

	return p.couple(consumer)
}

func isNil(v any) bool {
	if v == nil {
		return true
	}

	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Pointer, reflect.Interface, reflect.Map, reflect.Slice,
		reflect.Func, reflect.Chan:
		return rv.IsNil()
	default:
		return false
	}
}

// Producer returns the producing attribute.
func (l *Link[T]) Producer() Attribute {
	return l.producer
}

// Consumer returns the consuming attribute.
func (l *Link[T]) Consumer() Attribute {
	return l.consumer
}

// Source returns the component owning the producer.
func (l *Link[T]) Source() Component {
	return l.source
}

// Target returns the component owning the consumer.
func (l *Link[T]) Target() Component {
	return l.target
}

// SetBuffer reads the producer while holding the source component's locks. A
// failed read leaves the previous buffer in place.
func (l *Link[T]) SetBuffer() error {
	err := locking.Sync(l.source.Locks(), func() error {
		v, err := l.read()
		if err != nil {
			return err
		}

		l.lock.Lock()
		l.buffer = v
		l.hasBuffer = true
		l.lock.Unlock()

		return nil
	})
	if err != nil {
		return &UpdateError{Coupling: l, Phase: PhaseCapture, Err: err}
	}

	return nil
}

func (l *Link[T]) read() (v T, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("%w: %v", ErrPanic, r)
		}
	}()

	return l.producer.Read()
}

// Update writes the buffered value while holding the target component's
// locks. Nothing is written before the first successful capture.
func (l *Link[T]) Update() error {
	l.lock.Lock()
	v, ok := l.buffer, l.hasBuffer
	l.lock.Unlock()

	if !ok {
		return nil
	}

	err := locking.Sync(l.target.Locks(), func() error {
		return l.write(v)
	})
	if err != nil {
		return &UpdateError{Coupling: l, Phase: PhaseApply, Err: err}
	}

	return nil
}

func (l *Link[T]) write(v T) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("%w: %v", ErrPanic, r)
		}
	}()

	return l.consumer.Write(v)
}

// Buffer returns the last captured value.
func (l *Link[T]) Buffer() (any, bool) {
	l.lock.Lock()
	defer l.lock.Unlock()

	return l.buffer, l.hasBuffer
}

// Value is the typed form of Buffer.
func (l *Link[T]) Value() (T, bool) {
	l.lock.Lock()
	defer l.lock.Unlock()

	return l.buffer, l.hasBuffer
}

// Hash combines the producer and consumer identifiers.
func (l *Link[T]) Hash() uint64 {
	return 57*hashString(l.producer.ID().String()) +
		hashString(l.consumer.ID().String())
}

func hashString(s string) uint64 {
	h := fnv.New64a()
	_, _ = h.Write([]byte(s))

	return h.Sum64()
}

func (l *Link[T]) String() string {
	return fmt.Sprintf("%s -> %s", l.producer.ID(), l.consumer.ID())
}

// SameCoupling reports whether two couplings join the same producer to the same
// consumer.
func SameCoupling(a, b Coupling) bool {
	if a == nil || b == nil {
		return a == b
	}

	return a.Producer() == b.Producer() && a.Consumer() == b.Consumer()
}
