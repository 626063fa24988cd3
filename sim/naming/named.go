package naming

import (
	"reflect"
	"strconv"
	"strings"
	"sync"
)

// Named describes an object that has a name.
type Named interface {
	// Name returns the name of the object.
	Name() string
}

// NamedBase is a base implementation of Named.
type NamedBase struct {
	name string
}

func (b *NamedBase) Name() string {
	return b.name
}

// SetName renames the object.
func (b *NamedBase) SetName(name string) {
	b.name = name
}

// MakeNamedBase creates a new NamedBase
func MakeNamedBase(name string) NamedBase {
	return NamedBase{name: name}
}

// SimpleTypeName returns the name of the concrete type of v, dereferencing
// pointers and dropping a trailing "Component".
func SimpleTypeName(v any) string {
	t := reflect.TypeOf(v)
	for t != nil && t.Kind() == reflect.Ptr {
		t = t.Elem()
	}

	if t == nil {
		return ""
	}

	name := t.Name()
	if trimmed := strings.TrimSuffix(name, "Component"); trimmed != "" {
		name = trimmed
	}

	return name
}

// A DefaultNamer hands out names of the form <SimpleTypeName><index>. Indices
// count per concrete type and never reset.
type DefaultNamer struct {
	lock    sync.Mutex
	indices map[reflect.Type]int
}

// NewDefaultNamer creates a DefaultNamer.
func NewDefaultNamer() *DefaultNamer {
	return &DefaultNamer{indices: make(map[reflect.Type]int)}
}

// Next returns the next default name for the type of v.
func (n *DefaultNamer) Next(v any) string {
	n.lock.Lock()
	defer n.lock.Unlock()

	t := reflect.TypeOf(v)
	n.indices[t]++

	return SimpleTypeName(v) + strconv.Itoa(n.indices[t])
}
