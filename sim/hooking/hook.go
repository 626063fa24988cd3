// Package hooking provides the observer mechanism used across the workspace.
// Every listener in the system (component added, couplings changed, tick
// completed, coupling error) is a Hook invoked with a HookCtx.
package hooking

import "sync"

// HookPos defines the enum of possible hooking positions.
type HookPos struct {
	Name string
}

// HookCtx is the context that holds all the information about the site that a
// hook is triggered.
type HookCtx struct {
	// Domain is the hookable object that is raising this hook.
	Domain Hookable

	// Pos identifies the lifecycle stage or location the hook is firing from.
	Pos *HookPos

	// Item carries the primary subject associated with the hook (component,
	// coupling, tick).
	Item any

	// Detail holds optional auxiliary data; hook sites may leave it nil.
	Detail any
}

// Hookable defines an object that accept Hooks.
type Hookable interface {
	// AcceptHook registers a hook.
	AcceptHook(hook Hook)

	// NumHooks returns the number of hooks registered.
	NumHooks() int

	// Hooks returns all the hooks registered.
	Hooks() []Hook
}

// Hook is a short piece of program that can be invoked by a hookable object.
type Hook interface {
	// Func determines what to do if hook is invoked.
	Func(ctx HookCtx)
}

type funcHook struct {
	f func(ctx HookCtx)
}

func (h *funcHook) Func(ctx HookCtx) {
	h.f(ctx)
}

// NewFuncHook wraps a plain function as a Hook. Every call returns a distinct
// hook, so the same function can be registered on several hookables.
func NewFuncHook(f func(ctx HookCtx)) Hook {
	return &funcHook{f: f}
}

// A HookableBase provides some utility function for other type that implement
// the Hookable interface.
//
// Hooks may be accepted while an update loop is invoking them, so the list is
// guarded.
type HookableBase struct {
	lock     sync.RWMutex
	hookList []Hook
}

// NewHookableBase creates a HookableBase object.
func NewHookableBase() *HookableBase {
	h := new(HookableBase)
	h.hookList = make([]Hook, 0)

	return h
}

// NumHooks returns the number of hooks registered.
func (h *HookableBase) NumHooks() int {
	h.lock.RLock()
	defer h.lock.RUnlock()

	return len(h.hookList)
}

// Hooks returns a copy of all the hooks registered.
func (h *HookableBase) Hooks() []Hook {
	h.lock.RLock()
	defer h.lock.RUnlock()

	hooks := make([]Hook, len(h.hookList))
	copy(hooks, h.hookList)

	return hooks
}

// AcceptHook register a hook. Registering the same hook twice panics.
func (h *HookableBase) AcceptHook(hook Hook) {
	h.lock.Lock()
	defer h.lock.Unlock()

	h.mustNotHaveDuplicatedHook(hook)
	h.hookList = append(h.hookList, hook)
}

// RemoveHook unregisters a hook. Removing a hook that is not registered is a
// no-op.
func (h *HookableBase) RemoveHook(hook Hook) {
	h.lock.Lock()
	defer h.lock.Unlock()

	for i, registered := range h.hookList {
		if registered == hook {
			h.hookList = append(h.hookList[:i:i], h.hookList[i+1:]...)
			return
		}
	}
}

func (h *HookableBase) mustNotHaveDuplicatedHook(hook Hook) {
	for _, registered := range h.hookList {
		if registered == hook {
			panic("duplicated hook")
		}
	}
}

// InvokeHook triggers the register Hooks. Hooks run on the caller's goroutine
// against a snapshot of the hook list.
func (h *HookableBase) InvokeHook(ctx HookCtx) {
	for _, hook := range h.Hooks() {
		hook.Func(ctx)
	}
}

var _ Hookable = (*HookableBase)(nil)
