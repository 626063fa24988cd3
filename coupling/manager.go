package coupling

import (
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/sarchlab/cosim/sim/hooking"
)

// HookPosCouplingsChanged fires once after every mutation of the coupling
// list.
var HookPosCouplingsChanged = &hooking.HookPos{Name: "CouplingsChanged"}

// HookPosCouplingError fires when a coupling fails during a tick. Item is the
// coupling and Detail is the *UpdateError.
var HookPosCouplingError = &hooking.HookPos{Name: "CouplingError"}

type componentPair struct {
	source, target Component
}

// A Manager is the registry of all the couplings of a workspace.
//
// The ordered list is replaced, never modified in place, so a snapshot taken
// for a tick stays valid while listeners add or remove couplings. The indices
// are only touched together with the list.
type Manager struct {
	hooking.HookableBase

	lock           sync.RWMutex
	all            []Coupling
	bySourceTarget map[componentPair][]Coupling
	bySource       map[Component][]Coupling
	byTarget       map[Component][]Coupling
	byConsumer     map[Attribute]Coupling

	logger *slog.Logger
}

// NewManager creates an empty Manager. A nil logger means slog.Default().
func NewManager(logger *slog.Logger) *Manager {
	if logger == nil {
		logger = slog.Default()
	}

	m := &Manager{logger: logger}
	m.reset()

	return m
}

func (m *Manager) reset() {
	m.all = nil
	m.bySourceTarget = make(map[componentPair][]Coupling)
	m.bySource = make(map[Component][]Coupling)
	m.byTarget = make(map[Component][]Coupling)
	m.byConsumer = make(map[Attribute]Coupling)
}

// AddCoupling registers c. A coupling already feeding the same consumer is
// removed first, since a consumer has at most one source.
func (m *Manager) AddCoupling(c Coupling) error {
	if err := mustBeFormed(c); err != nil {
		return err
	}

	m.lock.Lock()
	replaced, err := m.addLocked(c)
	m.lock.Unlock()

	if err != nil {
		return err
	}

	if replaced != nil {
		notifyRemoved(replaced)
	}

	m.logger.Debug("coupling added", "coupling", c.String())
	m.invokeChanged()

	return nil
}

// AddCouplings registers a batch of couplings in order, as AddCoupling would
// one by one. If any of them is malformed or already registered, nothing is
// registered.
func (m *Manager) AddCouplings(batch []Coupling) error {
	for _, c := range batch {
		if err := mustBeFormed(c); err != nil {
			return err
		}
	}

	m.lock.Lock()
	if err := m.checkBatchLocked(batch); err != nil {
		m.lock.Unlock()
		return err
	}

	var replaced []Coupling
	for _, c := range batch {
		r, _ := m.addLocked(c)
		if r != nil {
			replaced = append(replaced, r)
		}
	}
	m.lock.Unlock()

	for _, r := range replaced {
		notifyRemoved(r)
	}

	m.logger.Debug("couplings added", "count", len(batch))
	m.invokeChanged()

	return nil
}

func (m *Manager) checkBatchLocked(batch []Coupling) error {
	for i, c := range batch {
		existing, found := m.byConsumer[c.Consumer()]
		if found && SameCoupling(existing, c) {
			return fmt.Errorf("%w: %s", ErrDuplicateCoupling, c)
		}

		for _, earlier := range batch[:i] {
			if SameCoupling(earlier, c) {
				return fmt.Errorf("%w: %s", ErrDuplicateCoupling, c)
			}
		}
	}

	return nil
}

func mustBeFormed(c Coupling) error {
	if c == nil {
		return ErrMissingEndpoint
	}

	if c.Producer() == nil || c.Consumer() == nil ||
		c.Source() == nil || c.Target() == nil {
		return fmt.Errorf("%w: %s", ErrMissingEndpoint, c)
	}

	return nil
}

func (m *Manager) addLocked(c Coupling) (replaced Coupling, err error) {
	existing, found := m.byConsumer[c.Consumer()]
	if found && SameCoupling(existing, c) {
		return nil, fmt.Errorf("%w: %s", ErrDuplicateCoupling, c)
	}

	if found {
		m.removeLocked(existing)
		replaced = existing
	}

	m.insertLocked(c)

	return replaced, nil
}

func (m *Manager) insertLocked(c Coupling) {
	all := make([]Coupling, len(m.all), len(m.all)+1)
	copy(all, m.all)
	m.all = append(all, c)

	pair := componentPair{c.Source(), c.Target()}
	m.bySourceTarget[pair] = append(m.bySourceTarget[pair], c)
	m.bySource[c.Source()] = append(m.bySource[c.Source()], c)
	m.byTarget[c.Target()] = append(m.byTarget[c.Target()], c)
	m.byConsumer[c.Consumer()] = c
}

// removeLocked drops c from the list and from every index, keyed on the
// source and target recorded in the coupling. Missing entries are ignored.
func (m *Manager) removeLocked(c Coupling) bool {
	idx := -1
	for i, existing := range m.all {
		if existing == c {
			idx = i
			break
		}
	}

	if idx < 0 {
		return false
	}

	all := make([]Coupling, 0, len(m.all)-1)
	all = append(all, m.all[:idx]...)
	m.all = append(all, m.all[idx+1:]...)

	pair := componentPair{c.Source(), c.Target()}
	removeFromIndex(m.bySourceTarget, pair, c)
	removeFromIndex(m.bySource, c.Source(), c)
	removeFromIndex(m.byTarget, c.Target(), c)

	if m.byConsumer[c.Consumer()] == c {
		delete(m.byConsumer, c.Consumer())
	}

	return true
}

func removeFromIndex[K comparable](
	index map[K][]Coupling,
	key K,
	c Coupling,
) {
	list := index[key]

	filtered := make([]Coupling, 0, len(list))
	for _, existing := range list {
		if existing != c {
			filtered = append(filtered, existing)
		}
	}

	if len(filtered) == 0 {
		delete(index, key)
		return
	}

	index[key] = filtered
}

func notifyRemoved(c Coupling) {
	c.Source().CouplingRemoved(c)

	if c.Target() != c.Source() {
		c.Target().CouplingRemoved(c)
	}
}

func (m *Manager) invokeChanged() {
	m.InvokeHook(hooking.HookCtx{
		Domain: m,
		Pos:    HookPosCouplingsChanged,
	})
}

// RemoveCoupling removes c and reports whether it was registered. Removing an
// unknown coupling does nothing.
func (m *Manager) RemoveCoupling(c Coupling) bool {
	if c == nil {
		return false
	}

	m.lock.Lock()
	removed := m.removeLocked(c)
	m.lock.Unlock()

	if !removed {
		return false
	}

	notifyRemoved(c)
	m.invokeChanged()

	return true
}

// RemoveCouplings removes every coupling in which the component is the source
// or the target, and returns how many were removed.
func (m *Manager) RemoveCouplings(component Component) int {
	m.lock.Lock()

	queued := make(map[Coupling]bool)
	for _, c := range m.bySource[component] {
		queued[c] = true
	}

	for _, c := range m.byTarget[component] {
		queued[c] = true
	}

	removed := m.removeAllLocked(queued)
	m.lock.Unlock()

	return m.finishRemoval(removed)
}

// RemoveAttachedCouplings removes every coupling whose producer or consumer
// is the attribute.
func (m *Manager) RemoveAttachedCouplings(attr Attribute) int {
	m.lock.Lock()

	queued := make(map[Coupling]bool)
	for _, c := range m.all {
		if c.Producer() == attr || c.Consumer() == attr {
			queued[c] = true
		}
	}

	removed := m.removeAllLocked(queued)
	m.lock.Unlock()

	return m.finishRemoval(removed)
}

func (m *Manager) removeAllLocked(queued map[Coupling]bool) []Coupling {
	var removed []Coupling

	for _, c := range m.all {
		if queued[c] {
			removed = append(removed, c)
		}
	}

	for _, c := range removed {
		m.removeLocked(c)
	}

	return removed
}

func (m *Manager) finishRemoval(removed []Coupling) int {
	if len(removed) == 0 {
		return 0
	}

	for _, c := range removed {
		notifyRemoved(c)
	}

	m.invokeChanged()

	return len(removed)
}

// ReplaceAttribute moves every coupling of old onto replacement. Nothing
// changes if any of the new couplings cannot be built.
func (m *Manager) ReplaceAttribute(old, replacement Attribute) (int, error) {
	var olds, news []Coupling

	for _, c := range m.Couplings() {
		var (
			n   Coupling
			err error
		)

		switch {
		case c.Producer() == old:
			n, err = Connect(replacement, c.Consumer())
		case c.Consumer() == old:
			n, err = Connect(c.Producer(), replacement)
		default:
			continue
		}

		if err != nil {
			return 0, err
		}

		olds = append(olds, c)
		news = append(news, n)
	}

	if len(olds) == 0 {
		return 0, nil
	}

	var removed []Coupling

	m.lock.Lock()
	for _, c := range olds {
		if m.removeLocked(c) {
			removed = append(removed, c)
		}
	}

	for _, c := range news {
		replaced, err := m.addLocked(c)
		if errors.Is(err, ErrDuplicateCoupling) {
			continue
		}

		if replaced != nil {
			removed = append(removed, replaced)
		}
	}
	m.lock.Unlock()

	for _, c := range removed {
		notifyRemoved(c)
	}

	m.invokeChanged()

	return len(news), nil
}

// Clear drops every coupling without notifying components.
func (m *Manager) Clear() {
	m.lock.Lock()
	hadCouplings := len(m.all) > 0
	m.reset()
	m.lock.Unlock()

	if hadCouplings {
		m.invokeChanged()
	}
}

// Couplings returns all couplings in tick order. The returned slice must not
// be modified.
func (m *Manager) Couplings() []Coupling {
	m.lock.RLock()
	defer m.lock.RUnlock()

	return m.all
}

// Len returns the number of couplings.
func (m *Manager) Len() int {
	m.lock.RLock()
	defer m.lock.RUnlock()

	return len(m.all)
}

// CouplingsBetween returns the couplings from source to target. The result
// is never nil.
func (m *Manager) CouplingsBetween(source, target Component) []Coupling {
	m.lock.RLock()
	defer m.lock.RUnlock()

	return copyList(m.bySourceTarget[componentPair{source, target}])
}

// CouplingsFrom returns the couplings whose producer belongs to source.
func (m *Manager) CouplingsFrom(source Component) []Coupling {
	m.lock.RLock()
	defer m.lock.RUnlock()

	return copyList(m.bySource[source])
}

// CouplingsTo returns the couplings whose consumer belongs to target.
func (m *Manager) CouplingsTo(target Component) []Coupling {
	m.lock.RLock()
	defer m.lock.RUnlock()

	return copyList(m.byTarget[target])
}

func copyList(list []Coupling) []Coupling {
	out := make([]Coupling, len(list))
	copy(out, list)

	return out
}

// Contains reports whether a coupling equal to c is registered.
func (m *Manager) Contains(c Coupling) bool {
	if c == nil {
		return false
	}

	m.lock.RLock()
	defer m.lock.RUnlock()

	existing, found := m.byConsumer[c.Consumer()]

	return found && SameCoupling(existing, c)
}

// FindCoupling looks a coupling up by the string identifiers of its
// endpoints.
func (m *Manager) FindCoupling(source, target AttributeID) (Coupling, bool) {
	for _, c := range m.Couplings() {
		if c.Producer().ID() == source && c.Consumer().ID() == target {
			return c, true
		}
	}

	return nil, false
}

// UpdateAll captures every buffer, then applies every buffer, both in tick
// order. Failures are reported through hooks and do not stop the pass.
func (m *Manager) UpdateAll() {
	m.UpdateSubset(m.Couplings())
}

// UpdateSubset runs both phases over the given couplings only.
func (m *Manager) UpdateSubset(couplings []Coupling) {
	for _, c := range couplings {
		if err := c.SetBuffer(); err != nil {
			m.report(c, PhaseCapture, err)
		}
	}

	for _, c := range couplings {
		if err := c.Update(); err != nil {
			m.report(c, PhaseApply, err)
		}
	}
}

func (m *Manager) report(c Coupling, phase Phase, err error) {
	var updateErr *UpdateError
	if !errors.As(err, &updateErr) {
		updateErr = &UpdateError{Coupling: c, Phase: phase, Err: err}
	}

	m.logger.Warn("coupling update failed",
		"coupling", c.String(),
		"phase", updateErr.Phase.String(),
		"err", updateErr.Err)

	m.InvokeHook(hooking.HookCtx{
		Domain: m,
		Pos:    HookPosCouplingError,
		Item:   c,
		Detail: updateErr,
	})
}
