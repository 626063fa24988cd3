package locking

import (
	"sort"
	"sync"
)

// Sync acquires locks in the given order, runs task while all of them are
// held, and releases them in reverse order. A handle that appears more than
// once is only acquired the first time.
func Sync(locks []sync.Locker, task func() error) error {
	held := make([]sync.Locker, 0, len(locks))
	defer func() {
		for i := len(held) - 1; i >= 0; i-- {
			held[i].Unlock()
		}
	}()

	for _, l := range locks {
		if contains(held, l) {
			continue
		}

		l.Lock()
		held = append(held, l)
	}

	return task()
}

func contains(locks []sync.Locker, l sync.Locker) bool {
	for _, held := range locks {
		if held == l {
			return true
		}
	}

	return false
}

// Collect flattens groups of handles into one list, keeping the first
// occurrence of each handle.
func Collect(groups ...[]sync.Locker) []sync.Locker {
	var locks []sync.Locker

	seen := make(map[sync.Locker]bool)
	for _, group := range groups {
		for _, l := range group {
			if l == nil || seen[l] {
				continue
			}

			seen[l] = true
			locks = append(locks, l)
		}
	}

	return locks
}

// Order is a canonical ranking of lock handles.
type Order struct {
	locks []sync.Locker
	rank  map[sync.Locker]int
}

// NewOrder builds an Order from groups of handles. Handles rank by their
// first appearance.
func NewOrder(groups ...[]sync.Locker) *Order {
	o := &Order{
		locks: Collect(groups...),
		rank:  make(map[sync.Locker]int),
	}

	for i, l := range o.locks {
		o.rank[l] = i
	}

	return o
}

// Locks returns every handle in canonical order.
func (o *Order) Locks() []sync.Locker {
	locks := make([]sync.Locker, len(o.locks))
	copy(locks, o.locks)

	return locks
}

// Len returns the number of ranked handles.
func (o *Order) Len() int {
	return len(o.locks)
}

// Sort returns a deduplicated copy of locks arranged in canonical order.
// Handles the Order does not know keep their relative order and go last.
func (o *Order) Sort(locks []sync.Locker) []sync.Locker {
	sorted := Collect(locks)

	sort.SliceStable(sorted, func(i, j int) bool {
		return o.rankOf(sorted[i]) < o.rankOf(sorted[j])
	})

	return sorted
}

func (o *Order) rankOf(l sync.Locker) int {
	r, found := o.rank[l]
	if !found {
		return len(o.locks)
	}

	return r
}

// IsCanonical reports whether every known handle in locks appears in
// canonical order.
func (o *Order) IsCanonical(locks []sync.Locker) bool {
	last := -1
	for _, l := range locks {
		r, found := o.rank[l]
		if !found {
			continue
		}

		if r < last {
			return false
		}

		last = r
	}

	return true
}
