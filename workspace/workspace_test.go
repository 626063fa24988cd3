package workspace

import (
	"errors"
	"sync"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/sarchlab/cosim/coupling"
	"github.com/sarchlab/cosim/sim/hooking"
)

type NetworkComponent struct {
	*ComponentBase
}

type Plot struct {
	*ComponentBase
}

// lockTrace records the order in which its lockers are acquired.
type lockTrace struct {
	lock  sync.Mutex
	order []string
}

type tracedLocker struct {
	sync.Mutex
	name  string
	trace *lockTrace
}

func (l *tracedLocker) Lock() {
	l.Mutex.Lock()

	l.trace.lock.Lock()
	l.trace.order = append(l.trace.order, l.name)
	l.trace.lock.Unlock()
}

type tracedComponent struct {
	*ComponentBase
	locker *tracedLocker
}

func newTracedComponent(name string, trace *lockTrace) *tracedComponent {
	return &tracedComponent{
		ComponentBase: NewComponentBase(name),
		locker:        &tracedLocker{name: name, trace: trace},
	}
}

func (c *tracedComponent) Locks() []sync.Locker {
	return []sync.Locker{c.locker}
}

var _ = Describe("Workspace", func() {
	var (
		w        *Workspace
		recorder *hookRecorder
	)

	BeforeEach(func() {
		w = newTestWorkspace()
		recorder = &hookRecorder{}
		w.AcceptHook(recorder)
	})

	Context("component registration", func() {
		It("should assign default names per type", func() {
			n1 := &NetworkComponent{NewComponentBase("")}
			n2 := &NetworkComponent{NewComponentBase("")}
			plot := &Plot{NewComponentBase("")}

			Expect(w.AddComponent(n1)).To(Succeed())
			Expect(w.AddComponent(plot)).To(Succeed())
			Expect(w.AddComponent(n2)).To(Succeed())

			Expect(n1.Name()).To(Equal("Network1"))
			Expect(n2.Name()).To(Equal("Network2"))
			Expect(plot.Name()).To(Equal("Plot1"))
		})

		It("should keep counting default names after a clear", func() {
			Expect(w.AddComponent(&NetworkComponent{NewComponentBase("")})).
				To(Succeed())
			w.Clear()

			n := &NetworkComponent{NewComponentBase("")}
			Expect(w.AddComponent(n)).To(Succeed())

			Expect(n.Name()).To(Equal("Network2"))
		})

		It("should skip default names already taken", func() {
			Expect(w.AddComponent(newProbe("Network1", 0))).To(Succeed())

			n := &NetworkComponent{NewComponentBase("")}
			Expect(w.AddComponent(n)).To(Succeed())

			Expect(n.Name()).To(Equal("Network2"))
		})

		It("should reject duplicate names ignoring case", func() {
			Expect(w.AddComponent(newProbe("Source", 0))).To(Succeed())

			err := w.AddComponent(newProbe("source", 0))

			Expect(errors.Is(err, ErrDuplicateName)).To(BeTrue())
			Expect(w.Components()).To(HaveLen(1))
		})

		It("should mark dirty and notify on add", func() {
			p := newProbe("P", 0)

			Expect(w.AddComponent(p)).To(Succeed())

			Expect(w.ChangesExist()).To(BeTrue())
			Expect(recorder.Positions()).To(Equal(
				[]string{HookPosComponentAdded.Name}))

			found, ok := w.ComponentByName("p")
			Expect(ok).To(BeTrue())
			Expect(found).To(BeIdenticalTo(p))
		})

		It("should notify before removing couplings", func() {
			x := newProbe("X", 5)
			y := newProbe("Y", 0)
			Expect(w.AddComponent(x)).To(Succeed())
			Expect(w.AddComponent(y)).To(Succeed())
			_, err := w.Couple(x.out, y.in)
			Expect(err).ToNot(HaveOccurred())

			var seen int
			w.AcceptHook(hooking.NewFuncHook(func(ctx hooking.HookCtx) {
				if ctx.Pos == HookPosComponentRemoved {
					seen = len(w.CouplingManager().CouplingsFrom(x))
				}
			}))

			Expect(w.RemoveComponent(x)).To(BeTrue())

			Expect(seen).To(Equal(1))
			Expect(w.CouplingManager().Len()).To(Equal(0))
			Expect(y.removed).To(HaveLen(1))
			Expect(w.Components()).To(Equal([]Component{y}))
		})

		It("should ignore removing a component twice", func() {
			x := newProbe("X", 0)
			Expect(w.AddComponent(x)).To(Succeed())

			Expect(w.RemoveComponent(x)).To(BeTrue())
			Expect(w.RemoveComponent(x)).To(BeFalse())

			Expect(recorder.Count(HookPosComponentRemoved)).To(Equal(1))
		})

		It("should tell aware components about the workspace", func() {
			c := &awareComponent{ComponentBase: NewComponentBase("A")}

			Expect(w.AddComponent(c)).To(Succeed())

			Expect(c.ws).To(BeIdenticalTo(w))
		})
	})

	Context("clear", func() {
		It("should remove everything and reset", func() {
			x := newProbe("X", 1)
			y := newProbe("Y", 0)
			Expect(w.AddComponent(x)).To(Succeed())
			Expect(w.AddComponent(y)).To(Succeed())
			_, err := w.Couple(x.out, y.in)
			Expect(err).ToNot(HaveOccurred())
			Expect(w.Iterate(2)).To(Succeed())
			w.SetArchivePath("/tmp/a.yaml")

			w.Clear()

			Expect(w.Components()).To(BeEmpty())
			Expect(w.CouplingManager().Len()).To(Equal(0))
			Expect(w.Iteration()).To(BeZero())
			Expect(w.Time()).To(BeZero())
			Expect(w.ChangesExist()).To(BeFalse())
			Expect(w.ArchivePath()).To(BeEmpty())
			Expect(recorder.Count(HookPosComponentRemoved)).To(Equal(2))
			Expect(recorder.Count(HookPosWorkspaceCleared)).To(Equal(1))
		})
	})

	Context("coupling helpers", func() {
		var a, b, c *probe

		BeforeEach(func() {
			a = newProbe("A", 1)
			b = newProbe("B", 2)
			c = newProbe("C", 3)
			for _, p := range []*probe{a, b, c} {
				Expect(w.AddComponent(p)).To(Succeed())
			}
			w.SetDirty(false)
		})

		It("should couple one to one", func() {
			couplings, err := w.CoupleOneToOne(
				[]coupling.Attribute{a.out, b.out, c.out},
				[]coupling.Attribute{b.in, c.in})

			Expect(err).ToNot(HaveOccurred())
			Expect(couplings).To(HaveLen(2))
			Expect(w.CouplingManager().CouplingsBetween(a, b)).To(HaveLen(1))
			Expect(w.CouplingManager().CouplingsBetween(b, c)).To(HaveLen(1))
			Expect(w.ChangesExist()).To(BeTrue())
		})

		It("should couple one to many", func() {
			couplings, err := w.CoupleOneToMany(
				[]coupling.Attribute{a.out},
				[]coupling.Attribute{b.in, c.in})

			Expect(err).ToNot(HaveOccurred())
			Expect(couplings).To(HaveLen(2))
			Expect(w.CouplingManager().CouplingsFrom(a)).To(HaveLen(2))
		})

		It("should register nothing when a pair does not match", func() {
			text := coupling.NewConsumer(c, "probe", "text", func(string) {})

			_, err := w.CoupleOneToOne(
				[]coupling.Attribute{a.out, b.out},
				[]coupling.Attribute{b.in, text})

			Expect(errors.Is(err, coupling.ErrTypeMismatch)).To(BeTrue())
			Expect(w.CouplingManager().Len()).To(Equal(0))
			Expect(w.ChangesExist()).To(BeFalse())
		})

		It("should register nothing when a pair is already coupled", func() {
			existing, err := w.Couple(a.out, c.in)
			Expect(err).ToNot(HaveOccurred())
			w.SetDirty(false)

			_, err = w.CoupleOneToOne(
				[]coupling.Attribute{b.out, a.out},
				[]coupling.Attribute{b.in, c.in})

			Expect(errors.Is(err, coupling.ErrDuplicateCoupling)).To(BeTrue())
			Expect(w.CouplingManager().Couplings()).
				To(ConsistOf(existing))
			Expect(w.CouplingManager().CouplingsBetween(b, b)).To(BeEmpty())
			Expect(w.ChangesExist()).To(BeFalse())
		})

		It("should remove a coupling once", func() {
			l, err := w.Couple(a.out, b.in)
			Expect(err).ToNot(HaveOccurred())

			Expect(w.RemoveCoupling(l)).To(BeTrue())
			Expect(w.RemoveCoupling(l)).To(BeFalse())
		})
	})

	Context("locking", func() {
		It("should hold every component lock during the task", func() {
			a := newProbe("A", 0)
			b := newProbe("B", 0)
			Expect(w.AddComponent(a)).To(Succeed())
			Expect(w.AddComponent(b)).To(Succeed())

			var held []bool
			err := w.SyncOnAllComponents(func() error {
				held = append(held, !a.TryLock(), !b.TryLock())
				return nil
			})

			Expect(err).ToNot(HaveOccurred())
			Expect(held).To(Equal([]bool{true, true}))
			Expect(a.TryLock()).To(BeTrue())
			Expect(b.TryLock()).To(BeTrue())
		})

		It("should acquire component locks in workspace order", func() {
			trace := &lockTrace{}
			first := newTracedComponent("First", trace)
			second := newTracedComponent("Second", trace)
			third := newTracedComponent("Third", trace)
			for _, c := range []*tracedComponent{first, second, third} {
				Expect(w.AddComponent(c)).To(Succeed())
			}

			err := w.SyncOnComponents(
				[]Component{third, first, second},
				func() error { return nil })

			Expect(err).ToNot(HaveOccurred())
			Expect(trace.order).To(Equal([]string{"First", "Second", "Third"}))
			Expect(w.LockOrder().IsCanonical(
				[]sync.Locker{first.locker, third.locker})).To(BeTrue())
		})
	})
})

type awareComponent struct {
	*ComponentBase
	ws *Workspace
}

func (c *awareComponent) SetWorkspace(w *Workspace) {
	c.ws = w
}
