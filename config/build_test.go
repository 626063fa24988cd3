package config

import (
	"os"
	"path/filepath"
	"strings"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/sarchlab/cosim/components"
	"github.com/sarchlab/cosim/workspace"
)

var _ = Describe("Build", func() {
	parse := func(doc string) *Scenario {
		s, err := Parse(strings.NewReader(doc))
		Expect(err).NotTo(HaveOccurred())

		return s
	}

	It("should build and run a pipeline", func() {
		dir := GinkgoT().TempDir()
		Expect(os.WriteFile(filepath.Join(dir, "data.csv"),
			[]byte("x\n1\n2\n3\n"), 0o644)).To(Succeed())

		s := parse(`
controller: priority
threads: 2
components:
  - name: Data
    class: Table
    params: {file: data.csv, loop: false}
  - name: Double
    class: Relay
    params: {gain: 2}
  - name: Plot
    class: Scope
    priority: 1
couplings:
  - from: Data/table/x
    to: Double/relay/in
  - from: Double/relay/out
    to: Plot/scope/in
`)
		s.Dir = dir
		ws := newTestWorkspace()

		comps, err := Build(s, ws, nil)

		Expect(err).NotTo(HaveOccurred())
		Expect(comps).To(HaveLen(3))
		Expect(ws.CouplingManager().Len()).To(Equal(2))
		Expect(ws.Updater().Controller()).
			To(Equal(workspace.PriorityController{}))
		Expect(ws.Updater().NumThreads()).To(Equal(2))

		Expect(ws.Iterate(4)).To(Succeed())

		plot := comps[2].(*components.Scope)
		values := []float64{}
		for _, sample := range plot.History() {
			values = append(values, sample.Value)
		}

		Expect(values).To(Equal([]float64{0, 2, 4, 6}))
	})

	It("should configure components", func() {
		s := parse(`
components:
  - name: Wave
    class: signal
    priority: 3
    disabled: true
    params: {waveform: square, amplitude: 2, frequency: 0.5}
  - name: Squash
    class: Relay
    params: {squashing: clip, lower: 0, upper: 1}
`)
		ws := newTestWorkspace()

		comps, err := Build(s, ws, nil)

		Expect(err).NotTo(HaveOccurred())
		Expect(comps[0].Priority()).To(Equal(3))
		Expect(comps[0].IsUpdateOn()).To(BeFalse())
		Expect(comps[0].(*components.Signal).Value()).To(Equal(2.0))
	})

	DescribeTable("failures leave the workspace untouched",
		func(doc string, expected error) {
			ws := newTestWorkspace()

			_, err := Build(parse(doc), ws, nil)

			Expect(err).To(MatchError(expected))
			Expect(ws.Components()).To(BeEmpty())
			Expect(ws.CouplingManager().Len()).To(BeZero())
		},
		Entry("unknown class",
			"components:\n  - {name: A, class: Plotter}\n",
			ErrUnknownClass),
		Entry("unknown component",
			"components:\n  - {name: A, class: Relay}\n"+
				"couplings:\n  - {from: B/relay/out, to: A/relay/in}\n",
			ErrUnknownComponent),
		Entry("unknown attribute",
			"components:\n  - {name: A, class: Relay}\n  - {name: B, class: Relay}\n"+
				"couplings:\n  - {from: A/relay/value, to: B/relay/in}\n",
			ErrUnknownAttribute),
	)

	It("should reject unknown params", func() {
		s := parse("components:\n  - {name: A, class: Relay, params: {gian: 2}}\n")

		_, err := Build(s, newTestWorkspace(), nil)

		Expect(err).To(HaveOccurred())
	})

	It("should reject mismatched couplings", func() {
		s := parse(`
components:
  - {name: T, class: Table, params: {columns: [x], rows: [[1]]}}
  - {name: R, class: Relay}
couplings:
  - {from: T/table/row, to: R/relay/in}
`)
		ws := newTestWorkspace()

		_, err := Build(s, ws, nil)

		Expect(err).To(HaveOccurred())
		Expect(ws.Components()).To(BeEmpty())
	})
})
