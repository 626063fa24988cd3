package components

import (
	"path/filepath"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/sarchlab/cosim/archive"
)

var _ = Describe("Registry", func() {
	It("should restore a saved workspace with table data", func() {
		dir := GinkgoT().TempDir()
		path := filepath.Join(dir, "workspace.yaml")

		ws := newTestWorkspace()
		table, err := NewTable("Data", []string{"a"}, [][]float64{{4}, {5}})
		Expect(err).NotTo(HaveOccurred())
		relay := NewRelay("Gain")
		scope := NewScope("Plot", 0)
		Expect(ws.AddComponent(table)).To(Succeed())
		Expect(ws.AddComponent(relay)).To(Succeed())
		Expect(ws.AddComponent(scope)).To(Succeed())

		col, _ := table.Column("a")
		_, err = ws.Couple(col, relay.Input())
		Expect(err).NotTo(HaveOccurred())
		_, err = ws.Couple(relay.Output(), scope.Input())
		Expect(err).NotTo(HaveOccurred())

		Expect(archive.Save(ws, path)).To(Succeed())
		Expect(filepath.Join(dir, "components", "1_Data.csv")).To(BeAnExistingFile())

		contents, err := archive.Load(path)
		Expect(err).NotTo(HaveOccurred())

		restored := newTestWorkspace()
		n, err := archive.Restore(restored, contents, NewRegistry(dir))
		Expect(err).NotTo(HaveOccurred())
		Expect(n).To(Equal(2))

		c, ok := restored.ComponentByName("Data")
		Expect(ok).To(BeTrue())
		Expect(c.(*Table).NumRows()).To(Equal(2))

		Expect(restored.Iterate(3)).To(Succeed())
		p, _ := restored.ComponentByName("Plot")
		history := p.(*Scope).History()
		Expect(history).To(HaveLen(3))
		Expect(history[2].Value).To(Equal(5.0))
	})

	It("should build every class", func() {
		r := NewRegistry(GinkgoT().TempDir())

		for _, class := range []string{"Signal", "Relay", "Scope", "Table"} {
			c, err := r.Build(archive.ComponentEntry{
				Class: class,
				Name:  class + "1",
				URI:   "components/1_missing.csv",
			})
			Expect(err).NotTo(HaveOccurred())
			Expect(c.Name()).To(Equal(class + "1"))
		}
	})
})
