package cmd

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"github.com/spf13/pflag"

	"github.com/sarchlab/cosim/archive"
	"github.com/sarchlab/cosim/config"
	"github.com/sarchlab/cosim/simulation"
)

const pipeline = `
name: pipeline
iterations: 4
components:
  - name: Wave
    class: Signal
    params: {waveform: ramp, frequency: 0.25}
  - name: Gain
    class: Relay
    params: {gain: 2}
  - name: Plot
    class: Scope
    params: {record: true}
couplings:
  - from: Wave/signal/value
    to: Gain/relay/in
  - from: Gain/relay/out
    to: Plot/scope/in
`

var _ = Describe("Commands", func() {
	var (
		dir string
		out *bytes.Buffer
	)

	execute := func(args ...string) error {
		rootCmd.SetArgs(args)
		rootCmd.SetOut(out)
		rootCmd.SetErr(out)

		return rootCmd.Execute()
	}

	BeforeEach(func() {
		runCmd.Flags().VisitAll(func(f *pflag.Flag) {
			Expect(f.Value.Set(f.DefValue)).To(Succeed())
			f.Changed = false
		})
		inspectCmd.Flags().VisitAll(func(f *pflag.Flag) {
			Expect(f.Value.Set(f.DefValue)).To(Succeed())
			f.Changed = false
		})

		dir = GinkgoT().TempDir()
		out = bytes.NewBuffer(nil)
	})

	It("should run a scenario and inspect its archive", func() {
		scenario := filepath.Join(dir, "pipeline.yaml")
		Expect(os.WriteFile(scenario, []byte(pipeline), 0o644)).To(Succeed())
		archivePath := filepath.Join(dir, "saved.yaml")

		err := execute("run", scenario,
			"--output", filepath.Join(dir, "rec"),
			"--env-file", filepath.Join(dir, "missing.env"),
			"--save-archive", archivePath)

		Expect(err).NotTo(HaveOccurred())
		Expect(out.String()).To(ContainSubstring(
			"pipeline finished at iteration 4, time 4"))
		Expect(filepath.Join(dir, "rec.sqlite3")).To(BeAnExistingFile())

		contents, err := archive.Load(archivePath)
		Expect(err).NotTo(HaveOccurred())
		Expect(contents.Components).To(HaveLen(3))
		Expect(contents.Couplings).To(HaveLen(2))

		out.Reset()
		Expect(execute("archive", "inspect", "--restore", archivePath)).
			To(Succeed())
		Expect(out.String()).To(ContainSubstring("Relay"))
		Expect(out.String()).To(ContainSubstring(
			"restored 3 components and 2 couplings"))
	})

	Context("without an iteration count", func() {
		var sim *simulation.Simulation

		BeforeEach(func() {
			var err error
			sim, err = simulation.MakeBuilder().
				WithoutMonitoring().
				WithUpdateDelay(time.Millisecond).
				WithOutputFileName(filepath.Join(dir, "drive")).
				Build()
			Expect(err).NotTo(HaveOccurred())
			DeferCleanup(sim.Terminate)
		})

		It("should keep running until the context ends", func() {
			ctx, cancel := context.WithTimeout(
				context.Background(), 200*time.Millisecond)
			defer cancel()

			start := time.Now()
			Expect(drive(ctx, sim, 0)).To(Succeed())

			Expect(time.Since(start)).
				To(BeNumerically(">=", 200*time.Millisecond))
			Expect(sim.Workspace().Updater().IsRunning()).To(BeFalse())
			Expect(sim.Workspace().Iteration()).To(BeNumerically(">", 0))
		})

		It("should return when the run is stopped elsewhere", func() {
			done := make(chan error, 1)
			go func() { done <- drive(context.Background(), sim, 0) }()

			Eventually(sim.Workspace().Iteration).Should(BeNumerically(">", 0))
			Consistently(done, 50*time.Millisecond).ShouldNot(Receive())

			sim.Stop()

			Eventually(done).Should(Receive(BeNil()))
		})
	})

	It("should fail on a missing archive", func() {
		Expect(execute("archive", "inspect",
			filepath.Join(dir, "none.yaml"))).NotTo(Succeed())
	})

	It("should print archive contents as a table", func() {
		buf := bytes.NewBuffer(nil)
		contents := &archive.Contents{
			Components: []archive.ComponentEntry{{
				Class: "Relay", Name: "Gain", URI: "components/1_Gain.yaml",
			}},
		}

		Expect(printContents(buf, contents)).To(Succeed())

		lines := strings.Split(buf.String(), "\n")
		Expect(lines[0]).To(HavePrefix("CLASS"))
		Expect(lines[1]).To(ContainSubstring("components/1_Gain.yaml"))
	})

	It("should layer env and flags over the scenario", func() {
		scenario := &config.Scenario{Iterations: 7, Output: "from-scenario"}
		env := config.Env{Output: "from-env", Threads: 3, MonitorPort: 18081}

		opts := resolveSettings(runCmd, scenario, env)

		Expect(opts.iterations).To(Equal(7))
		Expect(scenario.Threads).To(Equal(3))
		Expect(opts.output).To(Equal("from-env"))
		Expect(opts.monitorPort).To(Equal(18081))
	})
})
