package config

import (
	"os"
	"path/filepath"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

var _ = Describe("Env", func() {
	unset := func() {
		for _, name := range []string{
			EnvMonitorPort, EnvOutput, EnvThreads, EnvDelay,
		} {
			os.Unsetenv(name)
		}
	}

	BeforeEach(func() {
		unset()
		DeferCleanup(unset)
	})

	It("should read a dotenv file", func() {
		path := filepath.Join(GinkgoT().TempDir(), ".env")
		Expect(os.WriteFile(path, []byte(
			"COSIM_MONITOR_PORT=18080\n"+
				"COSIM_OUTPUT=run1\n"+
				"COSIM_THREADS=3\n"+
				"COSIM_DELAY=20ms\n"), 0o644)).To(Succeed())

		env, err := LoadEnv(path)

		Expect(err).NotTo(HaveOccurred())
		Expect(env).To(Equal(Env{
			MonitorPort: 18080,
			Output:      "run1",
			Threads:     3,
			Delay:       20 * time.Millisecond,
		}))
	})

	It("should not override variables already set", func() {
		path := filepath.Join(GinkgoT().TempDir(), ".env")
		Expect(os.WriteFile(path, []byte("COSIM_OUTPUT=file\n"), 0o644)).
			To(Succeed())
		os.Setenv(EnvOutput, "shell")

		env, err := LoadEnv(path)

		Expect(err).NotTo(HaveOccurred())
		Expect(env.Output).To(Equal("shell"))
	})

	It("should skip missing files", func() {
		env, err := LoadEnv(filepath.Join(GinkgoT().TempDir(), "missing.env"))

		Expect(err).NotTo(HaveOccurred())
		Expect(env).To(Equal(Env{}))
	})

	It("should report malformed values", func() {
		os.Setenv(EnvThreads, "many")

		_, err := LoadEnv()

		Expect(err).To(MatchError(ContainSubstring(EnvThreads)))
	})

	It("should override scenarios", func() {
		s := &Scenario{Output: "a", Threads: 1, Delay: time.Second}

		Env{Threads: 4}.Apply(s)

		Expect(s.Output).To(Equal("a"))
		Expect(s.Threads).To(Equal(4))
		Expect(s.Delay).To(Equal(time.Second))
	})
})
