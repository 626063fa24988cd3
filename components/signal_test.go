package components

import (
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

var _ = Describe("Signal", func() {
	It("should reject unknown waveforms", func() {
		_, err := MakeSignalBuilder().WithWaveform("noise").Build("S")

		Expect(err).To(HaveOccurred())
	})

	DescribeTable("waveforms",
		func(w Waveform, samples []float64) {
			s, err := MakeSignalBuilder().
				WithWaveform(w).
				WithAmplitude(2).
				WithFrequency(0.25).
				WithOffset(1).
				Build("S")
			Expect(err).NotTo(HaveOccurred())

			for _, want := range samples {
				Expect(s.Value()).To(BeNumerically("~", want, 1e-9))
				Expect(s.Update()).To(Succeed())
			}
		},
		Entry("constant", Constant, []float64{3, 3, 3}),
		Entry("ramp", Ramp, []float64{1, 1.5, 2, 2.5, 1}),
		Entry("sine", Sine, []float64{1, 3, 1, -1, 1}),
		Entry("square", Square, []float64{3, 3, -1, -1, 3}),
	)

	It("should restart on reset", func() {
		s, err := MakeSignalBuilder().WithWaveform(Ramp).
			WithFrequency(0.1).Build("S")
		Expect(err).NotTo(HaveOccurred())

		Expect(s.Update()).To(Succeed())
		Expect(s.Value()).NotTo(BeZero())

		s.Reset()
		Expect(s.Value()).To(BeZero())
	})

	It("should take its amplitude from a coupling", func() {
		ws := newTestWorkspace()
		level, err := MakeSignalBuilder().WithWaveform(Constant).
			WithAmplitude(4).Build("Level")
		Expect(err).NotTo(HaveOccurred())
		s, err := MakeSignalBuilder().WithWaveform(Constant).Build("S")
		Expect(err).NotTo(HaveOccurred())
		Expect(ws.AddComponent(level)).To(Succeed())
		Expect(ws.AddComponent(s)).To(Succeed())

		_, err = ws.Couple(level.Output(), s.AmplitudeInput())
		Expect(err).NotTo(HaveOccurred())

		Expect(ws.SingleUpdate()).To(Succeed())
		Expect(s.Value()).To(Equal(4.0))
	})
})
