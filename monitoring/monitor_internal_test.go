package monitoring

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strconv"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/sarchlab/cosim/workspace"
)

var errTest = errors.New("test error")

var _ = Describe("Monitor", func() {
	var (
		ws     *workspace.Workspace
		m      *Monitor
		a, b   *meter
		router http.Handler
	)

	get := func(path string) *httptest.ResponseRecorder {
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))

		return rec
	}

	decode := func(rec *httptest.ResponseRecorder, v any) {
		Expect(json.Unmarshal(rec.Body.Bytes(), v)).To(Succeed())
	}

	BeforeEach(func() {
		ws = newTestWorkspace()
		a = newMeter("Source", 3)
		b = newMeter("Sink", 0)
		Expect(ws.AddComponent(a)).To(Succeed())
		Expect(ws.AddComponent(b)).To(Succeed())
		_, err := ws.Couple(a.out, b.in)
		Expect(err).NotTo(HaveOccurred())

		m = NewMonitor().WithLogger(ws.Logger())
		m.RegisterWorkspace(ws)
		router = m.Router()
	})

	AfterEach(func() {
		ws.Stop()
	})

	It("should list components", func() {
		rec := get("/api/list_components")

		var names []string
		decode(rec, &names)
		Expect(names).To(Equal([]string{"Source", "Sink"}))
	})

	It("should iterate and report the clock", func() {
		rec := get("/api/iterate/2")
		Expect(rec.Code).To(Equal(http.StatusOK))

		var now nowRsp
		decode(get("/api/now"), &now)
		Expect(now.Iteration).To(Equal(uint64(2)))
		Expect(now.State).To(Equal("idle"))
		Expect(b.Reading).To(Equal(3.0))
	})

	It("should reject a bad iteration count", func() {
		Expect(get("/api/iterate/abc").Code).To(Equal(http.StatusBadRequest))
		Expect(get("/api/iterate/-1").Code).To(Equal(http.StatusBadRequest))
	})

	It("should run and stop", func() {
		ws.SetUpdateDelay(time.Millisecond)

		Expect(get("/api/run").Code).To(Equal(http.StatusAccepted))
		Eventually(ws.Iteration).Should(BeNumerically(">", 2))
		Expect(get("/api/run").Code).To(Equal(http.StatusConflict))
		Expect(get("/api/iterate/1").Code).To(Equal(http.StatusConflict))

		var now nowRsp
		decode(get("/api/stop"), &now)
		Expect(now.State).To(Equal("idle"))
		Expect(ws.Updater().IsRunning()).To(BeFalse())
	})

	It("should list couplings", func() {
		var before []couplingRsp
		decode(get("/api/couplings"), &before)
		Expect(before).To(HaveLen(1))
		Expect(before[0].Source).To(Equal("Source/meter/out"))
		Expect(before[0].Target).To(Equal("Sink/meter/in"))
		Expect(before[0].Buffered).To(BeFalse())

		Expect(ws.SingleUpdate()).To(Succeed())

		var after []couplingRsp
		decode(get("/api/couplings"), &after)
		Expect(after[0].Buffered).To(BeTrue())
	})

	It("should serialize a component", func() {
		rec := get("/api/component/Source")

		Expect(rec.Code).To(Equal(http.StatusOK))
		Expect(rec.Body.Len()).To(BeNumerically(">", 0))
	})

	It("should reject malformed field requests", func() {
		rec := get("/api/field/" + url.PathEscape("{not json"))
		Expect(rec.Code).To(Equal(http.StatusBadRequest))

		req, err := json.Marshal(fieldReq{CompName: "Nobody", FieldName: "Reading"})
		Expect(err).NotTo(HaveOccurred())

		rec = get("/api/field/" + url.PathEscape(string(req)))
		Expect(rec.Code).To(Equal(http.StatusNotFound))
	})

	It("should return 404 for unknown components", func() {
		Expect(get("/api/component/Nobody").Code).To(Equal(http.StatusNotFound))
	})

	It("should count component errors", func() {
		a.fail = true
		Expect(ws.Iterate(3)).To(Succeed())

		var stats []errorStat
		decode(get("/api/errors"), &stats)
		Expect(stats).To(HaveLen(1))
		Expect(stats[0].Item).To(Equal("Source"))
		Expect(stats[0].Kind).To(Equal("component"))
		Expect(stats[0].Count).To(Equal(3))
		Expect(stats[0].LastIteration).To(Equal(uint64(2)))
	})

	It("should sort and page errors", func() {
		m.countError("component", "X", 1, errTest)
		m.countError("component", "Y", 5, errTest)
		m.countError("component", "Y", 6, errTest)
		m.countError("component", "Z", 9, errTest)

		Expect(m.sortAndSelectErrors("count", 0, 0)[0].Item).To(Equal("Y"))
		Expect(m.sortAndSelectErrors("recent", 0, 0)[0].Item).To(Equal("Z"))

		page := m.sortAndSelectErrors("count", 1, 1)
		Expect(page).To(HaveLen(1))
		Expect(page[0].Item).To(Equal("X"))

		Expect(m.sortAndSelectErrors("count", 0, 10)).To(BeEmpty())
		Expect(get("/api/errors?sort=size").Code).
			To(Equal(http.StatusBadRequest))
	})

	It("should list and complete progress bars", func() {
		bar := m.CreateProgressBar("Iterate", 10)
		bar.IncrementInProgress(3)
		bar.MoveInProgressToFinished(2)

		var bars []progressBarRsp
		decode(get("/api/progress"), &bars)
		Expect(bars).To(HaveLen(1))
		Expect(bars[0].ID).NotTo(BeEmpty())
		Expect(bars[0].Finished).To(Equal(uint64(2)))
		Expect(bars[0].InProgress).To(Equal(uint64(1)))

		m.CompleteProgressBar(bar)
		decode(get("/api/progress"), &bars)
		Expect(bars).To(BeEmpty())
	})

	It("should serve the web page", func() {
		rec := get("/")

		Expect(rec.Code).To(Equal(http.StatusOK))
		Expect(rec.Body.String()).To(HavePrefix("<!DOCTYPE html>"))
	})

	It("should start and stop the server", func() {
		port, err := m.StartServer()
		Expect(err).NotTo(HaveOccurred())
		Expect(port).To(BeNumerically(">", 0))
		Expect(m.URL()).To(HaveSuffix(":" + strconv.Itoa(port)))

		rsp, err := http.Get(m.URL() + "/api/now")
		Expect(err).NotTo(HaveOccurred())
		rsp.Body.Close()
		Expect(rsp.StatusCode).To(Equal(http.StatusOK))

		Expect(m.StopServer(context.Background())).To(Succeed())
		Expect(m.URL()).To(BeEmpty())
		Expect(m.OpenInBrowser()).To(HaveOccurred())
	})

	It("should ignore low port numbers", func() {
		Expect(NewMonitor().WithPortNumber(80).portNumber).To(BeZero())
		Expect(NewMonitor().WithPortNumber(18080).portNumber).To(Equal(18080))
	})
})
