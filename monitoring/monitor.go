// Package monitoring turns a workspace into a web server that can be watched
// and driven while it runs.
package monitoring

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"runtime/pprof"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/google/pprof/profile"
	"github.com/gorilla/mux"
	"github.com/pkg/browser"
	"github.com/shirou/gopsutil/process"
	"github.com/syifan/goseth"

	"github.com/sarchlab/cosim/coupling"
	"github.com/sarchlab/cosim/monitoring/web"
	"github.com/sarchlab/cosim/sim/hooking"
	"github.com/sarchlab/cosim/sim/id"
	"github.com/sarchlab/cosim/workspace"
)

// Monitor can turn a workspace into a server and allows external monitoring
// and controlling of the update loop.
type Monitor struct {
	ws         *workspace.Workspace
	portNumber int
	logger     *slog.Logger
	ids        id.IDGenerator

	serverLock sync.Mutex
	server     *http.Server
	listener   net.Listener

	progressBarsLock sync.Mutex
	progressBars     []*ProgressBar

	errorsLock sync.Mutex
	errorStats map[string]*errorStat
}

type errorStat struct {
	Item          string `json:"item"`
	Kind          string `json:"kind"`
	Count         int    `json:"count"`
	LastIteration uint64 `json:"last_iteration"`
	LastMessage   string `json:"last_message"`
}

// NewMonitor creates a new Monitor
func NewMonitor() *Monitor {
	return &Monitor{
		logger:     slog.Default(),
		ids:        id.NewGlobalIDGenerator(),
		errorStats: make(map[string]*errorStat),
	}
}

// WithPortNumber sets the port number of the monitor.
func (m *Monitor) WithPortNumber(portNumber int) *Monitor {
	if portNumber != 0 && portNumber < 1000 {
		fmt.Fprintf(os.Stderr,
			"Port number %d is assigned to the monitoring server, "+
				"which is not allowed. Using a random port instead.\n", portNumber)
		portNumber = 0
	}

	m.portNumber = portNumber

	return m
}

// WithLogger sets the logger used for request failures.
func (m *Monitor) WithLogger(logger *slog.Logger) *Monitor {
	m.logger = logger

	return m
}

// RegisterWorkspace sets the workspace to watch. The monitor listens to the
// workspace's component and coupling errors. Updater hooks move with a
// controller swap, so the registration survives it.
func (m *Monitor) RegisterWorkspace(ws *workspace.Workspace) {
	m.ws = ws

	ws.Updater().AcceptHook(m)
	ws.CouplingManager().AcceptHook(m)
}

// Func collects component and coupling errors.
func (m *Monitor) Func(ctx hooking.HookCtx) {
	switch ctx.Pos {
	case workspace.HookPosComponentError:
		err := ctx.Detail.(*workspace.ComponentError)
		m.countError("component", err.Component.Name(), err.Iteration, err.Err)
	case coupling.HookPosCouplingError:
		err := ctx.Detail.(*coupling.UpdateError)
		m.countError("coupling", err.Coupling.String(), m.ws.Iteration(), err)
	}
}

func (m *Monitor) countError(kind, item string, iteration uint64, err error) {
	m.errorsLock.Lock()
	defer m.errorsLock.Unlock()

	stat, ok := m.errorStats[item]
	if !ok {
		stat = &errorStat{Item: item, Kind: kind}
		m.errorStats[item] = stat
	}

	stat.Count++
	stat.LastIteration = iteration
	stat.LastMessage = err.Error()
}

// CreateProgressBar creates a new progress bar.
func (m *Monitor) CreateProgressBar(name string, total uint64) *ProgressBar {
	bar := &ProgressBar{
		ID:        m.ids.Generate(),
		Name:      name,
		StartTime: time.Now(),
		Total:     total,
	}

	m.progressBarsLock.Lock()
	defer m.progressBarsLock.Unlock()

	m.progressBars = append(m.progressBars, bar)

	return bar
}

// CompleteProgressBar removes a bar to be shown on the webpage.
func (m *Monitor) CompleteProgressBar(pb *ProgressBar) {
	m.progressBarsLock.Lock()
	defer m.progressBarsLock.Unlock()

	newBars := make([]*ProgressBar, 0, len(m.progressBars))
	for _, b := range m.progressBars {
		if b != pb {
			newBars = append(newBars, b)
		}
	}

	m.progressBars = newBars
}

// Router returns the handler that serves the API and the web pages.
func (m *Monitor) Router() http.Handler {
	r := mux.NewRouter()

	r.HandleFunc("/api/run", m.run)
	r.HandleFunc("/api/stop", m.stop)
	r.HandleFunc("/api/iterate/{n}", m.iterate)
	r.HandleFunc("/api/now", m.now)
	r.HandleFunc("/api/list_components", m.listComponents)
	r.HandleFunc("/api/component/{name}", m.listComponentDetails)
	r.HandleFunc("/api/field/{json}", m.listFieldValue)
	r.HandleFunc("/api/couplings", m.listCouplings)
	r.HandleFunc("/api/errors", m.listErrors)
	r.HandleFunc("/api/progress", m.listProgressBars)
	r.HandleFunc("/api/resource", m.listResources)
	r.HandleFunc("/api/profile", m.collectProfile)
	r.PathPrefix("/").Handler(http.FileServer(web.GetAssets()))

	return r
}

// StartServer starts the monitor as a web server and returns the port it
// listens on.
func (m *Monitor) StartServer() (int, error) {
	actualPort := ":0"
	if m.portNumber > 1000 {
		actualPort = ":" + strconv.Itoa(m.portNumber)
	}

	listener, err := net.Listen("tcp", actualPort)
	if err != nil {
		return 0, err
	}

	port := listener.Addr().(*net.TCPAddr).Port
	server := &http.Server{
		Handler:           m.Router(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	m.serverLock.Lock()
	m.server = server
	m.listener = listener
	m.serverLock.Unlock()

	fmt.Fprintf(
		os.Stderr,
		"Monitoring simulation with http://localhost:%d\n",
		port)

	go func() {
		err := server.Serve(listener)
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			m.logger.Error("monitoring server stopped", "err", err)
		}
	}()

	return port, nil
}

// URL returns the address of the running server, or an empty string.
func (m *Monitor) URL() string {
	m.serverLock.Lock()
	defer m.serverLock.Unlock()

	if m.listener == nil {
		return ""
	}

	return fmt.Sprintf("http://localhost:%d",
		m.listener.Addr().(*net.TCPAddr).Port)
}

// OpenInBrowser opens the monitoring page in the default browser.
func (m *Monitor) OpenInBrowser() error {
	url := m.URL()
	if url == "" {
		return errors.New("monitoring server is not running")
	}

	return browser.OpenURL(url)
}

// StopServer shuts the server down.
func (m *Monitor) StopServer(ctx context.Context) error {
	m.serverLock.Lock()
	server := m.server
	m.server = nil
	m.listener = nil
	m.serverLock.Unlock()

	if server == nil {
		return nil
	}

	return server.Shutdown(ctx)
}

func (m *Monitor) run(w http.ResponseWriter, _ *http.Request) {
	if m.ws.Updater().IsRunning() {
		w.WriteHeader(http.StatusConflict)
		return
	}

	go func() {
		err := m.ws.Run()
		if err != nil {
			m.logger.Warn("run requested by monitor failed", "err", err)
		}
	}()

	w.WriteHeader(http.StatusAccepted)
}

func (m *Monitor) stop(w http.ResponseWriter, _ *http.Request) {
	m.ws.Stop()
	m.writeJSON(w, m.nowRsp())
}

func (m *Monitor) iterate(w http.ResponseWriter, r *http.Request) {
	n, err := strconv.Atoi(mux.Vars(r)["n"])
	if err != nil || n < 0 {
		w.WriteHeader(http.StatusBadRequest)
		fmt.Fprintf(w, "Error: invalid iteration count %q", mux.Vars(r)["n"])

		return
	}

	err = m.ws.Iterate(n)
	if errors.Is(err, workspace.ErrRunning) {
		w.WriteHeader(http.StatusConflict)
		return
	}

	m.writeJSON(w, m.nowRsp())
}

type nowRsp struct {
	Iteration uint64  `json:"iteration"`
	Time      float64 `json:"time"`
	State     string  `json:"state"`
}

func (m *Monitor) nowRsp() nowRsp {
	return nowRsp{
		Iteration: m.ws.Iteration(),
		Time:      m.ws.Time(),
		State:     m.ws.Updater().State().String(),
	}
}

func (m *Monitor) now(w http.ResponseWriter, _ *http.Request) {
	m.writeJSON(w, m.nowRsp())
}

func (m *Monitor) listComponents(w http.ResponseWriter, _ *http.Request) {
	comps := m.ws.Components()

	names := make([]string, 0, len(comps))
	for _, c := range comps {
		names = append(names, c.Name())
	}

	m.writeJSON(w, names)
}

func (m *Monitor) listComponentDetails(w http.ResponseWriter, r *http.Request) {
	name := mux.Vars(r)["name"]

	component := m.findComponentOr404(w, name)
	if component == nil {
		return
	}

	m.serialize(w, component, nil)
}

type fieldReq struct {
	CompName  string `json:"comp_name,omitempty"`
	FieldName string `json:"field_name,omitempty"`
}

func (m *Monitor) listFieldValue(w http.ResponseWriter, r *http.Request) {
	req := fieldReq{}

	err := json.Unmarshal([]byte(mux.Vars(r)["json"]), &req)
	if err != nil {
		w.WriteHeader(http.StatusBadRequest)
		fmt.Fprintf(w, "Error: %s", err)

		return
	}

	component := m.findComponentOr404(w, req.CompName)
	if component == nil {
		return
	}

	m.serialize(w, component, strings.Split(req.FieldName, "."))
}

// serialize writes the component as JSON while holding its locks, so that a
// running update cannot change it halfway.
func (m *Monitor) serialize(
	w http.ResponseWriter,
	component workspace.Component,
	entryPoint []string,
) {
	buf := bytes.NewBuffer(nil)

	err := m.ws.SyncOnComponents(
		[]workspace.Component{component},
		func() error {
			serializer := goseth.NewSerializer()
			serializer.SetRoot(component)
			serializer.SetMaxDepth(1)

			if entryPoint != nil {
				if err := serializer.SetEntryPoint(entryPoint); err != nil {
					return err
				}
			}

			return serializer.Serialize(buf)
		})
	if err != nil {
		w.WriteHeader(http.StatusBadRequest)
		fmt.Fprintf(w, "Error: %s", err)

		return
	}

	m.write(w, buf.Bytes())
}

type couplingRsp struct {
	Source   string `json:"source"`
	Target   string `json:"target"`
	Buffered bool   `json:"buffered"`
}

func (m *Monitor) listCouplings(w http.ResponseWriter, _ *http.Request) {
	couplings := m.ws.CouplingManager().Couplings()

	rsp := make([]couplingRsp, 0, len(couplings))
	for _, c := range couplings {
		_, buffered := c.Buffer()
		rsp = append(rsp, couplingRsp{
			Source:   c.Producer().ID().String(),
			Target:   c.Consumer().ID().String(),
			Buffered: buffered,
		})
	}

	m.writeJSON(w, rsp)
}

func (m *Monitor) listErrors(w http.ResponseWriter, r *http.Request) {
	sortMethod, limit, offset, err := m.errorsParseParams(r)
	if err != nil {
		w.WriteHeader(http.StatusBadRequest)
		fmt.Fprintf(w, "Error: %s", err)

		return
	}

	m.writeJSON(w, m.sortAndSelectErrors(sortMethod, limit, offset))
}

func (*Monitor) errorsParseParams(
	r *http.Request,
) (sort string, limit, offset int, err error) {
	sortMethod := r.URL.Query().Get("sort")
	if sortMethod == "" {
		sortMethod = "count"
	}

	if sortMethod != "count" && sortMethod != "recent" {
		return "", 0, 0, fmt.Errorf(
			"invalid sort method: %s. Allowed values are `count` and `recent`",
			sortMethod)
	}

	limit, err = intParam(r, "limit")
	if err != nil {
		return sortMethod, 0, 0, err
	}

	offset, err = intParam(r, "offset")
	if err != nil {
		return sortMethod, limit, 0, err
	}

	return sortMethod, limit, offset, nil
}

func intParam(r *http.Request, name string) (int, error) {
	str := r.URL.Query().Get(name)
	if str == "" {
		return 0, nil
	}

	n, err := strconv.Atoi(str)
	if err != nil {
		return 0, err
	}

	if n < 0 {
		return 0, fmt.Errorf("%s must not be negative", name)
	}

	return n, nil
}

func (m *Monitor) sortAndSelectErrors(
	sortMethod string,
	limit, offset int,
) []errorStat {
	m.errorsLock.Lock()
	stats := make([]errorStat, 0, len(m.errorStats))
	for _, s := range m.errorStats {
		stats = append(stats, *s)
	}
	m.errorsLock.Unlock()

	switch sortMethod {
	case "count":
		sort.Slice(stats, func(i, j int) bool {
			if stats[i].Count != stats[j].Count {
				return stats[i].Count > stats[j].Count
			}

			return stats[i].Item < stats[j].Item
		})
	case "recent":
		sort.Slice(stats, func(i, j int) bool {
			if stats[i].LastIteration != stats[j].LastIteration {
				return stats[i].LastIteration > stats[j].LastIteration
			}

			return stats[i].Item < stats[j].Item
		})
	default:
		panic("invalid sort method " + sortMethod)
	}

	if offset > len(stats) {
		offset = len(stats)
	}

	stats = stats[offset:]

	if limit > 0 && limit < len(stats) {
		stats = stats[:limit]
	}

	return stats
}

func (m *Monitor) findComponentOr404(
	w http.ResponseWriter,
	name string,
) workspace.Component {
	component, ok := m.ws.ComponentByName(name)
	if !ok {
		w.WriteHeader(http.StatusNotFound)
		m.write(w, []byte("Component not found"))

		return nil
	}

	return component
}

func (m *Monitor) listProgressBars(w http.ResponseWriter, _ *http.Request) {
	m.progressBarsLock.Lock()
	defer m.progressBarsLock.Unlock()

	bars := make([]progressBarRsp, 0, len(m.progressBars))
	for _, b := range m.progressBars {
		bars = append(bars, b.snapshot())
	}

	m.writeJSON(w, bars)
}

type resourceRsp struct {
	CPUPercent float64 `json:"cpu_percent"`
	MemorySize uint64  `json:"memory_size"`
}

func (m *Monitor) listResources(w http.ResponseWriter, _ *http.Request) {
	rsp, err := currentResources()
	if err != nil {
		w.WriteHeader(http.StatusInternalServerError)
		fmt.Fprintf(w, "Error: %s", err)

		return
	}

	m.writeJSON(w, rsp)
}

func currentResources() (resourceRsp, error) {
	proc, err := process.NewProcess(int32(os.Getpid()))
	if err != nil {
		return resourceRsp{}, err
	}

	cpuPercent, err := proc.CPUPercent()
	if err != nil {
		return resourceRsp{}, err
	}

	memory, err := proc.MemoryInfo()
	if err != nil {
		return resourceRsp{}, err
	}

	return resourceRsp{CPUPercent: cpuPercent, MemorySize: memory.RSS}, nil
}

func (m *Monitor) collectProfile(w http.ResponseWriter, _ *http.Request) {
	buf := bytes.NewBuffer(nil)

	err := pprof.StartCPUProfile(buf)
	if err != nil {
		w.WriteHeader(http.StatusConflict)
		fmt.Fprintf(w, "Error: %s", err)

		return
	}

	time.Sleep(time.Second)

	pprof.StopCPUProfile()

	prof, err := profile.ParseData(buf.Bytes())
	if err != nil {
		w.WriteHeader(http.StatusInternalServerError)
		fmt.Fprintf(w, "Error: %s", err)

		return
	}

	m.writeJSON(w, prof)
}

func (m *Monitor) writeJSON(w http.ResponseWriter, v any) {
	data, err := json.Marshal(v)
	if err != nil {
		w.WriteHeader(http.StatusInternalServerError)
		m.logger.Error("encoding monitor response", "err", err)

		return
	}

	w.Header().Set("Content-Type", "application/json")
	m.write(w, data)
}

func (m *Monitor) write(w http.ResponseWriter, data []byte) {
	if _, err := w.Write(data); err != nil {
		m.logger.Warn("writing monitor response", "err", err)
	}
}
