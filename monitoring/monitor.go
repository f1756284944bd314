// Package monitoring serves a running simulation over HTTP so that it can be
// paused, continued, and inspected while it runs.
package monitoring

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"runtime/pprof"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/google/pprof/profile"
	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/shirou/gopsutil/process"
	"github.com/syifan/goseth"
	"go.uber.org/zap"

	"github.com/sarchlab/gossiplearn/gossip"
	"github.com/sarchlab/gossiplearn/hooking"
	"github.com/sarchlab/gossiplearn/monitoring/web"
)

var errNotFound = errors.New("not found")

// Simulation is what the monitor needs from a simulator.
type Simulation interface {
	hooking.Hookable

	ID() string
	Pause()
	Continue()
	IsPaused() bool
	Tick() int
	EndTick() int
	Inspect(fn func(nodes []gossip.Node))
}

// Monitor can turn a simulation into a server and allows external monitoring
// controlling of the simulation.
type Monitor struct {
	portNumber int
	logger     *zap.Logger
	registry   *prometheus.Registry
	telemetry  *Telemetry
	requests   *prometheus.CounterVec
	latency    *prometheus.HistogramVec

	lock sync.Mutex
	sims []Simulation
	bars map[string]*ProgressBar

	server *http.Server
}

// NewMonitor creates a new Monitor with its own metric registry.
func NewMonitor() *Monitor {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	m := &Monitor{
		logger:    zap.NewNop(),
		registry:  reg,
		telemetry: NewTelemetry(reg),
		bars:      make(map[string]*ProgressBar),
		requests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "gossip_monitor",
			Name:      "requests_total",
			Help:      "Monitor API requests.",
		}, []string{"route", "status"}),
		latency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "gossip_monitor",
			Name:      "request_duration_seconds",
			Help:      "Latency of monitor API requests.",
			Buckets:   prometheus.ExponentialBuckets(0.001, 2, 13),
		}, []string{"route"}),
	}

	reg.MustRegister(m.requests, m.latency)

	return m
}

// WithPortNumber sets the port number of the monitor.
func (m *Monitor) WithPortNumber(portNumber int) *Monitor {
	if portNumber != 0 && portNumber < 1000 {
		m.logger.Warn("port not allowed for the monitor, using a random port",
			zap.Int("port", portNumber))

		portNumber = 0
	}

	m.portNumber = portNumber

	return m
}

// WithLogger sets the logger.
func (m *Monitor) WithLogger(logger *zap.Logger) *Monitor {
	m.logger = logger
	return m
}

// Registry returns the registry that backs /metrics.
func (m *Monitor) Registry() *prometheus.Registry {
	return m.registry
}

// RegisterSimulation makes a simulation visible to the monitor. It installs
// the telemetry and progress hooks, so it must be called before the
// simulation starts.
func (m *Monitor) RegisterSimulation(s Simulation) {
	bar := NewProgressBar(s.ID(), uint64(s.EndTick()))

	s.AcceptHook(m.telemetry)
	s.AcceptHook(bar)

	m.lock.Lock()
	defer m.lock.Unlock()

	m.sims = append(m.sims, s)
	m.bars[s.ID()] = bar
}

// Handler returns the router that serves the monitor API.
func (m *Monitor) Handler() http.Handler {
	r := mux.NewRouter()
	r.Use(m.instrument)

	r.HandleFunc("/api/pause", m.pause)
	r.HandleFunc("/api/continue", m.continueSimulations)
	r.HandleFunc("/api/now", m.now)
	r.HandleFunc("/api/progress", m.listProgressBars)
	r.HandleFunc("/api/list_nodes/{sim}", m.listNodes)
	r.HandleFunc("/api/node/{sim}/{id:[0-9]+}", m.nodeDetails)
	r.HandleFunc("/api/field/{json}", m.fieldValue)
	r.HandleFunc("/api/resource", m.listResources)
	r.HandleFunc("/api/profile", m.collectProfile)
	r.Handle("/metrics", promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{}))
	r.PathPrefix("/").Handler(http.FileServer(web.GetAssets()))

	return r
}

// StartServer starts serving in the background and returns the address the
// monitor is reachable at.
func (m *Monitor) StartServer() (string, error) {
	listener, err := net.Listen("tcp", ":"+strconv.Itoa(m.portNumber))
	if err != nil {
		return "", fmt.Errorf("monitoring: listen: %w", err)
	}

	url := fmt.Sprintf("http://localhost:%d",
		listener.Addr().(*net.TCPAddr).Port)

	m.server = &http.Server{
		Handler:           m.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		err := m.server.Serve(listener)
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			m.logger.Error("monitor server stopped", zap.Error(err))
		}
	}()

	m.logger.Info("monitoring simulation", zap.String("url", url))

	return url, nil
}

// Shutdown stops the server started by StartServer.
func (m *Monitor) Shutdown(ctx context.Context) error {
	if m.server == nil {
		return nil
	}

	return m.server.Shutdown(ctx)
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}

func (m *Monitor) instrument(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		route := "static"
		if cur := mux.CurrentRoute(r); cur != nil {
			if tpl, err := cur.GetPathTemplate(); err == nil &&
				strings.HasPrefix(tpl, "/api/") {
				route = tpl
			}
		}

		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		start := time.Now()

		next.ServeHTTP(rec, r)

		m.latency.WithLabelValues(route).Observe(time.Since(start).Seconds())
		m.requests.WithLabelValues(route, strconv.Itoa(rec.status)).Inc()
	})
}

// selected returns the simulations named by the "sim" query parameter, or
// all of them when it is absent.
func (m *Monitor) selected(r *http.Request) ([]Simulation, error) {
	m.lock.Lock()
	defer m.lock.Unlock()

	id := r.URL.Query().Get("sim")
	if id == "" {
		return append([]Simulation(nil), m.sims...), nil
	}

	for _, s := range m.sims {
		if s.ID() == id {
			return []Simulation{s}, nil
		}
	}

	return nil, fmt.Errorf("simulation %q: %w", id, errNotFound)
}

func (m *Monitor) find(id string) (Simulation, error) {
	m.lock.Lock()
	defer m.lock.Unlock()

	for _, s := range m.sims {
		if s.ID() == id {
			return s, nil
		}
	}

	return nil, fmt.Errorf("simulation %q: %w", id, errNotFound)
}

func (m *Monitor) pause(w http.ResponseWriter, r *http.Request) {
	sims, err := m.selected(r)
	if err != nil {
		m.fail(w, err)
		return
	}

	for _, s := range sims {
		if !s.IsPaused() {
			s.Pause()
		}
	}

	w.WriteHeader(http.StatusOK)
}

func (m *Monitor) continueSimulations(w http.ResponseWriter, r *http.Request) {
	sims, err := m.selected(r)
	if err != nil {
		m.fail(w, err)
		return
	}

	for _, s := range sims {
		if s.IsPaused() {
			s.Continue()
		}
	}

	w.WriteHeader(http.StatusOK)
}

type nowRsp struct {
	Simulation string `json:"simulation"`
	Now        int    `json:"now"`
	End        int    `json:"end"`
	Paused     bool   `json:"paused"`
}

func (m *Monitor) now(w http.ResponseWriter, r *http.Request) {
	sims, err := m.selected(r)
	if err != nil {
		m.fail(w, err)
		return
	}

	rsp := make([]nowRsp, 0, len(sims))
	for _, s := range sims {
		rsp = append(rsp, nowRsp{
			Simulation: s.ID(),
			Now:        s.Tick(),
			End:        s.EndTick(),
			Paused:     s.IsPaused(),
		})
	}

	m.writeJSON(w, rsp)
}

func (m *Monitor) listProgressBars(w http.ResponseWriter, _ *http.Request) {
	m.lock.Lock()
	bars := make([]ProgressBar, 0, len(m.sims))
	for _, s := range m.sims {
		bar := m.bars[s.ID()]
		bar.SetTotal(uint64(s.EndTick()))
		bars = append(bars, bar.Snapshot())
	}
	m.lock.Unlock()

	m.writeJSON(w, bars)
}

type nodeRsp struct {
	ID      int  `json:"id"`
	Updates int  `json:"updates"`
	HasTest bool `json:"has_test"`
}

func (m *Monitor) listNodes(w http.ResponseWriter, r *http.Request) {
	s, err := m.find(mux.Vars(r)["sim"])
	if err != nil {
		m.fail(w, err)
		return
	}

	var rsp []nodeRsp
	s.Inspect(func(nodes []gossip.Node) {
		rsp = make([]nodeRsp, 0, len(nodes))
		for _, n := range nodes {
			rsp = append(rsp, nodeRsp{
				ID:      n.ID(),
				Updates: n.Updates(),
				HasTest: n.HasTest(),
			})
		}
	})

	m.writeJSON(w, rsp)
}

func (m *Monitor) nodeDetails(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)

	s, err := m.find(vars["sim"])
	if err != nil {
		m.fail(w, err)
		return
	}

	id, _ := strconv.Atoi(vars["id"])

	m.serializeNode(w, s, id, nil)
}

type fieldReq struct {
	Simulation string `json:"simulation"`
	Node       int    `json:"node"`
	FieldName  string `json:"field_name,omitempty"`
}

func (m *Monitor) fieldValue(w http.ResponseWriter, r *http.Request) {
	req := fieldReq{}

	err := json.Unmarshal([]byte(mux.Vars(r)["json"]), &req)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	s, err := m.find(req.Simulation)
	if err != nil {
		m.fail(w, err)
		return
	}

	m.serializeNode(w, s, req.Node, strings.Split(req.FieldName, "."))
}

func (m *Monitor) serializeNode(
	w http.ResponseWriter,
	s Simulation,
	id int,
	entryPoint []string,
) {
	var (
		buf bytes.Buffer
		err error
	)

	s.Inspect(func(nodes []gossip.Node) {
		if id < 0 || id >= len(nodes) {
			err = fmt.Errorf("node %d: %w", id, errNotFound)
			return
		}

		serializer := goseth.NewSerializer()
		serializer.SetRoot(nodes[id])
		serializer.SetMaxDepth(1)

		if len(entryPoint) > 0 && entryPoint[0] != "" {
			if err = serializer.SetEntryPoint(entryPoint); err != nil {
				return
			}
		}

		err = serializer.Serialize(&buf)
	})

	if err != nil {
		m.fail(w, err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	_, _ = w.Write(buf.Bytes())
}

type resourceRsp struct {
	CPUPercent float64 `json:"cpu_percent"`
	MemorySize uint64  `json:"memory_size"`
}

func (m *Monitor) listResources(w http.ResponseWriter, _ *http.Request) {
	proc, err := process.NewProcess(int32(os.Getpid()))
	if err != nil {
		m.fail(w, err)
		return
	}

	cpuPercent, err := proc.CPUPercent()
	if err != nil {
		m.fail(w, err)
		return
	}

	memory, err := proc.MemoryInfo()
	if err != nil {
		m.fail(w, err)
		return
	}

	m.writeJSON(w, resourceRsp{
		CPUPercent: cpuPercent,
		MemorySize: memory.RSS,
	})
}

func (m *Monitor) collectProfile(w http.ResponseWriter, r *http.Request) {
	duration := time.Second
	if s := r.URL.Query().Get("seconds"); s != "" {
		secs, err := strconv.ParseFloat(s, 64)
		if err != nil || secs <= 0 {
			http.Error(w, "invalid seconds", http.StatusBadRequest)
			return
		}

		duration = time.Duration(secs * float64(time.Second))
	}

	buf := bytes.NewBuffer(nil)

	if err := pprof.StartCPUProfile(buf); err != nil {
		m.fail(w, err)
		return
	}

	select {
	case <-time.After(duration):
	case <-r.Context().Done():
	}

	pprof.StopCPUProfile()

	prof, err := profile.ParseData(buf.Bytes())
	if err != nil {
		m.fail(w, err)
		return
	}

	m.writeJSON(w, prof)
}

func (m *Monitor) writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")

	if err := json.NewEncoder(w).Encode(v); err != nil {
		m.logger.Error("writing response", zap.Error(err))
	}
}

func (m *Monitor) fail(w http.ResponseWriter, err error) {
	if errors.Is(err, errNotFound) {
		http.Error(w, err.Error(), http.StatusNotFound)
		return
	}

	m.logger.Error("monitor request failed", zap.Error(err))
	http.Error(w, err.Error(), http.StatusInternalServerError)
}
