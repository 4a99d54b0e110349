// Package monitoring serves the state of a running cache over HTTP.
package monitoring

import (
	"bytes"
	"encoding/json"
	"fmt"
	"log"
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
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/xid"
	"github.com/shirou/gopsutil/process"
	"github.com/syifan/goseth"

	"github.com/sarchlab/l1dsim/mem/cache"
)

// A CacheHandle gives the monitor access to a cache that is driven by another
// goroutine. Whoever drives the cache must hold the handle's lock around every
// operation.
type CacheHandle struct {
	sync.Mutex

	Name  string
	Cache cache.Cache
}

// Monitor turns a cache simulation into a server that can be inspected while
// it runs.
type Monitor struct {
	portNumber  int
	openBrowser bool
	url         string

	handle   *CacheHandle
	gatherer prometheus.Gatherer

	statsLock    sync.Mutex
	statsSources map[string]func() any

	progressBarsLock sync.Mutex
	progressBars     []*ProgressBar
}

// NewMonitor creates a new Monitor
func NewMonitor() *Monitor {
	return &Monitor{
		statsSources: make(map[string]func() any),
	}
}

// WithPortNumber sets the port number of the monitor.
func (m *Monitor) WithPortNumber(portNumber int) *Monitor {
	if portNumber < 1000 {
		fmt.Fprintf(os.Stderr,
			"Port number %d is assigned to the monitoring server, "+
				"which is not allowed. Using a random port instead.\n", portNumber)
		portNumber = 0
	}

	m.portNumber = portNumber

	return m
}

// WithOpenBrowser tells the monitor to open its page in a browser once the
// server is up.
func (m *Monitor) WithOpenBrowser(open bool) *Monitor {
	m.openBrowser = open
	return m
}

// RegisterCache sets the cache to be monitored.
func (m *Monitor) RegisterCache(h *CacheHandle) {
	m.handle = h
}

// RegisterGatherer sets where /metrics collects Prometheus metrics from.
func (m *Monitor) RegisterGatherer(g prometheus.Gatherer) {
	m.gatherer = g
}

// RegisterStats adds a named group of counters to /api/cache/stats. The
// source is called without the cache handle locked and must be safe to call
// from the server goroutine.
func (m *Monitor) RegisterStats(name string, source func() any) {
	m.statsLock.Lock()
	defer m.statsLock.Unlock()

	m.statsSources[name] = source
}

// CreateProgressBar creates a new progress bar.
func (m *Monitor) CreateProgressBar(name string, total uint64) *ProgressBar {
	bar := &ProgressBar{
		ID:        xid.New().String(),
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

// Router returns the handler serving every monitoring endpoint.
func (m *Monitor) Router() *mux.Router {
	r := mux.NewRouter()

	r.HandleFunc("/api/cache/config", m.cacheConfig)
	r.HandleFunc("/api/cache/stats", m.cacheStats)
	r.HandleFunc("/api/cache/dump", m.cacheDump)
	r.HandleFunc("/api/cache/state", m.cacheState)
	r.HandleFunc("/api/cache/set/{index}", m.cacheSet)
	r.HandleFunc("/api/progress", m.listProgressBars)
	r.HandleFunc("/api/resource", m.listResources)
	r.HandleFunc("/api/profile", m.collectProfile)

	if m.gatherer != nil {
		r.Handle("/metrics", promhttp.HandlerFor(m.gatherer, promhttp.HandlerOpts{}))
	}

	return r
}

// StartServer starts the monitor as a web server with a custom port if wanted.
func (m *Monitor) StartServer() {
	actualPort := ":0"
	if m.portNumber > 1000 {
		actualPort = ":" + strconv.Itoa(m.portNumber)
	}

	listener, err := net.Listen("tcp", actualPort)
	dieOnErr(err)

	m.url = fmt.Sprintf("http://localhost:%d",
		listener.Addr().(*net.TCPAddr).Port)

	fmt.Fprintf(os.Stderr, "Monitoring cache with %s\n", m.url)

	router := m.Router()

	go func() {
		err := http.Serve(listener, router)
		dieOnErr(err)
	}()

	if m.openBrowser {
		err = browser.OpenURL(m.url + "/api/cache/stats")
		if err != nil {
			fmt.Fprintf(os.Stderr, "Failed to open browser: %v\n", err)
		}
	}
}

// URL returns the address of the server, or an empty string before
// StartServer is called.
func (m *Monitor) URL() string {
	return m.url
}

func (m *Monitor) cacheOr404(w http.ResponseWriter) *CacheHandle {
	if m.handle == nil {
		w.WriteHeader(http.StatusNotFound)
		_, err := w.Write([]byte("No cache registered"))
		dieOnErr(err)
	}

	return m.handle
}

type configRsp struct {
	Name     string `json:"name"`
	Kind     string `json:"kind"`
	NumSets  uint64 `json:"num_sets"`
	NumWays  int    `json:"num_ways,omitempty"`
	LineSize uint64 `json:"line_size"`
}

func (m *Monitor) cacheConfig(w http.ResponseWriter, _ *http.Request) {
	h := m.cacheOr404(w)
	if h == nil {
		return
	}

	h.Lock()
	mapper := h.Cache.Mapper()
	rsp := configRsp{
		Name:     h.Name,
		Kind:     "unbounded",
		NumSets:  mapper.NumSets,
		LineSize: mapper.LineSize,
	}

	if c, ok := h.Cache.(*cache.LRUCache); ok {
		rsp.Kind = "lru"
		rsp.NumWays = c.NumWays()
	}
	h.Unlock()

	writeJSON(w, rsp)
}

type occupancyRsp struct {
	Lines        int `json:"lines"`
	Capacity     int `json:"capacity,omitempty"`
	MaxSetSize   int `json:"max_set_size"`
	NonEmptySets int `json:"non_empty_sets"`
	TotalSets    int `json:"total_sets"`
}

func occupancy(c cache.Cache) occupancyRsp {
	sets := c.Sets()
	rsp := occupancyRsp{TotalSets: len(sets)}

	for i := range sets {
		n := sets[i].Len()

		rsp.Lines += n
		if n > rsp.MaxSetSize {
			rsp.MaxSetSize = n
		}

		if n > 0 {
			rsp.NonEmptySets++
		}
	}

	if lru, ok := c.(*cache.LRUCache); ok {
		rsp.Capacity = lru.Capacity()
	}

	return rsp
}

func (m *Monitor) cacheStats(w http.ResponseWriter, _ *http.Request) {
	h := m.cacheOr404(w)
	if h == nil {
		return
	}

	rsp := make(map[string]any)

	h.Lock()
	rsp["occupancy"] = occupancy(h.Cache)
	h.Unlock()

	m.statsLock.Lock()
	names := make([]string, 0, len(m.statsSources))
	for name := range m.statsSources {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		rsp[name] = m.statsSources[name]()
	}
	m.statsLock.Unlock()

	writeJSON(w, rsp)
}

func queryInt(r *http.Request, key string) (int, error) {
	s := r.URL.Query().Get(key)
	if s == "" {
		return 0, nil
	}

	v, err := strconv.Atoi(s)
	if err != nil || v < 0 {
		return 0, fmt.Errorf("invalid %s: %q", key, s)
	}

	return v, nil
}

func (m *Monitor) cacheDump(w http.ResponseWriter, r *http.Request) {
	h := m.cacheOr404(w)
	if h == nil {
		return
	}

	opts := cache.PrettyPrintOptions{}

	var err error

	for key, dst := range map[string]*int{
		"max_sets":      &opts.MaxSets,
		"preview_bytes": &opts.PreviewBytes,
	} {
		*dst, err = queryInt(r, key)
		if err != nil {
			w.WriteHeader(http.StatusBadRequest)
			fmt.Fprintf(w, "Error: %s", err)

			return
		}
	}

	buf := new(bytes.Buffer)

	h.Lock()
	err = h.Cache.PrettyPrint(buf, opts)
	h.Unlock()
	dieOnErr(err)

	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	_, err = w.Write(buf.Bytes())
	dieOnErr(err)
}

func (m *Monitor) cacheState(w http.ResponseWriter, r *http.Request) {
	h := m.cacheOr404(w)
	if h == nil {
		return
	}

	depth, err := queryInt(r, "depth")
	if err != nil {
		w.WriteHeader(http.StatusBadRequest)
		fmt.Fprintf(w, "Error: %s", err)

		return
	}

	if depth == 0 {
		depth = 1
	}

	h.Lock()
	defer h.Unlock()

	serializer := goseth.NewSerializer()
	serializer.SetRoot(h.Cache)
	serializer.SetMaxDepth(depth)

	if field := r.URL.Query().Get("field"); field != "" {
		err = serializer.SetEntryPoint(strings.Split(field, "."))
		dieOnErr(err)
	}

	err = serializer.Serialize(w)
	dieOnErr(err)
}

type lineRsp struct {
	Way     int    `json:"way"`
	Tag     uint64 `json:"tag"`
	Address uint64 `json:"address"`
	Data    string `json:"data"`
}

func (m *Monitor) cacheSet(w http.ResponseWriter, r *http.Request) {
	h := m.cacheOr404(w)
	if h == nil {
		return
	}

	index, err := strconv.ParseUint(mux.Vars(r)["index"], 10, 64)

	h.Lock()
	mapper := h.Cache.Mapper()
	if err != nil || index >= mapper.NumSets {
		h.Unlock()
		w.WriteHeader(http.StatusNotFound)
		_, err = w.Write([]byte("Set not found"))
		dieOnErr(err)

		return
	}

	set := h.Cache.Sets()[index]
	h.Unlock()

	rsp := make([]lineRsp, 0, set.Len())
	for way, line := range set.Lines {
		rsp = append(rsp, lineRsp{
			Way:     way,
			Tag:     line.Tag,
			Address: mapper.LineBase(line.Tag, index),
			Data:    cache.HexPreview(line.Data, len(line.Data)),
		})
	}

	writeJSON(w, rsp)
}

func (m *Monitor) listProgressBars(w http.ResponseWriter, _ *http.Request) {
	m.progressBarsLock.Lock()
	bars := make([]progressRsp, 0, len(m.progressBars))
	for _, b := range m.progressBars {
		bars = append(bars, b.snapshot())
	}
	m.progressBarsLock.Unlock()

	writeJSON(w, bars)
}

type resourceRsp struct {
	CPUPercent float64 `json:"cpu_percent"`
	MemorySize uint64  `json:"memory_size"`
}

func (m *Monitor) listResources(w http.ResponseWriter, _ *http.Request) {
	pid := os.Getpid()
	process, err := process.NewProcess(int32(pid))
	dieOnErr(err)

	cpuPercent, err := process.CPUPercent()
	dieOnErr(err)

	memorySize, err := process.MemoryInfo()
	dieOnErr(err)

	rsp := resourceRsp{
		CPUPercent: cpuPercent,
		MemorySize: memorySize.RSS,
	}

	writeJSON(w, rsp)
}

func (m *Monitor) collectProfile(w http.ResponseWriter, _ *http.Request) {
	buf := bytes.NewBuffer(nil)

	err := pprof.StartCPUProfile(buf)
	dieOnErr(err)

	time.Sleep(time.Second)

	pprof.StopCPUProfile()

	prof, err := profile.ParseData(buf.Bytes())
	dieOnErr(err)

	writeJSON(w, prof)
}

func writeJSON(w http.ResponseWriter, v any) {
	bytes, err := json.Marshal(v)
	dieOnErr(err)

	w.Header().Set("Content-Type", "application/json")
	_, err = w.Write(bytes)
	dieOnErr(err)
}

func dieOnErr(err error) {
	if err != nil {
		log.Panic(err)
	}
}
