// Package monitoring serves the operational side endpoints shared by
// batch runs and the API server: prometheus metrics, a liveness probe
// and a runtime status snapshot.
package monitoring

import (
	"net/http"
	"runtime"
	"time"

	json "github.com/goccy/go-json"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/23skdu/dashcam-scribe/internal/device"
	"github.com/23skdu/dashcam-scribe/internal/logger"
	"github.com/23skdu/dashcam-scribe/internal/metrics"
)

// Status is the /status payload.
type Status struct {
	Status        string `json:"status"`
	Uptime        string `json:"uptime"`
	GoVersion     string `json:"go_version"`
	NumCPU        int    `json:"num_cpu"`
	Goroutines    int    `json:"goroutines"`
	HeapAllocMB   int64  `json:"heap_alloc_mb"`
	TensorBytes   int64  `json:"tensor_bytes"`
	DecodedTokens int64  `json:"decoded_tokens"`
}

// Monitor owns the side listener. It carries no model state; the
// counters it reports come from the metrics package and the tensor
// allocator.
type Monitor struct {
	start time.Time
	log   *logger.Logger
}

func New() *Monitor {
	return &Monitor{start: time.Now(), log: logger.Log.With("monitoring")}
}

// Handler builds the side mux: /metrics, /healthz and /status.
func (m *Monitor) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	mux.HandleFunc("/healthz", m.handleHealth)
	mux.HandleFunc("/status", m.handleStatus)
	return mux
}

// Serve blocks on the listener, so callers run it on its own
// goroutine next to the main workload.
func (m *Monitor) Serve(addr string) error {
	m.log.Info("monitoring listener started", "addr", addr)
	srv := &http.Server{
		Addr:              addr,
		Handler:           m.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	return srv.ListenAndServe()
}

func (m *Monitor) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, map[string]string{"status": "ok"})
}

func (m *Monitor) handleStatus(w http.ResponseWriter, _ *http.Request) {
	var ms runtime.MemStats
	runtime.ReadMemStats(&ms)
	writeJSON(w, Status{
		Status:        "ok",
		Uptime:        time.Since(m.start).Round(time.Second).String(),
		GoVersion:     runtime.Version(),
		NumCPU:        runtime.NumCPU(),
		Goroutines:    runtime.NumGoroutine(),
		HeapAllocMB:   int64(ms.Alloc / 1024 / 1024),
		TensorBytes:   device.AllocatedBytes(),
		DecodedTokens: metrics.TotalDecodedTokens(),
	})
}

func writeJSON(w http.ResponseWriter, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(v)
}
