package diag

import (
	"encoding/json"
	"net/http"
	"os"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
	"github.com/shirou/gopsutil/v3/process"

	"github.com/neerajchowdary889/DMXP-MPMC/bus"
)

// ServerConfig configures NewServer. Only Bus is required.
type ServerConfig struct {
	Bus    *bus.Bus
	Logger zerolog.Logger

	// Metrics, if set, backs the /metrics route: its registry is served
	// and its channel depth gauge is refreshed from Bus on every scrape.
	// A nil Metrics falls back to the default registerer's handler.
	Metrics *Metrics

	// CORSOrigins defaults to localhost-only, matching the intent that
	// diagnostics bind to a trusted loopback address, not a public one.
	CORSOrigins []string
}

// NewServer builds the diagnostics HTTP router. Construction is pure —
// no listener is opened here — so it is safe to exercise with
// httptest.NewServer in tests.
func NewServer(cfg ServerConfig) *chi.Mux {
	origins := cfg.CORSOrigins
	if origins == nil {
		origins = []string{"http://localhost:*", "http://127.0.0.1:*"}
	}

	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: origins,
		AllowedMethods: []string{"GET"},
	}))

	r.Get("/channels", handleListChannels(cfg.Bus))
	r.Get("/channels/{id}", handleChannelInfo(cfg.Bus))
	r.Get("/health", handleHealth)
	r.Handle("/metrics", handleMetrics(cfg.Bus, cfg.Metrics))

	return r
}

// handleMetrics refreshes the depth gauge from the live region right
// before handing the request to promhttp, so a scrape always sees the
// current backlog rather than whatever it was at the last Send/Receive.
// A nil Metrics falls back to the default registerer's handler.
func handleMetrics(b *bus.Bus, m *Metrics) http.HandlerFunc {
	if m == nil {
		return promhttp.Handler().ServeHTTP
	}
	next := promhttp.HandlerFor(m.Gatherer(), promhttp.HandlerOpts{})
	return func(w http.ResponseWriter, r *http.Request) {
		m.RefreshDepths(b)
		next.ServeHTTP(w, r)
	}
}

func handleListChannels(b *bus.Bus) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ids := b.ListChannels()
		infos := make([]bus.ChannelInfo, 0, len(ids))
		for _, id := range ids {
			if info, ok := b.ChannelInfo(id); ok {
				infos = append(infos, info)
			}
		}
		writeJSON(w, infos)
	}
}

func handleChannelInfo(b *bus.Bus) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := parseChannelID(chi.URLParam(r, "id"))
		if err != nil {
			http.Error(w, "invalid channel id", http.StatusBadRequest)
			return
		}
		info, ok := b.ChannelInfo(id)
		if !ok {
			http.Error(w, bus.ErrUnknownChannel.Error(), http.StatusNotFound)
			return
		}
		writeJSON(w, info)
	}
}

// healthReport surfaces the attaching process's own resource
// footprint: RSS, open file descriptors, and CPU usage.
type healthReport struct {
	PID       int32   `json:"pid"`
	RSSBytes  uint64  `json:"rss_bytes"`
	OpenFiles int     `json:"open_files"`
	CPUPct    float64 `json:"cpu_percent"`
}

func handleHealth(w http.ResponseWriter, r *http.Request) {
	pid := int32(os.Getpid())
	proc, err := process.NewProcess(pid)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	report := healthReport{PID: pid}
	if mem, err := proc.MemoryInfo(); err == nil && mem != nil {
		report.RSSBytes = mem.RSS
	}
	if files, err := proc.OpenFiles(); err == nil {
		report.OpenFiles = len(files)
	}
	if pct, err := proc.CPUPercent(); err == nil {
		report.CPUPct = pct
	}
	writeJSON(w, report)
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(v)
}

func parseChannelID(s string) (uint32, error) {
	id, err := strconv.ParseUint(s, 10, 32)
	return uint32(id), err
}
