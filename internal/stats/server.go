package stats

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// NewAPIMux builds the debug HTTP mux: /api/stats and /api/timing serve
// JSON snapshots, /metrics serves prometheus scrapes. The caller may add
// further routes (e.g. the viz subscriber endpoint) before serving.
func NewAPIMux(src Sources, reg *prometheus.Registry, log *slog.Logger) *http.ServeMux {
	if log == nil {
		log = slog.Default()
	}
	log = log.With("component", "api")

	mux := http.NewServeMux()
	mux.HandleFunc("/api/stats", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, log, src.Collect())
	})
	mux.HandleFunc("/api/timing", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, log, src.Pipeline.Monitor().History())
	})
	mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
	return mux
}

func writeJSON(w http.ResponseWriter, log *slog.Logger, v any) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Warn("encode response", "error", err)
	}
}
