package stats

import (
	"github.com/prometheus/client_golang/prometheus"
)

// RegisterMetrics registers prometheus collectors that read the live
// counters directly, so scrapes never touch the data path beyond atomic
// loads.
func RegisterMetrics(reg prometheus.Registerer, src Sources) {
	counterFunc := func(name, help string, fn func() float64) prometheus.Collector {
		return prometheus.NewCounterFunc(prometheus.CounterOpts{Name: name, Help: help}, fn)
	}
	gaugeFunc := func(name, help string, labels prometheus.Labels, fn func() float64) prometheus.Collector {
		return prometheus.NewGaugeFunc(prometheus.GaugeOpts{Name: name, Help: help, ConstLabels: labels}, fn)
	}

	p := src.Pipeline
	collectors := []prometheus.Collector{
		counterFunc("perch_frames_total", "Inbound messages received, valid or not.",
			func() float64 { return float64(p.FrameCount()) }),
		counterFunc("perch_bytes_total", "Inbound bytes received.",
			func() float64 { return float64(p.BytesTotal()) }),
		counterFunc("perch_malformed_frames_total", "Messages dropped for a short or invalid header.",
			func() float64 { return float64(p.MalformedCount()) }),
		counterFunc("perch_sequence_anomalies_total", "Frames arriving out of expected sequence order.",
			func() float64 { return float64(p.Monitor().Counts().SequenceAnomalies) }),
		counterFunc("perch_timestamp_anomalies_total", "Frames with non-monotonic timestamps.",
			func() float64 { return float64(p.Monitor().Counts().TimestampAnomalies) }),
		counterFunc("perch_jitter_events_total", "Inter-frame deltas above the jitter threshold.",
			func() float64 { return float64(p.Monitor().Counts().JitterEvents) }),
		gaugeFunc("perch_active_sessions", "Currently connected producers.", nil,
			func() float64 { return float64(src.Registry.ActiveCount()) }),
	}

	for _, q := range []interface {
		Name() string
		Depth() int
		Drops() int64
	}{p.Playback(), p.Viz()} {
		q := q
		labels := prometheus.Labels{"sink": q.Name()}
		collectors = append(collectors,
			prometheus.NewGaugeFunc(prometheus.GaugeOpts{
				Name: "perch_queue_depth", Help: "Chunks buffered per sink queue.",
				ConstLabels: labels,
			}, func() float64 { return float64(q.Depth()) }),
			prometheus.NewCounterFunc(prometheus.CounterOpts{
				Name: "perch_queue_drops_total", Help: "Chunks discarded on full sink queue.",
				ConstLabels: labels,
			}, func() float64 { return float64(q.Drops()) }),
		)
	}

	if src.Writer != nil {
		collectors = append(collectors,
			counterFunc("perch_artifacts_written_total", "WAV artifacts written successfully.",
				func() float64 { return float64(src.Writer.ArtifactCount()) }),
			counterFunc("perch_artifact_failures_total", "WAV artifact writes that failed.",
				func() float64 { return float64(src.Writer.FailureCount()) }),
		)
	}
	if src.Pool != nil {
		collectors = append(collectors,
			counterFunc("perch_write_pool_rejected_total", "Write jobs rejected on a full backlog.",
				func() float64 { return float64(src.Pool.Rejected()) }),
		)
	}

	reg.MustRegister(collectors...)
}
