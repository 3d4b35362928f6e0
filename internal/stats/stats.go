// Package stats observes the running service: a one-line console
// throughput reporter, JSON snapshots for the debug API, and prometheus
// collectors. Everything here is read-only with respect to the data path.
package stats

import (
	"time"

	"github.com/aviarylabs/perch/internal/ingest"
	"github.com/aviarylabs/perch/internal/monitor"
	"github.com/aviarylabs/perch/internal/pipeline"
	"github.com/aviarylabs/perch/internal/storage"
)

// Sources bundles the live objects the observers read. Writer and Pool
// may be nil in tests.
type Sources struct {
	Registry *ingest.Registry
	Pipeline *pipeline.Pipeline
	Writer   *storage.Writer
	Pool     *storage.Pool
}

// Snapshot is the point-in-time stats payload served by /api/stats.
type Snapshot struct {
	Timestamp        int64                 `json:"ts"`
	ActiveSessions   int                   `json:"activeSessions"`
	Sessions         []ingest.SessionStats `json:"sessions"`
	FramesTotal      int64                 `json:"framesTotal"`
	MalformedTotal   int64                 `json:"malformedTotal"`
	BytesTotal       int64                 `json:"bytesTotal"`
	Monitor          monitor.Counts        `json:"monitor"`
	PlaybackDepth    int                   `json:"playbackDepth"`
	PlaybackDrops    int64                 `json:"playbackDrops"`
	VizDepth         int                   `json:"vizDepth"`
	VizDrops         int64                 `json:"vizDrops"`
	ArtifactsWritten int64                 `json:"artifactsWritten"`
	WriteFailures    int64                 `json:"writeFailures"`
}

// Collect builds a Snapshot from the live sources.
func (s Sources) Collect() Snapshot {
	snap := Snapshot{
		Timestamp:      time.Now().UnixMilli(),
		ActiveSessions: s.Registry.ActiveCount(),
		Sessions:       s.Registry.Stats(),
		FramesTotal:    s.Pipeline.FrameCount(),
		MalformedTotal: s.Pipeline.MalformedCount(),
		BytesTotal:     s.Pipeline.BytesTotal(),
		Monitor:        s.Pipeline.Monitor().Counts(),
		PlaybackDepth:  s.Pipeline.Playback().Depth(),
		PlaybackDrops:  s.Pipeline.Playback().Drops(),
		VizDepth:       s.Pipeline.Viz().Depth(),
		VizDrops:       s.Pipeline.Viz().Drops(),
	}
	if s.Writer != nil {
		snap.ArtifactsWritten = s.Writer.ArtifactCount()
		snap.WriteFailures = s.Writer.FailureCount()
	}
	return snap
}
