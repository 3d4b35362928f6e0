package storage

import (
	"log/slog"
	"sync"
	"sync/atomic"
)

// Pool runs blocking I/O jobs on a fixed set of workers with a bounded
// submission queue, keeping file writes off the ingest and consumer tasks.
// A full backlog rejects the submission rather than growing without bound.
type Pool struct {
	log      *slog.Logger
	jobs     chan func()
	wg       sync.WaitGroup
	rejected atomic.Int64

	closeOnce sync.Once
}

// NewPool starts workers goroutines servicing a backlog-sized job queue.
// If log is nil, slog.Default() is used.
func NewPool(workers, backlog int, log *slog.Logger) *Pool {
	if log == nil {
		log = slog.Default()
	}
	p := &Pool{
		log:  log.With("component", "write-pool"),
		jobs: make(chan func(), backlog),
	}
	for i := 0; i < workers; i++ {
		p.wg.Add(1)
		go func() {
			defer p.wg.Done()
			for job := range p.jobs {
				job()
			}
		}()
	}
	return p
}

// Submit enqueues a job without blocking. Returns false if the backlog is
// full or the pool is already shut down; the job is discarded.
func (p *Pool) Submit(job func()) bool {
	defer func() {
		// Submissions racing Shutdown hit a closed channel.
		if recover() != nil {
			p.rejected.Add(1)
		}
	}()

	select {
	case p.jobs <- job:
		return true
	default:
		p.rejected.Add(1)
		p.log.Warn("write backlog full, rejecting job")
		return false
	}
}

// Rejected returns the number of jobs discarded on a full backlog.
func (p *Pool) Rejected() int64 { return p.rejected.Load() }

// Shutdown stops accepting jobs and blocks until every in-flight and
// queued job has finished.
func (p *Pool) Shutdown() {
	p.closeOnce.Do(func() { close(p.jobs) })
	p.wg.Wait()
}
