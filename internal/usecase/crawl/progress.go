package crawl

import (
	"time"

	"go.uber.org/zap"
)

// Progress is a point-in-time snapshot of a running crawl.
type Progress struct {
	Discovered     int
	Visited        int
	Queued         int
	CurrentDepth   int
	Fetched        int
	FromCache      int
	Errors         int
	Elapsed        time.Duration
	PagesPerSecond float64
}

// ProgressSink receives snapshots. It runs on its own goroutine and never blocks the crawl.
type ProgressSink func(Progress)

// LogSink reports snapshots through logger.
func LogSink(logger *zap.Logger) ProgressSink {
	return func(p Progress) {
		logger.Info("crawl progress",
			zap.Int("discovered", p.Discovered),
			zap.Int("visited", p.Visited),
			zap.Int("queued", p.Queued),
			zap.Int("depth", p.CurrentDepth),
			zap.Int("fetched", p.Fetched),
			zap.Int("from_cache", p.FromCache),
			zap.Int("errors", p.Errors),
			zap.Duration("elapsed", p.Elapsed),
			zap.Float64("pages_per_sec", p.PagesPerSecond),
		)
	}
}

// progressPump hands snapshots to the sink without blocking the scheduler.
// Snapshots are dropped while the sink lags behind.
type progressPump struct {
	ch      chan Progress
	done    chan struct{}
	dropped int
}

func startProgress(sink ProgressSink, buffer int) *progressPump {
	if sink == nil {
		return nil
	}
	p := &progressPump{
		ch:   make(chan Progress, buffer),
		done: make(chan struct{}),
	}
	go func() {
		defer close(p.done)
		for snap := range p.ch {
			sink(snap)
		}
	}()
	return p
}

func (p *progressPump) emit(snap Progress) {
	if p == nil {
		return
	}
	select {
	case p.ch <- snap:
	default:
		p.dropped++
	}
}

// close waits for the sink to drain buffered snapshots.
func (p *progressPump) close() int {
	if p == nil {
		return 0
	}
	close(p.ch)
	<-p.done
	return p.dropped
}
