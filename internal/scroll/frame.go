package scroll

import (
	"context"
	"sync"
	"time"
)

// Scheduler runs callbacks on the next rendered frame.
type Scheduler interface {
	RequestFrame(fn func())
}

// frameQueue is the shared callback queue of both schedulers. Callbacks
// requested while a frame runs are deferred to the following frame.
type frameQueue struct {
	mu      sync.Mutex
	pending []func()
	frames  uint64
}

func (q *frameQueue) RequestFrame(fn func()) {
	if fn == nil {
		return
	}
	q.mu.Lock()
	q.pending = append(q.pending, fn)
	q.mu.Unlock()
}

func (q *frameQueue) runFrame() int {
	q.mu.Lock()
	batch := q.pending
	q.pending = nil
	q.frames++
	q.mu.Unlock()

	for _, fn := range batch {
		fn()
	}
	return len(batch)
}

// Pending reports the number of callbacks waiting for the next frame.
func (q *frameQueue) Pending() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.pending)
}

// Frames reports how many frames have run.
func (q *frameQueue) Frames() uint64 {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.frames
}

// ManualScheduler runs a frame only when Flush is called. The offline
// renderer uses it to step the article one frame per trace sample.
type ManualScheduler struct {
	frameQueue
}

func NewManualScheduler() *ManualScheduler {
	return &ManualScheduler{}
}

// Flush runs one frame and returns the number of callbacks executed.
func (s *ManualScheduler) Flush() int {
	return s.runFrame()
}

// FrameLoop runs queued callbacks once per tick at a fixed frame rate.
type FrameLoop struct {
	frameQueue
	interval time.Duration
}

func NewFrameLoop(fps int) *FrameLoop {
	if fps <= 0 {
		fps = 60
	}
	return &FrameLoop{interval: time.Second / time.Duration(fps)}
}

// Run blocks until ctx is done.
func (l *FrameLoop) Run(ctx context.Context) error {
	ticker := time.NewTicker(l.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			l.runFrame()
		}
	}
}
