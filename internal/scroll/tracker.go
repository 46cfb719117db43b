package scroll

import "sync"

// Sample is one raw scroll observation.
type Sample struct {
	Seq            uint64
	ScrollY        float64
	ViewportHeight float64
}

// UpdateFunc receives the progress computed for a frame together with the
// sample it was computed from.
type UpdateFunc func(progress float64, sample Sample)

// Stats counts tracker activity.
type Stats struct {
	Samples  uint64
	Computed uint64
	Dropped  uint64
}

// Tracker coalesces scroll samples into at most one progress computation per
// frame. Only the latest sample of a burst is used.
type Tracker struct {
	mu       sync.Mutex
	region   Region
	sched    Scheduler
	onUpdate UpdateFunc

	latest  Sample
	ticking bool
	closed  bool
	stats   Stats
}

func NewTracker(region Region, sched Scheduler, onUpdate UpdateFunc) (*Tracker, error) {
	if err := region.Validate(); err != nil {
		return nil, err
	}
	return &Tracker{
		region:   region,
		sched:    sched,
		onUpdate: onUpdate,
	}, nil
}

// Sample records a scroll position. A frame is requested only if none is
// pending.
func (t *Tracker) Sample(scrollY, viewportHeight float64) {
	t.mu.Lock()
	if t.closed {
		t.mu.Unlock()
		return
	}
	t.stats.Samples++
	t.latest = Sample{Seq: t.stats.Samples, ScrollY: scrollY, ViewportHeight: viewportHeight}
	if t.ticking {
		t.stats.Dropped++
		t.mu.Unlock()
		return
	}
	t.ticking = true
	t.mu.Unlock()

	t.sched.RequestFrame(t.frame)
}

func (t *Tracker) frame() {
	t.mu.Lock()
	t.ticking = false
	if t.closed {
		t.mu.Unlock()
		return
	}
	s := t.latest
	region := t.region
	t.stats.Computed++
	t.mu.Unlock()

	p := ComputeProgress(region, s.ScrollY, s.ViewportHeight)
	if t.onUpdate != nil {
		t.onUpdate(p, s)
	}
}

// SetRegion replaces the region geometry after a layout change.
func (t *Tracker) SetRegion(region Region) error {
	if err := region.Validate(); err != nil {
		return err
	}
	t.mu.Lock()
	t.region = region
	t.mu.Unlock()
	return nil
}

func (t *Tracker) Region() Region {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.region
}

// Close stops the tracker; pending frames become no-ops.
func (t *Tracker) Close() {
	t.mu.Lock()
	t.closed = true
	t.mu.Unlock()
}

func (t *Tracker) Stats() Stats {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.stats
}
