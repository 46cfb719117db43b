package engine

import (
	"sync"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/ivlev/scrollviz/internal/chart"
	"github.com/ivlev/scrollviz/internal/scroll"
	"github.com/ivlev/scrollviz/internal/visual"
)

// Lifecycle is the mount state of a section.
type Lifecycle int

const (
	Unmounted Lifecycle = iota
	Mounted
)

func (l Lifecycle) String() string {
	if l == Mounted {
		return "mounted"
	}
	return "unmounted"
}

// JumpFunc is told when a single frame moves a section across more than
// one phase boundary.
type JumpFunc func(section string, from, to int)

// Context holds the scroll state of one section: its tracker, the current
// phase and the latest computed visual state.
type Context struct {
	Section *chart.Section
	MountID uuid.UUID

	tracker *scroll.Tracker
	interp  *visual.Interpolator
	logger  *zap.Logger
	onJump  JumpFunc

	mu        sync.Mutex
	lifecycle Lifecycle
	index     int
	state     visual.State
	updates   uint64
	jumps     uint64
}

func newContext(sec *chart.Section, sched scroll.Scheduler, interp *visual.Interpolator, logger *zap.Logger, onJump JumpFunc) (*Context, error) {
	c := &Context{
		Section: sec,
		interp:  interp,
		logger:  logger.With(zap.String("section", sec.ID)),
		onJump:  onJump,
	}
	tracker, err := scroll.NewTracker(sec.Region, sched, c.update)
	if err != nil {
		return nil, err
	}
	c.tracker = tracker
	return c, nil
}

// mount puts the section at phase 0 with its initial state.
func (c *Context) mount() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.MountID = uuid.New()
	c.lifecycle = Mounted
	c.index = 0
	c.state = c.Section.Initial(c.interp)
	c.logger.Debug("Section mounted", zap.Stringer("mount", c.MountID))
}

func (c *Context) unmount() {
	c.tracker.Close()
	c.mu.Lock()
	c.lifecycle = Unmounted
	c.mu.Unlock()
	c.logger.Debug("Section unmounted", zap.Stringer("mount", c.MountID))
}

// update runs once per frame with the coalesced progress.
func (c *Context) update(progress float64, sample scroll.Sample) {
	res := c.Section.Phases.Resolve(progress)
	from, to, ease := c.Section.Endpoints(res.Index)
	st := c.interp.Interpolate(res.ID, res.LocalT, from, to, ease)
	st.Section = c.Section.ID
	st.Index = res.Index
	st.Progress = progress

	c.mu.Lock()
	if c.lifecycle != Mounted {
		c.mu.Unlock()
		return
	}
	prev := c.index
	c.index = res.Index
	c.state = st
	c.updates++
	jump := res.Index-prev > 1 || prev-res.Index > 1
	if jump {
		c.jumps++
	}
	c.mu.Unlock()

	switch {
	case jump:
		// the state was computed straight from the new phase
		c.logger.Debug("Phase jump",
			zap.Int("from", prev),
			zap.Int("to", res.Index),
			zap.Float64("progress", progress),
			zap.Float64("scroll_y", sample.ScrollY))
		if c.onJump != nil {
			c.onJump(c.Section.ID, prev, res.Index)
		}
	case res.Index != prev:
		c.logger.Debug("Phase change", zap.String("phase", res.ID), zap.Int("index", res.Index))
	}
}

func (c *Context) Lifecycle() Lifecycle {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lifecycle
}

// PhaseIndex is the index of the current phase.
func (c *Context) PhaseIndex() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.index
}

// State returns a copy of the latest state.
func (c *Context) State() visual.State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state.Clone()
}

// Updates counts computed states since mount.
func (c *Context) Updates() uint64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.updates
}

func (c *Context) Jumps() uint64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.jumps
}

func (c *Context) TrackerStats() scroll.Stats {
	return c.tracker.Stats()
}
