package engine

import (
	"context"
	"fmt"
	"path/filepath"
	"sync"

	"github.com/lucasb-eyer/go-colorful"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/ivlev/scrollviz/internal/chart"
	"github.com/ivlev/scrollviz/internal/dataset"
	"github.com/ivlev/scrollviz/internal/director"
	"github.com/ivlev/scrollviz/internal/geo"
	"github.com/ivlev/scrollviz/internal/logging"
	"github.com/ivlev/scrollviz/internal/scroll"
	"github.com/ivlev/scrollviz/internal/visual"
)

// Article is the runtime of one article: a Context per mounted section,
// all fed from the same scroll position.
type Article struct {
	Spec *director.Article

	sched   scroll.Scheduler
	loader  *dataset.Loader
	regions *geo.Regions
	interp  *visual.Interpolator
	logger  *zap.Logger

	mu       sync.Mutex
	contexts map[string]*Context
	onJump   JumpFunc
	// layout is the viewport height the section geometry is laid out for.
	layout float64
}

// NewArticle prepares a runtime; datasets are resolved against baseDir.
// No section is mounted yet.
func NewArticle(spec *director.Article, baseDir string, sched scroll.Scheduler, logger *zap.Logger) (*Article, error) {
	logger = logging.OrNop(logger)

	var proj geo.Projection
	if spec.Projection != nil {
		p, err := geo.NewProjection(*spec.Projection)
		if err != nil {
			return nil, fmt.Errorf("projection: %w", err)
		}
		proj = p
	}

	var regions *geo.Regions
	if spec.Regions != nil {
		if proj == nil {
			return nil, fmt.Errorf("regions need a projection")
		}
		path := spec.Regions.Path
		if !filepath.IsAbs(path) {
			path = filepath.Join(baseDir, path)
		}
		areas, err := geo.LoadAreas(path, spec.Regions.IDProperty)
		if err != nil {
			return nil, fmt.Errorf("regions: %w", err)
		}
		regions = geo.ProjectAreas(areas, proj)
		logger.Debug("Regions loaded", zap.String("path", path), zap.Int("regions", regions.Len()))
	}

	return &Article{
		Spec:     spec,
		sched:    sched,
		loader:   dataset.NewLoader(baseDir, logger),
		regions:  regions,
		interp:   visual.NewInterpolator(proj, logger),
		logger:   logger,
		contexts: make(map[string]*Context),
		layout:   float64(spec.Viewport.Height),
	}, nil
}

// OnJump registers the callback for multi-phase jumps. Set it before
// mounting.
func (a *Article) OnJump(fn JumpFunc) {
	a.mu.Lock()
	a.onJump = fn
	a.mu.Unlock()
}

// Mount compiles and mounts one section. Mounting a mounted section
// returns its existing context.
func (a *Article) Mount(id string) (*Context, error) {
	a.mu.Lock()
	if c, ok := a.contexts[id]; ok {
		a.mu.Unlock()
		return c, nil
	}
	a.mu.Unlock()

	c, err := a.prepare(id)
	if err != nil {
		return nil, err
	}
	return a.register(c), nil
}

// MountAll compiles every section concurrently and mounts them.
func (a *Article) MountAll(ctx context.Context) error {
	prepared := make([]*Context, len(a.Spec.Sections))

	g, ctx := errgroup.WithContext(ctx)
	for i, sec := range a.Spec.Sections {
		id := sec.ID
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			c, err := a.prepare(id)
			if err != nil {
				return err
			}
			prepared[i] = c
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}

	for _, c := range prepared {
		a.register(c)
	}
	return nil
}

func (a *Article) prepare(id string) (*Context, error) {
	spec, ok := a.Spec.Section(id)
	if !ok {
		return nil, fmt.Errorf("unknown section %q", id)
	}

	var table *dataset.Table
	if spec.Dataset != "" {
		path, ok := a.Spec.Datasets[spec.Dataset]
		if !ok {
			return nil, fmt.Errorf("section %s: unknown dataset %q", id, spec.Dataset)
		}
		t, err := a.loader.Load(path)
		if err != nil {
			return nil, fmt.Errorf("section %s: %w", id, err)
		}
		table = t
	}

	compiled, err := chart.Compile(spec, table, a.logger)
	if err != nil {
		return nil, err
	}

	a.mu.Lock()
	onJump := a.onJump
	compiled.Region = reflow(spec.Region(), a.Spec, a.layout)
	a.mu.Unlock()
	return newContext(compiled, a.sched, a.interp, a.logger, onJump)
}

func (a *Article) register(c *Context) *Context {
	a.mu.Lock()
	defer a.mu.Unlock()
	if existing, ok := a.contexts[c.Section.ID]; ok {
		c.tracker.Close()
		return existing
	}
	c.mount()
	a.contexts[c.Section.ID] = c
	return c
}

// Unmount stops tracking a section.
func (a *Article) Unmount(id string) error {
	a.mu.Lock()
	c, ok := a.contexts[id]
	delete(a.contexts, id)
	a.mu.Unlock()
	if !ok {
		return fmt.Errorf("section %q is not mounted", id)
	}
	c.unmount()
	return nil
}

// Scroll feeds one scroll sample to every mounted section. A sample with
// a new viewport height resizes the layout first.
func (a *Article) Scroll(scrollY, viewportHeight float64) {
	a.mu.Lock()
	resized := viewportHeight > 0 && viewportHeight != a.layout
	a.mu.Unlock()
	if resized {
		if err := a.Resize(viewportHeight); err != nil {
			a.logger.Warn("Resize failed", zap.Float64("viewport", viewportHeight), zap.Error(err))
		}
	}
	for _, c := range a.mounted() {
		c.tracker.Sample(scrollY, viewportHeight)
	}
}

// States returns the latest state of every mounted section in article
// order.
func (a *Article) States() []visual.State {
	ctxs := a.mounted()
	out := make([]visual.State, len(ctxs))
	for i, c := range ctxs {
		out[i] = c.State()
	}
	return out
}

func (a *Article) Context(id string) (*Context, bool) {
	a.mu.Lock()
	defer a.mu.Unlock()
	c, ok := a.contexts[id]
	return c, ok
}

// Active returns the mounted section shown at scrollY: the one under the
// middle of the viewport, or the last one above it.
func (a *Article) Active(scrollY, viewportHeight float64) (*Context, bool) {
	line := scrollY + viewportHeight/2
	var last *Context
	for _, c := range a.mounted() {
		r := c.tracker.Region()
		if line >= r.Top && line < r.Top+r.Height {
			return c, true
		}
		if r.Top <= line {
			last = c
		}
	}
	if last == nil {
		ctxs := a.mounted()
		if len(ctxs) == 0 {
			return nil, false
		}
		return ctxs[0], true
	}
	return last, true
}

// Resize lays the sections out for a new viewport height. Section
// geometry is authored for the article viewport and scales with it, the
// way vh-sized blocks reflow in a browser.
func (a *Article) Resize(viewportHeight float64) error {
	if viewportHeight <= 0 {
		return fmt.Errorf("viewport height must be positive, got %g", viewportHeight)
	}
	a.mu.Lock()
	a.layout = viewportHeight
	a.mu.Unlock()

	for _, c := range a.mounted() {
		spec, ok := a.Spec.Section(c.Section.ID)
		if !ok {
			continue
		}
		if err := c.tracker.SetRegion(reflow(spec.Region(), a.Spec, viewportHeight)); err != nil {
			return fmt.Errorf("section %s: %w", spec.ID, err)
		}
	}
	a.logger.Debug("Layout resized", zap.Float64("viewport", viewportHeight))
	return nil
}

// Extent is the scroll position at which the last section has been fully
// scrolled through in the current layout.
func (a *Article) Extent() float64 {
	a.mu.Lock()
	vh := a.layout
	a.mu.Unlock()
	return ScrollExtent(a.Spec, vh)
}

// ScrollExtent is the scroll position at which the last section of spec
// has been fully scrolled through with a viewport of viewportHeight.
// Zero means the article viewport.
func ScrollExtent(spec *director.Article, viewportHeight float64) float64 {
	if viewportHeight <= 0 {
		viewportHeight = float64(spec.Viewport.Height)
	}
	var end float64
	for _, s := range spec.Sections {
		r := reflow(s.Region(), spec, viewportHeight)
		if e := r.Top + r.Height - viewportHeight; e > end {
			end = e
		}
	}
	return end
}

// reflow scales a region authored for the article viewport to a viewport
// of viewportHeight.
func reflow(r scroll.Region, spec *director.Article, viewportHeight float64) scroll.Region {
	if spec.Viewport.Height <= 0 || viewportHeight <= 0 {
		return r
	}
	k := viewportHeight / float64(spec.Viewport.Height)
	return scroll.Region{ID: r.ID, Top: r.Top * k, Height: r.Height * k}
}

// Regions returns the projected areas of the article, nil without any.
func (a *Article) Regions() *geo.Regions {
	return a.regions
}

// Background is the article background color, dark slate when unset.
func (a *Article) Background() colorful.Color {
	if a.Spec.Background != "" {
		if v, err := visual.Hex(a.Spec.Background); err == nil {
			return v.Color
		}
		a.logger.Warn("Invalid background color", zap.String("background", a.Spec.Background))
	}
	return colorful.Color{R: 0x1a / 255.0, G: 0x1d / 255.0, B: 0x29 / 255.0}
}

// Close unmounts every section.
func (a *Article) Close() {
	for _, c := range a.mounted() {
		_ = a.Unmount(c.Section.ID)
	}
}

// mounted lists mounted contexts in article order.
func (a *Article) mounted() []*Context {
	a.mu.Lock()
	defer a.mu.Unlock()
	out := make([]*Context, 0, len(a.contexts))
	for _, s := range a.Spec.Sections {
		if c, ok := a.contexts[s.ID]; ok {
			out = append(out, c)
		}
	}
	return out
}
