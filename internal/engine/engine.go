package engine

import (
	"context"
	"fmt"
	"image"
	"io"
	"os"
	"path/filepath"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/ivlev/scrollviz/internal/binding"
	"github.com/ivlev/scrollviz/internal/config"
	"github.com/ivlev/scrollviz/internal/director"
	"github.com/ivlev/scrollviz/internal/effects"
	"github.com/ivlev/scrollviz/internal/logging"
	"github.com/ivlev/scrollviz/internal/renderer"
	"github.com/ivlev/scrollviz/internal/scroll"
	"github.com/ivlev/scrollviz/internal/system"
	"github.com/ivlev/scrollviz/internal/video"
	"github.com/ivlev/scrollviz/internal/visual"
)

// TooltipElement is the canvas element that shows the hovered mark.
const TooltipElement = "tooltip"

// settleEpsilon is how close a spring must be to its target to count as
// at rest.
const settleEpsilon = 1e-3

// Project renders a scroll trace through an article into a video or a
// directory of frames.
type Project struct {
	Config  *config.Config
	Article *director.Article
	BaseDir string
	Encoder video.Encoder
	Effect  effects.Effect
	Logger  *zap.Logger
	// Out receives progress lines; nil silences them.
	Out io.Writer
}

// Report summarises a render.
type Report struct {
	Output   string
	Frames   int
	Samples  int
	Computed uint64
	Dropped  uint64
	Jumps    uint64
	Workers  int
	// Settled is false when springs were still moving on the last frame.
	Settled   bool
	StateTime time.Duration
	Total     time.Duration
}

// FPS is the effective render speed.
func (r *Report) FPS() float64 {
	if r.Total <= 0 {
		return 0
	}
	return float64(r.Frames) / r.Total.Seconds()
}

func NewProject(cfg *config.Config, article *director.Article, baseDir string, enc video.Encoder, eff effects.Effect, logger *zap.Logger) *Project {
	return &Project{
		Config:  cfg,
		Article: article,
		BaseDir: baseDir,
		Encoder: enc,
		Effect:  eff,
		Logger:  logging.OrNop(logger),
		Out:     os.Stdout,
	}
}

// Viewport is the scroll viewport height used for sampling.
func (p *Project) Viewport() float64 {
	if p.Config.ViewportHeight > 0 {
		return p.Config.ViewportHeight
	}
	return float64(p.Article.Viewport.Height)
}

// Trace loads the configured trace file or builds a synthetic sweep over
// the whole article.
func (p *Project) Trace() (Trace, error) {
	vh := p.Viewport()
	if p.Config.TracePath != "" {
		return ReadTrace(p.Config.TracePath, vh)
	}
	end := p.Config.EndScroll
	if end <= 0 {
		end = ScrollExtent(p.Article, vh)
	}
	return SyntheticTrace(p.Config.StartScroll, end, p.Config.ScrollSpeed, p.Config.FPS, p.Config.EventsPerFrame, vh)
}

// Output is where the encoder writes.
func (p *Project) Output() string {
	if p.Config.FramesDir != "" {
		return p.Config.FramesDir
	}
	return p.Config.OutputVideo
}

type renderJob struct {
	index int
	scene *renderer.Scene
}

type renderedFrame struct {
	index int
	img   *image.RGBA
}

func (p *Project) Run(ctx context.Context) (*Report, error) {
	startTime := time.Now()

	trace, err := p.Trace()
	if err != nil {
		return nil, err
	}

	sched := scroll.NewManualScheduler()
	rt, err := NewArticle(p.Article, p.BaseDir, sched, p.Logger)
	if err != nil {
		return nil, err
	}
	defer rt.Close()

	smoothers := make(map[string]*binding.Smoother)
	if p.Config.Smoothing == config.SmoothingSpring {
		for _, s := range p.Article.Sections {
			smoothers[s.ID] = binding.NewSmoother(p.Config.FPS, p.Config.SpringFreq, p.Config.SpringDamping)
		}
		// a jump skips whole phases; easing through them would be wrong
		rt.OnJump(func(section string, from, to int) {
			smoothers[section].Reset()
		})
	}

	if err := rt.MountAll(ctx); err != nil {
		return nil, err
	}

	width, height := p.Article.Viewport.Width, p.Article.Viewport.Height
	bg := rt.Background()
	canvases := make(map[string]*renderer.Canvas)
	for _, c := range rt.mounted() {
		canvas := renderer.NewCanvas(width, height, bg, c.Section.Order)
		canvas.SetRegions(rt.Regions())
		canvases[c.Section.ID] = canvas
	}

	hub := binding.NewHub(64)
	defer hub.Close()
	hovers := hub.OnHover(binding.AnyElement)

	params := p.Config.Params(len(trace))
	params.InputWidth, params.InputHeight = width, height
	params.Label = p.Article.Title
	if p.Effect != nil {
		params.Filter = p.Effect.GenerateFilter(params)
	}

	workers := p.Config.Workers
	if workers <= 0 {
		workers = system.RecommendedWorkers(uint64(width) * uint64(height) * 4)
	}
	if workers > len(trace) {
		workers = len(trace)
	}

	output := p.Output()
	if dir := filepath.Dir(output); p.Config.FramesDir == "" && dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, err
		}
	}

	p.printf("--- [PROJECT: SCROLL ENGINE] ---\n")
	p.printf("[*] Статья: %s | Разделов: %d | Кадров: %d | Событий: %d\n", p.Article.Title, len(canvases), len(trace), trace.Samples())
	p.printf("[*] Разрешение: %dx%d -> %dx%d @ %d FPS | Потоки: %d\n", width, height, params.Width, params.Height, params.FPS, workers)
	p.printf("-----------------------------\n")

	jobs := make(chan renderJob, workers*2)
	rendered := make(chan renderedFrame, workers*2)
	ordered := make(chan *image.RGBA, workers*2)

	var stateTime time.Duration
	g, gctx := errgroup.WithContext(ctx)

	// 1. Состояния: строго последовательно, в порядке прокрутки
	st := &stepper{rt: rt, sched: sched, hub: hub, hovers: hovers, canvases: canvases, smoothers: smoothers, y: p.Config.StartScroll, vh: p.Viewport()}
	g.Go(func() error {
		defer close(jobs)
		for i, points := range trace {
			begin := time.Now()
			scene := st.step(points)
			stateTime += time.Since(begin)
			if scene == nil {
				return fmt.Errorf("frame %d: no mounted section", i)
			}
			select {
			case jobs <- renderJob{index: i, scene: scene}:
			case <-gctx.Done():
				return gctx.Err()
			}
		}
		return nil
	})

	// 2. Растеризация (CPU bound)
	g.Go(func() error {
		var wg sync.WaitGroup
		rect := image.Rect(0, 0, width, height)
		for w := 0; w < workers; w++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				for job := range jobs {
					img := system.GetImage(rect)
					job.scene.Draw(img)
					select {
					case rendered <- renderedFrame{index: job.index, img: img}:
					case <-gctx.Done():
						system.PutImage(img)
					}
				}
			}()
		}
		wg.Wait()
		close(rendered)
		return nil
	})

	// 3. Восстановление порядка кадров
	g.Go(func() error {
		defer close(ordered)
		pending := make(map[int]*image.RGBA)
		defer func() {
			for _, img := range pending {
				system.PutImage(img)
			}
		}()

		next := 0
		for f := range rendered {
			pending[f.index] = f.img
			for {
				img, ok := pending[next]
				if !ok {
					break
				}
				delete(pending, next)
				select {
				case ordered <- img:
				case <-gctx.Done():
					system.PutImage(img)
					return gctx.Err()
				}
				next++
				if next%p.Config.FPS == 0 || next == len(trace) {
					p.printf("[>] Ready: %d/%d\n", next, len(trace))
				}
			}
		}
		return nil
	})

	// 4. Кодирование
	g.Go(func() error {
		err := p.Encoder.Encode(gctx, ordered, output, params)
		for img := range ordered {
			system.PutImage(img)
		}
		return err
	})

	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("ошибка рендера: %w", err)
	}

	report := &Report{
		Output:    output,
		Frames:    len(trace),
		Samples:   trace.Samples(),
		Workers:   workers,
		Settled:   st.settled(),
		StateTime: stateTime,
		Total:     time.Since(startTime),
	}
	for _, c := range rt.mounted() {
		s := c.TrackerStats()
		report.Computed += s.Computed
		report.Dropped += s.Dropped
		report.Jumps += c.Jumps()
	}

	if !report.Settled {
		p.Logger.Warn("Animation still moving on the last frame, extend the trace to let springs settle")
	}
	p.Logger.Info("Render finished",
		zap.String("output", output),
		zap.Int("frames", report.Frames),
		zap.Uint64("computed", report.Computed),
		zap.Uint64("dropped", report.Dropped),
		zap.Duration("total", report.Total))

	if p.Config.ShowStats {
		p.writeStats(report)
	}
	return report, nil
}

func (p *Project) writeStats(r *Report) {
	p.printf("--- [PERFORMANCE REPORT] ---\n"+
		"Build: %s\n"+
		"Total Time: %.2fs\n"+
		"States (CPU, sequential): %.2fs\n"+
		"Scroll events: %d | Computed: %d | Coalesced: %d | Jumps: %d\n"+
		"Effective FPS: %.2f\n"+
		"----------------------------\n",
		p.Config.BuildVersion, r.Total.Seconds(), r.StateTime.Seconds(),
		r.Samples, r.Computed, r.Dropped, r.Jumps, r.FPS())

	// Логирование в файл
	logEntry := fmt.Sprintf("[%s] Build: %s | Article: %s | Frames: %d | Total: %.2fs | States: %.2fs | FPS: %.2f\n",
		time.Now().Format("2006-01-02 15:04:05"),
		p.Config.BuildVersion,
		filepath.Base(p.Config.ArticlePath),
		r.Frames,
		r.Total.Seconds(),
		r.StateTime.Seconds(),
		r.FPS(),
	)

	f, err := os.OpenFile("benchmark.log", os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		p.printf("[!] Не удалось записать benchmark.log: %v\n", err)
		return
	}
	f.WriteString(logEntry)
	f.Close()
}

func (p *Project) printf(format string, args ...interface{}) {
	if p.Out != nil {
		fmt.Fprintf(p.Out, format, args...)
	}
}

// stepper advances the article one frame at a time and freezes the
// visible chart into a scene.
type stepper struct {
	rt        *Article
	sched     *scroll.ManualScheduler
	hub       *binding.Hub
	hovers    <-chan binding.HoverEvent
	canvases  map[string]*renderer.Canvas
	smoothers map[string]*binding.Smoother

	y, vh        float64
	target       visual.State
	active       string
	hovered      string
	hoverSection string
}

func (s *stepper) step(points []Point) *renderer.Scene {
	for _, pt := range points {
		s.rt.Scroll(pt.ScrollY, pt.Viewport)
		s.y, s.vh = pt.ScrollY, pt.Viewport
	}
	s.sched.Flush()

	c, ok := s.rt.Active(s.y, s.vh)
	if !ok {
		return nil
	}
	id := c.Section.ID
	state := c.State()

	s.target = state
	if sm := s.smoothers[id]; sm != nil {
		if id != s.active {
			sm.Reset()
		}
		state = sm.Step(state)
	}
	s.active = id

	canvas := s.canvases[id]
	binding.Apply(state, canvas.Targets())

	if len(points) > 0 {
		s.hover(c, points[len(points)-1].Hover)
	}
	s.drainHovers()
	return canvas.Snapshot()
}

// settled reports whether the springs of the active section have caught
// up with the scroll position. Without smoothing it is always true.
func (s *stepper) settled() bool {
	sm := s.smoothers[s.active]
	if sm == nil {
		return true
	}
	return sm.Settled(s.target, settleEpsilon)
}

// hover emits leave and enter events when the hovered element changes.
// The anchor is taken from what the canvas shows, springs included.
func (s *stepper) hover(c *Context, target string) {
	if target == s.hovered {
		return
	}
	if s.hovered != "" {
		s.hub.Emit(binding.HoverEvent{Section: s.hoverSection, ElementID: s.hovered})
	}
	s.hovered, s.hoverSection = target, c.Section.ID
	if target == "" {
		return
	}
	params := s.canvases[c.Section.ID].Attrs(target)
	if len(params) == 0 {
		return
	}
	x, y := anchorOf(params)
	s.hub.Emit(binding.HoverEvent{
		Section:   c.Section.ID,
		ElementID: target,
		Enter:     true,
		X:         x,
		Y:         y,
		Record:    c.Section.Rows[target],
	})
}

func (s *stepper) drainHovers() {
	for {
		select {
		case ev, ok := <-s.hovers:
			if !ok {
				return
			}
			canvas, found := s.canvases[ev.Section]
			if !found {
				continue
			}
			tip := canvas.Target(TooltipElement)
			if !ev.Enter {
				tip.SetAttr("opacity", visual.Number(0))
				continue
			}
			label := ev.ElementID
			if l := canvas.Attrs(ev.ElementID)["label"]; l.Kind == visual.KindText && l.Text != "" {
				label = l.Text
			}
			tip.SetAttr("shape", visual.Text("text"))
			tip.SetAttr("text", visual.Text(label))
			tip.SetAttr("anchor", visual.Text("middle"))
			tip.SetAttr("x", visual.Number(ev.X))
			tip.SetAttr("y", visual.Number(ev.Y-12))
			tip.SetAttr("fill", visual.MustHex("#ffffff"))
			tip.SetAttr("opacity", visual.Number(1))
		default:
			return
		}
	}
}

// anchorOf returns the point a tooltip attaches to.
func anchorOf(p visual.Params) (float64, float64) {
	if pos, ok := p["pos"]; ok && pos.Kind == visual.KindCoord && pos.Projected {
		return pos.X, pos.Y
	}
	if _, ok := p["cx"]; ok {
		return p.Num("cx", 0), p.Num("cy", 0) - p.Num("r", 0)
	}
	return p.Num("x", 0), p.Num("y", 0)
}
