package engine

import (
	"context"
	"errors"
	"image"
	"os"
	"path/filepath"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/ivlev/scrollviz/internal/binding"
	"github.com/ivlev/scrollviz/internal/config"
	"github.com/ivlev/scrollviz/internal/director"
	"github.com/ivlev/scrollviz/internal/effects"
	"github.com/ivlev/scrollviz/internal/renderer"
	"github.com/ivlev/scrollviz/internal/scroll"
	"github.com/ivlev/scrollviz/internal/system"
	"github.com/ivlev/scrollviz/internal/video"
	"github.com/ivlev/scrollviz/internal/visual"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

const jobsCSV = `Title,pct
Cooks,0.6
Data Scientists,0.8
Cashiers,0.9
Editors,0.7
Pilots,
`

const article = `version: "1.0"
title: Jobs at risk
viewport: {width: 200, height: 100}
background: "#000000"
datasets:
  jobs: jobs.csv
sections:
  - id: bars
    top: 0
    height: 500
    dataset: jobs
    marks:
      id_field: Title
      label_field: Title
      sort_field: pct
      desc: true
      require: [pct]
      limit: 3
      grid: {columns: 3, cell: [60, 100], origin: [10, 0]}
    phases:
      - {id: appear, start: 0, end: 0.25, from: hidden, to: grow}
      - {id: grow, start: 0.25, end: 0.5, from: grow, to: sorted}
      - {id: sort, start: 0.5, end: 0.75, from: sorted, to: scatter, easing: cubic-in-out}
      - {id: settle, start: 0.75, end: 1, from: scatter, to: scatter}
    keyframes:
      hidden:
        marks:
          shape: {text: circle}
          cx: {field: _grid_x}
          cy: {field: _grid_y}
          r: {value: 0}
          fill: {color: "#ff0000"}
      grow:
        marks:
          cx: {field: _grid_x}
          cy: {field: _grid_y}
          r: {field: pct, range: [5, 25]}
          fill: {color: "#ff0000"}
      sorted:
        marks:
          cx: {field: pct, range: [20, 180]}
          cy: {value: 50}
          r: {field: pct, range: [5, 25]}
          fill: {color: "#ff0000"}
      scatter:
        marks:
          cx: {field: pct, range: [20, 180]}
          cy: {field: pct, range: [90, 10]}
          r: {value: 6}
          fill: {color: "#00ff00"}
  - id: outro
    top: 600
    height: 300
    steps: [end]
    keyframes:
      end:
        elements:
          title: {text: {text: Thanks}, x: {value: 100}, y: {value: 50}, anchor: {text: middle}}
`

func fixture(t *testing.T) (*director.Article, string) {
	t.Helper()
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "jobs.csv"), []byte(jobsCSV), 0644))
	path := filepath.Join(dir, "article.yaml")
	require.NoError(t, os.WriteFile(path, []byte(article), 0644))

	spec, err := director.LoadArticle(path)
	require.NoError(t, err)
	return spec, dir
}

func mounted(t *testing.T) (*Article, *scroll.ManualScheduler) {
	t.Helper()
	spec, dir := fixture(t)
	sched := scroll.NewManualScheduler()
	rt, err := NewArticle(spec, dir, sched, nil)
	require.NoError(t, err)
	require.NoError(t, rt.MountAll(context.Background()))
	t.Cleanup(rt.Close)
	return rt, sched
}

func TestMountInitialState(t *testing.T) {
	spec, dir := fixture(t)
	rt, err := NewArticle(spec, dir, scroll.NewManualScheduler(), nil)
	require.NoError(t, err)
	defer rt.Close()

	c, err := rt.Mount("bars")
	require.NoError(t, err)
	assert.Equal(t, Mounted, c.Lifecycle())
	assert.NotEqual(t, uuid.Nil, c.MountID)
	assert.Equal(t, 0, c.PhaseIndex())

	st := c.State()
	assert.Equal(t, "bars", st.Section)
	assert.Equal(t, "appear", st.Phase)
	assert.Equal(t, 0.0, st.Elements["Cashiers"]["r"].Num)

	again, err := rt.Mount("bars")
	require.NoError(t, err)
	assert.Same(t, c, again)

	_, err = rt.Mount("missing")
	assert.Error(t, err)
	assert.Len(t, rt.States(), 1)
}

func TestBurstOfSamplesComputesOnce(t *testing.T) {
	rt, sched := mounted(t)

	for i := 0; i < 50; i++ {
		rt.Scroll(float64(i)*200/49, 100)
	}
	assert.Equal(t, 2, sched.Flush(), "one frame callback per section")

	c, _ := rt.Context("bars")
	assert.Equal(t, uint64(1), c.Updates())
	stats := c.TrackerStats()
	assert.Equal(t, scroll.Stats{Samples: 50, Computed: 1, Dropped: 49}, stats)
	assert.InDelta(t, 0.5, c.State().Progress, 1e-9, "the last sample wins")

	assert.Equal(t, 0, sched.Flush())
	assert.Equal(t, uint64(1), c.Updates())
}

func TestPhaseBoundaryMatchesKeyframe(t *testing.T) {
	rt, sched := mounted(t)
	c, _ := rt.Context("bars")

	rt.Scroll(100, 100) // progress 0.25
	sched.Flush()

	st := c.State()
	assert.Equal(t, "grow", st.Phase)
	assert.Equal(t, 1, st.Index)
	assert.Equal(t, 0.0, st.T)
	if diff := cmp.Diff(c.Section.Keyframes["grow"].Elements, st.Elements); diff != "" {
		t.Errorf("state at a boundary differs from the keyframe (-want +got):\n%s", diff)
	}

	rt.Scroll(500, 100) // past the end
	sched.Flush()
	st = c.State()
	assert.Equal(t, 1.0, st.Progress)
	assert.Equal(t, "settle", st.Phase)
	assert.Equal(t, 6.0, st.Elements["Editors"]["r"].Num)
}

func TestJumpOverPhases(t *testing.T) {
	spec, dir := fixture(t)
	sched := scroll.NewManualScheduler()
	rt, err := NewArticle(spec, dir, sched, nil)
	require.NoError(t, err)
	defer rt.Close()

	type jump struct {
		section  string
		from, to int
	}
	var jumps []jump
	rt.OnJump(func(section string, from, to int) {
		jumps = append(jumps, jump{section, from, to})
	})
	require.NoError(t, rt.MountAll(context.Background()))
	c, _ := rt.Context("bars")

	rt.Scroll(0, 100)
	sched.Flush()
	rt.Scroll(350, 100) // progress 0.875, three phases ahead
	sched.Flush()

	require.Equal(t, []jump{{"bars", 0, 3}}, jumps)
	assert.Equal(t, 3, c.PhaseIndex())
	assert.Equal(t, uint64(1), c.Jumps())

	from, to, ease := c.Section.Endpoints(3)
	want := rt.interp.Interpolate("settle", 0.5, from, to, ease)
	if diff := cmp.Diff(want.Elements, c.State().Elements); diff != "" {
		t.Errorf("jumped state is not the direct interpolation (-want +got):\n%s", diff)
	}

	rt.Scroll(250, 100) // adjacent phase
	sched.Flush()
	assert.Len(t, jumps, 1)
	assert.Equal(t, 2, c.PhaseIndex())
}

func TestUnmount(t *testing.T) {
	rt, sched := mounted(t)
	c, _ := rt.Context("bars")

	require.NoError(t, rt.Unmount("bars"))
	assert.Equal(t, Unmounted, c.Lifecycle())
	assert.Error(t, rt.Unmount("bars"))

	rt.Scroll(300, 100)
	sched.Flush()
	assert.Equal(t, uint64(0), c.Updates())
	assert.Len(t, rt.States(), 1)
	assert.Equal(t, "outro", rt.States()[0].Section)
}

func TestActiveSection(t *testing.T) {
	rt, _ := mounted(t)

	tests := []struct {
		scrollY float64
		want    string
	}{
		{0, "bars"},
		{520, "bars"}, // between sections
		{700, "outro"},
		{5000, "outro"},
	}
	for _, tt := range tests {
		c, ok := rt.Active(tt.scrollY, 100)
		require.True(t, ok)
		assert.Equal(t, tt.want, c.Section.ID, "scrollY %g", tt.scrollY)
	}
	assert.Equal(t, 800.0, rt.Extent())
}

func TestResizeReflowsSections(t *testing.T) {
	rt, sched := mounted(t)
	c, _ := rt.Context("bars")
	outro, _ := rt.Context("outro")

	// a taller window doubles every vh-sized block
	rt.Scroll(400, 200)
	sched.Flush()

	assert.Equal(t, scroll.Region{ID: "bars", Top: 0, Height: 1000}, c.tracker.Region())
	assert.Equal(t, scroll.Region{ID: "outro", Top: 1200, Height: 600}, outro.tracker.Region())
	assert.InDelta(t, 0.5, c.State().Progress, 1e-9)
	assert.Equal(t, "sort", c.State().Phase)
	assert.Equal(t, 1600.0, rt.Extent())

	require.NoError(t, rt.Resize(100))
	assert.Equal(t, scroll.Region{ID: "bars", Top: 0, Height: 500}, c.tracker.Region())
	assert.Equal(t, 800.0, rt.Extent())
	assert.Error(t, rt.Resize(0))
}

func TestScrollExtentFollowsViewport(t *testing.T) {
	spec, dir := fixture(t)
	assert.Equal(t, 800.0, ScrollExtent(spec, 0))
	assert.Equal(t, 800.0, ScrollExtent(spec, 100))
	assert.Equal(t, 1600.0, ScrollExtent(spec, 200))

	cfg := config.Default()
	cfg.ViewportHeight = 200
	cfg.ScrollSpeed = 3000
	trace, err := NewProject(cfg, spec, dir, nil, nil, nil).Trace()
	require.NoError(t, err)
	last := trace[len(trace)-1]
	assert.Equal(t, Point{ScrollY: 1600, Viewport: 200}, last[len(last)-1])
}

func TestSyntheticTrace(t *testing.T) {
	trace, err := SyntheticTrace(0, 100, 300, 30, 3, 100)
	require.NoError(t, err)
	require.Len(t, trace, 11)
	assert.Len(t, trace[0], 1)
	assert.Equal(t, 31, trace.Samples())

	assert.InDelta(t, 10.0/3, trace[1][0].ScrollY, 1e-9)
	assert.InDelta(t, 10, trace[1][2].ScrollY, 1e-9)
	last := trace[len(trace)-1]
	assert.Equal(t, 100.0, last[len(last)-1].ScrollY)

	_, err = SyntheticTrace(0, 100, 0, 30, 1, 100)
	assert.Error(t, err)
	_, err = SyntheticTrace(100, 0, 300, 30, 1, 100)
	assert.Error(t, err)
}

func TestReadTrace(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "trace.csv")
	body := "frame,scroll_y,viewport,hover\n0,0,,\n0,5,,\n2,40,120,Data Scientists\n"
	require.NoError(t, os.WriteFile(path, []byte(body), 0644))

	trace, err := ReadTrace(path, 100)
	require.NoError(t, err)
	require.Len(t, trace, 3)
	assert.Equal(t, []Point{{ScrollY: 0, Viewport: 100}, {ScrollY: 5, Viewport: 100}}, trace[0])
	assert.Empty(t, trace[1])
	assert.Equal(t, Point{ScrollY: 40, Viewport: 120, Hover: "Data Scientists"}, trace[2][0])

	bad := map[string]string{
		"order":   "frame,scroll_y\n3,0\n1,0\n",
		"column":  "frame,y\n0,0\n",
		"frame":   "frame,scroll_y\n1.5,0\n",
		"empty":   "frame,scroll_y\n",
		"scrollY": "frame,scroll_y\n0,abc\n",
	}
	for name, body := range bad {
		p := filepath.Join(dir, name+".csv")
		require.NoError(t, os.WriteFile(p, []byte(body), 0644))
		_, err := ReadTrace(p, 100)
		assert.Error(t, err, name)
	}
}

func TestDumpStates(t *testing.T) {
	spec, dir := fixture(t)
	trace, err := SyntheticTrace(0, 800, 3000, 30, 2, 100)
	require.NoError(t, err)
	require.Len(t, trace, 9)

	dump, err := DumpStates(context.Background(), spec, dir, trace, 4, nil)
	require.NoError(t, err)
	assert.Equal(t, "Jobs at risk", dump.Article)

	frames := make([]int, len(dump.Frames))
	for i, f := range dump.Frames {
		frames[i] = f.Frame
	}
	assert.Equal(t, []int{0, 4, 8}, frames)

	last := dump.Frames[2]
	assert.Equal(t, 800.0, last.ScrollY)
	require.Len(t, last.States, 2)
	assert.Equal(t, 1.0, last.States[0].Progress)

	out := filepath.Join(t.TempDir(), "states.yaml")
	require.NoError(t, director.WriteStates(dump, out))
	data, err := os.ReadFile(out)
	require.NoError(t, err)
	assert.Contains(t, string(data), "phase: settle")
}

type collector struct {
	frames []*image.RGBA
	params config.FrameParams
	path   string
	fail   error
}

func (c *collector) Encode(ctx context.Context, frames <-chan *image.RGBA, path string, params config.FrameParams) error {
	c.path, c.params = path, params
	if c.fail != nil {
		return c.fail
	}
	for img := range frames {
		cp := image.NewRGBA(img.Rect)
		copy(cp.Pix, img.Pix)
		c.frames = append(c.frames, cp)
		system.PutImage(img)
	}
	return nil
}

func renderConfig() *config.Config {
	cfg := config.Default()
	cfg.Width, cfg.Height = 200, 100
	cfg.ScrollSpeed = 3000
	cfg.Workers = 3
	cfg.OutputVideo = "out.mp4"
	return cfg
}

func TestProjectRun(t *testing.T) {
	spec, dir := fixture(t)
	enc := &collector{}
	p := NewProject(renderConfig(), spec, dir, enc, &effects.DefaultEffect{}, nil)
	p.Out = nil

	report, err := p.Run(context.Background())
	require.NoError(t, err)
	assert.True(t, report.Settled, "nothing to settle without smoothing")
	assert.Equal(t, 9, report.Frames)
	assert.Equal(t, 9, report.Samples)
	assert.Equal(t, "out.mp4", enc.path)
	assert.Equal(t, 200, enc.params.InputWidth)
	assert.Equal(t, 9, enc.params.Frames)
	assert.Contains(t, enc.params.Filter, "fade=t=in")

	require.Len(t, enc.frames, 9)
	black := 0
	for _, v := range enc.frames[0].Pix {
		if v == 0 {
			black++
		}
	}
	assert.Equal(t, 200*100*3, black, "frame 0 shows hidden marks only")

	// frame 2 sits on the sorted keyframe: the largest mark at the right
	px := enc.frames[2].RGBAAt(180, 50)
	assert.Equal(t, uint8(255), px.R)
	assert.Equal(t, uint8(0), px.G)
}

func TestProjectRunWithSpringWritesFrames(t *testing.T) {
	spec, dir := fixture(t)
	cfg := renderConfig()
	cfg.Smoothing = config.SmoothingSpring
	cfg.FramesDir = filepath.Join(t.TempDir(), "frames")

	p := NewProject(cfg, spec, dir, &video.PNGWriter{}, &effects.DefaultEffect{}, nil)
	p.Out = nil
	report, err := p.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, cfg.FramesDir, report.Output)

	entries, err := os.ReadDir(cfg.FramesDir)
	require.NoError(t, err)
	assert.Len(t, entries, report.Frames)
}

func TestProjectRunEncoderFailure(t *testing.T) {
	spec, dir := fixture(t)
	boom := errors.New("encoder exploded")
	p := NewProject(renderConfig(), spec, dir, &collector{fail: boom}, nil, nil)
	p.Out = nil

	_, err := p.Run(context.Background())
	assert.ErrorIs(t, err, boom)
}

func TestStepperHoverTooltip(t *testing.T) {
	rt, sched := mounted(t)
	hub := binding.NewHub(4)
	defer hub.Close()

	canvases := map[string]*renderer.Canvas{}
	for _, c := range rt.mounted() {
		canvases[c.Section.ID] = renderer.NewCanvas(200, 100, rt.Background(), c.Section.Order)
	}
	st := &stepper{
		rt:        rt,
		sched:     sched,
		hub:       hub,
		hovers:    hub.OnHover(binding.AnyElement),
		canvases:  canvases,
		smoothers: map[string]*binding.Smoother{},
		vh:        100,
	}

	scene := st.step([]Point{{ScrollY: 200, Viewport: 100, Hover: "Cashiers"}})
	require.NotNil(t, scene)
	tip := canvases["bars"].Attrs(TooltipElement)
	assert.Equal(t, "Cashiers", tip["text"].Text)
	assert.Equal(t, 180.0, tip["x"].Num)
	assert.Equal(t, 13.0, tip["y"].Num)
	assert.Equal(t, 1.0, tip["opacity"].Num)
	assert.Contains(t, scene.Elements, TooltipElement)

	st.step([]Point{{ScrollY: 200, Viewport: 100}})
	assert.Equal(t, 0.0, canvases["bars"].Attrs(TooltipElement)["opacity"].Num)

	// empty frames keep the last position
	st.step(nil)
	assert.Equal(t, 200.0, st.y)
}

func TestStepperSpringsSettle(t *testing.T) {
	rt, sched := mounted(t)
	hub := binding.NewHub(4)
	defer hub.Close()

	canvases := map[string]*renderer.Canvas{}
	for _, c := range rt.mounted() {
		canvases[c.Section.ID] = renderer.NewCanvas(200, 100, rt.Background(), c.Section.Order)
	}
	st := &stepper{
		rt:        rt,
		sched:     sched,
		hub:       hub,
		hovers:    hub.OnHover(binding.AnyElement),
		canvases:  canvases,
		smoothers: map[string]*binding.Smoother{"bars": binding.NewSmoother(30, 6, 1)},
		vh:        100,
	}

	// the first frame of a section snaps to its target
	st.step([]Point{{ScrollY: 0, Viewport: 100}})
	assert.True(t, st.settled())

	st.step([]Point{{ScrollY: 200, Viewport: 100}})
	assert.False(t, st.settled())
	assert.NotEqual(t, st.target.Elements["Cashiers"]["cx"].Num, canvases["bars"].Attrs("Cashiers")["cx"].Num)

	for i := 0; i < 300; i++ {
		st.step(nil)
	}
	assert.True(t, st.settled())
	assert.InDelta(t, st.target.Elements["Cashiers"]["cx"].Num, canvases["bars"].Attrs("Cashiers")["cx"].Num, 1e-3)
}

func TestPlayCoalescesInRealTime(t *testing.T) {
	spec, dir := fixture(t)
	trace, err := SyntheticTrace(0, 800, 16000, 200, 4, 100)
	require.NoError(t, err)

	frames := 0
	stats, err := Play(context.Background(), spec, dir, trace, 200, nil, func(states []visual.State) {
		assert.Len(t, states, 2)
		frames++
	})
	require.NoError(t, err)
	assert.Equal(t, len(trace), frames)
	assert.Equal(t, len(trace), stats.Frames)
	assert.Equal(t, uint64(trace.Samples()*2), stats.Samples)
	assert.Positive(t, stats.Computed)
	assert.LessOrEqual(t, stats.Computed+stats.Dropped, stats.Samples)
}

func TestPlayCancelled(t *testing.T) {
	spec, dir := fixture(t)
	trace, err := SyntheticTrace(0, 800, 10, 30, 1, 100)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = Play(ctx, spec, dir, trace, 30, nil, nil)
	assert.ErrorIs(t, err, context.Canceled)
}

const mapArticle = `version: "1.0"
title: Shares
viewport: {width: 200, height: 100}
background: "#000000"
projection: {type: equirectangular, scale: 57.29577951308232, translate: [100, 50]}
regions: {path: world.geojson}
datasets:
  shares: shares.csv
sections:
  - id: map
    top: 0
    height: 300
    dataset: shares
    marks: {id_field: Country, country_field: Country}
    steps: [shown]
    keyframes:
      shown:
        elements:
          land: {region: {text: "*"}, fill: {color: "#333333"}, z: {value: -1}}
        marks:
          shape: {text: region}
          fill: {field: share, colors: ["#0000ff", "#ff0000"]}
`

const mapGeoJSON = `{"type": "FeatureCollection", "features": [
  {"type": "Feature", "id": 840, "properties": {}, "geometry": {"type": "Polygon", "coordinates": [[[-60, 0], [-20, 0], [-20, 40], [-60, 40], [-60, 0]]]}},
  {"type": "Feature", "id": 276, "properties": {}, "geometry": {"type": "Polygon", "coordinates": [[[20, 0], [60, 0], [60, 40], [20, 40], [20, 0]]]}},
  {"type": "Feature", "id": 250, "properties": {}, "geometry": {"type": "Polygon", "coordinates": [[[-90, 0], [-70, 0], [-70, 40], [-90, 40], [-90, 0]]]}}
]}`

func mapFixture(t *testing.T) (*director.Article, string) {
	t.Helper()
	dir := t.TempDir()
	files := map[string]string{
		"shares.csv":    "Country,share\nUnited States,0.8\nGermany,0.2\n",
		"world.geojson": mapGeoJSON,
		"article.yaml":  mapArticle,
	}
	for name, body := range files {
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(body), 0644))
	}
	spec, err := director.LoadArticle(filepath.Join(dir, "article.yaml"))
	require.NoError(t, err)
	return spec, dir
}

func TestChoroplethRender(t *testing.T) {
	spec, dir := mapFixture(t)
	enc := &collector{}
	p := NewProject(renderConfig(), spec, dir, enc, nil, nil)
	p.Out = nil

	_, err := p.Run(context.Background())
	require.NoError(t, err)
	require.NotEmpty(t, enc.frames)

	frame := enc.frames[0]
	px := func(x, y int) [3]uint8 {
		c := frame.RGBAAt(x, y)
		return [3]uint8{c.R, c.G, c.B}
	}
	assert.Equal(t, [3]uint8{255, 0, 0}, px(60, 30), "highest share")
	assert.Equal(t, [3]uint8{0, 0, 255}, px(140, 30), "lowest share")
	assert.Equal(t, [3]uint8{0x33, 0x33, 0x33}, px(20, 30), "land without data")
	assert.Equal(t, [3]uint8{0, 0, 0}, px(100, 80), "sea")
}

func TestRegionsNeedFileAndProjection(t *testing.T) {
	spec, dir := mapFixture(t)
	rt, err := NewArticle(spec, dir, scroll.NewManualScheduler(), nil)
	require.NoError(t, err)
	assert.Equal(t, 3, rt.Regions().Len())

	_, err = NewArticle(spec, t.TempDir(), scroll.NewManualScheduler(), nil)
	assert.Error(t, err, "geojson is resolved against the article directory")

	spec.Projection = nil
	_, err = NewArticle(spec, dir, scroll.NewManualScheduler(), nil)
	assert.Error(t, err)
}

func TestShippedArticleCompiles(t *testing.T) {
	path := filepath.Join("..", "..", "articles", "jobs-at-risk.yaml")
	spec, err := director.LoadArticle(path)
	require.NoError(t, err)

	rt, err := NewArticle(spec, filepath.Dir(path), scroll.NewManualScheduler(), nil)
	require.NoError(t, err)
	defer rt.Close()
	require.NoError(t, rt.MountAll(context.Background()))
	assert.Equal(t, 8, rt.Regions().Len())

	tasks, ok := rt.Context("tasks")
	require.True(t, ok)
	assert.Len(t, tasks.Section.Order, 6*3+1, "three segments per bar and a title")
	assert.Contains(t, tasks.Section.Order, "Cashiers/routine")

	trend, ok := rt.Context("trend")
	require.True(t, ok)
	line := trend.Section.Keyframes["traced"].Elements["Cashiers"]["points"]
	assert.Equal(t, visual.KindPoints, line.Kind)
	assert.Len(t, line.Points, 3)

	shaded, ok := rt.Context("risk-map")
	require.True(t, ok)
	assert.Equal(t, "land", shaded.Section.Order[0])
	assert.Equal(t, "392", shaded.Section.Keyframes["shaded"].Elements["Cashiers"]["country-id"].Text)
}
