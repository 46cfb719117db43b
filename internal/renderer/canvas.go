package renderer

import (
	"sync"

	"github.com/lucasb-eyer/go-colorful"

	"github.com/ivlev/scrollviz/internal/binding"
	"github.com/ivlev/scrollviz/internal/geo"
	"github.com/ivlev/scrollviz/internal/visual"
)

// Canvas is the raster rendering target of one chart. Each element is a
// binding.Target; Snapshot freezes the current attributes into a Scene
// that can be drawn on any goroutine.
type Canvas struct {
	mu         sync.Mutex
	width      int
	height     int
	background colorful.Color
	order      []string
	elements   map[string]visual.Params
	regions    *geo.Regions
}

func NewCanvas(width, height int, background colorful.Color, order []string) *Canvas {
	c := &Canvas{
		width:      width,
		height:     height,
		background: background,
		order:      append([]string(nil), order...),
		elements:   make(map[string]visual.Params, len(order)),
	}
	for _, id := range order {
		c.elements[id] = visual.Params{}
	}
	return c
}

type element struct {
	canvas *Canvas
	id     string
}

func (e element) ID() string { return e.id }

func (e element) SetAttr(name string, v visual.Value) {
	e.canvas.mu.Lock()
	defer e.canvas.mu.Unlock()
	params, ok := e.canvas.elements[e.id]
	if !ok {
		params = visual.Params{}
		e.canvas.elements[e.id] = params
		e.canvas.order = append(e.canvas.order, e.id)
	}
	params[name] = v
}

// Target returns the element id, appending it to the drawing order when
// it is new.
func (c *Canvas) Target(id string) binding.Target {
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, ok := c.elements[id]; !ok {
		c.elements[id] = visual.Params{}
		c.order = append(c.order, id)
	}
	return element{canvas: c, id: id}
}

// Targets returns one target per element in drawing order.
func (c *Canvas) Targets() []binding.Target {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]binding.Target, len(c.order))
	for i, id := range c.order {
		out[i] = element{canvas: c, id: id}
	}
	return out
}

// Attrs returns a copy of the attributes of id.
func (c *Canvas) Attrs(id string) visual.Params {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.elements[id].Clone()
}

// SetRegions attaches the projected areas that region elements fill.
// The set is shared with every snapshot and must not change afterwards.
func (c *Canvas) SetRegions(r *geo.Regions) {
	c.mu.Lock()
	c.regions = r
	c.mu.Unlock()
}

// Snapshot copies the canvas into an immutable scene.
func (c *Canvas) Snapshot() *Scene {
	c.mu.Lock()
	defer c.mu.Unlock()
	s := &Scene{
		Width:      c.width,
		Height:     c.height,
		Background: c.background,
		Order:      append([]string(nil), c.order...),
		Regions:    c.regions,
		Elements:   make(map[string]visual.Params, len(c.elements)),
	}
	for id, p := range c.elements {
		s.Elements[id] = p.Clone()
	}
	return s
}
