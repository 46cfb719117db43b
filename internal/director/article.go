package director

import (
	"fmt"

	"github.com/ivlev/scrollviz/internal/geo"
	"github.com/ivlev/scrollviz/internal/phase"
	"github.com/ivlev/scrollviz/internal/scroll"
)

// Article represents a complete scroll-driven article
type Article struct {
	Version    string                `yaml:"version"`
	Title      string                `yaml:"title,omitempty"`
	Viewport   Viewport              `yaml:"viewport"`
	Background string                `yaml:"background,omitempty"`
	Datasets   map[string]string     `yaml:"datasets,omitempty"`
	Projection *geo.ProjectionConfig `yaml:"projection,omitempty"`
	Regions    *Regions              `yaml:"regions,omitempty"`
	Sections   []Section             `yaml:"sections"`
}

// Viewport is the visible window in pixels
type Viewport struct {
	Width  int `yaml:"width"`
	Height int `yaml:"height"`
}

// Regions points at a GeoJSON file of filled areas (countries, states)
type Regions struct {
	Path       string `yaml:"path"`
	IDProperty string `yaml:"id_property,omitempty"` // Feature property holding the id; empty = feature id
}

// Section is one tracked region of the page with its chart
type Section struct {
	ID      string   `yaml:"id"`
	Top     *float64 `yaml:"top,omitempty"`    // Page offset in pixels; nil = placed by Layout
	Height  float64  `yaml:"height,omitempty"` // Scroll height in pixels; 0 = derived by Layout
	Dataset string   `yaml:"dataset,omitempty"`
	Marks   *Marks   `yaml:"marks,omitempty"`

	// Steps lists keyframe names in order; phases are generated between
	// consecutive steps when Phases is empty.
	Steps     []string                `yaml:"steps,omitempty"`
	Phases    []PhaseSpec             `yaml:"phases,omitempty"`
	Keyframes map[string]KeyframeSpec `yaml:"keyframes"`
}

// Marks describes row-driven elements, one per selected dataset row
type Marks struct {
	IDField      string   `yaml:"id_field,omitempty"`
	LabelField   string   `yaml:"label_field,omitempty"`
	SortField    string   `yaml:"sort_field,omitempty"`
	Desc         bool     `yaml:"desc,omitempty"`
	Limit        int      `yaml:"limit,omitempty"`
	Filter       *Filter  `yaml:"filter,omitempty"`
	CountryField string   `yaml:"country_field,omitempty"`
	Require      []string `yaml:"require,omitempty"` // Numeric fields a row must carry
	Grid         *Grid    `yaml:"grid,omitempty"`
	Stack        *Stack   `yaml:"stack,omitempty"`
}

// Stack splits every row into one segment per key, like d3.stack. The
// segments carry _key, _key_index, _value, _y0, _y1 and _span.
type Stack struct {
	Keys   []string `yaml:"keys"`
	Offset string   `yaml:"offset,omitempty"` // expand (default, rows sum to 1) | none
}

// Filter keeps rows whose field equals value
type Filter struct {
	Field string `yaml:"field"`
	Value string `yaml:"value"`
}

// Grid places marks in a fixed grid, exposing _grid_x/_grid_y to encodings
type Grid struct {
	Columns int        `yaml:"columns"`
	Cell    [2]float64 `yaml:"cell"`
	Origin  [2]float64 `yaml:"origin"`
}

// PhaseSpec is one authored phase with the keyframes it runs between
type PhaseSpec struct {
	ID     string  `yaml:"id"`
	Start  float64 `yaml:"start"`
	End    float64 `yaml:"end"`
	From   string  `yaml:"from"`
	To     string  `yaml:"to"`
	Easing string  `yaml:"easing,omitempty"`
}

// KeyframeSpec encodes every element of a chart at one keyframe
type KeyframeSpec struct {
	Marks    Encoding            `yaml:"marks,omitempty"`
	Elements map[string]Encoding `yaml:"elements,omitempty"`
}

// Encoding maps attribute names to channels
type Encoding map[string]Channel

// Channel produces one attribute value, either constant or from a row field
type Channel struct {
	Value     *float64  `yaml:"value,omitempty"`
	Color     string    `yaml:"color,omitempty"`
	Text      *string   `yaml:"text,omitempty"`
	Field     string    `yaml:"field,omitempty"`
	TextField string    `yaml:"text_field,omitempty"`
	Scale     string    `yaml:"scale,omitempty"` // linear | sqrt
	Domain    []float64 `yaml:"domain,omitempty"`
	Range     []float64 `yaml:"range,omitempty"`
	Colors    []string  `yaml:"colors,omitempty"` // Color ramp for field-driven colors
	Default   *float64  `yaml:"default,omitempty"`
	LonField  string    `yaml:"lon_field,omitempty"`
	LatField  string    `yaml:"lat_field,omitempty"`
	Lon       *float64  `yaml:"lon,omitempty"`
	Lat       *float64  `yaml:"lat,omitempty"`

	// Series builds a polyline from one row, a vertex per field. Range
	// and Domain apply to y; XRange spreads the vertices horizontally.
	Series []string  `yaml:"series,omitempty"`
	XRange []float64 `yaml:"x_range,omitempty"`
}

// Region returns the tracked region of the section. Layout must have run.
func (s Section) Region() scroll.Region {
	var top float64
	if s.Top != nil {
		top = *s.Top
	}
	return scroll.Region{ID: s.ID, Top: top, Height: s.Height}
}

// PhaseList returns the phases as a mapper input
func (s Section) PhaseList() []phase.Phase {
	out := make([]phase.Phase, len(s.Phases))
	for i, p := range s.Phases {
		out[i] = phase.Phase{ID: p.ID, Start: p.Start, End: p.End}
	}
	return out
}

// Validate checks references between sections, phases, keyframes and datasets
func (a *Article) Validate() error {
	if a.Viewport.Width <= 0 || a.Viewport.Height <= 0 {
		return fmt.Errorf("viewport must be positive, got %dx%d", a.Viewport.Width, a.Viewport.Height)
	}
	if len(a.Sections) == 0 {
		return fmt.Errorf("article has no sections")
	}
	if a.Regions != nil {
		if a.Regions.Path == "" {
			return fmt.Errorf("regions: missing path")
		}
		if a.Projection == nil {
			return fmt.Errorf("regions need a projection")
		}
	}

	seen := make(map[string]bool, len(a.Sections))
	for i, s := range a.Sections {
		if s.ID == "" {
			return fmt.Errorf("section %d: missing id", i)
		}
		if seen[s.ID] {
			return fmt.Errorf("section %s: duplicate id", s.ID)
		}
		seen[s.ID] = true

		if s.Dataset != "" {
			if _, ok := a.Datasets[s.Dataset]; !ok {
				return fmt.Errorf("section %s: unknown dataset %q", s.ID, s.Dataset)
			}
		}
		if s.Marks != nil && s.Dataset == "" {
			return fmt.Errorf("section %s: marks need a dataset", s.ID)
		}
		if len(s.Phases) == 0 {
			return fmt.Errorf("section %s: no phases", s.ID)
		}
		for _, p := range s.Phases {
			for _, name := range []string{p.From, p.To} {
				if _, ok := s.Keyframes[name]; !ok {
					return fmt.Errorf("section %s: phase %s references unknown keyframe %q", s.ID, p.ID, name)
				}
			}
		}
		if _, err := phase.NewTable(s.PhaseList()); err != nil {
			return fmt.Errorf("section %s: %w", s.ID, err)
		}
	}
	return nil
}

// Section returns the section with id
func (a *Article) Section(id string) (Section, bool) {
	for _, s := range a.Sections {
		if s.ID == id {
			return s, true
		}
	}
	return Section{}, false
}
