package director

import (
	"fmt"
	"math"

	"github.com/ivlev/scrollviz/internal/phase"
)

// Director lays sections out on the page and fills in the parts of an
// article that can be derived: section tops, scroll heights and phases
// between ordered steps.
type Director struct {
	ViewportHeight int
	Offset         float64 // Page offset of the first section (pixels)
	Gap            float64 // Space between sections (pixels)
	MinScreens     float64 // Minimum section height, in viewports
	MaxScreens     float64 // Maximum section height, in viewports
	ScreensPerStep float64 // Scroll distance per phase, in viewports
}

// NewDirector creates a new Director with default settings
func NewDirector(viewportHeight int) *Director {
	return &Director{
		ViewportHeight: viewportHeight,
		Offset:         float64(viewportHeight),
		Gap:            float64(viewportHeight) / 2,
		MinScreens:     2.0,
		MaxScreens:     8.0,
		ScreensPerStep: 1.0,
	}
}

// Layout completes the article in place. Authored values are kept.
func (d *Director) Layout(a *Article) error {
	if len(a.Sections) == 0 {
		return fmt.Errorf("no sections to lay out")
	}

	cursor := d.Offset
	for i := range a.Sections {
		s := &a.Sections[i]

		if len(s.Phases) == 0 {
			phases, err := d.generatePhases(s.Steps)
			if err != nil {
				return fmt.Errorf("section %s: %w", s.ID, err)
			}
			s.Phases = phases
		}

		if s.Height <= 0 {
			s.Height = d.calculateHeight(len(s.Phases))
		}

		if s.Top == nil {
			top := cursor
			s.Top = &top
		}
		cursor = *s.Top + s.Height + d.Gap
	}
	return nil
}

// calculateHeight determines how much scrolling a section gets. The
// viewport is added so the last phase completes while the section is
// still pinned.
func (d *Director) calculateHeight(phaseCount int) float64 {
	screens := float64(phaseCount) * d.ScreensPerStep

	// Clamp to min/max
	screens = math.Max(screens, d.MinScreens)
	screens = math.Min(screens, d.MaxScreens)

	return screens*float64(d.ViewportHeight) + float64(d.ViewportHeight)
}

// generatePhases splits [0,1] evenly between consecutive steps
func (d *Director) generatePhases(steps []string) ([]PhaseSpec, error) {
	switch len(steps) {
	case 0:
		return nil, fmt.Errorf("no phases and no steps")
	case 1:
		// a single keyframe holds for the whole section
		return []PhaseSpec{{ID: steps[0], Start: 0, End: 1, From: steps[0], To: steps[0]}}, nil
	}

	n := len(steps) - 1
	ids := make([]string, n)
	used := make(map[string]bool, n)
	for i := 0; i < n; i++ {
		id := fmt.Sprintf("%s-to-%s", steps[i], steps[i+1])
		if used[id] {
			// a repeated pair is told apart by its step index
			id = fmt.Sprintf("%s-%d", id, i)
		}
		used[id] = true
		ids[i] = id
	}

	phases := make([]PhaseSpec, 0, n)
	for i, p := range phase.Uniform(ids...) {
		phases = append(phases, PhaseSpec{
			ID:    p.ID,
			Start: p.Start,
			End:   p.End,
			From:  steps[i],
			To:    steps[i+1],
		})
	}
	return phases, nil
}
