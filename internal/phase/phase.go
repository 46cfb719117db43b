package phase

import (
	"fmt"
	"math"
	"sort"
	"strings"
)

// boundaryEpsilon absorbs float noise in hand-written YAML bounds.
const boundaryEpsilon = 1e-9

// Phase is one interval of progress space.
type Phase struct {
	ID    string  `yaml:"id"`
	Start float64 `yaml:"start"`
	End   float64 `yaml:"end"`
}

func (p Phase) String() string {
	return fmt.Sprintf("%s[%g,%g)", p.ID, p.Start, p.End)
}

// ConfigurationError reports a phase table that does not cover [0,1] with
// contiguous, non-overlapping intervals.
type ConfigurationError struct {
	Index  int
	Phase  Phase
	Reason string
}

func (e *ConfigurationError) Error() string {
	if e.Index < 0 {
		return "invalid phase table: " + e.Reason
	}
	return fmt.Sprintf("invalid phase table: phase %d (%s): %s", e.Index, e.Phase, e.Reason)
}

// Table is a validated phase table. Every progress value in [0,1] belongs to
// exactly one phase.
type Table struct {
	phases []Phase
	index  map[string]int
}

// Resolution is the phase owning a progress value and the position inside it.
type Resolution struct {
	ID     string
	Index  int
	LocalT float64
}

// NewTable validates phases, which must be listed in progress order.
func NewTable(phases []Phase) (*Table, error) {
	if len(phases) == 0 {
		return nil, &ConfigurationError{Index: -1, Reason: "no phases"}
	}

	t := &Table{
		phases: make([]Phase, len(phases)),
		index:  make(map[string]int, len(phases)),
	}

	for i, p := range phases {
		switch {
		case strings.TrimSpace(p.ID) == "":
			return nil, &ConfigurationError{Index: i, Phase: p, Reason: "empty id"}
		case isBad(p.Start) || isBad(p.End):
			return nil, &ConfigurationError{Index: i, Phase: p, Reason: "non-finite bound"}
		case p.End-p.Start <= boundaryEpsilon:
			return nil, &ConfigurationError{Index: i, Phase: p, Reason: "start must be below end"}
		}
		if _, dup := t.index[p.ID]; dup {
			return nil, &ConfigurationError{Index: i, Phase: p, Reason: "duplicate id"}
		}

		if i == 0 {
			if math.Abs(p.Start) > boundaryEpsilon {
				return nil, &ConfigurationError{Index: i, Phase: p, Reason: "first phase must start at 0"}
			}
			p.Start = 0
		} else {
			prev := t.phases[i-1]
			gap := p.Start - prev.End
			if gap > boundaryEpsilon {
				return nil, &ConfigurationError{Index: i, Phase: p, Reason: fmt.Sprintf("gap of %g after %s", gap, prev.ID)}
			}
			if gap < -boundaryEpsilon {
				return nil, &ConfigurationError{Index: i, Phase: p, Reason: fmt.Sprintf("overlaps %s by %g", prev.ID, -gap)}
			}
			p.Start = prev.End
		}

		if i == len(phases)-1 {
			if math.Abs(p.End-1) > boundaryEpsilon {
				return nil, &ConfigurationError{Index: i, Phase: p, Reason: "last phase must end at 1"}
			}
			p.End = 1
		}

		t.phases[i] = p
		t.index[p.ID] = i
	}

	return t, nil
}

// Resolve finds the phase owning progress. Progress is clamped to [0,1].
// Phases are half-open [start,end) except the last, so a boundary shared by
// two phases belongs to the later one.
func (t *Table) Resolve(progress float64) Resolution {
	p := clamp01(progress)

	// first phase whose end lies strictly beyond p
	i := sort.Search(len(t.phases), func(i int) bool {
		return t.phases[i].End > p
	})
	if i == len(t.phases) {
		i = len(t.phases) - 1
	}

	ph := t.phases[i]
	local := clamp01((p - ph.Start) / (ph.End - ph.Start))
	return Resolution{ID: ph.ID, Index: i, LocalT: local}
}

func (t *Table) Len() int {
	return len(t.phases)
}

func (t *Table) Phase(i int) Phase {
	return t.phases[i]
}

// Phases returns a copy of the table.
func (t *Table) Phases() []Phase {
	out := make([]Phase, len(t.phases))
	copy(out, t.phases)
	return out
}

// Uniform splits [0,1] into equal phases, one per id.
func Uniform(ids ...string) []Phase {
	phases := make([]Phase, len(ids))
	n := float64(len(ids))
	for i, id := range ids {
		phases[i] = Phase{ID: id, Start: float64(i) / n, End: float64(i+1) / n}
	}
	return phases
}

func isBad(v float64) bool {
	return math.IsNaN(v) || math.IsInf(v, 0)
}

func clamp01(v float64) float64 {
	if math.IsNaN(v) || v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
