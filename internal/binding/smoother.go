package binding

import (
	"math"

	"github.com/charmbracelet/harmonica"

	"github.com/ivlev/scrollviz/internal/visual"
)

type springKey struct {
	element, attr string
}

type springState struct {
	pos, vel float64
}

// Smoother eases numeric attributes towards their targets with a damped
// spring, one per element attribute. Colors, text and coordinates pass
// through unchanged.
type Smoother struct {
	spring  harmonica.Spring
	springs map[springKey]*springState
	snap    bool
}

func NewSmoother(fps int, frequency, damping float64) *Smoother {
	if fps <= 0 {
		fps = 60
	}
	return &Smoother{
		spring:  harmonica.NewSpring(harmonica.FPS(fps), frequency, damping),
		springs: make(map[springKey]*springState),
	}
}

// Reset makes the next Step jump straight to its targets. Used after a
// discontinuous scroll jump.
func (s *Smoother) Reset() {
	s.snap = true
}

// Step advances every spring one frame towards state and returns the
// smoothed copy.
func (s *Smoother) Step(state visual.State) visual.State {
	out := state.Clone()
	snap := s.snap
	s.snap = false

	for id, params := range out.Elements {
		for name, v := range params {
			if v.Kind != visual.KindNumber {
				continue
			}
			key := springKey{id, name}
			st, ok := s.springs[key]
			if !ok || snap {
				s.springs[key] = &springState{pos: v.Num}
				continue
			}
			st.pos, st.vel = s.spring.Update(st.pos, st.vel, v.Num)
			params[name] = visual.Number(st.pos)
		}
	}
	return out
}

// Settled reports whether every spring is within eps of rest.
func (s *Smoother) Settled(state visual.State, eps float64) bool {
	for id, params := range state.Elements {
		for name, v := range params {
			if v.Kind != visual.KindNumber {
				continue
			}
			st, ok := s.springs[springKey{id, name}]
			if !ok {
				return false
			}
			if math.Abs(st.pos-v.Num) > eps || math.Abs(st.vel) > eps {
				return false
			}
		}
	}
	return true
}
