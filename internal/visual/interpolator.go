package visual

import (
	"go.uber.org/zap"

	"github.com/ivlev/scrollviz/internal/geo"
	"github.com/ivlev/scrollviz/internal/logging"
)

// Interpolator computes visual states between keyframes.
type Interpolator struct {
	// Projection turns interpolated coordinates into pixels. Nil leaves
	// coordinates unprojected.
	Projection geo.Projection
	Logger     *zap.Logger
}

func NewInterpolator(proj geo.Projection, logger *zap.Logger) *Interpolator {
	return &Interpolator{Projection: proj, Logger: logging.OrNop(logger)}
}

// Interpolate calculates the state at localT inside the phase running from
// keyframe from to keyframe to. localT is clamped to [0,1]; the endpoints
// return the keyframes unchanged.
func (in *Interpolator) Interpolate(phaseID string, localT float64, from, to Keyframe, ease Easing) State {
	t := clamp01(localT)
	if ease == nil {
		ease = Linear
	}

	state := State{Phase: phaseID, T: t}

	switch t {
	case 0:
		state.Elements = from.Clone().Elements
	case 1:
		state.Elements = to.Clone().Elements
	default:
		state.Elements = in.blend(from, to, ease(t))
	}

	in.project(state.Elements)
	return state
}

func (in *Interpolator) blend(from, to Keyframe, e float64) map[string]Params {
	out := make(map[string]Params, len(to.Elements))

	for id, a := range from.Elements {
		b, ok := to.Elements[id]
		if !ok {
			// element only in the source keyframe: hold it
			out[id] = a.Clone()
			continue
		}
		out[id] = in.blendParams(id, a, b, e)
	}
	for id, b := range to.Elements {
		if _, ok := from.Elements[id]; !ok {
			out[id] = b.Clone()
		}
	}
	return out
}

func (in *Interpolator) blendParams(id string, a, b Params, e float64) Params {
	out := make(Params, len(b))
	for name, va := range a {
		vb, ok := b[name]
		if !ok {
			out[name] = va
			continue
		}
		out[name] = in.mix(id, name, va, vb, e)
	}
	for name, vb := range b {
		if _, ok := a[name]; !ok {
			out[name] = vb
		}
	}
	return out
}

func (in *Interpolator) mix(id, name string, a, b Value, e float64) Value {
	if a.Kind != b.Kind {
		in.logger().Debug("Mismatched parameter kinds, stepping",
			zap.String("element", id),
			zap.String("attr", name),
			zap.Stringer("from", a.Kind),
			zap.Stringer("to", b.Kind))
		return step(a, b, e)
	}

	switch a.Kind {
	case KindNumber:
		return Number(lerp(a.Num, b.Num, e))
	case KindColor:
		return ColorValue(a.Color.BlendRgb(b.Color, e))
	case KindCoord:
		// source space; projection happens afterwards
		return Coord(a.Coord.Lerp(b.Coord, e))
	case KindPoints:
		if len(a.Points) != len(b.Points) {
			return step(a, b, e)
		}
		pts := make([]Point, len(a.Points))
		for i := range pts {
			pts[i] = Point{X: lerp(a.Points[i].X, b.Points[i].X, e), Y: lerp(a.Points[i].Y, b.Points[i].Y, e)}
		}
		return Points(pts)
	default:
		return step(a, b, e)
	}
}

func (in *Interpolator) project(elements map[string]Params) {
	if in.Projection == nil {
		return
	}
	for _, params := range elements {
		for name, v := range params {
			if v.Kind != KindCoord {
				continue
			}
			v.X, v.Y = in.Projection.Project(v.Coord)
			v.Projected = true
			params[name] = v
		}
	}
}

func (in *Interpolator) logger() *zap.Logger {
	return logging.OrNop(in.Logger)
}

// step switches categorical values halfway through the phase.
func step(a, b Value, e float64) Value {
	if e < 0.5 {
		return a
	}
	return b
}

// lerp performs linear interpolation between a and b
func lerp(a, b, t float64) float64 {
	return a + (b-a)*t
}

func clamp01(v float64) float64 {
	if v != v || v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
