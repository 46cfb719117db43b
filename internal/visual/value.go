package visual

import (
	"fmt"
	"strconv"

	"github.com/lucasb-eyer/go-colorful"

	"github.com/ivlev/scrollviz/internal/geo"
)

// Kind tags the variant held by a Value.
type Kind uint8

const (
	KindNumber Kind = iota
	KindColor
	KindText
	KindCoord
	KindPoints
)

func (k Kind) String() string {
	switch k {
	case KindNumber:
		return "number"
	case KindColor:
		return "color"
	case KindText:
		return "text"
	case KindCoord:
		return "coord"
	case KindPoints:
		return "points"
	default:
		return "kind(" + strconv.Itoa(int(k)) + ")"
	}
}

// Value is a single visual parameter.
type Value struct {
	Kind  Kind
	Num   float64
	Color colorful.Color
	Text  string
	Coord geo.LonLat

	// Projected pixel position of Coord, set by the interpolator.
	X, Y      float64
	Projected bool

	// Points is a polyline in pixels. Slices are shared between copies and
	// never modified in place.
	Points []Point
}

// Point is one vertex of a polyline.
type Point struct {
	X, Y float64
}

func Number(v float64) Value {
	return Value{Kind: KindNumber, Num: v}
}

func Text(s string) Value {
	return Value{Kind: KindText, Text: s}
}

func ColorValue(c colorful.Color) Value {
	return Value{Kind: KindColor, Color: c}
}

// Hex parses a "#rrggbb" or "#rgb" color.
func Hex(s string) (Value, error) {
	c, err := colorful.Hex(expandShortHex(s))
	if err != nil {
		return Value{}, fmt.Errorf("invalid color %q: %w", s, err)
	}
	return ColorValue(c), nil
}

// MustHex is Hex for literals.
func MustHex(s string) Value {
	v, err := Hex(s)
	if err != nil {
		panic(err)
	}
	return v
}

func Coord(p geo.LonLat) Value {
	return Value{Kind: KindCoord, Coord: p}
}

func Points(pts []Point) Value {
	return Value{Kind: KindPoints, Points: pts}
}

func (v Value) String() string {
	switch v.Kind {
	case KindNumber:
		return strconv.FormatFloat(v.Num, 'g', 6, 64)
	case KindColor:
		return v.Color.Clamped().Hex()
	case KindText:
		return v.Text
	case KindCoord:
		if v.Projected {
			return fmt.Sprintf("(%.4f,%.4f)->(%.1f,%.1f)", v.Coord.Lon, v.Coord.Lat, v.X, v.Y)
		}
		return fmt.Sprintf("(%.4f,%.4f)", v.Coord.Lon, v.Coord.Lat)
	case KindPoints:
		return fmt.Sprintf("points[%d]", len(v.Points))
	default:
		return "?"
	}
}

// MarshalYAML writes numbers, colors and text as scalars so state dumps stay
// readable.
func (v Value) MarshalYAML() (interface{}, error) {
	switch v.Kind {
	case KindNumber:
		return v.Num, nil
	case KindColor:
		return v.Color.Clamped().Hex(), nil
	case KindText:
		return v.Text, nil
	case KindCoord:
		out := map[string]float64{"lon": v.Coord.Lon, "lat": v.Coord.Lat}
		if v.Projected {
			out["x"] = v.X
			out["y"] = v.Y
		}
		return out, nil
	case KindPoints:
		out := make([][2]float64, len(v.Points))
		for i, p := range v.Points {
			out[i] = [2]float64{p.X, p.Y}
		}
		return out, nil
	default:
		return nil, fmt.Errorf("unknown value kind %d", v.Kind)
	}
}

// Params maps attribute names to values for one element.
type Params map[string]Value

func (p Params) Clone() Params {
	out := make(Params, len(p))
	for k, v := range p {
		out[k] = v
	}
	return out
}

// Num returns a numeric attribute or def when absent or not numeric.
func (p Params) Num(name string, def float64) float64 {
	if v, ok := p[name]; ok && v.Kind == KindNumber {
		return v.Num
	}
	return def
}

// Keyframe is a named visual configuration of every element in a chart.
type Keyframe struct {
	Name     string            `yaml:"name"`
	Elements map[string]Params `yaml:"elements"`
}

func (k Keyframe) Clone() Keyframe {
	out := Keyframe{Name: k.Name, Elements: make(map[string]Params, len(k.Elements))}
	for id, p := range k.Elements {
		out.Elements[id] = p.Clone()
	}
	return out
}

// State is the visual state of a chart for one progress value.
type State struct {
	Section  string            `yaml:"section,omitempty"`
	Phase    string            `yaml:"phase"`
	Index    int               `yaml:"index"`
	Progress float64           `yaml:"progress"`
	T        float64           `yaml:"t"`
	Elements map[string]Params `yaml:"elements"`
}

func (s State) Clone() State {
	out := s
	out.Elements = make(map[string]Params, len(s.Elements))
	for id, p := range s.Elements {
		out.Elements[id] = p.Clone()
	}
	return out
}

func expandShortHex(s string) string {
	if len(s) == 4 && s[0] == '#' {
		return string([]byte{'#', s[1], s[1], s[2], s[2], s[3], s[3]})
	}
	return s
}
