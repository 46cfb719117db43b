package visual

import (
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"

	"github.com/ivlev/scrollviz/internal/geo"
)

func bubbleKeyframes() (Keyframe, Keyframe) {
	bubbles := Keyframe{Name: "bubbles", Elements: map[string]Params{
		"software-developers": {
			"cx":      Number(450),
			"cy":      Number(300),
			"r":       Number(90),
			"opacity": Number(1),
			"fill":    MustHex("#43cbff"),
			"label":   Text("Software Developers"),
		},
		"x-axis": {"opacity": Number(0)},
	}}
	scatter := Keyframe{Name: "scatter", Elements: map[string]Params{
		"software-developers": {
			"cx":      Number(700),
			"cy":      Number(100),
			"r":       Number(4),
			"opacity": Number(1),
			"fill":    MustHex("#ff5c8d"),
			"label":   Text(""),
		},
		"x-axis": {"opacity": Number(1)},
	}}
	return bubbles, scatter
}

func TestInterpolateBoundariesAreExact(t *testing.T) {
	from, to := bubbleKeyframes()
	in := NewInterpolator(nil, nil)

	for _, ease := range []Easing{nil, Linear, CubicInOut, QuadOut} {
		start := in.Interpolate("morph", 0, from, to, ease)
		if diff := cmp.Diff(from.Elements, start.Elements); diff != "" {
			t.Errorf("t=0 mismatch (-want +got):\n%s", diff)
		}

		end := in.Interpolate("morph", 1, from, to, ease)
		if diff := cmp.Diff(to.Elements, end.Elements); diff != "" {
			t.Errorf("t=1 mismatch (-want +got):\n%s", diff)
		}
	}
}

func TestInterpolateDoesNotAliasKeyframes(t *testing.T) {
	from, to := bubbleKeyframes()
	in := NewInterpolator(nil, nil)

	state := in.Interpolate("morph", 0, from, to, nil)
	state.Elements["x-axis"]["opacity"] = Number(42)

	assert.Equal(t, 0.0, from.Elements["x-axis"]["opacity"].Num)
}

func TestInterpolateMidpoint(t *testing.T) {
	from, to := bubbleKeyframes()
	in := NewInterpolator(nil, nil)

	state := in.Interpolate("morph", 0.5, from, to, Linear)
	el := state.Elements["software-developers"]

	assert.Equal(t, "morph", state.Phase)
	assert.InDelta(t, 575, el["cx"].Num, 1e-9)
	assert.InDelta(t, 200, el["cy"].Num, 1e-9)
	assert.InDelta(t, 47, el["r"].Num, 1e-9)
	assert.InDelta(t, 0.5, state.Elements["x-axis"]["opacity"].Num, 1e-9)
	assert.Equal(t, "", el["label"].Text, "text switches at the midpoint")

	quarter := in.Interpolate("morph", 0.25, from, to, Linear)
	assert.Equal(t, "Software Developers", quarter.Elements["software-developers"]["label"].Text)

	// colour blends in RGB like d3.interpolateRgb
	fill := el["fill"]
	require.Equal(t, KindColor, fill.Kind)
	a, b := from.Elements["software-developers"]["fill"].Color, to.Elements["software-developers"]["fill"].Color
	assert.InDelta(t, (a.R+b.R)/2, fill.Color.R, 1e-9)
	assert.InDelta(t, (a.G+b.G)/2, fill.Color.G, 1e-9)
	assert.InDelta(t, (a.B+b.B)/2, fill.Color.B, 1e-9)
}

func TestInterpolateAppliesEasing(t *testing.T) {
	from, to := bubbleKeyframes()
	in := NewInterpolator(nil, nil)

	state := in.Interpolate("morph", 0.25, from, to, CubicInOut)
	want := 450 + (700-450)*CubicInOut(0.25)
	assert.InDelta(t, want, state.Elements["software-developers"]["cx"].Num, 1e-9)
}

func TestInterpolateClampsT(t *testing.T) {
	from, to := bubbleKeyframes()
	in := NewInterpolator(nil, nil)

	below := in.Interpolate("morph", -2, from, to, nil)
	above := in.Interpolate("morph", 7, from, to, nil)
	assert.Equal(t, 0.0, below.T)
	assert.Equal(t, 1.0, above.T)
	assert.Equal(t, 450.0, below.Elements["software-developers"]["cx"].Num)
	assert.Equal(t, 700.0, above.Elements["software-developers"]["cx"].Num)
}

func TestInterpolateHoldsOneSidedParameters(t *testing.T) {
	in := NewInterpolator(nil, nil)
	from := Keyframe{Elements: map[string]Params{
		"title": {"opacity": Number(1), "y": Number(30)},
		"gone":  {"opacity": Number(1)},
	}}
	to := Keyframe{Elements: map[string]Params{
		"title": {"opacity": Number(0), "x": Number(450)},
		"new":   {"opacity": Number(0.5)},
	}}

	state := in.Interpolate("p", 0.5, from, to, nil)
	assert.Equal(t, 30.0, state.Elements["title"]["y"].Num)
	assert.Equal(t, 450.0, state.Elements["title"]["x"].Num)
	assert.Equal(t, 0.5, state.Elements["title"]["opacity"].Num)
	assert.Equal(t, 1.0, state.Elements["gone"]["opacity"].Num)
	assert.Equal(t, 0.5, state.Elements["new"]["opacity"].Num)
}

func TestInterpolateMismatchedKindsStep(t *testing.T) {
	in := NewInterpolator(nil, nil)
	from := Keyframe{Elements: map[string]Params{"bar": {"fill": Number(3)}}}
	to := Keyframe{Elements: map[string]Params{"bar": {"fill": MustHex("#fff")}}}

	assert.Equal(t, KindNumber, in.Interpolate("p", 0.4, from, to, nil).Elements["bar"]["fill"].Kind)
	assert.Equal(t, KindColor, in.Interpolate("p", 0.6, from, to, nil).Elements["bar"]["fill"].Kind)
}

func TestInterpolateCoordsInSourceSpace(t *testing.T) {
	proj := geo.Mercator{Scale: 180, Translate: [2]float64{600, 350}}
	in := NewInterpolator(proj, nil)

	a := geo.LonLat{Lon: -74, Lat: 40.7}
	b := geo.LonLat{Lon: 30, Lat: 70}
	from := Keyframe{Elements: map[string]Params{"dot": {"pos": Coord(a)}}}
	to := Keyframe{Elements: map[string]Params{"dot": {"pos": Coord(b)}}}

	mid := in.Interpolate("fly", 0.5, from, to, nil).Elements["dot"]["pos"]
	require.True(t, mid.Projected)
	assert.Equal(t, a.Lerp(b, 0.5), mid.Coord)

	wantX, wantY := proj.Project(a.Lerp(b, 0.5))
	assert.InDelta(t, wantX, mid.X, 1e-9)
	assert.InDelta(t, wantY, mid.Y, 1e-9)

	// pixel-space lerp lands somewhere else on a non-linear projection
	ax, ay := proj.Project(a)
	_, by := proj.Project(b)
	assert.Greater(t, mid.Y-(ay+by)/2, 1.0)

	start := in.Interpolate("fly", 0, from, to, nil).Elements["dot"]["pos"]
	assert.Equal(t, a, start.Coord)
	assert.InDelta(t, ax, start.X, 1e-9)
}

func TestEasings(t *testing.T) {
	for name, e := range easings {
		assert.Equal(t, 0.0, e(0), name)
		assert.InDelta(t, 1.0, e(1), 1e-12, name)
		prev := 0.0
		for i := 1; i <= 100; i++ {
			v := e(float64(i) / 100)
			assert.GreaterOrEqual(t, v, prev-1e-12, "%s must be monotone", name)
			prev = v
		}
	}

	e, err := EasingByName("Cubic-In-Out")
	require.NoError(t, err)
	assert.InDelta(t, 0.5, e(0.5), 1e-12)

	e, err = EasingByName("")
	require.NoError(t, err)
	assert.Equal(t, 0.3, e(0.3))

	_, err = EasingByName("bounce")
	assert.Error(t, err)
}

func TestValueYAML(t *testing.T) {
	state := State{
		Phase: "scatter",
		T:     0.5,
		Elements: map[string]Params{
			"dot": {
				"r":     Number(4),
				"fill":  MustHex("#ff5c8d"),
				"label": Text("IT"),
			},
		},
	}
	data, err := yaml.Marshal(state)
	require.NoError(t, err)

	out := string(data)
	assert.Contains(t, out, "#ff5c8d")
	assert.Contains(t, out, "r: 4")
	assert.Contains(t, out, "label: IT")
}

func TestHex(t *testing.T) {
	v, err := Hex("#fff")
	require.NoError(t, err)
	assert.Equal(t, "#ffffff", v.String())

	_, err = Hex("blue-ish")
	assert.Error(t, err)
}

func TestInterpolatePoints(t *testing.T) {
	in := NewInterpolator(nil, nil)
	from := Keyframe{Name: "flat", Elements: map[string]Params{
		"python": {"d": Points([]Point{{0, 100}, {50, 100}, {100, 100}})},
		"sql":    {"d": Points([]Point{{0, 100}, {100, 100}})},
	}}
	to := Keyframe{Name: "trend", Elements: map[string]Params{
		"python": {"d": Points([]Point{{0, 100}, {50, 60}, {100, 0}})},
		"sql":    {"d": Points([]Point{{0, 80}, {50, 70}, {100, 40}})},
	}}

	mid := in.Interpolate("grow", 0.5, from, to, Linear)
	assert.Equal(t, []Point{{0, 100}, {50, 80}, {100, 50}}, mid.Elements["python"]["d"].Points)
	assert.Equal(t, from.Elements["python"]["d"].Points[1], Point{50, 100}, "keyframe untouched")

	// different vertex counts cannot be blended and step instead
	assert.Len(t, in.Interpolate("grow", 0.4, from, to, Linear).Elements["sql"]["d"].Points, 2)
	assert.Len(t, mid.Elements["sql"]["d"].Points, 3)

	data, err := yaml.Marshal(mid.Elements["python"])
	require.NoError(t, err)
	assert.Contains(t, string(data), "- - 50")
	assert.Equal(t, "points[3]", mid.Elements["python"]["d"].String())
}
