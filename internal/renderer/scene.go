package renderer

import (
	"image"
	"image/color"
	"image/draw"
	"math"
	"strings"

	"github.com/lucasb-eyer/go-colorful"
	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"
	"golang.org/x/image/vector"

	"github.com/ivlev/scrollviz/internal/geo"
	"github.com/ivlev/scrollviz/internal/visual"
)

// bezierCircle is the control point distance for a quarter circle.
const bezierCircle = 0.5522847498

var defaultFill = colorful.Color{R: 0x9d / 255.0, G: 0xa7 / 255.0, B: 0xc2 / 255.0}

// Scene is a frozen canvas, safe to draw concurrently.
type Scene struct {
	Width      int
	Height     int
	Background colorful.Color
	Order      []string
	Elements   map[string]visual.Params
	// Regions are the areas region elements fill, nil when the article
	// has none.
	Regions *geo.Regions
}

// Draw paints the background and every element in order into img.
func (s *Scene) Draw(img *image.RGBA) {
	bg := s.Background.Clamped()
	draw.Draw(img, img.Bounds(), image.NewUniform(bg), image.Point{}, draw.Src)

	d := &drawer{
		img:     img,
		width:   img.Bounds().Dx(),
		height:  img.Bounds().Dy(),
		camera:  cameraFrom(s.Elements, s.Width, s.Height),
		sceneW:  s.Width,
		sceneH:  s.Height,
		regions: s.Regions,
	}
	for _, id := range s.Order {
		if id == CameraElement {
			continue
		}
		if p, ok := s.Elements[id]; ok {
			d.element(p)
		}
	}
}

type drawer struct {
	img            *image.RGBA
	width, height  int
	sceneW, sceneH int
	camera         CameraState
	regions        *geo.Regions
}

func (d *drawer) element(p visual.Params) {
	opacity := clamp01(p.Num("opacity", 1))
	if opacity == 0 {
		return
	}

	switch shapeOf(p) {
	case "circle":
		cx, cy := d.point(p, "cx", "cy")
		r := d.camera.scale(p.Num("r", 0))
		if !finite(cx, cy, r) || r <= 0 {
			return
		}
		if fill, ok := colorAttr(p, "fill", defaultFill); ok {
			d.fillPath(circlePath(cx, cy, r, false), nrgba(fill, opacity))
		}
		if stroke, ok := strokeAttr(p); ok {
			w := d.camera.scale(p.Num("stroke-width", 1))
			ring := append(circlePath(cx, cy, r+w/2, false), circlePath(cx, cy, math.Max(r-w/2, 0), true)...)
			d.fillPath(ring, nrgba(stroke, opacity))
		}
		if label := p["label"]; label.Kind == visual.KindText && label.Text != "" {
			col, _ := colorAttr(p, "color", colorful.Color{R: 1, G: 1, B: 1})
			d.text(label.Text, cx, cy+4, "middle", nrgba(col, opacity))
		}

	case "rect":
		x, y := d.point(p, "x", "y")
		w, h := d.camera.scale(p.Num("width", 0)), d.camera.scale(p.Num("height", 0))
		if !finite(x, y, w, h) || w <= 0 || h <= 0 {
			return
		}
		if fill, ok := colorAttr(p, "fill", defaultFill); ok {
			d.fillPath(rectPath(x, y, w, h), nrgba(fill, opacity))
		}

	case "line":
		x1, y1 := d.rawPoint(p, "x1", "y1")
		x2, y2 := d.rawPoint(p, "x2", "y2")
		w := d.camera.scale(p.Num("stroke-width", 1))
		if !finite(x1, y1, x2, y2, w) {
			return
		}
		stroke, _ := colorAttr(p, "stroke", defaultFill)
		d.fillPath(linePath(x1, y1, x2, y2, w), nrgba(stroke, opacity))

	case "text":
		x, y := d.point(p, "x", "y")
		if !finite(x, y) {
			return
		}
		col, _ := colorAttr(p, "fill", colorful.Color{R: 1, G: 1, B: 1})
		anchor := "start"
		if a := p["anchor"]; a.Kind == visual.KindText {
			anchor = a.Text
		}
		d.text(p["text"].Text, x, y, anchor, nrgba(col, opacity))

	case "path":
		pts := p["points"]
		if pts.Kind != visual.KindPoints || len(pts.Points) == 0 {
			return
		}
		line := make([][2]float64, len(pts.Points))
		for i, pt := range pts.Points {
			x, y := d.camera.apply(pt.X, pt.Y, d.sceneW, d.sceneH)
			if !finite(x, y) {
				return
			}
			line[i] = [2]float64{x, y}
		}
		w := d.camera.scale(p.Num("stroke-width", 2))
		stroke, ok := colorAttr(p, "stroke", defaultFill)
		if !ok || !finite(w) {
			return
		}
		d.fillPath(polylinePath(line, w, p.Num("reveal", 1)), nrgba(stroke, opacity))
		if label := p["label"]; label.Kind == visual.KindText && label.Text != "" {
			end := line[len(line)-1]
			d.text(label.Text, end[0]+w+4, end[1]+4, "start", nrgba(stroke, opacity))
		}

	case "region":
		var ops, outline []pathOp
		w := d.camera.scale(p.Num("stroke-width", 1))
		stroke, stroked := strokeAttr(p)
		for _, id := range d.regionIDs(p) {
			polys, _ := d.regions.Polygons(id)
			for _, poly := range polys {
				for i, ring := range poly {
					pts := make([][2]float64, len(ring))
					for j, pt := range ring {
						pts[j][0], pts[j][1] = d.camera.apply(pt[0], pt[1], d.sceneW, d.sceneH)
					}
					// outer rings count up, holes count down
					ops = append(ops, ringPath(pts, i == 0)...)
					if stroked && len(pts) > 0 {
						outline = append(outline, polylinePath(append(pts, pts[0]), w, 1)...)
					}
				}
			}
		}
		if fill, ok := colorAttr(p, "fill", defaultFill); ok {
			d.fillPath(ops, nrgba(fill, opacity))
		}
		if stroked {
			d.fillPath(outline, nrgba(stroke, opacity))
		}

	case "qr":
		x, y := d.point(p, "x", "y")
		size := int(d.camera.scale(p.Num("size", 128)))
		if !finite(x, y) || size <= 0 {
			return
		}
		d.qr(p["text"].Text, int(math.Round(x)), int(math.Round(y)), size, opacity)
	}
}

// regionIDs is the "region" attribute, or the country-id of a mark.
// "*" selects every region.
func (d *drawer) regionIDs(p visual.Params) []string {
	id := p["region"]
	if id.Kind != visual.KindText || id.Text == "" {
		id = p["country-id"]
	}
	if id.Kind != visual.KindText || id.Text == "" {
		return nil
	}
	if id.Text == "*" {
		return d.regions.IDs()
	}
	return []string{id.Text}
}

// point resolves an element position: a projected "pos" coordinate wins
// over the numeric attributes.
func (d *drawer) point(p visual.Params, xAttr, yAttr string) (float64, float64) {
	x, y := p.Num(xAttr, 0), p.Num(yAttr, 0)
	if pos, ok := p["pos"]; ok && pos.Kind == visual.KindCoord && pos.Projected {
		x, y = pos.X, pos.Y
	}
	return d.camera.apply(x, y, d.sceneW, d.sceneH)
}

func (d *drawer) rawPoint(p visual.Params, xAttr, yAttr string) (float64, float64) {
	return d.camera.apply(p.Num(xAttr, 0), p.Num(yAttr, 0), d.sceneW, d.sceneH)
}

// pathOp is one segment of a vector path.
type pathOp struct {
	op  byte // 'M', 'L', 'C', 'Z'
	pts []float32
}

func (d *drawer) fillPath(path []pathOp, col color.NRGBA) {
	if col.A == 0 || len(path) == 0 {
		return
	}
	z := vector.NewRasterizer(d.width, d.height)
	z.DrawOp = draw.Over
	for _, op := range path {
		switch op.op {
		case 'M':
			z.MoveTo(op.pts[0], op.pts[1])
		case 'L':
			z.LineTo(op.pts[0], op.pts[1])
		case 'C':
			z.CubeTo(op.pts[0], op.pts[1], op.pts[2], op.pts[3], op.pts[4], op.pts[5])
		case 'Z':
			z.ClosePath()
		}
	}
	z.Draw(d.img, d.img.Bounds(), image.NewUniform(col), image.Point{})
}

func (d *drawer) text(s string, x, y float64, anchor string, col color.NRGBA) {
	if s == "" || col.A == 0 {
		return
	}
	face := basicfont.Face7x13
	dr := &font.Drawer{Dst: d.img, Src: image.NewUniform(col), Face: face}
	width := dr.MeasureString(s)

	dot := fixed.P(int(math.Round(x)), int(math.Round(y)))
	switch strings.ToLower(anchor) {
	case "middle":
		dot.X -= width / 2
	case "end":
		dot.X -= width
	}
	dr.Dot = dot
	dr.DrawString(s)
}

func (d *drawer) qr(content string, x, y, size int, opacity float64) {
	if content == "" {
		return
	}
	code, err := qrImage(content, size)
	if err != nil {
		return
	}
	rect := image.Rect(x, y, x+size, y+size)
	mask := image.NewUniform(color.Alpha{A: uint8(opacity*255 + 0.5)})
	draw.DrawMask(d.img, rect, code, image.Point{}, mask, image.Point{}, draw.Over)
}

func circlePath(cx, cy, r float64, reverse bool) []pathOp {
	k := bezierCircle * r
	f := func(v ...float64) []float32 {
		out := make([]float32, len(v))
		for i, x := range v {
			out[i] = float32(x)
		}
		return out
	}
	if reverse {
		return []pathOp{
			{'M', f(cx+r, cy)},
			{'C', f(cx+r, cy-k, cx+k, cy-r, cx, cy-r)},
			{'C', f(cx-k, cy-r, cx-r, cy-k, cx-r, cy)},
			{'C', f(cx-r, cy+k, cx-k, cy+r, cx, cy+r)},
			{'C', f(cx+k, cy+r, cx+r, cy+k, cx+r, cy)},
			{'Z', nil},
		}
	}
	return []pathOp{
		{'M', f(cx+r, cy)},
		{'C', f(cx+r, cy+k, cx+k, cy+r, cx, cy+r)},
		{'C', f(cx-k, cy+r, cx-r, cy+k, cx-r, cy)},
		{'C', f(cx-r, cy-k, cx-k, cy-r, cx, cy-r)},
		{'C', f(cx+k, cy-r, cx+r, cy-k, cx+r, cy)},
		{'Z', nil},
	}
}

func rectPath(x, y, w, h float64) []pathOp {
	return []pathOp{
		{'M', []float32{float32(x), float32(y)}},
		{'L', []float32{float32(x + w), float32(y)}},
		{'L', []float32{float32(x + w), float32(y + h)}},
		{'L', []float32{float32(x), float32(y + h)}},
		{'Z', nil},
	}
}

// linePath outlines a segment of width w as a quad.
func linePath(x1, y1, x2, y2, w float64) []pathOp {
	dx, dy := x2-x1, y2-y1
	length := math.Hypot(dx, dy)
	if length == 0 || w <= 0 {
		return nil
	}
	nx, ny := -dy/length*w/2, dx/length*w/2
	return []pathOp{
		{'M', []float32{float32(x1 + nx), float32(y1 + ny)}},
		{'L', []float32{float32(x2 + nx), float32(y2 + ny)}},
		{'L', []float32{float32(x2 - nx), float32(y2 - ny)}},
		{'L', []float32{float32(x1 - nx), float32(y1 - ny)}},
		{'Z', nil},
	}
}

// ringPath closes a polygon ring. The rasterizer sums signed coverage,
// so rings are turned to a positive (outer) or negative (hole) winding.
func ringPath(pts [][2]float64, positive bool) []pathOp {
	if len(pts) < 3 {
		return nil
	}
	if (signedArea(pts) >= 0) != positive {
		rev := make([][2]float64, len(pts))
		for i, p := range pts {
			rev[len(pts)-1-i] = p
		}
		pts = rev
	}
	ops := make([]pathOp, 0, len(pts)+1)
	for i, p := range pts {
		op := byte('L')
		if i == 0 {
			op = 'M'
		}
		ops = append(ops, pathOp{op, []float32{float32(p[0]), float32(p[1])}})
	}
	return append(ops, pathOp{'Z', nil})
}

// signedArea is the shoelace area, positive for the winding circlePath
// uses.
func signedArea(pts [][2]float64) float64 {
	var sum float64
	for i, p := range pts {
		q := pts[(i+1)%len(pts)]
		sum += p[0]*q[1] - q[0]*p[1]
	}
	return sum / 2
}

// polylinePath strokes a polyline of width w with round joins. Only the
// first reveal share (0..1) of its length is drawn, which animates a line
// being traced.
func polylinePath(pts [][2]float64, w, reveal float64) []pathOp {
	reveal = clamp01(reveal)
	if len(pts) == 0 || w <= 0 || reveal == 0 {
		return nil
	}
	var total float64
	for i := 1; i < len(pts); i++ {
		total += math.Hypot(pts[i][0]-pts[i-1][0], pts[i][1]-pts[i-1][1])
	}
	budget := total * reveal

	r := w / 2
	ops := circlePath(pts[0][0], pts[0][1], r, false)
	for i := 1; i < len(pts) && budget > 0; i++ {
		a, b := pts[i-1], pts[i]
		seg := math.Hypot(b[0]-a[0], b[1]-a[1])
		if seg > budget {
			t := budget / seg
			b = [2]float64{a[0] + (b[0]-a[0])*t, a[1] + (b[1]-a[1])*t}
		}
		budget -= seg
		if seg == 0 {
			continue
		}
		dx, dy := b[0]-a[0], b[1]-a[1]
		length := math.Hypot(dx, dy)
		if length > 0 {
			nx, ny := -dy/length*r, dx/length*r
			quad := [][2]float64{{a[0] + nx, a[1] + ny}, {b[0] + nx, b[1] + ny}, {b[0] - nx, b[1] - ny}, {a[0] - nx, a[1] - ny}}
			ops = append(ops, ringPath(quad, true)...)
		}
		ops = append(ops, circlePath(b[0], b[1], r, false)...)
	}
	return ops
}

// shapeOf reads the "shape" attribute, guessing from the attributes when
// it is absent.
func shapeOf(p visual.Params) string {
	if s, ok := p["shape"]; ok && s.Kind == visual.KindText {
		return strings.ToLower(s.Text)
	}
	switch {
	case hasAttr(p, "points"):
		return "path"
	case hasAttr(p, "region"):
		return "region"
	case hasAttr(p, "r"):
		return "circle"
	case hasAttr(p, "x1"):
		return "line"
	case hasAttr(p, "text"):
		return "text"
	case hasAttr(p, "width"):
		return "rect"
	default:
		return ""
	}
}

func hasAttr(p visual.Params, name string) bool {
	_, ok := p[name]
	return ok
}

// colorAttr returns the color attribute, def when absent. ok is false for
// an explicit "none".
func colorAttr(p visual.Params, name string, def colorful.Color) (colorful.Color, bool) {
	v, present := p[name]
	if !present {
		return def, true
	}
	switch v.Kind {
	case visual.KindColor:
		return v.Color, true
	case visual.KindText:
		if v.Text == "none" || v.Text == "" {
			return colorful.Color{}, false
		}
		if c, err := visual.Hex(v.Text); err == nil {
			return c.Color, true
		}
	}
	return def, true
}

// strokeAttr returns the stroke color; elements are not stroked unless
// they ask for it.
func strokeAttr(p visual.Params) (colorful.Color, bool) {
	if _, ok := p["stroke"]; !ok {
		return colorful.Color{}, false
	}
	return colorAttr(p, "stroke", colorful.Color{})
}

func nrgba(c colorful.Color, opacity float64) color.NRGBA {
	r, g, b := c.Clamped().RGB255()
	return color.NRGBA{R: r, G: g, B: b, A: uint8(clamp01(opacity)*255 + 0.5)}
}

func finite(vs ...float64) bool {
	for _, v := range vs {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return false
		}
	}
	return true
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
