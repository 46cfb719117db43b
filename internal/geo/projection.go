package geo

import (
	"fmt"
	"math"
	"strings"
)

// LonLat is a geographic position in degrees.
type LonLat struct {
	Lon float64 `yaml:"lon"`
	Lat float64 `yaml:"lat"`
}

// Lerp interpolates in source (degree) space.
func (a LonLat) Lerp(b LonLat, t float64) LonLat {
	return LonLat{
		Lon: a.Lon + (b.Lon-a.Lon)*t,
		Lat: a.Lat + (b.Lat-a.Lat)*t,
	}
}

// Projection maps geographic positions to pixels. y grows downwards.
type Projection interface {
	Project(p LonLat) (x, y float64)
}

// ProjectionConfig is the YAML form of a projection.
type ProjectionConfig struct {
	Type      string     `yaml:"type"`
	Center    LonLat     `yaml:"center"`
	Scale     float64    `yaml:"scale"`
	Translate [2]float64 `yaml:"translate"`
	Parallels [2]float64 `yaml:"parallels"`
	Rotate    float64    `yaml:"rotate"`
}

// Mercator follows d3.geoMercator: scale is the sphere radius in pixels,
// Center is projected onto Translate.
type Mercator struct {
	Center    LonLat
	Scale     float64
	Translate [2]float64
}

func (m Mercator) raw(p LonLat) (float64, float64) {
	lat := clampLat(p.Lat)
	x := radians(p.Lon)
	y := math.Log(math.Tan(math.Pi/4 + radians(lat)/2))
	return x, y
}

func (m Mercator) Project(p LonLat) (float64, float64) {
	cx, cy := m.raw(m.Center)
	x, y := m.raw(p)
	return m.Translate[0] + (x-cx)*m.Scale, m.Translate[1] - (y-cy)*m.Scale
}

// Equirectangular is the plate carrée projection.
type Equirectangular struct {
	Center    LonLat
	Scale     float64
	Translate [2]float64
}

func (e Equirectangular) Project(p LonLat) (float64, float64) {
	x := radians(p.Lon - e.Center.Lon)
	y := radians(p.Lat - e.Center.Lat)
	return e.Translate[0] + x*e.Scale, e.Translate[1] - y*e.Scale
}

// Albers is the conic equal-area projection. With parallels 29.5/45.5,
// rotation 96 and center (-0.6, 38.7) it matches the contiguous-US layout of
// d3.geoAlbers.
type Albers struct {
	Parallels [2]float64
	Rotate    float64 // degrees added to longitude before projecting
	Center    LonLat  // in rotated coordinates
	Scale     float64
	Translate [2]float64
}

func (a Albers) raw(p LonLat) (float64, float64) {
	phi1, phi2 := radians(a.Parallels[0]), radians(a.Parallels[1])
	n := (math.Sin(phi1) + math.Sin(phi2)) / 2
	if math.Abs(n) < 1e-9 {
		// degenerate cone, fall back to cylindrical equal-area
		return radians(p.Lon + a.Rotate), math.Sin(radians(p.Lat))
	}
	c := math.Cos(phi1)*math.Cos(phi1) + 2*n*math.Sin(phi1)
	r0 := math.Sqrt(c) / n

	lambda := radians(wrapLon(p.Lon + a.Rotate))
	rho := math.Sqrt(math.Max(0, c-2*n*math.Sin(radians(p.Lat)))) / n
	theta := lambda * n
	return rho * math.Sin(theta), r0 - rho*math.Cos(theta)
}

func (a Albers) Project(p LonLat) (float64, float64) {
	cx, cy := a.raw(LonLat{Lon: a.Center.Lon - a.Rotate, Lat: a.Center.Lat})
	x, y := a.raw(p)
	return a.Translate[0] + (x-cx)*a.Scale, a.Translate[1] - (y-cy)*a.Scale
}

// NewProjection builds a projection from its YAML form.
func NewProjection(cfg ProjectionConfig) (Projection, error) {
	scale := cfg.Scale
	if scale == 0 {
		scale = 150
	}
	switch strings.ToLower(cfg.Type) {
	case "mercator", "":
		return Mercator{Center: cfg.Center, Scale: scale, Translate: cfg.Translate}, nil
	case "equirectangular":
		return Equirectangular{Center: cfg.Center, Scale: scale, Translate: cfg.Translate}, nil
	case "albers":
		parallels := cfg.Parallels
		if parallels == [2]float64{} {
			parallels = [2]float64{29.5, 45.5}
		}
		return Albers{Parallels: parallels, Rotate: cfg.Rotate, Center: cfg.Center, Scale: scale, Translate: cfg.Translate}, nil
	default:
		return nil, fmt.Errorf("unknown projection: %s", cfg.Type)
	}
}

func radians(deg float64) float64 {
	return deg * math.Pi / 180
}

// clampLat keeps Mercator finite at the poles.
func clampLat(lat float64) float64 {
	const limit = 85.05112878
	return math.Max(-limit, math.Min(limit, lat))
}

func wrapLon(lon float64) float64 {
	lon = math.Mod(lon+180, 360)
	if lon < 0 {
		lon += 360
	}
	return lon - 180
}
