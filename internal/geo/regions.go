package geo

import (
	"fmt"
	"math"
	"os"
	"sort"
	"strconv"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"
)

// Area is a named set of polygons in geographic coordinates.
type Area struct {
	ID       string
	Polygons []orb.Polygon
}

// Polygon is a projected polygon in pixels. The first ring is the outer
// boundary, the others are holes.
type Polygon [][][2]float64

// Regions holds projected areas by id.
type Regions struct {
	ids      []string
	polygons map[string][]Polygon
}

// LoadAreas reads a GeoJSON FeatureCollection. See ReadAreas.
func LoadAreas(path, idProperty string) ([]Area, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	areas, err := ReadAreas(data, idProperty)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return areas, nil
}

// ReadAreas decodes the Polygon and MultiPolygon features of a GeoJSON
// FeatureCollection. The id comes from idProperty, or the feature id when
// it is empty. Numeric ids are zero padded to three digits, the ISO 3166
// numeric form used for country-id. Other geometries are skipped.
func ReadAreas(data []byte, idProperty string) ([]Area, error) {
	fc, err := geojson.UnmarshalFeatureCollection(data)
	if err != nil {
		return nil, err
	}

	var areas []Area
	for i, f := range fc.Features {
		var polys []orb.Polygon
		switch g := f.Geometry.(type) {
		case orb.Polygon:
			polys = []orb.Polygon{g}
		case orb.MultiPolygon:
			polys = g
		default:
			continue
		}

		raw := f.ID
		if idProperty != "" {
			raw = f.Properties[idProperty]
		}
		id, ok := areaID(raw)
		if !ok {
			return nil, fmt.Errorf("feature %d: missing id", i)
		}
		areas = append(areas, Area{ID: id, Polygons: polys})
	}
	return areas, nil
}

func areaID(v interface{}) (string, bool) {
	switch id := v.(type) {
	case string:
		if id == "" {
			return "", false
		}
		if n, err := strconv.Atoi(id); err == nil && n >= 0 && n < 1000 {
			return fmt.Sprintf("%03d", n), true
		}
		return id, true
	case float64:
		if id != math.Trunc(id) || id < 0 {
			return fmt.Sprint(id), true
		}
		return fmt.Sprintf("%03d", int(id)), true
	default:
		return "", false
	}
}

// ProjectAreas projects every ring to pixels. Areas sharing an id are
// merged.
func ProjectAreas(areas []Area, proj Projection) *Regions {
	r := &Regions{polygons: make(map[string][]Polygon, len(areas))}
	for _, a := range areas {
		if _, ok := r.polygons[a.ID]; !ok {
			r.ids = append(r.ids, a.ID)
		}
		for _, poly := range a.Polygons {
			out := make(Polygon, 0, len(poly))
			for _, ring := range poly {
				pts := make([][2]float64, len(ring))
				for i, p := range ring {
					x, y := proj.Project(LonLat{Lon: p.Lon(), Lat: p.Lat()})
					pts[i] = [2]float64{x, y}
				}
				out = append(out, pts)
			}
			r.polygons[a.ID] = append(r.polygons[a.ID], out)
		}
	}
	sort.Strings(r.ids)
	return r
}

// IDs lists the region ids in sorted order.
func (r *Regions) IDs() []string {
	if r == nil {
		return nil
	}
	return r.ids
}

// Polygons returns the projected polygons of id.
func (r *Regions) Polygons(id string) ([]Polygon, bool) {
	if r == nil {
		return nil, false
	}
	p, ok := r.polygons[id]
	return p, ok
}

func (r *Regions) Len() int {
	if r == nil {
		return 0
	}
	return len(r.ids)
}
