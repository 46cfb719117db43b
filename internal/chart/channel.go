package chart

import (
	"errors"
	"fmt"
	"math"
	"strings"

	"github.com/lucasb-eyer/go-colorful"
	"go.uber.org/zap"

	"github.com/ivlev/scrollviz/internal/dataset"
	"github.com/ivlev/scrollviz/internal/director"
	"github.com/ivlev/scrollviz/internal/geo"
	"github.com/ivlev/scrollviz/internal/visual"
)

// channel resolves one attribute. Row fields that cannot be read return a
// *MissingDataError with only Field set.
func (c *compiler) channel(ch director.Channel, rec dataset.Record) (visual.Value, error) {
	switch {
	case ch.Color != "":
		return visual.Hex(ch.Color)

	case len(ch.Colors) > 0:
		ramp, err := parseRamp(ch.Colors)
		if err != nil {
			return visual.Value{}, err
		}
		if ch.Field == "" {
			return visual.ColorValue(ramp[0]), nil
		}
		v, err := c.number(ch.Field, rec)
		if err != nil {
			return visual.Value{}, err
		}
		t := dataset.Ratio(c.domain(ch)).Map(v)
		return visual.ColorValue(sampleRamp(ramp, t)), nil

	case len(ch.Series) > 0:
		return c.series(ch, rec)

	case ch.Text != nil:
		return visual.Text(*ch.Text), nil

	case ch.TextField != "":
		s, ok := rec[ch.TextField]
		if !ok {
			return visual.Value{}, &MissingDataError{Field: ch.TextField}
		}
		return visual.Text(s), nil

	case ch.LonField != "" || ch.LatField != "" || ch.Lon != nil || ch.Lat != nil:
		lon, err := c.coord(ch.LonField, ch.Lon, rec)
		if err != nil {
			return visual.Value{}, err
		}
		lat, err := c.coord(ch.LatField, ch.Lat, rec)
		if err != nil {
			return visual.Value{}, err
		}
		return visual.Coord(geo.LonLat{Lon: lon, Lat: lat}), nil

	case ch.Field != "":
		v, err := c.number(ch.Field, rec)
		if err != nil {
			return visual.Value{}, err
		}
		if len(ch.Range) == 0 {
			return visual.Number(v), nil
		}
		if len(ch.Range) != 2 {
			return visual.Value{}, fmt.Errorf("range needs two values, got %d", len(ch.Range))
		}
		scale, err := dataset.NewScale(ch.Scale, c.domain(ch), [2]float64{ch.Range[0], ch.Range[1]})
		if err != nil {
			return visual.Value{}, err
		}
		return visual.Number(scale.Map(v)), nil

	case ch.Value != nil:
		return visual.Number(*ch.Value), nil

	default:
		return visual.Value{}, fmt.Errorf("channel has no value, color, text or field")
	}
}

// series turns the row's series fields into polyline vertices. Numeric
// field names (years) place vertices proportionally along XRange, other
// names spread them evenly. Unreadable cells are skipped.
func (c *compiler) series(ch director.Channel, rec dataset.Record) (visual.Value, error) {
	if len(ch.Range) != 2 {
		return visual.Value{}, fmt.Errorf("series needs a two value range, got %d", len(ch.Range))
	}
	xr := [2]float64{0, 1}
	if len(ch.XRange) == 2 {
		xr = [2]float64{ch.XRange[0], ch.XRange[1]}
	}
	xs := seriesX(ch.Series, xr)
	y, err := dataset.NewScale(ch.Scale, c.seriesDomain(ch), [2]float64{ch.Range[0], ch.Range[1]})
	if err != nil {
		return visual.Value{}, err
	}

	pts := make([]visual.Point, 0, len(ch.Series))
	for i, field := range ch.Series {
		v, ok := rec.Number(field)
		if !ok {
			continue
		}
		pts = append(pts, visual.Point{X: xs[i], Y: y.Map(v)})
	}
	if len(pts) == 0 {
		return visual.Value{}, &MissingDataError{Field: ch.Series[0]}
	}
	return visual.Points(pts), nil
}

func seriesX(fields []string, xr [2]float64) []float64 {
	xs := make([]float64, len(fields))
	keys := make([]float64, len(fields))
	numeric := true
	for i, f := range fields {
		v, err := dataset.ParseNumber(f)
		if err != nil {
			numeric = false
			break
		}
		keys[i] = v
	}
	if !numeric {
		for i := range keys {
			keys[i] = float64(i)
		}
	}
	lo, hi, _ := dataset.Extent(keys)
	scale := dataset.Linear{Domain: [2]float64{lo, hi}, Range: xr}
	for i, k := range keys {
		xs[i] = scale.Map(k)
	}
	return xs
}

// seriesDomain is the authored domain or the extent over every series
// field of every selected row.
func (c *compiler) seriesDomain(ch director.Channel) [2]float64 {
	if len(ch.Domain) == 2 {
		return [2]float64{ch.Domain[0], ch.Domain[1]}
	}
	key := "series:" + strings.Join(ch.Series, ",")
	if d, ok := c.domains[key]; ok {
		return d
	}
	var values []float64
	for _, mk := range c.marks {
		for _, f := range ch.Series {
			if v, ok := mk.rec.Number(f); ok {
				values = append(values, v)
			}
		}
	}
	lo, hi, ok := dataset.Extent(values)
	if !ok {
		lo, hi = 0, 1
	}
	d := [2]float64{lo, hi}
	c.domains[key] = d
	return d
}

func (c *compiler) number(field string, rec dataset.Record) (float64, error) {
	v, ok := rec.Number(field)
	if !ok {
		return 0, &MissingDataError{Field: field}
	}
	return v, nil
}

func (c *compiler) coord(field string, fixed *float64, rec dataset.Record) (float64, error) {
	if field != "" {
		return c.number(field, rec)
	}
	if fixed != nil {
		return *fixed, nil
	}
	return 0, nil
}

// domain returns the authored domain or the extent of the field over the
// selected rows.
func (c *compiler) domain(ch director.Channel) [2]float64 {
	if len(ch.Domain) == 2 {
		return [2]float64{ch.Domain[0], ch.Domain[1]}
	}
	if d, ok := c.domains[ch.Field]; ok {
		return d
	}

	values := make([]float64, 0, len(c.marks))
	for _, mk := range c.marks {
		if v, ok := mk.rec.Number(ch.Field); ok {
			values = append(values, v)
		}
	}
	lo, hi, ok := dataset.Extent(values)
	if !ok {
		lo, hi = 0, 1
	}
	d := [2]float64{lo, hi}
	c.domains[ch.Field] = d
	return d
}

func (c *compiler) country(mk mark, field string) visual.Value {
	name := mk.rec[field]
	code, ok := geo.CountryCode(name)
	if !ok {
		c.section.Missing = append(c.section.Missing, &MissingDataError{Element: mk.id, Attr: "country-id", Field: field})
		c.logger.Warn("Unknown country", zap.String("element", mk.id), zap.String("name", name))
		return visual.Text("")
	}
	return visual.Text(fmt.Sprintf("%03d", code))
}

// fallback is the value used when a row field is missing.
func fallback(ch director.Channel) visual.Value {
	switch {
	case len(ch.Series) > 0:
		return visual.Points(nil)
	case len(ch.Colors) > 0:
		if ramp, err := parseRamp(ch.Colors); err == nil {
			return visual.ColorValue(ramp[0])
		}
		return visual.ColorValue(colorful.Color{})
	case ch.TextField != "":
		return visual.Text("")
	case ch.LonField != "" || ch.LatField != "":
		return visual.Coord(geo.LonLat{})
	case ch.Default != nil:
		return visual.Number(*ch.Default)
	default:
		return visual.Number(0)
	}
}

func parseRamp(hexes []string) ([]colorful.Color, error) {
	out := make([]colorful.Color, len(hexes))
	for i, h := range hexes {
		v, err := visual.Hex(h)
		if err != nil {
			return nil, err
		}
		out[i] = v.Color
	}
	return out, nil
}

// sampleRamp blends between evenly spaced ramp stops.
func sampleRamp(ramp []colorful.Color, t float64) colorful.Color {
	if len(ramp) == 1 {
		return ramp[0]
	}
	t = math.Max(0, math.Min(1, t))
	pos := t * float64(len(ramp)-1)
	i := int(math.Floor(pos))
	if i >= len(ramp)-1 {
		return ramp[len(ramp)-1]
	}
	return ramp[i].BlendRgb(ramp[i+1], pos-float64(i))
}

func asMissing(err error, target **MissingDataError) bool {
	return errors.As(err, target)
}
