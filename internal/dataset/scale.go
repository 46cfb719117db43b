package dataset

import (
	"fmt"
	"math"
)

// Scale maps a data value to a visual one.
type Scale interface {
	Map(v float64) float64
}

// Linear maps Domain onto Range proportionally.
type Linear struct {
	Domain [2]float64
	Range  [2]float64
	Clamp  bool
}

func (s Linear) Map(v float64) float64 {
	d0, d1 := s.Domain[0], s.Domain[1]
	if d1 == d0 {
		// collapsed domain: every value sits in the middle of the range
		return (s.Range[0] + s.Range[1]) / 2
	}
	t := (v - d0) / (d1 - d0)
	if s.Clamp {
		t = math.Max(0, math.Min(1, t))
	}
	return s.Range[0] + t*(s.Range[1]-s.Range[0])
}

// Sqrt maps the square root of the value, so circle areas stay
// proportional to the data.
type Sqrt struct {
	Domain [2]float64
	Range  [2]float64
	Clamp  bool
}

func (s Sqrt) Map(v float64) float64 {
	return Linear{
		Domain: [2]float64{signedSqrt(s.Domain[0]), signedSqrt(s.Domain[1])},
		Range:  s.Range,
		Clamp:  s.Clamp,
	}.Map(signedSqrt(v))
}

// Ratio is a linear scale normalised to [0,1], used for color ramps.
func Ratio(domain [2]float64) Scale {
	return Linear{Domain: domain, Range: [2]float64{0, 1}, Clamp: true}
}

// NewScale builds a named scale.
func NewScale(kind string, domain, rng [2]float64) (Scale, error) {
	switch kind {
	case "linear", "":
		return Linear{Domain: domain, Range: rng}, nil
	case "sqrt":
		return Sqrt{Domain: domain, Range: rng}, nil
	default:
		return nil, fmt.Errorf("unknown scale: %s", kind)
	}
}

// Extent returns the minimum and maximum of values. ok is false when values
// is empty.
func Extent(values []float64) (lo, hi float64, ok bool) {
	if len(values) == 0 {
		return 0, 0, false
	}
	lo, hi = values[0], values[0]
	for _, v := range values[1:] {
		if v < lo {
			lo = v
		}
		if v > hi {
			hi = v
		}
	}
	return lo, hi, true
}

func signedSqrt(v float64) float64 {
	if v < 0 {
		return -math.Sqrt(-v)
	}
	return math.Sqrt(v)
}
