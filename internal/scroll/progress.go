package scroll

import (
	"errors"
	"fmt"
	"math"
)

// ErrInvalidRegion is returned when a region cannot be tracked.
var ErrInvalidRegion = errors.New("invalid tracked region")

// Region is a tracked section of the page, in document pixels.
type Region struct {
	ID     string  `yaml:"id"`
	Top    float64 `yaml:"top"`
	Height float64 `yaml:"height"`
}

// Validate rejects regions that progress cannot be computed for.
func (r Region) Validate() error {
	if r.Height <= 0 || math.IsNaN(r.Height) || math.IsInf(r.Height, 0) {
		return fmt.Errorf("%w: region %q has height %v", ErrInvalidRegion, r.ID, r.Height)
	}
	if math.IsNaN(r.Top) || math.IsInf(r.Top, 0) {
		return fmt.Errorf("%w: region %q has top %v", ErrInvalidRegion, r.ID, r.Top)
	}
	return nil
}

// ComputeProgress maps a scroll position to progress through the region.
//
// Progress is 0 when the region's top edge reaches the viewport top and 1 when
// its bottom edge reaches the viewport bottom. Regions that fit inside the
// viewport have no scrollable span: they report 0 until the page has been
// scrolled fully past them, then 1.
func ComputeProgress(region Region, scrollY, viewportHeight float64) float64 {
	if region.Height <= 0 || math.IsNaN(scrollY) || math.IsNaN(viewportHeight) {
		return 0
	}

	span := region.Height - viewportHeight
	if span <= 0 {
		if scrollY >= region.Top+region.Height {
			return 1
		}
		return 0
	}

	return Clamp((scrollY-region.Top)/span, 0, 1)
}

// Clamp limits v to [lo, hi]. NaN clamps to lo.
func Clamp(v, lo, hi float64) float64 {
	if math.IsNaN(v) || v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
