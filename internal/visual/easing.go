package visual

import (
	"fmt"
	"strings"
)

// Easing maps [0,1] onto [0,1] with Easing(0) == 0 and Easing(1) == 1.
type Easing func(t float64) float64

func Linear(t float64) float64 { return t }

func QuadIn(t float64) float64 { return t * t }

func QuadOut(t float64) float64 { return t * (2 - t) }

func QuadInOut(t float64) float64 {
	if t < 0.5 {
		return 2 * t * t
	}
	return -1 + (4-2*t)*t
}

func CubicIn(t float64) float64 { return pow(t, 3) }

func CubicOut(t float64) float64 { return 1 - pow(1-t, 3) }

// CubicInOut is the smooth in-out curve used for morphs.
func CubicInOut(t float64) float64 {
	if t < 0.5 {
		return 4 * t * t * t
	}
	return 1 - pow(-2*t+2, 3)/2
}

var easings = map[string]Easing{
	"linear":       Linear,
	"quad-in":      QuadIn,
	"quad-out":     QuadOut,
	"quad-in-out":  QuadInOut,
	"cubic-in":     CubicIn,
	"cubic-out":    CubicOut,
	"cubic-in-out": CubicInOut,
}

// EasingByName looks up an easing; the empty name is linear.
func EasingByName(name string) (Easing, error) {
	key := strings.ToLower(strings.TrimSpace(name))
	if key == "" {
		return Linear, nil
	}
	e, ok := easings[key]
	if !ok {
		return nil, fmt.Errorf("unknown easing: %s", name)
	}
	return e, nil
}

// pow calculates x^n
func pow(x float64, n int) float64 {
	result := 1.0
	for i := 0; i < n; i++ {
		result *= x
	}
	return result
}
