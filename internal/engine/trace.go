package engine

import (
	"fmt"
	"math"

	"github.com/ivlev/scrollviz/internal/dataset"
)

// maxTraceFrames bounds traces read from disk.
const maxTraceFrames = 1 << 20

// Point is one scroll event.
type Point struct {
	ScrollY  float64
	Viewport float64
	// Hover names the element under the pointer, empty for none.
	Hover string
}

// Trace holds the scroll events of each output frame. A frame may carry
// several events, or none when the page did not move.
type Trace [][]Point

// Samples counts all events in the trace.
func (t Trace) Samples() int {
	n := 0
	for _, f := range t {
		n += len(f)
	}
	return n
}

// SyntheticTrace scrolls from start to end at speed px/s. Each frame
// carries events evenly spaced since the previous frame, as a wheel or
// touchpad would deliver them.
func SyntheticTrace(start, end, speed float64, fps, eventsPerFrame int, viewport float64) (Trace, error) {
	if speed <= 0 || fps <= 0 {
		return nil, fmt.Errorf("invalid sweep speed %g at %d fps", speed, fps)
	}
	if end < start {
		return nil, fmt.Errorf("sweep end %g is before start %g", end, start)
	}
	if eventsPerFrame < 1 {
		eventsPerFrame = 1
	}

	step := speed / float64(fps)
	frames := int(math.Ceil((end-start)/step)) + 1
	if frames > maxTraceFrames {
		return nil, fmt.Errorf("sweep needs %d frames, limit is %d", frames, maxTraceFrames)
	}

	trace := make(Trace, frames)
	prev := start
	for i := range trace {
		y := math.Min(start+float64(i)*step, end)
		events := eventsPerFrame
		if i == 0 {
			events = 1
		}
		points := make([]Point, events)
		for j := range points {
			frac := float64(j+1) / float64(events)
			points[j] = Point{ScrollY: prev + (y-prev)*frac, Viewport: viewport}
		}
		trace[i] = points
		prev = y
	}
	return trace, nil
}

// ReadTrace loads a CSV trace with the columns frame and scroll_y, and
// optionally viewport and hover. Rows sharing a frame number become events
// of the same frame; missing frame numbers become empty frames.
func ReadTrace(path string, viewport float64) (Trace, error) {
	table, err := dataset.ReadFile(path)
	if err != nil {
		return nil, err
	}
	for _, col := range []string{"frame", "scroll_y"} {
		if !table.HasColumn(col) {
			return nil, fmt.Errorf("trace %s: missing column %q", path, col)
		}
	}

	var trace Trace
	for i, row := range table.Rows {
		frame, err := dataset.ParseNumber(row["frame"])
		if err != nil || frame < 0 || frame != math.Trunc(frame) {
			return nil, fmt.Errorf("trace %s: row %d: invalid frame %q", path, i+1, row["frame"])
		}
		y, err := dataset.ParseNumber(row["scroll_y"])
		if err != nil {
			return nil, fmt.Errorf("trace %s: row %d: invalid scroll_y %q", path, i+1, row["scroll_y"])
		}
		vh := viewport
		if v, err := dataset.ParseNumber(row["viewport"]); err == nil && v > 0 {
			vh = v
		}

		n := int(frame)
		if n >= maxTraceFrames {
			return nil, fmt.Errorf("trace %s: frame %d exceeds limit %d", path, n, maxTraceFrames)
		}
		if n < len(trace)-1 {
			return nil, fmt.Errorf("trace %s: row %d: frame %d is out of order", path, i+1, n)
		}
		for len(trace) <= n {
			trace = append(trace, nil)
		}
		trace[n] = append(trace[n], Point{ScrollY: y, Viewport: vh, Hover: row["hover"]})
	}
	if len(trace) == 0 {
		return nil, fmt.Errorf("trace %s: no samples", path)
	}
	return trace, nil
}
