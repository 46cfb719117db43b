package renderer

import (
	"github.com/ivlev/scrollviz/internal/visual"
)

// CameraElement is the reserved element id that pans and zooms the scene.
const CameraElement = "camera"

// CameraState represents the camera position and zoom at a specific moment
type CameraState struct {
	X    float64 // Pan X position (center point in pixels)
	Y    float64 // Pan Y position (center point in pixels)
	Zoom float64 // Zoom level (1.0 = no zoom)
}

// cameraFrom reads the camera element; without one the scene is shown 1:1.
func cameraFrom(elements map[string]visual.Params, width, height int) CameraState {
	cam := CameraState{X: float64(width) / 2, Y: float64(height) / 2, Zoom: 1}
	p, ok := elements[CameraElement]
	if !ok {
		return cam
	}
	cam.X = p.Num("x", cam.X)
	cam.Y = p.Num("y", cam.Y)
	cam.Zoom = p.Num("zoom", 1)
	if cam.Zoom <= 0 {
		cam.Zoom = 1
	}
	return cam
}

// apply maps scene coordinates to pixels.
func (c CameraState) apply(x, y float64, width, height int) (float64, float64) {
	return (x-c.X)*c.Zoom + float64(width)/2, (y-c.Y)*c.Zoom + float64(height)/2
}

func (c CameraState) scale(v float64) float64 {
	return v * c.Zoom
}
