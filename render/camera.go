package render

import (
	"math"
	"sync"

	"gonum.org/v1/gonum/spatial/r3"
)

// DefaultFieldOfView is the vertical field of view in degrees.
const DefaultFieldOfView = 45

// Camera is a pinhole camera.  A single camera is usually shared by all renderers
// of a dataset.
type Camera struct {
	mu          sync.RWMutex
	imageWidth  int
	imageHeight int
	position    r3.Vec
	up          r3.Vec
	view        r3.Vec
	fov         float64
}

// NewCamera returns a camera at the origin looking down -z with y up.
func NewCamera(width, height int) *Camera {
	return &Camera{
		imageWidth:  width,
		imageHeight: height,
		up:          r3.Vec{Y: 1},
		view:        r3.Vec{Z: -1},
		fov:         DefaultFieldOfView,
	}
}

func (c *Camera) SetPosition(x, y, z float64) {
	c.mu.Lock()
	c.position = r3.Vec{X: x, Y: y, Z: z}
	c.mu.Unlock()
}

func (c *Camera) Position() r3.Vec {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.position
}

func (c *Camera) SetUpVector(x, y, z float64) {
	c.mu.Lock()
	c.up = r3.Vec{X: x, Y: y, Z: z}
	c.mu.Unlock()
}

func (c *Camera) UpVector() r3.Vec {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.up
}

// SetView sets the viewing direction.
func (c *Camera) SetView(x, y, z float64) {
	c.mu.Lock()
	c.view = r3.Vec{X: x, Y: y, Z: z}
	c.mu.Unlock()
}

func (c *Camera) View() r3.Vec {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.view
}

// SetImageSize sets the image width and height in pixels.
func (c *Camera) SetImageSize(width, height int) {
	c.mu.Lock()
	c.imageWidth, c.imageHeight = width, height
	c.mu.Unlock()
}

func (c *Camera) ImageWidth() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.imageWidth
}

func (c *Camera) ImageHeight() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.imageHeight
}

func (c *Camera) state() cameraState {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return cameraState{position: c.position, up: c.up, view: c.view, fov: c.fov}
}

// cameraState is an immutable copy of the pose used while rendering a frame.
type cameraState struct {
	position, up, view r3.Vec
	fov                float64
}

// basis returns the orthonormal forward, right and up vectors of the camera.
// Degenerate view or up vectors fall back to the default orientation.
func (cs cameraState) basis() (forward, right, up r3.Vec) {
	forward = r3.Vec{Z: -1}
	if r3.Norm(cs.view) > 0 {
		forward = r3.Unit(cs.view)
	}
	up = cs.up
	right = r3.Cross(forward, up)
	if r3.Norm(right) < 1e-9 {
		// up is parallel to the view direction; pick any perpendicular.
		up = r3.Vec{Y: 1}
		if math.Abs(forward.Y) > 0.9 {
			up = r3.Vec{Z: 1}
		}
		right = r3.Cross(forward, up)
	}
	right = r3.Unit(right)
	up = r3.Cross(right, forward)
	return forward, right, up
}
