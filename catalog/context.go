package catalog

import (
	"path/filepath"
	"sync"

	"github.com/janelia-flyem/volrender/render"
)

// Size is an image size in pixels.
type Size struct {
	Width, Height int
}

// RenderContext holds everything needed to render one dataset.  All time steps
// share a single camera.  The embedded mutex must be held while modifying the
// context and capturing a frame from one of its renderers.
type RenderContext struct {
	sync.Mutex

	Name   string
	Config *render.Configuration

	// Exactly one of Volume and TimeSeries is set.
	Volume     *render.Volume
	TimeSeries *render.TimeSeries

	Camera    *render.Camera
	Renderers []*render.Renderer

	// MaxSize is the largest image each renderer will produce.  It starts at the
	// descriptor's image size.
	MaxSize []Size
}

func (rc *RenderContext) addRenderer(vol *render.Volume) {
	r := render.NewRenderer()
	r.SetVolume(vol)
	r.SetCamera(rc.Camera)
	r.SetBackgroundColor(rc.Config.Background())
	r.SetSamples(rc.Config.Samples)
	rc.Renderers = append(rc.Renderers, r)
	rc.MaxSize = append(rc.MaxSize, Size{rc.Config.ImageWidth, rc.Config.ImageHeight})
}

// IsTimeSeries returns true if the dataset has a renderer per time step.
func (rc *RenderContext) IsTimeSeries() bool {
	return rc.TimeSeries != nil
}

// Length returns the number of addressable time steps, 1 for a single volume.
func (rc *RenderContext) Length() int {
	if rc.TimeSeries != nil {
		return rc.TimeSeries.Length()
	}
	return 1
}

// IndexByName returns the time step whose volume file has the given name, or -1.
// A single volume dataset matches its own file name at index 0.
func (rc *RenderContext) IndexByName(name string) int {
	if rc.TimeSeries != nil {
		return rc.TimeSeries.GetVolumeIndexByName(name)
	}
	if rc.Volume == nil || name == "" {
		return -1
	}
	if name == rc.Volume.Filename() || filepath.Base(name) == rc.Volume.Name() {
		return 0
	}
	return -1
}

// VolumeAt returns the volume rendered by the i-th renderer.
func (rc *RenderContext) VolumeAt(i int) *render.Volume {
	if i < 0 || i >= len(rc.Renderers) {
		return nil
	}
	return rc.Renderers[i].Volume()
}

// SetColorMap applies a built-in colormap to the volume of the i-th renderer.
// It returns false if the name or index isn't known.
func (rc *RenderContext) SetColorMap(i int, name string) bool {
	vol := rc.VolumeAt(i)
	if vol == nil {
		return false
	}
	cm, err := render.ColorMapByName(name)
	if err != nil {
		return false
	}
	vol.SetColorMap(cm)
	return true
}

// SetSize sets the image size of the i-th renderer and the shared camera.
func (rc *RenderContext) SetSize(i int, size Size) {
	rc.Renderers[i].SetSize(size.Width, size.Height)
	rc.Camera.SetImageSize(size.Width, size.Height)
}
