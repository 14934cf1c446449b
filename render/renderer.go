package render

import (
	"fmt"
	"image"
	"image/color"
	"image/png"
	"io"
	"math"
	"os"
	"path/filepath"
	"sync"

	"golang.org/x/sync/errgroup"
	"gonum.org/v1/gonum/spatial/r3"

	"github.com/janelia-flyem/volrender/volrender"
)

// DefaultSamples is the number of rays cast per pixel unless set otherwise.
const DefaultSamples = 1

// rowsPerBand is the number of image rows rendered by one goroutine at a time.
const rowsPerBand = 16

// Renderer renders a volume as seen through a camera.
type Renderer struct {
	mu           sync.RWMutex
	cameraWidth  int
	cameraHeight int
	volume       *Volume
	camera       *Camera
	background   Color
	samples      int
}

// NewRenderer returns a renderer with no volume or camera attached.
func NewRenderer() *Renderer {
	return &Renderer{samples: DefaultSamples}
}

func (r *Renderer) SetVolume(v *Volume) {
	r.mu.Lock()
	r.volume = v
	r.mu.Unlock()
}

func (r *Renderer) Volume() *Volume {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.volume
}

// SetCamera attaches a camera and adopts its image size.
func (r *Renderer) SetCamera(c *Camera) {
	r.mu.Lock()
	r.camera = c
	if c != nil {
		r.cameraWidth, r.cameraHeight = c.ImageWidth(), c.ImageHeight()
	}
	r.mu.Unlock()
}

func (r *Renderer) Camera() *Camera {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.camera
}

func (r *Renderer) SetBackgroundColor(c Color) {
	r.mu.Lock()
	r.background = c
	r.mu.Unlock()
}

// SetSamples sets the number of rays per pixel.
func (r *Renderer) SetSamples(n int) {
	if n < 1 {
		n = 1
	}
	r.mu.Lock()
	r.samples = n
	r.mu.Unlock()
}

func (r *Renderer) Samples() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.samples
}

// SetSize sets the output image size in pixels.
func (r *Renderer) SetSize(width, height int) {
	r.mu.Lock()
	r.cameraWidth, r.cameraHeight = width, height
	r.mu.Unlock()
}

func (r *Renderer) CameraWidth() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.cameraWidth
}

func (r *Renderer) CameraHeight() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.cameraHeight
}

// Frame captures everything needed to render the current state.  Later changes to
// the renderer, its camera or its volume's transfer function don't affect the frame.
func (r *Renderer) Frame() Frame {
	r.mu.RLock()
	defer r.mu.RUnlock()
	f := Frame{
		Width:      r.cameraWidth,
		Height:     r.cameraHeight,
		Samples:    r.samples,
		Background: r.background,
		volume:     r.volume,
	}
	if r.camera != nil {
		f.camera = r.camera.state()
	} else {
		f.camera = NewCamera(0, 0).state()
	}
	if r.volume != nil {
		f.tf = r.volume.transfer()
	}
	return f
}

// RenderImage renders the current state into a PNG file.
func (r *Renderer) RenderImage(path string) error {
	return r.Frame().SaveImage(path)
}

// RenderToPNG renders the current state and writes it as PNG.
func (r *Renderer) RenderToPNG(w io.Writer) error {
	return r.Frame().WritePNG(w)
}

type transfer struct {
	colorMap    *ColorMap
	opacityMap  *OpacityMap
	attenuation float32
}

// Frame is an immutable description of one image to render.
type Frame struct {
	Width, Height int
	Samples       int
	Background    Color

	camera cameraState
	volume *Volume
	tf     transfer
}

// Signature returns a string that is identical for frames producing identical images.
func (f Frame) Signature() string {
	var volName, cmName, omName string
	if f.volume != nil {
		volName = f.volume.Filename()
	}
	if f.tf.colorMap != nil {
		cmName = f.tf.colorMap.Name()
	}
	if f.tf.opacityMap != nil {
		omName = f.tf.opacityMap.Name()
	}
	c := f.camera
	return fmt.Sprintf("%s|%dx%d|s%d|bg%v|%s|%s|%g|p%g,%g,%g|u%g,%g,%g|v%g,%g,%g|f%g",
		volName, f.Width, f.Height, f.Samples, f.Background, cmName, omName, f.tf.attenuation,
		c.position.X, c.position.Y, c.position.Z, c.up.X, c.up.Y, c.up.Z,
		c.view.X, c.view.Y, c.view.Z, c.fov)
}

// WritePNG renders the frame and writes it as PNG.
func (f Frame) WritePNG(w io.Writer) error {
	img, err := f.Render()
	if err != nil {
		return err
	}
	return png.Encode(w, img)
}

// SaveImage renders the frame into a PNG file, creating parent directories.
func (f Frame) SaveImage(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return err
	}
	out, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := f.WritePNG(out); err != nil {
		out.Close()
		return err
	}
	return out.Close()
}

// Render ray marches the volume and returns the image.
func (f Frame) Render() (*image.NRGBA, error) {
	if f.Width <= 0 || f.Height <= 0 {
		return nil, fmt.Errorf("invalid image size %d x %d", f.Width, f.Height)
	}
	if f.volume == nil {
		return nil, fmt.Errorf("no volume attached to renderer")
	}
	g, err := f.volume.grid()
	if err != nil {
		return nil, err
	}
	m := newMarcher(f, g)
	img := image.NewNRGBA(image.Rect(0, 0, f.Width, f.Height))

	var eg errgroup.Group
	eg.SetLimit(volrender.NumCPU)
	for y0 := 0; y0 < f.Height; y0 += rowsPerBand {
		y0 := y0
		eg.Go(func() error {
			y1 := y0 + rowsPerBand
			if y1 > f.Height {
				y1 = f.Height
			}
			for y := y0; y < y1; y++ {
				for x := 0; x < f.Width; x++ {
					img.SetNRGBA(x, y, m.pixel(x, y))
				}
			}
			return nil
		})
	}
	if err := eg.Wait(); err != nil {
		return nil, err
	}
	return img, nil
}

// marcher holds the per-frame constants of the ray marching loop.
type marcher struct {
	f                     Frame
	g                     *grid
	origin                r3.Vec
	forward, right, up    r3.Vec
	halfW, halfH          float64
	extent                r3.Vec // half-size of the volume box, longest side spans [-1,1]
	step                  float64
	opacityCorrection     float64
	strataX, strataY, nss int
}

func newMarcher(f Frame, g *grid) *marcher {
	m := &marcher{f: f, g: g, origin: f.camera.position}
	m.forward, m.right, m.up = f.camera.basis()

	aspect := float64(f.Width) / float64(f.Height)
	m.halfH = math.Tan(f.camera.fov * math.Pi / 360)
	m.halfW = m.halfH * aspect

	maxDim := math.Max(float64(g.nx), math.Max(float64(g.ny), float64(g.nz)))
	m.extent = r3.Vec{X: float64(g.nx) / maxDim, Y: float64(g.ny) / maxDim, Z: float64(g.nz) / maxDim}
	voxel := 2 / maxDim
	m.step = voxel / 2
	m.opacityCorrection = m.step / voxel

	m.nss = f.Samples
	if m.nss < 1 {
		m.nss = 1
	}
	m.strataX = int(math.Ceil(math.Sqrt(float64(m.nss))))
	m.strataY = (m.nss + m.strataX - 1) / m.strataX
	return m
}

func (m *marcher) pixel(px, py int) color.NRGBA {
	var sum [3]float64
	for s := 0; s < m.nss; s++ {
		ox := (float64(s%m.strataX) + 0.5) / float64(m.strataX)
		oy := (float64(s/m.strataX) + 0.5) / float64(m.strataY)
		c := m.trace(float64(px)+ox, float64(py)+oy)
		for i := range sum {
			sum[i] += float64(c[i])
		}
	}
	n := float64(m.nss)
	return color.NRGBA{
		R: toByte(sum[0] / n),
		G: toByte(sum[1] / n),
		B: toByte(sum[2] / n),
		A: 255,
	}
}

// trace composites one ray front to back.  Image coordinates have y pointing down.
func (m *marcher) trace(sx, sy float64) Color {
	u := (2*sx/float64(m.f.Width) - 1) * m.halfW
	v := (1 - 2*sy/float64(m.f.Height)) * m.halfH
	dir := r3.Unit(r3.Add(m.forward, r3.Add(r3.Scale(u, m.right), r3.Scale(v, m.up))))

	bg := m.f.Background
	tnear, tfar, hit := m.intersect(dir)
	if !hit {
		return bg
	}
	if tnear < 0 {
		tnear = 0
	}

	var acc [3]float32
	var alpha float32
	tf := m.f.tf
	for t := tnear; t <= tfar; t += m.step {
		p := r3.Add(m.origin, r3.Scale(t, dir))
		val := m.g.sample(
			(p.X/m.extent.X+1)/2*float64(m.g.nx-1),
			(p.Y/m.extent.Y+1)/2*float64(m.g.ny-1),
			(p.Z/m.extent.Z+1)/2*float64(m.g.nz-1),
		)
		a := clamp01(tf.opacityMap.At(val) * tf.attenuation)
		if a <= 0 {
			continue
		}
		a = float32(1 - math.Pow(float64(1-a), m.opacityCorrection))
		c := tf.colorMap.At(val)
		w := (1 - alpha) * a
		acc[0] += w * c[0]
		acc[1] += w * c[1]
		acc[2] += w * c[2]
		alpha += w
		if alpha > 0.99 {
			break
		}
	}
	return Color{
		acc[0] + (1-alpha)*bg[0],
		acc[1] + (1-alpha)*bg[1],
		acc[2] + (1-alpha)*bg[2],
	}
}

// intersect returns the entry and exit distances of the ray with the volume box.
func (m *marcher) intersect(dir r3.Vec) (tnear, tfar float64, hit bool) {
	tnear, tfar = math.Inf(-1), math.Inf(1)
	o := [3]float64{m.origin.X, m.origin.Y, m.origin.Z}
	d := [3]float64{dir.X, dir.Y, dir.Z}
	e := [3]float64{m.extent.X, m.extent.Y, m.extent.Z}
	for i := 0; i < 3; i++ {
		if math.Abs(d[i]) < 1e-12 {
			if o[i] < -e[i] || o[i] > e[i] {
				return 0, 0, false
			}
			continue
		}
		t0 := (-e[i] - o[i]) / d[i]
		t1 := (e[i] - o[i]) / d[i]
		if t0 > t1 {
			t0, t1 = t1, t0
		}
		tnear = math.Max(tnear, t0)
		tfar = math.Min(tfar, t1)
	}
	return tnear, tfar, tnear <= tfar && tfar >= 0
}

func toByte(v float64) uint8 {
	if v <= 0 {
		return 0
	}
	if v >= 1 {
		return 255
	}
	return uint8(v*255 + 0.5)
}
