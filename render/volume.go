package render

import (
	"fmt"
	"math"
	"path/filepath"
	"sync"

	"github.com/dustin/go-humanize"

	"github.com/janelia-flyem/volrender/volrender"
)

// Volume is a 3d scalar field with its transfer function.  Scalar data may be
// loaded eagerly, on first render, or dropped and reloaded when a TimeSeries
// memory budget requires it.
type Volume struct {
	filename string
	variable string
	dims     [3]int

	mu          sync.RWMutex
	mapped      bool
	data        *grid
	colorMap    *ColorMap
	opacityMap  *OpacityMap
	attenuation float32

	// owner is set when the volume is one step of a time series.
	owner *TimeSeries
}

// NewVolume returns a volume for the given file, NetCDF variable (ignored for raw
// data) and dimensions.  If load is true, the data is read immediately.
func NewVolume(filename, variable string, x, y, z int, load bool) (*Volume, error) {
	if x <= 0 || y <= 0 || z <= 0 {
		return nil, fmt.Errorf("bad volume dimensions %d x %d x %d for %q", x, y, z, filename)
	}
	v := &Volume{
		filename:    filename,
		variable:    variable,
		dims:        [3]int{x, y, z},
		colorMap:    Grayscale,
		opacityMap:  Ramp,
		attenuation: 1,
	}
	if load {
		if err := v.Load(); err != nil {
			return nil, err
		}
	}
	return v, nil
}

// Filename returns the path of the volume's data file.
func (v *Volume) Filename() string {
	return v.filename
}

// Name returns the base name of the volume's data file.
func (v *Volume) Name() string {
	return filepath.Base(v.filename)
}

// Dims returns the number of voxels along x, y and z.
func (v *Volume) Dims() [3]int {
	return v.dims
}

func (v *Volume) SetColorMap(cm *ColorMap) {
	if cm == nil {
		return
	}
	v.mu.Lock()
	v.colorMap = cm
	v.mu.Unlock()
}

func (v *Volume) ColorMap() *ColorMap {
	v.mu.RLock()
	defer v.mu.RUnlock()
	return v.colorMap
}

func (v *Volume) SetOpacityMap(om *OpacityMap) {
	if om == nil {
		return
	}
	v.mu.Lock()
	v.opacityMap = om
	v.mu.Unlock()
}

func (v *Volume) OpacityMap() *OpacityMap {
	v.mu.RLock()
	defer v.mu.RUnlock()
	return v.opacityMap
}

// AttenuateOpacity scales all opacities of the transfer function by the given factor.
func (v *Volume) AttenuateOpacity(amount float32) {
	v.mu.Lock()
	v.attenuation = amount
	v.mu.Unlock()
}

func (v *Volume) Attenuation() float32 {
	v.mu.RLock()
	defer v.mu.RUnlock()
	return v.attenuation
}

// SetMemoryMapping determines whether uncompressed raw data is memory-mapped on
// the next load instead of being read into memory.
func (v *Volume) SetMemoryMapping(mapped bool) {
	v.mu.Lock()
	v.mapped = mapped
	v.mu.Unlock()
}

// Loaded returns true if the scalar data is currently resident.
func (v *Volume) Loaded() bool {
	v.mu.RLock()
	defer v.mu.RUnlock()
	return v.data != nil
}

// Mapped returns true if the resident data is memory-mapped from its file.
func (v *Volume) Mapped() bool {
	v.mu.RLock()
	defer v.mu.RUnlock()
	if v.data == nil {
		return false
	}
	_, ok := v.data.vox.(mappedVoxels)
	return ok
}

// SizeBytes returns the number of bytes used by the scalar data.
func (v *Volume) SizeBytes() int64 {
	return int64(v.dims[0]) * int64(v.dims[1]) * int64(v.dims[2]) * 4
}

// Load reads the volume data if it isn't already resident.
func (v *Volume) Load() error {
	_, err := v.grid()
	return err
}

// Unload drops the resident data.  Frames captured earlier keep rendering from
// the data they reference.
func (v *Volume) Unload() {
	v.mu.Lock()
	v.data = nil
	v.mu.Unlock()
}

func (v *Volume) transfer() transfer {
	v.mu.RLock()
	defer v.mu.RUnlock()
	return transfer{colorMap: v.colorMap, opacityMap: v.opacityMap, attenuation: v.attenuation}
}

// grid returns the resident sampling grid, loading it if necessary.
func (v *Volume) grid() (*grid, error) {
	v.mu.RLock()
	g := v.data
	v.mu.RUnlock()
	if g == nil {
		var err error
		if g, err = v.load(); err != nil {
			return nil, err
		}
	}
	if v.owner != nil {
		v.owner.touch(v)
	}
	return g, nil
}

func (v *Volume) load() (*grid, error) {
	v.mu.Lock()
	defer v.mu.Unlock()
	if v.data != nil {
		return v.data, nil
	}
	n := v.dims[0] * v.dims[1] * v.dims[2]
	vox, err := loadVoxels(v.filename, v.variable, n, v.mapped)
	if err != nil {
		return nil, err
	}
	v.data = newGrid(vox, v.dims)
	mapping := "read"
	if _, ok := vox.(mappedVoxels); ok {
		mapping = "mapped"
	}
	volrender.Debugf("Loaded volume %q (%d x %d x %d, %s %s)\n", v.filename,
		v.dims[0], v.dims[1], v.dims[2], humanize.Bytes(uint64(vox.SizeBytes())), mapping)
	return v.data, nil
}

// grid is an immutable, normalized view of volume data used for sampling.
type grid struct {
	vox        voxels
	nx, ny, nz int
	lo, scale  float32
}

func newGrid(vox voxels, dims [3]int) *grid {
	lo, hi := float32(math.Inf(1)), float32(math.Inf(-1))
	for i := 0; i < vox.Len(); i++ {
		val := vox.At(i)
		if val != val { // NaN
			continue
		}
		if val < lo {
			lo = val
		}
		if val > hi {
			hi = val
		}
	}
	g := &grid{vox: vox, nx: dims[0], ny: dims[1], nz: dims[2]}
	if hi > lo {
		g.lo = lo
		g.scale = 1 / (hi - lo)
	} else if !math.IsInf(float64(lo), 0) {
		g.lo = lo
	}
	return g
}

func (g *grid) value(x, y, z int) float32 {
	val := g.vox.At((z*g.ny+y)*g.nx + x)
	if val != val {
		return 0
	}
	return (val - g.lo) * g.scale
}

// sample returns the trilinearly interpolated, normalized value at continuous
// voxel coordinates.  Coordinates are clamped to the grid.
func (g *grid) sample(x, y, z float64) float32 {
	x0, fx := split(x, g.nx)
	y0, fy := split(y, g.ny)
	z0, fz := split(z, g.nz)
	x1, y1, z1 := next(x0, g.nx), next(y0, g.ny), next(z0, g.nz)

	c00 := lerp(g.value(x0, y0, z0), g.value(x1, y0, z0), fx)
	c10 := lerp(g.value(x0, y1, z0), g.value(x1, y1, z0), fx)
	c01 := lerp(g.value(x0, y0, z1), g.value(x1, y0, z1), fx)
	c11 := lerp(g.value(x0, y1, z1), g.value(x1, y1, z1), fx)
	return lerp(lerp(c00, c10, fy), lerp(c01, c11, fy), fz)
}

func split(c float64, n int) (int, float32) {
	if c <= 0 {
		return 0, 0
	}
	if c >= float64(n-1) {
		return n - 1, 0
	}
	i := int(c)
	return i, float32(c - float64(i))
}

func next(i, n int) int {
	if i+1 < n {
		return i + 1
	}
	return i
}

func lerp(a, b, t float32) float32 {
	return a + (b-a)*t
}
