/*
	Package catalog discovers dataset descriptors in a configuration directory and
	builds one RenderContext per dataset.  The catalog is built once before serving
	and its set of datasets never changes afterwards, although each context's camera,
	renderer sizes and transfer functions are modified by requests.
*/
package catalog

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"github.com/dustin/go-humanize"

	"github.com/janelia-flyem/volrender/render"
	"github.com/janelia-flyem/volrender/volrender"
)

// Options control how datasets are instantiated.
type Options struct {
	// MaxMemoryGB bounds the resident volume data of each time series.
	MaxMemoryGB int

	// MemoryMapping maps uncompressed raw time steps instead of reading them.
	MemoryMapping bool
}

// DefaultOptions are used when no server configuration overrides them.
var DefaultOptions = Options{
	MaxMemoryGB:   30,
	MemoryMapping: true,
}

// Error is returned when the configuration directory cannot be read.
type Error struct {
	Dir string
	Err error
}

func (e *Error) Error() string {
	return fmt.Sprintf("cannot read configuration directory %q: %v", e.Dir, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Catalog maps dataset names to their render contexts.
type Catalog map[string]*RenderContext

// Names returns the sorted dataset names.
func (c Catalog) Names() []string {
	names := make([]string, 0, len(c))
	for name := range c {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Get returns the named render context or nil if there is no such dataset.
func (c Catalog) Get(name string) *RenderContext {
	return c[name]
}

// Build scans dir for dataset descriptors and creates a render context for each
// valid one.  Descriptors that cannot be parsed, have an invalid classification or
// whose volumes cannot be created are logged and skipped.  Only a failure to read
// the directory itself returns an error.
func Build(dir string, opts Options) (Catalog, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, &Error{Dir: dir, Err: err}
	}
	timedLog := volrender.NewTimeLog()
	cat := make(Catalog)
	for _, entry := range entries {
		if entry.IsDir() || !render.IsDescriptor(entry.Name()) {
			continue
		}
		path := filepath.Join(dir, entry.Name())
		config, err := render.LoadConfiguration(path)
		if err != nil {
			volrender.Errorf("Skipping dataset descriptor: %v\n", err)
			continue
		}
		name := volrender.TrimExt(entry.Name())
		if _, found := cat[name]; found {
			volrender.Warningf("Skipping descriptor %q: dataset %q already defined\n", path, name)
			continue
		}
		rc, err := NewRenderContext(name, config, opts)
		if err != nil {
			volrender.Warningf("Skipping dataset %q: %v\n", name, err)
			continue
		}
		cat[name] = rc
		volrender.Infof("Added dataset %q (%s, %d time steps, %d x %d)\n", name,
			config.State(), rc.Length(), config.ImageWidth, config.ImageHeight)
	}
	timedLog.Infof("Built catalog of %d datasets from %s", len(cat), dir)
	return cat, nil
}

// NewRenderContext instantiates the volumes, camera and renderers described by config.
func NewRenderContext(name string, config *render.Configuration, opts Options) (*RenderContext, error) {
	state := config.State()
	rc := &RenderContext{
		Name:   name,
		Config: config,
		Camera: newCamera(config),
	}
	colorMap, opacityMap := transferFunction(name, config)
	switch {
	case state.IsSingle():
		vol, err := render.NewVolume(config.DataFilename, config.DataVariable,
			config.DataXDim, config.DataYDim, config.DataZDim, false)
		if err != nil {
			return nil, err
		}
		vol.SetMemoryMapping(opts.MemoryMapping)
		if err := vol.Load(); err != nil {
			return nil, err
		}
		vol.SetColorMap(colorMap)
		vol.SetOpacityMap(opacityMap)
		vol.AttenuateOpacity(config.OpacityAttenuation)
		rc.Volume = vol
		rc.addRenderer(vol)

	case state.IsTimeSeries():
		ts, err := render.NewTimeSeries(config.GlobbedFilenames, config.DataVariable,
			config.DataXDim, config.DataYDim, config.DataZDim)
		if err != nil {
			return nil, err
		}
		ts.SetMemoryMapping(opts.MemoryMapping)
		ts.SetMaxMemory(opts.MaxMemoryGB)
		ts.SetColorMap(colorMap)
		ts.SetOpacityMap(opacityMap)
		ts.SetOpacityAttenuation(config.OpacityAttenuation)
		rc.TimeSeries = ts
		for i := 0; i < ts.Length(); i++ {
			rc.addRenderer(ts.GetVolume(i))
		}
		if opts.MaxMemoryGB > 0 {
			volrender.Debugf("Dataset %q: %d time steps, memory budget %s\n", name, ts.Length(),
				humanize.Bytes(uint64(opts.MaxMemoryGB)*volrender.Giga))
		}

	default:
		return nil, fmt.Errorf("descriptor %q has invalid configuration state", config.Path)
	}
	return rc, nil
}

func newCamera(config *render.Configuration) *render.Camera {
	cam := render.NewCamera(config.ImageWidth, config.ImageHeight)
	cam.SetPosition(config.CameraX, config.CameraY, config.CameraZ)
	if up := config.CameraUp; up != nil {
		cam.SetUpVector(up[0], up[1], up[2])
	}
	if view := config.CameraView; view != nil {
		cam.SetView(view[0], view[1], view[2])
	}
	return cam
}

// transferFunction resolves the descriptor's map names, falling back to the
// engine defaults for unknown names.
func transferFunction(name string, config *render.Configuration) (*render.ColorMap, *render.OpacityMap) {
	cm, err := render.ColorMapByName(config.ColorMap)
	if err != nil {
		volrender.Warningf("Dataset %q: %v, using grayscale\n", name, err)
		cm = render.Grayscale
	}
	om, err := render.OpacityMapByName(config.OpacityMap)
	if err != nil {
		volrender.Warningf("Dataset %q: %v, using ramp\n", name, err)
		om = render.Ramp
	}
	return cm, om
}
