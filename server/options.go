package server

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/janelia-flyem/volrender/catalog"
	"github.com/janelia-flyem/volrender/volrender"
)

const (
	// HighQualitySize is the image width and height forced by "hq,true".
	HighQualitySize = 8192

	// HighQualitySamples is the number of rays per pixel forced by "hq,true".
	HighQualitySamples = 8
)

// errImageNotFound is returned when a request names a dataset or time step that
// doesn't exist.
var errImageNotFound = errors.New("Image does not exist")

// Directive is one parsed key/value pair of a request's option string.
type Directive interface {
	apply(rc *catalog.RenderContext, st *requestState) error
}

// SetColormap applies a built-in colormap to the volume of the selected renderer.
type SetColormap struct {
	Name string
}

// SetHighQuality renders very large, supersampled images with renderer 0.
type SetHighQuality struct {
	Enabled bool
}

// SetTimestep selects the renderer of a time step.
type SetTimestep struct {
	Value string
}

// SetOnlySave writes the image to a file instead of returning it.
type SetOnlySave struct {
	Filename string
}

// SetFilenameStep selects the renderer whose volume comes from the named file.
type SetFilenameStep struct {
	Filename string
}

// requestState is the per-request selection built up by applying directives.
type requestState struct {
	rendererIndex int
	onlySave      bool
	saveFilename  string
}

// ParseOptions splits a comma-separated option string into directives, in order.
// Each recognized key takes the following token as its value; a key at the end
// of the string gets an empty value.  Unknown keys are ignored.
func ParseOptions(options string) []Directive {
	tokens := strings.Split(options, ",")
	var directives []Directive
	for i := 0; i < len(tokens); i++ {
		key := tokens[i]
		var value string
		if i+1 < len(tokens) {
			value = tokens[i+1]
		}
		var d Directive
		switch key {
		case "colormap":
			d = SetColormap{Name: value}
		case "hq":
			d = SetHighQuality{Enabled: value == "true"}
		case "timestep":
			d = SetTimestep{Value: value}
		case "onlysave":
			d = SetOnlySave{Filename: value}
		case "filename":
			d = SetFilenameStep{Filename: value}
		default:
			continue
		}
		directives = append(directives, d)
		i++
	}
	return directives
}

// applyDirectives applies directives in order, stopping at the first error.
func applyDirectives(rc *catalog.RenderContext, st *requestState, directives []Directive) error {
	for _, d := range directives {
		if err := d.apply(rc, st); err != nil {
			return err
		}
	}
	return nil
}

func (d SetColormap) apply(rc *catalog.RenderContext, st *requestState) error {
	switch d.Name {
	case "viridis", "magma":
		rc.SetColorMap(st.rendererIndex, d.Name)
	default:
		volrender.Debugf("Ignoring unsupported colormap %q for dataset %q\n", d.Name, rc.Name)
	}
	return nil
}

func (d SetHighQuality) apply(rc *catalog.RenderContext, st *requestState) error {
	if !d.Enabled {
		return nil
	}
	volrender.Infof("Rendering dataset %q at %d x %d with %d samples\n", rc.Name,
		HighQualitySize, HighQualitySize, HighQualitySamples)
	size := catalog.Size{Width: HighQualitySize, Height: HighQualitySize}
	rc.MaxSize[0] = size
	rc.SetSize(0, size)
	rc.Renderers[0].SetSamples(HighQualitySamples)
	return nil
}

func (d SetTimestep) apply(rc *catalog.RenderContext, st *requestState) error {
	step, err := strconv.Atoi(d.Value)
	if err != nil {
		volrender.Warningf("Invalid timestep %q for dataset %q\n", d.Value, rc.Name)
		return nil
	}
	if step < 0 || step >= rc.Length() {
		volrender.Warningf("Invalid timestep %d for dataset %q with %d steps\n", step, rc.Name, rc.Length())
		return nil
	}
	st.rendererIndex = step
	return nil
}

func (d SetOnlySave) apply(rc *catalog.RenderContext, st *requestState) error {
	if err := checkSaveName(d.Filename); err != nil {
		return err
	}
	st.onlySave = true
	st.saveFilename = d.Filename
	return nil
}

func (d SetFilenameStep) apply(rc *catalog.RenderContext, st *requestState) error {
	index := rc.IndexByName(d.Filename)
	if index < 0 {
		volrender.Infof("No time step of dataset %q comes from file %q\n", rc.Name, d.Filename)
		return errImageNotFound
	}
	st.rendererIndex = index
	return nil
}

// badSaveName is returned for "onlysave" names that would escape the save directory.
type badSaveName string

func (b badSaveName) Error() string {
	return fmt.Sprintf("bad save filename %q", string(b))
}

func checkSaveName(name string) error {
	if name == "" || name == "." || strings.ContainsAny(name, `/\`) || strings.Contains(name, "..") {
		return badSaveName(name)
	}
	return nil
}
