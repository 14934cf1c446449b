package render

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/santhosh-tekuri/jsonschema/v5"
	"gopkg.in/yaml.v3"

	"github.com/janelia-flyem/volrender/volrender"
)

// ConfigState classifies a dataset descriptor.
type ConfigState uint8

const (
	Invalid ConfigState = iota
	SingleNoVar
	SingleVar
	MultiVar
	MultiNoVar
)

func (s ConfigState) String() string {
	switch s {
	case SingleNoVar:
		return "SingleNoVar"
	case SingleVar:
		return "SingleVar"
	case MultiVar:
		return "MultiVar"
	case MultiNoVar:
		return "MultiNoVar"
	default:
		return "Invalid"
	}
}

// IsTimeSeries returns true for descriptors whose filename names several volumes.
func (s ConfigState) IsTimeSeries() bool {
	return s == MultiVar || s == MultiNoVar
}

// IsSingle returns true for descriptors naming exactly one volume.
func (s ConfigState) IsSingle() bool {
	return s == SingleNoVar || s == SingleVar
}

// DescriptorExtensions are the recognized dataset descriptor file extensions.
var DescriptorExtensions = []string{".json", ".yaml", ".yml"}

// IsDescriptor returns true if the filename has a recognized descriptor extension.
func IsDescriptor(filename string) bool {
	ext := strings.ToLower(filepath.Ext(filename))
	for _, e := range DescriptorExtensions {
		if ext == e {
			return true
		}
	}
	return false
}

const descriptorSchema = `{
	"type": "object",
	"required": ["filename", "dimensions", "imageSize", "cameraPosition"],
	"properties": {
		"filename": {"type": "string"},
		"variable": {"type": "string"},
		"dimensions": {"type": "array", "items": {"type": "integer", "minimum": 1}, "minItems": 3, "maxItems": 3},
		"colorMap": {"type": "string"},
		"opacityMap": {"type": "string"},
		"opacityAttenuation": {"type": "number", "minimum": 0},
		"backgroundColor": {"type": "array", "items": {"type": "integer", "minimum": 0, "maximum": 255}, "minItems": 3, "maxItems": 3},
		"imageSize": {"type": "array", "items": {"type": "integer", "minimum": 1}, "minItems": 2, "maxItems": 2},
		"cameraPosition": {"type": "array", "items": {"type": "number"}, "minItems": 3, "maxItems": 3},
		"cameraUpVector": {"type": "array", "items": {"type": "number"}, "minItems": 3, "maxItems": 3},
		"cameraView": {"type": "array", "items": {"type": "number"}, "minItems": 3, "maxItems": 3},
		"samples": {"type": "integer", "minimum": 1}
	}
}`

var compiledSchema *jsonschema.Schema

func init() {
	var err error
	if compiledSchema, err = jsonschema.CompileString("descriptor.json", descriptorSchema); err != nil {
		panic(fmt.Sprintf("bad descriptor schema: %v", err))
	}
}

// descriptor is the on-disk form of a dataset descriptor.
type descriptor struct {
	Filename           string      `json:"filename"`
	Variable           string      `json:"variable"`
	Dimensions         [3]int      `json:"dimensions"`
	ColorMap           string      `json:"colorMap"`
	OpacityMap         string      `json:"opacityMap"`
	OpacityAttenuation *float32    `json:"opacityAttenuation"`
	BackgroundColor    [3]int      `json:"backgroundColor"`
	ImageSize          [2]int      `json:"imageSize"`
	CameraPosition     [3]float64  `json:"cameraPosition"`
	CameraUpVector     *[3]float64 `json:"cameraUpVector"`
	CameraView         *[3]float64 `json:"cameraView"`
	Samples            int         `json:"samples"`
}

// Configuration is a parsed dataset descriptor.
type Configuration struct {
	// Path of the descriptor file, empty if built in memory.
	Path string

	ImageWidth  int
	ImageHeight int

	// DataFilename is the absolute volume path or glob.
	DataFilename string

	// GlobbedFilenames holds the sorted expansion of a glob DataFilename.
	GlobbedFilenames []string

	DataVariable string
	DataXDim     int
	DataYDim     int
	DataZDim     int

	ColorMap           string
	OpacityMap         string
	OpacityAttenuation float32
	BackgroundColor    [3]int

	CameraX, CameraY, CameraZ float64
	CameraUp                  *[3]float64
	CameraView                *[3]float64
	Samples                   int
}

// LoadConfiguration reads and validates a JSON or YAML dataset descriptor.
func LoadConfiguration(path string) (*Configuration, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	ext := strings.ToLower(filepath.Ext(path))
	if ext == ".yaml" || ext == ".yml" {
		if data, err = yamlToJSON(data); err != nil {
			return nil, fmt.Errorf("descriptor %q: %v", path, err)
		}
	}
	c, err := NewConfiguration(data, filepath.Dir(path))
	if err != nil {
		return nil, fmt.Errorf("descriptor %q: %v", path, err)
	}
	c.Path = path
	return c, nil
}

// NewConfiguration parses a JSON descriptor.  Relative volume paths are resolved
// against baseDir.
func NewConfiguration(data []byte, baseDir string) (*Configuration, error) {
	var doc interface{}
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("bad JSON: %v", err)
	}
	if err := compiledSchema.Validate(doc); err != nil {
		return nil, err
	}
	var d descriptor
	dec := json.NewDecoder(bytes.NewReader(data))
	if err := dec.Decode(&d); err != nil {
		return nil, fmt.Errorf("bad descriptor: %v", err)
	}

	c := &Configuration{
		ImageWidth:         d.ImageSize[0],
		ImageHeight:        d.ImageSize[1],
		DataVariable:       d.Variable,
		DataXDim:           d.Dimensions[0],
		DataYDim:           d.Dimensions[1],
		DataZDim:           d.Dimensions[2],
		ColorMap:           d.ColorMap,
		OpacityMap:         d.OpacityMap,
		OpacityAttenuation: 1,
		BackgroundColor:    d.BackgroundColor,
		CameraX:            d.CameraPosition[0],
		CameraY:            d.CameraPosition[1],
		CameraZ:            d.CameraPosition[2],
		CameraUp:           d.CameraUpVector,
		CameraView:         d.CameraView,
		Samples:            d.Samples,
	}
	if c.ColorMap == "" {
		c.ColorMap = Grayscale.Name()
	}
	if c.OpacityMap == "" {
		c.OpacityMap = Ramp.Name()
	}
	if d.OpacityAttenuation != nil {
		c.OpacityAttenuation = *d.OpacityAttenuation
	}
	if c.Samples == 0 {
		c.Samples = DefaultSamples
	}
	if d.Filename != "" {
		var err error
		if c.DataFilename, err = volrender.ConvertToAbsolute(d.Filename, baseDir); err != nil {
			return nil, err
		}
		if volrender.HasGlob(c.DataFilename) {
			matches, err := filepath.Glob(c.DataFilename)
			if err != nil {
				return nil, fmt.Errorf("bad filename pattern %q: %v", d.Filename, err)
			}
			sort.Strings(matches)
			c.GlobbedFilenames = matches
		}
	}
	return c, nil
}

// State classifies the descriptor.
func (c *Configuration) State() ConfigState {
	if c.DataFilename == "" {
		return Invalid
	}
	hasVar := c.DataVariable != ""
	if volrender.HasGlob(c.DataFilename) {
		if len(c.GlobbedFilenames) == 0 {
			return Invalid
		}
		if hasVar {
			return MultiVar
		}
		return MultiNoVar
	}
	if hasVar {
		return SingleVar
	}
	return SingleNoVar
}

// Background returns the background color in [0,1] components.
func (c *Configuration) Background() Color {
	return ColorFromRGB8(c.BackgroundColor[0], c.BackgroundColor[1], c.BackgroundColor[2])
}

// yamlToJSON converts a YAML document into the equivalent JSON document.
func yamlToJSON(data []byte) ([]byte, error) {
	var doc interface{}
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("bad YAML: %v", err)
	}
	doc, err := jsonCompatible(doc)
	if err != nil {
		return nil, err
	}
	return json.Marshal(doc)
}

func jsonCompatible(v interface{}) (interface{}, error) {
	switch t := v.(type) {
	case map[string]interface{}:
		for k, val := range t {
			conv, err := jsonCompatible(val)
			if err != nil {
				return nil, err
			}
			t[k] = conv
		}
		return t, nil
	case map[interface{}]interface{}:
		m := make(map[string]interface{}, len(t))
		for k, val := range t {
			ks, ok := k.(string)
			if !ok {
				return nil, fmt.Errorf("non-string key %v", k)
			}
			conv, err := jsonCompatible(val)
			if err != nil {
				return nil, err
			}
			m[ks] = conv
		}
		return m, nil
	case []interface{}:
		for i, val := range t {
			conv, err := jsonCompatible(val)
			if err != nil {
				return nil, err
			}
			t[i] = conv
		}
		return t, nil
	default:
		return v, nil
	}
}
