package render

import (
	"os"
	"path/filepath"
	"testing"
)

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}
}

func TestConfigurationStates(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "steps", "t_002.raw"), "")
	writeFile(t, filepath.Join(dir, "steps", "t_001.raw"), "")

	tests := []struct {
		filename string
		variable string
		expected ConfigState
	}{
		{"cube.raw", "", SingleNoVar},
		{"cube.nc", "density", SingleVar},
		{"steps/t_*.raw", "", MultiNoVar},
		{"steps/t_*.raw", "density", MultiVar},
		{"nothing/*.raw", "", Invalid},
		{"", "", Invalid},
	}
	for _, tc := range tests {
		desc := `{"filename": "` + tc.filename + `", "variable": "` + tc.variable + `",
			"dimensions": [4, 4, 4], "imageSize": [32, 16], "cameraPosition": [0, 0, 5]}`
		c, err := NewConfiguration([]byte(desc), dir)
		if err != nil {
			t.Fatalf("%q: %v", tc.filename, err)
		}
		if got := c.State(); got != tc.expected {
			t.Errorf("%q/%q classified %s, expected %s", tc.filename, tc.variable, got, tc.expected)
		}
	}
}

func TestConfigurationDefaults(t *testing.T) {
	dir := t.TempDir()
	desc := `{"filename": "cube.raw", "dimensions": [4, 5, 6], "imageSize": [32, 16], "cameraPosition": [1, 2, 3]}`
	c, err := NewConfiguration([]byte(desc), dir)
	if err != nil {
		t.Fatal(err)
	}
	if c.DataFilename != filepath.Join(dir, "cube.raw") {
		t.Errorf("relative filename not resolved: %q", c.DataFilename)
	}
	if c.ImageWidth != 32 || c.ImageHeight != 16 {
		t.Errorf("bad image size %d x %d", c.ImageWidth, c.ImageHeight)
	}
	if c.DataXDim != 4 || c.DataYDim != 5 || c.DataZDim != 6 {
		t.Errorf("bad dims %d %d %d", c.DataXDim, c.DataYDim, c.DataZDim)
	}
	if c.ColorMap != "grayscale" || c.OpacityMap != "ramp" || c.OpacityAttenuation != 1 || c.Samples != 1 {
		t.Errorf("bad defaults: %+v", c)
	}
	if c.CameraX != 1 || c.CameraY != 2 || c.CameraZ != 3 {
		t.Errorf("bad camera position %f %f %f", c.CameraX, c.CameraY, c.CameraZ)
	}
	if c.CameraUp != nil || c.CameraView != nil {
		t.Errorf("optional camera vectors should be unset")
	}
}

func TestConfigurationSchema(t *testing.T) {
	bad := []string{
		`not json`,
		`{"dimensions": [4, 4, 4], "imageSize": [32, 32], "cameraPosition": [0, 0, 5]}`,
		`{"filename": "a.raw", "dimensions": [4, 4], "imageSize": [32, 32], "cameraPosition": [0, 0, 5]}`,
		`{"filename": "a.raw", "dimensions": [4, 4, 0], "imageSize": [32, 32], "cameraPosition": [0, 0, 5]}`,
		`{"filename": "a.raw", "dimensions": [4, 4, 4], "imageSize": [32, 32], "cameraPosition": [0, 0, 5], "backgroundColor": [0, 0, 300]}`,
		`{"filename": "a.raw", "dimensions": [4, 4, 4], "imageSize": [32, 32], "cameraPosition": [0, 0, 5], "samples": 0}`,
	}
	for _, desc := range bad {
		if _, err := NewConfiguration([]byte(desc), t.TempDir()); err == nil {
			t.Errorf("expected error for descriptor %s", desc)
		}
	}
}

func TestLoadConfigurationYAML(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "cube.yaml")
	writeFile(t, path, `
filename: cube.raw
dimensions: [8, 8, 8]
colorMap: magma
opacityMap: flat
opacityAttenuation: 0.25
backgroundColor: [255, 0, 0]
imageSize: [64, 48]
cameraPosition: [0, 0, 5]
cameraUpVector: [0, 0, 1]
samples: 4
`)
	c, err := LoadConfiguration(path)
	if err != nil {
		t.Fatal(err)
	}
	if c.Path != path || c.State() != SingleNoVar {
		t.Errorf("bad YAML descriptor: %+v", c)
	}
	if c.ColorMap != "magma" || c.OpacityMap != "flat" || c.OpacityAttenuation != 0.25 || c.Samples != 4 {
		t.Errorf("bad YAML transfer settings: %+v", c)
	}
	if c.CameraUp == nil || c.CameraUp[2] != 1 {
		t.Errorf("bad YAML camera up vector %v", c.CameraUp)
	}
	if bg := c.Background(); bg != (Color{1, 0, 0}) {
		t.Errorf("bad background %v", bg)
	}

	if !IsDescriptor("a.JSON") || !IsDescriptor("b.yml") || IsDescriptor("c.txt") {
		t.Errorf("bad descriptor extension matching")
	}
	if _, err := LoadConfiguration(filepath.Join(dir, "missing.json")); err == nil {
		t.Errorf("expected error for missing descriptor")
	}
}
