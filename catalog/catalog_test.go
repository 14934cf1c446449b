package catalog

import (
	"encoding/binary"
	"errors"
	"math"
	"os"
	"path/filepath"
	"testing"

	"github.com/janelia-flyem/volrender/render"
)

func writeFile(t *testing.T, path string, data []byte) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		t.Fatal(err)
	}
}

func rawVolume(n int) []byte {
	buf := make([]byte, 4*n*n*n)
	for i := 0; i < n*n*n; i++ {
		binary.LittleEndian.PutUint32(buf[4*i:], math.Float32bits(float32(i%n)))
	}
	return buf
}

// testCatalogDir writes a single volume dataset "cube", a three step time series
// "steps", and a few descriptors that must be skipped.
func testCatalogDir(t *testing.T) string {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "volumes", "cube.raw"), rawVolume(4))
	for _, name := range []string{"t_000.raw", "t_001.raw", "t_002.raw"} {
		writeFile(t, filepath.Join(dir, "volumes", "steps", name), rawVolume(4))
	}
	writeFile(t, filepath.Join(dir, "cube.json"), []byte(`{
		"filename": "volumes/cube.raw",
		"dimensions": [4, 4, 4],
		"colorMap": "viridis",
		"opacityAttenuation": 0.5,
		"backgroundColor": [10, 20, 30],
		"imageSize": [64, 32],
		"cameraPosition": [0, 0, 5]
	}`))
	writeFile(t, filepath.Join(dir, "steps.yaml"), []byte(`
filename: volumes/steps/t_*.raw
dimensions: [4, 4, 4]
colorMap: magma
imageSize: [16, 16]
cameraPosition: [1, 2, 3]
cameraView: [0, 0, 1]
`))
	writeFile(t, filepath.Join(dir, "empty.json"), []byte(`{
		"filename": "volumes/nothing/*.raw",
		"dimensions": [4, 4, 4],
		"imageSize": [16, 16],
		"cameraPosition": [0, 0, 5]
	}`))
	writeFile(t, filepath.Join(dir, "broken.json"), []byte(`{"filename": `))
	writeFile(t, filepath.Join(dir, "missingdata.json"), []byte(`{
		"filename": "volumes/gone.raw",
		"dimensions": [4, 4, 4],
		"imageSize": [16, 16],
		"cameraPosition": [0, 0, 5]
	}`))
	writeFile(t, filepath.Join(dir, "README.txt"), []byte("not a descriptor"))
	if err := os.Mkdir(filepath.Join(dir, "subdir.json"), 0755); err != nil {
		t.Fatal(err)
	}
	return dir
}

func TestBuild(t *testing.T) {
	cat, err := Build(testCatalogDir(t), DefaultOptions)
	if err != nil {
		t.Fatal(err)
	}
	names := cat.Names()
	if len(names) != 2 || names[0] != "cube" || names[1] != "steps" {
		t.Fatalf("expected datasets [cube steps], got %v", names)
	}
	if cat.Get("missing") != nil {
		t.Errorf("unexpected dataset for unknown name")
	}

	cube := cat.Get("cube")
	if cube.IsTimeSeries() || cube.Volume == nil || cube.Length() != 1 || len(cube.Renderers) != 1 {
		t.Fatalf("bad single volume context: %+v", cube)
	}
	if cube.Volume.ColorMap() != render.Viridis || cube.Volume.Attenuation() != 0.5 {
		t.Errorf("transfer function not applied to single volume")
	}
	if !cube.Volume.Loaded() {
		t.Errorf("single volume should be loaded at startup")
	}
	if !cube.Volume.Mapped() {
		t.Errorf("single raw volume should be memory-mapped by default")
	}
	if p := cube.Camera.Position(); p.X != 0 || p.Y != 0 || p.Z != 5 {
		t.Errorf("bad camera position %v", p)
	}
	r := cube.Renderers[0]
	if r.CameraWidth() != 64 || r.CameraHeight() != 32 || r.Camera() != cube.Camera {
		t.Errorf("bad renderer setup %d x %d", r.CameraWidth(), r.CameraHeight())
	}
	if cube.MaxSize[0] != (Size{64, 32}) {
		t.Errorf("bad max size %v", cube.MaxSize[0])
	}

	steps := cat.Get("steps")
	if !steps.IsTimeSeries() || steps.Length() != 3 || len(steps.Renderers) != 3 || len(steps.MaxSize) != 3 {
		t.Fatalf("bad time series context: %+v", steps)
	}
	for i, r := range steps.Renderers {
		if r.Camera() != steps.Camera {
			t.Errorf("renderer %d does not share the dataset camera", i)
		}
		if r.Volume() != steps.TimeSeries.GetVolume(i) {
			t.Errorf("renderer %d not bound to time step %d", i, i)
		}
		if r.Volume().ColorMap() != render.Magma {
			t.Errorf("series colormap not applied to step %d", i)
		}
	}
	if v := steps.Camera.View(); v.Z != 1 {
		t.Errorf("camera view not applied: %v", v)
	}
	if i := steps.IndexByName("t_001.raw"); i != 1 {
		t.Errorf("IndexByName returned %d", i)
	}
}

func TestBuildWithoutMapping(t *testing.T) {
	cat, err := Build(testCatalogDir(t), Options{MaxMemoryGB: 1, MemoryMapping: false})
	if err != nil {
		t.Fatal(err)
	}
	cube := cat.Get("cube")
	if cube == nil {
		t.Fatalf("dataset cube not built")
	}
	if !cube.Volume.Loaded() || cube.Volume.Mapped() {
		t.Errorf("single volume should be read into memory when mapping is off")
	}
	if _, err := cube.Renderers[0].Frame().Render(); err != nil {
		t.Errorf("rendering unmapped volume: %v", err)
	}
}

func TestBuildMissingDir(t *testing.T) {
	_, err := Build(filepath.Join(t.TempDir(), "nope"), DefaultOptions)
	var catErr *Error
	if !errors.As(err, &catErr) {
		t.Fatalf("expected *catalog.Error, got %v", err)
	}
	if !errors.Is(err, os.ErrNotExist) {
		t.Errorf("catalog error should wrap the directory error")
	}
}

func TestRenderContextMutation(t *testing.T) {
	cat, err := Build(testCatalogDir(t), DefaultOptions)
	if err != nil {
		t.Fatal(err)
	}
	cube := cat.Get("cube")
	if i := cube.IndexByName("cube.raw"); i != 0 {
		t.Errorf("single volume name lookup returned %d", i)
	}
	if i := cube.IndexByName("other.raw"); i != -1 {
		t.Errorf("single volume lookup of other file returned %d", i)
	}
	if !cube.SetColorMap(0, "magma") || cube.Volume.ColorMap() != render.Magma {
		t.Errorf("SetColorMap failed")
	}
	if cube.SetColorMap(0, "jet") || cube.SetColorMap(1, "viridis") {
		t.Errorf("SetColorMap should reject unknown names and indices")
	}

	steps := cat.Get("steps")
	steps.SetSize(2, Size{8, 8})
	if steps.Renderers[2].CameraWidth() != 8 || steps.Camera.ImageWidth() != 8 {
		t.Errorf("SetSize did not update renderer and camera")
	}
	if steps.Renderers[0].CameraWidth() != 16 {
		t.Errorf("SetSize changed another renderer")
	}
}
