package volrender

import (
	"path/filepath"
	"testing"
)

func TestConvertToAbsolute(t *testing.T) {
	base := filepath.FromSlash("/data/configs")
	tests := []struct {
		path   string
		expect string
	}{
		{"cube.raw", filepath.FromSlash("/data/configs/cube.raw")},
		{"../volumes/cube.raw", filepath.FromSlash("/data/volumes/cube.raw")},
		{"/abs/cube.raw", filepath.FromSlash("/abs/cube.raw")},
	}
	for _, tc := range tests {
		got, err := ConvertToAbsolute(tc.path, base)
		if err != nil {
			t.Fatalf("unexpected error converting %q: %v\n", tc.path, err)
		}
		if got != tc.expect {
			t.Errorf("ConvertToAbsolute(%q): expected %q, got %q\n", tc.path, tc.expect, got)
		}
	}
	if _, err := ConvertToAbsolute("", base); err == nil {
		t.Errorf("expected error on empty path\n")
	}
}

func TestTrimExt(t *testing.T) {
	tests := map[string]string{
		"cube.json":          "cube",
		"/a/b/series.yaml":   "series",
		"noext":              "noext",
		"multi.part.name.js": "multi.part.name",
	}
	for in, expect := range tests {
		if got := TrimExt(in); got != expect {
			t.Errorf("TrimExt(%q): expected %q, got %q\n", in, expect, got)
		}
	}
}

func TestHasGlob(t *testing.T) {
	if HasGlob("steps/t_0001.raw") {
		t.Errorf("plain path reported as glob\n")
	}
	for _, p := range []string{"steps/*.raw", "t_?.raw", "t_[0-9].raw"} {
		if !HasGlob(p) {
			t.Errorf("expected %q to be a glob\n", p)
		}
	}
}
