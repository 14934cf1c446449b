package volrender

import (
	"fmt"
	"path/filepath"
	"runtime"
	"strings"
)

const (
	Kilo = 1 << 10
	Mega = 1 << 20
	Giga = 1 << 30
)

// NumCPU is the number of cores available to volrender for rendering.
var NumCPU = runtime.NumCPU()

// ConvertToAbsolute returns path as an absolute path, treating a relative path
// as relative to the base directory.
func ConvertToAbsolute(path, base string) (string, error) {
	if path == "" {
		return "", fmt.Errorf("cannot convert empty path to absolute path")
	}
	if filepath.IsAbs(path) {
		return filepath.Clean(path), nil
	}
	return filepath.Abs(filepath.Join(base, path))
}

// HasGlob returns true if the path contains shell glob metacharacters.
func HasGlob(path string) bool {
	return strings.ContainsAny(path, "*?[")
}

// TrimExt returns the base name of the file without its final extension.
func TrimExt(filename string) string {
	base := filepath.Base(filename)
	return strings.TrimSuffix(base, filepath.Ext(base))
}
