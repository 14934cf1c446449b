package render

import (
	"fmt"
	"strings"
)

// Color is an RGB triple with components in [0,1].
type Color [3]float32

// ColorFromRGB8 converts 8-bit color components into a Color.
func ColorFromRGB8(r, g, b int) Color {
	return Color{clamp01(float32(r) / 255), clamp01(float32(g) / 255), clamp01(float32(b) / 255)}
}

const tableSize = 256

// ColorMap maps normalized scalar values to colors.
type ColorMap struct {
	name  string
	table [tableSize]Color
}

// Name returns the name under which the colormap is registered.
func (c *ColorMap) Name() string {
	return c.name
}

// At returns the color for a normalized value, clamped to [0,1].
func (c *ColorMap) At(v float32) Color {
	return c.table[tableIndex(v)]
}

// OpacityMap maps normalized scalar values to opacities.
type OpacityMap struct {
	name  string
	table [tableSize]float32
}

// Name returns the name under which the opacity map is registered.
func (o *OpacityMap) Name() string {
	return o.name
}

// At returns the opacity for a normalized value, clamped to [0,1].
func (o *OpacityMap) At(v float32) float32 {
	return o.table[tableIndex(v)]
}

// Built-in colormaps.  Anchors are evenly spaced samples of the matplotlib maps.
var (
	Viridis = newColorMap("viridis", [][3]int{
		{68, 1, 84}, {71, 44, 122}, {59, 81, 139}, {44, 113, 142}, {33, 144, 141},
		{39, 173, 129}, {92, 200, 99}, {170, 220, 50}, {253, 231, 37},
	})
	Magma = newColorMap("magma", [][3]int{
		{0, 0, 4}, {28, 16, 68}, {79, 18, 123}, {129, 37, 129}, {181, 54, 122},
		{229, 80, 100}, {251, 135, 97}, {254, 194, 135}, {252, 253, 191},
	})
	Grayscale = newColorMap("grayscale", [][3]int{{0, 0, 0}, {255, 255, 255}})
)

// Built-in opacity maps.
var (
	Ramp    = newOpacityMap("ramp", func(v float32) float32 { return v })
	Reverse = newOpacityMap("reverse", func(v float32) float32 { return 1 - v })
	Flat    = newOpacityMap("flat", func(float32) float32 { return 1 })
)

var (
	colorMaps   = map[string]*ColorMap{"viridis": Viridis, "magma": Magma, "grayscale": Grayscale, "gray": Grayscale}
	opacityMaps = map[string]*OpacityMap{"ramp": Ramp, "reverse": Reverse, "flat": Flat}
)

// ColorMapByName returns a built-in colormap.  Lookup is case-insensitive.
func ColorMapByName(name string) (*ColorMap, error) {
	cm, found := colorMaps[strings.ToLower(name)]
	if !found {
		return nil, fmt.Errorf("unknown colormap %q", name)
	}
	return cm, nil
}

// OpacityMapByName returns a built-in opacity map.  Lookup is case-insensitive.
func OpacityMapByName(name string) (*OpacityMap, error) {
	om, found := opacityMaps[strings.ToLower(name)]
	if !found {
		return nil, fmt.Errorf("unknown opacity map %q", name)
	}
	return om, nil
}

func newColorMap(name string, anchors [][3]int) *ColorMap {
	cm := &ColorMap{name: name}
	segments := float32(len(anchors) - 1)
	for i := 0; i < tableSize; i++ {
		pos := float32(i) / (tableSize - 1) * segments
		lo := int(pos)
		if lo >= len(anchors)-1 {
			lo = len(anchors) - 2
		}
		frac := pos - float32(lo)
		a, b := anchors[lo], anchors[lo+1]
		for c := 0; c < 3; c++ {
			cm.table[i][c] = (float32(a[c])*(1-frac) + float32(b[c])*frac) / 255
		}
	}
	return cm
}

func newOpacityMap(name string, f func(float32) float32) *OpacityMap {
	om := &OpacityMap{name: name}
	for i := 0; i < tableSize; i++ {
		om.table[i] = clamp01(f(float32(i) / (tableSize - 1)))
	}
	return om
}

func tableIndex(v float32) int {
	if !(v > 0) { // also catches NaN
		return 0
	}
	if v >= 1 {
		return tableSize - 1
	}
	return int(v*(tableSize-1) + 0.5)
}

func clamp01(v float32) float32 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
