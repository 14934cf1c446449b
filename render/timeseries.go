package render

import (
	"fmt"
	"path/filepath"
	"sync"

	"github.com/dustin/go-humanize"
	"github.com/golang/groupcache/lru"

	"github.com/janelia-flyem/volrender/volrender"
)

// TimeSeries is an ordered set of volumes sharing dimensions and transfer function.
// Volumes are loaded on first use and kept in an LRU bounded by the maximum memory.
type TimeSeries struct {
	volumes []*Volume

	mu        sync.Mutex
	resident  *lru.Cache
	inMemory  int64
	maxMemory int64 // bytes; 0 means unbounded
}

// NewTimeSeries returns a time series with one unloaded volume per filename.
func NewTimeSeries(filenames []string, variable string, x, y, z int) (*TimeSeries, error) {
	if len(filenames) == 0 {
		return nil, fmt.Errorf("time series requires at least one file")
	}
	ts := &TimeSeries{
		volumes:  make([]*Volume, len(filenames)),
		resident: lru.New(0),
	}
	ts.resident.OnEvicted = func(key lru.Key, value interface{}) {
		vol := key.(*Volume)
		ts.inMemory -= value.(int64)
		vol.Unload()
		volrender.Debugf("Evicted time step %q from memory (%s resident)\n", vol.Name(), humanize.Bytes(uint64(ts.inMemory)))
	}
	for i, filename := range filenames {
		vol, err := NewVolume(filename, variable, x, y, z, false)
		if err != nil {
			return nil, err
		}
		vol.owner = ts
		ts.volumes[i] = vol
	}
	return ts, nil
}

// Length returns the number of time steps.
func (ts *TimeSeries) Length() int {
	return len(ts.volumes)
}

// GetVolume returns the volume of the i-th time step or nil if out of range.
func (ts *TimeSeries) GetVolume(i int) *Volume {
	if i < 0 || i >= len(ts.volumes) {
		return nil
	}
	return ts.volumes[i]
}

// GetVolumeIndexByName returns the index of the time step whose file has the given
// path or base name, or -1 if there is none.
func (ts *TimeSeries) GetVolumeIndexByName(name string) int {
	if name == "" {
		return -1
	}
	for i, vol := range ts.volumes {
		if vol.Filename() == name {
			return i
		}
	}
	base := filepath.Base(name)
	for i, vol := range ts.volumes {
		if vol.Name() == base {
			return i
		}
	}
	return -1
}

func (ts *TimeSeries) SetColorMap(cm *ColorMap) {
	for _, vol := range ts.volumes {
		vol.SetColorMap(cm)
	}
}

func (ts *TimeSeries) SetOpacityMap(om *OpacityMap) {
	for _, vol := range ts.volumes {
		vol.SetOpacityMap(om)
	}
}

func (ts *TimeSeries) SetOpacityAttenuation(amount float32) {
	for _, vol := range ts.volumes {
		vol.AttenuateOpacity(amount)
	}
}

// SetMemoryMapping sets whether uncompressed raw time steps are memory-mapped.
func (ts *TimeSeries) SetMemoryMapping(mapped bool) {
	for _, vol := range ts.volumes {
		vol.SetMemoryMapping(mapped)
	}
}

// SetMaxMemory bounds the resident volume data to the given number of gigabytes.
// A value of zero or less removes the bound.
func (ts *TimeSeries) SetMaxMemory(gb int) {
	var bytes int64
	if gb > 0 {
		bytes = int64(gb) * volrender.Giga
	}
	ts.SetMaxMemoryBytes(bytes)
}

// SetMaxMemoryBytes is like SetMaxMemory but in bytes.
func (ts *TimeSeries) SetMaxMemoryBytes(bytes int64) {
	ts.mu.Lock()
	defer ts.mu.Unlock()
	ts.maxMemory = bytes
	ts.evict()
}

// Resident returns the number of time steps currently held in memory.
func (ts *TimeSeries) Resident() int {
	ts.mu.Lock()
	defer ts.mu.Unlock()
	return ts.resident.Len()
}

// touch marks a volume as most recently used, evicting older ones if the memory
// budget is exceeded.  The touched volume itself is never evicted.
func (ts *TimeSeries) touch(vol *Volume) {
	ts.mu.Lock()
	defer ts.mu.Unlock()
	if _, found := ts.resident.Get(vol); found {
		return
	}
	size := vol.SizeBytes()
	ts.resident.Add(vol, size)
	ts.inMemory += size
	ts.evict()
}

func (ts *TimeSeries) evict() {
	for ts.maxMemory > 0 && ts.inMemory > ts.maxMemory && ts.resident.Len() > 1 {
		ts.resident.RemoveOldest()
	}
}
