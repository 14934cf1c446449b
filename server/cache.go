package server

import (
	"sync/atomic"

	"github.com/coocood/freecache"
	"github.com/dustin/go-humanize"

	"github.com/janelia-flyem/volrender/render"
	"github.com/janelia-flyem/volrender/volrender"
)

// imageCache holds encoded PNGs keyed by dataset and frame signature.
type imageCache struct {
	cache    *freecache.Cache
	attempts uint64
	hits     uint64
}

// newImageCache returns nil if numBytes is not positive.
func newImageCache(numBytes int) *imageCache {
	if numBytes <= 0 {
		return nil
	}
	volrender.Infof("Created freecache of ~ %s for rendered images.\n", humanize.Bytes(uint64(numBytes)))
	return &imageCache{cache: freecache.NewCache(numBytes)}
}

func imageKey(dataset string, f render.Frame) []byte {
	return []byte(dataset + "|" + f.Signature())
}

func (c *imageCache) get(dataset string, f render.Frame) ([]byte, bool) {
	if c == nil {
		return nil, false
	}
	atomic.AddUint64(&c.attempts, 1)
	data, err := c.cache.Get(imageKey(dataset, f))
	if err != nil {
		if err != freecache.ErrNotFound {
			volrender.Errorf("image cache lookup for dataset %q: %v\n", dataset, err)
		}
		return nil, false
	}
	atomic.AddUint64(&c.hits, 1)
	return data, true
}

func (c *imageCache) put(dataset string, f render.Frame, data []byte) {
	if c == nil {
		return
	}
	if err := c.cache.Set(imageKey(dataset, f), data, 0); err != nil {
		volrender.Debugf("not caching %s image for dataset %q: %v\n", humanize.Bytes(uint64(len(data))), dataset, err)
	}
}

// stats returns the number of lookups and hits.
func (c *imageCache) stats() (attempts, hits uint64) {
	if c == nil {
		return 0, 0
	}
	return atomic.LoadUint64(&c.attempts), atomic.LoadUint64(&c.hits)
}
