package system

import (
	"image"
	"sync"
)

// FramePool recycles canvas-sized RGBA buffers between the compositor
// workers and the encoder writer. One render uses exactly one frame
// geometry, so a single-size pool is enough; callers overwrite every pixel
// of a pooled frame before use.
type FramePool struct {
	rect image.Rectangle
	pool sync.Pool
}

// NewFramePool builds a pool producing frames of the given rectangle.
func NewFramePool(rect image.Rectangle) *FramePool {
	p := &FramePool{rect: rect}
	p.pool.New = func() any {
		return image.NewRGBA(rect)
	}
	return p
}

// Get returns a frame of the pool's geometry with undefined contents.
func (p *FramePool) Get() *image.RGBA {
	return p.pool.Get().(*image.RGBA)
}

// Put hands a frame back. Frames of a foreign geometry are dropped.
func (p *FramePool) Put(img *image.RGBA) {
	if img == nil || img.Rect != p.rect {
		return
	}
	p.pool.Put(img)
}
