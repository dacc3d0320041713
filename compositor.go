package kinopy

import (
	"context"
	"errors"
	"fmt"
	"image"
	"image/draw"
	"math"
)

// compositor turns frame indices into pixels. frameInto has no mutable
// state of its own, so frames can be produced in any order by any number
// of goroutines; ordering matters only at the encoder.
type compositor struct {
	tl  *timeline
	fps int
	env RenderEnv
}

// frameCount is the number of output frames for a timeline of the given
// total duration: every index i with i/fps strictly inside the timeline.
func frameCount(total float64, fps int) int {
	n := int(math.Ceil(total*float64(fps) - timeEpsilon))
	if n < 0 {
		return 0
	}
	return n
}

func (c *compositor) frameCount() int {
	return frameCount(c.tl.total, c.fps)
}

// frameInto composites frame i into dst, overwriting every pixel. dst must
// have the canvas geometry.
func (c *compositor) frameInto(ctx context.Context, dst *image.RGBA, i int) error {
	t := float64(i) / float64(c.fps)
	idx, local := c.tl.segmentAt(t)
	seg := c.tl.segments[idx]

	base, err := seg.src.frameAt(ctx, local)
	if err != nil {
		if !errors.Is(err, ErrConfiguration) && !errors.Is(err, ErrResource) && !errors.Is(err, ErrExternal) {
			err = fmt.Errorf("%w: %w", ErrExternal, err)
		}
		return fmt.Errorf("%s %q at %.3fs: %w", seg.kind, seg.label, t, err)
	}
	draw.Draw(dst, dst.Bounds(), base, base.Bounds().Min, draw.Src)

	if f := fadeScale(seg, local); f < 1 {
		darken(dst, f)
	}

	for _, ov := range c.tl.overlays {
		if !ov.active(t) {
			continue
		}
		layer, at, err := ov.render(c.env)
		if err != nil {
			return fmt.Errorf("overlay at %.3fs: %w", t, err)
		}
		b := layer.Bounds()
		target := image.Rectangle{Min: at, Max: at.Add(image.Pt(b.Dx(), b.Dy()))}
		draw.Draw(dst, target, layer, b.Min, draw.Over)
	}
	return nil
}

// fadeScale is the brightness multiplier local seconds into seg. Fade-in
// and fade-out ramps multiply where they overlap, and the result is
// clamped, so short segments never overshoot.
func fadeScale(seg *segment, local float64) float64 {
	f := 1.0
	if seg.fadeIn > 0 && local < seg.fadeIn {
		f *= local / seg.fadeIn
	}
	if seg.fadeOut > 0 {
		if remain := seg.duration - local; remain < seg.fadeOut {
			f *= remain / seg.fadeOut
		}
	}
	if f < 0 {
		return 0
	}
	if f > 1 {
		return 1
	}
	return f
}

// darken scales the RGB channels toward black in place, leaving alpha
// untouched. Fixed-point keeps this off the float path per pixel.
func darken(img *image.RGBA, f float64) {
	m := uint32(f * 65536)
	b := img.Bounds()
	w := b.Dx()
	for y := 0; y < b.Dy(); y++ {
		row := img.Pix[y*img.Stride : y*img.Stride+w*4]
		for x := 0; x < len(row); x += 4 {
			row[x] = uint8(uint32(row[x]) * m >> 16)
			row[x+1] = uint8(uint32(row[x+1]) * m >> 16)
			row[x+2] = uint8(uint32(row[x+2]) * m >> 16)
		}
	}
}
