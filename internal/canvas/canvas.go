// Package canvas conforms source frames to the project's output geometry.
//
// Every frame that enters the compositor passes through Normalize, so the
// rest of the pipeline only ever sees images of exactly the canvas size.
package canvas

import (
	"image"
	"image/color"
	"image/draw"

	xdraw "golang.org/x/image/draw"
)

// Fit computes the centered target rectangle for scaling a src-sized image
// onto a dst-sized canvas while preserving aspect ratio. The scale factor is
// uniform on both axes, so at most one axis leaves a letterbox band.
func Fit(src, dst image.Point) image.Rectangle {
	if src.X <= 0 || src.Y <= 0 {
		return image.Rectangle{}
	}
	sx := float64(dst.X) / float64(src.X)
	sy := float64(dst.Y) / float64(src.Y)
	scale := sx
	if sy < sx {
		scale = sy
	}
	w := int(float64(src.X)*scale + 0.5)
	h := int(float64(src.Y)*scale + 0.5)
	if w > dst.X {
		w = dst.X
	}
	if h > dst.Y {
		h = dst.Y
	}
	x := (dst.X - w) / 2
	y := (dst.Y - h) / 2
	return image.Rect(x, y, x+w, y+h)
}

// Normalize scales src onto a dst-sized canvas, centered, with bg filling
// the letterbox bands. A frame that already has the canvas size is returned
// as is, so normalizing twice is free. The fast bilinear kernel keeps
// per-frame cost low; use NormalizeStill for one-shot images.
func Normalize(src image.Image, dst image.Point, bg color.Color) *image.RGBA {
	return normalize(src, dst, bg, xdraw.ApproxBiLinear)
}

// NormalizeStill is Normalize with the Catmull-Rom kernel. Title screens,
// freeze frames and slides are scaled once and reused for many frames, so
// the better kernel is worth its cost there.
func NormalizeStill(src image.Image, dst image.Point, bg color.Color) *image.RGBA {
	return normalize(src, dst, bg, xdraw.CatmullRom)
}

func normalize(src image.Image, dst image.Point, bg color.Color, scaler xdraw.Scaler) *image.RGBA {
	b := src.Bounds()
	if rgba, ok := src.(*image.RGBA); ok && b.Dx() == dst.X && b.Dy() == dst.Y {
		return rgba
	}
	out := image.NewRGBA(image.Rect(0, 0, dst.X, dst.Y))
	if bg == nil {
		bg = color.Black
	}
	draw.Draw(out, out.Bounds(), image.NewUniform(bg), image.Point{}, draw.Src)
	target := Fit(image.Pt(b.Dx(), b.Dy()), dst)
	if target.Empty() {
		return out
	}
	if b.Dx() == target.Dx() && b.Dy() == target.Dy() {
		draw.Draw(out, target, src, b.Min, draw.Src)
		return out
	}
	scaler.Scale(out, target, src, b, xdraw.Src, nil)
	return out
}
