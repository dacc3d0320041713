package kinopy

import (
	"fmt"
	"image"
	"log/slog"

	"golang.org/x/image/font"

	"github.com/andjar/KinoPy/internal/fonts"
)

// FontOpener resolves a font reference to a sized face. The builder installs
// OpenFontFile by default; tests and embedders can swap in their own.
type FontOpener func(ref string, size float64) (font.Face, error)

// OpenFontFile loads a TTF/OTF file from disk and sizes it. Failures are
// reported as ErrResource because the engine treats a missing font as
// recoverable.
func OpenFontFile(ref string, size float64) (font.Face, error) {
	f, err := fonts.Open(ref)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrResource, err)
	}
	face, err := fonts.NewFace(f, size)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrResource, err)
	}
	return face, nil
}

// RenderEnv carries what a drawable needs to rasterize itself. It is built
// by the compositor and treated as read-only.
type RenderEnv struct {
	// Canvas is the output frame size in pixels.
	Canvas image.Point
	// OpenFont resolves font references for text-bearing drawables.
	OpenFont FontOpener
	// Log receives warnings such as font fallbacks.
	Log *slog.Logger
}

// Face resolves ref at the given size, falling back to the built-in face
// when ref is empty or cannot be loaded. The fallback is logged, never
// fatal, so an overlay always renders with some typeface.
func (e RenderEnv) Face(ref string, size float64) font.Face {
	if ref != "" {
		open := e.OpenFont
		if open == nil {
			open = OpenFontFile
		}
		face, err := open(ref, size)
		if err == nil {
			return face
		}
		e.logger().Warn("font unavailable, using built-in face", "font", ref, "error", err)
	}
	return fonts.BuiltinFace(size)
}

func (e RenderEnv) logger() *slog.Logger {
	if e.Log != nil {
		return e.Log
	}
	return slog.Default()
}

// Drawable is anything that can rasterize itself once for overlaying onto
// frames. The returned layer is positioned by the compositor and must not
// exceed the canvas in meaning: pixels outside the canvas are clipped.
//
// Render is called at most once per render pass and the layer is reused for
// every frame the overlay covers, so implementations may be expensive but
// must return an immutable image.
type Drawable interface {
	Render(env RenderEnv) (image.Image, error)
}
