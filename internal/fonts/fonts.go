// Package fonts loads typefaces for text overlays and title screens.
//
// Fonts are referenced by file path. When no path is given, or the file
// cannot be read, the embedded Go Regular face is used so a render never
// fails over typography.
package fonts

import (
	"fmt"
	"os"
	"sync"

	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/font/gofont/goregular"
	"golang.org/x/image/font/opentype"
)

var builtin struct {
	once sync.Once
	font *opentype.Font
	err  error
}

// Builtin returns the embedded Go Regular font.
func Builtin() (*opentype.Font, error) {
	builtin.once.Do(func() {
		builtin.font, builtin.err = opentype.Parse(goregular.TTF)
	})
	return builtin.font, builtin.err
}

// Open parses the TTF/OTF file at path.
func Open(path string) (*opentype.Font, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read font: %w", err)
	}
	f, err := opentype.Parse(data)
	if err != nil {
		return nil, fmt.Errorf("parse font %s: %w", path, err)
	}
	return f, nil
}

// NewFace sizes a parsed font for drawing. Size is in points at 72 DPI, so
// point size equals pixel size.
func NewFace(f *opentype.Font, size float64) (font.Face, error) {
	return opentype.NewFace(f, &opentype.FaceOptions{
		Size:    size,
		DPI:     72,
		Hinting: font.HintingFull,
	})
}

// BuiltinFace returns the embedded face at the given size. It degrades to
// the fixed 7x13 bitmap face if the embedded font cannot be sized, so a
// usable face always comes back.
func BuiltinFace(size float64) font.Face {
	f, err := Builtin()
	if err != nil {
		return basicfont.Face7x13
	}
	face, err := NewFace(f, size)
	if err != nil {
		return basicfont.Face7x13
	}
	return face
}
