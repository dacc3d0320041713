// Package slide rasterizes PDF pages for use as timeline stills.
package slide

import (
	"fmt"
	"image"

	"github.com/gen2brain/go-fitz"
)

// DefaultDPI renders pages slightly above 1080p height for typical A4/16:9
// slide decks, so the canvas scaler works downhill.
const DefaultDPI = 150

// PageCount opens the document just long enough to count its pages.
func PageCount(path string) (int, error) {
	doc, err := fitz.New(path)
	if err != nil {
		return 0, err
	}
	defer doc.Close()
	return doc.NumPage(), nil
}

// Render rasterizes one page (0-based) at the given DPI. A fresh document
// handle is opened per call; fitz handles are not safe to share across
// goroutines and a render happens once per slide segment anyway.
func Render(path string, page, dpi int) (image.Image, error) {
	doc, err := fitz.New(path)
	if err != nil {
		return nil, err
	}
	defer doc.Close()
	if page < 0 || page >= doc.NumPage() {
		return nil, fmt.Errorf("page %d out of range, %s has %d pages", page+1, path, doc.NumPage())
	}
	if dpi <= 0 {
		dpi = DefaultDPI
	}
	return doc.ImageDPI(page, float64(dpi))
}
