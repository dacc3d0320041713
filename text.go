package kinopy

import (
	"image"
	"image/color"
	"image/draw"
	"strings"

	"golang.org/x/image/font"
	"golang.org/x/image/math/fixed"
)

// Default typography, shared by overlays and title screens.
const (
	defaultOverlaySize = 50
	defaultTitleSize   = 70
	textPadding        = 8
)

// Text draws one or more lines of text. Lines are separated by '\n' and
// left-aligned; the layer is sized to the text plus a small padding so the
// overlay can be positioned by its visual bounds.
type Text struct {
	Text string
	// Font is a path to a TTF/OTF file. Empty means the built-in face.
	Font string
	// Size is the point size. Zero means 50.
	Size float64
	// Color is the fill color. Nil means white.
	Color color.Color
}

func (t Text) Render(env RenderEnv) (image.Image, error) {
	size := t.Size
	if size <= 0 {
		size = defaultOverlaySize
	}
	col := t.Color
	if col == nil {
		col = color.White
	}
	face := env.Face(t.Font, size)
	block := renderTextBlock(face, t.Text, col, false)

	b := block.Bounds()
	layer := image.NewNRGBA(image.Rect(0, 0, b.Dx()+2*textPadding, b.Dy()+2*textPadding))
	draw.Draw(layer, b.Add(image.Pt(textPadding, textPadding)), block, b.Min, draw.Src)
	return layer, nil
}

// renderTextBlock rasterizes multiline text onto a transparent image sized
// to the widest line. Overlays keep lines left-aligned; title screens
// center them.
func renderTextBlock(face font.Face, text string, col color.Color, centered bool) *image.NRGBA {
	lines := strings.Split(text, "\n")
	metrics := face.Metrics()
	lineHeight := metrics.Height.Ceil()
	ascent := metrics.Ascent.Ceil()

	d := &font.Drawer{Face: face}
	widths := make([]int, len(lines))
	width := 0
	for i, line := range lines {
		widths[i] = d.MeasureString(line).Ceil()
		if widths[i] > width {
			width = widths[i]
		}
	}
	block := image.NewNRGBA(image.Rect(0, 0, width, lineHeight*len(lines)))
	d.Dst = block
	d.Src = image.NewUniform(col)
	for i, line := range lines {
		x := 0
		if centered {
			x = (width - widths[i]) / 2
		}
		d.Dot = fixed.P(x, ascent+i*lineHeight)
		d.DrawString(line)
	}
	return block
}
