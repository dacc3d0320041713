package kinopy

import (
	"fmt"
	"image"
	"image/color"
	"math"

	"golang.org/x/image/vector"
)

// Arrow draws a straight shaft from Start to End with a filled triangular
// head at End. Coordinates are absolute canvas pixels, so arrows are added
// at position At(0, 0) and the layer spans the whole canvas.
type Arrow struct {
	Start, End image.Point
	// Color is the fill color. Nil means yellow.
	Color color.Color
	// Thickness is the shaft width in pixels. Zero means 5.
	Thickness float64
	// HeadLength is the arrowhead edge length. Zero sizes the head
	// proportionally to the thickness.
	HeadLength float64
	// HeadAngle is the half-angle of the head in degrees. Zero means 30.
	HeadAngle float64
}

func (a Arrow) Render(env RenderEnv) (image.Image, error) {
	if a.Start == a.End {
		return nil, fmt.Errorf("%w: arrow start and end coincide at %v", ErrConfiguration, a.Start)
	}
	col := a.Color
	if col == nil {
		col = color.RGBA{R: 255, G: 255, B: 0, A: 255}
	}
	thickness := a.Thickness
	if thickness <= 0 {
		thickness = 5
	}
	headLen := a.HeadLength
	if headLen <= 0 {
		headLen = thickness * 4.8
	}
	headAngle := a.HeadAngle
	if headAngle <= 0 {
		headAngle = 30
	}

	layer := image.NewRGBA(image.Rect(0, 0, env.Canvas.X, env.Canvas.Y))
	src := image.NewUniform(col)

	sx, sy := float64(a.Start.X), float64(a.Start.Y)
	ex, ey := float64(a.End.X), float64(a.End.Y)
	dx, dy := ex-sx, ey-sy
	length := math.Hypot(dx, dy)

	// Shaft: a quad of the requested thickness around the center line.
	nx := -dy / length * thickness / 2
	ny := dx / length * thickness / 2
	shaft := vector.NewRasterizer(env.Canvas.X, env.Canvas.Y)
	shaft.MoveTo(float32(sx+nx), float32(sy+ny))
	shaft.LineTo(float32(ex+nx), float32(ey+ny))
	shaft.LineTo(float32(ex-nx), float32(ey-ny))
	shaft.LineTo(float32(sx-nx), float32(sy-ny))
	shaft.ClosePath()
	shaft.Draw(layer, layer.Bounds(), src, image.Point{})

	// Head: a triangle whose tip is End, opened by HeadAngle to each side.
	angle := math.Atan2(dy, dx)
	theta := headAngle * math.Pi / 180
	head := vector.NewRasterizer(env.Canvas.X, env.Canvas.Y)
	head.MoveTo(float32(ex), float32(ey))
	head.LineTo(
		float32(ex+headLen*math.Cos(angle+math.Pi-theta)),
		float32(ey+headLen*math.Sin(angle+math.Pi-theta)),
	)
	head.LineTo(
		float32(ex+headLen*math.Cos(angle+math.Pi+theta)),
		float32(ey+headLen*math.Sin(angle+math.Pi+theta)),
	)
	head.ClosePath()
	head.Draw(layer, layer.Bounds(), src, image.Point{})

	return layer, nil
}
