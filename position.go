package kinopy

import (
	"fmt"
	"image"
	"strconv"
	"strings"
)

// Anchor names a reference edge of the canvas along one axis.
type Anchor uint8

const (
	// AnchorAbsolute places the layer's top-left corner at Offset pixels.
	AnchorAbsolute Anchor = iota
	// AnchorCenter centers the layer and then shifts it by Offset.
	AnchorCenter
	// AnchorMin aligns with the left or top edge.
	AnchorMin
	// AnchorMax aligns with the right or bottom edge.
	AnchorMax
)

// Coord is one axis of an overlay position: an anchor plus a pixel offset.
type Coord struct {
	Anchor Anchor
	Offset int
}

// Position places an overlay layer on the canvas. The zero value puts the
// layer's top-left corner at the origin.
type Position struct {
	X, Y Coord
}

// Center returns the position that centers a layer on both axes.
func Center() Position {
	return Position{X: Coord{Anchor: AnchorCenter}, Y: Coord{Anchor: AnchorCenter}}
}

// At returns an absolute pixel position for a layer's top-left corner.
func At(x, y int) Position {
	return Position{X: Coord{Offset: x}, Y: Coord{Offset: y}}
}

// resolve converts the position into the layer's top-left pixel coordinate
// for the given canvas and layer sizes.
func (p Position) resolve(canvas, layer image.Point) image.Point {
	return image.Point{
		X: p.X.place(canvas.X, layer.X),
		Y: p.Y.place(canvas.Y, layer.Y),
	}
}

func (c Coord) place(canvas, layer int) int {
	switch c.Anchor {
	case AnchorCenter:
		return (canvas-layer)/2 + c.Offset
	case AnchorMin:
		return c.Offset
	case AnchorMax:
		return canvas - layer + c.Offset
	default:
		return c.Offset
	}
}

// ParsePosition reads a position of the form "x,y" where each axis is a
// pixel coordinate ("960"), an edge name ("left", "center", "right" for x;
// "top", "center", "bottom" for y), or an edge name with a pixel shift
// ("center+20", "bottom-40"). The single token "center" centers both axes.
func ParsePosition(s string) (Position, error) {
	s = strings.TrimSpace(s)
	if strings.EqualFold(s, "center") {
		return Center(), nil
	}
	parts := strings.SplitN(s, ",", 2)
	if len(parts) != 2 {
		return Position{}, fmt.Errorf("%w: position %q must be \"x,y\"", ErrConfiguration, s)
	}
	x, err := parseCoord(parts[0], "left", "right")
	if err != nil {
		return Position{}, fmt.Errorf("%w: position %q: %v", ErrConfiguration, s, err)
	}
	y, err := parseCoord(parts[1], "top", "bottom")
	if err != nil {
		return Position{}, fmt.Errorf("%w: position %q: %v", ErrConfiguration, s, err)
	}
	return Position{X: x, Y: y}, nil
}

func parseCoord(s, minName, maxName string) (Coord, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	if n, err := strconv.Atoi(s); err == nil {
		return Coord{Anchor: AnchorAbsolute, Offset: n}, nil
	}
	name := s
	offset := 0
	if i := strings.IndexAny(s, "+-"); i > 0 {
		n, err := strconv.Atoi(s[i:])
		if err != nil {
			return Coord{}, fmt.Errorf("bad offset %q", s[i:])
		}
		name, offset = s[:i], n
	}
	var anchor Anchor
	switch name {
	case "center":
		anchor = AnchorCenter
	case minName:
		anchor = AnchorMin
	case maxName:
		anchor = AnchorMax
	default:
		return Coord{}, fmt.Errorf("bad coordinate %q", s)
	}
	return Coord{Anchor: anchor, Offset: offset}, nil
}

// ParsePoint reads an absolute "x,y" pixel coordinate, as used for arrow
// endpoints.
func ParsePoint(s string) (image.Point, error) {
	parts := strings.SplitN(strings.TrimSpace(s), ",", 2)
	if len(parts) != 2 {
		return image.Point{}, fmt.Errorf("%w: point %q must be \"x,y\"", ErrConfiguration, s)
	}
	x, errX := strconv.Atoi(strings.TrimSpace(parts[0]))
	y, errY := strconv.Atoi(strings.TrimSpace(parts[1]))
	if errX != nil || errY != nil {
		return image.Point{}, fmt.Errorf("%w: point %q must be \"x,y\"", ErrConfiguration, s)
	}
	return image.Point{X: x, Y: y}, nil
}
