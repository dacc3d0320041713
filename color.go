package kinopy

import (
	"fmt"
	"image/color"
	"strings"
)

// Named colors accepted anywhere a color string is parsed (CLI flags,
// storyboard files). The set mirrors the names instructional scripts
// actually use; anything else must be given as #rrggbb.
var namedColors = map[string]color.RGBA{
	"black":   {0, 0, 0, 255},
	"white":   {255, 255, 255, 255},
	"red":     {255, 0, 0, 255},
	"green":   {0, 128, 0, 255},
	"blue":    {0, 0, 255, 255},
	"yellow":  {255, 255, 0, 255},
	"orange":  {255, 165, 0, 255},
	"cyan":    {0, 255, 255, 255},
	"magenta": {255, 0, 255, 255},
	"gray":    {128, 128, 128, 255},
	"grey":    {128, 128, 128, 255},
}

// ParseColor resolves a color name or a #rrggbb / #rrggbbaa hex literal.
func ParseColor(s string) (color.RGBA, error) {
	name := strings.ToLower(strings.TrimSpace(s))
	if c, ok := namedColors[name]; ok {
		return c, nil
	}
	if strings.HasPrefix(name, "#") {
		hex := name[1:]
		var r, g, b, a uint8
		a = 255
		switch len(hex) {
		case 6:
			if _, err := fmt.Sscanf(hex, "%02x%02x%02x", &r, &g, &b); err == nil {
				return color.RGBA{r, g, b, a}, nil
			}
		case 8:
			if _, err := fmt.Sscanf(hex, "%02x%02x%02x%02x", &r, &g, &b, &a); err == nil {
				return color.RGBA{r, g, b, a}, nil
			}
		}
	}
	return color.RGBA{}, fmt.Errorf("%w: unknown color %q", ErrConfiguration, s)
}
