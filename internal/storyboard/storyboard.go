// Package storyboard reads and writes declarative timeline descriptions.
//
// A storyboard is a YAML file listing segments in play order plus overlay
// annotations, so a whole lesson can live next to its footage instead of in
// flags. Applying a storyboard replays it through the builder API; nothing
// here renders pixels.
package storyboard

import (
	"fmt"
	"image/color"
	"os"

	"gopkg.in/yaml.v3"

	kinopy "github.com/andjar/KinoPy"
)

// Document is the root of a storyboard file.
type Document struct {
	// Output is the target video path. A CLI flag may override it.
	Output string `yaml:"output,omitempty"`
	// Width and Height set the canvas; zero values use the defaults.
	Width  int `yaml:"width,omitempty"`
	Height int `yaml:"height,omitempty"`
	// FPS sets the frame rate; zero uses the default.
	FPS int `yaml:"fps,omitempty"`
	// Background names the letterbox color.
	Background string `yaml:"background,omitempty"`
	// Soundtrack is an optional audio file for the whole video.
	Soundtrack string `yaml:"soundtrack,omitempty"`
	// Font is a TTF/OTF path used by text entries that name none.
	Font string `yaml:"font,omitempty"`

	Segments []Segment `yaml:"segments"`
	Overlays []Overlay `yaml:"overlays,omitempty"`
}

// Segment is one timeline entry. Kind selects which fields apply:
// "clip" (path, start, end), "text" (text, duration, fontsize, color,
// background), "freeze" (at, duration), "slide" (path, page, duration).
type Segment struct {
	Kind string `yaml:"kind"`

	Path  string  `yaml:"path,omitempty"`
	Start float64 `yaml:"start,omitempty"`
	End   float64 `yaml:"end,omitempty"`

	Text       string  `yaml:"text,omitempty"`
	FontSize   float64 `yaml:"fontsize,omitempty"`
	Color      string  `yaml:"color,omitempty"`
	Background string  `yaml:"background,omitempty"`
	Font       string  `yaml:"font,omitempty"`

	At   float64 `yaml:"at,omitempty"`
	Page int     `yaml:"page,omitempty"`
	DPI  int     `yaml:"dpi,omitempty"`

	Duration float64 `yaml:"duration,omitempty"`
	FadeIn   float64 `yaml:"fade_in,omitempty"`
	FadeOut  float64 `yaml:"fade_out,omitempty"`
}

// Overlay is one timed annotation. Kind selects the fields: "text" (text,
// fontsize, color, font), "arrow" (from, to, color, width), "qr" (content,
// size). Position is parsed by kinopy.ParsePosition; arrows ignore it and
// use absolute canvas coordinates.
type Overlay struct {
	Kind     string  `yaml:"kind"`
	Start    float64 `yaml:"start"`
	Duration float64 `yaml:"duration"`
	Position string  `yaml:"position,omitempty"`

	Text     string  `yaml:"text,omitempty"`
	FontSize float64 `yaml:"fontsize,omitempty"`
	Color    string  `yaml:"color,omitempty"`
	Font     string  `yaml:"font,omitempty"`

	From  string  `yaml:"from,omitempty"`
	To    string  `yaml:"to,omitempty"`
	Width float64 `yaml:"width,omitempty"`

	Content string `yaml:"content,omitempty"`
	Size    int    `yaml:"size,omitempty"`
}

// Load reads a storyboard file.
func Load(path string) (*Document, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return Parse(data)
}

// Parse decodes storyboard YAML.
func Parse(data []byte) (*Document, error) {
	var doc Document
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("%w: storyboard: %v", kinopy.ErrConfiguration, err)
	}
	return &doc, nil
}

// Save writes the document as YAML.
func Save(doc *Document, path string) error {
	data, err := yaml.Marshal(doc)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0644)
}

// Build merges the document's settings over base, constructs a builder for
// the output path and replays the document into it. An explicit output
// argument wins over the document's own.
func Build(doc *Document, output string, base kinopy.Options) (*kinopy.Builder, error) {
	if output == "" {
		output = doc.Output
	}
	opts := base
	if doc.Width != 0 {
		opts.Width = doc.Width
	}
	if doc.Height != 0 {
		opts.Height = doc.Height
	}
	if doc.FPS != 0 {
		opts.FPS = doc.FPS
	}
	if doc.Soundtrack != "" {
		opts.Soundtrack = doc.Soundtrack
	}
	if doc.Background != "" {
		bg, err := kinopy.ParseColor(doc.Background)
		if err != nil {
			return nil, err
		}
		opts.Background = bg
	}
	b, err := kinopy.New(output, opts)
	if err != nil {
		return nil, err
	}
	if err := Apply(doc, b); err != nil {
		b.Close()
		return nil, err
	}
	return b, nil
}

// Apply replays the document through b in order: segments first, then
// overlays, preserving both play order and overlay stacking order.
func Apply(doc *Document, b *kinopy.Builder) error {
	for i, seg := range doc.Segments {
		if err := applySegment(doc, seg, b); err != nil {
			return fmt.Errorf("storyboard segment %d (%s): %w", i+1, seg.Kind, err)
		}
	}
	for i, ov := range doc.Overlays {
		if err := applyOverlay(doc, ov, b); err != nil {
			return fmt.Errorf("storyboard overlay %d (%s): %w", i+1, ov.Kind, err)
		}
	}
	return nil
}

func applySegment(doc *Document, seg Segment, b *kinopy.Builder) error {
	switch seg.Kind {
	case "clip":
		bg, err := optionalColor(seg.Background)
		if err != nil {
			return err
		}
		return b.AddClip(seg.Path, kinopy.ClipOptions{
			Start:      seg.Start,
			End:        seg.End,
			FadeIn:     seg.FadeIn,
			FadeOut:    seg.FadeOut,
			Background: bg,
		})
	case "text":
		col, err := optionalColor(seg.Color)
		if err != nil {
			return err
		}
		bg, err := optionalColor(seg.Background)
		if err != nil {
			return err
		}
		font := seg.Font
		if font == "" {
			font = doc.Font
		}
		return b.AddTextScreen(seg.Text, seg.Duration, kinopy.TitleOptions{
			Size:       seg.FontSize,
			Color:      col,
			Background: bg,
			Font:       font,
			FadeIn:     seg.FadeIn,
			FadeOut:    seg.FadeOut,
		})
	case "freeze":
		return b.AddFreezeFrame(seg.Duration, seg.At, kinopy.FreezeOptions{
			FadeIn:  seg.FadeIn,
			FadeOut: seg.FadeOut,
		})
	case "slide":
		bg, err := optionalColor(seg.Background)
		if err != nil {
			return err
		}
		return b.AddSlide(seg.Path, seg.Page, seg.Duration, kinopy.SlideOptions{
			DPI:        seg.DPI,
			Background: bg,
			FadeIn:     seg.FadeIn,
			FadeOut:    seg.FadeOut,
		})
	case "":
		return fmt.Errorf("%w: missing segment kind", kinopy.ErrConfiguration)
	default:
		return fmt.Errorf("%w: unknown segment kind %q", kinopy.ErrConfiguration, seg.Kind)
	}
}

func applyOverlay(doc *Document, ov Overlay, b *kinopy.Builder) error {
	switch ov.Kind {
	case "text":
		col, err := optionalColor(ov.Color)
		if err != nil {
			return err
		}
		font := ov.Font
		if font == "" {
			font = doc.Font
		}
		pos, err := position(ov.Position)
		if err != nil {
			return err
		}
		return b.AddOverlay(kinopy.Text{
			Text:  ov.Text,
			Font:  font,
			Size:  ov.FontSize,
			Color: col,
		}, ov.Start, ov.Duration, pos)
	case "arrow":
		from, err := kinopy.ParsePoint(ov.From)
		if err != nil {
			return err
		}
		to, err := kinopy.ParsePoint(ov.To)
		if err != nil {
			return err
		}
		col, err := optionalColor(ov.Color)
		if err != nil {
			return err
		}
		return b.AddOverlay(kinopy.Arrow{
			Start:     from,
			End:       to,
			Color:     col,
			Thickness: ov.Width,
		}, ov.Start, ov.Duration, kinopy.At(0, 0))
	case "qr":
		pos, err := position(ov.Position)
		if err != nil {
			return err
		}
		return b.AddOverlay(kinopy.QR{
			Content: ov.Content,
			Size:    ov.Size,
		}, ov.Start, ov.Duration, pos)
	case "":
		return fmt.Errorf("%w: missing overlay kind", kinopy.ErrConfiguration)
	default:
		return fmt.Errorf("%w: unknown overlay kind %q", kinopy.ErrConfiguration, ov.Kind)
	}
}

func position(s string) (kinopy.Position, error) {
	if s == "" {
		return kinopy.Center(), nil
	}
	return kinopy.ParsePosition(s)
}

// optionalColor parses a color name, with empty meaning "use the default"
// (a nil color.Color).
func optionalColor(s string) (color.Color, error) {
	if s == "" {
		return nil, nil
	}
	parsed, err := kinopy.ParseColor(s)
	if err != nil {
		return nil, err
	}
	return parsed, nil
}
