// Package kinopy assembles short instructional videos from a declarative
// timeline: source clips, generated title screens, freeze frames and PDF
// slides, concatenated gaplessly and annotated with time-windowed overlays
// (text, arrows, QR codes). Frames are composited in Go and streamed to an
// external ffmpeg process for encoding.
//
// A Builder collects segments in order, then Render produces the file:
//
//	b, _ := kinopy.New("lesson.mp4", kinopy.Options{})
//	b.AddTextScreen("Welcome", 4, kinopy.TitleOptions{})
//	b.AddClip("demo.mp4", kinopy.ClipOptions{Start: 10, End: 25, FadeIn: 1})
//	b.AddOverlay(kinopy.Text{Text: "Note the output"}, 12, 4, kinopy.Center())
//	err := b.Render(ctx)
//
// Builders are not safe for concurrent use; rendering itself is parallel
// internally.
package kinopy

import (
	"context"
	"fmt"
	"image"
	"image/color"
	"image/draw"
	"log/slog"
	"strings"
	"sync"

	"github.com/andjar/KinoPy/internal/canvas"
	"github.com/andjar/KinoPy/internal/clip"
	"github.com/andjar/KinoPy/internal/encode"
	"github.com/andjar/KinoPy/internal/slide"
	"github.com/andjar/KinoPy/internal/system"
)

// Canvas and timing defaults.
const (
	DefaultWidth  = 1920
	DefaultHeight = 1080
	DefaultFPS    = 30
)

// Options configures a Builder. The zero value gives a 1920x1080 canvas at
// 30 fps with black letterboxing and the software x264 encoder.
type Options struct {
	// Width and Height set the canvas. Both must be even; yuv420p output
	// subsamples chroma 2x2.
	Width, Height int
	// FPS is the constant output frame rate.
	FPS int
	// Background fills letterbox bands. Nil means black. Segments can
	// override it individually.
	Background color.Color
	// FontOpener resolves font references for text. Nil means loading
	// TTF/OTF files from disk.
	FontOpener FontOpener
	// Workers caps parallel frame synthesis. Zero sizes it from the
	// host's CPUs and available memory.
	Workers int
	// Encoder selects the H.264 encoder. Empty means libx264; see
	// DetectEncoder for hardware probing.
	Encoder string
	// Quality is encoder specific (CRF for libx264). Zero picks the
	// encoder's default.
	Quality int
	// Preset is the libx264 preset. Empty means medium.
	Preset string
	// Soundtrack is an optional audio file muxed under the video and
	// trimmed to the shorter of the two.
	Soundtrack string
	// Logger receives progress and fallback warnings. Nil means
	// slog.Default().
	Logger *slog.Logger
}

// Builder accumulates a timeline and renders it. Segments play in the
// order they were added; there are no gaps and no reordering.
type Builder struct {
	out        string
	canvas     image.Point
	fps        int
	bg         color.Color
	opener     FontOpener
	workers    int
	encoder    string
	quality    int
	preset     string
	soundtrack string
	log        *slog.Logger

	binsOnce sync.Once
	bins     encode.Binaries
	binsErr  error

	tl *timeline
}

// New prepares a builder writing to output.
func New(output string, opts Options) (*Builder, error) {
	if strings.TrimSpace(output) == "" {
		return nil, fmt.Errorf("%w: empty output path", ErrConfiguration)
	}
	w, h := opts.Width, opts.Height
	if w == 0 && h == 0 {
		w, h = DefaultWidth, DefaultHeight
	}
	if w <= 0 || h <= 0 {
		return nil, fmt.Errorf("%w: canvas %dx%d", ErrConfiguration, w, h)
	}
	if w%2 != 0 || h%2 != 0 {
		return nil, fmt.Errorf("%w: canvas %dx%d must have even dimensions for yuv420p output", ErrConfiguration, w, h)
	}
	fps := opts.FPS
	if fps == 0 {
		fps = DefaultFPS
	}
	if fps < 1 {
		return nil, fmt.Errorf("%w: fps %d", ErrConfiguration, fps)
	}
	bg := opts.Background
	if bg == nil {
		bg = color.Black
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	workers := opts.Workers
	if workers <= 0 {
		workers = system.Workers(w, h)
	}
	return &Builder{
		out:        output,
		canvas:     image.Pt(w, h),
		fps:        fps,
		bg:         bg,
		opener:     opts.FontOpener,
		workers:    workers,
		encoder:    opts.Encoder,
		quality:    opts.Quality,
		preset:     opts.Preset,
		soundtrack: opts.Soundtrack,
		log:        logger,
		tl:         &timeline{},
	}, nil
}

// ClipOptions trims and fades one source clip segment.
type ClipOptions struct {
	// Start and End bound the used window in source seconds. End zero
	// means the end of the clip.
	Start, End float64
	// FadeIn and FadeOut are ramp lengths in seconds, clamped to the
	// trimmed duration.
	FadeIn, FadeOut float64
	// Background overrides the builder's letterbox color for this clip.
	Background color.Color
}

// AddClip appends the window [Start, End) of the video at path. The clip
// is probed immediately so trim errors surface here, but no frames are
// decoded until rendering.
func (b *Builder) AddClip(path string, opts ClipOptions) error {
	if opts.Start < 0 {
		return fmt.Errorf("%w: clip %s: negative trim start %.3f", ErrConfiguration, path, opts.Start)
	}
	if opts.End != 0 && opts.End <= opts.Start {
		return fmt.Errorf("%w: clip %s: trim window [%.3fs, %.3fs) is empty", ErrConfiguration, path, opts.Start, opts.End)
	}
	bins, err := b.binaries()
	if err != nil {
		return err
	}
	info, err := clip.Probe(context.Background(), bins.FFprobe, path)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrExternal, err)
	}
	if info.HasAudio && b.soundtrack == "" {
		b.log.Warn("clip audio is dropped; only a soundtrack is carried", "path", path)
	}
	end := opts.End
	if end == 0 {
		end = info.Duration
	}
	if end > info.Duration+timeEpsilon {
		return fmt.Errorf("%w: clip %s: trim end %.3fs past the clip end at %.3fs", ErrConfiguration, path, end, info.Duration)
	}
	duration := end - opts.Start
	if duration <= 0 {
		return fmt.Errorf("%w: clip %s: trim window [%.3fs, %.3fs) is empty", ErrConfiguration, path, opts.Start, end)
	}
	fadeIn, fadeOut, err := clampFades(opts.FadeIn, opts.FadeOut, duration, path)
	if err != nil {
		return err
	}
	bg := opts.Background
	if bg == nil {
		bg = b.bg
	}
	reader := clip.NewReader(bins.FFmpeg, path, opts.Start, duration, info.Width, info.Height, b.fps)
	b.tl.append(&segment{
		kind:     kindClip,
		label:    path,
		duration: duration,
		fadeIn:   fadeIn,
		fadeOut:  fadeOut,
		src:      &clipSource{reader: reader, fps: b.fps, canvas: b.canvas, bg: bg},
		clip:     &clipRef{path: path, trimStart: opts.Start, width: info.Width, height: info.Height, bg: bg},
	})
	b.log.Debug("clip added", "path", path, "start", opts.Start, "duration", duration, "timeline", b.tl.total)
	return nil
}

// TitleOptions styles a generated text screen.
type TitleOptions struct {
	// Size is the point size. Zero means 70.
	Size float64
	// Color is the text color. Nil means white.
	Color color.Color
	// Background fills the screen. Nil means black.
	Background color.Color
	// Font is a path to a TTF/OTF file. Empty means the built-in face.
	Font string
	// FadeIn and FadeOut ramp the whole screen, clamped to duration.
	FadeIn, FadeOut float64
}

// AddTextScreen appends a full-canvas card with centered text. The card is
// rasterized once, on first use.
func (b *Builder) AddTextScreen(text string, duration float64, opts TitleOptions) error {
	if duration <= 0 {
		return fmt.Errorf("%w: text screen duration %.3fs", ErrConfiguration, duration)
	}
	label := firstLine(text)
	fadeIn, fadeOut, err := clampFades(opts.FadeIn, opts.FadeOut, duration, label)
	if err != nil {
		return err
	}
	b.tl.append(&segment{
		kind:     kindTitle,
		label:    label,
		duration: duration,
		fadeIn:   fadeIn,
		fadeOut:  fadeOut,
		src: &stillSource{load: func(context.Context) (*image.RGBA, error) {
			return b.renderTitle(text, opts), nil
		}},
	})
	b.log.Debug("text screen added", "text", label, "duration", duration, "timeline", b.tl.total)
	return nil
}

func (b *Builder) renderTitle(text string, opts TitleOptions) *image.RGBA {
	size := opts.Size
	if size <= 0 {
		size = defaultTitleSize
	}
	col := opts.Color
	if col == nil {
		col = color.White
	}
	bg := opts.Background
	if bg == nil {
		bg = color.Black
	}
	face := b.renderEnv().Face(opts.Font, size)
	block := renderTextBlock(face, text, col, true)

	img := image.NewRGBA(image.Rect(0, 0, b.canvas.X, b.canvas.Y))
	draw.Draw(img, img.Bounds(), image.NewUniform(bg), image.Point{}, draw.Src)
	bb := block.Bounds()
	at := image.Pt((b.canvas.X-bb.Dx())/2, (b.canvas.Y-bb.Dy())/2)
	draw.Draw(img, bb.Add(at), block, bb.Min, draw.Over)
	return img
}

// FreezeOptions fades a freeze-frame segment.
type FreezeOptions struct {
	// FadeIn and FadeOut ramp the held frame, clamped to duration.
	FadeIn, FadeOut float64
}

// AddFreezeFrame appends a still of the previous segment, sampled atTime
// seconds into that segment's own window. The held frame fades like any
// other segment. It fails when the timeline is empty or atTime falls
// outside the previous segment.
func (b *Builder) AddFreezeFrame(duration, atTime float64, opts FreezeOptions) error {
	if duration <= 0 {
		return fmt.Errorf("%w: freeze frame duration %.3fs", ErrConfiguration, duration)
	}
	if atTime < 0 {
		return fmt.Errorf("%w: freeze frame sample time %.3fs", ErrConfiguration, atTime)
	}
	prev := b.tl.last()
	if prev == nil {
		return fmt.Errorf("%w: freeze frame needs a preceding segment", ErrConfiguration)
	}
	if atTime > prev.duration+timeEpsilon {
		return fmt.Errorf("%w: freeze frame at %.3fs is past the end of %s %q (%.3fs long)",
			ErrConfiguration, atTime, prev.kind, prev.label, prev.duration)
	}
	label := fmt.Sprintf("of %s", prev.label)
	fadeIn, fadeOut, err := clampFades(opts.FadeIn, opts.FadeOut, duration, label)
	if err != nil {
		return err
	}

	var load func(context.Context) (*image.RGBA, error)
	if ref := prev.clip; ref != nil {
		// Sampling the exact segment end would step past the last
		// packet, so pull back half a frame.
		sample := atTime
		if limit := prev.duration - 0.5/float64(b.fps); sample > limit {
			sample = limit
		}
		if sample < 0 {
			sample = 0
		}
		abs := ref.trimStart + sample
		load = func(ctx context.Context) (*image.RGBA, error) {
			bins, err := b.binaries()
			if err != nil {
				return nil, err
			}
			raw, err := clip.ExtractFrame(ctx, bins.FFmpeg, ref.path, abs, ref.width, ref.height)
			if err != nil {
				return nil, fmt.Errorf("%w: %w", ErrExternal, err)
			}
			return canvas.NormalizeStill(raw, b.canvas, ref.bg), nil
		}
	} else {
		// The previous segment is a still; freezing it is the same
		// cached frame.
		src, at := prev.src, atTime
		load = func(ctx context.Context) (*image.RGBA, error) {
			return src.frameAt(ctx, at)
		}
	}
	b.tl.append(&segment{
		kind:     kindFreeze,
		label:    label,
		duration: duration,
		fadeIn:   fadeIn,
		fadeOut:  fadeOut,
		src:      &stillSource{load: load},
	})
	b.log.Debug("freeze frame added", "source", prev.label, "at", atTime, "duration", duration, "timeline", b.tl.total)
	return nil
}

// SlideOptions styles a PDF page segment.
type SlideOptions struct {
	// DPI is the rasterization density. Zero means 150.
	DPI int
	// Background overrides the letterbox color for this slide.
	Background color.Color
	// FadeIn and FadeOut ramp the slide, clamped to duration.
	FadeIn, FadeOut float64
}

// AddSlide appends one page (1-based) of a PDF document as a still
// segment. The page count is checked immediately; rasterization waits
// until rendering.
func (b *Builder) AddSlide(path string, page int, duration float64, opts SlideOptions) error {
	if duration <= 0 {
		return fmt.Errorf("%w: slide duration %.3fs", ErrConfiguration, duration)
	}
	count, err := slide.PageCount(path)
	if err != nil {
		return fmt.Errorf("%w: open slides %s: %v", ErrExternal, path, err)
	}
	if page < 1 || page > count {
		return fmt.Errorf("%w: page %d out of range, %s has %d pages", ErrConfiguration, page, path, count)
	}
	label := fmt.Sprintf("%s page %d", path, page)
	fadeIn, fadeOut, err := clampFades(opts.FadeIn, opts.FadeOut, duration, label)
	if err != nil {
		return err
	}
	bg := opts.Background
	if bg == nil {
		bg = b.bg
	}
	dpi := opts.DPI
	b.tl.append(&segment{
		kind:     kindSlide,
		label:    label,
		duration: duration,
		fadeIn:   fadeIn,
		fadeOut:  fadeOut,
		src: &stillSource{load: func(context.Context) (*image.RGBA, error) {
			img, err := slide.Render(path, page-1, dpi)
			if err != nil {
				return nil, fmt.Errorf("%w: %w", ErrExternal, err)
			}
			return canvas.NormalizeStill(img, b.canvas, bg), nil
		}},
	})
	b.log.Debug("slide added", "page", label, "duration", duration, "timeline", b.tl.total)
	return nil
}

// AddOverlay shows a drawable on every frame of the half-open window
// [start, start+duration). Overlays added later paint over earlier ones.
// The window is checked against the total duration when rendering starts,
// so overlays may be added before the segments they annotate.
func (b *Builder) AddOverlay(d Drawable, start, duration float64, pos Position) error {
	if d == nil {
		return fmt.Errorf("%w: nil drawable", ErrConfiguration)
	}
	if start < 0 {
		return fmt.Errorf("%w: overlay start %.3fs", ErrConfiguration, start)
	}
	if duration <= 0 {
		return fmt.Errorf("%w: overlay duration %.3fs", ErrConfiguration, duration)
	}
	b.tl.overlays = append(b.tl.overlays, &overlayItem{
		drawable: d,
		position: pos,
		start:    start,
		duration: duration,
	})
	b.log.Debug("overlay added", "start", start, "duration", duration)
	return nil
}

// Duration is the current total timeline length in seconds.
func (b *Builder) Duration() float64 {
	return b.tl.total
}

// FPS is the output frame rate the builder was configured with.
func (b *Builder) FPS() int {
	return b.fps
}

// FrameCount is the number of frames Render will emit for the current
// timeline.
func (b *Builder) FrameCount() int {
	return frameCount(b.tl.total, b.fps)
}

// Close releases decoder processes. The builder stays usable; decoders
// restart on demand.
func (b *Builder) Close() error {
	b.tl.close()
	return nil
}

func (b *Builder) renderEnv() RenderEnv {
	return RenderEnv{Canvas: b.canvas, OpenFont: b.opener, Log: b.log}
}

func (b *Builder) binaries() (encode.Binaries, error) {
	b.binsOnce.Do(func() {
		b.bins, b.binsErr = encode.Locate()
	})
	if b.binsErr != nil {
		return encode.Binaries{}, fmt.Errorf("%w: %v (ffmpeg and ffprobe must be on PATH)", ErrExternal, b.binsErr)
	}
	return b.bins, nil
}

func clampFades(fadeIn, fadeOut, duration float64, label string) (float64, float64, error) {
	if fadeIn < 0 || fadeOut < 0 {
		return 0, 0, fmt.Errorf("%w: %s: negative fade duration", ErrConfiguration, label)
	}
	if fadeIn > duration {
		fadeIn = duration
	}
	if fadeOut > duration {
		fadeOut = duration
	}
	return fadeIn, fadeOut, nil
}

func firstLine(text string) string {
	if i := strings.IndexByte(text, '\n'); i >= 0 {
		text = text[:i]
	}
	if len(text) > 48 {
		text = text[:48]
	}
	return text
}
