package kinopy

import (
	"context"
	"errors"
	"fmt"
	"image"
	"image/color"
	"sort"
	"sync"

	"github.com/andjar/KinoPy/internal/canvas"
	"github.com/andjar/KinoPy/internal/clip"
)

// timeEpsilon absorbs float noise when comparing accumulated durations.
const timeEpsilon = 1e-9

type segmentKind uint8

const (
	kindClip segmentKind = iota
	kindTitle
	kindFreeze
	kindSlide
)

func (k segmentKind) String() string {
	switch k {
	case kindClip:
		return "clip"
	case kindTitle:
		return "title"
	case kindFreeze:
		return "freeze"
	case kindSlide:
		return "slide"
	}
	return "segment"
}

// frameSource yields normalized canvas-sized frames for one segment. The
// local time is seconds from the segment's own start. Returned frames are
// shared and read-only; the compositor copies before painting.
type frameSource interface {
	frameAt(ctx context.Context, local float64) (*image.RGBA, error)
	close() error
}

// clipRef keeps what a later freeze frame needs to sample its source clip
// without going through the streaming reader. The letterbox color rides
// along so the frozen frame normalizes exactly like the live one.
type clipRef struct {
	path      string
	trimStart float64
	width     int
	height    int
	bg        color.Color
}

// segment is one gapless slot of the timeline.
type segment struct {
	kind     segmentKind
	label    string
	duration float64
	fadeIn   float64
	fadeOut  float64
	src      frameSource
	clip     *clipRef
}

// timeline is an ordered list of segments plus time-windowed overlays.
// Absolute segment starts are the running sum of prior durations; there are
// no gaps and no implicit reordering.
type timeline struct {
	segments []*segment
	starts   []float64
	total    float64
	overlays []*overlayItem
}

func (tl *timeline) append(seg *segment) {
	tl.starts = append(tl.starts, tl.total)
	tl.segments = append(tl.segments, seg)
	tl.total += seg.duration
}

func (tl *timeline) last() *segment {
	if len(tl.segments) == 0 {
		return nil
	}
	return tl.segments[len(tl.segments)-1]
}

// segmentAt maps an absolute time to (segment index, local time). A time
// exactly on a boundary belongs to the later segment. The caller guarantees
// 0 <= t < total.
func (tl *timeline) segmentAt(t float64) (int, float64) {
	i := sort.SearchFloat64s(tl.starts, t)
	if i < len(tl.starts) && tl.starts[i] == t {
		return i, 0
	}
	return i - 1, t - tl.starts[i-1]
}

// validate runs the checks that must wait until the timeline is complete,
// chiefly overlay windows against the final total duration.
func (tl *timeline) validate() error {
	if len(tl.segments) == 0 {
		return fmt.Errorf("%w: timeline is empty", ErrConfiguration)
	}
	for i, ov := range tl.overlays {
		if end := ov.start + ov.duration; end > tl.total+timeEpsilon {
			return fmt.Errorf("%w: overlay %d window [%.3fs, %.3fs) runs past the timeline end at %.3fs",
				ErrConfiguration, i, ov.start, end, tl.total)
		}
	}
	return nil
}

func (tl *timeline) close() {
	for _, seg := range tl.segments {
		seg.src.close()
	}
}

// stillSource serves a single lazily produced frame for its whole segment.
// Title screens, freeze frames and slides all land here. Real load
// failures latch; a load that only failed because its context was
// canceled is retried on the next request, so an interrupted snapshot
// does not poison the segment for later renders.
type stillSource struct {
	load func(context.Context) (*image.RGBA, error)

	mu  sync.Mutex
	img *image.RGBA
	err error
}

func (s *stillSource) frameAt(ctx context.Context, _ float64) (*image.RGBA, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.img != nil || s.err != nil {
		return s.img, s.err
	}
	img, err := s.load(ctx)
	if err != nil {
		if ctx.Err() == nil && !errors.Is(err, context.Canceled) && !errors.Is(err, context.DeadlineExceeded) {
			s.err = err
		}
		return nil, err
	}
	s.img = img
	return img, nil
}

func (s *stillSource) close() error { return nil }

// clipSource maps local segment time onto the decoder's frame index and
// normalizes what comes back.
type clipSource struct {
	reader *clip.Reader
	fps    int
	canvas image.Point
	bg     color.Color
}

func (c *clipSource) frameAt(ctx context.Context, local float64) (*image.RGBA, error) {
	n := int(local*float64(c.fps) + 1e-6)
	raw, err := c.reader.FrameAt(ctx, n)
	if err != nil {
		return nil, err
	}
	return canvas.Normalize(raw, c.canvas, c.bg), nil
}

func (c *clipSource) close() error { return c.reader.Close() }

// overlayItem is one drawable bound to a time window. The layer rasterizes
// once on first use and is reused for every covered frame. Insertion order
// is z-order: later overlays paint over earlier ones.
type overlayItem struct {
	drawable Drawable
	position Position
	start    float64
	duration float64

	once  sync.Once
	layer image.Image
	at    image.Point
	err   error
}

// active reports whether the overlay covers absolute time t. The window is
// half-open, so an overlay never bleeds into the frame at its end time.
func (o *overlayItem) active(t float64) bool {
	return t >= o.start && t < o.start+o.duration
}

func (o *overlayItem) render(env RenderEnv) (image.Image, image.Point, error) {
	o.once.Do(func() {
		layer, err := o.drawable.Render(env)
		if err != nil {
			o.err = err
			return
		}
		b := layer.Bounds()
		o.layer = layer
		o.at = o.position.resolve(env.Canvas, image.Pt(b.Dx(), b.Dy()))
	})
	return o.layer, o.at, o.err
}
