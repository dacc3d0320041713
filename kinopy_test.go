package kinopy

import (
	"errors"
	"image"
	"strings"
	"testing"
)

func TestNewDefaults(t *testing.T) {
	b, err := New("out.mp4", Options{})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if b.canvas != image.Pt(1920, 1080) {
		t.Errorf("expected the default 1920x1080 canvas, got %v", b.canvas)
	}
	if b.FPS() != 30 {
		t.Errorf("expected the default 30 fps, got %d", b.FPS())
	}
	if b.workers < 1 {
		t.Errorf("expected at least one worker, got %d", b.workers)
	}
	if b.Duration() != 0 || b.FrameCount() != 0 {
		t.Errorf("a fresh builder should be empty, got %.1fs / %d frames", b.Duration(), b.FrameCount())
	}
}

func TestNewValidation(t *testing.T) {
	tests := []struct {
		name string
		out  string
		opts Options
	}{
		{"empty output", "", Options{}},
		{"blank output", "   ", Options{}},
		{"odd width", "out.mp4", Options{Width: 641, Height: 480}},
		{"odd height", "out.mp4", Options{Width: 640, Height: 481}},
		{"width without height", "out.mp4", Options{Width: 640}},
		{"negative fps", "out.mp4", Options{FPS: -1}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := New(tt.out, tt.opts); !errors.Is(err, ErrConfiguration) {
				t.Errorf("expected ErrConfiguration, got %v", err)
			}
		})
	}
}

func TestAddClipRejectsBadWindows(t *testing.T) {
	b := newTestBuilder(t)
	if err := b.AddClip("demo.mp4", ClipOptions{Start: -1}); !errors.Is(err, ErrConfiguration) {
		t.Errorf("negative start: expected ErrConfiguration, got %v", err)
	}
	if err := b.AddClip("demo.mp4", ClipOptions{Start: 5, End: 2}); !errors.Is(err, ErrConfiguration) {
		t.Errorf("end before start: expected ErrConfiguration, got %v", err)
	}
	if err := b.AddClip("demo.mp4", ClipOptions{Start: 5, End: 5}); !errors.Is(err, ErrConfiguration) {
		t.Errorf("empty window: expected ErrConfiguration, got %v", err)
	}
	if got := b.Duration(); got != 0 {
		t.Errorf("rejected clips must not extend the timeline, got %.1fs", got)
	}
}

func TestAddTextScreenValidation(t *testing.T) {
	b := newTestBuilder(t)
	if err := b.AddTextScreen("x", 0, TitleOptions{}); !errors.Is(err, ErrConfiguration) {
		t.Errorf("zero duration: expected ErrConfiguration, got %v", err)
	}
	if err := b.AddTextScreen("x", -2, TitleOptions{}); !errors.Is(err, ErrConfiguration) {
		t.Errorf("negative duration: expected ErrConfiguration, got %v", err)
	}
	if err := b.AddTextScreen("x", 3, TitleOptions{FadeIn: -1}); !errors.Is(err, ErrConfiguration) {
		t.Errorf("negative fade: expected ErrConfiguration, got %v", err)
	}
}

func TestAddFreezeFrameValidation(t *testing.T) {
	b := newTestBuilder(t)
	if err := b.AddFreezeFrame(3, 1, FreezeOptions{}); !errors.Is(err, ErrConfiguration) {
		t.Errorf("empty timeline: expected ErrConfiguration, got %v", err)
	}
	if err := b.AddTextScreen("intro", 4, TitleOptions{}); err != nil {
		t.Fatalf("AddTextScreen: %v", err)
	}
	if err := b.AddFreezeFrame(0, 1, FreezeOptions{}); !errors.Is(err, ErrConfiguration) {
		t.Errorf("zero duration: expected ErrConfiguration, got %v", err)
	}
	if err := b.AddFreezeFrame(3, -1, FreezeOptions{}); !errors.Is(err, ErrConfiguration) {
		t.Errorf("negative sample time: expected ErrConfiguration, got %v", err)
	}
	if err := b.AddFreezeFrame(3, 4.5, FreezeOptions{}); !errors.Is(err, ErrConfiguration) {
		t.Errorf("sample past the segment: expected ErrConfiguration, got %v", err)
	}
	// Sampling exactly at the segment end is allowed.
	if err := b.AddFreezeFrame(3, 4, FreezeOptions{}); err != nil {
		t.Errorf("sample at the segment end: expected success, got %v", err)
	}
	if got := b.Duration(); got != 7 {
		t.Errorf("expected duration 7s, got %.1fs", got)
	}
}

func TestAddFreezeFrameFades(t *testing.T) {
	b := newTestBuilder(t)
	if err := b.AddTextScreen("intro", 4, TitleOptions{}); err != nil {
		t.Fatalf("AddTextScreen: %v", err)
	}
	if err := b.AddFreezeFrame(2, 1, FreezeOptions{FadeIn: 5, FadeOut: 1}); err != nil {
		t.Fatalf("AddFreezeFrame: %v", err)
	}
	seg := b.tl.last()
	if seg.fadeIn != 2 || seg.fadeOut != 1 {
		t.Errorf("expected fades clamped to (2, 1), got (%v, %v)", seg.fadeIn, seg.fadeOut)
	}
	if err := b.AddFreezeFrame(2, 1, FreezeOptions{FadeIn: -1}); !errors.Is(err, ErrConfiguration) {
		t.Errorf("negative fade: expected ErrConfiguration, got %v", err)
	}
}

func TestAddOverlayValidation(t *testing.T) {
	b := newTestBuilder(t)
	if err := b.AddOverlay(nil, 0, 4, Center()); !errors.Is(err, ErrConfiguration) {
		t.Errorf("nil drawable: expected ErrConfiguration, got %v", err)
	}
	if err := b.AddOverlay(Text{Text: "x"}, -1, 4, Center()); !errors.Is(err, ErrConfiguration) {
		t.Errorf("negative start: expected ErrConfiguration, got %v", err)
	}
	if err := b.AddOverlay(Text{Text: "x"}, 0, 0, Center()); !errors.Is(err, ErrConfiguration) {
		t.Errorf("zero duration: expected ErrConfiguration, got %v", err)
	}
	// Windows beyond the current total are fine: segments may follow.
	if err := b.AddOverlay(Text{Text: "x"}, 100, 4, Center()); err != nil {
		t.Errorf("future window: expected success, got %v", err)
	}
}

func TestClampFades(t *testing.T) {
	fadeIn, fadeOut, err := clampFades(10, 8, 4, "seg")
	if err != nil {
		t.Fatalf("clampFades: %v", err)
	}
	if fadeIn != 4 || fadeOut != 4 {
		t.Errorf("expected fades clamped to 4s, got %v / %v", fadeIn, fadeOut)
	}
	if _, _, err := clampFades(-1, 0, 4, "seg"); !errors.Is(err, ErrConfiguration) {
		t.Errorf("negative fade-in: expected ErrConfiguration, got %v", err)
	}
	if _, _, err := clampFades(0, -1, 4, "seg"); !errors.Is(err, ErrConfiguration) {
		t.Errorf("negative fade-out: expected ErrConfiguration, got %v", err)
	}
}

func TestFirstLine(t *testing.T) {
	if got := firstLine("hello\nworld"); got != "hello" {
		t.Errorf("expected the first line, got %q", got)
	}
	long := strings.Repeat("a", 60)
	if got := firstLine(long); len(got) != 48 {
		t.Errorf("expected truncation to 48, got %d", len(got))
	}
	if got := firstLine("short"); got != "short" {
		t.Errorf("expected the text unchanged, got %q", got)
	}
}

func TestTimelineAccumulation(t *testing.T) {
	b := newTestBuilder(t)
	if err := b.AddTextScreen("a", 1.5, TitleOptions{}); err != nil {
		t.Fatalf("AddTextScreen: %v", err)
	}
	if err := b.AddTextScreen("b", 2.5, TitleOptions{}); err != nil {
		t.Fatalf("AddTextScreen: %v", err)
	}
	if got := b.Duration(); got != 4 {
		t.Errorf("expected duration 4s, got %v", got)
	}
	if got := b.FrameCount(); got != 120 {
		t.Errorf("expected 120 frames, got %d", got)
	}
}
