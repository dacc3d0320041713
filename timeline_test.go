package kinopy

import (
	"context"
	"errors"
	"image"
	"math"
	"testing"
)

// stubSource satisfies frameSource for timeline arithmetic tests that
// never look at pixels.
type stubSource struct{}

func (stubSource) frameAt(context.Context, float64) (*image.RGBA, error) {
	return image.NewRGBA(image.Rect(0, 0, 2, 2)), nil
}

func (stubSource) close() error { return nil }

func testSegment(d float64) *segment {
	return &segment{kind: kindClip, label: "test", duration: d, src: stubSource{}}
}

func TestTimelineStartsAreRunningSums(t *testing.T) {
	tl := &timeline{}
	for _, d := range []float64{4, 15, 2.5} {
		tl.append(testSegment(d))
	}

	wantStarts := []float64{0, 4, 19}
	for i, want := range wantStarts {
		if math.Abs(tl.starts[i]-want) > timeEpsilon {
			t.Errorf("segment %d: expected start %.3f, got %.3f", i, want, tl.starts[i])
		}
	}
	if math.Abs(tl.total-21.5) > timeEpsilon {
		t.Errorf("expected total 21.5, got %.3f", tl.total)
	}
}

func TestTimelineAccumulatesFractionalDurations(t *testing.T) {
	tl := &timeline{}
	for i := 0; i < 10; i++ {
		tl.append(testSegment(0.1))
	}
	if math.Abs(tl.total-1.0) > 1e-6 {
		t.Errorf("expected total 1.0, got %v", tl.total)
	}
	if math.Abs(tl.starts[9]-0.9) > 1e-6 {
		t.Errorf("expected last start 0.9, got %v", tl.starts[9])
	}
}

func TestSegmentAt(t *testing.T) {
	tl := &timeline{}
	tl.append(testSegment(4))
	tl.append(testSegment(15))
	tl.append(testSegment(2))

	tests := []struct {
		t         float64
		wantIdx   int
		wantLocal float64
	}{
		{0, 0, 0},
		{3.9, 0, 3.9},
		{4.0, 1, 0}, // boundary belongs to the later segment
		{4.1, 1, 0.1},
		{18.999, 1, 14.999},
		{19.0, 2, 0},
		{20.5, 2, 1.5},
	}
	for _, tt := range tests {
		idx, local := tl.segmentAt(tt.t)
		if idx != tt.wantIdx {
			t.Errorf("segmentAt(%v): expected segment %d, got %d", tt.t, tt.wantIdx, idx)
		}
		if math.Abs(local-tt.wantLocal) > 1e-9 {
			t.Errorf("segmentAt(%v): expected local %.4f, got %.4f", tt.t, tt.wantLocal, local)
		}
	}
}

func TestFrameCount(t *testing.T) {
	tests := []struct {
		total float64
		fps   int
		want  int
	}{
		{19, 30, 570},
		{4, 30, 120},
		{4.25, 30, 128}, // frame 127 at 4.2333s still belongs to the timeline
		{0, 30, 0},
		{1, 1, 1},
		{0.01, 30, 1},
	}
	for _, tt := range tests {
		if got := frameCount(tt.total, tt.fps); got != tt.want {
			t.Errorf("frameCount(%v, %d): expected %d, got %d", tt.total, tt.fps, tt.want, got)
		}
	}
}

func TestValidateEmptyTimeline(t *testing.T) {
	tl := &timeline{}
	err := tl.validate()
	if !errors.Is(err, ErrConfiguration) {
		t.Errorf("expected ErrConfiguration for empty timeline, got %v", err)
	}
}

func TestValidateOverlayWindowAgainstFinalDuration(t *testing.T) {
	// The overlay is added while the timeline is still short; only the
	// state at validation time counts.
	tl := &timeline{}
	tl.overlays = append(tl.overlays, &overlayItem{start: 30, duration: 4})
	tl.append(testSegment(4))
	tl.append(testSegment(15))

	err := tl.validate()
	if !errors.Is(err, ErrConfiguration) {
		t.Fatalf("expected ErrConfiguration for overlay past the end, got %v", err)
	}

	// Growing the timeline past the window makes the same overlay valid.
	tl.append(testSegment(20))
	if err := tl.validate(); err != nil {
		t.Errorf("expected overlay to become valid once the timeline covers it, got %v", err)
	}
}

func TestValidateOverlayEndingExactlyAtTotal(t *testing.T) {
	tl := &timeline{}
	tl.append(testSegment(19))
	tl.overlays = append(tl.overlays, &overlayItem{start: 15, duration: 4})
	if err := tl.validate(); err != nil {
		t.Errorf("overlay ending exactly at the timeline end should be valid, got %v", err)
	}
}

func TestOverlayActiveWindowIsHalfOpen(t *testing.T) {
	ov := &overlayItem{start: 12, duration: 4}
	tests := []struct {
		t    float64
		want bool
	}{
		{11.9, false},
		{12.0, true},
		{13.0, true},
		{15.999, true},
		{16.0, false},
		{16.1, false},
	}
	for _, tt := range tests {
		if got := ov.active(tt.t); got != tt.want {
			t.Errorf("active(%v): expected %v, got %v", tt.t, tt.want, got)
		}
	}
}

func TestStillSourceRetriesAfterCanceledLoad(t *testing.T) {
	calls := 0
	want := image.NewRGBA(image.Rect(0, 0, 2, 2))
	src := &stillSource{load: func(ctx context.Context) (*image.RGBA, error) {
		calls++
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		return want, nil
	}}

	canceled, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := src.frameAt(canceled, 0); err == nil {
		t.Fatal("expected the canceled load to fail")
	}
	got, err := src.frameAt(context.Background(), 0)
	if err != nil {
		t.Fatalf("load after a cancellation: %v", err)
	}
	if got != want {
		t.Error("expected the freshly loaded frame")
	}
	if calls != 2 {
		t.Errorf("expected the load to run again after cancellation, ran %d times", calls)
	}
}

func TestStillSourceLatchesRealFailures(t *testing.T) {
	calls := 0
	src := &stillSource{load: func(context.Context) (*image.RGBA, error) {
		calls++
		return nil, errors.New("page missing")
	}}
	for i := 0; i < 2; i++ {
		if _, err := src.frameAt(context.Background(), 0); err == nil {
			t.Fatal("expected the load failure to surface")
		}
	}
	if calls != 1 {
		t.Errorf("a real failure should load once and latch, ran %d times", calls)
	}
}
