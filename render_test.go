package kinopy

import (
	"bytes"
	"context"
	"errors"
	"image"
	"log/slog"
	"math/rand"
	"strings"
	"testing"
	"time"
)

// jitterSource stamps the frame index into the first pixel and finishes
// after a random delay, so results reach the writer out of order.
type jitterSource struct {
	fps  int
	size image.Point
}

func (s jitterSource) frameAt(_ context.Context, local float64) (*image.RGBA, error) {
	n := int(local*float64(s.fps) + 1e-6)
	time.Sleep(time.Duration(rand.Intn(3)) * time.Millisecond)
	img := image.NewRGBA(image.Rect(0, 0, s.size.X, s.size.Y))
	img.Pix[0] = byte(n)
	img.Pix[1] = byte(n >> 8)
	return img, nil
}

func (s jitterSource) close() error { return nil }

// recordingSink reads the stamped index back out of every frame it is
// handed, before the frame returns to the pool.
type recordingSink struct {
	indices []int
}

func (s *recordingSink) WriteFrame(img *image.RGBA) error {
	s.indices = append(s.indices, int(img.Pix[0])|int(img.Pix[1])<<8)
	return nil
}

// failAfterSink accepts limit frames and then refuses, like an encoder
// whose pipe closed.
type failAfterSink struct {
	n     int
	limit int
}

func (s *failAfterSink) WriteFrame(*image.RGBA) error {
	s.n++
	if s.n > s.limit {
		return errors.New("broken pipe")
	}
	return nil
}

func appendJitterClip(b *Builder, duration float64) {
	b.tl.append(&segment{
		kind:     kindClip,
		label:    "jitter",
		duration: duration,
		src:      jitterSource{fps: b.fps, size: b.canvas},
	})
}

func TestRenderFramesEmitsStrictOrder(t *testing.T) {
	b := newTestBuilder(t)
	appendJitterClip(b, 4)
	comp := &compositor{tl: b.tl, fps: b.fps, env: b.renderEnv()}
	total := comp.frameCount()
	if total != 120 {
		t.Fatalf("expected 120 frames, got %d", total)
	}

	sink := &recordingSink{}
	if err := b.renderFrames(context.Background(), comp, sink, total, 8); err != nil {
		t.Fatalf("renderFrames: %v", err)
	}
	if len(sink.indices) != total {
		t.Fatalf("expected %d frames written, got %d", total, len(sink.indices))
	}
	for i, got := range sink.indices {
		if got != i {
			t.Fatalf("position %d received frame %d", i, got)
		}
	}
}

func TestRenderFramesStopsOnSinkError(t *testing.T) {
	b := newTestBuilder(t)
	appendJitterClip(b, 4)
	comp := &compositor{tl: b.tl, fps: b.fps, env: b.renderEnv()}

	err := b.renderFrames(context.Background(), comp, &failAfterSink{limit: 10}, comp.frameCount(), 4)
	if err == nil {
		t.Fatal("expected the sink failure to abort rendering")
	}
	if !errors.Is(err, ErrExternal) {
		t.Errorf("a sink failure is an encoder failure, got %v", err)
	}
}

func TestRenderFramesLogsProgressEverySecond(t *testing.T) {
	var buf bytes.Buffer
	b, err := New("out.mp4", Options{
		Width:   320,
		Height:  180,
		FPS:     30,
		Workers: 2,
		Logger:  slog.New(slog.NewTextHandler(&buf, nil)),
	})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	appendJitterClip(b, 4)
	comp := &compositor{tl: b.tl, fps: b.fps, env: b.renderEnv()}

	if err := b.renderFrames(context.Background(), comp, &recordingSink{}, comp.frameCount(), 4); err != nil {
		t.Fatalf("renderFrames: %v", err)
	}
	// 4s at 30 fps: progress at frames 30, 60 and 90.
	if got := strings.Count(buf.String(), "render progress"); got != 3 {
		t.Errorf("expected 3 progress lines, got %d:\n%s", got, buf.String())
	}
}
