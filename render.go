package kinopy

import (
	"context"
	"fmt"
	"image"
	"os"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/andjar/KinoPy/internal/encode"
	"github.com/andjar/KinoPy/internal/system"
)

type renderedFrame struct {
	index int
	img   *image.RGBA
}

// frameSink consumes composited frames strictly in presentation order.
// encode.Session is the production sink.
type frameSink interface {
	WriteFrame(*image.RGBA) error
}

// Render validates the timeline, composites every frame and streams them
// to ffmpeg. On any failure the partial output file is removed; Render
// either produces the whole video or nothing.
//
// Frames are synthesized by a worker pool and reordered before the encoder,
// which is the single serialization point. The timeline survives the call,
// so a builder can render again (for example after a snapshot).
func (b *Builder) Render(ctx context.Context) error {
	if err := b.tl.validate(); err != nil {
		return err
	}
	bins, err := b.binaries()
	if err != nil {
		return err
	}

	comp := &compositor{tl: b.tl, fps: b.fps, env: b.renderEnv()}
	total := comp.frameCount()
	if total == 0 {
		return fmt.Errorf("%w: timeline renders zero frames", ErrConfiguration)
	}
	workers := b.workers
	if workers > total {
		workers = total
	}
	if workers < 1 {
		workers = 1
	}

	session, err := encode.Start(ctx, bins.FFmpeg, b.out, encode.Settings{
		Width:      b.canvas.X,
		Height:     b.canvas.Y,
		FPS:        b.fps,
		Encoder:    b.encoder,
		Quality:    b.quality,
		Preset:     b.preset,
		Soundtrack: b.soundtrack,
	})
	if err != nil {
		return fmt.Errorf("%w: %v", ErrExternal, err)
	}

	b.log.Info("render started",
		"output", b.out,
		"segments", len(b.tl.segments),
		"overlays", len(b.tl.overlays),
		"duration", fmt.Sprintf("%.2fs", b.tl.total),
		"frames", total,
		"workers", workers)
	startedAt := time.Now()

	if err := b.renderFrames(ctx, comp, session, total, workers); err != nil {
		session.Abort()
		os.Remove(b.out)
		b.tl.close()
		return err
	}
	if err := session.Close(); err != nil {
		os.Remove(b.out)
		b.tl.close()
		return fmt.Errorf("%w: %v", ErrExternal, err)
	}
	b.tl.close()

	elapsed := time.Since(startedAt)
	b.log.Info("render complete",
		"output", b.out,
		"frames", session.Frames(),
		"elapsed", elapsed.Round(time.Millisecond),
		"speed", fmt.Sprintf("%.1f fps", float64(total)/elapsed.Seconds()))
	return nil
}

func (b *Builder) renderFrames(ctx context.Context, comp *compositor, sink frameSink, total, workers int) error {
	g, ctx := errgroup.WithContext(ctx)
	jobs := make(chan int)
	results := make(chan renderedFrame, workers)
	// inflight bounds unwritten frames, which also bounds how far apart
	// the clip readers see requests.
	inflight := make(chan struct{}, workers*2)
	pool := system.NewFramePool(image.Rect(0, 0, b.canvas.X, b.canvas.Y))

	g.Go(func() error {
		defer close(jobs)
		for i := 0; i < total; i++ {
			select {
			case inflight <- struct{}{}:
			case <-ctx.Done():
				return ctx.Err()
			}
			select {
			case jobs <- i:
			case <-ctx.Done():
				return ctx.Err()
			}
		}
		return nil
	})

	for w := 0; w < workers; w++ {
		g.Go(func() error {
			for i := range jobs {
				frame := pool.Get()
				if err := comp.frameInto(ctx, frame, i); err != nil {
					pool.Put(frame)
					return fmt.Errorf("frame %d: %w", i, err)
				}
				select {
				case results <- renderedFrame{index: i, img: frame}:
				case <-ctx.Done():
					pool.Put(frame)
					return ctx.Err()
				}
			}
			return nil
		})
	}

	g.Go(func() error {
		pending := make(map[int]*image.RGBA, workers)
		// one progress line per second of output
		logEvery := b.fps
		for next := 0; next < total; {
			var rf renderedFrame
			select {
			case rf = <-results:
			case <-ctx.Done():
				return ctx.Err()
			}
			pending[rf.index] = rf.img
			for {
				img, ok := pending[next]
				if !ok {
					break
				}
				if err := sink.WriteFrame(img); err != nil {
					return fmt.Errorf("%w: %v", ErrExternal, err)
				}
				pool.Put(img)
				delete(pending, next)
				<-inflight
				next++
				if next%logEvery == 0 && next < total {
					b.log.Info("render progress", "frames", next, "total", total)
				}
			}
		}
		return nil
	})

	return g.Wait()
}

// FrameAt composites a single frame without encoding anything, for
// snapshots and tests. The index counts output frames from zero; the frame
// shows the timeline at index/fps seconds.
func (b *Builder) FrameAt(ctx context.Context, index int) (*image.RGBA, error) {
	if err := b.tl.validate(); err != nil {
		return nil, err
	}
	comp := &compositor{tl: b.tl, fps: b.fps, env: b.renderEnv()}
	total := comp.frameCount()
	if index < 0 || index >= total {
		return nil, fmt.Errorf("%w: frame %d out of range [0, %d)", ErrConfiguration, index, total)
	}
	dst := image.NewRGBA(image.Rect(0, 0, b.canvas.X, b.canvas.Y))
	if err := comp.frameInto(ctx, dst, index); err != nil {
		return nil, err
	}
	return dst, nil
}
