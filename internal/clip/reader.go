package clip

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	"io"
	"os/exec"
	"strconv"
	"sync"
)

const (
	// maxAhead bounds the parked out-of-order frames and the distance a
	// request may run ahead of the stream before the reader reseeks
	// instead of draining. The render pool's reorder window stays far
	// below this.
	maxAhead = 128

	// seekBack starts a reseek a couple of frames before the target so
	// end-of-stream rounding still leaves a decoded frame to repeat.
	seekBack = 2

	// eofPad is how many frames past a cleanly ended stream may repeat
	// the final frame; constant-rate resampling rounds the frame count
	// by at most one.
	eofPad = 2
)

// Reader decodes one trimmed clip as a constant-frame-rate RGBA stream.
//
// Frames are indexed from zero within the trim window. Requests may arrive
// slightly out of order; frames decoded early are parked until asked for.
// Asking for an index behind the stream, or far ahead of it, restarts the
// decoder seeking straight to the neighborhood of the request, so a Reader
// serves any number of passes as well as one-shot snapshot pulls. A stream
// that ends cleanly a frame or two short of the trim window repeats its
// final frame; a decoder that exits non-zero surfaces the failure instead.
// All methods are safe for concurrent use.
type Reader struct {
	ffmpeg   string
	path     string
	start    float64
	duration float64
	width    int
	height   int
	fps      int

	mu     sync.Mutex
	cmd    *exec.Cmd
	stdout io.ReadCloser
	stderr *bytes.Buffer
	next   int
	ahead  map[int]*image.RGBA
	last   *image.RGBA
	eof    bool
}

// NewReader prepares a decoder for the window [start, start+duration) of
// path. Width and height come from probing; fps is the output frame rate.
// No process is started until the first frame is requested.
func NewReader(ffmpeg, path string, start, duration float64, width, height, fps int) *Reader {
	return &Reader{
		ffmpeg:   ffmpeg,
		path:     path,
		start:    start,
		duration: duration,
		width:    width,
		height:   height,
		fps:      fps,
	}
}

// FrameAt returns frame n of the trimmed clip. The returned image is owned
// by the reader's history (it may be handed out again as end padding) and
// must be treated as read-only.
func (r *Reader) FrameAt(ctx context.Context, n int) (*image.RGBA, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if n < 0 {
		return nil, fmt.Errorf("clip %s: negative frame index %d", r.path, n)
	}
	if img, ok := r.ahead[n]; ok {
		delete(r.ahead, n)
		r.last = img
		return img, nil
	}
	if r.eof && n >= r.next {
		return r.padFrame(n)
	}
	if r.cmd == nil || n < r.next || n-r.next >= maxAhead {
		base := 0
		if n >= maxAhead {
			base = n - seekBack
		}
		if err := r.restartAt(ctx, base); err != nil {
			return nil, err
		}
	}

	for {
		img, err := r.readFrame()
		if err != nil {
			if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
				if werr := r.reap(); werr != nil {
					if ctx.Err() != nil {
						return nil, ctx.Err()
					}
					return nil, fmt.Errorf("clip %s: decoder failed after %d frames: %v%s",
						r.path, r.next, werr, r.stderrTail())
				}
				r.eof = true
				return r.padFrame(n)
			}
			return nil, fmt.Errorf("clip %s: read frame %d: %w%s", r.path, r.next, err, r.stderrTail())
		}
		idx := r.next
		r.next++
		if idx == n {
			r.last = img
			return img, nil
		}
		// Over the cap the frame is dropped; a later request for it
		// rewinds the decoder.
		if len(r.ahead) < maxAhead {
			r.ahead[idx] = img
		}
	}
}

// padFrame serves a request past the end of a cleanly ended stream. The
// pad is bounded: deeper shortfalls mean the source is shorter than the
// probe reported.
func (r *Reader) padFrame(n int) (*image.RGBA, error) {
	if r.last == nil {
		return nil, fmt.Errorf("clip %s decoded no frames%s", r.path, r.stderrTail())
	}
	if n >= r.next+eofPad {
		return nil, fmt.Errorf("clip %s: stream ended after %d frames, frame %d requested", r.path, r.next, n)
	}
	return r.last, nil
}

// Close stops the decoder process. The reader stays usable; the next
// request starts a fresh decode.
func (r *Reader) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.stop()
	return nil
}

// restartAt starts a decoder whose first output frame is frame of the trim
// window, using an advanced input seek so skipped frames are never decoded.
func (r *Reader) restartAt(ctx context.Context, frame int) error {
	r.stop()

	offset := float64(frame) / float64(r.fps)
	args := []string{
		"-v", "error", "-nostdin",
		"-ss", formatSeconds(r.start + offset),
		"-i", r.path,
		"-t", formatSeconds(r.duration - offset),
		"-an",
		"-f", "rawvideo",
		"-pix_fmt", "rgba",
		"-r", strconv.Itoa(r.fps),
		"pipe:1",
	}
	cmd := exec.CommandContext(ctx, r.ffmpeg, args...)
	stderr := &bytes.Buffer{}
	cmd.Stderr = stderr
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return fmt.Errorf("clip %s: %w", r.path, err)
	}
	if err := cmd.Start(); err != nil {
		return fmt.Errorf("clip %s: start decoder: %w", r.path, err)
	}

	r.cmd = cmd
	r.stdout = stdout
	r.stderr = stderr
	r.next = frame
	r.ahead = make(map[int]*image.RGBA)
	r.last = nil
	r.eof = false
	return nil
}

func (r *Reader) readFrame() (*image.RGBA, error) {
	img := image.NewRGBA(image.Rect(0, 0, r.width, r.height))
	if _, err := io.ReadFull(r.stdout, img.Pix); err != nil {
		return nil, err
	}
	return img, nil
}

// reap collects the decoder's exit status once its stream has ended. A
// non-zero exit means the stream is truncated, not merely short.
func (r *Reader) reap() error {
	r.stdout.Close()
	err := r.cmd.Wait()
	r.cmd = nil
	r.stdout = nil
	return err
}

func (r *Reader) stop() {
	if r.cmd == nil {
		return
	}
	r.stdout.Close()
	if r.cmd.Process != nil {
		r.cmd.Process.Kill()
	}
	r.cmd.Wait()
	r.cmd = nil
	r.stdout = nil
	r.ahead = nil
	r.last = nil
	r.eof = false
}

func (r *Reader) stderrTail() string {
	if r.stderr == nil || r.stderr.Len() == 0 {
		return ""
	}
	return ": " + tail(r.stderr.String(), 512)
}

func tail(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return "..." + s[len(s)-n:]
}

func formatSeconds(v float64) string {
	return strconv.FormatFloat(v, 'f', 6, 64)
}
