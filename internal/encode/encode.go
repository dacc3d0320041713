// Package encode streams composited frames into an ffmpeg child process.
//
// The engine is the only producer of pixels; ffmpeg owns containers,
// codecs and audio muxing. Frames travel over stdin as packed rgb24, which
// keeps the pipe 25% slimmer than rgba and matches what the encoders
// consume anyway.
package encode

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"io"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"
)

// Settings fixes the output geometry and codec parameters for one render.
type Settings struct {
	Width   int
	Height  int
	FPS     int
	Encoder string // libx264, h264_nvenc or h264_videotoolbox
	// Quality is encoder specific: CRF for libx264, CQ for NVENC, and a
	// bitrate multiplier (quality*100 kbit/s) for VideoToolbox. Zero
	// picks the encoder's default.
	Quality int
	Preset  string // libx264 preset, default medium
	// Soundtrack is an optional audio file muxed under the video and cut
	// to the shorter of the two.
	Soundtrack string
}

// DefaultQuality returns the quality used when Settings.Quality is zero.
func DefaultQuality(encoder string) int {
	switch encoder {
	case "h264_videotoolbox":
		return 75
	case "h264_nvenc":
		return 28
	default:
		return 23
	}
}

// Session is one running encode. Frames go in strictly in presentation
// order; Close finishes the file, Abort discards it.
type Session struct {
	cmd    *exec.Cmd
	stdin  io.WriteCloser
	stderr *bytes.Buffer
	rgb    []byte
	width  int
	height int
	frames int
}

// Start launches ffmpeg reading rawvideo from stdin and writing out.
func Start(ctx context.Context, ffmpeg, out string, s Settings) (*Session, error) {
	cmd := exec.CommandContext(ctx, ffmpeg, buildArgs(out, s)...)
	stderr := &bytes.Buffer{}
	cmd.Stderr = stderr
	stdin, err := cmd.StdinPipe()
	if err != nil {
		return nil, fmt.Errorf("encoder stdin: %w", err)
	}
	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("start %s: %w", ffmpeg, err)
	}
	return &Session{
		cmd:    cmd,
		stdin:  stdin,
		stderr: stderr,
		rgb:    make([]byte, s.Width*s.Height*3),
		width:  s.Width,
		height: s.Height,
	}, nil
}

func buildArgs(out string, s Settings) []string {
	args := []string{
		"-y",
		"-f", "rawvideo",
		"-pixel_format", "rgb24",
		"-video_size", fmt.Sprintf("%dx%d", s.Width, s.Height),
		"-framerate", strconv.Itoa(s.FPS),
		"-i", "pipe:0",
	}
	if s.Soundtrack != "" {
		args = append(args, "-i", s.Soundtrack)
	}
	args = append(args, "-map", "0:v")
	if s.Soundtrack != "" {
		args = append(args, "-map", "1:a", "-c:a", "aac", "-b:a", "192k", "-shortest")
	}

	encoder := s.Encoder
	if encoder == "" {
		encoder = "libx264"
	}
	quality := s.Quality
	if quality == 0 {
		quality = DefaultQuality(encoder)
	}
	args = append(args, "-c:v", encoder)
	switch encoder {
	case "h264_videotoolbox":
		args = append(args, "-b:v", fmt.Sprintf("%dk", quality*100))
	case "h264_nvenc":
		args = append(args, "-cq", strconv.Itoa(quality))
	default:
		preset := s.Preset
		if preset == "" {
			preset = "medium"
		}
		args = append(args, "-crf", strconv.Itoa(quality), "-preset", preset)
	}
	args = append(args, "-pix_fmt", "yuv420p")
	switch strings.ToLower(filepath.Ext(out)) {
	case ".mp4", ".mov", ".m4v":
		args = append(args, "-movflags", "+faststart")
	}
	return append(args, out)
}

// WriteFrame pushes one canvas-sized RGBA frame to the encoder. The alpha
// channel is dropped; frames reaching the encoder are already flat.
func (s *Session) WriteFrame(img *image.RGBA) error {
	b := img.Bounds()
	if b.Dx() != s.width || b.Dy() != s.height {
		return fmt.Errorf("frame is %dx%d, encoder expects %dx%d", b.Dx(), b.Dy(), s.width, s.height)
	}
	packRGB(s.rgb, img)
	if _, err := s.stdin.Write(s.rgb); err != nil {
		return fmt.Errorf("write frame %d: %w%s", s.frames, err, s.stderrTail())
	}
	s.frames++
	return nil
}

// Frames reports how many frames have been accepted so far.
func (s *Session) Frames() int {
	return s.frames
}

// Close signals end of stream and waits for ffmpeg to finish the file.
func (s *Session) Close() error {
	s.stdin.Close()
	if err := s.cmd.Wait(); err != nil {
		return fmt.Errorf("encoder: %w%s", err, s.stderrTail())
	}
	return nil
}

// Abort tears the encoder down without finishing the file. The partial
// output is the caller's to remove.
func (s *Session) Abort() {
	s.stdin.Close()
	if s.cmd.Process != nil {
		s.cmd.Process.Kill()
	}
	s.cmd.Wait()
}

// packRGB strips the alpha channel, honoring the source stride.
func packRGB(dst []byte, img *image.RGBA) {
	b := img.Bounds()
	w, h := b.Dx(), b.Dy()
	i := 0
	for y := 0; y < h; y++ {
		row := img.Pix[y*img.Stride : y*img.Stride+w*4]
		for x := 0; x < w*4; x += 4 {
			dst[i] = row[x]
			dst[i+1] = row[x+1]
			dst[i+2] = row[x+2]
			i += 3
		}
	}
}

func (s *Session) stderrTail() string {
	msg := strings.TrimSpace(s.stderr.String())
	if msg == "" {
		return ""
	}
	if len(msg) > 512 {
		msg = "..." + msg[len(msg)-512:]
	}
	return ": " + msg
}
