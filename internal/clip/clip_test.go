package clip

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestParseSeconds(t *testing.T) {
	tests := []struct {
		in   string
		want float64
	}{
		{"12.5", 12.5},
		{"0.041708", 0.041708},
		{" 3 ", 3},
		{"", 0},
		{"N/A", 0},
		{"-5", 0},
	}
	for _, tt := range tests {
		if got := parseSeconds(tt.in); got != tt.want {
			t.Errorf("parseSeconds(%q): expected %v, got %v", tt.in, tt.want, got)
		}
	}
}

func TestProbeResultDecoding(t *testing.T) {
	// A trimmed ffprobe -of json answer for a clip with one video and one
	// audio stream.
	payload := `{
		"streams": [
			{"codec_type": "video", "width": 1280, "height": 720, "duration": "14.966667"},
			{"codec_type": "audio", "duration": "15.000000"}
		],
		"format": {"duration": "15.023000"}
	}`
	var result probeResult
	if err := json.Unmarshal([]byte(payload), &result); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if len(result.Streams) != 2 {
		t.Fatalf("expected 2 streams, got %d", len(result.Streams))
	}
	v := result.Streams[0]
	if v.CodecType != "video" || v.Width != 1280 || v.Height != 720 {
		t.Errorf("unexpected video stream %+v", v)
	}
	if got := parseSeconds(result.Format.Duration); got != 15.023 {
		t.Errorf("expected the container duration 15.023, got %v", got)
	}
}

func TestNewReaderStartsNoProcess(t *testing.T) {
	r := NewReader("ffmpeg", "demo.mp4", 10, 5, 1280, 720, 30)
	if r.cmd != nil {
		t.Error("NewReader must not start a decoder")
	}
	if r.next != 0 || r.eof {
		t.Errorf("fresh reader should be at frame 0, got next=%d eof=%v", r.next, r.eof)
	}
}

func TestFrameAtRejectsNegativeIndex(t *testing.T) {
	r := NewReader("ffmpeg", "demo.mp4", 0, 5, 640, 480, 30)
	if _, err := r.FrameAt(context.Background(), -1); err == nil {
		t.Error("expected an error for a negative frame index")
	}
	if r.cmd != nil {
		t.Error("a rejected request must not start the decoder")
	}
}

// fakeDecoder writes an executable stand-in for ffmpeg that emits the
// given number of 2x1 rgba frames (8 bytes each) and exits with status.
func fakeDecoder(t *testing.T, frames, status int, stderr string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "ffmpeg")
	script := fmt.Sprintf("#!/bin/sh\nhead -c %d /dev/zero\n", frames*8)
	if stderr != "" {
		script += fmt.Sprintf("echo %q >&2\n", stderr)
	}
	script += fmt.Sprintf("exit %d\n", status)
	if err := os.WriteFile(path, []byte(script), 0o755); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestFrameAtSurfacesDecoderFailure(t *testing.T) {
	ffmpeg := fakeDecoder(t, 2, 1, "moov atom not found")
	r := NewReader(ffmpeg, "broken.mp4", 0, 10, 2, 1, 30)
	defer r.Close()
	ctx := context.Background()

	for n := 0; n < 2; n++ {
		if _, err := r.FrameAt(ctx, n); err != nil {
			t.Fatalf("frame %d before the failure: %v", n, err)
		}
	}
	_, err := r.FrameAt(ctx, 2)
	if err == nil {
		t.Fatal("expected an error once the decoder exits non-zero mid-stream")
	}
	if !strings.Contains(err.Error(), "moov atom not found") {
		t.Errorf("error should carry the decoder's stderr, got %v", err)
	}
	// Later requests must keep failing rather than repeat the stale frame.
	if _, err := r.FrameAt(ctx, 250); err == nil {
		t.Fatal("expected frame 250 to fail after the decoder died")
	}
}

func TestFrameAtPadsCleanShortStream(t *testing.T) {
	ffmpeg := fakeDecoder(t, 2, 0, "")
	r := NewReader(ffmpeg, "short.mp4", 0, 10, 2, 1, 30)
	defer r.Close()
	ctx := context.Background()

	last, err := r.FrameAt(ctx, 1)
	if err != nil {
		t.Fatal(err)
	}
	// A clean exit a frame or two short is rate-conversion rounding; the
	// final frame holds.
	for _, n := range []int{2, 3} {
		img, err := r.FrameAt(ctx, n)
		if err != nil {
			t.Fatalf("frame %d: %v", n, err)
		}
		if img != last {
			t.Errorf("frame %d should repeat the final decoded frame", n)
		}
	}
	// A deeper shortfall means the source is shorter than probed.
	if _, err := r.FrameAt(ctx, 4); err == nil {
		t.Fatal("expected an error for a request well past the stream end")
	}
}

func TestFrameAtSeeksToDistantFrame(t *testing.T) {
	dir := t.TempDir()
	argsFile := filepath.Join(dir, "args")
	ffmpeg := filepath.Join(dir, "ffmpeg")
	script := fmt.Sprintf("#!/bin/sh\necho \"$@\" > %s\nhead -c 24 /dev/zero\n", argsFile)
	if err := os.WriteFile(ffmpeg, []byte(script), 0o755); err != nil {
		t.Fatal(err)
	}
	r := NewReader(ffmpeg, "long.mp4", 2, 60, 2, 1, 30)
	defer r.Close()

	if _, err := r.FrameAt(context.Background(), 1000); err != nil {
		t.Fatalf("distant frame: %v", err)
	}
	if r.next != 1001 {
		t.Errorf("expected the stream cursor at 1001 after seeking, got %d", r.next)
	}
	if len(r.ahead) > seekBack {
		t.Errorf("a seek must not park the skipped frames, found %d parked", len(r.ahead))
	}
	args, err := os.ReadFile(argsFile)
	if err != nil {
		t.Fatal(err)
	}
	wantSeek := formatSeconds(2 + float64(1000-seekBack)/float64(30))
	if !strings.Contains(string(args), wantSeek) {
		t.Errorf("decoder should be started with -ss %s, got args %s", wantSeek, args)
	}
}

func TestTail(t *testing.T) {
	if got := tail("short", 512); got != "short" {
		t.Errorf("expected the string unchanged, got %q", got)
	}
	long := strings.Repeat("x", 600)
	got := tail(long, 512)
	if len(got) != 512+3 || !strings.HasPrefix(got, "...") {
		t.Errorf("expected a 512 byte tail with ellipsis, got %d bytes", len(got))
	}
}

func TestFormatSeconds(t *testing.T) {
	tests := []struct {
		in   float64
		want string
	}{
		{0, "0.000000"},
		{12.5, "12.500000"},
		{0.0333333333, "0.033333"},
	}
	for _, tt := range tests {
		if got := formatSeconds(tt.in); got != tt.want {
			t.Errorf("formatSeconds(%v): expected %q, got %q", tt.in, tt.want, got)
		}
	}
}
