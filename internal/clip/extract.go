package clip

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"os/exec"
	"strings"
)

// ExtractFrame decodes the single frame of path closest to the absolute
// timestamp at. Width and height must match the probed stream geometry.
// Freeze frames use this instead of a Reader because one seek is cheaper
// than spinning up a streaming decode.
func ExtractFrame(ctx context.Context, ffmpeg, path string, at float64, width, height int) (*image.RGBA, error) {
	args := []string{
		"-v", "error", "-nostdin",
		"-ss", formatSeconds(at),
		"-i", path,
		"-frames:v", "1",
		"-f", "rawvideo",
		"-pix_fmt", "rgba",
		"pipe:1",
	}
	cmd := exec.CommandContext(ctx, ffmpeg, args...)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		return nil, fmt.Errorf("extract frame at %.3fs from %s: %w: %s", at, path, err, strings.TrimSpace(stderr.String()))
	}
	want := width * height * 4
	if stdout.Len() < want {
		return nil, fmt.Errorf("no frame at %.3fs in %s", at, path)
	}
	img := image.NewRGBA(image.Rect(0, 0, width, height))
	copy(img.Pix, stdout.Bytes()[:want])
	return img, nil
}
