package encode

import (
	"os/exec"
	"strings"
)

// Binaries holds the resolved paths of the external tools the engine
// shells out to.
type Binaries struct {
	FFmpeg  string
	FFprobe string
}

// Locate finds ffmpeg and ffprobe on PATH. Rendering cannot proceed
// without both, so the caller treats an error here as fatal.
func Locate() (Binaries, error) {
	ffmpeg, err := exec.LookPath("ffmpeg")
	if err != nil {
		return Binaries{}, err
	}
	ffprobe, err := exec.LookPath("ffprobe")
	if err != nil {
		return Binaries{}, err
	}
	return Binaries{FFmpeg: ffmpeg, FFprobe: ffprobe}, nil
}

// DetectEncoder picks the best available H.264 encoder, preferring
// hardware: VideoToolbox on macOS, then NVENC, then software libx264.
func DetectEncoder(ffmpeg string) string {
	out, err := exec.Command(ffmpeg, "-hide_banner", "-encoders").CombinedOutput()
	if err != nil {
		return "libx264"
	}
	available := string(out)
	for _, name := range []string{"h264_videotoolbox", "h264_nvenc"} {
		if strings.Contains(available, name) {
			return name
		}
	}
	return "libx264"
}
