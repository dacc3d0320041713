// Package clip reads frames out of source video files through ffmpeg pipes.
//
// A clip is probed once when it joins the timeline and decoded lazily when
// the compositor first asks for one of its frames. Decoding is sequential
// by nature; Reader absorbs the small out-of-order window a parallel
// compositor produces and restarts the decoder when asked to rewind.
package clip

import (
	"context"
	"encoding/json"
	"fmt"
	"os/exec"
	"strconv"
	"strings"
)

// Info describes a source clip as reported by ffprobe.
type Info struct {
	Width    int
	Height   int
	Duration float64
	HasAudio bool
}

type probeResult struct {
	Streams []probeStream `json:"streams"`
	Format  probeFormat   `json:"format"`
}

type probeStream struct {
	CodecType string `json:"codec_type"`
	Width     int    `json:"width"`
	Height    int    `json:"height"`
	Duration  string `json:"duration"`
}

type probeFormat struct {
	Duration string `json:"duration"`
}

// Probe inspects path with ffprobe and reports the geometry and duration of
// its first video stream.
func Probe(ctx context.Context, ffprobe, path string) (Info, error) {
	cmd := exec.CommandContext(ctx, ffprobe,
		"-v", "error", "-hide_banner",
		"-show_format", "-show_streams",
		"-of", "json", "--", path)
	output, err := cmd.CombinedOutput()
	if err != nil {
		return Info{}, fmt.Errorf("ffprobe %s: %w: %s", path, err, strings.TrimSpace(string(output)))
	}

	var result probeResult
	if err := json.Unmarshal(output, &result); err != nil {
		return Info{}, fmt.Errorf("ffprobe parse %s: %w", path, err)
	}

	info := Info{Duration: parseSeconds(result.Format.Duration)}
	for _, s := range result.Streams {
		switch s.CodecType {
		case "video":
			if info.Width == 0 {
				info.Width, info.Height = s.Width, s.Height
				if info.Duration == 0 {
					info.Duration = parseSeconds(s.Duration)
				}
			}
		case "audio":
			info.HasAudio = true
		}
	}
	if info.Width <= 0 || info.Height <= 0 {
		return Info{}, fmt.Errorf("%s has no video stream", path)
	}
	if info.Duration <= 0 {
		return Info{}, fmt.Errorf("cannot determine duration of %s", path)
	}
	return info, nil
}

func parseSeconds(s string) float64 {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil || v < 0 {
		return 0
	}
	return v
}
