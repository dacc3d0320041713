// Command kinopy renders an instructional video from flags or a YAML
// storyboard: title screens, trimmed clips, freeze frames, PDF slides and
// timed overlays, encoded through ffmpeg.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"image"
	"image/png"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"strings"

	kinopy "github.com/andjar/KinoPy"
	"github.com/andjar/KinoPy/internal/encode"
	"github.com/andjar/KinoPy/internal/storyboard"
	"github.com/andjar/KinoPy/internal/system"
)

func main() {
	output := flag.String("output", "output.mp4", "Output video path")
	size := flag.String("size", "1920x1080", "Canvas size as WIDTHxHEIGHT")
	fps := flag.Int("fps", 30, "Frames per second")
	workers := flag.Int("workers", 0, "Parallel frame workers (0 = auto from CPUs and memory)")
	background := flag.String("background", "black", "Letterbox color (name or #rrggbb)")
	font := flag.String("font", "", "TTF/OTF font file for text (default: built-in face)")

	title := flag.String("text", "", "Title text for a full-screen intro")
	titleDuration := flag.Float64("title-duration", 4, "Duration (s) of the title screen")
	titleFontsize := flag.Float64("title-fontsize", 70, "Font size for the title text")
	titleColor := flag.String("title-color", "white", "Title text color")
	titleBG := flag.String("title-bg", "black", "Title screen background color")

	clipPath := flag.String("clip", "", "Path to a video clip to include")
	clipStart := flag.Float64("clip-start", 0, "Start time (s) into the clip")
	clipEnd := flag.Float64("clip-end", 0, "End time (s) into the clip (0 = clip end)")
	fadeIn := flag.Float64("fade-in", 0, "Fade in duration (s) for the clip")
	fadeOut := flag.Float64("fade-out", 0, "Fade out duration (s) for the clip")

	freezeAt := flag.Float64("freeze-at", -1, "Freeze frame at time (s) into the previous segment")
	freezeDuration := flag.Float64("freeze-duration", 0, "Duration (s) of the freeze frame")

	slidePath := flag.String("slide", "", "PDF file for a slide segment")
	slidePage := flag.Int("slide-page", 1, "Page of the PDF (1-based)")
	slideDuration := flag.Float64("slide-duration", 4, "Duration (s) of the slide")

	overlayText := flag.String("overlay-text", "", "Text to overlay (requires -overlay-start)")
	overlayStart := flag.Float64("overlay-start", -1, "Start time (s) of the text overlay")
	overlayDuration := flag.Float64("overlay-duration", 4, "Duration (s) of the text overlay")
	overlayPosition := flag.String("overlay-position", "center,center", "Overlay position, e.g. 'center,150' or '960,540'")
	overlayFontsize := flag.Float64("overlay-fontsize", 50, "Font size for the text overlay")
	overlayColor := flag.String("overlay-color", "white", "Color of the text overlay")

	arrow := flag.String("arrow", "", "Arrow as x1,y1,x2,y2 (requires -arrow-start)")
	arrowStart := flag.Float64("arrow-start", -1, "Start time (s) of the arrow overlay")
	arrowDuration := flag.Float64("arrow-duration", 4, "Duration (s) of the arrow overlay")
	arrowColor := flag.String("arrow-color", "yellow", "Arrow color")
	arrowWidth := flag.Float64("arrow-width", 5, "Arrow stroke width")

	qrContent := flag.String("qr", "", "QR code content (requires -qr-start)")
	qrStart := flag.Float64("qr-start", -1, "Start time (s) of the QR overlay")
	qrDuration := flag.Float64("qr-duration", 4, "Duration (s) of the QR overlay")
	qrSize := flag.Int("qr-size", 256, "QR code edge length in pixels")
	qrPosition := flag.String("qr-position", "right-40,bottom-40", "QR code position")

	audio := flag.String("audio", "", "Soundtrack file muxed under the video")
	board := flag.String("storyboard", "", "YAML storyboard; flag-driven segments are appended after it")
	snapshot := flag.Float64("snapshot", -1, "Write a PNG of the frame at this time (s) instead of rendering")
	encoderName := flag.String("encoder", "libx264", "H.264 encoder: libx264, h264_nvenc, h264_videotoolbox or auto")
	quality := flag.Int("quality", 0, "Encoder quality (0 = default; x264 CRF, NVENC CQ, VideoToolbox bitrate = Q*100kbit/s)")
	preset := flag.String("preset", "medium", "libx264 preset")
	logLevel := flag.String("log-level", "info", "Log level: debug, info, warn, error")

	flag.Parse()

	logger := newLogger(*logLevel)
	slog.SetDefault(logger)
	fail := func(err error) {
		logger.Error("kinopy failed", "error", err)
		os.Exit(1)
	}

	if limit, err := system.RaiseFileLimit(); err == nil {
		logger.Debug("open file limit", "limit", limit)
	} else {
		logger.Debug("could not raise the open file limit", "error", err)
	}

	width, height, err := parseSize(*size)
	if err != nil {
		fail(err)
	}
	bg, err := kinopy.ParseColor(*background)
	if err != nil {
		fail(err)
	}

	encoder := *encoderName
	if encoder == "auto" {
		bins, err := encode.Locate()
		if err != nil {
			fail(fmt.Errorf("%w: %v (install ffmpeg)", kinopy.ErrExternal, err))
		}
		encoder = encode.DetectEncoder(bins.FFmpeg)
		if encoder != "libx264" {
			logger.Info("hardware encoder detected", "encoder", encoder)
		}
	}

	opts := kinopy.Options{
		Width:      width,
		Height:     height,
		FPS:        *fps,
		Background: bg,
		Workers:    *workers,
		Encoder:    encoder,
		Quality:    *quality,
		Preset:     *preset,
		Soundtrack: *audio,
		Logger:     logger,
	}

	var b *kinopy.Builder
	if *board != "" {
		doc, err := storyboard.Load(*board)
		if err != nil {
			fail(err)
		}
		if doc.Font == "" {
			doc.Font = *font
		}
		b, err = storyboard.Build(doc, *output, opts)
		if err != nil {
			fail(err)
		}
	} else {
		b, err = kinopy.New(*output, opts)
		if err != nil {
			fail(err)
		}
	}
	defer b.Close()

	if *title != "" {
		col, err := kinopy.ParseColor(*titleColor)
		if err != nil {
			fail(err)
		}
		titleBg, err := kinopy.ParseColor(*titleBG)
		if err != nil {
			fail(err)
		}
		err = b.AddTextScreen(*title, *titleDuration, kinopy.TitleOptions{
			Size:       *titleFontsize,
			Color:      col,
			Background: titleBg,
			Font:       *font,
		})
		if err != nil {
			fail(err)
		}
	}

	if *clipPath != "" {
		err := b.AddClip(*clipPath, kinopy.ClipOptions{
			Start:   *clipStart,
			End:     *clipEnd,
			FadeIn:  *fadeIn,
			FadeOut: *fadeOut,
		})
		if err != nil {
			fail(err)
		}
	}

	if *freezeAt >= 0 && *freezeDuration > 0 {
		if err := b.AddFreezeFrame(*freezeDuration, *freezeAt, kinopy.FreezeOptions{}); err != nil {
			fail(err)
		}
	}

	if *slidePath != "" {
		if err := b.AddSlide(*slidePath, *slidePage, *slideDuration, kinopy.SlideOptions{}); err != nil {
			fail(err)
		}
	}

	if *overlayText != "" && *overlayStart >= 0 {
		pos, err := kinopy.ParsePosition(*overlayPosition)
		if err != nil {
			fail(err)
		}
		col, err := kinopy.ParseColor(*overlayColor)
		if err != nil {
			fail(err)
		}
		err = b.AddOverlay(kinopy.Text{
			Text:  *overlayText,
			Font:  *font,
			Size:  *overlayFontsize,
			Color: col,
		}, *overlayStart, *overlayDuration, pos)
		if err != nil {
			fail(err)
		}
	}

	if *arrow != "" && *arrowStart >= 0 {
		from, to, err := parseArrow(*arrow)
		if err != nil {
			fail(err)
		}
		col, err := kinopy.ParseColor(*arrowColor)
		if err != nil {
			fail(err)
		}
		// Arrow coordinates are absolute canvas pixels, so the overlay
		// itself sits at the origin.
		err = b.AddOverlay(kinopy.Arrow{
			Start:     from,
			End:       to,
			Color:     col,
			Thickness: *arrowWidth,
		}, *arrowStart, *arrowDuration, kinopy.At(0, 0))
		if err != nil {
			fail(err)
		}
	}

	if *qrContent != "" && *qrStart >= 0 {
		pos, err := kinopy.ParsePosition(*qrPosition)
		if err != nil {
			fail(err)
		}
		err = b.AddOverlay(kinopy.QR{Content: *qrContent, Size: *qrSize}, *qrStart, *qrDuration, pos)
		if err != nil {
			fail(err)
		}
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	if *snapshot >= 0 {
		if err := writeSnapshot(ctx, b, *snapshot, *output, logger); err != nil {
			fail(err)
		}
		return
	}

	if err := b.Render(ctx); err != nil {
		fail(err)
	}
}

func writeSnapshot(ctx context.Context, b *kinopy.Builder, at float64, output string, logger *slog.Logger) error {
	index := int(at * float64(b.FPS()))
	frame, err := b.FrameAt(ctx, index)
	if err != nil {
		return err
	}
	path := snapshotPath(output)
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()
	if err := png.Encode(f, frame); err != nil {
		return err
	}
	logger.Info("snapshot written", "path", path, "time", at, "frame", index)
	return nil
}

func snapshotPath(output string) string {
	ext := filepath.Ext(output)
	if strings.EqualFold(ext, ".png") {
		return output
	}
	return strings.TrimSuffix(output, ext) + ".png"
}

func newLogger(level string) *slog.Logger {
	var l slog.Level
	switch strings.ToLower(level) {
	case "debug":
		l = slog.LevelDebug
	case "warn":
		l = slog.LevelWarn
	case "error":
		l = slog.LevelError
	default:
		l = slog.LevelInfo
	}
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: l}))
}

func parseSize(s string) (int, int, error) {
	parts := strings.SplitN(strings.ToLower(strings.TrimSpace(s)), "x", 2)
	if len(parts) != 2 {
		return 0, 0, errors.New("size must be WIDTHxHEIGHT, e.g. 1920x1080")
	}
	w, errW := strconv.Atoi(parts[0])
	h, errH := strconv.Atoi(parts[1])
	if errW != nil || errH != nil || w <= 0 || h <= 0 {
		return 0, 0, fmt.Errorf("bad size %q", s)
	}
	return w, h, nil
}

func parseArrow(s string) (image.Point, image.Point, error) {
	parts := strings.Split(s, ",")
	if len(parts) != 4 {
		return image.Point{}, image.Point{}, errors.New("arrow must be x1,y1,x2,y2")
	}
	vals := make([]int, 4)
	for i, p := range parts {
		v, err := strconv.Atoi(strings.TrimSpace(p))
		if err != nil {
			return image.Point{}, image.Point{}, fmt.Errorf("bad arrow coordinate %q", p)
		}
		vals[i] = v
	}
	return image.Pt(vals[0], vals[1]), image.Pt(vals[2], vals[3]), nil
}
