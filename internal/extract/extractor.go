// Package extract runs ffmpeg to pull single frames and short clips out of
// media files.
package extract

import (
	"bytes"
	"context"
	"fmt"
	"log"
	"os"
	"os/exec"
	"strconv"
	"strings"
	"unicode/utf8"

	"github.com/dustin/go-humanize"
)

type ClipMode string

const (
	// ClipModeCopy copies the video stream; cuts snap to the keyframe at or
	// before the start point.
	ClipModeCopy ClipMode = "copy"
	// ClipModeReencode re-encodes video for frame-accurate cuts.
	ClipModeReencode ClipMode = "reencode"
)

// SeekBuffer is how far before the target the coarse keyframe seek lands.
const SeekBuffer = 5.0

const maxStderr = 2048

type ExtractionError struct {
	Op     string
	Stderr string
	Err    error
}

func (e *ExtractionError) Error() string {
	msg := fmt.Sprintf("ffmpeg %s failed: %v", e.Op, e.Err)
	if e.Stderr != "" {
		msg += ": " + e.Stderr
	}
	return msg
}

func (e *ExtractionError) Unwrap() error {
	return e.Err
}

type Config struct {
	FFmpegPath string
	Quality    int
	ClipMode   ClipMode
}

type Extractor struct {
	ffmpegPath string
	quality    int
	clipMode   ClipMode
}

func NewExtractor(cfg Config) (*Extractor, error) {
	name := cfg.FFmpegPath
	if name == "" {
		name = "ffmpeg"
	}
	ffmpegPath, err := exec.LookPath(name)
	if err != nil {
		return nil, fmt.Errorf("ffmpeg not found: %w", err)
	}
	log.Printf("[FFMPEG] Found ffmpeg at: %s", ffmpegPath)

	if cfg.Quality < 1 || cfg.Quality > 31 {
		cfg.Quality = 2
	}
	if cfg.ClipMode != ClipModeReencode {
		cfg.ClipMode = ClipModeCopy
	}

	return &Extractor{
		ffmpegPath: ffmpegPath,
		quality:    cfg.Quality,
		clipMode:   cfg.ClipMode,
	}, nil
}

func (e *Extractor) ClipMode() ClipMode {
	return e.clipMode
}

// ScreenshotArgs builds a two-pass seek: a keyframe-snapped input seek to
// max(0, ts-SeekBuffer), then an output seek that decodes forward to the
// exact presentation time before emitting one frame.
func ScreenshotArgs(mediaPath string, timestamp float64, quality int, outputPath string) []string {
	coarse := max(0, timestamp-SeekBuffer)
	fine := timestamp - coarse

	return []string{
		"-noaccurate_seek",
		"-ss", FormatTimecode(coarse),
		"-i", mediaPath,
		"-ss", FormatTimecode(fine),
		"-frames:v", "1",
		"-q:v", strconv.Itoa(quality),
		"-y",
		outputPath,
	}
}

// ClipArgs builds the clip command. Duration is passed with -t rather than an
// end time so seek error does not compound.
func ClipArgs(mediaPath string, start, duration float64, mode ClipMode, outputPath string) []string {
	args := []string{
		"-ss", FormatTimecode(start),
		"-i", mediaPath,
		"-t", FormatTimecode(duration),
	}

	if mode == ClipModeReencode {
		args = append(args, "-c:v", "libx264", "-preset", "veryfast", "-crf", "18")
	} else {
		args = append(args, "-c:v", "copy")
	}

	return append(args,
		"-c:a", "aac",
		"-ac", "2",
		"-b:a", "192k",
		"-avoid_negative_ts", "make_zero",
		"-movflags", "+faststart",
		"-y",
		outputPath,
	)
}

func (e *Extractor) ExtractScreenshot(ctx context.Context, mediaPath string, timestamp float64, outputPath string) error {
	if err := checkMedia("screenshot", mediaPath); err != nil {
		return err
	}
	args := ScreenshotArgs(mediaPath, timestamp, e.quality, outputPath)
	log.Printf("[FFMPEG] Screenshot: %s @ %s -> %s", mediaPath, FormatTimecode(timestamp), outputPath)
	return e.run(ctx, "screenshot", args, outputPath)
}

func (e *Extractor) ExtractClip(ctx context.Context, mediaPath string, start, duration float64, outputPath string) error {
	if err := checkMedia("clip", mediaPath); err != nil {
		return err
	}
	args := ClipArgs(mediaPath, start, duration, e.clipMode, outputPath)
	log.Printf("[FFMPEG] Clip (%s): %s @ %s for %s -> %s",
		e.clipMode, mediaPath, FormatTimecode(start), FormatTimecode(duration), outputPath)
	return e.run(ctx, "clip", args, outputPath)
}

func checkMedia(op, mediaPath string) error {
	if _, err := os.Stat(mediaPath); err != nil {
		return &ExtractionError{Op: op, Err: fmt.Errorf("media file not accessible: %w", err)}
	}
	return nil
}

// run executes ffmpeg and treats a non-empty output file as the success
// signal alongside the exit code. Partial output is removed on failure.
func (e *Extractor) run(ctx context.Context, op string, args []string, outputPath string) error {
	cmd := exec.CommandContext(ctx, e.ffmpegPath, args...)

	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		os.Remove(outputPath)
		errOutput := tail(strings.TrimSpace(stderr.String()), maxStderr)
		log.Printf("[FFMPEG] %s failed: %v: %s", op, err, errOutput)
		return &ExtractionError{Op: op, Stderr: errOutput, Err: err}
	}

	info, err := os.Stat(outputPath)
	if err != nil || info.Size() == 0 {
		os.Remove(outputPath)
		return &ExtractionError{Op: op, Err: fmt.Errorf("ffmpeg produced no output file")}
	}

	log.Printf("[FFMPEG] %s written: %s (%s)", op, outputPath, humanize.Bytes(uint64(info.Size())))
	return nil
}

// tail keeps at most the last n bytes of s without splitting a UTF-8
// sequence.
func tail(s string, n int) string {
	if len(s) <= n {
		return s
	}
	start := len(s) - n
	for start < len(s) && !utf8.RuneStart(s[start]) {
		start++
	}
	return s[start:]
}
