package extract

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"testing"
	"unicode/utf8"
)

// writeFakeFFmpeg installs a shell script standing in for ffmpeg. The script
// records its arguments next to itself and then runs body.
func writeFakeFFmpeg(t *testing.T, body string) (string, string) {
	t.Helper()
	dir := t.TempDir()
	argsFile := filepath.Join(dir, "args.txt")
	script := "#!/bin/sh\nprintf '%s\\n' \"$@\" > '" + argsFile + "'\nfor last; do :; done\n" + body + "\n"
	path := filepath.Join(dir, "ffmpeg")
	if err := os.WriteFile(path, []byte(script), 0755); err != nil {
		t.Fatalf("Failed to write fake ffmpeg: %v", err)
	}
	return path, argsFile
}

func newTestExtractor(t *testing.T, body string, mode ClipMode) (*Extractor, string) {
	t.Helper()
	ffmpeg, argsFile := writeFakeFFmpeg(t, body)
	e, err := NewExtractor(Config{FFmpegPath: ffmpeg, Quality: 3, ClipMode: mode})
	if err != nil {
		t.Fatalf("NewExtractor() error = %v", err)
	}
	return e, argsFile
}

func mediaFile(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "movie.mkv")
	if err := os.WriteFile(path, []byte("not really a movie"), 0644); err != nil {
		t.Fatalf("Failed to create media file: %v", err)
	}
	return path
}

func TestScreenshotArgs(t *testing.T) {
	tests := []struct {
		name      string
		timestamp float64
		coarse    string
		fine      string
	}{
		{"Well past buffer", 125.5, "00:02:00.500", "00:00:05.000"},
		{"Inside buffer", 3.25, "00:00:00.000", "00:00:03.250"},
		{"Zero", 0, "00:00:00.000", "00:00:00.000"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ScreenshotArgs("/media/in.mkv", tt.timestamp, 2, "/out/x.jpg")
			want := []string{
				"-noaccurate_seek",
				"-ss", tt.coarse,
				"-i", "/media/in.mkv",
				"-ss", tt.fine,
				"-frames:v", "1",
				"-q:v", "2",
				"-y",
				"/out/x.jpg",
			}
			if !reflect.DeepEqual(got, want) {
				t.Errorf("ScreenshotArgs() = %v; want %v", got, want)
			}
		})
	}
}

func TestClipArgs(t *testing.T) {
	copyArgs := strings.Join(ClipArgs("/media/in.mkv", 170, 30, ClipModeCopy, "/out/c.mp4"), " ")
	wantCopy := "-ss 00:02:50.000 -i /media/in.mkv -t 00:00:30.000 -c:v copy -c:a aac -ac 2 -b:a 192k " +
		"-avoid_negative_ts make_zero -movflags +faststart -y /out/c.mp4"
	if copyArgs != wantCopy {
		t.Errorf("copy ClipArgs() =\n%s\nwant\n%s", copyArgs, wantCopy)
	}

	reencode := strings.Join(ClipArgs("/media/in.mkv", 170, 30, ClipModeReencode, "/out/c.mp4"), " ")
	if !strings.Contains(reencode, "-c:v libx264 -preset veryfast -crf 18") {
		t.Errorf("Expected libx264 re-encode, got %s", reencode)
	}
	if strings.Contains(reencode, "-c:v copy") {
		t.Errorf("Re-encode must not copy video: %s", reencode)
	}
	if !strings.Contains(reencode, "-t 00:00:30.000") {
		t.Errorf("Expected duration timecode, got %s", reencode)
	}
}

func TestExtractor_ExtractScreenshot(t *testing.T) {
	e, argsFile := newTestExtractor(t, `printf 'jpegdata' > "$last"`, ClipModeCopy)
	media := mediaFile(t)
	out := filepath.Join(t.TempDir(), "shot.jpg")

	if err := e.ExtractScreenshot(context.Background(), media, 42, out); err != nil {
		t.Fatalf("ExtractScreenshot() error = %v", err)
	}

	data, err := os.ReadFile(out)
	if err != nil || string(data) != "jpegdata" {
		t.Fatalf("Expected output written, got %q, %v", data, err)
	}

	recorded, _ := os.ReadFile(argsFile)
	if !strings.Contains(string(recorded), "-q:v\n3\n") {
		t.Errorf("Expected configured quality in args, got:\n%s", recorded)
	}
}

func TestExtractor_ExtractClip(t *testing.T) {
	e, argsFile := newTestExtractor(t, `printf 'mp4data' > "$last"`, ClipModeReencode)
	if e.ClipMode() != ClipModeReencode {
		t.Errorf("Expected reencode mode, got %s", e.ClipMode())
	}
	media := mediaFile(t)
	out := filepath.Join(t.TempDir(), "clip.mp4")

	if err := e.ExtractClip(context.Background(), media, 10, 5, out); err != nil {
		t.Fatalf("ExtractClip() error = %v", err)
	}

	recorded, _ := os.ReadFile(argsFile)
	if !strings.Contains(string(recorded), "libx264") {
		t.Errorf("Expected re-encode args, got:\n%s", recorded)
	}
}

func TestExtractor_Failures(t *testing.T) {
	tests := []struct {
		name       string
		body       string
		wantStderr string
	}{
		{"Non-zero exit", `printf 'partial' > "$last"; echo "Invalid data found" >&2; exit 1`, "Invalid data found"},
		{"No output", `exit 0`, ""},
		{"Empty output", `: > "$last"`, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e, _ := newTestExtractor(t, tt.body, ClipModeCopy)
			media := mediaFile(t)
			out := filepath.Join(t.TempDir(), "out.jpg")

			err := e.ExtractScreenshot(context.Background(), media, 1, out)
			var extractErr *ExtractionError
			if !errors.As(err, &extractErr) {
				t.Fatalf("Expected ExtractionError, got %v", err)
			}
			if tt.wantStderr != "" && !strings.Contains(extractErr.Error(), tt.wantStderr) {
				t.Errorf("Expected stderr in error, got %q", extractErr.Error())
			}
			if _, err := os.Stat(out); !os.IsNotExist(err) {
				t.Error("Partial output was not removed")
			}
		})
	}
}

func TestExtractor_MissingMedia(t *testing.T) {
	e, argsFile := newTestExtractor(t, `printf 'x' > "$last"`, ClipModeCopy)
	out := filepath.Join(t.TempDir(), "clip.mp4")

	err := e.ExtractClip(context.Background(), "/nonexistent/movie.mkv", 0, 5, out)
	var extractErr *ExtractionError
	if !errors.As(err, &extractErr) {
		t.Fatalf("Expected ExtractionError, got %v", err)
	}
	if _, err := os.Stat(argsFile); !os.IsNotExist(err) {
		t.Error("ffmpeg should not run for a missing media file")
	}
}

func TestNewExtractor_NotFound(t *testing.T) {
	if _, err := NewExtractor(Config{FFmpegPath: "/nonexistent/ffmpeg"}); err == nil {
		t.Error("Expected error for missing ffmpeg binary")
	}
}

func TestTail(t *testing.T) {
	tests := []struct {
		name string
		in   string
		n    int
		want string
	}{
		{"short", "abc", 10, "abc"},
		{"ascii cut", "abcdef", 3, "def"},
		{"cut inside rune", "ééé", 3, "é"},
		{"cut on boundary", "ééé", 4, "éé"},
		{"multibyte tail", "error: 文件不存在", 7, "存在"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := tail(tt.in, tt.n)
			if got != tt.want {
				t.Errorf("tail(%q, %d) = %q, want %q", tt.in, tt.n, got, tt.want)
			}
			if !utf8.ValidString(got) || len(got) > tt.n {
				t.Errorf("tail(%q, %d) = %q is not a valid suffix", tt.in, tt.n, got)
			}
		})
	}
}
