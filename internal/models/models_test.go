package models

import (
	"strings"
	"testing"
)

func TestSessionDisplayTitle(t *testing.T) {
	tests := []struct {
		name     string
		title    string
		subtitle string
		expected string
	}{
		{"Movie", "Heat", "", "Heat"},
		{"Episode", "The Wire", "S01E02 — The Detail", "The Wire — S01E02 — The Detail"},
		{"Subtitle only", "", "Pilot", "Pilot"},
		{"Empty", "", "", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := Session{Title: tt.title, Subtitle: tt.subtitle}
			if got := s.DisplayTitle(); got != tt.expected {
				t.Errorf("DisplayTitle() = %q; want %q", got, tt.expected)
			}
		})
	}
}

func TestNewCapture(t *testing.T) {
	session := Session{
		SessionID: "plex-42",
		Source:    SourcePlex,
		Title:     "Heat",
		MediaPath: "/media/movies/heat.mkv",
	}

	screenshot := NewCapture(session, CaptureScreenshot, 12.5)
	if screenshot.ID == "" {
		t.Fatal("Expected ID to be generated")
	}
	if screenshot.FileName != screenshot.ID+".jpg" {
		t.Errorf("Expected file name %s.jpg, got %s", screenshot.ID, screenshot.FileName)
	}
	if screenshot.Status != StatusPending {
		t.Errorf("Expected pending status, got %s", screenshot.Status)
	}
	if screenshot.MediaTitle != "Heat" || screenshot.MediaPath != session.MediaPath {
		t.Errorf("Session fields not copied: %+v", screenshot)
	}

	clip := NewCapture(session, CaptureClip, 0)
	if !strings.HasSuffix(clip.FileName, ".mp4") {
		t.Errorf("Expected .mp4 clip, got %s", clip.FileName)
	}
	if clip.ID == screenshot.ID {
		t.Error("Expected distinct ids")
	}
}

func TestCaptureStatusTerminal(t *testing.T) {
	if StatusPending.Terminal() {
		t.Error("pending must not be terminal")
	}
	if !StatusComplete.Terminal() || !StatusFailed.Terminal() {
		t.Error("complete and failed must be terminal")
	}
}
