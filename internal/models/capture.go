package models

import (
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
)

var ErrNotFound = errors.New("not found")

type CaptureType string

const (
	CaptureScreenshot CaptureType = "screenshot"
	CaptureClip       CaptureType = "clip"
)

// Extension is the artifact file extension for the capture type.
func (t CaptureType) Extension() string {
	if t == CaptureClip {
		return ".mp4"
	}
	return ".jpg"
}

func (t CaptureType) Valid() bool {
	return t == CaptureScreenshot || t == CaptureClip
}

type CaptureStatus string

const (
	StatusPending  CaptureStatus = "pending"
	StatusComplete CaptureStatus = "complete"
	StatusFailed   CaptureStatus = "failed"
)

// Terminal reports whether no further transitions are allowed.
func (s CaptureStatus) Terminal() bool {
	return s == StatusComplete || s == StatusFailed
}

type Capture struct {
	ID               string
	Source           Source
	MediaTitle       string
	MediaPath        string
	TimestampSeconds float64
	CaptureType      CaptureType
	FilePath         string
	FileName         string
	FileSizeBytes    int64
	DurationSeconds  *float64
	Status           CaptureStatus
	ErrorMessage     string
	CreatedAt        time.Time
}

// NewCapture builds a pending capture for session with a fresh id. FilePath is
// left to the caller since it depends on the capture directory.
func NewCapture(session Session, captureType CaptureType, timestamp float64) *Capture {
	id := uuid.New().String()
	return &Capture{
		ID:               id,
		Source:           session.Source,
		MediaTitle:       session.DisplayTitle(),
		MediaPath:        session.MediaPath,
		TimestampSeconds: timestamp,
		CaptureType:      captureType,
		FileName:         id + captureType.Extension(),
		Status:           StatusPending,
		CreatedAt:        time.Now().UTC(),
	}
}

// ListFilter narrows a capture listing. A zero Type matches every type.
type ListFilter struct {
	Type   CaptureType
	Limit  int
	Offset int
}

type ScreenshotRequest struct {
	SessionID     string  `json:"session_id"`
	OffsetSeconds float64 `json:"offset_seconds"`
}

// ClipRequest carries either RelativeSeconds or both StartSeconds and
// EndSeconds.
type ClipRequest struct {
	SessionID       string   `json:"session_id"`
	RelativeSeconds *float64 `json:"relative_seconds,omitempty"`
	StartSeconds    *float64 `json:"start_seconds,omitempty"`
	EndSeconds      *float64 `json:"end_seconds,omitempty"`
}

func joinTitle(title, subtitle string) string {
	return strings.Trim(title+" — "+subtitle, " —")
}
