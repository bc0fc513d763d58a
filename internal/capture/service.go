package capture

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"

	"github.com/dustin/go-humanize"
	"github.com/kdimtricp/mediasnap/internal/models"
	"github.com/kdimtricp/mediasnap/internal/storage"
)

var (
	ErrSessionNotFound = fmt.Errorf("session %w", models.ErrNotFound)
	ErrNotReady        = errors.New("capture is not complete")
)

type SessionLookup interface {
	Lookup(sessionID string) (models.Session, bool)
}

type Extractor interface {
	ExtractScreenshot(ctx context.Context, mediaPath string, timestamp float64, outputPath string) error
	ExtractClip(ctx context.Context, mediaPath string, start, duration float64, outputPath string) error
}

type Store interface {
	Insert(ctx context.Context, c *models.Capture) error
	GetByID(ctx context.Context, id string) (*models.Capture, error)
	MarkComplete(ctx context.Context, id string, size int64) error
	MarkFailed(ctx context.Context, id string, message string) error
	List(ctx context.Context, filter models.ListFilter) ([]*models.Capture, error)
	Delete(ctx context.Context, id string) error
}

type Config struct {
	MaxConcurrentClips int
}

// Service turns capture requests against live sessions into stored artifacts.
type Service struct {
	sessions  SessionLookup
	extractor Extractor
	store     Store
	files     storage.Storage
	jobs      *jobRunner
}

func NewService(sessions SessionLookup, extractor Extractor, store Store, files storage.Storage, config Config) *Service {
	if config.MaxConcurrentClips == 0 {
		config.MaxConcurrentClips = 2
	}

	return &Service{
		sessions:  sessions,
		extractor: extractor,
		store:     store,
		files:     files,
		jobs:      newJobRunner(config.MaxConcurrentClips),
	}
}

func (s *Service) lookupSession(sessionID string) (models.Session, error) {
	session, ok := s.sessions.Lookup(sessionID)
	if !ok {
		return models.Session{}, ErrSessionNotFound
	}
	return session, nil
}

func (s *Service) newCapture(session models.Session, captureType models.CaptureType, timestamp float64) (*models.Capture, error) {
	c := models.NewCapture(session, captureType, timestamp)
	path, err := s.files.Path(c.FileName)
	if err != nil {
		return nil, fmt.Errorf("resolving output path: %w", err)
	}
	c.FilePath = path
	return c, nil
}

// Screenshot extracts a single frame inline and records the outcome. A failed
// extraction is still stored as a failed capture and its error returned along
// with the record.
func (s *Service) Screenshot(ctx context.Context, req models.ScreenshotRequest) (*models.Capture, error) {
	session, err := s.lookupSession(req.SessionID)
	if err != nil {
		return nil, err
	}

	c, err := s.newCapture(session, models.CaptureScreenshot, ScreenshotTimestamp(session, req.OffsetSeconds))
	if err != nil {
		return nil, err
	}

	// The frame is extracted and recorded even if the client goes away.
	ctx = context.WithoutCancel(ctx)

	extractErr := s.extractor.ExtractScreenshot(ctx, c.MediaPath, c.TimestampSeconds, c.FilePath)
	if extractErr == nil {
		c.FileSizeBytes, extractErr = s.files.Size(c.FileName)
	}
	if extractErr != nil {
		log.Printf("[CAPTURE] Screenshot %s of %q at %.3fs failed: %v", c.ID, c.MediaTitle, c.TimestampSeconds, extractErr)
		c.Status = models.StatusFailed
		c.ErrorMessage = extractErr.Error()
		c.FileSizeBytes = 0
	} else {
		c.Status = models.StatusComplete
	}

	if err := s.store.Insert(ctx, c); err != nil {
		if c.Status == models.StatusComplete {
			s.removeFile(c)
		}
		return nil, fmt.Errorf("saving screenshot: %w", err)
	}

	if extractErr != nil {
		return c, fmt.Errorf("screenshot failed: %w", extractErr)
	}

	log.Printf("[CAPTURE] Screenshot %s of %q at %.3fs (%s)", c.ID, c.MediaTitle, c.TimestampSeconds, humanize.Bytes(uint64(c.FileSizeBytes)))
	return c, nil
}

// Clip stores a pending clip capture and returns it immediately. Extraction
// runs in the background and settles the record exactly once.
func (s *Service) Clip(ctx context.Context, req models.ClipRequest) (*models.Capture, error) {
	session, err := s.lookupSession(req.SessionID)
	if err != nil {
		return nil, err
	}

	start, end, err := ClipBounds(session, req)
	if err != nil {
		return nil, err
	}

	if s.jobs.Closed() {
		return nil, ErrShuttingDown
	}

	c, err := s.newCapture(session, models.CaptureClip, start)
	if err != nil {
		return nil, err
	}
	duration := end - start
	c.DurationSeconds = &duration

	if err := s.store.Insert(ctx, c); err != nil {
		return nil, fmt.Errorf("saving clip: %w", err)
	}

	job := *c
	if err := s.jobs.Go(func() { s.processClip(&job) }); err != nil {
		// Shutdown began after the insert; settle the record now.
		if markErr := s.store.MarkFailed(context.WithoutCancel(ctx), c.ID, err.Error()); markErr != nil {
			log.Printf("[CAPTURE] Failed to mark clip %s failed: %v", c.ID, markErr)
		}
		return nil, err
	}

	log.Printf("[CAPTURE] Clip %s of %q queued: %.3fs from %.3fs", c.ID, c.MediaTitle, duration, start)
	return c, nil
}

func (s *Service) processClip(c *models.Capture) {
	ctx := context.Background()

	var size int64
	err := s.extractor.ExtractClip(ctx, c.MediaPath, c.TimestampSeconds, *c.DurationSeconds, c.FilePath)
	if err == nil {
		size, err = s.files.Size(c.FileName)
	}

	if err != nil {
		log.Printf("[CAPTURE] Clip %s failed: %v", c.ID, err)
		if markErr := s.store.MarkFailed(ctx, c.ID, err.Error()); markErr != nil {
			log.Printf("[CAPTURE] Failed to mark clip %s failed: %v", c.ID, markErr)
		}
		return
	}

	if err := s.store.MarkComplete(ctx, c.ID, size); err != nil {
		log.Printf("[CAPTURE] Failed to mark clip %s complete: %v", c.ID, err)
		if errors.Is(err, models.ErrNotFound) {
			// Deleted while extracting.
			s.removeFile(c)
		}
		return
	}

	log.Printf("[CAPTURE] Clip %s complete (%s)", c.ID, humanize.Bytes(uint64(size)))
}

// Wait blocks until every background clip job has finished.
func (s *Service) Wait() {
	s.jobs.Wait()
}

// Shutdown stops accepting clips and waits for the queued ones to settle.
// It is safe to call while requests are still being served.
func (s *Service) Shutdown() {
	s.jobs.Close()
}

func (s *Service) Get(ctx context.Context, id string) (*models.Capture, error) {
	return s.store.GetByID(ctx, id)
}

func (s *Service) List(ctx context.Context, filter models.ListFilter) ([]*models.Capture, error) {
	if filter.Type != "" && !filter.Type.Valid() {
		return nil, validationErrorf("unknown capture type %q", filter.Type)
	}
	return s.store.List(ctx, filter)
}

// Delete removes the capture's file, if any, and then its record.
func (s *Service) Delete(ctx context.Context, id string) error {
	c, err := s.store.GetByID(ctx, id)
	if err != nil {
		return err
	}

	s.removeFile(c)

	if err := s.store.Delete(ctx, id); err != nil {
		return fmt.Errorf("deleting capture: %w", err)
	}

	log.Printf("[CAPTURE] Deleted %s %s", c.CaptureType, c.ID)
	return nil
}

// OpenFile opens the artifact of a complete capture.
func (s *Service) OpenFile(ctx context.Context, id string) (*models.Capture, io.ReadSeekCloser, error) {
	c, err := s.store.GetByID(ctx, id)
	if err != nil {
		return nil, nil, err
	}
	if c.Status != models.StatusComplete {
		return c, nil, fmt.Errorf("%w (status %s)", ErrNotReady, c.Status)
	}

	file, err := s.files.OpenFile(c.FileName)
	if err != nil {
		return c, nil, err
	}
	return c, file, nil
}

func (s *Service) removeFile(c *models.Capture) {
	if err := s.files.DeleteFile(c.FileName); err != nil {
		log.Printf("[CAPTURE] Failed to remove file for %s: %v", c.ID, err)
	}
}
