package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/kdimtricp/mediasnap/internal/capture"
	"github.com/kdimtricp/mediasnap/internal/database"
	"github.com/kdimtricp/mediasnap/internal/models"
	"github.com/kdimtricp/mediasnap/internal/storage"
)

var (
	screenshotBytes = []byte("\xff\xd8\xff fake jpeg")
	clipBytes       = []byte("fake mp4 payload")
)

type staticSessions []models.Session

func (s staticSessions) Refresh(ctx context.Context) []models.Session {
	return s
}

func (s staticSessions) Lookup(id string) (models.Session, bool) {
	for _, session := range s {
		if session.SessionID == id {
			return session, true
		}
	}
	return models.Session{}, false
}

type fakeExtractor struct {
	fail bool
}

func (f *fakeExtractor) ExtractScreenshot(ctx context.Context, mediaPath string, timestamp float64, outputPath string) error {
	if f.fail {
		return errors.New("ffmpeg screenshot failed: exit status 1")
	}
	return os.WriteFile(outputPath, screenshotBytes, 0644)
}

func (f *fakeExtractor) ExtractClip(ctx context.Context, mediaPath string, start, duration float64, outputPath string) error {
	if f.fail {
		return errors.New("ffmpeg clip failed: exit status 1")
	}
	return os.WriteFile(outputPath, clipBytes, 0644)
}

type TestServer struct {
	Server     *httptest.Server
	App        *App
	CaptureDir string
}

func setupTestServer(t *testing.T, extractor capture.Extractor) *TestServer {
	t.Helper()
	tempDir := t.TempDir()
	captureDir := filepath.Join(tempDir, "captures")

	files, err := storage.NewLocalStorage(captureDir)
	if err != nil {
		t.Fatalf("Failed to create storage: %v", err)
	}

	db, err := database.NewDB(filepath.Join(tempDir, "test.db"))
	if err != nil {
		t.Fatalf("Failed to create database: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	sessions := staticSessions{
		{
			SessionID:       "plex-42",
			Source:          models.SourcePlex,
			Title:           "Alien",
			MediaPath:       "/media/alien.mkv",
			PositionSeconds: 100,
			DurationSeconds: 120,
			ThumbnailURL:    "/api/proxy/plex?path=%2Fthumb",
		},
	}

	service := capture.NewService(sessions, extractor, database.NewCaptureRepository(db), files, capture.Config{MaxConcurrentClips: 1})
	t.Cleanup(service.Wait)

	app := &App{
		Sessions:   sessions,
		Captures:   service,
		CaptureDir: captureDir,
	}

	server := httptest.NewServer(NewRouter(app))
	t.Cleanup(server.Close)

	return &TestServer{Server: server, App: app, CaptureDir: captureDir}
}

func (ts *TestServer) postJSON(t *testing.T, path string, body any) *http.Response {
	t.Helper()
	data, err := json.Marshal(body)
	if err != nil {
		t.Fatalf("Failed to marshal body: %v", err)
	}
	resp, err := http.Post(ts.Server.URL+path, "application/json", bytes.NewReader(data))
	if err != nil {
		t.Fatalf("POST %s failed: %v", path, err)
	}
	return resp
}

func (ts *TestServer) do(t *testing.T, method, path string) *http.Response {
	t.Helper()
	req, err := http.NewRequest(method, ts.Server.URL+path, nil)
	if err != nil {
		t.Fatalf("Failed to build request: %v", err)
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("%s %s failed: %v", method, path, err)
	}
	return resp
}

func decodeBody[T any](t *testing.T, resp *http.Response) T {
	t.Helper()
	defer resp.Body.Close()
	var v T
	if err := json.NewDecoder(resp.Body).Decode(&v); err != nil {
		t.Fatalf("Failed to decode response: %v", err)
	}
	return v
}

func expectStatus(t *testing.T, resp *http.Response, want int) {
	t.Helper()
	if resp.StatusCode != want {
		t.Fatalf("Expected status %d, got %d", want, resp.StatusCode)
	}
}
