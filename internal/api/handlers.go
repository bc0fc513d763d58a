package api

import (
	"context"
	"encoding/json"
	"errors"
	"io/fs"
	"log"
	"net/http"
	"os"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/kdimtricp/mediasnap/internal/capture"
	"github.com/kdimtricp/mediasnap/internal/extract"
	"github.com/kdimtricp/mediasnap/internal/models"
)

const (
	defaultListLimit = 50
	maxListLimit     = 200
	maxRequestBody   = 1 << 20
)

type SessionSource interface {
	Refresh(ctx context.Context) []models.Session
}

type App struct {
	Sessions   SessionSource
	Captures   *capture.Service
	Proxy      *ThumbnailProxy
	CaptureDir string
}

// captureResponse is the public view of a capture. Server-side paths stay
// private.
type captureResponse struct {
	ID               string   `json:"id"`
	Source           string   `json:"source"`
	MediaTitle       string   `json:"media_title"`
	TimestampSeconds float64  `json:"timestamp_seconds"`
	CaptureType      string   `json:"capture_type"`
	FileName         string   `json:"file_name"`
	FileURL          string   `json:"file_url"`
	FileSizeBytes    int64    `json:"file_size_bytes"`
	DurationSeconds  *float64 `json:"duration_seconds"`
	Status           string   `json:"status"`
	ErrorMessage     *string  `json:"error_message"`
	CreatedAt        string   `json:"created_at"`
}

func newCaptureResponse(c *models.Capture) captureResponse {
	resp := captureResponse{
		ID:               c.ID,
		Source:           string(c.Source),
		MediaTitle:       c.MediaTitle,
		TimestampSeconds: c.TimestampSeconds,
		CaptureType:      string(c.CaptureType),
		FileName:         c.FileName,
		FileURL:          "/captures/" + c.FileName,
		FileSizeBytes:    c.FileSizeBytes,
		DurationSeconds:  c.DurationSeconds,
		Status:           string(c.Status),
		CreatedAt:        c.CreatedAt.UTC().Format(time.RFC3339Nano),
	}
	if c.ErrorMessage != "" {
		msg := c.ErrorMessage
		resp.ErrorMessage = &msg
	}
	return resp
}

func HealthHandler(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (app *App) ListSessionsHandler(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, app.Sessions.Refresh(r.Context()))
}

func (app *App) ScreenshotHandler(w http.ResponseWriter, r *http.Request) {
	var req models.ScreenshotRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	c, err := app.Captures.Screenshot(r.Context(), req)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, newCaptureResponse(c))
}

func (app *App) ClipHandler(w http.ResponseWriter, r *http.Request) {
	var req models.ClipRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	c, err := app.Captures.Clip(r.Context(), req)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, newCaptureResponse(c))
}

func (app *App) ListCapturesHandler(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()
	filter := models.ListFilter{
		Type:  models.CaptureType(query.Get("capture_type")),
		Limit: defaultListLimit,
	}

	if v := query.Get("limit"); v != "" {
		limit, err := strconv.Atoi(v)
		if err != nil || limit < 1 || limit > maxListLimit {
			writeMessage(w, http.StatusBadRequest, "limit must be between 1 and 200")
			return
		}
		filter.Limit = limit
	}
	if v := query.Get("offset"); v != "" {
		offset, err := strconv.Atoi(v)
		if err != nil || offset < 0 {
			writeMessage(w, http.StatusBadRequest, "offset must be a non-negative integer")
			return
		}
		filter.Offset = offset
	}

	captures, err := app.Captures.List(r.Context(), filter)
	if err != nil {
		writeError(w, err)
		return
	}

	resp := make([]captureResponse, 0, len(captures))
	for _, c := range captures {
		resp = append(resp, newCaptureResponse(c))
	}
	writeJSON(w, http.StatusOK, resp)
}

func (app *App) GetCaptureHandler(w http.ResponseWriter, r *http.Request) {
	c, err := app.Captures.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, newCaptureResponse(c))
}

func (app *App) DownloadCaptureHandler(w http.ResponseWriter, r *http.Request) {
	c, file, err := app.Captures.OpenFile(r.Context(), chi.URLParam(r, "id"))
	if errors.Is(err, fs.ErrNotExist) {
		writeMessage(w, http.StatusNotFound, "Capture file not found")
		return
	}
	if err != nil {
		writeError(w, err)
		return
	}
	defer file.Close()

	modTime := c.CreatedAt
	if f, ok := file.(*os.File); ok {
		if stat, err := f.Stat(); err == nil {
			modTime = stat.ModTime()
		}
	}

	contentType := "image/jpeg"
	if c.CaptureType == models.CaptureClip {
		contentType = "video/mp4"
	}
	w.Header().Set("Content-Type", contentType)
	w.Header().Set("Content-Disposition", `attachment; filename="`+c.FileName+`"`)
	// ServeContent handles Range requests.
	http.ServeContent(w, r, c.FileName, modTime, file)
}

func (app *App) DeleteCaptureHandler(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if err := app.Captures.Delete(r.Context(), id); err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{"deleted": id})
}

func decodeJSON(w http.ResponseWriter, r *http.Request, v any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, maxRequestBody)
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		writeMessage(w, http.StatusBadRequest, "Invalid request body: "+err.Error())
		return false
	}
	return true
}

func statusFor(err error) int {
	var (
		validationErr *capture.ValidationError
		extractionErr *extract.ExtractionError
	)
	switch {
	case errors.As(err, &extractionErr):
		return http.StatusInternalServerError
	case errors.Is(err, models.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, capture.ErrShuttingDown):
		return http.StatusServiceUnavailable
	case errors.Is(err, capture.ErrNotReady):
		return http.StatusConflict
	case errors.As(err, &validationErr):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

func writeError(w http.ResponseWriter, err error) {
	status := statusFor(err)
	if status == http.StatusInternalServerError {
		log.Printf("[API] Request failed: %v", err)
	}
	writeMessage(w, status, err.Error())
}

func writeMessage(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"detail": message})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Printf("[API] Error encoding response: %v", err)
	}
}
