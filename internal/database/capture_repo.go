package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/kdimtricp/mediasnap/internal/models"
)

// createdAtLayout is fixed width so that text ordering matches time ordering.
const createdAtLayout = "2006-01-02T15:04:05.000000000Z"

const captureColumns = `id, source, media_title, media_path, timestamp_seconds, capture_type,
	file_path, file_name, file_size_bytes, duration_seconds, status, error_message, created_at`

type CaptureRepository struct {
	db *DB
}

func NewCaptureRepository(db *DB) *CaptureRepository {
	return &CaptureRepository{db: db}
}

type CaptureStats struct {
	Total      int
	ByStatus   map[models.CaptureStatus]int
	ByType     map[models.CaptureType]int
	TotalBytes int64
}

func (r *CaptureRepository) Insert(ctx context.Context, c *models.Capture) error {
	query := `INSERT INTO captures (` + captureColumns + `) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`

	var errMsg sql.NullString
	if c.ErrorMessage != "" {
		errMsg = sql.NullString{String: c.ErrorMessage, Valid: true}
	}
	var duration sql.NullFloat64
	if c.DurationSeconds != nil {
		duration = sql.NullFloat64{Float64: *c.DurationSeconds, Valid: true}
	}

	_, err := r.db.conn.ExecContext(ctx, query,
		c.ID,
		string(c.Source),
		c.MediaTitle,
		c.MediaPath,
		c.TimestampSeconds,
		string(c.CaptureType),
		c.FilePath,
		c.FileName,
		c.FileSizeBytes,
		duration,
		string(c.Status),
		errMsg,
		c.CreatedAt.UTC().Format(createdAtLayout),
	)
	if err != nil {
		return &StoreError{Op: "insert", Err: err}
	}
	return nil
}

func (r *CaptureRepository) GetByID(ctx context.Context, id string) (*models.Capture, error) {
	row := r.db.conn.QueryRowContext(ctx, `SELECT `+captureColumns+` FROM captures WHERE id = ?`, id)
	c, err := scanCapture(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("capture %s: %w", id, models.ErrNotFound)
	}
	if err != nil {
		return nil, &StoreError{Op: "get", Err: err}
	}
	return c, nil
}

// MarkComplete moves a pending capture to complete with its final file size.
// A capture that is no longer pending (or was deleted) reports ErrNotFound.
func (r *CaptureRepository) MarkComplete(ctx context.Context, id string, size int64) error {
	return r.finish(ctx, "mark complete",
		`UPDATE captures SET status = ?, file_size_bytes = ?, error_message = NULL WHERE id = ? AND status = ?`,
		string(models.StatusComplete), size, id, string(models.StatusPending))
}

// MarkFailed moves a pending capture to failed with the error text.
func (r *CaptureRepository) MarkFailed(ctx context.Context, id string, message string) error {
	return r.finish(ctx, "mark failed",
		`UPDATE captures SET status = ?, error_message = ? WHERE id = ? AND status = ?`,
		string(models.StatusFailed), message, id, string(models.StatusPending))
}

func (r *CaptureRepository) finish(ctx context.Context, op, query string, args ...any) error {
	res, err := r.db.conn.ExecContext(ctx, query, args...)
	if err != nil {
		return &StoreError{Op: op, Err: err}
	}
	n, err := res.RowsAffected()
	if err != nil {
		return &StoreError{Op: op, Err: err}
	}
	if n == 0 {
		return fmt.Errorf("pending capture %v: %w", args[len(args)-2], models.ErrNotFound)
	}
	return nil
}

// List returns captures newest first. Ties on created_at fall back to
// insertion order, newest first.
func (r *CaptureRepository) List(ctx context.Context, filter models.ListFilter) ([]*models.Capture, error) {
	var (
		where []string
		args  []any
	)
	if filter.Type != "" {
		where = append(where, "capture_type = ?")
		args = append(args, string(filter.Type))
	}

	query := `SELECT ` + captureColumns + ` FROM captures`
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}

	limit := filter.Limit
	if limit <= 0 {
		limit = -1
	}
	query += " ORDER BY created_at DESC, rowid DESC LIMIT ? OFFSET ?"
	args = append(args, limit, max(0, filter.Offset))

	rows, err := r.db.conn.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, &StoreError{Op: "list", Err: err}
	}
	defer rows.Close()

	captures := []*models.Capture{}
	for rows.Next() {
		c, err := scanCapture(rows)
		if err != nil {
			return nil, &StoreError{Op: "list", Err: err}
		}
		captures = append(captures, c)
	}
	if err := rows.Err(); err != nil {
		return nil, &StoreError{Op: "list", Err: err}
	}

	return captures, nil
}

func (r *CaptureRepository) Delete(ctx context.Context, id string) error {
	res, err := r.db.conn.ExecContext(ctx, `DELETE FROM captures WHERE id = ?`, id)
	if err != nil {
		return &StoreError{Op: "delete", Err: err}
	}
	n, err := res.RowsAffected()
	if err != nil {
		return &StoreError{Op: "delete", Err: err}
	}
	if n == 0 {
		return fmt.Errorf("capture %s: %w", id, models.ErrNotFound)
	}
	return nil
}

func (r *CaptureRepository) Stats(ctx context.Context) (*CaptureStats, error) {
	rows, err := r.db.conn.QueryContext(ctx,
		`SELECT capture_type, status, COUNT(*), COALESCE(SUM(file_size_bytes), 0) FROM captures GROUP BY capture_type, status`)
	if err != nil {
		return nil, &StoreError{Op: "stats", Err: err}
	}
	defer rows.Close()

	stats := &CaptureStats{
		ByStatus: make(map[models.CaptureStatus]int),
		ByType:   make(map[models.CaptureType]int),
	}
	for rows.Next() {
		var (
			captureType, status string
			count               int
			bytes               int64
		)
		if err := rows.Scan(&captureType, &status, &count, &bytes); err != nil {
			return nil, &StoreError{Op: "stats", Err: err}
		}
		stats.Total += count
		stats.ByStatus[models.CaptureStatus(status)] += count
		stats.ByType[models.CaptureType(captureType)] += count
		if models.CaptureStatus(status) == models.StatusComplete {
			stats.TotalBytes += bytes
		}
	}
	if err := rows.Err(); err != nil {
		return nil, &StoreError{Op: "stats", Err: err}
	}
	return stats, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanCapture(s scanner) (*models.Capture, error) {
	var (
		c                           models.Capture
		source, captureType, status string
		duration                    sql.NullFloat64
		errMsg                      sql.NullString
		createdAt                   string
	)

	err := s.Scan(
		&c.ID,
		&source,
		&c.MediaTitle,
		&c.MediaPath,
		&c.TimestampSeconds,
		&captureType,
		&c.FilePath,
		&c.FileName,
		&c.FileSizeBytes,
		&duration,
		&status,
		&errMsg,
		&createdAt,
	)
	if err != nil {
		return nil, err
	}

	c.Source = models.Source(source)
	c.CaptureType = models.CaptureType(captureType)
	c.Status = models.CaptureStatus(status)
	c.ErrorMessage = errMsg.String
	if duration.Valid {
		d := duration.Float64
		c.DurationSeconds = &d
	}

	c.CreatedAt, err = time.Parse(createdAtLayout, createdAt)
	if err != nil {
		return nil, fmt.Errorf("parsing created_at %q: %w", createdAt, err)
	}

	return &c, nil
}
