package models

type Source string

const (
	SourcePlex     Source = "plex"
	SourceJellyfin Source = "jellyfin"
)

// Session is a read-only snapshot of one playback in progress.
type Session struct {
	SessionID       string  `json:"session_id"`
	Source          Source  `json:"source"`
	Title           string  `json:"title"`
	Subtitle        string  `json:"subtitle"`
	MediaPath       string  `json:"media_path"`
	PositionSeconds float64 `json:"position_seconds"`
	DurationSeconds float64 `json:"duration_seconds"`
	ThumbnailURL    string  `json:"thumbnail_url"`
	Year            *int    `json:"year,omitempty"`
}

// DisplayTitle is the title and subtitle joined the way capture records store
// it, e.g. "Show — S01E02 — Pilot".
func (s Session) DisplayTitle() string {
	return joinTitle(s.Title, s.Subtitle)
}
