package sources

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"path/filepath"
	"strings"
	"time"

	"github.com/kdimtricp/mediasnap/internal/models"
)

const JellyfinProxyEndpoint = "/api/proxy/jellyfin"

// Jellyfin reports positions in 100-nanosecond ticks.
const ticksPerSecond = 10_000_000

type jellyfinSession struct {
	ID             string             `json:"Id"`
	NowPlayingItem *jellyfinItem      `json:"NowPlayingItem"`
	PlayState      *jellyfinPlayState `json:"PlayState"`
}

type jellyfinItem struct {
	ID                string `json:"Id"`
	Name              string `json:"Name"`
	Type              string `json:"Type"`
	SeriesName        string `json:"SeriesName"`
	ParentIndexNumber int    `json:"ParentIndexNumber"`
	IndexNumber       int    `json:"IndexNumber"`
	RunTimeTicks      int64  `json:"RunTimeTicks"`
	ProductionYear    int    `json:"ProductionYear"`
	MediaSources      []struct {
		Path string `json:"Path"`
	} `json:"MediaSources"`
}

type jellyfinPlayState struct {
	PositionTicks int64 `json:"PositionTicks"`
}

type JellyfinAdapter struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
}

func NewJellyfinAdapter(baseURL, apiKey string, timeout time.Duration) *JellyfinAdapter {
	return &JellyfinAdapter{
		baseURL:    strings.TrimRight(baseURL, "/"),
		apiKey:     apiKey,
		httpClient: newHTTPClient(timeout),
	}
}

func (j *JellyfinAdapter) Source() models.Source {
	return models.SourceJellyfin
}

func (j *JellyfinAdapter) Enabled() bool {
	return j.baseURL != "" && j.apiKey != ""
}

func (j *JellyfinAdapter) FetchSessions(ctx context.Context) ([]models.Session, error) {
	if !j.Enabled() {
		return []models.Session{}, nil
	}

	body, err := get(ctx, j.httpClient, j.baseURL+"/Sessions", map[string]string{
		"X-Emby-Token": j.apiKey,
		"Accept":       "application/json",
	})
	if err != nil {
		return nil, &UpstreamError{Source: models.SourceJellyfin, Err: err}
	}

	// Decode entries one at a time so a single malformed session does not
	// discard the rest.
	var raw []json.RawMessage
	if err := json.Unmarshal(body, &raw); err != nil {
		return nil, &UpstreamError{Source: models.SourceJellyfin, Err: fmt.Errorf("decoding response: %w", err)}
	}

	sessions := make([]models.Session, 0, len(raw))
	for _, r := range raw {
		var js jellyfinSession
		if err := json.Unmarshal(r, &js); err != nil {
			log.Printf("[SESSIONS] Skipping malformed jellyfin session: %v", err)
			continue
		}
		if s, ok := normalizeJellyfin(js); ok {
			sessions = append(sessions, s)
		}
	}
	return sessions, nil
}

func normalizeJellyfin(js jellyfinSession) (models.Session, bool) {
	item := js.NowPlayingItem
	if item == nil || js.PlayState == nil {
		return models.Session{}, false
	}

	var mediaPath string
	if len(item.MediaSources) > 0 {
		mediaPath = item.MediaSources[0].Path
	}
	if mediaPath == "" || !filepath.IsAbs(mediaPath) {
		return models.Session{}, false
	}

	var title, subtitle string
	if item.Type == "Episode" {
		title = item.SeriesName
		subtitle = episodeSubtitle(item.ParentIndexNumber, item.IndexNumber, item.Name)
	} else {
		title = item.Name
		if title == "" {
			title = "Unknown"
		}
	}

	var thumbnail string
	if item.ID != "" {
		upstream := fmt.Sprintf("/Items/%s/Images/Primary?maxWidth=400&quality=80", item.ID)
		thumbnail = proxyPath(JellyfinProxyEndpoint, upstream)
	}

	var year *int
	if item.ProductionYear > 0 {
		y := item.ProductionYear
		year = &y
	}

	return models.Session{
		SessionID:       "jf-" + js.ID,
		Source:          models.SourceJellyfin,
		Title:           title,
		Subtitle:        subtitle,
		MediaPath:       mediaPath,
		PositionSeconds: max(0, float64(js.PlayState.PositionTicks)/ticksPerSecond),
		DurationSeconds: max(0, float64(item.RunTimeTicks)/ticksPerSecond),
		ThumbnailURL:    thumbnail,
		Year:            year,
	}, true
}
