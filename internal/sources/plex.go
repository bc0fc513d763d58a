package sources

import (
	"context"
	"encoding/xml"
	"fmt"
	"net/http"
	"net/url"
	"path/filepath"
	"strings"
	"time"

	"github.com/kdimtricp/mediasnap/internal/models"
)

const PlexProxyEndpoint = "/api/proxy/plex"

type plexContainer struct {
	Videos []plexVideo `xml:"Video"`
}

type plexVideo struct {
	Type             string `xml:"type,attr"`
	Title            string `xml:"title,attr"`
	GrandparentTitle string `xml:"grandparentTitle,attr"`
	ParentIndex      string `xml:"parentIndex,attr"`
	Index            string `xml:"index,attr"`
	ViewOffset       string `xml:"viewOffset,attr"`
	Duration         string `xml:"duration,attr"`
	SessionKey       string `xml:"sessionKey,attr"`
	Thumb            string `xml:"thumb,attr"`
	Year             string `xml:"year,attr"`
	Media            []struct {
		Parts []struct {
			File string `xml:"file,attr"`
		} `xml:"Part"`
	} `xml:"Media"`
	Session *struct {
		ID string `xml:"id,attr"`
	} `xml:"Session"`
}

func (v plexVideo) file() string {
	for _, m := range v.Media {
		for _, p := range m.Parts {
			if p.File != "" {
				return p.File
			}
		}
	}
	return ""
}

type PlexAdapter struct {
	baseURL    string
	token      string
	httpClient *http.Client
}

func NewPlexAdapter(baseURL, token string, timeout time.Duration) *PlexAdapter {
	return &PlexAdapter{
		baseURL:    strings.TrimRight(baseURL, "/"),
		token:      token,
		httpClient: newHTTPClient(timeout),
	}
}

func (p *PlexAdapter) Source() models.Source {
	return models.SourcePlex
}

func (p *PlexAdapter) Enabled() bool {
	return p.baseURL != "" && p.token != ""
}

func (p *PlexAdapter) FetchSessions(ctx context.Context) ([]models.Session, error) {
	if !p.Enabled() {
		return []models.Session{}, nil
	}

	body, err := get(ctx, p.httpClient, p.baseURL+"/status/sessions", map[string]string{
		"X-Plex-Token": p.token,
		"Accept":       "application/xml",
	})
	if err != nil {
		return nil, &UpstreamError{Source: models.SourcePlex, Err: err}
	}

	var container plexContainer
	if err := xml.Unmarshal(body, &container); err != nil {
		return nil, &UpstreamError{Source: models.SourcePlex, Err: fmt.Errorf("decoding response: %w", err)}
	}

	sessions := make([]models.Session, 0, len(container.Videos))
	for _, v := range container.Videos {
		if s, ok := p.normalize(v); ok {
			sessions = append(sessions, s)
		}
	}
	return sessions, nil
}

func (p *PlexAdapter) normalize(v plexVideo) (models.Session, bool) {
	mediaPath := v.file()
	if mediaPath == "" || !filepath.IsAbs(mediaPath) {
		return models.Session{}, false
	}

	var title, subtitle string
	if v.Type == "episode" {
		title = v.GrandparentTitle
		subtitle = episodeSubtitle(int(atoi(v.ParentIndex)), int(atoi(v.Index)), v.Title)
	} else {
		title = v.Title
		if title == "" {
			title = "Unknown"
		}
	}

	id := v.SessionKey
	if v.Session != nil && v.Session.ID != "" {
		id = v.Session.ID
	}

	var thumbnail string
	if v.Thumb != "" {
		upstream := "/photo/:/transcode?width=400&height=225&minSize=1&url=" + url.QueryEscape(v.Thumb)
		thumbnail = proxyPath(PlexProxyEndpoint, upstream)
	}

	var year *int
	if y := int(atoi(v.Year)); y > 0 {
		year = &y
	}

	return models.Session{
		SessionID:       "plex-" + id,
		Source:          models.SourcePlex,
		Title:           title,
		Subtitle:        subtitle,
		MediaPath:       mediaPath,
		PositionSeconds: max(0, float64(atoi(v.ViewOffset))/1000.0),
		DurationSeconds: max(0, float64(atoi(v.Duration))/1000.0),
		ThumbnailURL:    thumbnail,
		Year:            year,
	}, true
}
