package api

import (
	"fmt"
	"io"
	"log"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/kdimtricp/mediasnap/internal/config"
	"github.com/kdimtricp/mediasnap/internal/models"
)

// ProxyUpstream is a media server whose images are fetched with a credential
// header the browser never sees.
type ProxyUpstream struct {
	BaseURL    string
	Header     string
	Credential string
}

type ThumbnailProxy struct {
	client    *http.Client
	upstreams map[models.Source]ProxyUpstream
}

func NewThumbnailProxy(timeout time.Duration, upstreams map[models.Source]ProxyUpstream) *ThumbnailProxy {
	return &ThumbnailProxy{
		client:    &http.Client{Timeout: timeout},
		upstreams: upstreams,
	}
}

// NewThumbnailProxyFromConfig registers every enabled source.
func NewThumbnailProxyFromConfig(cfg *config.Config) *ThumbnailProxy {
	upstreams := make(map[models.Source]ProxyUpstream)
	if cfg.PlexEnabled() {
		upstreams[models.SourcePlex] = ProxyUpstream{BaseURL: cfg.PlexURL, Header: "X-Plex-Token", Credential: cfg.PlexToken}
	}
	if cfg.JellyfinEnabled() {
		upstreams[models.SourceJellyfin] = ProxyUpstream{BaseURL: cfg.JellyfinURL, Header: "X-Emby-Token", Credential: cfg.JellyfinAPIKey}
	}
	return NewThumbnailProxy(cfg.ProxyTimeout, upstreams)
}

func (p *ThumbnailProxy) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	source := chi.URLParam(r, "source")
	upstream, ok := p.upstreams[models.Source(source)]
	if !ok {
		writeMessage(w, http.StatusNotFound, fmt.Sprintf("%s is not configured", source))
		return
	}

	path := r.URL.Query().Get("path")
	if !strings.HasPrefix(path, "/") {
		writeMessage(w, http.StatusBadRequest, "Invalid path")
		return
	}

	req, err := http.NewRequestWithContext(r.Context(), http.MethodGet, strings.TrimRight(upstream.BaseURL, "/")+path, nil)
	if err != nil {
		writeMessage(w, http.StatusBadRequest, "Invalid path")
		return
	}
	req.Header.Set(upstream.Header, upstream.Credential)

	resp, err := p.client.Do(req)
	if err != nil {
		writeMessage(w, http.StatusBadGateway, "Failed to fetch thumbnail")
		return
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		writeMessage(w, http.StatusBadGateway, fmt.Sprintf("Failed to fetch thumbnail: upstream returned %d", resp.StatusCode))
		return
	}

	contentType := resp.Header.Get("Content-Type")
	if contentType == "" {
		contentType = "image/jpeg"
	}
	w.Header().Set("Content-Type", contentType)
	w.Header().Set("Cache-Control", "public, max-age=10")
	w.WriteHeader(http.StatusOK)

	if _, err := io.Copy(w, resp.Body); err != nil {
		log.Printf("[API] Thumbnail copy from %s interrupted: %v", source, err)
	}
}
