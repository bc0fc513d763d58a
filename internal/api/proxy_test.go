package api

import (
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/kdimtricp/mediasnap/internal/config"
	"github.com/kdimtricp/mediasnap/internal/models"
)

func newProxyServer(t *testing.T, proxy *ThumbnailProxy) *httptest.Server {
	t.Helper()
	r := chi.NewRouter()
	r.Get("/api/proxy/{source}", proxy.ServeHTTP)
	server := httptest.NewServer(r)
	t.Cleanup(server.Close)
	return server
}

func TestThumbnailProxy(t *testing.T) {
	var hits atomic.Int32
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		if r.Header.Get("X-Plex-Token") != "secret" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		if r.URL.Path == "/missing" {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		if r.URL.Path != "/photo/:/transcode" || r.URL.Query().Get("width") != "400" {
			t.Errorf("Unexpected upstream request %s", r.URL.String())
		}
		w.Header().Set("Content-Type", "image/png")
		w.Write([]byte("png-bytes"))
	}))
	defer upstream.Close()

	proxy := NewThumbnailProxy(time.Second, map[models.Source]ProxyUpstream{
		models.SourcePlex: {BaseURL: upstream.URL + "/", Header: "X-Plex-Token", Credential: "secret"},
	})
	server := newProxyServer(t, proxy)

	get := func(t *testing.T, source, path string) *http.Response {
		t.Helper()
		resp, err := http.Get(server.URL + "/api/proxy/" + source + "?path=" + url.QueryEscape(path))
		if err != nil {
			t.Fatalf("GET failed: %v", err)
		}
		return resp
	}

	t.Run("success", func(t *testing.T) {
		resp := get(t, "plex", "/photo/:/transcode?width=400&url=%2Fthumb")
		defer resp.Body.Close()
		expectStatus(t, resp, http.StatusOK)

		if ct := resp.Header.Get("Content-Type"); ct != "image/png" {
			t.Errorf("Expected image/png, got %s", ct)
		}
		if cc := resp.Header.Get("Cache-Control"); cc != "public, max-age=10" {
			t.Errorf("Unexpected Cache-Control %q", cc)
		}
		data, _ := io.ReadAll(resp.Body)
		if string(data) != "png-bytes" {
			t.Errorf("Unexpected body %q", data)
		}
	})

	t.Run("disabled source", func(t *testing.T) {
		before := hits.Load()
		resp := get(t, "jellyfin", "/Items/1/Images/Primary")
		resp.Body.Close()
		expectStatus(t, resp, http.StatusNotFound)
		if hits.Load() != before {
			t.Error("Disabled source reached upstream")
		}
	})

	t.Run("relative path", func(t *testing.T) {
		resp := get(t, "plex", "photo")
		resp.Body.Close()
		expectStatus(t, resp, http.StatusBadRequest)
	})

	t.Run("upstream error", func(t *testing.T) {
		resp := get(t, "plex", "/missing")
		resp.Body.Close()
		expectStatus(t, resp, http.StatusBadGateway)
	})
}

func TestThumbnailProxy_UpstreamDown(t *testing.T) {
	upstream := httptest.NewServer(http.NotFoundHandler())
	upstreamURL := upstream.URL
	upstream.Close()

	proxy := NewThumbnailProxy(time.Second, map[models.Source]ProxyUpstream{
		models.SourceJellyfin: {BaseURL: upstreamURL, Header: "X-Emby-Token", Credential: "jf-secret-key"},
	})
	server := newProxyServer(t, proxy)

	resp, err := http.Get(server.URL + "/api/proxy/jellyfin?path=%2FItems%2F1%2FImages%2FPrimary")
	if err != nil {
		t.Fatalf("GET failed: %v", err)
	}
	defer resp.Body.Close()
	expectStatus(t, resp, http.StatusBadGateway)

	body, _ := io.ReadAll(resp.Body)
	if len(body) == 0 || strings.Contains(string(body), "jf-secret-key") {
		t.Errorf("Unexpected error body %q", body)
	}
}

func TestNewThumbnailProxyFromConfig(t *testing.T) {
	cfg := &config.Config{
		PlexURL:      "http://plex:32400",
		PlexToken:    "token",
		ProxyTimeout: 10 * time.Second,
	}

	proxy := NewThumbnailProxyFromConfig(cfg)
	if _, ok := proxy.upstreams[models.SourcePlex]; !ok {
		t.Error("Expected plex upstream")
	}
	if _, ok := proxy.upstreams[models.SourceJellyfin]; ok {
		t.Error("Jellyfin should be disabled without credentials")
	}
	if proxy.client.Timeout != 10*time.Second {
		t.Errorf("Unexpected timeout %v", proxy.client.Timeout)
	}
}
