// Package sources queries upstream media servers for active playback sessions
// and normalizes them into models.Session.
package sources

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/kdimtricp/mediasnap/internal/models"
)

const DefaultTimeout = 5 * time.Second

// Adapter fetches sessions from one upstream server. An adapter without
// complete configuration returns no sessions and makes no request.
type Adapter interface {
	Source() models.Source
	Enabled() bool
	FetchSessions(ctx context.Context) ([]models.Session, error)
}

type UpstreamError struct {
	Source models.Source
	Err    error
}

func (e *UpstreamError) Error() string {
	return fmt.Sprintf("%s: %v", e.Source, e.Err)
}

func (e *UpstreamError) Unwrap() error {
	return e.Err
}

func newHTTPClient(timeout time.Duration) *http.Client {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &http.Client{Timeout: timeout}
}

func get(ctx context.Context, client *http.Client, url string, headers map[string]string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("executing request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, fmt.Errorf("upstream returned status %d", resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("reading response: %w", err)
	}
	return body, nil
}

// episodeSubtitle formats "S02E05 — Title" when both numbers are known and
// non-zero, otherwise it falls back to the bare episode title.
func episodeSubtitle(season, episode int, episodeTitle string) string {
	if season > 0 && episode > 0 {
		return fmt.Sprintf("S%02dE%02d — %s", season, episode, episodeTitle)
	}
	return episodeTitle
}

func proxyPath(endpoint, upstreamPath string) string {
	return endpoint + "?path=" + url.QueryEscape(upstreamPath)
}

// atoi parses upstream numeric attributes, treating anything malformed as 0.
func atoi(s string) int64 {
	n, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return 0
	}
	return n
}
