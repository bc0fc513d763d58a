// Package sessions merges live sessions from every configured source and keeps
// the latest snapshot for capture lookups.
package sessions

import (
	"context"
	"log"
	"sync/atomic"

	"golang.org/x/sync/errgroup"

	"github.com/kdimtricp/mediasnap/internal/models"
	"github.com/kdimtricp/mediasnap/internal/sources"
)

type Aggregator struct {
	adapters []sources.Adapter
	cache    atomic.Pointer[map[string]models.Session]
}

func NewAggregator(adapters ...sources.Adapter) *Aggregator {
	a := &Aggregator{adapters: adapters}
	empty := make(map[string]models.Session)
	a.cache.Store(&empty)
	return a
}

// Refresh queries all adapters concurrently and installs the merged result as
// the new cache. A failing adapter is logged and contributes no sessions; it
// never affects the others.
func (a *Aggregator) Refresh(ctx context.Context) []models.Session {
	results := make([][]models.Session, len(a.adapters))

	// A plain Group has no shared context, so one adapter's failure cannot
	// cancel its siblings. Errors are handled inside each goroutine.
	var g errgroup.Group
	for i, adapter := range a.adapters {
		i, adapter := i, adapter
		g.Go(func() error {
			sessions, err := adapter.FetchSessions(ctx)
			if err != nil {
				log.Printf("[SESSIONS] Failed to fetch %s sessions: %v", adapter.Source(), err)
				return nil
			}
			results[i] = sessions
			return nil
		})
	}
	_ = g.Wait()

	merged := []models.Session{}
	next := make(map[string]models.Session)
	for _, sessions := range results {
		for _, s := range sessions {
			if s.MediaPath == "" {
				continue
			}
			merged = append(merged, s)
			next[s.SessionID] = s
		}
	}

	a.cache.Store(&next)
	return merged
}

// Lookup reads the most recent snapshot only; it never triggers a refresh.
func (a *Aggregator) Lookup(sessionID string) (models.Session, bool) {
	s, ok := (*a.cache.Load())[sessionID]
	return s, ok
}

func (a *Aggregator) Adapters() []sources.Adapter {
	return a.adapters
}
