package api

import (
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/taskvault/taskvault/internal/archive"
	"github.com/taskvault/taskvault/internal/store"
)

// ProjectStats is the aggregate view served by the stats endpoint.
type ProjectStats struct {
	ActiveEpics   int           `json:"activeEpics"`
	ArchivedEpics int           `json:"archivedEpics"`
	Archives      int           `json:"archives"`
	Tasks         archive.Stats `json:"tasks"`
}

type statsEntry struct {
	stats    ProjectStats
	loadedAt time.Time
}

// statsCache is a per-project TTL cache over the backend's aggregate
// queries, with singleflight coalescing so concurrent dashboard polls
// share one load.
type statsCache struct {
	mu      sync.RWMutex
	entries map[string]statsEntry
	ttl     time.Duration
	group   singleflight.Group
	backend store.Backend
}

func newStatsCache(backend store.Backend, ttl time.Duration) *statsCache {
	return &statsCache{
		entries: make(map[string]statsEntry),
		backend: backend,
		ttl:     ttl,
	}
}

// Stats returns cached stats for a project or loads them from the
// backend. Concurrent callers for the same project share a single load.
func (c *statsCache) Stats(projectID string) (ProjectStats, error) {
	c.mu.RLock()
	if e, ok := c.entries[projectID]; ok && time.Since(e.loadedAt) < c.ttl {
		c.mu.RUnlock()
		return e.stats, nil
	}
	c.mu.RUnlock()

	result, err, _ := c.group.Do(projectID, func() (any, error) {
		// Double-check after acquiring the singleflight slot
		c.mu.RLock()
		if e, ok := c.entries[projectID]; ok && time.Since(e.loadedAt) < c.ttl {
			c.mu.RUnlock()
			return e.stats, nil
		}
		c.mu.RUnlock()

		stats, err := c.load(projectID)
		if err != nil {
			return ProjectStats{}, err
		}

		c.mu.Lock()
		c.entries[projectID] = statsEntry{stats: stats, loadedAt: time.Now()}
		c.mu.Unlock()

		return stats, nil
	})
	if err != nil {
		return ProjectStats{}, err
	}
	return result.(ProjectStats), nil
}

func (c *statsCache) load(projectID string) (ProjectStats, error) {
	var stats ProjectStats

	active, err := c.backend.ListActiveEpics(projectID)
	if err != nil {
		return stats, err
	}
	archived, err := c.backend.ListArchivedEpics(projectID)
	if err != nil {
		return stats, err
	}
	archives, err := c.backend.ListArchives(projectID)
	if err != nil {
		return stats, err
	}

	stats.ActiveEpics = len(active)
	stats.ArchivedEpics = len(archived)
	stats.Archives = len(archives)
	for i := range archives {
		s := archives[i].EffectiveStats()
		stats.Tasks.Total += s.Total
		stats.Tasks.Completed += s.Completed
		stats.Tasks.InProgress += s.InProgress
		stats.Tasks.Pending += s.Pending
	}
	return stats, nil
}

// Invalidate clears a project's cached stats after a write.
func (c *statsCache) Invalidate(projectID string) {
	c.mu.Lock()
	delete(c.entries, projectID)
	c.mu.Unlock()
}
