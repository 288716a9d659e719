// Package client talks to the archive API daemon. The remote store is
// authoritative; a cache.Store mirror makes reads fast and lets writes
// apply optimistically before the network round trip completes.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/taskvault/taskvault/internal/archive"
	"github.com/taskvault/taskvault/internal/cache"
	"github.com/taskvault/taskvault/internal/epic"
	vaulterrors "github.com/taskvault/taskvault/internal/errors"
)

// ArchiveSummary is the list-view projection returned by the daemon.
type ArchiveSummary struct {
	ID          string        `json:"id"`
	Timestamp   time.Time     `json:"timestamp"`
	ProjectName string        `json:"projectName,omitempty"`
	Preview     string        `json:"preview,omitempty"`
	Stats       archive.Stats `json:"stats"`
}

// Config holds the settings for connecting to a daemon.
type Config struct {
	// BaseURL is the daemon address (e.g. "http://localhost:8080").
	BaseURL string
	// Timeout bounds each request. One attempt per call, no retries.
	Timeout time.Duration
	// Cache is the local fast tier. Nil disables local mirroring.
	Cache  *cache.Store
	Logger *slog.Logger
}

// Client is an archive API client with an optimistic local mirror.
type Client struct {
	baseURL string
	http    *http.Client
	cache   *cache.Store
	logger  *slog.Logger

	mu       sync.RWMutex
	archived map[string][]epic.Epic // in-memory mirror, keyed by project
}

// New creates a client. BaseURL is required.
func New(cfg Config) (*Client, error) {
	if cfg.BaseURL == "" {
		return nil, fmt.Errorf("client base URL is required")
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Client{
		baseURL:  strings.TrimRight(cfg.BaseURL, "/"),
		http:     &http.Client{Timeout: timeout},
		cache:    cfg.Cache,
		logger:   logger,
		archived: make(map[string][]epic.Epic),
	}, nil
}

// LoadArchivedEpics returns a project's archived epics. The local
// mirror answers first when present; the remote store is always
// consulted and, on success, replaces both memory and cache wholesale.
// A remote failure silently degrades to the local copy, and is an
// error only when no tier has data.
func (c *Client) LoadArchivedEpics(ctx context.Context, projectID string) ([]epic.Epic, error) {
	local, haveLocal := c.localArchived(projectID)

	var resp struct {
		ArchivedEpics []epic.Epic `json:"archivedEpics"`
	}
	err := c.doJSON(ctx, http.MethodGet, "/api/projects/"+url.PathEscape(projectID)+"/archived-epics", nil, &resp)
	if err != nil {
		if haveLocal {
			c.logger.Warn("archived epics fetch failed, serving local copy",
				"project", projectID, "error", err)
			return local, nil
		}
		return nil, vaulterrors.ErrRemoteFailed("load archived epics", err)
	}

	epics := resp.ArchivedEpics
	if epics == nil {
		epics = []epic.Epic{}
	}
	c.setLocalArchived(projectID, epics)
	return epics, nil
}

// ArchiveEpic marks an epic archived. The local mirror is updated
// before the remote call; a remote failure is returned to the caller
// and the optimistic change is left in place for the caller to
// reconcile (typically via LoadArchivedEpics).
func (c *Client) ArchiveEpic(ctx context.Context, projectID string, e epic.Epic) error {
	e.Archive(time.Now().UTC())
	c.mu.Lock()
	list := removeEpic(c.archived[projectID], e.ID)
	list = append(list, e)
	epic.SortByID(list)
	c.archived[projectID] = list
	c.mu.Unlock()
	c.writeCache(projectID)

	var resp struct {
		Archived bool `json:"archived"`
	}
	path := "/api/projects/" + url.PathEscape(projectID) + "/epics/" + url.PathEscape(e.ID) + "/archive"
	if err := c.doJSON(ctx, http.MethodPost, path, nil, &resp); err != nil {
		return vaulterrors.ErrRemoteFailed("archive epic", err)
	}
	if !resp.Archived {
		// Server treated the ID as unknown. Drop the optimistic entry
		// so the mirror does not carry an epic the server never had.
		c.mu.Lock()
		c.archived[projectID] = removeEpic(c.archived[projectID], e.ID)
		c.mu.Unlock()
		c.writeCache(projectID)
	}
	return nil
}

// RestoreEpic removes an epic from the archived collection. Optimistic
// like ArchiveEpic; no rollback on remote failure.
func (c *Client) RestoreEpic(ctx context.Context, projectID, epicID string) error {
	c.mu.Lock()
	c.archived[projectID] = removeEpic(c.archived[projectID], epicID)
	c.mu.Unlock()
	c.writeCache(projectID)

	var resp struct {
		Restored bool `json:"restored"`
	}
	path := "/api/projects/" + url.PathEscape(projectID) + "/epics/" + url.PathEscape(epicID) + "/restore"
	if err := c.doJSON(ctx, http.MethodPost, path, nil, &resp); err != nil {
		return vaulterrors.ErrRemoteFailed("restore epic", err)
	}
	return nil
}

// ListArchives returns a project's archive summaries, newest first.
// Same cache-first degradation as LoadArchivedEpics.
func (c *Client) ListArchives(ctx context.Context, projectID string) ([]ArchiveSummary, error) {
	var resp struct {
		Archives []ArchiveSummary `json:"archives"`
	}
	err := c.doJSON(ctx, http.MethodGet, "/api/projects/"+url.PathEscape(projectID)+"/archives", nil, &resp)
	if err != nil {
		var cached []ArchiveSummary
		if c.cache != nil {
			if ok, _ := c.cache.Get(cache.ArchivesKey(projectID), &cached); ok {
				c.logger.Warn("archive list fetch failed, serving local copy",
					"project", projectID, "error", err)
				return cached, nil
			}
		}
		return nil, vaulterrors.ErrRemoteFailed("list archives", err)
	}

	if resp.Archives == nil {
		resp.Archives = []ArchiveSummary{}
	}
	if c.cache != nil {
		if err := c.cache.Set(cache.ArchivesKey(projectID), resp.Archives); err != nil {
			c.logger.Warn("archive list cache write failed", "project", projectID, "error", err)
		}
	}
	return resp.Archives, nil
}

// GetArchive fetches one archive. Statuses, when given, filter the
// task list server-side.
func (c *Client) GetArchive(ctx context.Context, archiveID string, statuses []string) (*archive.Archive, error) {
	path := "/api/archives/" + url.PathEscape(archiveID)
	if len(statuses) > 0 {
		path += "?status=" + url.QueryEscape(strings.Join(statuses, ","))
	}
	var a archive.Archive
	if err := c.doJSON(ctx, http.MethodGet, path, nil, &a); err != nil {
		return nil, err
	}
	return &a, nil
}

// UploadArchive sends a raw archive blob for a project. The daemon
// parses it permissively and returns the stored archive.
func (c *Client) UploadArchive(ctx context.Context, projectID string, data []byte) (*archive.Archive, error) {
	var a archive.Archive
	path := "/api/projects/" + url.PathEscape(projectID) + "/archives"
	if err := c.doJSON(ctx, http.MethodPost, path, bytes.NewReader(data), &a); err != nil {
		return nil, err
	}
	return &a, nil
}

// DeleteArchive removes an archive from the remote store.
func (c *Client) DeleteArchive(ctx context.Context, archiveID string) error {
	return c.doJSON(ctx, http.MethodDelete, "/api/archives/"+url.PathEscape(archiveID), nil, nil)
}

// localArchived returns the memory mirror, falling back to cache.
func (c *Client) localArchived(projectID string) ([]epic.Epic, bool) {
	c.mu.RLock()
	list, ok := c.archived[projectID]
	c.mu.RUnlock()
	if ok {
		return list, true
	}
	if c.cache == nil {
		return nil, false
	}
	var cached []epic.Epic
	found, err := c.cache.Get(cache.ArchivedEpicsKey(projectID), &cached)
	if err != nil || !found {
		return nil, false
	}
	c.mu.Lock()
	c.archived[projectID] = cached
	c.mu.Unlock()
	return cached, true
}

func (c *Client) setLocalArchived(projectID string, epics []epic.Epic) {
	c.mu.Lock()
	c.archived[projectID] = epics
	c.mu.Unlock()
	c.writeCache(projectID)
}

func (c *Client) writeCache(projectID string) {
	if c.cache == nil {
		return
	}
	c.mu.RLock()
	list := c.archived[projectID]
	c.mu.RUnlock()
	if err := c.cache.Set(cache.ArchivedEpicsKey(projectID), list); err != nil {
		c.logger.Warn("cache write failed", "project", projectID, "error", err)
	}
}

func removeEpic(list []epic.Epic, id string) []epic.Epic {
	out := make([]epic.Epic, 0, len(list))
	for _, e := range list {
		if e.ID != id {
			out = append(out, e)
		}
	}
	return out
}

// doJSON performs one request and decodes a JSON response into out
// (when out is non-nil). Error bodies in the daemon's {error, code}
// shape are surfaced as VaultErrors.
func (c *Client) doJSON(ctx context.Context, method, path string, body io.Reader, out any) error {
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return c.decodeError(resp)
	}
	if out == nil || resp.StatusCode == http.StatusNoContent {
		io.Copy(io.Discard, resp.Body)
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

func (c *Client) decodeError(resp *http.Response) error {
	var body struct {
		Error string `json:"error"`
		Code  string `json:"code"`
	}
	data, _ := io.ReadAll(io.LimitReader(resp.Body, 64*1024))
	if err := json.Unmarshal(data, &body); err == nil && body.Error != "" {
		return &vaulterrors.VaultError{
			Code: vaulterrors.Code(body.Code),
			What: body.Error,
		}
	}
	return fmt.Errorf("unexpected status %d", resp.StatusCode)
}
