package api

import (
	"bytes"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/taskvault/taskvault/internal/db"
	"github.com/taskvault/taskvault/internal/epic"
	"github.com/taskvault/taskvault/internal/events"
	"github.com/taskvault/taskvault/internal/store"
)

func newTestServer(t *testing.T) *Server {
	t.Helper()
	backend := store.NewDatabaseBackend(db.NewTestVaultDB(t))
	return New(&Config{
		Addr:   ":0",
		Logger: slog.New(slog.NewTextHandler(io.Discard, nil)),
	}, backend)
}

func doRequest(t *testing.T, s *Server, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()

	var reader io.Reader
	switch b := body.(type) {
	case nil:
	case string:
		reader = strings.NewReader(b)
	default:
		data, err := json.Marshal(b)
		if err != nil {
			t.Fatalf("marshal request body: %v", err)
		}
		reader = bytes.NewReader(data)
	}

	req := httptest.NewRequest(method, path, reader)
	w := httptest.NewRecorder()
	s.Handler().ServeHTTP(w, req)
	return w
}

func decodeBody(t *testing.T, w *httptest.ResponseRecorder, v any) {
	t.Helper()
	if err := json.Unmarshal(w.Body.Bytes(), v); err != nil {
		t.Fatalf("decode response %q: %v", w.Body.String(), err)
	}
}

func TestHealth(t *testing.T) {
	s := newTestServer(t)

	w := doRequest(t, s, "GET", "/api/health", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", w.Code)
	}

	var resp map[string]string
	decodeBody(t, w, &resp)
	if resp["status"] != "ok" {
		t.Errorf("status = %q, want ok", resp["status"])
	}
}

func TestProjectEndpoints(t *testing.T) {
	s := newTestServer(t)

	w := doRequest(t, s, "POST", "/api/projects", map[string]string{"id": "p1", "name": "Website"})
	if w.Code != http.StatusCreated {
		t.Fatalf("create status = %d, want 201: %s", w.Code, w.Body.String())
	}

	w = doRequest(t, s, "GET", "/api/projects/p1", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("get status = %d, want 200", w.Code)
	}
	var p store.Project
	decodeBody(t, w, &p)
	if p.Name != "Website" {
		t.Errorf("name = %q", p.Name)
	}

	w = doRequest(t, s, "GET", "/api/projects/ghost", nil)
	if w.Code != http.StatusNotFound {
		t.Errorf("missing project status = %d, want 404", w.Code)
	}

	w = doRequest(t, s, "POST", "/api/projects", map[string]string{"name": "  "})
	if w.Code != http.StatusBadRequest {
		t.Errorf("blank name status = %d, want 400", w.Code)
	}
}

func TestEpicArchiveRestoreFlow(t *testing.T) {
	s := newTestServer(t)

	for _, id := range []string{"1", "5", "9"} {
		w := doRequest(t, s, "POST", "/api/projects/p1/epics", epic.Epic{ID: id, Title: "Epic " + id})
		if w.Code != http.StatusCreated {
			t.Fatalf("save epic %s status = %d: %s", id, w.Code, w.Body.String())
		}
	}

	w := doRequest(t, s, "POST", "/api/projects/p1/epics/5/archive", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("archive status = %d", w.Code)
	}
	var archiveResp struct {
		EpicID   string `json:"epicId"`
		Archived bool   `json:"archived"`
	}
	decodeBody(t, w, &archiveResp)
	if !archiveResp.Archived {
		t.Error("expected archived = true")
	}

	// Active list shrinks
	w = doRequest(t, s, "GET", "/api/projects/p1/epics", nil)
	var listResp struct {
		Epics []epic.Epic `json:"epics"`
	}
	decodeBody(t, w, &listResp)
	if len(listResp.Epics) != 2 {
		t.Errorf("active epics = %d, want 2", len(listResp.Epics))
	}

	// Archived collection contains epic 5 with a timestamp
	w = doRequest(t, s, "GET", "/api/projects/p1/archived-epics", nil)
	var archivedResp struct {
		ArchivedEpics []epic.Epic `json:"archivedEpics"`
	}
	decodeBody(t, w, &archivedResp)
	if len(archivedResp.ArchivedEpics) != 1 || archivedResp.ArchivedEpics[0].ID != "5" {
		t.Fatalf("archivedEpics = %+v", archivedResp.ArchivedEpics)
	}
	if archivedResp.ArchivedEpics[0].ArchivedAt == nil {
		t.Error("archived epic missing archivedAt")
	}

	// Restore and confirm the serialized epic has no archivedAt key
	w = doRequest(t, s, "POST", "/api/projects/p1/epics/5/restore", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("restore status = %d", w.Code)
	}

	w = doRequest(t, s, "GET", "/api/projects/p1/epics/5", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("get epic status = %d", w.Code)
	}
	if strings.Contains(w.Body.String(), "archivedAt") {
		t.Errorf("restored epic body still has archivedAt: %s", w.Body.String())
	}

	w = doRequest(t, s, "GET", "/api/projects/p1/epics", nil)
	decodeBody(t, w, &listResp)
	if len(listResp.Epics) != 3 {
		t.Errorf("active epics after restore = %d, want 3", len(listResp.Epics))
	}
}

func TestArchiveUnknownEpicIsNoOp(t *testing.T) {
	s := newTestServer(t)

	w := doRequest(t, s, "POST", "/api/projects/p1/epics/ghost/archive", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", w.Code)
	}
	var resp struct {
		Archived bool `json:"archived"`
	}
	decodeBody(t, w, &resp)
	if resp.Archived {
		t.Error("archiving unknown epic must report archived = false")
	}
}

func TestArchivedEpicsNumericOrder(t *testing.T) {
	s := newTestServer(t)

	for _, id := range []string{"10", "2", "9"} {
		doRequest(t, s, "POST", "/api/projects/p1/epics", epic.Epic{ID: id})
		doRequest(t, s, "POST", "/api/projects/p1/epics/"+id+"/archive", nil)
	}

	w := doRequest(t, s, "GET", "/api/projects/p1/archived-epics", nil)
	var resp struct {
		ArchivedEpics []epic.Epic `json:"archivedEpics"`
	}
	decodeBody(t, w, &resp)

	want := []string{"2", "9", "10"}
	if len(resp.ArchivedEpics) != len(want) {
		t.Fatalf("count = %d, want %d", len(resp.ArchivedEpics), len(want))
	}
	for i := range want {
		if resp.ArchivedEpics[i].ID != want[i] {
			t.Errorf("archivedEpics[%d] = %s, want %s", i, resp.ArchivedEpics[i].ID, want[i])
		}
	}
}

func TestEpicProgress(t *testing.T) {
	s := newTestServer(t)

	e := epic.Epic{
		ID: "1",
		Stories: []epic.Story{
			{ID: "s1", Status: epic.StatusDone},
			{ID: "s2", Status: epic.StatusInProgress},
		},
	}
	doRequest(t, s, "POST", "/api/projects/p1/epics", e)

	w := doRequest(t, s, "POST", "/api/projects/p1/verifications", map[string]any{"storyId": "s1", "score": 65})
	if w.Code != http.StatusCreated {
		t.Fatalf("verification status = %d: %s", w.Code, w.Body.String())
	}

	w = doRequest(t, s, "GET", "/api/projects/p1/epics/1/progress", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("progress status = %d", w.Code)
	}
	var p epic.Progress
	decodeBody(t, w, &p)
	if p.Total != 2 || p.Completed != 1 || p.Percentage != 50 {
		t.Errorf("progress = %+v", p)
	}
	if p.AverageScore == nil || *p.AverageScore != 65 {
		t.Errorf("averageScore = %v, want 65", p.AverageScore)
	}
	if len(p.NeedsAttention) != 1 || p.NeedsAttention[0].ID != "s1" {
		t.Errorf("needsAttention = %+v", p.NeedsAttention)
	}
}

func TestVerificationValidation(t *testing.T) {
	s := newTestServer(t)

	w := doRequest(t, s, "POST", "/api/projects/p1/verifications", map[string]any{"storyId": "s1", "score": 130})
	if w.Code != http.StatusBadRequest {
		t.Errorf("out-of-range score status = %d, want 400", w.Code)
	}
	w = doRequest(t, s, "POST", "/api/projects/p1/verifications", map[string]any{"score": 50})
	if w.Code != http.StatusBadRequest {
		t.Errorf("missing storyId status = %d, want 400", w.Code)
	}
}

func TestArchiveUploadAndFetch(t *testing.T) {
	s := newTestServer(t)

	// Messy payload: unknown fields, legacy date field, one malformed task
	payload := `{
		"date": "2026-05-01T12:00:00Z",
		"projectName": "Website",
		"initialRequest": "Build the marketing site with a blog and a pricing page",
		"somethingUnknown": {"nested": true},
		"tasks": [
			{"id": "t1", "name": "Design", "status": "completed"},
			{"name": "no id, skipped"},
			{"id": "t2", "name": "Build", "status": "in_progress"},
			{"id": "t3", "name": "Ship", "status": "pending"}
		]
	}`

	w := doRequest(t, s, "POST", "/api/projects/p1/archives", payload)
	if w.Code != http.StatusCreated {
		t.Fatalf("upload status = %d: %s", w.Code, w.Body.String())
	}
	var created struct {
		ID    string `json:"id"`
		Tasks []any  `json:"tasks"`
	}
	decodeBody(t, w, &created)
	if created.ID == "" {
		t.Fatal("archive ID not assigned")
	}
	if len(created.Tasks) != 3 {
		t.Errorf("tasks = %d, want 3 (malformed entry skipped)", len(created.Tasks))
	}

	// List has derived stats and truncated preview
	w = doRequest(t, s, "GET", "/api/projects/p1/archives", nil)
	var list struct {
		Archives []archiveSummary `json:"archives"`
	}
	decodeBody(t, w, &list)
	if len(list.Archives) != 1 {
		t.Fatalf("archives = %d, want 1", len(list.Archives))
	}
	sum := list.Archives[0]
	if sum.Stats.Total != 3 || sum.Stats.Completed != 1 || sum.Stats.InProgress != 1 || sum.Stats.Pending != 1 {
		t.Errorf("stats = %+v", sum.Stats)
	}
	if sum.Preview == "" {
		t.Error("preview missing")
	}
	if !sum.Timestamp.Equal(time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC)) {
		t.Errorf("timestamp = %v", sum.Timestamp)
	}

	// Status filter on fetch
	w = doRequest(t, s, "GET", "/api/archives/"+created.ID+"?status=completed,pending", nil)
	var fetched struct {
		Tasks []struct {
			ID string `json:"id"`
		} `json:"tasks"`
	}
	decodeBody(t, w, &fetched)
	if len(fetched.Tasks) != 2 {
		t.Errorf("filtered tasks = %d, want 2", len(fetched.Tasks))
	}

	// Delete
	w = doRequest(t, s, "DELETE", "/api/archives/"+created.ID, nil)
	if w.Code != http.StatusNoContent {
		t.Fatalf("delete status = %d, want 204", w.Code)
	}
	w = doRequest(t, s, "DELETE", "/api/archives/"+created.ID, nil)
	if w.Code != http.StatusNotFound {
		t.Errorf("second delete status = %d, want 404", w.Code)
	}
}

func TestArchiveUploadRejectsGarbage(t *testing.T) {
	s := newTestServer(t)

	w := doRequest(t, s, "POST", "/api/projects/p1/archives", "not json at all")
	if w.Code != http.StatusBadRequest {
		t.Errorf("garbage upload status = %d, want 400", w.Code)
	}

	w = doRequest(t, s, "POST", "/api/projects/p1/archives", `[1, 2, 3]`)
	if w.Code != http.StatusBadRequest {
		t.Errorf("non-object upload status = %d, want 400", w.Code)
	}
}

func TestWritesPublishCollectionRefreshed(t *testing.T) {
	s := newTestServer(t)
	if err := s.Backend().SaveEpic("p1", &epic.Epic{ID: "1", Title: "Auth"}); err != nil {
		t.Fatal(err)
	}

	ch := s.Publisher().Subscribe("p1")
	defer s.Publisher().Unsubscribe("p1", ch)

	w := doRequest(t, s, "POST", "/api/projects/p1/epics/1/archive", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("archive status = %d", w.Code)
	}

	timeout := time.After(2 * time.Second)
	for {
		select {
		case ev := <-ch:
			if ev.Type == events.EventCollectionRefreshed {
				return
			}
		case <-timeout:
			t.Fatal("no collection_refreshed event after archive")
		}
	}
}

func TestStatsEndpoint(t *testing.T) {
	s := newTestServer(t)

	doRequest(t, s, "POST", "/api/projects/p1/epics", epic.Epic{ID: "1"})
	doRequest(t, s, "POST", "/api/projects/p1/epics", epic.Epic{ID: "2"})
	doRequest(t, s, "POST", "/api/projects/p1/epics/2/archive", nil)
	doRequest(t, s, "POST", "/api/projects/p1/archives", `{
		"tasks": [
			{"id": "t1", "status": "completed"},
			{"id": "t2", "status": "pending"}
		]
	}`)

	w := doRequest(t, s, "GET", "/api/projects/p1/stats", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("stats status = %d", w.Code)
	}
	var stats ProjectStats
	decodeBody(t, w, &stats)
	if stats.ActiveEpics != 1 || stats.ArchivedEpics != 1 || stats.Archives != 1 {
		t.Errorf("stats = %+v", stats)
	}
	if stats.Tasks.Total != 2 || stats.Tasks.Completed != 1 {
		t.Errorf("task stats = %+v", stats.Tasks)
	}

	// Writes invalidate the cache
	doRequest(t, s, "POST", "/api/projects/p1/epics/2/restore", nil)
	w = doRequest(t, s, "GET", "/api/projects/p1/stats", nil)
	decodeBody(t, w, &stats)
	if stats.ActiveEpics != 2 || stats.ArchivedEpics != 0 {
		t.Errorf("stats after restore = %+v", stats)
	}
}

func TestGetArchiveNotFound(t *testing.T) {
	s := newTestServer(t)

	w := doRequest(t, s, "GET", "/api/archives/ghost", nil)
	if w.Code != http.StatusNotFound {
		t.Errorf("status = %d, want 404", w.Code)
	}
}
