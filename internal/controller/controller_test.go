package controller

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/taskvault/taskvault/internal/archive"
	"github.com/taskvault/taskvault/internal/epic"
)

type recordedToast struct {
	Message string
	Kind    ToastKind
}

type toastRecorder struct {
	mu     sync.Mutex
	toasts []recordedToast
}

func (r *toastRecorder) Toast(message string, kind ToastKind) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.toasts = append(r.toasts, recordedToast{message, kind})
}

func (r *toastRecorder) last(t *testing.T) recordedToast {
	t.Helper()
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.toasts) == 0 {
		t.Fatal("no toasts recorded")
	}
	return r.toasts[len(r.toasts)-1]
}

type fakeClient struct {
	mu          sync.Mutex
	archiveErr  error
	restoreErr  error
	archives    map[string]*archive.Archive
	loadCalls   int
	archiveBusy int
	maxBusy     int
}

func (f *fakeClient) LoadArchivedEpics(ctx context.Context, projectID string) ([]epic.Epic, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.loadCalls++
	return []epic.Epic{}, nil
}

func (f *fakeClient) ArchiveEpic(ctx context.Context, projectID string, e epic.Epic) error {
	f.mu.Lock()
	f.archiveBusy++
	if f.archiveBusy > f.maxBusy {
		f.maxBusy = f.archiveBusy
	}
	err := f.archiveErr
	f.mu.Unlock()

	time.Sleep(5 * time.Millisecond)

	f.mu.Lock()
	f.archiveBusy--
	f.mu.Unlock()
	return err
}

func (f *fakeClient) RestoreEpic(ctx context.Context, projectID, epicID string) error {
	return f.restoreErr
}

func (f *fakeClient) GetArchive(ctx context.Context, archiveID string, statuses []string) (*archive.Archive, error) {
	a, ok := f.archives[archiveID]
	if !ok {
		return nil, errors.New("archive not found")
	}
	return a, nil
}

func newTestController(t *testing.T, client *fakeClient) (*Controller, *toastRecorder, *[]ActionState) {
	t.Helper()
	rec := &toastRecorder{}
	var mu sync.Mutex
	states := []ActionState{}
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	c := New(client, rec, logger, WithStateObserver(func(_ string, s ActionState) {
		mu.Lock()
		states = append(states, s)
		mu.Unlock()
	}))
	return c, rec, &states
}

func TestArchiveEpicSuccess(t *testing.T) {
	client := &fakeClient{}
	c, rec, states := newTestController(t, client)

	err := c.ArchiveEpic(context.Background(), "p1", epic.Epic{ID: "5"})
	if err != nil {
		t.Fatalf("ArchiveEpic: %v", err)
	}

	toast := rec.last(t)
	if toast.Kind != ToastSuccess {
		t.Errorf("toast = %+v, want success", toast)
	}
	if client.loadCalls != 0 {
		t.Errorf("resync triggered on success: %d loads", client.loadCalls)
	}

	want := []ActionState{StateIdle, StateOptimisticApplied, StateRemotePending, StateSettledSuccess}
	if len(*states) != len(want) {
		t.Fatalf("states = %v", *states)
	}
	for i, s := range want {
		if (*states)[i] != s {
			t.Errorf("state[%d] = %s, want %s", i, (*states)[i], s)
		}
	}
}

func TestArchiveEpicFailureResyncsAndToasts(t *testing.T) {
	client := &fakeClient{archiveErr: errors.New("remote down")}
	c, rec, states := newTestController(t, client)

	err := c.ArchiveEpic(context.Background(), "p1", epic.Epic{ID: "5"})
	if err == nil {
		t.Fatal("expected error")
	}

	toast := rec.last(t)
	if toast.Kind != ToastError {
		t.Errorf("toast = %+v, want error", toast)
	}
	// Failure reconciles by reloading, never by inverse patching
	if client.loadCalls != 1 {
		t.Errorf("loadCalls = %d, want 1", client.loadCalls)
	}
	if (*states)[len(*states)-1] != StateSettledFailure {
		t.Errorf("final state = %s", (*states)[len(*states)-1])
	}
}

func TestRestoreEpicFailure(t *testing.T) {
	client := &fakeClient{restoreErr: errors.New("remote down")}
	c, rec, _ := newTestController(t, client)

	if err := c.RestoreEpic(context.Background(), "p1", "5"); err == nil {
		t.Fatal("expected error")
	}
	if rec.last(t).Kind != ToastError {
		t.Errorf("toast = %+v", rec.last(t))
	}
	if client.loadCalls != 1 {
		t.Errorf("loadCalls = %d, want 1", client.loadCalls)
	}
}

func TestSameEpicActionsAreSerialized(t *testing.T) {
	client := &fakeClient{}
	c, _, _ := newTestController(t, client)

	var wg sync.WaitGroup
	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_ = c.ArchiveEpic(context.Background(), "p1", epic.Epic{ID: "same"})
		}()
	}
	wg.Wait()

	if client.maxBusy != 1 {
		t.Errorf("maxBusy = %d, want 1 (same-epic actions must serialize)", client.maxBusy)
	}
}

func TestDifferentEpicsProceedConcurrently(t *testing.T) {
	client := &fakeClient{}
	c, _, _ := newTestController(t, client)

	var wg sync.WaitGroup
	for i := 0; i < 4; i++ {
		id := string(rune('a' + i))
		wg.Add(1)
		go func() {
			defer wg.Done()
			_ = c.ArchiveEpic(context.Background(), "p1", epic.Epic{ID: id})
		}()
	}
	wg.Wait()

	if client.maxBusy < 2 {
		t.Errorf("maxBusy = %d, want concurrent execution across epics", client.maxBusy)
	}
}

func TestImportAppend(t *testing.T) {
	client := &fakeClient{archives: map[string]*archive.Archive{
		"a1": {ID: "a1", Tasks: []archive.Task{
			{ID: "t2", Name: "Archived", Status: archive.TaskCompleted},
		}},
	}}
	c, rec, _ := newTestController(t, client)

	current := []archive.Task{{ID: "t1", Name: "Live", Status: archive.TaskPending}}
	var applied []archive.Task
	err := c.Import(context.Background(), "a1", current, archive.ModeAppend, func(tasks []archive.Task) error {
		applied = tasks
		return nil
	})
	if err != nil {
		t.Fatalf("Import: %v", err)
	}
	if len(applied) != 2 || applied[0].ID != "t1" || applied[1].ID != "t2" {
		t.Errorf("applied = %+v", applied)
	}
	if rec.last(t).Kind != ToastSuccess {
		t.Errorf("toast = %+v", rec.last(t))
	}
}

func TestImportReplace(t *testing.T) {
	client := &fakeClient{archives: map[string]*archive.Archive{
		"a1": {ID: "a1", Tasks: []archive.Task{{ID: "t2"}}},
	}}
	c, _, _ := newTestController(t, client)

	current := []archive.Task{{ID: "t1"}}
	var applied []archive.Task
	err := c.Import(context.Background(), "a1", current, archive.ModeReplace, func(tasks []archive.Task) error {
		applied = tasks
		return nil
	})
	if err != nil {
		t.Fatal(err)
	}
	if len(applied) != 1 || applied[0].ID != "t2" {
		t.Errorf("applied = %+v", applied)
	}
}

func TestImportFailsWhenApplyFails(t *testing.T) {
	client := &fakeClient{archives: map[string]*archive.Archive{
		"a1": {ID: "a1", Tasks: []archive.Task{{ID: "t1"}}},
	}}
	c, rec, _ := newTestController(t, client)

	err := c.Import(context.Background(), "a1", nil, archive.ModeAppend, func([]archive.Task) error {
		return errors.New("disk full")
	})
	if err == nil {
		t.Fatal("expected error when apply fails")
	}
	if rec.last(t).Kind != ToastError {
		t.Errorf("toast = %+v", rec.last(t))
	}
}

func TestImportInvalidMode(t *testing.T) {
	c, _, _ := newTestController(t, &fakeClient{})

	err := c.Import(context.Background(), "a1", nil, archive.ImportMode("merge"), func([]archive.Task) error {
		t.Fatal("apply must not run for an invalid mode")
		return nil
	})
	if err == nil {
		t.Fatal("expected error")
	}
}

func TestImportUnknownArchive(t *testing.T) {
	c, rec, _ := newTestController(t, &fakeClient{})

	err := c.Import(context.Background(), "ghost", nil, archive.ModeAppend, func([]archive.Task) error {
		t.Fatal("apply must not run when fetch fails")
		return nil
	})
	if err == nil {
		t.Fatal("expected error")
	}
	if rec.last(t).Kind != ToastError {
		t.Errorf("toast = %+v", rec.last(t))
	}
}

type stubExporter struct {
	rendered []archive.Task
	err      error
}

func (s *stubExporter) Render(tasks []archive.Task) ([]byte, error) {
	s.rendered = tasks
	if s.err != nil {
		return nil, s.err
	}
	return []byte("ok"), nil
}

func TestExportFiltersByStatus(t *testing.T) {
	c, rec, _ := newTestController(t, &fakeClient{})

	tasks := []archive.Task{
		{ID: "t1", Status: archive.TaskCompleted},
		{ID: "t2", Status: archive.TaskPending},
		{ID: "t3", Status: archive.TaskCompleted},
	}
	exp := &stubExporter{}
	data, err := c.Export(tasks, []string{archive.TaskCompleted}, exp)
	if err != nil {
		t.Fatalf("Export: %v", err)
	}
	if string(data) != "ok" {
		t.Errorf("data = %q", data)
	}
	if len(exp.rendered) != 2 {
		t.Errorf("rendered = %+v", exp.rendered)
	}
	if rec.last(t).Kind != ToastSuccess {
		t.Errorf("toast = %+v", rec.last(t))
	}
}

func TestExportEmptyStatusSelection(t *testing.T) {
	c, _, _ := newTestController(t, &fakeClient{})

	exp := &stubExporter{}
	if _, err := c.Export([]archive.Task{{ID: "t1"}}, nil, exp); err != nil {
		t.Fatal(err)
	}
	if len(exp.rendered) != 0 {
		t.Errorf("rendered = %+v, want empty selection", exp.rendered)
	}
}

func TestExportRenderFailure(t *testing.T) {
	c, rec, _ := newTestController(t, &fakeClient{})

	exp := &stubExporter{err: errors.New("bad template")}
	if _, err := c.Export(nil, []string{archive.TaskCompleted}, exp); err == nil {
		t.Fatal("expected error")
	}
	if rec.last(t).Kind != ToastError {
		t.Errorf("toast = %+v", rec.last(t))
	}
}
