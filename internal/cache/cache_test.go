package cache

import (
	"testing"

	"github.com/spf13/afero"

	"github.com/taskvault/taskvault/internal/epic"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	return New(afero.NewMemMapFs(), "/cache")
}

func TestGetMissingKey(t *testing.T) {
	t.Parallel()
	s := newTestStore(t)

	var epics []epic.Epic
	found, err := s.Get(ArchivedEpicsKey("p1"), &epics)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if found {
		t.Error("expected miss for absent key")
	}
}

func TestSetGetRoundTrip(t *testing.T) {
	t.Parallel()
	s := newTestStore(t)

	want := []epic.Epic{
		{ID: "2", Title: "Two"},
		{ID: "10", Title: "Ten"},
	}
	if err := s.Set(ArchivedEpicsKey("p1"), want); err != nil {
		t.Fatalf("Set: %v", err)
	}

	var got []epic.Epic
	found, err := s.Get(ArchivedEpicsKey("p1"), &got)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if !found {
		t.Fatal("expected hit")
	}
	if len(got) != 2 || got[0].ID != "2" || got[1].ID != "10" {
		t.Errorf("got %+v", got)
	}
}

func TestLastWriteWins(t *testing.T) {
	t.Parallel()
	s := newTestStore(t)

	key := ArchivesKey("p1")
	if err := s.Set(key, []string{"a", "b"}); err != nil {
		t.Fatal(err)
	}
	if err := s.Set(key, []string{"c"}); err != nil {
		t.Fatal(err)
	}

	var got []string
	if _, err := s.Get(key, &got); err != nil {
		t.Fatal(err)
	}
	if len(got) != 1 || got[0] != "c" {
		t.Errorf("got %v, want [c]", got)
	}
}

func TestKeysAreIsolated(t *testing.T) {
	t.Parallel()
	s := newTestStore(t)

	if err := s.Set(ArchivedEpicsKey("p1"), []string{"one"}); err != nil {
		t.Fatal(err)
	}
	if err := s.Set(ArchivedEpicsKey("p2"), []string{"two"}); err != nil {
		t.Fatal(err)
	}

	var got []string
	if _, err := s.Get(ArchivedEpicsKey("p1"), &got); err != nil {
		t.Fatal(err)
	}
	if len(got) != 1 || got[0] != "one" {
		t.Errorf("p1 value = %v", got)
	}
}

func TestDelete(t *testing.T) {
	t.Parallel()
	s := newTestStore(t)

	key := ArchivedEpicsKey("p1")
	if err := s.Set(key, "value"); err != nil {
		t.Fatal(err)
	}
	if err := s.Delete(key); err != nil {
		t.Fatalf("Delete: %v", err)
	}

	var got string
	found, err := s.Get(key, &got)
	if err != nil {
		t.Fatal(err)
	}
	if found {
		t.Error("expected miss after delete")
	}

	// Deleting again is a no-op
	if err := s.Delete(key); err != nil {
		t.Errorf("second Delete: %v", err)
	}
}

func TestCorruptEntryIsAMiss(t *testing.T) {
	t.Parallel()
	fs := afero.NewMemMapFs()
	s := New(fs, "/cache")

	_ = afero.WriteFile(fs, "/cache/broken.json", []byte("{not json"), 0o644)

	var got map[string]string
	found, err := s.Get("broken", &got)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if found {
		t.Error("corrupt entry must read as a miss")
	}
}

func TestKeySanitization(t *testing.T) {
	t.Parallel()
	s := newTestStore(t)

	key := ArchivedEpicsKey("proj/with:odd chars")
	if err := s.Set(key, 42); err != nil {
		t.Fatalf("Set: %v", err)
	}

	var got int
	found, err := s.Get(key, &got)
	if err != nil {
		t.Fatal(err)
	}
	if !found || got != 42 {
		t.Errorf("found=%v got=%d", found, got)
	}
}
