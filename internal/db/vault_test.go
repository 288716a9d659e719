package db

import (
	"testing"
	"time"
)

func TestSaveGetProject(t *testing.T) {
	t.Parallel()
	vdb := NewTestVaultDB(t)

	p := &Project{ID: "proj-1", Name: "Website Redesign"}
	if err := vdb.SaveProject(p); err != nil {
		t.Fatalf("SaveProject: %v", err)
	}

	got, err := vdb.GetProject("proj-1")
	if err != nil {
		t.Fatalf("GetProject: %v", err)
	}
	if got == nil {
		t.Fatal("expected project, got nil")
	}
	if got.Name != "Website Redesign" {
		t.Errorf("Name = %q, want 'Website Redesign'", got.Name)
	}

	// Upsert updates in place
	p.Name = "Website Rebuild"
	if err := vdb.SaveProject(p); err != nil {
		t.Fatalf("SaveProject update: %v", err)
	}
	got, err = vdb.GetProject("proj-1")
	if err != nil {
		t.Fatalf("GetProject after update: %v", err)
	}
	if got.Name != "Website Rebuild" {
		t.Errorf("Name = %q, want 'Website Rebuild'", got.Name)
	}

	missing, err := vdb.GetProject("nope")
	if err != nil {
		t.Fatalf("GetProject missing: %v", err)
	}
	if missing != nil {
		t.Error("expected nil for missing project")
	}
}

func TestEpicLifecycle(t *testing.T) {
	t.Parallel()
	vdb := NewTestVaultDB(t)

	e := &Epic{ID: "1", ProjectID: "proj-1", Title: "Auth", Description: "Login flows"}
	if err := vdb.SaveEpic(e); err != nil {
		t.Fatalf("SaveEpic: %v", err)
	}

	got, err := vdb.GetEpic("proj-1", "1")
	if err != nil {
		t.Fatalf("GetEpic: %v", err)
	}
	if got == nil || got.Title != "Auth" {
		t.Fatalf("got %+v, want Title 'Auth'", got)
	}
	if got.ArchivedAt != nil {
		t.Error("new epic should not be archived")
	}

	active, err := vdb.ListEpics("proj-1", false)
	if err != nil {
		t.Fatalf("ListEpics active: %v", err)
	}
	if len(active) != 1 {
		t.Fatalf("active count = %d, want 1", len(active))
	}

	at := time.Now().UTC()
	changed, err := vdb.SetEpicArchived("proj-1", "1", &at)
	if err != nil {
		t.Fatalf("SetEpicArchived: %v", err)
	}
	if !changed {
		t.Error("expected archive to change a row")
	}

	active, err = vdb.ListEpics("proj-1", false)
	if err != nil {
		t.Fatalf("ListEpics after archive: %v", err)
	}
	if len(active) != 0 {
		t.Errorf("active count = %d, want 0", len(active))
	}
	archived, err := vdb.ListEpics("proj-1", true)
	if err != nil {
		t.Fatalf("ListEpics archived: %v", err)
	}
	if len(archived) != 1 {
		t.Fatalf("archived count = %d, want 1", len(archived))
	}
	if archived[0].ArchivedAt == nil {
		t.Error("archived epic missing timestamp")
	}

	// Restore clears the marker
	changed, err = vdb.SetEpicArchived("proj-1", "1", nil)
	if err != nil {
		t.Fatalf("SetEpicArchived restore: %v", err)
	}
	if !changed {
		t.Error("expected restore to change a row")
	}
	got, err = vdb.GetEpic("proj-1", "1")
	if err != nil {
		t.Fatalf("GetEpic after restore: %v", err)
	}
	if got.ArchivedAt != nil {
		t.Error("restored epic should have no archive timestamp")
	}
}

func TestSetEpicArchived_MissingEpic(t *testing.T) {
	t.Parallel()
	vdb := NewTestVaultDB(t)

	at := time.Now().UTC()
	changed, err := vdb.SetEpicArchived("proj-1", "ghost", &at)
	if err != nil {
		t.Fatalf("SetEpicArchived: %v", err)
	}
	if changed {
		t.Error("archiving a missing epic should change nothing")
	}
}

func TestStoriesRoundTrip(t *testing.T) {
	t.Parallel()
	vdb := NewTestVaultDB(t)

	if err := vdb.SaveEpic(&Epic{ID: "1", ProjectID: "p", Title: "Auth"}); err != nil {
		t.Fatalf("SaveEpic: %v", err)
	}

	stories := []Story{
		{ID: "s1", Title: "Login page", Status: "Done"},
		{ID: "s2", Title: "OAuth", Status: "In Progress"},
		{ID: "s3", Title: "MFA", Status: "Draft"},
	}
	if err := vdb.ReplaceStories("p", "1", stories); err != nil {
		t.Fatalf("ReplaceStories: %v", err)
	}

	got, err := vdb.ListStories("p", "1")
	if err != nil {
		t.Fatalf("ListStories: %v", err)
	}
	if len(got) != 3 {
		t.Fatalf("story count = %d, want 3", len(got))
	}
	for i, want := range []string{"s1", "s2", "s3"} {
		if got[i].ID != want {
			t.Errorf("story[%d].ID = %q, want %q", i, got[i].ID, want)
		}
	}

	// Replacement drops stale rows
	if err := vdb.ReplaceStories("p", "1", stories[:1]); err != nil {
		t.Fatalf("ReplaceStories shrink: %v", err)
	}
	got, err = vdb.ListStories("p", "1")
	if err != nil {
		t.Fatalf("ListStories after shrink: %v", err)
	}
	if len(got) != 1 {
		t.Errorf("story count = %d, want 1", len(got))
	}

	byEpic, err := vdb.ListProjectStories("p")
	if err != nil {
		t.Fatalf("ListProjectStories: %v", err)
	}
	if len(byEpic["1"]) != 1 {
		t.Errorf("byEpic count = %d, want 1", len(byEpic["1"]))
	}
}

func TestVerifications(t *testing.T) {
	t.Parallel()
	vdb := NewTestVaultDB(t)

	at := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	if err := vdb.SaveVerification(&Verification{ProjectID: "p", StoryID: "s1", Score: 85, VerifiedAt: at}); err != nil {
		t.Fatalf("SaveVerification: %v", err)
	}
	if err := vdb.SaveVerification(&Verification{ProjectID: "p", StoryID: "s2", Score: 60}); err != nil {
		t.Fatalf("SaveVerification: %v", err)
	}

	// Upsert overwrites
	if err := vdb.SaveVerification(&Verification{ProjectID: "p", StoryID: "s1", Score: 90, VerifiedAt: at}); err != nil {
		t.Fatalf("SaveVerification upsert: %v", err)
	}

	got, err := vdb.GetVerifications("p")
	if err != nil {
		t.Fatalf("GetVerifications: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("verification count = %d, want 2", len(got))
	}
	if got["s1"].Score != 90 {
		t.Errorf("s1 score = %d, want 90", got["s1"].Score)
	}
	if !got["s1"].VerifiedAt.Equal(at) {
		t.Errorf("s1 verifiedAt = %v, want %v", got["s1"].VerifiedAt, at)
	}
	if got["s2"].VerifiedAt.IsZero() {
		t.Error("s2 verifiedAt should default to save time")
	}
}

func TestArchiveRoundTrip(t *testing.T) {
	t.Parallel()
	vdb := NewTestVaultDB(t)

	total, completed := 3, 2
	a := &Archive{
		ID:             "arch-1",
		ProjectID:      "p",
		ProjectName:    "Website",
		InitialRequest: "Build the site",
		Timestamp:      time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC),
		StatsTotal:     &total,
		StatsCompleted: &completed,
	}
	done := time.Date(2026, 4, 30, 9, 0, 0, 0, time.UTC)
	tasks := []ArchiveTask{
		{TaskID: "t1", Name: "Design", Status: "completed", CompletedAt: &done},
		{TaskID: "t2", Name: "Build", Status: "completed"},
		{TaskID: "t3", Name: "Ship", Status: "pending"},
	}

	if err := vdb.SaveArchive(a, tasks); err != nil {
		t.Fatalf("SaveArchive: %v", err)
	}

	got, gotTasks, err := vdb.GetArchive("arch-1")
	if err != nil {
		t.Fatalf("GetArchive: %v", err)
	}
	if got == nil {
		t.Fatal("expected archive, got nil")
	}
	if got.ProjectName != "Website" {
		t.Errorf("ProjectName = %q", got.ProjectName)
	}
	if got.StatsTotal == nil || *got.StatsTotal != 3 {
		t.Errorf("StatsTotal = %v, want 3", got.StatsTotal)
	}
	if got.StatsPending != nil {
		t.Error("StatsPending should be nil when not stored")
	}
	if len(gotTasks) != 3 {
		t.Fatalf("task count = %d, want 3", len(gotTasks))
	}
	if gotTasks[0].TaskID != "t1" || gotTasks[2].TaskID != "t3" {
		t.Errorf("task order wrong: %+v", gotTasks)
	}
	if gotTasks[0].CompletedAt == nil {
		t.Error("t1 completedAt lost")
	}
	if gotTasks[1].CompletedAt != nil {
		t.Error("t2 completedAt should be nil")
	}
}

func TestArchiveTaskOrder_DuplicateIDs(t *testing.T) {
	t.Parallel()
	vdb := NewTestVaultDB(t)

	a := &Archive{ID: "arch-1", ProjectID: "p", Timestamp: time.Now().UTC()}
	tasks := []ArchiveTask{
		{TaskID: "t1", Name: "first"},
		{TaskID: "t1", Name: "second"},
	}
	if err := vdb.SaveArchive(a, tasks); err != nil {
		t.Fatalf("SaveArchive: %v", err)
	}

	_, gotTasks, err := vdb.GetArchive("arch-1")
	if err != nil {
		t.Fatalf("GetArchive: %v", err)
	}
	if len(gotTasks) != 2 {
		t.Fatalf("task count = %d, want 2", len(gotTasks))
	}
	if gotTasks[0].Name != "first" || gotTasks[1].Name != "second" {
		t.Errorf("duplicate-ID tasks not preserved in order: %+v", gotTasks)
	}
}

func TestListArchives_NewestFirst(t *testing.T) {
	t.Parallel()
	vdb := NewTestVaultDB(t)

	older := &Archive{ID: "a1", ProjectID: "p", Timestamp: time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)}
	newer := &Archive{ID: "a2", ProjectID: "p", Timestamp: time.Date(2026, 6, 1, 0, 0, 0, 0, time.UTC)}
	other := &Archive{ID: "a3", ProjectID: "q", Timestamp: time.Date(2026, 7, 1, 0, 0, 0, 0, time.UTC)}

	for _, a := range []*Archive{older, newer, other} {
		if err := vdb.SaveArchive(a, nil); err != nil {
			t.Fatalf("SaveArchive %s: %v", a.ID, err)
		}
	}

	got, err := vdb.ListArchives("p")
	if err != nil {
		t.Fatalf("ListArchives: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("archive count = %d, want 2", len(got))
	}
	if got[0].ID != "a2" || got[1].ID != "a1" {
		t.Errorf("order = [%s %s], want [a2 a1]", got[0].ID, got[1].ID)
	}
}

func TestDeleteArchive(t *testing.T) {
	t.Parallel()
	vdb := NewTestVaultDB(t)

	a := &Archive{ID: "a1", ProjectID: "p", Timestamp: time.Now().UTC()}
	if err := vdb.SaveArchive(a, []ArchiveTask{{TaskID: "t1"}}); err != nil {
		t.Fatalf("SaveArchive: %v", err)
	}

	deleted, err := vdb.DeleteArchive("a1")
	if err != nil {
		t.Fatalf("DeleteArchive: %v", err)
	}
	if !deleted {
		t.Error("expected delete to report a removed row")
	}

	got, _, err := vdb.GetArchive("a1")
	if err != nil {
		t.Fatalf("GetArchive after delete: %v", err)
	}
	if got != nil {
		t.Error("archive should be gone")
	}

	deleted, err = vdb.DeleteArchive("a1")
	if err != nil {
		t.Fatalf("DeleteArchive again: %v", err)
	}
	if deleted {
		t.Error("second delete should report no removed row")
	}
}
