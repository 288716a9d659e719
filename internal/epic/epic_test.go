package epic

import (
	"encoding/json"
	"strings"
	"testing"
	"time"
)

func TestCanTransition(t *testing.T) {
	tests := []struct {
		name string
		from Status
		to   Status
		want bool
	}{
		{"draft to ready", StatusDraft, StatusReady, true},
		{"draft to in progress", StatusDraft, StatusInProgress, true},
		{"draft to done", StatusDraft, StatusDone, false},
		{"ready to draft", StatusReady, StatusDraft, true},
		{"ready to review", StatusReady, StatusReadyForReview, false},
		{"in progress to review", StatusInProgress, StatusReadyForReview, true},
		{"in progress to ready", StatusInProgress, StatusReady, true},
		{"in progress to draft", StatusInProgress, StatusDraft, true},
		{"in progress to done", StatusInProgress, StatusDone, false},
		{"review to done", StatusReadyForReview, StatusDone, true},
		{"review to in progress", StatusReadyForReview, StatusInProgress, true},
		{"review to draft", StatusReadyForReview, StatusDraft, false},
		{"done to review", StatusDone, StatusReadyForReview, true},
		{"done to draft", StatusDone, StatusDraft, false},
		{"self transition", StatusDraft, StatusDraft, true},
		{"self transition done", StatusDone, StatusDone, true},
		{"completed alias acts as done", StatusCompleted, StatusReadyForReview, true},
		{"review to completed alias", StatusReadyForReview, StatusCompleted, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := CanTransition(tt.from, tt.to); got != tt.want {
				t.Errorf("CanTransition(%q, %q) = %v, want %v", tt.from, tt.to, got, tt.want)
			}
		})
	}
}

func TestStatusIsDone(t *testing.T) {
	if !StatusDone.IsDone() {
		t.Error("Done should count as done")
	}
	if !StatusCompleted.IsDone() {
		t.Error("Completed should count as done")
	}
	if StatusInProgress.IsDone() {
		t.Error("In Progress should not count as done")
	}
}

func TestRestoreStripsArchivedAt(t *testing.T) {
	e := &Epic{ID: "5", Title: "Auth"}
	e.Archive(time.Now())
	if !e.IsArchived() {
		t.Fatal("epic should be archived")
	}

	e.Restore()
	if e.IsArchived() {
		t.Fatal("epic should be active after restore")
	}

	// The serialized form must not contain an archivedAt key at all.
	data, err := json.Marshal(e)
	if err != nil {
		t.Fatalf("marshal epic: %v", err)
	}
	if strings.Contains(string(data), "archivedAt") {
		t.Errorf("restored epic still serializes archivedAt: %s", data)
	}
}

func TestCompareIDs(t *testing.T) {
	tests := []struct {
		a, b string
		want int
	}{
		{"2", "10", -1},
		{"10", "2", 1},
		{"9", "10", -1},
		{"3", "3", 0},
		{"abc", "abd", -1},
		{"10", "alpha", -1}, // mixed falls back to lexicographic
		{"alpha", "10", 1},
	}
	for _, tt := range tests {
		if got := CompareIDs(tt.a, tt.b); got != tt.want {
			t.Errorf("CompareIDs(%q, %q) = %d, want %d", tt.a, tt.b, got, tt.want)
		}
	}
}

func TestSortByID_NumericAware(t *testing.T) {
	epics := []Epic{{ID: "10"}, {ID: "2"}, {ID: "9"}}
	SortByID(epics)

	got := []string{epics[0].ID, epics[1].ID, epics[2].ID}
	want := []string{"2", "9", "10"}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("sorted order = %v, want %v", got, want)
		}
	}
}

func TestCalculateProgress(t *testing.T) {
	e := &Epic{
		ID: "1",
		Stories: []Story{
			{ID: "s1", Status: StatusDone},
			{ID: "s2", Status: StatusCompleted},
			{ID: "s3", Status: StatusInProgress},
			{ID: "s4", Status: StatusDraft},
		},
	}
	verifications := map[string]Verification{
		"s1": {StoryID: "s1", Score: 95},
		"s2": {StoryID: "s2", Score: 70},
		"s3": {StoryID: "s3", Score: 60},
	}

	p := CalculateProgress(e, verifications)

	if p.Total != 4 {
		t.Errorf("Total = %d, want 4", p.Total)
	}
	if p.Completed != 2 {
		t.Errorf("Completed = %d, want 2", p.Completed)
	}
	if p.Percentage != 50 {
		t.Errorf("Percentage = %d, want 50", p.Percentage)
	}
	if p.AverageScore == nil || *p.AverageScore != 75 {
		t.Errorf("AverageScore = %v, want 75", p.AverageScore)
	}
	// s2 (70) and s3 (60) are below threshold; s4 is unverified and not flagged.
	if len(p.NeedsAttention) != 2 {
		t.Fatalf("NeedsAttention = %d stories, want 2", len(p.NeedsAttention))
	}
	if p.NeedsAttention[0].ID != "s2" || p.NeedsAttention[1].ID != "s3" {
		t.Errorf("NeedsAttention = [%s %s], want [s2 s3]",
			p.NeedsAttention[0].ID, p.NeedsAttention[1].ID)
	}
}

func TestCalculateProgress_EmptyEpic(t *testing.T) {
	p := CalculateProgress(&Epic{ID: "1"}, nil)
	if p.Total != 0 || p.Completed != 0 || p.Percentage != 0 {
		t.Errorf("empty epic progress = %+v, want zeros", p)
	}
	if p.AverageScore != nil {
		t.Errorf("AverageScore = %v, want nil with no verifications", p.AverageScore)
	}
	if p.NeedsAttention == nil || len(p.NeedsAttention) != 0 {
		t.Errorf("NeedsAttention should be empty non-nil, got %v", p.NeedsAttention)
	}
}

func TestCalculateProgress_NilEpic(t *testing.T) {
	p := CalculateProgress(nil, nil)
	if p.Total != 0 || p.Percentage != 0 || p.AverageScore != nil {
		t.Errorf("nil epic progress = %+v, want zeros", p)
	}
}

func TestCalculateProgress_NoVerifications(t *testing.T) {
	e := &Epic{Stories: []Story{{ID: "s1", Status: StatusDone}}}
	p := CalculateProgress(e, map[string]Verification{})
	if p.AverageScore != nil {
		t.Errorf("AverageScore = %v, want nil", p.AverageScore)
	}
	if len(p.NeedsAttention) != 0 {
		t.Errorf("unverified stories must not be flagged, got %d", len(p.NeedsAttention))
	}
}
