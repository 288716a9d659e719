// Package epic provides the epic and story domain model for taskvault.
package epic

import (
	"time"
)

// Status represents the lifecycle state of a story.
type Status string

const (
	StatusDraft          Status = "Draft"
	StatusReady          Status = "Ready"
	StatusInProgress     Status = "In Progress"
	StatusReadyForReview Status = "Ready for Review"
	StatusDone           Status = "Done"
	// StatusCompleted is a legacy alias for Done still present in older
	// archives; treated as Done everywhere.
	StatusCompleted Status = "Completed"
)

// ValidStatuses returns all valid story status values.
func ValidStatuses() []Status {
	return []Status{
		StatusDraft, StatusReady, StatusInProgress,
		StatusReadyForReview, StatusDone, StatusCompleted,
	}
}

// IsValidStatus returns true if s is a valid story status value.
func IsValidStatus(s Status) bool {
	switch s {
	case StatusDraft, StatusReady, StatusInProgress,
		StatusReadyForReview, StatusDone, StatusCompleted:
		return true
	default:
		return false
	}
}

// IsDone returns true if the status counts as completed work.
func (s Status) IsDone() bool {
	return s == StatusDone || s == StatusCompleted
}

// canonical folds the Done/Completed alias pair for transition checks.
func (s Status) canonical() Status {
	if s == StatusCompleted {
		return StatusDone
	}
	return s
}

// transitions is the directed story status transition graph.
var transitions = map[Status][]Status{
	StatusDraft:          {StatusReady, StatusInProgress},
	StatusReady:          {StatusInProgress, StatusDraft},
	StatusInProgress:     {StatusReadyForReview, StatusReady, StatusDraft},
	StatusReadyForReview: {StatusDone, StatusInProgress},
	StatusDone:           {StatusReadyForReview},
}

// CanTransition returns true if a story may move from one status to
// another. A self-transition is always valid.
func CanTransition(from, to Status) bool {
	from, to = from.canonical(), to.canonical()
	if from == to {
		return true
	}
	for _, next := range transitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// Story is a unit of work within an epic.
type Story struct {
	ID          string `json:"id"`
	Title       string `json:"title"`
	Status      Status `json:"status"`
	Description string `json:"description,omitempty"`

	// EpicID is a back-reference to the owning epic, not ownership.
	EpicID string `json:"epicId,omitempty"`
}

// Epic is a grouping of related stories.
type Epic struct {
	ID          string  `json:"id"`
	Title       string  `json:"title,omitempty"`
	Description string  `json:"description,omitempty"`
	Stories     []Story `json:"stories"`

	// ArchivedAt is set when the epic is archived and removed entirely
	// on restore. An epic is active iff ArchivedAt is nil.
	ArchivedAt *time.Time `json:"archivedAt,omitempty"`
}

// IsArchived returns true if the epic is in the archived set.
func (e *Epic) IsArchived() bool {
	return e.ArchivedAt != nil
}

// Archive stamps the epic with the given archive time.
func (e *Epic) Archive(at time.Time) {
	t := at
	e.ArchivedAt = &t
}

// Restore strips the archive timestamp, returning the epic to the
// active set. The field is removed, not zeroed, so a restored epic
// serializes without an archivedAt key.
func (e *Epic) Restore() {
	e.ArchivedAt = nil
}

// Verification is a review record for a story.
type Verification struct {
	StoryID  string    `json:"storyId"`
	Score    int       `json:"score"`
	Verified time.Time `json:"verified"`
}
