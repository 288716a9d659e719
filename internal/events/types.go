// Package events provides event types and publishing infrastructure
// for taskvault. Events are keyed by project so dashboard clients can
// subscribe to one project's archive activity or to everything.
package events

import (
	"time"
)

// EventType defines the type of event.
type EventType string

const (
	// EventEpicArchived indicates an epic moved to the archived set.
	EventEpicArchived EventType = "epic_archived"
	// EventEpicRestored indicates an epic moved back to the active set.
	EventEpicRestored EventType = "epic_restored"
	// EventArchiveCreated indicates a new task-list snapshot was stored.
	EventArchiveCreated EventType = "archive_created"
	// EventArchiveDeleted indicates a task-list snapshot was removed.
	EventArchiveDeleted EventType = "archive_deleted"
	// EventCollectionRefreshed indicates a project's stored data
	// changed and derived views should be refetched.
	EventCollectionRefreshed EventType = "collection_refreshed"
)

// Event represents a published event.
type Event struct {
	Type      EventType `json:"type"`
	ProjectID string    `json:"project_id"`
	Data      any       `json:"data"`
	Time      time.Time `json:"time"`
}

// NewEvent creates a new event with the current timestamp.
func NewEvent(eventType EventType, projectID string, data any) Event {
	return Event{
		Type:      eventType,
		ProjectID: projectID,
		Data:      data,
		Time:      time.Now(),
	}
}

// EpicChange carries the payload for epic archive/restore events.
type EpicChange struct {
	EpicID     string `json:"epic_id"`
	Title      string `json:"title,omitempty"`
	ArchivedAt string `json:"archived_at,omitempty"`
}

// ArchiveChange carries the payload for snapshot create/delete events.
type ArchiveChange struct {
	ArchiveID string `json:"archive_id"`
	TaskCount int    `json:"task_count,omitempty"`
}
