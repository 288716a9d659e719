// Package archive provides task-list archive snapshots and the pure
// operations computed over them: stats, previews, filtering, and the
// append/replace import merge.
package archive

import (
	"time"
)

// Task statuses recognized by the stats buckets. Task status is an open
// set: unknown values are tolerated and count only toward the total.
const (
	TaskCompleted  = "completed"
	TaskInProgress = "in_progress"
	TaskPending    = "pending"
)

// Task is an atomic unit of executable work tracked by an archive.
type Task struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
	Status      string `json:"status"`

	// Summary is free text produced after completion.
	Summary string `json:"summary,omitempty"`

	CreatedAt   *time.Time `json:"createdAt,omitempty"`
	CompletedAt *time.Time `json:"completedAt,omitempty"`
}

// Stats is the aggregate status breakdown of an archive's tasks.
type Stats struct {
	Total      int `json:"total"`
	Completed  int `json:"completed"`
	InProgress int `json:"inProgress"`
	Pending    int `json:"pending"`
}

// Archive is a full task-list snapshot for a project.
type Archive struct {
	ID             string    `json:"id"`
	Timestamp      time.Time `json:"timestamp"`
	ProjectID      string    `json:"projectId"`
	ProjectName    string    `json:"projectName,omitempty"`
	InitialRequest string    `json:"initialRequest,omitempty"`
	Tasks          []Task    `json:"tasks"`

	// Stats is an optional precomputed aggregate. When nil it must be
	// derived from Tasks; see EffectiveStats.
	Stats *Stats `json:"stats,omitempty"`
}

// EffectiveStats returns the archive's precomputed stats when present,
// otherwise stats derived from its tasks.
func (a *Archive) EffectiveStats() Stats {
	if a == nil {
		return Stats{}
	}
	if a.Stats != nil {
		return *a.Stats
	}
	return ComputeStats(a.Tasks)
}

// ComputeStats counts tasks by exact status string match. Statuses
// outside the three recognized buckets count only toward Total.
func ComputeStats(tasks []Task) Stats {
	s := Stats{Total: len(tasks)}
	for _, t := range tasks {
		switch t.Status {
		case TaskCompleted:
			s.Completed++
		case TaskInProgress:
			s.InProgress++
		case TaskPending:
			s.Pending++
		}
	}
	return s
}

// FilterByStatus returns the subset of tasks whose status is a member
// of the given set. An empty set yields an empty result, not an error.
func FilterByStatus(tasks []Task, statuses []string) []Task {
	result := []Task{}
	if len(statuses) == 0 {
		return result
	}
	allowed := make(map[string]bool, len(statuses))
	for _, s := range statuses {
		allowed[s] = true
	}
	for _, t := range tasks {
		if allowed[t.Status] {
			result = append(result, t)
		}
	}
	return result
}
