package db

import (
	"context"
	"database/sql"
	"fmt"
	"time"
)

// Archive represents an archive row. Task rows are stored separately
// in archive_tasks and keep their upload order.
type Archive struct {
	ID              string
	ProjectID       string
	ProjectName     string
	InitialRequest  string
	Timestamp       time.Time
	StatsTotal      *int
	StatsCompleted  *int
	StatsInProgress *int
	StatsPending    *int
	CreatedAt       time.Time
}

// ArchiveTask represents one archived task row.
type ArchiveTask struct {
	ArchiveID   string
	Position    int
	TaskID      string
	Name        string
	Description string
	Status      string
	Summary     string
	CreatedAt   *time.Time
	CompletedAt *time.Time
}

// SaveArchive creates or updates an archive together with its tasks.
// The task list is replaced wholesale.
func (v *VaultDB) SaveArchive(a *Archive, tasks []ArchiveTask) error {
	if a.CreatedAt.IsZero() {
		a.CreatedAt = time.Now().UTC()
	}

	ctx := context.Background()
	tx, err := v.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin save archive: %w", err)
	}

	if _, err := tx.Exec(ctx, `
		INSERT INTO archives (id, project_id, project_name, initial_request, timestamp,
			stats_total, stats_completed, stats_in_progress, stats_pending, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			project_name = excluded.project_name,
			initial_request = excluded.initial_request,
			timestamp = excluded.timestamp,
			stats_total = excluded.stats_total,
			stats_completed = excluded.stats_completed,
			stats_in_progress = excluded.stats_in_progress,
			stats_pending = excluded.stats_pending
	`, a.ID, a.ProjectID, a.ProjectName, a.InitialRequest,
		a.Timestamp.UTC().Format(time.RFC3339),
		nullableInt(a.StatsTotal), nullableInt(a.StatsCompleted),
		nullableInt(a.StatsInProgress), nullableInt(a.StatsPending),
		a.CreatedAt.Format(time.RFC3339)); err != nil {
		_ = tx.Rollback()
		return fmt.Errorf("save archive: %w", err)
	}

	if _, err := tx.Exec(ctx, "DELETE FROM archive_tasks WHERE archive_id = ?", a.ID); err != nil {
		_ = tx.Rollback()
		return fmt.Errorf("clear archive tasks: %w", err)
	}

	for i, t := range tasks {
		if _, err := tx.Exec(ctx, `
			INSERT INTO archive_tasks (archive_id, position, task_id, name, description, status, summary, created_at, completed_at)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		`, a.ID, i, t.TaskID, t.Name, t.Description, t.Status, t.Summary,
			nullableTime(t.CreatedAt), nullableTime(t.CompletedAt)); err != nil {
			_ = tx.Rollback()
			return fmt.Errorf("insert archive task %s: %w", t.TaskID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit save archive: %w", err)
	}
	return nil
}

// GetArchive retrieves an archive and its tasks. Returns nil if not found.
func (v *VaultDB) GetArchive(id string) (*Archive, []ArchiveTask, error) {
	row := v.QueryRow(`
		SELECT id, project_id, project_name, initial_request, timestamp,
			stats_total, stats_completed, stats_in_progress, stats_pending, created_at
		FROM archives WHERE id = ?
	`, id)

	a, err := scanArchive(row.Scan)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil, nil
		}
		return nil, nil, fmt.Errorf("get archive %s: %w", id, err)
	}

	tasks, err := v.listArchiveTasks(id)
	if err != nil {
		return nil, nil, err
	}
	return a, tasks, nil
}

// ListArchives returns a project's archives, newest first.
func (v *VaultDB) ListArchives(projectID string) ([]Archive, error) {
	rows, err := v.Query(`
		SELECT id, project_id, project_name, initial_request, timestamp,
			stats_total, stats_completed, stats_in_progress, stats_pending, created_at
		FROM archives WHERE project_id = ?
		ORDER BY timestamp DESC, id DESC
	`, projectID)
	if err != nil {
		return nil, fmt.Errorf("list archives: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var archives []Archive
	for rows.Next() {
		a, err := scanArchive(rows.Scan)
		if err != nil {
			return nil, fmt.Errorf("scan archive: %w", err)
		}
		archives = append(archives, *a)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate archives: %w", err)
	}
	return archives, nil
}

// DeleteArchive removes an archive and its tasks. Returns false when
// no such archive exists.
func (v *VaultDB) DeleteArchive(id string) (bool, error) {
	if _, err := v.Exec("DELETE FROM archive_tasks WHERE archive_id = ?", id); err != nil {
		return false, fmt.Errorf("delete archive tasks: %w", err)
	}
	res, err := v.Exec("DELETE FROM archives WHERE id = ?", id)
	if err != nil {
		return false, fmt.Errorf("delete archive: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("delete archive: %w", err)
	}
	return n > 0, nil
}

func (v *VaultDB) listArchiveTasks(archiveID string) ([]ArchiveTask, error) {
	rows, err := v.Query(`
		SELECT archive_id, position, task_id, name, description, status, summary, created_at, completed_at
		FROM archive_tasks WHERE archive_id = ?
		ORDER BY position
	`, archiveID)
	if err != nil {
		return nil, fmt.Errorf("list archive tasks: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var tasks []ArchiveTask
	for rows.Next() {
		var t ArchiveTask
		var createdAt, completedAt sql.NullString
		if err := rows.Scan(&t.ArchiveID, &t.Position, &t.TaskID, &t.Name, &t.Description,
			&t.Status, &t.Summary, &createdAt, &completedAt); err != nil {
			return nil, fmt.Errorf("scan archive task: %w", err)
		}
		if createdAt.Valid {
			ts := parseDBTime(createdAt.String)
			t.CreatedAt = &ts
		}
		if completedAt.Valid {
			ts := parseDBTime(completedAt.String)
			t.CompletedAt = &ts
		}
		tasks = append(tasks, t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate archive tasks: %w", err)
	}
	return tasks, nil
}

func scanArchive(scan func(dest ...any) error) (*Archive, error) {
	var a Archive
	var timestamp, createdAt string
	var total, completed, inProgress, pending sql.NullInt64

	if err := scan(&a.ID, &a.ProjectID, &a.ProjectName, &a.InitialRequest, &timestamp,
		&total, &completed, &inProgress, &pending, &createdAt); err != nil {
		return nil, err
	}
	a.Timestamp = parseDBTime(timestamp)
	a.CreatedAt = parseDBTime(createdAt)
	a.StatsTotal = intPtr(total)
	a.StatsCompleted = intPtr(completed)
	a.StatsInProgress = intPtr(inProgress)
	a.StatsPending = intPtr(pending)
	return &a, nil
}

func nullableInt(p *int) any {
	if p == nil {
		return nil
	}
	return *p
}

func nullableTime(p *time.Time) any {
	if p == nil {
		return nil
	}
	return p.UTC().Format(time.RFC3339)
}

func intPtr(n sql.NullInt64) *int {
	if !n.Valid {
		return nil
	}
	v := int(n.Int64)
	return &v
}
