package db

import (
	"context"
	"database/sql"
	"fmt"
	"time"
)

// Epic represents an epic row. Stories are stored separately and
// joined by the storage layer.
type Epic struct {
	ID          string
	ProjectID   string
	Title       string
	Description string
	ArchivedAt  *time.Time
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// Story represents a story row belonging to an epic.
type Story struct {
	ID          string
	ProjectID   string
	EpicID      string
	Title       string
	Description string
	Status      string
	Position    int
}

// Verification represents a verification result for a story.
type Verification struct {
	ProjectID  string
	StoryID    string
	Score      int
	VerifiedAt time.Time
	UpdatedAt  time.Time
}

// SaveEpic creates or updates an epic.
func (v *VaultDB) SaveEpic(e *Epic) error {
	now := time.Now().UTC().Format(time.RFC3339)
	if e.CreatedAt.IsZero() {
		e.CreatedAt = time.Now().UTC()
	}

	var archivedAt any
	if e.ArchivedAt != nil {
		archivedAt = e.ArchivedAt.UTC().Format(time.RFC3339)
	}

	_, err := v.Exec(`
		INSERT INTO epics (id, project_id, title, description, archived_at, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(project_id, id) DO UPDATE SET
			title = excluded.title,
			description = excluded.description,
			archived_at = excluded.archived_at,
			updated_at = excluded.updated_at
	`, e.ID, e.ProjectID, e.Title, e.Description, archivedAt,
		e.CreatedAt.Format(time.RFC3339), now)
	if err != nil {
		return fmt.Errorf("save epic: %w", err)
	}
	return nil
}

// GetEpic retrieves an epic by ID. Returns nil if not found.
func (v *VaultDB) GetEpic(projectID, id string) (*Epic, error) {
	row := v.QueryRow(`
		SELECT id, project_id, title, description, archived_at, created_at, updated_at
		FROM epics WHERE project_id = ? AND id = ?
	`, projectID, id)

	e, err := scanEpic(row.Scan)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("get epic %s: %w", id, err)
	}
	return e, nil
}

// ListEpics returns a project's epics, archived or active depending on
// the flag, ordered by insertion.
func (v *VaultDB) ListEpics(projectID string, archived bool) ([]Epic, error) {
	cond := "archived_at IS NULL"
	if archived {
		cond = "archived_at IS NOT NULL"
	}

	rows, err := v.Query(`
		SELECT id, project_id, title, description, archived_at, created_at, updated_at
		FROM epics WHERE project_id = ? AND `+cond+`
		ORDER BY created_at, id
	`, projectID)
	if err != nil {
		return nil, fmt.Errorf("list epics: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var epics []Epic
	for rows.Next() {
		e, err := scanEpic(rows.Scan)
		if err != nil {
			return nil, fmt.Errorf("scan epic: %w", err)
		}
		epics = append(epics, *e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate epics: %w", err)
	}
	return epics, nil
}

// SetEpicArchived stamps or clears the archive marker on an epic.
// Returns false when no such epic exists.
func (v *VaultDB) SetEpicArchived(projectID, id string, at *time.Time) (bool, error) {
	var archivedAt any
	if at != nil {
		archivedAt = at.UTC().Format(time.RFC3339)
	}

	res, err := v.Exec(`
		UPDATE epics SET archived_at = ?, updated_at = ?
		WHERE project_id = ? AND id = ?
	`, archivedAt, time.Now().UTC().Format(time.RFC3339), projectID, id)
	if err != nil {
		return false, fmt.Errorf("set epic archived: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("set epic archived: %w", err)
	}
	return n > 0, nil
}

// DeleteEpic removes an epic and its stories.
func (v *VaultDB) DeleteEpic(projectID, id string) error {
	if _, err := v.Exec("DELETE FROM stories WHERE project_id = ? AND epic_id = ?", projectID, id); err != nil {
		return fmt.Errorf("delete epic stories: %w", err)
	}
	if _, err := v.Exec("DELETE FROM epics WHERE project_id = ? AND id = ?", projectID, id); err != nil {
		return fmt.Errorf("delete epic: %w", err)
	}
	return nil
}

func scanEpic(scan func(dest ...any) error) (*Epic, error) {
	var e Epic
	var archivedAt sql.NullString
	var createdAt, updatedAt string

	if err := scan(&e.ID, &e.ProjectID, &e.Title, &e.Description, &archivedAt, &createdAt, &updatedAt); err != nil {
		return nil, err
	}
	if archivedAt.Valid {
		ts := parseDBTime(archivedAt.String)
		e.ArchivedAt = &ts
	}
	e.CreatedAt = parseDBTime(createdAt)
	e.UpdatedAt = parseDBTime(updatedAt)
	return &e, nil
}

// ReplaceStories atomically replaces an epic's story list.
func (v *VaultDB) ReplaceStories(projectID, epicID string, stories []Story) error {
	ctx := context.Background()
	tx, err := v.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin replace stories: %w", err)
	}

	if _, err := tx.Exec(ctx, "DELETE FROM stories WHERE project_id = ? AND epic_id = ?", projectID, epicID); err != nil {
		_ = tx.Rollback()
		return fmt.Errorf("clear stories: %w", err)
	}

	for i, s := range stories {
		if _, err := tx.Exec(ctx, `
			INSERT INTO stories (id, project_id, epic_id, title, description, status, position)
			VALUES (?, ?, ?, ?, ?, ?, ?)
		`, s.ID, projectID, epicID, s.Title, s.Description, s.Status, i); err != nil {
			_ = tx.Rollback()
			return fmt.Errorf("insert story %s: %w", s.ID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit replace stories: %w", err)
	}
	return nil
}

// ListStories returns the stories for an epic in position order.
func (v *VaultDB) ListStories(projectID, epicID string) ([]Story, error) {
	rows, err := v.Query(`
		SELECT id, project_id, epic_id, title, description, status, position
		FROM stories WHERE project_id = ? AND epic_id = ?
		ORDER BY position
	`, projectID, epicID)
	if err != nil {
		return nil, fmt.Errorf("list stories: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var stories []Story
	for rows.Next() {
		var s Story
		if err := rows.Scan(&s.ID, &s.ProjectID, &s.EpicID, &s.Title, &s.Description, &s.Status, &s.Position); err != nil {
			return nil, fmt.Errorf("scan story: %w", err)
		}
		stories = append(stories, s)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate stories: %w", err)
	}
	return stories, nil
}

// ListProjectStories returns every story in a project keyed by epic ID.
func (v *VaultDB) ListProjectStories(projectID string) (map[string][]Story, error) {
	rows, err := v.Query(`
		SELECT id, project_id, epic_id, title, description, status, position
		FROM stories WHERE project_id = ?
		ORDER BY epic_id, position
	`, projectID)
	if err != nil {
		return nil, fmt.Errorf("list project stories: %w", err)
	}
	defer func() { _ = rows.Close() }()

	byEpic := make(map[string][]Story)
	for rows.Next() {
		var s Story
		if err := rows.Scan(&s.ID, &s.ProjectID, &s.EpicID, &s.Title, &s.Description, &s.Status, &s.Position); err != nil {
			return nil, fmt.Errorf("scan story: %w", err)
		}
		byEpic[s.EpicID] = append(byEpic[s.EpicID], s)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate stories: %w", err)
	}
	return byEpic, nil
}

// SaveVerification records or updates a story's verification result.
func (v *VaultDB) SaveVerification(ver *Verification) error {
	if ver.VerifiedAt.IsZero() {
		ver.VerifiedAt = time.Now().UTC()
	}
	_, err := v.Exec(`
		INSERT INTO verifications (project_id, story_id, score, verified_at, updated_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(project_id, story_id) DO UPDATE SET
			score = excluded.score,
			verified_at = excluded.verified_at,
			updated_at = excluded.updated_at
	`, ver.ProjectID, ver.StoryID, ver.Score,
		ver.VerifiedAt.UTC().Format(time.RFC3339), time.Now().UTC().Format(time.RFC3339))
	if err != nil {
		return fmt.Errorf("save verification: %w", err)
	}
	return nil
}

// GetVerifications returns all verification results for a project
// keyed by story ID.
func (v *VaultDB) GetVerifications(projectID string) (map[string]Verification, error) {
	rows, err := v.Query(`
		SELECT project_id, story_id, score, verified_at, updated_at
		FROM verifications WHERE project_id = ?
	`, projectID)
	if err != nil {
		return nil, fmt.Errorf("get verifications: %w", err)
	}
	defer func() { _ = rows.Close() }()

	result := make(map[string]Verification)
	for rows.Next() {
		var ver Verification
		var verifiedAt, updatedAt string
		if err := rows.Scan(&ver.ProjectID, &ver.StoryID, &ver.Score, &verifiedAt, &updatedAt); err != nil {
			return nil, fmt.Errorf("scan verification: %w", err)
		}
		ver.VerifiedAt = parseDBTime(verifiedAt)
		ver.UpdatedAt = parseDBTime(updatedAt)
		result[ver.StoryID] = ver
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate verifications: %w", err)
	}
	return result, nil
}
