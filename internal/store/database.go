package store

import (
	"fmt"
	"time"

	"github.com/taskvault/taskvault/internal/archive"
	"github.com/taskvault/taskvault/internal/db"
	"github.com/taskvault/taskvault/internal/epic"
)

// DatabaseBackend stores everything in the vault database.
type DatabaseBackend struct {
	vdb *db.VaultDB
}

var _ Backend = (*DatabaseBackend)(nil)

// NewDatabaseBackend wraps an open vault database.
func NewDatabaseBackend(vdb *db.VaultDB) *DatabaseBackend {
	return &DatabaseBackend{vdb: vdb}
}

// SaveProject creates or updates a project.
func (b *DatabaseBackend) SaveProject(p *Project) error {
	return b.vdb.SaveProject(&db.Project{
		ID:        p.ID,
		Name:      p.Name,
		CreatedAt: p.CreatedAt,
	})
}

// GetProject retrieves a project by ID. Returns nil if not found.
func (b *DatabaseBackend) GetProject(id string) (*Project, error) {
	row, err := b.vdb.GetProject(id)
	if err != nil || row == nil {
		return nil, err
	}
	return &Project{ID: row.ID, Name: row.Name, CreatedAt: row.CreatedAt}, nil
}

// ListProjects returns all registered projects.
func (b *DatabaseBackend) ListProjects() ([]Project, error) {
	rows, err := b.vdb.ListProjects()
	if err != nil {
		return nil, err
	}
	projects := make([]Project, 0, len(rows))
	for _, row := range rows {
		projects = append(projects, Project{ID: row.ID, Name: row.Name, CreatedAt: row.CreatedAt})
	}
	return projects, nil
}

// SaveEpic creates or updates an epic together with its stories.
func (b *DatabaseBackend) SaveEpic(projectID string, e *epic.Epic) error {
	row := &db.Epic{
		ID:          e.ID,
		ProjectID:   projectID,
		Title:       e.Title,
		Description: e.Description,
		ArchivedAt:  e.ArchivedAt,
	}
	if err := b.vdb.SaveEpic(row); err != nil {
		return err
	}

	stories := make([]db.Story, 0, len(e.Stories))
	for _, s := range e.Stories {
		stories = append(stories, db.Story{
			ID:          s.ID,
			Title:       s.Title,
			Description: s.Description,
			Status:      string(s.Status),
		})
	}
	if err := b.vdb.ReplaceStories(projectID, e.ID, stories); err != nil {
		return fmt.Errorf("save epic stories: %w", err)
	}
	return nil
}

// GetEpic retrieves an epic with its stories. Returns nil if not found.
func (b *DatabaseBackend) GetEpic(projectID, id string) (*epic.Epic, error) {
	row, err := b.vdb.GetEpic(projectID, id)
	if err != nil || row == nil {
		return nil, err
	}
	stories, err := b.vdb.ListStories(projectID, id)
	if err != nil {
		return nil, err
	}
	e := epicFromRow(*row, stories)
	return &e, nil
}

// ListActiveEpics returns a project's unarchived epics sorted by ID,
// numerically when the IDs are numeric.
func (b *DatabaseBackend) ListActiveEpics(projectID string) ([]epic.Epic, error) {
	return b.listEpics(projectID, false)
}

// ListArchivedEpics returns a project's archived epics sorted by ID,
// numerically when the IDs are numeric.
func (b *DatabaseBackend) ListArchivedEpics(projectID string) ([]epic.Epic, error) {
	return b.listEpics(projectID, true)
}

func (b *DatabaseBackend) listEpics(projectID string, archived bool) ([]epic.Epic, error) {
	rows, err := b.vdb.ListEpics(projectID, archived)
	if err != nil {
		return nil, err
	}
	byEpic, err := b.vdb.ListProjectStories(projectID)
	if err != nil {
		return nil, err
	}

	epics := make([]epic.Epic, 0, len(rows))
	for _, row := range rows {
		epics = append(epics, epicFromRow(row, byEpic[row.ID]))
	}
	epic.SortByID(epics)
	return epics, nil
}

// ArchiveEpic stamps an epic as archived. Unknown IDs are a no-op.
func (b *DatabaseBackend) ArchiveEpic(projectID, id string, at time.Time) (bool, error) {
	e, err := b.vdb.GetEpic(projectID, id)
	if err != nil {
		return false, err
	}
	if e == nil {
		return false, nil
	}
	return b.vdb.SetEpicArchived(projectID, id, &at)
}

// RestoreEpic clears the archive stamp. Unknown IDs are a no-op.
func (b *DatabaseBackend) RestoreEpic(projectID, id string) (bool, error) {
	e, err := b.vdb.GetEpic(projectID, id)
	if err != nil {
		return false, err
	}
	if e == nil {
		return false, nil
	}
	return b.vdb.SetEpicArchived(projectID, id, nil)
}

// SaveVerification records a story's verification result.
func (b *DatabaseBackend) SaveVerification(projectID string, v epic.Verification) error {
	return b.vdb.SaveVerification(&db.Verification{
		ProjectID:  projectID,
		StoryID:    v.StoryID,
		Score:      v.Score,
		VerifiedAt: v.Verified,
	})
}

// GetVerifications returns a project's verification results keyed by story ID.
func (b *DatabaseBackend) GetVerifications(projectID string) (map[string]epic.Verification, error) {
	rows, err := b.vdb.GetVerifications(projectID)
	if err != nil {
		return nil, err
	}
	result := make(map[string]epic.Verification, len(rows))
	for id, row := range rows {
		result[id] = epic.Verification{StoryID: row.StoryID, Score: row.Score, Verified: row.VerifiedAt}
	}
	return result, nil
}

// SaveArchive persists a completed-task archive.
func (b *DatabaseBackend) SaveArchive(a *archive.Archive) error {
	row := &db.Archive{
		ID:             a.ID,
		ProjectID:      a.ProjectID,
		ProjectName:    a.ProjectName,
		InitialRequest: a.InitialRequest,
		Timestamp:      a.Timestamp,
	}
	if a.Stats != nil {
		row.StatsTotal = intp(a.Stats.Total)
		row.StatsCompleted = intp(a.Stats.Completed)
		row.StatsInProgress = intp(a.Stats.InProgress)
		row.StatsPending = intp(a.Stats.Pending)
	}

	tasks := make([]db.ArchiveTask, 0, len(a.Tasks))
	for _, t := range a.Tasks {
		tasks = append(tasks, db.ArchiveTask{
			TaskID:      t.ID,
			Name:        t.Name,
			Description: t.Description,
			Status:      t.Status,
			Summary:     t.Summary,
			CreatedAt:   t.CreatedAt,
			CompletedAt: t.CompletedAt,
		})
	}
	return b.vdb.SaveArchive(row, tasks)
}

// GetArchive retrieves an archive by ID. Returns nil if not found.
func (b *DatabaseBackend) GetArchive(id string) (*archive.Archive, error) {
	row, taskRows, err := b.vdb.GetArchive(id)
	if err != nil || row == nil {
		return nil, err
	}
	a := archiveFromRow(*row, taskRows)
	return &a, nil
}

// ListArchives returns a project's archives, newest first. Task lists
// are loaded in full.
func (b *DatabaseBackend) ListArchives(projectID string) ([]archive.Archive, error) {
	rows, err := b.vdb.ListArchives(projectID)
	if err != nil {
		return nil, err
	}
	archives := make([]archive.Archive, 0, len(rows))
	for _, row := range rows {
		_, taskRows, err := b.vdb.GetArchive(row.ID)
		if err != nil {
			return nil, err
		}
		archives = append(archives, archiveFromRow(row, taskRows))
	}
	return archives, nil
}

// DeleteArchive removes an archive. Unknown IDs return false.
func (b *DatabaseBackend) DeleteArchive(id string) (bool, error) {
	return b.vdb.DeleteArchive(id)
}

// Close closes the underlying database.
func (b *DatabaseBackend) Close() error {
	return b.vdb.Close()
}

func epicFromRow(row db.Epic, storyRows []db.Story) epic.Epic {
	stories := make([]epic.Story, 0, len(storyRows))
	for _, s := range storyRows {
		stories = append(stories, epic.Story{
			ID:          s.ID,
			EpicID:      row.ID,
			Title:       s.Title,
			Description: s.Description,
			Status:      epic.Status(s.Status),
		})
	}
	return epic.Epic{
		ID:          row.ID,
		Title:       row.Title,
		Description: row.Description,
		Stories:     stories,
		ArchivedAt:  row.ArchivedAt,
	}
}

func archiveFromRow(row db.Archive, taskRows []db.ArchiveTask) archive.Archive {
	tasks := make([]archive.Task, 0, len(taskRows))
	for _, t := range taskRows {
		tasks = append(tasks, archive.Task{
			ID:          t.TaskID,
			Name:        t.Name,
			Description: t.Description,
			Status:      t.Status,
			Summary:     t.Summary,
			CreatedAt:   t.CreatedAt,
			CompletedAt: t.CompletedAt,
		})
	}

	a := archive.Archive{
		ID:             row.ID,
		ProjectID:      row.ProjectID,
		ProjectName:    row.ProjectName,
		InitialRequest: row.InitialRequest,
		Timestamp:      row.Timestamp,
		Tasks:          tasks,
	}
	if row.StatsTotal != nil {
		a.Stats = &archive.Stats{
			Total:      *row.StatsTotal,
			Completed:  derefInt(row.StatsCompleted),
			InProgress: derefInt(row.StatsInProgress),
			Pending:    derefInt(row.StatsPending),
		}
	}
	return a
}

func intp(n int) *int { return &n }

func derefInt(p *int) int {
	if p == nil {
		return 0
	}
	return *p
}
