// Package store provides the storage backend abstraction for taskvault.
// The database backend is authoritative; clients layer their own local
// cache on top of it.
package store

import (
	"time"

	"github.com/taskvault/taskvault/internal/archive"
	"github.com/taskvault/taskvault/internal/epic"
)

// Project describes a project registered in the vault.
type Project struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	CreatedAt time.Time `json:"createdAt"`
}

// Backend defines the storage operations for taskvault.
// All implementations must be safe for concurrent access.
type Backend interface {
	// Project operations
	SaveProject(p *Project) error
	GetProject(id string) (*Project, error)
	ListProjects() ([]Project, error)

	// Epic operations
	SaveEpic(projectID string, e *epic.Epic) error
	GetEpic(projectID, id string) (*epic.Epic, error)
	ListActiveEpics(projectID string) ([]epic.Epic, error)
	ListArchivedEpics(projectID string) ([]epic.Epic, error)

	// ArchiveEpic stamps an epic as archived at the given time.
	// Archiving an epic that does not exist is a no-op and returns false.
	ArchiveEpic(projectID, id string, at time.Time) (bool, error)

	// RestoreEpic clears the archive stamp. Restoring an epic that does
	// not exist is a no-op and returns false.
	RestoreEpic(projectID, id string) (bool, error)

	// Verification operations
	SaveVerification(projectID string, v epic.Verification) error
	GetVerifications(projectID string) (map[string]epic.Verification, error)

	// Completed-task archive operations
	SaveArchive(a *archive.Archive) error
	GetArchive(id string) (*archive.Archive, error)
	ListArchives(projectID string) ([]archive.Archive, error)
	DeleteArchive(id string) (bool, error)

	// Lifecycle
	Close() error
}
