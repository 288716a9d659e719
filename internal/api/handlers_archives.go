package api

import (
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/taskvault/taskvault/internal/archive"
	vaulterrors "github.com/taskvault/taskvault/internal/errors"
	"github.com/taskvault/taskvault/internal/events"
)

// maxArchiveBody caps uploaded archive payloads at 8MB.
const maxArchiveBody = 8 << 20

// archiveSummary is the list-view projection of an archive.
type archiveSummary struct {
	ID          string        `json:"id"`
	Timestamp   time.Time     `json:"timestamp"`
	ProjectName string        `json:"projectName,omitempty"`
	Preview     string        `json:"preview,omitempty"`
	Stats       archive.Stats `json:"stats"`
}

// handleListArchives returns a project's archives, newest first, with
// derived stats and a truncated request preview.
func (s *Server) handleListArchives(w http.ResponseWriter, r *http.Request) {
	projectID := r.PathValue("id")

	archives, err := s.backend.ListArchives(projectID)
	if err != nil {
		s.handleError(w, vaulterrors.ErrStoreFailed("list archives", err))
		return
	}

	summaries := make([]archiveSummary, 0, len(archives))
	for i := range archives {
		a := &archives[i]
		summaries = append(summaries, archiveSummary{
			ID:          a.ID,
			Timestamp:   a.Timestamp,
			ProjectName: a.ProjectName,
			Preview:     archive.Truncate(a.InitialRequest, archive.PreviewShort),
			Stats:       a.EffectiveStats(),
		})
	}
	s.jsonResponse(w, map[string]any{"archives": summaries})
}

// handleUploadArchive stores an uploaded task-list snapshot. The
// payload is parsed permissively: unknown fields are ignored and
// malformed task entries are skipped rather than rejected.
func (s *Server) handleUploadArchive(w http.ResponseWriter, r *http.Request) {
	projectID := r.PathValue("id")

	body, err := io.ReadAll(io.LimitReader(r.Body, maxArchiveBody))
	if err != nil {
		s.jsonError(w, "failed to read request body", http.StatusBadRequest)
		return
	}

	a, err := archive.ParseArchive(body)
	if err != nil {
		s.handleError(w, vaulterrors.ErrImportInvalid(err.Error()))
		return
	}

	if a.ID == "" {
		a.ID = uuid.NewString()
	}
	a.ProjectID = projectID
	if a.Timestamp.IsZero() {
		a.Timestamp = time.Now().UTC()
	}

	if err := s.backend.SaveArchive(a); err != nil {
		s.handleError(w, vaulterrors.ErrStoreFailed("save archive", err))
		return
	}

	s.refresh(projectID)
	s.publisher.Publish(events.NewEvent(events.EventArchiveCreated, projectID, events.ArchiveChange{
		ArchiveID: a.ID,
		TaskCount: len(a.Tasks),
	}))
	s.logger.Info("archive stored", "project", projectID, "archive", a.ID, "tasks", len(a.Tasks))

	s.jsonResponseStatus(w, a, http.StatusCreated)
}

// handleGetArchive returns a full archive. A status query parameter
// (comma-separated) filters the task list; an empty filter set after
// parsing yields an empty task list.
func (s *Server) handleGetArchive(w http.ResponseWriter, r *http.Request) {
	archiveID := r.PathValue("archiveId")

	a, err := s.backend.GetArchive(archiveID)
	if err != nil {
		s.handleError(w, vaulterrors.ErrStoreFailed("get archive", err))
		return
	}
	if a == nil {
		s.handleError(w, vaulterrors.ErrArchiveNotFound(archiveID))
		return
	}

	if raw, ok := r.URL.Query()["status"]; ok {
		var statuses []string
		for _, chunk := range raw {
			for _, st := range strings.Split(chunk, ",") {
				if st = strings.TrimSpace(st); st != "" {
					statuses = append(statuses, st)
				}
			}
		}
		a.Tasks = archive.FilterByStatus(a.Tasks, statuses)
	}

	s.jsonResponse(w, a)
}

// handleDeleteArchive removes an archive.
func (s *Server) handleDeleteArchive(w http.ResponseWriter, r *http.Request) {
	archiveID := r.PathValue("archiveId")

	a, err := s.backend.GetArchive(archiveID)
	if err != nil {
		s.handleError(w, vaulterrors.ErrStoreFailed("get archive", err))
		return
	}
	if a == nil {
		s.handleError(w, vaulterrors.ErrArchiveNotFound(archiveID))
		return
	}

	if _, err := s.backend.DeleteArchive(archiveID); err != nil {
		s.handleError(w, vaulterrors.ErrStoreFailed("delete archive", err))
		return
	}

	s.refresh(a.ProjectID)
	s.publisher.Publish(events.NewEvent(events.EventArchiveDeleted, a.ProjectID, events.ArchiveChange{
		ArchiveID: archiveID,
	}))
	s.logger.Info("archive deleted", "project", a.ProjectID, "archive", archiveID)

	w.WriteHeader(http.StatusNoContent)
}

// handleGetStats returns cached aggregate stats for a project.
func (s *Server) handleGetStats(w http.ResponseWriter, r *http.Request) {
	projectID := r.PathValue("id")

	stats, err := s.statsCache.Stats(projectID)
	if err != nil {
		s.handleError(w, vaulterrors.ErrStoreFailed("load stats", err))
		return
	}
	s.jsonResponse(w, stats)
}
