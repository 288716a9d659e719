package api

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/taskvault/taskvault/internal/epic"
	vaulterrors "github.com/taskvault/taskvault/internal/errors"
	"github.com/taskvault/taskvault/internal/events"
)

// handleListEpics returns a project's active epics.
func (s *Server) handleListEpics(w http.ResponseWriter, r *http.Request) {
	projectID := r.PathValue("id")

	epics, err := s.backend.ListActiveEpics(projectID)
	if err != nil {
		s.handleError(w, vaulterrors.ErrStoreFailed("list epics", err))
		return
	}
	s.jsonResponse(w, map[string]any{"epics": epics})
}

// handleListArchivedEpics returns a project's archived epics in ID
// order, numeric-aware.
func (s *Server) handleListArchivedEpics(w http.ResponseWriter, r *http.Request) {
	projectID := r.PathValue("id")

	epics, err := s.backend.ListArchivedEpics(projectID)
	if err != nil {
		s.handleError(w, vaulterrors.ErrStoreFailed("list archived epics", err))
		return
	}
	s.jsonResponse(w, map[string]any{"archivedEpics": epics})
}

// handleSaveEpic creates or updates an epic with its stories.
func (s *Server) handleSaveEpic(w http.ResponseWriter, r *http.Request) {
	projectID := r.PathValue("id")

	var e epic.Epic
	if err := json.NewDecoder(r.Body).Decode(&e); err != nil {
		s.jsonError(w, "invalid request body", http.StatusBadRequest)
		return
	}
	if e.ID == "" {
		s.handleError(w, vaulterrors.ErrInvalidRequest("epic id is required"))
		return
	}
	for _, st := range e.Stories {
		if st.Status != "" && !epic.IsValidStatus(st.Status) {
			s.handleError(w, vaulterrors.ErrInvalidRequest("invalid story status: "+string(st.Status)))
			return
		}
	}

	if err := s.backend.SaveEpic(projectID, &e); err != nil {
		s.handleError(w, vaulterrors.ErrStoreFailed("save epic", err))
		return
	}

	s.refresh(projectID)
	s.jsonResponseStatus(w, e, http.StatusCreated)
}

// handleGetEpic returns a single epic with stories.
func (s *Server) handleGetEpic(w http.ResponseWriter, r *http.Request) {
	projectID := r.PathValue("id")
	epicID := r.PathValue("epicId")

	e, err := s.backend.GetEpic(projectID, epicID)
	if err != nil {
		s.handleError(w, vaulterrors.ErrStoreFailed("get epic", err))
		return
	}
	if e == nil {
		s.handleError(w, vaulterrors.ErrEpicNotFound(epicID))
		return
	}
	s.jsonResponse(w, e)
}

// handleGetEpicProgress returns completion and verification stats for
// an epic.
func (s *Server) handleGetEpicProgress(w http.ResponseWriter, r *http.Request) {
	projectID := r.PathValue("id")
	epicID := r.PathValue("epicId")

	e, err := s.backend.GetEpic(projectID, epicID)
	if err != nil {
		s.handleError(w, vaulterrors.ErrStoreFailed("get epic", err))
		return
	}
	if e == nil {
		s.handleError(w, vaulterrors.ErrEpicNotFound(epicID))
		return
	}

	verifications, err := s.backend.GetVerifications(projectID)
	if err != nil {
		s.handleError(w, vaulterrors.ErrStoreFailed("get verifications", err))
		return
	}

	s.jsonResponse(w, epic.CalculateProgress(e, verifications))
}

// handleArchiveEpic moves an epic to the archived set. Archiving an
// epic that does not exist succeeds and changes nothing.
func (s *Server) handleArchiveEpic(w http.ResponseWriter, r *http.Request) {
	projectID := r.PathValue("id")
	epicID := r.PathValue("epicId")

	at := time.Now().UTC()
	changed, err := s.backend.ArchiveEpic(projectID, epicID, at)
	if err != nil {
		s.handleError(w, vaulterrors.ErrStoreFailed("archive epic", err))
		return
	}

	if changed {
		s.refresh(projectID)
		s.publisher.Publish(events.NewEvent(events.EventEpicArchived, projectID, events.EpicChange{
			EpicID:     epicID,
			ArchivedAt: at.Format(time.RFC3339),
		}))
		s.logger.Info("epic archived", "project", projectID, "epic", epicID)
	}

	s.jsonResponse(w, map[string]any{
		"epicId":   epicID,
		"archived": changed,
	})
}

// handleRestoreEpic moves an epic back to the active set. Restoring an
// epic that does not exist succeeds and changes nothing.
func (s *Server) handleRestoreEpic(w http.ResponseWriter, r *http.Request) {
	projectID := r.PathValue("id")
	epicID := r.PathValue("epicId")

	changed, err := s.backend.RestoreEpic(projectID, epicID)
	if err != nil {
		s.handleError(w, vaulterrors.ErrStoreFailed("restore epic", err))
		return
	}

	if changed {
		s.refresh(projectID)
		s.publisher.Publish(events.NewEvent(events.EventEpicRestored, projectID, events.EpicChange{
			EpicID: epicID,
		}))
		s.logger.Info("epic restored", "project", projectID, "epic", epicID)
	}

	s.jsonResponse(w, map[string]any{
		"epicId":   epicID,
		"restored": changed,
	})
}

// handleSaveVerification records a story verification result.
func (s *Server) handleSaveVerification(w http.ResponseWriter, r *http.Request) {
	projectID := r.PathValue("id")

	var req struct {
		StoryID string `json:"storyId"`
		Score   int    `json:"score"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.jsonError(w, "invalid request body", http.StatusBadRequest)
		return
	}
	if req.StoryID == "" {
		s.handleError(w, vaulterrors.ErrInvalidRequest("storyId is required"))
		return
	}
	if req.Score < 0 || req.Score > 100 {
		s.handleError(w, vaulterrors.ErrInvalidRequest("score must be between 0 and 100"))
		return
	}

	v := epic.Verification{StoryID: req.StoryID, Score: req.Score, Verified: time.Now().UTC()}
	if err := s.backend.SaveVerification(projectID, v); err != nil {
		s.handleError(w, vaulterrors.ErrStoreFailed("save verification", err))
		return
	}
	s.jsonResponseStatus(w, v, http.StatusCreated)
}

// handleListVerifications returns a project's verification results
// keyed by story ID.
func (s *Server) handleListVerifications(w http.ResponseWriter, r *http.Request) {
	projectID := r.PathValue("id")

	verifications, err := s.backend.GetVerifications(projectID)
	if err != nil {
		s.handleError(w, vaulterrors.ErrStoreFailed("get verifications", err))
		return
	}
	s.jsonResponse(w, map[string]any{"verifications": verifications})
}
