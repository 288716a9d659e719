package api

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/google/uuid"

	vaulterrors "github.com/taskvault/taskvault/internal/errors"
	"github.com/taskvault/taskvault/internal/store"
)

// handleListProjects returns all registered projects.
func (s *Server) handleListProjects(w http.ResponseWriter, r *http.Request) {
	projects, err := s.backend.ListProjects()
	if err != nil {
		s.handleError(w, vaulterrors.ErrStoreFailed("list projects", err))
		return
	}
	s.jsonResponse(w, map[string]any{"projects": projects})
}

// handleCreateProject registers a new project. The ID is generated when
// not supplied.
func (s *Server) handleCreateProject(w http.ResponseWriter, r *http.Request) {
	var req struct {
		ID   string `json:"id"`
		Name string `json:"name"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.jsonError(w, "invalid request body", http.StatusBadRequest)
		return
	}
	if strings.TrimSpace(req.Name) == "" {
		s.handleError(w, vaulterrors.ErrInvalidRequest("project name is required"))
		return
	}
	if req.ID == "" {
		req.ID = uuid.NewString()
	}

	p := &store.Project{ID: req.ID, Name: req.Name}
	if err := s.backend.SaveProject(p); err != nil {
		s.handleError(w, vaulterrors.ErrStoreFailed("save project", err))
		return
	}

	s.logger.Info("project created", "project", p.ID, "name", p.Name)
	s.jsonResponseStatus(w, p, http.StatusCreated)
}

// handleGetProject returns a single project.
func (s *Server) handleGetProject(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")

	p, err := s.backend.GetProject(id)
	if err != nil {
		s.handleError(w, vaulterrors.ErrStoreFailed("get project", err))
		return
	}
	if p == nil {
		s.handleError(w, vaulterrors.ErrProjectNotFound(id))
		return
	}
	s.jsonResponse(w, p)
}
