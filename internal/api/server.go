// SPDX-License-Identifier: AGPL-3.0-or-later

// Package api exposes workflow-configuration CRUD, the enable/disable
// lifecycle, execution triggering, and execution/step status querying over
// HTTP, grounded on original_source/app/api/saga_configuration.py and
// saga_execution.py (SPEC_FULL.md section 3 - Supplemented Features).
package api

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"sagaflow/internal/journal"
	"sagaflow/internal/store"
	"sagaflow/pkg/logging"
	"sagaflow/pkg/saga"
)

// Feature: API_WORKFLOW_SURFACE
// Spec: SPEC_FULL.md section 3 (Supplemented Features)

// Server wires the store, orchestrator, and journal into a chi router. It is
// backend-agnostic: store.Store and journal.Journal are satisfied by both
// the in-memory and Postgres implementations, so a single Server works
// unchanged against either (SPEC_FULL.md section 4 - Module Map).
type Server struct {
	store        store.Store
	orchestrator saga.Orchestrator
	journal      journal.Journal
	logger       logging.Logger
}

// New constructs a Server over the given store and journal backends.
func New(st store.Store, orch saga.Orchestrator, jrn journal.Journal, logger logging.Logger) *Server {
	if logger == nil {
		logger = logging.NewLogger(false)
	}
	return &Server{store: st, orchestrator: orch, journal: jrn, logger: logger}
}

// Router builds the chi.Router exposing this server's endpoints.
func (s *Server) Router() chi.Router {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)

	r.Route("/workflow-configurations", func(r chi.Router) {
		r.Post("/", s.createConfiguration)
		r.Get("/", s.listConfigurations)
		r.Get("/{id}", s.getConfiguration)
		r.Put("/{id}", s.updateConfiguration)
		r.Delete("/{id}", s.deleteConfiguration)
		r.Post("/{id}/enable", s.enableConfiguration)
		r.Post("/{id}/disable", s.disableConfiguration)
		r.Post("/{id}/execute", s.executeConfiguration)
	})

	r.Route("/executions", func(r chi.Router) {
		r.Get("/", s.listExecutions)
		r.Get("/{id}", s.getExecution)
		r.Get("/{id}/steps", s.getExecutionSteps)
	})

	return r
}

type createConfigurationRequest struct {
	Name        string `json:"name"`
	Version     string `json:"version"`
	Description string `json:"description"`
	YAMLContent string `json:"yaml_content"`
}

func (s *Server) createConfiguration(w http.ResponseWriter, r *http.Request) {
	var req createConfigurationRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	rec, err := s.store.Create(r.Context(), req.Name, req.Version, req.Description, []byte(req.YAMLContent))
	if err != nil {
		writeStoreError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, rec)
}

func (s *Server) listConfigurations(w http.ResponseWriter, r *http.Request) {
	recs, err := s.store.List(r.Context())
	if err != nil {
		writeStoreError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, recs)
}

func (s *Server) getConfiguration(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	rec, err := s.store.Get(r.Context(), id)
	if err != nil {
		writeStoreError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, rec)
}

type updateConfigurationRequest struct {
	Name        *string `json:"name,omitempty"`
	Version     *string `json:"version,omitempty"`
	Description *string `json:"description,omitempty"`
	YAMLContent *string `json:"yaml_content,omitempty"`
}

func (s *Server) updateConfiguration(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	var req updateConfigurationRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	var yamlContent []byte
	if req.YAMLContent != nil {
		yamlContent = []byte(*req.YAMLContent)
	}

	rec, err := s.store.Update(r.Context(), id, req.Name, req.Version, req.Description, yamlContent)
	if err != nil {
		writeStoreError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, rec)
}

func (s *Server) deleteConfiguration(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if err := s.store.Delete(r.Context(), id); err != nil {
		writeStoreError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) enableConfiguration(w http.ResponseWriter, r *http.Request) {
	s.setStatus(w, r, store.StatusActive)
}

func (s *Server) disableConfiguration(w http.ResponseWriter, r *http.Request) {
	s.setStatus(w, r, store.StatusDisabled)
}

func (s *Server) setStatus(w http.ResponseWriter, r *http.Request, status store.Status) {
	id := chi.URLParam(r, "id")
	rec, err := s.store.SetStatus(r.Context(), id, status)
	if err != nil {
		writeStoreError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, rec)
}

func (s *Server) executeConfiguration(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	enabled, err := s.store.Enabled(r.Context(), id)
	if err != nil {
		writeStoreError(w, err)
		return
	}
	if !enabled {
		writeError(w, http.StatusConflict, "workflow configuration is not enabled")
		return
	}

	workflow, err := s.store.Load(r.Context(), id)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	var input map[string]any
	if r.Body != nil {
		_ = json.NewDecoder(r.Body).Decode(&input)
	}

	exec, err := s.orchestrator.Execute(r.Context(), workflow, input)
	if err != nil {
		s.logger.Error("execution failed", logging.NewField("workflow_id", id), logging.ErrField(err))
		writeError(w, http.StatusInternalServerError, "execution failed")
		return
	}
	writeJSON(w, http.StatusOK, exec)
}

// listExecutions implements GET /executions?workflow_id=..., most recently
// started first, optionally filtered to one workflow configuration
// (SPEC_FULL.md section 3 - execution history query surface).
func (s *Server) listExecutions(w http.ResponseWriter, r *http.Request) {
	workflowID := r.URL.Query().Get("workflow_id")
	execs, err := s.journal.Executions(r.Context(), workflowID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to list executions")
		return
	}
	writeJSON(w, http.StatusOK, execs)
}

func (s *Server) getExecution(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	exec, err := s.journal.Execution(r.Context(), id)
	if err != nil {
		writeError(w, http.StatusNotFound, "execution not found")
		return
	}
	writeJSON(w, http.StatusOK, exec)
}

// getExecutionSteps implements GET /executions/{id}/steps: the step records
// an Execution accumulates are already attached to exec.Steps once
// FinalizeExecution has run, so this is a plain projection of that field.
func (s *Server) getExecutionSteps(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	exec, err := s.journal.Execution(r.Context(), id)
	if err != nil {
		writeError(w, http.StatusNotFound, "execution not found")
		return
	}
	writeJSON(w, http.StatusOK, exec.Steps)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}

func writeStoreError(w http.ResponseWriter, err error) {
	switch err {
	case store.ErrNotFound:
		writeError(w, http.StatusNotFound, err.Error())
	case store.ErrNameConflict:
		writeError(w, http.StatusBadRequest, err.Error())
	default:
		writeError(w, http.StatusBadRequest, err.Error())
	}
}
