package api

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/eduflow-ai/eduflow/internal/core"
)

// createWorkflowRequest is the POST /workflows body.
type createWorkflowRequest struct {
	Template   string                 `json:"template"`
	Parameters map[string]interface{} `json:"parameters"`
	Priority   int                    `json:"priority"`
}

// createWorkflowResponse echoes the queued workflow.
type createWorkflowResponse struct {
	WorkflowID string `json:"workflow_id"`
	Template   string `json:"template"`
	Status     string `json:"status"`
	Priority   int    `json:"priority"`
	Steps      int    `json:"steps"`
}

func (s *Server) handleCreateWorkflow(w http.ResponseWriter, r *http.Request) {
	var req createWorkflowRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, core.ErrValidation("INVALID_BODY", "request body is not valid JSON"))
		return
	}
	if req.Template == "" {
		writeError(w, core.ErrValidation("TEMPLATE_REQUIRED", "template is required"))
		return
	}

	wf, err := s.coordinator.CreateWorkflow(req.Template, req.Parameters, req.Priority)
	if err != nil {
		writeError(w, err)
		return
	}

	// Execution is asynchronous; the workflow is only queued at this point.
	writeJSON(w, http.StatusAccepted, createWorkflowResponse{
		WorkflowID: string(wf.ID),
		Template:   wf.TemplateName,
		Status:     string(wf.Status),
		Priority:   wf.Priority,
		Steps:      len(wf.Steps),
	})
}

func (s *Server) handleListWorkflows(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"workflows": s.coordinator.ListWorkflows(),
	})
}

func (s *Server) handleGetWorkflow(w http.ResponseWriter, r *http.Request) {
	id := core.WorkflowID(chi.URLParam(r, "id"))
	snap, err := s.coordinator.GetWorkflowStatus(id)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, snap)
}

// cancelRequest optionally carries a reason.
type cancelRequest struct {
	Reason string `json:"reason"`
}

func (s *Server) handleCancelWorkflow(w http.ResponseWriter, r *http.Request) {
	id := core.WorkflowID(chi.URLParam(r, "id"))

	var req cancelRequest
	if r.Body != nil {
		_ = json.NewDecoder(r.Body).Decode(&req)
	}
	if req.Reason == "" {
		req.Reason = "cancelled via API"
	}

	cancelled := s.coordinator.CancelWorkflow(id, req.Reason)
	writeJSON(w, http.StatusOK, map[string]bool{"cancelled": cancelled})
}

func (s *Server) handlePauseWorkflow(w http.ResponseWriter, r *http.Request) {
	id := core.WorkflowID(chi.URLParam(r, "id"))
	writeJSON(w, http.StatusOK, map[string]bool{"paused": s.coordinator.PauseWorkflow(id)})
}

func (s *Server) handleResumeWorkflow(w http.ResponseWriter, r *http.Request) {
	id := core.WorkflowID(chi.URLParam(r, "id"))
	writeJSON(w, http.StatusOK, map[string]bool{"resumed": s.coordinator.ResumeWorkflow(id)})
}

func (s *Server) handleAggregateMetrics(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.coordinator.GetMetrics())
}
