package httpapi

import (
	"net/http"

	"github.com/cuemby/conclave/pkg/apierrors"
	"github.com/cuemby/conclave/pkg/scheduler"
	"github.com/go-chi/chi/v5"
)

type taskRequest struct {
	ID            string          `json:"id,omitempty"`
	Type          scheduler.Type  `json:"type"`
	Description   string          `json:"description,omitempty"`
	Parameters    any             `json:"parameters,omitempty"`
	Dependencies  []string        `json:"dependencies,omitempty"`
	RequiredRoles []string        `json:"required_roles,omitempty"`
	Priority      int             `json:"priority,omitempty"`
	DeadlineMs    int64           `json:"deadline_ms,omitempty"`
}

func (req taskRequest) toTask() scheduler.Task {
	return scheduler.Task{
		ID:            req.ID,
		Type:          req.Type,
		Description:   req.Description,
		Parameters:    req.Parameters,
		Dependencies:  req.Dependencies,
		RequiredRoles: req.RequiredRoles,
		Priority:      req.Priority,
		DeadlineMs:    req.DeadlineMs,
	}
}

type taskView struct {
	scheduler.Task
	Result *scheduler.Result `json:"result,omitempty"`
}

func (s *Server) taskViewOf(t scheduler.Task) taskView {
	v := taskView{Task: t}
	if r, ok := s.orch.Scheduler.GetResult(t.ID); ok {
		v.Result = &r
	}
	return v
}

func (s *Server) handleSubmitTask(w http.ResponseWriter, r *http.Request) {
	var req taskRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, err)
		return
	}
	taskID, err := s.orch.SubmitTask(req.toTask())
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"task_id": taskID, "status": "submitted"})
}

func (s *Server) handleSubmitWorkflow(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Tasks []taskRequest `json:"tasks"`
	}
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, err)
		return
	}

	tasks := make([]scheduler.Task, 0, len(req.Tasks))
	for _, tr := range req.Tasks {
		tasks = append(tasks, tr.toTask())
	}
	workflowID, taskIDs, err := s.orch.SubmitWorkflow(tasks)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"workflow_id": workflowID,
		"task_ids":    taskIDs,
		"status":      "scheduled",
	})
}

func (s *Server) handleGetTask(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "taskID")
	t, ok := s.orch.Scheduler.GetTask(id)
	if !ok {
		writeError(w, apierrors.ErrNotFound)
		return
	}
	writeJSON(w, http.StatusOK, s.taskViewOf(t))
}

func (s *Server) handleListTasks(w http.ResponseWriter, r *http.Request) {
	all := s.orch.Scheduler.GetAllTasks()
	views := make([]taskView, 0, len(all))
	for _, t := range all {
		views = append(views, s.taskViewOf(t))
	}
	writeJSON(w, http.StatusOK, map[string]any{"tasks": views, "count": len(views)})
}

func (s *Server) handleCancelTask(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "taskID")
	if err := s.orch.Scheduler.CancelTask(id); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"task_id": id, "status": "cancelled"})
}
