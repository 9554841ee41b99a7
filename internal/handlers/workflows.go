package handlers

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/gorilla/mux"

	"workflow-engine/internal/common/errors"
	"workflow-engine/internal/common/logging"
	"workflow-engine/internal/webhooks"
	"workflow-engine/internal/workflow"
)

// workflowRequest is the definition surface for create and step
// replacement: workflow metadata plus an ordered list of step definitions.
type workflowRequest struct {
	UserID      int64                     `json:"user_id"`
	Name        string                    `json:"name"`
	Description string                    `json:"description,omitempty"`
	Visibility  workflow.Visibility       `json:"visibility,omitempty"`
	Active      *bool                     `json:"active,omitempty"`
	Steps       []webhooks.StepDefinition `json:"steps"`
}

// HandleCreateWorkflow persists a new workflow. Step definitions are
// compiled first so any subscription failure aborts before anything is
// stored.
func (h *Handlers) HandleCreateWorkflow(w http.ResponseWriter, r *http.Request) {
	var req workflowRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, errors.ValidationError("invalid request body"))
		return
	}
	if req.UserID == 0 || req.Name == "" {
		writeError(w, errors.ValidationError("user_id and name are required"))
		return
	}

	steps, err := h.lifecycle.CompileSteps(r.Context(), req.Steps)
	if err != nil {
		writeError(w, err)
		return
	}

	wf := &workflow.Workflow{
		UserID:      req.UserID,
		Name:        req.Name,
		Description: req.Description,
		Visibility:  req.Visibility,
		Active:      req.Active == nil || *req.Active,
		Steps:       steps,
	}
	if wf.Visibility == "" {
		wf.Visibility = workflow.VisibilityPrivate
	}

	if err := h.store.CreateWorkflow(r.Context(), wf); err != nil {
		h.lifecycle.ReleaseSteps(r.Context(), steps)
		writeError(w, err)
		return
	}
	h.logger.Info("Workflow created",
		logging.Field{Key: "workflow_id", Value: wf.ID},
		logging.Field{Key: "steps", Value: len(wf.Steps)})
	writeJSON(w, http.StatusCreated, wf)
}

func (h *Handlers) HandleGetWorkflow(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		writeError(w, err)
		return
	}
	wf, err := h.store.GetWorkflow(r.Context(), id)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, wf)
}

func (h *Handlers) HandleListWorkflows(w http.ResponseWriter, r *http.Request) {
	userID, err := strconv.ParseInt(r.URL.Query().Get("user_id"), 10, 64)
	if err != nil || userID <= 0 {
		writeError(w, errors.ValidationError("user_id query parameter is required"))
		return
	}
	workflows, err := h.store.ListWorkflowsByUser(r.Context(), userID)
	if err != nil {
		writeError(w, err)
		return
	}
	if workflows == nil {
		workflows = []*workflow.Workflow{}
	}
	writeJSON(w, http.StatusOK, workflows)
}

// HandleReplaceSteps swaps a workflow's step list. New subscriptions are
// created before the swap; the old steps' subscriptions are released only
// after the swap is stored.
func (h *Handlers) HandleReplaceSteps(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		writeError(w, err)
		return
	}
	var req struct {
		Steps []webhooks.StepDefinition `json:"steps"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, errors.ValidationError("invalid request body"))
		return
	}

	existing, err := h.store.GetWorkflow(r.Context(), id)
	if err != nil {
		writeError(w, err)
		return
	}

	steps, err := h.lifecycle.CompileSteps(r.Context(), req.Steps)
	if err != nil {
		writeError(w, err)
		return
	}
	if err := h.store.ReplaceWorkflowSteps(r.Context(), id, steps); err != nil {
		h.lifecycle.ReleaseSteps(r.Context(), steps)
		writeError(w, err)
		return
	}
	h.lifecycle.ReleaseSteps(r.Context(), existing.Steps)

	updated, err := h.store.GetWorkflow(r.Context(), id)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, updated)
}

// HandleUpdateStepParams replaces one step's literal params in place, so a
// timer interval or handler setting can change without replacing the step
// list. Stored subscription handles survive the rewrite, keeping any push
// trigger wired.
func (h *Handlers) HandleUpdateStepParams(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		writeError(w, err)
		return
	}
	stepID, err := strconv.ParseInt(mux.Vars(r)["step_id"], 10, 64)
	if err != nil || stepID <= 0 {
		writeError(w, errors.ValidationError("invalid step id"))
		return
	}
	var req map[string]interface{}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, errors.ValidationError("invalid request body"))
		return
	}

	wf, err := h.store.GetWorkflow(r.Context(), id)
	if err != nil {
		writeError(w, err)
		return
	}
	var step *workflow.Step
	for i := range wf.Steps {
		if wf.Steps[i].ID == stepID {
			step = &wf.Steps[i]
			break
		}
	}
	if step == nil {
		writeError(w, errors.NotFoundError("step"))
		return
	}

	params := workflow.LiteralParams(req)
	for _, key := range []string{"webhook_id", "broadcaster_user_id"} {
		if value, ok := step.Params[key]; ok {
			params[key] = value
		}
	}
	if err := h.store.UpdateStepParams(r.Context(), stepID, params); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"id": stepID, "params": params})
}

func (h *Handlers) HandleSetActive(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		writeError(w, err)
		return
	}
	var req struct {
		Active bool `json:"active"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, errors.ValidationError("invalid request body"))
		return
	}
	if err := h.store.SetWorkflowActive(r.Context(), id, req.Active); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"id": id, "active": req.Active})
}

// HandleDeleteWorkflow releases the workflow's subscriptions and deletes
// it. Release failures never block the delete.
func (h *Handlers) HandleDeleteWorkflow(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		writeError(w, err)
		return
	}
	wf, err := h.store.GetWorkflow(r.Context(), id)
	if err != nil {
		writeError(w, err)
		return
	}
	h.lifecycle.ReleaseSteps(r.Context(), wf.Steps)
	if err := h.store.DeleteWorkflow(r.Context(), id); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func pathID(r *http.Request) (int64, error) {
	id, err := strconv.ParseInt(mux.Vars(r)["id"], 10, 64)
	if err != nil || id <= 0 {
		return 0, errors.ValidationError("invalid workflow id")
	}
	return id, nil
}
