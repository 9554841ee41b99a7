// Package handlers exposes the HTTP surface: provider event intake,
// workflow mutations and health.
package handlers

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/gorilla/mux"

	"workflow-engine/internal/common/errors"
	"workflow-engine/internal/common/logging"
	"workflow-engine/internal/engine"
	"workflow-engine/internal/signature"
	"workflow-engine/internal/storage"
	"workflow-engine/internal/webhooks"
)

// Dispatcher runs workflows triggered by a normalized provider event.
type Dispatcher interface {
	Dispatch(ctx context.Context, service, event string, payload map[string]interface{}) ([]engine.StepResult, error)
}

type Handlers struct {
	store      storage.Storage
	dispatcher Dispatcher
	lifecycle  *webhooks.Manager
	verifier   *signature.Verifier
	botSecret  string
	logger     logging.Logger
}

func New(store storage.Storage, dispatcher Dispatcher, lifecycle *webhooks.Manager, verifier *signature.Verifier, botSecret string) *Handlers {
	return &Handlers{
		store:      store,
		dispatcher: dispatcher,
		lifecycle:  lifecycle,
		verifier:   verifier,
		botSecret:  botSecret,
		logger:     logging.GetGlobalLogger().WithFields(logging.Field{Key: "component", Value: "handlers"}),
	}
}

// Routes registers all endpoints on the router.
func (h *Handlers) Routes(r *mux.Router) {
	r.HandleFunc("/health", h.HandleHealth).Methods("GET")

	r.HandleFunc("/events/twitch", h.HandleTwitchEvent).Methods("POST")
	r.HandleFunc("/events/discord", h.HandleDiscordEvent).Methods("POST")
	r.HandleFunc("/events/faceit", h.HandleFaceitEvent).Methods("POST")

	r.HandleFunc("/workflows", h.HandleCreateWorkflow).Methods("POST")
	r.HandleFunc("/workflows", h.HandleListWorkflows).Methods("GET")
	r.HandleFunc("/workflows/{id:[0-9]+}", h.HandleGetWorkflow).Methods("GET")
	r.HandleFunc("/workflows/{id:[0-9]+}", h.HandleDeleteWorkflow).Methods("DELETE")
	r.HandleFunc("/workflows/{id:[0-9]+}/steps", h.HandleReplaceSteps).Methods("PUT")
	r.HandleFunc("/workflows/{id:[0-9]+}/steps/{step_id:[0-9]+}/params", h.HandleUpdateStepParams).Methods("PUT")
	r.HandleFunc("/workflows/{id:[0-9]+}/active", h.HandleSetActive).Methods("PUT")
}

// HandleHealth reports storage health.
func (h *Handlers) HandleHealth(w http.ResponseWriter, r *http.Request) {
	if err := h.store.Health(); err != nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]interface{}{
			"status": "unhealthy",
			"error":  err.Error(),
		})
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"status": "ok"})
}

func writeJSON(w http.ResponseWriter, status int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

// writeError maps the error taxonomy onto HTTP status codes.
func writeError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.IsType(err, errors.ErrTypeValidation):
		status = http.StatusBadRequest
	case errors.IsType(err, errors.ErrTypeNotFound):
		status = http.StatusNotFound
	case errors.IsType(err, errors.ErrTypeSubscription):
		status = http.StatusBadGateway
	}
	writeJSON(w, status, map[string]interface{}{"error": err.Error()})
}
