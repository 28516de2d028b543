package handlers

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"strconv"

	"github.com/gorilla/mux"

	"github.com/lcalzada-xor/auditchain/internal/core/domain"
	"github.com/lcalzada-xor/auditchain/internal/core/ports"
)

// AlertHandler handles operator alert views and lifecycle transitions
type AlertHandler struct {
	Alerts ports.AlertManager
}

// NewAlertHandler creates a new AlertHandler
func NewAlertHandler(alerts ports.AlertManager) *AlertHandler {
	return &AlertHandler{Alerts: alerts}
}

type transitionRequest struct {
	Actor string `json:"actor"`
	Note  string `json:"note,omitempty"`
}

// HandleList returns alerts filtered by status, severity and rule
func (h *AlertHandler) HandleList(w http.ResponseWriter, r *http.Request) {
	filter := domain.AlertFilter{
		Status:   domain.AlertStatus(r.URL.Query().Get("status")),
		Severity: domain.Severity(r.URL.Query().Get("severity")),
		RuleID:   r.URL.Query().Get("rule_id"),
	}
	if raw := r.URL.Query().Get("limit"); raw != "" {
		if limit, err := strconv.Atoi(raw); err == nil {
			filter.Limit = limit
		}
	}

	alerts, err := h.Alerts.ListAlerts(r.Context(), filter)
	if err != nil {
		log.Printf("Failed to list alerts: %v", err)
		http.Error(w, "Failed to list alerts", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]interface{}{
		"alerts": alerts,
	})
}

// HandleGet returns one alert with its transition history
func (h *AlertHandler) HandleGet(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]

	alert, err := h.Alerts.GetAlert(r.Context(), id)
	if err != nil {
		if errors.Is(err, domain.ErrAlertNotFound) {
			http.Error(w, "Alert not found", http.StatusNotFound)
			return
		}
		log.Printf("Failed to fetch alert: %v", err)
		http.Error(w, "Failed to fetch alert", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(alert)
}

// HandleTransition builds the handler for one lifecycle operation
func (h *AlertHandler) HandleTransition(to domain.AlertStatus) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := mux.Vars(r)["id"]

		var req transitionRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, "Invalid request body", http.StatusBadRequest)
			return
		}

		var alert domain.Alert
		var err error
		switch to {
		case domain.StatusAcknowledged:
			alert, err = h.Alerts.Acknowledge(r.Context(), id, req.Actor)
		case domain.StatusInvestigating:
			alert, err = h.Alerts.StartInvestigation(r.Context(), id, req.Actor)
		case domain.StatusEscalated:
			alert, err = h.Alerts.Escalate(r.Context(), id, req.Actor, req.Note)
		case domain.StatusResolved:
			alert, err = h.Alerts.Resolve(r.Context(), id, req.Actor, req.Note)
		case domain.StatusDismissed:
			alert, err = h.Alerts.Dismiss(r.Context(), id, req.Actor, req.Note)
		default:
			http.Error(w, "Unknown transition", http.StatusBadRequest)
			return
		}

		if err != nil {
			switch {
			case errors.Is(err, domain.ErrAlertNotFound):
				http.Error(w, "Alert not found", http.StatusNotFound)
			case errors.Is(err, domain.ErrInvalidTransition):
				http.Error(w, err.Error(), http.StatusConflict)
			case errors.Is(err, domain.ErrMissingActor):
				http.Error(w, err.Error(), http.StatusBadRequest)
			default:
				log.Printf("Alert transition failed: %v", err)
				http.Error(w, "Transition failed", http.StatusInternalServerError)
			}
			return
		}

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(alert)
	}
}
