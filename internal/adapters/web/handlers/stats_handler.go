package handlers

import (
	"context"
	"encoding/json"
	"log"
	"net/http"

	"github.com/lcalzada-xor/auditchain/internal/core/domain"
	"github.com/lcalzada-xor/auditchain/internal/core/ports"
)

// StatsProvider is the slice of storage the stats view needs.
type StatsProvider interface {
	CountEntries(ctx context.Context) (int64, error)
	CountAlertsByStatus(ctx context.Context) (map[domain.AlertStatus]int64, error)
}

// StatsHandler serves the operator dashboard summary
type StatsHandler struct {
	Ledger ports.Ledger
	Stats  StatsProvider
}

// NewStatsHandler creates a new StatsHandler
func NewStatsHandler(ledger ports.Ledger, stats StatsProvider) *StatsHandler {
	return &StatsHandler{Ledger: ledger, Stats: stats}
}

// HandleGetStats returns ledger and alert totals
func (h *StatsHandler) HandleGetStats(w http.ResponseWriter, r *http.Request) {
	entries, err := h.Stats.CountEntries(r.Context())
	if err != nil {
		log.Printf("Failed to count entries: %v", err)
		http.Error(w, "Failed to fetch stats", http.StatusInternalServerError)
		return
	}
	alerts, err := h.Stats.CountAlertsByStatus(r.Context())
	if err != nil {
		log.Printf("Failed to count alerts: %v", err)
		http.Error(w, "Failed to fetch stats", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]interface{}{
		"entries":       entries,
		"last_sequence": h.Ledger.LastSequence(),
		"alerts":        alerts,
	})
}

// HandleHealth is the liveness probe
func (h *StatsHandler) HandleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.Write([]byte(`{"status":"ok"}`))
}
