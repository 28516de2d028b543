package server

import (
	"net/http"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/lcalzada-xor/auditchain/internal/core/domain"
)

// SetupRoutes wires the REST and streaming surface. The integrity
// diagnostics live under /api/chain, off the hot ingestion path.
func SetupRoutes(s *Server) http.Handler {
	r := mux.NewRouter()

	// Ingestion boundary
	r.HandleFunc("/api/entries", s.EntryHandler.HandleAppend).Methods(http.MethodPost)
	r.HandleFunc("/api/entries", s.EntryHandler.HandleRange).Methods(http.MethodGet)
	r.HandleFunc("/api/entries/{id}", s.EntryHandler.HandleGet).Methods(http.MethodGet)
	r.HandleFunc("/api/entries/{id}/correct", s.EntryHandler.HandleCorrect).Methods(http.MethodPost)

	// Integrity boundary (read-only diagnostics)
	r.HandleFunc("/api/entries/{id}/verify", s.VerifyHandler.HandleVerifyEntry).Methods(http.MethodGet)
	r.HandleFunc("/api/chain/verify", s.VerifyHandler.HandleVerifyChain).Methods(http.MethodGet)

	// Administrative boundary: rules
	r.HandleFunc("/api/rules", s.RuleHandler.HandleCreate).Methods(http.MethodPost)
	r.HandleFunc("/api/rules", s.RuleHandler.HandleList).Methods(http.MethodGet)
	r.HandleFunc("/api/rules/{id}", s.RuleHandler.HandleGet).Methods(http.MethodGet)
	r.HandleFunc("/api/rules/{id}", s.RuleHandler.HandleUpdate).Methods(http.MethodPut)
	r.HandleFunc("/api/rules/{id}", s.RuleHandler.HandleDelete).Methods(http.MethodDelete)
	r.HandleFunc("/api/rules/{id}/enable", s.RuleHandler.HandleSetEnabled(true)).Methods(http.MethodPost)
	r.HandleFunc("/api/rules/{id}/disable", s.RuleHandler.HandleSetEnabled(false)).Methods(http.MethodPost)

	// Administrative boundary: alert lifecycle
	r.HandleFunc("/api/alerts", s.AlertHandler.HandleList).Methods(http.MethodGet)
	r.HandleFunc("/api/alerts/{id}", s.AlertHandler.HandleGet).Methods(http.MethodGet)
	r.HandleFunc("/api/alerts/{id}/acknowledge", s.AlertHandler.HandleTransition(domain.StatusAcknowledged)).Methods(http.MethodPost)
	r.HandleFunc("/api/alerts/{id}/investigate", s.AlertHandler.HandleTransition(domain.StatusInvestigating)).Methods(http.MethodPost)
	r.HandleFunc("/api/alerts/{id}/escalate", s.AlertHandler.HandleTransition(domain.StatusEscalated)).Methods(http.MethodPost)
	r.HandleFunc("/api/alerts/{id}/resolve", s.AlertHandler.HandleTransition(domain.StatusResolved)).Methods(http.MethodPost)
	r.HandleFunc("/api/alerts/{id}/dismiss", s.AlertHandler.HandleTransition(domain.StatusDismissed)).Methods(http.MethodPost)

	// Streaming boundary
	r.HandleFunc("/ws", s.WSManager.HandleWebSocket)

	// Operational endpoints
	r.HandleFunc("/api/stats", s.StatsHandler.HandleGetStats).Methods(http.MethodGet)
	r.HandleFunc("/api/health", s.StatsHandler.HandleHealth).Methods(http.MethodGet)
	r.Handle("/metrics", promhttp.Handler())

	return r
}
