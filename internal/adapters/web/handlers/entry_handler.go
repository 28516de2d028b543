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

// EntryHandler handles ledger ingestion and read operations
type EntryHandler struct {
	Ledger ports.Ledger
}

// NewEntryHandler creates a new EntryHandler
func NewEntryHandler(ledger ports.Ledger) *EntryHandler {
	return &EntryHandler{Ledger: ledger}
}

// HandleAppend ingests one payload as a new ledger entry
func (h *EntryHandler) HandleAppend(w http.ResponseWriter, r *http.Request) {
	var payload domain.Payload
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	entry, err := h.Ledger.Append(r.Context(), payload)
	if err != nil {
		switch {
		case errors.Is(err, domain.ErrEmptyPayload),
			errors.Is(err, domain.ErrBadPayloadValue),
			errors.Is(err, domain.ErrReservedField):
			http.Error(w, err.Error(), http.StatusBadRequest)
		case errors.Is(err, domain.ErrAppendTimeout):
			// Caller retries; the writer is saturated, not broken.
			http.Error(w, err.Error(), http.StatusServiceUnavailable)
		default:
			log.Printf("Append failed: %v", err)
			http.Error(w, "Append failed", http.StatusInternalServerError)
		}
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	json.NewEncoder(w).Encode(entry)
}

// HandleCorrect appends a correction entry referencing an original
func (h *EntryHandler) HandleCorrect(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]

	var payload domain.Payload
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	entry, err := h.Ledger.Correct(r.Context(), id, payload)
	if err != nil {
		switch {
		case errors.Is(err, domain.ErrEntryNotFound):
			http.Error(w, "Entry not found", http.StatusNotFound)
		case errors.Is(err, domain.ErrEmptyPayload), errors.Is(err, domain.ErrBadPayloadValue):
			http.Error(w, err.Error(), http.StatusBadRequest)
		default:
			log.Printf("Correction failed: %v", err)
			http.Error(w, "Correction failed", http.StatusInternalServerError)
		}
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	json.NewEncoder(w).Encode(entry)
}

// HandleGet returns a single entry by ID
func (h *EntryHandler) HandleGet(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]

	entry, err := h.Ledger.Get(r.Context(), id)
	if err != nil {
		if errors.Is(err, domain.ErrEntryNotFound) {
			http.Error(w, "Entry not found", http.StatusNotFound)
			return
		}
		log.Printf("Failed to fetch entry: %v", err)
		http.Error(w, "Failed to fetch entry", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(entry)
}

// HandleRange returns entries in a sequence range; reconnecting stream
// clients use it for backfill
func (h *EntryHandler) HandleRange(w http.ResponseWriter, r *http.Request) {
	from, err := strconv.ParseInt(r.URL.Query().Get("from"), 10, 64)
	if err != nil {
		http.Error(w, "Invalid 'from' parameter", http.StatusBadRequest)
		return
	}
	to := h.Ledger.LastSequence()
	if raw := r.URL.Query().Get("to"); raw != "" {
		to, err = strconv.ParseInt(raw, 10, 64)
		if err != nil {
			http.Error(w, "Invalid 'to' parameter", http.StatusBadRequest)
			return
		}
	}

	entries, err := h.Ledger.GetRange(r.Context(), from, to)
	if err != nil {
		if errors.Is(err, domain.ErrInvalidRange) {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		log.Printf("Failed to fetch range: %v", err)
		http.Error(w, "Failed to fetch range", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]interface{}{
		"from":    from,
		"to":      to,
		"entries": entries,
	})
}
