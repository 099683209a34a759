package waitlist

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/radiancehq/medspa-waitlist/pkg/logging"
)

// Handler exposes the waitlist lifecycle over HTTP. It is a thin layer:
// all decisions live in the Service.
type Handler struct {
	svc    *Service
	logger *logging.Logger
}

// NewHandler creates a waitlist HTTP handler.
func NewHandler(svc *Service, logger *logging.Logger) *Handler {
	if logger == nil {
		logger = logging.Default()
	}
	return &Handler{svc: svc, logger: logger}
}

// RegisterPublicRoutes mounts the token-authenticated response endpoints.
func (h *Handler) RegisterPublicRoutes(r chi.Router) {
	r.Get("/offers/{token}", h.getOffer)
	r.Post("/offers/{token}/respond", h.respondToOffer)
}

// RegisterAdminRoutes mounts the operator endpoints.
func (h *Handler) RegisterAdminRoutes(r chi.Router) {
	r.Post("/waitlist", h.joinWaitlist)
	r.Get("/waitlist", h.listEntries)
	r.Delete("/waitlist/{entryID}", h.removeEntry)
	r.Post("/slots/offer", h.offerSlot)
	r.Post("/offers/expire", h.expireOffers)
}

func (h *Handler) joinWaitlist(w http.ResponseWriter, r *http.Request) {
	var req JoinRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid json", http.StatusBadRequest)
		return
	}
	entry, err := h.svc.JoinWaitlist(r.Context(), &req)
	if err != nil {
		h.writeError(w, "join waitlist", err)
		return
	}
	writeJSON(w, http.StatusCreated, entry)
}

func (h *Handler) listEntries(w http.ResponseWriter, r *http.Request) {
	var statusFilter *EntryStatus
	if s := r.URL.Query().Get("status"); s != "" {
		st := EntryStatus(s)
		statusFilter = &st
	}
	entries, err := h.svc.ListEntries(r.Context(), statusFilter, 100)
	if err != nil {
		h.writeError(w, "list entries", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"entries": entries,
		"count":   len(entries),
	})
}

func (h *Handler) removeEntry(w http.ResponseWriter, r *http.Request) {
	entryID, err := uuid.Parse(chi.URLParam(r, "entryID"))
	if err != nil {
		http.Error(w, "invalid entry id", http.StatusBadRequest)
		return
	}
	if err := h.svc.RemoveEntry(r.Context(), entryID); err != nil {
		h.writeError(w, "remove entry", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) offerSlot(w http.ResponseWriter, r *http.Request) {
	var slot Slot
	if err := json.NewDecoder(r.Body).Decode(&slot); err != nil {
		http.Error(w, "invalid json", http.StatusBadRequest)
		return
	}
	if slot.ServiceID == "" || slot.SlotStart.IsZero() || !slot.SlotEnd.After(slot.SlotStart) {
		http.Error(w, "service_id and a valid slot window are required", http.StatusBadRequest)
		return
	}
	offer, err := h.svc.OfferSlot(r.Context(), slot)
	if err != nil {
		if errors.Is(err, ErrNoEligibleEntries) {
			writeJSON(w, http.StatusOK, map[string]any{"offered": false})
			return
		}
		h.writeError(w, "offer slot", err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]any{
		"offered": true,
		"offer":   offer,
	})
}

func (h *Handler) getOffer(w http.ResponseWriter, r *http.Request) {
	token := chi.URLParam(r, "token")
	offer, entry, err := h.svc.GetOfferByToken(r.Context(), token)
	if err != nil {
		h.writeError(w, "get offer", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"offer":        offer,
		"patient_name": entry.PatientName,
		"service_id":   entry.ServiceID,
	})
}

func (h *Handler) respondToOffer(w http.ResponseWriter, r *http.Request) {
	token := chi.URLParam(r, "token")
	var body struct {
		Action RespondAction `json:"action"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		http.Error(w, "invalid json", http.StatusBadRequest)
		return
	}
	result, err := h.svc.RespondToOffer(r.Context(), token, body.Action)
	if err != nil {
		h.writeError(w, "respond to offer", err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func (h *Handler) expireOffers(w http.ResponseWriter, r *http.Request) {
	expired, err := h.svc.ExpireStaleOffers(r.Context())
	if err != nil {
		h.writeError(w, "expire offers", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"expired": expired})
}

// writeError maps the service error taxonomy onto HTTP statuses.
func (h *Handler) writeError(w http.ResponseWriter, op string, err error) {
	switch {
	case errors.Is(err, ErrNotFound):
		http.Error(w, "not found", http.StatusNotFound)
	case errors.Is(err, ErrOfferExpired):
		http.Error(w, "this offer has expired", http.StatusGone)
	case errors.Is(err, ErrAlreadyResponded):
		http.Error(w, "this offer has already been responded to", http.StatusConflict)
	case errors.Is(err, ErrConflict):
		http.Error(w, "slot is no longer available", http.StatusConflict)
	case errors.Is(err, ErrInvalidEntry):
		http.Error(w, err.Error(), http.StatusBadRequest)
	default:
		h.logger.Error("waitlist handler: "+op, "error", err)
		http.Error(w, "internal error", http.StatusInternalServerError)
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
