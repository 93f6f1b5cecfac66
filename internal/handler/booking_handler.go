package handler

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/gorilla/mux"
	"github.com/parakeetlabs/voice-bridge/pkg/logger"
	"go.uber.org/zap"
)

// HandleHealth reports service liveness and the active call count.
func (h *Handler) HandleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]interface{}{
		"status":       "ok",
		"active_calls": h.calls.Count(),
	})
}

// HandleListBookings returns all bookings, for inspection and demos.
func (h *Handler) HandleListBookings(w http.ResponseWriter, r *http.Request) {
	bookings, err := h.repo.List(r.Context())
	if err != nil {
		logger.Base().Error("failed to list bookings", zap.Error(err))
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]interface{}{
		"bookings": bookings,
		"count":    len(bookings),
	})
}

// HandleGetBooking returns one booking by id.
func (h *Handler) HandleGetBooking(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(mux.Vars(r)["id"], 10, 64)
	if err != nil {
		http.Error(w, "invalid booking id", http.StatusBadRequest)
		return
	}

	booking, err := h.repo.GetByID(r.Context(), id)
	if err != nil {
		logger.Base().Error("failed to get booking", zap.Int64("id", id), zap.Error(err))
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}
	if booking == nil {
		http.Error(w, "booking not found", http.StatusNotFound)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(booking)
}
