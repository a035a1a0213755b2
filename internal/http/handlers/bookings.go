package handlers

import (
	"net/http"

	"canteen-menu-service/pkg/response"
)

type bookingPayload struct {
	ID         int64 `json:"id"`
	CustomerID int64 `json:"customerId"`
}

// RegisterBooking lets the booking system announce a booking and its
// owner; it is idempotent on id.
func (h *Handler) RegisterBooking(w http.ResponseWriter, r *http.Request) {
	var payload bookingPayload
	if err := decodeJSON(r, &payload); err != nil {
		h.writeError(w, r, err)
		return
	}
	if err := requireID(payload.ID, "id"); err != nil {
		h.writeError(w, r, err)
		return
	}
	if err := requireID(payload.CustomerID, "customerId"); err != nil {
		h.writeError(w, r, err)
		return
	}

	booking, err := h.Store.EnsureBooking(r.Context(), payload.ID, payload.CustomerID)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	setVersionHeader(w, booking.Version)
	response.Success(w, booking)
}
