package handlers

import (
	"net/http"

	"canteen-menu-service/pkg/response"
)

type replacePayload struct {
	ICMTIDs []int64 `json:"ICMT_Ids"`
	Version *int64  `json:"version"`
}

func (h *Handler) AdminStructuredMenus(w http.ResponseWriter, r *http.Request) {
	menus, err := h.Menus.StructuredAll(r.Context())
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	response.Success(w, menus)
}

func (h *Handler) AdminStructuredBooking(w http.ResponseWriter, r *http.Request) {
	bookingID, err := readPathInt64(r, "bookingId")
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	booking, err := h.Menus.StructuredBooking(r.Context(), bookingID)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	setVersionHeader(w, booking.Version)
	response.Success(w, booking)
}

// AdminReplaceMenu atomically replaces a booking's selections. The version
// loaded by the editor comes from the body or an If-Match header; the body
// wins when both are present.
func (h *Handler) AdminReplaceMenu(w http.ResponseWriter, r *http.Request) {
	actor, bookingID, ok := h.bookingRequest(w, r)
	if !ok {
		return
	}
	var payload replacePayload
	if err := decodeJSON(r, &payload); err != nil {
		h.writeError(w, r, err)
		return
	}
	version := payload.Version
	if version == nil {
		headerVersion, err := readIfMatch(r)
		if err != nil {
			h.writeError(w, r, err)
			return
		}
		version = headerVersion
	}

	result, err := h.Menus.Replace(r.Context(), actor, bookingID, payload.ICMTIDs, version)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	h.writeSelectionResult(w, result, "Menu saved")
}

func (h *Handler) AdminDeleteMenu(w http.ResponseWriter, r *http.Request) {
	actor, bookingID, ok := h.bookingRequest(w, r)
	if !ok {
		return
	}
	result, err := h.Menus.ClearSelections(r.Context(), actor, bookingID)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	h.writeSelectionResult(w, result, "Menu deleted")
}

func (h *Handler) AdminResetBookingPrice(w http.ResponseWriter, r *http.Request) {
	actor, bookingID, ok := h.bookingRequest(w, r)
	if !ok {
		return
	}
	result, err := h.Menus.ResetPrice(r.Context(), actor, bookingID)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	h.writeSelectionResult(w, result, "Booking price reset")
}

func (h *Handler) AdminSelectionAudit(w http.ResponseWriter, r *http.Request) {
	bookingID, err := readPathInt64(r, "bookingId")
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	entries, err := h.Menus.Audit(r.Context(), bookingID)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	response.Success(w, entries)
}
