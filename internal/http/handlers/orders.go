package handlers

import (
	"net/http"

	"canteen-menu-service/internal/services"
	"canteen-menu-service/pkg/response"
)

type submitPayload struct {
	ICMTIDs []int64 `json:"ICMT_Ids"`
}

type addChoicePayload struct {
	ICMTID int64 `json:"ICMT_Id"`
}

type swapChoicePayload struct {
	NewICMTID int64 `json:"newICMT_Id"`
}

// bookingRequest resolves the caller and the {bookingId} path parameter.
func (h *Handler) bookingRequest(w http.ResponseWriter, r *http.Request) (services.Actor, int64, bool) {
	actor, ok := actorFrom(r)
	if !ok {
		response.Error(w, http.StatusUnauthorized, "UNAUTHORIZED", "Authorization token required")
		return services.Actor{}, 0, false
	}
	bookingID, err := readPathInt64(r, "bookingId")
	if err != nil {
		response.Error(w, http.StatusBadRequest, "VALIDATION_ERROR", "Invalid booking id")
		return services.Actor{}, 0, false
	}
	return actor, bookingID, true
}

func (h *Handler) writeSelectionResult(w http.ResponseWriter, result services.SelectionResult, message string) {
	setVersionHeader(w, result.Booking.Version)
	response.SuccessWithStatus(w, http.StatusOK, result, message)
}

func (h *Handler) OrderChoices(w http.ResponseWriter, r *http.Request) {
	actor, bookingID, ok := h.bookingRequest(w, r)
	if !ok {
		return
	}
	choices, err := h.Menus.Choices(r.Context(), actor, bookingID)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	setVersionHeader(w, choices.Version)
	response.Success(w, choices)
}

func (h *Handler) OrderSubmit(w http.ResponseWriter, r *http.Request) {
	actor, bookingID, ok := h.bookingRequest(w, r)
	if !ok {
		return
	}
	var payload submitPayload
	if err := decodeJSON(r, &payload); err != nil {
		h.writeError(w, r, err)
		return
	}
	result, err := h.Menus.Submit(r.Context(), actor, bookingID, payload.ICMTIDs)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	h.writeSelectionResult(w, result, "Menu submitted")
}

func (h *Handler) OrderAddChoice(w http.ResponseWriter, r *http.Request) {
	actor, bookingID, ok := h.bookingRequest(w, r)
	if !ok {
		return
	}
	var payload addChoicePayload
	if err := decodeJSON(r, &payload); err != nil {
		h.writeError(w, r, err)
		return
	}
	if err := requireID(payload.ICMTID, "ICMT_Id"); err != nil {
		h.writeError(w, r, err)
		return
	}
	result, err := h.Menus.AddChoice(r.Context(), actor, bookingID, payload.ICMTID)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	h.writeSelectionResult(w, result, "Choice added")
}

func (h *Handler) OrderRemoveChoice(w http.ResponseWriter, r *http.Request) {
	actor, bookingID, ok := h.bookingRequest(w, r)
	if !ok {
		return
	}
	icmtID, err := readPathInt64(r, "icmtId")
	if err != nil {
		response.Error(w, http.StatusBadRequest, "VALIDATION_ERROR", "Invalid item id")
		return
	}
	result, err := h.Menus.RemoveChoice(r.Context(), actor, bookingID, icmtID)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	h.writeSelectionResult(w, result, "Choice removed")
}

func (h *Handler) OrderResetChoices(w http.ResponseWriter, r *http.Request) {
	actor, bookingID, ok := h.bookingRequest(w, r)
	if !ok {
		return
	}
	result, err := h.Menus.ResetChoices(r.Context(), actor, bookingID)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	h.writeSelectionResult(w, result, "Choices reset")
}

func (h *Handler) OrderSwapChoice(w http.ResponseWriter, r *http.Request) {
	actor, bookingID, ok := h.bookingRequest(w, r)
	if !ok {
		return
	}
	oldID, err := readPathInt64(r, "oldIcmtId")
	if err != nil {
		response.Error(w, http.StatusBadRequest, "VALIDATION_ERROR", "Invalid item id")
		return
	}
	var payload swapChoicePayload
	if err := decodeJSON(r, &payload); err != nil {
		h.writeError(w, r, err)
		return
	}
	if err := requireID(payload.NewICMTID, "newICMT_Id"); err != nil {
		h.writeError(w, r, err)
		return
	}
	result, err := h.Menus.SwapChoice(r.Context(), actor, bookingID, oldID, payload.NewICMTID)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	h.writeSelectionResult(w, result, "Choice swapped")
}
