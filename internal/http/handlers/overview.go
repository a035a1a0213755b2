package handlers

import (
	"net/http"

	"canteen-menu-service/pkg/response"
)

func (h *Handler) AdvanceMenuOverview(w http.ResponseWriter, r *http.Request) {
	data, err := h.Menus.Overview(r.Context())
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	response.Success(w, data)
}

func (h *Handler) AdvanceMenuPublish(w http.ResponseWriter, r *http.Request) {
	snapshot, err := h.Menus.PublishOverview(r.Context())
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	response.SuccessWithStatus(w, http.StatusCreated, snapshot, "Menu overview published")
}
