package handlers

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"

	"canteen-menu-service/internal/middleware"
	"canteen-menu-service/internal/services"
	"canteen-menu-service/internal/store"
	"canteen-menu-service/pkg/menu"
	"canteen-menu-service/pkg/response"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
)

var errMissingParam = errors.New("missing param")

// inputError is a request the handler rejects before touching the store.
type inputError string

func (e inputError) Error() string { return string(e) }

func readPathInt64(r *http.Request, key string) (int64, error) {
	value := chi.URLParam(r, key)
	if value == "" {
		return 0, errMissingParam
	}
	out, err := strconv.ParseInt(value, 10, 64)
	if err != nil || out <= 0 {
		return 0, inputError(fmt.Sprintf("Invalid %s", key))
	}
	return out, nil
}

func decodeJSON(r *http.Request, dst any) error {
	body := io.LimitReader(r.Body, 1<<20)
	dec := json.NewDecoder(body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		return inputError("Invalid request body")
	}
	return nil
}

func actorFrom(r *http.Request) (services.Actor, bool) {
	authCtx, ok := middleware.GetAuthContext(r.Context())
	if !ok || authCtx == nil {
		return services.Actor{}, false
	}
	return services.Actor{UserID: authCtx.UserID, Admin: authCtx.IsAdmin()}, true
}

func setVersionHeader(w http.ResponseWriter, version int64) {
	w.Header().Set("ETag", strconv.Quote(strconv.FormatInt(version, 10)))
}

// readIfMatch parses an If-Match header carrying a booking version.
func readIfMatch(r *http.Request) (*int64, error) {
	raw := strings.TrimSpace(r.Header.Get("If-Match"))
	if raw == "" {
		return nil, nil
	}
	raw = strings.TrimPrefix(raw, "W/")
	if unquoted, err := strconv.Unquote(raw); err == nil {
		raw = unquoted
	}
	version, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return nil, inputError("If-Match must carry the selection version")
	}
	return &version, nil
}

func (h *Handler) writeError(w http.ResponseWriter, r *http.Request, err error) {
	var menuErr *menu.Error
	var inErr inputError
	switch {
	case errors.As(err, &menuErr):
		status := menuErr.StatusCode
		if status == 0 {
			status = http.StatusBadRequest
		}
		response.ErrorWithDetails(w, status, string(menuErr.Code), menuErr.Message, menuErr.Details)
	case errors.As(err, &inErr):
		response.Error(w, http.StatusBadRequest, "VALIDATION_ERROR", inErr.Error())
	case errors.Is(err, errMissingParam):
		response.Error(w, http.StatusBadRequest, "VALIDATION_ERROR", "Missing path parameter")
	case errors.Is(err, store.ErrNotFound):
		response.Error(w, http.StatusNotFound, "NOT_FOUND", "Resource not found")
	case errors.Is(err, store.ErrInUse):
		response.Error(w, http.StatusConflict, "IN_USE", "This record is still referenced and cannot be deleted")
	case errors.Is(err, store.ErrDuplicate):
		response.Error(w, http.StatusConflict, "CONFLICT", "A record with the same values already exists")
	case errors.Is(err, store.ErrInvalidReference):
		response.Error(w, http.StatusBadRequest, "INVALID_REFERENCE", "A referenced record does not exist")
	case errors.Is(err, store.ErrVersionConflict):
		response.Error(w, http.StatusConflict, "VERSION_CONFLICT", "This booking was changed by someone else. Reload and try again.")
	case errors.Is(err, services.ErrForbidden):
		response.Error(w, http.StatusForbidden, "FORBIDDEN", "You do not have access to this booking")
	case errors.Is(err, services.ErrBookingLocked):
		response.Error(w, http.StatusConflict, "BOOKING_LOCKED", "The menu for this booking has already been submitted")
	case errors.Is(err, services.ErrPublishingDisabled):
		response.Error(w, http.StatusServiceUnavailable, "PUBLISHING_DISABLED", "Menu publishing is not configured")
	default:
		h.Logger.Error("request failed",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.String("requestId", middleware.GetRequestID(r.Context())),
			zap.Error(err),
		)
		response.Error(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Something went wrong. Please try again.")
	}
}
