package handlers

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"canteen-menu-service/internal/auth"
	"canteen-menu-service/internal/store"
	"canteen-menu-service/pkg/response"
)

type loginPayload struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type sessionUser struct {
	ID    int64         `json:"id"`
	Email string        `json:"email"`
	Name  string        `json:"name"`
	Role  auth.UserRole `json:"role"`
}

type loginResult struct {
	Token     string      `json:"token"`
	ExpiresAt time.Time   `json:"expiresAt"`
	User      sessionUser `json:"user"`
}

func (h *Handler) Login(w http.ResponseWriter, r *http.Request) {
	var payload loginPayload
	if err := decodeJSON(r, &payload); err != nil {
		h.writeError(w, r, err)
		return
	}
	payload.Email = strings.TrimSpace(payload.Email)
	if payload.Email == "" || payload.Password == "" {
		response.Error(w, http.StatusBadRequest, "VALIDATION_ERROR", "Email and password are required")
		return
	}

	user, err := h.Store.FindUserByEmail(r.Context(), payload.Email)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			response.Error(w, http.StatusUnauthorized, "INVALID_CREDENTIALS", auth.ErrInvalidCredentials.Error())
			return
		}
		h.writeError(w, r, err)
		return
	}
	if err := auth.CheckPassword(user.PasswordHash, payload.Password); err != nil {
		response.Error(w, http.StatusUnauthorized, "INVALID_CREDENTIALS", auth.ErrInvalidCredentials.Error())
		return
	}

	role, ok := auth.ParseRole(user.Role)
	if !ok {
		response.Error(w, http.StatusForbidden, "FORBIDDEN", "Account role is not allowed to sign in")
		return
	}

	ttl := time.Duration(h.Config.JWTExpirySeconds) * time.Second
	token, expiresAt, err := auth.IssueAccessToken(user.ID, user.Email, role, h.Config.JWTSecret, ttl)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	response.Success(w, loginResult{
		Token:     token,
		ExpiresAt: expiresAt,
		User:      sessionUser{ID: user.ID, Email: user.Email, Name: user.Name, Role: role},
	})
}
