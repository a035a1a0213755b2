package response

import (
	"encoding/json"
	"net/http"
)

// Envelope is the body of every JSON response the service writes.
type Envelope struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data,omitempty"`
	Error   string          `json:"error,omitempty"`
	Message string          `json:"message,omitempty"`
	Details map[string]any  `json:"details,omitempty"`
}

func JSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func Success(w http.ResponseWriter, data any) {
	SuccessWithStatus(w, http.StatusOK, data, "")
}

func Created(w http.ResponseWriter, data any) {
	SuccessWithStatus(w, http.StatusCreated, data, "")
}

func SuccessWithStatus(w http.ResponseWriter, status int, data any, message string) {
	payload := map[string]any{
		"success": true,
		"data":    data,
	}
	if message != "" {
		payload["message"] = message
	}
	JSON(w, status, payload)
}

func Error(w http.ResponseWriter, status int, code string, message string) {
	ErrorWithDetails(w, status, code, message, nil)
}

func ErrorWithDetails(w http.ResponseWriter, status int, code string, message string, details map[string]any) {
	payload := map[string]any{
		"success": false,
		"error":   code,
		"message": message,
	}
	if len(details) > 0 {
		payload["details"] = details
	}
	JSON(w, status, payload)
}
