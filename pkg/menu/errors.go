package menu

import (
	"errors"
	"net/http"
)

type ErrorCode string

const (
	ErrItemLimitReached  ErrorCode = "ITEM_LIMIT_REACHED"
	ErrUnknownChoice     ErrorCode = "UNKNOWN_CHOICE"
	ErrDuplicateChoice   ErrorCode = "DUPLICATE_CHOICE"
	ErrInvalidItemLimit  ErrorCode = "INVALID_ITEM_LIMIT"
	ErrChoiceNotSelected ErrorCode = "CHOICE_NOT_SELECTED"
)

type Error struct {
	Code       ErrorCode
	Message    string
	StatusCode int
	Details    map[string]any
}

func (e *Error) Error() string {
	return e.Message
}

func newError(code ErrorCode, message string, status int, details map[string]any) *Error {
	return &Error{Code: code, Message: message, StatusCode: status, Details: details}
}

func ValidationError(code ErrorCode, message string, details map[string]any) *Error {
	return newError(code, message, http.StatusBadRequest, details)
}

func limitReached(linkID int64, limit int) *Error {
	details := map[string]any{"itemLimit": limit}
	if linkID != 0 {
		details["categoryMenuTypeId"] = linkID
	}
	return newError(ErrItemLimitReached, "Item limit reached for this category", http.StatusUnprocessableEntity, details)
}

func unknownChoice(icmtID int64) *Error {
	return ValidationError(ErrUnknownChoice, "Selected item is not available", map[string]any{"ICMT_Id": icmtID})
}

// HasCode reports whether err is a *Error carrying code.
func HasCode(err error, code ErrorCode) bool {
	var menuErr *Error
	if errors.As(err, &menuErr) {
		return menuErr.Code == code
	}
	return false
}

func NotSelected(icmtID int64) *Error {
	return newError(ErrChoiceNotSelected, "Item is not part of this booking's menu", http.StatusNotFound, map[string]any{"ICMT_Id": icmtID})
}
