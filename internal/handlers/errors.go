package handlers

import (
	"encoding/json"
	"errors"
	"net/http"

	"go.uber.org/zap"

	"receipts-backend/internal/storage"
)

// errorBody is the platform-wide error envelope.
type errorBody struct {
	Code    string         `json:"code"`
	Message string         `json:"message"`
	Details map[string]any `json:"details,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code, message string) {
	writeJSON(w, status, map[string]any{
		"error": errorBody{Code: code, Message: message},
	})
}

func writeValidationError(w http.ResponseWriter, message string) {
	writeError(w, http.StatusBadRequest, "VALIDATION_ERROR", message)
}

func writeForbidden(w http.ResponseWriter, message string) {
	writeError(w, http.StatusForbidden, "FORBIDDEN", message)
}

// writeStorageError translates storage sentinel errors into the envelope.
// Unknown errors become a 500 and are logged by the caller.
func (h *Handler) writeStorageError(w http.ResponseWriter, operation string, err error) {
	switch {
	case errors.Is(err, storage.ErrOrgNotFound),
		errors.Is(err, storage.ErrDepartmentNotFound),
		errors.Is(err, storage.ErrMemberNotFound),
		errors.Is(err, storage.ErrUserNotFound):
		writeError(w, http.StatusNotFound, "NOT_FOUND", err.Error())
	case errors.Is(err, storage.ErrInviteNotFound),
		errors.Is(err, storage.ErrInviteAlreadyAccepted):
		// Unknown and already-used tokens answer identically so a prober
		// cannot learn whether a token ever existed.
		writeError(w, http.StatusNotFound, "NOT_FOUND", "invite not found")
	case errors.Is(err, storage.ErrSlugTaken),
		errors.Is(err, storage.ErrDuplicateMember),
		errors.Is(err, storage.ErrLastAdmin):
		writeError(w, http.StatusConflict, "CONFLICT", err.Error())
	case errors.Is(err, storage.ErrInviteExpired):
		writeError(w, http.StatusGone, "INVITE_EXPIRED", "invite has expired, ask for a new one")
	default:
		h.logger.Error("storage operation failed", zap.String("operation", operation), zap.Error(err))
		writeError(w, http.StatusInternalServerError, "INTERNAL_ERROR", "internal error")
	}
}
