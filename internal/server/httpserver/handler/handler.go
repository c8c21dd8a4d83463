package handler

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/szaffarano/korrosync/internal/core/domain"
	"github.com/szaffarano/korrosync/internal/core/service"
)

// Handler carries the services the endpoints operate on.
type Handler struct {
	userSvc *service.UserService
	syncSvc *service.SyncService
	logger  *slog.Logger
}

// New creates a new Handler with the given services.
func New(userSvc *service.UserService, syncSvc *service.SyncService, logger *slog.Logger) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{
		userSvc: userSvc,
		syncSvc: syncSvc,
		logger:  logger,
	}
}

// writeJSON writes a JSON response.
func (h *Handler) writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		h.logger.Error("failed to encode response", "error", err)
	}
}

// writeError writes an error response. The domain code travels in a
// header so clients that only understand the sync protocol body are not
// confused by extra fields.
func (h *Handler) writeError(w http.ResponseWriter, status int, code, message string) {
	w.Header().Set("Content-Type", "application/json")
	if code != "" {
		w.Header().Set("X-Error-Code", code)
	}
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(ErrorResponse{Message: message})
}

// serviceError maps a domain error onto the wire.
func (h *Handler) serviceError(w http.ResponseWriter, r *http.Request, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, domain.ErrInvalidArgument):
		status = http.StatusBadRequest
	case errors.Is(err, domain.ErrUnauthorized):
		status = http.StatusUnauthorized
	case errors.Is(err, domain.ErrNotFound):
		status = http.StatusNotFound
	case errors.Is(err, domain.ErrAlreadyExists):
		status = http.StatusConflict
	case errors.Is(err, domain.ErrRateLimited):
		status = http.StatusTooManyRequests
	case errors.Is(err, domain.ErrStorageBusy):
		status = http.StatusServiceUnavailable
	}

	if status == http.StatusInternalServerError {
		h.logger.Error("request failed",
			"path", r.URL.Path,
			"error", err)
		// Do not leak storage internals to clients.
		h.writeError(w, status, domain.GetErrorCode(err), "internal server error")
		return
	}

	h.writeError(w, status, domain.GetErrorCode(err), err.Error())
}

// decodeBody decodes a JSON request body into target.
func (h *Handler) decodeBody(w http.ResponseWriter, r *http.Request, target any) bool {
	if err := json.NewDecoder(r.Body).Decode(target); err != nil {
		h.writeError(w, http.StatusBadRequest,
			domain.GetErrorCode(domain.ErrInvalidArgument), "malformed request body")
		return false
	}
	return true
}
