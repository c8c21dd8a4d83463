package handler

import (
	"net/http"

	"github.com/szaffarano/korrosync/internal/core/domain"
	"github.com/szaffarano/korrosync/internal/core/service"
)

// UpdateProgress handles PUT /syncs/progress.
func (h *Handler) UpdateProgress(w http.ResponseWriter, r *http.Request) {
	username := UsernameFromContext(r.Context())
	if username == "" {
		h.serviceError(w, r, domain.ErrUnauthorized)
		return
	}

	var req UpdateProgressRequest
	if !h.decodeBody(w, r, &req) {
		return
	}

	resp, err := h.syncSvc.Push(r.Context(), username, &service.PushRequest{
		Document:   req.Document,
		Progress:   req.Progress,
		Percentage: req.Percentage,
		Device:     req.Device,
		DeviceID:   req.DeviceID,
	})
	if err != nil {
		h.serviceError(w, r, err)
		return
	}

	h.writeJSON(w, http.StatusOK, UpdateProgressResponse{
		Document:  resp.Document,
		Timestamp: resp.Timestamp,
	})
}

// GetProgress handles GET /syncs/progress/{document}.
func (h *Handler) GetProgress(w http.ResponseWriter, r *http.Request) {
	username := UsernameFromContext(r.Context())
	if username == "" {
		h.serviceError(w, r, domain.ErrUnauthorized)
		return
	}

	document := r.PathValue("document")
	if document == "" {
		h.serviceError(w, r, domain.ErrInvalidArgument.WithDetails("document must not be empty"))
		return
	}

	resp, err := h.syncSvc.Pull(r.Context(), username, document)
	if err != nil {
		h.serviceError(w, r, err)
		return
	}

	h.writeJSON(w, http.StatusOK, ProgressResponse{
		Document:   resp.Document,
		Progress:   resp.Progress,
		Percentage: resp.Percentage,
		Device:     resp.Device,
		DeviceID:   resp.DeviceID,
		Timestamp:  resp.Timestamp,
	})
}
