package handler

import (
	"net/http"

	"github.com/szaffarano/korrosync/internal/core/domain"
	"github.com/szaffarano/korrosync/internal/core/service"
)

// CreateUser handles POST /users/create.
func (h *Handler) CreateUser(w http.ResponseWriter, r *http.Request) {
	var req CreateUserRequest
	if !h.decodeBody(w, r, &req) {
		return
	}

	resp, err := h.userSvc.Register(r.Context(), &service.RegisterRequest{
		Username: req.Username,
		Password: req.Password,
	})
	if err != nil {
		h.serviceError(w, r, err)
		return
	}

	h.writeJSON(w, http.StatusCreated, CreateUserResponse{Username: resp.Username})
}

// Authorize handles GET /users/auth. The gate middleware has already
// verified the credentials; reaching this handler means the caller is
// who they claim to be.
func (h *Handler) Authorize(w http.ResponseWriter, r *http.Request) {
	username := UsernameFromContext(r.Context())
	if username == "" {
		h.serviceError(w, r, domain.ErrUnauthorized)
		return
	}

	h.writeJSON(w, http.StatusOK, AuthorizeResponse{
		Authorized: "OK",
		Username:   username,
	})
}
