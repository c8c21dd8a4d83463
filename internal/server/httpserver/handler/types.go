package handler

// Wire types of the KOReader sync protocol.

// ErrorResponse is the body of every error reply.
type ErrorResponse struct {
	Message string `json:"message"`
}

// CreateUserRequest is the request body for POST /users/create.
type CreateUserRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// CreateUserResponse is the response body for POST /users/create.
type CreateUserResponse struct {
	Username string `json:"username"`
}

// AuthorizeResponse is the response body for GET /users/auth.
type AuthorizeResponse struct {
	Authorized string `json:"authorized"`
	Username   string `json:"username"`
}

// UpdateProgressRequest is the request body for PUT /syncs/progress.
type UpdateProgressRequest struct {
	Document   string  `json:"document"`
	Progress   string  `json:"progress"`
	Percentage float64 `json:"percentage"`
	Device     string  `json:"device"`
	DeviceID   string  `json:"device_id"`
}

// UpdateProgressResponse is the response body for PUT /syncs/progress.
type UpdateProgressResponse struct {
	Document  string `json:"document"`
	Timestamp int64  `json:"timestamp"`
}

// ProgressResponse is the response body for GET /syncs/progress/{document}.
type ProgressResponse struct {
	Document   string  `json:"document"`
	Progress   string  `json:"progress"`
	Percentage float64 `json:"percentage"`
	Device     string  `json:"device"`
	DeviceID   string  `json:"device_id"`
	Timestamp  int64   `json:"timestamp"`
}
