package handler

import "net/http"

// HealthCheck handles GET /healthcheck.
func (h *Handler) HealthCheck(w http.ResponseWriter, r *http.Request) {
	h.writeJSON(w, http.StatusOK, map[string]string{"state": "OK"})
}

// RobotsTxt handles GET /robots.txt. Sync servers end up on the public
// internet; tell crawlers to stay out.
func (h *Handler) RobotsTxt(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain")
	w.Write([]byte("User-agent: *\nDisallow: /\n"))
}
