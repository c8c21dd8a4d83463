package httpserver

import (
	"context"
	"crypto/tls"
	"net/http"
	"time"
)

// Server represents the HTTP server.
type Server struct {
	httpServer *http.Server
}

// New creates a new HTTP server.
func New(addr string, handler http.Handler) *Server {
	return &Server{
		httpServer: &http.Server{
			Addr:              addr,
			Handler:           handler,
			ReadHeaderTimeout: 10 * time.Second,
		},
	}
}

// ListenAndServe starts the HTTP server.
func (s *Server) ListenAndServe() error {
	return s.httpServer.ListenAndServe()
}

// ListenAndServeTLS starts the HTTPS server.
func (s *Server) ListenAndServeTLS(certFile, keyFile string) error {
	return s.httpServer.ListenAndServeTLS(certFile, keyFile)
}

// ListenAndServeTLSConfig starts the HTTPS server with an explicit TLS
// configuration, for callers that supply certificates dynamically.
func (s *Server) ListenAndServeTLSConfig(cfg *tls.Config) error {
	s.httpServer.TLSConfig = cfg
	return s.httpServer.ListenAndServeTLS("", "")
}

// Shutdown gracefully shuts down the server, draining in-flight
// requests.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}
