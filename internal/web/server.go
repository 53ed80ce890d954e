// Package web exposes the HTTP surface: the chat API, the OAuth login flow,
// health, metrics, and the embedded browser UI.
package web

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/RahimMirani/scheduling-agent/internal/logging"
)

// ChatAgent is the conversation surface the server drives.
type ChatAgent interface {
	HandleMessage(ctx context.Context, text string) (string, error)
	Reset()
}

// Authenticator is the credential-provider surface the auth routes drive.
type Authenticator interface {
	AuthURL(redirectURI, state string) string
	Exchange(ctx context.Context, code, redirectURI string) error
	IsAuthenticated(ctx context.Context) bool
	Logout() error
}

// Server hosts the chat API and auth flow for one local user.
type Server struct {
	agent ChatAgent
	auth  Authenticator
	addr  string

	httpServer *http.Server
}

// NewServer builds a Server listening on host:port.
func NewServer(agent ChatAgent, auth Authenticator, host string, port int) *Server {
	s := &Server{
		agent: agent,
		auth:  auth,
		addr:  net.JoinHostPort(host, fmt.Sprintf("%d", port)),
	}

	mux := http.NewServeMux()
	mux.HandleFunc("GET /health", s.handleHealth)
	mux.HandleFunc("POST /api/chat", s.handleChat)
	mux.HandleFunc("POST /api/reset", s.handleReset)
	mux.HandleFunc("GET /auth/status", s.handleAuthStatus)
	mux.HandleFunc("GET /auth/login", s.handleAuthLogin)
	mux.HandleFunc("GET /auth/callback", s.handleAuthCallback)
	mux.HandleFunc("GET /auth/logout", s.handleAuthLogout)
	mux.Handle("GET /metrics", promhttp.Handler())
	mux.HandleFunc("/", s.handleIndex)

	s.httpServer = &http.Server{
		Addr:              s.addr,
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}
	return s
}

// Handler returns the route tree, mainly for tests.
func (s *Server) Handler() http.Handler {
	return s.httpServer.Handler
}

// Run serves until ctx is canceled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		logging.Logger().Info("http server listening", "addr", s.addr)
		if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
			return
		}
		errCh <- nil
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := s.httpServer.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("shutdown http server: %w", err)
		}
		return <-errCh
	case err := <-errCh:
		return err
	}
}
