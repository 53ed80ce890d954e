package web

import (
	"crypto/rand"
	"embed"
	"encoding/hex"
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/RahimMirani/scheduling-agent/internal/googleauth"
	"github.com/RahimMirani/scheduling-agent/internal/logging"
)

//go:embed static
var staticFS embed.FS

type chatRequest struct {
	Message string `json:"message"`
}

type chatResponse struct {
	Reply string `json:"reply"`
}

type errorResponse struct {
	Error string `json:"error"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logging.Logger().Warn("encode response", "error", err)
	}
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/" {
		http.NotFound(w, r)
		return
	}
	page, err := staticFS.ReadFile("static/index.html")
	if err != nil {
		http.Error(w, "page unavailable", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Write(page)
}

func (s *Server) handleChat(w http.ResponseWriter, r *http.Request) {
	var req chatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid JSON body"})
		return
	}
	if strings.TrimSpace(req.Message) == "" {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "message must not be empty"})
		return
	}
	if !s.auth.IsAuthenticated(r.Context()) {
		writeJSON(w, http.StatusUnauthorized, errorResponse{
			Error: "not authenticated with Google; visit /auth/login first",
		})
		return
	}

	reply, err := s.agent.HandleMessage(r.Context(), req.Message)
	if err != nil {
		if errors.Is(err, googleauth.ErrAuthRequired) {
			writeJSON(w, http.StatusUnauthorized, errorResponse{
				Error: "not authenticated with Google; visit /auth/login first",
			})
			return
		}
		logging.Logger().Error("chat turn failed", "error", err)
		writeJSON(w, http.StatusInternalServerError, errorResponse{Error: "internal error"})
		return
	}
	writeJSON(w, http.StatusOK, chatResponse{Reply: reply})
}

func (s *Server) handleReset(w http.ResponseWriter, r *http.Request) {
	s.agent.Reset()
	writeJSON(w, http.StatusOK, map[string]string{"status": "conversation cleared"})
}

func (s *Server) handleAuthStatus(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]bool{
		"authenticated": s.auth.IsAuthenticated(r.Context()),
	})
}

func (s *Server) redirectURI(r *http.Request) string {
	scheme := "http"
	if r.TLS != nil {
		scheme = "https"
	}
	return scheme + "://" + r.Host + "/auth/callback"
}

func (s *Server) handleAuthLogin(w http.ResponseWriter, r *http.Request) {
	state := randomState()
	url := s.auth.AuthURL(s.redirectURI(r), state)
	http.SetCookie(w, &http.Cookie{
		Name:     "oauth_state",
		Value:    state,
		Path:     "/auth",
		HttpOnly: true,
		MaxAge:   600,
	})
	writeJSON(w, http.StatusOK, map[string]string{"authorization_url": url})
}

func (s *Server) handleAuthCallback(w http.ResponseWriter, r *http.Request) {
	if errParam := r.URL.Query().Get("error"); errParam != "" {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "authorization refused: " + errParam})
		return
	}
	code := r.URL.Query().Get("code")
	if code == "" {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "missing authorization code"})
		return
	}
	cookie, err := r.Cookie("oauth_state")
	if err != nil || cookie.Value == "" || cookie.Value != r.URL.Query().Get("state") {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "state mismatch"})
		return
	}
	if err := s.auth.Exchange(r.Context(), code, s.redirectURI(r)); err != nil {
		logging.Logger().Error("token exchange failed", "error", err)
		writeJSON(w, http.StatusBadGateway, errorResponse{Error: "token exchange failed"})
		return
	}
	http.Redirect(w, r, "/", http.StatusFound)
}

func (s *Server) handleAuthLogout(w http.ResponseWriter, r *http.Request) {
	if err := s.auth.Logout(); err != nil {
		logging.Logger().Error("logout failed", "error", err)
		writeJSON(w, http.StatusInternalServerError, errorResponse{Error: "logout failed"})
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "logged out"})
}

func randomState() string {
	b := make([]byte, 16)
	if _, err := rand.Read(b); err != nil {
		return "state"
	}
	return hex.EncodeToString(b)
}
