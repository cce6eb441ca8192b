package devserver

import (
	"net/http"

	"github.com/erazemk/izposoja/internal/auth"
	"github.com/erazemk/izposoja/internal/model"
	"github.com/erazemk/izposoja/internal/remote"
)

type loginResponse struct {
	Token string     `json:"token"`
	User  model.User `json:"user"`
}

// login handles POST /api/auth/login.
func (s *Server) login(w http.ResponseWriter, r *http.Request) {
	var req remote.LoginRequest
	if err := decodeJSON(r, &req); err != nil {
		jsonError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Contact == "" || req.Password == "" {
		jsonError(w, http.StatusBadRequest, "contact and password required")
		return
	}

	user, err := s.store.GetUserByContact(r.Context(), req.Contact)
	if err != nil {
		s.failure(w, r, err)
		return
	}
	if user == nil || !auth.CheckPassword(user.Password, req.Password) {
		s.log.Warn("login failed", "contact", req.Contact, "remote", r.RemoteAddr)
		jsonError(w, http.StatusUnauthorized, "invalid credentials")
		return
	}
	if user.Status == model.UserStatusBanned {
		jsonError(w, http.StatusForbidden, "account is banned")
		return
	}

	token, err := auth.GenerateToken(s.secret, *user, s.clock.Now())
	if err != nil {
		jsonError(w, http.StatusInternalServerError, "failed to generate token")
		return
	}

	s.log.Info("user logged in", "user", user.ID, "role", user.Role)
	user.Password = ""
	jsonResponse(w, http.StatusOK, loginResponse{Token: token, User: *user})
}
