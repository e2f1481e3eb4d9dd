package server

import (
	"net/http"

	"github.com/rotisserie/eris"

	"github.com/foodmatch/matchd/internal/auth"
	"github.com/foodmatch/matchd/internal/model"
)

func (s *Server) handleRegister(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Email          string `json:"email"`
		Password       string `json:"password"`
		Name           string `json:"name"`
		OrganizationID int64  `json:"organization_id"`
	}
	if err := decodeBody(r, &req); err != nil {
		writeError(w, err)
		return
	}
	sess, err := s.auth.Register(r.Context(), req.Email, req.Password, req.Name, req.OrganizationID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, sess)
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Email    string `json:"email"`
		Password string `json:"password"`
	}
	if err := decodeBody(r, &req); err != nil {
		writeError(w, err)
		return
	}
	if req.Email == "" || req.Password == "" {
		writeError(w, eris.Wrap(model.ErrInvalidInput, "email and password required"))
		return
	}
	sess, err := s.auth.Login(r.Context(), req.Email, req.Password)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, sess)
}

func (s *Server) handleMe(w http.ResponseWriter, r *http.Request) {
	user, ok := auth.UserFromContext(r.Context())
	if !ok {
		writeError(w, eris.Wrap(model.ErrUnauthorized, "login required"))
		return
	}
	writeJSON(w, http.StatusOK, map[string]*model.User{"user": user})
}

func (s *Server) handleMakeAdmin(w http.ResponseWriter, r *http.Request) {
	user, ok := auth.UserFromContext(r.Context())
	if !ok {
		writeError(w, eris.Wrap(model.ErrUnauthorized, "login required"))
		return
	}
	var req struct {
		Secret string `json:"secret"`
	}
	if err := decodeBody(r, &req); err != nil {
		writeError(w, err)
		return
	}
	if err := s.auth.MakeAdmin(r.Context(), user.ID, req.Secret); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"message": "admin access granted"})
}
