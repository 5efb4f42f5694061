package server

import (
	"net/http"

	"librarium/pkg/domain"
)

type registerRequest struct {
	Name     string `json:"name"`
	Email    string `json:"email"`
	Password string `json:"password"`
	UserType *int   `json:"user_type"`
}

func (s *Server) handleRegister(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w)
		return
	}
	if !s.allowRate(w, r, s.registerLimiter) {
		return
	}
	var req registerRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	userType := domain.UserType(-1)
	if req.UserType != nil {
		userType = domain.UserType(*req.UserType)
	}
	user, err := s.app.Register(r.Context(), req.Name, req.Email, req.Password, userType)
	if err != nil {
		writeAppError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, user)
}

func (s *Server) handleActivate(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w)
		return
	}
	userID, ok := pathID(r, "/activate/")
	if !ok {
		writeError(w, http.StatusNotFound, "not found")
		return
	}
	token := r.URL.Query().Get("token")
	alreadyActive, err := s.app.Activate(userID, token)
	if err != nil {
		writeAppError(w, err)
		return
	}
	msg := "User activated successfully."
	if alreadyActive {
		msg = "User is active."
	}
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte(msg))
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type loginResponse struct {
	Token    string          `json:"token"`
	ID       string          `json:"id"`
	UserType domain.UserType `json:"user_type"`
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w)
		return
	}
	if !s.allowRate(w, r, s.loginLimiter) {
		return
	}
	var req loginRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	user, token, err := s.app.Login(req.Email, req.Password)
	if err != nil {
		writeAppError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, loginResponse{Token: token, ID: user.ID, UserType: user.UserType})
}

func (s *Server) handleLogout(w http.ResponseWriter, r *http.Request, _ domain.User) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w)
		return
	}
	// Tokens are stateless; logout just acknowledges so clients can
	// discard theirs.
	writeJSON(w, http.StatusOK, map[string]string{"message": "success"})
}

func (s *Server) handleDeleteSelf(w http.ResponseWriter, r *http.Request, caller domain.User) {
	if r.Method != http.MethodDelete {
		methodNotAllowed(w)
		return
	}
	if err := s.app.DeleteSelf(caller); err != nil {
		writeAppError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleDeleteVisitor(w http.ResponseWriter, r *http.Request, caller domain.User) {
	if r.Method != http.MethodDelete {
		methodNotAllowed(w)
		return
	}
	targetID, ok := pathID(r, "/delete-visitor/")
	if !ok {
		writeError(w, http.StatusNotFound, "not found")
		return
	}
	if err := s.app.DeleteVisitor(caller, targetID); err != nil {
		writeAppError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
