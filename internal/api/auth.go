package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/nerrad567/garage-core/internal/auth"
)

// loginRequest is the request body for POST /auth/login.
type loginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// loginResponse is the response body for POST /auth/login.
type loginResponse struct {
	AccessToken string    `json:"access_token"`
	TokenType   string    `json:"token_type"`
	ExpiresIn   int       `json:"expires_in"`
	Username    string    `json:"username"`
	Role        auth.Role `json:"role"`
}

type changePasswordRequest struct {
	OldPassword string `json:"old_password"`
	NewPassword string `json:"new_password"`
}

type createUserRequest struct {
	Username string    `json:"username"`
	Password string    `json:"password"`
	Role     auth.Role `json:"role"`
}

// handleLogin authenticates a user and returns a JWT.
func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeBadRequest(w, "invalid JSON body")
		return
	}
	if req.Username == "" || req.Password == "" {
		writeBadRequest(w, "username and password are required")
		return
	}

	token, user, err := s.auth.Login(r.Context(), req.Username, req.Password)
	if err != nil {
		if errors.Is(err, auth.ErrInvalidCredentials) {
			s.logger.Warn("login failed", "username", req.Username)
			writeUnauthorized(w, "invalid credentials")
			return
		}
		s.logger.Error("login error", "error", err)
		writeInternalError(w, "login failed")
		return
	}

	s.logger.Info("user logged in", "user_id", user.ID, "username", user.Username)
	writeJSON(w, http.StatusOK, loginResponse{
		AccessToken: token,
		TokenType:   "Bearer",
		ExpiresIn:   int(s.auth.TokenTTL().Seconds()),
		Username:    user.Username,
		Role:        user.Role,
	})
}

// handleChangePassword replaces the caller's password.
func (s *Server) handleChangePassword(w http.ResponseWriter, r *http.Request) {
	var req changePasswordRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeBadRequest(w, "invalid JSON body")
		return
	}
	if req.OldPassword == "" || req.NewPassword == "" {
		writeBadRequest(w, "old_password and new_password are required")
		return
	}

	claims := claimsFromContext(r.Context())
	err := s.auth.ChangePassword(r.Context(), claims.Subject, req.OldPassword, req.NewPassword)
	switch {
	case err == nil:
	case errors.Is(err, auth.ErrWeakPassword):
		writeValidation(w, "new password must be at least 8 characters")
		return
	case errors.Is(err, auth.ErrInvalidCredentials):
		writeBadRequest(w, "current password is incorrect")
		return
	case errors.Is(err, auth.ErrUserNotFound):
		writeUnauthorized(w, "account no longer exists")
		return
	default:
		s.logger.Error("change password failed", "user_id", claims.Subject, "error", err)
		writeInternalError(w, "failed to change password")
		return
	}

	s.logger.Info("password changed", "user_id", claims.Subject)
	writeJSON(w, http.StatusOK, map[string]string{"message": "password updated"})
}

// handleCreateUser creates an account. Admin only.
func (s *Server) handleCreateUser(w http.ResponseWriter, r *http.Request) {
	var req createUserRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeBadRequest(w, "invalid JSON body")
		return
	}
	if req.Username == "" || req.Password == "" {
		writeBadRequest(w, "username and password are required")
		return
	}

	user, err := s.auth.CreateUser(r.Context(), req.Username, req.Password, req.Role)
	switch {
	case err == nil:
	case errors.Is(err, auth.ErrUsernameExists):
		writeConflict(w, "username already exists")
		return
	case errors.Is(err, auth.ErrInvalidUsername):
		writeValidation(w, "username must be 1-64 letters, digits, dots, dashes or underscores")
		return
	case errors.Is(err, auth.ErrInvalidRole):
		writeValidation(w, "role must be user or admin")
		return
	case errors.Is(err, auth.ErrWeakPassword):
		writeValidation(w, "password must be at least 8 characters")
		return
	default:
		s.logger.Error("create user failed", "error", err)
		writeInternalError(w, "failed to create user")
		return
	}

	claims := claimsFromContext(r.Context())
	s.logger.Info("user created", "user_id", user.ID, "username", user.Username, "role", user.Role, "created_by", claims.Subject)
	writeJSON(w, http.StatusCreated, user)
}
