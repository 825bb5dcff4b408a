package server

import (
	"encoding/json"
	"errors"
	"net/http"

	"mathemelody/internal/database"
	"mathemelody/pkg/models"
)

// tokenResponse is the body returned by register and login.
type tokenResponse struct {
	Token string       `json:"token"`
	User  *models.User `json:"user"`
}

// handleRegister creates an account and returns a bearer token for it.
func (s *Server) handleRegister(w http.ResponseWriter, r *http.Request) {
	if !s.config.Auth.AllowRegistration {
		s.respondWithError(w, r, http.StatusForbidden, "Registration is disabled", nil)
		return
	}

	var req struct {
		Username string `json:"username"`
		Email    string `json:"email"`
		Password string `json:"password"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.respondWithError(w, r, http.StatusBadRequest, "Invalid JSON", err)
		return
	}

	if verr := validateUsername(req.Username); verr != nil {
		s.respondWithValidationError(w, r, verr)
		return
	}
	if verr := validateEmail(req.Email); verr != nil {
		s.respondWithValidationError(w, r, verr)
		return
	}
	if verr := validatePassword(req.Password); verr != nil {
		s.respondWithValidationError(w, r, verr)
		return
	}

	// Friendlier pre-checks; the UNIQUE constraints remain the backstop
	// against a racing registration.
	if taken, err := s.db.UsernameTaken(req.Username); err != nil {
		s.respondWithError(w, r, http.StatusInternalServerError, "Registration failed", err)
		return
	} else if taken {
		s.respondWithError(w, r, http.StatusConflict, "Username already taken", nil)
		return
	}
	if taken, err := s.db.EmailTaken(req.Email); err != nil {
		s.respondWithError(w, r, http.StatusInternalServerError, "Registration failed", err)
		return
	} else if taken {
		s.respondWithError(w, r, http.StatusConflict, "Email already registered", nil)
		return
	}

	hash, err := s.auth.HashPassword(req.Password)
	if err != nil {
		s.respondWithError(w, r, http.StatusInternalServerError, "Registration failed", err)
		return
	}

	id, err := s.db.CreateUser(req.Username, req.Email, hash)
	if err != nil {
		// The loser of a registration race lands here.
		s.respondWithError(w, r, http.StatusConflict, "Username or email already taken", err)
		return
	}

	user, err := s.db.GetUserByID(id)
	if err != nil {
		s.respondWithError(w, r, http.StatusInternalServerError, "Registration failed", err)
		return
	}

	token, err := s.auth.IssueToken(user.ID)
	if err != nil {
		s.respondWithError(w, r, http.StatusInternalServerError, "Registration failed", err)
		return
	}

	s.logger.WithField("username", user.Username).Info("User registered")
	s.respondJSON(w, http.StatusCreated, tokenResponse{Token: token, User: user})
}

// handleLogin verifies credentials and returns a bearer token. The failure
// shape never reveals whether the username exists.
func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Username string `json:"username"`
		Password string `json:"password"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.respondWithError(w, r, http.StatusBadRequest, "Invalid JSON", err)
		return
	}

	if req.Username == "" || req.Password == "" {
		s.respondWithError(w, r, http.StatusBadRequest, "Username and password required", nil)
		return
	}

	user, err := s.db.GetUserByUsername(req.Username)
	if err != nil {
		if errors.Is(err, database.ErrNotFound) {
			s.respondWithError(w, r, http.StatusUnauthorized, "Invalid credentials", nil)
			return
		}
		s.respondWithError(w, r, http.StatusInternalServerError, "Login failed", err)
		return
	}

	if !s.auth.CheckPassword(user.PasswordHash, req.Password) {
		s.logger.WithField("username", req.Username).Warn("Failed login attempt")
		s.respondWithError(w, r, http.StatusUnauthorized, "Invalid credentials", nil)
		return
	}

	token, err := s.auth.IssueToken(user.ID)
	if err != nil {
		s.respondWithError(w, r, http.StatusInternalServerError, "Login failed", err)
		return
	}

	s.logger.WithField("username", user.Username).Info("User logged in")
	s.respondJSON(w, http.StatusOK, tokenResponse{Token: token, User: user})
}

// handleMe returns the authenticated user's account.
func (s *Server) handleMe(w http.ResponseWriter, r *http.Request) {
	id, _ := userID(r)
	user, err := s.db.GetUserByID(id)
	if err != nil {
		if errors.Is(err, database.ErrNotFound) {
			// Token outlived the account
			s.respondWithError(w, r, http.StatusUnauthorized, "Invalid or expired token", nil)
			return
		}
		s.respondWithError(w, r, http.StatusInternalServerError, "Could not load user", err)
		return
	}
	s.respondJSON(w, http.StatusOK, user)
}
