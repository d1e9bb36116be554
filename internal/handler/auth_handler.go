package handler

import (
	"encoding/json"
	"net/http"

	"cpq-engine-api/internal/apperr"
	"cpq-engine-api/internal/service"
)

// AuthHandler issues session tokens for actor identities.
type AuthHandler struct {
	auth *service.ActorAuthService
}

// NewAuthHandler creates a new AuthHandler.
func NewAuthHandler(auth *service.ActorAuthService) *AuthHandler {
	return &AuthHandler{auth: auth}
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type loginResponse struct {
	Token string `json:"token"`
	Role  string `json:"role"`
}

// Login authenticates an actor by email and password and returns a signed
// JWT on success.
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, r, apperr.NewDomainError(apperr.CodeBadInput, "malformed request body", nil))
		return
	}

	token, actor, err := h.auth.Login(r.Context(), req.Email, req.Password)
	if err != nil {
		if err == service.ErrInvalidCredentials {
			writeError(w, r, apperr.NewDomainError(apperr.CodeUnauthenticated, "invalid email or password", nil))
			return
		}
		writeError(w, r, apperr.NewApplicationError(apperr.CodePersistence, "actor-repository", "failed to load actor", "", err))
		return
	}

	writeJSON(w, http.StatusOK, loginResponse{Token: token, Role: actor.Role})
}
