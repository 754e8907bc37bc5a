package handler

import (
	"crypto/subtle"
	"encoding/json"
	"log"
	"net/http"
	"strings"

	"portal-rest-api/internal/middleware"
	"portal-rest-api/internal/model"
	"portal-rest-api/internal/service"
	"portal-rest-api/pkg/apierror"
	"portal-rest-api/pkg/response"
)

// AuthHandler handles authentication-related HTTP requests.
type AuthHandler struct {
	tokenService *service.TokenService
	loginKey     string
}

// NewAuthHandler creates a new auth handler. An empty loginKey disables login.
func NewAuthHandler(tokenService *service.TokenService, loginKey string) *AuthHandler {
	return &AuthHandler{
		tokenService: tokenService,
		loginKey:     loginKey,
	}
}

// LoginRequest represents the request body for admin login.
type LoginRequest struct {
	Key     string `json:"key"`
	Subject string `json:"subject"`
}

// TokenResponse represents the response for token generation.
type TokenResponse struct {
	Token     string          `json:"token"`
	ExpiresIn int             `json:"expires_in"`
	Identity  *model.Identity `json:"identity"`
}

// Login handles POST /api/v1/auth/login. The key is read from X-Login-Key or
// the JSON body.
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	if h.tokenService == nil || h.loginKey == "" {
		response.Error(w, apierror.ServiceUnavailable("Admin login is not configured"))
		return
	}

	var req LoginRequest
	if r.ContentLength != 0 {
		if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxJSONBody)).Decode(&req); err != nil {
			response.Error(w, apierror.BadRequest("invalid request body"))
			return
		}
		defer r.Body.Close()
	}
	if key := r.Header.Get("X-Login-Key"); key != "" {
		req.Key = key
	}

	if req.Key == "" {
		response.Error(w, apierror.BadRequest("key is required"))
		return
	}
	if subtle.ConstantTimeCompare([]byte(req.Key), []byte(h.loginKey)) != 1 {
		log.Printf("[Auth] Failed login from %s", r.RemoteAddr)
		response.Error(w, apierror.Unauthorized("Invalid login key"))
		return
	}

	subject := strings.TrimSpace(req.Subject)
	if subject == "" {
		subject = model.RoleAdmin
	}

	token, identity, err := h.tokenService.GenerateToken(subject, model.RoleAdmin)
	if err != nil {
		log.Printf("[Auth] Failed to generate token: %v", err)
		response.Error(w, apierror.InternalError("failed to generate token"))
		return
	}

	response.OK(w, TokenResponse{
		Token:     token,
		ExpiresIn: int(h.tokenService.TTL().Seconds()),
		Identity:  identity,
	})
}

// Me handles GET /api/v1/auth/me
func (h *AuthHandler) Me(w http.ResponseWriter, r *http.Request) {
	identity := middleware.GetIdentity(r.Context())
	if identity == nil {
		response.Error(w, apierror.Unauthorized(""))
		return
	}
	response.OK(w, identity)
}

// RevokeToken handles POST /api/v1/auth/revoke. It revokes the token the
// request was authenticated with.
func (h *AuthHandler) RevokeToken(w http.ResponseWriter, r *http.Request) {
	identity := middleware.GetIdentity(r.Context())
	if identity == nil {
		response.Error(w, apierror.Unauthorized(""))
		return
	}

	if err := h.tokenService.RevokeToken(r.Context(), identity); err != nil {
		log.Printf("[Auth] Failed to revoke token %s: %v", identity.TokenID, err)
		response.Error(w, apierror.InternalError("failed to revoke token"))
		return
	}

	response.OK(w, map[string]string{"status": "revoked"})
}
