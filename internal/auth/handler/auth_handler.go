// Package handler exposes wallet challenge-response authentication over HTTP.
package handler

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"chain-audit/backend/internal/auth/service"
	"chain-audit/backend/internal/httpx"
	"chain-audit/backend/internal/security"
	validatordomain "chain-audit/backend/internal/validator/domain"
)

type AuthHandler struct {
	auth   *service.AuthService
	tokens *security.TokenProvider
}

func NewAuthHandler(auth *service.AuthService, tokens *security.TokenProvider) *AuthHandler {
	return &AuthHandler{auth: auth, tokens: tokens}
}

// Register mounts the auth routes on mux.
func (h *AuthHandler) Register(mux *http.ServeMux) {
	mux.HandleFunc("POST /api/v1/auth/challenge", h.challenge)
	mux.HandleFunc("POST /api/v1/auth/login", h.login)
	mux.HandleFunc("GET /api/v1/auth/me", h.me)
}

type challengeResponse struct {
	Nonce     string    `json:"nonce"`
	Message   string    `json:"message"`
	Purpose   string    `json:"purpose"`
	ExpiresAt time.Time `json:"expires_at"`
}

func (h *AuthHandler) challenge(w http.ResponseWriter, r *http.Request) {
	var in struct {
		Wallet  string `json:"wallet"`
		Purpose string `json:"purpose"`
	}
	if err := httpx.DecodeJSON(r, &in); err != nil {
		httpx.WriteError(w, http.StatusBadRequest, "INVALID_PAYLOAD", "invalid JSON body")
		return
	}
	c, err := h.auth.IssueChallenge(r.Context(), in.Wallet, in.Purpose)
	if err != nil {
		writeAuthError(w, err)
		return
	}
	httpx.WriteData(w, http.StatusCreated, challengeResponse{
		Nonce:     c.Nonce,
		Message:   c.Message,
		Purpose:   string(c.Purpose),
		ExpiresAt: c.ExpiresAt,
	})
}

type validatorResponse struct {
	ID             string `json:"id"`
	Name           string `json:"name"`
	Wallet         string `json:"wallet"`
	Active         bool   `json:"active"`
	ValidatedCount int    `json:"validated_count"`
}

func toValidatorResponse(v *validatordomain.Validator) validatorResponse {
	return validatorResponse{
		ID:             v.ID,
		Name:           v.Name,
		Wallet:         v.Wallet,
		Active:         v.Active,
		ValidatedCount: v.ValidatedCount,
	}
}

func (h *AuthHandler) login(w http.ResponseWriter, r *http.Request) {
	var in struct {
		Wallet    string `json:"wallet"`
		Nonce     string `json:"nonce"`
		Signature string `json:"signature"`
	}
	if err := httpx.DecodeJSON(r, &in); err != nil {
		httpx.WriteError(w, http.StatusBadRequest, "INVALID_PAYLOAD", "invalid JSON body")
		return
	}
	res, err := h.auth.AuthenticateLogin(r.Context(), in.Wallet, in.Nonce, in.Signature)
	if err != nil {
		writeAuthError(w, err)
		return
	}
	httpx.WriteData(w, http.StatusOK, map[string]any{
		"token":      res.Token,
		"expires_at": res.ExpiresAt,
		"validator":  toValidatorResponse(res.Validator),
	})
}

// me resolves the Bearer session token to its claims, letting clients check
// whether a stored session is still valid.
func (h *AuthHandler) me(w http.ResponseWriter, r *http.Request) {
	header := r.Header.Get("Authorization")
	token, ok := strings.CutPrefix(header, "Bearer ")
	if !ok || token == "" {
		httpx.WriteError(w, http.StatusUnauthorized, "INVALID_TOKEN", "missing bearer token")
		return
	}
	claims, err := h.tokens.ValidateSession(token)
	if err != nil {
		httpx.WriteError(w, http.StatusUnauthorized, "INVALID_TOKEN", "invalid or expired session")
		return
	}
	httpx.WriteData(w, http.StatusOK, map[string]any{
		"wallet":       claims.Wallet,
		"validator_id": claims.ValidatorID,
		"role":         claims.Role,
	})
}

// writeAuthError maps auth service sentinels to the wire. Authentication
// failures (actor, nonce, signature) all come back 401 with distinct codes.
func writeAuthError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, service.ErrMissingWallet):
		httpx.WriteError(w, http.StatusBadRequest, "MISSING_WALLET", err.Error())
	case errors.Is(err, service.ErrInvalidPurpose):
		httpx.WriteError(w, http.StatusBadRequest, "INVALID_PURPOSE", err.Error())
	case errors.Is(err, service.ErrUnauthorizedActor):
		httpx.WriteError(w, http.StatusUnauthorized, "INVALID_VALIDATOR", err.Error())
	case errors.Is(err, service.ErrInvalidNonce):
		httpx.WriteError(w, http.StatusUnauthorized, "INVALID_NONCE", err.Error())
	case errors.Is(err, service.ErrInvalidSignature):
		httpx.WriteError(w, http.StatusUnauthorized, "INVALID_SIGNATURE", err.Error())
	default:
		httpx.WriteError(w, http.StatusInternalServerError, "INTERNAL_ERROR", "internal server error")
	}
}
