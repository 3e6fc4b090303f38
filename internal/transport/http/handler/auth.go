package handler

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/gram-sevak/internal/application/auth"
)

// TokenSigner issues a session token for a verified identity.
type TokenSigner interface {
	Sign(email string) (string, error)
}

// AuthHandler handles the email one-time code login endpoints.
type AuthHandler struct {
	svc    auth.Service
	tokens TokenSigner
}

// NewAuthHandler builds the handler. tokens may be nil, in which case a
// successful verification returns no session token.
func NewAuthHandler(svc auth.Service, tokens TokenSigner) *AuthHandler {
	return &AuthHandler{svc: svc, tokens: tokens}
}

type sendCodeRequest struct {
	Email string `json:"email"`
}

type verifyCodeRequest struct {
	Email string `json:"email"`
	Code  string `json:"otp"`
}

func (h *AuthHandler) SendCode(w http.ResponseWriter, r *http.Request) {
	var req sendCodeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if err := h.svc.RequestCode(r.Context(), req.Email); err != nil {
		httpError(w, r, err, "failed to send code")
		return
	}
	writeJSON(w, http.StatusOK, SuccessEnvelope{Success: true})
}

func (h *AuthHandler) VerifyCode(w http.ResponseWriter, r *http.Request) {
	var req verifyCodeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	identity, err := h.svc.VerifyCode(r.Context(), req.Email, req.Code)
	if err != nil {
		httpError(w, r, err, "failed to verify code")
		return
	}

	resp := SuccessEnvelope{Success: true}
	if h.tokens != nil {
		token, err := h.tokens.Sign(identity)
		if err != nil {
			slog.Error("failed to sign session token", "email", identity, "err", err)
			writeError(w, http.StatusInternalServerError, "failed to verify code")
			return
		}
		resp.Token = token
	}
	writeJSON(w, http.StatusOK, resp)
}
