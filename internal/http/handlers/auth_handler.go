package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/voicepay/go-voicepay-backend/internal/services"
)

// AuthHandler exposes the wallet-signature login flow.
type AuthHandler struct {
	Auth *services.AuthService
}

// NewAuthHandler constructs an AuthHandler.
func NewAuthHandler(auth *services.AuthService) *AuthHandler {
	return &AuthHandler{Auth: auth}
}

type nonceRequest struct {
	Address string `json:"address" binding:"required"`
}

type verifyRequest struct {
	Address   string `json:"address" binding:"required"`
	Signature string `json:"signature" binding:"required"`
}

// Nonce handles POST /auth/nonce: issues a fresh single-use login nonce and
// returns the exact message the wallet must personal-sign.
func (h *AuthHandler) Nonce(c *gin.Context) {
	var req nonceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, CodeValidation, "address is required")
		return
	}

	nonce, err := h.Auth.IssueNonce(c.Request.Context(), req.Address)
	if err != nil {
		failFromErr(c, err)
		return
	}
	ok(c, http.StatusOK, gin.H{
		"nonce":   nonce,
		"message": services.SignMessage(nonce),
	})
}

// Verify handles POST /auth/verify: checks the signature over the canonical
// message, consumes the nonce, and returns a bearer token.
func (h *AuthHandler) Verify(c *gin.Context) {
	var req verifyRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, CodeValidation, "address and signature are required")
		return
	}

	token, err := h.Auth.Verify(c.Request.Context(), req.Address, req.Signature)
	if err != nil {
		failFromErr(c, err)
		return
	}
	ok(c, http.StatusOK, gin.H{"token": token})
}
