package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/voicepay/go-voicepay-backend/internal/http/middleware"
	"github.com/voicepay/go-voicepay-backend/internal/services"
)

// RecipientHandler exposes the per-user address book.
type RecipientHandler struct {
	Recipients *services.RecipientService
}

// NewRecipientHandler constructs a RecipientHandler.
func NewRecipientHandler(svc *services.RecipientService) *RecipientHandler {
	return &RecipientHandler{Recipients: svc}
}

type addRecipientRequest struct {
	Name   string `json:"name" binding:"required"`
	Wallet string `json:"wallet" binding:"required"`
	Note   string `json:"note"`
}

type updateRecipientRequest struct {
	Wallet    string  `json:"wallet" binding:"required"` // identifies the record
	NewWallet *string `json:"new_wallet"`
	NewName   *string `json:"new_name"`
	NewNote   *string `json:"new_note"`
}

// List handles GET /recipients.
func (h *RecipientHandler) List(c *gin.Context) {
	user := middleware.UserFrom(c)
	items, err := h.Recipients.List(c.Request.Context(), user)
	if err != nil {
		failFromErr(c, err)
		return
	}
	ok(c, http.StatusOK, gin.H{"recipients": items})
}

// Add handles POST /recipients.
func (h *RecipientHandler) Add(c *gin.Context) {
	var req addRecipientRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, CodeValidation, "name and wallet are required")
		return
	}
	user := middleware.UserFrom(c)
	r, err := h.Recipients.Add(c.Request.Context(), user, req.Name, req.Wallet, req.Note)
	if err != nil {
		failFromErr(c, err)
		return
	}
	ok(c, http.StatusCreated, r)
}

// Update handles PUT /recipients. The record is addressed by its current
// wallet; nil fields keep their stored values.
func (h *RecipientHandler) Update(c *gin.Context) {
	var req updateRecipientRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, CodeValidation, "wallet is required")
		return
	}
	user := middleware.UserFrom(c)
	r, err := h.Recipients.Update(c.Request.Context(), user, req.Wallet, req.NewWallet, req.NewName, req.NewNote)
	if err != nil {
		failFromErr(c, err)
		return
	}
	ok(c, http.StatusOK, r)
}

// Delete handles DELETE /recipients/:wallet.
func (h *RecipientHandler) Delete(c *gin.Context) {
	user := middleware.UserFrom(c)
	if err := h.Recipients.Delete(c.Request.Context(), user, c.Param("wallet")); err != nil {
		failFromErr(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}
