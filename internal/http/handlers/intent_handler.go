package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/voicepay/go-voicepay-backend/internal/http/middleware"
	"github.com/voicepay/go-voicepay-backend/internal/services"
)

// IntentHandler exposes the voice-intent parsing endpoint.
type IntentHandler struct {
	Intents *services.IntentService
}

// NewIntentHandler constructs an IntentHandler.
func NewIntentHandler(svc *services.IntentService) *IntentHandler {
	return &IntentHandler{Intents: svc}
}

type parseIntentRequest struct {
	Text string `json:"text" binding:"required"`
}

// Parse handles POST /intent/parse-intent: runs the utterance through the
// parser, resolves the payee against the caller's address book, and returns
// the canonical intent for client-side confirmation. Nothing is persisted.
func (h *IntentHandler) Parse(c *gin.Context) {
	var req parseIntentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, CodeValidation, "text is required")
		return
	}

	user := middleware.UserFrom(c)
	intent, err := h.Intents.Parse(c.Request.Context(), user, req.Text)
	if err != nil {
		failFromErr(c, err)
		return
	}
	ok(c, http.StatusOK, gin.H{
		"status":       "ok",
		"parsedIntent": intent,
	})
}
