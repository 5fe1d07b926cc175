package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/voicepay/go-voicepay-backend/internal/chain"
	"github.com/voicepay/go-voicepay-backend/internal/http/middleware"
	"github.com/voicepay/go-voicepay-backend/internal/nlp"
	"github.com/voicepay/go-voicepay-backend/internal/services"
	"github.com/voicepay/go-voicepay-backend/internal/shard"
)

// Stable machine-readable error codes used in ErrorResponse.Code.
const (
	CodeValidation       = "validation"
	CodeNotFound         = "not_found"
	CodeDuplicate        = "duplicate"
	CodeAmbiguous        = "ambiguous_recipient"
	CodeRecipientMissing = "recipient_missing"
	CodeUnauthorized     = "unauthorized"
	CodeForbidden        = "forbidden"
	CodeTimeout          = "timeout"
	CodeChainRevert      = "chain_revert"
	CodeRPCUnavailable   = "rpc_unavailable"
	CodeInternal         = "internal"

	// Transport-level codes used by router fallbacks.
	CodeMethodNotAllowed = "method_not_allowed"
)

// failFromErr maps service-layer errors onto the HTTP error envelope. Unknown
// errors become an opaque 500; ambiguity carries the candidate names so the
// client can ask the user to pick one.
func failFromErr(c *gin.Context, err error) {
	var amb *shard.AmbiguousError
	if errors.As(err, &amb) {
		reqID := c.Writer.Header().Get("X-Request-ID")
		c.AbortWithStatusJSON(http.StatusConflict, gin.H{
			"request_id": reqID,
			"code":       CodeAmbiguous,
			"message":    amb.Error(),
			"options":    amb.Options,
		})
		return
	}

	switch {
	case errors.Is(err, services.ErrEmptyName),
		errors.Is(err, services.ErrInvalidWallet),
		errors.Is(err, services.ErrInvalidSchedule),
		errors.Is(err, services.ErrInvalidTransaction),
		errors.Is(err, services.ErrInvalidIntent),
		errors.Is(err, nlp.ErrUnparsable):
		fail(c, http.StatusBadRequest, CodeValidation, err.Error())
	case errors.Is(err, services.ErrRecipientNotFound),
		errors.Is(err, services.ErrScheduleNotFound):
		fail(c, http.StatusNotFound, CodeNotFound, err.Error())
	case errors.Is(err, services.ErrDuplicateWallet):
		fail(c, http.StatusConflict, CodeDuplicate, err.Error())
	case errors.Is(err, services.ErrRecipientMissing):
		fail(c, http.StatusUnprocessableEntity, CodeRecipientMissing, err.Error())
	case errors.Is(err, services.ErrNoNonce),
		errors.Is(err, services.ErrInvalidSignature):
		fail(c, http.StatusUnauthorized, CodeUnauthorized, err.Error())
	case errors.Is(err, chain.ErrReverted):
		fail(c, http.StatusBadGateway, CodeChainRevert, err.Error())
	case errors.Is(err, chain.ErrRPCUnavailable):
		fail(c, http.StatusBadGateway, CodeRPCUnavailable, err.Error())
	default:
		lg := middleware.LoggerFrom(c)
		lg.Error().Err(err).Msg("unhandled service error")
		fail(c, http.StatusInternalServerError, CodeInternal, "internal server error")
	}
}
