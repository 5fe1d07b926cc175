package handlers

import (
	"errors"
	"net/http"

	"github.com/ethereum/go-ethereum/common"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/voicepay/go-voicepay-backend/internal/chain"
	"github.com/voicepay/go-voicepay-backend/internal/http/middleware"
	"github.com/voicepay/go-voicepay-backend/internal/scheduler"
)

// WorkerHandler is the executor bridge: the privileged endpoint the
// dispatcher calls to move funds for one schedule fire. Requests reach it
// only through the worker-HMAC middleware; history bookkeeping stays with
// the dispatcher, which owns the verdict.
type WorkerHandler struct {
	Executor chain.Executor

	// USDCAddress is the token contract pulled from.
	USDCAddress string
}

// NewWorkerHandler constructs a WorkerHandler.
func NewWorkerHandler(exec chain.Executor, usdcAddr string) *WorkerHandler {
	return &WorkerHandler{Executor: exec, USDCAddress: usdcAddr}
}

// ProcessRecurring handles POST /transactions/process-recurring. It validates
// the dispatch payload, submits the pullPayment, and reports the verdict:
//
//	200 {"ok":true,"txHash":...}          transfer confirmed
//	502 {"ok":false,"error":...,"code":...} revert or provider failure
func (h *WorkerHandler) ProcessRecurring(c *gin.Context) {
	var p scheduler.DispatchPayload
	if err := c.ShouldBindJSON(&p); err != nil {
		fail(c, http.StatusBadRequest, CodeValidation, "malformed dispatch payload")
		return
	}

	schedID, err := uuid.Parse(p.ScheduleID)
	if err != nil {
		fail(c, http.StatusBadRequest, CodeValidation, "scheduleId must be a UUID")
		return
	}
	if !common.IsHexAddress(p.UserAddress) || !common.IsHexAddress(p.Recipient) {
		fail(c, http.StatusBadRequest, CodeValidation, "invalid wallet address in payload")
		return
	}
	units, err := chain.USDCUnits(p.Amount)
	if err != nil {
		fail(c, http.StatusBadRequest, CodeValidation, err.Error())
		return
	}

	lg := middleware.LoggerFrom(c)
	txHash, err := h.Executor.PullPayment(c.Request.Context(), chain.PullPaymentRequest{
		Token:      common.HexToAddress(h.USDCAddress),
		From:       common.HexToAddress(p.UserAddress),
		To:         common.HexToAddress(p.Recipient),
		Amount:     units,
		ScheduleID: chain.ScheduleIDBytes(schedID),
	})
	if err != nil {
		code := CodeRPCUnavailable
		if errors.Is(err, chain.ErrReverted) {
			code = CodeChainRevert
		}
		lg.Warn().Err(err).Str("schedule_id", p.ScheduleID).Msg("pullPayment failed")
		c.JSON(http.StatusBadGateway, gin.H{
			"ok":     false,
			"txHash": txHash,
			"error":  err.Error(),
			"code":   code,
		})
		return
	}

	lg.Info().Str("schedule_id", p.ScheduleID).Str("tx_hash", txHash).Msg("pullPayment confirmed")
	ok(c, http.StatusOK, gin.H{"ok": true, "txHash": txHash})
}
