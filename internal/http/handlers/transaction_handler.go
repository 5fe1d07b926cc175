package handlers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/voicepay/go-voicepay-backend/internal/http/middleware"
	"github.com/voicepay/go-voicepay-backend/internal/repo"
	"github.com/voicepay/go-voicepay-backend/internal/services"
	"github.com/voicepay/go-voicepay-backend/internal/utils"
)

// Pagination bounds for history reads.
const (
	defaultPageSize = 20
	maxPageSize     = 100
)

// TransactionHandler exposes transaction history and recurring-schedule
// management.
type TransactionHandler struct {
	Transactions *services.TransactionService
	Schedules    *services.ScheduleService

	// DB backs the idempotency replay lookups.
	DB      *gorm.DB
	IdemTTL time.Duration

	// ContractAddress is the recurring-payments contract the client must
	// approve before a schedule can pull funds.
	ContractAddress string
}

// NewTransactionHandler constructs a TransactionHandler.
func NewTransactionHandler(txs *services.TransactionService, scheds *services.ScheduleService, db *gorm.DB, idemTTL time.Duration, contractAddr string) *TransactionHandler {
	if idemTTL <= 0 {
		idemTTL = 24 * time.Hour
	}
	return &TransactionHandler{Transactions: txs, Schedules: scheds, DB: db, IdemTTL: idemTTL, ContractAddress: contractAddr}
}

type storeTransactionRequest struct {
	Type       string          `json:"type" binding:"required"`
	Name       string          `json:"name"`
	Address    string          `json:"address" binding:"required"`
	Amount     decimal.Decimal `json:"amount"`
	Currency   string          `json:"currency"`
	Status     string          `json:"status" binding:"required"`
	TxHash     *string         `json:"tx_hash"`
	ScheduleID *string         `json:"schedule_id"`
	Note       string          `json:"note"`
}

type setupRecurringRequest struct {
	Name       string          `json:"name"`
	Recipient  string          `json:"recipient" binding:"required"`
	Amount     decimal.Decimal `json:"amount"`
	Currency   string          `json:"currency"`
	Interval   string          `json:"interval"`
	IntervalMs *int64          `json:"interval_ms"`
	StartDate  string          `json:"start_date" binding:"required"`
	TimeOfDay  string          `json:"time_of_day"`
	Times      *int            `json:"times"`
	Note       string          `json:"note"`
}

// List handles GET /transactions: one page of history, newest first.
// Query params: page (1-based) and page_size.
func (h *TransactionHandler) List(c *gin.Context) {
	user := middleware.UserFrom(c)
	page := utils.AtoiDefault(c.Query("page"), 1)
	size := utils.AtoiDefault(c.Query("page_size"), defaultPageSize)
	if size > maxPageSize {
		size = maxPageSize
	}

	items, total, err := h.Transactions.ListPage(c.Request.Context(), user, page, size)
	if err != nil {
		failFromErr(c, err)
		return
	}
	ok(c, http.StatusOK, gin.H{
		"transactions": items,
		"total":        total,
		"page":         page,
		"page_size":    size,
	})
}

// Store handles POST /transactions/store: records a transfer the client
// already executed (one-shot sends happen in the user's wallet, not here).
func (h *TransactionHandler) Store(c *gin.Context) {
	var req storeTransactionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, CodeValidation, "type, address and status are required")
		return
	}
	user := middleware.UserFrom(c)
	ctx := c.Request.Context()

	// Idempotency (replay path) – read validated key if present.
	idemKey, _ := middleware.GetIdempotencyKey(c)
	if idemKey != "" && h.DB != nil {
		if rec, err := repo.GetIdempotency(ctx, h.DB, user, idemKey, time.Now().UTC()); err == nil && rec != nil {
			if prev, err2 := repo.GetTransaction(ctx, h.DB, user, rec.RefID); err2 == nil {
				c.Header("Idempotency-Replayed", "true")
				ok(c, http.StatusCreated, prev)
				return
			}
		}
	}

	tx, err := h.Transactions.Store(ctx, user, services.StoreTransactionInput{
		Type:       req.Type,
		Name:       req.Name,
		Address:    req.Address,
		Amount:     req.Amount,
		Currency:   req.Currency,
		Status:     req.Status,
		TxHash:     req.TxHash,
		ScheduleID: req.ScheduleID,
		Note:       req.Note,
	})
	if err != nil {
		failFromErr(c, err)
		return
	}

	// Idempotency (store path) – best effort.
	if idemKey != "" && h.DB != nil {
		_, _ = repo.CreateIdempotency(ctx, h.DB, user, idemKey, tx.ID, http.StatusCreated, h.IdemTTL)
	}
	ok(c, http.StatusCreated, tx)
}

// SetupRecurring handles POST /transactions/setup-recurring: persists a new
// schedule and registers it with the dispatcher. The response carries the
// contract address the client must hold an allowance against.
func (h *TransactionHandler) SetupRecurring(c *gin.Context) {
	var req setupRecurringRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, CodeValidation, "recipient and start_date are required")
		return
	}
	user := middleware.UserFrom(c)
	ctx := c.Request.Context()

	// Idempotency (replay path) – a retried setup returns the schedule the
	// first attempt created instead of registering a second one.
	idemKey, _ := middleware.GetIdempotencyKey(c)
	if idemKey != "" && h.DB != nil {
		if rec, err := repo.GetIdempotency(ctx, h.DB, user, idemKey, time.Now().UTC()); err == nil && rec != nil {
			if prev, err2 := repo.GetSchedule(ctx, h.DB, user, rec.RefID); err2 == nil {
				c.Header("Idempotency-Replayed", "true")
				ok(c, http.StatusCreated, gin.H{
					"ok":              true,
					"schedule":        prev,
					"contractAddress": h.ContractAddress,
				})
				return
			}
		}
	}

	sched, err := h.Schedules.Create(ctx, user, services.CreateScheduleInput{
		Name:       req.Name,
		Recipient:  req.Recipient,
		Amount:     req.Amount,
		Currency:   req.Currency,
		Interval:   req.Interval,
		IntervalMs: req.IntervalMs,
		StartDate:  req.StartDate,
		TimeOfDay:  req.TimeOfDay,
		Times:      req.Times,
		Note:       req.Note,
	})
	if err != nil && err != services.ErrIndexWrite {
		failFromErr(c, err)
		return
	}
	if err == services.ErrIndexWrite {
		// Schedule persisted; the reconcile pass registers it shortly.
		lg := middleware.LoggerFrom(c)
		lg.Warn().Str("schedule_id", sched.ID).Msg("index write deferred to reconcile")
	}

	// Idempotency (store path) – best effort.
	if idemKey != "" && h.DB != nil {
		_, _ = repo.CreateIdempotency(ctx, h.DB, user, idemKey, sched.ID, http.StatusCreated, h.IdemTTL)
	}
	ok(c, http.StatusCreated, gin.H{
		"ok":              true,
		"schedule":        sched,
		"contractAddress": h.ContractAddress,
	})
}

// ListRecurring handles GET /transactions/recurring: the user's schedules.
func (h *TransactionHandler) ListRecurring(c *gin.Context) {
	user := middleware.UserFrom(c)
	items, err := h.Schedules.List(c.Request.Context(), user)
	if err != nil {
		failFromErr(c, err)
		return
	}
	ok(c, http.StatusOK, gin.H{"schedules": items})
}

// CancelRecurring handles DELETE /transactions/recurring/:id.
func (h *TransactionHandler) CancelRecurring(c *gin.Context) {
	user := middleware.UserFrom(c)
	if err := h.Schedules.Cancel(c.Request.Context(), user, c.Param("id")); err != nil {
		failFromErr(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}
