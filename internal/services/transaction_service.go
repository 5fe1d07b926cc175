// Package services – TransactionService
//
// Thin coordinator over the shard's append-only transaction history:
// validates store requests from the client (one-shot sends recorded by the
// frontend) and serves paginated history reads.
package services

import (
	"context"

	"github.com/ethereum/go-ethereum/common"
	"github.com/shopspring/decimal"

	"github.com/voicepay/go-voicepay-backend/internal/domain"
	"github.com/voicepay/go-voicepay-backend/internal/shard"
)

// StoreTransactionInput is the client-facing payload for recording a
// transaction.
type StoreTransactionInput struct {
	Type       string
	Name       string
	Address    string
	Amount     decimal.Decimal
	Currency   string
	Status     string
	TxHash     *string
	ScheduleID *string
	Note       string
}

// TransactionService validates and records history entries and serves reads.
type TransactionService struct {
	Shards *shard.Manager
}

// NewTransactionService constructs a TransactionService.
func NewTransactionService(shards *shard.Manager) *TransactionService {
	return &TransactionService{Shards: shards}
}

// Store validates and appends one history record to the user's shard.
func (s *TransactionService) Store(ctx context.Context, userAddr string, in StoreTransactionInput) (*domain.Transaction, error) {
	if in.Type != domain.TxTypeSendOnce && in.Type != domain.TxTypeRecurring {
		return nil, ErrInvalidTransaction
	}
	if in.Status != domain.TxStatusCompleted && in.Status != domain.TxStatusFailed {
		return nil, ErrInvalidTransaction
	}
	if !common.IsHexAddress(in.Address) {
		return nil, ErrInvalidTransaction
	}
	if in.Amount.Sign() <= 0 {
		return nil, ErrInvalidTransaction
	}
	currency := in.Currency
	if currency == "" {
		currency = domain.CurrencyUSDC
	}
	return s.Shards.For(userAddr).AppendTransaction(ctx, &domain.Transaction{
		Type:       in.Type,
		Name:       in.Name,
		Address:    in.Address,
		Amount:     in.Amount,
		Currency:   currency,
		Status:     in.Status,
		TxHash:     in.TxHash,
		ScheduleID: in.ScheduleID,
		Note:       in.Note,
	})
}

// ListPage returns one page of the user's history, newest first, plus the
// total count.
func (s *TransactionService) ListPage(ctx context.Context, userAddr string, page, pageSize int) ([]domain.Transaction, int64, error) {
	if page < 1 {
		page = 1
	}
	if pageSize <= 0 {
		pageSize = 20
	}
	offset := (page - 1) * pageSize
	return s.Shards.For(userAddr).TransactionsPage(ctx, offset, pageSize)
}

// List returns the full history, newest first. Prefer ListPage for large
// shards.
func (s *TransactionService) List(ctx context.Context, userAddr string) ([]domain.Transaction, error) {
	return s.Shards.For(userAddr).Transactions(ctx)
}
