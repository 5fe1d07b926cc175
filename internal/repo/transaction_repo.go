// Package repo implements the data persistence layer for domain entities,
// backed by GORM. This file provides repository functions for the
// append-only Transaction history.
package repo

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/voicepay/go-voicepay-backend/internal/domain"
)

// AppendTransaction inserts a transaction record into the user's shard.
// Missing ID and Timestamp are filled in; rows are never updated afterwards.
func AppendTransaction(ctx context.Context, db *gorm.DB, tx *domain.Transaction) (*domain.Transaction, error) {
	if tx.ID == "" {
		tx.ID = uuid.NewString()
	}
	if tx.Timestamp.IsZero() {
		tx.Timestamp = time.Now().UTC()
	}
	if err := db.WithContext(ctx).Create(tx).Error; err != nil {
		return nil, err
	}
	return tx, nil
}

// GetTransaction fetches one transaction by ID within the user's shard.
// Returns ErrNotFound when absent. Used by the idempotent replay path.
func GetTransaction(ctx context.Context, db *gorm.DB, userAddr, id string) (*domain.Transaction, error) {
	var tx domain.Transaction
	err := db.WithContext(ctx).
		Where("user_address = ? AND id = ?", userAddr, id).
		First(&tx).Error
	if err != nil {
		return nil, err
	}
	return &tx, nil
}

// CountTransactions returns the number of transaction rows in the user's
// shard, for pagination metadata.
func CountTransactions(ctx context.Context, db *gorm.DB, userAddr string) (int64, error) {
	var total int64
	err := db.WithContext(ctx).
		Model(&domain.Transaction{}).
		Where("user_address = ?", userAddr).
		Count(&total).Error
	return total, err
}

// ListTransactionsPage returns a page of the user's transactions, newest
// first by timestamp.
func ListTransactionsPage(ctx context.Context, db *gorm.DB, userAddr string, offset, limit int) ([]domain.Transaction, error) {
	var out []domain.Transaction
	err := db.WithContext(ctx).
		Where("user_address = ?", userAddr).
		Order("timestamp desc").
		Offset(offset).
		Limit(limit).
		Find(&out).Error
	return out, err
}

// ListTransactions returns every transaction in the user's shard, newest
// first. Prefer ListTransactionsPage for large histories.
func ListTransactions(ctx context.Context, db *gorm.DB, userAddr string) ([]domain.Transaction, error) {
	var out []domain.Transaction
	err := db.WithContext(ctx).
		Where("user_address = ?", userAddr).
		Order("timestamp desc").
		Find(&out).Error
	return out, err
}
