// Package repo implements the data persistence layer for domain entities,
// backed by GORM. This file provides repository functions for per-user
// AuthState (the single-use login nonce).
package repo

import (
	"context"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/voicepay/go-voicepay-backend/internal/domain"
)

// SetNonce stores a freshly issued nonce for the address, overwriting any
// prior unconsumed one.
func SetNonce(ctx context.Context, db *gorm.DB, userAddr, nonce string) error {
	st := &domain.AuthState{
		UserAddress: userAddr,
		Nonce:       &nonce,
		UpdatedAt:   time.Now().UTC(),
	}
	return db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "user_address"}},
			DoUpdates: clause.AssignmentColumns([]string{"nonce", "updated_at"}),
		}).
		Create(st).Error
}

// GetNonce returns the currently stored nonce for the address and the time
// it was issued, or ErrNotFound when none is outstanding.
func GetNonce(ctx context.Context, db *gorm.DB, userAddr string) (string, time.Time, error) {
	var st domain.AuthState
	err := db.WithContext(ctx).
		Where("user_address = ?", userAddr).
		First(&st).Error
	if err != nil {
		return "", time.Time{}, err
	}
	if st.Nonce == nil || *st.Nonce == "" {
		return "", time.Time{}, ErrNotFound
	}
	return *st.Nonce, st.UpdatedAt, nil
}

// ClearNonce consumes the nonce after a successful verify.
func ClearNonce(ctx context.Context, db *gorm.DB, userAddr string) error {
	return db.WithContext(ctx).
		Model(&domain.AuthState{}).
		Where("user_address = ?", userAddr).
		Updates(map[string]any{"nonce": nil, "updated_at": time.Now().UTC()}).Error
}
