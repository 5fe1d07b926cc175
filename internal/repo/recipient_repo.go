// Package repo implements the data persistence layer for domain entities,
// backed by GORM. This file provides repository functions for the Recipient
// model.
//
// All functions are context-aware and accept a *gorm.DB handle, making them
// safe for use within transactions or connection-scoped operations.
// They follow the "thin repository" approach: no business logic, only CRUD
// persistence and query composition.
//
// Error semantics:
//   - When a recipient is not found, functions return ErrNotFound
//     (an alias of gorm.ErrRecordNotFound).
//   - A wallet that already exists within the user's shard yields
//     ErrDuplicate, detected via the UNIQUE index on (user_address, wallet).
//   - On other DB errors the raw gorm error is propagated.
//
// Callers are expected to pass addresses already lowercased; the shard layer
// enforces that normalization.
package repo

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/voicepay/go-voicepay-backend/internal/domain"
)

// ErrNotFound is returned when a requested record does not exist.
// It aliases gorm.ErrRecordNotFound for convenience and consistency
// across the service layer and handlers.
var ErrNotFound = gorm.ErrRecordNotFound

// ErrDuplicate indicates a uniqueness violation, e.g. adding a recipient
// wallet that the user already has.
var ErrDuplicate = errors.New("duplicate")

// isUniqueViolation reports whether err is a UNIQUE constraint failure.
// glebarez/sqlite often returns plain-text errors for UNIQUE violations.
func isUniqueViolation(err error) bool {
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	low := strings.ToLower(err.Error())
	return strings.Contains(low, "unique constraint failed") ||
		strings.Contains(low, "constraint failed: unique")
}

// CreateRecipient inserts a new recipient into the user's shard. The row ID
// is a randomly generated UUID and CreatedAt is set to UTC. Returns
// ErrDuplicate when the wallet already exists for this user.
func CreateRecipient(ctx context.Context, db *gorm.DB, userAddr, name, wallet, note string) (*domain.Recipient, error) {
	r := &domain.Recipient{
		ID:          uuid.NewString(),
		UserAddress: userAddr,
		Name:        name,
		Wallet:      wallet,
		Note:        note,
		CreatedAt:   time.Now().UTC(),
	}
	if err := db.WithContext(ctx).Create(r).Error; err != nil {
		if isUniqueViolation(err) {
			return nil, ErrDuplicate
		}
		return nil, err
	}
	return r, nil
}

// ListRecipients returns all recipients in the user's shard ordered by name.
// It returns an empty slice when the shard has none.
func ListRecipients(ctx context.Context, db *gorm.DB, userAddr string) ([]domain.Recipient, error) {
	var out []domain.Recipient
	err := db.WithContext(ctx).
		Where("user_address = ?", userAddr).
		Order("name asc").
		Find(&out).Error
	return out, err
}

// GetRecipientByWallet fetches a recipient by wallet within the user's shard,
// or ErrNotFound if missing.
func GetRecipientByWallet(ctx context.Context, db *gorm.DB, userAddr, wallet string) (*domain.Recipient, error) {
	var r domain.Recipient
	err := db.WithContext(ctx).
		Where("user_address = ? AND wallet = ?", userAddr, wallet).
		First(&r).Error
	if err != nil {
		return nil, err
	}
	return &r, nil
}

// UpdateRecipient applies a patch to the recipient identified by oldWallet.
// Nil patch fields are left unchanged. Changing the wallet to one that
// already exists in the shard returns ErrDuplicate.
func UpdateRecipient(ctx context.Context, db *gorm.DB, userAddr, oldWallet string, newWallet, newName, newNote *string) (*domain.Recipient, error) {
	var r domain.Recipient
	err := db.WithContext(ctx).
		Where("user_address = ? AND wallet = ?", userAddr, oldWallet).
		First(&r).Error
	if err != nil {
		return nil, err
	}

	updates := map[string]any{}
	if newWallet != nil {
		updates["wallet"] = *newWallet
	}
	if newName != nil {
		updates["name"] = *newName
	}
	if newNote != nil {
		updates["note"] = *newNote
	}
	if len(updates) == 0 {
		return &r, nil
	}

	res := db.WithContext(ctx).Model(&r).Updates(updates)
	if res.Error != nil {
		if isUniqueViolation(res.Error) {
			return nil, ErrDuplicate
		}
		return nil, res.Error
	}
	return &r, nil
}

// DeleteRecipient removes the recipient with the given wallet from the user's
// shard. Returns ErrNotFound when no row matched.
func DeleteRecipient(ctx context.Context, db *gorm.DB, userAddr, wallet string) error {
	res := db.WithContext(ctx).
		Where("user_address = ? AND wallet = ?", userAddr, wallet).
		Delete(&domain.Recipient{})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}
