// Package services – RecipientService
//
// Manages the per-user address book: add, list, update, delete, and
// name resolution for voice intents. Input validation and error mapping
// happen here; persistence and matching live in the shard layer.
package services

import (
	"context"
	"errors"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"gorm.io/gorm"

	"github.com/voicepay/go-voicepay-backend/internal/domain"
	"github.com/voicepay/go-voicepay-backend/internal/repo"
	"github.com/voicepay/go-voicepay-backend/internal/shard"
)

// RecipientService provides address-book operations scoped to a user shard.
type RecipientService struct {
	Shards *shard.Manager
}

// NewRecipientService constructs a RecipientService.
func NewRecipientService(shards *shard.Manager) *RecipientService {
	return &RecipientService{Shards: shards}
}

// List returns the user's recipients.
func (s *RecipientService) List(ctx context.Context, userAddr string) ([]domain.Recipient, error) {
	return s.Shards.For(userAddr).Recipients(ctx)
}

// Add inserts a recipient after validating the name and wallet. The wallet
// must be unique within the user's shard.
func (s *RecipientService) Add(ctx context.Context, userAddr, name, wallet, note string) (*domain.Recipient, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, ErrEmptyName
	}
	if !common.IsHexAddress(wallet) {
		return nil, ErrInvalidWallet
	}
	r, err := s.Shards.For(userAddr).AddRecipient(ctx, name, wallet, strings.TrimSpace(note))
	if errors.Is(err, repo.ErrDuplicate) {
		return nil, ErrDuplicateWallet
	}
	return r, err
}

// Update patches the recipient identified by oldWallet. Nil fields keep
// their current values.
func (s *RecipientService) Update(ctx context.Context, userAddr, oldWallet string, newWallet, newName, newNote *string) (*domain.Recipient, error) {
	if !common.IsHexAddress(oldWallet) {
		return nil, ErrInvalidWallet
	}
	if newWallet != nil && !common.IsHexAddress(*newWallet) {
		return nil, ErrInvalidWallet
	}
	if newName != nil && strings.TrimSpace(*newName) == "" {
		return nil, ErrEmptyName
	}
	r, err := s.Shards.For(userAddr).UpdateRecipient(ctx, oldWallet, newWallet, newName, newNote)
	switch {
	case errors.Is(err, gorm.ErrRecordNotFound):
		return nil, ErrRecipientNotFound
	case errors.Is(err, repo.ErrDuplicate):
		return nil, ErrDuplicateWallet
	}
	return r, err
}

// Delete removes the recipient with the given wallet.
func (s *RecipientService) Delete(ctx context.Context, userAddr, wallet string) error {
	if !common.IsHexAddress(wallet) {
		return ErrInvalidWallet
	}
	err := s.Shards.For(userAddr).DeleteRecipient(ctx, wallet)
	if errors.Is(err, repo.ErrNotFound) {
		return ErrRecipientNotFound
	}
	return err
}

// Resolve maps a spoken name onto a recipient. Ambiguity surfaces as
// *shard.AmbiguousError (with candidates); no match maps to
// ErrRecipientMissing.
func (s *RecipientService) Resolve(ctx context.Context, userAddr, query string) (*shard.Resolution, error) {
	res, err := s.Shards.For(userAddr).ResolveByName(ctx, query)
	if errors.Is(err, shard.ErrNoMatch) {
		return nil, ErrRecipientMissing
	}
	return res, err
}
