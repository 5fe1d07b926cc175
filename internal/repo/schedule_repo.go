// Package repo implements the data persistence layer for domain entities,
// backed by GORM. This file provides repository functions for the Schedule
// model.
//
// Schedules belong to a user shard (keyed by lowercased address). After
// creation they are mutated only through SchedulePatch, applied by the
// dispatcher after a fire or by an explicit cancel.
package repo

import (
	"context"
	"time"

	"gorm.io/gorm"

	"github.com/voicepay/go-voicepay-backend/internal/domain"
)

// SchedulePatch describes the mutable slice of a Schedule. Nil fields are
// left untouched.
type SchedulePatch struct {
	NextRun        *time.Time
	TimesRemaining *int
	Active         *bool
	Name           *string
	Note           *string
}

// CreateSchedule inserts a new schedule row. The caller supplies the fully
// populated model (ID, NextRun, TimesRemaining already computed).
func CreateSchedule(ctx context.Context, db *gorm.DB, s *domain.Schedule) (*domain.Schedule, error) {
	if s.CreatedAt.IsZero() {
		s.CreatedAt = time.Now().UTC()
	}
	if err := db.WithContext(ctx).Create(s).Error; err != nil {
		return nil, err
	}
	return s, nil
}

// GetSchedule fetches a schedule by ID within the user's shard, or
// ErrNotFound.
func GetSchedule(ctx context.Context, db *gorm.DB, userAddr, id string) (*domain.Schedule, error) {
	var s domain.Schedule
	err := db.WithContext(ctx).
		Where("id = ? AND user_address = ?", id, userAddr).
		First(&s).Error
	if err != nil {
		return nil, err
	}
	return &s, nil
}

// ListSchedules returns every schedule in the user's shard, newest first.
func ListSchedules(ctx context.Context, db *gorm.DB, userAddr string) ([]domain.Schedule, error) {
	var out []domain.Schedule
	err := db.WithContext(ctx).
		Where("user_address = ?", userAddr).
		Order("created_at desc").
		Find(&out).Error
	return out, err
}

// ListActiveSchedules returns the shard's active schedules. Used by the
// dispatcher's index reconcile pass.
func ListActiveSchedules(ctx context.Context, db *gorm.DB, userAddr string) ([]domain.Schedule, error) {
	var out []domain.Schedule
	err := db.WithContext(ctx).
		Where("user_address = ? AND active = ?", userAddr, true).
		Find(&out).Error
	return out, err
}

// ListShardAddresses returns the distinct user addresses that own at least
// one active schedule. The reconcile pass walks these shards.
func ListShardAddresses(ctx context.Context, db *gorm.DB) ([]string, error) {
	var out []string
	err := db.WithContext(ctx).
		Model(&domain.Schedule{}).
		Where("active = ?", true).
		Distinct("user_address").
		Pluck("user_address", &out).Error
	return out, err
}

// UpdateSchedule applies patch to the schedule identified by id in the
// user's shard. Returns ErrNotFound when no row matched.
func UpdateSchedule(ctx context.Context, db *gorm.DB, userAddr, id string, patch SchedulePatch) (*domain.Schedule, error) {
	updates := map[string]any{}
	if patch.NextRun != nil {
		updates["next_run"] = *patch.NextRun
	}
	if patch.TimesRemaining != nil {
		updates["times_remaining"] = *patch.TimesRemaining
	}
	if patch.Active != nil {
		updates["active"] = *patch.Active
	}
	if patch.Name != nil {
		updates["name"] = *patch.Name
	}
	if patch.Note != nil {
		updates["note"] = *patch.Note
	}

	if len(updates) > 0 {
		res := db.WithContext(ctx).
			Model(&domain.Schedule{}).
			Where("id = ? AND user_address = ?", id, userAddr).
			Updates(updates)
		if res.Error != nil {
			return nil, res.Error
		}
		if res.RowsAffected == 0 {
			return nil, ErrNotFound
		}
	}
	return GetSchedule(ctx, db, userAddr, id)
}

// DeleteSchedule removes a schedule from the user's shard. Returns
// ErrNotFound when no row matched.
func DeleteSchedule(ctx context.Context, db *gorm.DB, userAddr, id string) error {
	res := db.WithContext(ctx).
		Where("id = ? AND user_address = ?", id, userAddr).
		Delete(&domain.Schedule{})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}
