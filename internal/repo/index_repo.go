// Package repo implements the data persistence layer for domain entities,
// backed by GORM. This file provides repository functions for the global
// schedule index: a flat scheduleId -> entry store owned by the dispatcher.
//
// The index offers put / delete / paginated-scan semantics only. Listing
// eventually yields every live entry; the dispatcher tolerates an entry
// missed this tick or seen twice, so no snapshot consistency is needed here.
package repo

import (
	"context"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/voicepay/go-voicepay-backend/internal/domain"
)

// PutIndexEntry inserts or overwrites the index entry for its schedule ID.
func PutIndexEntry(ctx context.Context, db *gorm.DB, e *domain.ScheduleIndexEntry) error {
	return db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "schedule_id"}},
			UpdateAll: true,
		}).
		Create(e).Error
}

// GetIndexEntry fetches a single entry by schedule ID, or ErrNotFound.
func GetIndexEntry(ctx context.Context, db *gorm.DB, scheduleID string) (*domain.ScheduleIndexEntry, error) {
	var e domain.ScheduleIndexEntry
	err := db.WithContext(ctx).
		Where("schedule_id = ?", scheduleID).
		First(&e).Error
	if err != nil {
		return nil, err
	}
	return &e, nil
}

// DeleteIndexEntry removes the entry for scheduleID. Deleting an absent
// entry is not an error; retirement must be idempotent.
func DeleteIndexEntry(ctx context.Context, db *gorm.DB, scheduleID string) error {
	return db.WithContext(ctx).
		Where("schedule_id = ?", scheduleID).
		Delete(&domain.ScheduleIndexEntry{}).Error
}

// ListIndexPage returns one page of the index scan, keyed by schedule ID for
// a stable iteration order across pages.
func ListIndexPage(ctx context.Context, db *gorm.DB, offset, limit int) ([]domain.ScheduleIndexEntry, error) {
	var out []domain.ScheduleIndexEntry
	err := db.WithContext(ctx).
		Order("schedule_id asc").
		Offset(offset).
		Limit(limit).
		Find(&out).Error
	return out, err
}
