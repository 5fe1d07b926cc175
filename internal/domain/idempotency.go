// Package domain defines the core persistence models for the application.
// These types are used by GORM for database schema mapping and are shared
// across the repository and service layers.
package domain

import "time"

// Idempotency records the result of a previously processed unsafe request,
// keyed by (user_address, key). It enables safe retries for the
// schedule-setup and transaction-store endpoints by returning the originally
// produced record without re-executing side effects.
type Idempotency struct {
	ID          string `gorm:"type:TEXT NOT NULL;primaryKey"`
	UserAddress string `gorm:"type:TEXT NOT NULL;uniqueIndex:ux_user_key,priority:1"`
	Key         string `gorm:"type:TEXT NOT NULL;uniqueIndex:ux_user_key,priority:2"`
	// RefID points at the schedule or transaction produced by the original
	// request.
	RefID     string    `gorm:"type:TEXT NOT NULL"`
	Status    int       `gorm:"type:INTEGER NOT NULL"`
	CreatedAt time.Time `gorm:"type:DATETIME NOT NULL;autoCreateTime"`
	ExpiresAt time.Time `gorm:"type:DATETIME NOT NULL;index"`
}

// TableName implements the GORM tabler interface.
func (Idempotency) TableName() string { return "idempotency" }
