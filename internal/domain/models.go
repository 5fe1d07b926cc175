// Package domain defines the persistence models for recipients, schedules,
// transactions, per-user auth state, and the denormalized schedule index.
// These types are mapped with GORM and form the core data layer of the
// VoicePay backend.
package domain

import (
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// Interval values accepted for recurring schedules.
const (
	IntervalDaily   = "daily"
	IntervalWeekly  = "weekly"
	IntervalMonthly = "monthly"
	IntervalYearly  = "yearly"
	IntervalCustom  = "custom"
)

// Transaction types.
const (
	TxTypeSendOnce  = "send_once"
	TxTypeRecurring = "recurring"
)

// Transaction statuses.
const (
	TxStatusCompleted = "completed"
	TxStatusFailed    = "failed"
)

// CurrencyUSDC is the only currency the payment pipeline moves today.
const CurrencyUSDC = "USDC"

// ValidInterval reports whether s is one of the supported interval values.
func ValidInterval(s string) bool {
	switch s {
	case IntervalDaily, IntervalWeekly, IntervalMonthly, IntervalYearly, IntervalCustom:
		return true
	}
	return false
}

// Recipient is a named wallet in a user's address book. The wallet address is
// unique within the owning user's shard; the same wallet may appear under
// different users.
//
// Fields:
//   - ID: stable UUID primary key (char(36)).
//   - UserAddress: lowercased owner wallet; part of the shard key.
//   - Name: display name used for voice-intent resolution.
//   - Wallet: lowercased 20-byte hex address of the payee.
//   - Note: optional free-form annotation.
type Recipient struct {
	ID          string         `json:"id"           gorm:"type:char(36);primaryKey"`
	UserAddress string         `json:"user_address" gorm:"type:varchar(42);not null;index:idx_user_recipients;uniqueIndex:ux_recipient_wallet,priority:1"`
	Name        string         `json:"name"         gorm:"type:varchar(255);not null"`
	Wallet      string         `json:"wallet"       gorm:"type:varchar(42);not null;uniqueIndex:ux_recipient_wallet,priority:2"`
	Note        string         `json:"note,omitempty" gorm:"type:text"`
	CreatedAt   time.Time      `json:"created_at"`
	UpdatedAt   time.Time      `json:"updated_at"`
	DeletedAt   gorm.DeletedAt `json:"-"            gorm:"index"`
}

// TableName returns the database table name for Recipient.
func (Recipient) TableName() string { return "recipients" }

// Schedule is a user's standing instruction to send a fixed amount of a fixed
// token at a fixed cadence. After creation, only the dispatcher mutates
// NextRun and TimesRemaining; an explicit cancel flips Active off.
//
// Invariants:
//   - TimesRemaining <= TimesTotal when both are set.
//   - Active implies TimesRemaining is nil or > 0.
//   - NextRun strictly increases across successive successful fires.
type Schedule struct {
	ID          string `json:"id"           gorm:"type:char(36);primaryKey"`
	UserAddress string `json:"user_address" gorm:"type:varchar(42);not null;index:idx_user_schedules"`
	Name        string `json:"name,omitempty" gorm:"type:varchar(255)"`
	// Recipient is the payee wallet address (already resolved from a name).
	Recipient string          `json:"recipient" gorm:"type:varchar(42);not null"`
	Amount    decimal.Decimal `json:"amount"    gorm:"type:TEXT;not null"`
	Currency  string          `json:"currency"  gorm:"type:varchar(16);not null;default:'USDC'"`
	Interval  string          `json:"interval"  gorm:"type:varchar(16);not null;check:interval IN ('daily','weekly','monthly','yearly','custom')"`
	// IntervalMs is the custom cadence in milliseconds; only set when
	// Interval == "custom".
	IntervalMs *int64 `json:"interval_ms,omitempty"`
	StartDate  string `json:"start_date" gorm:"type:varchar(10);not null"` // YYYY-MM-DD, UTC
	TimeOfDay  string `json:"time_of_day,omitempty" gorm:"type:varchar(8)"` // HH:MM[:SS], UTC
	// TimesTotal caps the number of fires; nil means unbounded.
	TimesTotal     *int           `json:"times_total,omitempty"`
	TimesRemaining *int           `json:"times_remaining,omitempty"`
	Note           string         `json:"note,omitempty" gorm:"type:text"`
	NextRun        time.Time      `json:"next_run"   gorm:"not null;index"`
	Active         bool           `json:"active"     gorm:"not null;default:true"`
	CreatedAt      time.Time      `json:"created_at"`
	UpdatedAt      time.Time      `json:"updated_at"`
	DeletedAt      gorm.DeletedAt `json:"-" gorm:"index"`
}

// TableName returns the database table name for Schedule.
func (Schedule) TableName() string { return "schedules" }

// Transaction is an append-only history record of a transfer attempt, either
// a one-shot send or a recurring fire. Rows are never mutated after insert.
type Transaction struct {
	ID          string          `json:"id"           gorm:"type:char(36);primaryKey"`
	UserAddress string          `json:"user_address" gorm:"type:varchar(42);not null;index:idx_user_txs,priority:1"`
	Type        string          `json:"type"         gorm:"type:varchar(16);not null;check:type IN ('send_once','recurring')"`
	Name        string          `json:"name,omitempty" gorm:"type:varchar(255)"`
	Address     string          `json:"address"      gorm:"type:varchar(42);not null"`
	Amount      decimal.Decimal `json:"amount"       gorm:"type:TEXT;not null"`
	Currency    string          `json:"currency"     gorm:"type:varchar(16);not null"`
	Status      string          `json:"status"       gorm:"type:varchar(16);not null;check:status IN ('completed','failed')"`
	// TxHash is the on-chain transaction hash; nil for failed attempts that
	// never reached the chain.
	TxHash *string `json:"tx_hash,omitempty" gorm:"type:varchar(66)"`
	// ScheduleID links a recurring fire back to its schedule by value only.
	ScheduleID *string   `json:"schedule_id,omitempty" gorm:"type:char(36);index"`
	Note       string    `json:"note,omitempty" gorm:"type:text"`
	Timestamp  time.Time `json:"timestamp" gorm:"not null;index:idx_user_txs,priority:2"`
	CreatedAt  time.Time `json:"-"`
}

// TableName returns the database table name for Transaction.
func (Transaction) TableName() string { return "transactions" }

// AuthState holds the single-use login nonce for a wallet address. The nonce
// is overwritten on each issue and cleared on the first successful verify.
type AuthState struct {
	UserAddress string    `gorm:"type:varchar(42);primaryKey"`
	Nonce       *string   `gorm:"type:varchar(64)"`
	UpdatedAt   time.Time `gorm:"not null"`
}

// TableName returns the database table name for AuthState.
func (AuthState) TableName() string { return "auth_states" }

// ScheduleIndexEntry is the dispatcher-owned projection of a Schedule: a flat
// record carrying enough data to fire the schedule without consulting the
// owning shard. The shard remains authoritative; the index is reconstructible.
type ScheduleIndexEntry struct {
	ScheduleID     string          `gorm:"type:char(36);primaryKey"`
	UserAddress    string          `gorm:"type:varchar(42);not null;index"`
	NextRun        time.Time       `gorm:"not null;index"`
	Recipient      string          `gorm:"type:varchar(42);not null"`
	Amount         decimal.Decimal `gorm:"type:TEXT;not null"`
	Currency       string          `gorm:"type:varchar(16);not null"`
	Interval       string          `gorm:"type:varchar(16);not null"`
	IntervalMs     *int64
	TimesRemaining *int
	Name           string    `gorm:"type:varchar(255)"`
	Note           string    `gorm:"type:text"`
	CreatedAt      time.Time `gorm:"not null"`
}

// TableName returns the database table name for ScheduleIndexEntry.
func (ScheduleIndexEntry) TableName() string { return "schedule_index" }
