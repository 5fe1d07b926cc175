// Package services – ScheduleService
//
// Owns the create path for recurring schedules: validate the confirmed
// intent, compute the first run instant, append the schedule to the user's
// shard, and mirror it into the dispatcher's index. The shard write is
// authoritative; a failed index write leaves the shard record in place and
// surfaces ErrIndexWrite (the reconcile pass repairs the index later).
package services

import (
	"context"
	"errors"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/voicepay/go-voicepay-backend/internal/chain"
	"github.com/voicepay/go-voicepay-backend/internal/domain"
	"github.com/voicepay/go-voicepay-backend/internal/repo"
	"github.com/voicepay/go-voicepay-backend/internal/scheduler"
	"github.com/voicepay/go-voicepay-backend/internal/shard"
)

// CreateScheduleInput is the validated-at-the-edge payload for a new
// recurring schedule.
type CreateScheduleInput struct {
	Name       string
	Recipient  string // wallet address, already resolved from a name
	Amount     decimal.Decimal
	Currency   string
	Interval   string
	IntervalMs *int64
	StartDate  string // YYYY-MM-DD, required
	TimeOfDay  string // HH:MM[:SS], optional
	Times      *int   // total occurrences, optional
	Note       string
}

// ScheduleService manages schedule creation, listing, and cancellation.
type ScheduleService struct {
	Shards         *shard.Manager
	DB             *gorm.DB
	IndexOpTimeout time.Duration
}

// NewScheduleService constructs a ScheduleService.
func NewScheduleService(shards *shard.Manager, indexOpTimeout time.Duration) *ScheduleService {
	if indexOpTimeout <= 0 {
		indexOpTimeout = 5 * time.Second
	}
	return &ScheduleService{Shards: shards, DB: shards.DB(), IndexOpTimeout: indexOpTimeout}
}

// Create validates the intent and persists the schedule: shard first, then
// the index mirror. The returned schedule is complete even when
// ErrIndexWrite is also returned.
func (s *ScheduleService) Create(ctx context.Context, userAddr string, in CreateScheduleInput) (*domain.Schedule, error) {
	tr := otel.Tracer("services/ScheduleService")
	ctx, span := tr.Start(ctx, "Create",
		trace.WithAttributes(attribute.String("user.address", shard.Key(userAddr))),
	)
	defer span.End()

	if !common.IsHexAddress(in.Recipient) {
		return nil, ErrInvalidSchedule
	}
	// USDC precision check doubles as the positive-amount check.
	if _, err := chain.USDCUnits(in.Amount); err != nil {
		return nil, ErrInvalidSchedule
	}
	if in.StartDate == "" {
		return nil, ErrInvalidSchedule
	}
	interval := in.Interval
	if !domain.ValidInterval(interval) {
		// Unknown or empty cadence defaults to daily.
		interval = domain.IntervalDaily
	}
	if interval == domain.IntervalCustom && (in.IntervalMs == nil || *in.IntervalMs <= 0) {
		return nil, ErrInvalidSchedule
	}
	if in.Times != nil && *in.Times <= 0 {
		return nil, ErrInvalidSchedule
	}

	nextRun, err := scheduler.InitialNextRun(in.StartDate, in.TimeOfDay)
	if err != nil {
		return nil, ErrInvalidSchedule
	}

	currency := in.Currency
	if currency == "" {
		currency = domain.CurrencyUSDC
	}
	var remaining *int
	if in.Times != nil {
		r := *in.Times
		remaining = &r
	}

	sched := &domain.Schedule{
		ID:             uuid.NewString(),
		Name:           in.Name,
		Recipient:      in.Recipient,
		Amount:         in.Amount,
		Currency:       currency,
		Interval:       interval,
		IntervalMs:     in.IntervalMs,
		StartDate:      in.StartDate,
		TimeOfDay:      in.TimeOfDay,
		TimesTotal:     in.Times,
		TimesRemaining: remaining,
		Note:           in.Note,
		NextRun:        nextRun,
		Active:         true,
	}

	if _, err := s.Shards.For(userAddr).AppendSchedule(ctx, sched); err != nil {
		return nil, err
	}

	idxCtx, cancel := context.WithTimeout(ctx, s.IndexOpTimeout)
	defer cancel()
	if err := repo.PutIndexEntry(idxCtx, s.DB, scheduler.IndexEntryFor(sched)); err != nil {
		// Shard record stays; reconcile will fill the index.
		return sched, ErrIndexWrite
	}
	return sched, nil
}

// List returns the user's schedules, newest first.
func (s *ScheduleService) List(ctx context.Context, userAddr string) ([]domain.Schedule, error) {
	return s.Shards.For(userAddr).Schedules(ctx)
}

// Cancel retires a schedule: the index entry goes first so no further fires
// happen, then the shard record is deleted. Ownership is checked before the
// index delete so one user cannot disturb another user's schedule.
func (s *ScheduleService) Cancel(ctx context.Context, userAddr, scheduleID string) error {
	if _, err := uuid.Parse(scheduleID); err != nil {
		return ErrScheduleNotFound
	}
	if _, err := s.Shards.For(userAddr).Schedule(ctx, scheduleID); err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			return ErrScheduleNotFound
		}
		return err
	}

	idxCtx, cancel := context.WithTimeout(ctx, s.IndexOpTimeout)
	defer cancel()
	if err := repo.DeleteIndexEntry(idxCtx, s.DB, scheduleID); err != nil {
		return err
	}

	err := s.Shards.For(userAddr).DeleteSchedule(ctx, scheduleID)
	if errors.Is(err, repo.ErrNotFound) {
		return ErrScheduleNotFound
	}
	return err
}
