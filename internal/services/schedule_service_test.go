package services

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/voicepay/go-voicepay-backend/internal/domain"
	"github.com/voicepay/go-voicepay-backend/internal/repo"
	"github.com/voicepay/go-voicepay-backend/internal/shard"
)

const (
	schedUser  = "0xaaaa0000000000000000000000000000000000aa"
	schedPayee = "0xbbbb0000000000000000000000000000000000bb"
)

func validScheduleInput() CreateScheduleInput {
	times := 6
	return CreateScheduleInput{
		Name:      "Landlord",
		Recipient: schedPayee,
		Amount:    decimal.RequireFromString("750"),
		Interval:  domain.IntervalMonthly,
		StartDate: "2025-07-01",
		TimeOfDay: "09:00",
		Times:     &times,
		Note:      "rent",
	}
}

func TestScheduleService_Create(t *testing.T) {
	ctx := context.Background()
	shards := newSvcShards(t)
	svc := NewScheduleService(shards, 0)

	sched, err := svc.Create(ctx, schedUser, validScheduleInput())
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if _, err := uuid.Parse(sched.ID); err != nil {
		t.Fatalf("schedule id %q is not a uuid", sched.ID)
	}
	if sched.Currency != domain.CurrencyUSDC {
		t.Fatalf("currency default missing: %q", sched.Currency)
	}
	if want := time.Date(2025, 7, 1, 9, 0, 0, 0, time.UTC); !sched.NextRun.Equal(want) {
		t.Fatalf("NextRun = %v, want %v", sched.NextRun, want)
	}
	if sched.TimesRemaining == nil || *sched.TimesRemaining != 6 {
		t.Fatalf("TimesRemaining = %v", sched.TimesRemaining)
	}
	if !sched.Active {
		t.Fatalf("new schedule must be active")
	}

	// Shard record and index projection both exist.
	if _, err := shards.For(schedUser).Schedule(ctx, sched.ID); err != nil {
		t.Fatalf("shard record: %v", err)
	}
	entry, err := repo.GetIndexEntry(ctx, shards.DB(), sched.ID)
	if err != nil {
		t.Fatalf("index entry: %v", err)
	}
	if entry.UserAddress != shard.Key(schedUser) || !entry.NextRun.Equal(sched.NextRun) {
		t.Fatalf("index projection mismatch: %+v", entry)
	}
}

func TestScheduleService_Create_UnknownIntervalDefaultsDaily(t *testing.T) {
	in := validScheduleInput()
	in.Interval = "fortnightly"

	sched, err := NewScheduleService(newSvcShards(t), 0).Create(context.Background(), schedUser, in)
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if sched.Interval != domain.IntervalDaily {
		t.Fatalf("interval = %q, want daily fallback", sched.Interval)
	}
}

func TestScheduleService_Create_Validation(t *testing.T) {
	cases := []struct {
		name   string
		mutate func(*CreateScheduleInput)
	}{
		{"bad recipient", func(in *CreateScheduleInput) { in.Recipient = "not-a-wallet" }},
		{"zero amount", func(in *CreateScheduleInput) { in.Amount = decimal.Zero }},
		{"negative amount", func(in *CreateScheduleInput) { in.Amount = decimal.RequireFromString("-5") }},
		{"excess precision", func(in *CreateScheduleInput) { in.Amount = decimal.RequireFromString("1.1234567") }},
		{"missing start date", func(in *CreateScheduleInput) { in.StartDate = "" }},
		{"malformed start date", func(in *CreateScheduleInput) { in.StartDate = "01-07-2025" }},
		{"malformed time of day", func(in *CreateScheduleInput) { in.TimeOfDay = "25:99" }},
		{"custom without cadence", func(in *CreateScheduleInput) {
			in.Interval = domain.IntervalCustom
			in.IntervalMs = nil
		}},
		{"zero times", func(in *CreateScheduleInput) { zero := 0; in.Times = &zero }},
	}
	svc := NewScheduleService(newSvcShards(t), 0)
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			in := validScheduleInput()
			tc.mutate(&in)
			if _, err := svc.Create(context.Background(), schedUser, in); !errors.Is(err, ErrInvalidSchedule) {
				t.Fatalf("got %v, want ErrInvalidSchedule", err)
			}
		})
	}
}

func TestScheduleService_List(t *testing.T) {
	ctx := context.Background()
	svc := NewScheduleService(newSvcShards(t), 0)

	if _, err := svc.Create(ctx, schedUser, validScheduleInput()); err != nil {
		t.Fatalf("Create: %v", err)
	}
	scheds, err := svc.List(ctx, schedUser)
	if err != nil || len(scheds) != 1 {
		t.Fatalf("List: %v len=%d", err, len(scheds))
	}
	if other, err := svc.List(ctx, schedPayee); err != nil || len(other) != 0 {
		t.Fatalf("foreign user sees %d schedules: %v", len(other), err)
	}
}

func TestScheduleService_Cancel(t *testing.T) {
	ctx := context.Background()
	shards := newSvcShards(t)
	svc := NewScheduleService(shards, 0)

	sched, err := svc.Create(ctx, schedUser, validScheduleInput())
	if err != nil {
		t.Fatalf("Create: %v", err)
	}

	if err := svc.Cancel(ctx, schedUser, sched.ID); err != nil {
		t.Fatalf("Cancel: %v", err)
	}
	if _, err := repo.GetIndexEntry(ctx, shards.DB(), sched.ID); !errors.Is(err, repo.ErrNotFound) {
		t.Fatalf("index entry should be gone: %v", err)
	}
	if _, err := shards.For(schedUser).Schedule(ctx, sched.ID); !errors.Is(err, repo.ErrNotFound) {
		t.Fatalf("shard record should be gone: %v", err)
	}

	if err := svc.Cancel(ctx, schedUser, sched.ID); !errors.Is(err, ErrScheduleNotFound) {
		t.Fatalf("second cancel: got %v, want ErrScheduleNotFound", err)
	}
}

func TestScheduleService_Cancel_BadID(t *testing.T) {
	svc := NewScheduleService(newSvcShards(t), 0)
	if err := svc.Cancel(context.Background(), schedUser, "not-a-uuid"); !errors.Is(err, ErrScheduleNotFound) {
		t.Fatalf("got %v, want ErrScheduleNotFound", err)
	}
}

func TestScheduleService_Cancel_OtherUsersSchedule(t *testing.T) {
	ctx := context.Background()
	shards := newSvcShards(t)
	svc := NewScheduleService(shards, 0)

	sched, err := svc.Create(ctx, schedUser, validScheduleInput())
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	// A different user addressing the same id misses in their own shard.
	if err := svc.Cancel(ctx, schedPayee, sched.ID); !errors.Is(err, ErrScheduleNotFound) {
		t.Fatalf("got %v, want ErrScheduleNotFound", err)
	}
	// The owner's index entry must survive the foreign cancel attempt.
	if _, err := repo.GetIndexEntry(ctx, shards.DB(), sched.ID); err != nil {
		t.Fatalf("index entry disturbed: %v", err)
	}
}
