package scheduler

import (
	"testing"
	"time"

	"github.com/voicepay/go-voicepay-backend/internal/domain"
)

func mustUTC(t *testing.T, value string) time.Time {
	t.Helper()
	ts, err := time.ParseInLocation("2006-01-02 15:04:05", value, time.UTC)
	if err != nil {
		t.Fatalf("parse %q: %v", value, err)
	}
	return ts
}

func TestInitialNextRun(t *testing.T) {
	cases := []struct {
		name      string
		startDate string
		timeOfDay string
		want      string
		wantErr   bool
	}{
		{"date only means midnight", "2025-06-01", "", "2025-06-01 00:00:00", false},
		{"hh:mm", "2025-06-01", "09:30", "2025-06-01 09:30:00", false},
		{"hh:mm:ss", "2025-06-01", "09:30:15", "2025-06-01 09:30:15", false},
		{"bad date", "01-06-2025", "", "", true},
		{"bad time", "2025-06-01", "25:99", "", true},
		{"empty date", "", "", "", true},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got, err := InitialNextRun(tc.startDate, tc.timeOfDay)
			if tc.wantErr {
				if err == nil {
					t.Fatalf("expected error, got %v", got)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if want := mustUTC(t, tc.want); !got.Equal(want) {
				t.Fatalf("got %v, want %v", got, want)
			}
		})
	}
}

func TestNextAfter_DailyWeeklyYearly(t *testing.T) {
	prev := mustUTC(t, "2025-03-10 08:00:00")

	if got := NextAfter(prev, domain.IntervalDaily, nil); !got.Equal(mustUTC(t, "2025-03-11 08:00:00")) {
		t.Fatalf("daily: got %v", got)
	}
	if got := NextAfter(prev, domain.IntervalWeekly, nil); !got.Equal(mustUTC(t, "2025-03-17 08:00:00")) {
		t.Fatalf("weekly: got %v", got)
	}
	if got := NextAfter(prev, domain.IntervalYearly, nil); !got.Equal(mustUTC(t, "2026-03-10 08:00:00")) {
		t.Fatalf("yearly: got %v", got)
	}
}

func TestNextAfter_MonthlyClampsEndOfMonth(t *testing.T) {
	// A payment anchored on Jan 31 lands on the last day of short months and
	// does not re-anchor afterwards.
	run := mustUTC(t, "2025-01-31 09:00:00")

	run = NextAfter(run, domain.IntervalMonthly, nil)
	if want := mustUTC(t, "2025-02-28 09:00:00"); !run.Equal(want) {
		t.Fatalf("second fire: got %v, want %v", run, want)
	}
	run = NextAfter(run, domain.IntervalMonthly, nil)
	if want := mustUTC(t, "2025-03-28 09:00:00"); !run.Equal(want) {
		t.Fatalf("third fire: got %v, want %v", run, want)
	}
}

func TestNextAfter_MonthlyLeapYear(t *testing.T) {
	run := mustUTC(t, "2024-01-31 00:00:00")
	run = NextAfter(run, domain.IntervalMonthly, nil)
	if want := mustUTC(t, "2024-02-29 00:00:00"); !run.Equal(want) {
		t.Fatalf("leap february: got %v, want %v", run, want)
	}
}

func TestNextAfter_MonthlyDecemberRollsYear(t *testing.T) {
	run := mustUTC(t, "2025-12-15 12:00:00")
	if got := NextAfter(run, domain.IntervalMonthly, nil); !got.Equal(mustUTC(t, "2026-01-15 12:00:00")) {
		t.Fatalf("december rollover: got %v", got)
	}
}

func TestNextAfter_YearlyLeapDayClamps(t *testing.T) {
	run := mustUTC(t, "2024-02-29 00:00:00")
	if got := NextAfter(run, domain.IntervalYearly, nil); !got.Equal(mustUTC(t, "2025-02-28 00:00:00")) {
		t.Fatalf("leap day yearly: got %v", got)
	}
}

func TestNextAfter_Custom(t *testing.T) {
	prev := mustUTC(t, "2025-05-01 00:00:00")

	ms := int64(90 * 60 * 1000) // 90 minutes
	if got := NextAfter(prev, domain.IntervalCustom, &ms); !got.Equal(prev.Add(90 * time.Minute)) {
		t.Fatalf("custom 90m: got %v", got)
	}

	// Missing or non-positive custom interval falls back to daily.
	if got := NextAfter(prev, domain.IntervalCustom, nil); !got.Equal(prev.AddDate(0, 0, 1)) {
		t.Fatalf("custom nil: got %v", got)
	}
	zero := int64(0)
	if got := NextAfter(prev, domain.IntervalCustom, &zero); !got.Equal(prev.AddDate(0, 0, 1)) {
		t.Fatalf("custom zero: got %v", got)
	}
}

func TestNextAfter_UnknownFallsBackDaily(t *testing.T) {
	prev := mustUTC(t, "2025-05-01 00:00:00")
	if got := NextAfter(prev, "fortnightly", nil); !got.Equal(prev.AddDate(0, 0, 1)) {
		t.Fatalf("unknown interval: got %v", got)
	}
}

func TestNextAfter_AlwaysAdvances(t *testing.T) {
	prev := mustUTC(t, "2025-01-31 23:59:59")
	for _, iv := range []string{
		domain.IntervalDaily, domain.IntervalWeekly, domain.IntervalMonthly,
		domain.IntervalYearly, domain.IntervalCustom, "garbage",
	} {
		if got := NextAfter(prev, iv, nil); !got.After(prev) {
			t.Fatalf("interval %q did not advance: %v", iv, got)
		}
	}
}
