package nlp

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func mustParse(t *testing.T, text string) *ParsedIntent {
	t.Helper()
	out, err := RuleParser{}.Parse(context.Background(), text)
	if err != nil {
		t.Fatalf("Parse(%q): %v", text, err)
	}
	return out
}

func TestRuleParser_SendOnceByName(t *testing.T) {
	out := mustParse(t, "Send 5 USDC to Alice")
	if out.Intent != IntentSendOnce {
		t.Fatalf("intent = %q", out.Intent)
	}
	if out.Name != "alice" || out.Address != "" {
		t.Fatalf("payee = %q / %q", out.Name, out.Address)
	}
	if out.Amount.String() != "5" {
		t.Fatalf("amount = %v", out.Amount)
	}
	if out.Currency != "USDC" {
		t.Fatalf("currency = %q", out.Currency)
	}
	if out.Interval != "" {
		t.Fatalf("one-off utterance produced interval %q", out.Interval)
	}
}

func TestRuleParser_SendOnceByAddress(t *testing.T) {
	out := mustParse(t, "send 12.5 usdc to 0xA0b86991c6218b36c1d19D4a2e9Eb0cE3606eB48")
	if out.Address != "0xa0b86991c6218b36c1d19d4a2e9eb0ce3606eb48" {
		t.Fatalf("address = %q", out.Address)
	}
	if out.Amount.String() != "12.5" {
		t.Fatalf("amount = %v", out.Amount)
	}
}

func TestRuleParser_RecurringPhrasings(t *testing.T) {
	cases := []struct {
		text string
		want string
	}{
		{"send 5 usdc to alice every day", "daily"},
		{"send 5 usdc to alice daily", "daily"},
		{"send 5 usdc to alice each week", "weekly"},
		{"pay bob 20 dollars monthly", "monthly"},
		{"send 100 usdc to carol annually", "yearly"},
	}
	for _, tc := range cases {
		t.Run(tc.text, func(t *testing.T) {
			out := mustParse(t, tc.text)
			if out.Intent != IntentRecurring {
				t.Fatalf("intent = %q", out.Intent)
			}
			if out.Interval != tc.want {
				t.Fatalf("interval = %q, want %q", out.Interval, tc.want)
			}
		})
	}
}

func TestRuleParser_CustomInterval(t *testing.T) {
	out := mustParse(t, "send 1 usdc to alice every 30 minutes")
	if out.Interval != "custom" {
		t.Fatalf("interval = %q", out.Interval)
	}
	if out.IntervalMs == nil || *out.IntervalMs != 30*60*1000 {
		t.Fatalf("interval_ms = %v", out.IntervalMs)
	}
}

func TestRuleParser_FullRecurringUtterance(t *testing.T) {
	out := mustParse(t, "pay 20 usdc to bob every month starting 2025-07-01 at 09:30, 6 times for rent")
	if out.Intent != IntentRecurring || out.Interval != "monthly" {
		t.Fatalf("intent/interval = %q/%q", out.Intent, out.Interval)
	}
	if out.Name != "bob" {
		t.Fatalf("name = %q", out.Name)
	}
	if out.StartDate != "2025-07-01" {
		t.Fatalf("start date = %q", out.StartDate)
	}
	if out.TimeOfDay != "09:30" {
		t.Fatalf("time of day = %q", out.TimeOfDay)
	}
	if out.Times == nil || *out.Times != 6 {
		t.Fatalf("times = %v", out.Times)
	}
	if out.Note != "rent" {
		t.Fatalf("note = %q", out.Note)
	}
}

func TestRuleParser_Unparsable(t *testing.T) {
	cases := []string{
		"",
		"   ",
		"hello there",
		"send usdc to alice",   // no amount
		"send 5 usdc",          // no payee
		"send 0 usdc to alice", // non-positive amount
	}
	for _, text := range cases {
		if _, err := (RuleParser{}).Parse(context.Background(), text); !errors.Is(err, ErrUnparsable) {
			t.Fatalf("Parse(%q): got %v, want ErrUnparsable", text, err)
		}
	}
}

func TestHTTPParser_RoundTrip(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var in map[string]string
		if err := json.NewDecoder(r.Body).Decode(&in); err != nil || in["text"] == "" {
			t.Errorf("bad request body: %v %v", in, err)
		}
		_ = json.NewEncoder(w).Encode(ParsedIntent{
			Intent:   IntentRecurring,
			Name:     "alice",
			Currency: "USDC",
			Interval: "weekly",
		})
	}))
	defer srv.Close()

	out, err := NewHTTPParser(srv.URL, 5*time.Second).Parse(context.Background(), "send 5 to alice weekly")
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if out.Intent != IntentRecurring || out.Name != "alice" || out.Interval != "weekly" {
		t.Fatalf("unexpected intent: %+v", out)
	}
}

func TestHTTPParser_NonOKStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	if _, err := NewHTTPParser(srv.URL, 5*time.Second).Parse(context.Background(), "x"); err == nil {
		t.Fatalf("expected error on non-200 response")
	}
}
