// Rule-based fallback parser.
//
// Handles the common phrasings the voice frontend produces ("send 5 usdc to
// alice every week", "pay bob 20 dollars monthly for rent, 6 times") without
// the external parser service. Unrecognized utterances return ErrUnparsable
// rather than a guess.
package nlp

import (
	"context"
	"errors"
	"regexp"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// ErrUnparsable means the rules could not extract an amount and a payee.
var ErrUnparsable = errors.New("nlp: could not parse payment intent")

var (
	wsRE      = regexp.MustCompile(`\s+`)
	amountRE  = regexp.MustCompile(`(\d+(?:\.\d+)?)\s*(?:usdc|dollars?|bucks)?`)
	addressRE = regexp.MustCompile(`0x[0-9a-f]{40}`)
	// payee: "to <name>" up to an interval/schedule keyword or end of text.
	payeeRE = regexp.MustCompile(`\bto\s+([a-z][a-z0-9 .'-]*?)(?:\s+(?:every|each|daily|weekly|monthly|yearly|annually|starting|on|at|for)\b|$)`)
	timesRE = regexp.MustCompile(`(\d+)\s+times`)
	dateRE  = regexp.MustCompile(`(?:starting|on|from)\s+(\d{4}-\d{2}-\d{2})`)
	todRE   = regexp.MustCompile(`\bat\s+(\d{1,2}:\d{2})`)
	everyRE = regexp.MustCompile(`every\s+(\d+)\s+(second|minute|hour|day|week)s?`)
	noteRE  = regexp.MustCompile(`\bfor\s+([a-z][a-z0-9 ]*)$`)
)

var lower = cases.Lower(language.Und)

// RuleParser is the dependency-free Parser used when no external service is
// configured.
type RuleParser struct{}

// Parse implements Parser with keyword and pattern heuristics over the
// normalized utterance.
func (RuleParser) Parse(_ context.Context, text string) (*ParsedIntent, error) {
	norm := wsRE.ReplaceAllString(lower.String(strings.TrimSpace(text)), " ")
	if norm == "" {
		return nil, ErrUnparsable
	}

	out := &ParsedIntent{Intent: IntentSendOnce, Currency: "USDC"}

	if m := amountRE.FindStringSubmatch(norm); m != nil {
		amt, err := decimal.NewFromString(m[1])
		if err != nil || amt.Sign() <= 0 {
			return nil, ErrUnparsable
		}
		out.Amount = amt
	} else {
		return nil, ErrUnparsable
	}

	if m := addressRE.FindString(norm); m != "" {
		out.Address = m
	} else if m := payeeRE.FindStringSubmatch(norm); m != nil {
		out.Name = strings.TrimSpace(m[1])
	}
	if out.Address == "" && out.Name == "" {
		return nil, ErrUnparsable
	}

	out.Interval = parseInterval(norm, out)
	if out.Interval != "" {
		out.Intent = IntentRecurring
	}

	if m := timesRE.FindStringSubmatch(norm); m != nil {
		if n, err := strconv.Atoi(m[1]); err == nil && n > 0 {
			out.Times = &n
		}
	}
	if m := dateRE.FindStringSubmatch(norm); m != nil {
		out.StartDate = m[1]
	}
	if m := todRE.FindStringSubmatch(norm); m != nil {
		out.TimeOfDay = m[1]
	}
	if m := noteRE.FindStringSubmatch(norm); m != nil {
		out.Note = strings.TrimSpace(m[1])
	}
	return out, nil
}

// parseInterval maps cadence phrases onto the schedule interval enum,
// producing a custom interval in milliseconds for "every N <unit>" phrases
// below a day.
func parseInterval(norm string, out *ParsedIntent) string {
	switch {
	case strings.Contains(norm, "every day"), strings.Contains(norm, "daily"), strings.Contains(norm, "each day"):
		return "daily"
	case strings.Contains(norm, "every week"), strings.Contains(norm, "weekly"), strings.Contains(norm, "each week"):
		return "weekly"
	case strings.Contains(norm, "every month"), strings.Contains(norm, "monthly"), strings.Contains(norm, "each month"):
		return "monthly"
	case strings.Contains(norm, "every year"), strings.Contains(norm, "yearly"), strings.Contains(norm, "annually"):
		return "yearly"
	}
	if m := everyRE.FindStringSubmatch(norm); m != nil {
		n, err := strconv.Atoi(m[1])
		if err != nil || n <= 0 {
			return ""
		}
		unitMs := map[string]int64{
			"second": 1000,
			"minute": 60 * 1000,
			"hour":   60 * 60 * 1000,
			"day":    24 * 60 * 60 * 1000,
			"week":   7 * 24 * 60 * 60 * 1000,
		}
		ms := int64(n) * unitMs[m[2]]
		out.IntervalMs = &ms
		return "custom"
	}
	return ""
}
