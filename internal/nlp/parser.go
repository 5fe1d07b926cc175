// Package nlp wraps the natural-language-to-intent parser behind a narrow
// interface. The production implementation calls an external parser service;
// a local rule-based parser serves as the fallback so the pipeline runs
// end-to-end without it. Both produce the same intent envelope; recipient
// resolution and validation happen downstream in the intent service.
package nlp

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/shopspring/decimal"
)

// Intent kinds produced by a parser.
const (
	IntentSendOnce  = "send_once"
	IntentRecurring = "recurring_payment"
)

// ParsedIntent is the candidate intent envelope. Either Name or Address
// identifies the payee; the resolver fills Address from Name when needed.
type ParsedIntent struct {
	Intent     string          `json:"intent"`
	Name       string          `json:"name,omitempty"`
	Address    string          `json:"address,omitempty"`
	Amount     decimal.Decimal `json:"amount"`
	Currency   string          `json:"currency"`
	Interval   string          `json:"interval,omitempty"`
	IntervalMs *int64          `json:"interval_ms,omitempty"`
	StartDate  string          `json:"start_date,omitempty"` // YYYY-MM-DD
	TimeOfDay  string          `json:"time_of_day,omitempty"`
	Times      *int            `json:"times,omitempty"`
	Note       string          `json:"note,omitempty"`
}

// Parser turns a raw utterance into a candidate intent.
//
// Implementations must honor the context for cancellation and deadlines.
type Parser interface {
	Parse(ctx context.Context, text string) (*ParsedIntent, error)
}

// HTTPParser calls an external parser service: POST {"text": ...} returning
// a ParsedIntent JSON body.
type HTTPParser struct {
	URL     string
	Client  *http.Client
	Timeout time.Duration
}

// NewHTTPParser constructs an HTTPParser with the given per-call timeout.
func NewHTTPParser(url string, timeout time.Duration) *HTTPParser {
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	return &HTTPParser{URL: url, Client: &http.Client{}, Timeout: timeout}
}

// Parse implements Parser.
func (p *HTTPParser) Parse(ctx context.Context, text string) (*ParsedIntent, error) {
	ctx, cancel := context.WithTimeout(ctx, p.Timeout)
	defer cancel()

	body, err := json.Marshal(map[string]string{"text": text})
	if err != nil {
		return nil, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.URL, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := p.Client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("parser call: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("parser returned status %d", resp.StatusCode)
	}

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, err
	}
	var out ParsedIntent
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, fmt.Errorf("parser response: %w", err)
	}
	return &out, nil
}
