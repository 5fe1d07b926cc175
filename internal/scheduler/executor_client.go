// Executor Bridge client.
//
// The dispatcher never touches the chain itself; it POSTs a signed dispatch
// payload to the privileged process-recurring endpoint and interprets the
// JSON result. Requests carry the timestamped-HMAC envelope from the
// workerauth package.
package scheduler

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/shopspring/decimal"

	"github.com/voicepay/go-voicepay-backend/internal/workerauth"
)

// DispatchPayload is the body of a dispatcher -> executor bridge call. All
// fields are required by the bridge.
type DispatchPayload struct {
	ScheduleID  string          `json:"scheduleId"`
	UserAddress string          `json:"userAddress"`
	Recipient   string          `json:"recipient"`
	Amount      decimal.Decimal `json:"amount"`
	Token       string          `json:"token"`
	Interval    string          `json:"interval,omitempty"`
	Note        string          `json:"note,omitempty"`
	Timestamp   int64           `json:"timestamp"` // ms since epoch at dispatch
}

// DispatchResult is the executor bridge's verdict on a single fire.
type DispatchResult struct {
	OK     bool   `json:"ok"`
	TxHash string `json:"txHash,omitempty"`
	Error  string `json:"error,omitempty"`
	Code   string `json:"code,omitempty"`
}

// ExecutorClient abstracts the signed call to the executor bridge so tests
// can substitute a fake.
type ExecutorClient interface {
	// Process fires one schedule. A non-nil result with OK=false is a
	// definitive failure report; a non-nil error is a transport-level
	// failure (network, timeout) with no verdict from the bridge.
	Process(ctx context.Context, p DispatchPayload) (*DispatchResult, error)
}

// HTTPExecutorClient calls the bridge endpoint over HTTP with HMAC signing.
type HTTPExecutorClient struct {
	URL    string
	Secret []byte
	Client *http.Client

	// now is a test seam for the signing timestamp.
	now func() time.Time
}

// NewHTTPExecutorClient constructs a client for the given endpoint and
// preshared secret. The per-call deadline comes from the caller's context.
func NewHTTPExecutorClient(url string, secret []byte) *HTTPExecutorClient {
	return &HTTPExecutorClient{
		URL:    url,
		Secret: secret,
		Client: &http.Client{},
		now:    time.Now,
	}
}

// Process implements ExecutorClient.
func (c *HTTPExecutorClient) Process(ctx context.Context, p DispatchPayload) (*DispatchResult, error) {
	body, err := json.Marshal(p)
	if err != nil {
		return nil, fmt.Errorf("marshal dispatch payload: %w", err)
	}

	ts := c.now().UnixMilli()
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.URL, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set(workerauth.HeaderTimestamp, fmt.Sprintf("%d", ts))
	req.Header.Set(workerauth.HeaderSignature, workerauth.Sign(c.Secret, ts, body))

	resp, err := c.Client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	// 1 MiB is far beyond any legitimate bridge response.
	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, err
	}

	var out DispatchResult
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, fmt.Errorf("executor returned status %d with unparseable body", resp.StatusCode)
	}
	if resp.StatusCode >= 300 && out.Error == "" {
		out.OK = false
		out.Error = fmt.Sprintf("executor returned status %d", resp.StatusCode)
	}
	return &out, nil
}
