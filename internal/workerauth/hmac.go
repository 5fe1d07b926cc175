// Package workerauth implements the timestamped-HMAC envelope that
// authenticates dispatcher calls to the privileged executor endpoint.
//
// A signed request carries two headers:
//
//	X-Worker-Timestamp: milliseconds since epoch at the moment of signing
//	X-Worker-Auth:      hex(HMAC-SHA-256(secret, timestamp || body))
//
// where body is the literal request body bytes used in transport. The
// receiver rejects envelopes older (or newer) than the configured clock-skew
// window and compares signatures in constant time. Replay inside the window
// is not separately prevented; the schedule identifier plus nextRun
// advancement bounds the practical replay surface.
package workerauth

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"strconv"
	"time"
)

// Header names for the HMAC envelope.
const (
	HeaderSignature = "X-Worker-Auth"
	HeaderTimestamp = "X-Worker-Timestamp"
)

// DefaultClockSkew is the accepted |now - timestamp| window when the caller
// passes a non-positive skew.
const DefaultClockSkew = 5 * time.Minute

// Verification failures. Handlers map both to a 403.
var (
	ErrStaleTimestamp = errors.New("worker auth: timestamp outside accepted window")
	ErrBadSignature   = errors.New("worker auth: signature mismatch")
)

// Sign computes the hex HMAC-SHA-256 signature for the given timestamp (in
// milliseconds) and body bytes.
func Sign(secret []byte, timestampMs int64, body []byte) string {
	mac := hmac.New(sha256.New, secret)
	mac.Write([]byte(strconv.FormatInt(timestampMs, 10)))
	mac.Write(body)
	return hex.EncodeToString(mac.Sum(nil))
}

// Verify checks a received envelope. It first enforces the clock-skew window
// against now, then recomputes the HMAC over timestamp || body and compares
// it to signature in constant time.
func Verify(secret []byte, timestampMs int64, body []byte, signature string, now time.Time, skew time.Duration) error {
	if skew <= 0 {
		skew = DefaultClockSkew
	}
	age := now.UnixMilli() - timestampMs
	if age < 0 {
		age = -age
	}
	if age > skew.Milliseconds() {
		return ErrStaleTimestamp
	}

	want := Sign(secret, timestampMs, body)
	// hmac.Equal is constant time; compare raw bytes, not hex strings, so a
	// malformed hex signature also fails closed.
	got, err := hex.DecodeString(signature)
	if err != nil {
		return ErrBadSignature
	}
	wantRaw, _ := hex.DecodeString(want)
	if !hmac.Equal(got, wantRaw) {
		return ErrBadSignature
	}
	return nil
}
