// Service-to-service authentication for the privileged worker endpoint.
//
// The dispatcher signs every call with a timestamped HMAC over the raw body
// (see the workerauth package). This middleware verifies that envelope before
// the handler runs, distinguishing a missing envelope (401) from a stale or
// forged one (403).
package middleware

import (
	"bytes"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/voicepay/go-voicepay-backend/internal/workerauth"
)

// maxWorkerBody caps the body read for signature verification.
const maxWorkerBody = 1 << 20

// RequireWorkerAuth verifies the X-Worker-Auth / X-Worker-Timestamp envelope
// against the shared secret. The body is read in full for verification and
// restored so the handler can bind it normally.
func RequireWorkerAuth(secret []byte, skew time.Duration) gin.HandlerFunc {
	return func(c *gin.Context) {
		sig := c.GetHeader(workerauth.HeaderSignature)
		tsRaw := c.GetHeader(workerauth.HeaderTimestamp)
		if sig == "" || tsRaw == "" {
			abortWorker(c, http.StatusUnauthorized, "unauthorized", "missing worker auth envelope")
			return
		}
		ts, err := strconv.ParseInt(tsRaw, 10, 64)
		if err != nil {
			abortWorker(c, http.StatusForbidden, "forbidden", "malformed worker timestamp")
			return
		}

		body, err := io.ReadAll(io.LimitReader(c.Request.Body, maxWorkerBody))
		if err != nil {
			abortWorker(c, http.StatusBadRequest, "validation", "unreadable request body")
			return
		}
		c.Request.Body = io.NopCloser(bytes.NewReader(body))

		if err := workerauth.Verify(secret, ts, body, sig, time.Now(), skew); err != nil {
			lg := LoggerFrom(c)
			lg.Warn().Err(err).Msg("worker auth rejected")
			abortWorker(c, http.StatusForbidden, "forbidden", "worker auth rejected")
			return
		}
		c.Next()
	}
}

func abortWorker(c *gin.Context, status int, code, msg string) {
	rid, _ := c.Get(requestIDKey)
	c.AbortWithStatusJSON(status, gin.H{
		"request_id": asString(rid),
		"code":       code,
		"message":    msg,
	})
}
