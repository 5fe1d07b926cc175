// Bearer-token authentication for the user-facing API.
//
// Tokens are HS256 JWTs minted by the auth service after a successful
// wallet-signature login. The token subject is the lowercased wallet address
// and doubles as the shard key for every downstream operation.
package middleware

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
)

// userKey is the Gin context key carrying the authenticated wallet address.
const userKey = "userID"

// RequireAuth validates the Authorization bearer token and stores the wallet
// address in the request context. Requests without a valid token are rejected
// with a 401 envelope.
func RequireAuth(secret []byte) gin.HandlerFunc {
	return func(c *gin.Context) {
		raw := c.GetHeader("Authorization")
		const prefix = "Bearer "
		if !strings.HasPrefix(raw, prefix) {
			abortUnauthorized(c, "missing bearer token")
			return
		}

		tok, err := jwt.ParseWithClaims(
			strings.TrimPrefix(raw, prefix),
			&jwt.RegisteredClaims{},
			func(t *jwt.Token) (any, error) { return secret, nil },
			jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		)
		if err != nil || !tok.Valid {
			abortUnauthorized(c, "invalid or expired token")
			return
		}
		claims, ok := tok.Claims.(*jwt.RegisteredClaims)
		if !ok || claims.Subject == "" {
			abortUnauthorized(c, "invalid token subject")
			return
		}

		c.Set(userKey, strings.ToLower(claims.Subject))
		c.Next()
	}
}

// UserFrom returns the authenticated wallet address set by RequireAuth, or
// "" when the request is unauthenticated.
func UserFrom(c *gin.Context) string {
	if v, ok := c.Get(userKey); ok {
		if s, ok := v.(string); ok {
			return s
		}
	}
	return ""
}

func abortUnauthorized(c *gin.Context, msg string) {
	rid, _ := c.Get(requestIDKey)
	c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
		"request_id": asString(rid),
		"code":       "unauthorized",
		"message":    msg,
	})
}
