// Package httpapi wires the HTTP transport (Gin) to application services,
// middleware, and route handlers. It centralizes cross-cutting concerns such
// as tracing, correlation IDs, logging/redaction, panic recovery, metrics,
// CORS, security headers, idempotency, and rate limiting.
//
// Design goals:
//   - Put observability first (OTel + Prometheus)
//   - Safe-by-default middleware ordering (RequestID → logging → recovery)
//   - Deterministic, minimal router setup; all dependencies injected
//   - The privileged worker route sits outside the bearer-auth group and is
//     reachable only with a valid HMAC envelope
package httpapi

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-contrib/gzip"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"

	"github.com/voicepay/go-voicepay-backend/internal/chain"
	"github.com/voicepay/go-voicepay-backend/internal/config"
	"github.com/voicepay/go-voicepay-backend/internal/http/handlers"
	"github.com/voicepay/go-voicepay-backend/internal/http/middleware"
	"github.com/voicepay/go-voicepay-backend/internal/nlp"
	"github.com/voicepay/go-voicepay-backend/internal/repo"
	"github.com/voicepay/go-voicepay-backend/internal/services"
	"github.com/voicepay/go-voicepay-backend/internal/shard"
)

// Deps carries the constructed subsystems the router mounts. Everything is
// injected so tests can run the full HTTP surface against fakes.
type Deps struct {
	Shards   *shard.Manager
	Parser   nlp.Parser
	Executor chain.Executor
}

// RegisterRoutes attaches all middleware and HTTP endpoints to the given Gin
// engine. It configures observability (tracing, metrics), idempotency and rate
// limiting, CORS and security headers, health and metrics endpoints, and then
// mounts the public API plus the worker bridge.
//
// Middleware order matters:
//  1. OpenTelemetry: trace everything
//  2. RequestID: generate/propagate correlation id
//  3. RedactingLogger: structured logs with PII scrubbing
//  4. Recovery: capture panics after logger
//  5. Body size limiter, gzip
//  6. Metrics
//  7. Idempotency validator (before rate limiter to allow bypass on replay)
//  8. Rate limiter (per user/IP, bypass on replay)
//  9. CORS and Security headers
func RegisterRoutes(r *gin.Engine, deps Deps, cfg config.Config) {
	r.HandleMethodNotAllowed = true
	db := deps.Shards.DB()

	// 1) Trace all HTTP requests
	r.Use(otelgin.Middleware(cfg.OTEL.ServiceName))

	// 2) Correlate requests and logs
	r.Use(middleware.RequestID())

	// 3) Structured logging with redaction (the worker HMAC header is masked
	// by default alongside Authorization)
	r.Use(middleware.RedactingLogger(middleware.RedactOptions{}))

	// 4) Panic recovery to JSON 500 (with request id)
	r.Use(middleware.Recovery())

	// 5) Global body size limit (1 MiB) and response compression
	r.Use(limitBody(1 << 20))
	r.Use(gzip.Gzip(gzip.DefaultCompression))

	// 6) Prometheus metrics and /metrics endpoint
	r.Use(middleware.Metrics())
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	// 7) Idempotency validation (before rate limiting)
	r.Use(middleware.IdempotencyValidator(
		middleware.IdempotencyOptions{
			MaxLen: 200,
		},
		func(ctx context.Context, userAddr, key string, now time.Time) (bool, error) {
			rec, err := repo.GetIdempotency(ctx, db, userAddr, key, now)
			if err != nil || rec == nil {
				return false, nil
			}
			return true, nil
		},
	))

	// 8) Token-bucket rate limiter per user/IP
	rl := middleware.NewRateLimiter(cfg.RateRPS, cfg.RateBurst, middleware.KeyByUserOrIP())
	r.Use(rl.Handler())

	// 9) CORS posture (safe defaults: allow all if none configured)
	if len(cfg.CORS.AllowedOrigins) == 0 {
		r.Use(cors.New(cors.Config{
			AllowAllOrigins:  true,
			AllowMethods:     []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
			AllowHeaders:     []string{"Origin", "Content-Type", "Accept", "Authorization", middleware.HeaderIdempotencyKey},
			ExposeHeaders:    []string{"X-Request-ID", "Content-Length"},
			AllowCredentials: false, // must remain false with AllowAllOrigins
			MaxAge:           12 * time.Hour,
		}))
	} else {
		r.Use(cors.New(cors.Config{
			AllowOrigins:     cfg.CORS.AllowedOrigins,
			AllowMethods:     []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
			AllowHeaders:     []string{"Origin", "Content-Type", "Accept", "Authorization", middleware.HeaderIdempotencyKey},
			ExposeHeaders:    []string{"X-Request-ID", "Content-Length"},
			AllowCredentials: false,
			MaxAge:           12 * time.Hour,
		}))
	}

	// Security headers (HSTS only when enabled and request is HTTPS)
	r.Use(middleware.SecurityHeaders(middleware.SecurityOptions{
		EnableHSTS:   cfg.Security.EnableHSTS,
		HSTSMaxAge:   cfg.Security.HSTSMaxAge,
		NoStore:      false,
		EnablePolicy: true,
	}))

	// Fallbacks
	r.NoRoute(func(c *gin.Context) {
		handlers.Fail(c, http.StatusNotFound, handlers.CodeNotFound, "route not found")
	})
	r.NoMethod(func(c *gin.Context) {
		handlers.Fail(c, http.StatusMethodNotAllowed, handlers.CodeMethodNotAllowed, "method not allowed")
	})

	// Liveness/health
	r.GET("/health", func(c *gin.Context) { c.JSON(http.StatusOK, gin.H{"status": "ok"}) })

	// Dependency injection: services ← shards/parser/executor
	authSvc := services.NewAuthService(deps.Shards, []byte(cfg.Auth.JWTSecret), cfg.Auth.JWTTTL)
	recipSvc := services.NewRecipientService(deps.Shards)
	schedSvc := services.NewScheduleService(deps.Shards, cfg.IndexOpTimeout)
	txSvc := services.NewTransactionService(deps.Shards)
	intentSvc := services.NewIntentService(deps.Shards, deps.Parser)

	authH := handlers.NewAuthHandler(authSvc)
	recipH := handlers.NewRecipientHandler(recipSvc)
	intentH := handlers.NewIntentHandler(intentSvc)
	txH := handlers.NewTransactionHandler(txSvc, schedSvc, db, cfg.IdempotencyTTL, cfg.Chain.RecurringContract)

	apiBase := cfg.APIBasePath
	api := groupWithPrefix(r, apiBase)

	// Login flow (unauthenticated)
	api.POST("/auth/nonce", authH.Nonce)
	api.POST("/auth/verify", authH.Verify)

	// User-facing API (bearer token)
	authed := api.Group("", middleware.RequireAuth([]byte(cfg.Auth.JWTSecret)))
	{
		authed.GET("/recipients", recipH.List)
		authed.POST("/recipients", recipH.Add)
		authed.PUT("/recipients", recipH.Update)
		authed.DELETE("/recipients/:wallet", recipH.Delete)

		authed.POST("/intent/parse-intent", intentH.Parse)

		authed.GET("/transactions", txH.List)
		authed.POST("/transactions/store", txH.Store)
		authed.POST("/transactions/setup-recurring", txH.SetupRecurring)
		authed.GET("/transactions/recurring", txH.ListRecurring)
		authed.DELETE("/transactions/recurring/:id", txH.CancelRecurring)
	}

	// Executor bridge (worker HMAC, never bearer tokens)
	if deps.Executor != nil {
		workerH := handlers.NewWorkerHandler(deps.Executor, cfg.Chain.USDCAddress)
		api.POST("/transactions/process-recurring",
			middleware.RequireWorkerAuth([]byte(cfg.Auth.HMACSecret), cfg.Auth.ClockSkew),
			workerH.ProcessRecurring,
		)
	}
}

// limitBody returns a Gin middleware that caps the request body size for all
// endpoints to maxBytes using http.MaxBytesReader. Requests exceeding the cap
// will cause downstream body reads to error.
func limitBody(maxBytes int64) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, maxBytes)
		c.Next()
	}
}

// groupWithPrefix mounts a group at prefix, treating "/" (or empty) as root.
func groupWithPrefix(r *gin.Engine, prefix string) *gin.RouterGroup {
	if prefix == "" || prefix == "/" {
		return r.Group("")
	}
	return r.Group(prefix)
}
