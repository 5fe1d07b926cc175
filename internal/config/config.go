// Package config provides application configuration loaded from environment
// variables with defaults and validation. It centralizes application settings
// such as server timeouts, logging, database paths, dispatcher cadence,
// chain connectivity, and service-to-service secrets.
package config

import (
	"errors"
	"os"
	"strconv"
	"strings"
	"time"
)

// CORSConfig defines Cross-Origin Resource Sharing settings.
type CORSConfig struct {
	AllowedOrigins []string
}

// SecurityConfig defines security-related settings such as HSTS.
type SecurityConfig struct {
	EnableHSTS bool
	HSTSMaxAge time.Duration
}

// OTELConfig defines OpenTelemetry observability settings.
type OTELConfig struct {
	Enabled     bool    // OTEL_ENABLED
	Endpoint    string  // OTEL_EXPORTER_OTLP_ENDPOINT (e.g. "otel:4317")
	Insecure    bool    // OTEL_EXPORTER_OTLP_INSECURE (true if no TLS)
	ServiceName string  // OTEL_SERVICE_NAME (e.g. "voicepay-backend")
	SampleRatio float64 // OTEL_TRACES_SAMPLER_ARG in [0..1]
}

// DispatchConfig groups the recurring-payment dispatcher settings.
type DispatchConfig struct {
	Interval     time.Duration // DISPATCH_INTERVAL_SECONDS
	Timeout      time.Duration // DISPATCH_TIMEOUT_SECONDS (executor call bound)
	RetryBackoff time.Duration // RETRY_BACKOFF_SECONDS
	Workers      int           // DISPATCH_WORKERS (in-flight executor calls)
	ExecutorURL  string        // EXECUTOR_URL (process-recurring endpoint)
}

// ChainConfig groups on-chain connectivity and contract addresses.
type ChainConfig struct {
	RPCURL            string // RPC_URL
	ExecutorKey       string // EXECUTOR_PRIVATE_KEY (hex, no 0x)
	RecurringContract string // RECURRING_CONTRACT
	USDCAddress       string // USDC_ADDRESS
	ChainID           int64  // CHAIN_ID
	ConfirmTimeout    time.Duration
}

// AuthConfig groups wallet-login and service-auth secrets.
type AuthConfig struct {
	JWTSecret  string        // JWT_SECRET
	JWTTTL     time.Duration // JWT_TTL
	HMACSecret string        // HMAC_SHARED_SECRET
	ClockSkew  time.Duration // HMAC_CLOCK_SKEW_SECONDS
}

// Config holds all configuration values for the application.
type Config struct {
	// Server
	Port              string        // just the number
	ReadTimeout       time.Duration // e.g. 15s
	ReadHeaderTimeout time.Duration // e.g. 10s
	WriteTimeout      time.Duration // e.g. 20s
	IdleTimeout       time.Duration // e.g. 60s
	MaxHeaderBytes    int           // bytes
	GinMode           string        // debug|release|test

	// Logging
	LogLevel    string // debug|info|warn|error|fatal|panic
	LogPretty   bool   // pretty console logs in dev
	APIBasePath string // base path for API routes

	// App
	DBPath         string        // SQLite path
	ParserURL      string        // external NL parser endpoint; empty = local rules
	ParserTimeout  time.Duration // PARSER_TIMEOUT
	ShardOpTimeout time.Duration // SHARD_OP_TIMEOUT
	IndexOpTimeout time.Duration // INDEX_OP_TIMEOUT

	// Rate limiting
	RateRPS   float64 // tokens per second (>= 0)
	RateBurst int     // bucket size (>= 1)

	// Web protection
	CORS     CORSConfig
	Security SecurityConfig

	// Idempotency
	IdempotencyTTL time.Duration // how long a given Idempotency-Key is valid

	// Subsystems
	Dispatch DispatchConfig
	Chain    ChainConfig
	Auth     AuthConfig

	// Observability
	OTEL OTELConfig
}

// MustLoad loads the configuration and panics if validation fails.
func MustLoad() Config {
	cfg, err := Load()
	if err != nil {
		panic(err)
	}
	return cfg
}

// Load reads configuration from environment variables,
// applies defaults, normalizes values, and validates the result.
func Load() (Config, error) {
	cfg := Config{
		// Server
		Port:              getenv("PORT", "8080"),
		ReadTimeout:       getdur("READ_TIMEOUT", 15*time.Second),
		ReadHeaderTimeout: getdur("READ_HEADER_TIMEOUT", 10*time.Second),
		WriteTimeout:      getdur("WRITE_TIMEOUT", 20*time.Second),
		IdleTimeout:       getdur("IDLE_TIMEOUT", 60*time.Second),
		MaxHeaderBytes:    getint("MAX_HEADER_BYTES", 1<<20),
		GinMode:           strings.ToLower(getenv("GIN_MODE", "release")),

		// Logging
		LogLevel:    strings.ToLower(getenv("LOG_LEVEL", "info")),
		LogPretty:   getbool("LOG_PRETTY", false),
		APIBasePath: normalizeBasePath(getenv("API_BASE_PATH", "/")),

		// App
		DBPath:         getenv("DB_PATH", "voicepay.db"),
		ParserURL:      getenv("PARSER_URL", ""),
		ParserTimeout:  getsec("PARSER_TIMEOUT_SECONDS", 15*time.Second),
		ShardOpTimeout: getsec("SHARD_OP_TIMEOUT_SECONDS", 5*time.Second),
		IndexOpTimeout: getsec("INDEX_OP_TIMEOUT_SECONDS", 5*time.Second),

		// Rate limiting
		RateRPS:   getfloat("RATE_RPS", 5.0),
		RateBurst: getint("RATE_BURST", 10),

		// Web protection
		CORS: CORSConfig{
			AllowedOrigins: splitCSV(getenv("CORS_ALLOWED_ORIGINS", "")),
		},
		Security: SecurityConfig{
			EnableHSTS: getbool("ENABLE_HSTS", false),
			HSTSMaxAge: getdur("HSTS_MAX_AGE", 180*24*time.Hour),
		},

		// Idempotency
		IdempotencyTTL: getdur("IDEMPOTENCY_TTL", 24*time.Hour),

		// Dispatcher
		Dispatch: DispatchConfig{
			Interval:     getsec("DISPATCH_INTERVAL_SECONDS", 60*time.Second),
			Timeout:      getsec("DISPATCH_TIMEOUT_SECONDS", 30*time.Second),
			RetryBackoff: getsec("RETRY_BACKOFF_SECONDS", 600*time.Second),
			Workers:      getint("DISPATCH_WORKERS", 8),
			ExecutorURL:  getenv("EXECUTOR_URL", "http://127.0.0.1:8080/transactions/process-recurring"),
		},

		// Chain
		Chain: ChainConfig{
			RPCURL:            getenv("RPC_URL", ""),
			ExecutorKey:       getenv("EXECUTOR_PRIVATE_KEY", ""),
			RecurringContract: getenv("RECURRING_CONTRACT", ""),
			USDCAddress:       getenv("USDC_ADDRESS", ""),
			ChainID:           int64(getint("CHAIN_ID", 8453)),
			ConfirmTimeout:    getsec("CHAIN_CONFIRM_TIMEOUT_SECONDS", 25*time.Second),
		},

		// Auth
		Auth: AuthConfig{
			JWTSecret:  getenv("JWT_SECRET", ""),
			JWTTTL:     getdur("JWT_TTL", 24*time.Hour),
			HMACSecret: getenv("HMAC_SHARED_SECRET", ""),
			ClockSkew:  getsec("HMAC_CLOCK_SKEW_SECONDS", 300*time.Second),
		},

		// Observability (OpenTelemetry)
		OTEL: OTELConfig{
			Enabled:     getbool("OTEL_ENABLED", false),
			Endpoint:    getenv("OTEL_EXPORTER_OTLP_ENDPOINT", "localhost:4317"),
			Insecure:    getbool("OTEL_EXPORTER_OTLP_INSECURE", true),
			ServiceName: getenv("OTEL_SERVICE_NAME", "voicepay-backend"),
			SampleRatio: getfloat("OTEL_TRACES_SAMPLER_ARG", 1.0),
		},
	}

	// --- normalization ---
	if cfg.LogLevel == "warning" {
		cfg.LogLevel = "warn"
	}
	switch cfg.GinMode {
	case "debug", "release", "test":
	default:
		cfg.GinMode = "release"
	}

	// --- validation ---
	switch cfg.LogLevel {
	case "debug", "info", "warn", "error", "fatal", "panic":
	default:
		return cfg, errors.New("LOG_LEVEL must be one of: debug, info, warn, error, fatal, panic")
	}
	if strings.TrimSpace(cfg.Port) == "" {
		return cfg, errors.New("PORT must not be empty")
	}
	if cfg.ReadTimeout <= 0 || cfg.ReadHeaderTimeout <= 0 || cfg.WriteTimeout <= 0 || cfg.IdleTimeout <= 0 {
		return cfg, errors.New("timeouts must be positive durations")
	}
	if cfg.MaxHeaderBytes <= 0 {
		return cfg, errors.New("MAX_HEADER_BYTES must be > 0")
	}
	if strings.TrimSpace(cfg.DBPath) == "" {
		return cfg, errors.New("DB_PATH must not be empty")
	}
	if cfg.RateRPS < 0 {
		return cfg, errors.New("RATE_RPS must be >= 0")
	}
	if cfg.RateBurst < 1 {
		return cfg, errors.New("RATE_BURST must be >= 1")
	}
	if cfg.Security.HSTSMaxAge < 0 {
		return cfg, errors.New("HSTS_MAX_AGE must be >= 0")
	}
	if cfg.IdempotencyTTL <= 0 {
		return cfg, errors.New("IDEMPOTENCY_TTL must be > 0")
	}
	if cfg.Dispatch.Interval <= 0 {
		return cfg, errors.New("DISPATCH_INTERVAL_SECONDS must be > 0")
	}
	if cfg.Dispatch.Timeout <= 0 {
		return cfg, errors.New("DISPATCH_TIMEOUT_SECONDS must be > 0")
	}
	if cfg.Dispatch.RetryBackoff <= 0 {
		return cfg, errors.New("RETRY_BACKOFF_SECONDS must be > 0")
	}
	if cfg.Dispatch.Workers < 1 {
		return cfg, errors.New("DISPATCH_WORKERS must be >= 1")
	}
	if cfg.Auth.ClockSkew <= 0 {
		return cfg, errors.New("HMAC_CLOCK_SKEW_SECONDS must be > 0")
	}
	if cfg.Auth.JWTTTL <= 0 {
		return cfg, errors.New("JWT_TTL must be > 0")
	}
	if cfg.OTEL.SampleRatio < 0 || cfg.OTEL.SampleRatio > 1 {
		return cfg, errors.New("OTEL_TRACES_SAMPLER_ARG must be in [0,1]")
	}

	return cfg, nil
}

// ---- helpers (no external deps) ----

func getenv(k, def string) string {
	if v, ok := os.LookupEnv(k); ok && v != "" {
		return v
	}
	return def
}

func getfloat(k string, def float64) float64 {
	if v, ok := os.LookupEnv(k); ok && v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return def
}

func getint(k string, def int) int {
	if v, ok := os.LookupEnv(k); ok && v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return def
}

func getbool(k string, def bool) bool {
	if v, ok := os.LookupEnv(k); ok && v != "" {
		switch strings.ToLower(strings.TrimSpace(v)) {
		case "1", "true", "yes", "y", "on":
			return true
		case "0", "false", "no", "n", "off":
			return false
		}
	}
	return def
}

func getdur(k string, def time.Duration) time.Duration {
	if v, ok := os.LookupEnv(k); ok && v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return def
}

// getsec reads a whole-seconds environment variable (e.g. "600") and returns
// it as a duration. The deployment convention uses *_SECONDS names.
func getsec(k string, def time.Duration) time.Duration {
	if v, ok := os.LookupEnv(k); ok && v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return time.Duration(i) * time.Second
		}
	}
	return def
}

func splitCSV(s string) []string {
	if s == "" {
		return nil
	}
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		t := strings.TrimSpace(p)
		if t != "" {
			out = append(out, t)
		}
	}
	return out
}

// normalizeBasePath ensures leading '/' and strips trailing '/' (except root).
func normalizeBasePath(p string) string {
	p = strings.TrimSpace(p)
	if p == "" {
		return "/"
	}
	if !strings.HasPrefix(p, "/") {
		p = "/" + p
	}
	if len(p) > 1 && strings.HasSuffix(p, "/") {
		p = strings.TrimRight(p, "/")
	}
	return p
}
