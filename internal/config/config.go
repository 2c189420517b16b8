// Package config provides application configuration loaded from environment
// variables with defaults and validation. It centralizes application settings
// such as server timeouts, logging, database paths, mail delivery, the chat
// completion provider, and submission rate limiting.
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

// SMTPConfig defines outbound mail delivery settings. Sender and AdminEmail
// carry display-name addresses (e.g. `"Vallit Website" <info@vallit.net>`).
type SMTPConfig struct {
	Host       string // SMTP_HOST
	Port       int    // SMTP_PORT (465 implies implicit TLS)
	User       string // SMTP_USER
	Pass       string // SMTP_PASS
	Sender     string // SMTP_SENDER
	AdminEmail string // ADMIN_EMAIL (defaults to SMTP_USER)
}

// CompletionConfig defines the chat completion provider settings.
type CompletionConfig struct {
	APIKey       string        // OPENAI_API_KEY
	BaseURL      string        // OPENAI_BASE_URL
	Model        string        // OPENAI_MODEL (cost-effective default)
	SystemPrompt string        // CHAT_SYSTEM_PROMPT
	Timeout      time.Duration // COMPLETION_TIMEOUT
}

// SubmissionConfig defines the store-backed rate limiting and spam detection
// rules applied to chat submissions.
type SubmissionConfig struct {
	Window      time.Duration // RATE_WINDOW (trailing window)
	MaxCount    int           // RATE_MAX_COUNT (accepted submissions per window)
	MinInterval time.Duration // SPAM_MIN_INTERVAL (floor between submissions)
	EffectWait  time.Duration // EFFECT_WAIT (bounded wait for best-effort effects)
}

// RedisConfig defines the optional Redis connection used to mirror edge rate
// limiter decisions. An empty Addr disables Redis entirely.
type RedisConfig struct {
	Addr     string // REDIS_ADDR (e.g. "localhost:6379"; empty = disabled)
	Password string // REDIS_PASSWORD
	DB       int    // REDIS_DB
}

// OTELConfig defines OpenTelemetry observability settings.
type OTELConfig struct {
	Enabled     bool    // OTEL_ENABLED
	Endpoint    string  // OTEL_EXPORTER_OTLP_ENDPOINT (e.g. "otel:4317")
	Insecure    bool    // OTEL_EXPORTER_OTLP_INSECURE (true if no TLS)
	ServiceName string  // OTEL_SERVICE_NAME (e.g. "vallit-site-backend")
	SampleRatio float64 // OTEL_TRACES_SAMPLER_ARG in [0..1]
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
	DBPath   string // SQLite path
	ZoomLink string // static meeting link embedded in booking mails

	// Edge rate limiting (token bucket, per session/IP)
	RateRPS   float64 // tokens per second (>= 0)
	RateBurst int     // bucket size (>= 1)

	// Store-backed submission limits
	Submission SubmissionConfig

	// Outbound mail
	SMTP SMTPConfig

	// Chat completion provider
	Completion CompletionConfig

	// Web protection
	CORS     CORSConfig
	Security SecurityConfig

	// Idempotency
	IdempotencyTTL time.Duration // how long a given Idempotency-Key is valid

	// Optional decision mirroring
	Redis RedisConfig

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
	smtpUser := getenv("SMTP_USER", "")

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
		APIBasePath: normalizeBasePath(getenv("API_BASE_PATH", "/api/v1")),

		// App
		DBPath:   getenv("DB_PATH", "app.db"),
		ZoomLink: getenv("ZOOM_STATIC_LINK", "https://zoom.us/j/example-meeting-id"),

		// Edge rate limiting
		RateRPS:   getfloat("RATE_RPS", 5.0),
		RateBurst: getint("RATE_BURST", 10),

		// Submission limits (windowed, store-backed)
		Submission: SubmissionConfig{
			Window:      getdur("RATE_WINDOW", time.Minute),
			MaxCount:    getint("RATE_MAX_COUNT", 5),
			MinInterval: getdur("SPAM_MIN_INTERVAL", time.Second),
			EffectWait:  getdur("EFFECT_WAIT", 10*time.Second),
		},

		// Outbound mail
		SMTP: SMTPConfig{
			Host:       getenv("SMTP_HOST", ""),
			Port:       getint("SMTP_PORT", 587),
			User:       smtpUser,
			Pass:       getenv("SMTP_PASS", ""),
			Sender:     getenv("SMTP_SENDER", `"Vallit Website" <info@vallit.net>`),
			AdminEmail: getenv("ADMIN_EMAIL", smtpUser),
		},

		// Chat completion provider
		Completion: CompletionConfig{
			APIKey:       getenv("OPENAI_API_KEY", ""),
			BaseURL:      getenv("OPENAI_BASE_URL", "https://api.openai.com/v1"),
			Model:        getenv("OPENAI_MODEL", "gpt-4o-mini"),
			SystemPrompt: getenv("CHAT_SYSTEM_PROMPT", "You are Kian, a helpful AI assistant for Vallit. You are professional, concise, and friendly."),
			Timeout:      getdur("COMPLETION_TIMEOUT", 30*time.Second),
		},

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

		// Redis (optional)
		Redis: RedisConfig{
			Addr:     getenv("REDIS_ADDR", ""),
			Password: getenv("REDIS_PASSWORD", ""),
			DB:       getint("REDIS_DB", 0),
		},

		// Observability (OpenTelemetry)
		OTEL: OTELConfig{
			Enabled:     getbool("OTEL_ENABLED", false),
			Endpoint:    getenv("OTEL_EXPORTER_OTLP_ENDPOINT", "localhost:4317"),
			Insecure:    getbool("OTEL_EXPORTER_OTLP_INSECURE", true),
			ServiceName: getenv("OTEL_SERVICE_NAME", "vallit-site-backend"),
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
	if cfg.Submission.Window <= 0 {
		return cfg, errors.New("RATE_WINDOW must be > 0")
	}
	if cfg.Submission.MaxCount < 1 {
		return cfg, errors.New("RATE_MAX_COUNT must be >= 1")
	}
	if cfg.Submission.MinInterval < 0 {
		return cfg, errors.New("SPAM_MIN_INTERVAL must be >= 0")
	}
	if cfg.Submission.EffectWait <= 0 {
		return cfg, errors.New("EFFECT_WAIT must be > 0")
	}
	if cfg.SMTP.Port <= 0 || cfg.SMTP.Port > 65535 {
		return cfg, errors.New("SMTP_PORT must be a valid TCP port")
	}
	if cfg.Completion.Timeout <= 0 {
		return cfg, errors.New("COMPLETION_TIMEOUT must be > 0")
	}
	if strings.TrimSpace(cfg.Completion.Model) == "" {
		return cfg, errors.New("OPENAI_MODEL must not be empty")
	}
	if cfg.Security.HSTSMaxAge < 0 {
		return cfg, errors.New("HSTS_MAX_AGE must be >= 0")
	}
	if cfg.IdempotencyTTL <= 0 {
		return cfg, errors.New("IDEMPOTENCY_TTL must be > 0")
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
