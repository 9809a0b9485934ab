package config

import (
	"github.com/railsentry/mailgate/internal/mailer"
	"github.com/railsentry/mailgate/internal/server"
	"github.com/railsentry/mailgate/pkg/logger"
)

// DefaultAPIKey is the placeholder shipped in .env.example. Running with it
// is reported by Validate so nobody exposes the gateway unkeyed by accident.
const DefaultAPIKey = "CHANGE-THIS-TO-SECURE-KEY"

// Config aggregates all process settings. Populated once at startup and
// never mutated afterwards.
type Config struct {
	SMTP      mailer.Config
	RateLimit RateLimitConfig
	Log       logger.Config
	Server    server.Config

	SecretKey string `env:"SECRET_KEY" envDefault:"dev-secret-key-change-in-production"`
	Debug     bool   `env:"DEBUG" envDefault:"false"`
	APIKey    string `env:"API_KEY" envDefault:"CHANGE-THIS-TO-SECURE-KEY"`

	// Payload size limits enforced by the send-email validation pipeline.
	MaxSubjectLength int `env:"MAX_SUBJECT_LENGTH" envDefault:"200"`
	MaxBodyLength    int `env:"MAX_BODY_LENGTH" envDefault:"10000"`
}

// RateLimitConfig controls the request throttling layers.
// The global limits apply to every route; PerHour is the tighter
// send-email route limit.
type RateLimitConfig struct {
	Enabled bool `env:"RATE_LIMIT_ENABLED" envDefault:"true"`
	PerHour int  `env:"RATE_LIMIT_PER_HOUR" envDefault:"100"`

	GlobalPerDay  int `env:"RATE_LIMIT_GLOBAL_PER_DAY" envDefault:"200"`
	GlobalPerHour int `env:"RATE_LIMIT_GLOBAL_PER_HOUR" envDefault:"50"`

	// Store selects the limiter backend: "memory" (per process, default)
	// or "redis" (shared across replicas).
	Store    string `env:"RATE_LIMIT_STORE" envDefault:"memory"`
	RedisURL string `env:"REDIS_URL"`
}

// Validate reports human-readable problems with critical settings.
// An empty slice means the configuration is fully usable. The process still
// starts with problems present; delivery degrades to "SMTP not configured".
func (c Config) Validate() []string {
	var problems []string

	if c.SMTP.Username == "" {
		problems = append(problems, "SMTP_USER not configured")
	}
	if c.SMTP.Password == "" {
		problems = append(problems, "SMTP_PASSWORD not configured")
	}
	if c.APIKey == DefaultAPIKey {
		problems = append(problems, "API_KEY must be changed from default")
	}

	return problems
}
