package mailer

import "time"

// Config holds SMTP delivery configuration.
// Username and Password may legitimately be empty: the gateway starts in a
// degraded mode and reports "SMTP not configured" on every send attempt.
type Config struct {
	Host     string `env:"SMTP_HOST" envDefault:"smtp.gmail.com"`
	Port     int    `env:"SMTP_PORT" envDefault:"587"`
	Username string `env:"SMTP_USER"`
	Password string `env:"SMTP_PASSWORD"`
	// From is the envelope and header sender address. Falls back to Username.
	From string `env:"SMTP_FROM"`
	// FromName is the default display name when a request carries none.
	FromName string `env:"SMTP_FROM_NAME" envDefault:"Mailgate"`
	// UseTLS upgrades the connection with STARTTLS after the greeting.
	UseTLS bool `env:"SMTP_USE_TLS" envDefault:"true"`
	// SendTimeout bounds the whole SMTP transaction including the dial.
	SendTimeout time.Duration `env:"SMTP_SEND_TIMEOUT" envDefault:"30s"`
}
