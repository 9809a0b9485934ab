// Package mailer owns SMTP delivery: message construction, the wire
// transaction, failure classification and the in-memory delivery counters.
package mailer

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/smtp"
	"net/textproto"
	"strconv"
	"time"

	"github.com/railsentry/mailgate/pkg/logger"
)

// ErrAuthFailed marks SMTP authentication rejections so they can be
// classified separately from other protocol failures.
var ErrAuthFailed = errors.New("smtp authentication failed")

// Result is the outcome of one send attempt. Message carries the classified,
// caller-facing reason; it never contains a stack trace.
type Result struct {
	OK      bool
	Message string
}

// Mailer delivers email over SMTP and tracks delivery statistics.
// Safe for concurrent use.
type Mailer struct {
	cfg   Config
	log   *slog.Logger
	stats stats

	// now is swapped in tests to pin timestamps.
	now func() time.Time
}

// Option configures a Mailer.
type Option func(*Mailer)

// WithLogger sets the logger for send-path events.
func WithLogger(log *slog.Logger) Option {
	return func(m *Mailer) {
		if log != nil {
			m.log = log
		}
	}
}

// New creates a Mailer. An empty From address falls back to the username,
// matching the common case where the SMTP account is also the sender.
func New(cfg Config, opts ...Option) *Mailer {
	if cfg.From == "" {
		cfg.From = cfg.Username
	}
	if cfg.SendTimeout <= 0 {
		cfg.SendTimeout = 30 * time.Second
	}

	m := &Mailer{
		cfg: cfg,
		log: slog.Default(),
		now: time.Now,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// IsConfigured reports whether SMTP credentials are present.
func (m *Mailer) IsConfigured() bool {
	return m.cfg.Username != "" && m.cfg.Password != ""
}

// Stats returns a snapshot of the delivery counters.
func (m *Mailer) Stats() StatsSnapshot {
	return m.stats.snapshot()
}

// Send delivers one message. A single attempt, no retries.
//
// The missing-credentials guard runs before the instrumented path: it
// reports failure to the caller but does not count toward total_failed.
// Every attempt that reaches the wire increments exactly one counter.
func (m *Mailer) Send(ctx context.Context, msg Message) Result {
	if !m.IsConfigured() {
		m.log.Warn("send rejected, smtp not configured", logger.Component("mailer"))
		return Result{OK: false, Message: "SMTP not configured"}
	}

	m.log.Info("sending email",
		logger.Component("mailer"),
		slog.String("to", msg.To),
		slog.String("host", m.cfg.Host),
	)

	if err := m.deliver(ctx, msg); err != nil {
		m.stats.recordFailure()
		reason := classify(err)
		m.log.Error("send failed",
			logger.Component("mailer"),
			slog.String("to", msg.To),
			slog.String("reason", reason),
			logger.Error(err),
		)
		return Result{OK: false, Message: reason}
	}

	m.stats.recordSuccess(m.now().UTC())
	m.log.Info("email sent", logger.Component("mailer"), slog.String("to", msg.To))
	return Result{OK: true, Message: "Email sent successfully"}
}

// deliver runs the SMTP transaction: dial, greet, STARTTLS upgrade when
// enabled, authenticate, transmit, quit. The whole exchange is bounded by
// the configured send timeout.
func (m *Mailer) deliver(ctx context.Context, msg Message) error {
	raw, err := buildMessage(m.cfg, msg, m.now())
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(ctx, m.cfg.SendTimeout)
	defer cancel()

	addr := net.JoinHostPort(m.cfg.Host, strconv.Itoa(m.cfg.Port))
	var dialer net.Dialer
	conn, err := dialer.DialContext(ctx, "tcp", addr)
	if err != nil {
		return fmt.Errorf("connect to %s: %w", addr, err)
	}
	if deadline, ok := ctx.Deadline(); ok {
		_ = conn.SetDeadline(deadline)
	}

	client, err := smtp.NewClient(conn, m.cfg.Host)
	if err != nil {
		_ = conn.Close()
		return fmt.Errorf("smtp greeting: %w", err)
	}
	defer func() { _ = client.Close() }()

	if m.cfg.UseTLS {
		// StartTLS re-issues EHLO over the upgraded connection.
		if err := client.StartTLS(&tls.Config{ServerName: m.cfg.Host}); err != nil {
			return fmt.Errorf("starttls: %w", err)
		}
	}

	auth := smtp.PlainAuth("", m.cfg.Username, m.cfg.Password, m.cfg.Host)
	if err := client.Auth(auth); err != nil {
		var protoErr *textproto.Error
		if errors.As(err, &protoErr) {
			return fmt.Errorf("%w: %s", ErrAuthFailed, protoErr.Msg)
		}
		return fmt.Errorf("auth: %w", err)
	}

	if err := client.Mail(m.cfg.From); err != nil {
		return fmt.Errorf("mail from: %w", err)
	}
	if err := client.Rcpt(msg.To); err != nil {
		return fmt.Errorf("rcpt to: %w", err)
	}

	writer, err := client.Data()
	if err != nil {
		return fmt.Errorf("data: %w", err)
	}
	if _, err := writer.Write(raw); err != nil {
		_ = writer.Close()
		return fmt.Errorf("write message: %w", err)
	}
	if err := writer.Close(); err != nil {
		return fmt.Errorf("finish message: %w", err)
	}

	// Quit errors are non-fatal: the message was accepted at DATA and some
	// servers drop the connection immediately after.
	_ = client.Quit()
	return nil
}

// classify maps a delivery error onto the caller-facing failure taxonomy.
// First match wins: authentication, then SMTP protocol, then everything else
// (DNS, refused connection, timeout, encoding).
func classify(err error) string {
	if errors.Is(err, ErrAuthFailed) {
		return "SMTP authentication failed"
	}

	var protoErr *textproto.Error
	if errors.As(err, &protoErr) {
		return fmt.Sprintf("SMTP error: %d %s", protoErr.Code, protoErr.Msg)
	}

	return fmt.Sprintf("Unexpected error: %v", err)
}
