package mailer_test

import (
	"context"
	"io"
	"log/slog"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/railsentry/mailgate/internal/mailer"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func testConfig(host string, port int) mailer.Config {
	return mailer.Config{
		Host:        host,
		Port:        port,
		Username:    "relay@example.com",
		Password:    "app-password",
		From:        "noreply@example.com",
		FromName:    "Mailgate",
		UseTLS:      false,
		SendTimeout: 5 * time.Second,
	}
}

func testMessage() mailer.Message {
	return mailer.Message{
		To:      "user@example.com",
		Subject: "Service alert",
		Body:    "line one\nline two",
	}
}

func TestMailer_NotConfigured(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		cfg  mailer.Config
	}{
		{name: "no username", cfg: mailer.Config{Password: "secret"}},
		{name: "no password", cfg: mailer.Config{Username: "user"}},
		{name: "neither", cfg: mailer.Config{}},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			m := mailer.New(tt.cfg, mailer.WithLogger(discardLogger()))
			assert.False(t, m.IsConfigured())

			result := m.Send(context.Background(), testMessage())
			assert.False(t, result.OK)
			assert.Equal(t, "SMTP not configured", result.Message)

			// Pre-flight rejection is a guard clause, not a counted failure.
			stats := m.Stats()
			assert.Zero(t, stats.TotalSent)
			assert.Zero(t, stats.TotalFailed)
			assert.Nil(t, stats.LastSent)
		})
	}
}

func TestMailer_SendSuccess(t *testing.T) {
	t.Parallel()

	srv := newFakeSMTP(t)
	host, port := srv.hostPort()

	m := mailer.New(testConfig(host, port), mailer.WithLogger(discardLogger()))
	require.True(t, m.IsConfigured())

	before := time.Now().UTC()
	result := m.Send(context.Background(), testMessage())
	require.True(t, result.OK, "send failed: %s", result.Message)
	assert.Equal(t, "Email sent successfully", result.Message)

	stats := m.Stats()
	assert.EqualValues(t, 1, stats.TotalSent)
	assert.EqualValues(t, 0, stats.TotalFailed)
	require.NotNil(t, stats.LastSent)
	assert.False(t, stats.LastSent.Before(before))

	raw := srv.lastMessage()
	assert.Contains(t, raw, "From: \"Mailgate\" <noreply@example.com>")
	assert.Contains(t, raw, "To: user@example.com")
	assert.Contains(t, raw, "Subject: Service alert")
	assert.Contains(t, raw, "Date: ")
	assert.Contains(t, raw, "multipart/alternative")
	assert.Contains(t, raw, "line one\nline two")
	assert.Contains(t, raw, "<pre>line one<br>line two</pre>")
}

func TestMailer_AuthFailure(t *testing.T) {
	t.Parallel()

	srv := newFakeSMTP(t)
	srv.setAuthReply("535 5.7.8 Authentication credentials invalid")
	host, port := srv.hostPort()

	m := mailer.New(testConfig(host, port), mailer.WithLogger(discardLogger()))

	result := m.Send(context.Background(), testMessage())
	assert.False(t, result.OK)
	assert.Equal(t, "SMTP authentication failed", result.Message)

	stats := m.Stats()
	assert.EqualValues(t, 0, stats.TotalSent)
	assert.EqualValues(t, 1, stats.TotalFailed)
	assert.Nil(t, stats.LastSent)
}

func TestMailer_ProtocolError(t *testing.T) {
	t.Parallel()

	srv := newFakeSMTP(t)
	srv.setRcptReply("550 5.1.1 No such user")
	host, port := srv.hostPort()

	m := mailer.New(testConfig(host, port), mailer.WithLogger(discardLogger()))

	result := m.Send(context.Background(), testMessage())
	assert.False(t, result.OK)
	assert.True(t, strings.HasPrefix(result.Message, "SMTP error: 550"), "got %q", result.Message)
	assert.Contains(t, result.Message, "No such user")

	assert.EqualValues(t, 1, m.Stats().TotalFailed)
}

func TestMailer_UnexpectedError(t *testing.T) {
	t.Parallel()

	// Nothing listens here; the dial itself fails.
	cfg := testConfig("127.0.0.1", 1)
	cfg.SendTimeout = time.Second

	m := mailer.New(cfg, mailer.WithLogger(discardLogger()))

	result := m.Send(context.Background(), testMessage())
	assert.False(t, result.OK)
	assert.True(t, strings.HasPrefix(result.Message, "Unexpected error: "), "got %q", result.Message)

	assert.EqualValues(t, 1, m.Stats().TotalFailed)
}

func TestMailer_StatsInterleaving(t *testing.T) {
	t.Parallel()

	// One mailer sees both outcomes: failures come from rejected recipients.
	srvFlaky := newFakeSMTP(t)
	flakyHost, flakyPort := srvFlaky.hostPort()
	flaky := mailer.New(testConfig(flakyHost, flakyPort), mailer.WithLogger(discardLogger()))

	for n := 0; n < 3; n++ {
		result := flaky.Send(context.Background(), testMessage())
		require.True(t, result.OK)
	}

	srvFlaky.setRcptReply("452 4.2.2 Mailbox full")
	for n := 0; n < 2; n++ {
		result := flaky.Send(context.Background(), testMessage())
		require.False(t, result.OK)
	}

	srvFlaky.setRcptReply("250 OK")
	result := flaky.Send(context.Background(), testMessage())
	require.True(t, result.OK)

	stats := flaky.Stats()
	assert.EqualValues(t, 4, stats.TotalSent)
	assert.EqualValues(t, 2, stats.TotalFailed)
	require.NotNil(t, stats.LastSent)
}

func TestMailer_FromFallsBackToUsername(t *testing.T) {
	t.Parallel()

	srv := newFakeSMTP(t)
	host, port := srv.hostPort()

	cfg := testConfig(host, port)
	cfg.From = ""
	m := mailer.New(cfg, mailer.WithLogger(discardLogger()))

	result := m.Send(context.Background(), testMessage())
	require.True(t, result.OK)
	assert.Contains(t, srv.lastMessage(), "<relay@example.com>")
}

func TestMailer_FromNameOverride(t *testing.T) {
	t.Parallel()

	srv := newFakeSMTP(t)
	host, port := srv.hostPort()

	m := mailer.New(testConfig(host, port), mailer.WithLogger(discardLogger()))

	msg := testMessage()
	msg.FromName = "Billing Robot"
	result := m.Send(context.Background(), msg)
	require.True(t, result.OK)
	assert.Contains(t, srv.lastMessage(), "From: \"Billing Robot\" <noreply@example.com>")
}
