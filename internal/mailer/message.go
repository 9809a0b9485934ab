package mailer

import (
	"bytes"
	"fmt"
	"mime/multipart"
	"net/mail"
	"net/textproto"
	"strings"
	"time"
)

// Message is one outbound email. It exists only for the duration of a single
// Send call; nothing is persisted.
type Message struct {
	To      string
	Subject string
	Body    string
	// FromName overrides the configured default display name when non-empty.
	FromName string
}

// buildMessage renders the message as multipart/alternative: the plain text
// body as supplied, plus an HTML rendition with line breaks converted to
// <br> inside a preformatted envelope. User content is not escaped further;
// the relay forwards what it was given.
func buildMessage(cfg Config, msg Message, now time.Time) ([]byte, error) {
	fromName := msg.FromName
	if fromName == "" {
		fromName = cfg.FromName
	}
	from := mail.Address{Name: fromName, Address: cfg.From}

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)

	writeHeader := func(key, value string) {
		fmt.Fprintf(&buf, "%s: %s\r\n", key, value)
	}
	writeHeader("From", from.String())
	writeHeader("To", msg.To)
	writeHeader("Subject", msg.Subject)
	writeHeader("Date", now.UTC().Format(time.RFC1123Z))
	writeHeader("MIME-Version", "1.0")
	writeHeader("Content-Type", fmt.Sprintf("multipart/alternative; boundary=%q", mw.Boundary()))
	buf.WriteString("\r\n")

	textPart, err := mw.CreatePart(textproto.MIMEHeader{
		"Content-Type": {`text/plain; charset="utf-8"`},
	})
	if err != nil {
		return nil, fmt.Errorf("build text part: %w", err)
	}
	if _, err := textPart.Write([]byte(msg.Body)); err != nil {
		return nil, fmt.Errorf("write text part: %w", err)
	}

	htmlPart, err := mw.CreatePart(textproto.MIMEHeader{
		"Content-Type": {`text/html; charset="utf-8"`},
	})
	if err != nil {
		return nil, fmt.Errorf("build html part: %w", err)
	}
	htmlBody := strings.ReplaceAll(msg.Body, "\n", "<br>")
	if _, err := fmt.Fprintf(htmlPart, "<html><body><pre>%s</pre></body></html>", htmlBody); err != nil {
		return nil, fmt.Errorf("write html part: %w", err)
	}

	if err := mw.Close(); err != nil {
		return nil, fmt.Errorf("close multipart writer: %w", err)
	}

	return buf.Bytes(), nil
}
