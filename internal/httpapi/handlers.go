// Package httpapi terminates HTTP for the gateway: routing, authentication,
// rate limiting, payload validation and translation between the JSON wire
// shapes and the mailer contract.
package httpapi

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"unicode/utf8"

	"github.com/railsentry/mailgate/internal/config"
	"github.com/railsentry/mailgate/internal/mailer"
	"github.com/railsentry/mailgate/pkg/logger"
)

const (
	serviceName = "mailgate"
	version     = "1.0.0"
)

// EmailSender is the delivery contract the gateway depends on.
// *mailer.Mailer is the production implementation.
type EmailSender interface {
	Send(ctx context.Context, msg mailer.Message) mailer.Result
	IsConfigured() bool
	Stats() mailer.StatsSnapshot
}

// Handler carries the dependencies shared by all routes.
type Handler struct {
	cfg    config.Config
	mailer EmailSender
	log    *slog.Logger
}

// NewHandler creates the route handler set.
func NewHandler(cfg config.Config, sender EmailSender, log *slog.Logger) *Handler {
	return &Handler{cfg: cfg, mailer: sender, log: log}
}

// home serves the static service descriptor.
func (h *Handler) home(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, envelope{
		"service": serviceName,
		"version": version,
		"status":  "online",
		"endpoints": map[string]string{
			"/health":     "Health check",
			"/send-email": "Send email (POST)",
			"/stats":      "Delivery statistics",
		},
		"documentation": "POST to /send-email with JSON body",
	})
}

// health is the liveness probe.
func (h *Handler) health(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, envelope{
		"status":          "healthy",
		"timestamp":       timestamp(),
		"service":         serviceName,
		"smtp_configured": h.mailer.IsConfigured(),
	})
}

// sendEmailRequest is the accepted payload for POST /send-email.
type sendEmailRequest struct {
	APIKey   string `json:"api_key"`
	To       string `json:"to"`
	Subject  string `json:"subject"`
	Body     string `json:"body"`
	FromName string `json:"from_name"`
}

// validate runs the ordered validation pipeline; the first failing check
// wins and its message is returned verbatim to the caller.
func (h *Handler) validate(req sendEmailRequest) (string, bool) {
	var missing []string
	if req.To == "" {
		missing = append(missing, "to")
	}
	if req.Subject == "" {
		missing = append(missing, "subject")
	}
	if req.Body == "" {
		missing = append(missing, "body")
	}
	if len(missing) > 0 {
		return "Missing required fields: " + strings.Join(missing, ", "), false
	}

	// Deliberately weak format check: the SMTP server is the authority on
	// deliverability, this only catches obvious garbage.
	if !strings.Contains(req.To, "@") || !strings.Contains(req.To, ".") {
		return "Invalid email format", false
	}

	if utf8.RuneCountInString(req.Subject) > h.cfg.MaxSubjectLength {
		return fmt.Sprintf("Subject too long (max %d characters)", h.cfg.MaxSubjectLength), false
	}
	if utf8.RuneCountInString(req.Body) > h.cfg.MaxBodyLength {
		return fmt.Sprintf("Body too long (max %d characters)", h.cfg.MaxBodyLength), false
	}

	return "", true
}

// sendEmail validates the payload and dispatches one delivery attempt.
// Auth and rate limiting have already run as middleware.
func (h *Handler) sendEmail(w http.ResponseWriter, r *http.Request) {
	var req sendEmailRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "JSON body required")
		return
	}

	if msg, ok := h.validate(req); !ok {
		h.log.Warn("validation failed",
			logger.Component("httpapi"),
			logger.RequestID(requestIDFrom(r.Context())),
			slog.String("reason", msg),
		)
		respondError(w, http.StatusBadRequest, msg)
		return
	}

	result := h.mailer.Send(r.Context(), mailer.Message{
		To:       req.To,
		Subject:  req.Subject,
		Body:     req.Body,
		FromName: req.FromName,
	})

	if !result.OK {
		respondError(w, http.StatusInternalServerError, "Failed to send email: "+result.Message)
		return
	}

	respondJSON(w, http.StatusOK, envelope{
		"status":    "success",
		"message":   result.Message,
		"timestamp": timestamp(),
		"recipient": req.To,
	})
}

// stats reports the delivery counters.
func (h *Handler) stats(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, envelope{
		"status":    "success",
		"stats":     h.mailer.Stats(),
		"timestamp": timestamp(),
	})
}
